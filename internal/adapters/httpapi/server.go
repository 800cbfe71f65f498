// Package httpapi serves the admission and status boundaries.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vigil/internal/domain"
	"vigil/internal/middleware"
	"vigil/internal/ports"
	"vigil/internal/services/admission"
)

// Server wires the admission service and read repositories to chi routes.
type Server struct {
	admissions *admission.Service
	scans      ports.ScanRepository
	reports    ports.ReportRepository
	log        *slog.Logger
}

func New(admissions *admission.Service, scans ports.ScanRepository, reports ports.ReportRepository, log *slog.Logger) *Server {
	return &Server{admissions: admissions, scans: scans, reports: reports, log: log}
}

// Routes returns the router for mounting. Middleware is applied by the
// caller so tests can exercise handlers bare.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(rt chi.Router) {
		rt.Post("/scans", s.wrap(s.handleSubmit))
		rt.Get("/scans/{id}", s.wrap(s.handleStatus))
	})
	return r
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// wrap maps handler errors onto the structured error envelope. Unknown
// errors become INTERNAL_ERROR without leaking detail.
func (s *Server) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}

		var aerr *admission.Error
		if errors.As(err, &aerr) {
			writeError(w, statusFor(aerr.Code), aerr)
			return
		}
		if errors.Is(err, ports.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]any{
				"error": "scan not found",
				"code":  "NOT_FOUND",
			})
			return
		}
		s.log.Error("handler error", "path", req.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, &admission.Error{
			Code:    admission.CodeInternal,
			Message: "internal error",
		})
	}
}

type submitRequest struct {
	URL          string `json:"url"`
	IsPublicScan *bool  `json:"isPublicScan,omitempty"`
}

// POST /v1/scans
func (s *Server) handleSubmit(w http.ResponseWriter, req *http.Request) error {
	var body submitRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return &admission.Error{Code: admission.CodeInvalidURL, Message: "request body could not be parsed"}
	}

	requesterID := middleware.UserID(req.Context())
	isPublic := requesterID == ""
	if body.IsPublicScan != nil {
		isPublic = *body.IsPublicScan
	}

	rec, err := s.admissions.Admit(req.Context(), domain.ScanRequest{
		URL:           body.URL,
		RequesterID:   requesterID,
		IsPublicScan:  isPublic,
		UserAgent:     req.UserAgent(),
		SourceAddress: req.RemoteAddr,
	})
	if err != nil {
		return err
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"scanId":                  rec.ID,
		"jobRef":                  rec.JobRef,
		"url":                     rec.URL,
		"domain":                  rec.Domain,
		"status":                  rec.Status,
		"createdAt":               rec.CreatedAt,
		"estimatedCompletionTime": "1-3 minutes",
	})
	return nil
}

// GET /v1/scans/{id}
func (s *Server) handleStatus(w http.ResponseWriter, req *http.Request) error {
	id := chi.URLParam(req, "id")

	rec, err := s.scans.Get(req.Context(), id)
	if err != nil {
		return err
	}

	resp := map[string]any{
		"scanId":    rec.ID,
		"url":       rec.URL,
		"domain":    rec.Domain,
		"status":    rec.Status,
		"createdAt": rec.CreatedAt,
	}
	switch rec.Status {
	case domain.StatusRunning:
		resp["progress"] = rec.Progress
	case domain.StatusCompleted:
		resp["severityCounts"] = rec.Counts
		resp["completedAt"] = rec.CompletedAt
		rep, err := s.reports.GetByScan(req.Context(), rec.ID)
		if err != nil && !errors.Is(err, ports.ErrNotFound) {
			return err
		}
		if rep != nil {
			resp["report"] = rep
		}
	case domain.StatusFailed:
		resp["error"] = rec.ErrorMessage
	}

	writeJSON(w, http.StatusOK, resp)
	return nil
}

func statusFor(code admission.Code) int {
	switch code {
	case admission.CodeInvalidURL, admission.CodeInvalidProtocol:
		return http.StatusBadRequest
	case admission.CodePrivateNetwork:
		return http.StatusForbidden
	case admission.CodeDailyLimit, admission.CodeDuplicateScan:
		return http.StatusTooManyRequests
	case admission.CodePlanLimit:
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, aerr *admission.Error) {
	body := map[string]any{
		"error": aerr.Message,
		"code":  aerr.Code,
	}
	if len(aerr.Details) > 0 {
		body["details"] = aerr.Details
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
