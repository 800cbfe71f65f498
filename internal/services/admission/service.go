// Package admission implements the synchronous validation-and-intake step
// in front of the scan queue.
package admission

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/publicsuffix"

	"vigil/internal/domain"
	"vigil/internal/metrics"
	"vigil/internal/ports"
)

// Options are the policy knobs of the gate. Both windows are business
// policy, not hard security controls, so they stay configurable.
type Options struct {
	// Production enables the network-target policy that keeps the scanner
	// from probing loopback and private ranges.
	Production bool
	// DuplicateWindow suppresses re-submits of the same URL by the same
	// requester. Zero disables suppression.
	DuplicateWindow time.Duration
	// DefaultDailyLimit applies when the plan service reports no limit.
	DefaultDailyLimit int
	// ProbeTimeoutSeconds is carried into the job payload.
	ProbeTimeoutSeconds int
}

// Service is the admission gate. All failure paths leave no state behind;
// the scan record and its queue entry only exist after every policy check
// passed.
type Service struct {
	scans ports.ScanRepository
	usage ports.UsageRepository
	plans ports.PlanService
	opts  Options
	log   *slog.Logger
	now   func() time.Time
}

func New(scans ports.ScanRepository, usage ports.UsageRepository, plans ports.PlanService, opts Options, log *slog.Logger) *Service {
	if opts.DuplicateWindow < 0 {
		opts.DuplicateWindow = 0
	}
	return &Service{
		scans: scans,
		usage: usage,
		plans: plans,
		opts:  opts,
		log:   log,
		now:   time.Now,
	}
}

// Admit validates the request, enforces policy and, on success, creates the
// pending scan record with its queued job. The returned error is always a
// *Error when non-nil.
func (s *Service) Admit(ctx context.Context, req domain.ScanRequest) (*domain.ScanRecord, error) {
	target, aerr := s.validateTarget(req.URL)
	if aerr != nil {
		metrics.ScansRejected.WithLabelValues(string(aerr.Code)).Inc()
		return nil, aerr
	}

	if req.Authenticated() {
		if aerr := s.enforcePolicy(ctx, req); aerr != nil {
			metrics.ScansRejected.WithLabelValues(string(aerr.Code)).Inc()
			return nil, aerr
		}
	}

	rec, aerr := s.intake(ctx, req, target)
	if aerr != nil {
		metrics.ScansRejected.WithLabelValues(string(aerr.Code)).Inc()
		return nil, aerr
	}
	metrics.ScansAdmitted.Inc()
	s.log.Info("scan admitted",
		"scan_id", rec.ID,
		"domain", rec.Domain,
		"requester", req.RequesterID,
		"public", req.IsPublicScan,
	)
	return rec, nil
}

// validateTarget covers the structural, protocol and network-target checks.
func (s *Service) validateTarget(raw string) (*url.URL, *Error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return nil, reject(CodeInvalidURL, "URL could not be parsed")
	}
	switch u.Scheme {
	case "http", "https":
	default:
		return nil, reject(CodeInvalidProtocol, fmt.Sprintf("protocol %q is not allowed, use http or https", u.Scheme))
	}
	if s.opts.Production && isPrivateHost(u.Hostname()) {
		return nil, reject(CodePrivateNetwork, "scanning private or internal network targets is not allowed")
	}
	return u, nil
}

// enforcePolicy runs the quota, plan and duplicate checks for
// authenticated requesters, in that order.
func (s *Service) enforcePolicy(ctx context.Context, req domain.ScanRequest) *Error {
	decision, err := s.plans.CheckScanLimit(ctx, req.RequesterID)
	if err != nil {
		s.log.Error("plan service unavailable", "requester", req.RequesterID, "err", err)
		return reject(CodeInternal, "plan service unavailable")
	}
	limit := decision.DailyLimit
	if limit <= 0 {
		limit = s.opts.DefaultDailyLimit
	}

	midnight := localMidnight(s.now())
	used, err := s.scans.CountCreatedSince(ctx, req.RequesterID, midnight)
	if err != nil {
		return reject(CodeInternal, "usage lookup failed")
	}
	if used >= limit {
		return rejectDetails(CodeDailyLimit, "daily scan limit reached", map[string]any{
			"limit":     limit,
			"remaining": 0,
			"resetAt":   midnight.Add(24 * time.Hour).Format(time.RFC3339),
		})
	}

	if !decision.Allowed {
		return rejectDetails(CodePlanLimit, "current plan does not allow this scan", map[string]any{
			"reason": decision.Reason,
		})
	}

	if s.opts.DuplicateWindow > 0 {
		since := s.now().Add(-s.opts.DuplicateWindow)
		priorID, found, err := s.scans.FindRecentByURL(ctx, req.RequesterID, req.URL, since)
		if err != nil {
			return reject(CodeInternal, "duplicate lookup failed")
		}
		if found {
			return rejectDetails(CodeDuplicateScan, "this URL was scanned moments ago", map[string]any{
				"waitSeconds": int(s.opts.DuplicateWindow.Seconds()),
				"priorScanId": priorID,
			})
		}
	}
	return nil
}

// intake creates the pending record and its queue entry, then bumps the
// requester's usage counter.
func (s *Service) intake(ctx context.Context, req domain.ScanRequest, target *url.URL) (*domain.ScanRecord, *Error) {
	host := target.Hostname()
	registrable, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		registrable = host
	}

	rec := &domain.ScanRecord{
		ID:           uuid.New().String(),
		URL:          req.URL,
		Domain:       registrable,
		RequesterID:  req.RequesterID,
		IsPublicScan: req.IsPublicScan,
		Status:       domain.StatusPending,
		CreatedAt:    s.now(),
	}
	payload := domain.ScanJobData{
		URL:            req.URL,
		Domain:         registrable,
		RequesterID:    req.RequesterID,
		TimeoutSeconds: s.opts.ProbeTimeoutSeconds,
	}

	jobRef, err := s.scans.CreateWithJob(ctx, rec, payload)
	if err != nil {
		s.log.Error("scan intake failed", "url", req.URL, "err", err)
		return nil, reject(CodeInternal, "could not create scan")
	}
	rec.JobRef = jobRef

	if req.Authenticated() {
		if err := s.usage.Increment(ctx, req.RequesterID, s.now()); err != nil {
			// The scan is already queued; a lost usage tick is preferable to
			// failing the request after the side effects happened.
			s.log.Warn("usage increment failed", "requester", req.RequesterID, "err", err)
		}
		if err := s.plans.TrackScanUsage(ctx, req.RequesterID); err != nil {
			s.log.Warn("plan usage tracking failed", "requester", req.RequesterID, "err", err)
		}
	}
	return rec, nil
}

// isPrivateHost reports whether the literal host names a loopback,
// link-local or RFC1918 target. Hostnames are not resolved; the policy is
// about obvious internal targets, not a DNS rebinding defense.
func isPrivateHost(host string) bool {
	h := strings.ToLower(host)
	if h == "localhost" || strings.HasSuffix(h, ".localhost") {
		return true
	}
	ip := net.ParseIP(h)
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified()
}

// localMidnight truncates t to the start of its day in local time; the
// daily quota resets there.
func localMidnight(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}
