package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vigil/internal/domain"
	"vigil/internal/ports"
	"vigil/internal/services/admission"
)

type fakeScans struct {
	created []*domain.ScanRecord
	records map[string]*domain.ScanRecord
}

func (f *fakeScans) CreateWithJob(_ context.Context, rec *domain.ScanRecord, _ domain.ScanJobData) (string, error) {
	f.created = append(f.created, rec)
	return "job-" + rec.ID, nil
}

func (f *fakeScans) Get(_ context.Context, id string) (*domain.ScanRecord, error) {
	rec, ok := f.records[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return rec, nil
}

func (f *fakeScans) CountCreatedSince(context.Context, string, time.Time) (int, error) {
	return 0, nil
}
func (f *fakeScans) FindRecentByURL(context.Context, string, string, time.Time) (string, bool, error) {
	return "", false, nil
}
func (f *fakeScans) MarkRunning(context.Context, string, time.Time) error { return nil }
func (f *fakeScans) MarkCompleted(context.Context, string, time.Time, domain.SeverityCounts) error {
	return nil
}
func (f *fakeScans) MarkFailed(context.Context, string, time.Time, string) error   { return nil }
func (f *fakeScans) UpdateProgress(context.Context, string, domain.Progress) error { return nil }

type fakeUsage struct{}

func (fakeUsage) Increment(context.Context, string, time.Time) error { return nil }

type fakePlans struct{}

func (fakePlans) CheckScanLimit(context.Context, string) (ports.PlanDecision, error) {
	return ports.PlanDecision{Allowed: true, DailyLimit: 10}, nil
}
func (fakePlans) TrackScanUsage(context.Context, string) error { return nil }

type fakeReports struct {
	reports map[string]*domain.Report
}

func (f *fakeReports) Upsert(context.Context, *domain.Report) error { return nil }

func (f *fakeReports) GetByScan(_ context.Context, scanID string) (*domain.Report, error) {
	rep, ok := f.reports[scanID]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return rep, nil
}

func newTestServer(scans *fakeScans, reports *fakeReports) *Server {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	admissions := admission.New(scans, fakeUsage{}, fakePlans{}, admission.Options{
		DuplicateWindow:   5 * time.Minute,
		DefaultDailyLimit: 10,
	}, log)
	return New(admissions, scans, reports, log)
}

func doRequest(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(&fakeScans{}, &fakeReports{})
	rec := doRequest(t, srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSubmitScanAccepted(t *testing.T) {
	scans := &fakeScans{}
	srv := newTestServer(scans, &fakeReports{})

	rec := doRequest(t, srv, http.MethodPost, "/v1/scans", `{"url":"https://example.com/shop"}`)

	require.Equal(t, http.StatusAccepted, rec.Code)
	body := decodeBody(t, rec)
	assert.NotEmpty(t, body["scanId"])
	assert.NotEmpty(t, body["jobRef"])
	assert.Equal(t, "https://example.com/shop", body["url"])
	assert.Equal(t, "example.com", body["domain"])
	assert.Equal(t, "pending", body["status"])

	require.Len(t, scans.created, 1)
	// no credentials on the request, so this is a public scan
	assert.True(t, scans.created[0].IsPublicScan)
}

func TestSubmitScanInvalidProtocol(t *testing.T) {
	scans := &fakeScans{}
	srv := newTestServer(scans, &fakeReports{})

	rec := doRequest(t, srv, http.MethodPost, "/v1/scans", `{"url":"ftp://example.com"}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "INVALID_PROTOCOL", body["code"])
	assert.Empty(t, scans.created, "a rejected submission must not create a record")
}

func TestSubmitScanBadBody(t *testing.T) {
	srv := newTestServer(&fakeScans{}, &fakeReports{})
	rec := doRequest(t, srv, http.MethodPost, "/v1/scans", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatusNotFound(t *testing.T) {
	srv := newTestServer(&fakeScans{records: map[string]*domain.ScanRecord{}}, &fakeReports{})
	rec := doRequest(t, srv, http.MethodGet, "/v1/scans/nope", "")

	require.Equal(t, http.StatusNotFound, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "NOT_FOUND", body["code"])
}

func TestStatusRunningIncludesProgress(t *testing.T) {
	scans := &fakeScans{records: map[string]*domain.ScanRecord{
		"s1": {
			ID:     "s1",
			URL:    "https://example.com",
			Status: domain.StatusRunning,
			Progress: domain.Progress{
				Stage:        "probing",
				CurrentProbe: "header-audit",
				Percentage:   36.7,
			},
		},
	}}
	srv := newTestServer(scans, &fakeReports{})

	rec := doRequest(t, srv, http.MethodGet, "/v1/scans/s1", "")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "running", body["status"])
	progress, ok := body["progress"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "probing", progress["stage"])
	assert.Nil(t, body["report"])
}

func TestStatusCompletedIncludesReport(t *testing.T) {
	now := time.Now()
	scans := &fakeScans{records: map[string]*domain.ScanRecord{
		"s1": {
			ID:          "s1",
			URL:         "https://example.com",
			Status:      domain.StatusCompleted,
			CompletedAt: &now,
			Counts:      domain.SeverityCounts{High: 2, Low: 1},
		},
	}}
	reports := &fakeReports{reports: map[string]*domain.Report{
		"s1": {ID: "r1", ScanID: "s1", RiskScore: domain.SeverityHigh, Coverage: 0.3},
	}}
	srv := newTestServer(scans, reports)

	rec := doRequest(t, srv, http.MethodGet, "/v1/scans/s1", "")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "completed", body["status"])
	assert.NotNil(t, body["severityCounts"])
	report, ok := body["report"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "high", report["risk_score"])
}

func TestStatusFailedIncludesError(t *testing.T) {
	scans := &fakeScans{records: map[string]*domain.ScanRecord{
		"s1": {ID: "s1", Status: domain.StatusFailed, ErrorMessage: "target unreachable"},
	}}
	srv := newTestServer(scans, &fakeReports{})

	rec := doRequest(t, srv, http.MethodGet, "/v1/scans/s1", "")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "failed", body["status"])
	assert.Equal(t, "target unreachable", body["error"])
}
