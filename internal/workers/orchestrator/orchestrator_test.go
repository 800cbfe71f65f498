package orchestrator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vigil/internal/domain"
	"vigil/internal/ports"
	"vigil/internal/probes"
)

type fakeScans struct {
	record       *domain.ScanRecord
	running      bool
	completed    bool
	failed       bool
	failMessage  string
	counts       domain.SeverityCounts
	progress     []domain.Progress
	runningErr   error
	completedErr error
}

func (f *fakeScans) Get(context.Context, string) (*domain.ScanRecord, error) {
	if f.record == nil {
		return nil, ports.ErrNotFound
	}
	return f.record, nil
}

func (f *fakeScans) MarkRunning(context.Context, string, time.Time) error {
	if f.runningErr != nil {
		return f.runningErr
	}
	f.running = true
	f.record.Status = domain.StatusRunning
	return nil
}

func (f *fakeScans) MarkCompleted(_ context.Context, _ string, _ time.Time, counts domain.SeverityCounts) error {
	if f.completedErr != nil {
		return f.completedErr
	}
	f.completed = true
	f.counts = counts
	f.record.Status = domain.StatusCompleted
	return nil
}

func (f *fakeScans) MarkFailed(_ context.Context, _ string, _ time.Time, msg string) error {
	f.failed = true
	f.failMessage = msg
	f.record.Status = domain.StatusFailed
	return nil
}

func (f *fakeScans) UpdateProgress(_ context.Context, _ string, p domain.Progress) error {
	f.progress = append(f.progress, p)
	return nil
}

func (f *fakeScans) CreateWithJob(context.Context, *domain.ScanRecord, domain.ScanJobData) (string, error) {
	return "", errors.New("not used")
}
func (f *fakeScans) CountCreatedSince(context.Context, string, time.Time) (int, error) {
	return 0, nil
}
func (f *fakeScans) FindRecentByURL(context.Context, string, string, time.Time) (string, bool, error) {
	return "", false, nil
}

type fakeFindings struct {
	stored []domain.Finding
	err    error
}

func (f *fakeFindings) ReplaceForScan(_ context.Context, _ string, findings []domain.Finding) error {
	if f.err != nil {
		return f.err
	}
	f.stored = findings
	return nil
}

func (f *fakeFindings) ListByScan(context.Context, string) ([]domain.Finding, error) {
	return f.stored, nil
}

type fakeReports struct {
	stored *domain.Report
	err    error
}

func (f *fakeReports) Upsert(_ context.Context, rep *domain.Report) error {
	if f.err != nil {
		return f.err
	}
	f.stored = rep
	return nil
}

func (f *fakeReports) GetByScan(context.Context, string) (*domain.Report, error) {
	if f.stored == nil {
		return nil, ports.ErrNotFound
	}
	return f.stored, nil
}

type fakeProbe struct {
	name     string
	findings []domain.Finding
	err      error
}

func (p *fakeProbe) Name() string { return p.name }

func (p *fakeProbe) Run(context.Context, string) ([]domain.Finding, error) {
	return p.findings, p.err
}

func factoryOf(set ...probes.Probe) ProbeFactory {
	return func(time.Duration) []probes.Probe { return set }
}

func newOrchestrator(scans *fakeScans, findings *fakeFindings, reports *fakeReports, factory ProbeFactory) *Orchestrator {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(scans, findings, reports, factory, 30*time.Second, log)
}

func pendingJob() domain.QueueJob {
	return domain.QueueJob{
		ID:       "job-1",
		ScanID:   "scan-1",
		Payload:  domain.ScanJobData{URL: "https://example.com", Domain: "example.com"},
		Attempts: 1,
	}
}

func TestExecuteHappyPath(t *testing.T) {
	scans := &fakeScans{record: &domain.ScanRecord{ID: "scan-1", Status: domain.StatusPending}}
	findings := &fakeFindings{}
	reports := &fakeReports{}
	o := newOrchestrator(scans, findings, reports, factoryOf(
		&fakeProbe{name: "a", findings: []domain.Finding{
			{ProbeName: "a", Severity: domain.SeverityHigh, Outcome: domain.OutcomeFail, Category: domain.CategoryMisconfiguration},
		}},
		&fakeProbe{name: "b", findings: []domain.Finding{
			{ProbeName: "b", Severity: domain.SeverityInfo, Outcome: domain.OutcomePass, Category: domain.CategoryAuthFailures},
		}},
	))

	res := o.Execute(context.Background(), pendingJob())

	assert.Equal(t, ports.ResolveAck, res.Kind)
	assert.True(t, scans.running)
	assert.True(t, scans.completed)
	assert.False(t, scans.failed)
	assert.Equal(t, 1, scans.counts.High)

	require.Len(t, findings.stored, 2)
	for _, f := range findings.stored {
		assert.Equal(t, "scan-1", f.ScanID)
	}

	require.NotNil(t, reports.stored)
	assert.Equal(t, domain.SeverityHigh, reports.stored.RiskScore)
}

func TestExecuteProgressIsMonotonic(t *testing.T) {
	scans := &fakeScans{record: &domain.ScanRecord{ID: "scan-1", Status: domain.StatusPending}}
	o := newOrchestrator(scans, &fakeFindings{}, &fakeReports{}, factoryOf(
		&fakeProbe{name: "a"}, &fakeProbe{name: "b"}, &fakeProbe{name: "c"},
	))

	res := o.Execute(context.Background(), pendingJob())
	require.Equal(t, ports.ResolveAck, res.Kind)

	require.NotEmpty(t, scans.progress)
	last := 0.0
	for _, p := range scans.progress {
		assert.GreaterOrEqual(t, p.Percentage, last)
		assert.GreaterOrEqual(t, p.Percentage, 10.0)
		assert.LessOrEqual(t, p.Percentage, 90.0)
		last = p.Percentage
	}
	assert.Equal(t, "reporting", scans.progress[len(scans.progress)-1].Stage)
}

func TestExecuteProbeErrorIsIsolated(t *testing.T) {
	scans := &fakeScans{record: &domain.ScanRecord{ID: "scan-1", Status: domain.StatusPending}}
	findings := &fakeFindings{}
	o := newOrchestrator(scans, findings, &fakeReports{}, factoryOf(
		&fakeProbe{name: "broken", err: errors.New("connection reset")},
		&fakeProbe{name: "fine", findings: []domain.Finding{
			{ProbeName: "fine", Severity: domain.SeverityInfo, Outcome: domain.OutcomePass, Category: domain.CategoryMisconfiguration},
		}},
	))

	res := o.Execute(context.Background(), pendingJob())

	// one bad probe never fails the whole job
	assert.Equal(t, ports.ResolveAck, res.Kind)
	assert.True(t, scans.completed)

	require.Len(t, findings.stored, 2)
	errFinding := findings.stored[0]
	assert.Equal(t, "broken", errFinding.ProbeName)
	assert.Equal(t, domain.OutcomeError, errFinding.Outcome)
	assert.Equal(t, "scan-1", errFinding.ScanID)
}

func TestExecuteTerminalScanIsAckedWithoutWork(t *testing.T) {
	scans := &fakeScans{record: &domain.ScanRecord{ID: "scan-1", Status: domain.StatusCompleted}}
	findings := &fakeFindings{}
	o := newOrchestrator(scans, findings, &fakeReports{}, factoryOf(&fakeProbe{name: "a"}))

	res := o.Execute(context.Background(), pendingJob())

	assert.Equal(t, ports.ResolveAck, res.Kind)
	assert.False(t, scans.running, "a finished scan must not be restarted")
	assert.Nil(t, findings.stored)
}

func TestExecuteMissingScanRetries(t *testing.T) {
	o := newOrchestrator(&fakeScans{}, &fakeFindings{}, &fakeReports{}, factoryOf(&fakeProbe{name: "a"}))

	res := o.Execute(context.Background(), pendingJob())
	assert.Equal(t, ports.ResolveRetry, res.Kind)
}

func TestExecuteMarkRunningFailureRetries(t *testing.T) {
	scans := &fakeScans{
		record:     &domain.ScanRecord{ID: "scan-1", Status: domain.StatusPending},
		runningErr: errors.New("db down"),
	}
	o := newOrchestrator(scans, &fakeFindings{}, &fakeReports{}, factoryOf(&fakeProbe{name: "a"}))

	res := o.Execute(context.Background(), pendingJob())
	assert.Equal(t, ports.ResolveRetry, res.Kind)
	assert.False(t, scans.failed)
}

func TestExecutePersistFailureLeavesScanRetryable(t *testing.T) {
	scans := &fakeScans{record: &domain.ScanRecord{ID: "scan-1", Status: domain.StatusPending}}
	findings := &fakeFindings{err: errors.New("insert failed")}
	o := newOrchestrator(scans, findings, &fakeReports{}, factoryOf(&fakeProbe{name: "a"}))

	res := o.Execute(context.Background(), pendingJob())

	assert.Equal(t, ports.ResolveRetry, res.Kind)
	// failing the scan is the dead-letter path's job; a premature failed
	// status would make the next delivery ack without doing anything
	assert.False(t, scans.failed)
	assert.False(t, scans.record.Status.Terminal())
}

func TestExecuteMarkCompletedFailureRetries(t *testing.T) {
	scans := &fakeScans{
		record:       &domain.ScanRecord{ID: "scan-1", Status: domain.StatusPending},
		completedErr: errors.New("db down"),
	}
	o := newOrchestrator(scans, &fakeFindings{}, &fakeReports{}, factoryOf(&fakeProbe{name: "a"}))

	res := o.Execute(context.Background(), pendingJob())
	assert.Equal(t, ports.ResolveRetry, res.Kind)
	assert.False(t, scans.failed)
}

func TestExecuteTransientPersistErrorRecoversOnRedelivery(t *testing.T) {
	scans := &fakeScans{record: &domain.ScanRecord{ID: "scan-1", Status: domain.StatusPending}}
	findings := &fakeFindings{err: errors.New("connection refused")}
	reports := &fakeReports{}
	o := newOrchestrator(scans, findings, reports, factoryOf(
		&fakeProbe{name: "a", findings: []domain.Finding{
			{ProbeName: "a", Severity: domain.SeverityInfo, Outcome: domain.OutcomePass, Category: domain.CategoryMisconfiguration},
		}},
	))

	job := pendingJob()
	res := o.Execute(context.Background(), job)
	require.Equal(t, ports.ResolveRetry, res.Kind)
	assert.False(t, scans.completed)

	// storage recovered; the redelivered attempt must re-run the probes
	// and finish the scan
	findings.err = nil
	job.Attempts = 2
	res = o.Execute(context.Background(), job)

	assert.Equal(t, ports.ResolveAck, res.Kind)
	assert.True(t, scans.completed)
	require.Len(t, findings.stored, 1)
	require.NotNil(t, reports.stored)
}

func TestExecutePayloadTimeoutOverride(t *testing.T) {
	scans := &fakeScans{record: &domain.ScanRecord{ID: "scan-1", Status: domain.StatusPending}}
	var got time.Duration
	factory := func(timeout time.Duration) []probes.Probe {
		got = timeout
		return []probes.Probe{&fakeProbe{name: "a"}}
	}
	o := newOrchestrator(scans, &fakeFindings{}, &fakeReports{}, factory)

	job := pendingJob()
	job.Payload.TimeoutSeconds = 5
	o.Execute(context.Background(), job)

	assert.Equal(t, 5*time.Second, got)
}
