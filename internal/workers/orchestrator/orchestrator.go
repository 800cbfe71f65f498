// Package orchestrator executes one queued scan: it runs the probe set
// against the target, tracks progress, aggregates findings and writes the
// outcome back to storage.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"vigil/internal/domain"
	"vigil/internal/metrics"
	"vigil/internal/ports"
	"vigil/internal/probes"
	"vigil/internal/report"
)

// Progress percentage floor after initialization and ceiling before the
// reporting stage; probes interpolate linearly in between.
const (
	progressFloor   = 10.0
	progressCeiling = 90.0
)

// ProbeFactory builds the probe set for one job, letting the payload
// override the per-fetch timeout.
type ProbeFactory func(timeout time.Duration) []probes.Probe

// Orchestrator turns queued jobs into finished scans. Deliveries are
// at-least-once, so every write is idempotent on the scan id.
type Orchestrator struct {
	scans    ports.ScanRepository
	findings ports.FindingRepository
	reports  ports.ReportRepository
	factory  ProbeFactory
	timeout  time.Duration // default per-fetch timeout
	log      *slog.Logger
	now      func() time.Time
}

func New(scans ports.ScanRepository, findings ports.FindingRepository, reports ports.ReportRepository, factory ProbeFactory, timeout time.Duration, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		scans:    scans,
		findings: findings,
		reports:  reports,
		factory:  factory,
		timeout:  timeout,
		log:      log,
		now:      time.Now,
	}
}

// Execute processes one delivery and reports how it resolved. Probe-level
// errors are absorbed into error findings and never fail the job;
// infrastructure errors ask the queue to retry and leave the scan
// re-runnable. The scan only reaches failed when the queue dead-letters
// the job.
func (o *Orchestrator) Execute(ctx context.Context, job domain.QueueJob) ports.Resolution {
	log := o.log.With("job_id", job.ID, "scan_id", job.ScanID, "attempt", job.Attempts)

	rec, err := o.scans.Get(ctx, job.ScanID)
	if err != nil {
		log.Error("scan lookup failed", "err", err)
		return ports.Retry(fmt.Errorf("load scan: %w", err))
	}
	if rec.Status.Terminal() {
		// Completed, or failed via dead-letter: nothing left to do for
		// this delivery.
		log.Info("scan already terminal, acking re-delivery", "status", rec.Status)
		return ports.Ack()
	}

	started := o.now()
	if err := o.scans.MarkRunning(ctx, job.ScanID, started); err != nil {
		log.Error("mark running failed", "err", err)
		return ports.Retry(fmt.Errorf("mark running: %w", err))
	}

	set := o.probeSet(job)
	findings := o.runProbes(ctx, job, set, log)

	counts := domain.CountFindings(findings)
	o.emitProgress(ctx, job.ScanID, domain.Progress{
		Stage:           "reporting",
		CompletedProbes: len(set),
		TotalProbes:     len(set),
		Percentage:      progressCeiling,
	}, log)

	if err := o.findings.ReplaceForScan(ctx, job.ScanID, findings); err != nil {
		return o.retryLater(fmt.Errorf("persist findings: %w", err), log)
	}
	rep := report.Synthesize(job.ScanID, findings, o.now())
	if err := o.reports.Upsert(ctx, rep); err != nil {
		return o.retryLater(fmt.Errorf("persist report: %w", err), log)
	}
	if err := o.scans.MarkCompleted(ctx, job.ScanID, o.now(), counts); err != nil {
		return o.retryLater(fmt.Errorf("mark completed: %w", err), log)
	}

	metrics.ScansCompleted.Inc()
	metrics.ScanDuration.Observe(o.now().Sub(started).Seconds())
	log.Info("scan completed",
		"findings", len(findings),
		"risk", rep.RiskScore,
		"critical", counts.Critical,
		"high", counts.High,
	)
	return ports.Ack()
}

// runProbes executes the fixed probe set sequentially. Sequential order
// keeps the progress percentage monotonic and avoids hammering targets
// that rate-limit the scanner.
func (o *Orchestrator) runProbes(ctx context.Context, job domain.QueueJob, set []probes.Probe, log *slog.Logger) []domain.Finding {
	total := len(set)

	o.emitProgress(ctx, job.ScanID, domain.Progress{
		Stage:       "probing",
		TotalProbes: total,
		Percentage:  progressFloor,
	}, log)

	findings := make([]domain.Finding, 0, 16)
	for i, probe := range set {
		o.emitProgress(ctx, job.ScanID, domain.Progress{
			Stage:           "probing",
			CompletedProbes: i,
			TotalProbes:     total,
			CurrentProbe:    probe.Name(),
			Percentage:      interpolate(i, total),
		}, log)

		results, err := probe.Run(ctx, job.Payload.URL)
		if err != nil {
			// One broken probe must not void the rest of the scan.
			log.Warn("probe failed", "probe", probe.Name(), "err", err)
			ef := domain.ErrorFinding(probe.Name(), err)
			ef.ScanID = job.ScanID
			findings = append(findings, ef)
		}
		for _, f := range results {
			f.ScanID = job.ScanID
			findings = append(findings, f)
		}

		o.emitProgress(ctx, job.ScanID, domain.Progress{
			Stage:           "probing",
			CompletedProbes: i + 1,
			TotalProbes:     total,
			CurrentProbe:    probe.Name(),
			Percentage:      interpolate(i+1, total),
		}, log)
	}
	return findings
}

func (o *Orchestrator) probeSet(job domain.QueueJob) []probes.Probe {
	timeout := o.timeout
	if job.Payload.TimeoutSeconds > 0 {
		timeout = time.Duration(job.Payload.TimeoutSeconds) * time.Second
	}
	return o.factory(timeout)
}

// emitProgress is best effort; a missed progress write never fails a scan.
func (o *Orchestrator) emitProgress(ctx context.Context, scanID string, p domain.Progress, log *slog.Logger) {
	if err := o.scans.UpdateProgress(ctx, scanID, p); err != nil {
		log.Warn("progress update failed", "stage", p.Stage, "err", err)
	}
}

// retryLater hands an infrastructure failure back to the queue. The scan
// is deliberately not marked failed here: the next delivery re-runs the
// whole job, and the dead-letter path fails the scan once the attempt
// ceiling is reached.
func (o *Orchestrator) retryLater(cause error, log *slog.Logger) ports.Resolution {
	log.Error("scan attempt failed", "err", cause)
	return ports.Retry(cause)
}

// interpolate maps completed/total onto the 10..90 progress band.
func interpolate(completed, total int) float64 {
	if total <= 0 {
		return progressCeiling
	}
	return progressFloor + (progressCeiling-progressFloor)*float64(completed)/float64(total)
}
