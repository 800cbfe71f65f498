// Package scanrunner drives the queue consumer loop: it claims due jobs,
// fans them out to a bounded set of workers and resolves each delivery.
package scanrunner

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"vigil/internal/domain"
	"vigil/internal/metrics"
	"vigil/internal/ports"
)

// Processor performs the scan work for one claimed job.
type Processor interface {
	Execute(ctx context.Context, job domain.QueueJob) ports.Resolution
}

// Config bounds the runner. Concurrency is per process; each job may open
// network contexts of its own, so the default stays small.
type Config struct {
	Concurrency        int
	PollInterval       time.Duration
	PruneInterval      time.Duration
	CompletedRetention time.Duration
	DeadRetention      time.Duration
}

func (c *Config) applyDefaults() {
	if c.Concurrency < 1 {
		c.Concurrency = 2
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 500 * time.Millisecond
	}
	if c.PruneInterval <= 0 {
		c.PruneInterval = time.Hour
	}
	if c.CompletedRetention <= 0 {
		c.CompletedRetention = 24 * time.Hour
	}
	if c.DeadRetention <= 0 {
		c.DeadRetention = 7 * 24 * time.Hour
	}
}

// Run blocks until ctx is cancelled. A dispatcher goroutine polls the
// queue and feeds claimed jobs to cfg.Concurrency workers over a bounded
// channel; a third goroutine prunes finished jobs on a slow ticker.
func Run(ctx context.Context, queue ports.JobQueue, proc Processor, cfg Config, log *slog.Logger) error {
	cfg.applyDefaults()
	jobs := make(chan domain.QueueJob, cfg.Concurrency)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(jobs)
		ticker := time.NewTicker(cfg.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				dispatch(ctx, queue, jobs, log)
			}
		}
	})

	for i := 0; i < cfg.Concurrency; i++ {
		worker := i
		g.Go(func() error {
			wlog := log.With("worker", worker)
			for job := range jobs {
				resolve(ctx, queue, proc, job, wlog)
			}
			return nil
		})
	}

	g.Go(func() error {
		ticker := time.NewTicker(cfg.PruneInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				n, err := queue.PruneFinished(ctx,
					time.Now().Add(-cfg.CompletedRetention),
					time.Now().Add(-cfg.DeadRetention),
				)
				if err != nil {
					log.Warn("queue prune failed", "err", err)
				} else if n > 0 {
					log.Info("pruned finished jobs", "count", n)
				}
			}
		}
	})

	return g.Wait()
}

// dispatch drains everything currently claimable without blocking past a
// full worker channel for longer than the context allows.
func dispatch(ctx context.Context, queue ports.JobQueue, jobs chan<- domain.QueueJob, log *slog.Logger) {
	for {
		job, found, err := queue.ClaimNext(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Error("job claim failed", "err", err)
			}
			return
		}
		if !found {
			return
		}
		select {
		case jobs <- job:
		case <-ctx.Done():
			// Claimed but not processed: the delivery stays running until
			// the claim's visibility timeout expires and another worker
			// reclaims it.
			return
		}
	}
}

func resolve(ctx context.Context, queue ports.JobQueue, proc Processor, job domain.QueueJob, log *slog.Logger) {
	res := proc.Execute(ctx, job)

	switch {
	case res.Kind == ports.ResolveRetry && job.MaxAttempts > 0 && job.Attempts >= job.MaxAttempts:
		// The queue turns a retry past the ceiling into a dead-letter;
		// count and log it as such, not as another retry.
		metrics.JobsDeadLettered.Inc()
		metrics.ScansFailed.Inc()
		log.Error("job exhausted its attempts", "job_id", job.ID, "scan_id", job.ScanID, "attempts", job.Attempts, "reason", res.Reason)
	case res.Kind == ports.ResolveRetry:
		metrics.JobRetries.Inc()
		log.Warn("job will be retried", "job_id", job.ID, "scan_id", job.ScanID, "attempt", job.Attempts, "reason", res.Reason)
	case res.Kind == ports.ResolveDead:
		metrics.JobsDeadLettered.Inc()
		metrics.ScansFailed.Inc()
		log.Error("job dead-lettered", "job_id", job.ID, "scan_id", job.ScanID, "reason", res.Reason)
	}

	// Resolution must not be lost to a cancelled worker context.
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := queue.Resolve(rctx, job, res); err != nil {
		log.Error("job resolution failed", "job_id", job.ID, "err", err)
	}
}
