// The worker binary runs the scan execution side alone: it claims queued
// jobs, runs the probe set and writes results back. Deploy as many as the
// target throughput needs; the queue's row locks keep them from colliding.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	pg "vigil/internal/adapters/postgres"
	"vigil/internal/config"
	"vigil/internal/probes"
	"vigil/internal/workers/orchestrator"
	"vigil/internal/workers/scanrunner"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	path := "config.yaml"
	if v := os.Getenv("VIGIL_CONFIG"); v != "" {
		path = v
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Error("config load failed", "err", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := pg.Connect(ctx, cfg.Database.URL)
	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	db.RetryBackoff = cfg.Queue.RetryBackoff.Std()
	db.MaxAttempts = cfg.Queue.MaxAttempts
	db.VisibilityTimeout = cfg.Queue.VisibilityTimeout.Std()

	factory := func(timeout time.Duration) []probes.Probe {
		return probes.DefaultSet(probes.Options{
			Timeout:      timeout,
			UserAgent:    cfg.Scan.UserAgent,
			ExposurePace: cfg.Scan.ExposurePace.Std(),
		})
	}
	proc := orchestrator.New(db, db, db, factory, cfg.Scan.ProbeTimeout.Std(), log)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		log.Info("shutting down", "signal", sig.String())
		cancel()
	}()

	log.Info("worker starting", "concurrency", cfg.Workers.Count)
	if err := scanrunner.Run(ctx, db, proc, scanrunner.Config{
		Concurrency:        cfg.Workers.Count,
		PollInterval:       cfg.Workers.PollInterval.Std(),
		PruneInterval:      cfg.Queue.PruneInterval.Std(),
		CompletedRetention: cfg.Queue.CompletedRetention.Std(),
		DeadRetention:      cfg.Queue.DeadRetention.Std(),
	}, log); err != nil {
		log.Error("worker stopped", "err", err)
		os.Exit(1)
	}
}
