package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"vigil/internal/adapters/httpapi"
	"vigil/internal/adapters/planapi"
	pg "vigil/internal/adapters/postgres"
	"vigil/internal/config"
	"vigil/internal/middleware"
	"vigil/internal/ports"
	"vigil/internal/probes"
	"vigil/internal/services/admission"
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

	if err := pg.Migrate(cfg.Database.URL); err != nil {
		log.Error("migrations failed", "err", err)
		os.Exit(1)
	}
	db, err := pg.Connect(ctx, cfg.Database.URL)
	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	db.RetryBackoff = cfg.Queue.RetryBackoff.Std()
	db.MaxAttempts = cfg.Queue.MaxAttempts
	db.VisibilityTimeout = cfg.Queue.VisibilityTimeout.Std()

	var plans ports.PlanService = planapi.Static{DailyLimit: cfg.Admission.DefaultDailyLimit}
	if cfg.Plan.BaseURL != "" {
		plans = planapi.New(cfg.Plan.BaseURL, cfg.Plan.APIKey)
	}

	admissions := admission.New(db, db, plans, admission.Options{
		Production:          cfg.Production(),
		DuplicateWindow:     cfg.Admission.DuplicateWindow.Std(),
		DefaultDailyLimit:   cfg.Admission.DefaultDailyLimit,
		ProbeTimeoutSeconds: int(cfg.Scan.ProbeTimeout.Std().Seconds()),
	}, log)

	srv := httpapi.New(admissions, db, db, log)

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-User-ID"},
	}))
	r.Use(middleware.Identity)
	r.Use(middleware.RateLimit(cfg.RateLimit.Capacity, cfg.RateLimit.RefillRate))
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.Instrument)
	r.Mount("/", srv.Routes())

	// Optional embedded workers, handy for single-process deployments.
	if cfg.Workers.Count > 0 {
		factory := func(timeout time.Duration) []probes.Probe {
			return probes.DefaultSet(probes.Options{
				Timeout:      timeout,
				UserAgent:    cfg.Scan.UserAgent,
				ExposurePace: cfg.Scan.ExposurePace.Std(),
			})
		}
		proc := orchestrator.New(db, db, db, factory, cfg.Scan.ProbeTimeout.Std(), log)
		go func() {
			if err := scanrunner.Run(ctx, db, proc, scanrunner.Config{
				Concurrency:        cfg.Workers.Count,
				PollInterval:       cfg.Workers.PollInterval.Std(),
				PruneInterval:      cfg.Queue.PruneInterval.Std(),
				CompletedRetention: cfg.Queue.CompletedRetention.Std(),
				DeadRetention:      cfg.Queue.DeadRetention.Std(),
			}, log); err != nil {
				log.Error("scan workers stopped", "err", err)
			}
		}()
		log.Info("scan workers started", "count", cfg.Workers.Count)
	}

	httpSrv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.Server.Addr, "env", cfg.Env)
		errCh <- httpSrv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			log.Error("server error", "err", err)
		}
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "err", err)
	}
}
