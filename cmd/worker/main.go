package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"github.com/memora-health/memora-api/internal/config"
	"github.com/memora-health/memora-api/internal/handler"
	"github.com/memora-health/memora-api/internal/identity"
	"github.com/memora-health/memora-api/internal/repository/store"
	"github.com/memora-health/memora-api/internal/service/reconcile"
	"github.com/memora-health/memora-api/internal/worker"
	"github.com/memora-health/memora-api/pkg/logger"
	"github.com/memora-health/memora-api/pkg/metrics"
	"github.com/memora-health/memora-api/pkg/supabase"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Msg("Failed to read .env")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	l := logger.Setup(logger.Config{
		Level:   cfg.Logging.Level,
		Pretty:  cfg.Logging.Pretty,
		Service: "memora-worker",
	})

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(cfg.Metrics.Namespace, reg)

	client, err := supabase.NewClient(supabase.Config{
		URL:             cfg.Supabase.URL,
		ServiceRoleKey:  cfg.Supabase.ServiceRoleKey,
		Timeout:         cfg.Supabase.Timeout,
		BreakerFailures: cfg.Supabase.BreakerFailures,
		BreakerTimeout:  cfg.Supabase.BreakerTimeout,
	}, supabase.WithMetrics(m), supabase.WithLogger(logger.Component(l, "supabase")))
	if err != nil {
		l.Fatal().Err(err).Msg("Failed to create Supabase client")
	}

	st, err := store.Open(cfg, client)
	if err != nil {
		l.Fatal().Err(err).Msg("Failed to open profile store")
	}
	defer st.Close()

	reconciler := reconcile.NewService(identity.NewSupabaseProvider(client), st.Profiles, reconcile.Config{
		PageSize:    cfg.Reconcile.PageSize,
		CallTimeout: cfg.Supabase.Timeout,
	}, m, l)

	job := worker.NewReconcileJob(reconciler, worker.ReconcileJobConfig{
		Schedule:   cfg.Reconcile.Schedule,
		RunOnStart: cfg.Reconcile.RunOnStart,
	}, l)
	if err := job.Start(); err != nil {
		l.Fatal().Err(err).Msg("Failed to schedule reconciliation")
	}

	gin.SetMode(cfg.Server.Mode)
	health := handler.NewHandler(reg, map[string]handler.Check{"profile_store": st.Ping}, l)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Reconcile.HealthPort),
		Handler:           health.HTTPHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		l.Info().Int("port", cfg.Reconcile.HealthPort).Msg("Starting health server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Fatal().Err(err).Msg("Health server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	l.Info().Msg("Shutting down worker...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	job.Stop(ctx)
	if err := srv.Shutdown(ctx); err != nil {
		l.Error().Err(err).Msg("Health server forced to shutdown")
	}
	if last, ok := job.LastRun(); ok {
		l.Info().Time("last_run", last).Msg("Worker stopped")
	}
}
