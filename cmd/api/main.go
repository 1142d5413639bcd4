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

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/memora-health/memora-api/internal/config"
	"github.com/memora-health/memora-api/internal/email"
	"github.com/memora-health/memora-api/internal/handler"
	authhandler "github.com/memora-health/memora-api/internal/handler/auth"
	dashboardhandler "github.com/memora-health/memora-api/internal/handler/dashboard"
	"github.com/memora-health/memora-api/internal/handler/doctor"
	"github.com/memora-health/memora-api/internal/identity"
	"github.com/memora-health/memora-api/internal/middleware"
	"github.com/memora-health/memora-api/internal/repository/store"
	"github.com/memora-health/memora-api/internal/router"
	"github.com/memora-health/memora-api/internal/service/auth"
	"github.com/memora-health/memora-api/internal/service/dashboard"
	"github.com/memora-health/memora-api/internal/service/event"
	"github.com/memora-health/memora-api/internal/service/notification"
	"github.com/memora-health/memora-api/internal/service/provisioning"
	"github.com/memora-health/memora-api/pkg/logger"
	"github.com/memora-health/memora-api/pkg/messaging"
	"github.com/memora-health/memora-api/pkg/messaging/redis"
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
		Service: "memora-api",
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

	idp := identity.NewSupabaseProvider(client)

	checks := map[string]handler.Check{"profile_store": st.Ping}

	var broker messaging.Broker
	if cfg.Redis.URL != "" {
		broker, err = redis.NewRedisBroker(redis.Config{
			URL:        cfg.Redis.URL,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
		}, logger.Component(l, "redis"))
		if err != nil {
			l.Fatal().Err(err).Msg("Failed to create Redis broker")
		}
		defer broker.Close()
		checks["events"] = broker.Ping
	} else {
		l.Info().Msg("Redis URL not set, domain events are disabled")
	}
	events := event.NewEventService(broker, cfg.Redis.Channel, m, l)

	var mailer email.Service = email.NewNopService()
	if cfg.SMTP.Host != "" {
		mailer = email.NewSMTPService(email.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
	}
	notifier := notification.NewService(mailer, cfg.SMTP.LoginURL, l)

	authSvc := auth.NewService(idp, st.Profiles, auth.Config{
		JWTSecret:    cfg.Supabase.JWTSecret,
		Audience:     cfg.Auth.Audience,
		RoleCacheTTL: cfg.Auth.RoleCacheTTL,
		CallTimeout:  cfg.Supabase.Timeout,
	}, l)
	provisioningSvc := provisioning.NewService(idp, st.Profiles, st.Appointments,
		provisioning.Config{
			WriteMode:   cfg.ProfileStore.WriteMode,
			CallTimeout: cfg.Supabase.Timeout,
		},
		provisioning.WithEmitter(events),
		provisioning.WithNotifier(notifier),
		provisioning.WithRoleCache(authSvc),
		provisioning.WithMetrics(m),
		provisioning.WithLogger(l),
	)
	dashboardSvc := dashboard.NewService(st.Profiles, st.Appointments, events, cfg.Supabase.Timeout, l)

	var authMW *middleware.AuthMiddleware
	if cfg.Auth.RequireAdmin {
		authMW = middleware.NewAuthMiddleware(authSvc)
	} else {
		l.Warn().Msg("Admin routes are not guarded (auth.require_admin=false)")
	}

	r := router.NewRouter(router.RouterConfig{
		Mode:             cfg.Server.Mode,
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		CORSMaxAge:       cfg.CORS.MaxAge,
		RateLimitEnabled: cfg.RateLimit.Enabled,
		RateLimit: middleware.RateLimiterConfig{
			Rate:  rate.Limit(cfg.RateLimit.RequestsPerSecond),
			Burst: cfg.RateLimit.Burst,
		},
		RequestTimeout:   cfg.Server.RequestTimeout,
		MetricsNamespace: cfg.Metrics.Namespace,
		Registerer:       reg,
	}, router.Handlers{
		Health:    handler.NewHandler(reg, checks, l),
		Auth:      authhandler.NewHandler(authSvc),
		Doctor:    doctor.NewHandler(provisioningSvc),
		Dashboard: dashboardhandler.NewHandler(dashboardSvc),
	}, authMW, logger.Component(l, "http"))

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		l.Info().
			Int("port", cfg.Server.Port).
			Str("profile_store", cfg.ProfileStore.Driver).
			Str("write_mode", cfg.ProfileStore.WriteMode).
			Strs("allowed_origins", cfg.CORS.AllowedOrigins).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	l.Info().Msg("Shutting down server...")

	shutdown(srv, cfg.Server.ShutdownTimeout, l)
}

// shutdown drains in-flight requests so no provisioning saga is cut between
// its steps.
func shutdown(srv *http.Server, timeout time.Duration, l zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		l.Error().Err(err).Msg("Server forced to shutdown")
		return
	}
	l.Info().Msg("Server stopped")
}
