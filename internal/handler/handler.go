package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Check reports whether a dependency is usable.
type Check func(ctx context.Context) error

// Handler serves health and metrics endpoints.
type Handler struct {
	checks   map[string]Check
	gatherer prometheus.Gatherer
	logger   zerolog.Logger
}

func NewHandler(gatherer prometheus.Gatherer, checks map[string]Check, logger zerolog.Logger) *Handler {
	return &Handler{
		checks:   checks,
		gatherer: gatherer,
		logger:   logger.With().Str("component", "health").Logger(),
	}
}

func (h *Handler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
		"time":   time.Now().UTC(),
	})
}

func (h *Handler) ReadinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	results := make(gin.H, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.logger.Warn().Err(err).Str("check", name).Msg("Readiness check failed")
			results[name] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}

	body := gin.H{"status": "ready", "checks": results, "time": time.Now().UTC()}
	if status != http.StatusOK {
		body["status"] = "not ready"
	}
	c.JSON(status, body)
}

func (h *Handler) MetricsHandler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
}

// HTTPHandler serves the health and metrics endpoints on an engine of their
// own, for processes that expose no API.
func (h *Handler) HTTPHandler() http.Handler {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.GET("/health/live", h.LivenessCheck)
	engine.GET("/health/ready", h.ReadinessCheck)
	engine.GET("/metrics", h.MetricsHandler())
	return engine
}
