package router

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/memora-health/memora-api/internal/handler"
	"github.com/memora-health/memora-api/internal/middleware"
	"github.com/memora-health/memora-api/internal/model"
	apperrors "github.com/memora-health/memora-api/pkg/errors"
)

type Handler interface {
	RegisterRoutes(gin.IRoutes)
}

type GroupHandler interface {
	RegisterRoutes(gin.IRouter)
}

type Handlers struct {
	Health    *handler.Handler
	Auth      GroupHandler
	Doctor    Handler
	Dashboard Handler
}

type RouterConfig struct {
	Mode             string
	AllowedOrigins   []string
	CORSMaxAge       time.Duration
	RateLimitEnabled bool
	RateLimit        middleware.RateLimiterConfig
	RequestTimeout   time.Duration
	MetricsNamespace string
	Registerer       prometheus.Registerer
}

type Router struct {
	engine  *gin.Engine
	auth    *middleware.AuthMiddleware
	h       Handlers
	metrics *routerMetrics
}

type routerMetrics struct {
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
}

// NewRouter builds the engine. auth may be nil, which leaves the admin
// routes unguarded.
func NewRouter(config RouterConfig, h Handlers, auth *middleware.AuthMiddleware, logger zerolog.Logger) *Router {
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}
	engine := gin.New()
	engine.HandleMethodNotAllowed = true
	engine.NoRoute(func(c *gin.Context) {
		handler.RespondError(c, apperrors.NewNotFound("route", nil))
	})
	engine.NoMethod(func(c *gin.Context) {
		c.AbortWithStatusJSON(http.StatusMethodNotAllowed, handler.NewErrorResponse("method not allowed"))
	})

	r := &Router{
		engine:  engine,
		auth:    auth,
		h:       h,
		metrics: initRouterMetrics(config.MetricsNamespace, config.Registerer),
	}

	engine.Use(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logger(logger),
		r.metricsMiddleware(),
		middleware.Timeout(config.RequestTimeout),
		cors.New(corsConfig(config)),
	)
	if config.RateLimitEnabled {
		engine.Use(middleware.NewRateLimiter(config.RateLimit).RateLimit())
	}
	engine.Use(
		middleware.SecurityHeaders(),
		middleware.SizeLimit(middleware.DefaultMaxBodySize),
	)

	r.setup()
	return r
}

func (r *Router) setup() {
	health := r.engine.Group("/health")
	{
		health.GET("/live", r.h.Health.LivenessCheck)
		health.GET("/ready", r.h.Health.ReadinessCheck)
	}
	r.engine.GET("/metrics", r.h.Health.MetricsHandler())

	r.h.Auth.RegisterRoutes(r.engine)

	admin := r.engine.Group("")
	if r.auth != nil {
		admin.Use(r.auth.RequireRole(model.RoleAdmin))
	}
	r.h.Doctor.RegisterRoutes(admin)
	r.h.Dashboard.RegisterRoutes(admin)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func corsConfig(config RouterConfig) cors.Config {
	c := cors.DefaultConfig()
	c.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}
	c.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderXRequestID}
	c.ExposeHeaders = []string{"Content-Length", middleware.HeaderXRequestID}
	if config.CORSMaxAge > 0 {
		c.MaxAge = config.CORSMaxAge
	}

	for _, origin := range config.AllowedOrigins {
		if origin == "*" {
			c.AllowAllOrigins = true
			return c
		}
	}
	c.AllowOrigins = config.AllowedOrigins
	return c
}

func initRouterMetrics(namespace string, reg prometheus.Registerer) *routerMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &routerMetrics{
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		requestTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
	}
}

func (r *Router) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())

		r.metrics.requestDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
		r.metrics.requestTotal.WithLabelValues(c.Request.Method, path, status).Inc()
	}
}
