package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

const (
	DriverREST     = "rest"
	DriverPostgres = "postgres"

	WriteModeUpdate = "update"
	WriteModeInsert = "insert"
)

type Config struct {
	Environment  string             `mapstructure:"environment"`
	Server       ServerConfig       `mapstructure:"server"`
	Supabase     SupabaseConfig     `mapstructure:"supabase"`
	ProfileStore ProfileStoreConfig `mapstructure:"profile_store"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Auth         AuthConfig         `mapstructure:"auth"`
	CORS         CORSConfig         `mapstructure:"cors"`
	RateLimit    RateLimitConfig    `mapstructure:"rate_limit"`
	Redis        RedisConfig        `mapstructure:"redis"`
	SMTP         SMTPConfig         `mapstructure:"smtp"`
	Logging      LoggingConfig      `mapstructure:"logging"`
	Metrics      MetricsConfig      `mapstructure:"metrics"`
	Reconcile    ReconcileConfig    `mapstructure:"reconcile"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type SupabaseConfig struct {
	URL            string `mapstructure:"url"`
	ServiceRoleKey string `mapstructure:"service_role_key"`
	JWTSecret      string `mapstructure:"jwt_secret"`
	// Timeout bounds every single call to the hosted backend.
	Timeout         time.Duration `mapstructure:"timeout"`
	BreakerFailures uint32        `mapstructure:"breaker_failures"`
	BreakerTimeout  time.Duration `mapstructure:"breaker_timeout"`
}

type ProfileStoreConfig struct {
	Driver            string `mapstructure:"driver"`
	WriteMode         string `mapstructure:"write_mode"`
	ProfilesTable     string `mapstructure:"profiles_table"`
	AppointmentsTable string `mapstructure:"appointments_table"`
}

type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type AuthConfig struct {
	RequireAdmin bool          `mapstructure:"require_admin"`
	Audience     string        `mapstructure:"audience"`
	RoleCacheTTL time.Duration `mapstructure:"role_cache_ttl"`
}

type CORSConfig struct {
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	MaxAge         time.Duration `mapstructure:"max_age"`
}

type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type RedisConfig struct {
	URL        string `mapstructure:"url"`
	Channel    string `mapstructure:"channel"`
	PoolSize   int    `mapstructure:"pool_size"`
	MaxRetries int    `mapstructure:"max_retries"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	LoginURL string `mapstructure:"login_url"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

type MetricsConfig struct {
	Namespace string `mapstructure:"namespace"`
}

type ReconcileConfig struct {
	Schedule   string `mapstructure:"schedule"`
	PageSize   int    `mapstructure:"page_size"`
	HealthPort int    `mapstructure:"health_port"`
	RunOnStart bool   `mapstructure:"run_on_start"`
}

// envOverrides are the deployment variables that take precedence over the file.
type envOverrides struct {
	SupabaseURL        string `envconfig:"SUPABASE_URL"`
	ViteSupabaseURL    string `envconfig:"VITE_SUPABASE_URL"`
	ServiceRoleKey     string `envconfig:"SUPABASE_SERVICE_ROLE_KEY"`
	ViteServiceRoleKey string `envconfig:"VITE_SUPABASE_SERVICE_ROLE_KEY"`
	JWTSecret          string `envconfig:"SUPABASE_JWT_SECRET"`
	AllowedOrigin      string `envconfig:"ALLOWED_ORIGIN"`
	DatabaseURL        string `envconfig:"DATABASE_URL"`
	RedisURL           string `envconfig:"REDIS_URL"`
	SMTPPassword       string `envconfig:"SMTP_PASSWORD"`
	Port               int    `envconfig:"PORT"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("server.port", 5000)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.request_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)

	v.SetDefault("supabase.url", "")
	v.SetDefault("supabase.service_role_key", "")
	v.SetDefault("supabase.jwt_secret", "")
	v.SetDefault("supabase.timeout", 10*time.Second)
	v.SetDefault("supabase.breaker_failures", 5)
	v.SetDefault("supabase.breaker_timeout", 30*time.Second)

	v.SetDefault("profile_store.driver", DriverREST)
	v.SetDefault("profile_store.write_mode", WriteModeUpdate)
	v.SetDefault("profile_store.profiles_table", "profiles")
	v.SetDefault("profile_store.appointments_table", "appointments")

	v.SetDefault("database.url", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "postgres")
	v.SetDefault("database.sslmode", "require")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)

	v.SetDefault("auth.require_admin", true)
	v.SetDefault("auth.audience", "authenticated")
	v.SetDefault("auth.role_cache_ttl", time.Minute)

	v.SetDefault("cors.allowed_origins", []string{"http://localhost:5173"})
	v.SetDefault("cors.max_age", 12*time.Hour)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 10.0)
	v.SetDefault("rate_limit.burst", 20)

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.channel", "memora.events")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.max_retries", 3)

	v.SetDefault("smtp.host", "")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.from", "Memora <no-reply@memora.local>")
	v.SetDefault("smtp.login_url", "http://localhost:5173")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.pretty", false)

	v.SetDefault("metrics.namespace", "memora")

	v.SetDefault("reconcile.schedule", "@every 1h")
	v.SetDefault("reconcile.page_size", 200)
	v.SetDefault("reconcile.health_port", 8081)
	v.SetDefault("reconcile.run_on_start", true)
}

// LoadConfig reads config.yaml (optional), MEMORA_* variables and the
// well-known deployment variables, then validates the result.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{".", "./config", "/etc/memora"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix("MEMORA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.applyEnv(); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) applyEnv() error {
	var env envOverrides
	if err := envconfig.Process("", &env); err != nil {
		return fmt.Errorf("failed to process environment: %w", err)
	}

	if url := firstNonEmpty(env.SupabaseURL, env.ViteSupabaseURL); url != "" {
		c.Supabase.URL = url
	}
	if key := firstNonEmpty(env.ServiceRoleKey, env.ViteServiceRoleKey); key != "" {
		c.Supabase.ServiceRoleKey = key
	}
	if env.JWTSecret != "" {
		c.Supabase.JWTSecret = env.JWTSecret
	}
	if env.AllowedOrigin != "" {
		var origins []string
		for _, o := range strings.Split(env.AllowedOrigin, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		c.CORS.AllowedOrigins = origins
	}
	if env.DatabaseURL != "" {
		c.Database.URL = env.DatabaseURL
	}
	if env.RedisURL != "" {
		c.Redis.URL = env.RedisURL
	}
	if env.SMTPPassword != "" {
		c.SMTP.Password = env.SMTPPassword
	}
	if env.Port != 0 {
		c.Server.Port = env.Port
	}

	return nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.Supabase.URL == "" {
		errs = append(errs, errors.New("supabase url is required (SUPABASE_URL)"))
	} else if u, err := url.Parse(c.Supabase.URL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("supabase url %q is not an absolute URL", c.Supabase.URL))
	}
	if c.Supabase.ServiceRoleKey == "" {
		errs = append(errs, errors.New("supabase service role key is required (SUPABASE_SERVICE_ROLE_KEY)"))
	}

	switch c.ProfileStore.Driver {
	case DriverREST:
	case DriverPostgres:
		if c.Database.URL == "" && c.Database.Host == "" {
			errs = append(errs, errors.New("postgres profile store needs database.url or database.host"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown profile_store.driver %q", c.ProfileStore.Driver))
	}

	switch c.ProfileStore.WriteMode {
	case WriteModeUpdate, WriteModeInsert:
	default:
		errs = append(errs, fmt.Errorf("unknown profile_store.write_mode %q", c.ProfileStore.WriteMode))
	}

	if c.ProfileStore.ProfilesTable == "" || c.ProfileStore.AppointmentsTable == "" {
		errs = append(errs, errors.New("profile store table names must not be empty"))
	}

	if c.Auth.RequireAdmin && c.Supabase.JWTSecret == "" {
		errs = append(errs, errors.New("auth.require_admin needs the project JWT secret (SUPABASE_JWT_SECRET)"))
	}

	if len(c.CORS.AllowedOrigins) == 0 {
		errs = append(errs, errors.New("at least one CORS origin is required"))
	}
	for _, o := range c.CORS.AllowedOrigins {
		if o != "*" && !strings.HasPrefix(o, "http://") && !strings.HasPrefix(o, "https://") {
			errs = append(errs, fmt.Errorf("CORS origin %q must start with http:// or https://", o))
		}
	}

	if c.Server.Port <= 0 {
		errs = append(errs, fmt.Errorf("invalid server port %d", c.Server.Port))
	}

	return errors.Join(errs...)
}

// DSN returns the lib/pq connection string.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host,
		d.Port,
		d.User,
		d.Password,
		d.Name,
		d.SSLMode,
	)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
