package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Backend names accepted by venues.backend and visits.backend.
const (
	BackendUpstream = "upstream"
	BackendElastic  = "elastic"
	BackendPostgres = "postgres"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Upstream  UpstreamConfig  `mapstructure:"upstream"`
	Venues    VenuesConfig    `mapstructure:"venues"`
	Visits    VisitsConfig    `mapstructure:"visits"`
	Sessions  SessionsConfig  `mapstructure:"sessions"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Elastic   ElasticConfig   `mapstructure:"elastic"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	DocsSpec     string `mapstructure:"docs_spec"`
}

// UpstreamConfig points at the izakaya listing service.
type UpstreamConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Timeout int    `mapstructure:"timeout"` // seconds, per request
}

func (u UpstreamConfig) TimeoutDuration() time.Duration {
	return time.Duration(u.Timeout) * time.Second
}

type VenuesConfig struct {
	Backend  string  `mapstructure:"backend"`
	CacheTTL int     `mapstructure:"cache_ttl"` // seconds; 0 disables caching
	Index    string  `mapstructure:"index"`
	Limit    int     `mapstructure:"limit"`
	RadiusKm float64 `mapstructure:"radius_km"`
}

type VisitsConfig struct {
	Backend string `mapstructure:"backend"`
}

type SessionsConfig struct {
	IdleTTL int `mapstructure:"idle_ttl"` // seconds; 0 keeps sessions forever
}

func (s SessionsConfig) IdleTTLDuration() time.Duration {
	return time.Duration(s.IdleTTL) * time.Second
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int32  `mapstructure:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

type ElasticConfig struct {
	URL string `mapstructure:"url"`
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
}

type TelemetryConfig struct {
	ServiceName string  `mapstructure:"service_name"`
	Endpoint    string  `mapstructure:"endpoint"`
	Exporter    string  `mapstructure:"exporter"` // otlp | stdout
	SampleRatio float64 `mapstructure:"sample_ratio"`
	Enabled     bool    `mapstructure:"enabled"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 30)
	v.SetDefault("server.docs_spec", "api/openapi.yaml")
	v.SetDefault("upstream.base_url", "http://localhost:3000")
	v.SetDefault("upstream.timeout", 15)
	v.SetDefault("venues.backend", BackendUpstream)
	v.SetDefault("venues.cache_ttl", 300)
	v.SetDefault("venues.index", "izakayas")
	v.SetDefault("venues.limit", 20)
	v.SetDefault("venues.radius_km", 1.0)
	v.SetDefault("visits.backend", BackendUpstream)
	v.SetDefault("sessions.idle_ttl", 1800)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "checkin")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "checkin")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("elastic.url", "http://localhost:9200")
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.endpoint", "tempo:4317")
	v.SetDefault("telemetry.exporter", "otlp")
	v.SetDefault("telemetry.sample_ratio", 1.0)
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: CHECKIN_UPSTREAM_BASE_URL → upstream.base_url
	v.SetEnvPrefix("CHECKIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}

	switch c.Venues.Backend {
	case BackendUpstream:
	case BackendElastic:
		if c.Elastic.URL == "" {
			errs = append(errs, "elastic.url is required when venues.backend is elastic")
		}
		if c.Venues.Index == "" {
			errs = append(errs, "venues.index is required when venues.backend is elastic")
		}
	default:
		errs = append(errs, fmt.Sprintf("venues.backend must be %q or %q, got %q", BackendUpstream, BackendElastic, c.Venues.Backend))
	}
	if c.Venues.CacheTTL < 0 {
		errs = append(errs, "venues.cache_ttl must not be negative")
	}
	if c.Venues.Limit <= 0 {
		errs = append(errs, "venues.limit must be positive")
	}

	switch c.Visits.Backend {
	case BackendUpstream, BackendPostgres:
	default:
		errs = append(errs, fmt.Sprintf("visits.backend must be %q or %q, got %q", BackendUpstream, BackendPostgres, c.Visits.Backend))
	}

	if c.usesUpstream() {
		if c.Upstream.BaseURL == "" {
			errs = append(errs, "upstream.base_url is required")
		}
		if c.Upstream.Timeout <= 0 {
			errs = append(errs, "upstream.timeout must be positive")
		}
	}

	if c.Sessions.IdleTTL < 0 {
		errs = append(errs, "sessions.idle_ttl must not be negative")
	}

	if c.Database.Host == "" {
		errs = append(errs, "database.host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
	}
	if c.Database.User == "" {
		errs = append(errs, "database.user is required")
	}
	if c.Database.DBName == "" {
		errs = append(errs, "database.dbname is required")
	}
	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		errs = append(errs, fmt.Sprintf("telemetry.sample_ratio must be 0-1, got %g", c.Telemetry.SampleRatio))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func (c *Config) usesUpstream() bool {
	return c.Venues.Backend == BackendUpstream || c.Visits.Backend == BackendUpstream
}
