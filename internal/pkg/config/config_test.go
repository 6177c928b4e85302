package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("checkin-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Server.DocsSpec != "api/openapi.yaml" {
		t.Errorf("unexpected docs spec path %q", cfg.Server.DocsSpec)
	}
	if cfg.Venues.Backend != BackendUpstream || cfg.Visits.Backend != BackendUpstream {
		t.Errorf("expected upstream backends, got %s/%s", cfg.Venues.Backend, cfg.Visits.Backend)
	}
	if cfg.Upstream.TimeoutDuration() != 15*time.Second {
		t.Errorf("expected 15s upstream timeout, got %s", cfg.Upstream.TimeoutDuration())
	}
	if cfg.Sessions.IdleTTLDuration() != 30*time.Minute {
		t.Errorf("expected 30m idle ttl, got %s", cfg.Sessions.IdleTTLDuration())
	}
	if cfg.Telemetry.ServiceName != "checkin-test" {
		t.Errorf("expected service name checkin-test, got %s", cfg.Telemetry.ServiceName)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CHECKIN_UPSTREAM_BASE_URL", "http://izakaya.internal:3000")
	t.Setenv("CHECKIN_VISITS_BACKEND", "postgres")
	t.Setenv("CHECKIN_SERVER_PORT", "9090")

	cfg, err := Load("checkin-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Upstream.BaseURL != "http://izakaya.internal:3000" {
		t.Errorf("unexpected base url %s", cfg.Upstream.BaseURL)
	}
	if cfg.Visits.Backend != BackendPostgres {
		t.Errorf("expected postgres visits backend, got %s", cfg.Visits.Backend)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
}

func TestLoad_InvalidEnv(t *testing.T) {
	t.Setenv("CHECKIN_VENUES_BACKEND", "bigquery")

	_, err := Load("checkin-test")
	if err == nil || !strings.Contains(err.Error(), "venues.backend") {
		t.Errorf("expected venues.backend error, got %v", err)
	}
}

func validConfig() Config {
	return Config{
		Server:   ServerConfig{Port: 8080, ReadTimeout: 10, WriteTimeout: 30},
		Upstream: UpstreamConfig{BaseURL: "http://localhost:3000", Timeout: 15},
		Venues:   VenuesConfig{Backend: BackendUpstream, CacheTTL: 300, Index: "izakayas", Limit: 20},
		Visits:   VisitsConfig{Backend: BackendUpstream},
		Database: DatabaseConfig{Host: "localhost", Port: 5432, User: "checkin", DBName: "checkin"},
		NATS:     NATSConfig{URL: "nats://localhost:4222"},
		Valkey:   ValkeyConfig{Addr: "localhost:6379"},
		Elastic:  ElasticConfig{URL: "http://localhost:9200"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"unknown visits backend", func(c *Config) { c.Visits.Backend = "sqlite" }, "visits.backend"},
		{"elastic without url", func(c *Config) {
			c.Venues.Backend = BackendElastic
			c.Elastic.URL = ""
		}, "elastic.url"},
		{"upstream without base url", func(c *Config) { c.Upstream.BaseURL = "" }, "upstream.base_url"},
		{"upstream unused", func(c *Config) {
			c.Venues.Backend = BackendElastic
			c.Visits.Backend = BackendPostgres
			c.Upstream.BaseURL = ""
		}, ""},
		{"negative idle ttl", func(c *Config) { c.Sessions.IdleTTL = -1 }, "sessions.idle_ttl"},
		{"sample ratio", func(c *Config) { c.Telemetry.SampleRatio = 2 }, "telemetry.sample_ratio"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error mentioning %s, got %v", tt.wantErr, err)
			}
		})
	}
}
