package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"zero config is valid", func(c *Config) {}, ""},
		{"bad ai user id", func(c *Config) { c.Negotiation.AIUserID = "nope" }, "negotiation.ai_user_id"},
		{"base url without ai user", func(c *Config) { c.Negotiation.BaseURL = "http://ai" }, "ai_user_id is required"},
		{"negative timeout", func(c *Config) { c.Negotiation.TimeoutSeconds = -1 }, "timeout_seconds"},
		{"unknown bus", func(c *Config) { c.Realtime.Bus = "kafka" }, "realtime.bus"},
		{"unknown presence", func(c *Config) { c.Realtime.Presence = "etcd" }, "realtime.presence"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c Config
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate err = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestReadConfigDefaultsAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := "database:\n  host: db.internal\nnegotiation:\n  base_url: http://ai:8000\n  ai_user_id: 00000000-0000-7000-8000-00000000a1a1\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DEALER_SERVER_PORT", "9090")

	cfg, err := ReadConfig(dir)
	if err != nil {
		t.Fatalf("ReadConfig: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("server.port = %d, want env override 9090", cfg.Server.Port)
	}
	if cfg.Negotiation.TimeoutSeconds != 30 || cfg.Negotiation.HistoryWindow != 10 {
		t.Errorf("negotiation defaults = %+v", cfg.Negotiation)
	}
	if cfg.Realtime.Presence != "redis" || cfg.Realtime.OutboundBuffer != 64 {
		t.Errorf("realtime defaults = %+v", cfg.Realtime)
	}
}
