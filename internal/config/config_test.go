package config

import (
	"strings"
	"testing"
)

func validHTTPConfig() *ConfigData {
	cfg := NewConfig()
	cfg.Transport = "streamable-http"
	cfg.PATStorePath = "/tmp/tokens.db"
	cfg.PATPrefix = "app_pat_"
	return cfg
}

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()

	if cfg.Transport != "stdio" {
		t.Errorf("expected default transport stdio, got %s", cfg.Transport)
	}
	if cfg.Host != "127.0.0.1" {
		t.Errorf("expected default host 127.0.0.1, got %s", cfg.Host)
	}
	if cfg.Port != 8000 {
		t.Errorf("expected default port 8000, got %d", cfg.Port)
	}
	if cfg.UpstreamTimeout != 30 {
		t.Errorf("expected default upstream timeout 30, got %d", cfg.UpstreamTimeout)
	}
	if cfg.OAuth == nil {
		t.Error("expected OAuth config to be initialized")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*ConfigData)
		expectError string
	}{
		{
			name:   "valid http with pat",
			mutate: func(c *ConfigData) {},
		},
		{
			name: "valid stdio without auth",
			mutate: func(c *ConfigData) {
				c.Transport = "stdio"
				c.PATStorePath = ""
				c.PATPrefix = ""
			},
		},
		{
			name:        "invalid transport",
			mutate:      func(c *ConfigData) { c.Transport = "sse" },
			expectError: "invalid transport",
		},
		{
			name: "pat store without prefix",
			mutate: func(c *ConfigData) {
				c.PATPrefix = ""
			},
			expectError: "pat-prefix is required",
		},
		{
			name: "http without any auth",
			mutate: func(c *ConfigData) {
				c.PATStorePath = ""
				c.PATPrefix = ""
			},
			expectError: "requires oauth or PAT",
		},
		{
			name: "oauth enabled but incomplete",
			mutate: func(c *ConfigData) {
				c.OAuthEnabled = true
			},
			expectError: "resource_url is required",
		},
		{
			name:        "non-positive upstream timeout",
			mutate:      func(c *ConfigData) { c.UpstreamTimeout = 0 },
			expectError: "upstream-timeout",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := validHTTPConfig()
			test.mutate(cfg)

			err := cfg.Validate()
			if test.expectError == "" {
				if err != nil {
					t.Errorf("expected valid config, got error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), test.expectError) {
				t.Errorf("expected error containing %q, got %v", test.expectError, err)
			}
		})
	}
}

func TestValidate_OAuthOnlyHTTP(t *testing.T) {
	cfg := NewConfig()
	cfg.Transport = "streamable-http"
	cfg.OAuthEnabled = true
	cfg.OAuth.ResourceURL = "https://eng.example.com"
	cfg.OAuth.AuthServerURL = "https://auth.example.com"
	cfg.OAuth.Realm = "example"
	cfg.OAuth.ClientID = "example-api"

	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got error: %v", err)
	}
}

func TestAddress(t *testing.T) {
	cfg := NewConfig()
	cfg.Host = "0.0.0.0"
	cfg.Port = 9000

	if cfg.Address() != "0.0.0.0:9000" {
		t.Errorf("expected 0.0.0.0:9000, got %s", cfg.Address())
	}
}

func TestUpstreamTimeoutDuration(t *testing.T) {
	cfg := NewConfig()
	cfg.UpstreamTimeout = 45

	if cfg.UpstreamTimeoutDuration().Seconds() != 45 {
		t.Errorf("expected 45s, got %v", cfg.UpstreamTimeoutDuration())
	}
}
