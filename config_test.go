package erpgate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 8068, cfg.Server.Port)
	assert.Equal(t, 2*time.Hour, cfg.Cache.TTL)
	assert.Equal(t, 128, cfg.Cache.MaxSessionsPerModel)
	assert.Equal(t, int64(10<<20), cfg.Server.MaxBodyBytes)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"missing backend url", func(c *Config) { c.Backend.URL = "" }, "backend.url is required"},
		{"bad backend url", func(c *Config) { c.Backend.URL = "not a url" }, "backend.url is invalid"},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"bad base url", func(c *Config) { c.Server.BaseURL = "::" }, "server.baseURL"},
		{"zero body limit", func(c *Config) { c.Server.MaxBodyBytes = 0 }, "server.maxBodyBytes"},
		{"zero ttl", func(c *Config) { c.Cache.TTL = 0 }, "cache.ttl"},
		{"zero sessions", func(c *Config) { c.Cache.MaxSessionsPerModel = 0 }, "cache.maxSessionsPerModel"},
		{"metrics without addr", func(c *Config) { c.Metrics.Addr = "" }, "metrics.addr"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
