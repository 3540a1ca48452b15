package erpgate

import (
	"fmt"
	"net/url"
	"time"
)

// Config consolidates the gateway settings.
type Config struct {
	Backend BackendConfig `json:"backend" yaml:"backend"`
	Server  ServerConfig  `json:"server" yaml:"server"`
	Cache   CacheConfig   `json:"cache" yaml:"cache"`
	Logging LoggingConfig `json:"logging" yaml:"logging"`
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`
}

// BackendConfig contains the ERP server connection settings
type BackendConfig struct {
	// URL is the XML-RPC root, e.g. http://localhost:8069/xmlrpc/
	URL     string        `json:"url" yaml:"url"`
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	BreakerThreshold    int           `json:"breakerThreshold" yaml:"breakerThreshold"`
	BreakerWindow       time.Duration `json:"breakerWindow" yaml:"breakerWindow"`
	BreakerOpenDuration time.Duration `json:"breakerOpenDuration" yaml:"breakerOpenDuration"`
}

// ServerConfig contains the HTTP listener settings
type ServerConfig struct {
	Port int `json:"port" yaml:"port"`
	// BaseURL overrides the externally visible URL used in links. When
	// empty it is derived from the request Host header.
	BaseURL         string        `json:"baseURL" yaml:"baseURL"`
	Realm           string        `json:"realm" yaml:"realm"`
	ShutdownTimeout time.Duration `json:"shutdownTimeout" yaml:"shutdownTimeout"`
	// MaxBodyBytes bounds request bodies; larger bodies are rejected as
	// malformed.
	MaxBodyBytes int64 `json:"maxBodyBytes" yaml:"maxBodyBytes"`
}

// CacheConfig contains the model metadata cache settings
type CacheConfig struct {
	TTL                 time.Duration `json:"ttl" yaml:"ttl"`
	MaxSessionsPerModel int           `json:"maxSessionsPerModel" yaml:"maxSessionsPerModel"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level       string `json:"level" yaml:"level"`
	Development bool   `json:"development" yaml:"development"`
}

// MetricsConfig contains the admin listener settings
type MetricsConfig struct {
	Enabled   bool   `json:"enabled" yaml:"enabled"`
	Addr      string `json:"addr" yaml:"addr"`
	Namespace string `json:"namespace" yaml:"namespace"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Backend: BackendConfig{
			URL:                 "http://localhost:8069/xmlrpc/",
			Timeout:             60 * time.Second,
			BreakerThreshold:    5,
			BreakerWindow:       30 * time.Second,
			BreakerOpenDuration: 10 * time.Second,
		},
		Server: ServerConfig{
			Port:            8068,
			Realm:           "OpenERP",
			ShutdownTimeout: 10 * time.Second,
			MaxBodyBytes:    10 << 20,
		},
		Cache: CacheConfig{
			TTL:                 2 * time.Hour,
			MaxSessionsPerModel: 128,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Addr:      ":9090",
			Namespace: "erpgate",
		},
	}
}

// Validate checks that the configuration can be used to start a gateway.
func (c *Config) Validate() error {
	if c.Backend.URL == "" {
		return fmt.Errorf("backend.url is required")
	}
	if _, err := url.ParseRequestURI(c.Backend.URL); err != nil {
		return fmt.Errorf("backend.url is invalid: %w", err)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be a valid TCP port")
	}
	if c.Server.BaseURL != "" {
		if _, err := url.ParseRequestURI(c.Server.BaseURL); err != nil {
			return fmt.Errorf("server.baseURL is invalid: %w", err)
		}
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("server.maxBodyBytes must be greater than 0")
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be greater than 0")
	}
	if c.Cache.MaxSessionsPerModel <= 0 {
		return fmt.Errorf("cache.maxSessionsPerModel must be greater than 0")
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr is required when metrics are enabled")
	}
	return nil
}
