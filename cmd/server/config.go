package main

import (
	"fmt"
	"os"

	"github.com/lychee-technology/erpgate"
	"gopkg.in/yaml.v3"
)

const envPrefix = "ERPGATE_"

// loadConfig builds the gateway configuration: defaults, then the YAML file
// at path when one is given, then environment overrides.
func loadConfig(path string) (*erpgate.Config, error) {
	cfg := erpgate.DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}
	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *erpgate.Config) {
	cfg.Backend.URL = getEnv(envPrefix+"BACKEND_URL", cfg.Backend.URL)
	cfg.Backend.Timeout = getEnvDuration(envPrefix+"BACKEND_TIMEOUT", cfg.Backend.Timeout)
	cfg.Backend.BreakerThreshold = getEnvInt(envPrefix+"BREAKER_THRESHOLD", cfg.Backend.BreakerThreshold)

	cfg.Server.Port = getEnvInt(envPrefix+"PORT", cfg.Server.Port)
	cfg.Server.BaseURL = getEnv(envPrefix+"BASE_URL", cfg.Server.BaseURL)
	cfg.Server.Realm = getEnv(envPrefix+"REALM", cfg.Server.Realm)
	cfg.Server.MaxBodyBytes = int64(getEnvInt(envPrefix+"MAX_BODY_BYTES", int(cfg.Server.MaxBodyBytes)))

	cfg.Cache.TTL = getEnvDuration(envPrefix+"CACHE_TTL", cfg.Cache.TTL)
	cfg.Cache.MaxSessionsPerModel = getEnvInt(envPrefix+"CACHE_MAX_SESSIONS", cfg.Cache.MaxSessionsPerModel)

	cfg.Logging.Level = getEnv(envPrefix+"LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Development = getEnvBool(envPrefix+"LOG_DEVELOPMENT", cfg.Logging.Development)

	cfg.Metrics.Enabled = getEnvBool(envPrefix+"METRICS_ENABLED", cfg.Metrics.Enabled)
	cfg.Metrics.Addr = getEnv(envPrefix+"METRICS_ADDR", cfg.Metrics.Addr)
}
