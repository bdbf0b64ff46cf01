package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvConfig is a DTO for environment overrides, prefixed JOTFLOW_
// (e.g. JOTFLOW_REMOTE_BASE_URL, JOTFLOW_ONLINE_CHECK_INTERVAL=5s).
type EnvConfig struct {
	RemoteBaseURL       string        `envconfig:"REMOTE_BASE_URL"`
	RealtimeURL         string        `envconfig:"REALTIME_URL"`
	APIKey              string        `envconfig:"API_KEY"`
	DatabasePath        string        `envconfig:"DATABASE_PATH"`
	OnlineCheckInterval time.Duration `envconfig:"ONLINE_CHECK_INTERVAL"`
	QueuePollInterval   time.Duration `envconfig:"QUEUE_POLL_INTERVAL"`
}

// parseEnv overlays cfg with any JOTFLOW_-prefixed environment
// variables that are set.
func parseEnv(cfg *Config) {
	var ec EnvConfig
	if err := envconfig.Process("jotflow", &ec); err != nil {
		panic(err)
	}

	if ec.RemoteBaseURL != "" {
		cfg.RemoteBaseURL = ec.RemoteBaseURL
	}
	if ec.RealtimeURL != "" {
		cfg.RealtimeURL = ec.RealtimeURL
	}
	if ec.APIKey != "" {
		cfg.APIKey = ec.APIKey
	}
	if ec.DatabasePath != "" {
		cfg.DatabasePath = ec.DatabasePath
	}
	if ec.OnlineCheckInterval != 0 {
		cfg.OnlineCheckInterval = ec.OnlineCheckInterval
	}
	if ec.QueuePollInterval != 0 {
		cfg.QueuePollInterval = ec.QueuePollInterval
	}
}
