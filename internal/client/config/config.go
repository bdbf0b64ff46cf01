// Package config assembles runtime settings for the JotFlow client from
// defaults, an optional JSON file, environment variables, and
// command-line flags. Later sources take precedence over earlier ones.
package config

import "time"

// Config holds runtime settings for the JotFlow client.
//
// Fields:
//   - RemoteBaseURL: base URL of the hosted store's REST endpoint.
//   - RealtimeURL: websocket URL of the hosted store's realtime endpoint.
//   - APIKey: project (anon) API key sent with every request.
//   - DatabasePath: path/DSN of the local SQLite database.
//   - OnlineCheckInterval: how often the client probes remote reachability.
//   - QueuePollInterval: how often pending queue counts are refreshed.
type Config struct {
	RemoteBaseURL       string
	RealtimeURL         string
	APIKey              string
	DatabasePath        string
	OnlineCheckInterval time.Duration
	QueuePollInterval   time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.RemoteBaseURL = "http://127.0.0.1:8000"
	c.RealtimeURL = "ws://127.0.0.1:8000/realtime"
	c.APIKey = ""
	c.DatabasePath = "jotflow.db"
	c.OnlineCheckInterval = 3 * time.Second
	c.QueuePollInterval = 2 * time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values
// from JSON (if present), environment variables, and command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseEnv(cfg)
	parseFlags(cfg)
	return cfg
}
