package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/jotflow/jotflow/internal/flagx"
	"github.com/jotflow/jotflow/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. It relies
// on timex.Duration so JSON can specify intervals either as strings like
// "3s" or as integer nanoseconds. After parsing, values are copied into
// the runtime Config (which uses time.Duration).
type JsonConfig struct {
	RemoteBaseURL       string         `json:"remote_base_url"`
	RealtimeURL         string         `json:"realtime_url"`
	APIKey              string         `json:"api_key"`
	DatabasePath        string         `json:"database_path"`
	OnlineCheckInterval timex.Duration `json:"online_check_interval"`
	QueuePollInterval   timex.Duration `json:"queue_poll_interval"`
}

// parseJson overlays cfg with values loaded from the JSON file named by
// the -c/-config flags. If no file is named, nothing happens. Only
// fields present in the file override the current values. Panics on read
// or unmarshal errors (caller should recover if desired).
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.RemoteBaseURL != "" {
		cfg.RemoteBaseURL = jc.RemoteBaseURL
	}
	if jc.RealtimeURL != "" {
		cfg.RealtimeURL = jc.RealtimeURL
	}
	if jc.APIKey != "" {
		cfg.APIKey = jc.APIKey
	}
	if jc.DatabasePath != "" {
		cfg.DatabasePath = jc.DatabasePath
	}
	if jc.OnlineCheckInterval.Duration != 0 {
		cfg.OnlineCheckInterval = time.Duration(jc.OnlineCheckInterval.Duration)
	}
	if jc.QueuePollInterval.Duration != 0 {
		cfg.QueuePollInterval = time.Duration(jc.QueuePollInterval.Duration)
	}
}
