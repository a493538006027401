package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/daybook/internal/flagx"
	"github.com/dmitrijs2005/daybook/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
// It relies on timex.Duration so JSON can specify intervals either as
// strings like "3s" or as integer nanoseconds. After parsing, values
// are copied into the runtime Config (which uses time.Duration).
type JsonConfig struct {
	ServerEndpointAddr    string         `json:"server_endpoint_addr"`
	OnlineCheckInterval   timex.Duration `json:"online_check_interval"`
	RequestTimeout        timex.Duration `json:"request_timeout"`
	DatabasePath          string         `json:"database_path"`
	UserID                string         `json:"user_id"`
	AccessToken           string         `json:"access_token"`
	Timezone              string         `json:"timezone"`
	DeadlineCheckInterval timex.Duration `json:"deadline_check_interval"`
	SyncMaxAttempts       int            `json:"sync_max_attempts"`
	SyncMaxBackoff        timex.Duration `json:"sync_max_backoff"`
	Notifier              string         `json:"notifier"`
	LogLevel              string         `json:"log_level"`
	LogFormat             string         `json:"log_format"`
}

// parseJson overlays Config with values loaded from a JSON file.
//
// The file path comes from -c/-config or $DAYBOOK_CONFIG (see
// flagx.JsonConfigFlags). Without a path nothing is loaded. Fields absent
// from the file keep their current value. Read and unmarshal errors panic.
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

	setString(&cfg.ServerEndpointAddr, jc.ServerEndpointAddr)
	setString(&cfg.DatabasePath, jc.DatabasePath)
	setString(&cfg.UserID, jc.UserID)
	setString(&cfg.AccessToken, jc.AccessToken)
	setString(&cfg.Timezone, jc.Timezone)
	setString(&cfg.Notifier, jc.Notifier)
	setString(&cfg.LogLevel, jc.LogLevel)
	setString(&cfg.LogFormat, jc.LogFormat)
	setDuration(&cfg.OnlineCheckInterval, jc.OnlineCheckInterval)
	setDuration(&cfg.RequestTimeout, jc.RequestTimeout)
	setDuration(&cfg.DeadlineCheckInterval, jc.DeadlineCheckInterval)
	setDuration(&cfg.SyncMaxBackoff, jc.SyncMaxBackoff)
	if jc.SyncMaxAttempts != 0 {
		cfg.SyncMaxAttempts = jc.SyncMaxAttempts
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}
