package config

// Config is the on-disk configuration (JSON or YAML).
//
// All durations are Go duration strings (e.g. "500ms", "10s", "2h").
type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	YouTube  YouTubeConfig  `json:"youtube"`
	Logging  LoggingConfig  `json:"logging"`
	Storage  StorageConfig  `json:"storage"`
	Poller   PollerConfig   `json:"poller"`
	Notify   NotifyConfig   `json:"notify"`
}

type TelegramConfig struct {
	Token string `json:"token"`

	// PollTimeout is the long-poll timeout for the bot API. Default "10s".
	PollTimeout string `json:"poll_timeout,omitempty"`
}

// YouTubeConfig controls the Data API client.
//
// APIKey may be left empty in the file and supplied via the
// TUBEWATCH_YT_API_KEY environment variable instead.
//
// Defaults (when fields are omitted/zero):
//   - http_timeout: "15s"
//   - rate_per_sec: 1, burst: 4
//   - retry_max: 3
type YouTubeConfig struct {
	APIKey      string `json:"api_key,omitempty"`
	BaseURL     string `json:"base_url,omitempty"` // override for tests only
	HTTPTimeout string `json:"http_timeout,omitempty"`
	RatePerSec  int    `json:"rate_per_sec,omitempty"`
	Burst       int    `json:"burst,omitempty"`
	RetryMax    int    `json:"retry_max,omitempty"`
}

type LoggingConfig struct {
	Level   string            `json:"level,omitempty"` // trace|debug|info|warn|error
	Console bool              `json:"console"`
	File    LoggingFileConfig `json:"file,omitempty"`
}

type LoggingFileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// StorageConfig controls the persistence layer.
//
// Example:
//
//	"storage": { "path": "./tubewatch.db" }
type StorageConfig struct {
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// PollerConfig controls the recurring check schedules.
//
// Defaults (when fields are omitted/zero):
//   - check_interval: "2h"  (new-content checks)
//   - stat_interval:  "1h"  (subscriber-count label refresh)
//   - sync_interval:  "5m"  (reconcile schedules with stored groups)
//   - workers: 4, queue_size: 256
//   - backoff_base: "1m", backoff_max: "30m" (per-channel upstream failures)
type PollerConfig struct {
	CheckInterval string `json:"check_interval,omitempty"`
	StatInterval  string `json:"stat_interval,omitempty"`
	SyncInterval  string `json:"sync_interval,omitempty"`
	Workers       int    `json:"workers,omitempty"`
	QueueSize     int    `json:"queue_size,omitempty"`
	BackoffBase   string `json:"backoff_base,omitempty"`
	BackoffMax    string `json:"backoff_max,omitempty"`
}

// NotifyConfig controls the delivery pipeline in front of the Telegram sink.
//
// Defaults: rate_per_sec 1, retry_max 3.
type NotifyConfig struct {
	RatePerSec int `json:"rate_per_sec,omitempty"`
	RetryMax   int `json:"retry_max,omitempty"`
}
