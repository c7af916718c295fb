package config

import (
	"errors"
	"os"
	"strings"
	"time"
)

// EnvAPIKey is consulted when youtube.api_key is absent from the file,
// so the key can be kept out of version-controlled configs.
const EnvAPIKey = "TUBEWATCH_YT_API_KEY"

// Settings is the fully resolved runtime configuration: duration strings
// parsed, defaults filled in, secrets pulled from the environment.
type Settings struct {
	TelegramToken       string
	TelegramPollTimeout time.Duration

	APIKey      string
	BaseURL     string
	HTTPTimeout time.Duration
	APIRate     int
	APIBurst    int
	APIRetryMax int

	StoragePath string
	BusyTimeout time.Duration

	CheckInterval time.Duration
	StatInterval  time.Duration
	SyncInterval  time.Duration
	Workers       int
	QueueSize     int
	BackoffBase   time.Duration
	BackoffMax    time.Duration

	SinkRate      int
	SinkRetryMax  int
}

// Resolve validates cfg and produces runtime settings.
func (c *Config) Resolve() (Settings, error) {
	if c == nil {
		return Settings{}, errors.New("nil config")
	}

	var s Settings
	var err error

	s.TelegramToken = strings.TrimSpace(c.Telegram.Token)
	if s.TelegramToken == "" {
		return Settings{}, errors.New("telegram.token is required")
	}
	if s.TelegramPollTimeout, err = durationField("telegram.poll_timeout", c.Telegram.PollTimeout, 10*time.Second); err != nil {
		return Settings{}, err
	}

	s.APIKey = strings.TrimSpace(c.YouTube.APIKey)
	if s.APIKey == "" {
		s.APIKey = strings.TrimSpace(os.Getenv(EnvAPIKey))
	}
	if s.APIKey == "" {
		return Settings{}, errors.New("youtube.api_key is required (or set " + EnvAPIKey + ")")
	}
	s.BaseURL = strings.TrimSpace(c.YouTube.BaseURL)
	if s.HTTPTimeout, err = durationField("youtube.http_timeout", c.YouTube.HTTPTimeout, 15*time.Second); err != nil {
		return Settings{}, err
	}
	s.APIRate = intOr(c.YouTube.RatePerSec, 1)
	s.APIBurst = intOr(c.YouTube.Burst, 4)
	s.APIRetryMax = intOr(c.YouTube.RetryMax, 3)

	s.StoragePath = strings.TrimSpace(c.Storage.Path)
	if s.StoragePath == "" {
		return Settings{}, errors.New("storage.path is required")
	}
	if s.BusyTimeout, err = durationField("storage.busy_timeout", c.Storage.BusyTimeout, 5*time.Second); err != nil {
		return Settings{}, err
	}

	if s.CheckInterval, err = durationField("poller.check_interval", c.Poller.CheckInterval, 2*time.Hour); err != nil {
		return Settings{}, err
	}
	if s.StatInterval, err = durationField("poller.stat_interval", c.Poller.StatInterval, time.Hour); err != nil {
		return Settings{}, err
	}
	if s.SyncInterval, err = durationField("poller.sync_interval", c.Poller.SyncInterval, 5*time.Minute); err != nil {
		return Settings{}, err
	}
	s.Workers = intOr(c.Poller.Workers, 4)
	s.QueueSize = intOr(c.Poller.QueueSize, 256)
	if s.BackoffBase, err = durationField("poller.backoff_base", c.Poller.BackoffBase, time.Minute); err != nil {
		return Settings{}, err
	}
	if s.BackoffMax, err = durationField("poller.backoff_max", c.Poller.BackoffMax, 30*time.Minute); err != nil {
		return Settings{}, err
	}

	s.SinkRate = intOr(c.Notify.RatePerSec, 1)
	s.SinkRetryMax = intOr(c.Notify.RetryMax, 3)

	return s, nil
}

func intOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
