package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the full YAML configuration. All duration fields are Go
// duration strings (e.g. "500ms", "10s", "1m").
type Config struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Logging  LoggingConfig  `yaml:"logging"`
	Booking  BookingConfig  `yaml:"booking"`
	Watcher  WatcherConfig  `yaml:"watcher"`
	Notifier NotifierConfig `yaml:"notifier"`
}

type TelegramConfig struct {
	Token       string `yaml:"token"`
	PollTimeout string `yaml:"poll_timeout"`
}

type LoggingConfig struct {
	Level   string      `yaml:"level"`
	Console bool        `yaml:"console"`
	File    LoggingFile `yaml:"file"`
}

type LoggingFile struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// BookingConfig controls the remote booking query client.
type BookingConfig struct {
	Endpoint string `yaml:"endpoint"`
	Timeout  string `yaml:"timeout"`
	// QueryRatePerSec bounds outbound queries; 0 disables the limit.
	QueryRatePerSec int `yaml:"query_rate_per_sec"`
}

// WatcherConfig controls the reconciliation scheduler.
type WatcherConfig struct {
	Interval string `yaml:"interval"` // default "1m"
}

type NotifierConfig struct {
	Workers     int    `yaml:"workers"`
	QueueSize   int    `yaml:"queue_size"`
	SendTimeout string `yaml:"send_timeout"`
}

// Validate rejects configs that must not be committed (initial load
// and hot reload both go through here).
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return fmt.Errorf("telegram.token is required")
	}
	if _, err := ParseDurationField("telegram.poll_timeout", c.Telegram.PollTimeout); err != nil {
		return err
	}
	if _, err := ParseDurationField("booking.timeout", c.Booking.Timeout); err != nil {
		return err
	}
	if c.Booking.QueryRatePerSec < 0 {
		return fmt.Errorf("booking.query_rate_per_sec must be >= 0")
	}
	iv, err := ParseDurationField("watcher.interval", c.Watcher.Interval)
	if err != nil {
		return err
	}
	if iv != 0 && iv < time.Second {
		return fmt.Errorf("watcher.interval must be at least 1s")
	}
	if c.Notifier.Workers < 0 {
		return fmt.Errorf("notifier.workers must be >= 0")
	}
	if c.Notifier.QueueSize < 0 {
		return fmt.Errorf("notifier.queue_size must be >= 0")
	}
	if _, err := ParseDurationField("notifier.send_timeout", c.Notifier.SendTimeout); err != nil {
		return err
	}
	return nil
}

// ParseDurationField parses an optional Go duration string, returning
// 0 when the field is empty.
func ParseDurationField(name, raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", name, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", name)
	}
	return d, nil
}
