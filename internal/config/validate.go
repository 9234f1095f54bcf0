package config

import (
	"fmt"
	"strings"

	"notifyd/internal/model"
)

// Validate rejects configs the engine cannot honor. Invalid values fail the
// whole config instead of being clamped, so a typo in one field never silently
// changes runtime behavior.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config is nil")
	}

	switch strings.ToLower(strings.TrimSpace(c.Logging.Level)) {
	case "", "trace", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level: unknown level %q", c.Logging.Level)
	}
	if c.Logging.File.Enabled && strings.TrimSpace(c.Logging.File.Path) == "" {
		return fmt.Errorf("logging.file.path is required when logging.file.enabled")
	}

	if s := c.Storage; s != nil {
		switch strings.ToLower(strings.TrimSpace(s.Driver)) {
		case "", "none", "file", "sqlite":
		default:
			return fmt.Errorf("storage.driver: unknown driver %q", s.Driver)
		}
		if _, err := ParseDurationField("storage.busy_timeout", s.BusyTimeout); err != nil {
			return err
		}
	}

	e := c.Engine
	if _, err := ParseDurationField("engine.batch_interval", e.BatchInterval); err != nil {
		return err
	}
	if _, err := ParseDurationField("engine.idle_threshold", e.IdleThreshold); err != nil {
		return err
	}
	if _, err := ParseDurationField("engine.expiration_time", e.ExpirationTime); err != nil {
		return err
	}
	if e.MaxBatchSize < 0 {
		return fmt.Errorf("engine.max_batch_size must be >= 0")
	}
	if e.MaxNotifications < 0 {
		return fmt.Errorf("engine.max_notifications must be >= 0")
	}
	if p := strings.TrimSpace(e.DefaultPriority); p != "" && !model.Priority(p).Valid() {
		return fmt.Errorf("engine.default_priority: unknown priority %q", e.DefaultPriority)
	}

	if c.Sink.RatePerSec < 0 {
		return fmt.Errorf("sink.rate_per_sec must be >= 0")
	}
	if t := c.Sink.Telegram; t != nil {
		if strings.TrimSpace(t.Token) == "" {
			return fmt.Errorf("sink.telegram.token is required when sink.telegram is set")
		}
		if t.ChatID == 0 {
			return fmt.Errorf("sink.telegram.chat_id is required when sink.telegram is set")
		}
	}

	return nil
}
