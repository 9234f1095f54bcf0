package config

// Config is the on-disk configuration. Files may be JSON or YAML; both are
// decoded strictly so typos in keys fail loudly instead of silently using
// defaults.
type Config struct {
	Logging LoggingConfig  `json:"logging"`
	Storage *StorageConfig `json:"storage,omitempty"`
	Engine  EngineConfig   `json:"engine"`
	Sink    SinkConfig     `json:"sink,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig controls the optional persistence layer. Nil means disabled.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./notifyd_state.json" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// EngineConfig controls the notification pipeline.
//
// All durations are Go duration strings (e.g. "30s", "5m", "24h").
//
// Feature toggles are pointers so "omitted" (defaults to enabled) can be told
// apart from an explicit false.
//
// Defaults (when fields are omitted/zero):
//   - all feature toggles: true
//   - batch_interval: "5m"
//   - max_batch_size: 10
//   - idle_threshold: "60s"
//   - default_priority: "medium"
//   - max_notifications: 100
//   - expiration_time: "24h"
type EngineConfig struct {
	EnableAI            *bool `json:"enable_ai,omitempty"`
	EnableGrouping      *bool `json:"enable_grouping,omitempty"`
	EnableBatching      *bool `json:"enable_batching,omitempty"`
	EnableAttention     *bool `json:"enable_attention,omitempty"`
	EnableOptimalTiming *bool `json:"enable_optimal_timing,omitempty"`
	Learning            *bool `json:"learning,omitempty"`
	RespectDND          *bool `json:"respect_dnd,omitempty"`
	Persist             *bool `json:"persist,omitempty"`
	AutoExpire          *bool `json:"auto_expire,omitempty"`

	BatchInterval    string `json:"batch_interval,omitempty"`
	MaxBatchSize     int    `json:"max_batch_size,omitempty"`
	IdleThreshold    string `json:"idle_threshold,omitempty"`
	DefaultPriority  string `json:"default_priority,omitempty"`
	MaxNotifications int    `json:"max_notifications,omitempty"`
	ExpirationTime   string `json:"expiration_time,omitempty"`
}

// SinkConfig controls presentation after delivery. The log sink is always on;
// Telegram forwarding is optional.
type SinkConfig struct {
	RatePerSec int                 `json:"rate_per_sec,omitempty"`
	Telegram   *TelegramSinkConfig `json:"telegram,omitempty"`
}

type TelegramSinkConfig struct {
	Token  string `json:"token"`
	ChatID int64  `json:"chat_id"`
}
