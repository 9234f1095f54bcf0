package engine

import (
	"fmt"
	"strings"
	"time"

	"notifyd/internal/config"
	"notifyd/internal/model"
)

// Config is the parsed runtime configuration of the engine. Use Defaults()
// or FromFile(); a zero Config disables everything.
type Config struct {
	AIScoring     bool
	Grouping      bool
	Batching      bool
	Attention     bool
	OptimalTiming bool
	Learning      bool
	RespectDND    bool
	Persist       bool
	AutoExpire    bool

	BatchInterval    time.Duration
	MaxBatchSize     int
	IdleThreshold    time.Duration
	DefaultPriority  model.Priority
	MaxNotifications int
	ExpirationTime   time.Duration
}

// Defaults enables every feature with the standard intervals.
func Defaults() Config {
	return Config{
		AIScoring:     true,
		Grouping:      true,
		Batching:      true,
		Attention:     true,
		OptimalTiming: true,
		Learning:      true,
		RespectDND:    true,
		Persist:       true,
		AutoExpire:    true,

		BatchInterval:    5 * time.Minute,
		MaxBatchSize:     10,
		IdleThreshold:    60 * time.Second,
		DefaultPriority:  model.PriorityMedium,
		MaxNotifications: 100,
		ExpirationTime:   24 * time.Hour,
	}
}

// FromFile translates the on-disk engine section into a runtime Config.
// Omitted toggles default to enabled; invalid values are rejected, never
// clamped.
func FromFile(fc config.EngineConfig) (Config, error) {
	c := Defaults()

	c.AIScoring = boolOr(fc.EnableAI, true)
	c.Grouping = boolOr(fc.EnableGrouping, true)
	c.Batching = boolOr(fc.EnableBatching, true)
	c.Attention = boolOr(fc.EnableAttention, true)
	c.OptimalTiming = boolOr(fc.EnableOptimalTiming, true)
	c.Learning = boolOr(fc.Learning, true)
	c.RespectDND = boolOr(fc.RespectDND, true)
	c.Persist = boolOr(fc.Persist, true)
	c.AutoExpire = boolOr(fc.AutoExpire, true)

	var err error
	if c.BatchInterval, err = config.ParseDurationOrDefault("engine.batch_interval", fc.BatchInterval, c.BatchInterval); err != nil {
		return Config{}, err
	}
	if c.IdleThreshold, err = config.ParseDurationOrDefault("engine.idle_threshold", fc.IdleThreshold, c.IdleThreshold); err != nil {
		return Config{}, err
	}
	if c.ExpirationTime, err = config.ParseDurationOrDefault("engine.expiration_time", fc.ExpirationTime, c.ExpirationTime); err != nil {
		return Config{}, err
	}

	if fc.MaxBatchSize < 0 {
		return Config{}, fmt.Errorf("engine.max_batch_size must be >= 0")
	}
	if fc.MaxBatchSize > 0 {
		c.MaxBatchSize = fc.MaxBatchSize
	}
	if fc.MaxNotifications < 0 {
		return Config{}, fmt.Errorf("engine.max_notifications must be >= 0")
	}
	if fc.MaxNotifications > 0 {
		c.MaxNotifications = fc.MaxNotifications
	}

	if p := model.Priority(strings.TrimSpace(fc.DefaultPriority)); p != "" {
		if !p.Valid() {
			return Config{}, fmt.Errorf("engine.default_priority: unknown priority %q", fc.DefaultPriority)
		}
		c.DefaultPriority = p
	}

	return c, nil
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
