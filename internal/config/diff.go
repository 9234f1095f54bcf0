package config

import (
	"reflect"
	"sort"
	"strings"

	"notifyd/pkg/logx"
)

// SummarizeChange returns a compact list of changed sections plus safe
// structured attrs for logging. Secrets (telegram token) are never included.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 4)
	attrs := make([]logx.Field, 0, 12)

	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	// Nil storage means disabled.
	oldS, newS := derefStorage(oldCfg.Storage), derefStorage(newCfg.Storage)
	if oldS != newS {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", newS.Driver),
			logx.Bool("storage.path_set", strings.TrimSpace(newS.Path) != ""),
		)
	}

	if !reflect.DeepEqual(oldCfg.Engine, newCfg.Engine) {
		changed = append(changed, "engine")
		attrs = append(attrs,
			logx.Bool("engine.ai", boolOr(newCfg.Engine.EnableAI, true)),
			logx.Bool("engine.grouping", boolOr(newCfg.Engine.EnableGrouping, true)),
			logx.Bool("engine.batching", boolOr(newCfg.Engine.EnableBatching, true)),
			logx.Bool("engine.attention", boolOr(newCfg.Engine.EnableAttention, true)),
			logx.Bool("engine.optimal_timing", boolOr(newCfg.Engine.EnableOptimalTiming, true)),
			logx.Int("engine.max_notifications", newCfg.Engine.MaxNotifications),
		)
	}

	oldT, newT := oldCfg.Sink.Telegram, newCfg.Sink.Telegram
	telegramChanged := (oldT == nil) != (newT == nil) ||
		(oldT != nil && newT != nil && (oldT.ChatID != newT.ChatID || oldT.Token != newT.Token))
	if oldCfg.Sink.RatePerSec != newCfg.Sink.RatePerSec || telegramChanged {
		changed = append(changed, "sink")
		attrs = append(attrs,
			logx.Int("sink.rate_per_sec", newCfg.Sink.RatePerSec),
			logx.Bool("sink.telegram_set", newT != nil),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}

func derefStorage(s *StorageConfig) StorageConfig {
	if s == nil {
		return StorageConfig{}
	}
	return *s
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
