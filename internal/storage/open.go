package storage

import (
	"context"
	"errors"
	"strings"

	"notifyd/pkg/logx"
)

// Store is the minimal persistence API used by the engine.
type Store interface {
	// SaveSnapshot replaces the persisted state.
	SaveSnapshot(ctx context.Context, snap Snapshot) error
	// LoadSnapshot returns the persisted state; ok is false when nothing
	// has been saved yet.
	LoadSnapshot(ctx context.Context) (snap Snapshot, ok bool, err error)
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
