package storage

import (
	"errors"
	"time"

	"notifyd/internal/engine/timing"
	"notifyd/internal/model"
)

var ErrDisabled = errors.New("storage disabled")

// SchemaVersion is bumped on incompatible snapshot layout changes.
const SchemaVersion = 1

// Config configures storage.
//
// Driver values:
//   - "file": dependency-free file backend (atomic JSON snapshot)
//   - "sqlite": SQLite database file (optional build tag)
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Snapshot is the full persisted engine state. It doubles as the
// export/import wire format.
type Snapshot struct {
	Schema  int       `json:"schema"`
	SavedAt time.Time `json:"saved_at"`

	Notifications   []model.Notification `json:"notifications"`
	Groups          []model.Group        `json:"groups"`
	Timing          []timing.BucketStat  `json:"timing"`
	LearnedKeywords []string             `json:"learned_keywords,omitempty"`
}
