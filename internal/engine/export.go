package engine

import (
	"encoding/json"
	"fmt"

	"notifyd/internal/storage"
)

// exportEnvelope is the backup/restore wire format: the persistence snapshot
// plus the active configuration for inspection. Import restores state only;
// configuration stays constructor-owned.
type exportEnvelope struct {
	storage.Snapshot
	Config Config `json:"config"`
}

// ExportData serializes notifications, groups, the learned timing histogram
// and the urgency keyword model for backup or transfer between sessions.
func (e *Engine) ExportData() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	env := exportEnvelope{Snapshot: e.snapshotLocked(), Config: e.cfg}
	return json.MarshalIndent(env, "", "  ")
}

// ImportData replaces engine state with a previously exported snapshot and
// re-arms deferred work for restored scheduled/batched notifications.
func (e *Engine) ImportData(data []byte) error {
	var env exportEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("import: %w", err)
	}
	if env.Schema > storage.SchemaVersion {
		return fmt.Errorf("import: snapshot schema %d is newer than supported %d", env.Schema, storage.SchemaVersion)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.restoreLocked(env.Snapshot)
	e.rearmLocked()
	e.persistLocked()
	return nil
}
