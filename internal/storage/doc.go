// Package storage persists engine state between sessions.
//
// The engine only needs a load/save contract for one snapshot; failures are
// logged by the caller and never block in-memory lifecycle progress.
package storage
