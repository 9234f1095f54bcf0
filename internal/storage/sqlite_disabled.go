//go:build !sqlite
// +build !sqlite

package storage

import (
	"errors"

	"notifyd/pkg/logx"
)

// Built without the sqlite tag; the driver is unavailable.
func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	_ = cfg
	_ = log
	return nil, errors.New("sqlite support not built in (build with -tags sqlite)")
}
