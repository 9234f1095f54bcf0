//go:build sqlite
// +build sqlite

package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"notifyd/internal/engine/timing"
	"notifyd/internal/model"
	"notifyd/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveSnapshot replaces all persisted state in one transaction.
func (s *sqliteStore) SaveSnapshot(ctx context.Context, snap Snapshot) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	snap.Schema = SchemaVersion
	if snap.SavedAt.IsZero() {
		snap.SavedAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"notifications", "groups", "timing_buckets", "keywords"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}

	for _, n := range snap.Notifications {
		body, err := json.Marshal(n)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO notifications(id, status, created_at, body) VALUES(?,?,?,?)`,
			n.ID, string(n.Status), n.Timestamp.Format(time.RFC3339Nano), string(body),
		); err != nil {
			return err
		}
	}

	for _, g := range snap.Groups {
		body, err := json.Marshal(g)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO groups(id, body) VALUES(?,?)`, g.ID, string(body),
		); err != nil {
			return err
		}
	}

	for _, b := range snap.Timing {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO timing_buckets(hour, day, interaction_rate, dismissal_rate, avg_read_latency_ns, samples)
			 VALUES(?,?,?,?,?,?)`,
			b.Hour, int(b.Day), b.InteractionRate, b.DismissalRate, int64(b.AvgReadLatency), b.Samples,
		); err != nil {
			return err
		}
	}

	for i, w := range snap.LearnedKeywords {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO keywords(pos, word) VALUES(?,?)`, i, w,
		); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO meta(key, value) VALUES('schema', ?), ('saved_at', ?)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value`,
		fmt.Sprint(snap.Schema), snap.SavedAt.Format(time.RFC3339Nano),
	); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *sqliteStore) LoadSnapshot(ctx context.Context) (Snapshot, bool, error) {
	if s == nil || s.db == nil {
		return Snapshot{}, false, ErrDisabled
	}

	var savedAt string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'saved_at'`).Scan(&savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, err
	}

	snap := Snapshot{Schema: SchemaVersion}
	if t, err := time.Parse(time.RFC3339Nano, savedAt); err == nil {
		snap.SavedAt = t
	}

	rows, err := s.db.QueryContext(ctx, `SELECT body FROM notifications ORDER BY created_at`)
	if err != nil {
		return Snapshot{}, false, err
	}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			rows.Close()
			return Snapshot{}, false, err
		}
		var n model.Notification
		if err := json.Unmarshal([]byte(body), &n); err != nil {
			rows.Close()
			return Snapshot{}, false, fmt.Errorf("malformed notification row: %w", err)
		}
		snap.Notifications = append(snap.Notifications, n)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return Snapshot{}, false, err
	}
	rows.Close()

	rows, err = s.db.QueryContext(ctx, `SELECT body FROM groups`)
	if err != nil {
		return Snapshot{}, false, err
	}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			rows.Close()
			return Snapshot{}, false, err
		}
		var g model.Group
		if err := json.Unmarshal([]byte(body), &g); err != nil {
			rows.Close()
			return Snapshot{}, false, fmt.Errorf("malformed group row: %w", err)
		}
		snap.Groups = append(snap.Groups, g)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return Snapshot{}, false, err
	}
	rows.Close()

	rows, err = s.db.QueryContext(ctx,
		`SELECT hour, day, interaction_rate, dismissal_rate, avg_read_latency_ns, samples FROM timing_buckets`)
	if err != nil {
		return Snapshot{}, false, err
	}
	for rows.Next() {
		var b timing.BucketStat
		var day int
		var latencyNS int64
		if err := rows.Scan(&b.Hour, &day, &b.InteractionRate, &b.DismissalRate, &latencyNS, &b.Samples); err != nil {
			rows.Close()
			return Snapshot{}, false, err
		}
		b.Day = time.Weekday(day)
		b.AvgReadLatency = time.Duration(latencyNS)
		snap.Timing = append(snap.Timing, b)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return Snapshot{}, false, err
	}
	rows.Close()

	rows, err = s.db.QueryContext(ctx, `SELECT word FROM keywords ORDER BY pos`)
	if err != nil {
		return Snapshot{}, false, err
	}
	defer rows.Close()
	for rows.Next() {
		var w string
		if err := rows.Scan(&w); err != nil {
			return Snapshot{}, false, err
		}
		snap.LearnedKeywords = append(snap.LearnedKeywords, w)
	}
	if err := rows.Err(); err != nil {
		return Snapshot{}, false, err
	}

	return snap, true, nil
}
