// Package runlog keeps a ledger of fixture preparation runs in SQLite or
// Postgres.
package runlog

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"fixtureprep/internal/fixture"
)

// Entry is one recorded run.
type Entry struct {
	RunID              string
	Format             string
	Staged             string
	DescriptionFiles   int
	MeshIndexSize      int
	RefsUpdated        int
	RefsUnresolved     int
	UnityNestedRemoved bool
	StartedAt          time.Time
	Duration           time.Duration
}

// EntryFromSummary flattens a run summary for storage.
func EntryFromSummary(s fixture.Summary) Entry {
	return Entry{
		RunID:              s.RunID,
		Format:             s.Format,
		Staged:             s.Staged,
		DescriptionFiles:   s.DescriptionFiles,
		MeshIndexSize:      s.MeshIndexSize,
		RefsUpdated:        s.RefsUpdated,
		RefsUnresolved:     s.RefsUnresolved,
		UnityNestedRemoved: s.UnityNestedRemoved,
		StartedAt:          s.StartedAt,
		Duration:           s.Duration,
	}
}

// Ledger records completed runs in a SQL table.
type Ledger struct {
	db       *sql.DB
	postgres bool

	schemaOnce sync.Once
	schemaErr  error
}

// Open connects to a postgres:// or postgresql:// URL through pgx, and treats
// anything else as a SQLite database file.
func Open(dsn string) (*Ledger, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("runlog: dsn is required")
	}
	driver, postgres := "sqlite", false
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		driver, postgres = "pgx", true
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if !postgres {
		// SQLite allows a single writer.
		db.SetMaxOpenConns(1)
	}
	return &Ledger{db: db, postgres: postgres}, nil
}

func (l *Ledger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

func (l *Ledger) ensureSchema(ctx context.Context) error {
	if l == nil || l.db == nil {
		return fmt.Errorf("runlog: db is nil")
	}
	l.schemaOnce.Do(func() {
		_, l.schemaErr = l.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS fixture_runs (
    run_id TEXT PRIMARY KEY,
    format TEXT NOT NULL,
    staged TEXT NOT NULL,
    description_files INTEGER NOT NULL,
    mesh_index_size INTEGER NOT NULL,
    refs_updated INTEGER NOT NULL,
    refs_unresolved INTEGER NOT NULL,
    unity_nested_removed INTEGER NOT NULL,
    started_at_ns BIGINT NOT NULL,
    duration_ns BIGINT NOT NULL
)`)
	})
	return l.schemaErr
}

// Record stores e, replacing any entry with the same run ID.
func (l *Ledger) Record(ctx context.Context, e Entry) error {
	if strings.TrimSpace(e.RunID) == "" {
		return fmt.Errorf("runlog: run_id is required")
	}
	if err := l.ensureSchema(ctx); err != nil {
		return err
	}
	removed := 0
	if e.UnityNestedRemoved {
		removed = 1
	}
	_, err := l.db.ExecContext(ctx, l.bind(`
INSERT INTO fixture_runs (run_id, format, staged, description_files, mesh_index_size,
    refs_updated, refs_unresolved, unity_nested_removed, started_at_ns, duration_ns)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (run_id) DO UPDATE SET
    format=excluded.format, staged=excluded.staged,
    description_files=excluded.description_files, mesh_index_size=excluded.mesh_index_size,
    refs_updated=excluded.refs_updated, refs_unresolved=excluded.refs_unresolved,
    unity_nested_removed=excluded.unity_nested_removed,
    started_at_ns=excluded.started_at_ns, duration_ns=excluded.duration_ns`),
		e.RunID, e.Format, e.Staged, e.DescriptionFiles, e.MeshIndexSize,
		e.RefsUpdated, e.RefsUnresolved, removed, e.StartedAt.UnixNano(), int64(e.Duration))
	return err
}

// Recent returns up to limit entries, newest first. An empty format matches
// every format.
func (l *Ledger) Recent(ctx context.Context, format string, limit int) ([]Entry, error) {
	if err := l.ensureSchema(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}
	query := `
SELECT run_id, format, staged, description_files, mesh_index_size, refs_updated,
    refs_unresolved, unity_nested_removed, started_at_ns, duration_ns
FROM fixture_runs`
	args := []any{}
	if format != "" {
		query += "\nWHERE format = ?"
		args = append(args, format)
	}
	query += "\nORDER BY started_at_ns DESC, run_id\nLIMIT ?"
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, l.bind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e                Entry
			removed          int
			startedNs, durNs int64
		)
		if err := rows.Scan(&e.RunID, &e.Format, &e.Staged, &e.DescriptionFiles, &e.MeshIndexSize,
			&e.RefsUpdated, &e.RefsUnresolved, &removed, &startedNs, &durNs); err != nil {
			return nil, err
		}
		e.UnityNestedRemoved = removed != 0
		e.StartedAt = time.Unix(0, startedNs)
		e.Duration = time.Duration(durNs)
		out = append(out, e)
	}
	return out, rows.Err()
}

// bind rewrites '?' placeholders to $n for Postgres.
func (l *Ledger) bind(q string) string {
	if !l.postgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
