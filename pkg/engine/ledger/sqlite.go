package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/DrSkyle/gridspawn/pkg/grid"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS ledger_entries (
	container_id TEXT NOT NULL,
	instance_id  TEXT NOT NULL,
	template_id  TEXT NOT NULL,
	item_kind    TEXT NOT NULL,
	quantity     INTEGER NOT NULL DEFAULT 1,
	x            INTEGER NOT NULL,
	y            INTEGER NOT NULL,
	rotated      INTEGER NOT NULL DEFAULT 0,
	handle       TEXT NOT NULL DEFAULT '',
	recorded_at  TEXT NOT NULL,
	PRIMARY KEY (container_id, instance_id)
);`

// SQLiteBackend keeps one row per entry.
type SQLiteBackend struct {
	db *sql.DB
}

// NewSQLiteBackend opens (and creates if needed) the database at path.
// ":memory:" gives a private in-memory database.
func NewSQLiteBackend(path string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite ledger: %w", err)
	}
	// Every connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create ledger schema: %w", err)
	}
	return &SQLiteBackend{db: db}, nil
}

func (b *SQLiteBackend) Load(ctx context.Context, containerID string) ([]Entry, error) {
	query := `SELECT container_id, instance_id, template_id, item_kind, quantity, x, y, rotated, handle, recorded_at
		FROM ledger_entries`
	var args []any
	if containerID != "" {
		query += ` WHERE container_id = ?`
		args = append(args, containerID)
	}
	query += ` ORDER BY container_id, instance_id`

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e        Entry
			x, y     int
			rotated  bool
			recorded string
		)
		if err := rows.Scan(&e.ContainerID, &e.InstanceID, &e.TemplateID, &e.ItemKind, &e.Quantity, &x, &y, &rotated, &e.Handle, &recorded); err != nil {
			return nil, fmt.Errorf("failed to scan ledger row: %w", err)
		}
		e.Position = grid.Position{X: x, Y: y}
		e.Rotated = rotated
		if e.RecordedAt, err = time.Parse(time.RFC3339Nano, recorded); err != nil {
			return nil, fmt.Errorf("bad recorded_at %q for %s/%s: %w", recorded, e.ContainerID, e.InstanceID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (b *SQLiteBackend) Put(ctx context.Context, containerID string, entries []Entry) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin ledger transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO ledger_entries
		(container_id, instance_id, template_id, item_kind, quantity, x, y, rotated, handle, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare ledger insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, containerID, e.InstanceID, e.TemplateID, e.ItemKind, e.Quantity,
			e.Position.X, e.Position.Y, e.Rotated, e.Handle, e.RecordedAt.UTC().Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("failed to insert %s/%s: %w", containerID, e.InstanceID, err)
		}
	}
	return tx.Commit()
}

func (b *SQLiteBackend) Delete(ctx context.Context, containerID string) error {
	var err error
	if containerID == "" {
		_, err = b.db.ExecContext(ctx, `DELETE FROM ledger_entries`)
	} else {
		_, err = b.db.ExecContext(ctx, `DELETE FROM ledger_entries WHERE container_id = ?`, containerID)
	}
	if err != nil {
		return fmt.Errorf("failed to delete ledger entries: %w", err)
	}
	return nil
}

func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}
