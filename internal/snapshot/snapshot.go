// Package snapshot persists the flattened room records that survive process
// restarts. The schema is deliberately decoupled from the in-memory entity:
// exactly four scalar fields per record, versioned by the table definition,
// stored in a SQLite database at a configurable path.
package snapshot

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Record is one persisted room. Community membership is not stored; the load
// path re-resolves it from the channel handle.
type Record struct {
	ChannelID      string
	OwnerID        string
	TimeoutMinutes int
	IdleMinutes    int
}

// Store reads and writes snapshot records.
type Store struct {
	db *sql.DB
}

// Open creates parent directories as needed and opens the snapshot database
// at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create snapshot directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot database: %w", err)
	}
	return &Store{db: db}, nil
}

// Migrate applies the snapshot schema.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS temp_rooms (
			channel_id      TEXT PRIMARY KEY,
			owner_id        TEXT NOT NULL,
			timeout_minutes INTEGER NOT NULL,
			idle_minutes    INTEGER NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("migrate snapshot schema: %w", err)
	}
	return nil
}

// Save replaces the stored snapshot with the given records.
func (s *Store) Save(ctx context.Context, records []Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot transaction: %w", err)
	}

	if err := saveTx(ctx, tx, records); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("snapshot save failed (rollback error: %v): %w", rbErr, err)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

func saveTx(ctx context.Context, tx *sql.Tx, records []Record) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM temp_rooms`); err != nil {
		return fmt.Errorf("clear previous snapshot: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO temp_rooms (channel_id, owner_id, timeout_minutes, idle_minutes)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare snapshot insert: %w", err)
	}
	defer stmt.Close()

	for _, record := range records {
		if _, err := stmt.ExecContext(ctx,
			record.ChannelID,
			record.OwnerID,
			record.TimeoutMinutes,
			record.IdleMinutes,
		); err != nil {
			return fmt.Errorf("insert snapshot record %s: %w", record.ChannelID, err)
		}
	}
	return nil
}

// Load returns the stored records ordered by channel handle. An empty
// database yields an empty slice.
func (s *Store) Load(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT channel_id, owner_id, timeout_minutes, idle_minutes
		FROM temp_rooms
		ORDER BY channel_id
	`)
	if err != nil {
		return nil, fmt.Errorf("query snapshot: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var record Record
		if err := rows.Scan(
			&record.ChannelID,
			&record.OwnerID,
			&record.TimeoutMinutes,
			&record.IdleMinutes,
		); err != nil {
			return nil, fmt.Errorf("scan snapshot record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot records: %w", err)
	}
	return records, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
