package journal

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of pgxpool.Pool the repository needs
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS timer_journal (
    id          UUID PRIMARY KEY,
    command     TEXT        NOT NULL,
    snapshot    JSONB       NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS timer_journal_created_at_idx ON timer_journal (created_at DESC);
`

// Repository stores journal entries in Postgres
type Repository struct {
	db DB
}

func NewRepository(db DB) *Repository {
	return &Repository{
		db: db,
	}
}

// EnsureSchema creates the journal table if it does not exist
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, createTableSQL); err != nil {
		return fmt.Errorf("failed to create timer_journal table: %w", err)
	}
	return nil
}

func (r *Repository) Append(ctx context.Context, entry Entry) error {
	snapshot, err := json.Marshal(entry.Snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	_, err = r.db.Exec(ctx, `
        INSERT INTO timer_journal (id, command, snapshot, created_at)
        VALUES ($1, $2, $3, $4)
    `, entry.ID, entry.Command, string(snapshot), entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert %s journal entry: %w", entry.Command, err)
	}
	return nil
}

// Recent returns up to limit entries, newest first
func (r *Repository) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := r.db.Query(ctx, `
        SELECT id, command, snapshot, created_at
        FROM timer_journal
        ORDER BY created_at DESC
        LIMIT $1
    `, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			entry    Entry
			snapshot []byte
		)
		if err := rows.Scan(&entry.ID, &entry.Command, &snapshot, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan journal entry: %w", err)
		}
		if err := json.Unmarshal(snapshot, &entry.Snapshot); err != nil {
			return nil, fmt.Errorf("failed to decode snapshot of entry %s: %w", entry.ID, err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate journal: %w", err)
	}

	return entries, nil
}
