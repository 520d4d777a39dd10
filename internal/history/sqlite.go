package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nerrad567/uplink-switcher/internal/events"
)

const (
	defaultLimit = 50
	maxLimit     = 500

	// timeLayout is fixed-width so occurred_at sorts as text.
	timeLayout = "2006-01-02T15:04:05.000Z"
)

// SQLiteRepository stores history in the switch_history table.
//
// Thread Safety:
//   - Safe for concurrent use; *sql.DB serialises access.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository over an open, migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Emit records ev. It implements events.Sink.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - ev: Event to persist; Channel is stored as the user
//
// Returns:
//   - error: ErrUserRequired, ErrUnknownKind, or the underlying insert error
func (r *SQLiteRepository) Emit(ctx context.Context, ev events.Event) error {
	if ev.Channel == "" {
		return ErrUserRequired
	}
	kind, ok := storedKind(ev.Kind)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKind, ev.Kind)
	}
	occurred := ev.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO switch_history (id, user, kind, scene, switch_type, server, message, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID,
		ev.Channel,
		kind,
		nullable(ev.Scene),
		nullable(ev.SwitchType),
		nullable(ev.Server),
		nullable(ev.Message),
		occurred.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting switch history: %w", err)
	}
	return nil
}

// List returns recent entries for user, newest first.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - user: Session user
//   - limit: Maximum entries to return (default 50, max 500)
//
// Returns:
//   - []Entry: Entries ordered by occurred_at DESC (may be empty)
//   - error: nil on success, otherwise the underlying query error
func (r *SQLiteRepository) List(ctx context.Context, user string, limit int) ([]Entry, error) {
	if user == "" {
		return nil, ErrUserRequired
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user, kind, scene, switch_type, server, message, occurred_at
		 FROM switch_history
		 WHERE user = ?
		 ORDER BY occurred_at DESC
		 LIMIT ?`,
		user,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying switch history: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var e Entry
		var scene, switchType, server, message sql.NullString
		var occurredAt string

		if err := rows.Scan(&e.ID, &e.User, &e.Kind, &scene, &switchType, &server, &message, &occurredAt); err != nil {
			return nil, fmt.Errorf("scanning switch history: %w", err)
		}
		e.Scene, e.SwitchType, e.Server, e.Message = scene.String, switchType.String, server.String, message.String

		e.OccurredAt, err = time.Parse(timeLayout, occurredAt)
		if err != nil {
			return nil, fmt.Errorf("parsing occurred_at: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating switch history: %w", err)
	}
	return entries, nil
}

// Prune deletes entries older than olderThan and returns how many were removed.
func (r *SQLiteRepository) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}

	cutoff := time.Now().UTC().Add(-olderThan).Format(timeLayout)
	result, err := r.db.ExecContext(ctx, "DELETE FROM switch_history WHERE occurred_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting switch history: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

var (
	_ events.Sink = (*SQLiteRepository)(nil)
	_ Reader      = (*SQLiteRepository)(nil)
)
