package thermostat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Store persists the thermostat State.
type Store interface {
	// Load returns the persisted state, or ErrStateNotFound.
	Load(ctx context.Context) (State, error)

	// Save replaces the persisted state.
	Save(ctx context.Context, s State) error
}

// LoadOrInit loads the persisted state, saving and returning defaults when
// none exists yet.
func LoadOrInit(ctx context.Context, store Store, defaults State) (State, error) {
	s, err := store.Load(ctx)
	switch {
	case err == nil:
		return s, nil
	case errors.Is(err, ErrStateNotFound):
		if err := store.Save(ctx, defaults); err != nil {
			return State{}, fmt.Errorf("%w: %w", ErrPersist, err)
		}
		return defaults, nil
	default:
		return State{}, fmt.Errorf("loading thermostat state: %w", err)
	}
}

// SQLiteStore keeps the state in the single-row thermostat_state table.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a store on an open, migrated SQLite connection.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Load reads the state row.
func (r *SQLiteStore) Load(ctx context.Context) (State, error) {
	query := `
		SELECT day, night, empty, morning, evening, present, hot
		FROM thermostat_state
		WHERE id = 1`

	var s State
	err := r.db.QueryRowContext(ctx, query).Scan(
		&s.Day, &s.Night, &s.Empty, &s.Morning, &s.Evening, &s.Present, &s.Hot,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return State{}, ErrStateNotFound
		}
		return State{}, fmt.Errorf("querying thermostat state: %w", err)
	}
	return s, nil
}

// Save upserts the state row.
func (r *SQLiteStore) Save(ctx context.Context, s State) error {
	query := `
		INSERT INTO thermostat_state (id, day, night, empty, morning, evening, present, hot, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			day = excluded.day,
			night = excluded.night,
			empty = excluded.empty,
			morning = excluded.morning,
			evening = excluded.evening,
			present = excluded.present,
			hot = excluded.hot,
			updated_at = excluded.updated_at`

	_, err := r.db.ExecContext(ctx, query,
		s.Day, s.Night, s.Empty, s.Morning, s.Evening, s.Present, s.Hot,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving thermostat state: %w", err)
	}
	return nil
}
