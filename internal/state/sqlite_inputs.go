package state

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"time"
)

// LoadInputs returns the stored inputs.
func (s *SQLiteStore) LoadInputs(ctx context.Context) (map[string]string, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM inputs`)
	if err != nil {
		return nil, fmt.Errorf("failed to load inputs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	inputs := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan input: %w", err)
		}
		inputs[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load inputs: %w", err)
	}
	return inputs, nil
}

// SaveInputs replaces the stored inputs in one transaction. On failure the
// previous inputs stay in place.
func (s *SQLiteStore) SaveInputs(ctx context.Context, inputs map[string]string) (err error) {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = replaceInputs(ctx, tx, inputs); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit inputs: %w", err)
	}
	s.logger.Debug("saved inputs", slog.Int("count", len(inputs)))
	return nil
}

// ClearInputs removes all stored inputs.
func (s *SQLiteStore) ClearInputs(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM inputs`); err != nil {
		return fmt.Errorf("failed to clear inputs: %w", err)
	}
	return nil
}

// replaceInputs swaps the stored inputs for inputs inside tx.
func replaceInputs(ctx context.Context, tx *sql.Tx, inputs map[string]string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM inputs`); err != nil {
		return fmt.Errorf("failed to clear inputs: %w", err)
	}

	keys := make([]string, 0, len(inputs))
	for k := range inputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	now := time.Now().UTC()
	for _, k := range keys {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO inputs (key, value, updated_at) VALUES (?, ?, ?)`,
			k, inputs[k], now,
		); err != nil {
			return fmt.Errorf("failed to save input %s: %w", k, err)
		}
	}
	return nil
}
