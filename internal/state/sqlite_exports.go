package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// RecordExport stores an export record.
func (s *SQLiteStore) RecordExport(ctx context.Context, e *Export) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	if err := insertExport(ctx, s.db, e); err != nil {
		return err
	}

	s.logger.Debug("recorded export", slog.String("id", e.ID), slog.String("path", e.Path), slog.Int("rows", e.Rows))
	return nil
}

// SaveExport replaces the stored inputs and records e in one transaction.
// Either both are stored or neither is.
func (s *SQLiteStore) SaveExport(ctx context.Context, inputs map[string]string, e *Export) (err error) {
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
	if err = insertExport(ctx, tx, e); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit export: %w", err)
	}
	s.logger.Debug("saved export", slog.String("id", e.ID), slog.String("path", e.Path), slog.Int("inputs", len(inputs)))
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertExport(ctx context.Context, db execer, e *Export) error {
	if e.ID == "" {
		e.ID = generateID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	inputs, err := json.Marshal(e.Inputs)
	if err != nil {
		return fmt.Errorf("failed to encode export inputs: %w", err)
	}

	_, err = db.ExecContext(ctx,
		`INSERT INTO exports (id, path, format, rows, inputs, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.Path, e.Format, e.Rows, string(inputs), e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record export: %w", err)
	}
	return nil
}

// ListExports returns recorded exports, most recent first.
func (s *SQLiteStore) ListExports(ctx context.Context, limit int) ([]*Export, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, path, format, rows, inputs, created_at FROM exports
		 ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list exports: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var exports []*Export
	for rows.Next() {
		e, err := scanExport(rows)
		if err != nil {
			return nil, err
		}
		exports = append(exports, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list exports: %w", err)
	}
	return exports, nil
}

// GetExport returns an export by ID or unique ID prefix.
func (s *SQLiteStore) GetExport(ctx context.Context, id string) (*Export, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	if id == "" {
		return nil, fmt.Errorf("export id is empty: %w", ErrNotFound)
	}

	// Prefixes are compared literally so % and _ are not wildcards.
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, path, format, rows, inputs, created_at FROM exports
		 WHERE substr(id, 1, length(?)) = ? ORDER BY id = ? DESC LIMIT 2`,
		id, id, id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get export: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var found []*Export
	for rows.Next() {
		e, err := scanExport(rows)
		if err != nil {
			return nil, err
		}
		found = append(found, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to get export: %w", err)
	}

	switch {
	case len(found) == 0:
		return nil, fmt.Errorf("export %s: %w", id, ErrNotFound)
	case found[0].ID == id || len(found) == 1:
		return found[0], nil
	default:
		return nil, fmt.Errorf("export id prefix %q is ambiguous", id)
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExport(row rowScanner) (*Export, error) {
	var (
		e       Export
		inputs  string
		created sql.NullTime
	)
	if err := row.Scan(&e.ID, &e.Path, &e.Format, &e.Rows, &inputs, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan export: %w", err)
	}
	if created.Valid {
		e.CreatedAt = created.Time
	}
	if err := json.Unmarshal([]byte(inputs), &e.Inputs); err != nil {
		return nil, fmt.Errorf("failed to decode inputs of export %s: %w", e.ID, err)
	}
	return &e, nil
}
