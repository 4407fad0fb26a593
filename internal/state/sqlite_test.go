package state

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/leapstack-labs/lensgrid/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenStore(":memory:", testutil.NewTestLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_OpenClose(t *testing.T) {
	store := NewSQLiteStore(nil)
	require.NoError(t, store.Open(":memory:"))
	require.NoError(t, store.Close())
}

func TestSQLiteStore_NotOpened(t *testing.T) {
	store := NewSQLiteStore(nil)
	ctx := context.Background()

	_, err := store.LoadInputs(ctx)
	assert.ErrorContains(t, err, "database not opened")
	assert.ErrorContains(t, store.SaveInputs(ctx, nil), "database not opened")
	assert.ErrorContains(t, store.Migrate(), "database not opened")
	assert.NoError(t, store.Close())
}

func TestSQLiteStore_Migrate(t *testing.T) {
	store := setupTestStore(t)

	version, err := store.GetMigrationVersion()
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	// Migrating again is a no-op.
	require.NoError(t, store.Migrate())

	for _, table := range []string{"inputs", "exports"} {
		rows, err := store.db.Query("SELECT 1 FROM " + table + " LIMIT 1")
		require.NoError(t, err, "table %s should exist", table)
		_ = rows.Close()
	}
}

func TestSQLiteStore_Inputs(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	got, err := store.LoadInputs(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)

	first := map[string]string{"sph_start": "0", "sph_step": "0.25", "sph_max": "2"}
	require.NoError(t, store.SaveInputs(ctx, first))

	got, err = store.LoadInputs(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, got)

	second := map[string]string{"axis_step": "5"}
	require.NoError(t, store.SaveInputs(ctx, second))

	got, err = store.LoadInputs(ctx)
	require.NoError(t, err)
	assert.Equal(t, second, got, "save replaces previous inputs")

	require.NoError(t, store.ClearInputs(ctx))
	got, err = store.LoadInputs(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSQLiteStore_InputsPersistAcrossOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state", "state.db")

	store, err := OpenStore(path, nil)
	require.NoError(t, err)
	require.NoError(t, store.SaveInputs(ctx, map[string]string{"cyl_max": "3.00"}))
	require.NoError(t, store.Close())

	reopened, err := OpenStore(path, nil)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	got, err := reopened.LoadInputs(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"cyl_max": "3.00"}, got, "original string form is kept")
}

func TestSQLiteStore_SaveInputsRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM inputs").WillReturnResult(sqlmock.NewResult(0, 9))
	mock.ExpectExec("INSERT INTO inputs").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO inputs").WillReturnError(assert.AnError)
	mock.ExpectRollback()

	store := &SQLiteStore{db: db, logger: testutil.NewTestLogger(t)}
	err = store.SaveInputs(context.Background(), map[string]string{"a": "1", "b": "2", "c": "3"})
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), "failed to save input b")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStore_SaveInputsCommitFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM inputs").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO inputs").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit().WillReturnError(assert.AnError)

	store := &SQLiteStore{db: db, logger: testutil.NewTestLogger(t)}
	err = store.SaveInputs(context.Background(), map[string]string{"a": "1"})
	assert.ErrorContains(t, err, "failed to commit inputs")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStore_Exports(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	inputs := map[string]string{"sph_start": "0"}

	var ids []string
	for i, path := range []string{"a.xlsx", "b.csv", "c.json"} {
		e := &Export{
			Path:      path,
			Format:    filepath.Ext(path)[1:],
			Rows:      (i + 1) * 100,
			Inputs:    inputs,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, store.RecordExport(ctx, e))
		assert.NotEmpty(t, e.ID)
		ids = append(ids, e.ID)
	}

	all, err := store.ListExports(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c.json", all[0].Path, "most recent first")
	assert.Equal(t, "a.xlsx", all[2].Path)
	assert.Equal(t, 300, all[0].Rows)
	assert.Equal(t, inputs, all[0].Inputs)
	assert.True(t, all[0].CreatedAt.Equal(base.Add(2*time.Minute)))

	limited, err := store.ListExports(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	got, err := store.GetExport(ctx, ids[1])
	require.NoError(t, err)
	assert.Equal(t, "b.csv", got.Path)

	got, err = store.GetExport(ctx, ids[0][:13])
	require.NoError(t, err)
	assert.Equal(t, ids[0], got.ID)

	_, err = store.GetExport(ctx, "does-not-exist")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_RecordExportDefaults(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	e := &Export{Path: "grid.xlsx", Format: "xlsx", Rows: 1}
	before := time.Now().UTC()
	require.NoError(t, store.RecordExport(ctx, e))

	assert.Len(t, e.ID, 36)
	assert.False(t, e.CreatedAt.Before(before))
}

func TestSQLiteStore_GetExportPrefixIsLiteral(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	for _, id := range []string{"abc-0001", "abd-0002", "x%y-0003"} {
		require.NoError(t, store.RecordExport(ctx, &Export{ID: id, Path: id + ".csv", Format: "csv", Rows: 1}))
	}

	tests := []struct {
		name    string
		id      string
		want    string
		wantErr error
	}{
		{name: "exact", id: "abc-0001", want: "abc-0001"},
		{name: "unique prefix", id: "abd", want: "abd-0002"},
		{name: "percent is not a wildcard", id: "%", wantErr: ErrNotFound},
		{name: "underscore is not a wildcard", id: "ab_", wantErr: ErrNotFound},
		{name: "literal percent prefix", id: "x%", want: "x%y-0003"},
		{name: "empty id", id: "", wantErr: ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.GetExport(ctx, tt.id)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.ID)
		})
	}

	_, err := store.GetExport(ctx, "ab")
	assert.ErrorContains(t, err, "ambiguous")
}

func TestSQLiteStore_SaveExport(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		existingID string
		export     *Export
		wantErr    bool
		wantInputs map[string]string
	}{
		{
			name:       "saves inputs and export",
			export:     &Export{Path: "grid.xlsx", Format: "xlsx", Rows: 972},
			wantInputs: map[string]string{"sph_max": "4"},
		},
		{
			name:       "failed record keeps previous inputs",
			existingID: "dup-0001",
			export:     &Export{ID: "dup-0001", Path: "grid.csv", Format: "csv", Rows: 1},
			wantErr:    true,
			wantInputs: map[string]string{"sph_max": "2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := setupTestStore(t)
			require.NoError(t, store.SaveInputs(ctx, map[string]string{"sph_max": "2"}))
			if tt.existingID != "" {
				require.NoError(t, store.RecordExport(ctx, &Export{ID: tt.existingID, Path: "old.csv", Format: "csv"}))
			}
			before, err := store.ListExports(ctx, 0)
			require.NoError(t, err)

			err = store.SaveExport(ctx, map[string]string{"sph_max": "4"}, tt.export)

			after, listErr := store.ListExports(ctx, 0)
			require.NoError(t, listErr)
			if tt.wantErr {
				require.Error(t, err)
				assert.Len(t, after, len(before))
			} else {
				require.NoError(t, err)
				require.Len(t, after, len(before)+1)
				assert.Equal(t, tt.export.ID, after[0].ID)
			}

			got, err := store.LoadInputs(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.wantInputs, got)
		})
	}
}

func TestSQLiteStore_SaveExportRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM inputs").WillReturnResult(sqlmock.NewResult(0, 9))
	mock.ExpectExec("INSERT INTO inputs").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO exports").WillReturnError(assert.AnError)
	mock.ExpectRollback()

	store := &SQLiteStore{db: db, logger: testutil.NewTestLogger(t)}
	err = store.SaveExport(context.Background(), map[string]string{"a": "1"}, &Export{Path: "grid.xlsx", Format: "xlsx"})
	assert.ErrorIs(t, err, assert.AnError)
	assert.ErrorContains(t, err, "failed to record export")

	assert.NoError(t, mock.ExpectationsWereMet())
}
