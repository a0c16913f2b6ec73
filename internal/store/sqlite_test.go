package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/clickmap/internal/model"
	"github.com/sells-group/clickmap/pkg/geocode"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestSQLite_Migrate_Idempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	require.NoError(t, st.Migrate(context.Background()))
	require.NoError(t, st.Migrate(context.Background()))
}

func TestNewSQLite_InvalidDSN(t *testing.T) {
	_, err := NewSQLite(filepath.Join(t.TempDir(), "missing", "dir", "x.db"))
	require.Error(t, err)
}

func TestNewSQLite_CloseAndReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "reopen.db")
	ctx := context.Background()

	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.Migrate(ctx))
	run, err := st.CreateRun(ctx, testParams("persisted"))
	require.NoError(t, err)
	require.NoError(t, st.Close())

	st2, err := NewSQLite(dbPath)
	require.NoError(t, err)
	defer st2.Close() //nolint:errcheck

	got, err := st2.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "persisted", got.Params.Caption)
}

func TestSQLite_ListRuns_Offset(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := st.CreateRun(ctx, testParams("r"))
		require.NoError(t, err)
	}

	page, err := st.ListRuns(ctx, RunFilter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, page, 1)
}

func TestSQLite_ImportLocations_Empty(t *testing.T) {
	st := newTestSQLiteStore(t)
	n, err := st.ImportLocations(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSQLite_PutLocation_KeepsCachedAt(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	at := time.Date(2022, 10, 5, 12, 0, 0, 0, time.UTC)

	require.NoError(t, st.PutLocation(ctx, "k", "Peru", &geocode.Result{Matched: true, CachedAt: at}))
	got, err := st.GetLocation(ctx, "k")
	require.NoError(t, err)
	assert.True(t, at.Equal(got.CachedAt), "got %s", got.CachedAt)
}

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = r.values[i].(string)
		case *model.RunStatus:
			*p = model.RunStatus(r.values[i].(string))
		case *sql.NullString:
			*p = r.values[i].(sql.NullString)
		case *time.Time:
			*p = r.values[i].(time.Time)
		}
	}
	return nil
}

func TestScanRun_NotFound(t *testing.T) {
	_, err := scanRun(fakeRow{err: sql.ErrNoRows})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
}

func TestScanRun_ScanError(t *testing.T) {
	_, err := scanRun(fakeRow{err: errors.New("disk I/O error")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scan run")
}

func TestScanRun_CorruptParamsJSON(t *testing.T) {
	now := time.Now()
	_, err := scanRun(fakeRow{values: []any{"id", "{bad", "queued", sql.NullString{}, now, now}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal params")
}

func TestScanRun_CorruptResultJSON(t *testing.T) {
	now := time.Now()
	_, err := scanRun(fakeRow{values: []any{"id", "{}", "complete", sql.NullString{String: "{bad", Valid: true}, now, now}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal result")
}

func TestScanRun_WithResult(t *testing.T) {
	now := time.Now()
	r, err := scanRun(fakeRow{values: []any{"id", `{"caption":"c"}`, "complete", sql.NullString{String: `{"features":3}`, Valid: true}, now, now}})
	require.NoError(t, err)
	assert.Equal(t, "c", r.Params.Caption)
	assert.Equal(t, 3, r.Result.Features)
}

type fakeResult struct {
	n   int64
	err error
}

func (r fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r fakeResult) RowsAffected() (int64, error) { return r.n, r.err }

func TestCheckRowsAffected(t *testing.T) {
	assert.NoError(t, checkRowsAffected(fakeResult{n: 1}, "run", "x"))

	err := checkRowsAffected(fakeResult{n: 0}, "run", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found: x")

	err = checkRowsAffected(fakeResult{err: errors.New("driver")}, "run", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rows affected")
}
