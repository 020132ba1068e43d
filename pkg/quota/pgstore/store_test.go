package pgstore_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsdesk/platform/pkg/quota"
	"github.com/opsdesk/platform/pkg/quota/pgstore"
)

type fakeRow struct {
	scan func(dest ...any) error
}

func (r fakeRow) Scan(dest ...any) error { return r.scan(dest...) }

type execCall struct {
	sql  string
	args []any
}

// fakeDB records Exec calls and answers QueryRow through a callback.
type fakeDB struct {
	tag      string
	execErr  error
	calls    []execCall
	queryRow func(sql string, args ...any) pgx.Row
}

func (db *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	db.calls = append(db.calls, execCall{sql: sql, args: args})
	if db.execErr != nil {
		return pgconn.CommandTag{}, db.execErr
	}
	return pgconn.NewCommandTag(db.tag), nil
}

func (db *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	return db.queryRow(sql, args...)
}

func TestStore_GetLimits_NotFound(t *testing.T) {
	t.Parallel()

	db := &fakeDB{queryRow: func(string, ...any) pgx.Row {
		return fakeRow{scan: func(...any) error { return pgx.ErrNoRows }}
	}}

	_, err := pgstore.New(db).GetLimits(context.Background(), 7)
	assert.ErrorIs(t, err, quota.ErrLimitsNotFound)
}

func TestStore_GetLimits_PropagatesErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection reset")
	db := &fakeDB{queryRow: func(string, ...any) pgx.Row {
		return fakeRow{scan: func(...any) error { return boom }}
	}}

	_, err := pgstore.New(db).GetLimits(context.Background(), 7)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, quota.ErrLimitsNotFound)
}

func TestStore_CreateLimitsIfAbsent(t *testing.T) {
	t.Parallel()

	t.Run("uses on conflict do nothing", func(t *testing.T) {
		t.Parallel()
		db := &fakeDB{tag: "INSERT 0 1"}
		err := pgstore.New(db).CreateLimitsIfAbsent(context.Background(), &quota.OrganizationLimits{
			OrganizationID: 7,
			Tier:           quota.TierStarter,
			Ceilings:       quota.DefaultTiers()[quota.TierStarter],
		})
		require.NoError(t, err)
		require.Len(t, db.calls, 1)
		assert.Contains(t, db.calls[0].sql, "ON CONFLICT (organization_id) DO NOTHING")
		assert.Equal(t, int64(7), db.calls[0].args[0])
		assert.Equal(t, "starter", db.calls[0].args[1])
	})

	t.Run("duplicate key is not an error", func(t *testing.T) {
		t.Parallel()
		db := &fakeDB{execErr: &pgconn.PgError{Code: "23505"}}
		err := pgstore.New(db).CreateLimitsIfAbsent(context.Background(), &quota.OrganizationLimits{OrganizationID: 7})
		assert.NoError(t, err)
	})
}

func TestStore_RelativeUpdates(t *testing.T) {
	t.Parallel()

	t.Run("storage is clamped in sql", func(t *testing.T) {
		t.Parallel()
		db := &fakeDB{tag: "UPDATE 1"}
		require.NoError(t, pgstore.New(db).AddStorageUsage(context.Background(), 7, -50))
		assert.Contains(t, db.calls[0].sql, "GREATEST(current_storage_mb + $2, 0)")
		assert.Equal(t, int64(-50), db.calls[0].args[1])
	})

	t.Run("api calls are incremented in sql", func(t *testing.T) {
		t.Parallel()
		db := &fakeDB{tag: "UPDATE 1"}
		require.NoError(t, pgstore.New(db).AddAPICalls(context.Background(), 7, 1))
		assert.Contains(t, db.calls[0].sql, "api_calls_this_hour = api_calls_this_hour + $2")
	})

	t.Run("missing row", func(t *testing.T) {
		t.Parallel()
		db := &fakeDB{tag: "UPDATE 0"}
		err := pgstore.New(db).AddStorageUsage(context.Background(), 7, 10)
		assert.ErrorIs(t, err, quota.ErrLimitsNotFound)

		err = pgstore.New(db).UpdateCeilings(context.Background(), 7, quota.TierProfessional, quota.Ceilings{})
		assert.ErrorIs(t, err, quota.ErrLimitsNotFound)
	})
}

func TestStore_ResetAPIWindow(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	won := &fakeDB{tag: "UPDATE 1"}
	reset, err := pgstore.New(won).ResetAPIWindow(context.Background(), 7, now, now.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, reset)
	assert.True(t, strings.Contains(won.calls[0].sql, "api_reset_at IS NULL OR api_reset_at < $2"))

	lost := &fakeDB{tag: "UPDATE 0"}
	reset, err = pgstore.New(lost).ResetAPIWindow(context.Background(), 7, now, now.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, reset)
}

func TestNew_PanicsOnNilDB(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() { pgstore.New(nil) })
}
