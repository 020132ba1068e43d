// Package pgstore persists organization limits in PostgreSQL.
//
// The organization_limits table is created by the migrations embedded in
// package pg. Every counter mutation is a single relative UPDATE so
// concurrent writers never lose increments.
package pgstore

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/opsdesk/platform/pkg/pg"
	"github.com/opsdesk/platform/pkg/quota"
)

// DB is the subset of *pgxpool.Pool (or pgx.Tx) used by the store.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements quota.Store on the organization_limits table.
type Store struct {
	db DB
}

var _ quota.Store = (*Store)(nil)

// New creates a Postgres-backed limits store.
// Panics if db is nil.
func New(db DB) *Store {
	if db == nil {
		panic("pgstore: DB is required")
	}
	return &Store{db: db}
}

const selectLimits = `
SELECT organization_id, tier,
       max_users, max_incidents, max_assets, max_runbooks, max_templates,
       max_storage_mb, api_rate_limit,
       current_storage_mb, api_calls_this_hour, api_reset_at,
       created_at, updated_at
  FROM organization_limits
 WHERE organization_id = $1`

// GetLimits returns the limits row or quota.ErrLimitsNotFound.
func (s *Store) GetLimits(ctx context.Context, orgID int64) (*quota.OrganizationLimits, error) {
	var (
		l    quota.OrganizationLimits
		tier string
	)
	err := s.db.QueryRow(ctx, selectLimits, orgID).Scan(
		&l.OrganizationID, &tier,
		&l.Users, &l.Incidents, &l.Assets, &l.Runbooks, &l.Templates,
		&l.StorageMb, &l.APIRateLimit,
		&l.CurrentStorageMb, &l.APICallsThisHour, &l.APIResetAt,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, quota.ErrLimitsNotFound
		}
		return nil, err
	}
	l.Tier = quota.Tier(tier)
	return &l, nil
}

const insertLimits = `
INSERT INTO organization_limits (
       organization_id, tier,
       max_users, max_incidents, max_assets, max_runbooks, max_templates,
       max_storage_mb, api_rate_limit)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (organization_id) DO NOTHING`

// CreateLimitsIfAbsent inserts the row; the primary key on organization_id
// turns concurrent first-time inserts into no-ops.
func (s *Store) CreateLimitsIfAbsent(ctx context.Context, l *quota.OrganizationLimits) error {
	_, err := s.db.Exec(ctx, insertLimits,
		l.OrganizationID, string(l.Tier),
		l.Users, l.Incidents, l.Assets, l.Runbooks, l.Templates,
		l.StorageMb, l.APIRateLimit,
	)
	if pg.IsDuplicateKeyError(err) {
		return nil
	}
	return err
}

const updateCeilings = `
UPDATE organization_limits
   SET tier = $2,
       max_users = $3, max_incidents = $4, max_assets = $5,
       max_runbooks = $6, max_templates = $7,
       max_storage_mb = $8, api_rate_limit = $9,
       updated_at = now()
 WHERE organization_id = $1`

func (s *Store) UpdateCeilings(ctx context.Context, orgID int64, tier quota.Tier, c quota.Ceilings) error {
	return s.execOne(ctx, updateCeilings,
		orgID, string(tier),
		c.Users, c.Incidents, c.Assets, c.Runbooks, c.Templates,
		c.StorageMb, c.APIRateLimit,
	)
}

const addStorage = `
UPDATE organization_limits
   SET current_storage_mb = GREATEST(current_storage_mb + $2, 0),
       updated_at = now()
 WHERE organization_id = $1`

func (s *Store) AddStorageUsage(ctx context.Context, orgID int64, deltaMb int64) error {
	return s.execOne(ctx, addStorage, orgID, deltaMb)
}

const addAPICalls = `
UPDATE organization_limits
   SET api_calls_this_hour = api_calls_this_hour + $2,
       updated_at = now()
 WHERE organization_id = $1`

func (s *Store) AddAPICalls(ctx context.Context, orgID int64, n int64) error {
	return s.execOne(ctx, addAPICalls, orgID, n)
}

const resetWindow = `
UPDATE organization_limits
   SET api_calls_this_hour = 0,
       api_reset_at = $3,
       updated_at = now()
 WHERE organization_id = $1
   AND (api_reset_at IS NULL OR api_reset_at < $2)`

// ResetAPIWindow only touches a row whose window is unset or expired, so of
// several racing requests exactly one performs the reset.
func (s *Store) ResetAPIWindow(ctx context.Context, orgID int64, now, resetAt time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, resetWindow, orgID, now.UTC(), resetAt.UTC())
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) execOne(ctx context.Context, sql string, args ...any) error {
	tag, err := s.db.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return quota.ErrLimitsNotFound
	}
	return nil
}
