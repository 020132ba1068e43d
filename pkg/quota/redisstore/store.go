// Package redisstore keeps organization limits in Redis hashes so several
// service instances share one set of counters.
//
// Each organization is one hash at <prefix>limits:<id>. Counters are changed
// with HINCRBY or server-side scripts, never by read-modify-write in Go.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/opsdesk/platform/pkg/quota"
)

// Hash fields.
const (
	fieldOrganizationID   = "organization_id"
	fieldTier             = "tier"
	fieldMaxUsers         = "max_users"
	fieldMaxIncidents     = "max_incidents"
	fieldMaxAssets        = "max_assets"
	fieldMaxRunbooks      = "max_runbooks"
	fieldMaxTemplates     = "max_templates"
	fieldMaxStorageMb     = "max_storage_mb"
	fieldAPIRateLimit     = "api_rate_limit"
	fieldCurrentStorageMb = "current_storage_mb"
	fieldAPICalls         = "api_calls_this_hour"
	fieldAPIResetAt       = "api_reset_at"
	fieldCreatedAt        = "created_at"
	fieldUpdatedAt        = "updated_at"
)

// maxWatchRetries bounds optimistic transaction retries.
const maxWatchRetries = 5

// Store implements quota.Store on Redis.
type Store struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

var _ quota.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithKeyPrefix namespaces all keys. Defaults to "quota:".
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

// WithClock overrides the time source used for created_at and updated_at.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a Redis-backed limits store.
// Panics if client is nil.
func New(client redis.UniversalClient, opts ...Option) *Store {
	if client == nil {
		panic("redisstore: client is required")
	}
	s := &Store{
		client: client,
		prefix: "quota:",
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) key(orgID int64) string {
	return s.prefix + "limits:" + formatInt(orgID)
}

// GetLimits returns the decoded hash or quota.ErrLimitsNotFound.
func (s *Store) GetLimits(ctx context.Context, orgID int64) (*quota.OrganizationLimits, error) {
	fields, err := s.client.HGetAll(ctx, s.key(orgID)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, quota.ErrLimitsNotFound
	}
	return decode(fields)
}

// CreateLimitsIfAbsent writes the whole hash in one script call unless the key exists.
func (s *Store) CreateLimitsIfAbsent(ctx context.Context, l *quota.OrganizationLimits) error {
	now := s.nowString()
	args := []any{
		fieldOrganizationID, l.OrganizationID,
		fieldTier, string(l.Tier),
		fieldCurrentStorageMb, l.CurrentStorageMb,
		fieldAPICalls, l.APICallsThisHour,
		fieldCreatedAt, now,
		fieldUpdatedAt, now,
	}
	args = append(args, ceilingArgs(l.Ceilings)...)

	return createScript.Run(ctx, s.client, []string{s.key(l.OrganizationID)}, args...).Err()
}

// UpdateCeilings replaces tier and ceilings atomically, failing with
// quota.ErrLimitsNotFound when the hash does not exist.
func (s *Store) UpdateCeilings(ctx context.Context, orgID int64, tier quota.Tier, c quota.Ceilings) error {
	key := s.key(orgID)
	values := append([]any{fieldTier, string(tier), fieldUpdatedAt, s.nowString()}, ceilingArgs(c)...)

	txf := func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n == 0 {
			return quota.ErrLimitsNotFound
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, values...)
			return nil
		})
		return err
	}

	for range maxWatchRetries {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("redisstore: update ceilings for %d: %w", orgID, redis.TxFailedErr)
}

// AddStorageUsage adds deltaMb to current storage, clamped at zero.
func (s *Store) AddStorageUsage(ctx context.Context, orgID int64, deltaMb int64) error {
	return s.runCounter(ctx, addClampedScript, orgID, fieldCurrentStorageMb, deltaMb)
}

// AddAPICalls adds n to the calls counted in the current window.
func (s *Store) AddAPICalls(ctx context.Context, orgID int64, n int64) error {
	return s.runCounter(ctx, incrExistingScript, orgID, fieldAPICalls, n)
}

// ResetAPIWindow zeroes the call counter if the stored window is unset or older than now.
func (s *Store) ResetAPIWindow(ctx context.Context, orgID int64, now, resetAt time.Time) (bool, error) {
	res, err := resetWindowScript.Run(ctx, s.client, []string{s.key(orgID)},
		now.UnixMilli(), resetAt.UnixMilli(), s.nowString(),
	).Int64()
	if err != nil {
		return false, err
	}
	if res == -1 {
		return false, quota.ErrLimitsNotFound
	}
	return res == 1, nil
}

func (s *Store) runCounter(ctx context.Context, script *redis.Script, orgID int64, field string, delta int64) error {
	res, err := script.Run(ctx, s.client, []string{s.key(orgID)}, field, delta, s.nowString()).Int64()
	if err != nil {
		return err
	}
	if res == -1 {
		return quota.ErrLimitsNotFound
	}
	return nil
}

func (s *Store) nowString() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

// ceilingArgs encodes ceilings as HSET arguments; "" marks an unlimited ceiling.
func ceilingArgs(c quota.Ceilings) []any {
	opt := func(v *int64) string {
		if v == nil {
			return ""
		}
		return formatInt(*v)
	}
	return []any{
		fieldMaxUsers, opt(c.Users),
		fieldMaxIncidents, opt(c.Incidents),
		fieldMaxAssets, opt(c.Assets),
		fieldMaxRunbooks, opt(c.Runbooks),
		fieldMaxTemplates, opt(c.Templates),
		fieldMaxStorageMb, c.StorageMb,
		fieldAPIRateLimit, c.APIRateLimit,
	}
}
