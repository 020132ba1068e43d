package quota_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsdesk/platform/pkg/quota"
)

func TestEnsureLimits_ConcurrentFirstAccessCreatesOneRecord(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, quota.TierProfessional)

	var wg sync.WaitGroup
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, f.svc.EnsureLimits(ctx, 7))
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, f.store.Len())

	l, err := f.svc.GetLimits(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, quota.TierProfessional, l.Tier)
	assert.Equal(t, int64(25), *l.Users)
	assert.Equal(t, int64(10240), l.StorageMb)
	assert.Nil(t, l.APIResetAt)
}

func TestEnsureLimits_DoesNotOverwriteExistingRecord(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, quota.TierStarter)

	require.NoError(t, f.svc.AddStorageUsage(ctx, 7, 300))
	require.NoError(t, f.svc.EnsureLimits(ctx, 7))

	l, err := f.svc.GetLimits(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(300), l.CurrentStorageMb)
}

func TestGetLimits_NotCreatedYet(t *testing.T) {
	t.Parallel()
	f := newFixture(t, quota.TierStarter)

	_, err := f.svc.GetLimits(context.Background(), 7)
	assert.ErrorIs(t, err, quota.ErrLimitsNotFound)
}

func TestEnsureLimits_TierResolution(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("tier from context", func(t *testing.T) {
		t.Parallel()
		svc, err := quota.NewService(ctx, quota.NewMemoryStore(), newUsageTable().registry(), nil, nil)
		require.NoError(t, err)

		require.NoError(t, svc.EnsureLimits(quota.WithTier(ctx, quota.TierEnterprise), 7))
		l, err := svc.GetLimits(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, quota.TierEnterprise, l.Tier)
		assert.Nil(t, l.Incidents)
	})

	t.Run("empty tier uses the default", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, "")
		require.NoError(t, f.svc.EnsureLimits(ctx, 7))
		l, err := f.svc.GetLimits(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, quota.TierStarter, l.Tier)
	})

	t.Run("unknown tier falls back with a warning", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		log := slog.New(slog.NewJSONHandler(&buf, nil))
		resolver := func(context.Context, int64) (quota.Tier, error) { return "platinum", nil }

		svc, err := quota.NewService(ctx, quota.NewMemoryStore(), newUsageTable().registry(), nil, resolver,
			quota.WithLogger(log),
			quota.WithDefaultTier(quota.TierProfessional),
		)
		require.NoError(t, err)

		require.NoError(t, svc.EnsureLimits(ctx, 7))
		l, err := svc.GetLimits(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, quota.TierProfessional, l.Tier)
		assert.Contains(t, buf.String(), `"level":"WARN"`)
		assert.Contains(t, buf.String(), "platinum")
	})

	t.Run("resolver failure propagates", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("organizations table unavailable")
		store := quota.NewMemoryStore()
		resolver := func(context.Context, int64) (quota.Tier, error) { return "", boom }

		svc, err := quota.NewService(ctx, store, newUsageTable().registry(), nil, resolver)
		require.NoError(t, err)

		err = svc.EnsureLimits(ctx, 7)
		assert.ErrorIs(t, err, quota.ErrFailedToResolveTier)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 0, store.Len())
	})
}

// failingStore fails selected operations.
type failingStore struct {
	*quota.MemoryStore
	getErr    error
	createErr error
	addErr    error
	vanish    bool
}

func (s *failingStore) GetLimits(ctx context.Context, orgID int64) (*quota.OrganizationLimits, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	if s.vanish {
		return nil, quota.ErrLimitsNotFound
	}
	return s.MemoryStore.GetLimits(ctx, orgID)
}

func (s *failingStore) CreateLimitsIfAbsent(ctx context.Context, l *quota.OrganizationLimits) error {
	if s.createErr != nil {
		return s.createErr
	}
	return s.MemoryStore.CreateLimitsIfAbsent(ctx, l)
}

func (s *failingStore) AddStorageUsage(ctx context.Context, orgID int64, deltaMb int64) error {
	if s.addErr != nil {
		return s.addErr
	}
	return s.MemoryStore.AddStorageUsage(ctx, orgID, deltaMb)
}

func TestStoreFailures(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	boom := errors.New("connection refused")

	newSvc := func(t *testing.T, store quota.Store) *quota.Service {
		svc, err := quota.NewService(ctx, store, newUsageTable().registry(), nil, nil)
		require.NoError(t, err)
		return svc
	}

	t.Run("load failure", func(t *testing.T) {
		t.Parallel()
		svc := newSvc(t, &failingStore{MemoryStore: quota.NewMemoryStore(), getErr: boom})

		_, err := svc.CheckQuota(ctx, 7, quota.ResourceIncidents)
		assert.ErrorIs(t, err, quota.ErrFailedToLoadLimits)
		assert.ErrorIs(t, err, boom)
		assert.False(t, quota.IsDenial(err))
	})

	t.Run("create failure", func(t *testing.T) {
		t.Parallel()
		svc := newSvc(t, &failingStore{MemoryStore: quota.NewMemoryStore(), createErr: boom})

		err := svc.EnsureLimits(ctx, 7)
		assert.ErrorIs(t, err, quota.ErrFailedToCreateLimits)
	})

	t.Run("record missing after ensure", func(t *testing.T) {
		t.Parallel()
		svc := newSvc(t, &failingStore{MemoryStore: quota.NewMemoryStore(), vanish: true})

		_, err := svc.CheckRateLimit(ctx, 7)
		assert.ErrorIs(t, err, quota.ErrLimitsMissing)
	})

	t.Run("counter update failure", func(t *testing.T) {
		t.Parallel()
		svc := newSvc(t, &failingStore{MemoryStore: quota.NewMemoryStore(), addErr: boom})

		err := svc.AddStorageUsage(ctx, 7, 10)
		assert.ErrorIs(t, err, quota.ErrFailedToUpdateCounter)
		assert.ErrorIs(t, err, boom)
	})
}
