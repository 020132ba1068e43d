package quota_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsdesk/platform/pkg/quota"
)

func TestDefaultTiers(t *testing.T) {
	t.Parallel()

	tiers := quota.DefaultTiers()
	require.NoError(t, quota.ValidateTiers(tiers, quota.TierStarter))

	starter := tiers[quota.TierStarter]
	assert.Equal(t, int64(5), *starter.Users)
	assert.Equal(t, int64(100), *starter.Incidents)
	assert.Equal(t, int64(50), *starter.Assets)
	assert.Equal(t, int64(10), *starter.Runbooks)
	assert.Equal(t, int64(5), *starter.Templates)
	assert.Equal(t, int64(1024), starter.StorageMb)
	assert.Equal(t, int64(1000), starter.APIRateLimit)

	enterprise := tiers[quota.TierEnterprise]
	assert.Nil(t, enterprise.Users)
	assert.Nil(t, enterprise.Templates)
	assert.Equal(t, int64(102400), enterprise.StorageMb)
	assert.Equal(t, int64(100000), enterprise.APIRateLimit)
}

func TestInMemTierSource_IsolatesCallers(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tiers := quota.DefaultTiers()
	src := quota.NewInMemTierSource(tiers)
	*tiers[quota.TierStarter].Users = 999

	loaded, err := src.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), *loaded[quota.TierStarter].Users)

	*loaded[quota.TierStarter].Users = 1
	again, err := src.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), *again[quota.TierStarter].Users)
}

func TestYAMLTierSource(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("parses ceilings and unlimited values", func(t *testing.T) {
		t.Parallel()
		src := quota.NewYAMLTierSource(strings.NewReader(`
starter:
  max_users: 3
  max_incidents: 50
  max_assets: 20
  max_runbooks: 5
  max_templates: 2
  max_storage_mb: 512
  api_rate_limit: 500
enterprise:
  max_users: null
  max_storage_mb: 204800
  api_rate_limit: 200000
`))
		tiers, err := src.Load(ctx)
		require.NoError(t, err)
		require.Len(t, tiers, 2)

		assert.Equal(t, int64(3), *tiers[quota.TierStarter].Users)
		assert.Equal(t, int64(512), tiers[quota.TierStarter].StorageMb)
		assert.Nil(t, tiers[quota.TierEnterprise].Users)
		assert.Nil(t, tiers[quota.TierEnterprise].Incidents)
		assert.Equal(t, int64(200000), tiers[quota.TierEnterprise].APIRateLimit)
	})

	t.Run("empty document", func(t *testing.T) {
		t.Parallel()
		_, err := quota.NewYAMLTierSource(strings.NewReader("")).Load(ctx)
		assert.ErrorIs(t, err, quota.ErrInvalidTierConfiguration)
	})

	t.Run("malformed document", func(t *testing.T) {
		t.Parallel()
		_, err := quota.NewYAMLTierSource(strings.NewReader("starter: [1, 2")).Load(ctx)
		assert.ErrorIs(t, err, quota.ErrInvalidTierConfiguration)
	})

	t.Run("rejects misspelled keys", func(t *testing.T) {
		t.Parallel()
		_, err := quota.NewYAMLTierSource(strings.NewReader(`
starter:
  max_user: 5
  max_incidnts: 100
  max_storage_mb: 1024
  api_rate_limit: 1000
`)).Load(ctx)
		assert.ErrorIs(t, err, quota.ErrInvalidTierConfiguration)
		assert.ErrorContains(t, err, "max_user")
	})

	t.Run("requires bounded ceilings", func(t *testing.T) {
		t.Parallel()
		tests := []struct {
			name string
			doc  string
			key  string
		}{
			{
				name: "missing storage",
				doc:  "starter:\n  max_users: 5\n  api_rate_limit: 1000\n",
				key:  "max_storage_mb",
			},
			{
				name: "missing api rate",
				doc:  "starter:\n  max_users: 5\n  max_storage_mb: 1024\n",
				key:  "api_rate_limit",
			},
			{
				name: "empty tier",
				doc:  "starter:\n",
				key:  "max_storage_mb",
			},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				t.Parallel()
				_, err := quota.NewYAMLTierSource(strings.NewReader(tt.doc)).Load(ctx)
				assert.ErrorIs(t, err, quota.ErrInvalidTierConfiguration)
				assert.ErrorContains(t, err, tt.key)
			})
		}
	})

	t.Run("explicit zero is kept", func(t *testing.T) {
		t.Parallel()
		tiers, err := quota.NewYAMLTierSource(strings.NewReader(
			"frozen:\n  max_users: 0\n  max_storage_mb: 0\n  api_rate_limit: 0\n",
		)).Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(0), *tiers["frozen"].Users)
		assert.Zero(t, tiers["frozen"].StorageMb)
	})

	t.Run("drives the service", func(t *testing.T) {
		t.Parallel()
		src := quota.NewYAMLTierSource(strings.NewReader(`
starter:
  max_users: 1
  max_incidents: 1
  max_assets: 1
  max_runbooks: 1
  max_templates: 1
  max_storage_mb: 1
  api_rate_limit: 1
`))
		usage := newUsageTable()
		usage.set(quota.ResourceUsers, 1)

		svc, err := quota.NewService(ctx, quota.NewMemoryStore(), usage.registry(), src, nil)
		require.NoError(t, err)

		err = svc.EnforceQuota(ctx, 7, quota.ResourceUsers)
		assert.ErrorIs(t, err, quota.ErrQuotaExceeded)
	})
}

func TestValidateTiers(t *testing.T) {
	t.Parallel()

	negative := quota.DefaultTiers()
	pro := negative[quota.TierProfessional]
	pro.Assets = quota.Limit(-5)
	negative[quota.TierProfessional] = pro

	negativeStorage := quota.DefaultTiers()
	ent := negativeStorage[quota.TierEnterprise]
	ent.StorageMb = -1
	negativeStorage[quota.TierEnterprise] = ent

	emptyName := quota.DefaultTiers()
	emptyName[""] = quota.Ceilings{}

	tests := []struct {
		name        string
		tiers       map[quota.Tier]quota.Ceilings
		defaultTier quota.Tier
	}{
		{name: "no tiers", tiers: nil, defaultTier: quota.TierStarter},
		{name: "missing default", tiers: quota.DefaultTiers(), defaultTier: "free"},
		{name: "negative count ceiling", tiers: negative, defaultTier: quota.TierStarter},
		{name: "negative storage ceiling", tiers: negativeStorage, defaultTier: quota.TierStarter},
		{name: "empty tier name", tiers: emptyName, defaultTier: quota.TierStarter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := quota.ValidateTiers(tt.tiers, tt.defaultTier)
			assert.ErrorIs(t, err, quota.ErrInvalidTierConfiguration)
		})
	}
}

type brokenSource struct{}

func (brokenSource) Load(context.Context) (map[quota.Tier]quota.Ceilings, error) {
	return nil, errors.New("s3 object missing")
}

func TestNewService(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("panics without a store", func(t *testing.T) {
		t.Parallel()
		assert.Panics(t, func() {
			_, _ = quota.NewService(ctx, nil, newUsageTable().registry(), nil, nil)
		})
	})

	t.Run("requires every counter", func(t *testing.T) {
		t.Parallel()
		reg := quota.NewRegistry()
		reg.Register(quota.ResourceUsers, func(context.Context, int64) (int64, error) { return 0, nil })

		_, err := quota.NewService(ctx, quota.NewMemoryStore(), reg, nil, nil)
		assert.ErrorIs(t, err, quota.ErrNoCounterRegistered)
	})

	t.Run("tier source failure", func(t *testing.T) {
		t.Parallel()
		_, err := quota.NewService(ctx, quota.NewMemoryStore(), newUsageTable().registry(), brokenSource{}, nil)
		assert.ErrorIs(t, err, quota.ErrFailedToLoadTiers)
	})

	t.Run("default tier must exist", func(t *testing.T) {
		t.Parallel()
		_, err := quota.NewService(ctx, quota.NewMemoryStore(), newUsageTable().registry(), nil, nil,
			quota.WithDefaultTier("free"),
		)
		assert.ErrorIs(t, err, quota.ErrInvalidTierConfiguration)
	})

	t.Run("config overrides defaults", func(t *testing.T) {
		t.Parallel()
		usage := newUsageTable()
		usage.set(quota.ResourceUsers, 25)

		svc, err := quota.NewService(ctx, quota.NewMemoryStore(), usage.registry(), nil, nil,
			quota.WithConfig(quota.Config{
				UpgradeURL:  "https://opsdesk.example/upgrade",
				DefaultTier: "professional",
			}),
		)
		require.NoError(t, err)

		err = svc.EnforceQuota(ctx, 7, quota.ResourceUsers)
		var qe *quota.QuotaExceededError
		require.ErrorAs(t, err, &qe)
		assert.Equal(t, int64(25), qe.Limit)
		assert.Equal(t, "https://opsdesk.example/upgrade", qe.UpgradeHint)
	})

	t.Run("tiers are copied", func(t *testing.T) {
		t.Parallel()
		svc, err := quota.NewService(ctx, quota.NewMemoryStore(), newUsageTable().registry(), nil, nil)
		require.NoError(t, err)

		tiers := svc.Tiers()
		*tiers[quota.TierStarter].Users = 500
		assert.Equal(t, int64(5), *svc.Tiers()[quota.TierStarter].Users)
	})
}

func TestCounterRegistry_Register(t *testing.T) {
	t.Parallel()

	reg := quota.NewRegistry()
	assert.Panics(t, func() { reg.Register(quota.ResourceIncidents, nil) })
	assert.Panics(t, func() {
		reg.Register(quota.ResourceStorage, func(context.Context, int64) (int64, error) { return 0, nil })
	})
	assert.Panics(t, func() {
		reg.Register(quota.ResourceAPICalls, func(context.Context, int64) (int64, error) { return 0, nil })
	})
}
