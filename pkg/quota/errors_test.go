package quota_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsdesk/platform/pkg/quota"
)

func TestQuotaExceededError(t *testing.T) {
	t.Parallel()

	err := &quota.QuotaExceededError{
		Resource:    quota.ResourceIncidents,
		Current:     100,
		Limit:       100,
		UpgradeHint: "/settings/billing",
	}
	assert.Equal(t, "quota exceeded for incidents: 100/100, see /settings/billing", err.Error())
	assert.ErrorIs(t, fmt.Errorf("create incident: %w", err), quota.ErrQuotaExceeded)
	assert.NotErrorIs(t, err, quota.ErrRateLimitExceeded)
	assert.True(t, quota.IsDenial(err))

	data, jerr := json.Marshal(err)
	require.NoError(t, jerr)
	assert.JSONEq(t, `{"resource_type":"incidents","current":100,"limit":100,"upgrade_hint":"/settings/billing"}`, string(data))
}

func TestRateLimitExceededError(t *testing.T) {
	t.Parallel()

	reset := time.Date(2025, 3, 1, 13, 0, 0, 0, time.UTC)
	err := &quota.RateLimitExceededError{Current: 1000, Limit: 1000, ResetAt: reset}

	assert.Equal(t, "api rate limit exceeded: 1000/1000, try again after 2025-03-01T13:00:00Z", err.Error())
	assert.ErrorIs(t, err, quota.ErrRateLimitExceeded)
	assert.True(t, quota.IsDenial(err))
	assert.Equal(t, 15*time.Minute, err.RetryAfter(reset.Add(-15*time.Minute)))
	assert.Zero(t, err.RetryAfter(reset.Add(time.Second)))
}

func TestIsDenial(t *testing.T) {
	t.Parallel()

	assert.False(t, quota.IsDenial(nil))
	assert.False(t, quota.IsDenial(errors.Join(quota.ErrFailedToLoadLimits, errors.New("timeout"))))
	assert.True(t, quota.IsDenial(errors.Join(quota.ErrDowngradeNotPossible, &quota.QuotaExceededError{})))
}
