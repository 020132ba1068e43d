package quota_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsdesk/platform/pkg/quota"
)

func TestMetrics(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	reg := prometheus.NewRegistry()
	f := newFixture(t, quota.TierStarter, quota.WithMetrics(quota.NewMetrics(reg)))
	f.usage.set(quota.ResourceTemplates, 5)

	_, err := f.svc.CheckQuota(ctx, 7, quota.ResourceIncidents)
	require.NoError(t, err)
	_, err = f.svc.CheckQuota(ctx, 7, quota.ResourceTemplates)
	require.NoError(t, err)
	_, err = f.svc.EnforceRateLimit(ctx, 7)
	require.NoError(t, err)

	n, err := testutil.GatherAndCount(reg, "opsdesk_quota_checks_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	families, err := reg.Gather()
	require.NoError(t, err)

	values := make(map[string]float64)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			key := mf.GetName()
			for _, lp := range m.GetLabel() {
				key += "," + lp.GetName() + "=" + lp.GetValue()
			}
			if c := m.GetCounter(); c != nil {
				values[key] = c.GetValue()
			}
		}
	}

	assert.Equal(t, float64(1), values["opsdesk_quota_checks_total,resource=incidents,result=allowed"])
	assert.Equal(t, float64(1), values["opsdesk_quota_checks_total,resource=templates,result=denied"])
	assert.Equal(t, float64(1), values["opsdesk_quota_rate_limit_checks_total,result=allowed"])
	assert.Equal(t, float64(1), values["opsdesk_quota_counter_updates_total,resource=api_calls"])
	assert.Equal(t, float64(1), values["opsdesk_quota_rate_limit_window_resets_total"])
}

func TestMetrics_NilIsSafe(t *testing.T) {
	t.Parallel()

	var m *quota.Metrics
	assert.NotPanics(t, func() {
		m.RecordQuotaCheck(quota.ResourceUsers, true)
		m.RecordRateLimitCheck(false)
		m.RecordWindowReset()
		m.RecordCounterUpdate(quota.ResourceStorage)
	})
}
