package quota_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/opsdesk/platform/pkg/quota"
)

var countedResources = []quota.Resource{
	quota.ResourceUsers,
	quota.ResourceIncidents,
	quota.ResourceAssets,
	quota.ResourceRunbooks,
	quota.ResourceTemplates,
}

// usageTable is a concurrency-safe source of live counts for tests.
type usageTable struct {
	mu     sync.Mutex
	counts map[quota.Resource]int64
	errs   map[quota.Resource]error
}

func newUsageTable() *usageTable {
	return &usageTable{
		counts: make(map[quota.Resource]int64),
		errs:   make(map[quota.Resource]error),
	}
}

func (u *usageTable) set(res quota.Resource, n int64) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.counts[res] = n
}

func (u *usageTable) fail(res quota.Resource, err error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.errs[res] = err
}

func (u *usageTable) registry() quota.CounterRegistry {
	reg := quota.NewRegistry()
	for _, res := range countedResources {
		reg.Register(res, func(ctx context.Context, orgID int64) (int64, error) {
			u.mu.Lock()
			defer u.mu.Unlock()
			if err := u.errs[res]; err != nil {
				return 0, err
			}
			return u.counts[res], nil
		})
	}
	return reg
}

// clock is a manually advanced time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	svc   *quota.Service
	store *quota.MemoryStore
	usage *usageTable
	clock *clock
}

// newFixture builds a service on a memory store. Organizations resolve to
// tier through the context-free resolver below.
func newFixture(t *testing.T, tier quota.Tier, opts ...quota.Option) *fixture {
	t.Helper()

	f := &fixture{
		store: quota.NewMemoryStore(),
		usage: newUsageTable(),
		clock: newClock(),
	}
	resolver := func(context.Context, int64) (quota.Tier, error) { return tier, nil }

	opts = append([]quota.Option{
		quota.WithClock(f.clock.Now),
		quota.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}, opts...)

	svc, err := quota.NewService(context.Background(), f.store, f.usage.registry(), nil, resolver, opts...)
	require.NoError(t, err)
	f.svc = svc
	return f
}
