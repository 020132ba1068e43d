package quota

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements Store in process memory.
// Suitable for tests and single-instance deployments.
type MemoryStore struct {
	mu     sync.RWMutex
	limits map[int64]*OrganizationLimits
	now    func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		limits: make(map[int64]*OrganizationLimits),
		now:    time.Now,
	}
}

// GetLimits returns a copy of the stored record.
func (ms *MemoryStore) GetLimits(ctx context.Context, orgID int64) (*OrganizationLimits, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	l, ok := ms.limits[orgID]
	if !ok {
		return nil, ErrLimitsNotFound
	}
	return copyLimits(l), nil
}

// CreateLimitsIfAbsent stores a copy of limits unless the organization already has a record.
func (ms *MemoryStore) CreateLimitsIfAbsent(ctx context.Context, limits *OrganizationLimits) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, ok := ms.limits[limits.OrganizationID]; ok {
		return nil
	}

	l := copyLimits(limits)
	now := ms.now().UTC()
	l.CreatedAt, l.UpdatedAt = now, now
	ms.limits[l.OrganizationID] = l
	return nil
}

func (ms *MemoryStore) UpdateCeilings(ctx context.Context, orgID int64, tier Tier, c Ceilings) error {
	return ms.update(orgID, func(l *OrganizationLimits) {
		l.Tier = tier
		l.Ceilings = c.clone()
	})
}

func (ms *MemoryStore) AddStorageUsage(ctx context.Context, orgID int64, deltaMb int64) error {
	return ms.update(orgID, func(l *OrganizationLimits) {
		l.CurrentStorageMb = max(l.CurrentStorageMb+deltaMb, 0)
	})
}

func (ms *MemoryStore) AddAPICalls(ctx context.Context, orgID int64, n int64) error {
	return ms.update(orgID, func(l *OrganizationLimits) {
		l.APICallsThisHour += n
	})
}

func (ms *MemoryStore) ResetAPIWindow(ctx context.Context, orgID int64, now, resetAt time.Time) (bool, error) {
	var reset bool
	err := ms.update(orgID, func(l *OrganizationLimits) {
		if l.APIResetAt != nil && !now.After(*l.APIResetAt) {
			return
		}
		at := resetAt.UTC()
		l.APICallsThisHour = 0
		l.APIResetAt = &at
		reset = true
	})
	return reset, err
}

// Len returns the number of stored records.
func (ms *MemoryStore) Len() int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return len(ms.limits)
}

func (ms *MemoryStore) update(orgID int64, fn func(*OrganizationLimits)) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	l, ok := ms.limits[orgID]
	if !ok {
		return ErrLimitsNotFound
	}
	fn(l)
	l.UpdatedAt = ms.now().UTC()
	return nil
}

func copyLimits(l *OrganizationLimits) *OrganizationLimits {
	cp := *l
	cp.Ceilings = l.Ceilings.clone()
	if l.APIResetAt != nil {
		at := *l.APIResetAt
		cp.APIResetAt = &at
	}
	return &cp
}
