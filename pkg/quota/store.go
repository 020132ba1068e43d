package quota

import (
	"context"
	"time"
)

// Store persists one OrganizationLimits record per organization.
//
// Counter methods must apply relative updates at the storage layer
// (value = value + delta) so concurrent increments are never lost.
type Store interface {
	// GetLimits returns the limits record or ErrLimitsNotFound.
	GetLimits(ctx context.Context, orgID int64) (*OrganizationLimits, error)

	// CreateLimitsIfAbsent inserts the record unless one already exists for the
	// organization. It must be guarded by a uniqueness primitive so concurrent
	// first-time calls never produce two rows. Existing rows are left untouched.
	CreateLimitsIfAbsent(ctx context.Context, limits *OrganizationLimits) error

	// UpdateCeilings replaces tier and ceilings, leaving cached counters alone.
	UpdateCeilings(ctx context.Context, orgID int64, tier Tier, c Ceilings) error

	// AddStorageUsage adds deltaMb (may be negative) to current storage, clamped at zero.
	AddStorageUsage(ctx context.Context, orgID int64, deltaMb int64) error

	// AddAPICalls adds n to the calls counted in the current window.
	AddAPICalls(ctx context.Context, orgID int64, n int64) error

	// ResetAPIWindow zeroes the API counter and sets the next reset time, but only
	// if the stored window is unset or expired as of now. Reports whether it reset.
	ResetAPIWindow(ctx context.Context, orgID int64, now, resetAt time.Time) (bool, error)
}
