package quota

import (
	"errors"
	"fmt"
	"time"
)

// Domain errors for quota operations
var (
	// Admission denials
	ErrQuotaExceeded     = errors.New("quota.errors.quota_exceeded")
	ErrRateLimitExceeded = errors.New("quota.errors.rate_limit_exceeded")

	// Caller errors
	ErrInvalidIncrement     = errors.New("quota.errors.invalid_increment")
	ErrInvalidResource      = errors.New("quota.errors.invalid_resource")
	ErrInvalidOrganization  = errors.New("quota.errors.invalid_organization")
	ErrDowngradeNotPossible = errors.New("quota.errors.downgrade_not_possible")

	// Tier configuration
	ErrUnknownTier              = errors.New("quota.errors.unknown_tier")
	ErrInvalidTierConfiguration = errors.New("quota.errors.invalid_tier_configuration")
	ErrFailedToLoadTiers        = errors.New("quota.errors.failed_to_load_tiers")
	ErrNoCounterRegistered      = errors.New("quota.errors.no_counter_registered")

	// Store
	ErrLimitsNotFound = errors.New("quota.errors.limits_not_found")

	// Invariant violations: the limits row vanished after EnsureLimits.
	ErrLimitsMissing = errors.New("quota.errors.limits_missing")

	// Data layer
	ErrFailedToLoadLimits         = errors.New("quota.errors.failed_to_load_limits")
	ErrFailedToCreateLimits       = errors.New("quota.errors.failed_to_create_limits")
	ErrFailedToCountResourceUsage = errors.New("quota.errors.failed_to_count_resource_usage")
	ErrFailedToUpdateCounter      = errors.New("quota.errors.failed_to_update_counter")
	ErrFailedToUpdateLimits       = errors.New("quota.errors.failed_to_update_limits")
	ErrFailedToResolveTier        = errors.New("quota.errors.failed_to_resolve_tier")
)

// QuotaExceededError is the structured denial of a count or storage quota.
type QuotaExceededError struct {
	Resource    Resource `json:"resource_type"`
	Current     int64    `json:"current"`
	Limit       int64    `json:"limit"`
	UpgradeHint string   `json:"upgrade_hint,omitempty"`
}

func (e *QuotaExceededError) Error() string {
	msg := fmt.Sprintf("quota exceeded for %s: %d/%d", e.Resource, e.Current, e.Limit)
	if e.UpgradeHint != "" {
		msg += ", see " + e.UpgradeHint
	}
	return msg
}

// Is lets errors.Is(err, ErrQuotaExceeded) match any quota denial.
func (e *QuotaExceededError) Is(target error) bool {
	return target == ErrQuotaExceeded
}

// RateLimitExceededError is the structured denial of the hourly API call ceiling.
type RateLimitExceededError struct {
	Current int64     `json:"current"`
	Limit   int64     `json:"limit"`
	ResetAt time.Time `json:"reset_at"`
}

func (e *RateLimitExceededError) Error() string {
	return fmt.Sprintf("api rate limit exceeded: %d/%d, try again after %s",
		e.Current, e.Limit, e.ResetAt.UTC().Format(time.RFC3339))
}

// Is lets errors.Is(err, ErrRateLimitExceeded) match any rate-limit denial.
func (e *RateLimitExceededError) Is(target error) bool {
	return target == ErrRateLimitExceeded
}

// RetryAfter returns how long the caller should wait, relative to now.
func (e *RateLimitExceededError) RetryAfter(now time.Time) time.Duration {
	if d := e.ResetAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// IsDenial reports whether err is an admission denial rather than a failure.
func IsDenial(err error) bool {
	return errors.Is(err, ErrQuotaExceeded) || errors.Is(err, ErrRateLimitExceeded)
}
