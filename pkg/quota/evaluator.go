package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/opsdesk/platform/pkg/logger"
)

// CheckQuota decides whether the organization may create one more res.
func (s *Service) CheckQuota(ctx context.Context, orgID int64, res Resource) (*CheckResult, error) {
	return s.CheckQuotaN(ctx, orgID, res, 1)
}

// CheckQuotaN decides whether the organization may add n units of res.
// It performs no writes besides the lazy creation of the limits record.
func (s *Service) CheckQuotaN(ctx context.Context, orgID int64, res Resource, n int64) (*CheckResult, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: must be positive, got %d", ErrInvalidIncrement, n)
	}
	if !res.Governed() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidResource, res)
	}
	if err := validOrg(orgID); err != nil {
		return nil, err
	}
	defer s.metrics.ObserveDuration("check_quota", time.Now())

	usage, limits, err := s.snapshot(ctx, orgID)
	if err != nil {
		s.log.ErrorContext(ctx, "quota check failed",
			logger.OrganizationID(orgID),
			logger.Resource(string(res)),
			logger.Error(err),
		)
		return nil, err
	}

	current, _ := usage.For(res)
	limit, _ := limits.Ceilings.For(res)
	result := evaluate(res, current, limit, n, s.upgradeHint)

	s.metrics.RecordQuotaCheck(res, result.Allowed)
	if !result.Allowed {
		s.log.InfoContext(ctx, "quota exceeded",
			logger.OrganizationID(orgID),
			logger.Resource(string(res)),
			logger.Usage(current, result.Limit),
		)
	}
	return result, nil
}

// evaluate is the pure admission rule: unlimited never denies, otherwise
// current+n must not exceed the limit.
func evaluate(res Resource, current int64, limit *int64, n int64, hint string) *CheckResult {
	if limit == nil {
		return &CheckResult{
			Allowed:   true,
			Current:   current,
			Limit:     Unlimited,
			Remaining: Unlimited,
		}
	}

	// n > limit-current is current+n > limit without overflow.
	if n > *limit-current {
		return &CheckResult{
			Allowed:   false,
			Current:   current,
			Limit:     *limit,
			Remaining: max(*limit-current, 0),
			Err: &QuotaExceededError{
				Resource:    res,
				Current:     current,
				Limit:       *limit,
				UpgradeHint: hint,
			},
		}
	}

	// Remaining is what is left once the n units are created.
	return &CheckResult{
		Allowed:   true,
		Current:   current,
		Limit:     *limit,
		Remaining: *limit - current - n,
	}
}
