package quota

import (
	"context"
	"errors"
	"fmt"

	"github.com/opsdesk/platform/pkg/logger"
)

// CanDowngrade reports whether the organization's current usage fits the
// ceilings of target. It returns ErrDowngradeNotPossible joined with a
// *QuotaExceededError for the first resource that does not fit.
// API calls are not checked because they reset with the window.
func (s *Service) CanDowngrade(ctx context.Context, orgID int64, target Tier) error {
	ceilings, ok := s.ceilingsFor(target)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTier, target)
	}
	if err := validOrg(orgID); err != nil {
		return err
	}

	usage, _, err := s.snapshot(ctx, orgID)
	if err != nil {
		return err
	}

	for _, res := range summaryResources {
		if res == ResourceAPICalls {
			continue
		}
		limit, _ := ceilings.For(res)
		if limit == nil {
			continue
		}
		if current, _ := usage.For(res); current > *limit {
			return errors.Join(ErrDowngradeNotPossible, &QuotaExceededError{
				Resource:    res,
				Current:     current,
				Limit:       *limit,
				UpgradeHint: s.upgradeHint,
			})
		}
	}
	return nil
}

// ChangeTier applies the ceilings of tier to the organization's limits record.
// Moving to a tier whose ceilings are below current usage is refused.
// Cached counters and the rate-limit window are kept.
func (s *Service) ChangeTier(ctx context.Context, orgID int64, tier Tier) error {
	if err := s.CanDowngrade(ctx, orgID, tier); err != nil {
		return err
	}

	ceilings, _ := s.ceilingsFor(tier)
	if err := s.store.UpdateCeilings(ctx, orgID, tier, ceilings); err != nil {
		return errors.Join(ErrFailedToUpdateLimits, err)
	}

	s.log.InfoContext(ctx, "organization tier changed",
		logger.OrganizationID(orgID),
		logger.Tier(string(tier)),
	)
	return nil
}
