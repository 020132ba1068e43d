package quota

import (
	"context"
	"errors"

	"github.com/opsdesk/platform/pkg/logger"
)

// EnsureLimits makes sure the organization has a limits record, creating it
// with its tier's defaults on first access. Safe to call concurrently: the
// insert is delegated to Store.CreateLimitsIfAbsent, which never duplicates rows.
func (s *Service) EnsureLimits(ctx context.Context, orgID int64) error {
	if err := validOrg(orgID); err != nil {
		return err
	}

	_, err := s.store.GetLimits(ctx, orgID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrLimitsNotFound) {
		return errors.Join(ErrFailedToLoadLimits, err)
	}

	tier, err := s.tierFor(ctx, orgID)
	if err != nil {
		return err
	}
	ceilings, _ := s.ceilingsFor(tier)

	if err := s.store.CreateLimitsIfAbsent(ctx, &OrganizationLimits{
		OrganizationID: orgID,
		Tier:           tier,
		Ceilings:       ceilings,
	}); err != nil {
		return errors.Join(ErrFailedToCreateLimits, err)
	}

	s.log.InfoContext(ctx, "organization limits initialized",
		logger.OrganizationID(orgID),
		logger.Tier(string(tier)),
	)
	return nil
}

// GetLimits returns the organization's limits record, or ErrLimitsNotFound
// when it has not been created yet.
func (s *Service) GetLimits(ctx context.Context, orgID int64) (*OrganizationLimits, error) {
	if err := validOrg(orgID); err != nil {
		return nil, err
	}

	l, err := s.store.GetLimits(ctx, orgID)
	if err != nil {
		if errors.Is(err, ErrLimitsNotFound) {
			return nil, ErrLimitsNotFound
		}
		return nil, errors.Join(ErrFailedToLoadLimits, err)
	}
	return l, nil
}

// limitsAfterEnsure reads the record that EnsureLimits guaranteed.
// A missing row here is an invariant violation, not a "no limits" state.
func (s *Service) limitsAfterEnsure(ctx context.Context, orgID int64) (*OrganizationLimits, error) {
	l, err := s.GetLimits(ctx, orgID)
	if errors.Is(err, ErrLimitsNotFound) {
		s.log.ErrorContext(ctx, "limits record missing after ensure",
			logger.OrganizationID(orgID),
		)
		return nil, ErrLimitsMissing
	}
	return l, err
}

// tierFor resolves the organization's tier, falling back to the default tier
// when the resolver has no answer or names a tier missing from the table.
func (s *Service) tierFor(ctx context.Context, orgID int64) (Tier, error) {
	tier, err := s.resolveTier(ctx, orgID)
	if err != nil {
		return "", errors.Join(ErrFailedToResolveTier, err)
	}

	if tier == "" {
		return s.defaultTier, nil
	}
	if _, ok := s.tiers[tier]; !ok {
		s.log.WarnContext(ctx, "unknown subscription tier, using default",
			logger.OrganizationID(orgID),
			logger.Tier(string(tier)),
			logger.Fallback(string(s.defaultTier)),
		)
		return s.defaultTier, nil
	}
	return tier, nil
}
