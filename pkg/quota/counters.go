package quota

import (
	"context"
	"errors"
	"fmt"

	"github.com/opsdesk/platform/pkg/logger"
)

// AddStorageUsage adjusts the cached storage counter by deltaMb.
// Positive values record uploads, negative values record deletions;
// the stored value never drops below zero. Call EnforceQuotaN with
// ResourceStorage first when the upload must respect the quota.
func (s *Service) AddStorageUsage(ctx context.Context, orgID int64, deltaMb int64) error {
	if err := validOrg(orgID); err != nil {
		return err
	}
	if deltaMb == 0 {
		return nil
	}
	if err := s.EnsureLimits(ctx, orgID); err != nil {
		return err
	}

	if err := s.store.AddStorageUsage(ctx, orgID, deltaMb); err != nil {
		s.log.ErrorContext(ctx, "failed to update storage usage",
			logger.OrganizationID(orgID),
			logger.Error(err),
		)
		return errors.Join(ErrFailedToUpdateCounter, err)
	}
	s.metrics.RecordCounterUpdate(ResourceStorage)
	return nil
}

// SubtractStorageUsage releases mb of storage.
func (s *Service) SubtractStorageUsage(ctx context.Context, orgID int64, mb int64) error {
	if mb <= 0 {
		return fmt.Errorf("%w: must be positive, got %d", ErrInvalidIncrement, mb)
	}
	return s.AddStorageUsage(ctx, orgID, -mb)
}
