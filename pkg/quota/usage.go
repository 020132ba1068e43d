package quota

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// GetCurrentUsage returns a fresh usage snapshot for the organization.
// Count-based resources are counted live; storage and API calls come from
// the cached counters of the limits record. API calls of an ended window read as zero.
func (s *Service) GetCurrentUsage(ctx context.Context, orgID int64) (ResourceUsage, error) {
	usage, _, err := s.snapshot(ctx, orgID)
	return usage, err
}

// snapshot ensures the limits record exists, then loads live counts and the
// limits record concurrently and merges them.
func (s *Service) snapshot(ctx context.Context, orgID int64) (ResourceUsage, *OrganizationLimits, error) {
	if err := s.EnsureLimits(ctx, orgID); err != nil {
		return ResourceUsage{}, nil, err
	}

	var (
		counts ResourceUsage
		limits *OrganizationLimits
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		counts, err = s.countAll(gctx, orgID)
		return err
	})
	g.Go(func() error {
		var err error
		limits, err = s.limitsAfterEnsure(gctx, orgID)
		return err
	})
	if err := g.Wait(); err != nil {
		return ResourceUsage{}, nil, err
	}

	counts.StorageMb = limits.CurrentStorageMb
	// An ended window is reported as empty; the reset itself happens on the next rate-limit check.
	if windowExpired(limits.APIResetAt, s.now().UTC()) {
		limits.APICallsThisHour = 0
	}
	counts.APICallsThisHour = limits.APICallsThisHour
	return counts, limits, nil
}

// countAll runs every registered counter concurrently.
// A failed count is returned as an error, never as zero usage.
func (s *Service) countAll(ctx context.Context, orgID int64) (ResourceUsage, error) {
	results := make([]int64, len(countedResources))

	g, gctx := errgroup.WithContext(ctx)
	for i, res := range countedResources {
		counter := s.counters[res]
		g.Go(func() error {
			n, err := counter(gctx, orgID)
			if err != nil {
				return errors.Join(ErrFailedToCountResourceUsage, fmt.Errorf("count %s: %w", res, err))
			}
			if n < 0 {
				return errors.Join(ErrFailedToCountResourceUsage, fmt.Errorf("count %s: negative result %d", res, n))
			}
			results[i] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ResourceUsage{}, err
	}

	var usage ResourceUsage
	for i, res := range countedResources {
		usage.set(res, results[i])
	}
	return usage, nil
}
