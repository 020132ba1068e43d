package quota

import "context"

// Enforcer is the admission surface used by write paths.
type Enforcer interface {
	EnforceQuota(ctx context.Context, orgID int64, res Resource) error
	EnforceQuotaN(ctx context.Context, orgID int64, res Resource, n int64) error
	EnforceRateLimit(ctx context.Context, orgID int64) (*CheckResult, error)
}

var _ Enforcer = (*Service)(nil)

// EnforceQuota returns a *QuotaExceededError when creating one more res would
// exceed the organization's quota. Callers must not write anything after a denial.
func (s *Service) EnforceQuota(ctx context.Context, orgID int64, res Resource) error {
	return s.EnforceQuotaN(ctx, orgID, res, 1)
}

// EnforceQuotaN is EnforceQuota for n units.
func (s *Service) EnforceQuotaN(ctx context.Context, orgID int64, res Resource, n int64) error {
	result, err := s.CheckQuotaN(ctx, orgID, res, n)
	if err != nil {
		return err
	}
	if !result.Allowed {
		return result.Err
	}
	return nil
}

// EnforceRateLimit checks the API rate limit and, when allowed, counts the call.
// On denial it returns the result together with a *RateLimitExceededError.
// The returned result reflects the counted call so it can feed response headers.
//
// Check and increment are two store operations; concurrent bursts may overshoot
// the limit slightly.
func (s *Service) EnforceRateLimit(ctx context.Context, orgID int64) (*CheckResult, error) {
	result, err := s.CheckRateLimit(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if !result.Allowed {
		return result, result.Err
	}

	if err := s.IncrementAPIUsage(ctx, orgID); err != nil {
		return nil, err
	}
	result.Current++
	result.Remaining--
	return result, nil
}
