package quota

import (
	"context"
	"errors"
	"time"

	"github.com/opsdesk/platform/pkg/logger"
)

// CheckRateLimit decides whether the organization may make one more API call
// in the current window. It does not count the call; see IncrementAPIUsage.
//
// When the window is unset or expired the counter is reset and a new window
// of the configured length starts now. Concurrent requests racing the
// rollover are tolerated: the store only resets a window that is still
// expired, and a request that loses the race re-reads the fresh window.
func (s *Service) CheckRateLimit(ctx context.Context, orgID int64) (*CheckResult, error) {
	if err := validOrg(orgID); err != nil {
		return nil, err
	}
	defer s.metrics.ObserveDuration("check_rate_limit", time.Now())

	if err := s.EnsureLimits(ctx, orgID); err != nil {
		return nil, err
	}
	limits, err := s.limitsAfterEnsure(ctx, orgID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if windowExpired(limits.APIResetAt, now) {
		resetAt := now.Add(s.apiWindow)
		reset, err := s.store.ResetAPIWindow(ctx, orgID, now, resetAt)
		if err != nil {
			return nil, errors.Join(ErrFailedToUpdateCounter, err)
		}

		if reset {
			s.metrics.RecordWindowReset()
			s.log.DebugContext(ctx, "api rate limit window reset",
				logger.OrganizationID(orgID),
				logger.ResetAt(resetAt),
			)
			limits.APICallsThisHour = 0
			limits.APIResetAt = &resetAt
		} else if limits, err = s.limitsAfterEnsure(ctx, orgID); err != nil {
			return nil, err
		}
	}

	resetAt := now.Add(s.apiWindow)
	if limits.APIResetAt != nil {
		resetAt = *limits.APIResetAt
	}
	result := evaluateWindow(limits.APICallsThisHour, limits.APIRateLimit, resetAt)

	s.metrics.RecordRateLimitCheck(result.Allowed)
	if !result.Allowed {
		s.log.InfoContext(ctx, "api rate limit exceeded",
			logger.OrganizationID(orgID),
			logger.Usage(result.Current, result.Limit),
			logger.ResetAt(resetAt),
		)
	}
	return result, nil
}

// IncrementAPIUsage counts one API call against the current window.
// It is decoupled from CheckRateLimit so a caller can abandon a checked request
// without consuming quota.
func (s *Service) IncrementAPIUsage(ctx context.Context, orgID int64) error {
	if err := validOrg(orgID); err != nil {
		return err
	}
	if err := s.store.AddAPICalls(ctx, orgID, 1); err != nil {
		return errors.Join(ErrFailedToUpdateCounter, err)
	}
	s.metrics.RecordCounterUpdate(ResourceAPICalls)
	return nil
}

func windowExpired(resetAt *time.Time, now time.Time) bool {
	return resetAt == nil || now.After(*resetAt)
}

func evaluateWindow(current, limit int64, resetAt time.Time) *CheckResult {
	at := resetAt
	if current >= limit {
		return &CheckResult{
			Allowed:   false,
			Current:   current,
			Limit:     limit,
			Remaining: 0,
			ResetAt:   &at,
			Err: &RateLimitExceededError{
				Current: current,
				Limit:   limit,
				ResetAt: at,
			},
		}
	}

	return &CheckResult{
		Allowed:   true,
		Current:   current,
		Limit:     limit,
		Remaining: limit - current,
		ResetAt:   &at,
	}
}
