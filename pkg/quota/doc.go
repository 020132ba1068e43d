// Package quota enforces per-organization resource quotas and the hourly API
// rate limit of the platform.
//
// Every write path that creates a governed resource calls the service before
// writing. Counts of users, incidents, assets, runbooks and templates are
// recomputed live through registered CounterFuncs on every check; storage and
// API calls are cached counters on the organization's limits record and are
// only ever changed by relative updates at the store.
//
// Key concepts:
//
//   - Tier: subscription tier mapped declaratively to Ceilings
//   - Ceilings: per-resource maximums; a nil count ceiling is unlimited
//   - OrganizationLimits: the one persisted record per organization
//   - Store: persistence of limits records (memory, Postgres, Redis)
//   - CounterFunc: live count of a resource scoped to one organization
//
// Basic usage:
//
//	counters := quota.NewRegistry()
//	counters.Register(quota.ResourceIncidents, countIncidents)
//	// ... users, assets, runbooks, templates
//
//	svc, err := quota.NewService(ctx, quota.NewMemoryStore(), counters, nil, resolveTier,
//	    quota.WithLogger(log),
//	)
//
//	// Before creating an incident
//	if err := svc.EnforceQuota(ctx, orgID, quota.ResourceIncidents); err != nil {
//	    var qe *quota.QuotaExceededError
//	    if errors.As(err, &qe) {
//	        // "quota exceeded for incidents: 100/100, see /settings/billing"
//	    }
//	    return err
//	}
//
//	// For every API request
//	if _, err := svc.EnforceRateLimit(ctx, orgID); err != nil {
//	    // errors.Is(err, quota.ErrRateLimitExceeded) carries the reset time
//	}
//
// Rate limiting is a coarse hourly window. The check and the increment are
// separate store operations, so concurrent bursts can overshoot the ceiling by
// a few calls; the window rollover is a conditional reset that tolerates races.
package quota
