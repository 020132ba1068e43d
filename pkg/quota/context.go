package quota

import "context"

type orgIDCtxKey struct{}

type tierCtxKey struct{}

// WithOrganizationID stores the current organization ID in the context.
func WithOrganizationID(ctx context.Context, orgID int64) context.Context {
	return context.WithValue(ctx, orgIDCtxKey{}, orgID)
}

// OrganizationIDFromContext retrieves the current organization ID, if present.
func OrganizationIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(orgIDCtxKey{}).(int64)
	return id, ok && id > 0
}

// WithTier stores the organization's subscription tier in the context.
func WithTier(ctx context.Context, tier Tier) context.Context {
	return context.WithValue(ctx, tierCtxKey{}, tier)
}

// TierFromContext retrieves the subscription tier, if present.
func TierFromContext(ctx context.Context) (Tier, bool) {
	tier, ok := ctx.Value(tierCtxKey{}).(Tier)
	return tier, ok
}

// TierContextResolver is the default resolver: it reads the tier from context.
// An empty tier is returned when none is set, which the service maps to its default tier.
func TierContextResolver(ctx context.Context, _ int64) (Tier, error) {
	tier, _ := TierFromContext(ctx)
	return tier, nil
}
