package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/opsdesk/platform/pkg/pg"
	"github.com/opsdesk/platform/pkg/quota"
)

// ErrOrganizationNotFound is returned by TierResolver for unknown organizations.
var ErrOrganizationNotFound = errors.New("pgstore: organization not found")

// countQueries hold one live count per count-based resource.
// Soft-deleted rows do not consume quota.
var countQueries = map[quota.Resource]string{
	quota.ResourceUsers:     `SELECT count(*) FROM organization_members WHERE organization_id = $1 AND deleted_at IS NULL`,
	quota.ResourceIncidents: `SELECT count(*) FROM incidents WHERE organization_id = $1 AND deleted_at IS NULL`,
	quota.ResourceAssets:    `SELECT count(*) FROM assets WHERE organization_id = $1 AND deleted_at IS NULL`,
	quota.ResourceRunbooks:  `SELECT count(*) FROM runbooks WHERE organization_id = $1 AND deleted_at IS NULL`,
	quota.ResourceTemplates: `SELECT count(*) FROM templates WHERE organization_id = $1 AND deleted_at IS NULL`,
}

// Counters returns a registry with a SQL counter for every count-based resource.
func Counters(db DB) quota.CounterRegistry {
	reg := quota.NewRegistry()
	for res, query := range countQueries {
		reg.Register(res, countFunc(db, query))
	}
	return reg
}

func countFunc(db DB, query string) quota.CounterFunc {
	return func(ctx context.Context, orgID int64) (int64, error) {
		var n int64
		if err := db.QueryRow(ctx, query, orgID).Scan(&n); err != nil {
			return 0, err
		}
		return n, nil
	}
}

const selectTier = `SELECT subscription_tier FROM organizations WHERE id = $1`

// TierResolver reads the organization's subscription tier.
// A NULL tier resolves to "" and the service falls back to its default tier.
func TierResolver(db DB) quota.TierResolver {
	return func(ctx context.Context, orgID int64) (quota.Tier, error) {
		var tier *string
		if err := db.QueryRow(ctx, selectTier, orgID).Scan(&tier); err != nil {
			if pg.IsNotFoundError(err) {
				return "", fmt.Errorf("%w: %d", ErrOrganizationNotFound, orgID)
			}
			return "", err
		}
		if tier == nil {
			return "", nil
		}
		return quota.Tier(*tier), nil
	}
}
