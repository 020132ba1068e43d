package quota

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"sync"

	"gopkg.in/yaml.v3"
)

// Tier identifies a subscription tier.
type Tier string

// Built-in tiers, entry to top.
const (
	TierStarter      Tier = "starter"
	TierProfessional Tier = "professional"
	TierEnterprise   Tier = "enterprise"
)

// TierResolver returns the subscription tier of an organization.
type TierResolver func(ctx context.Context, orgID int64) (Tier, error)

// TierSource defines how the tier table is loaded into the service.
type TierSource interface {
	Load(ctx context.Context) (map[Tier]Ceilings, error)
}

// DefaultTiers returns the built-in tier table.
// The top tier leaves count-based resources unlimited but still bounds storage and API rate.
func DefaultTiers() map[Tier]Ceilings {
	return map[Tier]Ceilings{
		TierStarter: {
			Users:        Limit(5),
			Incidents:    Limit(100),
			Assets:       Limit(50),
			Runbooks:     Limit(10),
			Templates:    Limit(5),
			StorageMb:    1024,
			APIRateLimit: 1000,
		},
		TierProfessional: {
			Users:        Limit(25),
			Incidents:    Limit(1000),
			Assets:       Limit(500),
			Runbooks:     Limit(100),
			Templates:    Limit(50),
			StorageMb:    10240,
			APIRateLimit: 10000,
		},
		TierEnterprise: {
			StorageMb:    102400,
			APIRateLimit: 100000,
		},
	}
}

type inMemTierSource struct {
	mu    sync.RWMutex
	tiers map[Tier]Ceilings
}

// NewInMemTierSource returns a TierSource holding a deep copy of tiers.
func NewInMemTierSource(tiers map[Tier]Ceilings) TierSource {
	return &inMemTierSource{tiers: cloneTiers(tiers)}
}

// Load returns a copy of the tier table.
func (s *inMemTierSource) Load(ctx context.Context) (map[Tier]Ceilings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneTiers(s.tiers), nil
}

type yamlTierSource struct {
	r io.Reader
}

// NewYAMLTierSource reads the tier table from YAML:
//
//	starter:
//	  max_users: 5
//	  max_incidents: 100
//	  max_storage_mb: 1024
//	  api_rate_limit: 1000
//	enterprise:
//	  max_storage_mb: 102400
//	  api_rate_limit: 100000
//
// Omitted or null count ceilings are unlimited. Unknown keys are rejected,
// and every tier must set max_storage_mb and api_rate_limit.
func NewYAMLTierSource(r io.Reader) TierSource {
	return &yamlTierSource{r: r}
}

// yamlCeilings mirrors Ceilings with the always-bounded fields as pointers
// so a missing key can be told apart from an explicit zero.
type yamlCeilings struct {
	Users        *int64 `yaml:"max_users"`
	Incidents    *int64 `yaml:"max_incidents"`
	Assets       *int64 `yaml:"max_assets"`
	Runbooks     *int64 `yaml:"max_runbooks"`
	Templates    *int64 `yaml:"max_templates"`
	StorageMb    *int64 `yaml:"max_storage_mb"`
	APIRateLimit *int64 `yaml:"api_rate_limit"`
}

func (s *yamlTierSource) Load(ctx context.Context) (map[Tier]Ceilings, error) {
	dec := yaml.NewDecoder(s.r)
	dec.KnownFields(true)

	var raw map[Tier]yamlCeilings
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.Join(ErrInvalidTierConfiguration, errors.New("empty tier table"))
		}
		return nil, errors.Join(ErrInvalidTierConfiguration, err)
	}

	tiers := make(map[Tier]Ceilings, len(raw))
	for tier, c := range raw {
		if c.StorageMb == nil {
			return nil, errors.Join(ErrInvalidTierConfiguration,
				fmt.Errorf("tier %s: max_storage_mb is required", tier))
		}
		if c.APIRateLimit == nil {
			return nil, errors.Join(ErrInvalidTierConfiguration,
				fmt.Errorf("tier %s: api_rate_limit is required", tier))
		}
		tiers[tier] = Ceilings{
			Users:        c.Users,
			Incidents:    c.Incidents,
			Assets:       c.Assets,
			Runbooks:     c.Runbooks,
			Templates:    c.Templates,
			StorageMb:    *c.StorageMb,
			APIRateLimit: *c.APIRateLimit,
		}
	}
	return tiers, nil
}

// ValidateTiers checks a tier table before the service accepts it.
func ValidateTiers(tiers map[Tier]Ceilings, defaultTier Tier) error {
	if len(tiers) == 0 {
		return errors.Join(ErrInvalidTierConfiguration, errors.New("no tiers defined"))
	}
	if _, ok := tiers[defaultTier]; !ok {
		return errors.Join(ErrInvalidTierConfiguration,
			fmt.Errorf("default tier %q is not defined", defaultTier))
	}

	for tier, c := range tiers {
		if tier == "" {
			return errors.Join(ErrInvalidTierConfiguration, errors.New("tier with empty name"))
		}
		for _, res := range summaryResources {
			limit, _ := c.For(res)
			if limit != nil && *limit < 0 {
				return errors.Join(ErrInvalidTierConfiguration,
					fmt.Errorf("tier %s has negative %s limit: %d", tier, res, *limit))
			}
		}
	}
	return nil
}

func cloneTiers(tiers map[Tier]Ceilings) map[Tier]Ceilings {
	cp := maps.Clone(tiers)
	if cp == nil {
		return make(map[Tier]Ceilings)
	}
	for tier, c := range cp {
		cp[tier] = c.clone()
	}
	return cp
}
