package quota

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"
)

// Config holds the environment-driven settings of the quota service.
type Config struct {
	UpgradeURL       string        `env:"QUOTA_UPGRADE_URL" envDefault:"/settings/billing"` // UpgradeURL is attached to quota denials as the upgrade path.
	WarningThreshold int           `env:"QUOTA_WARNING_THRESHOLD" envDefault:"80"`          // WarningThreshold is the inclusive summary warning percentage.
	APIWindow        time.Duration `env:"QUOTA_API_WINDOW" envDefault:"1h"`                 // APIWindow is the length of the API rate-limit window.
	DefaultTier      string        `env:"QUOTA_DEFAULT_TIER" envDefault:"starter"`          // DefaultTier is used when an organization's tier cannot be matched.
	TiersFile        string        `env:"QUOTA_TIERS_FILE"`                                 // TiersFile optionally points to a YAML tier table.
}

// Service is the organization quota and rate-limit engine.
// It is safe for concurrent use.
type Service struct {
	// tiers is treated as immutable after construction.
	store       Store
	counters    CounterRegistry
	tiers       map[Tier]Ceilings
	resolveTier TierResolver

	defaultTier      Tier
	upgradeHint      string
	warningThreshold int
	apiWindow        time.Duration

	now     func() time.Time
	log     *slog.Logger
	metrics *Metrics
}

// Option configures a Service.
type Option func(*Service)

// WithConfig applies env-driven settings. Zero fields keep their defaults.
func WithConfig(cfg Config) Option {
	return func(s *Service) {
		if cfg.UpgradeURL != "" {
			s.upgradeHint = cfg.UpgradeURL
		}
		if cfg.WarningThreshold > 0 {
			s.warningThreshold = cfg.WarningThreshold
		}
		if cfg.APIWindow > 0 {
			s.apiWindow = cfg.APIWindow
		}
		if cfg.DefaultTier != "" {
			s.defaultTier = Tier(cfg.DefaultTier)
		}
	}
}

// WithLogger sets the logger. Nil loggers are ignored.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the time source, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithUpgradeHint sets the upgrade path carried by quota denials.
func WithUpgradeHint(hint string) Option {
	return func(s *Service) { s.upgradeHint = hint }
}

// WithWarningThreshold sets the summary warning percentage (inclusive).
func WithWarningThreshold(pct int) Option {
	return func(s *Service) {
		if pct > 0 {
			s.warningThreshold = pct
		}
	}
}

// WithAPIWindow sets the rate-limit window length.
func WithAPIWindow(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.apiWindow = d
		}
	}
}

// WithDefaultTier sets the tier used for organizations whose tier is empty or unknown.
func WithDefaultTier(t Tier) Option {
	return func(s *Service) {
		if t != "" {
			s.defaultTier = t
		}
	}
}

// NewService creates the quota engine.
//
// A nil src uses DefaultTiers, a nil resolver uses TierContextResolver.
// Panics if store is nil. Fails if any count-based resource has no counter
// or the tier table is invalid.
func NewService(ctx context.Context, store Store, counters CounterRegistry, src TierSource, resolver TierResolver, opts ...Option) (*Service, error) {
	if store == nil {
		panic("quota: Store is required")
	}
	if src == nil {
		src = NewInMemTierSource(DefaultTiers())
	}
	if resolver == nil {
		resolver = TierContextResolver
	}

	tiers, err := src.Load(ctx)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadTiers, err)
	}

	s := &Service{
		store:            store,
		counters:         counters,
		tiers:            cloneTiers(tiers),
		resolveTier:      resolver,
		defaultTier:      TierStarter,
		upgradeHint:      "/settings/billing",
		warningThreshold: 80,
		apiWindow:        time.Hour,
		now:              time.Now,
		log:              slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(s)
	}

	if err := ValidateTiers(s.tiers, s.defaultTier); err != nil {
		return nil, err
	}
	if err := s.counters.validate(); err != nil {
		return nil, err
	}

	return s, nil
}

// Tiers returns a copy of the configured tier table.
func (s *Service) Tiers() map[Tier]Ceilings {
	return cloneTiers(s.tiers)
}

func (s *Service) ceilingsFor(tier Tier) (Ceilings, bool) {
	c, ok := s.tiers[tier]
	if !ok {
		return Ceilings{}, false
	}
	return c.clone(), true
}

func validOrg(orgID int64) error {
	if orgID <= 0 {
		return ErrInvalidOrganization
	}
	return nil
}
