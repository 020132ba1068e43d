package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/opsdesk/platform/pkg/clientip"
	"github.com/opsdesk/platform/pkg/config"
	"github.com/opsdesk/platform/pkg/httpserver"
	"github.com/opsdesk/platform/pkg/logger"
	"github.com/opsdesk/platform/pkg/pg"
	"github.com/opsdesk/platform/pkg/quota"
	"github.com/opsdesk/platform/pkg/quota/pgstore"
	"github.com/opsdesk/platform/pkg/quota/redisstore"
	"github.com/opsdesk/platform/pkg/redis"
	"github.com/opsdesk/platform/pkg/requestid"
)

const (
	storePostgres = "postgres"
	storeRedis    = "redis"
)

type appConfig struct {
	Logger logger.Config
	PG     pg.Config
	Quota  quota.Config
	Store  string `env:"QUOTA_STORE" envDefault:"postgres"`
}

// app holds the connections shared by the commands.
type app struct {
	cfg     appConfig
	log     *slog.Logger
	pool    *pgxpool.Pool
	checks  []httpserver.Check
	closers []func()
}

func newApp(ctx context.Context, stderr io.Writer) (*app, error) {
	var cfg appConfig
	if err := config.Load(&cfg); err != nil {
		return nil, err
	}

	opts := append(logger.FromConfig(cfg.Logger),
		logger.WithOutput(stderr),
		logger.WithContextExtractors(
			logger.OrganizationExtractor(quota.OrganizationIDFromContext),
			requestid.LoggerExtractor(),
			clientip.LoggerExtractor(),
		),
	)
	log := logger.New(opts...)

	pool, err := pg.Connect(ctx, cfg.PG)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:     cfg,
		log:     log,
		pool:    pool,
		checks:  []httpserver.Check{{Name: "postgres", Fn: pg.Healthcheck(pool)}},
		closers: []func(){pool.Close},
	}, nil
}

// Close releases connections in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// service wires the quota engine to the configured store. reg may be nil.
func (a *app) service(ctx context.Context, reg prometheus.Registerer) (*quota.Service, error) {
	store, err := a.store(ctx)
	if err != nil {
		return nil, err
	}

	var src quota.TierSource
	if a.cfg.Quota.TiersFile != "" {
		f, err := os.Open(a.cfg.Quota.TiersFile)
		if err != nil {
			return nil, errors.Join(quota.ErrFailedToLoadTiers, err)
		}
		defer f.Close()
		src = quota.NewYAMLTierSource(f)
	}

	opts := []quota.Option{
		quota.WithConfig(a.cfg.Quota),
		quota.WithLogger(a.log.With(logger.Component("quota"))),
	}
	if reg != nil {
		opts = append(opts, quota.WithMetrics(quota.NewMetrics(reg)))
	}

	return quota.NewService(ctx, store, pgstore.Counters(a.pool), src, pgstore.TierResolver(a.pool), opts...)
}

func (a *app) store(ctx context.Context) (quota.Store, error) {
	switch a.cfg.Store {
	case "", storePostgres:
		return pgstore.New(a.pool), nil
	case storeRedis:
		var rcfg redis.Config
		if err := config.Load(&rcfg); err != nil {
			return nil, err
		}
		client, err := redis.Connect(ctx, rcfg)
		if err != nil {
			return nil, err
		}
		a.checks = append(a.checks, httpserver.Check{Name: "redis", Fn: redis.Healthcheck(client)})
		a.closers = append(a.closers, func() {
			if err := client.Close(); err != nil {
				a.log.Error("failed to close redis client", logger.Error(err))
			}
		})
		return redisstore.New(client, redisstore.WithKeyPrefix(rcfg.KeyPrefix)), nil
	default:
		return nil, fmt.Errorf("unknown QUOTA_STORE %q: must be %q or %q", a.cfg.Store, storePostgres, storeRedis)
	}
}

// withApp runs fn with a connected app and closes it afterwards.
func withApp(ctx context.Context, stderr io.Writer, fn func(*app) error) error {
	a, err := newApp(ctx, stderr)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
