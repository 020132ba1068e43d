package main

import (
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/opsdesk/platform/modules/usage"
	"github.com/opsdesk/platform/pkg/clientip"
	"github.com/opsdesk/platform/pkg/config"
	"github.com/opsdesk/platform/pkg/httpserver"
	"github.com/opsdesk/platform/pkg/logger"
	"github.com/opsdesk/platform/pkg/requestid"
)

type serveConfig struct {
	HTTP      httpserver.Config
	OrgHeader string `env:"HTTP_ORGANIZATION_HEADER" envDefault:"X-Organization-ID"`
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the quota API, health probes and metrics",
		Long: `Serve exposes the usage endpoints under /quota behind the API rate
limit. The organization is read from HTTP_ORGANIZATION_HEADER, which the
authenticating gateway sets.

  GET /healthz                 liveness
  GET /readyz                  readiness (store pings)
  GET /metrics                 Prometheus metrics
  GET /quota/summary           usage summary
  GET /quota/usage/{resource}  usage percentage
  GET /quota/check/{resource}  admission check`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var cfg serveConfig
			if err := config.Load(&cfg); err != nil {
				return err
			}

			ctx := cmd.Context()
			return withApp(ctx, cmd.ErrOrStderr(), func(a *app) error {
				reg := prometheus.NewRegistry()
				reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

				svc, err := a.service(ctx, reg)
				if err != nil {
					return err
				}

				resolve := usage.OrganizationFromHeader(cfg.OrgHeader)
				log := a.log.With(logger.Component("http"))

				r := chi.NewRouter()
				r.Use(requestid.Middleware, clientip.Middleware)
				r.Get("/healthz", httpserver.LivenessHandler())
				r.Get("/readyz", httpserver.ReadinessHandler(log, a.checks...))
				r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
				r.Route("/quota", func(r chi.Router) {
					r.Use(scopeOrganization(resolve))
					r.Use(usage.RateLimit(svc, nil, log))
					r.Mount("/", usage.Router(usage.RouterOptions{Reporter: svc, Logger: log}))
				})

				srv := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))
				return srv.Run(ctx, r)
			})
		},
	}
}
