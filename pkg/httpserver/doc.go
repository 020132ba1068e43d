// Package httpserver hosts the quota API with configurable timeouts,
// context-driven graceful shutdown and liveness/readiness handlers.
//
//	srv := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))
//	r := chi.NewRouter()
//	r.Get("/healthz", httpserver.LivenessHandler())
//	r.Get("/readyz", httpserver.ReadinessHandler(log,
//		httpserver.Check{Name: "postgres", Fn: pg.Healthcheck(pool)},
//	))
//	err := srv.Run(ctx, r) // returns after ctx is cancelled and the server drained
//
// Signal handling belongs to the caller: derive ctx with signal.NotifyContext.
package httpserver
