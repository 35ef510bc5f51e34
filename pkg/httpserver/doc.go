// Package httpserver runs an http.Server with graceful shutdown and exposes
// liveness and readiness handlers.
//
// Run blocks until the context is cancelled or SIGINT/SIGTERM arrives, then
// calls http.Server.Shutdown bounded by the shutdown timeout. Options such as
// WithAddr and WithReadTimeout panic on invalid values so misconfiguration
// fails at startup. NewFromConfig builds a Server from HTTP_* environment
// variables.
//
//	srv := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))
//	if err := srv.Run(ctx, router); err != nil {
//		return err
//	}
//
// ReadinessHandler reports each named Check and answers 503 when any fails:
//
//	r.Get("/readyz", httpserver.ReadinessHandler(log, 2*time.Second,
//		httpserver.Check{Name: "postgres", Probe: pg.Healthcheck(pool)},
//	))
package httpserver
