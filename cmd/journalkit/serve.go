package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/journalkit/modules/billing"
	"github.com/dmitrymomot/journalkit/pkg/httpserver"
	"github.com/dmitrymomot/journalkit/pkg/logger"
)

func newServeCmd(c *cli) *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := openApp(ctx, c.cfg, c.log, migrate)
			if err != nil {
				return err
			}
			defer func() {
				closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
				defer cancel()
				if err := a.Close(closeCtx); err != nil {
					c.log.ErrorContext(closeCtx, "failed to release resources", logger.Error(err))
				}
			}()

			svc, err := a.service()
			if err != nil {
				return err
			}
			authn, err := c.cfg.Auth.Authenticator()
			if err != nil {
				return err
			}

			router := billing.Router(billing.RouterOptions{
				Billing: billing.New(svc, authn, billing.WithLogger(c.log)),
				Metrics: a.metrics,
				Logger:  c.log,
				Checks:  a.checks,

				RateLimiter: a.limiter,
				TrustProxy:  c.cfg.TrustProxy,
			})

			srv := httpserver.NewFromConfig(c.cfg.HTTP, httpserver.WithLogger(c.log))
			return srv.Run(ctx, router)
		},
	}

	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply store migrations before serving")
	return cmd
}
