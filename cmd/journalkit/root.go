package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/journalkit/pkg/clientip"
	"github.com/dmitrymomot/journalkit/pkg/config"
	"github.com/dmitrymomot/journalkit/pkg/logger"
	"github.com/dmitrymomot/journalkit/pkg/requestid"
)

// cli carries state shared by subcommands after PersistentPreRunE.
type cli struct {
	envFiles []string
	cfg      appConfig
	log      *slog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "journalkit",
		Short: "Subscription and feature entitlement service for the journaling app",
		Long: `journalkit serves subscription status, checkout verification and payment
provider webhooks, and resolves which journal features a user may use.

Configuration is read from the environment, optionally seeded from .env files.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadEnv(c.envFiles...); err != nil {
				return err
			}
			if err := config.Load(&c.cfg); err != nil {
				return err
			}
			c.log = logger.New(
				logger.WithEnvironment(c.cfg.AppEnv, "journalkit"),
				logger.WithConfig(c.cfg.Log),
				logger.WithOutput(cmd.ErrOrStderr()),
				logger.WithContextExtractors(requestid.LoggerExtractor(), clientip.LoggerExtractor()),
			)
			logger.SetAsDefault(c.log)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringSliceVar(&c.envFiles, "env-file", nil, "dotenv files to load before reading the environment")

	root.AddCommand(
		newServeCmd(c),
		newMigrateCmd(c),
		newStatusCmd(c),
		newSignWebhookCmd(c),
		newTokenCmd(c),
	)
	return root
}
