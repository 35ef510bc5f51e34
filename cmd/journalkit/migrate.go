package main

import (
	"github.com/spf13/cobra"
)

func newMigrateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations for the configured store",
		Long: `Applies pending migrations for BILLING_STORE. Postgres and SQLite use goose
migrations embedded in the binary (PG_MIGRATIONS_PATH overrides them for
Postgres). MongoDB gets its indexes. The memory store needs nothing.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), c.cfg, c.log, true)
			if err != nil {
				return err
			}
			c.log.InfoContext(cmd.Context(), "migrations complete")
			return a.Close(cmd.Context())
		},
	}
}
