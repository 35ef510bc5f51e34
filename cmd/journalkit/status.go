package main

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dmitrymomot/journalkit/pkg/logger"
)

func newStatusCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "status <user-id>",
		Short: "Print a user's subscription status as JSON",
		Long: `Reads the subscription for a user from the configured store, applying
lazy expiry exactly as the API does, and prints the status view.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid user id %q: %w", args[0], err)
			}

			a, err := openApp(cmd.Context(), c.cfg, c.log, false)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(cmd.Context()); err != nil {
					c.log.ErrorContext(cmd.Context(), "failed to release resources", logger.Error(err))
				}
			}()

			svc, err := a.service()
			if err != nil {
				return err
			}
			view, err := svc.CheckStatus(cmd.Context(), userID)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(view)
		},
	}
}
