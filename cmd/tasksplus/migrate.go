package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adanyl0v/tasks-plus/internal/app"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the Postgres schema",
		Long: `Create the users, sessions and documents tables.

The documents table carries a trigger that announces every change on the
documents_changed channel, which live task lists listen to. Running the
command again is harmless.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app.MustConnectPostgres()
			defer app.DisconnectPostgres()

			err := app.MigratePostgres(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to migrate: %w", err)
			}
			return nil
		},
	}
}
