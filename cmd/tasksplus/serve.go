package main

import (
	"github.com/spf13/cobra"

	"github.com/adanyl0v/tasks-plus/internal/app"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server until SIGINT or SIGTERM",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	app.MustConnectPostgres()
	defer app.DisconnectPostgres()

	app.MustOpenDocStore()
	defer app.CloseDocStore()

	app.MustListenAndServeHTTP()
	return nil
}
