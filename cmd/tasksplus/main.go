package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/adanyl0v/tasks-plus/internal/app"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "tasksplus",
		Short:   "Tasks+ - personal tasks with public, commentable pages",
		Version: Version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			app.InitDefaultLogger()
			app.MustReadConfig()
			app.MustInitApplicationLogger()
		},
		RunE: runServe,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
