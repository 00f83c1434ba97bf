// Package cmd defines the CLI commands for the deanagent executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Ryder-MHumble/deanagent/internal/app"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deanagent",
		Short: "Configuration-driven information monitoring pipeline",
		Long: `deanagent periodically fetches content from a declared catalog of web
sources (HTML listings, JS-rendered pages, RSS feeds, vendor APIs),
deduplicates and persists the raw catch, and transforms it through a
multi-stage analytical pipeline into domain intel feeds.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional; env vars apply either way)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newProcessCmd())
	cmd.AddCommand(newIndexCmd())
	return cmd
}

// buildApp constructs the application graph for a command invocation.
func buildApp() (*app.App, error) {
	a, err := app.New(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("initialize application: %w", err)
	}
	return a, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
