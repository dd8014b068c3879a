// Package cmd defines and implements the CLI commands for the gapscan executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gapscan/gapscan/internal/app"
	"github.com/gapscan/gapscan/internal/config"
)

var cfgFile string

// appKeyType is the key for storing the App in the command context.
type appKeyType string

const appKey appKeyType = "app"

// newApp is the application factory. It's a variable so tests can swap
// in a factory that injects fakes.
var newApp = func(cfg config.Config) (*app.App, error) {
	return app.New(cfg)
}

// newRootCmd creates and configures the root command. The application
// container is built in PersistentPreRunE, after flags are parsed but
// before any subcommand runs, and torn down in PersistentPostRun.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gapscan",
		Short: "Content gap analysis against competitor sites",
		Long: `gapscan crawls a primary site and a set of competitor sites, embeds
their page content, and reports topics competitors cover that the primary
site does not, along with thin-content, metadata, and structured-data gaps.`,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			path := cfgFile
			if path == "" {
				if _, err := os.Stat("gapscan.yaml"); err == nil {
					path = "gapscan.yaml"
				}
			}
			cfg, err := config.Load(path)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			appInstance, err := newApp(cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(*app.App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default gapscan.yaml)")

	cmd.AddCommand(newAnalyzeCmd())
	cmd.AddCommand(newServeCmd())

	return cmd
}

func resolveApp(ctx context.Context) (*app.App, error) {
	appInstance, ok := ctx.Value(appKey).(*app.App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point for the CLI.
func Execute(ctx context.Context) {
	root := newRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "gapscan: %v\n", err)
		os.Exit(1)
	}
}
