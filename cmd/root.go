// Package cmd defines and implements the CLI commands for the jobsignal executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobsignal/internal/analysis"
	"github.com/JakeFAU/jobsignal/internal/app"
	"github.com/JakeFAU/jobsignal/internal/config"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App defines the application interface that commands use.
// Tests inject a fake through newApp.
type App interface {
	Close()
	Config() config.Config
	Logger() *zap.Logger
	Handler() http.Handler
	Analyzer() *analysis.Analyzer
}

// newApp is the application factory. It is a variable so tests can replace it.
var newApp = func(ctx context.Context, cfg config.Config) (App, error) {
	return app.NewApp(ctx, cfg)
}

// analyzerOf lets tests substitute the scan pipeline used by the scan command.
var analyzerOf = func(a App) scanRunner {
	return a.Analyzer()
}

type scanRunner interface {
	Analyze(ctx context.Context, req analysis.Request) (analysis.Response, error)
}

type rootOptions struct {
	cfgFile string
	envFile string
}

// newRootCmd creates the root command and its subcommands.
func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "jobsignal",
		Short: "Job posting signal extraction and ranking service.",
		Long: `jobsignal queries a job search API for a role, extracts certification,
skill, experience and education signals from the postings, and ranks them by
how many postings ask for each. Scans are kept as history for trend stats.`,
		SilenceUsage: true,

		// Builds the application once flags are parsed and stores it in the
		// command context for subcommands.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadDotEnv(opts.envFile); err != nil {
				return err
			}
			cfg, err := config.Load(opts.cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			appInstance, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (yaml, json or toml)")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before config; missing is fine")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newScanCmd())
	return cmd
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "jobsignal: %v\n", err)
		os.Exit(1)
	}
}
