// Package cli implements usos-admin, the maintenance tool that works on the
// database directly and bypasses the pairing rules.
package cli

import (
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"usos/internal/app"
	"usos/internal/config"
	"usos/internal/log"
	"usos/internal/notify"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	EnvFile string
	Format  string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command of usos-admin.
func NewRootCommand(version string) *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:     "usos-admin",
		Short:   "Maintenance tool for usos families, ledgers and events",
		Version: version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if opts.EnvFile != "" {
				config.LoadDotEnv(opts.EnvFile)
			} else {
				config.LoadDotEnv()
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", "", "load environment from this file instead of ./.env")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewResetCommand(opts))
	cmd.AddCommand(NewCreateFamilyCommand(opts))
	cmd.AddCommand(NewCreateUserCommand(opts))
	cmd.AddCommand(NewLinkPartnersCommand(opts))
	cmd.AddCommand(NewListFamiliesCommand(opts))
	cmd.AddCommand(NewExpireRequestsCommand(opts))
	cmd.AddCommand(NewSettleCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))
	cmd.AddCommand(NewHashPasswordCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))

	return cmd
}

func (o *RootOptions) output(cmd *cobra.Command) output {
	return output{format: o.Format, w: cmd.OutOrStdout()}
}

// loadConfig reads and validates the environment
func loadConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	return cfg, nil
}

// openApp connects to the database and, when configured, the broker.
// Changes made by the CLI are published to the broker so running servers
// pick them up; without one they are only logged.
func (o *RootOptions) openApp() (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger := log.New(log.Config{Level: cfg.LogLevel, Component: log.ComponentAdmin, Output: os.Stderr})
	a, err := app.Open(cfg, logger)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open application", err)
	}
	a.Wire(notify.Nop)
	return a, nil
}

// failed classifies an operation error for the exit code
func failed(message string, err error) error {
	return WrapExitError(ExitFailure, message, err)
}
