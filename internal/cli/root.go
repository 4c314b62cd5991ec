package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/posync/internal/config"
	"github.com/roach88/posync/internal/engine"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	DBPath     string
	RemoteURL  string

	// Config is loaded in PersistentPreRunE from file, .env, environment,
	// and the flags above.
	Config config.Config

	// Test hooks. Nil means the production default.
	Now    func() time.Time    // Clock for sale timestamps and default dates
	Refs   engine.RefGenerator // Sale ref generator
	Logger *zap.Logger         // Logger for all components
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the posync CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "posync",
		Short: "posync - offline-first point-of-sale data layer",
		Long: `Record daily prices and sales locally, and sync them to the remote
authority whenever it is reachable. Writes never wait on the network:
anything that cannot be delivered is queued and replayed in order.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return loadConfig(cmd, opts)
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output (debug logging)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to YAML config file")
	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "path to SQLite database (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.RemoteURL, "remote", "", "remote authority base URL (overrides config)")

	// Add subcommands
	cmd.AddCommand(NewPricesCommand(opts))
	cmd.AddCommand(NewSaleCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewPendingCommand(opts))
	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))

	return cmd
}

// loadConfig resolves the effective configuration. Flags win over every
// other source.
func loadConfig(cmd *cobra.Command, opts *RootOptions) error {
	cfg, err := config.Load(opts.ConfigPath, config.DefaultEnvFile)
	if err != nil {
		return configError(cmd, opts, "failed to load config", err)
	}

	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.DBPath = opts.DBPath
	}
	if flags.Changed("remote") {
		cfg.RemoteURL = opts.RemoteURL
	}
	if opts.Verbose {
		cfg.LogLevel = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return configError(cmd, opts, "invalid config", err)
	}
	opts.Config = cfg
	return nil
}

// configError reports a config failure under ErrCodeConfig as a command error.
func configError(cmd *cobra.Command, opts *RootOptions, message string, err error) error {
	_ = newFormatter(opts, cmd).Error(ErrCodeConfig, fmt.Sprintf("%s: %v", message, err), nil)
	return WrapExitError(ExitCommandError, message, err)
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
