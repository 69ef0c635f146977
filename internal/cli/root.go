// Package cli implements the certkeeper command tree.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sufield/certkeeper/internal/adapters/logging"
	configprovider "github.com/sufield/certkeeper/internal/adapters/secondary/config"
	"github.com/sufield/certkeeper/internal/config"
	"github.com/sufield/certkeeper/internal/core/ports"
)

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath string
	logLevel   string
	noEmoji    bool
	quiet      bool
}

// NewRootCommand builds a fresh command tree.
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "certkeeper",
		Short: "Certificate cache and decryption key resolver",
		Long: `Certificate cache and decryption key resolver.

certkeeper loads named certificates from Vault KV secrets and a local keystore
directory, keeps them fresh on a fixed cadence, and resolves the private key
needed to decrypt an inbound encrypted token.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "",
		"Path to configuration file (defaults to $"+config.EnvConfigFile+")")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override the configured log level")
	rootCmd.PersistentFlags().BoolVar(&opts.noEmoji, "no-emoji", false, "Disable emoji in output")
	rootCmd.PersistentFlags().BoolVarP(&opts.quiet, "quiet", "q", false, "Suppress informational output")

	rootCmd.AddCommand(
		newServeCommand(opts),
		newRefreshCommand(opts),
		newResolveCommand(opts),
		newConfigCommand(opts),
		newVersionCommand(),
	)

	return rootCmd
}

// Execute runs the command tree against os.Args.
func Execute() error {
	return NewRootCommand().Execute()
}

// loadConfiguration reads the file selected by --config or the environment and
// applies the --log-level override.
func (o *globalOptions) loadConfiguration(ctx context.Context) (*ports.Configuration, error) {
	path := config.ResolvePath(o.configPath)

	cfg, err := configprovider.NewFileProvider().LoadConfiguration(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}

	if o.logLevel != "" {
		if _, err := logging.ParseLevel(o.logLevel); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUsage, err)
		}
		cfg.LogLevel = o.logLevel
	}
	if config.GetBoolEnv(config.EnvDebug, false) {
		cfg.LogLevel = "debug"
	}

	return cfg, nil
}

func (o *globalOptions) logger(cmd *cobra.Command, cfg *ports.Configuration) (*slog.Logger, error) {
	logger, err := logging.NewLogger(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	return logger, nil
}

func (o *globalOptions) printer(cmd *cobra.Command) *Printer {
	return NewPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr(), !o.noEmoji, o.quiet)
}

func checkFormat(format string, allowed ...string) error {
	for _, f := range allowed {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("%w: unsupported format %q, use %s", ErrUsage, format, strings.Join(allowed, ", "))
}
