package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sufield/certkeeper/internal/app"
)

func newServeCommand(opts *globalOptions) *cobra.Command {
	var gracePeriod time.Duration

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the certificate refresh loop",
		Long: `Run the certificate refresh loop until interrupted.

Every configured certificate is loaded immediately and then again after each
refresh interval. When metrics are enabled, /metrics and /healthz are served
on the configured address. SIGINT and SIGTERM trigger a graceful shutdown.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := opts.loadConfiguration(ctx)
			if err != nil {
				return err
			}
			logger, err := opts.logger(cmd, cfg)
			if err != nil {
				return err
			}

			for _, issue := range cfg.DescriptorIssues() {
				logger.Warn("Certificate descriptor will be skipped", "issue", issue.Error())
			}

			application, err := app.New(app.Options{
				Config:              cfg,
				Logger:              logger,
				ShutdownGracePeriod: gracePeriod,
			})
			if err != nil {
				return fmt.Errorf("%w: %v", ErrConfig, err)
			}

			logger.Info("Starting certkeeper",
				"certificates", len(cfg.Certificates),
				"refresh_interval", cfg.RefreshInterval(),
				"metrics_enabled", cfg.Metrics.Enabled)

			if err := application.Run(ctx); err != nil {
				return fmt.Errorf("%w: %v", ErrRuntime, err)
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&gracePeriod, "grace-period", 30*time.Second, "Maximum time to wait for each component during shutdown")
	return cmd
}
