package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sufield/certkeeper/internal/app"
	"github.com/sufield/certkeeper/internal/core/services"
)

// refreshReport is the JSON form of one refresh cycle.
type refreshReport struct {
	CycleID      string              `json:"cycle_id"`
	Loaded       int                 `json:"loaded"`
	AllSucceeded bool                `json:"all_succeeded"`
	Duration     string              `json:"duration"`
	Certificates []certificateReport `json:"certificates"`
	Failures     []failureReport     `json:"failures,omitempty"`
}

type certificateReport struct {
	Name       string    `json:"name"`
	Thumbprint string    `json:"thumbprint"`
	KeyID      string    `json:"key_id"`
	Subject    string    `json:"subject"`
	NotAfter   time.Time `json:"not_after"`
	PrivateKey bool      `json:"private_key"`
}

type failureReport struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Reason string `json:"reason"`
	Error  string `json:"error"`
}

func newRefreshCommand(opts *globalOptions) *cobra.Command {
	var (
		format       string
		timeout      time.Duration
		allowPartial bool
	)

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Load every configured certificate once and report the result",
		Long: `Load every configured certificate once and report the result.

The command exits non-zero when any certificate could not be loaded, unless
--allow-partial is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkFormat(format, "text", "json"); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			application, err := opts.oneShotApplication(ctx, cmd)
			if err != nil {
				return err
			}

			result, err := application.RefreshOnce(ctx)
			if err != nil {
				return fmt.Errorf("%w: refresh interrupted: %v", ErrRuntime, err)
			}

			report := buildRefreshReport(application.Store, result)
			if format == "json" {
				encoder := json.NewEncoder(cmd.OutOrStdout())
				encoder.SetIndent("", "  ")
				if err := encoder.Encode(report); err != nil {
					return fmt.Errorf("%w: failed to encode refresh result: %v", ErrInternal, err)
				}
			} else {
				printRefreshReport(opts.printer(cmd), report)
			}

			if !result.AllSucceeded && !allowPartial {
				return fmt.Errorf("%w: %d of %d certificates failed to load",
					ErrSource, len(result.Failures), len(result.Failures)+result.Loaded)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format (text|json)")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "Maximum time for the refresh cycle")
	cmd.Flags().BoolVar(&allowPartial, "allow-partial", false, "Exit zero even if some certificates failed to load")
	return cmd
}

// oneShotApplication builds an application for a single cycle. The metrics
// endpoint is never started by one-shot commands.
func (o *globalOptions) oneShotApplication(ctx context.Context, cmd *cobra.Command) (*app.Application, error) {
	cfg, err := o.loadConfiguration(ctx)
	if err != nil {
		return nil, err
	}
	cfg.Metrics.Enabled = false

	logger, err := o.logger(cmd, cfg)
	if err != nil {
		return nil, err
	}

	application, err := app.New(app.Options{Config: cfg, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	return application, nil
}

func buildRefreshReport(store *services.CertificateStore, result services.RefreshResult) refreshReport {
	report := refreshReport{
		CycleID:      result.CycleID,
		Loaded:       result.Loaded,
		AllSucceeded: result.AllSucceeded,
		Duration:     result.Duration.Round(time.Millisecond).String(),
		Certificates: []certificateReport{},
	}

	for _, name := range store.Names() {
		entry, ok := store.Get(name)
		if !ok {
			continue
		}
		cert := entry.Material.Certificate
		report.Certificates = append(report.Certificates, certificateReport{
			Name:       entry.Name,
			Thumbprint: entry.Thumbprint,
			KeyID:      entry.KeyID,
			Subject:    cert.Subject.String(),
			NotAfter:   cert.NotAfter,
			PrivateKey: entry.Material.HasPrivateKey(),
		})
	}

	for _, f := range result.Failures {
		failure := failureReport{Name: f.Name, Type: string(f.Type), Reason: f.Reason}
		if f.Err != nil {
			failure.Error = f.Err.Error()
		}
		report.Failures = append(report.Failures, failure)
	}

	return report
}

func printRefreshReport(p *Printer, report refreshReport) {
	p.Cycle("Refresh cycle %s finished in %s", report.CycleID, report.Duration)

	for _, c := range report.Certificates {
		p.Key("%s: thumbprint %s, expires %s", c.Name, c.Thumbprint, c.NotAfter.Format(time.RFC3339))
		if !c.PrivateKey {
			p.Bullet("no private key, cannot decrypt")
		}
	}
	for _, f := range report.Failures {
		p.Error("%s (%s): %s: %s", f.Name, f.Type, f.Reason, f.Error)
	}

	if report.AllSucceeded {
		p.Success("Loaded %d certificates", report.Loaded)
	} else {
		p.Warn("Loaded %d certificates, %d failed", report.Loaded, len(report.Failures))
	}
}
