package cli

import (
	"encoding/json"
	stderrors "errors"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sufield/certkeeper/internal/config"
	"github.com/sufield/certkeeper/internal/core/domain"
	"github.com/sufield/certkeeper/internal/core/errors"
	"github.com/sufield/certkeeper/internal/core/ports"
)

// redactedValue replaces secrets in printed configuration.
const redactedValue = "[REDACTED]"

// validationResult represents the validation result for JSON output
type validationResult struct {
	Valid           bool     `json:"valid"`
	ProductionValid *bool    `json:"production_valid,omitempty"`
	Certificates    int      `json:"certificates"`
	Issues          []string `json:"issues,omitempty"`
	Tips            []string `json:"tips,omitempty"`
	Errors          []string `json:"errors,omitempty"`
}

func newConfigCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and validate configuration",
	}
	cmd.AddCommand(newConfigValidateCommand(opts), newConfigShowCommand(opts))
	return cmd
}

func newConfigValidateCommand(opts *globalOptions) *cobra.Command {
	var (
		production bool
		strict     bool
		format     string
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration for correctness and production readiness",
		Long: `Validate configuration for correctness and production readiness.

Certificate descriptors that would be skipped at refresh time are reported as
warnings; --strict turns them into failures.`,
		Example: `  # Validate a config file:
  certkeeper config validate --config /etc/certkeeper/config.yaml

  # JSON output for CI:
  certkeeper config validate --config config.yaml --production --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkFormat(format, "text", "json"); err != nil {
				return err
			}
			printer := opts.printer(cmd)
			result := &validationResult{}

			cfg, loadErr := opts.loadConfiguration(cmd.Context())
			if loadErr != nil {
				result.Errors = append(result.Errors, loadErr.Error())
				if format == "json" {
					if err := printJSON(cmd, result); err != nil {
						return err
					}
				} else {
					printer.Error("Configuration is invalid: %v", loadErr)
				}
				return loadErr
			}

			result.Certificates = len(cfg.Certificates)
			if format == "text" {
				printer.Success("Configuration loaded with %d certificates", len(cfg.Certificates))
			}

			for _, issue := range cfg.DescriptorIssues() {
				result.Issues = append(result.Issues, issue.Error())
				if format == "text" {
					printer.Warn("%s", issue)
				}
			}

			var failure error
			if strict && len(result.Issues) > 0 {
				failure = fmt.Errorf("%w: %d certificate descriptors are invalid", ErrConfig, len(result.Issues))
			}

			if production {
				prodErr := cfg.IsProductionReady()
				ready := prodErr == nil
				result.ProductionValid = &ready

				if !ready {
					result.Tips = productionTips(prodErr)
					result.Errors = append(result.Errors, productionErrors(prodErr)...)
					if failure == nil {
						failure = fmt.Errorf("%w: %v", ErrConfig, prodErr)
					}
				}

				if format == "text" {
					if ready {
						printer.Production("Configuration is ready for production deployment")
					} else {
						for _, e := range productionErrors(prodErr) {
							printer.Error("%s", e)
						}
						for _, tip := range result.Tips {
							printer.Bullet("%s", tip)
						}
					}
				}
			}

			result.Valid = failure == nil
			if format == "json" {
				if err := printJSON(cmd, result); err != nil {
					return err
				}
			}
			return failure
		},
	}

	cmd.Flags().BoolVar(&production, "production", false, "Perform production readiness validation")
	cmd.Flags().BoolVar(&strict, "strict", false, "Fail when any certificate descriptor is invalid")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format (text|json)")
	return cmd
}

func newConfigShowCommand(opts *globalOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Long: `Print the effective configuration after defaults, the config file and
` + config.EnvPrefix + `_* environment overrides are applied. Secrets are redacted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkFormat(format, "yaml", "json"); err != nil {
				return err
			}

			cfg, err := opts.loadConfiguration(cmd.Context())
			if err != nil {
				return err
			}
			shown := redactConfiguration(cfg)

			if format == "json" {
				return printJSON(cmd, shown)
			}
			encoder := yaml.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent(2)
			if err := encoder.Encode(shown); err != nil {
				return fmt.Errorf("%w: failed to encode configuration: %v", ErrInternal, err)
			}
			return encoder.Close()
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "yaml", "Output format (yaml|json)")
	return cmd
}

// redactConfiguration returns a copy of cfg that is safe to print.
func redactConfiguration(cfg *ports.Configuration) *ports.Configuration {
	shown := *cfg
	shown.Certificates = append([]domain.Descriptor(nil), cfg.Certificates...)
	if shown.Vault.Token != "" {
		shown.Vault.Token = redactedValue
	}
	return &shown
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("%w: failed to encode JSON output: %v", ErrInternal, err)
	}
	return nil
}

// productionErrors flattens a production validation error into one message
// per failed check.
func productionErrors(err error) []string {
	var prodErr *errors.ProductionValidationError
	if stderrors.As(err, &prodErr) {
		messages := make([]string, 0, len(prodErr.Errors))
		for _, e := range prodErr.Errors {
			messages = append(messages, e.Error())
		}
		return messages
	}
	return []string{err.Error()}
}

// productionTips returns production readiness tips based on validation errors
func productionTips(err error) []string {
	var tips []string

	if stderrors.Is(err, errors.ErrVerboseLogging) {
		tips = append(tips, "Set "+config.EnvLogLevel+" to 'info' or 'error' for production (not debug)")
	}
	if stderrors.Is(err, errors.ErrInsecureSkipVerify) {
		tips = append(tips, "Remove vault.insecure_skip_verify and configure vault.ca_cert instead")
	}
	if stderrors.Is(err, errors.ErrTokenInConfigFile) {
		tips = append(tips, "Remove vault.token from the file and provide VAULT_TOKEN through the environment")
	}
	if stderrors.Is(err, errors.ErrPlaintextVault) {
		tips = append(tips, "Use https:// Vault addresses for every remote-secret-source certificate")
	}
	if stderrors.Is(err, errors.ErrNoCertificates) {
		tips = append(tips, "Add at least one entry under certificates")
	}

	return tips
}
