package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sufield/certkeeper/internal/core/domain"
	"github.com/sufield/certkeeper/internal/core/services"
)

type resolveReport struct {
	KeyID       string      `json:"key_id,omitempty"`
	Candidates  []keyReport `json:"candidates"`
	DecryptedBy string      `json:"decrypted_by,omitempty"`
	Plaintext   string      `json:"plaintext,omitempty"`
}

type keyReport struct {
	Name       string    `json:"name"`
	KeyID      string    `json:"key_id"`
	Thumbprint string    `json:"thumbprint"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func newResolveCommand(opts *globalOptions) *cobra.Command {
	var (
		kid       string
		tokenFile string
		decrypt   bool
		format    string
		timeout   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Show which decryption keys would be tried for a token",
		Long: `Load the configured certificates once, then resolve decryption key
candidates for a key identifier or a compact JWE token.

A --kid hint takes precedence over the token's own kid or x5t header. When no
loaded key matches, every loaded key is returned as a candidate.`,
		Example: `  # Candidates for a key id
  certkeeper resolve --kid dGh1bWJwcmludA

  # Decrypt a token read from stdin
  certkeeper resolve --token-file - --decrypt`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkFormat(format, "text", "json"); err != nil {
				return err
			}
			if decrypt && tokenFile == "" {
				return fmt.Errorf("%w: --decrypt requires --token-file", ErrUsage)
			}

			token, err := readToken(cmd.InOrStdin(), tokenFile)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			application, err := opts.oneShotApplication(ctx, cmd)
			if err != nil {
				return err
			}
			if _, err := application.RefreshOnce(ctx); err != nil {
				return fmt.Errorf("%w: refresh interrupted: %v", ErrRuntime, err)
			}

			report := resolveReport{KeyID: kid}
			if report.KeyID == "" {
				report.KeyID = services.TokenKeyID(token)
			}

			if decrypt {
				plaintext, key, err := application.Resolver.DecryptToken(token, kid)
				if err != nil {
					return fmt.Errorf("%w: %v", ErrRuntime, err)
				}
				report.Candidates = keyReports([]domain.DecryptionKey{key})
				report.DecryptedBy = key.Name
				report.Plaintext = string(plaintext)
			} else {
				report.Candidates = keyReports(application.Resolver.ResolveToken(token, kid))
			}

			if format == "json" {
				encoder := json.NewEncoder(cmd.OutOrStdout())
				encoder.SetIndent("", "  ")
				if err := encoder.Encode(report); err != nil {
					return fmt.Errorf("%w: failed to encode resolution: %v", ErrInternal, err)
				}
			} else {
				printResolveReport(opts.printer(cmd), cmd.OutOrStdout(), report)
			}

			if len(report.Candidates) == 0 {
				return fmt.Errorf("%w: no decryption keys loaded", ErrSource)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&kid, "kid", "", "Key identifier hint; wins over the token header")
	cmd.Flags().StringVar(&tokenFile, "token-file", "", "File holding a compact JWE token, or - for stdin")
	cmd.Flags().BoolVar(&decrypt, "decrypt", false, "Decrypt the token and print the plaintext")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format (text|json)")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "Maximum time for loading certificates")
	return cmd
}

func readToken(stdin io.Reader, path string) (string, error) {
	if path == "" {
		return "", nil
	}

	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("%w: failed to read token: %v", ErrUsage, err)
	}
	return strings.TrimSpace(string(data)), nil
}

func keyReports(keys []domain.DecryptionKey) []keyReport {
	reports := make([]keyReport, 0, len(keys))
	for _, key := range keys {
		reports = append(reports, keyReport{
			Name:       key.Name,
			KeyID:      key.KeyID,
			Thumbprint: key.Thumbprint,
			UpdatedAt:  key.UpdatedAt,
		})
	}
	return reports
}

func printResolveReport(p *Printer, out io.Writer, report resolveReport) {
	if report.KeyID != "" {
		p.Info("Key id: %s", report.KeyID)
	}
	for _, c := range report.Candidates {
		p.Key("%s: key id %s, thumbprint %s", c.Name, c.KeyID, c.Thumbprint)
	}
	if report.DecryptedBy != "" {
		p.Success("Decrypted with %s", report.DecryptedBy)
		// Plaintext is the command's payload and is printed even with --quiet.
		fmt.Fprintln(out, report.Plaintext)
	}
}
