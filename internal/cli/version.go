package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sufield/certkeeper/internal/buildinfo"
)

func newVersionCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  "Display detailed version and build information for certkeeper.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkFormat(format, "text", "json", "yaml"); err != nil {
				return err
			}

			info := buildinfo.Get()
			out := cmd.OutOrStdout()

			switch format {
			case "json":
				encoder := json.NewEncoder(out)
				encoder.SetIndent("", "  ")
				if err := encoder.Encode(info); err != nil {
					return fmt.Errorf("%w: failed to encode version info as JSON: %v", ErrInternal, err)
				}
			case "yaml":
				encoder := yaml.NewEncoder(out)
				defer encoder.Close()
				if err := encoder.Encode(info); err != nil {
					return fmt.Errorf("%w: failed to encode version info as YAML: %v", ErrInternal, err)
				}
			default:
				fmt.Fprintf(out, "Version: %s\n", info.Version)
				fmt.Fprintf(out, "Commit: %s\n", info.CommitHash)
				fmt.Fprintf(out, "Build Time: %s\n", info.BuildTime)
				fmt.Fprintf(out, "Build User: %s\n", info.BuildUser)
				fmt.Fprintf(out, "Build Host: %s\n", info.BuildHost)
				fmt.Fprintf(out, "Go Version: %s\n", info.GoVersion)
				fmt.Fprintf(out, "OS/Arch: %s/%s\n", info.GOOS, info.GOARCH)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format (text|json|yaml)")
	return cmd
}
