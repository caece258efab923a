package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/biomech/coretex/internal/manifest"
	"github.com/biomech/coretex/internal/model"
)

// DefaultManifestPath is checked when no path is given.
const DefaultManifestPath = "pyproject.toml"

// NewManifestCommand creates the "manifest" command group.
func NewManifestCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "manifest",
		Short: "Inspect the Python package manifest",
	}
	cmd.AddCommand(newManifestCheckCommand())
	return cmd
}

func newManifestCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check [path]",
		Short: "Validate pyproject.toml against the packaging rules",
		Long: `Check that the manifest names the package and its version, builds with
setuptools, supports Python 3.8 or newer, and declares every runtime
dependency with the required pins.

Exits with code 9 when any rule is violated.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := DefaultManifestPath
			if len(args) == 1 {
				path = args[0]
			}

			m, err := manifest.Load(path)
			if err != nil {
				return err
			}
			findings := manifest.Check(m, manifest.DefaultRules())

			out := cmd.OutOrStdout()
			if IsJSONOutput() {
				if findings == nil {
					findings = []manifest.Finding{}
				}
				if err := printJSON(out, map[string]any{"path": path, "findings": findings}); err != nil {
					return err
				}
			} else {
				for _, f := range findings {
					errorEcho(out, "  %s", f)
				}
			}

			if len(findings) > 0 {
				return model.NewCLIError(model.ExitManifestInvalid,
					fmt.Sprintf("%s: %d problem(s) found", path, len(findings)))
			}
			if !IsJSONOutput() {
				successEcho(out, "%s %s is valid", m.Project.Name, m.Project.Version)
			}
			return nil
		},
	}
}
