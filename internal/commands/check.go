package commands

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/simonhull/firebird-suite/hatch/internal/precheck"
	"github.com/spf13/cobra"
)

// CheckCmd creates and returns the 'check' command, which runs only a
// recipe's preconditions
func CheckCmd(d Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify a project meets the recipe's requirements",
		Long: `Runs the recipe's version check and manifest check without
changing anything. Exits non-zero when a requirement is not met.

Example:
  hatch check --dir myapp`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, d)
		},
	}

	cmd.Flags().StringP("dir", "C", ".", "Project directory to check")
	cmd.Flags().StringP("recipe", "r", "", "Recipe file (default: built-in Rails recipe)")

	return cmd
}

func runCheck(cmd *cobra.Command, d Deps) error {
	dirFlag, _ := cmd.Flags().GetString("dir")
	dir, err := filepath.Abs(dirFlag)
	if err != nil {
		return fmt.Errorf("resolving project directory: %w", err)
	}

	s, err := settings(cmd, dir)
	if err != nil {
		return err
	}
	out := reporter(cmd, s)

	r, err := loadRecipe(s.Recipe)
	if err != nil {
		return err
	}
	if r.Requires == nil {
		out.Info(fmt.Sprintf("Recipe %s declares no requirements", r.Name))
		return nil
	}

	req := precheck.Requirement{
		Tool:           r.Requires.Tool,
		VersionCommand: r.Requires.VersionCommand,
		Constraint:     r.Requires.Constraint,
		ManifestMarker: r.Requires.ManifestMarker,
	}

	// Never prompt: a mismatch is the answer.
	checker := precheck.NewChecker(d.runner(cmd, s), nil)
	err = checker.Check(cmd.Context(), req, dir, filepath.Join(dir, r.Manifest))

	var mismatch *precheck.VersionMismatchError
	if errors.As(err, &mismatch) {
		return mismatch
	}
	if err != nil {
		return err
	}

	if req.Constraint != "" {
		out.Success(fmt.Sprintf("%s satisfies %s", req.Tool, req.Constraint))
	}
	if req.ManifestMarker != "" {
		out.Success(fmt.Sprintf("%s declares %s", r.Manifest, req.ManifestMarker))
	}
	return nil
}
