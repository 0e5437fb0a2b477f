package commands

import (
	"github.com/simonhull/firebird-suite/hatch"
	"github.com/simonhull/firebird-suite/hatch/internal/output"
	"github.com/spf13/cobra"
)

// RootCmd creates and returns the root command for the hatch CLI
func RootCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "hatch",
		Short: "Bootstrap projects from templates and recipes",
		Long: `hatch turns a freshly generated project into a ready-to-work one.

It follows a recipe through a fixed sequence of phases:
• Check tool versions and the dependency manifest
• Fetch the template (local directory or git repository)
• Edit the Gemfile, install, patch generated files
• Run generators, merge template directories, commit

Settings come from hatch.yml (in the project or ~/.config/hatch),
HATCH_* environment variables and flags, flags winning.`,
		Version:       hatch.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			output.SetVerbose(verbose)
		},
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output for debugging")
	cmd.PersistentFlags().String("config", "", "Config file (default hatch.yml in the project, then ~/.config/hatch)")

	return cmd
}
