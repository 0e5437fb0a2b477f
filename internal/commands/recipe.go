package commands

import (
	"errors"
	"fmt"

	"github.com/simonhull/firebird-suite/hatch/internal/output"
	"github.com/simonhull/firebird-suite/hatch/internal/recipe"
	"github.com/spf13/cobra"
)

// RecipeCmd creates and returns the 'recipe' command group
func RecipeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recipe",
		Short: "Inspect and validate recipes",
	}

	cmd.AddCommand(recipeValidateCmd())
	cmd.AddCommand(recipeShowCmd())

	return cmd
}

func recipeValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate a recipe file",
		Long: `Checks a recipe against the recipe schema, then checks what the
schema cannot express: version constraints, regular expressions,
timeouts and paths that leave the project.

Example:
  hatch recipe validate recipes/api.yml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			verbose, _ := cmd.Flags().GetBool("verbose")
			out := output.NewReporter(cmd.OutOrStdout(), verbose)

			r, err := recipe.Load(args[0])
			var invalid *recipe.InvalidError
			if errors.As(err, &invalid) {
				out.Error(fmt.Sprintf("%s is invalid", args[0]))
				for _, issue := range invalid.Issues {
					loc := issue.Path
					if loc == "" {
						loc = "/"
					}
					out.Step(fmt.Sprintf("%s: %s", loc, issue.Message))
					if issue.Keyword != "" {
						out.Verbose(fmt.Sprintf("  keyword: %s", issue.Keyword))
					}
				}
				return silent(invalid)
			}
			if err != nil {
				return err
			}

			steps := 0
			for _, named := range r.Phases.Named() {
				steps += len(named.Steps)
			}
			out.Success(fmt.Sprintf("%s is valid (%s, %d steps)", args[0], r.Name, steps))
			return nil
		},
	}
}

func recipeShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the built-in recipe",
		Long: `Prints the built-in Rails recipe. Save it and edit it to start a
recipe of your own.

Example:
  hatch recipe show > recipes/rails.yml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := cmd.OutOrStdout().Write(recipe.DefaultYAML())
			return err
		},
	}
}
