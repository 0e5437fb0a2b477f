package main

import (
	"errors"
	"os"

	"github.com/simonhull/firebird-suite/hatch/internal/commands"
	"github.com/simonhull/firebird-suite/hatch/internal/output"
	"github.com/simonhull/firebird-suite/hatch/internal/pipeline"
)

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd := commands.RootCmd()

	deps := commands.Deps{}
	rootCmd.AddCommand(commands.NewCmd(deps))
	rootCmd.AddCommand(commands.CheckCmd(deps))
	rootCmd.AddCommand(commands.RecipeCmd())

	err := rootCmd.Execute()
	if err == nil {
		return pipeline.ExitOK
	}

	var shown *commands.SilentError
	if !errors.As(err, &shown) {
		output.Error(err.Error())
	}
	return pipeline.ExitCode(err)
}
