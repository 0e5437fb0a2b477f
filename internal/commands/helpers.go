package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/simonhull/firebird-suite/hatch/internal/config"
	"github.com/simonhull/firebird-suite/hatch/internal/exec"
	"github.com/simonhull/firebird-suite/hatch/internal/guard"
	"github.com/simonhull/firebird-suite/hatch/internal/input"
	"github.com/simonhull/firebird-suite/hatch/internal/logger"
	"github.com/simonhull/firebird-suite/hatch/internal/output"
	"github.com/simonhull/firebird-suite/hatch/internal/recipe"
	"github.com/spf13/cobra"
)

// Deps are the collaborators commands run against. Zero values use the real
// process runner and a terminal prompt.
type Deps struct {
	Runner  exec.Runner
	Confirm input.Confirmer
}

func (d Deps) runner(cmd *cobra.Command, s *config.Settings) exec.Runner {
	if d.Runner != nil {
		return d.Runner
	}
	return exec.NewExecutor(&exec.Options{
		Stdout:  cmd.OutOrStdout(),
		Stderr:  cmd.ErrOrStderr(),
		Timeout: s.Timeout,
		Spinner: !s.Verbose,
	})
}

func (d Deps) confirmer(cmd *cobra.Command, s *config.Settings) input.Confirmer {
	if s.AssumeYes {
		return input.Always(true)
	}
	if d.Confirm != nil {
		return d.Confirm
	}
	return &input.Terminal{In: cmd.InOrStdin(), Out: cmd.OutOrStdout()}
}

// settings loads configuration for a command operating on dir.
func settings(cmd *cobra.Command, dir string) (*config.Settings, error) {
	file, _ := cmd.Flags().GetString("config")
	return config.Load(config.Options{Dir: dir, File: file, Flags: cmd.Flags()})
}

func reporter(cmd *cobra.Command, s *config.Settings) *output.Reporter {
	return output.NewReporter(cmd.OutOrStdout(), s.Verbose)
}

// openJournal opens the run journal named in s, if any. The file is closed
// when g is released.
func openJournal(g *guard.Guard, s *config.Settings) (logger.Logger, error) {
	if s.LogFile == "" {
		return logger.Nop(), nil
	}
	level, err := logger.ParseLevel(s.LogLevel)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(s.LogFile), 0o755); err != nil {
		return nil, fmt.Errorf("creating journal directory: %w", err)
	}
	f, err := os.OpenFile(s.LogFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	if _, err := g.Acquire("journal", func() (guard.Resource, error) {
		return guard.Func{Name: s.LogFile, Fn: f.Close}, nil
	}); err != nil {
		f.Close()
		return nil, err
	}
	return logger.New(level, f).WithFields(logger.F("pid", os.Getpid())), nil
}

// loadRecipe reads the recipe at path, or the built-in one when path is empty.
func loadRecipe(path string) (*recipe.Recipe, error) {
	if path == "" {
		return recipe.Default(), nil
	}
	r, err := recipe.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading recipe: %w", err)
	}
	return r, nil
}

// SilentError wraps an error that has already been shown to the user.
type SilentError struct {
	Err error
}

func (e *SilentError) Error() string { return e.Err.Error() }

func (e *SilentError) Unwrap() error { return e.Err }

func silent(err error) error {
	if err == nil {
		return nil
	}
	return &SilentError{Err: err}
}
