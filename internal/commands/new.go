package commands

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/simonhull/firebird-suite/hatch/internal/guard"
	"github.com/simonhull/firebird-suite/hatch/internal/lock"
	"github.com/simonhull/firebird-suite/hatch/internal/merge"
	"github.com/simonhull/firebird-suite/hatch/internal/pipeline"
	"github.com/simonhull/firebird-suite/hatch/internal/source"
	"github.com/spf13/cobra"
)

// NewCmd creates and returns the 'new' command that bootstraps a project
func NewCmd(d Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "new [template]",
		Short: "Bootstrap a project from a template",
		Long: `Runs a recipe against a freshly generated project.

The template is a local directory or a git URL; remote templates are
cloned into a temporary directory that is removed when the run ends,
whether it succeeds, fails or is interrupted. Without an argument the
recipe's own source is used.

Example:
  rails new myapp -d postgresql --skip-test
  hatch new --dir myapp
  hatch new ~/templates/rails --dir myapp --dry-run`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var origin string
			if len(args) == 1 {
				origin = args[0]
			}
			return runNew(cmd, d, origin)
		},
	}

	cmd.Flags().StringP("dir", "C", ".", "Project directory to bootstrap")
	cmd.Flags().StringP("recipe", "r", "", "Recipe file (default: built-in Rails recipe)")
	cmd.Flags().BoolP("dry-run", "n", false, "Show what would change without writing or running anything")
	cmd.Flags().BoolP("yes", "y", false, "Continue past precondition mismatches without asking")
	cmd.Flags().Duration("timeout", 0, "Default timeout per external command (0 = 30m)")
	cmd.Flags().String("commit-message", "", "Override the recipe's initial commit message")
	cmd.Flags().String("lock-file", "", "Lock file path (default: per-project file in the temp directory)")
	cmd.Flags().String("ref", "", "Branch or tag to clone for remote templates")
	cmd.Flags().Bool("shallow", true, "Clone remote templates with --depth 1")
	cmd.Flags().BoolP("interactive", "i", false, "Show a diff and ask before overwriting existing files")
	cmd.Flags().String("log-file", "", "Append a journal of the run to this file")
	cmd.Flags().String("log-level", "info", "Journal level: debug, info, warn, error")

	return cmd
}

func runNew(cmd *cobra.Command, d Deps, origin string) error {
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
	if s.File != "" {
		out.Verbose(fmt.Sprintf("using config %s", s.File))
	}

	r, err := loadRecipe(s.Recipe)
	if err != nil {
		return err
	}

	g := guard.New()
	defer func() {
		if rerr := g.Release(); rerr != nil {
			var ce *guard.CleanupError
			if errors.As(rerr, &ce) {
				for _, e := range ce.Errs {
					out.Warn(fmt.Sprintf("cleanup: %v", e))
				}
				return
			}
			out.Warn(fmt.Sprintf("cleanup: %v", rerr))
		}
	}()

	ctx, stop := guard.NotifyContext(cmd.Context())
	defer stop()

	log, err := openJournal(g, s)
	if err != nil {
		return err
	}

	if !s.DryRun {
		path := s.LockFile
		if path == "" {
			if path, err = lock.PathFor(dir); err != nil {
				return err
			}
		}
		if _, err := g.Acquire("lock", func() (guard.Resource, error) {
			l, err := lock.AcquirePath(path)
			if err != nil {
				return nil, err
			}
			return l, nil
		}); err != nil {
			return err
		}
	}

	confirm := d.confirmer(cmd, s)
	var conflicts merge.ConflictStrategy
	if s.Interactive {
		conflicts = merge.PromptStrategy{Confirm: confirm, Out: out.Writer()}
	}

	o, err := pipeline.New(pipeline.Options{
		Dir:           dir,
		Origin:        origin,
		Recipe:        r,
		Runner:        d.runner(cmd, s),
		Guard:         g,
		Confirm:       confirm,
		Out:           out,
		Log:           log,
		DryRun:        s.DryRun,
		Timeout:       s.Timeout,
		CommitMessage: s.CommitMessage,
		Source:        source.Options{Ref: s.Ref, Shallow: s.Shallow},
		Conflicts:     conflicts,
	})
	if err != nil {
		return err
	}

	out.Info(fmt.Sprintf("Bootstrapping %s with recipe %s", dir, r.Name))
	_, err = o.Run(ctx)
	return silent(err)
}
