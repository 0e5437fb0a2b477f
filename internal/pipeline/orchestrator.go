// Package pipeline runs a bootstrap as a strict sequence of phases.
//
//	INIT → VALIDATE → RESOLVE_SOURCE → EDIT_MANIFEST → INSTALL →
//	APPLY_MUTATIONS → RUN_GENERATORS → POST_INSTALL → FINALIZE → DONE
//
// Any fatal error moves the run to FAILED and skips every later phase.
// POST_INSTALL is deferred: it is gated on INSTALL, APPLY_MUTATIONS and
// RUN_GENERATORS having completed, so it never runs against a half-installed
// project. There are no retries and no rollback; the target is left in
// whatever state the completed steps produced.
//
// Releasing ephemeral resources is not a phase. The caller owns the
// guard.Guard and releases it in a defer, so cleanup happens on success,
// failure and interrupt alike.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/simonhull/firebird-suite/hatch/internal/exec"
	"github.com/simonhull/firebird-suite/hatch/internal/guard"
	"github.com/simonhull/firebird-suite/hatch/internal/input"
	"github.com/simonhull/firebird-suite/hatch/internal/logger"
	"github.com/simonhull/firebird-suite/hatch/internal/merge"
	"github.com/simonhull/firebird-suite/hatch/internal/output"
	"github.com/simonhull/firebird-suite/hatch/internal/precheck"
	"github.com/simonhull/firebird-suite/hatch/internal/recipe"
	"github.com/simonhull/firebird-suite/hatch/internal/source"
)

// Options configures an Orchestrator.
type Options struct {
	Dir    string         // Target project directory
	Origin string         // Template origin; empty uses the recipe's source
	Recipe *recipe.Recipe // Required

	Runner  exec.Runner     // Runs external commands
	Guard   *guard.Guard    // Owns ephemeral resources; required
	Confirm input.Confirmer // Asked on precondition mismatch (nil declines)
	Out     *output.Reporter
	Log     logger.Logger // Run journal (nil writes nothing)

	DryRun        bool
	Timeout       time.Duration  // Default per-command timeout
	CommitMessage string         // Overrides the recipe's message
	Source        source.Options // Clone options for remote origins

	// Conflicts replaces skipping for directory and copy steps without
	// force. Nil keeps existing files.
	Conflicts merge.ConflictStrategy
}

// Orchestrator sequences the phases of one run. It is not reusable.
type Orchestrator struct {
	opts     Options
	stages   []Stage
	env      *Env
	checker  *precheck.Checker
	resolver *source.Resolver
}

// New builds an orchestrator from opts.
func New(opts Options) (*Orchestrator, error) {
	if opts.Recipe == nil {
		return nil, errors.New("recipe is required")
	}
	if opts.Guard == nil {
		return nil, errors.New("resource guard is required")
	}
	if opts.Runner == nil {
		opts.Runner = exec.NewExecutor(nil)
	}
	if opts.Out == nil {
		opts.Out = output.Default()
	}
	if opts.Confirm == nil {
		opts.Confirm = input.Always(false)
	}
	if opts.Log == nil {
		opts.Log = logger.Nop()
	}

	dir, err := filepath.Abs(opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("resolving target directory: %w", err)
	}
	opts.Dir = dir

	stages, err := Plan(opts.Recipe)
	if err != nil {
		return nil, err
	}

	message := opts.CommitMessage
	if message == "" {
		message = opts.Recipe.CommitMessage
	}

	merger := merge.New()
	merger.DryRun = opts.DryRun
	merger.Strategy = opts.Conflicts

	return &Orchestrator{
		opts:   opts,
		stages: stages,
		env: &Env{
			Dir:           dir,
			Runner:        opts.Runner,
			Merger:        merger,
			Out:           opts.Out,
			Log:           opts.Log,
			ManifestPath:  opts.Recipe.Manifest,
			Generator:     opts.Recipe.Generator,
			CommitMessage: message,
			Timeout:       opts.Timeout,
			DryRun:        opts.DryRun,
		},
		checker:  precheck.NewChecker(opts.Runner, opts.Confirm),
		resolver: source.NewResolver(opts.Runner, opts.Guard, opts.Source),
	}, nil
}

// Stages returns the planned step-running stages.
func (o *Orchestrator) Stages() []Stage {
	return o.stages
}

// Env returns the environment steps run against.
func (o *Orchestrator) Env() *Env {
	return o.env
}

// Run executes the pipeline. The returned state is never nil; the error is
// the state's fatal error, a *PhaseError.
func (o *Orchestrator) Run(ctx context.Context) (*State, error) {
	st := newState()
	out := o.opts.Out
	o.opts.Log.Info("run started",
		logger.F("dir", o.opts.Dir),
		logger.F("recipe", o.opts.Recipe.Name),
		logger.F("dry_run", o.opts.DryRun))

	if err := o.phase(ctx, st, Validate, o.validate); err != nil {
		return st, err
	}
	if err := o.phase(ctx, st, ResolveSource, o.resolveSource); err != nil {
		return st, err
	}

	for _, stage := range o.stages {
		if stage.Deferred && !o.gateOpen(st) {
			st.enter(stage.Phase)
			return st, o.failed(st, &PhaseError{Phase: stage.Phase, Err: ErrGateClosed})
		}
		if err := o.phase(ctx, st, stage.Phase, func(ctx context.Context, st *State) error {
			return o.runSteps(ctx, st, stage)
		}); err != nil {
			return st, err
		}
	}

	st.enter(Done)
	o.opts.Log.Info("run finished", logger.F("steps", len(st.Completed)))
	if o.opts.DryRun {
		out.Success("Dry run complete, nothing was written")
	} else {
		out.Success(fmt.Sprintf("Project ready in %s", o.opts.Dir))
	}
	if skipped := o.env.Merger.Report().Skipped; len(skipped) > 0 {
		out.Info(fmt.Sprintf("%d existing file(s) kept; rerun the step with force to overwrite", len(skipped)))
		for _, s := range skipped {
			out.Verbose(s)
		}
	}
	return st, nil
}

// gateOpen reports whether the deferred phase may run.
func (o *Orchestrator) gateOpen(st *State) bool {
	return st.PhaseCompleted(Install) &&
		st.PhaseCompleted(ApplyMutations) &&
		st.PhaseCompleted(RunGenerators)
}

func (o *Orchestrator) phase(ctx context.Context, st *State, p Phase, fn func(context.Context, *State) error) error {
	st.enter(p)
	o.opts.Out.Phase(p.String())
	o.opts.Log.Info("phase started", logger.F("phase", p))

	if err := ctx.Err(); err != nil {
		return o.failed(st, &PhaseError{Phase: p, Err: err})
	}
	if err := fn(ctx, st); err != nil {
		var pe *PhaseError
		if !errors.As(err, &pe) {
			pe = &PhaseError{Phase: p, Err: err}
		}
		return o.failed(st, pe)
	}
	st.complete(p)
	o.opts.Log.Info("phase completed", logger.F("phase", p))
	return nil
}

func (o *Orchestrator) failed(st *State, err *PhaseError) error {
	st.fail(err)
	o.opts.Out.Error(err.Error())
	o.opts.Log.Error("run failed",
		logger.F("phase", err.Phase),
		logger.F("step", err.Step),
		logger.F("exit", err.ExitCode()),
		logger.F("err", err.Err))
	return err
}

func (o *Orchestrator) runSteps(ctx context.Context, st *State, stage Stage) error {
	for _, step := range stage.Steps {
		desc := step.Description()
		if err := ctx.Err(); err != nil {
			return &PhaseError{Phase: stage.Phase, Step: desc, Err: err}
		}
		o.opts.Out.Step(desc)
		o.opts.Log.Debug("step", logger.F("phase", stage.Phase), logger.F("step", desc))
		if err := step.Execute(ctx, o.env); err != nil {
			return &PhaseError{Phase: stage.Phase, Step: desc, Err: err}
		}
		st.record(stage.Phase, desc)
	}
	return nil
}

// validate checks the target, every planned step and the recipe's
// preconditions. Nothing is written.
func (o *Orchestrator) validate(ctx context.Context, st *State) error {
	info, err := os.Stat(o.opts.Dir)
	if err != nil {
		return fmt.Errorf("target directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("target %s is not a directory", o.opts.Dir)
	}

	for _, stage := range o.stages {
		for _, step := range stage.Steps {
			if err := step.Validate(ctx, o.env); err != nil {
				return &PhaseError{Phase: Validate, Step: step.Description(), Err: err}
			}
		}
	}

	req := o.opts.Recipe.Requires
	if req == nil {
		return nil
	}
	return o.checker.Check(ctx, precheck.Requirement{
		Tool:           req.Tool,
		VersionCommand: req.VersionCommand,
		Constraint:     req.Constraint,
		ManifestMarker: req.ManifestMarker,
	}, o.opts.Dir, o.env.Path(o.env.ManifestPath))
}

func (o *Orchestrator) resolveSource(ctx context.Context, st *State) error {
	fallback := o.opts.Recipe.Source
	if fallback == "" {
		fallback = o.opts.Recipe.Dir
	}
	if o.opts.Origin == "" && fallback == "" {
		o.opts.Out.Verbose("recipe has no template source")
		return nil
	}
	src, err := o.resolver.Resolve(ctx, o.opts.Origin, fallback)
	if err != nil {
		return err
	}
	o.env.Source = src
	o.opts.Log.Info("template resolved",
		logger.F("origin", src.Origin),
		logger.F("dir", src.Dir),
		logger.F("ephemeral", src.Ephemeral))
	if src.Ephemeral {
		o.opts.Out.Verbose(fmt.Sprintf("cloned %s into %s", src.Origin, src.Dir))
	}
	return nil
}
