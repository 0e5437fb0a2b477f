package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/simonhull/firebird-suite/hatch/internal/diff"
	"github.com/simonhull/firebird-suite/hatch/internal/exec"
	"github.com/simonhull/firebird-suite/hatch/internal/logger"
	"github.com/simonhull/firebird-suite/hatch/internal/manifest"
	"github.com/simonhull/firebird-suite/hatch/internal/merge"
	"github.com/simonhull/firebird-suite/hatch/internal/mutate"
	"github.com/simonhull/firebird-suite/hatch/internal/output"
	"github.com/simonhull/firebird-suite/hatch/internal/source"
)

// Step is one unit of work in a phase.
//
// Validate checks the step is well formed without touching the target. All
// steps are validated in VALIDATE, before the source is resolved, so it must
// not depend on files that earlier steps create.
//
// Execute performs the step. In dry-run mode it reports what it would do.
type Step interface {
	Description() string
	Validate(ctx context.Context, env *Env) error
	Execute(ctx context.Context, env *Env) error
}

// Env is what steps operate on.
type Env struct {
	Dir           string                 // Target project directory
	Source        *source.TemplateSource // Set in RESOLVE_SOURCE
	Runner        exec.Runner
	Merger        *merge.Merger
	Out           *output.Reporter
	Log           logger.Logger
	ManifestPath  string   // Relative to Dir
	Generator     []string // Generator command prefix, e.g. [rails generate]
	CommitMessage string
	Timeout       time.Duration // Default per-command timeout
	DryRun        bool

	editor *manifest.Editor
}

// Path resolves rel inside the target directory.
func (e *Env) Path(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(e.Dir, rel)
}

func (e *Env) runner() exec.Runner {
	if e.DryRun {
		return exec.DryRunner{W: e.Out.Writer()}
	}
	return e.Runner
}

func (e *Env) logger() logger.Logger {
	if e.Log == nil {
		return logger.Nop()
	}
	return e.Log
}

// manifest opens the manifest. Real runs read it from disk for every step
// so edits made since the last step survive; dry runs keep one editor so
// pending edits accumulate.
func (e *Env) manifest() (*manifest.Editor, error) {
	if e.DryRun && e.editor != nil {
		return e.editor, nil
	}
	ed, err := manifest.Open(e.Path(e.ManifestPath))
	if err != nil {
		return nil, err
	}
	if e.DryRun {
		e.editor = ed
	}
	return ed, nil
}

// saveManifest persists manifest edits, or prints them in dry-run mode.
func (e *Env) saveManifest(ed *manifest.Editor, before string) error {
	if e.DryRun {
		if d := diff.Plain(e.ManifestPath, []byte(before), []byte(ed.Content())); d != "" {
			e.Out.Raw(d)
		}
		return nil
	}
	return ed.Save()
}

func insideProject(rel string) error {
	if rel == "" {
		return errors.New("path is required")
	}
	if filepath.IsAbs(rel) {
		return fmt.Errorf("path %s must be relative to the project", rel)
	}
	clean := filepath.Clean(rel)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path %s leaves the project", rel)
	}
	return nil
}

// MutationStep applies a text mutation to a project file.
type MutationStep struct {
	Op    mutate.Operation
	Label string
}

func (s *MutationStep) Description() string {
	if s.Label != "" {
		return s.Label
	}
	return s.Op.Describe()
}

func (s *MutationStep) Validate(ctx context.Context, env *Env) error {
	if err := insideProject(s.Op.File); err != nil {
		return err
	}
	return s.Op.Validate()
}

func (s *MutationStep) Execute(ctx context.Context, env *Env) error {
	op := s.Op
	path := env.Path(op.File)
	op.File = path

	if env.DryRun {
		res, err := mutate.Preview(path, op)
		if errors.Is(err, os.ErrNotExist) {
			env.Out.Verbose(fmt.Sprintf("%s does not exist yet; it would be edited once created", s.Op.File))
			return nil
		}
		if err != nil {
			return err
		}
		if res.Changed {
			env.Out.Raw(res.Diff(s.Op.File))
		}
		return nil
	}

	res, err := mutate.ApplyFile(path, op)
	if err != nil {
		return err
	}
	if !res.Changed {
		env.Out.Verbose(fmt.Sprintf("%s unchanged", s.Op.File))
	}
	return nil
}

// DirectiveStep declares a dependency in the manifest.
type DirectiveStep struct {
	Directive manifest.Directive
}

func (s *DirectiveStep) Description() string {
	if s.Directive.Group.IsRuntime() {
		return fmt.Sprintf("Add %s", s.Directive.Render())
	}
	return fmt.Sprintf("Add %s (%s)", s.Directive.Render(), manifest.NormalizeGroup(string(s.Directive.Group)))
}

func (s *DirectiveStep) Validate(ctx context.Context, env *Env) error {
	return s.Directive.Validate()
}

func (s *DirectiveStep) Execute(ctx context.Context, env *Env) error {
	ed, err := env.manifest()
	if err != nil {
		return err
	}
	before := ed.Content()
	if err := ed.Add(s.Directive); err != nil {
		return err
	}
	return env.saveManifest(ed, before)
}

// RemoveStep deletes every manifest match of a pattern.
type RemoveStep struct {
	Pattern string
}

func (s *RemoveStep) Description() string {
	return fmt.Sprintf("Remove /%s/ from manifest", strings.TrimSuffix(s.Pattern, `\n`))
}

func (s *RemoveStep) Validate(ctx context.Context, env *Env) error {
	_, err := manifest.New("").RemoveMatching(s.Pattern)
	return err
}

func (s *RemoveStep) Execute(ctx context.Context, env *Env) error {
	ed, err := env.manifest()
	if err != nil {
		return err
	}
	before := ed.Content()
	n, err := ed.RemoveMatching(s.Pattern)
	if err != nil {
		return err
	}
	env.Out.Verbose(fmt.Sprintf("removed %d match(es)", n))
	return env.saveManifest(ed, before)
}

// CommandStep runs an external command in the project directory.
type CommandStep struct {
	Command exec.Command
	Label   string
}

func (s *CommandStep) Description() string {
	if s.Label != "" {
		return s.Label
	}
	return "Run " + s.Command.String()
}

func (s *CommandStep) Validate(ctx context.Context, env *Env) error {
	if strings.TrimSpace(s.Command.Name) == "" {
		return errors.New("command name is required")
	}
	if s.Command.Dir != "" {
		return insideProject(s.Command.Dir)
	}
	return nil
}

func (s *CommandStep) Execute(ctx context.Context, env *Env) error {
	return runCommand(ctx, env, s.Command)
}

// runCommand runs cmd in the project. A best-effort failure is reported and
// swallowed unless it was a timeout or cancellation.
func runCommand(ctx context.Context, env *Env, cmd exec.Command) error {
	if cmd.Dir == "" {
		cmd.Dir = env.Dir
	} else {
		cmd.Dir = env.Path(cmd.Dir)
	}
	if cmd.Timeout == 0 {
		cmd.Timeout = env.Timeout
	}

	log := env.logger().WithFields(logger.F("command", cmd.String()), logger.F("dir", cmd.Dir))
	res, err := env.runner().Run(ctx, cmd)
	if err == nil {
		log.Info("command finished", logger.F("exit", res.ExitCode), logger.F("duration", res.Duration))
		return nil
	}

	if f, ok := exec.AsFailure(err); ok && !f.Cancelled && cmd.Criticality == exec.BestEffort {
		env.Out.Warn(fmt.Sprintf("%s (ignored)", f.Error()))
		log.Warn("best-effort command failed", logger.F("exit", f.ExitCode), logger.F("stderr", f.Stderr))
		return nil
	}
	log.Error("command failed", logger.F("criticality", cmd.Criticality), logger.F("err", err))
	return err
}

// GenerateStep invokes the recipe's generator with a name and arguments.
type GenerateStep struct {
	Name    string
	Args    []string
	Timeout time.Duration
}

func (s *GenerateStep) Description() string {
	return strings.TrimSpace("Generate " + s.Name + " " + strings.Join(s.Args, " "))
}

func (s *GenerateStep) Validate(ctx context.Context, env *Env) error {
	if s.Name == "" {
		return errors.New("generator name is required")
	}
	if len(env.Generator) == 0 {
		return errors.New("no generator command configured")
	}
	return nil
}

func (s *GenerateStep) Execute(ctx context.Context, env *Env) error {
	args := append([]string{}, env.Generator[1:]...)
	args = append(args, s.Name)
	args = append(args, s.Args...)
	return runCommand(ctx, env, exec.Command{
		Name:        env.Generator[0],
		Args:        args,
		Criticality: exec.Fatal,
		Timeout:     s.Timeout,
	})
}

// MergeStep copies a template directory into the project.
type MergeStep struct {
	From  string // Relative to the template source
	To    string // Relative to the project
	Force bool
}

func (s *MergeStep) Description() string {
	mode := "skip existing"
	if s.Force {
		mode = "force"
	}
	return fmt.Sprintf("Merge directory %s into %s (%s)", s.From, s.To, mode)
}

func (s *MergeStep) Validate(ctx context.Context, env *Env) error {
	if err := insideProject(s.From); err != nil {
		return fmt.Errorf("source %w", err)
	}
	return insideProject(s.To)
}

func (s *MergeStep) Execute(ctx context.Context, env *Env) error {
	if env.Source == nil {
		return errors.New("template source not resolved")
	}
	written, err := env.Merger.Merge(ctx, filepath.Join(env.Source.Dir, s.From), env.Path(s.To), s.Force)
	if err != nil {
		return err
	}
	for _, w := range written {
		env.Out.Verbose(filepath.Join(s.To, w))
	}
	return nil
}

// CopyStep copies a single template file into the project.
type CopyStep struct {
	From  string
	To    string
	Force bool
}

func (s *CopyStep) Description() string {
	return fmt.Sprintf("Copy %s to %s", s.From, s.To)
}

func (s *CopyStep) Validate(ctx context.Context, env *Env) error {
	if err := insideProject(s.From); err != nil {
		return fmt.Errorf("source %w", err)
	}
	return insideProject(s.To)
}

func (s *CopyStep) Execute(ctx context.Context, env *Env) error {
	if env.Source == nil {
		return errors.New("template source not resolved")
	}
	ok, err := env.Merger.CopyFile(ctx, filepath.Join(env.Source.Dir, s.From), env.Path(s.To), s.Force)
	if err != nil {
		return err
	}
	if !ok {
		env.Out.Verbose(fmt.Sprintf("%s exists, skipped", s.To))
	}
	return nil
}

// VCS operations.
const (
	VCSInit   = "init"
	VCSAdd    = "add"
	VCSCommit = "commit"
)

// VCSStep initializes, stages or commits the project repository.
type VCSStep struct {
	Op  string
	Git string // git executable (default "git")
}

func (s *VCSStep) Description() string {
	return "git " + s.Op
}

func (s *VCSStep) Validate(ctx context.Context, env *Env) error {
	switch s.Op {
	case VCSInit, VCSAdd:
		return nil
	case VCSCommit:
		if strings.TrimSpace(env.CommitMessage) == "" {
			return errors.New("commit message is empty")
		}
		return nil
	default:
		return fmt.Errorf("unknown vcs operation %q", s.Op)
	}
}

func (s *VCSStep) Execute(ctx context.Context, env *Env) error {
	git := s.Git
	if git == "" {
		git = "git"
	}

	var args []string
	switch s.Op {
	case VCSInit:
		args = []string{"init", "--quiet"}
	case VCSAdd:
		args = []string{"add", "-A", "."}
	case VCSCommit:
		args = []string{"commit", "--quiet", "-m", env.CommitMessage}
	default:
		return fmt.Errorf("unknown vcs operation %q", s.Op)
	}
	return runCommand(ctx, env, exec.Command{Name: git, Args: args, Criticality: exec.Fatal})
}
