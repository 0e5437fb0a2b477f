package pipeline

import (
	"fmt"
	"time"

	"github.com/simonhull/firebird-suite/hatch/internal/exec"
	"github.com/simonhull/firebird-suite/hatch/internal/recipe"
)

// Stage is a phase together with its steps. A deferred stage runs only once
// the phases it waits for have completed.
type Stage struct {
	Phase    Phase
	Steps    []Step
	Deferred bool
}

// Plan converts a recipe into the stages of the step-running phases, in
// execution order. POST_INSTALL is deferred.
func Plan(r *recipe.Recipe) ([]Stage, error) {
	phases := map[string]Phase{
		"edit_manifest":   EditManifest,
		"install":         Install,
		"apply_mutations": ApplyMutations,
		"run_generators":  RunGenerators,
		"post_install":    PostInstall,
		"finalize":        Finalize,
	}

	var stages []Stage
	for _, named := range r.Phases.Named() {
		phase := phases[named.Name]
		stage := Stage{Phase: phase, Deferred: phase == PostInstall}
		for i, s := range named.Steps {
			step, err := buildStep(s)
			if err != nil {
				return nil, fmt.Errorf("%s step %d: %w", named.Name, i, err)
			}
			stage.Steps = append(stage.Steps, step)
		}
		stages = append(stages, stage)
	}
	return stages, nil
}

func buildStep(s recipe.Step) (Step, error) {
	var timeout time.Duration
	if s.Timeout != "" {
		timeout = s.TimeoutOr(0)
	}

	switch s.Kind() {
	case recipe.KindRun:
		crit := exec.Fatal
		if s.BestEffort {
			crit = exec.BestEffort
		}
		return &CommandStep{
			Label: s.Description,
			Command: exec.Command{
				Name:        s.Run[0],
				Args:        s.Run[1:],
				Dir:         s.Dir,
				Criticality: crit,
				Timeout:     timeout,
			},
		}, nil

	case recipe.KindGenerate:
		return &GenerateStep{Name: s.Generate[0], Args: s.Generate[1:], Timeout: timeout}, nil

	case recipe.KindMutate:
		op, err := s.Mutate.Operation()
		if err != nil {
			return nil, err
		}
		return &MutationStep{Op: op, Label: s.Description}, nil

	case recipe.KindGem:
		return &DirectiveStep{Directive: s.Gem.Directive()}, nil

	case recipe.KindRemove:
		return &RemoveStep{Pattern: s.Remove}, nil

	case recipe.KindDirectory:
		return &MergeStep{From: s.Directory.From, To: s.Directory.Target(), Force: s.Directory.Force}, nil

	case recipe.KindCopy:
		return &CopyStep{From: s.Copy.From, To: s.Copy.Target(), Force: s.Copy.Force}, nil

	case recipe.KindVCS:
		return &VCSStep{Op: s.VCS}, nil

	default:
		return nil, fmt.Errorf("step must have exactly one action, found %v", s.Kinds())
	}
}
