package merge

import (
	"context"
	"fmt"
	"io"

	"github.com/simonhull/firebird-suite/hatch/internal/diff"
	"github.com/simonhull/firebird-suite/hatch/internal/input"
)

// Resolution is what to do with a file that already exists in the target.
type Resolution int

const (
	Skip Resolution = iota
	Overwrite
)

func (r Resolution) String() string {
	if r == Overwrite {
		return "overwrite"
	}
	return "skip"
}

// ConflictStrategy decides how an existing target file is handled.
type ConflictStrategy interface {
	Resolve(ctx context.Context, path string, existing, newer []byte) (Resolution, error)
}

// StrategyFor returns ForceStrategy when force is set, SkipStrategy otherwise.
func StrategyFor(force bool) ConflictStrategy {
	if force {
		return ForceStrategy{}
	}
	return SkipStrategy{}
}

// ForceStrategy always overwrites.
type ForceStrategy struct{}

func (ForceStrategy) Resolve(context.Context, string, []byte, []byte) (Resolution, error) { return Overwrite, nil }

// SkipStrategy always keeps the existing file.
type SkipStrategy struct{}

func (SkipStrategy) Resolve(context.Context, string, []byte, []byte) (Resolution, error) { return Skip, nil }

// PromptStrategy shows the diff and asks before overwriting. A nil
// Confirmer uses the terminal.
type PromptStrategy struct {
	Confirm input.Confirmer
	Out     io.Writer
}

// Resolve prints the diff between the existing and incoming file and asks
// whether to overwrite. Identical files are skipped without asking. A
// cancelled ctx abandons the question.
func (s PromptStrategy) Resolve(ctx context.Context, path string, existing, newer []byte) (Resolution, error) {
	if string(existing) == string(newer) {
		return Skip, nil
	}
	if s.Out != nil {
		if _, err := fmt.Fprintln(s.Out, diff.Unified(path, existing, newer)); err != nil {
			return Skip, err
		}
	}

	confirm := s.Confirm
	if confirm == nil {
		confirm = input.NewTerminal()
	}
	ok, err := confirm.Confirm(ctx, fmt.Sprintf("Overwrite %s?", path), false)
	if err != nil {
		return Skip, err
	}
	if ok {
		return Overwrite, nil
	}
	return Skip, nil
}
