package exec

import (
	"context"
	"fmt"
	"io"
)

// DryRunner reports commands without running them. Every command succeeds.
type DryRunner struct {
	W io.Writer
}

// Run prints the command line and its working directory.
func (d DryRunner) Run(ctx context.Context, cmd Command) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{Command: cmd, ExitCode: -1}, &ExternalCommandFailure{
			Command:   cmd.String(),
			ExitCode:  -1,
			Cancelled: true,
			Err:       err,
		}
	}
	if d.W != nil {
		dir := cmd.Dir
		if dir == "" {
			dir = "."
		}
		fmt.Fprintf(d.W, "✓ [DRY RUN] %s (in %s)\n", cmd.String(), dir)
	}
	return Result{Command: cmd}, nil
}
