// Package exec runs external commands for the hatch pipeline.
//
// The package is domain-agnostic: it knows nothing about bundler, rails or
// git. It provides:
//
// 1. Command - an executable, its arguments, working directory, criticality
// and timeout
// 2. Runner - the interface the pipeline depends on, so pipeline logic can be
// tested with fakes instead of real processes
// 3. Executor - the os/exec implementation with captured output, timeouts and
// an optional spinner
// 4. DryRunner - prints commands instead of running them
//
// # Basic Usage
//
//	executor := exec.NewExecutor(nil)
//	res, err := executor.Run(ctx, exec.Command{Name: "bundle", Args: []string{"install"}, Dir: dir})
//
// Run blocks until the child exits. A non-zero exit is reported as an
// *ExternalCommandFailure regardless of criticality; deciding whether the
// failure is fatal belongs to the caller.
package exec
