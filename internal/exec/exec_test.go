package exec

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockCommand returns a command that re-executes the test binary as a fake
// external tool.
func mockCommand(ctx context.Context, name string, args ...string) *exec.Cmd {
	cs := []string{"-test.run=TestHelperProcess", "--", name}
	cs = append(cs, args...)
	cmd := exec.CommandContext(ctx, os.Args[0], cs...)
	cmd.Env = []string{"GO_WANT_HELPER_PROCESS=1"}
	return cmd
}

// TestHelperProcess is the fake external tool.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	args := os.Args
	for i, arg := range args {
		if arg == "--" {
			args = args[i+1:]
			break
		}
	}

	if len(args) == 0 {
		fmt.Fprintf(os.Stderr, "no command specified\n")
		os.Exit(1)
	}

	switch args[0] {
	case "echo":
		fmt.Println(strings.Join(args[1:], " "))
		os.Exit(0)
	case "pwd":
		wd, _ := os.Getwd()
		fmt.Println(wd)
		os.Exit(0)
	case "env":
		fmt.Println(os.Getenv(args[1]))
		os.Exit(0)
	case "sleep":
		time.Sleep(10 * time.Second)
		os.Exit(0)
	case "error":
		fmt.Fprintf(os.Stderr, "error occurred\n")
		os.Exit(3)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		os.Exit(1)
	}
}

func newTestExecutor(stdout, stderr *bytes.Buffer) *Executor {
	e := NewExecutor(&Options{Stdout: stdout, Stderr: stderr})
	e.commandFunc = mockCommand
	return e
}

func TestNewExecutor(t *testing.T) {
	executor := NewExecutor(nil)
	assert.NotNil(t, executor)
	assert.Equal(t, os.Stdout, executor.stdout)
	assert.Equal(t, os.Stderr, executor.stderr)
	assert.Equal(t, DefaultTimeout, executor.timeout)
	assert.NotNil(t, executor.commandFunc)

	var stdout, stderr bytes.Buffer
	executor = NewExecutor(&Options{
		Stdout:  &stdout,
		Stderr:  &stderr,
		Env:     []string{"TEST=1"},
		Timeout: time.Minute,
	})
	assert.Equal(t, &stdout, executor.stdout)
	assert.Equal(t, &stderr, executor.stderr)
	assert.Equal(t, []string{"TEST=1"}, executor.env)
	assert.Equal(t, time.Minute, executor.timeout)
}

func TestExecutor_Run(t *testing.T) {
	var stdout, stderr bytes.Buffer
	executor := newTestExecutor(&stdout, &stderr)

	res, err := executor.Run(context.Background(), Command{Name: "echo", Args: []string{"hello", "world"}})

	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Contains(t, stdout.String(), "hello world")
	assert.Contains(t, res.Stdout, "hello world")
}

func TestExecutor_RunInDirectory(t *testing.T) {
	var stdout, stderr bytes.Buffer
	executor := newTestExecutor(&stdout, &stderr)
	dir := t.TempDir()

	res, err := executor.Run(context.Background(), Command{Name: "pwd", Dir: dir})

	require.NoError(t, err)
	assert.Contains(t, res.Stdout, filepath.Base(dir))
}

func TestExecutor_NonZeroExit(t *testing.T) {
	var stdout, stderr bytes.Buffer
	executor := newTestExecutor(&stdout, &stderr)

	res, err := executor.Run(context.Background(), Command{Name: "error"})

	require.Error(t, err)
	failure, ok := AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, 3, failure.ExitCode)
	assert.Equal(t, 3, res.ExitCode)
	assert.False(t, failure.Cancelled)
	assert.Contains(t, failure.Stderr, "error occurred")
	assert.Contains(t, err.Error(), "exit code 3")
	assert.Contains(t, stderr.String(), "error occurred")
}

func TestExecutor_Timeout(t *testing.T) {
	var stdout, stderr bytes.Buffer
	executor := newTestExecutor(&stdout, &stderr)

	start := time.Now()
	_, err := executor.Run(context.Background(), Command{Name: "sleep", Timeout: 50 * time.Millisecond})

	require.Error(t, err)
	failure, ok := AsFailure(err)
	require.True(t, ok)
	assert.True(t, failure.Cancelled)
	assert.Contains(t, err.Error(), "cancelled")
	assert.Less(t, time.Since(start), 8*time.Second)
}

func TestExecutor_ParentCancellation(t *testing.T) {
	var stdout, stderr bytes.Buffer
	executor := newTestExecutor(&stdout, &stderr)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := executor.Run(ctx, Command{Name: "sleep"})

	failure, ok := AsFailure(err)
	require.True(t, ok)
	assert.True(t, failure.Cancelled)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExecutor_Environment(t *testing.T) {
	var stdout, stderr bytes.Buffer
	executor := newTestExecutor(&stdout, &stderr)
	executor.env = []string{"HATCH_BASE=base"}

	res, err := executor.Run(context.Background(), Command{
		Name: "env",
		Args: []string{"HATCH_EXTRA"},
		Env:  []string{"HATCH_EXTRA=extra"},
	})

	require.NoError(t, err)
	assert.Equal(t, "extra", strings.TrimSpace(res.Stdout))
}

func TestExecutor_CommandNotFound(t *testing.T) {
	var stdout, stderr bytes.Buffer
	executor := NewExecutor(&Options{Stdout: &stdout, Stderr: &stderr})

	_, err := executor.Run(context.Background(), Command{Name: "hatch-definitely-not-a-command"})

	failure, ok := AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, ExitCodeNotFound, failure.ExitCode)
	assert.Contains(t, err.Error(), "not found")
}

func TestCommand_String(t *testing.T) {
	cmd := Command{Name: "git", Args: []string{"commit", "-m", "Initial commit :star:"}}
	assert.Equal(t, `git commit -m "Initial commit :star:"`, cmd.String())
}

func TestCriticality_String(t *testing.T) {
	assert.Equal(t, "fatal", Fatal.String())
	assert.Equal(t, "best-effort", BestEffort.String())
}

func TestTailBuffer(t *testing.T) {
	tb := newTailBuffer(5)
	_, _ = tb.Write([]byte("abc"))
	_, _ = tb.Write([]byte("defg"))
	assert.Equal(t, "cdefg", tb.String())
}

func TestDryRunner(t *testing.T) {
	var buf bytes.Buffer
	runner := DryRunner{W: &buf}

	res, err := runner.Run(context.Background(), Command{Name: "bundle", Args: []string{"install"}, Dir: "/app"})

	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Contains(t, buf.String(), "[DRY RUN] bundle install (in /app)")
}
