package deploy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/lolmeida/kstack/internal/model"
)

// Command is one external process invocation.
type Command struct {
	Name string
	Args []string
	Dir  string
	Env  []string
}

// String renders the command line for logs and dry runs.
func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// CommandResult is the outcome of a process that ran to completion.
type CommandResult struct {
	ExitCode int
	Output   []byte
}

// CommandRunner runs external processes. Run returns an error only when
// the process could not be started or was killed; a non-zero exit is
// reported through CommandResult.ExitCode.
type CommandRunner interface {
	Run(ctx context.Context, cmd Command) (CommandResult, error)
}

// ExecRunner runs commands with os/exec. The process is killed when ctx
// is done.
type ExecRunner struct {
	// WaitDelay bounds how long to wait for output pipes after a kill.
	WaitDelay time.Duration
}

// Run executes cmd and captures combined stdout and stderr.
func (r ExecRunner) Run(ctx context.Context, cmd Command) (CommandResult, error) {
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		c.Env = cmd.Env
	}
	c.WaitDelay = r.WaitDelay
	if c.WaitDelay == 0 {
		c.WaitDelay = 5 * time.Second
	}

	var out bytes.Buffer
	c.Stdout = &out
	c.Stderr = &out

	err := c.Run()
	result := CommandResult{Output: out.Bytes()}
	if ctx.Err() != nil {
		return result, ctx.Err()
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return result, err
	}
	return result, nil
}

// PrintRunner writes commands instead of running them.
type PrintRunner struct {
	mu sync.Mutex
	W  io.Writer
}

// Run prints cmd and reports success.
func (r *PrintRunner) Run(_ context.Context, cmd Command) (CommandResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cmd.Dir != "" {
		fmt.Fprintf(r.W, "(cd %s) ", cmd.Dir)
	}
	fmt.Fprintln(r.W, cmd.String())
	return CommandResult{}, nil
}

// ToolError is a non-zero exit of an external tool.
type ToolError struct {
	Tool     string
	ExitCode int
	Output   string
}

func (e *ToolError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("%s exited with code %d", e.Tool, e.ExitCode)
	}
	return fmt.Sprintf("%s exited with code %d: %s", e.Tool, e.ExitCode, e.Output)
}

// Unwrap lets errors.Is match model.ErrExternalTool.
func (e *ToolError) Unwrap() error {
	return model.ErrExternalTool
}

// maxOutput bounds the tool output carried in errors and messages.
const maxOutput = 4096

func trimOutput(out []byte) string {
	s := strings.TrimSpace(string(out))
	if len(s) > maxOutput {
		cut := len(s) - maxOutput
		for cut < len(s) && !utf8.RuneStart(s[cut]) {
			cut++
		}
		s = "..." + s[cut:]
	}
	return s
}
