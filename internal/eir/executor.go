package eir

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"
)

// Result is the structured outcome of a subprocess invocation. A non-zero
// ExitCode is not an error at this layer; callers decide what it means.
type Result struct {
	ExitCode int
	Output   []byte
}

// Runner executes commands. The pipeline only talks to this interface so
// tests can inject a fake and observe invocations without spawning anything.
type Runner interface {
	Run(ctx context.Context, cmd *exec.Cmd) (*Result, error)
}

// Executor runs commands on the host, capturing combined output while
// streaming it unless Quiet. The child gets its own process group so a
// cancelled context can kill the whole tree.
type Executor struct {
	Quiet bool
}

func (e *Executor) Run(ctx context.Context, cmd *exec.Cmd) (*Result, error) {
	var buf bytes.Buffer

	var sink io.Writer = &buf
	if !e.Quiet {
		sink = io.MultiWriter(&buf, os.Stdout)
	}
	if cmd.Stdout == nil {
		cmd.Stdout = sink
	}
	if cmd.Stderr == nil {
		cmd.Stderr = sink
	}

	if len(cmd.Env) == 0 {
		cmd.Env = os.Environ()
	}

	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start command: %w", err)
	}

	pgid := cmd.Process.Pid
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			syscall.Kill(-pgid, syscall.SIGKILL)
		case <-done:
		}
	}()

	waitErr := cmd.Wait()
	if ctx.Err() != nil {
		time.Sleep(100 * time.Millisecond)
		return nil, fmt.Errorf("command aborted: %v", ctx.Err())
	}

	res := &Result{Output: buf.Bytes()}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return nil, waitErr
	}
	return res, nil
}

// outputTail returns the last n lines of captured output for diagnostics.
func outputTail(out []byte, n int) string {
	lines := bytes.Split(bytes.TrimRight(out, "\n"), []byte{'\n'})
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return string(bytes.Join(lines, []byte{'\n'}))
}
