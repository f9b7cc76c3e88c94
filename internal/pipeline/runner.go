package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"time"
)

// waitDelay bounds how long a killed step may keep its output pipes open.
const waitDelay = 2 * time.Second

// Runner executes a single step.
type Runner interface {
	Run(ctx context.Context, dir string, step Step) (Output, error)
}

// ExecRunner runs steps as host processes.
type ExecRunner struct {
	// MaxOutputBytes caps each captured stream; 0 means unlimited.
	MaxOutputBytes int
}

func NewExecRunner(maxOutputBytes int) *ExecRunner {
	return &ExecRunner{MaxOutputBytes: maxOutputBytes}
}

func (r *ExecRunner) Run(ctx context.Context, dir string, step Step) (Output, error) {
	if step.Command == "" {
		return Output{ExitCode: -1}, fmt.Errorf("step %s has no command", step.Name)
	}

	cmd := exec.CommandContext(ctx, step.Command, step.Args...)
	cmd.Dir = dir
	cmd.WaitDelay = waitDelay

	var stdoutBuf, stderrBuf bytes.Buffer
	stdout := &limitedWriter{w: &stdoutBuf, max: r.MaxOutputBytes}
	stderr := &limitedWriter{w: &stderrBuf, max: r.MaxOutputBytes}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	err := cmd.Run()

	out := Output{
		Stdout:    stdoutBuf.String(),
		Stderr:    stderrBuf.String(),
		ExitCode:  -1,
		Duration:  time.Since(start),
		Truncated: stdout.truncated || stderr.truncated,
	}
	if cmd.ProcessState != nil {
		out.ExitCode = cmd.ProcessState.ExitCode()
	}

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if errors.Is(ctxErr, context.DeadlineExceeded) {
				return out, fmt.Errorf("timed out after %s: %w", out.Duration.Round(time.Millisecond), ctxErr)
			}
			return out, fmt.Errorf("cancelled: %w", ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return out, fmt.Errorf("exit status %d", exitErr.ExitCode())
		}
		return out, err
	}
	return out, nil
}

// limitedWriter keeps the first max bytes and silently drops the rest.
type limitedWriter struct {
	w         io.Writer
	max       int
	written   int
	truncated bool
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	if lw.max <= 0 {
		return lw.w.Write(p)
	}
	remaining := lw.max - lw.written
	if remaining <= 0 {
		lw.truncated = true
		return len(p), nil
	}
	chunk := p
	if len(chunk) > remaining {
		chunk = chunk[:remaining]
		lw.truncated = true
	}
	n, err := lw.w.Write(chunk)
	lw.written += n
	if err != nil {
		return n, err
	}
	return len(p), nil
}
