package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"syscall"
	"time"
)

// ErrNotFound is returned when the binary cannot be resolved.
var ErrNotFound = errors.New("process: binary not found")

const defaultGracePeriod = 5 * time.Second

// Command is an external tool invocation.
type Command struct {
	// Binary is a path or a name looked up on PATH.
	Binary string
	Args   []string
	// GracePeriod is the wait between SIGTERM and SIGKILL after ctx is
	// done. Zero means five seconds.
	GracePeriod time.Duration
}

// Result is what a finished run produced. ExitCode is -1 when the process
// never started or was killed.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Duration time.Duration
}

// StderrTail returns at most the last n bytes of stderr, for log lines.
func (r *Result) StderrTail(n int) string {
	if r == nil {
		return ""
	}
	if len(r.Stderr) <= n {
		return string(r.Stderr)
	}
	return string(r.Stderr[len(r.Stderr)-n:])
}

// Available reports whether binary resolves on PATH.
func Available(binary string) bool {
	_, err := exec.LookPath(binary)
	return err == nil
}

// Run starts cmd in its own process group and waits for it. When ctx ends
// the whole group gets SIGTERM, then SIGKILL once GracePeriod passes, so
// children such as ffmpeg's helpers do not outlive a canceled upload.
// A non-zero exit is an error; the Result is returned either way.
func Run(ctx context.Context, cmd Command) (*Result, error) {
	if cmd.Binary == "" {
		return nil, errors.New("process: binary is required")
	}
	grace := cmd.GracePeriod
	if grace == 0 {
		grace = defaultGracePeriod
	}

	var stdout, stderr bytes.Buffer
	c := exec.CommandContext(ctx, cmd.Binary, cmd.Args...) //nolint:gosec // arguments are built by callers, not users
	c.Stdout = &stdout
	c.Stderr = &stderr
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	c.Cancel = func() error {
		if c.Process == nil {
			return nil
		}
		return syscall.Kill(-c.Process.Pid, syscall.SIGTERM)
	}
	c.WaitDelay = grace

	start := time.Now()
	err := c.Run()
	res := &Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: c.ProcessState.ExitCode(),
		Duration: time.Since(start),
	}

	switch {
	case err == nil:
		return res, nil
	case errors.Is(err, exec.ErrNotFound):
		return res, fmt.Errorf("%w: %s", ErrNotFound, cmd.Binary)
	case ctx.Err() != nil:
		return res, fmt.Errorf("process: %s stopped: %w", cmd.Binary, ctx.Err())
	default:
		return res, fmt.Errorf("process: %s exited with %d: %w", cmd.Binary, res.ExitCode, err)
	}
}
