package process

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestRun(t *testing.T) {
	tests := []struct {
		name     string
		cmd      Command
		wantErr  bool
		wantCode int
		stdout   string
		stderr   string
	}{
		{name: "stdout", cmd: Command{Binary: "echo", Args: []string{"hello", "world"}}, stdout: "hello world"},
		{name: "stderr", cmd: Command{Binary: "sh", Args: []string{"-c", "echo oops >&2"}}, stderr: "oops"},
		{name: "exit code", cmd: Command{Binary: "sh", Args: []string{"-c", "exit 42"}}, wantErr: true, wantCode: 42},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Run(context.Background(), tt.cmd)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if res.ExitCode != tt.wantCode {
				t.Errorf("exit code = %d, want %d", res.ExitCode, tt.wantCode)
			}
			if got := strings.TrimSpace(string(res.Stdout)); got != tt.stdout {
				t.Errorf("stdout = %q, want %q", got, tt.stdout)
			}
			if got := strings.TrimSpace(string(res.Stderr)); got != tt.stderr {
				t.Errorf("stderr = %q, want %q", got, tt.stderr)
			}
		})
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	// The child sleep shares the group, so it must die with the shell.
	res, err := Run(ctx, Command{Binary: "sh", Args: []string{"-c", "sleep 10; echo done"}, GracePeriod: 500 * time.Millisecond})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	if res.Duration > 3*time.Second {
		t.Errorf("group not stopped promptly: %v", res.Duration)
	}
	if strings.Contains(string(res.Stdout), "done") {
		t.Error("command ran to completion")
	}
}

func TestRunMissingBinary(t *testing.T) {
	const bogus = "no-such-binary-for-dictation"
	res, err := Run(context.Background(), Command{Binary: bogus})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if res.ExitCode != -1 {
		t.Errorf("exit code = %d, want -1", res.ExitCode)
	}
	if Available(bogus) || !Available("sh") {
		t.Error("Available disagrees with PATH")
	}
	if _, err := Run(context.Background(), Command{}); err == nil {
		t.Error("expected error for an empty binary")
	}
}

func TestStderrTail(t *testing.T) {
	r := &Result{Stderr: []byte("0123456789")}
	for n, want := range map[int]string{4: "6789", 40: "0123456789"} {
		if got := r.StderrTail(n); got != want {
			t.Errorf("StderrTail(%d) = %q, want %q", n, got, want)
		}
	}
	if (*Result)(nil).StderrTail(4) != "" {
		t.Error("nil result should have an empty tail")
	}
}
