package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"
)

// LocalRunner executes script chunks with the host's bash. This is the
// default: scripts see the operator's tools, credentials and network
// exactly as an interactive shell would.
type LocalRunner struct {
	// Stdout and Stderr receive script output; nil means the process
	// streams.
	Stdout io.Writer
	Stderr io.Writer
}

func (r *LocalRunner) Run(ctx context.Context, req Request) error {
	ctx, cancel := withTimeout(ctx, req.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "/bin/bash", "-c", shellCommand(req.Debug))
	cmd.Dir = req.Dir
	cmd.Env = append(os.Environ(), envList(req.Env)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	// Scripts spawn children. A timeout must take the whole process group
	// down, or Wait blocks on the output pipes the children inherited.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = 5 * time.Second

	err := cmd.Run()
	if err == nil {
		return nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("script timed out after %s", timeoutOf(req))
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{Code: exitErr.ExitCode()}
	}
	return fmt.Errorf("failed to run shell: %w", err)
}

func timeoutOf(req Request) string {
	if req.Timeout <= 0 {
		return DefaultTimeout.String()
	}
	return req.Timeout.String()
}
