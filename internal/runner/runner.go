package runner

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// DefaultTimeout bounds a single script invocation.
const DefaultTimeout = 30 * time.Minute

// Request describes one script invocation: a prepared working directory
// holding s.*.sh chunks plus the environment the chunks expect.
type Request struct {
	// Dir is the working directory. Chunks run with it as cwd and read and
	// write their files relative to it.
	Dir string

	// Env is extra environment on top of what the runner provides.
	Env map[string]string

	// Debug adds shell tracing (-x) to the invocation.
	Debug bool

	// Timeout bounds the invocation; 0 means DefaultTimeout.
	Timeout time.Duration
}

// Runner executes the script chunks of one working directory as a single
// shell, so variables and functions defined by one chunk are visible to the
// next.
type Runner interface {
	Run(ctx context.Context, req Request) error
}

// ExitError reports a script that ran to a non-zero exit status.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// Config selects and parameterizes a script runner. It mirrors the
// manifest's [runner] table.
type Config struct {
	// Kind is "local" or "docker". Empty means local.
	Kind string `toml:"kind"`

	// Image is the container image for the docker runner.
	Image string `toml:"image"`
}

// New returns the runner the configuration names.
func New(cfg Config) (Runner, error) {
	switch cfg.Kind {
	case "", "local":
		return &LocalRunner{}, nil
	case "docker":
		return &DockerRunner{Image: cfg.Image}, nil
	default:
		return nil, fmt.Errorf("unknown script runner '%s'", cfg.Kind)
	}
}

// shellCommand is the one command every runner executes. Chunks are sourced
// in lexicographic order inside a strict shell, and a directory without
// chunks is a successful no-op.
func shellCommand(debug bool) string {
	opts := "-euo"
	if debug {
		opts = "-euxo"
	}
	return fmt.Sprintf(`set %s pipefail; shopt -s nullglob; for i in s.*.sh; do source "$i"; done`, opts)
}

func envList(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	list := make([]string, 0, len(env))
	for _, k := range keys {
		list = append(list, k+"="+env[k])
	}
	return list
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return context.WithTimeout(ctx, timeout)
}
