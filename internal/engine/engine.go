package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shellform-io/shellform/internal/logging"
	"github.com/shellform-io/shellform/internal/model"
	"github.com/shellform-io/shellform/internal/runner"
	"github.com/shellform-io/shellform/internal/state"
)

// Options configure one convergence run.
type Options struct {
	// Workspace is the state partition this run operates on, exposed to
	// scripts as SHELLFORM_WORKSPACE.
	Workspace string

	// DownEverything brings every stored resource down instead of
	// converging up.
	DownEverything bool

	// Full runs every selected up action regardless of change detection.
	Full bool

	// Yes skips the plan confirmation. It never auto-accepts the
	// forget-and-continue override of a failed down action.
	Yes bool

	// Debug enables shell tracing and keeps working directories when the
	// run fails.
	Debug bool

	// KeepWork always keeps the working directories.
	KeepWork bool

	IgnoreCheckpoints bool
	IgnoreIdentity    bool
	SkipPrechecks     bool

	// ActionTimeout bounds each script invocation; 0 uses the runner
	// default.
	ActionTimeout time.Duration

	// ModeOverrides are the caller's raw mode assignments, validated and
	// resolved against the model's definitions before any action runs.
	ModeOverrides map[string]string

	Filters *Filters
}

// Engine drives one convergence run: selection, confirmation, then the down
// list and the up list strictly in order, one resource at a time, under the
// one state session lock held for the whole run.
type Engine struct {
	Model   *model.Model
	Session *state.Session
	Runner  runner.Runner
	UI      *UI
	Options Options

	modes map[string]string
}

// Run executes the convergence run. Progress goes through the UI; the first
// failure stops the run and bubbles up, with all completed work already
// persisted.
func (e *Engine) Run(ctx context.Context) error {
	doc := e.Session.Doc
	if err := doc.ApplyAliases(e.Model.Aliases); err != nil {
		return err
	}

	modes, err := model.ResolveModes(e.Model.Modes, e.Options.ModeOverrides)
	if err != nil {
		return err
	}
	e.modes = modes

	sel, err := Select(e.Model, doc, e.filters(), e.Options.DownEverything)
	if err != nil {
		return err
	}
	if len(sel.Down) == 0 && len(sel.Up) == 0 {
		e.UI.Printf("Nothing to do.\n")
		return nil
	}

	e.printPlan(sel)
	if !e.Options.Yes {
		if !e.UI.confirm("Proceed?") {
			e.UI.Printf("Run cancelled.\n")
			return nil
		}
	}

	wt, err := newWorkTree()
	if err != nil {
		return err
	}
	failed := false
	defer func() {
		wt.cleanup(e.Options.KeepWork || (e.Options.Debug && failed), e.UI)
	}()

	// Exports of stored and already-processed resources feed the imports of
	// everything downstream.
	exports := make(map[string]map[string]string)
	for name, rs := range doc.Resources {
		if rs.Exports != nil {
			exports[name] = rs.Exports
		}
	}

	for _, name := range sel.Down {
		if err := e.downResource(ctx, name, wt); err != nil {
			failed = true
			return err
		}
	}
	for _, name := range sel.Up {
		if err := e.upResource(ctx, name, exports, wt); err != nil {
			failed = true
			return err
		}
	}
	return nil
}

func (e *Engine) filters() *Filters {
	if e.Options.Filters == nil {
		return &Filters{}
	}
	return e.Options.Filters
}

func (e *Engine) printPlan(sel *Selection) {
	doc := e.Session.Doc
	if len(sel.Down) > 0 {
		entries := make([]string, 0, len(sel.Down))
		for _, name := range sel.Down {
			entries = append(entries, fmt.Sprintf("%s(%s)", name, doc.Resources[name].Status()))
		}
		e.UI.Colorf(colorRed, "Will bring down: %s\n", strings.Join(entries, ", "))
	}
	if len(sel.Up) > 0 {
		entries := make([]string, 0, len(sel.Up))
		for _, name := range sel.Up {
			entries = append(entries, fmt.Sprintf("%s(%s)", name, doc.Resources[name].Status()))
		}
		e.UI.Colorf(colorGreen, "Will bring up: %s\n", strings.Join(entries, ", "))
	}
}

// runScript executes one action directory and normalizes failures into the
// operator-facing phrase.
func (e *Engine) runScript(ctx context.Context, kind, name, dir string, env map[string]string) error {
	logging.Debug("running script", "kind", kind, "resource", name, "dir", dir)

	err := e.Runner.Run(ctx, runner.Request{
		Dir:     dir,
		Env:     env,
		Debug:   e.Options.Debug,
		Timeout: e.Options.ActionTimeout,
	})
	if err == nil {
		return nil
	}
	var exitErr *runner.ExitError
	if errors.As(err, &exitErr) {
		return fmt.Errorf("%s script for resource '%s' has failed with exit status %d", kind, name, exitErr.Code)
	}
	return fmt.Errorf("%s script for resource '%s' has failed: %w", kind, name, err)
}

// actionEnv builds the environment for a resource's up and precheck actions
// from its current mode declarations.
func (e *Engine) actionEnv(res *model.Resource) map[string]string {
	env := e.baseEnv(res.Name)
	for mode := range res.UsedModes {
		if value, ok := e.modes[mode]; ok {
			env[modeEnvVar(mode)] = value
		}
	}
	return env
}

// storedEnv builds the environment for actions replaying stored files. Modes
// the model no longer defines are skipped.
func (e *Engine) storedEnv(name string, rs *state.ResourceState) map[string]string {
	env := e.baseEnv(name)
	for _, mode := range rs.UsedModes {
		if value, ok := e.modes[mode]; ok {
			env[modeEnvVar(mode)] = value
		}
	}
	return env
}

func (e *Engine) baseEnv(resource string) map[string]string {
	return map[string]string{
		"SHELLFORM_RESOURCE":  resource,
		"SHELLFORM_WORKSPACE": e.Options.Workspace,
	}
}

func modeEnvVar(mode string) string {
	return "SHELLFORM_MODE_" + strings.ToUpper(mode)
}

// mergeBags overlays bag contents, later bags winning. Bags are disjoint by
// construction, so the overlay never actually collides.
func mergeBags(bags ...map[string]string) map[string]string {
	merged := make(map[string]string)
	for _, bag := range bags {
		for p, content := range bag {
			merged[p] = content
		}
	}
	return merged
}

// equalFiles reports exact per-path content equality.
func equalFiles(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for p, content := range a {
		if other, ok := b[p]; !ok || other != content {
			return false
		}
	}
	return true
}
