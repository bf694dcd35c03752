package cli

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/shellform-io/shellform/internal/engine"
	"github.com/shellform-io/shellform/internal/logging"
	"github.com/shellform-io/shellform/internal/manifest"
	"github.com/shellform-io/shellform/internal/model"
	"github.com/shellform-io/shellform/internal/runner"
	"github.com/shellform-io/shellform/internal/state"
)

const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiCyan   = "\033[36m"
)

// colorize returns the escape code, or nothing when colors are off.
func colorize(code string) string {
	if noColor {
		return ""
	}
	return code
}

func printError(err error) {
	fmt.Fprintf(os.Stderr, "%serror: %v%s\n", colorize(ansiRed), err, colorize(ansiReset))
}

func loadManifest() (*manifest.Manifest, error) {
	return manifest.Load(manifestFile)
}

func loadModel() (*manifest.Manifest, *model.Model, error) {
	m, err := loadManifest()
	if err != nil {
		return nil, nil, err
	}
	mdl, err := m.Build()
	if err != nil {
		return nil, nil, err
	}
	return m, mdl, nil
}

func openSession(ctx context.Context, m *manifest.Manifest) (*state.Session, error) {
	backend, err := state.NewBackend(ctx, m.State)
	if err != nil {
		return nil, err
	}
	return state.NewStore(backend).Open(ctx, workspaceName, stateTimeout)
}

func closeSession(ctx context.Context, session *state.Session) {
	if err := session.Close(ctx); err != nil {
		logging.Warn("failed to release the state lock", "error", err)
	}
}

func newUI() *engine.UI {
	return &engine.UI{Out: os.Stdout, NoColor: noColor}
}

// buildRunner picks the runner from the manifest, with the command line
// taking precedence.
func buildRunner(m *manifest.Manifest, kind, image string) (runner.Runner, error) {
	cfg := m.Runner
	if kind != "" {
		cfg.Kind = kind
	}
	if image != "" {
		cfg.Image = image
	}
	return runner.New(cfg)
}

// convergeParams carries the per-command flags of apply and destroy into one
// engine run.
type convergeParams struct {
	downEverything    bool
	full              bool
	yes               bool
	keepWork          bool
	ignoreCheckpoints bool
	ignoreIdentity    bool
	skipPrechecks     bool

	only, tags, exclude, excludeTags []string
	modes                            []string

	runnerKind  string
	runnerImage string

	actionTimeout time.Duration
}

func runConvergence(ctx context.Context, p convergeParams) error {
	m, mdl, err := loadModel()
	if err != nil {
		return err
	}
	filters, err := engine.NewFilters(p.only, p.tags, p.exclude, p.excludeTags)
	if err != nil {
		return err
	}
	overrides, err := model.ParseModeOverrides(p.modes)
	if err != nil {
		return err
	}
	run, err := buildRunner(m, p.runnerKind, p.runnerImage)
	if err != nil {
		return err
	}

	session, err := openSession(ctx, m)
	if err != nil {
		return err
	}
	defer closeSession(ctx, session)

	eng := &engine.Engine{
		Model:   mdl,
		Session: session,
		Runner:  run,
		UI:      newUI(),
		Options: engine.Options{
			Workspace:         workspaceName,
			DownEverything:    p.downEverything,
			Full:              p.full,
			Yes:               p.yes,
			Debug:             debugMode,
			KeepWork:          p.keepWork,
			IgnoreCheckpoints: p.ignoreCheckpoints,
			IgnoreIdentity:    p.ignoreIdentity,
			SkipPrechecks:     p.skipPrechecks,
			ActionTimeout:     p.actionTimeout,
			ModeOverrides:     overrides,
			Filters:           filters,
		},
	}
	return eng.Run(ctx)
}

// renderPreview formats a dry-run listing: one line per resource that would
// see action, content diffs underneath, and a closing summary.
func renderPreview(entries []engine.PreviewEntry) string {
	var b strings.Builder
	counts := make(map[engine.PreviewAction]int)

	for _, e := range entries {
		switch e.Action {
		case engine.ActionUpToDate:
			continue
		case engine.ActionDown:
			fmt.Fprintf(&b, "%s- %s will be brought down (%s)%s\n", colorize(ansiRed), e.Name, e.Status, colorize(ansiReset))
		case engine.ActionCreate:
			fmt.Fprintf(&b, "%s+ %s will be created%s\n", colorize(ansiGreen), e.Name, colorize(ansiReset))
		case engine.ActionReplace:
			fmt.Fprintf(&b, "%s-/+ %s will be replaced: its identity changed%s\n", colorize(ansiYellow), e.Name, colorize(ansiReset))
		case engine.ActionUpdate:
			line := fmt.Sprintf("~ %s will be updated", e.Name)
			if e.Reason != "" {
				line += ": " + e.Reason
			}
			fmt.Fprintf(&b, "%s%s%s\n", colorize(ansiYellow), line, colorize(ansiReset))
		case engine.ActionUnknown:
			fmt.Fprintf(&b, "? %s cannot be decided yet: %s\n", e.Name, e.Reason)
		}
		counts[e.Action]++

		for _, fd := range e.Files {
			fmt.Fprintf(&b, "    %s:\n", fd.Path)
			b.WriteString(indent(engine.FormatDiff(fd.Old, fd.New, !noColor), "      "))
		}
	}

	if b.Len() == 0 {
		return "No changes. Resources are up to date.\n"
	}

	fmt.Fprintf(&b, "\nPlan: %d to create, %d to update, %d to replace, %d to bring down.\n",
		counts[engine.ActionCreate], counts[engine.ActionUpdate],
		counts[engine.ActionReplace], counts[engine.ActionDown])
	if n := counts[engine.ActionUnknown]; n > 0 {
		fmt.Fprintf(&b, "Undecided: %d, their dependencies still have work pending.\n", n)
	}
	return b.String()
}

func indent(s, prefix string) string {
	if s == "" {
		return ""
	}
	lines := strings.Split(strings.TrimSuffix(s, "\n"), "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n") + "\n"
}

func promptYesNo(prompt string) bool {
	fmt.Printf("%s (y/n): ", prompt)
	var response string
	fmt.Scanln(&response)
	return response == "y" || response == "yes"
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
