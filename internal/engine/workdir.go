package engine

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/shellform-io/shellform/internal/model"
	"github.com/shellform-io/shellform/internal/state"
)

// Well-known entries of an action working directory. Scripts read and write
// these relative to their cwd.
const (
	exportsDir  = "exports"
	mementosDir = "mementos"
	snapshotDir = "state"
	messageFile = "message"
	fifoName    = "checkpoints"
	resumeFile  = "last-checkpoint"
)

// workTree owns the per-run scratch space: one temp base directory holding
// one numbered directory per action.
type workTree struct {
	base string
	seq  int
}

func newWorkTree() (*workTree, error) {
	base, err := os.MkdirTemp("", "shellform.")
	if err != nil {
		return nil, fmt.Errorf("failed to create working directory: %w", err)
	}
	return &workTree{base: base}, nil
}

// dir creates the next action directory, named like "up-0003-db".
func (w *workTree) dir(kind, resource string) (string, error) {
	w.seq++
	dir := filepath.Join(w.base, fmt.Sprintf("%s-%04d-%s", kind, w.seq, resource))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create working directory: %w", err)
	}
	return dir, nil
}

// cleanup removes the scratch space, or reports where it was kept.
func (w *workTree) cleanup(keep bool, ui *UI) {
	if keep {
		ui.Printf("keeping working directory: %s\n", w.base)
		return
	}
	os.RemoveAll(w.base)
}

// writeFiles materializes rendered content under dir, creating parent
// directories as needed.
func writeFiles(dir string, files map[string]string) error {
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		full := filepath.Join(dir, filepath.FromSlash(p))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", p, err)
		}
		if err := os.WriteFile(full, []byte(files[p]), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", p, err)
		}
	}
	return nil
}

// prepareActionDir writes the script files and restores the durable extras a
// resource's scripts expect to find again: mementos with their recorded
// permission bits, and the opaque state snapshot.
func prepareActionDir(dir string, files map[string]string, rs *state.ResourceState) error {
	if err := writeFiles(dir, files); err != nil {
		return err
	}
	if rs == nil {
		return nil
	}

	for name, content := range rs.Mementos {
		full := filepath.Join(dir, mementosDir, name)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return fmt.Errorf("failed to restore memento '%s': %w", name, err)
		}
		mode := os.FileMode(0o644)
		if bits, ok := rs.MementosModes[name]; ok {
			mode = os.FileMode(bits).Perm()
		}
		if err := os.WriteFile(full, content, mode); err != nil {
			return fmt.Errorf("failed to restore memento '%s': %w", name, err)
		}
		// WriteFile's mode is subject to umask on creation.
		if err := os.Chmod(full, mode); err != nil {
			return fmt.Errorf("failed to restore memento '%s': %w", name, err)
		}
	}

	for p, content := range rs.Snapshot {
		full := filepath.Join(dir, snapshotDir, filepath.FromSlash(p))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return fmt.Errorf("failed to restore state snapshot: %w", err)
		}
		if err := os.WriteFile(full, content, 0o644); err != nil {
			return fmt.Errorf("failed to restore state snapshot: %w", err)
		}
	}
	return nil
}

// collectExports reads the exports directory after a successful up action
// and enforces the declaration contract: one file per declared export, no
// extras.
func collectExports(dir string, res *model.Resource) (map[string]string, error) {
	produced := make(map[string]string)
	entries, err := os.ReadDir(filepath.Join(dir, exportsDir))
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read exports of resource '%s': %w", res.Name, err)
	}

	var unexpected []string
	for _, entry := range entries {
		name := entry.Name()
		if _, ok := res.Exports[name]; !ok || entry.IsDir() {
			unexpected = append(unexpected, name)
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, exportsDir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to read export '%s' of resource '%s': %w", name, res.Name, err)
		}
		produced[name] = strings.TrimSuffix(string(raw), "\n")
	}
	if len(unexpected) > 0 {
		sort.Strings(unexpected)
		return nil, fmt.Errorf("resource '%s' exports unexpected variables: %s", res.Name, strings.Join(unexpected, ", "))
	}

	var missing []string
	for name := range res.Exports {
		if _, ok := produced[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		if len(missing) == 1 {
			return nil, fmt.Errorf("resource '%s' does not export '%s' variable", res.Name, missing[0])
		}
		return nil, fmt.Errorf("resource '%s' does not export variables: %s", res.Name, strings.Join(missing, ", "))
	}
	return produced, nil
}

// collectMementos reads the mementos directory after a successful up action,
// capturing content and permission bits, under the same exact-match contract
// as exports.
func collectMementos(dir string, res *model.Resource) (map[string][]byte, map[string]uint32, error) {
	produced := make(map[string][]byte)
	modes := make(map[string]uint32)
	entries, err := os.ReadDir(filepath.Join(dir, mementosDir))
	if err != nil && !os.IsNotExist(err) {
		return nil, nil, fmt.Errorf("failed to read mementos of resource '%s': %w", res.Name, err)
	}

	var unexpected []string
	for _, entry := range entries {
		name := entry.Name()
		if _, ok := res.Mementos[name]; !ok || entry.IsDir() {
			unexpected = append(unexpected, name)
			continue
		}
		full := filepath.Join(dir, mementosDir, name)
		raw, err := os.ReadFile(full)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read memento '%s' of resource '%s': %w", name, res.Name, err)
		}
		info, err := entry.Info()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to stat memento '%s' of resource '%s': %w", name, res.Name, err)
		}
		produced[name] = raw
		modes[name] = uint32(info.Mode().Perm())
	}
	if len(unexpected) > 0 {
		sort.Strings(unexpected)
		return nil, nil, fmt.Errorf("resource '%s' provides unexpected mementos: %s", res.Name, strings.Join(unexpected, ", "))
	}

	var missing []string
	for name := range res.Mementos {
		if _, ok := produced[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		if len(missing) == 1 {
			return nil, nil, fmt.Errorf("resource '%s' does not provide '%s' memento", res.Name, missing[0])
		}
		return nil, nil, fmt.Errorf("resource '%s' does not provide mementos: %s", res.Name, strings.Join(missing, ", "))
	}
	return produced, modes, nil
}

// collectSnapshot captures the state directory verbatim for restoration on
// the next invocation. Absent directory means empty snapshot.
func collectSnapshot(dir string) (map[string][]byte, error) {
	root := filepath.Join(dir, snapshotDir)
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return nil, nil
	}

	snapshot := make(map[string][]byte)
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		raw, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		snapshot[filepath.ToSlash(rel)] = raw
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to capture state snapshot: %w", err)
	}
	if len(snapshot) == 0 {
		return nil, nil
	}
	return snapshot, nil
}

// readMessage returns the operator note a script left behind, if any.
func readMessage(dir string) string {
	raw, err := os.ReadFile(filepath.Join(dir, messageFile))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(raw))
}

// verifyStoredOutputs checks that a clean stored entry still satisfies the
// resource's declared exports and mementos exactly. Declarations changing
// without a content change surface here instead of silently drifting.
func verifyStoredOutputs(res *model.Resource, rs *state.ResourceState) error {
	var missing, unexpected []string
	for name := range res.Exports {
		if _, ok := rs.Exports[name]; !ok {
			missing = append(missing, name)
		}
	}
	for name := range rs.Exports {
		if _, ok := res.Exports[name]; !ok {
			unexpected = append(unexpected, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		if len(missing) == 1 {
			return fmt.Errorf("resource '%s' does not export '%s' variable", res.Name, missing[0])
		}
		return fmt.Errorf("resource '%s' does not export variables: %s", res.Name, strings.Join(missing, ", "))
	}
	if len(unexpected) > 0 {
		sort.Strings(unexpected)
		return fmt.Errorf("resource '%s' exports unexpected variables: %s", res.Name, strings.Join(unexpected, ", "))
	}

	missing, unexpected = nil, nil
	for name := range res.Mementos {
		if _, ok := rs.Mementos[name]; !ok {
			missing = append(missing, name)
		}
	}
	for name := range rs.Mementos {
		if _, ok := res.Mementos[name]; !ok {
			unexpected = append(unexpected, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		if len(missing) == 1 {
			return fmt.Errorf("resource '%s' does not provide '%s' memento", res.Name, missing[0])
		}
		return fmt.Errorf("resource '%s' does not provide mementos: %s", res.Name, strings.Join(missing, ", "))
	}
	if len(unexpected) > 0 {
		sort.Strings(unexpected)
		return fmt.Errorf("resource '%s' provides unexpected mementos: %s", res.Name, strings.Join(unexpected, ", "))
	}
	return nil
}
