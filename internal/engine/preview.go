package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shellform-io/shellform/internal/model"
	"github.com/shellform-io/shellform/internal/state"
)

// PreviewAction classifies what a run would do to one resource.
type PreviewAction string

const (
	ActionCreate   PreviewAction = "create"
	ActionUpdate   PreviewAction = "update"
	ActionReplace  PreviewAction = "replace"
	ActionUpToDate PreviewAction = "up-to-date"
	ActionDown     PreviewAction = "down"
	ActionUnknown  PreviewAction = "unknown"
)

// FileDiff holds the stored and desired rendering of one path.
type FileDiff struct {
	Path string
	Old  string
	New  string
}

// PreviewEntry describes one resource in a dry run, in the order the run
// would process them.
type PreviewEntry struct {
	Name   string
	Status string
	Action PreviewAction

	// Reason is set when the action needs explaining: the dependency whose
	// exports are still pending, or why an action runs without a content
	// change.
	Reason string

	// Files lists the changed up and common paths, sorted.
	Files []FileDiff
}

// Preview computes what a run would do without executing scripts or writing
// state. Renderings use the exports stored by previous runs; a resource
// whose dependencies still have work pending cannot be rendered yet and
// comes back as unknown.
func Preview(m *model.Model, doc *state.Document, opts Options) ([]PreviewEntry, error) {
	if err := doc.ApplyAliases(m.Aliases); err != nil {
		return nil, err
	}
	filters := opts.Filters
	if filters == nil {
		filters = &Filters{}
	}
	sel, err := Select(m, doc, filters, opts.DownEverything)
	if err != nil {
		return nil, err
	}

	stored := make(map[string]map[string]string)
	for name, rs := range doc.Resources {
		if rs.Exports != nil {
			stored[name] = rs.Exports
		}
	}

	var entries []PreviewEntry
	for _, name := range sel.Down {
		entries = append(entries, PreviewEntry{
			Name:   name,
			Status: doc.Resources[name].Status(),
			Action: ActionDown,
		})
	}
	for _, name := range sel.Up {
		entries = append(entries, previewUp(m, doc, stored, name, opts))
	}
	return entries, nil
}

func previewUp(m *model.Model, doc *state.Document, stored map[string]map[string]string, name string, opts Options) PreviewEntry {
	res := m.Resources[name]
	rs := doc.Resources[name]
	entry := PreviewEntry{Name: name, Status: rs.Status()}

	imports, err := res.ResolveImports(stored)
	if err != nil {
		pending := pendingImports(res, stored)
		entry.Reason = fmt.Sprintf("waiting for exports of '%s'", strings.Join(pending, "', '"))
		if rs == nil {
			entry.Action = ActionCreate
		} else {
			entry.Action = ActionUnknown
		}
		return entry
	}

	upFiles, err := res.RenderBag(model.BagUp, imports)
	if err != nil {
		entry.Action = ActionUnknown
		entry.Reason = err.Error()
		return entry
	}
	commonFiles, err := res.RenderBag(model.BagCommon, imports)
	if err != nil {
		entry.Action = ActionUnknown
		entry.Reason = err.Error()
		return entry
	}

	newFiles := mergeBags(commonFiles, upFiles)
	oldFiles := mergeBags(rs.BagFiles("common"), rs.BagFiles("up"))
	entry.Files = diffFiles(oldFiles, newFiles)

	oldIdentity := oldFiles[model.IdentityFile]
	switch {
	case rs == nil:
		entry.Action = ActionCreate
	case !opts.IgnoreIdentity && oldIdentity != "" && oldIdentity != newFiles[model.IdentityFile]:
		entry.Action = ActionReplace
	case len(entry.Files) > 0:
		entry.Action = ActionUpdate
	case opts.Full:
		entry.Action = ActionUpdate
		entry.Reason = "full run forces the action"
	case rs.Dirty:
		entry.Action = ActionUpdate
		entry.Reason = "previous attempt did not complete"
	case res.AlwaysRefresh:
		entry.Action = ActionUpdate
		entry.Reason = "always refreshes"
	default:
		entry.Action = ActionUpToDate
	}
	return entry
}

// pendingImports names the dependencies whose stored exports cannot satisfy
// this resource's imports yet, sorted.
func pendingImports(res *model.Resource, exports map[string]map[string]string) []string {
	pending := make(map[string]struct{})
	for _, src := range res.Imports {
		vars, ok := exports[src.Resource]
		if !ok {
			pending[src.Resource] = struct{}{}
			continue
		}
		if _, ok := vars[src.Export]; !ok {
			pending[src.Resource] = struct{}{}
		}
	}
	return sortedDeps(pending)
}

// diffFiles lists the paths whose content differs between two renderings,
// sorted, with both sides attached.
func diffFiles(oldFiles, newFiles map[string]string) []FileDiff {
	paths := make(map[string]struct{}, len(oldFiles)+len(newFiles))
	for p := range oldFiles {
		paths[p] = struct{}{}
	}
	for p := range newFiles {
		paths[p] = struct{}{}
	}

	var diffs []FileDiff
	for p := range paths {
		if oldFiles[p] != newFiles[p] {
			diffs = append(diffs, FileDiff{Path: p, Old: oldFiles[p], New: newFiles[p]})
		}
	}
	sort.Slice(diffs, func(i, j int) bool { return diffs[i].Path < diffs[j].Path })
	return diffs
}
