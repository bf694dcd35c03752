package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/shellform-io/shellform/internal/logging"
	"github.com/shellform-io/shellform/internal/model"
	"github.com/shellform-io/shellform/internal/state"
)

// upResource converges one resource. exports carries the export maps of
// stored and already-processed resources; on success this resource's map is
// placed (or refreshed) there for its dependents.
func (e *Engine) upResource(ctx context.Context, name string, exports map[string]map[string]string, wt *workTree) error {
	res := e.Model.Resources[name]
	doc := e.Session.Doc
	rs := doc.Resources[name]

	// 1. Render every bag against the resolved imports.
	imports, err := res.ResolveImports(exports)
	if err != nil {
		return err
	}
	rendered := make(map[model.Bag]map[string]string, len(model.Bags))
	for _, bag := range model.Bags {
		files, err := res.RenderBag(bag, imports)
		if err != nil {
			return err
		}
		rendered[bag] = files
	}
	actionFiles := mergeBags(rendered[model.BagCommon], rendered[model.BagUp])

	// 2. Decide whether the up action must run at all.
	triggered := e.Options.Full || rs == nil || rs.Dirty || res.AlwaysRefresh ||
		!equalFiles(actionFiles, mergeBags(rs.BagFiles("common"), rs.BagFiles("up")))

	if !triggered {
		if err := verifyStoredOutputs(res, rs); err != nil {
			return err
		}
		e.UI.Printf("resource '%s' is up to date\n", name)
		if e.refreshMetadata(rs, res, rendered) {
			if err := e.Session.Write(ctx); err != nil {
				return err
			}
		}
		exports[name] = rs.Exports
		return nil
	}

	e.UI.Colorf(colorGreen, "bringing up resource '%s'\n", name)

	// 3. Mark in flight before anything acts on the world. A crash from here
	// on leaves a dirty entry behind, so the next run retries instead of
	// trusting a half-completed action.
	hadFiles := rs != nil && len(rs.Files) > 0
	if rs == nil {
		rs = &state.ResourceState{}
		doc.Resources[name] = rs
	}
	rs.Dirty = true
	rs.Exports = nil
	if err := e.Session.Write(ctx); err != nil {
		return err
	}

	// 4. Identity change forces teardown of the old incarnation first, using
	// the files stored at its last up.
	if hadFiles && !e.Options.IgnoreIdentity {
		oldIdentity := mergeBags(rs.BagFiles("common"), rs.BagFiles("up"))[model.IdentityFile]
		if oldIdentity != "" && oldIdentity != actionFiles[model.IdentityFile] {
			e.UI.Colorf(colorYellow, "identity of resource '%s' has changed, bringing the old instance down\n", name)
			if err := e.runStoredDown(ctx, "replace", name, rs, wt); err != nil {
				if !e.UI.confirm(fmt.Sprintf("Forget resource '%s' and continue?", name)) {
					return err
				}
			}
		}
	}

	// 5. A resource that never completed an up gets its precheck before the
	// first mutation. A failed precheck stores no files, so the retry
	// prechecks again. No override here, a failed precheck always aborts.
	if !hadFiles && !e.Options.SkipPrechecks && len(rendered[model.BagPrecheck]) > 0 {
		dir, err := wt.dir("precheck", name)
		if err != nil {
			return err
		}
		files := mergeBags(rendered[model.BagCommon], rendered[model.BagPrecheck])
		if err := writeFiles(dir, files); err != nil {
			return err
		}
		if err := e.runScript(ctx, "precheck", name, dir, e.actionEnv(res)); err != nil {
			return err
		}
	}

	// 6. A stored checkpoint moves into the working directory for the script
	// to resume from, and is cleared from state.
	resume := ""
	if !e.Options.IgnoreCheckpoints && rs.Checkpoint != "" {
		resume = rs.Checkpoint
		rs.Checkpoint = ""
	}

	// 7. Write the working directory and commit the new metadata. From here
	// the stored files describe what is actually on disk for this attempt.
	dir, err := wt.dir("up", name)
	if err != nil {
		return err
	}
	if err := prepareActionDir(dir, actionFiles, rs); err != nil {
		return err
	}
	for _, sub := range []string{exportsDir, mementosDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return fmt.Errorf("failed to prepare working directory: %w", err)
		}
	}
	if resume != "" {
		if err := os.WriteFile(filepath.Join(dir, resumeFile), []byte(resume), 0o644); err != nil {
			return fmt.Errorf("failed to write checkpoint marker: %w", err)
		}
	}
	e.setMetadata(rs, res, rendered)
	if err := e.Session.Write(ctx); err != nil {
		return err
	}

	// 8. Run the up action with the checkpoint listener alongside. The
	// listener owns all state writes while the action runs, and is joined
	// before the outcome counts, so an interrupted action keeps its newest
	// marker for the next attempt.
	listener, err := startCheckpointListener(dir, func(line string) {
		rs.Checkpoint = line
		if werr := e.Session.Write(ctx); werr != nil {
			logging.Warn("failed to persist checkpoint", "resource", name, "error", werr)
		}
	})
	if err != nil {
		return err
	}
	runErr := e.runScript(ctx, "up", name, dir, e.actionEnv(res))
	listener.stop()
	if runErr != nil {
		return runErr
	}

	// 9. Collect the outputs and commit the clean entry.
	produced, err := collectExports(dir, res)
	if err != nil {
		return err
	}
	mementos, modes, err := collectMementos(dir, res)
	if err != nil {
		return err
	}
	snapshot, err := collectSnapshot(dir)
	if err != nil {
		return err
	}

	rs.Dirty = false
	rs.Exports = produced
	rs.Mementos = mementos
	rs.MementosModes = modes
	rs.Snapshot = snapshot
	rs.Message = readMessage(dir)
	rs.Checkpoint = ""
	if err := e.Session.Write(ctx); err != nil {
		return err
	}

	if rs.Message != "" {
		e.UI.Colorf(colorCyan, "%s\n", rs.Message)
	}
	exports[name] = produced
	return nil
}

// setMetadata overwrites the stored rendering and graph metadata with the
// current model's view of the resource.
func (e *Engine) setMetadata(rs *state.ResourceState, res *model.Resource, rendered map[model.Bag]map[string]string) {
	files := make(map[string]map[string]string)
	for bag, content := range rendered {
		if len(content) > 0 {
			files[string(bag)] = content
		}
	}
	rs.Files = files
	rs.Deps = sortedDeps(e.Model.Dependencies[res.Name])
	rs.Tags = res.SortedTags()
	rs.UsedModes = res.SortedUsedModes()
}

// refreshMetadata updates an up-to-date entry whose surroundings changed
// without its content changing: new deps, tags, modes, or down/precheck
// renderings. Reports whether anything was updated.
func (e *Engine) refreshMetadata(rs *state.ResourceState, res *model.Resource, rendered map[model.Bag]map[string]string) bool {
	changed := !slices.Equal(rs.Deps, sortedDeps(e.Model.Dependencies[res.Name])) ||
		!slices.Equal(rs.Tags, res.SortedTags()) ||
		!slices.Equal(rs.UsedModes, res.SortedUsedModes()) ||
		!equalFiles(rendered[model.BagDown], rs.BagFiles("down")) ||
		!equalFiles(rendered[model.BagPrecheck], rs.BagFiles("precheck"))
	if changed {
		e.setMetadata(rs, res, rendered)
	}
	return changed
}

func sortedDeps(deps map[string]struct{}) []string {
	if len(deps) == 0 {
		return nil
	}
	out := make([]string, 0, len(deps))
	for dep := range deps {
		out = append(out, dep)
	}
	slices.Sort(out)
	return out
}
