package engine

import (
	"context"
	"fmt"

	"github.com/shellform-io/shellform/internal/state"
)

// downResource tears one stored resource down and deletes its entry. The
// operator may explicitly forget a resource whose down script failed, which
// deletes the entry anyway and leaves whatever the script did not undo.
func (e *Engine) downResource(ctx context.Context, name string, wt *workTree) error {
	doc := e.Session.Doc
	rs := doc.Resources[name]

	e.UI.Colorf(colorRed, "bringing down resource '%s'\n", name)

	// An interrupted down is retried on the next run, never skipped.
	rs.Dirty = true
	if err := e.Session.Write(ctx); err != nil {
		return err
	}

	if err := e.runStoredDown(ctx, "down", name, rs, wt); err != nil {
		if !e.UI.confirm(fmt.Sprintf("Forget resource '%s' and continue?", name)) {
			return err
		}
		e.UI.Colorf(colorYellow, "forgetting resource '%s'\n", name)
	}

	delete(doc.Resources, name)
	return e.Session.Write(ctx)
}

// runStoredDown executes a down action from the files recorded at the
// resource's last up, never from a fresh rendering. dirKind distinguishes
// plain teardown directories from identity replacements.
func (e *Engine) runStoredDown(ctx context.Context, dirKind, name string, rs *state.ResourceState, wt *workTree) error {
	dir, err := wt.dir(dirKind, name)
	if err != nil {
		return err
	}
	files := mergeBags(rs.BagFiles("common"), rs.BagFiles("down"))
	if err := prepareActionDir(dir, files, rs); err != nil {
		return err
	}
	if err := e.runScript(ctx, "down", name, dir, e.storedEnv(name, rs)); err != nil {
		return err
	}
	if msg := readMessage(dir); msg != "" {
		e.UI.Colorf(colorCyan, "%s\n", msg)
	}
	return nil
}
