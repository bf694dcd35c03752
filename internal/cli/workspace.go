package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shellform-io/shellform/internal/logging"
	"github.com/shellform-io/shellform/internal/state"
)

var workspaceCmd = &cobra.Command{
	Use:   "workspace",
	Short: "Print the workspace the state document belongs to",
	Long: `Each state document carries the label of the workspace it was written
for, and every command refuses to operate on a document from a different
workspace. This prints the persisted label, or the requested workspace
when the document is still empty.`,
	RunE: runWorkspace,
}

func runWorkspace(cmd *cobra.Command, args []string) error {
	m, err := loadManifest()
	if err != nil {
		return err
	}

	// The usual session guard would refuse a mismatched document, which is
	// exactly what this command needs to be able to report. Read the
	// document under the lock but without the guard.
	ctx := cmd.Context()
	backend, err := state.NewBackend(ctx, m.State)
	if err != nil {
		return err
	}
	if err := backend.Lock(ctx, stateTimeout); err != nil {
		return err
	}
	defer func() {
		if err := backend.Unlock(ctx); err != nil {
			logging.Warn("failed to release the state lock", "error", err)
		}
	}()

	doc, err := backend.Load(ctx)
	if err != nil {
		return err
	}

	label := doc.Workspace
	if label == "" {
		label = workspaceName
	}
	fmt.Println(label)
	return nil
}
