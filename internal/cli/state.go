package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shellform-io/shellform/internal/state"
)

var (
	forgetYes       bool
	migrateToFile   string
	migrateFromFile string
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Inspect and repair the state document",
}

var stateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored resources",
	RunE:  runStateList,
}

var stateForgetCmd = &cobra.Command{
	Use:   "forget <resource>",
	Short: "Drop a resource's entry without running its down action",
	Long: `Removes the entry from the state document. Whatever the resource manages
keeps existing; shellform just stops tracking it.`,
	Args: cobra.ExactArgs(1),
	RunE: runStateForget,
}

var stateMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Copy the state document between backends",
	Long: `Copies the whole document between the manifest's backend and a local
file: --to-file exports, --from-file imports. Both sides are locked for
the copy.`,
	RunE: runStateMigrate,
}

func init() {
	stateForgetCmd.Flags().BoolVarP(&forgetYes, "yes", "y", false, "Skip the confirmation")
	stateMigrateCmd.Flags().StringVar(&migrateToFile, "to-file", "", "Copy the document to this local state file")
	stateMigrateCmd.Flags().StringVar(&migrateFromFile, "from-file", "", "Copy the document from this local state file")

	stateCmd.AddCommand(stateListCmd)
	stateCmd.AddCommand(stateForgetCmd)
	stateCmd.AddCommand(stateMigrateCmd)
}

func runStateList(cmd *cobra.Command, args []string) error {
	m, err := loadManifest()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	session, err := openSession(ctx, m)
	if err != nil {
		return err
	}
	defer closeSession(ctx, session)
	doc := session.Doc

	if len(doc.Resources) == 0 {
		fmt.Println("No resources in state.")
		return nil
	}
	for _, name := range doc.Names() {
		fmt.Printf("%s (%s)\n", name, doc.Resources[name].Status())
	}
	return nil
}

func runStateForget(cmd *cobra.Command, args []string) error {
	name := args[0]

	m, err := loadManifest()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	session, err := openSession(ctx, m)
	if err != nil {
		return err
	}
	defer closeSession(ctx, session)

	if _, ok := session.Doc.Resources[name]; !ok {
		return fmt.Errorf("no state for resource '%s'", name)
	}

	if !forgetYes && !promptYesNo(fmt.Sprintf("Forget resource '%s' without running its down action?", name)) {
		fmt.Println("Cancelled.")
		return nil
	}

	delete(session.Doc.Resources, name)
	if err := session.Write(ctx); err != nil {
		return err
	}
	fmt.Printf("Removed '%s' from state. Whatever it managed still exists.\n", name)
	return nil
}

func runStateMigrate(cmd *cobra.Command, args []string) error {
	if (migrateToFile == "") == (migrateFromFile == "") {
		return fmt.Errorf("exactly one of --to-file and --from-file is required")
	}

	m, err := loadManifest()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	backend, err := state.NewBackend(ctx, m.State)
	if err != nil {
		return err
	}
	manifestStore := state.NewStore(backend)

	if migrateToFile != "" {
		return copyDocument(ctx, manifestStore, state.NewStore(state.NewLocalBackend(migrateToFile)),
			fmt.Sprintf("Migrated %%d resources to %s.\n", migrateToFile))
	}
	return copyDocument(ctx, state.NewStore(state.NewLocalBackend(migrateFromFile)), manifestStore,
		fmt.Sprintf("Migrated %%d resources from %s.\n", migrateFromFile))
}

func copyDocument(ctx context.Context, from, to *state.Store, doneFormat string) error {
	src, err := from.Open(ctx, workspaceName, stateTimeout)
	if err != nil {
		return err
	}
	defer closeSession(ctx, src)

	dst, err := to.Open(ctx, workspaceName, stateTimeout)
	if err != nil {
		return err
	}
	defer closeSession(ctx, dst)

	dst.Doc.Resources = src.Doc.Resources
	if err := dst.Write(ctx); err != nil {
		return err
	}
	fmt.Printf(doneFormat, len(src.Doc.Resources))
	return nil
}
