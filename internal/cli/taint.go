package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var taintCmd = &cobra.Command{
	Use:   "taint <resource>",
	Short: "Force a resource to re-run on the next apply",
	Long: `Marks the stored entry dirty, so the next apply runs the resource's up
action even when nothing about it changed.`,
	Args: cobra.ExactArgs(1),
	RunE: runTaint,
}

var untaintCmd = &cobra.Command{
	Use:   "untaint <resource>",
	Short: "Clear a taint mark",
	Args:  cobra.ExactArgs(1),
	RunE:  runUntaint,
}

func runTaint(cmd *cobra.Command, args []string) error {
	return setDirty(cmd, args[0], true,
		"Resource '%s' is marked dirty and will re-run on the next apply.\n")
}

func runUntaint(cmd *cobra.Command, args []string) error {
	return setDirty(cmd, args[0], false,
		"Resource '%s' is no longer marked dirty.\n")
}

func setDirty(cmd *cobra.Command, name string, dirty bool, doneFormat string) error {
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

	rs := session.Doc.Resources[name]
	if rs == nil {
		return fmt.Errorf("no state for resource '%s'", name)
	}

	rs.Dirty = dirty
	if err := session.Write(ctx); err != nil {
		return err
	}
	fmt.Printf(doneFormat, name)
	return nil
}
