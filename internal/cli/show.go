package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shellform-io/shellform/internal/state"
)

var showCmd = &cobra.Command{
	Use:   "show <resource>",
	Short: "Show the stored entry of one resource",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func runShow(cmd *cobra.Command, args []string) error {
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

	name := args[0]
	rs := session.Doc.Resources[name]
	if rs == nil {
		return fmt.Errorf("no state for resource '%s'", name)
	}

	fmt.Print(renderShow(name, rs))
	return nil
}

func renderShow(name string, rs *state.ResourceState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", name)
	fmt.Fprintf(&b, "  status = %s\n", rs.Status())
	fmt.Fprintf(&b, "  tags   = %s\n", orNone(rs.Tags))
	fmt.Fprintf(&b, "  deps   = %s\n", orNone(rs.Deps))
	fmt.Fprintf(&b, "  modes  = %s\n", orNone(rs.UsedModes))

	if len(rs.Exports) > 0 {
		fmt.Fprintf(&b, "\n  exports:\n")
		for _, export := range sortedKeys(rs.Exports) {
			fmt.Fprintf(&b, "    %s = %s\n", export, rs.Exports[export])
		}
	}
	if len(rs.Mementos) > 0 {
		fmt.Fprintf(&b, "\n  mementos:\n")
		for _, memento := range sortedKeys(rs.Mementos) {
			if mode, ok := rs.MementosModes[memento]; ok {
				fmt.Fprintf(&b, "    %s (mode %04o)\n", memento, mode)
			} else {
				fmt.Fprintf(&b, "    %s\n", memento)
			}
		}
	}
	if len(rs.Snapshot) > 0 {
		fmt.Fprintf(&b, "\n  snapshot:\n")
		for _, path := range sortedKeys(rs.Snapshot) {
			fmt.Fprintf(&b, "    %s (%d bytes)\n", path, len(rs.Snapshot[path]))
		}
	}
	if rs.Checkpoint != "" {
		fmt.Fprintf(&b, "\n  checkpoint = %s\n", rs.Checkpoint)
	}
	if rs.Message != "" {
		fmt.Fprintf(&b, "\n  message:\n")
		b.WriteString(indent(strings.TrimRight(rs.Message, "\n")+"\n", "    "))
	}
	return b.String()
}

func orNone(values []string) string {
	if len(values) == 0 {
		return "(none)"
	}
	return strings.Join(values, ", ")
}
