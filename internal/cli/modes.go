package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shellform-io/shellform/internal/model"
)

var modesCmd = &cobra.Command{
	Use:   "modes",
	Short: "List the modes the manifest defines",
	Long: `Prints every mode with its default value and what values it accepts.
Set modes per run with 'apply --mode name=value'.`,
	RunE: runModes,
}

func runModes(cmd *cobra.Command, args []string) error {
	_, mdl, err := loadModel()
	if err != nil {
		return err
	}
	fmt.Print(renderModes(mdl.Modes))
	return nil
}

func renderModes(modes map[string]*model.Mode) string {
	if len(modes) == 0 {
		return "No modes defined.\n"
	}

	names := make([]string, 0, len(modes))
	nameWidth, defaultWidth := len("MODE"), len("DEFAULT")
	for name, m := range modes {
		names = append(names, name)
		if len(name) > nameWidth {
			nameWidth = len(name)
		}
		if len(m.Default) > defaultWidth {
			defaultWidth = len(m.Default)
		}
	}
	sort.Strings(names)

	var b strings.Builder
	fmt.Fprintf(&b, "%-*s  %-*s  %s\n", nameWidth, "MODE", defaultWidth, "DEFAULT", "HELP")
	for _, name := range names {
		m := modes[name]
		help := m.Help
		switch {
		case len(m.Choices) > 0:
			help = appendNote(help, "one of: "+strings.Join(m.Choices, ", "))
		case m.Pattern != nil:
			help = appendNote(help, "matching "+m.Pattern.String())
		}
		fmt.Fprintf(&b, "%-*s  %-*s  %s\n", nameWidth, name, defaultWidth, m.Default, help)
	}
	return b.String()
}

func appendNote(help, note string) string {
	if help == "" {
		return "(" + note + ")"
	}
	return help + " (" + note + ")"
}
