package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shellform-io/shellform/internal/engine"
)

var (
	planDown           bool
	planFull           bool
	planIgnoreIdentity bool
	planOnly           []string
	planTags           []string
	planExclude        []string
	planExcludeTags    []string
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show what apply would do",
	Long: `Computes the same selection apply would and prints, per resource, whether
it would be created, updated, replaced or brought down, with content diffs
of the files that changed. Nothing is executed and nothing is written.

Renderings use the exports stored by previous runs, so a resource whose
dependencies still have work pending cannot be decided yet.`,
	RunE: runPlan,
}

func init() {
	f := planCmd.Flags()
	f.BoolVarP(&planDown, "down", "d", false, "Plan bringing selected resources down")
	f.BoolVar(&planFull, "full", false, "Plan a run that forces every selected up action")
	f.BoolVar(&planIgnoreIdentity, "ignore-identity", false, "Plan identity changes as in-place updates")
	f.StringArrayVar(&planOnly, "only", nil, "Only resources matching this name pattern (repeatable)")
	f.StringArrayVar(&planTags, "tags", nil, "Only resources matching this tag expression (repeatable)")
	f.StringArrayVar(&planExclude, "exclude", nil, "Skip resources matching this name pattern (repeatable)")
	f.StringArrayVar(&planExcludeTags, "exclude-tags", nil, "Skip resources matching this tag expression (repeatable)")
}

func runPlan(cmd *cobra.Command, args []string) error {
	m, mdl, err := loadModel()
	if err != nil {
		return err
	}
	filters, err := engine.NewFilters(planOnly, planTags, planExclude, planExcludeTags)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	session, err := openSession(ctx, m)
	if err != nil {
		return err
	}
	defer closeSession(ctx, session)

	entries, err := engine.Preview(mdl, session.Doc, engine.Options{
		Workspace:      workspaceName,
		DownEverything: planDown,
		Full:           planFull,
		IgnoreIdentity: planIgnoreIdentity,
		Filters:        filters,
	})
	if err != nil {
		return err
	}

	fmt.Print(renderPreview(entries))
	return nil
}
