package cli

import (
	"github.com/spf13/cobra"
)

var (
	destroyYes         bool
	destroyKeepWork    bool
	destroyOnly        []string
	destroyTags        []string
	destroyExclude     []string
	destroyExcludeTags []string
	destroyRunner      string
	destroyRunnerImage string
)

var destroyCmd = &cobra.Command{
	Use:   "destroy",
	Short: "Bring every stored resource down",
	Long: `Runs the stored down action of every resource in the state document, in
reverse dependency order. Filters narrow the set the same way they do for
apply; dependent resources always come down before their dependencies.`,
	RunE: runDestroy,
}

func init() {
	f := destroyCmd.Flags()
	f.BoolVarP(&destroyYes, "yes", "y", false, "Skip the plan confirmation")
	f.BoolVar(&destroyKeepWork, "keep-work", false, "Keep all working directories after the run")
	f.StringArrayVar(&destroyOnly, "only", nil, "Only resources matching this name pattern (repeatable)")
	f.StringArrayVar(&destroyTags, "tags", nil, "Only resources matching this tag expression (repeatable)")
	f.StringArrayVar(&destroyExclude, "exclude", nil, "Skip resources matching this name pattern (repeatable)")
	f.StringArrayVar(&destroyExcludeTags, "exclude-tags", nil, "Skip resources matching this tag expression (repeatable)")
	f.StringVar(&destroyRunner, "runner", "", "Script runner: local or docker (overrides the manifest)")
	f.StringVar(&destroyRunnerImage, "runner-image", "", "Container image for the docker runner")
}

func runDestroy(cmd *cobra.Command, args []string) error {
	return runConvergence(cmd.Context(), convergeParams{
		downEverything: true,
		yes:            destroyYes,
		keepWork:       destroyKeepWork,
		only:           destroyOnly,
		tags:           destroyTags,
		exclude:        destroyExclude,
		excludeTags:    destroyExcludeTags,
		runnerKind:     destroyRunner,
		runnerImage:    destroyRunnerImage,
	})
}
