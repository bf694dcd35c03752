package cli

import (
	"time"

	"github.com/spf13/cobra"
)

var (
	applyDown              bool
	applyFull              bool
	applyYes               bool
	applyKeepWork          bool
	applyIgnoreCheckpoints bool
	applyIgnoreIdentity    bool
	applySkipPrechecks     bool
	applyOnly              []string
	applyTags              []string
	applyExclude           []string
	applyExcludeTags       []string
	applyModes             []string
	applyRunner            string
	applyRunnerImage       string
	applyActionTimeout     time.Duration
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Converge resources to the manifest",
	Long: `Brings down stored resources the manifest no longer declares, then brings
up declared resources whose rendered inputs changed, in dependency order.

Each action runs the resource's shell scripts in a fresh working directory.
The run stops at the first failure; everything already done is persisted.`,
	RunE: runApply,
}

func init() {
	f := applyCmd.Flags()
	f.BoolVarP(&applyDown, "down", "d", false, "Bring selected resources down instead of up")
	f.BoolVar(&applyFull, "full", false, "Run every selected up action even without changes")
	f.BoolVarP(&applyYes, "yes", "y", false, "Skip the plan confirmation")
	f.BoolVar(&applyKeepWork, "keep-work", false, "Keep all working directories after the run")
	f.BoolVar(&applyIgnoreCheckpoints, "ignore-checkpoints", false, "Restart up actions from the beginning instead of the stored checkpoint")
	f.BoolVar(&applyIgnoreIdentity, "ignore-identity", false, "Update in place even when a resource's identity changed")
	f.BoolVar(&applySkipPrechecks, "skip-prechecks", false, "Skip precheck actions of genuinely new resources")
	f.StringArrayVar(&applyOnly, "only", nil, "Only resources matching this name pattern (repeatable)")
	f.StringArrayVar(&applyTags, "tags", nil, "Only resources matching this tag expression (repeatable)")
	f.StringArrayVar(&applyExclude, "exclude", nil, "Skip resources matching this name pattern (repeatable)")
	f.StringArrayVar(&applyExcludeTags, "exclude-tags", nil, "Skip resources matching this tag expression (repeatable)")
	f.StringArrayVar(&applyModes, "mode", nil, "Set a mode, name or name=value (repeatable)")
	f.StringVar(&applyRunner, "runner", "", "Script runner: local or docker (overrides the manifest)")
	f.StringVar(&applyRunnerImage, "runner-image", "", "Container image for the docker runner")
	f.DurationVar(&applyActionTimeout, "action-timeout", 0, "Time limit per script action (default 30m)")
}

func runApply(cmd *cobra.Command, args []string) error {
	return runConvergence(cmd.Context(), convergeParams{
		downEverything:    applyDown,
		full:              applyFull,
		yes:               applyYes,
		keepWork:          applyKeepWork,
		ignoreCheckpoints: applyIgnoreCheckpoints,
		ignoreIdentity:    applyIgnoreIdentity,
		skipPrechecks:     applySkipPrechecks,
		only:              applyOnly,
		tags:              applyTags,
		exclude:           applyExclude,
		excludeTags:       applyExcludeTags,
		modes:             applyModes,
		runnerKind:        applyRunner,
		runnerImage:       applyRunnerImage,
		actionTimeout:     applyActionTimeout,
	})
}
