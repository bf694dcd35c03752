package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/shellform-io/shellform/internal/logging"
	"github.com/shellform-io/shellform/internal/manifest"
)

var (
	manifestFile  string
	workspaceName string
	stateTimeout  time.Duration
	noColor       bool
	debugMode     bool
)

var rootCmd = &cobra.Command{
	Use:   "shellform",
	Short: "Shell-script driven declarative resource orchestration",
	Long: `Shellform converges a set of declared resources by running their shell
scripts in dependency order, and remembers what it did.

  • Resources declare scripts, rendered files, exports and imports in a
    TOML manifest
  • State is one JSON document, stored locally or in S3, locked for the
    whole run
  • Changing a resource's rendered inputs re-runs it; removing it from the
    manifest tears it down`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := "warn"
		if debugMode {
			level = "debug"
		}
		logging.Init(level)
	},
}

// Execute runs the root command. Errors are printed as one red line; full
// detail is available with --debug.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		printError(err)
	}
	return err
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&manifestFile, "file", "f", manifest.DefaultPath, "Manifest file to load")
	pf.StringVarP(&workspaceName, "workspace", "w", "default", "State workspace this run operates on")
	pf.DurationVar(&stateTimeout, "state-timeout", 10*time.Second, "How long to wait for the state lock")
	pf.BoolVar(&noColor, "no-color", false, "Disable colored output")
	pf.BoolVar(&debugMode, "debug", false, "Verbose logging, shell tracing, keep working directories of failed actions")

	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(destroyCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(modesCmd)
	rootCmd.AddCommand(outputsCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(stateCmd)
	rootCmd.AddCommand(taintCmd)
	rootCmd.AddCommand(untaintCmd)
	rootCmd.AddCommand(workspaceCmd)
	rootCmd.AddCommand(versionCmd)
}
