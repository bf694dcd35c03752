package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the manifest without touching state",
	Long: `Loads the manifest and runs every model check: resource and mode names,
import and dependency references, bag path rules, and graph acyclicity.`,
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	if _, _, err := loadModel(); err != nil {
		return err
	}
	fmt.Println("model is valid")
	return nil
}
