package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var outputsJSON bool

var outputsCmd = &cobra.Command{
	Use:   "outputs [resource]",
	Short: "Show stored exports",
	Long: `Prints the variables resources exported on their last successful up
action. With a resource name, only that resource's exports are printed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runOutputs,
}

func init() {
	outputsCmd.Flags().BoolVar(&outputsJSON, "json", false, "Output as JSON")
}

func runOutputs(cmd *cobra.Command, args []string) error {
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

	if len(args) > 0 {
		name := args[0]
		rs := doc.Resources[name]
		if rs == nil {
			return fmt.Errorf("no state for resource '%s'", name)
		}
		if outputsJSON {
			return printJSON(rs.Exports)
		}
		for _, export := range sortedKeys(rs.Exports) {
			fmt.Printf("%s = %s\n", export, rs.Exports[export])
		}
		return nil
	}

	exported := make(map[string]map[string]string)
	for name, rs := range doc.Resources {
		if len(rs.Exports) > 0 {
			exported[name] = rs.Exports
		}
	}

	if outputsJSON {
		return printJSON(exported)
	}
	if len(exported) == 0 {
		fmt.Println("No exports stored.")
		return nil
	}
	for _, name := range sortedKeys(exported) {
		fmt.Printf("%s:\n", name)
		for _, export := range sortedKeys(exported[name]) {
			fmt.Printf("  %s = %s\n", export, exported[name][export])
		}
	}
	return nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding outputs: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
