package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Output the dependency graph in DOT format",
	Long: `Prints the model's dependency graph in Graphviz DOT format. Pipe the
output to 'dot' to generate an image:

  shellform graph | dot -Tpng > graph.png`,
	RunE: runGraph,
}

func runGraph(cmd *cobra.Command, args []string) error {
	_, mdl, err := loadModel()
	if err != nil {
		return err
	}
	fmt.Print(mdl.Graph.DOT("shellform"))
	return nil
}
