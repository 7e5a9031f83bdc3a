package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/relish-io/relish/internal/engine"
	"github.com/relish-io/relish/internal/template"
)

var graphCmd = &cobra.Command{
	Use:   "graph [template]",
	Short: "Output the dependency graph in DOT format",
	Long:  `Prints the resource dependency graph for rendering with Graphviz, e.g. relish graph | dot -Tpng > graph.png`,
	RunE:  runGraph,
}

func runGraph(cmd *cobra.Command, args []string) error {
	templatePath, err := resolveTemplate(args)
	if err != nil {
		return err
	}

	doc, err := template.Load(templatePath)
	if err != nil {
		return fmt.Errorf("failed to load template: %w", err)
	}

	dag, err := engine.BuildDAG(doc.Resources)
	if err != nil {
		return err
	}

	fmt.Println("digraph resources {")
	fmt.Println("  rankdir = \"BT\";")
	fmt.Println("  node [shape = box];")
	for _, id := range dag.CreationOrder() {
		res := doc.Resource(id)
		fmt.Printf("  %q [label = \"%s\\n%s\"];\n", id, id, res.Type)
	}
	for _, id := range dag.CreationOrder() {
		for _, dep := range dag.Dependencies(id) {
			fmt.Printf("  %q -> %q;\n", id, dep)
		}
	}
	fmt.Println("}")
	return nil
}
