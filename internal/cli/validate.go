package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/relish-io/relish/internal/engine"
	"github.com/relish-io/relish/internal/template"
)

var validateCmd = &cobra.Command{
	Use:   "validate [template]",
	Short: "Validate a template",
	Long:  `Parses the template and checks references and dependency ordering without touching state or providers.`,
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	templatePath, err := resolveTemplate(args)
	if err != nil {
		return err
	}

	doc, err := template.Load(templatePath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	// Graph construction surfaces unknown references and cycles.
	if _, err := engine.BuildDAG(doc.Resources); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	fmt.Printf("Success! Template is valid: %d resource(s), %d output(s).\n",
		len(doc.Resources), len(doc.Outputs))
	return nil
}
