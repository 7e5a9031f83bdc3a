package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/relish-io/relish/internal/engine"
	"github.com/relish-io/relish/internal/provider"
	"github.com/relish-io/relish/internal/template"
)

var planCmd = &cobra.Command{
	Use:   "plan [template]",
	Short: "Show changes required by the current template",
	Long:  `Diffs the declared resources against recorded state and prints the ordered set of operations an apply would perform.`,
	RunE:  runPlan,
}

func runPlan(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	templatePath, err := resolveTemplate(args)
	if err != nil {
		return err
	}

	doc, err := template.Load(templatePath)
	if err != nil {
		return fmt.Errorf("failed to load template: %w", err)
	}

	store, err := buildStore(templatePath)
	if err != nil {
		return err
	}

	registry := provider.NewRegistry()
	eng := engine.NewEngine(registry, store)

	plan, err := eng.CreatePlan(ctx, doc)
	if err != nil {
		return fmt.Errorf("plan generation failed: %w", err)
	}

	if !plan.HasChanges() {
		fmt.Println("No changes. Infrastructure is up-to-date.")
		return nil
	}

	fmt.Println("Relish will perform the following actions:")
	renderPlanChanges(plan)
	renderPlanSummary(plan)
	return nil
}
