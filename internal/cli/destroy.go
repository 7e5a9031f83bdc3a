package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/relish-io/relish/internal/engine"
	"github.com/relish-io/relish/internal/provider"
)

var destroyAutoApprove bool

var destroyCmd = &cobra.Command{
	Use:   "destroy [template]",
	Short: "Destroy all managed resources",
	Long:  `Deletes every resource recorded in state, dependents before the nodes they depend on.`,
	RunE:  runDestroy,
}

func init() {
	destroyCmd.Flags().BoolVar(&destroyAutoApprove, "auto-approve", false, "Skip interactive approval before destroying")
}

func runDestroy(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	templatePath, err := resolveTemplate(args)
	if err != nil {
		return err
	}

	store, err := buildStore(templatePath)
	if err != nil {
		return err
	}
	if err := store.Lock(); err != nil {
		return err
	}
	defer store.Unlock()

	records, err := store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load state: %w", err)
	}
	if len(records) == 0 {
		fmt.Println("Nothing to destroy. State is empty.")
		return nil
	}

	registry := provider.NewRegistry()
	if err := loadProviders(registry, nil, records); err != nil {
		return err
	}

	eng := engine.NewEngine(registry, store)
	plan, err := eng.CreateDestroyPlan(ctx)
	if err != nil {
		return fmt.Errorf("plan generation failed: %w", err)
	}

	fmt.Println("Relish will destroy the following resources:")
	renderPlanChanges(plan)
	renderPlanSummary(plan)

	if !destroyAutoApprove {
		fmt.Print("\nDo you really want to destroy all resources? (y/n): ")
		var response string
		fmt.Scanln(&response)
		if response != "y" && response != "yes" {
			fmt.Println("Destroy cancelled.")
			return nil
		}
	}

	result, err := eng.ApplyWithCallback(ctx, plan, progressCallback)
	if err != nil {
		return fmt.Errorf("destroy failed: %w", err)
	}
	renderRunSummary(result)
	return result.Err()
}
