package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/relish-io/relish/internal/engine"
	"github.com/relish-io/relish/internal/provider"
	"github.com/relish-io/relish/internal/template"
)

var (
	applyAutoApprove bool
	applyParallelism int
)

var applyCmd = &cobra.Command{
	Use:   "apply [template]",
	Short: "Apply a template",
	Long:  `Creates, updates, or deletes resources so the recorded state converges on the declared template.`,
	RunE:  runApply,
}

func init() {
	applyCmd.Flags().BoolVar(&applyAutoApprove, "auto-approve", false, "Skip interactive approval of plan before applying")
	applyCmd.Flags().IntVar(&applyParallelism, "parallelism", 1, "Maximum number of concurrent provider operations")
}

func runApply(cmd *cobra.Command, args []string) error {
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
	if err := store.Lock(); err != nil {
		return err
	}
	defer store.Unlock()

	records, err := store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load state: %w", err)
	}

	registry := provider.NewRegistry()
	if err := loadProviders(registry, doc, records); err != nil {
		return err
	}

	eng := engine.NewEngine(registry, store)
	eng.Parallelism = applyParallelism

	fmt.Print("Calculating plan... ")
	plan, err := eng.CreatePlan(ctx, doc)
	if err != nil {
		fmt.Println("FAILED")
		return fmt.Errorf("plan generation failed: %w", err)
	}
	fmt.Println("OK")

	if !plan.HasChanges() {
		fmt.Println("No changes. Infrastructure is up-to-date.")
		return nil
	}

	fmt.Println("\nRelish will perform the following actions:")
	renderPlanChanges(plan)
	renderPlanSummary(plan)

	if !applyAutoApprove {
		fmt.Print("\nDo you want to perform these actions? (y/n): ")
		var response string
		fmt.Scanln(&response)
		if response != "y" && response != "yes" {
			fmt.Println("Apply cancelled.")
			return nil
		}
	}

	fmt.Printf("\nApplying %d changes...\n", plan.Summary.Create+plan.Summary.Update+plan.Summary.Delete)

	result, err := eng.ApplyWithCallback(ctx, plan, progressCallback)
	if err != nil {
		return fmt.Errorf("apply failed: %w", err)
	}
	renderRunSummary(result)

	meta, err := store.Meta(ctx)
	if err == nil && len(meta.Outputs) > 0 {
		fmt.Println("\nOutputs:")
		for k, v := range meta.Outputs {
			fmt.Printf("  %s = %v\n", k, v)
		}
	}

	return result.Err()
}

func progressCallback(event engine.ApplyEvent) {
	switch event.Status {
	case "applied":
		fmt.Printf("  %s: %s (%s)\n", event.NodeID, event.Op, event.Duration.Round(10*time.Millisecond))
	case "failed":
		fmt.Printf("\033[31m  %s: %s failed: %v\033[0m\n", event.NodeID, event.Op, event.Error)
	case "skipped":
		fmt.Printf("\033[33m  %s: skipped (dependency failed)\033[0m\n", event.NodeID)
	}
}
