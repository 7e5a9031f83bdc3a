package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/relish-io/relish/internal/ir"
	"github.com/relish-io/relish/internal/provider"
	"github.com/relish-io/relish/internal/state"
)

// resolveTemplate turns the optional positional argument into an absolute
// template path. A directory argument means main.yaml inside it.
func resolveTemplate(args []string) (string, error) {
	target := "main.yaml"
	if len(args) > 0 {
		target = args[0]
	}

	absPath, err := filepath.Abs(target)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path %s: %w", target, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return "", fmt.Errorf("failed to stat path %s: %w", target, err)
	}
	if info.IsDir() {
		absPath = filepath.Join(absPath, "main.yaml")
	}
	return absPath, nil
}

// buildStore creates the state store from the persistent backend flags. The
// local backend defaults to .relish/state next to the template.
func buildStore(templatePath string) (state.Store, error) {
	cfg := state.Config{
		Type:    rootBackend,
		Options: rootBackendConfig,
	}
	if cfg.Type == "" || cfg.Type == "local" {
		cfg.Path = rootStateDir
		if cfg.Path == "" {
			cfg.Path = filepath.Join(filepath.Dir(templatePath), ".relish", "state")
		}
	}
	return state.NewStore(cfg)
}

// loadProviders auto-loads every adapter referenced by declared resources or
// by records already in state (needed for deletes).
func loadProviders(registry *provider.Registry, doc *ir.Document, records map[string]*ir.StateRecord) error {
	seen := make(map[string]bool)
	load := func(name string) error {
		if name == "" || seen[name] {
			return nil
		}
		seen[name] = true
		if err := registry.Load(name); err != nil {
			return fmt.Errorf("failed to load provider %s: %w", name, err)
		}
		return nil
	}

	if doc != nil {
		for _, res := range doc.Resources {
			if err := load(res.ProviderName()); err != nil {
				return err
			}
		}
	}
	for _, rec := range records {
		if err := load(rec.Provider); err != nil {
			return err
		}
	}
	return nil
}

// renderPlanChanges prints the detailed change list for a plan.
func renderPlanChanges(plan *ir.Plan) {
	for _, change := range plan.Changes {
		if change.Op == ir.OpNoOp {
			continue
		}

		symbol := "~"
		color := "\033[33m"
		verb := "updated"
		switch change.Op {
		case ir.OpCreate:
			symbol, color, verb = "+", "\033[32m", "created"
		case ir.OpDelete:
			symbol, color, verb = "-", "\033[31m", "deleted"
		}

		fmt.Printf("\n%s  # %s will be %s%s\n", color, change.NodeID, verb, "\033[0m")
		fmt.Printf("%s  %s resource %q %q {\n", color, symbol, change.Type, change.NodeID)
		renderPropertyDiff(change.Diff, color)
		fmt.Printf("%s    }%s\n", color, "\033[0m")
	}
}

// renderPropertyDiff prints structured property diffs.
func renderPropertyDiff(diff map[string]*ir.PropertyDiff, color string) {
	for key, d := range diff {
		switch d.Action {
		case "create":
			fmt.Printf("\033[32m      + %s = %v\033[0m\n", key, formatValue(d.After))
		case "delete":
			fmt.Printf("\033[31m      - %s = %v\033[0m\n", key, formatValue(d.Before))
		case "update":
			fmt.Printf("\033[33m      ~ %s = %v -> %v\033[0m\n", key, formatValue(d.Before), formatValue(d.After))
		default:
			fmt.Printf("%s        %s = %v\n", color, key, formatValue(d.After))
		}
	}
}

// formatValue returns a human-readable representation of a value.
func formatValue(v any) string {
	if v == nil {
		return "null"
	}
	switch val := v.(type) {
	case string:
		return fmt.Sprintf("%q", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// renderPlanSummary prints the plan summary counts.
func renderPlanSummary(plan *ir.Plan) {
	fmt.Println("\nPlan Summary:")
	fmt.Printf("  Create: %d\n", plan.Summary.Create)
	fmt.Printf("  Update: %d\n", plan.Summary.Update)
	fmt.Printf("  Delete: %d\n", plan.Summary.Delete)
	fmt.Printf("  NoOp:   %d\n", plan.Summary.NoOp)
}

// renderRunSummary prints per-outcome counts after an apply.
func renderRunSummary(result *ir.RunResult) {
	applied, failed, skipped, noop := result.Counts()
	fmt.Printf("\nApply complete! Resources: %d applied, %d unchanged", applied, noop)
	if failed > 0 || skipped > 0 {
		fmt.Printf(", %d failed, %d skipped", failed, skipped)
	}
	fmt.Println(".")

	for _, id := range result.Nodes(ir.OutcomeFailed) {
		fmt.Printf("\033[31m  failed:  %s\033[0m\n", id)
	}
	for _, id := range result.Nodes(ir.OutcomeSkipped) {
		fmt.Printf("\033[33m  skipped: %s\033[0m\n", id)
	}
}
