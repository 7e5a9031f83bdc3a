package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show [template]",
	Short: "Show the recorded state",
	Long:  `Prints every state record: logical id, type, provider id, and when it was last applied.`,
	RunE:  runShow,
}

func runShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	templatePath, err := resolveTemplate(args)
	if err != nil {
		return err
	}

	store, err := buildStore(templatePath)
	if err != nil {
		return err
	}

	records, err := store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load state: %w", err)
	}
	if len(records) == 0 {
		fmt.Println("State is empty.")
		return nil
	}

	meta, err := store.Meta(ctx)
	if err != nil {
		return fmt.Errorf("failed to read state metadata: %w", err)
	}
	fmt.Printf("# serial: %d, lineage: %s\n", meta.Serial, meta.Lineage)

	ids := make([]string, 0, len(records))
	for id := range records {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		rec := records[id]
		fmt.Printf("\nresource %q %q {\n", rec.Type, id)
		fmt.Printf("  providerId = %q\n", rec.ProviderID)
		fmt.Printf("  appliedAt  = %q\n", rec.AppliedAt)

		keys := make([]string, 0, len(rec.Outputs))
		for k := range rec.Outputs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("  output %s = %v\n", k, formatValue(rec.Outputs[k]))
		}
		fmt.Println("}")
	}
	return nil
}
