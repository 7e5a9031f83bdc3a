package cli

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var outputJSON bool

var outputCmd = &cobra.Command{
	Use:   "output [name]",
	Short: "Show output values from the last apply",
	RunE:  runOutput,
}

func init() {
	outputCmd.Flags().BoolVar(&outputJSON, "json", false, "Print outputs as JSON")
}

func runOutput(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	templatePath, err := resolveTemplate(nil)
	if err != nil {
		return err
	}

	store, err := buildStore(templatePath)
	if err != nil {
		return err
	}

	meta, err := store.Meta(ctx)
	if err != nil {
		return fmt.Errorf("failed to read state metadata: %w", err)
	}

	if len(args) > 0 {
		name := args[0]
		value, ok := meta.Outputs[name]
		if !ok {
			return fmt.Errorf("output %q not found", name)
		}
		if outputJSON {
			data, err := json.Marshal(value)
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}
		fmt.Printf("%v\n", value)
		return nil
	}

	if len(meta.Outputs) == 0 {
		fmt.Println("No outputs recorded. Run apply first.")
		return nil
	}

	if outputJSON {
		data, err := json.MarshalIndent(meta.Outputs, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	keys := make([]string, 0, len(meta.Outputs))
	for k := range meta.Outputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("%s = %v\n", k, meta.Outputs[k])
	}
	return nil
}
