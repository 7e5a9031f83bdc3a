package cli

import (
	"github.com/spf13/cobra"

	"github.com/relish-io/relish/internal/logging"
)

var (
	rootBackend       string
	rootBackendConfig map[string]string
	rootStateDir      string
	rootLogLevel      string
)

var rootCmd = &cobra.Command{
	Use:   "relish",
	Short: "Declarative infrastructure provisioning",
	Long: `Relish reconciles declared resources against recorded state.

A template names resources and how they reference each other; relish
computes the dependency order, diffs each resource against the state
store, and applies only what changed.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(rootLogLevel)
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootBackend, "backend", "local", "State backend (local, s3)")
	rootCmd.PersistentFlags().StringToStringVar(&rootBackendConfig, "backend-config", nil, "Backend configuration (format: key=value)")
	rootCmd.PersistentFlags().StringVar(&rootStateDir, "state-dir", "", "State directory for the local backend (default: <template dir>/.relish/state)")
	rootCmd.PersistentFlags().StringVar(&rootLogLevel, "log-level", "", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(destroyCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(outputCmd)
	rootCmd.AddCommand(versionCmd)
}
