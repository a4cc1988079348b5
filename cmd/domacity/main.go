// Command domacity runs the housing market simulation.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0-dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "domacity",
		Short: "Agent-based urban housing market simulation",
		Long: `domacity simulates a hex-grid city of tenants, landlords, and a
cooperative housing fund, one month per step. Runs are seeded and
reproducible; an HTTP API exposes state and accepts play commands.`,
	}

	rootCmd.PersistentFlags().String("config", "", "Path to config YAML (optional)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("domacity", version)
		},
	}
}
