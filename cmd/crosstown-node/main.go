package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "crosstown-node",
	Short: "Crosstown demonstration node",
	Long: `crosstown-node is a thin harness around the Crosstown library: it loads
configuration, wires an in-process stub ILP connector for local
experimentation, and runs bootstrap() followed by the relay monitor.

It is not a production ILP connector. A real deployment embeds the
crosstown package directly and supplies its own connector.Handle.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	// Subcommands register themselves in their own files:
	// - run.go: runCmd
	// - version.go: versionCmd
}
