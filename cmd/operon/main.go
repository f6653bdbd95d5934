// Command operon serves a catalog of declarative operations over MCP and
// runs them from the command line.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via ldflags:
//
//	go build -ldflags "-X main.version=v1.0.0" ./cmd/operon/
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "operon",
	Short: "Declarative operation engine",
	Long: `Operon executes declarative operations: ordered transform steps with
validation gates, authorization gates, runtime-resolved middleware, and
side-effect-free dry runs.

The serve command exposes the catalog as MCP tools over stdio; call,
dry-run, list, and journal work against the same catalog directly.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(callCmd)
	rootCmd.AddCommand(dryRunCmd)
	rootCmd.AddCommand(journalCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the operon version",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
