// Package cli implements the wasinn-gateway command-line surface, adapted
// from project-cortex's internal/cli/root.go: a cobra root command with a
// --config-dir flag and subcommands for running the server and inspecting the
// model registry.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgDir string

var rootCmd = &cobra.Command{
	Use:   "wasinn-gateway",
	Short: "Sandboxed WASI-NN inference gateway",
	Long: `wasinn-gateway serves image classification and chat completion
requests by dispatching them into a sandboxed WebAssembly guest that calls
an ONNX Runtime backend through the NN-SI host interface.`,
}

// Execute runs the root command. Called once from cmd/wasinn-gateway/main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgDir, "config-dir", "", "directory containing config.yaml (default: working directory)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(modelsCmd)
}
