package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/scriptmaster/wasinn-gateway/internal/config"
	"github.com/scriptmaster/wasinn-gateway/internal/registry"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Inspect the model registry",
}

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List models discovered under the configured model directory",
	RunE:  runModelsList,
}

func init() {
	modelsCmd.AddCommand(modelsListCmd)
}

func runModelsList(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgDir)
	if err != nil {
		return fmt.Errorf("models list: %w", err)
	}

	reg := registry.New()
	if err := registry.InitializeEnvironment(); err != nil {
		return fmt.Errorf("models list: %w", err)
	}
	if err := loadAllModels(reg, cfg.ModelDir); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "REGISTRY_ID\tKIND\tEXECUTION_PROVIDER")
	for _, name := range reg.Names() {
		g, ok := reg.Get(name)
		if !ok {
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", name, kindLabel(g.Kind()), g.ExecutionProvider())
	}
	return tw.Flush()
}

func kindLabel(kind registry.ModelKind) string {
	switch kind.(type) {
	case registry.ImageNetKind:
		return "image"
	case registry.TextModelKind:
		return "text"
	default:
		return "unknown"
	}
}
