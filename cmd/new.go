package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jin-gizmo/docma/internal/scaffolding"
)

var newCmd = &cobra.Command{
	Use:   "new [flags] DIRECTORY",
	Short: "Create a new template source directory",
	Long: `Create a new template source directory with a starter config.yaml,
content, an overlay and an example query. The directory must not exist.

Settings are taken from -p, then prompted for unless --no-input is given.

Examples:
  docma new quarterly                              # Prompt for settings
  docma new quarterly --no-input -p owner=Finance  # Use defaults and -p only`,
	Args: cobra.ExactArgs(1),
	RunE: runNew,
}

var (
	newParams  []string
	newNoInput bool
)

func init() {
	rootCmd.AddCommand(newCmd)

	var names []string
	for _, p := range scaffolding.Parameters {
		names = append(names, p.Name)
	}
	newCmd.Flags().StringArrayVarP(&newParams, "param", "p", nil,
		fmt.Sprintf("Setting as key=value, one of %s (repeatable)", strings.Join(names, ", ")))
	newCmd.Flags().BoolVar(&newNoInput, "no-input", false, "Do not prompt; use defaults for settings not given with -p")
}

func runNew(cmd *cobra.Command, args []string) error {
	values := make(map[string]string, len(newParams))
	for _, pair := range newParams {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return fmt.Errorf("bad parameter %q: expected key=value", pair)
		}
		values[key] = value
	}

	opts := scaffolding.Options{Params: values, Logger: logger}
	if !newNoInput {
		opts.Input = cmd.InOrStdin()
		opts.Output = cmd.OutOrStdout()
	}

	return scaffolding.New(cmd.Context(), args[0], opts)
}
