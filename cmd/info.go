package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/jin-gizmo/docma/internal/pipeline"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Describe a compiled template package",
	Long: `Show a compiled template's description, owner, version, documents and
parameter defaults, and the compiler that built it.

Examples:
  docma info -t report.zip
  docma info -t report.zip --format json`,
	Args: cobra.NoArgs,
	RunE: runInfo,
}

var (
	infoTemplate string
	infoFormat   string
)

func init() {
	rootCmd.AddCommand(infoCmd)

	infoCmd.Flags().StringVarP(&infoTemplate, "template", "t", "", "Compiled template package (directory or zip)")
	infoCmd.Flags().StringVar(&infoFormat, "format", "text", "Output format (text, json)")
	infoCmd.MarkFlagRequired("template")
}

// TemplateInfo is the information reported by the info command.
type TemplateInfo struct {
	Description     string         `json:"description"`
	Owner           string         `json:"owner,omitempty"`
	Version         string         `json:"version,omitempty"`
	FormatVersion   int            `json:"format_version"`
	CompilerVersion string         `json:"compiler_version"`
	Documents       []string       `json:"documents"`
	Overlays        []string       `json:"overlays,omitempty"`
	Defaults        map[string]any `json:"parameter_defaults,omitempty"`
}

func describe(t *pipeline.Template) TemplateInfo {
	cfg := t.Config()
	info := TemplateInfo{
		Description:     cfg.Description,
		Owner:           cfg.Owner,
		Version:         cfg.Version,
		FormatVersion:   t.VersionInfo().FormatVersion,
		CompilerVersion: t.VersionInfo().CompilerVersion,
		Defaults:        cfg.Parameters.Defaults,
	}
	for _, doc := range cfg.Documents {
		info.Documents = append(info.Documents, doc.Src)
	}
	for name := range cfg.Overlays {
		info.Overlays = append(info.Overlays, name)
	}
	sort.Strings(info.Overlays)

	return info
}

func runInfo(cmd *cobra.Command, _ []string) error {
	t, err := pipeline.Open(cmd.Context(), infoTemplate, renderOptions())
	if err != nil {
		return err
	}
	defer t.Close()

	info := describe(t)
	switch infoFormat {
	case "json":
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")

		return encoder.Encode(info)
	case "text":
		return writeInfoText(cmd.OutOrStdout(), info)
	default:
		return fmt.Errorf("unsupported format: %s (supported: text, json)", infoFormat)
	}
}

func writeInfoText(w io.Writer, info TemplateInfo) error {
	fmt.Fprintf(w, "Description: %s\n", info.Description)
	if info.Owner != "" {
		fmt.Fprintf(w, "Owner: %s\n", info.Owner)
	}
	if info.Version != "" {
		fmt.Fprintf(w, "Version: %s\n", info.Version)
	}
	fmt.Fprintf(w, "Compiled by: docma %s (format %d)\n", info.CompilerVersion, info.FormatVersion)
	fmt.Fprintln(w, "Documents:")
	for _, doc := range info.Documents {
		fmt.Fprintf(w, "  %s\n", doc)
	}
	if len(info.Overlays) > 0 {
		fmt.Fprintln(w, "Overlays:")
		for _, name := range info.Overlays {
			fmt.Fprintf(w, "  %s\n", name)
		}
	}
	if len(info.Defaults) > 0 {
		keys := make([]string, 0, len(info.Defaults))
		for k := range info.Defaults {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Fprintln(w, "Parameter defaults:")
		for _, k := range keys {
			fmt.Fprintf(w, "  %s: %v\n", k, info.Defaults[k])
		}
	}

	return nil
}
