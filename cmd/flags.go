package cmd

import (
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/jin-gizmo/docma/internal/params"
	"github.com/jin-gizmo/docma/internal/pipeline"
)

// ParamFlags are the render parameter sources shared by the render
// commands.
type ParamFlags struct {
	Pairs []string
	Files []string
	Lists []string
}

// RenderFlags select the template package and the output.
type RenderFlags struct {
	Template string
	Output   string
}

func addParamFlags(flags *pflag.FlagSet, p *ParamFlags) {
	flags.StringArrayVarP(&p.Pairs, "param", "p", nil, "Render parameter as key=value; dotted keys nest (repeatable)")
	flags.StringArrayVarP(&p.Files, "file", "f", nil, "YAML or JSON file of render parameters (repeatable)")
	flags.StringArrayVar(&p.Lists, "list", nil, `List parameter as name=file, one item per line; "-" reads stdin (repeatable)`)
}

func addRenderFlags(cmd *cobra.Command, r *RenderFlags, outputHelp string) {
	cmd.Flags().StringVarP(&r.Template, "template", "t", "", "Compiled template package (directory or zip)")
	cmd.Flags().StringVarP(&r.Output, "output", "o", "", outputHelp)
	cmd.MarkFlagRequired("template")
}

func (p *ParamFlags) sources(stdin io.Reader) params.Sources {
	return params.Sources{Files: p.Files, Pairs: p.Pairs, Lists: p.Lists, Stdin: stdin}
}

// renderOptions builds pipeline options from the tool configuration.
func renderOptions() pipeline.Options {
	return pipeline.Options{
		Logger: logger,
		Locale: appConfig.Render.Locale,
		Embed:  appConfig.Embed,
	}
}

// writeOutput writes data to path, or to w when path is empty or "-".
func writeOutput(w io.Writer, path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := w.Write(data)

		return err
	}

	return os.WriteFile(path, data, 0o644)
}
