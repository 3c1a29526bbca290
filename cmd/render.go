package cmd

import (
	"github.com/spf13/cobra"

	"github.com/jin-gizmo/docma/internal/pdf"
	"github.com/jin-gizmo/docma/internal/pipeline"
)

var htmlCmd = &cobra.Command{
	Use:   "html",
	Short: "Render a compiled template to HTML",
	Long: `Render a compiled template to a single HTML document. Images are embedded
as data URLs according to the embed settings.

Examples:
  docma html -t report.zip -p customer=ACME > report.html
  docma html -t report.zip -f params.yaml -o report.html`,
	Args: cobra.NoArgs,
	RunE: runHTML,
}

var pdfCmd = &cobra.Command{
	Use:   "pdf",
	Short: "Render a compiled template to PDF",
	Long: `Render a compiled template to PDF with a headless Chrome browser. The
selected documents are merged, stamped with metadata and overlays, and
optionally compressed.

Examples:
  docma pdf -t report.zip -o report.pdf -p customer=ACME
  docma pdf -t report.zip -o draft.pdf --stamp draft --compress`,
	Args: cobra.NoArgs,
	RunE: runPDF,
}

var (
	htmlRender  RenderFlags
	htmlParams  ParamFlags
	pdfRender   RenderFlags
	pdfParams   ParamFlags
	pdfOverlays OverlayFlags
)

// OverlayFlags name the template overlays applied to PDF output.
type OverlayFlags struct {
	Watermarks []string
	Stamps     []string
	Compress   bool
}

func addOverlayFlags(cmd *cobra.Command, o *OverlayFlags) {
	cmd.Flags().StringArrayVar(&o.Watermarks, "watermark", nil, "Overlay to place under the page content (repeatable)")
	cmd.Flags().StringArrayVar(&o.Stamps, "stamp", nil, "Overlay to place over the page content (repeatable)")
	cmd.Flags().BoolVar(&o.Compress, "compress", false, "Compress the PDF")
}

func init() {
	rootCmd.AddCommand(htmlCmd)
	rootCmd.AddCommand(pdfCmd)

	addRenderFlags(htmlCmd, &htmlRender, `Output file ("-" for stdout)`)
	addParamFlags(htmlCmd.Flags(), &htmlParams)

	addRenderFlags(pdfCmd, &pdfRender, "Output file")
	addParamFlags(pdfCmd.Flags(), &pdfParams)
	addOverlayFlags(pdfCmd, &pdfOverlays)
	pdfCmd.MarkFlagRequired("output")
}

// pdfOptions adds the PDF converter and overlays to the render options.
func pdfOptions(o OverlayFlags) pipeline.Options {
	opts := renderOptions()
	opts.Converter = &pdf.Chrome{
		ExecPath: appConfig.PDF.ChromePath,
		Timeout:  appConfig.PDF.Timeout,
		Logger:   logger,
	}
	opts.Watermarks = o.Watermarks
	opts.Stamps = o.Stamps
	opts.Compress = o.Compress

	return opts
}

func runHTML(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	t, err := pipeline.Open(ctx, htmlRender.Template, renderOptions())
	if err != nil {
		return err
	}
	defer t.Close()

	p, err := t.Params(htmlParams.sources(cmd.InOrStdin()))
	if err != nil {
		return err
	}
	out, err := t.RenderHTML(ctx, p)
	if err != nil {
		return err
	}

	return writeOutput(cmd.OutOrStdout(), htmlRender.Output, []byte(out))
}

func runPDF(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	t, err := pipeline.Open(ctx, pdfRender.Template, pdfOptions(pdfOverlays))
	if err != nil {
		return err
	}
	defer t.Close()

	p, err := t.Params(pdfParams.sources(cmd.InOrStdin()))
	if err != nil {
		return err
	}
	out, err := t.RenderPDF(ctx, p)
	if err != nil {
		return err
	}

	return writeOutput(cmd.OutOrStdout(), pdfRender.Output, out)
}
