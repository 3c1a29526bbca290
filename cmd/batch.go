package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jin-gizmo/docma/internal/pipeline"
)

const batchLong = `Render a compiled template once per row of a data source. Each row is
merged over the render parameters and the output path is rendered from the
--output template against the merged parameters. A failing row is reported
and does not stop the others.

The data source is given as type;location[;query[;target]], for example:
  file;customers.csv
  params;customers
  postgres;reports;queries/customers.query.yaml`

var htmlBatchCmd = &cobra.Command{
	Use:   "html-batch",
	Short: "Render HTML once per data source row",
	Long: batchLong + `

Examples:
  docma html-batch -t report.zip -d 'file;rows.csv' -o 'out/{{ .id }}.html'`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runBatch(cmd, pipeline.FormatHTML, &htmlBatch, renderOptions())
	},
}

var pdfBatchCmd = &cobra.Command{
	Use:   "pdf-batch",
	Short: "Render PDF once per data source row",
	Long: batchLong + `

Examples:
  docma pdf-batch -t report.zip -d 'file;rows.csv' -o 'out/{{ .id }}.pdf' --workers 8`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runBatch(cmd, pipeline.FormatPDF, &pdfBatch, pdfOptions(pdfBatch.overlays))
	},
}

// BatchFlags configure a batch render.
type BatchFlags struct {
	render   RenderFlags
	params   ParamFlags
	overlays OverlayFlags
	source   string
	workers  int
}

var (
	htmlBatch BatchFlags
	pdfBatch  BatchFlags
)

func addBatchFlags(cmd *cobra.Command, b *BatchFlags) {
	addRenderFlags(cmd, &b.render, "Output path template, rendered per row")
	addParamFlags(cmd.Flags(), &b.params)
	cmd.Flags().StringVarP(&b.source, "data-source-spec", "d", "", "Data source specification for the rows")
	cmd.Flags().IntVar(&b.workers, "workers", 0, "Concurrent renders (default from batch.workers)")
	cmd.MarkFlagRequired("output")
	cmd.MarkFlagRequired("data-source-spec")
}

func init() {
	rootCmd.AddCommand(htmlBatchCmd)
	rootCmd.AddCommand(pdfBatchCmd)

	addBatchFlags(htmlBatchCmd, &htmlBatch)
	addBatchFlags(pdfBatchCmd, &pdfBatch)
	addOverlayFlags(pdfBatchCmd, &pdfBatch.overlays)
}

func runBatch(cmd *cobra.Command, format string, b *BatchFlags, opts pipeline.Options) error {
	ctx := cmd.Context()

	t, err := pipeline.Open(ctx, b.render.Template, opts)
	if err != nil {
		return err
	}
	base, err := t.Params(b.params.sources(cmd.InOrStdin()))
	if err != nil {
		t.Close()

		return err
	}
	rows, err := t.Rows(ctx, b.source, base)
	t.Close()
	if err != nil {
		return err
	}

	workers := b.workers
	if workers <= 0 {
		workers = appConfig.Batch.Workers
	}
	results, err := pipeline.RenderBatch(ctx, b.render.Template, opts, pipeline.Batch{
		Format:  format,
		Output:  b.render.Output,
		Params:  base,
		Rows:    rows,
		Workers: workers,
	})
	for _, r := range results {
		if r.Err == nil {
			fmt.Fprintln(cmd.OutOrStdout(), r.Path)
		}
	}
	if err != nil {
		failed := pipeline.Failed(results)

		return fmt.Errorf("%d of %d rows failed: %w", len(failed), len(rows), err)
	}

	return nil
}
