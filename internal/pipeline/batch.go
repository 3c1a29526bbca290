package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sourcegraph/conc/pool"

	derrors "github.com/jin-gizmo/docma/internal/errors"
	"github.com/jin-gizmo/docma/internal/params"
)

// Batch describes a render of one document per data row.
type Batch struct {
	// Format is FormatHTML or FormatPDF.
	Format string
	// Output is a path template rendered per row with SafePath.
	Output string
	// Params are the base parameters. Each row is merged over them.
	Params map[string]any
	Rows   []map[string]any
	// Workers bounds concurrent renders. Each worker holds its own
	// package handle.
	Workers int
}

// Result reports the outcome of one row.
type Result struct {
	Row  int
	Path string
	Err  error
}

// Rows loads the rows named by a data source specification, resolved
// against the template with parameters p.
func (t *Template) Rows(ctx context.Context, spec string, p map[string]any) ([]map[string]any, error) {
	return t.context(ctx, p).Data(spec, nil)
}

// RenderBatch renders the package at location once per row and writes
// each output to its rendered path. A failing row does not stop the
// others; the returned error joins every row failure.
func RenderBatch(ctx context.Context, location string, opts Options, b Batch) ([]Result, error) {
	format := strings.ToLower(b.Format)
	if format != FormatHTML && format != FormatPDF {
		return nil, derrors.NewValidationError("Unknown output format: %s", b.Format)
	}
	workers := b.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(b.Rows) {
		workers = max(1, len(b.Rows))
	}

	handles := make(chan *Template, workers)
	defer func() {
		close(handles)
		for t := range handles {
			t.Close()
		}
	}()
	for range workers {
		t, err := Open(ctx, location, opts)
		if err != nil {
			return nil, err
		}
		handles <- t
	}

	results := make([]Result, len(b.Rows))
	p := pool.New().WithMaxGoroutines(workers).WithErrors().WithContext(ctx)
	for i, row := range b.Rows {
		p.Go(func(ctx context.Context) error {
			t := <-handles
			defer func() { handles <- t }()

			path, err := t.renderRow(ctx, format, b, row)
			results[i] = Result{Row: i, Path: path, Err: err}
			if err != nil {
				t.logger.Error(ctx, err, "Row failed", "row", i)

				return fmt.Errorf("row %d: %w", i, err)
			}
			t.logger.Debug(ctx, "Row rendered", "row", i, "path", path)

			return nil
		})
	}
	err := p.Wait()

	return results, err
}

func (t *Template) renderRow(ctx context.Context, format string, b Batch, row map[string]any) (string, error) {
	p := params.Merge(t.cfg.Parameters.Defaults, b.Params, row)
	if err := t.Validate(p); err != nil {
		return "", err
	}
	path, err := SafePath(t.context(ctx, p), b.Output)
	if err != nil {
		return "", err
	}

	var data []byte
	if format == FormatHTML {
		html, err := t.RenderHTML(ctx, p)
		if err != nil {
			return path, err
		}
		data = []byte(html)
	} else if data, err = t.RenderPDF(ctx, p); err != nil {
		return path, err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return path, err
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return path, err
	}

	return path, nil
}

// Failed returns the results that carry an error.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if r.Err != nil {
			out = append(out, r)
		}
	}

	return out
}
