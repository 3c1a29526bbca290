package pipeline

import (
	"context"
	"time"

	"github.com/jin-gizmo/docma/internal/content"
	derrors "github.com/jin-gizmo/docma/internal/errors"
	"github.com/jin-gizmo/docma/internal/fetcher"
	"github.com/jin-gizmo/docma/internal/htmldoc"
	"github.com/jin-gizmo/docma/internal/logging"
	"github.com/jin-gizmo/docma/internal/metadata"
	"github.com/jin-gizmo/docma/internal/monitoring"
	"github.com/jin-gizmo/docma/internal/pdf"
	"github.com/jin-gizmo/docma/internal/render"
	"github.com/jin-gizmo/docma/internal/tmplconf"
)

func (t *Template) converter() (pdf.Converter, error) {
	if t.opts.Converter == nil {
		return nil, derrors.NewPackageError("No PDF converter configured")
	}

	return t.opts.Converter, nil
}

func resolver(rc *render.Context) pdf.Resolver {
	return func(ctx context.Context, rawURL string) (content.Content, error) {
		return fetcher.Fetch(ctx, rawURL, rc)
	}
}

// documentPDF renders one document to PDF. HTML is rendered and
// converted; PDF passes through.
func (t *Template) documentPDF(ctx context.Context, rc *render.Context, doc tmplconf.DocSpec) ([]byte, error) {
	conv, err := t.converter()
	if err != nil {
		return nil, err
	}
	c, err := t.source(ctx, rc, doc)
	if err != nil {
		return nil, err
	}

	switch mt := content.Normalize(c.MimeType); mt {
	case "application/pdf":
		return c.Data, nil
	case "text/html":
		html, err := rc.RenderText(doc.Src, string(c.Data))
		if err != nil {
			return nil, err
		}
		if html, err = htmldoc.InjectStylesheets(html, t.cfg.Options.Stylesheets); err != nil {
			return nil, err
		}

		return conv.Convert(ctx, pdf.Document{Name: doc.Src, HTML: html, Resolve: resolver(rc)})
	default:
		return nil, derrors.NewPackageError("Unknown type: %s", mt).WithPath(doc.Src)
	}
}

// overlay builds the named overlay. File overlays are rendered and
// converted like documents.
func (t *Template) overlay(ctx context.Context, rc *render.Context, name string) (pdf.Overlay, error) {
	o, err := t.cfg.Overlay(name)
	if err != nil {
		return pdf.Overlay{}, derrors.NewPackageError("Unknown overlay: %s", name)
	}
	if o.Src == "" {
		text, err := rc.RenderText(name, o.Text)
		if err != nil {
			return pdf.Overlay{}, err
		}

		return pdf.Overlay{Text: text, Desc: o.Desc}, nil
	}

	data, err := t.documentPDF(ctx, rc, tmplconf.DocSpec{Src: o.Src})
	if err != nil {
		return pdf.Overlay{}, err
	}

	return pdf.Overlay{PDF: data, Desc: o.Desc}, nil
}

// RenderPDF renders the selected documents into one PDF.
func (t *Template) RenderPDF(ctx context.Context, p map[string]any) (out []byte, err error) {
	start := time.Now()
	op := logging.StartOperation(t.logger, "render_pdf")
	defer func() {
		monitoring.Render(FormatPDF, start, err)
		if err != nil {
			op.EndWithError(ctx, err)
		} else {
			op.End(ctx)
		}
	}()

	rc := t.context(ctx, p)
	docs, err := t.Select(rc)
	if err != nil {
		return nil, err
	}

	parts := make([][]byte, 0, len(docs))
	for _, doc := range docs {
		data, err := t.documentPDF(ctx, rc, doc)
		if err != nil {
			return nil, err
		}
		parts = append(parts, data)
	}
	out, err = pdf.Merge(parts...)
	if err != nil {
		return nil, err
	}

	meta, err := t.metadata(rc)
	if err != nil {
		return nil, err
	}
	props, err := meta.AsDict(metadata.FormatPDF)
	if err != nil {
		return nil, err
	}
	if out, err = pdf.SetProperties(out, props); err != nil {
		return nil, err
	}

	for _, name := range t.opts.Watermarks {
		o, err := t.overlay(ctx, rc, name)
		if err != nil {
			return nil, err
		}
		if out, err = pdf.Watermark(out, o); err != nil {
			return nil, err
		}
	}
	for _, name := range t.opts.Stamps {
		o, err := t.overlay(ctx, rc, name)
		if err != nil {
			return nil, err
		}
		if out, err = pdf.Stamp(out, o); err != nil {
			return nil, err
		}
	}

	if t.opts.Compress || t.cfg.Options.Compress {
		return pdf.Optimize(out)
	}

	return out, nil
}
