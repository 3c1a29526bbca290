// Package pipeline renders compiled template packages into HTML or PDF.
//
// A render opens the package, layers the parameters, selects documents by
// their "if" conditions and renders each of them against a fresh render
// context. HTML output is post-processed (images embedded, metadata
// injected, documents concatenated); PDF output is converted document by
// document, merged and finished with properties, overlays and optional
// compression.
package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/jin-gizmo/docma/internal/config"
	"github.com/jin-gizmo/docma/internal/content"
	derrors "github.com/jin-gizmo/docma/internal/errors"
	"github.com/jin-gizmo/docma/internal/fetcher"
	"github.com/jin-gizmo/docma/internal/htmldoc"
	"github.com/jin-gizmo/docma/internal/logging"
	"github.com/jin-gizmo/docma/internal/metadata"
	"github.com/jin-gizmo/docma/internal/monitoring"
	"github.com/jin-gizmo/docma/internal/packager"
	"github.com/jin-gizmo/docma/internal/params"
	"github.com/jin-gizmo/docma/internal/pdf"
	"github.com/jin-gizmo/docma/internal/render"
	"github.com/jin-gizmo/docma/internal/textutil"
	"github.com/jin-gizmo/docma/internal/tmplconf"
)

// Output formats.
const (
	FormatHTML = "html"
	FormatPDF  = "pdf"
)

// Options configure rendering.
type Options struct {
	Logger  logging.Logger
	Locale  string
	Globals map[string]any
	Embed   config.EmbedConfig

	// Converter is required for PDF output.
	Converter pdf.Converter
	// Watermarks and Stamps name overlays from the template configuration.
	Watermarks []string
	Stamps     []string
	// Compress forces PDF compression on; the template option can also
	// enable it.
	Compress bool
}

// Template is an open compiled package.
type Template struct {
	pkg    *packager.Reader
	cfg    *tmplconf.Config
	info   packager.VersionInfo
	opts   Options
	logger logging.Logger
}

// Open opens the package at location and checks its version manifest.
func Open(ctx context.Context, location string, opts Options) (*Template, error) {
	pkg, err := packager.Open(location)
	if err != nil {
		return nil, err
	}
	t, err := New(ctx, pkg, opts)
	if err != nil {
		pkg.Close()

		return nil, err
	}

	return t, nil
}

// New wraps an already open package.
func New(ctx context.Context, pkg *packager.Reader, opts Options) (*Template, error) {
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	logger := opts.Logger.WithComponent("pipeline").With("template", pkg.Location())

	info, err := packager.CheckVersionInfo(ctx, pkg, logger)
	if err != nil {
		return nil, err
	}
	cfg, err := tmplconf.Load(pkg)
	if err != nil {
		return nil, err
	}

	return &Template{pkg: pkg, cfg: cfg, info: info, opts: opts, logger: logger}, nil
}

// Close releases the package.
func (t *Template) Close() error {
	return t.pkg.Close()
}

// Config returns the template configuration.
func (t *Template) Config() *tmplconf.Config {
	return t.cfg
}

// VersionInfo returns the package version manifest.
func (t *Template) VersionInfo() packager.VersionInfo {
	return t.info
}

// Package returns the underlying package.
func (t *Template) Package() *packager.Reader {
	return t.pkg
}

// Params layers src over the template's parameter defaults and validates
// the result against the template's parameter schema.
func (t *Template) Params(src params.Sources) (map[string]any, error) {
	base, _ := params.DeepCopy(t.cfg.Parameters.Defaults).(map[string]any)
	merged, err := src.Build(base)
	if err != nil {
		return nil, derrors.NewValidationError("Bad parameters").WithCause(err)
	}
	if err := t.Validate(merged); err != nil {
		return nil, err
	}

	return merged, nil
}

// Validate checks parameters against the template's parameter schema.
func (t *Template) Validate(p map[string]any) error {
	v, err := t.cfg.ParamsValidator()
	if err != nil || v == nil {
		return err
	}

	return v.ValidateAs("parameters", p)
}

// withDefaults layers p over the template's parameter defaults.
func (t *Template) withDefaults(p map[string]any) map[string]any {
	return params.Merge(t.cfg.Parameters.Defaults, p)
}

// context builds a render context for p. Parameter defaults always apply,
// whether or not p came from Params.
func (t *Template) context(ctx context.Context, p map[string]any) *render.Context {
	return render.NewContext(ctx, t.pkg, t.withDefaults(p), render.Options{
		Locale:  t.opts.Locale,
		Globals: t.opts.Globals,
		Logger:  t.opts.Logger,
	})
}

// Select returns the documents whose "if" condition renders true. A
// condition that renders empty, such as one on an unset parameter, is
// false.
func (t *Template) Select(rc *render.Context) ([]tmplconf.DocSpec, error) {
	var docs []tmplconf.DocSpec
	for _, doc := range t.cfg.Documents {
		if strings.TrimSpace(doc.If) != "" {
			out, err := rc.RenderCondition(doc.Src+" (if)", doc.If)
			if err != nil {
				return nil, err
			}
			out = strings.TrimSpace(out)
			if out == "" {
				continue
			}
			ok, err := textutil.Str2Bool(out)
			if err != nil {
				return nil, derrors.NewPackageError("Bad if condition: %q", out).WithPath(doc.Src)
			}
			if !ok {
				continue
			}
		}
		docs = append(docs, doc)
	}
	if len(docs) == 0 {
		return nil, derrors.NewPackageError("No documents were selected")
	}

	return docs, nil
}

// source reads a document from the package or, for URLs, through the
// fetchers.
func (t *Template) source(ctx context.Context, rc *render.Context, doc tmplconf.DocSpec) (content.Content, error) {
	if doc.IsRemote() {
		c, err := fetcher.Fetch(ctx, doc.Src, rc)
		if err != nil {
			return c, derrors.NewPackageError("Cannot fetch document").WithPath(doc.Src).WithCause(err)
		}

		return c, nil
	}
	data, err := t.pkg.ReadFile(doc.Src)
	if err != nil {
		return content.Content{}, derrors.NewPackageError("Not found").WithPath(doc.Src).WithCause(err)
	}

	return content.Content{Data: data, MimeType: content.TypeOrDefault(doc.Src)}, nil
}

func (t *Template) renderHTMLDocument(ctx context.Context, rc *render.Context, doc tmplconf.DocSpec) (string, error) {
	c, err := t.source(ctx, rc, doc)
	if err != nil {
		return "", err
	}
	if content.Normalize(c.MimeType) != "text/html" {
		return "", derrors.NewPackageError("Not a HTML file").WithPath(doc.Src)
	}

	return rc.RenderText(doc.Src, string(c.Data))
}

func (t *Template) metadata(rc *render.Context) (*metadata.Metadata, error) {
	values := make(map[string]any, len(t.cfg.Metadata))
	for k, v := range t.cfg.Metadata {
		switch v.(type) {
		case string, []any:
			r, err := rc.Render(v)
			if err != nil {
				return nil, derrors.NewPackageError("Bad metadata").WithPath(k).WithCause(err)
			}
			values[k] = r
		default:
			values[k] = v
		}
	}

	return metadata.New(values), nil
}

// RenderHTML renders the selected documents into one HTML document.
func (t *Template) RenderHTML(ctx context.Context, p map[string]any) (out string, err error) {
	start := time.Now()
	op := logging.StartOperation(t.logger, "render_html")
	defer func() {
		monitoring.Render(FormatHTML, start, err)
		if err != nil {
			op.EndWithError(ctx, err)
		} else {
			op.End(ctx)
		}
	}()

	rc := t.context(ctx, p)
	docs, err := t.Select(rc)
	if err != nil {
		return "", err
	}

	embedder := &htmldoc.Embedder{
		Fetch: func(ctx context.Context, src string, maxSize int64) (content.Content, error) {
			return fetcher.FetchWith(ctx, src, rc, fetcher.Options(maxSize))
		},
		MinSize:     t.opts.Embed.MinSize,
		MaxSize:     t.opts.Embed.MaxSize,
		SkipMissing: t.opts.Embed.SkipMissing,
		Logger:      t.logger,
	}

	parts := make([]string, 0, len(docs))
	for _, doc := range docs {
		html, err := t.renderHTMLDocument(ctx, rc, doc)
		if err != nil {
			return "", err
		}
		if html, err = embedder.EmbedHTML(ctx, html); err != nil {
			return "", err
		}
		parts = append(parts, html)
	}

	combined, err := htmldoc.Concat(parts...)
	if err != nil {
		return "", err
	}
	meta, err := t.metadata(rc)
	if err != nil {
		return "", err
	}

	return htmldoc.InjectMetadataHTML(combined, meta)
}
