package pipeline

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jin-gizmo/docma/internal/compiler"
	"github.com/jin-gizmo/docma/internal/config"
	derrors "github.com/jin-gizmo/docma/internal/errors"
	"github.com/jin-gizmo/docma/internal/generator"
	"github.com/jin-gizmo/docma/internal/logging"
	"github.com/jin-gizmo/docma/internal/params"
	"github.com/jin-gizmo/docma/internal/pdf"
	"github.com/jin-gizmo/docma/internal/render"
	"github.com/jin-gizmo/docma/internal/testutils"
)

const reportConfig = `
description: Test report
documents:
  - content/cover.html
  - src: content/detail.html
    if: '{{ eq .detail "yes" }}'
metadata:
  title: 'Report for {{ .customer }}'
  author: Fred
  project: Docma
options:
  stylesheets: [styles/print.css]
parameters:
  defaults:
    customer: Nobody
    detail: "no"
  schema:
    type: object
    required: [customer]
    properties:
      customer: {type: string, minLength: 1}
overlays:
  draft: {text: 'DRAFT {{ .customer }}', desc: 'rot:45, op:0.3'}
  letterhead: content/letterhead.html
`

func reportTree() map[string]string {
	return map[string]string{
		"config.yaml":             reportConfig,
		"content/cover.html":      `<html><head><style>p { color: red; }</style></head><body><p>Cover for {{ .customer }}</p><img src="docma:swatch?width=4&amp;height=4&amp;color=red"></body></html>`,
		"content/detail.html":     `<body><p>Detail for {{ .customer }}</p></body>`,
		"content/letterhead.html": `<p>Letterhead</p>`,
		"styles/print.css":        `@page { size: A4; }`,
	}
}

// compileTemplate compiles files into a package directory and returns its
// path.
func compileTemplate(t *testing.T, files map[string]string) string {
	t.Helper()
	src := testutils.CreateTempTemplate(t, files)
	target := filepath.Join(t.TempDir(), "pkg")
	require.NoError(t, compiler.Compile(context.Background(), src, target, compiler.Options{Logger: logging.Discard()}))

	return target
}

func openTemplate(t *testing.T, location string, opts Options) *Template {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	tmpl, err := Open(context.Background(), location, opts)
	require.NoError(t, err)
	t.Cleanup(func() { tmpl.Close() })

	return tmpl
}

func TestRenderHTML(t *testing.T) {
	ctx := context.Background()
	tmpl := openTemplate(t, compileTemplate(t, reportTree()), Options{})

	tests := []struct {
		name     string
		pairs    []string
		contains []string
		excludes []string
	}{
		{
			name:     "defaults",
			contains: []string{"Cover for Nobody", "<title>Report for Nobody</title>", `<meta name="author" content="Fred"/>`, "data:image/png;base64,"},
			excludes: []string{"Detail for", "docma:swatch"},
		},
		{
			name:     "conditional document selected",
			pairs:    []string{"customer=ACME", "detail=yes"},
			contains: []string{"Cover for ACME", "Detail for ACME", "<title>Report for ACME</title>"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := tmpl.Params(params.Sources{Pairs: tt.pairs})
			require.NoError(t, err)

			out, err := tmpl.RenderHTML(ctx, p)
			require.NoError(t, err)
			for _, s := range tt.contains {
				assert.Contains(t, out, s)
			}
			for _, s := range tt.excludes {
				assert.NotContains(t, out, s)
			}
			assert.Equal(t, 1, strings.Count(out, "<body>"))
		})
	}
}

func TestSelectUnsetParameter(t *testing.T) {
	ctx := context.Background()
	files := map[string]string{
		"config.yaml": `
description: Optional parts
documents:
  - content/a.html
  - src: content/b.html
    if: '{{ .appendix }}'
  - src: content/c.html
    if: '{{ eq .mode "long" }}'
`,
		"content/a.html": "<html><head></head><body><p>part A</p></body></html>",
		"content/b.html": "<body><p>part B</p></body>",
		"content/c.html": "<body><p>part C</p></body>",
	}
	tmpl := openTemplate(t, compileTemplate(t, files), Options{})

	tests := []struct {
		name     string
		params   map[string]any
		contains []string
		excludes []string
	}{
		{name: "nothing set", params: nil, contains: []string{"part A"}, excludes: []string{"part B", "part C"}},
		{name: "appendix set", params: map[string]any{"appendix": "yes"}, contains: []string{"part A", "part B"}, excludes: []string{"part C"}},
		{name: "compared set", params: map[string]any{"mode": "long"}, contains: []string{"part A", "part C"}, excludes: []string{"part B"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := tmpl.RenderHTML(ctx, tt.params)
			require.NoError(t, err)
			for _, s := range tt.contains {
				assert.Contains(t, out, s)
			}
			for _, s := range tt.excludes {
				assert.NotContains(t, out, s)
			}
		})
	}
}

func TestRenderAppliesDefaults(t *testing.T) {
	tmpl := openTemplate(t, compileTemplate(t, reportTree()), Options{})

	out, err := tmpl.RenderHTML(context.Background(), map[string]any{"customer": "Raw"})
	require.NoError(t, err)
	assert.Contains(t, out, "Cover for Raw")
	assert.NotContains(t, out, "Detail for", "detail defaults to no")

	out, err = tmpl.RenderHTML(context.Background(), nil)
	require.NoError(t, err)
	assert.Contains(t, out, "Cover for Nobody")
}

func TestRenderHTMLFailures(t *testing.T) {
	tests := []struct {
		name    string
		config  string
		extra   map[string]string
		wantErr string
	}{
		{
			name: "nothing selected",
			config: `
description: Empty
documents:
  - src: content/cover.html
    if: "false"
`,
			wantErr: "No documents were selected",
		},
		{
			name: "bad condition",
			config: `
description: Bad
documents:
  - src: content/cover.html
    if: maybe
`,
			wantErr: "Bad if condition",
		},
		{
			name: "not html",
			config: `
description: Text
documents:
  - content/notes.txt
`,
			extra:   map[string]string{"content/notes.txt": "notes"},
			wantErr: "Not a HTML file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files := map[string]string{
				"config.yaml":        tt.config,
				"content/cover.html": "<p>cover</p>",
			}
			for k, v := range tt.extra {
				files[k] = v
			}
			tmpl := openTemplate(t, compileTemplate(t, files), Options{})

			_, err := tmpl.RenderHTML(context.Background(), map[string]any{})
			require.Error(t, err)
			assert.ErrorContains(t, err, tt.wantErr)
			assert.True(t, derrors.IsKind(err, derrors.KindPackage))
		})
	}
}

func TestSourceNotFound(t *testing.T) {
	pkg := testutils.MemPackage(map[string]string{
		"config.yaml":   "description: Broken\ndocuments:\n  - content/missing.html\n",
		".docma.json":   `{"docma_format_version": 2, "docma_compiler_version": "test"}`,
		"content/x.txt": "x",
	})
	tmpl, err := New(context.Background(), pkg, Options{Logger: logging.Discard()})
	require.NoError(t, err)

	_, err = tmpl.RenderHTML(context.Background(), map[string]any{})
	assert.ErrorContains(t, err, "content/missing.html: Not found")
}

func TestVersionCheck(t *testing.T) {
	cfg := "description: Versioned\ndocuments:\n  - a.html\n"

	t.Run("missing manifest", func(t *testing.T) {
		pkg := testutils.MemPackage(map[string]string{"config.yaml": cfg, "a.html": "a"})
		_, err := New(context.Background(), pkg, Options{Logger: logging.Discard()})
		assert.ErrorContains(t, err, "Not a compiled docma template package")
	})

	t.Run("format mismatch warns", func(t *testing.T) {
		rec := logging.NewRecorder()
		pkg := testutils.MemPackage(map[string]string{
			"config.yaml": cfg,
			"a.html":      "a",
			".docma.json": `{"docma_format_version": 999, "docma_compiler_version": "0.0.1"}`,
		})
		tmpl, err := New(context.Background(), pkg, Options{Logger: rec})
		require.NoError(t, err)
		assert.Equal(t, 999, tmpl.VersionInfo().FormatVersion)
		assert.Equal(t, 1, rec.Count(logging.LevelWarn, "may not be compatible"))
	})
}

func TestParams(t *testing.T) {
	tmpl := openTemplate(t, compileTemplate(t, reportTree()), Options{})

	t.Run("defaults are copied", func(t *testing.T) {
		p, err := tmpl.Params(params.Sources{Pairs: []string{"customer=ACME", "extra.depth=3"}})
		require.NoError(t, err)
		assert.Equal(t, "ACME", p["customer"])
		assert.Equal(t, "no", p["detail"])
		assert.Equal(t, map[string]any{"depth": "3"}, p["extra"])
		assert.Equal(t, "Nobody", tmpl.Config().Parameters.Defaults["customer"])
	})

	t.Run("schema failure", func(t *testing.T) {
		_, err := tmpl.Params(params.Sources{Pairs: []string{"customer="}})
		require.Error(t, err)
		assert.True(t, derrors.IsKind(err, derrors.KindValidation))
	})

	t.Run("bad pair", func(t *testing.T) {
		_, err := tmpl.Params(params.Sources{Lists: []string{"broken"}})
		assert.ErrorContains(t, err, "Bad parameters")
	})
}

func TestSafePath(t *testing.T) {
	tests := []struct {
		name    string
		tmpl    string
		a       string
		want    string
		wantErr bool
	}{
		{name: "plain", tmpl: "{{ .a }}/b", a: "A", want: "A/b"},
		{name: "longer", tmpl: "{{ .a }}/b", a: "AA", want: "AA/b"},
		{name: "absolute", tmpl: "/a/{{ .a }}.html", a: "x", want: "/a/x.html"},
		{name: "no actions", tmpl: "/a/b", a: "x", want: "/a/b"},
		{name: "double quote", tmpl: "{{ .a }}/b", a: `A"AA`, wantErr: true},
		{name: "single quote", tmpl: "{{ .a }}/b", a: "A'AA", wantErr: true},
		{name: "parent", tmpl: "{{ .a }}/b", a: "..", wantErr: true},
		{name: "slash", tmpl: "out/{{ .a }}", a: "x/y", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc := render.NewContext(context.Background(), testutils.MemPackage(nil), map[string]any{"a": tt.a}, render.Options{})
			got, err := SafePath(rc, tt.tmpl)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, derrors.IsKind(err, derrors.KindValidation))
				assert.ErrorContains(t, err, "{{ .a }}")

				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// fakeConverter turns every document into a one page swatch PDF and
// records what it was asked to convert.
type fakeConverter struct {
	mu    sync.Mutex
	names []string
	html  []string
	types []string
}

func (f *fakeConverter) Convert(ctx context.Context, doc pdf.Document) ([]byte, error) {
	c, err := doc.Resolve(ctx, "docma:swatch?width=10&height=10&color=blue")
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.names = append(f.names, doc.Name)
	f.html = append(f.html, doc.HTML)
	f.types = append(f.types, c.MimeType)
	f.mu.Unlock()

	img, err := generator.Swatch(ctx, map[string]any{"width": "60", "height": "40", "color": "green"}, nil)
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := api.ImportImages(nil, &out, []io.Reader{bytes.NewReader(img.Data)}, pdfcpu.DefaultImportConfig(), nil); err != nil {
		return nil, err
	}

	return out.Bytes(), nil
}

func TestRenderPDF(t *testing.T) {
	ctx := context.Background()
	location := compileTemplate(t, reportTree())
	conv := &fakeConverter{}
	tmpl := openTemplate(t, location, Options{
		Converter:  conv,
		Stamps:     []string{"draft"},
		Watermarks: []string{"letterhead"},
		Compress:   true,
	})

	p, err := tmpl.Params(params.Sources{Pairs: []string{"customer=ACME", "detail=yes"}})
	require.NoError(t, err)
	out, err := tmpl.RenderPDF(ctx, p)
	require.NoError(t, err)

	n, err := pdf.PageCount(out)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"content/cover.html", "content/detail.html", "content/letterhead.html"}, conv.names)
	assert.Contains(t, conv.html[0], "Cover for ACME")
	assert.Contains(t, conv.html[0], "docma:swatch", "images are left for the converter to resolve")
	assert.Contains(t, conv.html[1], `<link rel="stylesheet" href="/styles/print.css"/>`)
	assert.Equal(t, "image/png", conv.types[0])

	props, err := api.Properties(bytes.NewReader(out), nil)
	require.NoError(t, err)
	assert.Equal(t, "Docma", props["Project"])
}

func TestRenderPDFFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("no converter", func(t *testing.T) {
		tmpl := openTemplate(t, compileTemplate(t, reportTree()), Options{})
		_, err := tmpl.RenderPDF(ctx, map[string]any{"customer": "x"})
		assert.ErrorContains(t, err, "No PDF converter configured")
	})

	t.Run("unknown overlay", func(t *testing.T) {
		tmpl := openTemplate(t, compileTemplate(t, reportTree()), Options{Converter: &fakeConverter{}, Stamps: []string{"nope"}})
		_, err := tmpl.RenderPDF(ctx, map[string]any{"customer": "x"})
		assert.ErrorContains(t, err, "Unknown overlay: nope")
	})

	t.Run("unknown type", func(t *testing.T) {
		files := map[string]string{
			"config.yaml":      "description: Data\ndocuments:\n  - content/data.csv\n",
			"content/data.csv": "a,b\n1,2\n",
		}
		tmpl := openTemplate(t, compileTemplate(t, files), Options{Converter: &fakeConverter{}})
		_, err := tmpl.RenderPDF(ctx, map[string]any{})
		assert.ErrorContains(t, err, "Unknown type: text/csv")
	})
}

func TestRenderBatch(t *testing.T) {
	ctx := context.Background()
	location := compileTemplate(t, reportTree())
	outDir := t.TempDir()
	rec := logging.NewRecorder()
	opts := Options{Logger: rec, Embed: config.EmbedConfig{}}

	base := map[string]any{
		"customer": "Base",
		"rows": []any{
			map[string]any{"id": 1, "name": "alpha", "customer": "Alpha Ltd"},
			map[string]any{"id": 2, "name": "bad/name", "customer": "Beta Ltd"},
			map[string]any{"id": 3, "name": "gamma", "detail": "yes"},
		},
	}
	tmpl := openTemplate(t, location, opts)
	rows, err := tmpl.Rows(ctx, "params;rows", base)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	results, err := RenderBatch(ctx, location, opts, Batch{
		Format:  "HTML",
		Output:  filepath.Join(outDir, "{{ .id }}-{{ .name }}.html"),
		Params:  base,
		Rows:    rows,
		Workers: 2,
	})
	require.Error(t, err)
	assert.ErrorContains(t, err, "row 1")

	failed := Failed(results)
	require.Len(t, failed, 1)
	assert.Equal(t, 1, failed[0].Row)
	assert.Equal(t, 1, rec.Count(logging.LevelError, "Row failed"))

	alpha, err := os.ReadFile(filepath.Join(outDir, "1-alpha.html"))
	require.NoError(t, err)
	assert.Contains(t, string(alpha), "Cover for Alpha Ltd")
	assert.NotContains(t, string(alpha), "Detail for")

	gamma, err := os.ReadFile(filepath.Join(outDir, "3-gamma.html"))
	require.NoError(t, err)
	assert.Contains(t, string(gamma), "Detail for Base")

	_, err = RenderBatch(ctx, location, opts, Batch{Format: "docx"})
	assert.ErrorContains(t, err, "Unknown output format")
}
