package compiler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	derrors "github.com/jin-gizmo/docma/internal/errors"
	"github.com/jin-gizmo/docma/internal/logging"
	"github.com/jin-gizmo/docma/internal/packager"
	"github.com/jin-gizmo/docma/internal/plugins"
	"github.com/jin-gizmo/docma/internal/testutils"
)

const testConfig = `
description: Test template
documents:
  - content/hello.html
  - content/compile-me.html
  - https://example.com/remote.html
imports:
  - %s
exclude:
  - "**/*.bak"
  - drafts
`

func sourceTree(importURL string) map[string]string {
	return map[string]string{
		"config.yaml":              strings.Replace(testConfig, "%s", importURL, 1),
		"content/hello.html":       `<p>{{ .test.text }}</p>`,
		"content/compile-me.md":    "# Title\n\nSome *text* and {{ if eq .mode \"x\" }}x{{ end }}.\n",
		"content/old.bak":          "old",
		"drafts/ignore.html":       "draft",
		".git/HEAD":                "ref",
		"queries/sales.query.yaml": "description: Sales\nquery:\n  text: SELECT * FROM sales\n",
	}
}

func testOptions() Options {
	return Options{Logger: logging.Discard()}
}

func TestCompile(t *testing.T) {
	srv := testutils.NewWebServer(t, map[string][]byte{"logo.png": []byte("PNGDATA")})
	src := testutils.CreateTempTemplate(t, sourceTree(srv.URL+"/data/logo.png"))
	target := filepath.Join(t.TempDir(), "pkg")

	require.NoError(t, Compile(context.Background(), src, target, testOptions()))

	pkg, err := packager.Open(target)
	require.NoError(t, err)
	defer pkg.Close()

	for _, name := range []string{"config.yaml", "content/hello.html", "content/compile-me.html", "queries/sales.query.yaml", "logo.png", packager.VersionFile} {
		assert.True(t, pkg.Exists(name), name)
	}
	for _, name := range []string{"content/compile-me.md", "content/old.bak", "drafts/ignore.html", ".git/HEAD"} {
		assert.False(t, pkg.Exists(name), name)
	}

	html, err := pkg.ReadText("content/compile-me.html")
	require.NoError(t, err)
	assert.Contains(t, html, `<h1 id="title">Title</h1>`)
	assert.Contains(t, html, `<em>text</em>`)
	assert.Contains(t, html, `{{ if eq .mode "x" }}x{{ end }}`)

	logo, err := pkg.ReadFile("logo.png")
	require.NoError(t, err)
	assert.Equal(t, "PNGDATA", string(logo))

	_, err = packager.CheckVersionInfo(context.Background(), pkg, logging.Discard())
	require.NoError(t, err)

	// Recompiling over an existing package replaces it.
	require.NoError(t, Compile(context.Background(), src, target, testOptions()))
}

func TestCompileZip(t *testing.T) {
	files := sourceTree("file:logo.png")
	src := testutils.CreateTempTemplate(t, files)
	target := filepath.Join(t.TempDir(), "pkg.zip")

	opts := testOptions()
	opts.Import = func(_ context.Context, rawURL string, _ int64) ([]byte, error) {
		assert.Equal(t, "file:logo.png", rawURL)

		return []byte("PNG"), nil
	}
	require.NoError(t, Compile(context.Background(), src, target, opts))

	pkg, err := packager.Open(target)
	require.NoError(t, err)
	defer pkg.Close()
	assert.True(t, pkg.Exists("content/compile-me.html"))
}

func TestCompileFailures(t *testing.T) {
	failImport := func(context.Context, string, int64) ([]byte, error) {
		return nil, derrors.NewImportError(derrors.CodeNotFound, "File not found")
	}
	noImport := func(context.Context, string, int64) ([]byte, error) { return []byte("x"), nil }

	tests := []struct {
		name  string
		files map[string]string
		noDir bool
		imp   ImportFunc
		msg   string
		kind  derrors.Kind
	}{
		{name: "not a directory", noDir: true, msg: "not a directory", kind: derrors.KindPackage},
		{name: "no config", files: map[string]string{"a.html": "x"}, msg: "No docma configuration file found", kind: derrors.KindPackage},
		{name: "malformed config", files: map[string]string{"config.yaml": "documents: [a.html]\n"}, msg: "config.yaml", kind: derrors.KindValidation},
		{
			name: "bad query",
			files: map[string]string{
				"config.yaml":    "description: x\ndocuments: [a.html]\n",
				"a.html":         "x",
				"bad.query.yaml": "description: x\n",
			},
			msg:  "bad.query.yaml",
			kind: derrors.KindValidation,
		},
		{
			name:  "missing document",
			files: map[string]string{"config.yaml": "description: x\ndocuments: [missing.html]\n"},
			msg:   "No document source found",
			kind:  derrors.KindPackage,
		},
		{
			name: "bad import",
			files: map[string]string{
				"config.yaml": "description: x\ndocuments: [a.html]\nimports: [https://example.com/x.png]\n",
				"a.html":      "x",
			},
			imp:  failImport,
			msg:  "Bad import: https://example.com/x.png",
			kind: derrors.KindPackage,
		},
		{
			name: "collision",
			files: map[string]string{
				"config.yaml": "description: x\ndocuments: [a.html]\n",
				"a.html":      "x",
				"a.md":        "x",
			},
			imp:  noImport,
			msg:  "both compile to a.html",
			kind: derrors.KindPackage,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := filepath.Join(t.TempDir(), "no-such-dir")
			if !tt.noDir {
				src = testutils.CreateTempTemplate(t, tt.files)
			}
			target := filepath.Join(t.TempDir(), "pkg")
			opts := testOptions()
			opts.Import = tt.imp

			err := Compile(context.Background(), src, target, opts)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
			assert.True(t, derrors.IsKind(err, tt.kind), "%v", err)

			_, statErr := os.Stat(target)
			assert.True(t, errors.Is(statErr, os.ErrNotExist), "failed compile left %s behind", target)
			entries, _ := os.ReadDir(filepath.Dir(target))
			assert.Empty(t, entries)
		})
	}
}

func TestBrokenContentCompiler(t *testing.T) {
	broken := ContentCompiler(func(src []byte) ([]byte, error) {
		return nil, errors.New(strings.TrimSpace(string(src)) + ": broken compiler")
	})
	require.NoError(t, plugins.DefaultCatalog().Register(plugins.NamespaceCompilers,
		plugins.New(broken, plugins.Names("broken"), plugins.Types(plugins.TypeCompiler)), plugins.Override()))
	router.Reset()
	t.Cleanup(plugins.Reset)

	src := testutils.CreateTempTemplate(t, map[string]string{
		"config.yaml":  "description: x\ndocuments: [a.html]\n",
		"a.html":       "x",
		"uh-oh.broken": "Uh oh",
	})
	err := Compile(context.Background(), src, filepath.Join(t.TempDir(), "pkg"), testOptions())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Uh oh: broken compiler")
	assert.Contains(t, err.Error(), "uh-oh.broken")
}

func TestCompiledName(t *testing.T) {
	for in, want := range map[string]string{
		"content/a.md":   "content/a.html",
		"content/a.MD":   "content/a.html",
		"content/a.html": "content/a.html",
		"Makefile":       "Makefile",
	} {
		assert.Equal(t, want, CompiledName(in), in)
	}
}

func TestMarkdown(t *testing.T) {
	out, err := Markdown([]byte("| a | b |\n|---|---|\n| {{ .x \"y\" }} | 2 |\n"))
	require.NoError(t, err)
	assert.Contains(t, string(out), "<table>")
	assert.Contains(t, string(out), `<td>{{ .x "y" }}</td>`)

	c, err := CompilerFor("notes.md")
	require.NoError(t, err)
	require.NotNil(t, c)

	c, err = CompilerFor("notes.txt")
	require.NoError(t, err)
	assert.Nil(t, c)
}
