package compiler

import (
	"bytes"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	derrors "github.com/jin-gizmo/docma/internal/errors"
	"github.com/jin-gizmo/docma/internal/logging"
	"github.com/jin-gizmo/docma/internal/plugins"
)

// ContentCompiler converts source content into its packaged form. Content
// compilers live in the "compilers" plugin namespace, keyed by the file
// suffix they accept (without the dot).
type ContentCompiler func(src []byte) ([]byte, error)

// compiledSuffix maps a source suffix to the suffix of the compiled file.
var compiledSuffix = map[string]string{
	"md": "html",
}

func init() {
	plugins.DeclarePackage(plugins.NamespaceCompilers)
	plugins.DeclareModule(plugins.NamespaceCompilers, "markdown", loadMarkdown)
}

var router = plugins.NewLazyRouter(func() (*plugins.Router, error) {
	pkg, err := plugins.NewPackageResolver(plugins.NamespaceCompilers)
	if err != nil {
		return nil, err
	}

	return plugins.NewRouter("compilers", []plugins.Resolver{pkg},
		plugins.WithLogger(logging.Default().WithComponent("compiler"))), nil
})

func suffix(name string) string {
	return strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
}

// CompilerFor returns the content compiler for a file name, or nil when
// the file is copied verbatim.
func CompilerFor(name string) (ContentCompiler, error) {
	sfx := suffix(name)
	if sfx == "" {
		return nil, nil
	}
	p, err := router.Lookup(sfx)
	if err != nil {
		if errors.Is(err, &derrors.DocmaError{Kind: derrors.KindPluginLookup}) {
			return nil, nil
		}

		return nil, err
	}

	return plugins.As[ContentCompiler](p)
}

// CompiledName returns the package name of a compiled source file.
func CompiledName(name string) string {
	sfx := suffix(name)
	to, ok := compiledSuffix[sfx]
	if !ok {
		return name
	}

	return strings.TrimSuffix(name, path.Ext(name)) + "." + to
}

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM, extension.Footnote, extension.DefinitionList),
	goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
)

var action = regexp.MustCompile(`(?s)\{\{.*?\}\}`)

// Markdown renders Markdown to an HTML fragment. Raw HTML and template
// actions pass through untouched.
func Markdown(src []byte) ([]byte, error) {
	// Actions are swapped for inert tokens so the renderer cannot escape
	// their quotes.
	var actions [][]byte
	masked := action.ReplaceAllFunc(src, func(m []byte) []byte {
		actions = append(actions, m)

		return []byte(fmt.Sprintf("DOCMAACTION%dX", len(actions)-1))
	})

	var out bytes.Buffer
	if err := markdown.Convert(masked, &out); err != nil {
		return nil, err
	}
	if len(actions) == 0 {
		return out.Bytes(), nil
	}

	return token.ReplaceAllFunc(out.Bytes(), func(m []byte) []byte {
		i, err := strconv.Atoi(string(m[len("DOCMAACTION") : len(m)-1]))
		if err != nil || i >= len(actions) {
			return m
		}

		return actions[i]
	}), nil
}

var token = regexp.MustCompile(`DOCMAACTION\d+X`)

func loadMarkdown(reg *plugins.Registrar) error {
	return reg.Add(ContentCompiler(Markdown), plugins.Names("md"), plugins.Types(plugins.TypeCompiler))
}
