// Package generator produces dynamic content referenced from templates
// with pseudo URLs of the form
//
//	docma:<type>?option1=value1&option2=value2
//
// Generators live in the "generators" plugin namespace, keyed by type.
// Do not write docma://<type>: a netloc is not allowed.
package generator

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/go-viper/mapstructure/v2"

	"github.com/jin-gizmo/docma/internal/content"
	derrors "github.com/jin-gizmo/docma/internal/errors"
	"github.com/jin-gizmo/docma/internal/logging"
	"github.com/jin-gizmo/docma/internal/packager"
	"github.com/jin-gizmo/docma/internal/plugins"
)

// Scheme is the URL scheme for generated content.
const Scheme = "docma"

// Env is the part of a render context a generator may use. It may be nil
// when a generator is invoked outside a render.
type Env interface {
	Package() *packager.Reader
	Params() map[string]any
}

// Generator produces content from its decoded URL query options.
type Generator func(ctx context.Context, options map[string]any, env Env) (content.Content, error)

func init() {
	plugins.DeclarePackage(plugins.NamespaceGenerators)
	plugins.DeclareModule(plugins.NamespaceGenerators, "qrcode", loadQRCode)
	plugins.DeclareModule(plugins.NamespaceGenerators, "swatch", loadSwatch)
}

var router = plugins.NewLazyRouter(func() (*plugins.Router, error) {
	pkg, err := plugins.NewPackageResolver(plugins.NamespaceGenerators)
	if err != nil {
		return nil, err
	}

	return plugins.NewRouter("generators", []plugins.Resolver{pkg},
		plugins.WithLogger(logging.Default().WithComponent("generator"))), nil
})

// Lookup returns the generator for a content type.
func Lookup(typ string) (Generator, error) {
	p, err := router.Lookup(typ)
	if err != nil {
		if errors.Is(err, &derrors.DocmaError{Kind: derrors.KindPluginLookup}) {
			return nil, derrors.NewGeneratorError(derrors.CodeUnknown, "Unknown content type: %s", typ)
		}

		return nil, err
	}

	return plugins.As[Generator](p)
}

// Parse splits a docma: URL into the content type and its options.
func Parse(u *url.URL) (string, map[string]any, error) {
	if u.Scheme != Scheme {
		return "", nil, derrors.NewGeneratorError(derrors.CodeInvalid, "Not a %s URL", Scheme).WithPath(u.String())
	}
	if u.Host != "" {
		return "", nil, derrors.NewGeneratorError(derrors.CodeInvalid,
			"Use %s:<type>, not %s://<type>", Scheme, Scheme).WithPath(u.String())
	}
	typ := u.Opaque
	if typ == "" {
		typ = strings.TrimPrefix(u.Path, "/")
	}
	if typ == "" {
		return "", nil, derrors.NewGeneratorError(derrors.CodeInvalid, "Missing content type").WithPath(u.String())
	}

	query, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return "", nil, derrors.NewGeneratorError(derrors.CodeInvalid, "Bad options").WithPath(u.String()).WithCause(err)
	}
	options := make(map[string]any, len(query))
	for key, values := range query {
		if len(values) == 1 {
			options[key] = values[0]
		} else {
			options[key] = values
		}
	}

	return typ, options, nil
}

// Generate runs the generator named by a docma: URL.
func Generate(ctx context.Context, u *url.URL, env Env) (content.Content, error) {
	typ, options, err := Parse(u)
	if err != nil {
		return content.Content{}, err
	}
	gen, err := Lookup(typ)
	if err != nil {
		return content.Content{}, err
	}

	c, err := gen(ctx, options, env)
	if err != nil {
		return content.Content{}, derrors.Retag(err, derrors.KindGenerator, derrors.CodeInvalid)
	}

	return c, nil
}

// validator is implemented by option structs with cross-field rules.
type validator interface {
	Validate() error
}

// DecodeOptions decodes raw URL options into out, a pointer to a struct
// with mapstructure tags. Unknown options and malformed values fail, as
// does out's Validate method when it has one.
func DecodeOptions(typ string, raw map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(raw); err != nil {
		return derrors.NewGeneratorError(derrors.CodeInvalid, "Bad options for %s", typ).WithCause(err)
	}
	if v, ok := out.(validator); ok {
		if err := v.Validate(); err != nil {
			return derrors.NewGeneratorError(derrors.CodeInvalid, "Bad options for %s", typ).WithCause(err)
		}
	}

	return nil
}
