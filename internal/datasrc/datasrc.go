// Package datasrc loads tabular data for templates. A Spec names a provider
// type; providers live in the "providers" plugin namespace and return a
// list of rows.
package datasrc

import (
	"context"
	"errors"

	derrors "github.com/jin-gizmo/docma/internal/errors"
	"github.com/jin-gizmo/docma/internal/logging"
	"github.com/jin-gizmo/docma/internal/monitoring"
	"github.com/jin-gizmo/docma/internal/packager"
	"github.com/jin-gizmo/docma/internal/params"
	"github.com/jin-gizmo/docma/internal/plugins"
)

// Env is the part of a render context that providers use.
type Env interface {
	Package() *packager.Reader
	Params() map[string]any
	RenderWithFuncs(text string, funcs map[string]any) (string, error)
}

// Provider loads the rows for a spec. params are per-call parameters
// layered over the context parameters.
type Provider func(ctx context.Context, spec Spec, env Env, params map[string]any) ([]map[string]any, error)

func init() {
	plugins.DeclarePackage(plugins.NamespaceProviders)
	plugins.DeclareModule(plugins.NamespaceProviders, "file", loadFileProvider)
	plugins.DeclareModule(plugins.NamespaceProviders, "params", loadParamsProvider)
	plugins.DeclareModule(plugins.NamespaceProviders, "sql", loadSQLProvider)
}

var router = plugins.NewLazyRouter(func() (*plugins.Router, error) {
	pkg, err := plugins.NewPackageResolver(plugins.NamespaceProviders)
	if err != nil {
		return nil, err
	}

	return plugins.NewRouter("providers", []plugins.Resolver{pkg},
		plugins.WithLogger(logging.Default().WithComponent("datasrc"))), nil
})

// Lookup returns the provider for a source type.
func Lookup(typ string) (Provider, error) {
	p, err := router.Lookup(typ)
	if err != nil {
		if errors.Is(err, &derrors.DocmaError{Kind: derrors.KindPluginLookup}) {
			return nil, derrors.NewDataProviderError(derrors.CodeUnknown, "Unknown data provider type: %s", typ)
		}

		return nil, err
	}

	return plugins.As[Provider](p)
}

// Load fetches the rows named by spec.
func Load(ctx context.Context, spec Spec, env Env, callParams map[string]any) ([]map[string]any, error) {
	provider, err := Lookup(spec.Type)
	if err != nil {
		return nil, err
	}

	rows, err := provider(ctx, spec, env, callParams)
	monitoring.DataLoad(spec.Type, err)
	if err != nil {
		var de *derrors.DocmaError
		if errors.As(err, &de) {
			return nil, err
		}

		return nil, derrors.NewDataProviderError(derrors.CodeInvalid, "%s", err.Error()).
			WithPath(spec.String()).
			WithCause(err)
	}

	return rows, nil
}

// Rows converts decoded data into a list of rows.
func Rows(v any) ([]map[string]any, error) {
	switch x := v.(type) {
	case []map[string]any:
		return x, nil
	case []any:
		rows := make([]map[string]any, 0, len(x))
		for _, item := range x {
			row, ok := params.Normalize(item).(map[string]any)
			if !ok {
				return nil, errBadData()
			}
			rows = append(rows, row)
		}

		return rows, nil
	}

	return nil, errBadData()
}

func errBadData() error {
	return derrors.NewDataProviderError(derrors.CodeInvalid, "Bad data - must be a list of dicts")
}

// merged layers call parameters over the context parameters.
func merged(env Env, callParams map[string]any) map[string]any {
	return params.Merge(env.Params(), callParams)
}
