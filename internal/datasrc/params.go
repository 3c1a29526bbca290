package datasrc

import (
	"context"

	derrors "github.com/jin-gizmo/docma/internal/errors"
	"github.com/jin-gizmo/docma/internal/params"
	"github.com/jin-gizmo/docma/internal/plugins"
)

// ParamsProvider returns the list found at a dotted location in the
// render parameters.
func ParamsProvider(_ context.Context, spec Spec, env Env, callParams map[string]any) ([]map[string]any, error) {
	if spec.Query != "" {
		return nil, derrors.NewDataProviderError(derrors.CodeInvalid, "Query not allowed").WithPath(spec.String())
	}

	v, ok := params.Get(merged(env, callParams), spec.Location)
	if !ok {
		return nil, derrors.NewDataProviderError(derrors.CodeNotFound, "No such parameter: %s", spec.Location)
	}
	if _, isList := v.([]any); !isList {
		if _, isRows := v.([]map[string]any); !isRows {
			return nil, derrors.NewDataProviderError(derrors.CodeInvalid, "Parameter %s is not a list", spec.Location)
		}
	}
	rows, err := Rows(v)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, len(rows))
	for i, row := range rows {
		out[i] = params.DeepCopy(row).(map[string]any)
	}

	return out, nil
}

func loadParamsProvider(reg *plugins.Registrar) error {
	return reg.Add(Provider(ParamsProvider), plugins.Names("params"), plugins.Types(plugins.TypeProvider))
}
