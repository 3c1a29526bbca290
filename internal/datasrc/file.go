package datasrc

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	derrors "github.com/jin-gizmo/docma/internal/errors"
	"github.com/jin-gizmo/docma/internal/plugins"
)

// decoders by file suffix.
var decoders = map[string]func(data []byte) ([]map[string]any, error){
	".csv":   decodeCSV,
	".jsonl": decodeJSONL,
	".json":  decodeJSON,
	".yaml":  decodeYAML,
	".yml":   decodeYAML,
}

// FileProvider reads rows from a file inside the template package.
func FileProvider(_ context.Context, spec Spec, env Env, _ map[string]any) ([]map[string]any, error) {
	if spec.Query != "" {
		return nil, derrors.NewDataProviderError(derrors.CodeInvalid, "Query not allowed").WithPath(spec.String())
	}
	if path.IsAbs(spec.Location) || strings.HasPrefix(path.Clean(spec.Location), "..") {
		return nil, derrors.NewDataProviderError(derrors.CodeInvalid, "Location must be relative").WithPath(spec.String())
	}

	decode, ok := decoders[strings.ToLower(path.Ext(spec.Location))]
	if !ok {
		return nil, derrors.NewDataProviderError(derrors.CodeInvalid, "Unknown file type: %s", spec.Location)
	}
	data, err := env.Package().ReadFile(spec.Location)
	if err != nil {
		return nil, derrors.Retag(err, derrors.KindDataProvider, derrors.CodeNotFound)
	}
	rows, err := decode(data)
	if err != nil {
		var de *derrors.DocmaError
		if !errors.As(err, &de) {
			return nil, derrors.NewDataProviderError(derrors.CodeInvalid, "Cannot read %s", spec.Location).WithCause(err)
		}

		return nil, de.WithPath(spec.Location)
	}

	return rows, nil
}

// decodeCSV treats the first record as the header. Values stay strings.
func decodeCSV(data []byte) ([]map[string]any, error) {
	r := csv.NewReader(bytes.NewReader(data))
	header, err := r.Read()
	if err == io.EOF {
		return []map[string]any{}, nil
	}
	if err != nil {
		return nil, err
	}

	var rows []map[string]any
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		row := make(map[string]any, len(header))
		for i, name := range header {
			row[name] = record[i]
		}
		rows = append(rows, row)
	}

	return rows, nil
}

func decodeJSONL(data []byte) ([]map[string]any, error) {
	var rows []map[string]any
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 64*1024), 16<<20)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var v any
		if err := json.Unmarshal(line, &v); err != nil {
			return nil, err
		}
		row, ok := v.(map[string]any)
		if !ok {
			return nil, errBadData()
		}
		rows = append(rows, row)
	}

	return rows, sc.Err()
}

func decodeJSON(data []byte) ([]map[string]any, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}

	return Rows(v)
}

func decodeYAML(data []byte) ([]map[string]any, error) {
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, err
	}

	return Rows(v)
}

func loadFileProvider(reg *plugins.Registrar) error {
	return reg.Add(Provider(FileProvider), plugins.Names("file"), plugins.Types(plugins.TypeProvider))
}
