package formats

import (
	"bytes"
	"encoding/json"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/jin-gizmo/docma/internal/plugins"
)

// BuiltinNames lists the formats the JSON schema validator implements
// itself.
var BuiltinNames = []string{
	"date-time", "date", "time", "duration",
	"email", "idn-email",
	"hostname", "idn-hostname",
	"ipv4", "ipv6",
	"uri", "uri-reference", "iri", "iri-reference", "uri-template",
	"uuid", "json-pointer", "relative-json-pointer", "regex",
	"period", "semver",
}

var builtinSet = func() map[string]bool {
	m := make(map[string]bool, len(BuiltinNames))
	for _, n := range BuiltinNames {
		m[n] = true
	}

	return m
}()

// IsBuiltin reports whether name is a validator builtin format.
func IsBuiltin(name string) bool {
	return builtinSet[name]
}

// BuiltinResolver exposes validator builtin formats as checkers.
type BuiltinResolver struct{}

// Resolve implements plugins.Resolver.
func (BuiltinResolver) Resolve(name string) (*plugins.Plugin, error) {
	if !builtinSet[name] {
		return nil, nil
	}
	sch, err := builtinSchema(name)
	if err != nil {
		return nil, err
	}

	return checker(func(v any) bool {
		inst, err := toJSON(v)
		if err != nil {
			return false
		}

		return sch.Validate(inst) == nil
	}, name), nil
}

var (
	builtinMu      sync.Mutex
	builtinSchemas = map[string]*jsonschema.Schema{}
)

func builtinSchema(name string) (*jsonschema.Schema, error) {
	builtinMu.Lock()
	defer builtinMu.Unlock()
	if sch, ok := builtinSchemas[name]; ok {
		return sch, nil
	}

	url := "https://docma.invalid/formats/" + name + ".json"
	c := jsonschema.NewCompiler()
	c.AssertFormat()
	if err := c.AddResource(url, map[string]any{"format": name}); err != nil {
		return nil, err
	}
	sch, err := c.Compile(url)
	if err != nil {
		return nil, err
	}
	builtinSchemas[name] = sch

	return sch, nil
}

// toJSON converts v into the value space the validator understands.
func toJSON(v any) (any, error) {
	switch v.(type) {
	case string, bool, nil, json.Number:
		return v, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	return jsonschema.UnmarshalJSON(bytes.NewReader(data))
}
