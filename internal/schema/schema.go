// Package schema validates documents against JSON schemas. Formats named
// in a schema are resolved through the format checker plugins, so a
// schema may use "au.abn" or "date.dmy" as freely as "email".
package schema

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	derrors "github.com/jin-gizmo/docma/internal/errors"
	"github.com/jin-gizmo/docma/internal/plugins/formats"
)

//go:embed schemas/*.json
var builtin embed.FS

const baseURL = "https://docma.invalid/schemas/"

// Validator checks documents against one compiled schema.
type Validator struct {
	name   string
	schema *jsonschema.Schema
}

// Compile builds a validator from a decoded schema document. Every custom
// format the schema names must resolve to a format checker.
func Compile(name string, doc any) (*Validator, error) {
	doc, err := toJSON(doc)
	if err != nil {
		return nil, derrors.NewValidationError("Bad schema: %v", err).WithPath(name)
	}

	c := jsonschema.NewCompiler()
	c.AssertFormat()
	for _, f := range FormatNames(doc) {
		if formats.IsBuiltin(f) {
			continue
		}
		check, err := formats.Lookup(f)
		if err != nil {
			return nil, derrors.NewValidationError("Unknown format: %s", f).WithPath(name).WithCause(err)
		}
		c.RegisterFormat(&jsonschema.Format{Name: f, Validate: formatValidator(f, check)})
	}

	url := baseURL + name
	if err := c.AddResource(url, doc); err != nil {
		return nil, derrors.NewValidationError("Bad schema: %v", err).WithPath(name)
	}
	sch, err := c.Compile(url)
	if err != nil {
		return nil, derrors.NewValidationError("Bad schema: %v", err).WithPath(name)
	}

	return &Validator{name: name, schema: sch}, nil
}

func formatValidator(name string, check formats.Checker) func(any) error {
	return func(v any) error {
		if !check(v) {
			return fmt.Errorf("%v is not valid %s", v, name)
		}

		return nil
	}
}

// Validate checks inst. The error names the offending JSON pointer.
func (v *Validator) Validate(inst any) error {
	return v.ValidateAs(v.name, inst)
}

// ValidateAs is Validate with the error attributed to path.
func (v *Validator) ValidateAs(path string, inst any) error {
	doc, err := toJSON(inst)
	if err != nil {
		return derrors.NewValidationError("Cannot validate: %v", err).WithPath(path)
	}
	err = v.schema.Validate(doc)
	if err == nil {
		return nil
	}

	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return derrors.NewValidationError("%v", err).WithPath(path)
	}
	pointer, msg := describe(ve)

	return derrors.NewValidationError("%s: %s", pointer, msg).
		WithPath(path).
		WithContext("pointer", pointer)
}

var printer = message.NewPrinter(language.English)

// describe picks the most specific failure.
func describe(ve *jsonschema.ValidationError) (string, string) {
	leaf := ve
	for len(leaf.Causes) > 0 {
		leaf = leaf.Causes[0]
	}
	pointer := "/" + strings.Join(leaf.InstanceLocation, "/")

	return pointer, leaf.ErrorKind.LocalizedString(printer)
}

// FormatNames returns the distinct "format" values used anywhere in doc.
func FormatNames(doc any) []string {
	seen := map[string]bool{}
	var walk func(v any)
	walk = func(v any) {
		switch x := v.(type) {
		case map[string]any:
			for k, child := range x {
				if s, ok := child.(string); ok && k == "format" {
					seen[s] = true

					continue
				}
				walk(child)
			}
		case []any:
			for _, child := range x {
				walk(child)
			}
		}
	}
	walk(doc)

	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)

	return out
}

// toJSON converts YAML-decoded values into the validator's value space.
func toJSON(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	return jsonschema.UnmarshalJSON(bytes.NewReader(data))
}

var (
	builtinMu  sync.Mutex
	validators = map[string]*Validator{}
)

// Builtin returns the validator for one of docma's own schemas:
// "config" or "query".
func Builtin(name string) (*Validator, error) {
	builtinMu.Lock()
	defer builtinMu.Unlock()
	if v, ok := validators[name]; ok {
		return v, nil
	}

	data, err := builtin.ReadFile("schemas/" + name + ".schema.json")
	if err != nil {
		return nil, fmt.Errorf("no builtin schema %q", name)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("builtin schema %q: %w", name, err)
	}
	v, err := Compile(name+".schema.json", doc)
	if err != nil {
		return nil, err
	}
	validators[name] = v

	return v, nil
}
