package formats

import (
	"reflect"

	"github.com/jin-gizmo/docma/internal/plugins"
	"github.com/jin-gizmo/docma/internal/textutil"
)

// IsTrue reports whether v reads as a true boolean ("yes", "on", 1, ...).
func IsTrue(v any) bool {
	b, err := textutil.Str2Bool(v)

	return err == nil && b
}

// IsEmpty reports whether v is nil, an empty string or an empty
// collection.
func IsEmpty(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String, reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}

	return false
}

// IsNumber reports whether v is numeric.
func IsNumber(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	}

	return false
}

func loadTests(reg *plugins.Registrar) error {
	for _, p := range []*plugins.Plugin{
		plugins.New(Checker(IsTrue), plugins.Names("true", "truthy"), plugins.Types(plugins.TypeTest)),
		plugins.New(Checker(IsEmpty), plugins.Names("empty"), plugins.Types(plugins.TypeTest)),
		plugins.New(Checker(IsNumber), plugins.Names("number"), plugins.Types(plugins.TypeTest)),
	} {
		if err := reg.Register(p); err != nil {
			return err
		}
	}

	return nil
}
