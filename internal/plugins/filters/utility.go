package filters

import (
	"errors"
	"fmt"
	"reflect"

	"golang.org/x/text/cases"

	"github.com/jin-gizmo/docma/internal/plugins"
	"github.com/jin-gizmo/docma/internal/textutil"
)

// Require fails with the given message when the value is empty.
func Require(_ Env, args ...any) (any, error) {
	lead, value, err := split("require", args, 1, 1)
	if err != nil {
		return nil, err
	}
	if !truthy(value) {
		return nil, errors.New(toString(lead[0]))
	}

	return value, nil
}

// Default substitutes a fallback for an empty value.
func Default(_ Env, args ...any) (any, error) {
	lead, value, err := split("default", args, 1, 1)
	if err != nil {
		return nil, err
	}
	if !truthy(value) {
		return lead[0], nil
	}

	return value, nil
}

// CSSID sanitises a value for use as an HTML id.
func CSSID(_ Env, args ...any) (any, error) {
	_, value, err := split("css_id", args, 0, 0)
	if err != nil {
		return nil, err
	}

	return textutil.CSSID(toString(value)), nil
}

// SQLSafe passes names of the form name or name.name and rejects anything
// else.
func SQLSafe(_ Env, args ...any) (any, error) {
	_, value, err := split("sql_safe", args, 0, 0)
	if err != nil {
		return nil, err
	}
	s := toString(value)
	if !textutil.SQLSafe(s) {
		return nil, fmt.Errorf("Bad SQL name: %s", s)
	}

	return s, nil
}

// Title capitalises words according to the render locale.
func Title(env Env, args ...any) (any, error) {
	_, value, err := split("title", args, 0, 0)
	if err != nil {
		return nil, err
	}

	return cases.Title(envTag(env)).String(toString(value)), nil
}

func truthy(v any) bool {
	if v == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool()
	case reflect.String, reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() > 0
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0
	case reflect.Pointer, reflect.Interface:
		return !rv.IsNil()
	}

	return true
}

func loadUtility(reg *plugins.Registrar) error {
	return register(reg,
		filter(Require, "require"),
		filter(Default, "default"),
		filter(CSSID, "css_id"),
		filter(SQLSafe, "sql_safe"),
		filter(Title, "title"),
	)
}
