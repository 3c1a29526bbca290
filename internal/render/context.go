// Package render renders template text against a compiled package and a
// parameter tree. Templates use text/template syntax. Filters, tests and
// the core functions (data, render, include, ...) resolve by name from
// the plugin layer when a template is parsed.
package render

import (
	"context"
	"fmt"
	"strings"

	"github.com/jin-gizmo/docma/internal/datasrc"
	"github.com/jin-gizmo/docma/internal/logging"
	"github.com/jin-gizmo/docma/internal/packager"
	"github.com/jin-gizmo/docma/internal/params"
)

// DefaultLocale applies when neither globals, parameters nor options set
// one.
const DefaultLocale = "en_AU"

// Options configure a Context.
type Options struct {
	// Locale is the fallback locale for locale-aware filters.
	Locale string

	// Globals are exposed through the global and globals functions. A
	// "locale" global overrides every other locale setting.
	Globals map[string]any

	Logger logging.Logger
}

// Context holds the state of a single render: the package, the merged
// parameters and the data loaded so far. It is not safe for concurrent
// use; batch renders build one per row.
type Context struct {
	ctx    context.Context
	pkg    *packager.Reader
	params map[string]any
	opts   Options
	logger logging.Logger
	memo   map[datasrc.Spec][]map[string]any
}

// NewContext creates a render context. ctx bounds data loads made while
// rendering.
func NewContext(ctx context.Context, pkg *packager.Reader, parameters map[string]any, opts Options) *Context {
	if parameters == nil {
		parameters = map[string]any{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}

	return &Context{
		ctx:    ctx,
		pkg:    pkg,
		params: parameters,
		opts:   opts,
		logger: logger.WithComponent("render"),
		memo:   make(map[datasrc.Spec][]map[string]any),
	}
}

// Package returns the package being rendered.
func (c *Context) Package() *packager.Reader {
	return c.pkg
}

// Params returns the render parameters.
func (c *Context) Params() map[string]any {
	return c.params
}

// Globals returns the render globals.
func (c *Context) Globals() map[string]any {
	if c.opts.Globals == nil {
		return map[string]any{}
	}

	return c.opts.Globals
}

// Locale returns the locale for locale-aware filters.
func (c *Context) Locale() string {
	if s, ok := c.opts.Globals["locale"].(string); ok && s != "" {
		return s
	}
	if v, ok := params.Get(c.params, "locale"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c.opts.Locale != "" {
		return c.opts.Locale
	}

	return DefaultLocale
}

// Data loads the rows for spec, a datasrc.Spec or its string form. Loads
// without call parameters are made once per context.
func (c *Context) Data(spec any, callParams map[string]any) ([]map[string]any, error) {
	var s datasrc.Spec
	switch x := spec.(type) {
	case datasrc.Spec:
		s = x
	case string:
		var err error
		if s, err = datasrc.Parse(x); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("bad data source specification type %T", spec)
	}

	if len(callParams) > 0 {
		return datasrc.Load(c.ctx, s, c, callParams)
	}
	if rows, ok := c.memo[s]; ok {
		return rows, nil
	}
	rows, err := datasrc.Load(c.ctx, s, c, nil)
	if err != nil {
		return nil, err
	}
	c.memo[s] = rows
	c.logger.Debug(c.ctx, "Loaded data", "spec", s.String(), "rows", len(rows))

	return rows, nil
}

// Render renders value. Strings are rendered as templates; lists and
// maps are rendered element by element and keep their shape.
func (c *Context) Render(value any) (any, error) {
	switch v := value.(type) {
	case string:
		return c.RenderString(v)
	case []string:
		out := make([]string, len(v))
		for i, s := range v {
			r, err := c.RenderString(s)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}

		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			r, err := c.Render(item)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}

		return out, nil
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			r, err := c.Render(item)
			if err != nil {
				return nil, err
			}
			out[k] = r
		}

		return out, nil
	}

	return nil, fmt.Errorf("cannot render %T", value)
}

// RenderString renders text as a template.
func (c *Context) RenderString(text string) (string, error) {
	return c.execute("string", text, nil, missingKeyError)
}

// RenderWithFuncs renders text with extra template functions, which take
// precedence over plugins of the same name.
func (c *Context) RenderWithFuncs(text string, funcs map[string]any) (string, error) {
	return c.execute("string", text, funcs, missingKeyError)
}

// RenderText renders text as a template; name appears in errors.
func (c *Context) RenderText(name, text string) (string, error) {
	return c.execute(name, text, nil, missingKeyError)
}

// RenderCondition renders a document condition. A parameter that is not
// set evaluates as empty instead of failing, so a condition on an unset
// parameter renders "".
func (c *Context) RenderCondition(name, text string) (string, error) {
	out, err := c.execute(name, text, nil, missingKeyZero)
	if err != nil {
		return "", err
	}

	return strings.ReplaceAll(out, noValue, ""), nil
}

// RenderFile renders the package file name.
func (c *Context) RenderFile(name string) (string, error) {
	text, err := c.pkg.ReadText(name)
	if err != nil {
		return "", err
	}

	return c.execute(name, text, nil, missingKeyError)
}
