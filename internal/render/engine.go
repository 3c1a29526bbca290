package render

import (
	"errors"
	"fmt"
	"strings"
	"text/template"
	"text/template/parse"

	"gopkg.in/yaml.v3"

	derrors "github.com/jin-gizmo/docma/internal/errors"
	"github.com/jin-gizmo/docma/internal/params"
	"github.com/jin-gizmo/docma/internal/plugins/filters"
	"github.com/jin-gizmo/docma/internal/plugins/formats"
)

// ErrAbort is wrapped by the error of a template that calls abort.
var ErrAbort = errors.New("template aborted")

// builtins are the functions text/template predefines.
var builtins = map[string]bool{
	"and": true, "call": true, "html": true, "index": true, "slice": true,
	"js": true, "len": true, "not": true, "or": true, "print": true,
	"printf": true, "println": true, "urlquery": true,
	"eq": true, "ge": true, "gt": true, "le": true, "lt": true, "ne": true,
}

// Missing-key modes for execute.
const (
	missingKeyError = "missingkey=error"
	missingKeyZero  = "missingkey=zero"
)

// noValue is what text/template prints for a missing map entry under
// missingkey=zero.
const noValue = "<no value>"

// execute parses and runs text. Identifiers that are neither builtins,
// core functions nor extra are resolved as filters, then as tests.
func (c *Context) execute(name, text string, extra map[string]any, missingKey string) (string, error) {
	funcs := c.coreFuncs()
	for k, fn := range extra {
		funcs[k] = fn
	}

	idents, err := identifiers(name, text)
	if err != nil {
		return "", err
	}
	for _, id := range idents {
		if builtins[id] || funcs[id] != nil {
			continue
		}
		fn, err := c.pluginFunc(id)
		if err != nil {
			return "", derrors.NewPluginLookupError(id).WithPath(name)
		}
		funcs[id] = fn
	}

	tmpl, err := template.New(name).Option(missingKey).Funcs(funcs).Parse(text)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	if err := tmpl.Execute(&b, c.params); err != nil {
		return "", err
	}

	return b.String(), nil
}

// pluginFunc adapts the filter or test called id to a template function.
func (c *Context) pluginFunc(id string) (any, error) {
	if f, err := filters.Lookup(id); err == nil {
		return c.filterFunc(f), nil
	}
	check, err := formats.LookupTest(id)
	if err != nil {
		return nil, err
	}

	return func(v any) bool { return check(v) }, nil
}

func (c *Context) filterFunc(f filters.Func) func(args ...any) (any, error) {
	return func(args ...any) (any, error) {
		return f(c, args...)
	}
}

// coreFuncs are bound to the context and shadow plugins of the same name.
func (c *Context) coreFuncs() template.FuncMap {
	return template.FuncMap{
		"data": func(spec any, callParams ...map[string]any) ([]map[string]any, error) {
			return c.Data(spec, params.Merge(callParams...))
		},
		"render": c.Render,
		"include": func(name string) (string, error) {
			return c.RenderFile(name)
		},
		"filter": func(name string, args ...any) (any, error) {
			f, err := filters.Lookup(name)
			if err != nil {
				return nil, err
			}

			return f(c, args...)
		},
		"is":   c.test,
		"test": c.test,
		"abort": func(msg string) (string, error) {
			return "", fmt.Errorf("%w: %s", ErrAbort, msg)
		},
		"params": c.Params,
		"dump_params": func() (string, error) {
			out, err := yaml.Marshal(c.params)
			if err != nil {
				return "", err
			}

			return string(out), nil
		},
		"global": func(name string) (any, error) {
			v, ok := params.Get(c.Globals(), name)
			if !ok {
				return nil, fmt.Errorf("no such global: %s", name)
			}

			return v, nil
		},
		"globals": c.Globals,
		"dict":    dict,
		"list":    func(items ...any) []any { return items },
	}
}

func (c *Context) test(name string, v any) (bool, error) {
	check, err := formats.LookupTest(name)
	if err != nil {
		return false, err
	}

	return check(v), nil
}

func dict(pairs ...any) (map[string]any, error) {
	if len(pairs)%2 != 0 {
		return nil, fmt.Errorf("dict needs an even number of arguments")
	}
	out := make(map[string]any, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			return nil, fmt.Errorf("dict key %v is not a string", pairs[i])
		}
		out[key] = pairs[i+1]
	}

	return out, nil
}

// identifiers returns the function names called anywhere in text,
// including its define blocks.
func identifiers(name, text string) ([]string, error) {
	trees := map[string]*parse.Tree{}
	t := parse.New(name)
	t.Mode = parse.SkipFuncCheck | parse.ParseComments
	if _, err := t.Parse(text, "", "", trees); err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var out []string
	var walk func(n parse.Node)
	walk = func(n parse.Node) {
		switch x := n.(type) {
		case *parse.ListNode:
			if x == nil {
				return
			}
			for _, child := range x.Nodes {
				walk(child)
			}
		case *parse.ActionNode:
			walk(x.Pipe)
		case *parse.PipeNode:
			if x == nil {
				return
			}
			for _, cmd := range x.Cmds {
				walk(cmd)
			}
		case *parse.CommandNode:
			for _, arg := range x.Args {
				walk(arg)
			}
		case *parse.ChainNode:
			walk(x.Node)
		case *parse.IfNode:
			walkBranch(walk, &x.BranchNode)
		case *parse.RangeNode:
			walkBranch(walk, &x.BranchNode)
		case *parse.WithNode:
			walkBranch(walk, &x.BranchNode)
		case *parse.TemplateNode:
			walk(x.Pipe)
		case *parse.IdentifierNode:
			if !seen[x.Ident] {
				seen[x.Ident] = true
				out = append(out, x.Ident)
			}
		}
	}
	for _, tree := range trees {
		walk(tree.Root)
	}

	return out, nil
}

func walkBranch(walk func(parse.Node), b *parse.BranchNode) {
	walk(b.Pipe)
	walk(b.List)
	walk(b.ElseList)
}
