package datasrc

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	derrors "github.com/jin-gizmo/docma/internal/errors"
	"github.com/jin-gizmo/docma/internal/packager"
	"github.com/jin-gizmo/docma/internal/params"
	"github.com/jin-gizmo/docma/internal/schema"
)

// Supported placeholder styles. Dollar ($1, $2) is what lib/pq expects.
const (
	StyleNamed    = "named"
	StylePyformat = "pyformat"
	StyleQmark    = "qmark"
	StyleNumeric  = "numeric"
	StyleFormat   = "format"
	StyleDollar   = "dollar"
)

// QuerySpec is a parsed *.query.yaml file.
type QuerySpec struct {
	Name        string `yaml:"-"`
	Description string `yaml:"description"`
	Query       struct {
		Text       string `yaml:"text"`
		Paramstyle string `yaml:"paramstyle"`
	} `yaml:"query"`
	Parameters struct {
		Defaults map[string]any `yaml:"defaults"`
	} `yaml:"parameters"`
	RowSchema map[string]any `yaml:"row_schema"`
	Options   struct {
		RowLimit int `yaml:"row_limit"`
	} `yaml:"options"`

	rows *schema.Validator
}

// Prepared is query text with its placeholders bound.
type Prepared struct {
	Text string
	Args []any
}

// LoadQuery reads and validates a query spec from the package.
func LoadQuery(pkg *packager.Reader, name string) (*QuerySpec, error) {
	data, err := pkg.ReadFile(name)
	if err != nil {
		return nil, derrors.Retag(err, derrors.KindDataProvider, derrors.CodeNotFound)
	}

	return ParseQuery(name, data)
}

// ParseQuery validates and decodes query spec source.
func ParseQuery(name string, data []byte) (*QuerySpec, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, derrors.NewDataProviderError(derrors.CodeInvalid, "Bad query specification").
			WithPath(name).WithCause(err)
	}
	v, err := schema.Builtin("query")
	if err != nil {
		return nil, err
	}
	if err := v.ValidateAs(name, params.Normalize(doc)); err != nil {
		return nil, err
	}

	q := &QuerySpec{Name: name}
	if err := yaml.Unmarshal(data, q); err != nil {
		return nil, derrors.NewDataProviderError(derrors.CodeInvalid, "Bad query specification").
			WithPath(name).WithCause(err)
	}
	q.RowSchema, _ = params.Normalize(q.RowSchema).(map[string]any)
	if len(q.RowSchema) > 0 {
		if q.rows, err = schema.Compile(name+"/row_schema", q.RowSchema); err != nil {
			return nil, err
		}
	}

	return q, nil
}

// placeholders emits the placeholder for each parameter reference in
// order and collects the bound values.
type placeholders struct {
	style string
	args  []any
	index map[string]int
}

func newPlaceholders(style string) (*placeholders, error) {
	switch style {
	case StyleNamed, StylePyformat, StyleQmark, StyleNumeric, StyleFormat, StyleDollar:
	default:
		return nil, derrors.NewDataProviderError(derrors.CodeInvalid, "Unknown paramstyle: %s", style)
	}

	return &placeholders{style: style, index: map[string]int{}}, nil
}

func (p *placeholders) add(name string, value any) string {
	switch p.style {
	case StyleNamed, StylePyformat:
		if _, seen := p.index[name]; !seen {
			p.index[name] = len(p.args)
			p.args = append(p.args, sql.Named(name, value))
		}
		if p.style == StyleNamed {
			return ":" + name
		}

		return "%(" + name + ")s"
	case StyleNumeric, StyleDollar:
		i, seen := p.index[name]
		if !seen {
			i = len(p.args)
			p.index[name] = i
			p.args = append(p.args, value)
		}
		if p.style == StyleNumeric {
			return ":" + strconv.Itoa(i+1)
		}

		return "$" + strconv.Itoa(i+1)
	}

	p.args = append(p.args, value)
	if p.style == StyleQmark {
		return "?"
	}

	return "%s"
}

// Prepare renders the query text. Inside it {{ param "a.b" }} emits a
// placeholder called b bound to the value at a.b in the parameters:
// query defaults, then context parameters, then call parameters.
func (q *QuerySpec) Prepare(env Env, callParams map[string]any, style string) (Prepared, error) {
	if style == "" {
		style = q.Query.Paramstyle
	}
	ph, err := newPlaceholders(style)
	if err != nil {
		return Prepared{}, err
	}

	values := params.Merge(q.Parameters.Defaults, env.Params(), callParams)
	param := func(key string) (string, error) {
		v, ok := params.Get(values, key)
		if !ok {
			return "", fmt.Errorf("Unknown query parameter: %s", key)
		}

		return ph.add(key[strings.LastIndex(key, ".")+1:], v), nil
	}

	text, err := env.RenderWithFuncs(q.Query.Text, map[string]any{"param": param})
	if err != nil {
		return Prepared{}, derrors.NewDataProviderError(derrors.CodeInvalid, "Cannot prepare query").
			WithPath(q.Name).WithCause(err)
	}

	return Prepared{Text: text, Args: ph.args}, nil
}

// Check enforces the row limit and row schema.
func (q *QuerySpec) Check(rows []map[string]any) error {
	if q.Options.RowLimit > 0 && len(rows) > q.Options.RowLimit {
		return q.rowLimitExceeded()
	}
	if q.rows == nil {
		return nil
	}
	for i, row := range rows {
		if err := q.rows.Validate(row); err != nil {
			return derrors.NewDataProviderError(derrors.CodeInvalid, "Row %d does not match row schema", i).
				WithPath(q.Name).WithCause(err)
		}
	}

	return nil
}

func (q *QuerySpec) rowLimitExceeded() error {
	return derrors.NewDataProviderError(derrors.CodeTooLarge, "Row limit %d exceeded", q.Options.RowLimit).
		WithPath(q.Name)
}
