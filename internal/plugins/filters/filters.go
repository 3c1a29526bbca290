// Package filters provides the value transformers available in templates.
// Every filter receives its arguments with the piped value last, so
// {{ .amount | dollars 0 }} calls dollars(0, amount).
package filters

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/language"

	"github.com/jin-gizmo/docma/internal/logging"
	"github.com/jin-gizmo/docma/internal/plugins"
)

// Env is the rendering environment a filter may consult.
type Env interface {
	// Locale returns a POSIX style locale such as en_AU.
	Locale() string
}

// Func is a filter implementation. The filtered value is the last element
// of args.
type Func func(env Env, args ...any) (any, error)

// NamespaceAU holds Australian identifier filters.
const NamespaceAU = plugins.NamespaceFilters + ".au"

func init() {
	plugins.DeclarePackage(plugins.NamespaceFilters)
	plugins.DeclarePackage(NamespaceAU)

	plugins.DeclareModule(plugins.NamespaceFilters, "utility", loadUtility)
	plugins.DeclareModule(plugins.NamespaceFilters, "number", loadNumbers)
	plugins.DeclareModule(plugins.NamespaceFilters, "currency", loadCurrency)
	plugins.DeclareModule(plugins.NamespaceFilters, "phone", loadPhone)
	plugins.DeclareModule(plugins.NamespaceFilters, "dates", loadDates)
	plugins.DeclareModule(plugins.NamespaceFilters, "deprecated", loadDeprecated)
	plugins.DeclareModule(NamespaceAU, "company_ids", loadCompanyIDs)
}

var router = plugins.NewLazyRouter(func() (*plugins.Router, error) {
	pkg, err := plugins.NewPackageResolver(plugins.NamespaceFilters)
	if err != nil {
		return nil, err
	}

	return plugins.NewRouter("filters",
		[]plugins.Resolver{pkg, CurrencyFamily()},
		plugins.WithLogger(logging.Default().WithComponent("filters")),
	), nil
})

// Router returns the process-wide filter router.
func Router() *plugins.LazyRouter {
	return router
}

// Lookup resolves a filter by name.
func Lookup(name string) (Func, error) {
	p, err := router.Lookup(name)
	if err != nil {
		return nil, err
	}

	return plugins.As[Func](p)
}

func filter(fn Func, names ...string) *plugins.Plugin {
	return plugins.New(fn, plugins.Names(names...), plugins.Types(plugins.TypeFilter))
}

func register(reg *plugins.Registrar, ps ...*plugins.Plugin) error {
	for _, p := range ps {
		if err := reg.Register(p); err != nil {
			return err
		}
	}

	return nil
}

// split separates the filtered value from the leading arguments.
func split(name string, args []any, minArgs, maxArgs int) ([]any, any, error) {
	if len(args) == 0 {
		return nil, nil, fmt.Errorf("%s: no value to filter", name)
	}
	lead, value := args[:len(args)-1], args[len(args)-1]
	if len(lead) < minArgs || (maxArgs >= 0 && len(lead) > maxArgs) {
		return nil, nil, fmt.Errorf("%s: wrong number of arguments: %d", name, len(lead))
	}

	return lead, value, nil
}

// options separates key=value arguments from positional ones.
func options(args []any) ([]any, map[string]string) {
	var positional []any
	opts := map[string]string{}
	for _, a := range args {
		if s, ok := a.(string); ok {
			if k, v, found := strings.Cut(s, "="); found && k != "" && !strings.ContainsAny(k, " ") {
				opts[strings.ToLower(k)] = v

				continue
			}
		}
		positional = append(positional, a)
	}

	return positional, opts
}

// toString renders scalars the way a template would print them.
func toString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1e15 {
			return strconv.FormatFloat(x, 'f', 0, 64)
		}

		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		return x.String()
	}

	return fmt.Sprint(v)
}

func toInt(v any) (int, error) {
	switch x := v.(type) {
	case int:
		return x, nil
	case int64:
		return int(x), nil
	case float64:
		if x != math.Trunc(x) {
			return 0, fmt.Errorf("not an integer: %v", x)
		}

		return int(x), nil
	case string:
		return strconv.Atoi(strings.TrimSpace(x))
	}

	return 0, fmt.Errorf("not an integer: %v", v)
}

// isEmpty reports whether a filtered value counts as absent.
func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	}

	return false
}

// ParseLocale converts en_AU or en-AU into a language tag.
func ParseLocale(locale string) (language.Tag, error) {
	if locale == "" {
		return language.Und, fmt.Errorf("empty locale")
	}
	tag, err := language.Parse(strings.ReplaceAll(locale, "_", "-"))
	if err != nil {
		return language.Und, fmt.Errorf("bad locale %q: %w", locale, err)
	}

	return tag, nil
}

func envTag(env Env) language.Tag {
	if env == nil {
		return language.MustParse("en-AU")
	}
	tag, err := ParseLocale(env.Locale())
	if err != nil {
		return language.MustParse("en-AU")
	}

	return tag
}
