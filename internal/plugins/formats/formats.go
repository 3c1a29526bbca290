// Package formats provides format checkers. A checker reports whether a
// value conforms to a named format; the same checkers back the "format"
// keyword of JSON schemas and the "is" template test.
//
// Checkers live in the "formats" plugin namespace. Australian identifiers
// live in "formats.au", date orders are computed ("date.dmy") and the JSON
// schema builtins ("email", "ipv4", ...) are resolved last.
package formats

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/jin-gizmo/docma/internal/logging"
	"github.com/jin-gizmo/docma/internal/plugins"
)

// Checker reports whether v has the format.
type Checker func(v any) bool

// NamespaceAU holds Australian identifier checkers.
const NamespaceAU = plugins.NamespaceFormats + ".au"

func init() {
	plugins.DeclarePackage(plugins.NamespaceFormats)
	plugins.DeclarePackage(NamespaceAU)
	plugins.DeclarePackage(plugins.NamespaceTests)

	plugins.DeclareModule(plugins.NamespaceFormats, "utility", loadUtility)
	plugins.DeclareModule(plugins.NamespaceFormats, "deprecated", loadDeprecated)
	plugins.DeclareModule(NamespaceAU, "company_ids", loadCompanyIDs)
	plugins.DeclareModule(NamespaceAU, "industry", loadIndustry)
	plugins.DeclareModule(plugins.NamespaceTests, "core", loadTests)
}

var formatRouter = plugins.NewLazyRouter(func() (*plugins.Router, error) {
	pkg, err := plugins.NewPackageResolver(plugins.NamespaceFormats)
	if err != nil {
		return nil, err
	}

	return plugins.NewRouter("formats",
		[]plugins.Resolver{pkg, DateFamily(), BuiltinResolver{}},
		plugins.WithLogger(logging.Default().WithComponent("formats")),
	), nil
})

var testRouter = plugins.NewLazyRouter(func() (*plugins.Router, error) {
	tests, err := plugins.NewPackageResolver(plugins.NamespaceTests)
	if err != nil {
		return nil, err
	}
	pkg, err := plugins.NewPackageResolver(plugins.NamespaceFormats)
	if err != nil {
		return nil, err
	}

	return plugins.NewRouter("tests",
		[]plugins.Resolver{tests, pkg, DateFamily(), BuiltinResolver{}},
		plugins.WithLogger(logging.Default().WithComponent("tests")),
	), nil
})

// Router returns the process-wide format checker router.
func Router() *plugins.LazyRouter {
	return formatRouter
}

// TestRouter returns the process-wide router for template tests. It
// resolves tests first and falls back to every format checker.
func TestRouter() *plugins.LazyRouter {
	return testRouter
}

// Lookup resolves a format checker by name.
func Lookup(name string) (Checker, error) {
	return lookup(formatRouter, name)
}

// LookupTest resolves a template test by name.
func LookupTest(name string) (Checker, error) {
	return lookup(testRouter, name)
}

func lookup(r *plugins.LazyRouter, name string) (Checker, error) {
	p, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}

	return plugins.As[Checker](p)
}

func checker(fn Checker, names ...string) *plugins.Plugin {
	return plugins.New(fn,
		plugins.Names(names...),
		plugins.Types(plugins.TypeFormat, plugins.TypeTest),
	)
}

// text renders scalar values as the string a user would have typed.
// Integral floats lose their fractional part so 51824753556 stays intact.
func text(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case json.Number:
		return x.String(), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case int32:
		return strconv.FormatInt(int64(x), 10), true
	case uint64:
		return strconv.FormatUint(x, 10), true
	case float64:
		if x == math.Trunc(x) && !math.IsInf(x, 0) {
			return strconv.FormatFloat(x, 'f', 0, 64), true
		}

		return strconv.FormatFloat(x, 'f', -1, 64), true
	case fmt.Stringer:
		return x.String(), true
	}

	return "", false
}

// digits extracts the digits of v ignoring spaces. Any other character
// makes it fail.
func digits(v any) ([]int, bool) {
	s, ok := text(v)
	if !ok {
		return nil, false
	}
	out := make([]int, 0, len(s))
	for _, r := range strings.ReplaceAll(s, " ", "") {
		if r < '0' || r > '9' {
			return nil, false
		}
		out = append(out, int(r-'0'))
	}

	return out, true
}
