package plugins

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	derrors "github.com/jin-gizmo/docma/internal/errors"
	"github.com/jin-gizmo/docma/internal/logging"
)

func TestRouterFirstResolverWins(t *testing.T) {
	first := NewMappingResolver(map[string]any{"x": "first"})
	second := NewMappingResolver(map[string]any{"x": "second", "y": "second"})
	r := NewRouter("test", []Resolver{first, second}, WithLogger(logging.Discard()))

	p, err := r.Lookup("x")
	require.NoError(t, err)
	assert.Equal(t, "first", p.Func)

	p, err = r.Lookup("Y")
	require.NoError(t, err)
	assert.Equal(t, "second", p.Func)
}

func TestRouterCachesHitsAndMisses(t *testing.T) {
	calls := map[string]int{}
	res := ResolverFunc(func(name string) (*Plugin, error) {
		calls[name]++
		if name == "known" {
			return New(func() {}, Names("known")), nil
		}

		return nil, nil
	})
	r := NewRouter("test", []Resolver{res}, WithLogger(logging.Discard()))

	for range 3 {
		_, err := r.Lookup("KNOWN")
		require.NoError(t, err)
		_, err = r.Lookup("unknown")
		require.Error(t, err)
	}

	assert.Equal(t, 1, calls["known"])
	assert.Equal(t, 1, calls["unknown"])

	r.ClearCache()
	_, _ = r.Lookup("known")
	assert.Equal(t, 2, calls["known"])
}

func TestRouterMissIsPluginLookupError(t *testing.T) {
	r := NewRouter("filters", nil, WithLogger(logging.Discard()))

	_, err := r.Lookup("No-Such")
	require.Error(t, err)
	assert.True(t, derrors.IsKind(err, derrors.KindPluginLookup))
	assert.True(t, errors.Is(err, derrors.ErrNotFound))
	assert.Contains(t, err.Error(), "no-such")
	assert.False(t, r.Contains("no-such"))
}

func TestRouterResolverErrorIsNotCached(t *testing.T) {
	fail := true
	res := ResolverFunc(func(name string) (*Plugin, error) {
		if fail {
			return nil, errors.New("broken loader")
		}

		return New(1, Names(name)), nil
	})
	r := NewRouter("test", []Resolver{res}, WithLogger(logging.Discard()))

	_, err := r.Lookup("a")
	require.ErrorContains(t, err, "broken loader")

	fail = false
	p, err := r.Lookup("a")
	require.NoError(t, err)
	assert.Equal(t, 1, p.Func)
}

func TestRouterDeprecationWarnsOnce(t *testing.T) {
	target := New(func(v any) string { return "" }, Names("abn"), Types(TypeFilter))
	m := NewMappingResolver(map[string]any{
		"abn": DeprecatedAlias("ABN", "au.abn", target),
	})

	rec := logging.NewRecorder()
	var hooked []string
	r := NewRouter("filters", []Resolver{m},
		WithLogger(rec),
		WithDeprecationHook(func(name, msg string) { hooked = append(hooked, msg) }),
	)

	for range 3 {
		p, err := r.Lookup("ABN")
		require.NoError(t, err)
		assert.True(t, p.IsDeprecated())
	}

	assert.Equal(t, []string{"Plugin ABN is deprecated. Use au.abn instead"}, hooked)
	assert.Equal(t, 1, rec.Count(logging.LevelWarn, "Plugin ABN is deprecated"))

	// A separate router warns again.
	r2 := NewRouter("filters", []Resolver{m}, WithLogger(rec))
	_, err := r2.Lookup("abn")
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Count(logging.LevelWarn, "Plugin ABN is deprecated"))
}

func TestLazyRouter(t *testing.T) {
	builds := 0
	lr := NewLazyRouter(func() (*Router, error) {
		builds++

		return NewRouter("lazy", []Resolver{NewMappingResolver(map[string]any{"a": 1})},
			WithLogger(logging.Discard())), nil
	})

	_, err := lr.Lookup("a")
	require.NoError(t, err)
	_, err = lr.Lookup("a")
	require.NoError(t, err)
	assert.Equal(t, 1, builds)

	lr.Reset()
	_, err = lr.Lookup("a")
	require.NoError(t, err)
	assert.Equal(t, 2, builds)
}

func TestReset(t *testing.T) {
	version := "v1"
	DeclarePackage("gadgets")
	DeclareModule("gadgets", "core", func(reg *Registrar) error {
		return reg.Add(version, Names("gadget"), Types(TypeGenerator))
	})
	lr := NewLazyRouter(func() (*Router, error) {
		pkg, err := NewPackageResolver("gadgets")
		if err != nil {
			return nil, err
		}

		return NewRouter("gadgets", []Resolver{pkg}, WithLogger(logging.Discard())), nil
	})
	t.Cleanup(Reset)

	p, err := lr.Lookup("gadget")
	require.NoError(t, err)
	assert.Equal(t, "v1", p.Func)

	version = "v2"
	p, err = lr.Lookup("gadget")
	require.NoError(t, err)
	assert.Equal(t, "v1", p.Func, "loaded modules and routers are cached")

	Reset()
	p, err = lr.Lookup("gadget")
	require.NoError(t, err)
	assert.Equal(t, "v2", p.Func)

	version = "v3"
	DefaultCatalog().Reset()
	p, err = lr.Lookup("gadget")
	require.NoError(t, err)
	assert.Equal(t, "v3", p.Func)
}
