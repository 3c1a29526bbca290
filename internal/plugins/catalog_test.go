package plugins

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	derrors "github.com/jin-gizmo/docma/internal/errors"
)

func newTestCatalog(t *testing.T) (*Catalog, map[string]*int32) {
	t.Helper()
	c := NewCatalog()
	counts := map[string]*int32{}
	counter := func(key string) *int32 {
		var n int32
		counts[key] = &n

		return &n
	}

	c.DeclarePackage("things")
	rootN := counter("things")
	c.DeclareModule("things", "core", func(reg *Registrar) error {
		atomic.AddInt32(rootN, 1)

		return reg.Add("root-thing", Names("thing"), Types(TypeFilter))
	})

	c.DeclarePackage("things.au")
	auN := counter("things.au")
	c.DeclareModule("things.au", "ids", func(reg *Registrar) error {
		atomic.AddInt32(auN, 1)

		return reg.Add("au-abn", Names("abn"), Types(TypeFilter, TypeTest))
	})

	// things.ns has modules but no initializer so it is never navigable.
	nsN := counter("things.ns")
	c.DeclareModule("things.ns", "hidden", func(reg *Registrar) error {
		atomic.AddInt32(nsN, 1)

		return reg.Add("hidden", Names("hidden"))
	})

	return c, counts
}

func TestPackageResolverLoadsRootEagerly(t *testing.T) {
	c, counts := newTestCatalog(t)

	r, err := NewCatalogResolver(c, "things")
	require.NoError(t, err)
	assert.EqualValues(t, 1, *counts["things"])
	assert.EqualValues(t, 0, *counts["things.au"])

	p, err := r.Resolve("thing")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "root-thing", p.Func)
}

func TestPackageResolverLazySubNamespace(t *testing.T) {
	c, counts := newTestCatalog(t)
	r, err := NewCatalogResolver(c, "things")
	require.NoError(t, err)

	p, err := r.Resolve("au.abn")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.True(t, p.Types.Has(TypeTest))

	_, err = r.Resolve("au.abn")
	require.NoError(t, err)
	assert.EqualValues(t, 1, *counts["things.au"])
}

func TestPackageResolverMisses(t *testing.T) {
	c, counts := newTestCatalog(t)
	r, err := NewCatalogResolver(c, "things")
	require.NoError(t, err)

	for _, name := range []string{"ns.hidden", "core.thing", "au.nope", "nope", "au.", ".x"} {
		t.Run(name, func(t *testing.T) {
			p, err := r.Resolve(name)
			require.NoError(t, err)
			assert.Nil(t, p)
		})
	}
	assert.EqualValues(t, 0, *counts["things.ns"])
}

func TestPackageResolverUnknownNamespace(t *testing.T) {
	c, _ := newTestCatalog(t)

	_, err := NewCatalogResolver(c, "nothing")
	require.Error(t, err)
	assert.True(t, derrors.IsKind(err, derrors.KindPluginLookup))
	assert.Contains(t, err.Error(), "nothing")
}

func TestCatalogConcurrentFirstTouch(t *testing.T) {
	c, counts := newTestCatalog(t)
	r, err := NewCatalogResolver(c, "things")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := r.Resolve("au.abn")
			assert.NoError(t, err)
			assert.NotNil(t, p)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, *counts["things.au"])
}

func TestCatalogDuplicateRegistration(t *testing.T) {
	c := NewCatalog()
	c.DeclarePackage("x")

	require.NoError(t, c.Register("x", New(1, Names("a", "b"))))
	err := c.Register("x", New(2, Names("B")))
	require.ErrorContains(t, err, "already registered")

	require.NoError(t, c.Register("x", New(3, Names("b")), Override()))
	p, err := c.Get("x", "b")
	require.NoError(t, err)
	assert.Equal(t, 3, p.Func)

	require.Error(t, c.Register("x", New(4)))
}

func TestCatalogLoaderFailure(t *testing.T) {
	c := NewCatalog()
	c.DeclarePackage("bad")
	c.DeclareModule("bad", "broken", func(*Registrar) error {
		return errors.New("cannot initialise")
	})

	_, err := NewCatalogResolver(c, "bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.broken")
	assert.Contains(t, err.Error(), "cannot initialise")
}

func TestCatalogReset(t *testing.T) {
	c, counts := newTestCatalog(t)
	_, err := NewCatalogResolver(c, "things")
	require.NoError(t, err)

	c.Reset()
	p, err := c.Get("things", "thing")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.EqualValues(t, 2, *counts["things"])
	assert.Equal(t, []string{"things", "things.au"}, c.Namespaces())
}

func TestFamilyResolver(t *testing.T) {
	r := NewFamilyResolver("date", func(member string) *Plugin {
		if member != "dmy" {
			return nil
		}

		return New(member, Names("date."+member))
	})

	p, err := r.Resolve("date.dmy")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "dmy", p.Func)

	for _, name := range []string{"date.xyz", "date.", "date.a.b", "other.dmy", "date"} {
		p, err := r.Resolve(name)
		require.NoError(t, err)
		assert.Nil(t, p, name)
	}
}
