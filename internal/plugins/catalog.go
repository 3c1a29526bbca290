package plugins

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	derrors "github.com/jin-gizmo/docma/internal/errors"
)

// Well-known root namespaces.
const (
	NamespaceFilters    = "filters"
	NamespaceTests      = "tests"
	NamespaceFormats    = "formats"
	NamespaceGenerators = "generators"
	NamespaceImporters  = "importers"
	NamespaceFetchers   = "fetchers"
	NamespaceProviders  = "providers"
	NamespaceCompilers  = "compilers"
)

// Loader is a module's self-registration entry point. It runs the first
// time a lookup touches the module's namespace.
type Loader func(reg *Registrar) error

type module struct {
	name   string
	loader Loader
}

type namespace struct {
	name    string
	pkg     bool
	modules []module

	loadMu  sync.Mutex
	loaded  bool
	loadErr error
}

// Catalog is a tree of dotted namespaces holding registered plugins.
// Namespaces declared as packages are navigable; their modules load
// lazily, once, on first touch.
type Catalog struct {
	mu         sync.RWMutex
	namespaces map[string]*namespace
	plugins    map[string]map[string]*Plugin
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		namespaces: make(map[string]*namespace),
		plugins:    make(map[string]map[string]*Plugin),
	}
}

var defaultCatalog = NewCatalog()

// DefaultCatalog returns the process-wide catalog populated by init
// functions of the builtin plugin packages.
func DefaultCatalog() *Catalog {
	return defaultCatalog
}

// DeclarePackage marks ns as a navigable namespace in the default catalog.
func DeclarePackage(ns string) {
	defaultCatalog.DeclarePackage(ns)
}

// DeclareModule adds a self-registering module to ns in the default catalog.
func DeclareModule(ns, name string, loader Loader) {
	defaultCatalog.DeclareModule(ns, name, loader)
}

func (c *Catalog) ns(name string) *namespace {
	n, ok := c.namespaces[name]
	if !ok {
		n = &namespace{name: name}
		c.namespaces[name] = n
	}

	return n
}

// DeclarePackage marks ns as a navigable namespace.
func (c *Catalog) DeclarePackage(ns string) {
	ns = strings.ToLower(ns)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ns(ns).pkg = true
}

// DeclareModule adds a module to ns. Modules in a namespace that is never
// declared as a package are never loaded.
func (c *Catalog) DeclareModule(ns, name string, loader Loader) {
	ns = strings.ToLower(ns)
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.ns(ns)
	n.modules = append(n.modules, module{name: name, loader: loader})
}

// IsPackage reports whether ns is a declared package.
func (c *Catalog) IsPackage(ns string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n, ok := c.namespaces[strings.ToLower(ns)]

	return ok && n.pkg
}

// Namespaces returns every declared package namespace in sorted order.
func (c *Catalog) Namespaces() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []string
	for name, n := range c.namespaces {
		if n.pkg {
			out = append(out, name)
		}
	}
	sort.Strings(out)

	return out
}

// RegisterOption alters registration behaviour.
type RegisterOption func(*registerOpts)

type registerOpts struct {
	override bool
}

// Override allows a registration to replace an existing name.
func Override() RegisterOption {
	return func(o *registerOpts) {
		o.override = true
	}
}

// Register adds p to ns under every one of its names.
func (c *Catalog) Register(ns string, p *Plugin, opts ...RegisterOption) error {
	var o registerOpts
	for _, opt := range opts {
		opt(&o)
	}
	if p == nil || len(p.Names) == 0 {
		return fmt.Errorf("plugin registered in %s has no names", ns)
	}
	ns = strings.ToLower(ns)

	c.mu.Lock()
	defer c.mu.Unlock()

	table, ok := c.plugins[ns]
	if !ok {
		table = make(map[string]*Plugin)
		c.plugins[ns] = table
	}
	if !o.override {
		for _, name := range p.Names {
			if _, exists := table[name]; exists {
				return fmt.Errorf("plugin %s.%s already registered", ns, name)
			}
		}
	}
	for _, name := range p.Names {
		table[name] = p
	}

	return nil
}

// Get returns the plugin registered directly in ns under name, loading the
// namespace first if needed.
func (c *Catalog) Get(ns, name string) (*Plugin, error) {
	ns = strings.ToLower(ns)
	if err := c.Load(ns); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.plugins[ns][strings.ToLower(name)], nil
}

// Load runs the modules of ns if they have not run yet. Concurrent callers
// wait for the single winner and share its result.
func (c *Catalog) Load(ns string) error {
	c.mu.RLock()
	n, ok := c.namespaces[ns]
	c.mu.RUnlock()
	if !ok || !n.pkg {
		return nil
	}

	n.loadMu.Lock()
	defer n.loadMu.Unlock()
	if n.loaded {
		return n.loadErr
	}

	c.mu.RLock()
	modules := append([]module(nil), n.modules...)
	c.mu.RUnlock()

	reg := &Registrar{catalog: c, ns: ns}
	for _, m := range modules {
		if err := m.loader(reg); err != nil {
			n.loadErr = &derrors.DocmaError{
				Kind:    derrors.KindPluginLookup,
				Code:    derrors.CodeUnknown,
				Message: fmt.Sprintf("Cannot load plugin module %s.%s", ns, m.name),
				Cause:   err,
			}

			break
		}
	}
	n.loaded = true

	return n.loadErr
}

// Reset forgets every registered plugin and load state. Declarations made
// by init functions survive so namespaces load again on next touch.
// Resetting the default catalog also drops every lazy router.
func (c *Catalog) Reset() {
	c.mu.Lock()
	names := make([]*namespace, 0, len(c.namespaces))
	for _, n := range c.namespaces {
		names = append(names, n)
	}
	c.plugins = make(map[string]map[string]*Plugin)
	c.mu.Unlock()

	for _, n := range names {
		n.loadMu.Lock()
		n.loaded = false
		n.loadErr = nil
		n.loadMu.Unlock()
	}
	if c == defaultCatalog {
		resetLazyRouters()
	}
}

// Registrar is handed to module loaders and registers into one namespace.
type Registrar struct {
	catalog *Catalog
	ns      string
}

// Namespace returns the namespace being populated.
func (r *Registrar) Namespace() string {
	return r.ns
}

// Register adds a plugin to the namespace.
func (r *Registrar) Register(p *Plugin, opts ...RegisterOption) error {
	return r.catalog.Register(r.ns, p, opts...)
}

// Add builds and registers a plugin in one call.
func (r *Registrar) Add(fn any, opts ...Option) error {
	return r.Register(New(fn, opts...))
}

// PackageResolver resolves dotted names against a catalog namespace.
// Looking up a.b.name loads <root>.a and <root>.a.b on demand.
type PackageResolver struct {
	catalog *Catalog
	root    string
}

// NewPackageResolver creates a resolver rooted at ns in the default
// catalog. The root namespace must be declared and is loaded immediately.
func NewPackageResolver(ns string) (*PackageResolver, error) {
	return NewCatalogResolver(defaultCatalog, ns)
}

// NewCatalogResolver is NewPackageResolver against an explicit catalog.
func NewCatalogResolver(c *Catalog, ns string) (*PackageResolver, error) {
	ns = strings.ToLower(ns)
	if !c.IsPackage(ns) {
		return nil, &derrors.DocmaError{
			Kind:    derrors.KindPluginLookup,
			Code:    derrors.CodeUnknown,
			Message: "Unknown plugin namespace: " + ns,
		}
	}
	if err := c.Load(ns); err != nil {
		return nil, err
	}

	return &PackageResolver{catalog: c, root: ns}, nil
}

// Resolve implements Resolver.
func (r *PackageResolver) Resolve(name string) (*Plugin, error) {
	parts := strings.Split(strings.ToLower(name), ".")
	leaf := parts[len(parts)-1]
	if leaf == "" {
		return nil, nil
	}

	ns := r.root
	for _, part := range parts[:len(parts)-1] {
		if part == "" {
			return nil, nil
		}
		ns += "." + part
		if !r.catalog.IsPackage(ns) {
			return nil, nil
		}
		if err := r.catalog.Load(ns); err != nil {
			return nil, err
		}
	}

	return r.catalog.Get(ns, leaf)
}

// FamilyResolver resolves computed names of the form <prefix>.<member>.
// Build returns nil for members it does not recognise.
type FamilyResolver struct {
	prefix string
	build  func(member string) *Plugin
}

// NewFamilyResolver creates a computed-name resolver.
func NewFamilyResolver(prefix string, build func(member string) *Plugin) *FamilyResolver {
	return &FamilyResolver{prefix: strings.ToLower(prefix) + ".", build: build}
}

// Resolve implements Resolver.
func (r *FamilyResolver) Resolve(name string) (*Plugin, error) {
	member, ok := strings.CutPrefix(name, r.prefix)
	if !ok || member == "" || strings.Contains(member, ".") {
		return nil, nil
	}

	return r.build(member), nil
}
