package plugins

import (
	"context"
	"strings"
	"sync"

	derrors "github.com/jin-gizmo/docma/internal/errors"
	"github.com/jin-gizmo/docma/internal/logging"
	"github.com/jin-gizmo/docma/internal/monitoring"
)

// Resolver maps a lower-cased plugin name to a plugin. A resolver that
// does not know a name returns (nil, nil); errors are reserved for
// internal failures such as a broken namespace loader.
type Resolver interface {
	Resolve(name string) (*Plugin, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(name string) (*Plugin, error)

// Resolve implements Resolver.
func (f ResolverFunc) Resolve(name string) (*Plugin, error) {
	return f(name)
}

// Router consults an ordered chain of resolvers. The first resolver that
// yields a plugin wins and the outcome, hit or miss, is cached for the
// lifetime of the router.
type Router struct {
	name      string
	resolvers []Resolver
	logger    logging.Logger
	onDeprec  func(name, msg string)

	mu     sync.Mutex
	cache  map[string]*Plugin
	warned map[string]bool
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithLogger sets the logger used for deprecation warnings.
func WithLogger(l logging.Logger) RouterOption {
	return func(r *Router) {
		r.logger = l
	}
}

// WithDeprecationHook registers a callback invoked alongside the
// deprecation warning.
func WithDeprecationHook(fn func(name, msg string)) RouterOption {
	return func(r *Router) {
		r.onDeprec = fn
	}
}

// NewRouter creates a router over the given resolvers.
func NewRouter(name string, resolvers []Resolver, opts ...RouterOption) *Router {
	r := &Router{
		name:      name,
		resolvers: resolvers,
		cache:     make(map[string]*Plugin),
		warned:    make(map[string]bool),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logging.Default()
	}
	r.logger = r.logger.WithComponent("plugins")

	return r
}

// Name returns the router's name.
func (r *Router) Name() string {
	return r.name
}

// Lookup resolves name to a plugin.
func (r *Router) Lookup(name string) (*Plugin, error) {
	key := strings.ToLower(strings.TrimSpace(name))

	r.mu.Lock()
	defer r.mu.Unlock()

	p, cached := r.cache[key]
	if !cached {
		var err error
		p, err = r.resolve(key)
		if err != nil {
			return nil, err
		}
		r.cache[key] = p
		monitoring.PluginLookup(r.name, p != nil)
	}

	if p == nil {
		return nil, derrors.NewPluginLookupError(key).WithContext("router", r.name)
	}

	if p.IsDeprecated() && !r.warned[key] {
		r.warned[key] = true
		r.logger.Warn(context.Background(), nil, p.Deprecation, "router", r.name, "plugin", key)
		if r.onDeprec != nil {
			r.onDeprec(key, p.Deprecation)
		}
	}

	return p, nil
}

// Contains reports whether name resolves.
func (r *Router) Contains(name string) bool {
	p, err := r.Lookup(name)

	return err == nil && p != nil
}

// ClearCache forgets every cached resolution and deprecation warning.
func (r *Router) ClearCache() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[string]*Plugin)
	r.warned = make(map[string]bool)
}

func (r *Router) resolve(key string) (*Plugin, error) {
	for _, res := range r.resolvers {
		p, err := res.Resolve(key)
		if err != nil {
			return nil, err
		}
		if p != nil {
			return p, nil
		}
	}

	return nil, nil
}

// LazyRouter builds a router on first use. Dispatch packages keep one as
// their process-wide router.
type LazyRouter struct {
	mu    sync.Mutex
	build func() (*Router, error)
	r     *Router
}

var lazyRouters struct {
	mu  sync.Mutex
	all []*LazyRouter
}

// NewLazyRouter wraps a router constructor. The router is dropped by Reset.
func NewLazyRouter(build func() (*Router, error)) *LazyRouter {
	l := &LazyRouter{build: build}
	lazyRouters.mu.Lock()
	lazyRouters.all = append(lazyRouters.all, l)
	lazyRouters.mu.Unlock()

	return l
}

// Get returns the router, building it if necessary. A failed build is
// retried on the next call.
func (l *LazyRouter) Get() (*Router, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.r != nil {
		return l.r, nil
	}
	r, err := l.build()
	if err != nil {
		return nil, err
	}
	l.r = r

	return r, nil
}

// Lookup resolves name through the underlying router.
func (l *LazyRouter) Lookup(name string) (*Plugin, error) {
	r, err := l.Get()
	if err != nil {
		return nil, err
	}

	return r.Lookup(name)
}

// Reset drops the built router so the next use rebuilds it.
func (l *LazyRouter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.r = nil
}

// Reset clears the default catalog and drops every lazy router, so the
// next lookup reloads builtin modules and sees plugins registered since.
func Reset() {
	defaultCatalog.Reset()
}

func resetLazyRouters() {
	lazyRouters.mu.Lock()
	all := append([]*LazyRouter(nil), lazyRouters.all...)
	lazyRouters.mu.Unlock()
	for _, l := range all {
		l.Reset()
	}
}
