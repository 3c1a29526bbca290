package plugins

import (
	"fmt"
	"sort"
	"strings"
)

// Type tags the role a plugin can play. A plugin may carry several.
type Type string

const (
	TypeFilter    Type = "filter"
	TypeTest      Type = "test"
	TypeFormat    Type = "format"
	TypeGenerator Type = "generator"
	TypeImporter  Type = "importer"
	TypeFetcher   Type = "fetcher"
	TypeProvider  Type = "provider"
	TypeCompiler  Type = "compiler"
)

// TypeSet is a set of plugin type tags.
type TypeSet map[Type]struct{}

// Has reports whether t is in the set.
func (s TypeSet) Has(t Type) bool {
	_, ok := s[t]

	return ok
}

// List returns the tags in sorted order.
func (s TypeSet) List() []Type {
	out := make([]Type, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	return out
}

// Plugin is a named, typed unit of behaviour.
type Plugin struct {
	// Func is the callable. Its concrete type depends on the plugin type.
	Func any

	// Names holds the lower-cased aliases the plugin is registered under.
	Names []string

	// Types holds the roles the plugin serves.
	Types TypeSet

	// Deprecation, when set, is logged once per router on first resolution.
	Deprecation string
}

// Option configures a Plugin.
type Option func(*Plugin)

// Names adds aliases. Names are case-insensitive and stored lower-cased.
func Names(names ...string) Option {
	return func(p *Plugin) {
		for _, n := range names {
			n = strings.ToLower(strings.TrimSpace(n))
			if n != "" {
				p.Names = append(p.Names, n)
			}
		}
	}
}

// Types adds type tags.
func Types(types ...Type) Option {
	return func(p *Plugin) {
		for _, t := range types {
			p.Types[t] = struct{}{}
		}
	}
}

// Deprecated marks the plugin as deprecated with the given message.
func Deprecated(msg string) Option {
	return func(p *Plugin) {
		p.Deprecation = msg
	}
}

// New creates a plugin around fn.
func New(fn any, opts ...Option) *Plugin {
	p := &Plugin{Func: fn, Types: TypeSet{}}
	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Name returns the primary name of the plugin.
func (p *Plugin) Name() string {
	if len(p.Names) == 0 {
		return ""
	}

	return p.Names[0]
}

// IsDeprecated reports whether the plugin carries a deprecation message.
func (p *Plugin) IsDeprecated() bool {
	return p.Deprecation != ""
}

// String implements fmt.Stringer.
func (p *Plugin) String() string {
	return fmt.Sprintf("%s%v", p.Name(), p.Types.List())
}

// As returns the plugin's callable as F.
func As[F any](p *Plugin) (F, error) {
	var zero F
	if p == nil {
		return zero, fmt.Errorf("nil plugin")
	}
	f, ok := p.Func.(F)
	if !ok {
		return zero, fmt.Errorf("plugin %s has type %T, want %T", p.Name(), p.Func, zero)
	}

	return f, nil
}

// DeprecatedAlias returns a deprecated plugin sharing target's callable
// and types, registered under alias.
func DeprecatedAlias(alias, replacement string, target *Plugin) *Plugin {
	types := make([]Type, 0, len(target.Types))
	for t := range target.Types {
		types = append(types, t)
	}

	return New(target.Func,
		Names(alias),
		Types(types...),
		Deprecated(fmt.Sprintf("Plugin %s is deprecated. Use %s instead", alias, replacement)),
	)
}
