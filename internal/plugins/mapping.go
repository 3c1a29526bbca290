package plugins

import "sort"

// MappingResolver adapts an existing name to callable table. Values may
// be *Plugin or a bare callable. Mutations act on the underlying map.
type MappingResolver struct {
	m     map[string]any
	types []Type
}

// NewMappingResolver wraps m. Bare callables resolved from the map are
// tagged with the given types.
func NewMappingResolver(m map[string]any, types ...Type) *MappingResolver {
	if m == nil {
		m = make(map[string]any)
	}

	return &MappingResolver{m: m, types: types}
}

// Resolve implements Resolver.
func (r *MappingResolver) Resolve(name string) (*Plugin, error) {
	v, ok := r.m[name]
	if !ok || v == nil {
		return nil, nil
	}
	if p, ok := v.(*Plugin); ok {
		return p, nil
	}

	return New(v, Names(name), Types(r.types...)), nil
}

// Get returns the raw value stored under name.
func (r *MappingResolver) Get(name string) (any, bool) {
	v, ok := r.m[name]

	return v, ok
}

// Set stores v under name.
func (r *MappingResolver) Set(name string, v any) {
	r.m[name] = v
}

// Delete removes name.
func (r *MappingResolver) Delete(name string) {
	delete(r.m, name)
}

// Contains reports whether name is present.
func (r *MappingResolver) Contains(name string) bool {
	_, ok := r.m[name]

	return ok
}

// Len returns the number of entries.
func (r *MappingResolver) Len() int {
	return len(r.m)
}

// Keys returns the entry names in sorted order.
func (r *MappingResolver) Keys() []string {
	keys := make([]string, 0, len(r.m))
	for k := range r.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return keys
}
