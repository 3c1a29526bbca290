// Package params manages the render parameter tree: a nested structure of
// map[string]any, []any and scalars, assembled from layered sources.
package params

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrNotDict is returned when a merge layer or path segment is not a map.
var ErrNotDict = errors.New("expected a dictionary")

// Normalize converts decoded YAML/JSON values into the canonical tree
// representation: map[string]any, []any and scalars.
func Normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = Normalize(val)
		}

		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = Normalize(val)
		}

		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = Normalize(val)
		}

		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = Normalize(val)
		}

		return out
	case []string:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = val
		}

		return out
	default:
		return v
	}
}

// DeepCopy returns a copy of v sharing no maps or slices with it.
func DeepCopy(v any) any {
	return Normalize(v)
}

// Merge deep-merges layers left to right. Where both sides hold a map the
// merge recurses; in every other case the later value replaces the earlier
// one. Inputs are never modified.
func Merge(layers ...map[string]any) map[string]any {
	out := make(map[string]any)
	for _, layer := range layers {
		mergeInto(out, layer)
	}

	return out
}

// MergeAny is Merge for layers of unknown type. Every layer must be a map.
func MergeAny(layers ...any) (map[string]any, error) {
	maps := make([]map[string]any, 0, len(layers))
	for i, l := range layers {
		if l == nil {
			continue
		}
		m, ok := Normalize(l).(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: layer %d is %T", ErrNotDict, i, l)
		}
		maps = append(maps, m)
	}

	return Merge(maps...), nil
}

func mergeInto(dst, src map[string]any) {
	for k, sv := range src {
		sm, srcIsMap := sv.(map[string]any)
		dm, dstIsMap := dst[k].(map[string]any)
		if srcIsMap && dstIsMap {
			mergeInto(dm, sm)

			continue
		}
		dst[k] = DeepCopy(sv)
	}
}

// Get returns the value at a dotted key.
func Get(tree map[string]any, key string) (any, bool) {
	var cur any = tree
	for _, part := range strings.Split(key, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}

	return cur, true
}

// Set stores value at a dotted key. Every intermediate key must already
// exist and hold a map.
func Set(tree map[string]any, key string, value any) error {
	parts := strings.Split(key, ".")
	cur := tree
	for i, part := range parts[:len(parts)-1] {
		next, ok := cur[part]
		if !ok {
			return fmt.Errorf("no such key: %s", strings.Join(parts[:i+1], "."))
		}
		m, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("%w at %s", ErrNotDict, strings.Join(parts[:i+1], "."))
		}
		cur = m
	}
	cur[parts[len(parts)-1]] = value

	return nil
}

// Nest turns a dotted key into nested maps holding value at the leaf.
func Nest(key string, value any) map[string]any {
	parts := strings.Split(key, ".")
	var v = value
	for i := len(parts) - 1; i >= 0; i-- {
		v = map[string]any{parts[i]: v}
	}

	return v.(map[string]any)
}

// Keys returns the sorted top-level keys of tree.
func Keys(tree map[string]any) []string {
	keys := make([]string, 0, len(tree))
	for k := range tree {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return keys
}
