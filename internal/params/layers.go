package params

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Sources describes the layered inputs of a render parameter tree, from
// lowest to highest precedence: Files, then Pairs, then Lists.
type Sources struct {
	// Files are YAML or JSON documents holding a mapping.
	Files []string

	// Pairs are key=value strings. Dotted keys produce nested maps.
	Pairs []string

	// Lists are name=source strings. Each line of source becomes one list
	// item stored at name. A source of "-" reads standard input.
	Lists []string

	// Stdin is used for "-" list sources. Defaults to os.Stdin.
	Stdin io.Reader
}

// Build assembles the tree on top of base, which has the lowest precedence.
func (s Sources) Build(base map[string]any) (map[string]any, error) {
	layers := []map[string]any{base}

	for _, f := range s.Files {
		m, err := LoadFile(f)
		if err != nil {
			return nil, err
		}
		layers = append(layers, m)
	}

	for _, p := range s.Pairs {
		m, err := ParsePair(p)
		if err != nil {
			return nil, err
		}
		layers = append(layers, m)
	}

	stdin := s.Stdin
	if stdin == nil {
		stdin = os.Stdin
	}
	stdinUsed := false
	for _, l := range s.Lists {
		name, src, ok := strings.Cut(l, "=")
		if !ok || name == "" || src == "" {
			return nil, fmt.Errorf("bad list specification %q: expected name=source", l)
		}
		var r io.Reader
		if src == "-" {
			if stdinUsed {
				return nil, fmt.Errorf("standard input can only be used for one list")
			}
			stdinUsed = true
			r = stdin
		} else {
			f, err := os.Open(src)
			if err != nil {
				return nil, fmt.Errorf("list %s: %w", name, err)
			}
			defer f.Close()
			r = f
		}
		m, err := ReadList(name, r)
		if err != nil {
			return nil, err
		}
		layers = append(layers, m)
	}

	return Merge(layers...), nil
}

// LoadFile reads a YAML or JSON file that must hold a mapping.
func LoadFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return m, nil
}

// Decode parses YAML (and therefore JSON) text holding a mapping. Empty
// input yields an empty map.
func Decode(data []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return map[string]any{}, nil
	}
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	m, ok := Normalize(v).(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: got %T", ErrNotDict, v)
	}

	return m, nil
}

// ParsePair converts "a.b=c" into {"a": {"b": "c"}}.
func ParsePair(s string) (map[string]any, error) {
	key, value, ok := strings.Cut(s, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return nil, fmt.Errorf("bad parameter %q: expected name=value", s)
	}

	return Nest(key, value), nil
}

// ReadList reads one item per non-blank line and nests the list at name.
func ReadList(name string, r io.Reader) (map[string]any, error) {
	var items []any
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		items = append(items, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("list %s: %w", name, err)
	}
	if items == nil {
		items = []any{}
	}

	return Nest(name, items), nil
}
