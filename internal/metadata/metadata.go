// Package metadata holds document metadata (title, author, keywords, ...)
// and renders it for HTML meta tags or the PDF document information
// dictionary.
package metadata

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Formats accepted by AsDict.
const (
	FormatHTML = "html"
	FormatPDF  = "pdf"
)

// Metadata maps normalized names (snake_case) to values. Values are
// strings, lists of strings or times.
type Metadata struct {
	values map[string]any
}

// New creates metadata from values, normalizing their names.
func New(values map[string]any) *Metadata {
	m := &Metadata{values: make(map[string]any, len(values))}
	for k, v := range values {
		m.Set(k, v)
	}

	return m
}

// Normalize converts a metadata name to snake_case: "CreationDate" and
// "/CreationDate" both become "creation_date".
func Normalize(name string) string {
	name = strings.TrimPrefix(strings.TrimSpace(name), "/")
	var b strings.Builder
	runes := []rune(name)
	for i, r := range runes {
		switch {
		case r == '-' || r == ' ':
			b.WriteByte('_')
		case unicode.IsUpper(r):
			if i > 0 && runes[i-1] != '_' && !unicode.IsUpper(runes[i-1]) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(r)
		}
	}

	return b.String()
}

var titler = cases.Title(language.Und)

// PDFName converts a normalized name to a PDF information dictionary key:
// "creation_date" becomes "/CreationDate".
func PDFName(name string) string {
	var b strings.Builder
	b.WriteByte('/')
	for _, part := range strings.Split(Normalize(name), "_") {
		b.WriteString(titler.String(part))
	}

	return b.String()
}

// Set stores value under the normalized name.
func (m *Metadata) Set(name string, value any) {
	m.values[Normalize(name)] = value
}

// Get returns the value stored under name.
func (m *Metadata) Get(name string) (any, bool) {
	v, ok := m.values[Normalize(name)]

	return v, ok
}

// Delete removes name.
func (m *Metadata) Delete(name string) {
	delete(m.values, Normalize(name))
}

// Len returns the number of entries.
func (m *Metadata) Len() int {
	return len(m.values)
}

// Names returns the normalized names in sorted order.
func (m *Metadata) Names() []string {
	names := make([]string, 0, len(m.values))
	for k := range m.values {
		names = append(names, k)
	}
	sort.Strings(names)

	return names
}

// Merge copies every entry of other into m.
func (m *Metadata) Merge(other *Metadata) {
	if other == nil {
		return
	}
	for k, v := range other.values {
		m.values[k] = v
	}
}

// AsDict renders the metadata for format. HTML keeps normalized names and
// joins lists with commas; PDF uses information dictionary keys and joins
// lists with semicolons.
func (m *Metadata) AsDict(format string) (map[string]string, error) {
	var key func(string) string
	var sep string
	var stamp func(time.Time) string
	switch strings.ToLower(format) {
	case FormatHTML:
		key, sep = func(s string) string { return s }, ", "
		stamp = func(t time.Time) string { return t.Format(time.RFC3339) }
	case FormatPDF:
		key, sep = PDFName, "; "
		stamp = pdfDate
	default:
		return nil, fmt.Errorf("Unknown format: %s", format)
	}

	out := make(map[string]string, len(m.values))
	for name, v := range m.values {
		out[key(name)] = text(v, sep, stamp)
	}

	return out, nil
}

func text(v any, sep string, stamp func(time.Time) string) string {
	switch x := v.(type) {
	case string:
		return x
	case []string:
		return strings.Join(x, sep)
	case []any:
		parts := make([]string, len(x))
		for i, item := range x {
			parts[i] = text(item, sep, stamp)
		}

		return strings.Join(parts, sep)
	case time.Time:
		return stamp(x)
	case nil:
		return ""
	}

	return fmt.Sprint(v)
}

// pdfDate formats t as a PDF date string, D:YYYYMMDDHHmmSS+HH'mm'.
func pdfDate(t time.Time) string {
	s := t.Format("D:20060102150405-0700")

	return s[:len(s)-2] + "'" + s[len(s)-2:] + "'"
}
