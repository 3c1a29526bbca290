// Package textutil holds small string helpers shared across docma.
package textutil

import (
	"fmt"
	"regexp"
	"strings"
)

// Str2Bool interprets common boolean spellings. Bools pass through;
// other non-string values are rejected.
func Str2Bool(v any) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "yes", "y", "t", "true", "1", "on":
			return true, nil
		case "no", "n", "f", "false", "0", "off":
			return false, nil
		}

		return false, fmt.Errorf("invalid boolean value: %q", t)
	default:
		return false, fmt.Errorf("expected string or bool, got %T", v)
	}
}

var (
	cssIDSpaces  = regexp.MustCompile(`\s+`)
	cssIDInvalid = regexp.MustCompile(`[^A-Za-z0-9_-]`)
)

// CSSID converts s into a string usable as an HTML id attribute.
// Whitespace runs become hyphens, other invalid characters are dropped and
// a leading digit is prefixed with an underscore.
func CSSID(s string) string {
	s = cssIDSpaces.ReplaceAllString(strings.TrimSpace(s), "-")
	s = cssIDInvalid.ReplaceAllString(s, "")
	if s != "" && s[0] >= '0' && s[0] <= '9' {
		s = "_" + s
	}

	return s
}

var sqlSafe = regexp.MustCompile(`^\w+(\.\w+)?$`)

// SQLSafe reports whether s is a bare SQL name or a qualified name.name.
func SQLSafe(s string) bool {
	return sqlSafe.MatchString(s)
}
