package filters

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/jin-gizmo/docma/internal/plugins"
	"github.com/jin-gizmo/docma/internal/plugins/formats"
)

// groupDigits strips whitespace from the value, checks it has n digits and
// regroups them at the given sizes.
func groupDigits(name string, value any, n int, sizes ...int) (string, error) {
	s := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}

		return r
	}, toString(value))
	if len(s) != n || strings.IndexFunc(s, func(r rune) bool { return r < '0' || r > '9' }) >= 0 {
		return "", fmt.Errorf("Bad %s: %v", name, value)
	}

	parts := make([]string, 0, len(sizes))
	for _, size := range sizes {
		parts = append(parts, s[:size])
		s = s[size:]
	}

	return strings.Join(parts, " "), nil
}

// ABN formats an Australian Business Number as NN NNN NNN NNN.
func ABN(_ Env, args ...any) (any, error) {
	_, value, err := split("abn", args, 0, 0)
	if err != nil {
		return nil, err
	}
	s, err := groupDigits("ABN", value, 11, 2, 3, 3, 3)
	if err != nil {
		return nil, err
	}
	if !formats.IsABN(s) {
		return nil, fmt.Errorf("Bad ABN: %v", value)
	}

	return s, nil
}

// ACN formats an Australian Company Number as NNN NNN NNN.
func ACN(_ Env, args ...any) (any, error) {
	_, value, err := split("acn", args, 0, 0)
	if err != nil {
		return nil, err
	}
	s, err := groupDigits("ACN", value, 9, 3, 3, 3)
	if err != nil {
		return nil, err
	}
	if !formats.IsACN(s) {
		return nil, fmt.Errorf("Bad ACN: %v", value)
	}

	return s, nil
}

var (
	abnFilter = filter(ABN, "abn")
	acnFilter = filter(ACN, "acn")
)

func loadCompanyIDs(reg *plugins.Registrar) error {
	return register(reg, abnFilter, acnFilter)
}

// Top level names from before the au namespace existed.
func loadDeprecated(reg *plugins.Registrar) error {
	return register(reg,
		plugins.DeprecatedAlias("ABN", "au.abn", abnFilter),
		plugins.DeprecatedAlias("ACN", "au.acn", acnFilter),
	)
}
