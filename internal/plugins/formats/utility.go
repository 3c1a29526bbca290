package formats

import (
	"regexp"
	"strings"

	"golang.org/x/text/language"

	"github.com/jin-gizmo/docma/internal/plugins"
)

var unitScales = []string{"", "k", "M", "G", "T"}

var (
	energyUnits = scaled("J", "Wh", "VArh", "VAh")
	powerUnits  = scaled("W", "VAr", "VA")
)

func scaled(units ...string) map[string]bool {
	out := make(map[string]bool, len(unitScales)*len(units))
	for _, s := range unitScales {
		for _, u := range units {
			out[s+u] = true
		}
	}

	return out
}

// See https://semver.org.
var semverRE = regexp.MustCompile(`^(0|[1-9]\d*)\.(0|[1-9]\d*)\.(0|[1-9]\d*)` +
	`(?:-((?:0|[1-9]\d*|\d*[a-zA-Z-][\da-zA-Z-]*)(?:\.(?:0|[1-9]\d*|\d*[a-zA-Z-][\da-zA-Z-]*))*))?` +
	`(?:\+([\da-zA-Z-]+(?:\.[\da-zA-Z-]+)*))?$`)

var localeRE = regexp.MustCompile(`^[a-z]{2,3}(_[A-Z]{2})?$`)

// IsEnergyUnit accepts J, Wh, VArh and VAh with an optional k/M/G/T scale.
func IsEnergyUnit(v any) bool {
	s, ok := v.(string)

	return ok && energyUnits[s]
}

// IsPowerUnit accepts W, VAr and VA with an optional k/M/G/T scale.
func IsPowerUnit(v any) bool {
	s, ok := v.(string)

	return ok && powerUnits[s]
}

// IsSemanticVersion checks a semantic version string.
func IsSemanticVersion(v any) bool {
	s, ok := v.(string)

	return ok && semverRE.MatchString(s)
}

// IsLocale accepts POSIX style locale names such as en or en_AU for known
// languages and regions.
func IsLocale(v any) bool {
	s, ok := v.(string)
	if !ok || !localeRE.MatchString(s) {
		return false
	}
	_, err := language.Parse(strings.ReplaceAll(s, "_", "-"))

	return err == nil
}

func loadUtility(reg *plugins.Registrar) error {
	for _, p := range []*plugins.Plugin{
		checker(IsEnergyUnit, "energy_unit"),
		checker(IsPowerUnit, "power_unit"),
		checker(IsSemanticVersion, "semantic_version"),
		checker(IsLocale, "locale"),
	} {
		if err := reg.Register(p); err != nil {
			return err
		}
	}

	return nil
}
