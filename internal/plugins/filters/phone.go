package filters

import (
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/language"

	"github.com/jin-gizmo/docma/internal/plugins"
)

// numberPlan describes how one country writes its phone numbers. The
// layouts receive the national significant number (no trunk prefix).
type numberPlan struct {
	code          string
	trunk         string
	lengths       []int
	national      func(nsn string) string
	international func(nsn string) string
}

func chunks(s string, sizes ...int) string {
	parts := make([]string, 0, len(sizes)+1)
	for _, n := range sizes {
		if len(s) <= n {
			break
		}
		parts = append(parts, s[:n])
		s = s[n:]
	}

	return strings.Join(append(parts, s), " ")
}

var auPlan = &numberPlan{
	code:    "61",
	trunk:   "0",
	lengths: []int{9, 10},
	national: func(nsn string) string {
		switch {
		case len(nsn) == 10:
			return chunks(nsn, 4, 3)
		case nsn[0] == '4' || nsn[0] == '5':
			return "0" + chunks(nsn, 3, 3)
		}

		return "(0" + nsn[:1] + ") " + chunks(nsn[1:], 4)
	},
	international: func(nsn string) string {
		if nsn[0] == '4' || nsn[0] == '5' {
			return chunks(nsn, 3, 3)
		}

		return chunks(nsn, 1, 4)
	},
}

var nanpPlan = &numberPlan{
	code:    "1",
	trunk:   "1",
	lengths: []int{10},
	national: func(nsn string) string {
		return "(" + nsn[:3] + ") " + nsn[3:6] + "-" + nsn[6:]
	},
	international: func(nsn string) string {
		return nsn[:3] + "-" + nsn[3:6] + "-" + nsn[6:]
	},
}

var gbPlan = &numberPlan{
	code:    "44",
	trunk:   "0",
	lengths: []int{10},
	national: func(nsn string) string {
		if strings.HasPrefix(nsn, "20") {
			return "0" + chunks(nsn, 2, 4)
		}

		return "0" + chunks(nsn, 4)
	},
	international: func(nsn string) string {
		if strings.HasPrefix(nsn, "20") {
			return chunks(nsn, 2, 4)
		}

		return chunks(nsn, 4)
	},
}

var nzPlan = &numberPlan{
	code:    "64",
	trunk:   "0",
	lengths: []int{8, 9, 10},
	national: func(nsn string) string {
		if nsn[0] == '2' {
			return "0" + chunks(nsn, 2, 3)
		}

		return "0" + chunks(nsn, 1, 3)
	},
	international: func(nsn string) string {
		if nsn[0] == '2' {
			return chunks(nsn, 2, 3)
		}

		return chunks(nsn, 1, 3)
	},
}

var plans = map[string]*numberPlan{
	"AU": auPlan,
	"US": nanpPlan,
	"CA": nanpPlan,
	"GB": gbPlan,
	"NZ": nzPlan,
}

// phoneNumber is a parsed number.
type phoneNumber struct {
	plan *numberPlan
	nsn  string
}

// parsePhone reads a number written in international form or in the
// national form of region.
func parsePhone(s, region string) (phoneNumber, bool) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')', '.', '\u00a0':
			return -1
		}

		return r
	}, strings.TrimSpace(s))
	if s == "" {
		return phoneNumber{}, false
	}

	var plan *numberPlan
	if rest, ok := strings.CutPrefix(s, "+"); ok {
		for _, p := range plans {
			if strings.HasPrefix(rest, p.code) {
				plan, s = p, rest[len(p.code):]

				break
			}
		}
	} else if p, ok := plans[region]; ok {
		plan = p
		if trimmed, ok := strings.CutPrefix(s, p.trunk); ok && slices.Contains(p.lengths, len(trimmed)) {
			s = trimmed
		}
	}
	if plan == nil || !slices.Contains(plan.lengths, len(s)) {
		return phoneNumber{}, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return phoneNumber{}, false
		}
	}

	return phoneNumber{plan: plan, nsn: s}, true
}

// Phone formats a phone number. An optional leading argument names the
// country (default: the locale's region) and format= selects national,
// international or e164. With no format, numbers local to the country are
// written nationally. Values that cannot be parsed are returned unchanged.
func Phone(env Env, args ...any) (any, error) {
	lead, value, err := split("phone", args, 0, -1)
	if err != nil {
		return nil, err
	}
	positional, opts := options(lead)

	var region language.Region
	if len(positional) > 0 {
		region, err = language.ParseRegion(toString(positional[0]))
		if err != nil || !region.IsCountry() {
			return nil, fmt.Errorf("Unsupported phone number region: %v", positional[0])
		}
	} else {
		region, _ = envTag(env).Region()
	}

	format := strings.ToLower(opts["format"])
	switch format {
	case "", "national", "international", "e164":
	default:
		return nil, fmt.Errorf("Unknown phone number format: %s", opts["format"])
	}

	num, ok := parsePhone(toString(value), region.String())
	if !ok {
		return value, nil
	}
	if format == "" {
		format = "international"
		if plans[region.String()] == num.plan {
			format = "national"
		}
	}

	switch format {
	case "national":
		return num.plan.national(num.nsn), nil
	case "e164":
		return "+" + num.plan.code + num.nsn, nil
	}

	return "+" + num.plan.code + " " + num.plan.international(num.nsn), nil
}

func loadPhone(reg *plugins.Registrar) error {
	return register(reg, filter(Phone, "phone"))
}
