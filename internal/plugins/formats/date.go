package formats

import (
	"regexp"
	"strconv"
	"time"

	"github.com/jin-gizmo/docma/internal/plugins"
)

// DateOrder names the field order of a numeric date.
type DateOrder string

const (
	DMY DateOrder = "dmy"
	YMD DateOrder = "ymd"
	MDY DateOrder = "mdy"
)

var dateSep = regexp.MustCompile(`^(\d{1,4})[/.\-](\d{1,2})[/.\-](\d{1,4})$`)

// ParseDate parses a numeric date with the given field order. Fields may be
// separated by "/", "-" or "." or run together ("17032024").
func ParseDate(s string, order DateOrder) (time.Time, bool) {
	if m := dateSep.FindStringSubmatch(s); m != nil {
		return assemble(order, m[1], m[2], m[3])
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return time.Time{}, false
		}
	}
	if len(s) < 6 || len(s) > 8 {
		return time.Time{}, false
	}

	var year, rest string
	if order == YMD {
		year, rest = s[:4], s[4:]
	} else {
		year, rest = s[len(s)-4:], s[:len(s)-4]
	}

	// Run-together day and month are ambiguous when only three digits
	// remain; accept either split that yields a real date.
	for _, cut := range []int{2, 1} {
		if cut >= len(rest) || len(rest)-cut > 2 {
			continue
		}
		a, b := rest[:cut], rest[cut:]
		var t time.Time
		var ok bool
		if order == YMD {
			t, ok = assemble(order, year, a, b)
		} else {
			t, ok = assemble(order, a, b, year)
		}
		if ok {
			return t, true
		}
	}

	return time.Time{}, false
}

func assemble(order DateOrder, f1, f2, f3 string) (time.Time, bool) {
	var ys, ms, ds string
	switch order {
	case DMY:
		ds, ms, ys = f1, f2, f3
	case MDY:
		ms, ds, ys = f1, f2, f3
	case YMD:
		ys, ms, ds = f1, f2, f3
	default:
		return time.Time{}, false
	}
	if len(ys) != 4 || len(ms) > 2 || len(ds) > 2 {
		return time.Time{}, false
	}
	y, _ := strconv.Atoi(ys)
	m, _ := strconv.Atoi(ms)
	d, _ := strconv.Atoi(ds)

	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Year() != y || int(t.Month()) != m || t.Day() != d {
		return time.Time{}, false
	}

	return t, true
}

// DateChecker returns a checker for dates in the given order.
func DateChecker(order DateOrder) Checker {
	return func(v any) bool {
		s, ok := text(v)
		if !ok {
			return false
		}
		_, ok = ParseDate(s, order)

		return ok
	}
}

// DateFamily resolves date.dmy, date.ymd and date.mdy.
func DateFamily() *plugins.FamilyResolver {
	return plugins.NewFamilyResolver("date", func(member string) *plugins.Plugin {
		switch order := DateOrder(member); order {
		case DMY, YMD, MDY:
			return checker(DateChecker(order), "date."+member)
		}

		return nil
	})
}
