package filters

import (
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"golang.org/x/text/language"

	"github.com/jin-gizmo/docma/internal/plugins"
	"github.com/jin-gizmo/docma/internal/plugins/formats"
)

// monthFirst reports whether numeric dates in tag's region put the month
// first.
func monthFirst(tag language.Tag) bool {
	region, _ := tag.Region()

	return region.String() == "US"
}

// ParseDateIn reads a date for the given locale. Numeric dates follow the
// locale's field order; anything else goes through dateparse.
func ParseDateIn(tag language.Tag, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, ok := numericDate(tag, s); ok {
		return t, nil
	}
	t, err := dateparse.ParseAny(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("Bad date: %q", s)
	}

	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

func numericDate(tag language.Tag, s string) (time.Time, bool) {
	orders := []formats.DateOrder{formats.DMY, formats.YMD}
	if monthFirst(tag) {
		orders = []formats.DateOrder{formats.MDY, formats.YMD}
	}
	for _, order := range orders {
		if t, ok := formats.ParseDate(s, order); ok {
			return t, true
		}
	}

	return time.Time{}, false
}

var timeLayouts = []string{
	"15:04", "15:04:05", "3:04pm", "3:04:05pm", "3pm",
}

// ParseTime reads a time of day such as 14:15, 2:15 pm or 2pm.
func ParseTime(s string) (time.Time, error) {
	norm := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, norm); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("Bad time: %q", s)
}

func toTime(env Env, v any) (time.Time, error) {
	switch x := v.(type) {
	case time.Time:
		return x, nil
	case *time.Time:
		if x != nil {
			return *x, nil
		}
	case string:
		if t, ok := numericDate(envTag(env), strings.TrimSpace(x)); ok {
			return t, nil
		}
		t, err := dateparse.ParseAny(x)
		if err != nil {
			return time.Time{}, fmt.Errorf("Bad date: %q", x)
		}

		return t, nil
	}

	return time.Time{}, fmt.Errorf("not a date: %v", v)
}

// layouts returns the date and time layouts for tag. Go formats month
// names in English only, so other languages get numeric layouts.
func layouts(tag language.Tag) (string, string) {
	base, _ := tag.Base()
	switch {
	case base.String() != "en":
		return "2006-01-02", "15:04:05"
	case monthFirst(tag):
		return "Jan 2, 2006", "3:04:05\u202fPM"
	}

	return "2 Jan 2006", "3:04:05\u202fpm"
}

func dateFilter(name string, pick func(date, clock string) string) Func {
	return func(env Env, args ...any) (any, error) {
		lead, value, err := split(name, args, 0, 1)
		if err != nil {
			return nil, err
		}
		t, err := toTime(env, value)
		if err != nil {
			return nil, err
		}
		if len(lead) == 1 {
			return t.Format(toString(lead[0])), nil
		}

		return t.Format(pick(layouts(envTag(env)))), nil
	}
}

// ParseDateFilter turns a string into a date using the locale's field
// order.
func ParseDateFilter(env Env, args ...any) (any, error) {
	_, value, err := split("parse_date", args, 0, 0)
	if err != nil {
		return nil, err
	}

	return ParseDateIn(envTag(env), toString(value))
}

// ParseTimeFilter turns a string into a time of day.
func ParseTimeFilter(_ Env, args ...any) (any, error) {
	_, value, err := split("parse_time", args, 0, 0)
	if err != nil {
		return nil, err
	}

	return ParseTime(toString(value))
}

func loadDates(reg *plugins.Registrar) error {
	return register(reg,
		filter(ParseDateFilter, "parse_date"),
		filter(ParseTimeFilter, "parse_time"),
		filter(dateFilter("date", func(d, _ string) string { return d }), "date"),
		filter(dateFilter("time", func(_, c string) string { return c }), "time"),
		filter(dateFilter("datetime", func(d, c string) string { return d + ", " + c }), "datetime"),
	)
}
