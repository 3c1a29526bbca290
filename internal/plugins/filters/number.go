package filters

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/jin-gizmo/docma/internal/plugins"
)

// ErrNoDefault is returned when an empty value reaches a number filter with
// no default option.
var ErrNoDefault = errors.New("Value is empty and no default specified")

const defaultPrecision = 3

type rounder func(d decimal.Decimal, places int32) decimal.Decimal

var roundings = map[string]rounder{
	"half-up":   decimal.Decimal.Round,
	"half-even": decimal.Decimal.RoundBank,
	"down":      decimal.Decimal.Truncate,
}

// Rounding returns the rounding function for a mode name. Names are case
// insensitive and may use underscores or a ROUND_ prefix.
func Rounding(mode string) (func(d decimal.Decimal, places int32) decimal.Decimal, error) {
	if mode == "" {
		return roundings["half-up"], nil
	}
	key := strings.ReplaceAll(strings.ToLower(mode), "_", "-")
	key = strings.TrimPrefix(key, "round-")
	if r, ok := roundings[key]; ok {
		return r, nil
	}

	return nil, fmt.Errorf("Unknown rounding mode: %s", mode)
}

// ToDecimal converts a template value into a decimal. Strings may contain
// underscores or commas as digit separators.
func ToDecimal(v any) (decimal.Decimal, error) {
	switch x := v.(type) {
	case decimal.Decimal:
		return x, nil
	case string:
		s := strings.NewReplacer("_", "", ",", "").Replace(strings.TrimSpace(x))
		if strings.HasSuffix(s, ".") {
			s += "0"
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, fmt.Errorf("Bad number: %q", x)
		}

		return d, nil
	case json.Number:
		return decimal.NewFromString(x.String())
	case float64:
		return decimal.NewFromFloat(x), nil
	case float32:
		return decimal.NewFromFloat32(x), nil
	case int:
		return decimal.NewFromInt(int64(x)), nil
	case int32:
		return decimal.NewFromInt32(x), nil
	case int64:
		return decimal.NewFromInt(x), nil
	case uint:
		return decimal.NewFromInt(int64(x)), nil
	case uint64:
		return decimal.NewFromUint64(x), nil
	}

	return decimal.Zero, fmt.Errorf("Bad number: %v", v)
}

// symbols holds the number punctuation of one language.
type symbols struct {
	group   string
	point   string
	after   bool   // currency symbol follows the amount
	percent string // percent suffix
	compact []string
	spacer  string // between number and compact suffix
}

var known = map[string]symbols{
	"en": {group: ",", point: ".", percent: "%", compact: []string{"K", "M", "B", "T"}},
	"fr": {group: "\u202f", point: ",", after: true, percent: "\u00a0%", compact: []string{"k", "M", "Md", "Bn"}, spacer: "\u00a0"},
	"de": {group: ".", point: ",", after: true, percent: "\u00a0%", compact: []string{"", "Mio.", "Mrd.", "Bio."}, spacer: "\u00a0"},
	"es": {group: ".", point: ",", after: true, percent: "\u00a0%", compact: []string{"mil", "M", "mil M", "B"}, spacer: "\u00a0"},
	"it": {group: ".", point: ",", after: true, percent: "%", compact: []string{"", "Mln", "Mrd", "Bln"}, spacer: "\u00a0"},
}

var derived sync.Map // language.Base string -> symbols

// symbolsFor returns number punctuation for tag. Languages without an entry
// take their separators from the x/text message printer.
func symbolsFor(tag language.Tag) symbols {
	base, _ := tag.Base()
	if s, ok := known[base.String()]; ok {
		return s
	}
	if s, ok := derived.Load(base.String()); ok {
		return s.(symbols)
	}

	s := known["en"]
	p := message.NewPrinter(tag)
	if g := between(p.Sprintf("%d", 1234567), "1", "234"); g != "" {
		s.group = g
	}
	if d := between(p.Sprintf("%.1f", 1.5), "1", "5"); d != "" {
		s.point = d
	}
	derived.Store(base.String(), s)

	return s
}

func between(s, left, right string) string {
	_, rest, ok := strings.Cut(s, left)
	if !ok {
		return ""
	}
	mid, _, ok := strings.Cut(rest, right)
	if !ok {
		return ""
	}

	return mid
}

// formatFixed writes d with exactly places fraction digits using the
// punctuation of sym. Negative values take a leading minus.
func formatFixed(d decimal.Decimal, places int32, sym symbols) string {
	neg := d.Sign() < 0
	whole, frac, _ := strings.Cut(d.Abs().StringFixed(places), ".")

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	b.WriteString(group(whole, sym.group))
	if frac != "" {
		b.WriteString(sym.point)
		b.WriteString(frac)
	}

	return b.String()
}

func group(digits, sep string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	head := len(digits) % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteString(sep)
		}
		b.WriteString(digits[i : i+3])
	}

	return b.String()
}

// numberOpts are the options common to the locale aware number filters.
type numberOpts struct {
	round      rounder
	precision  int32
	def        string
	hasDefault bool
}

func parseNumberOpts(opts map[string]string, precision int32) (numberOpts, error) {
	r, err := Rounding(opts["rounding"])
	if err != nil {
		return numberOpts{}, err
	}
	no := numberOpts{round: r, precision: precision}
	if p, ok := opts["precision"]; ok {
		n, err := toInt(p)
		if err != nil || n < 0 {
			return numberOpts{}, fmt.Errorf("Bad precision: %s", p)
		}
		no.precision = int32(n)
	}
	no.def, no.hasDefault = opts["default"]

	return no, nil
}

// resolve substitutes the default for an empty value. A non-numeric default
// is returned verbatim through literal.
func (o numberOpts) resolve(value any) (d decimal.Decimal, literal string, err error) {
	if !isEmpty(value) {
		d, err = ToDecimal(value)

		return d, "", err
	}
	if !o.hasDefault {
		return decimal.Zero, "", ErrNoDefault
	}
	d, err = ToDecimal(o.def)
	if err != nil {
		return decimal.Zero, o.def, nil
	}

	return d, "", nil
}

// Decimal formats a number for the render locale with up to precision
// fraction digits (default 3). Options: precision=N, rounding=MODE,
// default=VALUE.
func Decimal(env Env, args ...any) (any, error) {
	lead, value, err := split("decimal", args, 0, -1)
	if err != nil {
		return nil, err
	}
	_, opts := options(lead)
	no, err := parseNumberOpts(opts, defaultPrecision)
	if err != nil {
		return nil, err
	}
	d, literal, err := no.resolve(value)
	if err != nil || literal != "" {
		return literal, err
	}

	sym := symbolsFor(envTag(env))

	return trimFraction(formatFixed(no.round(d, no.precision), no.precision, sym), sym.point), nil
}

func trimFraction(s, point string) string {
	if !strings.Contains(s, point) {
		return s
	}
	s = strings.TrimRight(s, "0")

	return strings.TrimSuffix(s, point)
}

// Percent formats a ratio as a whole percentage.
func Percent(env Env, args ...any) (any, error) {
	lead, value, err := split("percent", args, 0, -1)
	if err != nil {
		return nil, err
	}
	_, opts := options(lead)
	no, err := parseNumberOpts(opts, 0)
	if err != nil {
		return nil, err
	}
	d, literal, err := no.resolve(value)
	if err != nil || literal != "" {
		return literal, err
	}
	sym := symbolsFor(envTag(env))

	return formatFixed(no.round(d.Shift(2), no.precision), no.precision, sym) + sym.percent, nil
}

// CompactDecimal abbreviates large numbers, 123457 becoming 123K.
func CompactDecimal(env Env, args ...any) (any, error) {
	lead, value, err := split("compact_decimal", args, 0, -1)
	if err != nil {
		return nil, err
	}
	_, opts := options(lead)
	no, err := parseNumberOpts(opts, 0)
	if err != nil {
		return nil, err
	}
	d, literal, err := no.resolve(value)
	if err != nil || literal != "" {
		return literal, err
	}
	sym := symbolsFor(envTag(env))

	tier, scaled := 0, d
	thousand := decimal.NewFromInt(1000)
	for tier < len(sym.compact) && scaled.Abs().GreaterThanOrEqual(thousand) {
		scaled = scaled.Div(thousand)
		tier++
	}
	// An empty suffix means the language writes that magnitude out in full.
	if tier > 0 && sym.compact[tier-1] != "" {
		d = scaled
	} else {
		tier = 0
	}
	d = no.round(d, no.precision)
	s := formatFixed(d, no.precision, sym)
	if tier == 0 {
		return s, nil
	}

	return s + sym.spacer + sym.compact[tier-1], nil
}

// Dollars formats a value as $1,234.56 regardless of locale. Optional
// leading arguments are the precision (default 2) and the symbol.
func Dollars(_ Env, args ...any) (any, error) {
	lead, value, err := split("dollars", args, 0, 2)
	if err != nil {
		return nil, err
	}
	precision, symbol := 2, "$"
	if len(lead) > 0 {
		if precision, err = toInt(lead[0]); err != nil || precision < 0 {
			return nil, fmt.Errorf("dollars: bad precision: %v", lead[0])
		}
	}
	if len(lead) > 1 {
		symbol = toString(lead[1])
	}
	d, err := ToDecimal(value)
	if err != nil {
		return nil, err
	}
	d = d.Round(int32(precision))
	if d.Sign() < 0 {
		return "-" + symbol + formatFixed(d.Abs(), int32(precision), known["en"]), nil
	}

	return symbol + formatFixed(d, int32(precision), known["en"]), nil
}

func loadNumbers(reg *plugins.Registrar) error {
	return register(reg,
		filter(Decimal, "decimal"),
		filter(Percent, "percent"),
		filter(CompactDecimal, "compact_decimal"),
		filter(Dollars, "dollars"),
	)
}
