package filters

import (
	"fmt"
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"

	"github.com/jin-gizmo/docma/internal/plugins"
)

// Narrow symbols, used when the currency is the locale's own.
var localSymbols = map[string]string{
	"AUD": "$", "CAD": "$", "HKD": "$", "NZD": "$", "SGD": "$", "USD": "$",
	"EUR": "€", "GBP": "£", "JPY": "¥", "CNY": "¥", "INR": "₹",
}

// Disambiguated symbols for US English, which marks foreign dollars.
var usSymbols = map[string]string{
	"AUD": "A$", "CAD": "CA$", "HKD": "HK$", "NZD": "NZ$", "SGD": "SGD",
	"EUR": "€", "GBP": "£", "JPY": "¥", "CNY": "CN¥", "INR": "₹",
}

// currencySymbol picks the symbol for unit in tag's region. Foreign
// currencies fall back to the ISO code outside the US.
func currencySymbol(tag language.Tag, unit currency.Unit) string {
	code := unit.String()
	region, _ := tag.Region()
	if local, ok := currency.FromRegion(region); ok && local == unit {
		if s, ok := localSymbols[code]; ok {
			return s
		}

		return code
	}
	if region.String() == "US" {
		if s, ok := usSymbols[code]; ok {
			return s
		}
	}

	return code
}

// FormatCurrency formats value in unit for the env locale. Options:
// rounding=MODE, default=VALUE, precision=N.
func FormatCurrency(env Env, unit currency.Unit, opts map[string]string, value any) (string, error) {
	scale, _ := currency.Standard.Rounding(unit)
	no, err := parseNumberOpts(opts, int32(scale))
	if err != nil {
		return "", err
	}
	d, literal, err := no.resolve(value)
	if err != nil || literal != "" {
		return literal, err
	}

	tag := envTag(env)
	sym := symbolsFor(tag)
	symbol := currencySymbol(tag, unit)
	d = no.round(d, no.precision)
	amount := formatFixed(d.Abs(), no.precision, sym)
	sign := ""
	if d.Sign() < 0 {
		sign = "-"
	}
	if sym.after {
		return sign + amount + "\u00a0" + symbol, nil
	}

	return sign + symbol + amount, nil
}

// CurrencyFilter builds the filter for one currency.
func CurrencyFilter(unit currency.Unit) Func {
	return func(env Env, args ...any) (any, error) {
		lead, value, err := split("currency."+strings.ToLower(unit.String()), args, 0, -1)
		if err != nil {
			return nil, err
		}
		_, opts := options(lead)

		return FormatCurrency(env, unit, opts, value)
	}
}

// Currency is the generic form: {{ currency "AUD" .amount }}.
func Currency(env Env, args ...any) (any, error) {
	lead, value, err := split("currency", args, 1, -1)
	if err != nil {
		return nil, err
	}
	positional, opts := options(lead)
	if len(positional) != 1 {
		return nil, fmt.Errorf("currency: expected a currency code")
	}
	unit, err := currency.ParseISO(strings.ToUpper(toString(positional[0])))
	if err != nil {
		return nil, fmt.Errorf("Unknown currency: %v", positional[0])
	}

	return FormatCurrency(env, unit, opts, value)
}

// CurrencyFamily resolves currency.<iso-code> for every ISO 4217 code.
func CurrencyFamily() *plugins.FamilyResolver {
	return plugins.NewFamilyResolver("currency", func(member string) *plugins.Plugin {
		unit, err := currency.ParseISO(strings.ToUpper(member))
		if err != nil {
			return nil
		}

		return filter(CurrencyFilter(unit), "currency."+member)
	})
}

func loadCurrency(reg *plugins.Registrar) error {
	return register(reg, filter(Currency, "currency"))
}
