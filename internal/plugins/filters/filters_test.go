package filters

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	derrors "github.com/jin-gizmo/docma/internal/errors"
	"github.com/jin-gizmo/docma/internal/logging"
)

type testEnv string

func (e testEnv) Locale() string { return string(e) }

func apply(t *testing.T, name string, locale string, args ...any) (any, error) {
	t.Helper()
	fn, err := Lookup(name)
	require.NoError(t, err)

	return fn(testEnv(locale), args...)
}

func TestUtilityFilters(t *testing.T) {
	got, err := apply(t, "require", "en_AU", "Nothing else required", "abcd")
	require.NoError(t, err)
	assert.Equal(t, "abcd", got)

	_, err = apply(t, "require", "en_AU", "something required", nil)
	assert.EqualError(t, err, "something required")

	got, err = apply(t, "default", "en_AU", "n/a", "")
	require.NoError(t, err)
	assert.Equal(t, "n/a", got)

	for in, want := range map[string]string{
		"abcd":       "abcd",
		"a b cd":     "a-b-cd",
		"9a b cd":    "_9a-b-cd",
		"a/()=*&bcd": "abcd",
	} {
		got, err := apply(t, "css_id", "en_AU", in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	for _, ok := range []string{"schema.table", "table"} {
		got, err := apply(t, "sql_safe", "en_AU", ok)
		require.NoError(t, err)
		assert.Equal(t, ok, got)
	}
	for _, bad := range []string{"schema..table", "schema/table", `bad"to"the"bone`, "bad'to'the'bone"} {
		_, err := apply(t, "sql_safe", "en_AU", bad)
		assert.Error(t, err, bad)
	}

	got, err = apply(t, "title", "en_AU", "the quick brown fox")
	require.NoError(t, err)
	assert.Equal(t, "The Quick Brown Fox", got)
}

func TestDollars(t *testing.T) {
	tests := []struct {
		args []any
		want string
	}{
		{[]any{"1.23"}, "$1.23"},
		{[]any{"1."}, "$1.00"},
		{[]any{"1.2345"}, "$1.23"},
		{[]any{"1.2350"}, "$1.24"},
		{[]any{0, "1.2350"}, "$1"},
		{[]any{4, "AUD", "1.2350"}, "AUD1.2350"},
		{[]any{0, "1_234_567"}, "$1,234,567"},
		{[]any{-12.5}, "-$12.50"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got, err := apply(t, "dollars", "en_AU", tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCurrency(t *testing.T) {
	tests := []struct {
		value  any
		locale string
		code   string
		want   string
	}{
		{1234567.45, "en_AU", "AUD", "$1,234,567.45"},
		{"1234567.45", "en_AU", "AUD", "$1,234,567.45"},
		{1234567.45, "en_AU", "USD", "USD1,234,567.45"},
		{1234567.45, "en_US", "USD", "$1,234,567.45"},
		{1234567.45, "en_US", "AUD", "A$1,234,567.45"},
		{1234567.45, "fr_FR", "EUR", "1\u202f234\u202f567,45\u00a0€"},
		{1234567.454, "en_AU", "AUD", "$1,234,567.45"},
		{1234567.464, "en_AU", "AUD", "$1,234,567.46"},
		{1234567.455, "en_AU", "AUD", "$1,234,567.46"},
		{1234567.465, "en_AU", "AUD", "$1,234,567.47"},
		{-5, "en_AU", "AUD", "-$5.00"},
	}

	for _, tt := range tests {
		t.Run(tt.locale+"/"+tt.code, func(t *testing.T) {
			got, err := apply(t, "currency."+tt.code, tt.locale, tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			got, err = apply(t, "currency", tt.locale, tt.code, tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCurrencyOptions(t *testing.T) {
	got, err := apply(t, "currency.aud", "en_AU", "rounding=half-even", 1234567.465)
	require.NoError(t, err)
	assert.Equal(t, "$1,234,567.46", got)

	_, err = apply(t, "currency.aud", "en_AU", "rounding=bad-rounding-mode", 123)
	assert.ErrorContains(t, err, "Unknown rounding mode")

	defaults := []struct {
		value  any
		locale string
		code   string
		def    string
		want   string
	}{
		{nil, "en_AU", "aud", "0", "$0.00"},
		{"", "en_AU", "aud", "0", "$0.00"},
		{"", "fr_FR", "eur", "0", "0,00\u00a0€"},
		{99, "en_AU", "aud", "0", "$99.00"},
		{nil, "en_AU", "aud", "FREE!!", "FREE!!"},
	}
	for _, tt := range defaults {
		got, err := apply(t, "currency."+tt.code, tt.locale, "default="+tt.def, tt.value)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err = apply(t, "currency.aud", "en_AU", nil)
	assert.ErrorIs(t, err, ErrNoDefault)
}

func TestUnknownCurrency(t *testing.T) {
	_, err := Lookup("currency.qqq")
	require.Error(t, err)
	assert.True(t, derrors.IsKind(err, derrors.KindPluginLookup))
}

func TestDecimal(t *testing.T) {
	tests := []struct {
		args   []any
		locale string
		want   string
	}{
		{[]any{1234567.45}, "en_AU", "1,234,567.45"},
		{[]any{"1234567.4501"}, "en_AU", "1,234,567.45"},
		{[]any{"1234567.4501"}, "fr_FR", "1\u202f234\u202f567,45"},
		{[]any{1234567.1145}, "en_AU", "1,234,567.115"},
		{[]any{1234567.1155}, "en_AU", "1,234,567.116"},
		{[]any{"rounding=half-even", 1234567.1145}, "en_AU", "1,234,567.114"},
		{[]any{"precision=1", 2.25}, "en_AU", "2.3"},
		{[]any{"default=0", nil}, "en_AU", "0"},
		{[]any{"default=0", ""}, "en_AU", "0"},
		{[]any{"default=0", 99}, "en_AU", "99"},
		{[]any{"default=--", nil}, "en_AU", "--"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got, err := apply(t, "decimal", tt.locale, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := apply(t, "decimal", "fr_FR", nil)
	assert.ErrorIs(t, err, ErrNoDefault)
	_, err = apply(t, "decimal", "en_AU", "rounding=sideways", 1)
	assert.ErrorContains(t, err, "Unknown rounding mode")
}

func TestPercentAndCompact(t *testing.T) {
	tests := []struct {
		filter string
		args   []any
		locale string
		want   string
	}{
		{"percent", []any{0.1234}, "en_AU", "12%"},
		{"percent", []any{"1.234"}, "en_AU", "123%"},
		{"percent", []any{"0.1234"}, "fr_FR", "12\u00a0%"},
		{"percent", []any{"default=0", nil}, "en_AU", "0%"},
		{"percent", []any{"default=--", nil}, "en_AU", "--"},
		{"compact_decimal", []any{123457.45}, "en_AU", "123K"},
		{"compact_decimal", []any{"123457.45"}, "fr_FR", "123\u00a0k"},
		{"compact_decimal", []any{"2500000"}, "en_AU", "3M"},
		{"compact_decimal", []any{999}, "en_AU", "999"},
	}

	for _, tt := range tests {
		t.Run(tt.filter+"/"+tt.want, func(t *testing.T) {
			got, err := apply(t, tt.filter, tt.locale, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPhone(t *testing.T) {
	tests := []struct {
		value   any
		country string
		format  string
		want    any
	}{
		{"0491 570 006", "AU", "", "0491 570 006"},
		{"+61 491 570 006", "AU", "", "0491 570 006"},
		{491570006, "AU", "", "0491 570 006"},
		{"+61 491 570 006", "SE", "", "+61 491 570 006"},
		{"+61 491 570 006", "AU", "e164", "+61491570006"},
		{"+61 491 570 006", "SE", "National", "0491 570 006"},
		{"(02) 5550 1234", "AU", "international", "+61 2 5550 1234"},
		{"202-555-0123", "US", "", "(202) 555-0123"},
		{"bad-to-the-phone", "AU", "", "bad-to-the-phone"},
	}

	for _, tt := range tests {
		t.Run(tt.country+"/"+tt.format, func(t *testing.T) {
			got, err := apply(t, "phone", "en_AU", tt.country, "format="+tt.format, tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	got, err := apply(t, "phone", "en_AU", "+61 491 570 006")
	require.NoError(t, err)
	assert.Equal(t, "0491 570 006", got)

	_, err = apply(t, "phone", "en_AU", "ZZ", "x")
	assert.ErrorContains(t, err, "Unsupported phone number region")
	_, err = apply(t, "phone", "en_AU", "AU", "format=BAD-FORMAT", "x")
	assert.ErrorContains(t, err, "Unknown phone number format")
}

func TestCompanyIDs(t *testing.T) {
	tests := []struct {
		filter string
		value  any
		want   string
	}{
		{"au.abn", "51 824 753 556", "51 824 753 556"},
		{"au.abn", "51824753556", "51 824 753 556"},
		{"au.acn", "001 749 999", "001 749 999"},
		{"au.acn", "001749999", "001 749 999"},
	}
	for _, tt := range tests {
		got, err := apply(t, tt.filter, "en_AU", tt.value)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := apply(t, "au.abn", "en_AU", "1 824 753 556")
	assert.Error(t, err)
	_, err = apply(t, "au.abn", "en_AU", "41 824 753 556")
	assert.Error(t, err)
	_, err = apply(t, "au.acn", "en_AU", "01 749 999")
	assert.Error(t, err)
}

func TestDeprecatedFilters(t *testing.T) {
	rec := logging.NewRecorder()
	prev := logging.SetDefault(rec)
	router.Reset()
	t.Cleanup(func() {
		logging.SetDefault(prev)
		router.Reset()
	})

	for _, name := range []string{"abn", "ABN"} {
		got, err := apply(t, name, "en_AU", "51824753556")
		require.NoError(t, err)
		assert.Equal(t, "51 824 753 556", got)
	}
	assert.Equal(t, 1, rec.Count(logging.LevelWarn, "Plugin ABN is deprecated. Use au.abn instead"))

	got, err := apply(t, "acn", "en_AU", "001749999")
	require.NoError(t, err)
	assert.Equal(t, "001 749 999", got)
	assert.Equal(t, 1, rec.Count(logging.LevelWarn, "Plugin ACN is deprecated"))
}

func TestDates(t *testing.T) {
	tests := []struct {
		in, locale, want string
	}{
		{"2025-09-01", "en_AU", "2025-09-01"},
		{"1/9/2025", "en_AU", "2025-09-01"},
		{"1/9/2025", "en_US", "2025-01-09"},
		{"September 1, 2025", "en_AU", "2025-09-01"},
	}
	for _, tt := range tests {
		got, err := apply(t, "parse_date", tt.locale, tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got.(time.Time).Format(time.DateOnly))
	}

	for in, want := range map[string]string{"2:15": "02:15:00", "2:15 pm": "14:15:00", "2 PM": "14:00:00"} {
		got, err := apply(t, "parse_time", "en_AU", in)
		require.NoError(t, err)
		assert.Equal(t, want, got.(time.Time).Format(time.TimeOnly))
	}

	when := time.Date(2025, 9, 17, 14, 15, 16, 0, time.UTC)
	formatted := []struct {
		filter, locale, want string
	}{
		{"date", "en_AU", "17 Sep 2025"},
		{"date", "en_US", "Sep 17, 2025"},
		{"time", "en_US", "2:15:16\u202fPM"},
		{"time", "fr_FR", "14:15:16"},
		{"datetime", "en_AU", "17 Sep 2025, 2:15:16\u202fpm"},
	}
	for _, tt := range formatted {
		got, err := apply(t, tt.filter, tt.locale, when)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	got, err := apply(t, "date", "en_AU", "2006-01-02", when)
	require.NoError(t, err)
	assert.Equal(t, "2025-09-17", got)
}
