package textutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStr2Bool(t *testing.T) {
	tests := []struct {
		in   any
		want bool
	}{
		{true, true},
		{false, false},
		{"yes", true},
		{"y", true},
		{"t", true},
		{"trUE", true},
		{"1", true},
		{"no", false},
		{"N", false},
		{"f", false},
		{"FALSE", false},
		{"0", false},
	}

	for _, tt := range tests {
		got, err := Str2Bool(tt.in)
		require.NoError(t, err, "%v", tt.in)
		assert.Equal(t, tt.want, got, "%v", tt.in)
	}

	for _, bad := range []any{21, []any{}, "no-idea", nil} {
		_, err := Str2Bool(bad)
		assert.Error(t, err, "%v", bad)
	}
}

func TestCSSID(t *testing.T) {
	tests := map[string]string{
		"abcd":       "abcd",
		"a b cd":     "a-b-cd",
		"9a b cd":    "_9a-b-cd",
		"a/()=*&bcd": "abcd",
	}

	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, CSSID(in))
		})
	}
}

func TestSQLSafe(t *testing.T) {
	assert.True(t, SQLSafe("schema.table_1"))
	assert.False(t, SQLSafe("x; drop table y"))
	assert.False(t, SQLSafe("it's"))
	assert.False(t, SQLSafe(""))
	assert.False(t, SQLSafe("a.b.c"))
	assert.False(t, SQLSafe(".a"))
}
