package datasrc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	derrors "github.com/jin-gizmo/docma/internal/errors"
)

func TestSpec(t *testing.T) {
	s1, err := New("postgres", "sales", "queries/custard.yaml", "whatever")
	require.NoError(t, err)

	const text = "postgres;sales;queries/custard.yaml;whatever"
	s2, err := Parse(text)
	require.NoError(t, err)
	assert.Equal(t, s1, s2)
	assert.Equal(t, text, s1.String())
	assert.Equal(t, text, s2.String())

	memo := map[Spec]int{s1: 1}
	assert.Equal(t, 1, memo[s2])
}

func TestSpecString(t *testing.T) {
	tests := []struct {
		in   string
		want Spec
		out  string
	}{
		{"file;data.csv", Spec{Type: "file", Location: "data.csv"}, "file;data.csv"},
		{"file;data.csv;;", Spec{Type: "file", Location: "data.csv"}, "file;data.csv"},
		{"params;x.y;;t", Spec{Type: "params", Location: "x.y", Target: "t"}, "params;x.y;;t"},
		{" sql ; db ; q.yaml ", Spec{Type: "sql", Location: "db", Query: "q.yaml"}, "sql;db;q.yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.out, got.String())
		})
	}
}

func TestSpecRequiresTypeAndLocation(t *testing.T) {
	for _, in := range []string{";a;b;c", "file", "file;", ""} {
		t.Run(in, func(t *testing.T) {
			_, err := Parse(in)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "type and location required")
			assert.True(t, derrors.IsKind(err, derrors.KindDataProvider))
		})
	}

	_, err := New("postgres", "", "q.yaml", "t")
	assert.ErrorContains(t, err, "type and location required")

	_, err = Parse("a;b;c;d;e")
	assert.ErrorContains(t, err, "Bad data source specification")

	_, err = New("file", "a;b", "", "")
	assert.ErrorContains(t, err, "Bad data source specification")
}

func TestNewTrims(t *testing.T) {
	tests := []struct {
		name   string
		fields [4]string
		want   Spec
	}{
		{"leading space", [4]string{" a", "b", "", ""}, Spec{Type: "a", Location: "b"}},
		{"every field", [4]string{"sql ", "\tdb", " q.yaml ", " t\n"}, Spec{Type: "sql", Location: "db", Query: "q.yaml", Target: "t"}},
		{"blank optional", [4]string{"file", "x.csv", "  ", " "}, Spec{Type: "file", Location: "x.csv"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.fields[0], tt.fields[1], tt.fields[2], tt.fields[3])
			require.NoError(t, err)
			assert.Equal(t, tt.want, s)

			back, err := Parse(s.String())
			require.NoError(t, err)
			assert.Equal(t, s, back)
		})
	}

	_, err := New(" ", "b", "", "")
	assert.ErrorContains(t, err, "type and location required")
}
