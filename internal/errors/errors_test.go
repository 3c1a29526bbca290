package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocmaErrorError(t *testing.T) {
	testCases := []struct {
		name     string
		err      *DocmaError
		expected string
	}{
		{
			name:     "message only",
			err:      NewPackageError("No documents were selected"),
			expected: "No documents were selected",
		},
		{
			name:     "with path",
			err:      NewPackageError("Not found").WithPath("content/a.html"),
			expected: "content/a.html: Not found",
		},
		{
			name:     "with path and cause",
			err:      NewImportError(CodeTransport, "Bad import").WithPath("https://x/y").WithCause(fmt.Errorf("timeout")),
			expected: "https://x/y: Bad import: timeout",
		},
		{
			name:     "plugin lookup",
			err:      NewPluginLookupError("sql"),
			expected: "Plugin not found: sql",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.err.Error())
		})
	}
}

func TestIs(t *testing.T) {
	notFound := NewURLFetchError(CodeNotFound, "No such file").WithPath("file:x.png")
	wrapped := fmt.Errorf("render: %w", notFound)

	testCases := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{"code sentinel", notFound, ErrNotFound, true},
		{"through wrapping", wrapped, ErrNotFound, true},
		{"other code", notFound, ErrTooLarge, false},
		{"kind only", notFound, &DocmaError{Kind: KindURLFetch}, true},
		{"kind mismatch", notFound, &DocmaError{Kind: KindImport}, false},
		{"kind and code", notFound, &DocmaError{Kind: KindURLFetch, Code: CodeNotFound}, true},
		{"empty target never matches", notFound, &DocmaError{}, false},
		{"plain error", fmt.Errorf("x"), ErrNotFound, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, errors.Is(tc.err, tc.target))
		})
	}
}

func TestKindHelpers(t *testing.T) {
	err := fmt.Errorf("outer: %w", NewValidationError("bad").WithContext("pointer", "/a"))

	assert.Equal(t, KindValidation, KindOf(err))
	assert.True(t, IsKind(err, KindValidation))
	assert.False(t, IsKind(err, KindPackage))
	assert.Equal(t, Kind(""), KindOf(fmt.Errorf("plain")))

	var de *DocmaError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "/a", de.Context["pointer"])
}

func TestRetag(t *testing.T) {
	assert.NoError(t, Retag(nil, KindImport, CodeTransport))

	orig := NewURLFetchError(CodeTooLarge, "Too big").WithPath("https://x/big.png")
	got := Retag(orig, KindImport, CodeTransport)
	assert.True(t, IsKind(got, KindImport))
	assert.ErrorIs(t, got, ErrTooLarge)
	assert.Equal(t, "https://x/big.png: Too big", got.Error())
	assert.True(t, IsKind(orig, KindURLFetch), "the original is not modified")

	plain := fmt.Errorf("connection reset")
	got = Retag(plain, KindImport, CodeTransport)
	assert.ErrorIs(t, got, ErrTransport)
	assert.ErrorIs(t, got, plain)
}

type recordingLogger struct {
	errors []string
	fields [][]any
}

func (r *recordingLogger) Error(_ context.Context, _ error, msg string, fields ...any) {
	r.errors = append(r.errors, msg)
	r.fields = append(r.fields, fields)
}

func (r *recordingLogger) Warn(context.Context, error, string, ...any) {}

func TestHandle(t *testing.T) {
	ctx := context.Background()
	l := &recordingLogger{}

	Handle(ctx, l, nil)
	Handle(ctx, nil, fmt.Errorf("ignored"))
	assert.Empty(t, l.errors)

	Handle(ctx, l, NewPackageError("Not found").WithPath("a.html"))
	Handle(ctx, l, NewDataProviderError(CodeUnknown, "Unknown data provider"))
	Handle(ctx, l, fmt.Errorf("plain"))

	assert.Equal(t, []string{"Template error", "Operation failed", "Unhandled error occurred"}, l.errors)
	assert.Contains(t, l.fields[0], "a.html")
}
