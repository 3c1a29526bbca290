// Package errors defines the structured error taxonomy shared by every
// docma layer.
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Kind represents the category of a docma failure.
type Kind string

const (
	KindPluginLookup Kind = "plugin_lookup"
	KindDataProvider Kind = "data_provider"
	KindGenerator    Kind = "generator"
	KindImport       Kind = "import"
	KindURLFetch     Kind = "url_fetch"
	KindPackage      Kind = "package"
	KindValidation   Kind = "validation"
)

// Common error codes shared by the dispatch layers.
const (
	CodeNotFound    = "not_found"
	CodeTooLarge    = "too_large"
	CodeUnknown     = "unknown"
	CodeTransport   = "transport"
	CodeContentType = "content_type"
	CodeInvalid     = "invalid"
	CodeDeprecated  = "deprecated"
)

// Sentinel targets for errors.Is. An empty Kind matches any kind.
var (
	ErrNotFound  = &DocmaError{Code: CodeNotFound}
	ErrTooLarge  = &DocmaError{Code: CodeTooLarge}
	ErrUnknown   = &DocmaError{Code: CodeUnknown}
	ErrTransport = &DocmaError{Code: CodeTransport}
)

// DocmaError is a structured error with a kind and optional context.
type DocmaError struct {
	Kind    Kind
	Code    string
	Message string
	Cause   error
	Context map[string]any
	Path    string
}

// Error implements the error interface.
func (e *DocmaError) Error() string {
	var parts []string

	if e.Path != "" {
		parts = append(parts, e.Path+":")
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *DocmaError) Unwrap() error {
	return e.Cause
}

// Is matches on kind and code. Empty fields in the target act as wildcards.
func (e *DocmaError) Is(target error) bool {
	var t *DocmaError
	if !errors.As(target, &t) {
		return false
	}
	if t.Kind != "" && t.Kind != e.Kind {
		return false
	}
	if t.Code != "" && t.Code != e.Code {
		return false
	}

	return t.Kind != "" || t.Code != ""
}

// WithContext adds context information to the error.
func (e *DocmaError) WithContext(key string, value any) *DocmaError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value

	return e
}

// WithPath records the file, spec or URL the error relates to.
func (e *DocmaError) WithPath(path string) *DocmaError {
	e.Path = path

	return e
}

// WithCause attaches an underlying error.
func (e *DocmaError) WithCause(cause error) *DocmaError {
	e.Cause = cause

	return e
}

func newError(kind Kind, code, format string, args ...any) *DocmaError {
	return &DocmaError{
		Kind:    kind,
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// NewPluginLookupError reports a name that no resolver could satisfy.
func NewPluginLookupError(name string) *DocmaError {
	return newError(KindPluginLookup, CodeNotFound, "Plugin not found: %s", name)
}

// NewDataProviderError creates a data provider error.
func NewDataProviderError(code, format string, args ...any) *DocmaError {
	return newError(KindDataProvider, code, format, args...)
}

// NewGeneratorError creates a content generator error.
func NewGeneratorError(code, format string, args ...any) *DocmaError {
	return newError(KindGenerator, code, format, args...)
}

// NewImportError creates a content import error.
func NewImportError(code, format string, args ...any) *DocmaError {
	return newError(KindImport, code, format, args...)
}

// NewURLFetchError creates a URL fetch error.
func NewURLFetchError(code, format string, args ...any) *DocmaError {
	return newError(KindURLFetch, code, format, args...)
}

// NewPackageError creates a package / pipeline structure error.
func NewPackageError(format string, args ...any) *DocmaError {
	return newError(KindPackage, CodeInvalid, format, args...)
}

// NewValidationError creates a schema validation error.
func NewValidationError(format string, args ...any) *DocmaError {
	return newError(KindValidation, CodeInvalid, format, args...)
}

// KindOf returns the kind of the first DocmaError in the chain.
func KindOf(err error) Kind {
	var de *DocmaError
	if errors.As(err, &de) {
		return de.Kind
	}

	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return errors.Is(err, &DocmaError{Kind: kind})
}

// Retag rewrites the kind of a DocmaError chain head, keeping its code and
// message. Non-docma errors are wrapped with the given kind and code.
// Used where a lower layer's failure surfaces under a caller's taxonomy,
// e.g. a fetch failure during compile becomes an import error.
func Retag(err error, kind Kind, code string) error {
	if err == nil {
		return nil
	}
	var de *DocmaError
	if errors.As(err, &de) {
		return &DocmaError{
			Kind:    kind,
			Code:    de.Code,
			Message: de.Message,
			Cause:   de.Cause,
			Context: de.Context,
			Path:    de.Path,
		}
	}

	return &DocmaError{Kind: kind, Code: code, Message: err.Error(), Cause: err}
}

// Logger is the subset of the logging interface used by Handle.
type Logger interface {
	Error(ctx context.Context, err error, msg string, fields ...any)
	Warn(ctx context.Context, err error, msg string, fields ...any)
}

// Handle logs an error at a level that depends on its kind.
func Handle(ctx context.Context, logger Logger, err error) {
	if err == nil || logger == nil {
		return
	}

	var de *DocmaError
	if !errors.As(err, &de) {
		logger.Error(ctx, err, "Unhandled error occurred")

		return
	}

	switch de.Kind {
	case KindValidation, KindPackage:
		logger.Error(ctx, err, "Template error",
			"kind", de.Kind,
			"code", de.Code,
			"path", de.Path)
	default:
		logger.Error(ctx, err, "Operation failed",
			"kind", de.Kind,
			"code", de.Code)
	}
}
