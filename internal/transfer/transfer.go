// Package transfer moves bytes from remote locations (HTTP and S3) under
// a size bound and timeout. Importers and URL fetchers share it; callers
// choose the error kind reported on failure.
package transfer

import (
	"context"
	"fmt"
	"io"
	"time"

	derrors "github.com/jin-gizmo/docma/internal/errors"
)

// Options bounds a single transfer.
type Options struct {
	// MaxSize is the largest acceptable payload in bytes. Zero means
	// unbounded.
	MaxSize int64

	// Timeout caps the whole transfer. Zero means no timeout beyond ctx.
	Timeout time.Duration

	// Probe sends a metadata request first so oversized objects are
	// rejected before their body is transferred.
	Probe bool

	// Retries is the number of extra attempts made after a transport
	// failure or a 5xx response.
	Retries int

	// Kind is the error kind used for failures.
	Kind derrors.Kind
}

// Result is a successfully transferred payload.
type Result struct {
	Data        []byte
	ContentType string
}

func (o Options) kind() derrors.Kind {
	if o.Kind == "" {
		return derrors.KindImport
	}

	return o.Kind
}

func (o Options) context(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.Timeout > 0 {
		return context.WithTimeout(ctx, o.Timeout)
	}

	return context.WithCancel(ctx)
}

func (o Options) fail(code, location, format string, args ...any) *derrors.DocmaError {
	return &derrors.DocmaError{
		Kind:    o.kind(),
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Path:    location,
	}
}

// TooLarge reports a payload over the bound.
func (o Options) TooLarge(location string, size int64) error {
	return o.fail(derrors.CodeTooLarge, location, "Too large: %d bytes exceeds limit of %d", size, o.MaxSize)
}

// NotFound reports a missing object.
func (o Options) NotFound(location string) error {
	return o.fail(derrors.CodeNotFound, location, "File not found")
}

// Exceeds reports whether size is over the bound.
func (o Options) Exceeds(size int64) bool {
	return o.MaxSize > 0 && size > o.MaxSize
}

// ReadAll reads r to the end, failing as soon as the payload exceeds the
// bound. Partial data is never returned.
func (o Options) ReadAll(location string, r io.Reader) ([]byte, error) {
	if o.MaxSize > 0 {
		r = io.LimitReader(r, o.MaxSize+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, o.fail(derrors.CodeTransport, location, "Transfer failed").WithCause(err)
	}
	if o.Exceeds(int64(len(data))) {
		return nil, o.TooLarge(location, int64(len(data)))
	}

	return data, nil
}
