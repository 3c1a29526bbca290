// Package pdf converts rendered HTML into PDF and post-processes PDF
// documents: merging, document properties, watermark and stamp overlays
// and compression.
package pdf

import (
	"bytes"
	"context"
	"io"
	"os"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/jin-gizmo/docma/internal/content"
	derrors "github.com/jin-gizmo/docma/internal/errors"
)

func init() {
	api.DisableConfigDir()
}

// Resolver fetches a resource referenced from a document being converted.
// Relative references arrive as file:<path> URLs.
type Resolver func(ctx context.Context, rawURL string) (content.Content, error)

// Document is one HTML document to convert.
type Document struct {
	// Name is the package path of the document. Relative references are
	// resolved against it.
	Name    string
	HTML    string
	Resolve Resolver
}

// Converter renders HTML to PDF.
type Converter interface {
	Convert(ctx context.Context, doc Document) ([]byte, error)
}

func config() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	return conf
}

func pdfError(op string, err error) error {
	return derrors.NewPackageError("PDF %s failed", op).WithCause(err)
}

// PageCount returns the number of pages in a PDF.
func PageCount(data []byte) (int, error) {
	n, err := api.PageCount(bytes.NewReader(data), config())
	if err != nil {
		return 0, pdfError("read", err)
	}

	return n, nil
}

// Merge concatenates PDFs in order.
func Merge(docs ...[]byte) ([]byte, error) {
	switch len(docs) {
	case 0:
		return nil, derrors.NewPackageError("Nothing to merge")
	case 1:
		return docs[0], nil
	}

	rs := make([]io.ReadSeeker, len(docs))
	for i, d := range docs {
		rs[i] = bytes.NewReader(d)
	}
	var out bytes.Buffer
	if err := api.MergeRaw(rs, &out, false, config()); err != nil {
		return nil, pdfError("merge", err)
	}

	return out.Bytes(), nil
}

// SetProperties writes document information entries. Keys may carry the
// leading slash of a PDF name.
func SetProperties(data []byte, props map[string]string) ([]byte, error) {
	if len(props) == 0 {
		return data, nil
	}
	clean := make(map[string]string, len(props))
	for k, v := range props {
		clean[strings.TrimPrefix(k, "/")] = v
	}

	var out bytes.Buffer
	if err := api.AddProperties(bytes.NewReader(data), &out, clean, config()); err != nil {
		return nil, pdfError("properties", err)
	}

	return out.Bytes(), nil
}

// Overlay is a watermark or stamp. Exactly one of PDF and Text is set. The
// first page of PDF is laid over every page.
type Overlay struct {
	PDF  []byte
	Text string
	// Desc is a pdfcpu watermark description, for example
	// "rot:45, op:0.3, scale:0.8 abs".
	Desc string
}

// Watermark lays o under the content of every page.
func Watermark(data []byte, o Overlay) ([]byte, error) {
	return overlay(data, o, false)
}

// Stamp lays o over the content of every page.
func Stamp(data []byte, o Overlay) ([]byte, error) {
	return overlay(data, o, true)
}

func overlay(data []byte, o Overlay, onTop bool) ([]byte, error) {
	var wm *model.Watermark
	var err error
	if len(o.PDF) > 0 {
		f, ferr := os.CreateTemp("", "docma-overlay-*.pdf")
		if ferr != nil {
			return nil, pdfError("overlay", ferr)
		}
		defer os.Remove(f.Name())
		if _, ferr := f.Write(o.PDF); ferr != nil {
			f.Close()

			return nil, pdfError("overlay", ferr)
		}
		if ferr := f.Close(); ferr != nil {
			return nil, pdfError("overlay", ferr)
		}
		wm, err = api.PDFWatermark(f.Name()+":1", o.Desc, onTop, false, types.POINTS)
	} else {
		wm, err = api.TextWatermark(o.Text, o.Desc, onTop, false, types.POINTS)
	}
	if err != nil {
		return nil, derrors.NewPackageError("Bad overlay").WithCause(err)
	}

	var out bytes.Buffer
	if err := api.AddWatermarks(bytes.NewReader(data), &out, nil, wm, config()); err != nil {
		return nil, pdfError("overlay", err)
	}

	return out.Bytes(), nil
}

// Optimize compresses a PDF, dropping duplicate resources.
func Optimize(data []byte) ([]byte, error) {
	var out bytes.Buffer
	if err := api.Optimize(bytes.NewReader(data), &out, config()); err != nil {
		return nil, pdfError("optimize", err)
	}

	return out.Bytes(), nil
}
