// Package htmldoc post-processes rendered HTML: it inlines images as data
// URLs, injects document metadata and concatenates documents.
package htmldoc

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/jin-gizmo/docma/internal/content"
	derrors "github.com/jin-gizmo/docma/internal/errors"
	"github.com/jin-gizmo/docma/internal/logging"
	"github.com/jin-gizmo/docma/internal/textutil"
)

// EmbedAttr overrides the embedding decision for one image.
const EmbedAttr = "data-docma-embed"

// FetchFunc resolves an image source. maxSize bounds the transfer; zero
// means the fetcher's default bound.
type FetchFunc func(ctx context.Context, src string, maxSize int64) (content.Content, error)

// Embedder replaces <img> sources with data URLs.
//
// Sources without a scheme are package files. Non-http(s) sources are
// always embedded. An http(s) source is embedded when data-docma-embed is
// true; when the attribute is absent it is embedded only if the URL has no
// query and its size is within [MinSize, MaxSize].
type Embedder struct {
	Fetch       FetchFunc
	MinSize     int64
	MaxSize     int64
	SkipMissing bool
	Logger      logging.Logger
}

func (e *Embedder) logger() logging.Logger {
	if e.Logger == nil {
		return logging.Default().WithComponent("htmldoc")
	}

	return e.Logger
}

// EmbedImg embeds the image in img and reports whether it did.
func (e *Embedder) EmbedImg(ctx context.Context, img *goquery.Selection) (bool, error) {
	src := strings.TrimSpace(img.AttrOr("src", ""))
	if src == "" {
		return false, derrors.NewPackageError(`Missing or empty "src" attribute`)
	}

	var force *bool
	if raw, ok := img.Attr(EmbedAttr); ok {
		b, err := textutil.Str2Bool(raw)
		if err != nil {
			return false, derrors.NewPackageError("Bad %s value: %s", EmbedAttr, raw).WithPath(src)
		}
		force = &b
	}

	u, err := url.Parse(src)
	if err != nil {
		return false, derrors.NewPackageError("Bad image URL").WithPath(src).WithCause(err)
	}

	fetchURL := src
	var maxSize int64
	switch strings.ToLower(u.Scheme) {
	case "data":
		return false, nil
	case "":
		fetchURL = "file:" + src
	case "http", "https":
		switch {
		case force != nil && !*force:
			return false, nil
		case force == nil && u.RawQuery != "":
			return false, nil
		case force == nil:
			maxSize = e.MaxSize
		}
	}

	c, err := e.Fetch(ctx, fetchURL, maxSize)
	if err != nil {
		if maxSize > 0 && errors.Is(err, derrors.ErrTooLarge) {
			e.logger().Debug(ctx, "Image too large to embed", "src", src)

			return false, nil
		}
		if e.SkipMissing && errors.Is(err, derrors.ErrNotFound) {
			e.logger().Warn(ctx, err, "Image not found, leaving it unembedded", "src", src)

			return false, nil
		}

		return false, err
	}
	if maxSize > 0 && int64(len(c.Data)) < e.MinSize {
		e.logger().Debug(ctx, "Image too small to embed", "src", src, "size", len(c.Data))

		return false, nil
	}

	img.SetAttr("src", c.DataURL())
	img.RemoveAttr(EmbedAttr)

	return true, nil
}

// EmbedImages embeds every eligible image in doc.
func (e *Embedder) EmbedImages(ctx context.Context, doc *goquery.Document) (int, error) {
	imgs := doc.Find("img")
	if imgs.Length() == 0 {
		e.logger().Debug(ctx, "No image tags found")

		return 0, nil
	}

	embedded := 0
	var failure error
	imgs.EachWithBreak(func(_ int, img *goquery.Selection) bool {
		ok, err := e.EmbedImg(ctx, img)
		if err != nil {
			failure = err

			return false
		}
		if ok {
			embedded++
		}

		return true
	})
	if failure != nil {
		return embedded, failure
	}
	e.logger().Debug(ctx, "Embedded images", "embedded", embedded, "total", imgs.Length())

	return embedded, nil
}

// EmbedHTML is EmbedImages over HTML text. A fragment without <head> or
// <body> stays a fragment and keeps every node, including leading <style>
// and <link> elements.
func (e *Embedder) EmbedHTML(ctx context.Context, text string) (string, error) {
	if isFragment(text) {
		return e.embedFragment(ctx, text)
	}
	doc, err := Parse(text)
	if err != nil {
		return "", err
	}
	if _, err := e.EmbedImages(ctx, doc); err != nil {
		return "", err
	}

	return doc.Html()
}

// embedFragment parses text in a <body> context so that no node is moved
// into a synthesized head.
func (e *Embedder) embedFragment(ctx context.Context, text string) (string, error) {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(text), body)
	if err != nil {
		return "", derrors.NewPackageError("Bad HTML").WithCause(err)
	}
	for _, n := range nodes {
		body.AppendChild(n)
	}
	if _, err := e.EmbedImages(ctx, goquery.NewDocumentFromNode(body)); err != nil {
		return "", err
	}

	var b strings.Builder
	for n := body.FirstChild; n != nil; n = n.NextSibling {
		if err := html.Render(&b, n); err != nil {
			return "", derrors.NewPackageError("Bad HTML").WithCause(err)
		}
	}

	return b.String(), nil
}

// Parse parses HTML text into a document.
func Parse(text string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return nil, derrors.NewPackageError("Bad HTML").WithCause(err)
	}

	return doc, nil
}
