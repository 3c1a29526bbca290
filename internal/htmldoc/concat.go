package htmldoc

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/jin-gizmo/docma/internal/metadata"
)

// The parser always synthesizes <head> and <body>, so their presence in
// the source text is checked on the raw markup.
var (
	headTag = regexp.MustCompile(`(?i)<head[\s>]`)
	bodyTag = regexp.MustCompile(`(?i)<body[\s>]`)
)

// Concat combines HTML documents in order. The head and body content of
// each document are appended to the head and body of the first complete
// document. A document without <head> contributes only its body. A
// fragment with neither <head> nor <body> is appended verbatim after the
// combined document.
func Concat(docs ...string) (string, error) {
	var out *goquery.Document
	var trailer strings.Builder
	for _, text := range docs {
		if isFragment(text) {
			trailer.WriteString(text)

			continue
		}
		doc, err := Parse(text)
		if err != nil {
			return "", err
		}
		if out == nil {
			out = doc

			continue
		}
		if headTag.MatchString(text) {
			moveChildren(doc.Find("head"), out.Find("head"))
		}
		moveChildren(doc.Find("body"), out.Find("body"))
	}
	if out == nil {
		return trailer.String(), nil
	}

	combined, err := out.Html()
	if err != nil {
		return "", err
	}

	return combined + trailer.String(), nil
}

func isFragment(text string) bool {
	return !headTag.MatchString(text) && !bodyTag.MatchString(text)
}

func moveChildren(from, to *goquery.Selection) {
	if from.Length() == 0 || to.Length() == 0 {
		return
	}
	dst := to.Get(0)
	for n := from.Get(0).FirstChild; n != nil; {
		next := n.NextSibling
		n.Parent.RemoveChild(n)
		dst.AppendChild(n)
		n = next
	}
}

// InjectMetadata writes meta into the document head: the title becomes
// <title>, every other entry a <meta name=... content=...> tag. Existing
// tags of the same name are replaced.
func InjectMetadata(doc *goquery.Document, meta *metadata.Metadata) error {
	if meta == nil || meta.Len() == 0 {
		return nil
	}
	values, err := meta.AsDict(metadata.FormatHTML)
	if err != nil {
		return err
	}

	head := doc.Find("head")
	if head.Length() == 0 {
		doc.Find("html").PrependHtml("<head></head>")
		head = doc.Find("head")
	}
	for _, name := range meta.Names() {
		value := values[name]
		if name == "title" {
			title := head.Find("title")
			if title.Length() == 0 {
				head.AppendHtml("<title></title>")
				title = head.Find("title")
			}
			title.First().SetText(value)

			continue
		}
		head.Find(`meta[name="` + name + `"]`).Remove()
		head.AppendNodes(&html.Node{
			Type: html.ElementNode,
			Data: "meta",
			Attr: []html.Attribute{{Key: "name", Val: name}, {Key: "content", Val: value}},
		})
	}

	return nil
}

// InjectMetadataHTML is InjectMetadata over HTML text.
func InjectMetadataHTML(text string, meta *metadata.Metadata) (string, error) {
	if meta == nil || meta.Len() == 0 {
		return text, nil
	}
	doc, err := Parse(text)
	if err != nil {
		return "", err
	}
	if err := InjectMetadata(doc, meta); err != nil {
		return "", err
	}

	return doc.Html()
}

// InjectStylesheets appends a <link rel="stylesheet"> to the head for
// each package path in hrefs. Paths are made root-relative so they
// resolve the same from any document directory.
func InjectStylesheets(text string, hrefs []string) (string, error) {
	if len(hrefs) == 0 {
		return text, nil
	}
	doc, err := Parse(text)
	if err != nil {
		return "", err
	}
	head := doc.Find("head")
	for _, href := range hrefs {
		if !strings.Contains(href, ":") {
			href = "/" + strings.TrimPrefix(href, "/")
		}
		head.AppendNodes(&html.Node{
			Type: html.ElementNode,
			Data: "link",
			Attr: []html.Attribute{{Key: "rel", Val: "stylesheet"}, {Key: "href", Val: href}},
		})
	}

	return doc.Html()
}
