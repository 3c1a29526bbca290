// Package content defines the byte payload exchanged by generators and URL
// fetchers, plus MIME type helpers.
package content

import (
	"encoding/base64"
	"mime"
	"path"
	"strings"
)

// Content is a blob of bytes with its MIME type. The JSON field for the
// bytes is "string" for compatibility with the fetcher result format used
// by HTML to PDF engines.
type Content struct {
	Data     []byte `json:"string"`
	MimeType string `json:"mime_type"`
}

// DataURL encodes c as an RFC 2397 data URL.
func (c Content) DataURL() string {
	return "data:" + c.MimeType + ";base64," + base64.StdEncoding.EncodeToString(c.Data)
}

var extraTypes = map[string]string{
	".csv":   "text/csv",
	".md":    "text/markdown",
	".jsonl": "application/jsonl",
	".yaml":  "application/yaml",
	".yml":   "application/yaml",
	".svg":   "image/svg+xml",
	".png":   "image/png",
	".html":  "text/html",
	".htm":   "text/html",
	".css":   "text/css",
	".pdf":   "application/pdf",
	".json":  "application/json",
}

// Normalize strips parameters from a media type.
func Normalize(mimeType string) string {
	if mimeType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0]))
	}

	return mt
}

// GuessType infers a MIME type from the extension of name.
func GuessType(name string) (string, bool) {
	ext := strings.ToLower(path.Ext(name))
	if ext == "" {
		return "", false
	}
	if t, ok := extraTypes[ext]; ok {
		return t, true
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return Normalize(t), true
	}

	return "", false
}

// TypeOrDefault guesses the MIME type of name, falling back to
// application/octet-stream.
func TypeOrDefault(name string) string {
	if t, ok := GuessType(name); ok {
		return t
	}

	return "application/octet-stream"
}
