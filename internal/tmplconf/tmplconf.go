// Package tmplconf reads a template's config.yaml: its description, the
// documents it renders, content imported at compile time, metadata,
// parameter defaults and PDF overlays.
package tmplconf

import (
	"fmt"
	"net/url"
	"path"

	"gopkg.in/yaml.v3"

	derrors "github.com/jin-gizmo/docma/internal/errors"
	"github.com/jin-gizmo/docma/internal/packager"
	"github.com/jin-gizmo/docma/internal/params"
	"github.com/jin-gizmo/docma/internal/schema"
)

// ConfigFile is the name of the template configuration in both the source
// tree and the compiled package.
const ConfigFile = "config.yaml"

// Config is the decoded config.yaml.
type Config struct {
	Description string             `yaml:"description"`
	Owner       string             `yaml:"owner"`
	Version     string             `yaml:"version"`
	Documents   []DocSpec          `yaml:"documents"`
	Imports     []Import           `yaml:"imports"`
	Exclude     []string           `yaml:"exclude"`
	Metadata    map[string]any     `yaml:"metadata"`
	Options     Options            `yaml:"options"`
	Parameters  Parameters         `yaml:"parameters"`
	Overlays    map[string]Overlay `yaml:"overlays"`
}

// Options tune PDF production.
type Options struct {
	Compress    bool     `yaml:"compress"`
	Stylesheets []string `yaml:"stylesheets"`
}

// Parameters hold render parameter defaults and an optional JSON schema
// the merged parameters must satisfy.
type Parameters struct {
	Defaults map[string]any `yaml:"defaults"`
	Schema   map[string]any `yaml:"schema"`
}

// DocSpec is one entry of the documents list: a bare source or
// {src, if}. A source with a URL scheme is fetched at render time.
type DocSpec struct {
	Src string `yaml:"src"`
	// If is a template rendered against the parameters; the document is
	// selected when it renders to a true value. Empty means always.
	If string `yaml:"if"`
}

// UnmarshalYAML accepts the string and mapping forms.
func (d *DocSpec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		d.Src = node.Value

		return nil
	}
	type plain DocSpec

	return node.Decode((*plain)(d))
}

func (d DocSpec) url() *url.URL {
	u, err := url.Parse(d.Src)
	if err != nil {
		return &url.URL{Path: d.Src}
	}

	return u
}

// Scheme returns the URL scheme of the source, empty for package files.
func (d DocSpec) Scheme() string {
	return d.url().Scheme
}

// Netloc returns the URL host of the source: the bucket of an s3 URL.
func (d DocSpec) Netloc() string {
	return d.url().Host
}

// IsRemote reports whether the source lives outside the package.
func (d DocSpec) IsRemote() bool {
	return d.Scheme() != ""
}

func (d DocSpec) String() string {
	return d.Src
}

// Import is one entry of the imports list: a bare URL or {src, tgt}.
type Import struct {
	Src string `yaml:"src"`
	Tgt string `yaml:"tgt"`
}

// UnmarshalYAML accepts the string and mapping forms.
func (i *Import) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		i.Src = node.Value

		return nil
	}
	type plain Import

	return node.Decode((*plain)(i))
}

// Target is the package path the import is stored under. It defaults to
// the last element of the URL path.
func (i Import) Target() string {
	if i.Tgt != "" {
		return i.Tgt
	}
	u, err := url.Parse(i.Src)
	if err != nil {
		return path.Base(i.Src)
	}
	p := u.Path
	if p == "" {
		p = u.Opaque
	}

	return path.Base(p)
}

// Overlay is a named PDF overlay: a package HTML file rendered into a PDF
// page, or plain text.
type Overlay struct {
	Src  string `yaml:"-"`
	Text string `yaml:"text"`
	Desc string `yaml:"desc"`
}

// UnmarshalYAML accepts a file name or {text, desc}.
func (o *Overlay) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		o.Src = node.Value

		return nil
	}
	type plain Overlay

	return node.Decode((*plain)(o))
}

// Parse validates and decodes config.yaml content. name is used in
// errors.
func Parse(name string, data []byte) (*Config, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, derrors.NewValidationError("Bad YAML: %v", err).WithPath(name)
	}
	doc = params.Normalize(doc)
	if doc == nil {
		return nil, derrors.NewValidationError("Empty configuration").WithPath(name)
	}

	v, err := schema.Builtin("config")
	if err != nil {
		return nil, err
	}
	if err := v.ValidateAs(name, doc); err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, derrors.NewValidationError("Bad configuration: %v", err).WithPath(name)
	}
	cfg.Metadata, _ = params.Normalize(cfg.Metadata).(map[string]any)
	cfg.Parameters.Defaults, _ = params.Normalize(cfg.Parameters.Defaults).(map[string]any)
	cfg.Parameters.Schema, _ = params.Normalize(cfg.Parameters.Schema).(map[string]any)

	return &cfg, nil
}

// Load reads the configuration of a compiled package.
func Load(pkg *packager.Reader) (*Config, error) {
	data, err := pkg.ReadFile(ConfigFile)
	if err != nil {
		return nil, err
	}

	return Parse(ConfigFile, data)
}

// ParamsValidator compiles the parameter schema, or returns nil when the
// template has none.
func (c *Config) ParamsValidator() (*schema.Validator, error) {
	if len(c.Parameters.Schema) == 0 {
		return nil, nil
	}

	return schema.Compile(ConfigFile+"/parameters/schema", c.Parameters.Schema)
}

// Overlay returns the named overlay.
func (c *Config) Overlay(name string) (Overlay, error) {
	o, ok := c.Overlays[name]
	if !ok {
		return Overlay{}, fmt.Errorf("no such overlay: %s", name)
	}

	return o, nil
}
