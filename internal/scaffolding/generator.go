// Package scaffolding creates new template source directories.
package scaffolding

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"text/template"

	derrors "github.com/jin-gizmo/docma/internal/errors"
	"github.com/jin-gizmo/docma/internal/logging"
)

var templateID = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// Options control scaffold generation.
type Options struct {
	// Params override parameter defaults.
	Params map[string]string
	// Input, when set, is read for answers to prompts for every
	// parameter not in Params. Prompts are written to Output.
	Input  io.Reader
	Output io.Writer
	Logger logging.Logger
}

// Generator writes a template source tree.
type Generator struct {
	files  []File
	params []Parameter
	funcs  template.FuncMap
}

// NewGenerator creates a generator for the built-in scaffold.
func NewGenerator() *Generator {
	return &Generator{
		files:  Files,
		params: Parameters,
		funcs:  template.FuncMap{"quote": strconv.Quote},
	}
}

// New creates dir and writes the built-in scaffold into it.
func New(ctx context.Context, dir string, opts Options) error {
	return NewGenerator().Generate(ctx, dir, opts)
}

// Generate creates dir and writes the scaffold. dir must not exist.
func (g *Generator) Generate(ctx context.Context, dir string, opts Options) error {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}
	logger = logger.WithComponent("scaffolding")

	if _, err := os.Lstat(dir); err == nil {
		return derrors.NewPackageError("Directory already exists").WithPath(dir)
	}
	values, err := g.resolve(dir, opts)
	if err != nil {
		return err
	}

	rendered := make(map[string][]byte, len(g.files))
	for _, f := range g.files {
		data, err := g.render(f, values)
		if err != nil {
			return err
		}
		rendered[f.Path] = data
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return derrors.NewPackageError("Cannot create directory").WithPath(dir).WithCause(err)
	}
	for _, f := range g.files {
		path := filepath.Join(dir, filepath.FromSlash(f.Path))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return derrors.NewPackageError("Cannot create directory").WithPath(path).WithCause(err)
		}
		if err := os.WriteFile(path, rendered[f.Path], 0o644); err != nil {
			return derrors.NewPackageError("Cannot write file").WithPath(path).WithCause(err)
		}
		logger.Debug(ctx, "Wrote scaffold file", "path", path)
	}
	logger.Info(ctx, "Created template source", "directory", dir, "template_id", values["template_id"])

	return nil
}

// resolve merges params, answers and defaults into template values.
func (g *Generator) resolve(dir string, opts Options) (map[string]string, error) {
	known := make(map[string]Parameter, len(g.params))
	for _, p := range g.params {
		known[p.Name] = p
	}
	var unknown []string
	for name := range opts.Params {
		if _, ok := known[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)

		return nil, derrors.NewValidationError("Unknown scaffold parameter: %s", strings.Join(unknown, ", "))
	}

	values := map[string]string{"dir": dir}
	var answers *bufio.Scanner
	if opts.Input != nil {
		answers = bufio.NewScanner(opts.Input)
	}
	for _, p := range g.params {
		def := p.Default
		if def == "" && p.Name == "template_id" {
			def = filepath.Base(filepath.Clean(dir))
		}
		value, ok := opts.Params[p.Name]
		if !ok && answers != nil {
			if opts.Output != nil {
				fmt.Fprintf(opts.Output, "%s [%s]: ", p.Description, def)
			}
			if answers.Scan() {
				value = strings.TrimSpace(answers.Text())
			}
		}
		if value == "" {
			value = def
		}
		values[p.Name] = value
	}

	if !templateID.MatchString(values["template_id"]) {
		return nil, derrors.NewValidationError("Bad template_id: %q", values["template_id"])
	}

	return values, nil
}

func (g *Generator) render(f File, values map[string]string) ([]byte, error) {
	tmpl, err := template.New(f.Path).Delims("[[", "]]").Funcs(g.funcs).Option("missingkey=error").Parse(f.Content)
	if err != nil {
		return nil, derrors.NewPackageError("Bad scaffold template").WithPath(f.Path).WithCause(err)
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, values); err != nil {
		return nil, derrors.NewPackageError("Bad scaffold template").WithPath(f.Path).WithCause(err)
	}

	return []byte(b.String()), nil
}
