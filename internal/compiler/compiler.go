// Package compiler turns a template source directory into a compiled
// template package.
//
// Compilation runs in phases and the first failure aborts it:
//
//  1. the source must be a directory holding config.yaml
//  2. config.yaml and every *.query.yaml must satisfy their schemas
//  3. every local document must have a source
//  4. source files are compiled by suffix (Markdown to HTML) or copied
//  5. imports are fetched into the package
//  6. the version manifest is stamped
//
// The package is built next to its target and only moved into place when
// every phase succeeds.
package compiler

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/jin-gizmo/docma/internal/datasrc"
	derrors "github.com/jin-gizmo/docma/internal/errors"
	"github.com/jin-gizmo/docma/internal/importer"
	"github.com/jin-gizmo/docma/internal/logging"
	"github.com/jin-gizmo/docma/internal/monitoring"
	"github.com/jin-gizmo/docma/internal/packager"
	"github.com/jin-gizmo/docma/internal/tmplconf"
)

// QuerySuffix marks query specifications in the source tree.
const QuerySuffix = ".query.yaml"

// ImportFunc fetches the content of an import URL.
type ImportFunc func(ctx context.Context, rawURL string, maxSize int64) ([]byte, error)

// Options configure a compilation.
type Options struct {
	Logger logging.Logger
	// Import defaults to the importer plugin dispatch.
	Import ImportFunc
	// ImportMaxSize bounds each import; zero uses the importer default.
	ImportMaxSize int64
}

type compilation struct {
	ctx    context.Context
	src    string
	opts   Options
	logger logging.Logger
	cfg    *tmplconf.Config

	// files maps source paths to their package names.
	files   map[string]string
	outputs map[string]string
}

// Compile compiles the template source tree at srcDir into a package at
// target. A target ending in .zip produces an archive.
func Compile(ctx context.Context, srcDir, target string, opts Options) (err error) {
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	if opts.Import == nil {
		opts.Import = importer.Import
	}
	logger := opts.Logger.WithComponent("compiler").With("source", srcDir, "target", target)
	op := logging.StartOperation(logger, "compile")
	defer func() {
		monitoring.Compile(err)
		if err != nil {
			op.EndWithError(ctx, err)
		} else {
			op.End(ctx)
		}
	}()

	c := &compilation{
		ctx:     ctx,
		src:     srcDir,
		opts:    opts,
		logger:  logger,
		files:   make(map[string]string),
		outputs: make(map[string]string),
	}
	if err := c.checkSource(); err != nil {
		return err
	}
	if err := c.scan(target); err != nil {
		return err
	}
	if err := c.validate(); err != nil {
		return err
	}
	if err := c.resolveDocuments(); err != nil {
		return err
	}

	w, err := packager.Create(target)
	if err != nil {
		return err
	}
	defer w.Abort()

	if err := c.copyFiles(w); err != nil {
		return err
	}
	if err := c.importFiles(w); err != nil {
		return err
	}
	if err := packager.WriteVersionInfo(w); err != nil {
		return err
	}

	return w.Commit()
}

func (c *compilation) checkSource() error {
	info, err := os.Stat(c.src)
	if err != nil || !info.IsDir() {
		return derrors.NewPackageError("%s: not a directory", c.src)
	}
	if _, err := os.Stat(filepath.Join(c.src, tmplconf.ConfigFile)); err != nil {
		return derrors.NewPackageError("No docma configuration file found").WithPath(c.src)
	}

	return nil
}

// scan lists the source files that go into the package. Hidden entries,
// excluded paths and a target nested inside the source are skipped.
func (c *compilation) scan(target string) error {
	data, err := os.ReadFile(filepath.Join(c.src, tmplconf.ConfigFile))
	if err != nil {
		return derrors.NewPackageError("Cannot read %s", tmplconf.ConfigFile).WithPath(c.src).WithCause(err)
	}
	c.cfg, err = tmplconf.Parse(tmplconf.ConfigFile, data)
	if err != nil {
		return err
	}
	for _, pattern := range c.cfg.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return derrors.NewValidationError("Bad exclude pattern: %s", pattern).WithPath(tmplconf.ConfigFile)
		}
	}

	nested := ""
	if absSrc, err := filepath.Abs(c.src); err == nil {
		if absTgt, err := filepath.Abs(target); err == nil {
			if rel, err := filepath.Rel(absSrc, absTgt); err == nil && !strings.HasPrefix(rel, "..") {
				nested = filepath.ToSlash(rel)
			}
		}
	}

	return fs.WalkDir(os.DirFS(c.src), ".", func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return derrors.NewPackageError("Cannot read source").WithPath(name).WithCause(err)
		}
		if name == "." {
			return nil
		}
		if strings.HasPrefix(path.Base(name), ".") || name == nested || c.excluded(name) {
			if d.IsDir() {
				return fs.SkipDir
			}

			return nil
		}
		if d.IsDir() {
			return nil
		}

		out := CompiledName(name)
		if prev, ok := c.outputs[out]; ok {
			return derrors.NewPackageError("%s and %s both compile to %s", prev, name, out)
		}
		c.outputs[out] = name
		c.files[name] = out

		return nil
	})
}

func (c *compilation) excluded(name string) bool {
	for _, pattern := range c.cfg.Exclude {
		if ok, _ := doublestar.Match(pattern, name); ok {
			return true
		}
	}

	return false
}

// validate checks every query specification. config.yaml was checked
// when it was parsed.
func (c *compilation) validate() error {
	for name := range c.files {
		if !strings.HasSuffix(name, QuerySuffix) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(c.src, filepath.FromSlash(name)))
		if err != nil {
			return derrors.NewPackageError("Cannot read query").WithPath(name).WithCause(err)
		}
		if _, err := datasrc.ParseQuery(name, data); err != nil {
			return err
		}
	}

	return nil
}

func (c *compilation) resolveDocuments() error {
	imported := make(map[string]bool, len(c.cfg.Imports))
	for _, imp := range c.cfg.Imports {
		imported[CompiledName(imp.Target())] = true
	}

	for _, doc := range c.cfg.Documents {
		if doc.IsRemote() {
			continue
		}
		name, err := packager.Clean(doc.Src)
		if err != nil {
			return derrors.NewPackageError("No document source found").WithPath(doc.Src).WithCause(err)
		}
		if _, ok := c.outputs[name]; !ok && !imported[name] {
			return derrors.NewPackageError("No document source found").WithPath(doc.Src)
		}
	}

	return nil
}

func (c *compilation) copyFiles(w *packager.Writer) error {
	for name := range c.files {
		data, err := os.ReadFile(filepath.Join(c.src, filepath.FromSlash(name)))
		if err != nil {
			return derrors.NewPackageError("Cannot read source").WithPath(name).WithCause(err)
		}
		if _, err := addContent(w, name, data); err != nil {
			return err
		}
	}
	c.logger.Debug(c.ctx, "Copied source files", "count", len(c.files))

	return nil
}

func (c *compilation) importFiles(w *packager.Writer) error {
	for _, imp := range c.cfg.Imports {
		data, err := c.opts.Import(c.ctx, imp.Src, c.opts.ImportMaxSize)
		if err != nil {
			return derrors.NewPackageError("Bad import: %s", imp.Src).WithCause(err)
		}
		name, err := addContent(w, imp.Target(), data)
		if err != nil {
			return err
		}
		c.logger.Debug(c.ctx, "Imported file", "url", imp.Src, "name", name)
	}

	return nil
}

// addContent compiles data according to the suffix of name and stores it
// in the package. It returns the package name used.
func addContent(w *packager.Writer, name string, data []byte) (string, error) {
	compile, err := CompilerFor(name)
	if err != nil {
		return "", err
	}
	if compile == nil {
		return name, w.WriteBytes(name, data)
	}

	out, err := compile(data)
	if err != nil {
		var de *derrors.DocmaError
		if errors.As(err, &de) {
			return "", err
		}

		return "", derrors.NewPackageError("Cannot compile").WithPath(name).WithCause(err)
	}
	name = CompiledName(name)

	return name, w.WriteBytes(name, out)
}
