package packager

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	derrors "github.com/jin-gizmo/docma/internal/errors"
)

// Writer builds a package in a temporary location next to its target.
// Commit promotes it into place; Abort (or Close without Commit) discards
// it, so a failed build never leaves a partial package behind.
type Writer struct {
	target string
	tmp    string
	zipped bool

	zf    *os.File
	zw    *zip.Writer
	names map[string]bool

	done bool
}

// Create starts a new package at target. Targets ending in .zip produce
// an archive, anything else a directory. An existing directory target must
// be empty or hold a previously compiled package.
func Create(target string) (*Writer, error) {
	target = filepath.Clean(target)
	zipped := strings.EqualFold(filepath.Ext(target), ".zip")

	if info, err := os.Stat(target); err == nil {
		if !zipped && !info.IsDir() {
			return nil, derrors.NewPackageError("%s: not a directory", target)
		}
		if info.IsDir() {
			if err := checkReplaceable(target); err != nil {
				return nil, err
			}
		}
	}

	parent := filepath.Dir(target)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return nil, derrors.NewPackageError("Cannot create %s", parent).WithCause(err)
	}

	tmp := filepath.Join(parent, fmt.Sprintf(".%s.%s.tmp", filepath.Base(target), uuid.NewString()))
	w := &Writer{target: target, tmp: tmp, zipped: zipped, names: make(map[string]bool)}

	if zipped {
		f, err := os.Create(tmp)
		if err != nil {
			return nil, derrors.NewPackageError("Cannot create %s", tmp).WithCause(err)
		}
		w.zf = f
		w.zw = zip.NewWriter(f)
	} else if err := os.Mkdir(tmp, 0o755); err != nil {
		return nil, derrors.NewPackageError("Cannot create %s", tmp).WithCause(err)
	}

	return w, nil
}

func checkReplaceable(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return derrors.NewPackageError("Cannot read %s", dir).WithCause(err)
	}
	if len(entries) == 0 {
		return nil
	}
	if _, err := os.Stat(filepath.Join(dir, VersionFile)); err == nil {
		return nil
	}

	return derrors.NewPackageError("%s exists and is not a compiled docma template package", dir)
}

// Target returns the final location of the package.
func (w *Writer) Target() string {
	return w.target
}

// Exists reports whether name has been written.
func (w *Writer) Exists(name string) bool {
	name, err := Clean(name)

	return err == nil && w.names[name]
}

// WriteBytes stores data under name.
func (w *Writer) WriteBytes(name string, data []byte) error {
	if w.done {
		return derrors.NewPackageError("Package writer is closed")
	}
	name, err := Clean(name)
	if err != nil {
		return err
	}

	if w.zipped {
		fw, err := w.zw.Create(name)
		if err != nil {
			return derrors.NewPackageError("Cannot add %s", name).WithCause(err)
		}
		if _, err := fw.Write(data); err != nil {
			return derrors.NewPackageError("Cannot write %s", name).WithCause(err)
		}
	} else {
		dst := filepath.Join(w.tmp, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return derrors.NewPackageError("Cannot create directory for %s", name).WithCause(err)
		}
		if err := os.WriteFile(dst, data, 0o644); err != nil {
			return derrors.NewPackageError("Cannot write %s", name).WithCause(err)
		}
	}
	w.names[name] = true

	return nil
}

// WriteString stores s under name.
func (w *Writer) WriteString(name, s string) error {
	return w.WriteBytes(name, []byte(s))
}

// AddFile copies the local file src into the package as name.
func (w *Writer) AddFile(src, name string) error {
	f, err := os.Open(src)
	if err != nil {
		return derrors.NewPackageError("Cannot open %s", src).WithCause(err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return derrors.NewPackageError("Cannot read %s", src).WithCause(err)
	}

	return w.WriteBytes(name, data)
}

// Commit finalises the package and moves it to its target.
func (w *Writer) Commit() error {
	if w.done {
		return derrors.NewPackageError("Package writer is closed")
	}
	w.done = true

	if w.zipped {
		if err := w.zw.Close(); err != nil {
			w.discard()

			return derrors.NewPackageError("Cannot finalise %s", w.target).WithCause(err)
		}
		if err := w.zf.Close(); err != nil {
			w.discard()

			return derrors.NewPackageError("Cannot finalise %s", w.target).WithCause(err)
		}
	} else if err := os.RemoveAll(w.target); err != nil {
		w.discard()

		return derrors.NewPackageError("Cannot replace %s", w.target).WithCause(err)
	}

	if err := os.Rename(w.tmp, w.target); err != nil {
		w.discard()

		return derrors.NewPackageError("Cannot promote package to %s", w.target).WithCause(err)
	}

	return nil
}

// Abort discards everything written so far.
func (w *Writer) Abort() error {
	if w.done {
		return nil
	}
	w.done = true
	if w.zipped {
		_ = w.zw.Close()
		_ = w.zf.Close()
	}

	return w.discard()
}

// Close aborts the package unless it has been committed.
func (w *Writer) Close() error {
	return w.Abort()
}

func (w *Writer) discard() error {
	return os.RemoveAll(w.tmp)
}
