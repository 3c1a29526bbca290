// Package packager reads and writes compiled template packages. A package
// is either an expanded directory or a zip archive; both are read through
// the same Reader.
package packager

import (
	"archive/zip"
	"errors"
	"io"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	derrors "github.com/jin-gizmo/docma/internal/errors"
)

// Reader gives read-only access to a package. It is safe for concurrent
// use.
type Reader struct {
	location string
	fsys     fs.FS
	closer   io.Closer
}

// Open opens the package at location, which may be a directory or a zip
// file.
func Open(location string) (*Reader, error) {
	info, err := os.Stat(location)
	if err != nil {
		return nil, derrors.NewPackageError("Cannot open package").WithPath(location).WithCause(err)
	}

	if info.IsDir() {
		return &Reader{location: location, fsys: os.DirFS(location)}, nil
	}

	zr, err := zip.OpenReader(location)
	if err != nil {
		return nil, derrors.NewPackageError("Not a directory or zip package").WithPath(location).WithCause(err)
	}

	return &Reader{location: location, fsys: zr, closer: zr}, nil
}

// NewFSReader wraps an existing file system as a package.
func NewFSReader(location string, fsys fs.FS) *Reader {
	return &Reader{location: location, fsys: fsys}
}

// Location returns the path the package was opened from.
func (r *Reader) Location() string {
	return r.location
}

// FS exposes the package contents as a file system.
func (r *Reader) FS() fs.FS {
	return r.fsys
}

// Close releases the underlying archive, if any.
func (r *Reader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}

	return nil
}

// Clean normalises a package member name and rejects names that would
// escape the package.
func Clean(name string) (string, error) {
	name = strings.TrimPrefix(path.Clean("/"+strings.ReplaceAll(name, "\\", "/")), "/")
	if name == "" || name == "." {
		return "", derrors.NewPackageError("Empty package path")
	}
	if !fs.ValidPath(name) {
		return "", derrors.NewPackageError("Bad package path: %s", name)
	}

	return name, nil
}

// Exists reports whether name is present as a file or directory.
func (r *Reader) Exists(name string) bool {
	name, err := Clean(name)
	if err != nil {
		return false
	}
	_, err = fs.Stat(r.fsys, name)

	return err == nil
}

// IsDir reports whether name is present and a directory.
func (r *Reader) IsDir(name string) bool {
	name, err := Clean(name)
	if err != nil {
		return false
	}
	info, err := fs.Stat(r.fsys, name)

	return err == nil && info.IsDir()
}

// ReadFile returns the contents of name.
func (r *Reader) ReadFile(name string) ([]byte, error) {
	clean, err := Clean(name)
	if err != nil {
		return nil, err
	}
	data, err := fs.ReadFile(r.fsys, clean)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &derrors.DocmaError{
				Kind:    derrors.KindPackage,
				Code:    derrors.CodeNotFound,
				Message: "No such file " + path.Join(r.location, clean),
			}
		}

		return nil, derrors.NewPackageError("Cannot read %s", clean).WithCause(err)
	}

	return data, nil
}

// ReadText returns the contents of name as a string.
func (r *Reader) ReadText(name string) (string, error) {
	data, err := r.ReadFile(name)

	return string(data), err
}

// Names returns every regular file in the package, sorted.
func (r *Reader) Names() ([]string, error) {
	var names []string
	err := fs.WalkDir(r.fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			names = append(names, p)
		}

		return nil
	})
	if err != nil {
		return nil, derrors.NewPackageError("Cannot list package").WithPath(r.location).WithCause(err)
	}
	sort.Strings(names)

	return names, nil
}
