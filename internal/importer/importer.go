// Package importer brings external content into a template package at
// compile time. The URL scheme selects the importer from the "importers"
// plugin namespace.
package importer

import (
	"context"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jin-gizmo/docma/internal/config"
	derrors "github.com/jin-gizmo/docma/internal/errors"
	"github.com/jin-gizmo/docma/internal/logging"
	"github.com/jin-gizmo/docma/internal/monitoring"
	"github.com/jin-gizmo/docma/internal/plugins"
	"github.com/jin-gizmo/docma/internal/transfer"
)

// Importer fetches the bytes at u within the bounds of opts.
type Importer func(ctx context.Context, u *url.URL, opts transfer.Options) ([]byte, error)

func init() {
	plugins.DeclarePackage(plugins.NamespaceImporters)
	plugins.DeclareModule(plugins.NamespaceImporters, "http", loadHTTP)
	plugins.DeclareModule(plugins.NamespaceImporters, "s3", loadS3)
	plugins.DeclareModule(plugins.NamespaceImporters, "file", loadFile)
}

var router = plugins.NewLazyRouter(func() (*plugins.Router, error) {
	pkg, err := plugins.NewPackageResolver(plugins.NamespaceImporters)
	if err != nil {
		return nil, err
	}

	return plugins.NewRouter("importers", []plugins.Resolver{pkg},
		plugins.WithLogger(logging.Default().WithComponent("importer"))), nil
})

var (
	limitsMu sync.RWMutex
	limits   = config.TransferConfig{MaxSize: 10 << 20, Timeout: 30 * time.Second, Retries: 2}
)

// Configure sets the timeout and retry policy for later imports.
func Configure(tc config.TransferConfig) {
	limitsMu.Lock()
	defer limitsMu.Unlock()
	limits = tc
}

func options(maxSize int64) transfer.Options {
	limitsMu.RLock()
	defer limitsMu.RUnlock()
	if maxSize == 0 {
		maxSize = limits.MaxSize
	}

	return transfer.Options{
		MaxSize: maxSize,
		Timeout: limits.Timeout,
		Probe:   true,
		Retries: limits.Retries,
		Kind:    derrors.KindImport,
	}
}

// Lookup returns the importer for a URL scheme.
func Lookup(scheme string) (Importer, error) {
	p, err := router.Lookup(scheme)
	if err != nil {
		if errors.Is(err, &derrors.DocmaError{Kind: derrors.KindPluginLookup}) {
			return nil, derrors.NewImportError(derrors.CodeUnknown, "No importer available for %s", scheme)
		}

		return nil, err
	}

	return plugins.As[Importer](p)
}

// Import fetches rawURL. A maxSize of zero applies the configured limit.
func Import(ctx context.Context, rawURL string, maxSize int64) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, derrors.NewImportError(derrors.CodeInvalid, "Bad URL").WithPath(rawURL).WithCause(err)
	}
	imp, err := Lookup(u.Scheme)
	if err != nil {
		return nil, err
	}

	data, err := imp(ctx, u, options(maxSize))
	monitoring.Transfer("import", u.Scheme, len(data), err)
	if err != nil {
		return nil, derrors.Retag(err, derrors.KindImport, derrors.CodeTransport)
	}

	return data, nil
}

// HTTP imports over http and https.
func HTTP(ctx context.Context, u *url.URL, opts transfer.Options) ([]byte, error) {
	res, err := transfer.HTTP(ctx, u.String(), opts)
	if err != nil {
		return nil, err
	}

	return res.Data, nil
}

// S3 imports s3://bucket/key objects.
func S3(ctx context.Context, u *url.URL, opts transfer.Options) ([]byte, error) {
	res, err := transfer.S3(ctx, u, opts)
	if err != nil {
		return nil, err
	}

	return res.Data, nil
}

// File imports a local file named by file:relative/path or
// file:///absolute/path.
func File(_ context.Context, u *url.URL, opts transfer.Options) ([]byte, error) {
	name := u.Opaque
	if name == "" {
		if u.Host != "" {
			return nil, derrors.NewImportError(derrors.CodeInvalid, "Use file:path or file:///path").WithPath(u.String())
		}
		name = u.Path
	}
	name = filepath.FromSlash(strings.TrimSpace(name))

	f, err := os.Open(name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, opts.NotFound(u.String())
		}

		return nil, derrors.NewImportError(derrors.CodeTransport, "Cannot read file").WithPath(u.String()).WithCause(err)
	}
	defer f.Close()

	if info, err := f.Stat(); err == nil && opts.Exceeds(info.Size()) {
		return nil, opts.TooLarge(u.String(), info.Size())
	}

	return opts.ReadAll(u.String(), f)
}

func loadHTTP(reg *plugins.Registrar) error {
	return reg.Add(Importer(HTTP), plugins.Names("http", "https"), plugins.Types(plugins.TypeImporter))
}

func loadS3(reg *plugins.Registrar) error {
	return reg.Add(Importer(S3), plugins.Names("s3"), plugins.Types(plugins.TypeImporter))
}

func loadFile(reg *plugins.Registrar) error {
	return reg.Add(Importer(File), plugins.Names("file"), plugins.Types(plugins.TypeImporter))
}
