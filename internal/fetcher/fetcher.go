// Package fetcher resolves URLs referenced by rendered documents, such as
// image sources, into content. The URL scheme selects the fetcher from the
// "fetchers" plugin namespace.
package fetcher

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jin-gizmo/docma/internal/config"
	"github.com/jin-gizmo/docma/internal/content"
	derrors "github.com/jin-gizmo/docma/internal/errors"
	"github.com/jin-gizmo/docma/internal/generator"
	"github.com/jin-gizmo/docma/internal/logging"
	"github.com/jin-gizmo/docma/internal/monitoring"
	"github.com/jin-gizmo/docma/internal/plugins"
	"github.com/jin-gizmo/docma/internal/transfer"
)

// Env is the part of a render context a fetcher may use.
type Env = generator.Env

// Fetcher resolves u to content.
type Fetcher func(ctx context.Context, u *url.URL, env Env, opts transfer.Options) (content.Content, error)

func init() {
	plugins.DeclarePackage(plugins.NamespaceFetchers)
	plugins.DeclareModule(plugins.NamespaceFetchers, "docma", loadDocma)
	plugins.DeclareModule(plugins.NamespaceFetchers, "file", loadFile)
	plugins.DeclareModule(plugins.NamespaceFetchers, "http", loadHTTP)
	plugins.DeclareModule(plugins.NamespaceFetchers, "s3", loadS3)
}

var router = plugins.NewLazyRouter(func() (*plugins.Router, error) {
	pkg, err := plugins.NewPackageResolver(plugins.NamespaceFetchers)
	if err != nil {
		return nil, err
	}

	return plugins.NewRouter("fetchers", []plugins.Resolver{pkg},
		plugins.WithLogger(logging.Default().WithComponent("fetcher"))), nil
})

var (
	limitsMu sync.RWMutex
	limits   = config.TransferConfig{MaxSize: 10 << 20, Timeout: 30 * time.Second, Retries: 2}
)

// Configure sets the size bound, timeout and retry policy for later
// fetches.
func Configure(tc config.TransferConfig) {
	limitsMu.Lock()
	defer limitsMu.Unlock()
	limits = tc
}

// Options returns the transfer options for a fetch. A maxSize of zero
// applies the configured bound.
func Options(maxSize int64) transfer.Options {
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
		Kind:    derrors.KindURLFetch,
	}
}

// Lookup returns the fetcher for a URL scheme.
func Lookup(scheme string) (Fetcher, error) {
	p, err := router.Lookup(scheme)
	if err != nil {
		return nil, err
	}

	return plugins.As[Fetcher](p)
}

// Supports reports whether a fetcher exists for scheme.
func Supports(scheme string) bool {
	_, err := Lookup(scheme)

	return err == nil
}

// Fetch resolves rawURL with the configured bounds.
func Fetch(ctx context.Context, rawURL string, env Env) (content.Content, error) {
	return FetchWith(ctx, rawURL, env, Options(0))
}

// FetchWith resolves rawURL within opts.
func FetchWith(ctx context.Context, rawURL string, env Env, opts transfer.Options) (content.Content, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return content.Content{}, derrors.NewURLFetchError(derrors.CodeInvalid, "Bad URL").WithPath(rawURL).WithCause(err)
	}
	f, err := Lookup(u.Scheme)
	if err != nil {
		if errors.Is(err, &derrors.DocmaError{Kind: derrors.KindPluginLookup}) {
			return content.Content{}, derrors.NewURLFetchError(derrors.CodeUnknown, "No URL fetcher for %s", u.Scheme).WithPath(rawURL)
		}

		return content.Content{}, err
	}

	c, err := f(ctx, u, env, opts)
	monitoring.Transfer("fetch", u.Scheme, len(c.Data), err)
	if err != nil {
		return content.Content{}, err
	}

	return c, nil
}

// Docma serves docma:<type>?options URLs from the content generators.
func Docma(ctx context.Context, u *url.URL, env Env, _ transfer.Options) (content.Content, error) {
	if u.Host != "" {
		return content.Content{}, derrors.NewURLFetchError(derrors.CodeInvalid,
			"Use docma:<type>, not docma://<type>").WithPath(u.String())
	}

	return generator.Generate(ctx, u, env)
}

// File serves file:path URLs from the template package.
func File(_ context.Context, u *url.URL, env Env, opts transfer.Options) (content.Content, error) {
	if u.Opaque == "" {
		return content.Content{}, derrors.NewURLFetchError(derrors.CodeInvalid, "Use file:path, not file://path").
			WithPath(u.String())
	}
	if env == nil || env.Package() == nil {
		return content.Content{}, derrors.NewURLFetchError(derrors.CodeInvalid, "No package to fetch from").
			WithPath(u.String())
	}

	name, err := url.PathUnescape(u.Opaque)
	if err != nil {
		return content.Content{}, derrors.NewURLFetchError(derrors.CodeInvalid, "Bad path").WithPath(u.String())
	}
	data, err := env.Package().ReadFile(name)
	if err != nil {
		if errors.Is(err, derrors.ErrNotFound) {
			return content.Content{}, derrors.NewURLFetchError(derrors.CodeNotFound, "No such file or directory").
				WithPath(u.String())
		}

		return content.Content{}, derrors.Retag(err, derrors.KindURLFetch, derrors.CodeTransport)
	}
	if opts.Exceeds(int64(len(data))) {
		return content.Content{}, opts.TooLarge(u.String(), int64(len(data)))
	}

	return content.Content{Data: data, MimeType: content.TypeOrDefault(name)}, nil
}

// HTTP serves http and https URLs. The server's content type wins; when
// it is missing the type is guessed from the path.
func HTTP(ctx context.Context, u *url.URL, _ Env, opts transfer.Options) (content.Content, error) {
	res, err := transfer.HTTP(ctx, u.String(), opts)
	if err != nil {
		return content.Content{}, err
	}
	mimeType := res.ContentType
	if mimeType == "" {
		guessed, ok := content.GuessType(u.Path)
		if !ok {
			return content.Content{}, derrors.NewURLFetchError(derrors.CodeContentType, "Cannot get content type").
				WithPath(u.String())
		}
		mimeType = guessed
	}

	return content.Content{Data: res.Data, MimeType: mimeType}, nil
}

// S3 serves s3://bucket/key URLs. The type is guessed from the key first
// because objects are often stored without a meaningful content type.
func S3(ctx context.Context, u *url.URL, _ Env, opts transfer.Options) (content.Content, error) {
	res, err := transfer.S3(ctx, u, opts)
	if err != nil {
		return content.Content{}, err
	}
	mimeType, ok := content.GuessType(u.Path)
	if !ok {
		mimeType = res.ContentType
	}
	if mimeType == "" || strings.HasSuffix(mimeType, "/octet-stream") {
		mimeType = "application/octet-stream"
	}

	return content.Content{Data: res.Data, MimeType: mimeType}, nil
}

func fetcher(fn Fetcher, names ...string) *plugins.Plugin {
	return plugins.New(fn, plugins.Names(names...), plugins.Types(plugins.TypeFetcher))
}

func loadDocma(reg *plugins.Registrar) error { return reg.Register(fetcher(Docma, "docma")) }
func loadFile(reg *plugins.Registrar) error  { return reg.Register(fetcher(File, "file")) }
func loadHTTP(reg *plugins.Registrar) error  { return reg.Register(fetcher(HTTP, "http", "https")) }
func loadS3(reg *plugins.Registrar) error    { return reg.Register(fetcher(S3, "s3")) }
