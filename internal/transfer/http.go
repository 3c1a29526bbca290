package transfer

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/jin-gizmo/docma/internal/content"
	derrors "github.com/jin-gizmo/docma/internal/errors"
)

var (
	httpMu     sync.RWMutex
	httpClient = &http.Client{}
)

// HTTPClient returns the shared client used for HTTP transfers.
func HTTPClient() *http.Client {
	httpMu.RLock()
	defer httpMu.RUnlock()

	return httpClient
}

// SetHTTPClient replaces the shared client and returns the previous one.
func SetHTTPClient(c *http.Client) *http.Client {
	httpMu.Lock()
	defer httpMu.Unlock()
	prev := httpClient
	httpClient = c

	return prev
}

// HTTP downloads url. With Probe set a HEAD request checks existence and
// declared size first; the size is checked again while reading the body
// because servers may under-report it.
func HTTP(ctx context.Context, url string, opts Options) (Result, error) {
	ctx, cancel := opts.context(ctx)
	defer cancel()
	client := HTTPClient()

	if opts.Probe {
		if err := probeHTTP(ctx, client, url, opts); err != nil {
			return Result{}, err
		}
	}

	resp, err := get(ctx, client, url, opts)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, url, opts); err != nil {
		return Result{}, err
	}
	if opts.Exceeds(resp.ContentLength) {
		return Result{}, opts.TooLarge(url, resp.ContentLength)
	}

	data, err := opts.ReadAll(url, resp.Body)
	if err != nil {
		return Result{}, err
	}

	return Result{Data: data, ContentType: content.Normalize(resp.Header.Get("Content-Type"))}, nil
}

// get issues the GET, retrying transport failures and 5xx responses up to
// opts.Retries times.
func get(ctx context.Context, client *http.Client, url string, opts Options) (*http.Response, error) {
	var resp *http.Response
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(opts.fail(derrors.CodeTransport, url, "Bad URL").WithCause(err))
		}
		r, err := client.Do(req)
		if err != nil {
			return opts.fail(derrors.CodeTransport, url, "Transfer failed").WithCause(err)
		}
		if r.StatusCode >= 500 {
			r.Body.Close()

			return opts.fail(derrors.CodeTransport, url, "HTTP error %d: %s", r.StatusCode, http.StatusText(r.StatusCode))
		}
		resp = r

		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(max(opts.Retries, 0))), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, err
	}

	return resp, nil
}

func probeHTTP(ctx context.Context, client *http.Client, url string, opts Options) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return opts.fail(derrors.CodeTransport, url, "Bad URL").WithCause(err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return opts.fail(derrors.CodeTransport, url, "Transfer failed").WithCause(err)
	}
	resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return opts.NotFound(url)
	case resp.StatusCode >= 300:
		// Some servers refuse HEAD; the GET will tell.
		return nil
	case opts.Exceeds(resp.ContentLength):
		return opts.TooLarge(url, resp.ContentLength)
	}

	return nil
}

func checkStatus(resp *http.Response, url string, opts Options) error {
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return opts.NotFound(url)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return opts.fail(derrors.CodeTransport, url, "HTTP error %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	return nil
}
