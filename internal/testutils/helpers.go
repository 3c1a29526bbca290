// Package testutils holds fixtures shared by docma's package tests: template
// trees on disk, an HTTP server with controllable headers and an in-memory
// S3 client.
package testutils

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"testing/fstest"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/require"

	"github.com/jin-gizmo/docma/internal/content"
	"github.com/jin-gizmo/docma/internal/packager"
)

// WriteTree creates files under dir, making parent directories as needed.
func WriteTree(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, data := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	}
}

// CreateTempTemplate writes a template source tree into a fresh temporary
// directory and returns its path.
func CreateTempTemplate(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "template")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	WriteTree(t, dir, files)

	return dir
}

// MemPackage returns an in-memory package holding files.
func MemPackage(files map[string]string) *packager.Reader {
	fsys := fstest.MapFS{}
	for name, data := range files {
		fsys[name] = &fstest.MapFile{Data: []byte(data)}
	}

	return packager.NewFSReader("mem", fsys)
}

// NewWebServer serves files under /data/. The query string lets a test
// manipulate the response: header=Name/Value overrides a header (an empty
// value deletes it) and allow=METHOD refuses every other method with 403.
// Content-Type defaults to the type guessed from the file name.
func NewWebServer(t *testing.T, files map[string][]byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if allow := q.Get("allow"); allow != "" && allow != r.Method {
			w.WriteHeader(http.StatusForbidden)

			return
		}
		name := strings.TrimPrefix(r.URL.Path, "/data/")
		body, ok := files[name]
		if !ok {
			http.NotFound(w, r)

			return
		}
		w.Header().Set("Content-Type", content.TypeOrDefault(name))
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		for _, h := range q["header"] {
			key, value, _ := strings.Cut(h, "/")
			if value == "" {
				w.Header()[key] = nil
			} else {
				w.Header().Set(key, value)
			}
		}
		if r.Method == http.MethodHead {
			return
		}
		if w.Header().Get("Content-Length") != strconv.Itoa(len(body)) {
			w.Header().Del("Content-Length")
		}
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)

	return srv
}

// FakeS3 is an in-memory S3 client keyed by "bucket/key".
type FakeS3 struct {
	mu      sync.Mutex
	Objects map[string][]byte
	// GetErr, when set, fails every GetObject after a successful HEAD.
	GetErr error
}

// NewFakeS3 creates a client holding objects.
func NewFakeS3(objects map[string][]byte) *FakeS3 {
	if objects == nil {
		objects = map[string][]byte{}
	}

	return &FakeS3{Objects: objects}
}

func (f *FakeS3) object(in, key *string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	body, ok := f.Objects[aws.ToString(in)+"/"+aws.ToString(key)]

	return body, ok
}

// HeadObject implements transfer.S3API.
func (f *FakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	body, ok := f.object(in.Bucket, in.Key)
	if !ok {
		return nil, &types.NotFound{Message: aws.String("Not Found")}
	}

	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(body)))}, nil
}

// GetObject implements transfer.S3API. Objects come back typed
// binary/octet-stream, as S3 does for uploads without a content type.
func (f *FakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.GetErr != nil {
		return nil, f.GetErr
	}
	body, ok := f.object(in.Bucket, in.Key)
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("Not Found")}
	}

	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String("binary/octet-stream"),
	}, nil
}
