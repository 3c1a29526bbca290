package transfer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	derrors "github.com/jin-gizmo/docma/internal/errors"
)

// newTestServer serves /data/<name> from files. The query string lets a
// test manipulate the response: header=Name/Value overrides a header
// (empty value deletes it) and allow=METHOD restricts methods.
func newTestServer(t *testing.T, files map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if allow := q.Get("allow"); allow != "" && allow != r.Method {
			w.WriteHeader(http.StatusForbidden)

			return
		}
		body, ok := files[strings.TrimPrefix(r.URL.Path, "/data/")]
		if !ok {
			http.NotFound(w, r)

			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		for _, h := range q["header"] {
			name, value, _ := strings.Cut(h, "/")
			if value == "" {
				w.Header()[name] = nil
			} else {
				w.Header().Set(name, value)
			}
		}
		if r.Method == http.MethodHead {
			return
		}
		if w.Header().Get("Content-Length") != strconv.Itoa(len(body)) {
			w.Header().Del("Content-Length")
		}
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)

	return srv
}

func TestHTTPOK(t *testing.T) {
	srv := newTestServer(t, map[string]string{"dogs.csv": "name\nrex\n"})

	res, err := HTTP(context.Background(), srv.URL+"/data/dogs.csv", Options{MaxSize: 100, Probe: true})
	require.NoError(t, err)
	assert.Equal(t, "name\nrex\n", string(res.Data))
	assert.Equal(t, "text/csv", res.ContentType)
}

func TestHTTPFailures(t *testing.T) {
	srv := newTestServer(t, map[string]string{"dogs.csv": "name\nrex\n"})

	tests := []struct {
		name string
		path string
		opts Options
		code string
		msg  string
	}{
		{"not found", "/data/bad-file", Options{Probe: true}, derrors.CodeNotFound, "File not found"},
		{"declared too large", "/data/dogs.csv?header=Content-Length/1000", Options{MaxSize: 100, Probe: true}, derrors.CodeTooLarge, "Too large"},
		{"server under-reports size", "/data/dogs.csv?header=Content-Length/", Options{MaxSize: 1, Probe: true}, derrors.CodeTooLarge, "Too large"},
		{"head ok get refused", "/data/dogs.csv?allow=HEAD", Options{Probe: true}, derrors.CodeTransport, "403"},
		{"too large without probe", "/data/dogs.csv", Options{MaxSize: 1}, derrors.CodeTooLarge, "Too large"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.Kind = derrors.KindURLFetch
			_, err := HTTP(context.Background(), srv.URL+tt.path, tt.opts)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
			assert.True(t, errors.Is(err, &derrors.DocmaError{Kind: derrors.KindURLFetch, Code: tt.code}))
		})
	}
}

func TestHTTPRetriesServerErrors(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)

			return
		}
		_, _ = io.WriteString(w, "ok")
	}))
	defer srv.Close()

	res, err := HTTP(context.Background(), srv.URL, Options{Retries: 2})
	require.NoError(t, err)
	assert.Equal(t, "ok", string(res.Data))
	assert.Equal(t, 2, calls)

	calls = 0
	_, err = HTTP(context.Background(), srv.URL, Options{})
	require.ErrorContains(t, err, "HTTP error 503")
}

func TestReadAllDiscardsPartialData(t *testing.T) {
	opts := Options{MaxSize: 3}
	data, err := opts.ReadAll("x", strings.NewReader("abcd"))
	require.Error(t, err)
	assert.Nil(t, data)
	assert.True(t, errors.Is(err, derrors.ErrTooLarge))

	data, err = opts.ReadAll("x", strings.NewReader("abc"))
	require.NoError(t, err)
	assert.Equal(t, "abc", string(data))
}

type fakeS3 struct {
	objects map[string]string
	heads   int
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.heads++
	body, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NotFound{}
	}

	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(body)))}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}

	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader([]byte(body))),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String("text/html"),
	}, nil
}

func TestS3(t *testing.T) {
	fake := &fakeS3{objects: map[string]string{"bucket/prefix/file.html": "<p>hi</p>"}}
	prev := SetS3Client(fake)
	t.Cleanup(func() { SetS3Client(prev) })

	u, _ := url.Parse("s3://bucket/prefix/file.html")
	res, err := S3(context.Background(), u, Options{MaxSize: 100, Probe: true})
	require.NoError(t, err)
	assert.Equal(t, "<p>hi</p>", string(res.Data))
	assert.Equal(t, "text/html", res.ContentType)
	assert.Equal(t, 1, fake.heads)

	_, err = S3(context.Background(), u, Options{MaxSize: 2, Probe: true})
	assert.True(t, errors.Is(err, derrors.ErrTooLarge))

	missing, _ := url.Parse("s3://bucket/nope")
	_, err = S3(context.Background(), missing, Options{})
	assert.True(t, errors.Is(err, derrors.ErrNotFound))

	bad, _ := url.Parse("s3://bucket")
	_, err = S3(context.Background(), bad, Options{})
	require.ErrorContains(t, err, "expected s3://bucket/key")
}
