package importer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jin-gizmo/docma/internal/config"
	derrors "github.com/jin-gizmo/docma/internal/errors"
	"github.com/jin-gizmo/docma/internal/testutils"
	"github.com/jin-gizmo/docma/internal/transfer"
)

const dogsCSV = "name,breed\nrex,kelpie\nfido,heeler\n"

func TestHTTPImport(t *testing.T) {
	srv := testutils.NewWebServer(t, map[string][]byte{"dogs.csv": []byte(dogsCSV)})
	ctx := context.Background()

	data, err := Import(ctx, srv.URL+"/data/dogs.csv", 0)
	require.NoError(t, err)
	assert.Equal(t, dogsCSV, string(data))

	tests := []struct {
		name string
		url  string
		max  int64
		code string
		msg  string
	}{
		{"declared too large", "/data/dogs.csv?header=Content-Length/100000", 1000, derrors.CodeTooLarge, "Too large"},
		{"server lies about size", "/data/dogs.csv?header=Content-Length/", 5, derrors.CodeTooLarge, "Too large"},
		{"missing", "/data/nope.csv", 0, derrors.CodeNotFound, "File not found"},
		{"head ok get refused", "/data/dogs.csv?allow=HEAD", 0, derrors.CodeTransport, "403"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Import(ctx, srv.URL+tt.url, tt.max)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
			assert.ErrorIs(t, err, &derrors.DocmaError{Kind: derrors.KindImport, Code: tt.code})
		})
	}
}

func TestS3Import(t *testing.T) {
	fake := testutils.NewFakeS3(map[string][]byte{"test-bucket/dogs.csv": []byte(dogsCSV)})
	prev := transfer.SetS3Client(fake)
	t.Cleanup(func() { transfer.SetS3Client(prev) })
	ctx := context.Background()

	data, err := Import(ctx, "s3://test-bucket/dogs.csv", 0)
	require.NoError(t, err)
	assert.Equal(t, dogsCSV, string(data))

	_, err = Import(ctx, "s3://test-bucket/dogs.csv", 1)
	assert.ErrorContains(t, err, "Too large")

	_, err = Import(ctx, "s3://test-bucket/no-such-file.txt", 0)
	assert.ErrorIs(t, err, derrors.ErrNotFound)

	fake.GetErr = errors.New("Simulated GET failure")
	_, err = Import(ctx, "s3://test-bucket/dogs.csv", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Simulated GET failure")
	assert.True(t, derrors.IsKind(err, derrors.KindImport))
}

func TestFileImport(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dogs.csv")
	require.NoError(t, os.WriteFile(path, []byte(dogsCSV), 0o644))
	ctx := context.Background()

	data, err := Import(ctx, "file://"+filepath.ToSlash(path), 0)
	require.NoError(t, err)
	assert.Equal(t, dogsCSV, string(data))

	t.Chdir(dir)
	data, err = Import(ctx, "file:dogs.csv", 0)
	require.NoError(t, err)
	assert.Equal(t, dogsCSV, string(data))

	_, err = Import(ctx, "file:dogs.csv", 3)
	assert.ErrorIs(t, err, derrors.ErrTooLarge)

	_, err = Import(ctx, "file:missing.csv", 0)
	assert.ErrorIs(t, err, derrors.ErrNotFound)

	_, err = Import(ctx, "file://host/dogs.csv", 0)
	assert.ErrorContains(t, err, "Use file:path")
}

func TestUnknownScheme(t *testing.T) {
	_, err := Import(context.Background(), "bad-scheme://blah.blah", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No importer available for bad-scheme")
	assert.ErrorIs(t, err, &derrors.DocmaError{Kind: derrors.KindImport, Code: derrors.CodeUnknown})
}

func TestConfigure(t *testing.T) {
	Configure(config.TransferConfig{MaxSize: 7, Timeout: time.Second, Retries: 0})
	t.Cleanup(func() { Configure(config.TransferConfig{MaxSize: 10 << 20, Timeout: 30 * time.Second, Retries: 2}) })

	opts := options(0)
	assert.Equal(t, int64(7), opts.MaxSize)
	assert.Equal(t, time.Second, opts.Timeout)
	assert.Equal(t, derrors.KindImport, opts.Kind)
	assert.Equal(t, int64(99), options(99).MaxSize)
}
