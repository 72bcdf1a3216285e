package decompress

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vvka-141/pgbulk/internal/files/filesystem"
	"github.com/vvka-141/pgbulk/pkg/pgbulk"
)

func zstdBytes(t *testing.T, content []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf)
	require.NoError(t, err)
	_, err = zw.Write(content)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestBuiltinOpener(t *testing.T) {
	content := []byte("id,name\n1,alice\n")

	mfs := filesystem.NewMemoryFileSystem("/data")
	mfs.AddFile("a.gz", gzipBytes(t, content))
	mfs.AddFile("b.zst", zstdBytes(t, content))
	mfs.AddFile("c.GZIP", gzipBytes(t, content))

	opener := NewBuiltinOpener(mfs)

	for _, name := range []string{"a.gz", "b.zst", "c.GZIP"} {
		t.Run(name, func(t *testing.T) {
			r, err := opener.Open(context.Background(), "/data/"+name)
			require.NoError(t, err)
			got, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, content, got)
			assert.NoError(t, r.Close())
			assert.NoError(t, r.Close())
		})
	}
}

func TestBuiltinOpener_UnsupportedExtension(t *testing.T) {
	mfs := filesystem.NewMemoryFileSystem("/data")
	mfs.AddFile("a.csv", []byte("1\n"))

	_, err := NewBuiltinOpener(mfs).Open(context.Background(), "/data/a.csv")
	assert.True(t, errors.Is(err, pgbulk.ErrUnsupportedFormat))
}

func TestBuiltinOpener_CorruptHeader(t *testing.T) {
	mfs := filesystem.NewMemoryFileSystem("/data")
	mfs.AddFile("b.gz", []byte("definitely not gzip"))

	_, err := NewBuiltinOpener(mfs).Open(context.Background(), "/data/b.gz")
	assert.True(t, errors.Is(err, pgbulk.ErrDecompression))
}

func TestBuiltinOpener_TruncatedBody(t *testing.T) {
	full := gzipBytes(t, bytes.Repeat([]byte("1,row of data\n"), 10000))
	mfs := filesystem.NewMemoryFileSystem("/data")
	mfs.AddFile("b.gz", full[:len(full)/2])

	r, err := NewBuiltinOpener(mfs).Open(context.Background(), "/data/b.gz")
	require.NoError(t, err)
	defer r.Close()

	_, err = io.ReadAll(r)
	assert.True(t, errors.Is(err, pgbulk.ErrDecompression))
}

func TestBuiltinOpener_MissingFile(t *testing.T) {
	mfs := filesystem.NewMemoryFileSystem("/data")
	_, err := NewBuiltinOpener(mfs).Open(context.Background(), "/data/missing.gz")
	assert.True(t, errors.Is(err, pgbulk.ErrDecompression))
}

func TestBuiltinOpener_CancelledContext(t *testing.T) {
	mfs := filesystem.NewMemoryFileSystem("/data")
	mfs.AddFile("a.gz", gzipBytes(t, []byte("x")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewBuiltinOpener(mfs).Open(ctx, "/data/a.gz")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewBuiltinOpener_NilPanics(t *testing.T) {
	assert.Panics(t, func() { NewBuiltinOpener(nil) })
}
