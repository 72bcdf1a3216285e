package decompress

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/vvka-141/pgbulk/internal/files/filesystem"
	"github.com/vvka-141/pgbulk/pkg/pgbulk"
)

// BuiltinOpener decompresses files in-process. The codec is chosen from the
// file extension: .gz and .gzip use gzip, .zst and .zstd use zstd.
type BuiltinOpener struct {
	fs filesystem.FileSystemProvider
}

// NewBuiltinOpener creates an opener reading through fsProvider.
// Panics if fsProvider is nil.
func NewBuiltinOpener(fsProvider filesystem.FileSystemProvider) *BuiltinOpener {
	if fsProvider == nil {
		panic("fsProvider cannot be nil")
	}
	return &BuiltinOpener{fs: fsProvider}
}

// Open returns the decompressed contents of path. The caller must Close it.
func (o *BuiltinOpener) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	codec := strings.ToLower(filepath.Ext(path))
	switch codec {
	case ".gz", ".gzip", ".zst", ".zstd":
	default:
		return nil, fmt.Errorf("%s: extension %q: %w", path, codec, pgbulk.ErrUnsupportedFormat)
	}

	f, err := o.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w: %w", path, pgbulk.ErrDecompression, err)
	}

	var r io.ReadCloser
	switch codec {
	case ".gz", ".gzip":
		zr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("gzip %s: %w: %w", path, pgbulk.ErrDecompression, err)
		}
		r = zr
	default:
		zr, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("zstd %s: %w: %w", path, pgbulk.ErrDecompression, err)
		}
		r = zr.IOReadCloser()
	}

	return &builtinStream{path: path, r: r, file: f}, nil
}

type builtinStream struct {
	path   string
	r      io.ReadCloser
	file   io.Closer
	closed bool
}

func (s *builtinStream) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, fmt.Errorf("decompress %s: %w: %w", s.path, pgbulk.ErrDecompression, err)
	}
	return n, err
}

func (s *builtinStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return errors.Join(s.r.Close(), s.file.Close())
}
