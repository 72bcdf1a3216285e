package services

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vvka-141/pgbulk/internal/decompress"
	"github.com/vvka-141/pgbulk/internal/files/filesystem"
	"github.com/vvka-141/pgbulk/internal/logging"
	"github.com/vvka-141/pgbulk/pkg/pgbulk"
)

func gz(t *testing.T, content string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// threeFiles holds a.gz, b.gz and c.gz with two rows each.
func threeFiles(t *testing.T) *filesystem.MemoryFileSystem {
	t.Helper()
	mfs := filesystem.NewMemoryFileSystem("/data")
	// Added out of order on purpose.
	mfs.AddFile("c.gz", gz(t, "id,name\n5,eve\n6,frank\n"))
	mfs.AddFile("a.gz", gz(t, "id,name\n1,alice\n2,bob\n"))
	mfs.AddFile("b.gz", gz(t, "id,name\n3,carol\n4,dave\n"))
	return mfs
}

func testConfig() pgbulk.LoadConfig {
	return pgbulk.LoadConfig{
		SourcePath:       "/data",
		Table:            "events",
		ConnectionString: "postgresql://loader@localhost:5432/warehouse",
		Decompressor:     pgbulk.DecompressorBuiltin,
		Format:           pgbulk.DefaultCopyFormat(),
	}
}

type harness struct {
	db        *mockDB
	connector *mockConnector
	out       *bytes.Buffer
	logger    *capturingLogger
	svc       *LoadService
}

func newHarness(t *testing.T, fsProvider filesystem.FileSystemProvider) *harness {
	t.Helper()
	h := &harness{db: &mockDB{}, out: &bytes.Buffer{}, logger: &capturingLogger{}}
	h.connector = &mockConnector{conn: h.db}
	h.svc = NewLoadService(h.connector.factory(nil), fsProvider, h.logger, h.out)
	return h
}

func TestLoad_AllFilesSucceed(t *testing.T) {
	h := newHarness(t, threeFiles(t))

	run, err := h.svc.Load(context.Background(), testConfig())
	require.NoError(t, err)

	assert.Equal(t, []string{"1,alice", "2,bob", "3,carol", "4,dave", "5,eve", "6,frank"}, h.db.rows())
	assert.Equal(t,
		"Finished file: 1/3 (a.gz)\n"+
			"Finished file: 2/3 (b.gz)\n"+
			"Finished file: 3/3 (c.gz)\n"+
			"Total processed files: 3/3\n",
		h.out.String())

	assert.Equal(t, 3, run.Total)
	assert.Equal(t, 3, run.Processed)
	assert.Equal(t, int64(6), run.RowsCopied)
	assert.Equal(t, "c.gz", run.CurrentFile)
	assert.True(t, run.Complete())
	require.Len(t, run.Files, 3)
	for _, f := range run.Files {
		assert.Equal(t, pgbulk.FileStateCommitted, f.State, f.Name)
		assert.Equal(t, int64(2), f.Rows)
		assert.NoError(t, f.Err)
	}

	assert.Equal(t, 3, h.db.begins, "one transaction per file")
	assert.Equal(t, 1, h.connector.calls, "one connection per run")
	assert.Equal(t, 1, h.db.closed)
	assert.Equal(t, `COPY "events" FROM STDIN WITH (FORMAT csv, HEADER true, DELIMITER ',')`, h.db.copies[0])
}

func TestLoad_CorruptedFileHaltsRun(t *testing.T) {
	mfs := threeFiles(t)
	mfs.AddFile("b.gz", []byte("this is not gzip"))
	h := newHarness(t, mfs)

	run, err := h.svc.Load(context.Background(), testConfig())
	require.Error(t, err)

	var fileErr *pgbulk.FileLoadError
	require.True(t, errors.As(err, &fileErr))
	assert.Equal(t, "b.gz", fileErr.File)
	assert.Equal(t, 2, fileErr.Index)
	assert.Equal(t, 1, fileErr.Processed)
	assert.Equal(t, 3, fileErr.Total)
	assert.True(t, errors.Is(err, pgbulk.ErrFileLoad))
	assert.True(t, errors.Is(err, pgbulk.ErrDecompression))
	assert.Equal(t, pgbulk.ExitFileLoadFailed, pgbulk.ExitCodeForError(err))

	assert.Equal(t, []string{"1,alice", "2,bob"}, h.db.rows(), "only a.gz is committed")

	lines := strings.Split(strings.TrimSuffix(h.out.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Finished file: 1/3 (a.gz)", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "An error occurred: "), lines[1])
	assert.True(t, strings.HasSuffix(lines[1], " at file b.gz"), lines[1])
	assert.Equal(t, "Total processed files: 1/3", lines[2])

	assert.Equal(t, 1, run.Processed)
	assert.Equal(t, "b.gz", run.CurrentFile)
	assert.False(t, run.Complete())
	require.Len(t, run.Files, 2, "c.gz is never attempted")
	assert.Equal(t, pgbulk.FileStateCommitted, run.Files[0].State)
	assert.Equal(t, pgbulk.FileStateRolledBack, run.Files[1].State)
	assert.Equal(t, 2, h.db.begins)
	assert.Equal(t, 1, h.db.closed, "connection closed on failure")
}

func TestLoad_TruncatedFileReportsOneLine(t *testing.T) {
	mfs := threeFiles(t)
	body := gz(t, "id,name\n3,carol\n4,dave\n")
	// Drop the trailer: the header and rows decode, then the stream fails.
	mfs.AddFile("b.gz", body[:len(body)-8])
	h := newHarness(t, mfs)

	_, err := h.svc.Load(context.Background(), testConfig())
	require.Error(t, err)
	assert.True(t, errors.Is(err, pgbulk.ErrDecompression))
	assert.False(t, errors.Is(err, pgbulk.ErrCopyFailed))
	assert.Equal(t, []string{"1,alice", "2,bob"}, h.db.rows())

	lines := strings.Split(strings.TrimSuffix(h.out.String(), "\n"), "\n")
	require.Len(t, lines, 3, h.out.String())
	assert.Equal(t, "Finished file: 1/3 (a.gz)", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "An error occurred: copy into events: decompress /data/b.gz: "), lines[1])
	assert.True(t, strings.HasSuffix(lines[1], " at file b.gz"), lines[1])
	assert.NotContains(t, lines[1], "COPY from stdin failed")
	assert.Equal(t, "Total processed files: 1/3", lines[2])
}

func TestLoad_RowFormatErrorHasSameControlFlow(t *testing.T) {
	mfs := threeFiles(t)
	mfs.AddFile("b.gz", gz(t, "id,name\n3,carol\nnot-a-number,dave\n"))
	h := newHarness(t, mfs)

	run, err := h.svc.Load(context.Background(), testConfig())
	require.Error(t, err)
	assert.True(t, errors.Is(err, pgbulk.ErrFileLoad))
	assert.True(t, errors.Is(err, pgbulk.ErrCopyFailed))
	assert.False(t, errors.Is(err, pgbulk.ErrDecompression))

	assert.Equal(t, []string{"1,alice", "2,bob"}, h.db.rows(), "the valid first row of b.gz is rolled back too")
	assert.Contains(t, h.out.String(), " at file b.gz\nTotal processed files: 1/3\n")
	assert.Len(t, run.Files, 2)
	assert.Equal(t, 1, h.db.rollbacks)
}

func TestLoad_StreamCloseFailureRollsBack(t *testing.T) {
	h := newHarness(t, threeFiles(t))
	opener := &mockOpener{
		content: map[string]string{
			"/data/a.gz": "id,name\n1,alice\n",
			"/data/b.gz": "id,name\n2,bob\n",
			"/data/c.gz": "id,name\n3,carol\n",
		},
		closeErr: map[string]error{
			"/data/a.gz": &decompress.ProcessError{Command: "gunzip -c /data/a.gz", ExitCode: 1, Err: errors.New("exit status 1")},
		},
	}
	h.svc.openerFactory = func(pgbulk.LoadConfig) StreamOpener { return opener }

	run, err := h.svc.Load(context.Background(), testConfig())
	require.Error(t, err)
	assert.True(t, errors.Is(err, pgbulk.ErrDecompression))
	assert.Empty(t, h.db.rows(), "a copy that read everything is still not committed when the process failed")
	assert.Equal(t, []string{"/data/a.gz"}, opener.opened)
	assert.Equal(t, []string{"/data/a.gz"}, opener.closed, "stream is always closed")
	assert.Equal(t, 0, run.Processed)
	assert.Equal(t, "An error occurred: gunzip -c /data/a.gz: exit status 1 at file a.gz\nTotal processed files: 0/3\n", h.out.String())
}

func TestLoad_OpenFailure(t *testing.T) {
	h := newHarness(t, threeFiles(t))
	opener := &mockOpener{openErr: map[string]error{"/data/a.gz": &decompress.ProcessError{Command: "gunzip", ExitCode: -1, Err: os.ErrNotExist}}}
	h.svc.openerFactory = func(pgbulk.LoadConfig) StreamOpener { return opener }

	_, err := h.svc.Load(context.Background(), testConfig())
	assert.True(t, errors.Is(err, pgbulk.ErrDecompression))
	assert.Equal(t, 1, h.db.rollbacks)
}

func TestLoad_CommitFailure(t *testing.T) {
	h := newHarness(t, threeFiles(t))
	h.db.commitErr = errors.New("could not serialize access")

	run, err := h.svc.Load(context.Background(), testConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "commit: could not serialize access")
	assert.Empty(t, h.db.rows())
	assert.Equal(t, pgbulk.FileStateRolledBack, run.Files[0].State)
}

func TestLoad_BeginFailure(t *testing.T) {
	h := newHarness(t, threeFiles(t))
	h.db.beginErr = errors.New("conn closed")

	run, err := h.svc.Load(context.Background(), testConfig())
	require.Error(t, err)
	assert.True(t, errors.Is(err, pgbulk.ErrFileLoad))
	assert.Contains(t, err.Error(), "begin transaction")
	assert.Equal(t, pgbulk.FileStateRolledBack, run.Files[0].State)
	assert.Equal(t, 0, h.db.rollbacks, "no transaction to roll back")
}

func TestLoad_RerunIsNotIdempotent(t *testing.T) {
	h := newHarness(t, threeFiles(t))

	_, err := h.svc.Load(context.Background(), testConfig())
	require.NoError(t, err)
	_, err = h.svc.Load(context.Background(), testConfig())
	require.NoError(t, err)

	assert.Len(t, h.db.rows(), 12, "every file is loaded again")
}

func TestLoad_RerunAfterPartialFailureReloadsCommittedFiles(t *testing.T) {
	mfs := threeFiles(t)
	good := gz(t, "id,name\n3,carol\n4,dave\n")
	mfs.AddFile("b.gz", []byte("corrupt"))
	h := newHarness(t, mfs)

	_, err := h.svc.Load(context.Background(), testConfig())
	require.Error(t, err)

	mfs.AddFile("b.gz", good)
	_, err = h.svc.Load(context.Background(), testConfig())
	require.NoError(t, err)

	assert.Equal(t, []string{"1,alice", "2,bob", "1,alice", "2,bob", "3,carol", "4,dave", "5,eve", "6,frank"}, h.db.rows())
}

func TestLoad_EmptyDirectory(t *testing.T) {
	h := newHarness(t, filesystem.NewMemoryFileSystem("/data"))

	run, err := h.svc.Load(context.Background(), testConfig())
	require.NoError(t, err)
	assert.Equal(t, "Total processed files: 0/0\n", h.out.String())
	assert.True(t, run.Complete())
	assert.Equal(t, 0, h.db.begins)
}

func TestLoad_PatternAndSubdirectories(t *testing.T) {
	mfs := threeFiles(t)
	mfs.AddFile("README.txt", []byte("not data"))
	mfs.AddDirectory("archive")
	h := newHarness(t, mfs)

	cfg := testConfig()
	cfg.Pattern = "*.gz"
	run, err := h.svc.Load(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, 3, run.Total)
	assert.Len(t, h.db.rows(), 6)
}

func TestLoad_UnfilteredDirectoryLoadsEveryFile(t *testing.T) {
	mfs := threeFiles(t)
	mfs.AddFile("d.txt", []byte("not gzip"))
	h := newHarness(t, mfs)

	_, err := h.svc.Load(context.Background(), testConfig())
	require.Error(t, err, "without a pattern every regular entry is a candidate")

	var fileErr *pgbulk.FileLoadError
	require.True(t, errors.As(err, &fileErr))
	assert.Equal(t, "d.txt", fileErr.File)
	assert.True(t, errors.Is(err, pgbulk.ErrUnsupportedFormat))
	assert.Len(t, h.db.rows(), 6)
}

func TestLoad_MissingDirectory(t *testing.T) {
	h := newHarness(t, filesystem.NewMemoryFileSystem("/data"))

	cfg := testConfig()
	cfg.SourcePath = "/nope"
	run, err := h.svc.Load(context.Background(), cfg)
	require.Error(t, err)
	assert.Nil(t, run)
	assert.True(t, errors.Is(err, pgbulk.ErrSourceDirectory))
	assert.Equal(t, pgbulk.ExitSourceDirError, pgbulk.ExitCodeForError(err))
	assert.Equal(t, 0, h.connector.calls, "no connection before the directory is listed")
	assert.Empty(t, h.out.String())
}

func TestLoad_InvalidConfig(t *testing.T) {
	h := newHarness(t, threeFiles(t))

	cfg := testConfig()
	cfg.Table = ""
	_, err := h.svc.Load(context.Background(), cfg)
	assert.True(t, errors.Is(err, pgbulk.ErrInvalidConfig))
	assert.Equal(t, 0, h.connector.calls)
}

func TestLoad_ConnectionFailure(t *testing.T) {
	h := newHarness(t, threeFiles(t))
	h.connector.err = errors.Join(pgbulk.ErrConnectionFailed, errors.New("connection refused"))

	run, err := h.svc.Load(context.Background(), testConfig())
	require.Error(t, err)
	assert.True(t, errors.Is(err, pgbulk.ErrConnectionFailed))
	require.NotNil(t, run)
	assert.Empty(t, run.Files)
	assert.Empty(t, h.out.String())
}

func TestLoad_PassesConnectionSettings(t *testing.T) {
	db := &mockDB{}
	connector := &mockConnector{conn: db}
	var seen *pgbulk.ConnectionConfig
	svc := NewLoadService(connector.factory(&seen), threeFiles(t), logging.NewNullLogger(), &bytes.Buffer{})

	cfg := testConfig()
	cfg.AuthMethod = pgbulk.AuthMethodAWSIAM
	cfg.AWSRegion = "eu-west-1"
	_, err := svc.Load(context.Background(), cfg)
	require.NoError(t, err)

	require.NotNil(t, seen)
	assert.Equal(t, "warehouse", seen.Database)
	assert.Equal(t, "loader", seen.Username)
	assert.Equal(t, pgbulk.AuthMethodAWSIAM, seen.AuthMethod)
	assert.Equal(t, "eu-west-1", seen.AWSRegion)
	assert.Equal(t, pgbulk.DefaultAppName, seen.AppName)
}

func TestLoad_CancelledContextFailsCurrentFile(t *testing.T) {
	h := newHarness(t, threeFiles(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.svc.Load(ctx, testConfig())
	require.Error(t, err)
	assert.True(t, errors.Is(err, pgbulk.ErrFileLoad))
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, h.db.rows())
	assert.Equal(t, 1, h.db.closed)
}

func TestLoad_WritesMetricsFile(t *testing.T) {
	mfs := threeFiles(t)
	mfs.AddFile("b.gz", []byte("corrupt"))
	h := newHarness(t, mfs)

	cfg := testConfig()
	cfg.MetricsFile = filepath.Join(t.TempDir(), "pgbulk.prom")
	_, err := h.svc.Load(context.Background(), cfg)
	require.Error(t, err)

	data, readErr := os.ReadFile(cfg.MetricsFile)
	require.NoError(t, readErr)
	text := string(data)
	assert.Contains(t, text, `pgbulk_files_total{state="committed"} 1`)
	assert.Contains(t, text, `pgbulk_files_total{state="rolled_back"} 1`)
	assert.Contains(t, text, "pgbulk_rows_copied_total 2")
	assert.Contains(t, text, "pgbulk_run_success 0")
}

func TestLoad_MetricsWriteFailureIsLogged(t *testing.T) {
	h := newHarness(t, threeFiles(t))

	cfg := testConfig()
	cfg.MetricsFile = filepath.Join(t.TempDir(), "missing-dir", "pgbulk.prom")
	_, err := h.svc.Load(context.Background(), cfg)
	require.NoError(t, err, "metrics are best effort")
	require.Len(t, h.logger.errors, 1)
	assert.Contains(t, h.logger.errors[0], "Failed to write metrics")
}

func TestNewLoadService_PanicsOnNilDependencies(t *testing.T) {
	factory := (&mockConnector{}).factory(nil)
	mfs := filesystem.NewMemoryFileSystem("/data")
	logger := logging.NewNullLogger()
	out := &bytes.Buffer{}

	assert.Panics(t, func() { NewLoadService(nil, mfs, logger, out) })
	assert.Panics(t, func() { NewLoadService(factory, nil, logger, out) })
	assert.Panics(t, func() { NewLoadService(factory, mfs, nil, out) })
	assert.Panics(t, func() { NewLoadService(factory, mfs, logger, nil) })
}

func TestLoadService_DefaultOpener(t *testing.T) {
	svc := NewLoadService((&mockConnector{}).factory(nil), filesystem.NewMemoryFileSystem("/data"), logging.NewNullLogger(), &bytes.Buffer{})

	assert.IsType(t, &decompress.BuiltinOpener{}, svc.defaultOpener(pgbulk.LoadConfig{Decompressor: pgbulk.DecompressorBuiltin}))
	assert.IsType(t, &decompress.ProcessOpener{}, svc.defaultOpener(pgbulk.LoadConfig{}))

	p := svc.defaultOpener(pgbulk.LoadConfig{DecompressCommand: "zcat"}).(*decompress.ProcessOpener)
	assert.Equal(t, "zcat", p.Command)
}
