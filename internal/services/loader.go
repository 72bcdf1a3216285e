package services

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/vvka-141/pgbulk/internal/bulkcopy"
	"github.com/vvka-141/pgbulk/internal/db"
	"github.com/vvka-141/pgbulk/internal/decompress"
	"github.com/vvka-141/pgbulk/internal/files/filesystem"
	"github.com/vvka-141/pgbulk/internal/files/sequencer"
	"github.com/vvka-141/pgbulk/internal/metrics"
	"github.com/vvka-141/pgbulk/pkg/pgbulk"
)

// ConnectorFactory creates the connector for a resolved connection configuration.
type ConnectorFactory func(*pgbulk.ConnectionConfig, pgbulk.Logger) (pgbulk.Connector, error)

// StreamOpener turns one source file into a decompressed byte stream.
// The returned stream must be closed; Close reports a failed decompression.
type StreamOpener interface {
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}

// LoadService implements pgbulk.Loader.
//
// A run lists the source directory once, opens one connection and loads the
// files strictly in name order, each in its own transaction. The first file
// that fails is rolled back and ends the run; files committed before it stay
// committed and later files are never attempted. Running again over the same
// directory loads every file again: there is no record of earlier runs.
//
// Thread-Safety: NOT safe for concurrent Load() calls on the same instance.
type LoadService struct {
	connectorFactory ConnectorFactory
	fsProvider       filesystem.FileSystemProvider
	logger           pgbulk.Logger
	reporter         *Reporter
	openerFactory    func(pgbulk.LoadConfig) StreamOpener
}

// NewLoadService creates a LoadService with all dependencies injected.
// Progress lines are written to out. Panics on nil dependencies.
func NewLoadService(
	connectorFactory ConnectorFactory,
	fsProvider filesystem.FileSystemProvider,
	logger pgbulk.Logger,
	out io.Writer,
) *LoadService {
	if connectorFactory == nil {
		panic("connectorFactory cannot be nil")
	}
	if fsProvider == nil {
		panic("fsProvider cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}

	svc := &LoadService{
		connectorFactory: connectorFactory,
		fsProvider:       fsProvider,
		logger:           logger,
		reporter:         NewReporter(out),
	}
	svc.openerFactory = svc.defaultOpener
	return svc
}

func (s *LoadService) defaultOpener(config pgbulk.LoadConfig) StreamOpener {
	if config.Decompressor == pgbulk.DecompressorBuiltin {
		return decompress.NewBuiltinOpener(s.fsProvider)
	}
	return decompress.NewProcessOpener(config.DecompressCommand, config.DecompressArgs)
}

// Load runs one load over config.SourcePath.
//
// The returned Run is non-nil once the directory has been listed, including
// when the run stops at a failed file; the error is then a *pgbulk.FileLoadError.
func (s *LoadService) Load(ctx context.Context, config pgbulk.LoadConfig) (*pgbulk.Run, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	executor, err := bulkcopy.NewExecutor(config.Table, config.Format)
	if err != nil {
		return nil, err
	}

	seq, err := sequencer.List(s.fsProvider, config.SourcePath, sequencer.Policy{Pattern: config.Pattern})
	if err != nil {
		return nil, err
	}

	run := pgbulk.NewRun(config.Table, config.SourcePath, seq.Total())
	s.logger.Verbose("Run %s: %d file(s) in %s, %d skipped", run.ID, run.Total, seq.Dir(), seq.Skipped())
	s.logger.Verbose("Statement: %s", executor.SQL())

	recorder := metrics.New()
	defer s.writeMetrics(recorder, run, config.MetricsFile)

	conn, err := s.connect(ctx, config, run)
	if err != nil {
		return run, err
	}
	defer func() {
		if err := conn.Close(context.WithoutCancel(ctx)); err != nil {
			s.logger.Error("Failed to close connection: %v", err)
		}
	}()

	opener := s.openerFactory(config)

	for {
		entry, ok := seq.Next()
		if !ok {
			break
		}
		run.CurrentFile = entry.Name
		index := seq.Position()

		s.logger.Verbose("Loading %s (%d/%d)", entry.Name, index, run.Total)
		result := s.loadFile(ctx, conn, opener, executor, entry)
		run.Files = append(run.Files, result)
		recorder.FileFinished(result)

		if result.Err != nil {
			s.reporter.Failure(result.Err, entry.Name)
			s.reporter.Summary(run.Processed, run.Total)
			return run, &pgbulk.FileLoadError{
				File:      entry.Name,
				Index:     index,
				Processed: run.Processed,
				Total:     run.Total,
				Err:       result.Err,
			}
		}

		run.Processed++
		run.RowsCopied += result.Rows
		s.reporter.FileFinished(run.Processed, run.Total, entry.Name)
	}

	s.reporter.Summary(run.Processed, run.Total)
	s.logger.Info("Loaded %d row(s) from %d file(s) into %s in %v",
		run.RowsCopied, run.Processed, run.Table, time.Since(run.StartedAt).Round(time.Millisecond))
	return run, nil
}

func (s *LoadService) connect(ctx context.Context, config pgbulk.LoadConfig, run *pgbulk.Run) (pgbulk.DBConnection, error) {
	connConfig, err := db.ParseConnectionString(config.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	if connConfig.AppName == "" {
		connConfig.AppName = pgbulk.DefaultAppName
	}
	connConfig.AuthMethod = config.AuthMethod
	connConfig.AzureTenantID = config.AzureTenantID
	connConfig.AzureClientID = config.AzureClientID
	connConfig.AzureClientSecret = config.AzureClientSecret
	connConfig.AWSRegion = config.AWSRegion
	connConfig.GoogleInstance = config.GoogleInstance

	connector, err := s.connectorFactory(connConfig, s.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create connector: %w", err)
	}

	s.logger.Verbose("Connecting to %s", db.Describe(connConfig))
	conn, err := connector.Connect(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.Verbose("Connected; run %s loads into %s", run.ID, run.Table)
	return conn, nil
}

// loadFile moves one file through Pending → Loading → Committed | RolledBack.
func (s *LoadService) loadFile(
	ctx context.Context,
	conn pgbulk.DBConnection,
	opener StreamOpener,
	executor *bulkcopy.Executor,
	entry sequencer.Entry,
) pgbulk.FileResult {
	result := pgbulk.FileResult{Name: entry.Name, State: pgbulk.FileStatePending}
	start := time.Now()

	result.State = s.transition(result.State, pgbulk.FileStateLoading)

	tx, err := conn.Begin(ctx)
	if err != nil {
		result.State = s.transition(result.State, pgbulk.FileStateRolledBack)
		result.Err = fmt.Errorf("begin transaction: %w", err)
		result.Duration = time.Since(start)
		return result
	}

	rows, err := s.copyFile(ctx, tx, opener, executor, entry.Path)
	if err == nil {
		if err = tx.Commit(ctx); err != nil {
			err = fmt.Errorf("commit: %w", err)
		}
	}
	if err != nil {
		// Rollback after a failed commit reports an already closed transaction.
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
			s.logger.Verbose("Rollback of %s: %v", entry.Name, rbErr)
		}
		result.State = s.transition(result.State, pgbulk.FileStateRolledBack)
		result.Err = err
		result.Duration = time.Since(start)
		return result
	}

	result.State = s.transition(result.State, pgbulk.FileStateCommitted)
	result.Rows = rows
	result.Duration = time.Since(start)
	s.logger.Verbose("Committed %s: %d row(s) in %v", entry.Name, rows, result.Duration.Round(time.Millisecond))
	return result
}

// copyFile streams one file into tx. A copy error takes priority over the
// stream's close error; a close error alone still fails the file, so a
// decompressor that dies after writing a valid prefix is never committed.
func (s *LoadService) copyFile(
	ctx context.Context,
	tx pgbulk.Transaction,
	opener StreamOpener,
	executor *bulkcopy.Executor,
	path string,
) (int64, error) {
	stream, err := opener.Open(ctx, path)
	if err != nil {
		return 0, err
	}

	rows, copyErr := executor.Copy(ctx, tx, stream)
	closeErr := stream.Close()

	if copyErr != nil {
		return 0, copyErr
	}
	if closeErr != nil {
		return 0, closeErr
	}
	return rows, nil
}

func (s *LoadService) transition(from, to pgbulk.FileState) pgbulk.FileState {
	next, err := from.Transition(to)
	if err != nil {
		// Only reachable through a bug in loadFile.
		panic(err)
	}
	return next
}

func (s *LoadService) writeMetrics(recorder *metrics.Recorder, run *pgbulk.Run, path string) {
	recorder.RunFinished(run)
	if path == "" {
		return
	}
	if err := recorder.WriteTextfile(path); err != nil {
		s.logger.Error("Failed to write metrics to %s: %v", path, err)
		return
	}
	s.logger.Verbose("Metrics written to %s", path)
}

var _ pgbulk.Loader = (*LoadService)(nil)
