package bulkcopy

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/vvka-141/pgbulk/pkg/pgbulk"
)

// Executor streams rows into one table inside a caller-owned transaction.
type Executor struct {
	table string
	sql   string
}

// NewExecutor validates the table and format once and prepares the statement.
func NewExecutor(table string, format pgbulk.CopyFormat) (*Executor, error) {
	sql, err := Statement(table, format)
	if err != nil {
		return nil, err
	}
	return &Executor{table: table, sql: sql}, nil
}

// SQL returns the COPY statement sent to the server.
func (e *Executor) SQL() string {
	return e.sql
}

// Copy streams r into the table through tx and returns the number of rows the
// server accepted. It neither commits nor rolls back.
//
// When r itself fails, only that error is returned: the server's reply to the
// aborted copy repeats the same message. Callers can tell a broken source from
// rejected rows through pgbulk.ErrDecompression and pgbulk.ErrCopyFailed.
func (e *Executor) Copy(ctx context.Context, tx pgbulk.Transaction, r io.Reader) (int64, error) {
	src := &sourceReader{r: r}

	tag, err := tx.CopyFrom(ctx, src, e.sql)
	if src.err != nil {
		return 0, fmt.Errorf("copy into %s: %w", e.table, src.err)
	}
	if err != nil {
		return 0, fmt.Errorf("copy into %s: %w: %w", e.table, pgbulk.ErrCopyFailed, err)
	}
	return tag.RowsAffected(), nil
}

// sourceReader remembers the first non-EOF error returned by the source.
type sourceReader struct {
	r   io.Reader
	err error
}

func (s *sourceReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) && s.err == nil {
		s.err = err
	}
	return n, err
}
