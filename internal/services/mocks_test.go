package services

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vvka-141/pgbulk/pkg/pgbulk"
)

// mockDB behaves like a table behind one connection: rows become visible only on commit.
type mockDB struct {
	mu sync.Mutex

	committed []string
	copies    []string // SQL of every CopyFrom, in order
	begins    int
	rollbacks int
	closed    int

	beginErr  error
	commitErr error
}

func (m *mockDB) Begin(ctx context.Context) (pgbulk.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.beginErr != nil {
		return nil, m.beginErr
	}
	m.begins++
	return &mockTx{db: m}, nil
}

func (m *mockDB) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed++
	return nil
}

func (m *mockDB) rows() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.committed...)
}

// mockTx parses "id,name" CSV. A non-integer id is rejected like a type error.
type mockTx struct {
	db      *mockDB
	pending []string
	done    bool
}

func (t *mockTx) CopyFrom(ctx context.Context, r io.Reader, sql string) (pgconn.CommandTag, error) {
	t.db.mu.Lock()
	t.db.copies = append(t.db.copies, sql)
	t.db.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return pgconn.CommandTag{}, err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return pgconn.CommandTag{}, &pgconn.PgError{Code: "57014", Message: "COPY from stdin failed: " + err.Error()}
	}

	sc := bufio.NewScanner(bytes.NewReader(data))
	header := strings.Contains(sql, "HEADER true")
	var rows []string
	for line := 1; sc.Scan(); line++ {
		if header && line == 1 {
			continue
		}
		text := sc.Text()
		id, _, _ := strings.Cut(text, ",")
		if _, err := strconv.Atoi(id); err != nil {
			return pgconn.CommandTag{}, &pgconn.PgError{
				Code:    "22P02",
				Message: fmt.Sprintf("invalid input syntax for type integer: %q", id),
				Where:   fmt.Sprintf("COPY events, line %d", line),
			}
		}
		rows = append(rows, text)
	}

	t.pending = append(t.pending, rows...)
	return pgconn.NewCommandTag("COPY " + strconv.Itoa(len(rows))), nil
}

func (t *mockTx) Commit(ctx context.Context) error {
	if t.done {
		return errors.New("tx is closed")
	}
	t.done = true
	if t.db.commitErr != nil {
		return t.db.commitErr
	}
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	t.db.committed = append(t.db.committed, t.pending...)
	return nil
}

func (t *mockTx) Rollback(ctx context.Context) error {
	t.db.mu.Lock()
	t.db.rollbacks++
	t.db.mu.Unlock()
	if t.done {
		return errors.New("tx is closed")
	}
	t.done = true
	t.pending = nil
	return nil
}

type mockConnector struct {
	conn  pgbulk.DBConnection
	err   error
	calls int
}

func (m *mockConnector) Connect(_ context.Context) (pgbulk.DBConnection, error) {
	m.calls++
	return m.conn, m.err
}

// factory returns a ConnectorFactory that records the configuration it was given.
func (m *mockConnector) factory(seen **pgbulk.ConnectionConfig) ConnectorFactory {
	return func(cfg *pgbulk.ConnectionConfig, _ pgbulk.Logger) (pgbulk.Connector, error) {
		if seen != nil {
			*seen = cfg
		}
		return m, nil
	}
}

// mockOpener serves fixed content per path and can fail at open or close.
type mockOpener struct {
	content  map[string]string
	openErr  map[string]error
	closeErr map[string]error
	opened   []string
	closed   []string
}

func (m *mockOpener) Open(_ context.Context, path string) (io.ReadCloser, error) {
	m.opened = append(m.opened, path)
	if err := m.openErr[path]; err != nil {
		return nil, err
	}
	return &mockStream{Reader: strings.NewReader(m.content[path]), opener: m, path: path}, nil
}

type mockStream struct {
	io.Reader
	opener *mockOpener
	path   string
}

func (s *mockStream) Close() error {
	s.opener.closed = append(s.opener.closed, s.path)
	return s.opener.closeErr[s.path]
}

type capturingLogger struct {
	mu     sync.Mutex
	errors []string
}

func (l *capturingLogger) Verbose(format string, args ...interface{}) {}
func (l *capturingLogger) Info(format string, args ...interface{})    {}
func (l *capturingLogger) Error(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, fmt.Sprintf(format, args...))
}
