package db

import (
	"context"
	"errors"
	"io"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vvka-141/pgbulk/pkg/pgbulk"
)

// ConnAdapter adapts *pgx.Conn to pgbulk.DBConnection so the load service
// never sees pgx types.
//
// Thread-Safety: NOT safe for concurrent use (pgx.Conn is not).
type ConnAdapter struct {
	conn    *pgx.Conn
	onClose func() error
	closed  bool
}

// NewConnAdapter wraps conn. onClose, if non-nil, runs once after conn is
// closed and releases resources the connector attached (e.g. a dialer).
func NewConnAdapter(conn *pgx.Conn, onClose func() error) *ConnAdapter {
	return &ConnAdapter{conn: conn, onClose: onClose}
}

// Begin starts an explicit transaction.
func (c *ConnAdapter) Begin(ctx context.Context) (pgbulk.Transaction, error) {
	tx, err := c.conn.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &txAdapter{tx: tx}, nil
}

// Close closes the connection. Safe to call more than once.
func (c *ConnAdapter) Close(ctx context.Context) error {
	if c.closed {
		return nil
	}
	c.closed = true

	err := c.conn.Close(ctx)
	if c.onClose != nil {
		err = errors.Join(err, c.onClose())
	}
	return err
}

// Conn exposes the underlying connection for tests and diagnostics.
func (c *ConnAdapter) Conn() *pgx.Conn {
	return c.conn
}

// txAdapter adapts pgx.Tx to pgbulk.Transaction.
type txAdapter struct {
	tx pgx.Tx
}

// CopyFrom runs a COPY ... FROM STDIN on the transaction's connection.
func (t *txAdapter) CopyFrom(ctx context.Context, r io.Reader, sql string) (pgconn.CommandTag, error) {
	return t.tx.Conn().PgConn().CopyFrom(ctx, r, sql)
}

func (t *txAdapter) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *txAdapter) Rollback(ctx context.Context) error {
	return t.tx.Rollback(ctx)
}

var (
	_ pgbulk.DBConnection = (*ConnAdapter)(nil)
	_ pgbulk.Transaction  = (*txAdapter)(nil)
)
