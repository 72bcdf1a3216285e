package pgbulk

import (
	"context"
	"io"

	"github.com/jackc/pgx/v5/pgconn"
)

// Connector establishes the single database connection used by a run.
type Connector interface {
	Connect(ctx context.Context) (DBConnection, error)
}

// DBConnection is the run-scoped connection. It is owned by exactly one run
// and is NOT safe for concurrent use.
type DBConnection interface {
	// Begin starts an explicit transaction. Every file is loaded in its own.
	Begin(ctx context.Context) (Transaction, error)

	// Close releases the connection and any resources the connector attached to it.
	// Close is idempotent.
	Close(ctx context.Context) error
}

// Transaction is the scope of exactly one file's rows.
type Transaction interface {
	// CopyFrom streams r to the server as the data of a COPY ... FROM STDIN statement.
	CopyFrom(ctx context.Context, r io.Reader, sql string) (pgconn.CommandTag, error)

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
