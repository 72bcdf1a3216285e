package testing

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vvka-141/pgbulk/internal/testinfra"
)

var (
	testContainerOnce sync.Once
	testContainerConn string
	testContainerErr  error
)

func getOrStartTestContainer() (string, error) {
	testContainerOnce.Do(func() {
		ctx := context.Background()
		container, err := testinfra.StartSimplePostgres(ctx)
		if err != nil {
			testContainerErr = err
			return
		}
		testContainerConn = container.ConnString
	})
	return testContainerConn, testContainerErr
}

// GetTestConnectionString returns the test database connection string.
// Priority: PGBULK_TEST_CONN env var > auto-started testcontainer > skip test.
func GetTestConnectionString(t *testing.T) string {
	t.Helper()

	if connString := os.Getenv("PGBULK_TEST_CONN"); connString != "" {
		return connString
	}

	connString, err := getOrStartTestContainer()
	if err != nil {
		t.Skipf("PGBULK_TEST_CONN not set and Docker unavailable: %v", err)
	}
	return connString
}

// SkipIfShort skips the test if running in short mode (-short flag).
func SkipIfShort(t *testing.T) {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
}

// RequireDatabase combines SkipIfShort and GetTestConnectionString for convenience.
// Returns the test connection string if available, otherwise skips the test.
func RequireDatabase(t *testing.T) string {
	t.Helper()

	SkipIfShort(t)
	return GetTestConnectionString(t)
}

// GetTestPool creates a connection pool for assertions. It is closed when the test completes.
func GetTestPool(t *testing.T, connString string) *pgxpool.Pool {
	t.Helper()

	pool, err := pgxpool.New(context.Background(), connString)
	if err != nil {
		t.Fatalf("Failed to create connection pool: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

// CreateTestTable creates a uniquely named table with the given column
// definitions, e.g. "id integer NOT NULL, name text", and drops it when the
// test completes. It returns the table name.
func CreateTestTable(t *testing.T, connString, columns string) string {
	t.Helper()

	table := "load_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
	pool := GetTestPool(t, connString)

	ctx := context.Background()
	ident := pgx.Identifier{table}.Sanitize()
	if _, err := pool.Exec(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", ident, columns)); err != nil {
		t.Fatalf("Failed to create test table %s: %v", table, err)
	}

	t.Cleanup(func() {
		if _, err := pool.Exec(context.Background(), "DROP TABLE IF EXISTS "+ident); err != nil {
			t.Logf("Warning: Failed to drop table %s: %v", table, err)
		}
	})
	return table
}

// CountRows returns the number of committed rows in table.
func CountRows(t *testing.T, connString, table string) int64 {
	t.Helper()

	var n int64
	query := "SELECT count(*) FROM " + pgx.Identifier{table}.Sanitize()
	if err := GetTestPool(t, connString).QueryRow(context.Background(), query).Scan(&n); err != nil {
		t.Fatalf("Failed to count rows in %s: %v", table, err)
	}
	return n
}

// QueryColumn returns one text column of table ordered by orderBy.
func QueryColumn(t *testing.T, connString, table, column, orderBy string) []string {
	t.Helper()

	query := fmt.Sprintf("SELECT %s::text FROM %s ORDER BY %s",
		pgx.Identifier{column}.Sanitize(), pgx.Identifier{table}.Sanitize(), pgx.Identifier{orderBy}.Sanitize())
	rows, err := GetTestPool(t, connString).Query(context.Background(), query)
	if err != nil {
		t.Fatalf("Failed to query %s: %v", table, err)
	}
	values, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		t.Fatalf("Failed to read %s: %v", table, err)
	}
	return values
}
