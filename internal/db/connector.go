package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/vvka-141/pgbulk/internal/logging"
	"github.com/vvka-141/pgbulk/pkg/pgbulk"
)

// StandardConnector opens a single connection with username/password
// authentication. Passwords may also come from ~/.pgpass, which pgx reads.
// A failed attempt is reported, never retried.
type StandardConnector struct {
	config *pgbulk.ConnectionConfig
}

// NewStandardConnector creates a new StandardConnector with the given configuration.
func NewStandardConnector(config *pgbulk.ConnectionConfig) *StandardConnector {
	return &StandardConnector{config: config}
}

// Connect opens the run's connection.
func (c *StandardConnector) Connect(ctx context.Context) (pgbulk.DBConnection, error) {
	connConfig, err := parseConnConfig(c.config)
	if err != nil {
		return nil, err
	}
	return dial(ctx, connConfig, c.config, nil)
}

func parseConnConfig(config *pgbulk.ConnectionConfig) (*pgx.ConnConfig, error) {
	connConfig, err := pgx.ParseConfig(BuildConnectionString(config))
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection config: %v: %w", err, pgbulk.ErrInvalidConfig)
	}
	return connConfig, nil
}

// dial connects once. onClose, if set, runs after the connection is closed.
func dial(ctx context.Context, connConfig *pgx.ConnConfig, config *pgbulk.ConnectionConfig, onClose func() error) (*ConnAdapter, error) {
	conn, err := pgx.ConnectConfig(ctx, connConfig)
	if err != nil {
		if onClose != nil {
			_ = onClose()
		}
		return nil, wrapConnectionError(err, config.Host, config.Port, config.Database)
	}
	return NewConnAdapter(conn, onClose), nil
}

// NewConnector creates the Connector matching config.AuthMethod.
// A nil logger discards token warnings.
func NewConnector(config *pgbulk.ConnectionConfig, logger pgbulk.Logger) (pgbulk.Connector, error) {
	if config == nil {
		panic("config cannot be nil")
	}
	if logger == nil {
		logger = logging.NewNullLogger()
	}

	switch config.AuthMethod {
	case pgbulk.AuthMethodStandard:
		return NewStandardConnector(config), nil
	case pgbulk.AuthMethodAWSIAM:
		return newAWSConnector(config, logger)
	case pgbulk.AuthMethodGoogleIAM:
		return newGoogleConnector(config)
	case pgbulk.AuthMethodAzureEntraID:
		return newAzureConnector(config, logger)
	default:
		return nil, fmt.Errorf("auth method %v: %w", config.AuthMethod, pgbulk.ErrUnsupportedAuthMethod)
	}
}

// wrapConnectionError adds actionable guidance to a raw pgx connection error.
// The result always unwraps to pgbulk.ErrConnectionFailed and err.
func wrapConnectionError(err error, host string, port int, database string) error {
	errStr := strings.ToLower(err.Error())
	addr := fmt.Sprintf("%s:%d", host, port)

	var hint string
	switch {
	case strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "actively refused"):
		hint = fmt.Sprintf(`connection refused to %s

Possible causes:
  - PostgreSQL is not running (check: pg_isready -h %s -p %d)
  - Wrong host or port (check $DB_HOST, $PGHOST, -h, -p)
  - Firewall blocking the connection`, addr, host, port)

	case strings.Contains(errStr, "no such host") || strings.Contains(errStr, "no host"):
		hint = fmt.Sprintf(`cannot resolve host "%s"

Possible causes:
  - Hostname is misspelled
  - DNS is not configured or reachable`, host)

	case strings.Contains(errStr, "password authentication failed"):
		hint = fmt.Sprintf(`password authentication failed for database "%s"

Possible causes:
  - Wrong password (check $DB_PASSWORD, $PGPASSWORD or ~/.pgpass)
  - Wrong username (check $DB_USER, $PGUSER or -U)`, database)

	case strings.Contains(errStr, "does not exist"):
		hint = fmt.Sprintf(`database "%s" does not exist

pgbulk loads into an existing database and table. Create them first, e.g.:
  createdb %s`, database, database)

	case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "timed out"):
		hint = fmt.Sprintf(`connection timed out to %s

Possible causes:
  - Server is overloaded or unresponsive
  - Firewall silently dropping packets
  - Wrong host/port (server not listening)`, addr)

	case strings.Contains(errStr, "ssl") || strings.Contains(errStr, "tls"):
		hint = `SSL/TLS connection error

Possible causes:
  - Server requires SSL but --sslmode is wrong
  - Certificate verification failed (try --sslmode=require)`

	case strings.Contains(errStr, "too many connections"):
		hint = fmt.Sprintf(`too many connections to database "%s"

Possible causes:
  - max_connections limit reached in postgresql.conf
  - Another loader run is still holding connections`, database)

	default:
		return fmt.Errorf("%w: %w", pgbulk.ErrConnectionFailed, err)
	}

	return fmt.Errorf("%w: %s\n\nOriginal error: %w", pgbulk.ErrConnectionFailed, hint, err)
}

func newAWSConnector(config *pgbulk.ConnectionConfig, logger pgbulk.Logger) (pgbulk.Connector, error) {
	endpoint := fmt.Sprintf("%s:%d", config.Host, config.Port)

	tokenProvider, err := NewAWSIAMTokenProvider(endpoint, config.AWSRegion, config.Username)
	if err != nil {
		return nil, err
	}
	return NewTokenBasedConnector(config, tokenProvider, "AWS IAM", logger), nil
}

func newGoogleConnector(config *pgbulk.ConnectionConfig) (pgbulk.Connector, error) {
	if config.GoogleInstance == "" {
		return nil, fmt.Errorf("Google Cloud SQL IAM auth requires --google-instance (project:region:instance): %w", pgbulk.ErrInvalidConfig)
	}
	if config.Username == "" {
		return nil, fmt.Errorf("Google Cloud SQL IAM auth requires a username (-U): %w", pgbulk.ErrInvalidConfig)
	}
	return NewGoogleCloudSQLConnector(config, config.GoogleInstance), nil
}

// newAzureConnector uses Service Principal credentials when tenant, client and
// secret are all known, and the DefaultAzureCredential chain otherwise.
func newAzureConnector(config *pgbulk.ConnectionConfig, logger pgbulk.Logger) (pgbulk.Connector, error) {
	var (
		tokenProvider TokenProvider
		err           error
	)
	if config.AzureTenantID != "" && config.AzureClientID != "" && config.AzureClientSecret != "" {
		tokenProvider, err = NewAzureServicePrincipalProvider(config.AzureTenantID, config.AzureClientID, config.AzureClientSecret)
	} else {
		tokenProvider, err = NewAzureDefaultCredentialProvider()
	}
	if err != nil {
		return nil, err
	}
	return NewTokenBasedConnector(config, tokenProvider, "Azure", logger), nil
}
