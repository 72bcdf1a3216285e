package db

import (
	"context"
	"fmt"
	"net"

	"cloud.google.com/go/cloudsqlconn"

	"github.com/vvka-141/pgbulk/pkg/pgbulk"
)

// GoogleCloudSQLConnector connects to Google Cloud SQL with IAM database
// authentication through the Cloud SQL Go Connector. The dialer lives as long
// as the connection and is closed with it.
type GoogleCloudSQLConnector struct {
	config   *pgbulk.ConnectionConfig
	instance string
	options  []cloudsqlconn.Option
}

// NewGoogleCloudSQLConnector creates a connector for the instance connection
// name project:region:instance.
func NewGoogleCloudSQLConnector(config *pgbulk.ConnectionConfig, instance string, opts ...cloudsqlconn.Option) *GoogleCloudSQLConnector {
	return &GoogleCloudSQLConnector{
		config:   config,
		instance: instance,
		options:  append([]cloudsqlconn.Option{cloudsqlconn.WithIAMAuthN()}, opts...),
	}
}

// Connect creates a dialer and opens the run's connection through it.
func (c *GoogleCloudSQLConnector) Connect(ctx context.Context) (pgbulk.DBConnection, error) {
	dialer, err := cloudsqlconn.NewDialer(ctx, c.options...)
	if err != nil {
		return nil, fmt.Errorf("create Cloud SQL dialer: %w: %w", pgbulk.ErrConnectionFailed, err)
	}

	// The dialer ignores the address and terminates TLS itself; the host only
	// has to survive pgx's name lookup.
	local := *c.config
	local.Host = "localhost"
	local.Password = ""
	local.SSLMode = "disable"

	connConfig, err := parseConnConfig(&local)
	if err != nil {
		dialer.Close()
		return nil, err
	}
	connConfig.DialFunc = func(ctx context.Context, _, _ string) (net.Conn, error) {
		return dialer.Dial(ctx, c.instance)
	}

	return dial(ctx, connConfig, c.config, dialer.Close)
}
