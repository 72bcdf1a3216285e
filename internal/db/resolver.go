package db

import (
	"fmt"
	"os"
	"strconv"

	"github.com/vvka-141/pgbulk/internal/config"
	"github.com/vvka-141/pgbulk/pkg/pgbulk"
)

// ConnFlags represents connection parameters from CLI flags.
// Host, port, user and database follow the PostgreSQL client conventions (-h, -p, -U, -d).
//
// Password is NOT a flag. Use $DB_PASSWORD, $PGPASSWORD, ~/.pgpass or a
// connection string instead.
type ConnFlags struct {
	Connection string
	Host       string
	Port       int
	Username   string
	Database   string
	SSLMode    string
}

// IsEmpty reports whether no granular server flag was given. Database is
// excluded because it may override the database of a connection string.
func (f *ConnFlags) IsEmpty() bool {
	return f.Host == "" && f.Port == 0 && f.Username == "" && f.SSLMode == ""
}

// CloudFlags selects a cloud authentication method and its parameters.
// At most one of AWS, Google and Azure may be set.
type CloudFlags struct {
	AWS       bool
	AWSRegion string

	Google         bool
	GoogleInstance string

	Azure         bool
	AzureTenantID string // overrides AZURE_TENANT_ID
	AzureClientID string // overrides AZURE_CLIENT_ID
}

// EnvVars holds the environment consulted during resolution.
type EnvVars struct {
	// Names used by the original loader scripts
	DB_HOST     string
	DB_NAME     string
	DB_USER     string
	DB_PASSWORD string

	PGBULK_CONNECTION_STRING string
	DATABASE_URL             string

	// libpq, see https://www.postgresql.org/docs/current/libpq-envars.html
	PGHOST     string
	PGPORT     string
	PGUSER     string
	PGPASSWORD string
	PGDATABASE string
	PGSSLMODE  string

	AZURE_TENANT_ID     string
	AZURE_CLIENT_ID     string
	AZURE_CLIENT_SECRET string
	AWS_REGION          string
}

// LoadFromEnvironment reads EnvVars from the process environment.
func LoadFromEnvironment() *EnvVars {
	return &EnvVars{
		DB_HOST:                  os.Getenv("DB_HOST"),
		DB_NAME:                  os.Getenv("DB_NAME"),
		DB_USER:                  os.Getenv("DB_USER"),
		DB_PASSWORD:              os.Getenv("DB_PASSWORD"),
		PGBULK_CONNECTION_STRING: os.Getenv("PGBULK_CONNECTION_STRING"),
		DATABASE_URL:             os.Getenv("DATABASE_URL"),
		PGHOST:                   os.Getenv("PGHOST"),
		PGPORT:                   os.Getenv("PGPORT"),
		PGUSER:                   os.Getenv("PGUSER"),
		PGPASSWORD:               os.Getenv("PGPASSWORD"),
		PGDATABASE:               os.Getenv("PGDATABASE"),
		PGSSLMODE:                os.Getenv("PGSSLMODE"),
		AZURE_TENANT_ID:          os.Getenv("AZURE_TENANT_ID"),
		AZURE_CLIENT_ID:          os.Getenv("AZURE_CLIENT_ID"),
		AZURE_CLIENT_SECRET:      os.Getenv("AZURE_CLIENT_SECRET"),
		AWS_REGION:               os.Getenv("AWS_REGION"),
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// ResolveConnectionParams resolves the connection for a run.
//
// A full connection string is taken from --connection, then
// $PGBULK_CONNECTION_STRING, then $DATABASE_URL. The environment strings are
// ignored when granular flags are given. Otherwise each parameter is resolved
// independently:
//
//	flag > $DB_* > $PG* > pgbulk.yaml > default
//
// The authentication method comes from --aws/--google/--azure, then the
// auth_method of pgbulk.yaml, then the presence of Azure credentials in the
// environment. Standard authentication is the default.
func ResolveConnectionParams(
	flags *ConnFlags,
	cloud *CloudFlags,
	env *EnvVars,
	projectConfig *config.ProjectConfig,
) (*pgbulk.ConnectionConfig, error) {
	if flags == nil {
		flags = &ConnFlags{}
	}
	if cloud == nil {
		cloud = &CloudFlags{}
	}
	if env == nil {
		env = &EnvVars{}
	}
	var pc config.ConnectionConfig
	if projectConfig != nil {
		pc = projectConfig.Connection
	}

	if flags.Connection != "" && !flags.IsEmpty() {
		return nil, fmt.Errorf(
			"cannot specify both --connection and granular flags (-h, -p, -U, --sslmode)\n"+
				"Choose one approach:\n"+
				"  1. Connection string: --connection \"postgresql://loader@localhost:5432/warehouse\"\n"+
				"  2. Granular flags: -h localhost -p 5432 -U loader -d warehouse\n"+
				"  3. Environment variables: export DB_HOST=localhost DB_USER=loader DB_NAME=warehouse: %w",
			pgbulk.ErrInvalidConfig,
		)
	}

	var (
		cfg *pgbulk.ConnectionConfig
		err error
	)
	connStr := flags.Connection
	if connStr == "" && flags.IsEmpty() {
		connStr = firstNonEmpty(env.PGBULK_CONNECTION_STRING, env.DATABASE_URL)
	}
	if connStr != "" {
		cfg, err = resolveFromConnectionString(connStr, flags, env)
	} else {
		cfg, err = resolveFromGranularParams(flags, env, pc)
	}
	if err != nil {
		return nil, err
	}

	if cfg.AppName == "" {
		cfg.AppName = pgbulk.DefaultAppName
	}

	if err := applyAuth(cfg, cloud, env, pc); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolveFromConnectionString parses connStr. The -d flag overrides its
// database; $PGSSLMODE and the password variables fill what the string omits.
func resolveFromConnectionString(connStr string, flags *ConnFlags, env *EnvVars) (*pgbulk.ConnectionConfig, error) {
	cfg, err := ParseConnectionString(connStr)
	if err != nil {
		return nil, fmt.Errorf("invalid connection string: %w", err)
	}

	if flags.Database != "" {
		cfg.Database = flags.Database
	}
	if cfg.Password == "" {
		cfg.Password = firstNonEmpty(env.DB_PASSWORD, env.PGPASSWORD)
	}
	cfg.SSLMode = firstNonEmpty(cfg.SSLMode, env.PGSSLMODE, "prefer")
	return cfg, nil
}

func resolveFromGranularParams(flags *ConnFlags, env *EnvVars, pc config.ConnectionConfig) (*pgbulk.ConnectionConfig, error) {
	cfg := &pgbulk.ConnectionConfig{
		AuthMethod:       pgbulk.AuthMethodStandard,
		AdditionalParams: make(map[string]string),
	}

	cfg.Host = firstNonEmpty(flags.Host, env.DB_HOST, env.PGHOST, pc.Host, "localhost")

	switch {
	case flags.Port != 0:
		cfg.Port = flags.Port
	case env.PGPORT != "":
		port, err := strconv.Atoi(env.PGPORT)
		if err != nil {
			return nil, fmt.Errorf("invalid $PGPORT value '%s': must be an integer: %w", env.PGPORT, pgbulk.ErrInvalidConfig)
		}
		cfg.Port = port
	case pc.Port != 0:
		cfg.Port = pc.Port
	default:
		cfg.Port = 5432
	}

	cfg.Username = firstNonEmpty(flags.Username, env.DB_USER, env.PGUSER, pc.Username, os.Getenv("USER"), os.Getenv("USERNAME"))
	cfg.Password = firstNonEmpty(env.DB_PASSWORD, env.PGPASSWORD)
	cfg.Database = firstNonEmpty(flags.Database, env.DB_NAME, env.PGDATABASE, pc.Database)
	if cfg.Database == "" {
		return nil, fmt.Errorf("database name is required (use -d, $DB_NAME or $PGDATABASE): %w", pgbulk.ErrInvalidConfig)
	}
	cfg.SSLMode = firstNonEmpty(flags.SSLMode, env.PGSSLMODE, pc.SSLMode, "prefer")

	return cfg, nil
}

func applyAuth(cfg *pgbulk.ConnectionConfig, cloud *CloudFlags, env *EnvVars, pc config.ConnectionConfig) error {
	selected := 0
	for _, on := range []bool{cloud.AWS, cloud.Google, cloud.Azure} {
		if on {
			selected++
		}
	}
	if selected > 1 {
		return fmt.Errorf("only one of --aws, --google and --azure may be given: %w", pgbulk.ErrInvalidConfig)
	}

	method := pgbulk.AuthMethodStandard
	switch {
	case cloud.AWS:
		method = pgbulk.AuthMethodAWSIAM
	case cloud.Google:
		method = pgbulk.AuthMethodGoogleIAM
	case cloud.Azure:
		method = pgbulk.AuthMethodAzureEntraID
	case pc.AuthMethod != "":
		m, err := pgbulk.ParseAuthMethod(pc.AuthMethod)
		if err != nil {
			return err
		}
		method = m
	case firstNonEmpty(cloud.AzureTenantID, cloud.AzureClientID, env.AZURE_TENANT_ID, env.AZURE_CLIENT_ID) != "":
		method = pgbulk.AuthMethodAzureEntraID
	}
	cfg.AuthMethod = method

	switch method {
	case pgbulk.AuthMethodAWSIAM:
		cfg.AWSRegion = firstNonEmpty(cloud.AWSRegion, env.AWS_REGION, pc.AWSRegion)
	case pgbulk.AuthMethodGoogleIAM:
		cfg.GoogleInstance = firstNonEmpty(cloud.GoogleInstance, pc.GoogleInstance)
	case pgbulk.AuthMethodAzureEntraID:
		cfg.AzureTenantID = firstNonEmpty(cloud.AzureTenantID, env.AZURE_TENANT_ID, pc.AzureTenantID)
		cfg.AzureClientID = firstNonEmpty(cloud.AzureClientID, env.AZURE_CLIENT_ID, pc.AzureClientID)
		// The client secret is only read from the environment.
		cfg.AzureClientSecret = env.AZURE_CLIENT_SECRET
	}
	return nil
}
