package pgbulk

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// LoadConfig contains all parameters needed for a load run.
// Every value is already resolved; the loader does not read flags or environment.
type LoadConfig struct {
	// SourcePath is the directory whose entries are loaded
	SourcePath string

	// Table is the target table, optionally schema-qualified ("schema.table")
	Table string

	// ConnectionString is the PostgreSQL connection string (URI or ADO.NET format)
	ConnectionString string

	// Pattern restricts candidate entries to names matching this glob (filepath.Match).
	// Empty means every non-directory entry is loaded.
	Pattern string

	// Decompressor selects the stream adapter: DecompressorProcess (default) or DecompressorBuiltin
	Decompressor string

	// DecompressCommand and DecompressArgs define the external process.
	// The file path is appended as the last argument.
	DecompressCommand string
	DecompressArgs    []string

	// Format describes the delimited row format
	Format CopyFormat

	// Timeout bounds the whole run. Zero disables it.
	Timeout time.Duration

	// MetricsFile, if set, receives run metrics in Prometheus text format
	MetricsFile string

	// Verbose enables detailed logging
	Verbose bool

	// AuthMethod indicates the authentication mechanism to use
	AuthMethod AuthMethod

	// Cloud authentication parameters
	AzureTenantID     string
	AzureClientID     string
	AzureClientSecret string
	AWSRegion         string
	GoogleInstance    string
}

// CopyFormat describes the delimited text accepted by COPY.
type CopyFormat struct {
	// Delimiter separates fields. Zero means DefaultDelimiter.
	Delimiter rune

	// Header reports that the first line holds column names and is skipped.
	Header bool

	// Null is the string that represents a NULL value. Empty keeps the server default.
	Null string

	// Columns limits and orders the target columns. Empty means all columns in table order.
	Columns []string
}

// DefaultCopyFormat returns comma-delimited CSV with a header line.
func DefaultCopyFormat() CopyFormat {
	return CopyFormat{Delimiter: DefaultDelimiter, Header: true}
}

// Validate checks if the LoadConfig has all required fields and valid values.
// It returns a multi-error if multiple validation failures occur.
func (c *LoadConfig) Validate() error {
	var errs []error

	if c.SourcePath == "" {
		errs = append(errs, fmt.Errorf("SourcePath is required: %w", ErrInvalidConfig))
	}

	if c.Table == "" {
		errs = append(errs, fmt.Errorf("Table is required: %w", ErrInvalidConfig))
	}

	if c.ConnectionString == "" {
		errs = append(errs, fmt.Errorf("ConnectionString is required: %w", ErrInvalidConfig))
	}

	switch c.Decompressor {
	case "", DecompressorProcess, DecompressorBuiltin:
	default:
		errs = append(errs, fmt.Errorf("unknown decompressor %q (want %s or %s): %w",
			c.Decompressor, DecompressorProcess, DecompressorBuiltin, ErrInvalidConfig))
	}

	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout cannot be negative: %w", ErrInvalidConfig))
	}

	if !c.AuthMethod.IsValid() {
		errs = append(errs, fmt.Errorf("auth method %v: %w", c.AuthMethod, ErrInvalidConfig))
	}

	return errors.Join(errs...)
}

// ConnectionConfig represents parsed connection parameters.
type ConnectionConfig struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	SSLMode  string

	// AuthMethod indicates the authentication mechanism to use
	AuthMethod AuthMethod

	// Additional connection parameters
	AppName          string
	ConnectTimeout   time.Duration
	AdditionalParams map[string]string

	// Azure Entra ID authentication parameters (used when AuthMethod is AuthMethodAzureEntraID)
	// If all three are provided, Service Principal authentication is used.
	// If none are provided, DefaultAzureCredential chain is used (env vars, managed identity, CLI, etc.)
	AzureTenantID     string
	AzureClientID     string
	AzureClientSecret string

	// AWSRegion is required for AuthMethodAWSIAM
	AWSRegion string

	// GoogleInstance is the Cloud SQL instance connection name (project:region:instance)
	GoogleInstance string
}

// AuthMethod represents the type of authentication to use.
type AuthMethod int

const (
	AuthMethodStandard     AuthMethod = iota // Username/Password
	AuthMethodAWSIAM                         // AWS IAM Database Authentication
	AuthMethodGoogleIAM                      // Google Cloud SQL IAM
	AuthMethodAzureEntraID                   // Azure Active Directory (Entra ID)
)

// String returns a human-readable string representation of the AuthMethod.
func (a AuthMethod) String() string {
	switch a {
	case AuthMethodStandard:
		return "Standard"
	case AuthMethodAWSIAM:
		return "AWS IAM"
	case AuthMethodGoogleIAM:
		return "Google IAM"
	case AuthMethodAzureEntraID:
		return "Azure Entra ID"
	default:
		return fmt.Sprintf("Unknown(%d)", a)
	}
}

// IsValid returns true if the AuthMethod is a valid, defined value.
func (a AuthMethod) IsValid() bool {
	return a >= AuthMethodStandard && a <= AuthMethodAzureEntraID
}

// ParseAuthMethod maps the names used in pgbulk.yaml to an AuthMethod.
func ParseAuthMethod(s string) (AuthMethod, error) {
	switch s {
	case "", "standard", "password":
		return AuthMethodStandard, nil
	case "aws", "aws-iam":
		return AuthMethodAWSIAM, nil
	case "google", "google-iam":
		return AuthMethodGoogleIAM, nil
	case "azure", "azure-entra-id":
		return AuthMethodAzureEntraID, nil
	default:
		return AuthMethodStandard, fmt.Errorf("auth method %q: %w", s, ErrUnsupportedAuthMethod)
	}
}

// FileState is the position of one file in its load lifecycle.
type FileState int

const (
	FileStatePending FileState = iota
	FileStateLoading
	FileStateCommitted
	FileStateRolledBack
)

func (s FileState) String() string {
	switch s {
	case FileStatePending:
		return "pending"
	case FileStateLoading:
		return "loading"
	case FileStateCommitted:
		return "committed"
	case FileStateRolledBack:
		return "rolled back"
	default:
		return fmt.Sprintf("FileState(%d)", int(s))
	}
}

// Transition returns the next state, or ErrInvalidTransition.
// Legal moves: Pending → Loading, Loading → Committed, Loading → RolledBack.
func (s FileState) Transition(to FileState) (FileState, error) {
	switch {
	case s == FileStatePending && to == FileStateLoading,
		s == FileStateLoading && to == FileStateCommitted,
		s == FileStateLoading && to == FileStateRolledBack:
		return to, nil
	default:
		return s, fmt.Errorf("%s -> %s: %w", s, to, ErrInvalidTransition)
	}
}

// FileResult records the outcome of one attempted file.
type FileResult struct {
	Name     string
	State    FileState
	Rows     int64
	Duration time.Duration
	Err      error
}

// Run is a single execution over one directory against one table.
//
// Thread-Safety: NOT safe for concurrent use. A run is driven by one goroutine.
type Run struct {
	ID         uuid.UUID
	Table      string
	SourcePath string
	StartedAt  time.Time

	// Total is the number of entries selected when the directory was listed.
	Total int

	// Processed counts committed files. It never decreases.
	Processed int

	// CurrentFile is the file currently or last being processed.
	CurrentFile string

	// RowsCopied sums rows of committed files.
	RowsCopied int64

	// Files holds one result per attempted file, in processing order.
	Files []FileResult
}

// NewRun creates a run with a fresh identifier.
func NewRun(table, sourcePath string, total int) *Run {
	return &Run{
		ID:         uuid.New(),
		Table:      table,
		SourcePath: sourcePath,
		StartedAt:  time.Now(),
		Total:      total,
	}
}

// Complete reports whether every listed file was committed.
func (r *Run) Complete() bool {
	return r.Processed == r.Total
}
