package pgbulk

// Exit codes for semantic error classification.
// These follow Unix/GNU conventions:
//   - 0: Success
//   - 1: General error
//   - 2: CLI usage error (misuse of command line)
//   - 3+: Application-specific errors
const (
	ExitSuccess         = 0  // All files committed
	ExitGeneralError    = 1  // Unknown or unclassified error
	ExitUsageError      = 2  // CLI usage error (missing args, invalid flags)
	ExitPanic           = 3  // Internal panic (unexpected crash)
	ExitConfigError     = 10 // Invalid configuration or parameters
	ExitConnectionError = 11 // Failed to connect to database
	ExitSourceDirError  = 12 // Source directory missing or unreadable
	ExitFileLoadFailed  = 13 // A file failed to load and was rolled back
)

const (
	// DefaultAppName is reported to PostgreSQL as application_name.
	DefaultAppName = "pgbulk"

	// DefaultDecompressCommand is the external program spawned per file.
	// The file path is appended after DefaultDecompressArgs.
	DefaultDecompressCommand = "gunzip"

	// DefaultDelimiter is the field separator of the delimited row format.
	DefaultDelimiter = ','

	// MaxStderrCapture bounds how much of a decompression process's stderr
	// is kept for error messages.
	MaxStderrCapture = 4096
)

// DefaultDecompressArgs are passed to DefaultDecompressCommand before the file path.
var DefaultDecompressArgs = []string{"-c"}

// Decompressor names accepted by LoadConfig.Decompressor.
const (
	DecompressorProcess = "process"
	DecompressorBuiltin = "builtin"
)
