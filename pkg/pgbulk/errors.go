package pgbulk

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for common failure scenarios.
// These enable callers to distinguish error types using errors.Is().
//
// Example usage:
//
//	run, err := loader.Load(ctx, config)
//	if errors.Is(err, pgbulk.ErrFileLoad) {
//	    // one file was rolled back, files before it stay committed
//	}
var (
	// ErrInvalidConfig indicates the provided configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrConnectionFailed indicates database connection failed.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrUnsupportedAuthMethod indicates the requested authentication method is not supported.
	ErrUnsupportedAuthMethod = errors.New("unsupported authentication method")

	// ErrSourceDirectory indicates the source directory is missing, unreadable or not a directory.
	ErrSourceDirectory = errors.New("source directory unavailable")

	// ErrFileLoad indicates a file-level failure. The file's transaction was rolled back
	// and no later file was attempted.
	ErrFileLoad = errors.New("file load failed")

	// ErrDecompression indicates the decompression stream failed or the process exited abnormally.
	ErrDecompression = errors.New("decompression failed")

	// ErrCopyFailed indicates the bulk copy was rejected by the database.
	ErrCopyFailed = errors.New("bulk copy failed")

	// ErrUnsupportedFormat indicates no builtin decompressor handles the file's extension.
	ErrUnsupportedFormat = errors.New("unsupported compression format")

	// ErrInvalidTransition indicates an illegal file state change.
	ErrInvalidTransition = errors.New("invalid file state transition")
)

// FileLoadError describes the file-level failure that stopped a run.
// It unwraps to both ErrFileLoad and the underlying cause.
type FileLoadError struct {
	File      string // Name of the file in progress
	Index     int    // 1-based position in the processing order
	Processed int    // Files committed before the failure
	Total     int    // Files in the run
	Err       error  // Underlying cause
}

func (e *FileLoadError) Error() string {
	return fmt.Sprintf("file %s (%d/%d): %v", e.File, e.Index, e.Total, e.Err)
}

// Unwrap exposes ErrFileLoad and the cause to errors.Is / errors.As.
func (e *FileLoadError) Unwrap() []error {
	return []error{ErrFileLoad, e.Err}
}

// usageErrorPatterns are cobra/pflag messages for command line misuse.
var usageErrorPatterns = []string{
	"unknown flag",
	"unknown shorthand flag",
	"unknown command",
	"arg(s), received",
	"required flag",
	"invalid argument",
	"flag needs an argument",
}

// ExitCodeForError returns the appropriate exit code for an error.
// Returns ExitSuccess (0) for nil errors, semantic codes for known errors,
// and ExitGeneralError (1) for unclassified errors.
func ExitCodeForError(err error) int {
	if err == nil {
		return ExitSuccess
	}

	switch {
	case errors.Is(err, ErrFileLoad):
		return ExitFileLoadFailed
	case errors.Is(err, ErrSourceDirectory):
		return ExitSourceDirError
	case errors.Is(err, ErrConnectionFailed):
		return ExitConnectionError
	case errors.Is(err, ErrInvalidConfig), errors.Is(err, ErrUnsupportedAuthMethod):
		return ExitConfigError
	}

	errStr := err.Error()
	for _, pattern := range usageErrorPatterns {
		if strings.Contains(errStr, pattern) {
			return ExitUsageError
		}
	}

	if strings.Contains(errStr, "failed to connect") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no such host") {
		return ExitConnectionError
	}

	return ExitGeneralError
}
