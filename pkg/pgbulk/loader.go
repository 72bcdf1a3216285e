package pgbulk

import "context"

// Loader is the main interface for executing a load run.
// Implementations list the source directory once, then load one file per
// transaction in name order and stop at the first file-level failure.
type Loader interface {
	// Load executes a run using the provided configuration.
	// The returned Run is non-nil whenever the run started, including on failure,
	// and reports how far it got.
	Load(ctx context.Context, config LoadConfig) (*Run, error)
}
