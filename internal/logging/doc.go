// Package logging provides concrete implementations of the pgbulk.Logger interface.
//
// Available implementations:
//   - ConsoleLogger: Writes leveled records to stderr through a tint slog handler
//   - NullLogger: Discards all messages (useful for testing)
//
// All logger implementations are safe for concurrent use by multiple goroutines.
// Operator progress lines are not log records and are printed by the load service.
package logging
