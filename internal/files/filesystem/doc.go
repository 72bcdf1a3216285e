// Package filesystem provides the filesystem abstraction used to list and open source files.
//
// Key interface:
//   - FileSystemProvider: Stat, flat ReadDir listing and streamed Open
//
// Implementations:
//   - OSFileSystem: Production implementation using the OS filesystem
//   - MemoryFileSystem: In-memory implementation for testing
//
// Source files are never written or removed through this package.
package filesystem
