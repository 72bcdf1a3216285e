// Package files groups the source-side packages of a load run:
//   - filesystem: filesystem abstraction (OS and in-memory)
//   - sequencer: lists a directory once and hands out its files in name order
//
// # Usage
//
//	import (
//	    "github.com/vvka-141/pgbulk/internal/files/filesystem"
//	    "github.com/vvka-141/pgbulk/internal/files/sequencer"
//	)
//
//	seq, err := sequencer.List(filesystem.NewOSFileSystem(), "./export", sequencer.Policy{Pattern: "*.gz"})
//	for entry, ok := seq.Next(); ok; entry, ok = seq.Next() {
//	    // load entry.Path
//	}
package files
