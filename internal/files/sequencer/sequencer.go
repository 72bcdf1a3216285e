package sequencer

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/vvka-141/pgbulk/internal/files/filesystem"
	"github.com/vvka-141/pgbulk/pkg/pgbulk"
)

// Policy selects which directory entries are candidates.
type Policy struct {
	// Pattern is a filepath.Match glob applied to entry names. Empty keeps all.
	Pattern string
}

// Validate reports a malformed pattern before any listing happens.
func (p Policy) Validate() error {
	if p.Pattern == "" {
		return nil
	}
	if _, err := filepath.Match(p.Pattern, ""); err != nil {
		return fmt.Errorf("invalid pattern %q: %v: %w", p.Pattern, err, pgbulk.ErrInvalidConfig)
	}
	return nil
}

func (p Policy) matches(name string) bool {
	if p.Pattern == "" {
		return true
	}
	ok, _ := filepath.Match(p.Pattern, name)
	return ok
}

// Entry is one loadable file.
type Entry struct {
	Name string
	Path string
	Size int64
}

// Sequence is the ordered, immutable file list of a run with a forward-only cursor.
//
// Thread-Safety: NOT safe for concurrent use.
type Sequence struct {
	dir     string
	entries []Entry
	next    int
	skipped int
}

// List reads dir once through fsProvider and returns its candidates sorted by name.
// A missing, unreadable or non-directory path yields pgbulk.ErrSourceDirectory.
func List(fsProvider filesystem.FileSystemProvider, dir string, policy Policy) (*Sequence, error) {
	if fsProvider == nil {
		panic("fsProvider cannot be nil")
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	info, err := fsProvider.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("%s: %v: %w", dir, err, pgbulk.ErrSourceDirectory)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory: %w", dir, pgbulk.ErrSourceDirectory)
	}

	infos, err := fsProvider.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%s: %v: %w", dir, err, pgbulk.ErrSourceDirectory)
	}

	seq := &Sequence{dir: dir}
	for _, fi := range infos {
		if fi.IsDir() || !policy.matches(fi.Name()) {
			seq.skipped++
			continue
		}
		seq.entries = append(seq.entries, Entry{
			Name: fi.Name(),
			Path: filepath.Join(dir, fi.Name()),
			Size: fi.Size(),
		})
	}

	sort.Slice(seq.entries, func(i, j int) bool {
		return seq.entries[i].Name < seq.entries[j].Name
	})

	return seq, nil
}

// Dir returns the listed directory.
func (s *Sequence) Dir() string { return s.dir }

// Total returns the number of selected entries.
func (s *Sequence) Total() int { return len(s.entries) }

// Skipped returns how many directory entries the policy left out.
func (s *Sequence) Skipped() int { return s.skipped }

// Names returns the processing order.
func (s *Sequence) Names() []string {
	names := make([]string, len(s.entries))
	for i, e := range s.entries {
		names[i] = e.Name
	}
	return names
}

// Next returns the next entry and advances the cursor. It returns false once
// every entry has been handed out; the cursor never moves backwards.
func (s *Sequence) Next() (Entry, bool) {
	if s.next >= len(s.entries) {
		return Entry{}, false
	}
	e := s.entries[s.next]
	s.next++
	return e, true
}

// Position returns the 1-based index of the entry last returned by Next.
func (s *Sequence) Position() int { return s.next }
