package filesystem

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"path"
	"path/filepath"
	"sync"
	"time"
)

// memoryFileInfo implements fs.FileInfo for in-memory files
type memoryFileInfo struct {
	name    string
	size    int64
	mode    fs.FileMode
	modTime time.Time
	isDir   bool
}

func (f *memoryFileInfo) Name() string       { return f.name }
func (f *memoryFileInfo) Size() int64        { return f.size }
func (f *memoryFileInfo) Mode() fs.FileMode  { return f.mode }
func (f *memoryFileInfo) ModTime() time.Time { return f.modTime }
func (f *memoryFileInfo) IsDir() bool        { return f.isDir }
func (f *memoryFileInfo) Sys() interface{}   { return nil }

type memoryEntry struct {
	content []byte
	info    *memoryFileInfo
}

// MemoryFileSystem implements FileSystemProvider for in-memory testing.
// Paths use forward slashes. Safe for concurrent use.
type MemoryFileSystem struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry // absolute path -> entry
	root    string
}

// NewMemoryFileSystem creates a new in-memory filesystem with root as its only directory.
func NewMemoryFileSystem(root string) *MemoryFileSystem {
	root = path.Clean(filepath.ToSlash(root))

	mfs := &MemoryFileSystem{
		entries: make(map[string]*memoryEntry),
		root:    root,
	}
	mfs.entries[root] = &memoryEntry{info: dirInfo(path.Base(root))}
	return mfs
}

func dirInfo(name string) *memoryFileInfo {
	return &memoryFileInfo{name: name, mode: 0755 | fs.ModeDir, modTime: time.Now(), isDir: true}
}

// Root returns the root directory path.
func (m *MemoryFileSystem) Root() string {
	return m.root
}

// AddFile adds a file relative to the root. Missing parent directories are created.
func (m *MemoryFileSystem) AddFile(relPath string, content []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	abs := path.Join(m.root, filepath.ToSlash(relPath))
	m.ensureDirs(path.Dir(abs))
	m.entries[abs] = &memoryEntry{
		content: content,
		info: &memoryFileInfo{
			name:    path.Base(abs),
			size:    int64(len(content)),
			mode:    0644,
			modTime: time.Now(),
		},
	}
}

// AddDirectory adds an empty directory relative to the root.
func (m *MemoryFileSystem) AddDirectory(relPath string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensureDirs(path.Join(m.root, filepath.ToSlash(relPath)))
}

func (m *MemoryFileSystem) ensureDirs(dir string) {
	for d := dir; ; d = path.Dir(d) {
		if _, ok := m.entries[d]; !ok {
			m.entries[d] = &memoryEntry{info: dirInfo(path.Base(d))}
		}
		if d == m.root || d == "." || d == "/" {
			return
		}
	}
}

func (m *MemoryFileSystem) lookup(p string) (*memoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.entries[path.Clean(filepath.ToSlash(p))]
	if !ok {
		return nil, &fs.PathError{Op: "stat", Path: p, Err: fs.ErrNotExist}
	}
	return entry, nil
}

func (m *MemoryFileSystem) Stat(p string) (FileInfo, error) {
	entry, err := m.lookup(p)
	if err != nil {
		return nil, err
	}
	return entry.info, nil
}

func (m *MemoryFileSystem) ReadDir(p string) ([]FileInfo, error) {
	entry, err := m.lookup(p)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}
	if !entry.info.isDir {
		return nil, fmt.Errorf("failed to read directory: %s is not a directory", p)
	}

	dir := path.Clean(filepath.ToSlash(p))

	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []FileInfo
	for abs, e := range m.entries {
		if abs != dir && path.Dir(abs) == dir {
			result = append(result, e.info)
		}
	}
	return result, nil
}

func (m *MemoryFileSystem) Open(p string) (io.ReadCloser, error) {
	entry, err := m.lookup(p)
	if err != nil {
		return nil, err
	}
	if entry.info.isDir {
		return nil, &fs.PathError{Op: "open", Path: p, Err: fmt.Errorf("is a directory")}
	}
	return io.NopCloser(bytes.NewReader(entry.content)), nil
}
