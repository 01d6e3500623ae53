// Package filesystemtest provides a hand-written in-memory fake of
// pkg/filesystem.FileSystem for unit tests: a real, if simplified,
// implementation instead of a recorded-expectation mock. It is exercised
// by every pkg/filepool test that touches a filesystem.
package filesystemtest

import (
	"io"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/curvebs/chunkfilepool/pkg/filesystem"
)

type entry struct {
	data []byte
}

// MemFileSystem is an in-memory filesystem.FileSystem. The zero value is
// not usable; construct with New.
type MemFileSystem struct {
	mu sync.Mutex

	files map[string]*entry
	dirs  map[string]bool

	// Total/Available drive the Statfs response; tests set these
	// directly to exercise FormatWorker's disk-full path.
	Total     uint64
	Available uint64
}

// New creates an empty MemFileSystem rooted at "/".
func New() *MemFileSystem {
	return &MemFileSystem{
		files:     make(map[string]*entry),
		dirs:      map[string]bool{"/": true},
		Total:     1 << 40,
		Available: 1 << 40,
	}
}

func clean(p string) string {
	return path.Clean("/" + strings.TrimPrefix(p, "/"))
}

func (m *MemFileSystem) Open(p string, create bool) (filesystem.File, error) {
	p = clean(p)
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.files[p]
	if !ok {
		if !create {
			return nil, os.ErrNotExist
		}
		e = &entry{}
		m.files[p] = e
	}
	return &memFile{fs: m, path: p, entry: e}, nil
}

func (m *MemFileSystem) Delete(p string) error {
	p = clean(p)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, p)
	return nil
}

func (m *MemFileSystem) Rename(oldpath, newpath string, flag filesystem.RenameFlag) error {
	oldpath, newpath = clean(oldpath), clean(newpath)
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.files[oldpath]
	if !ok {
		return os.ErrNotExist
	}
	if flag == filesystem.RenameNoReplace {
		if _, exists := m.files[newpath]; exists {
			return os.ErrExist
		}
	}
	m.dirs[path.Dir(newpath)] = true
	m.files[newpath] = e
	delete(m.files, oldpath)
	return nil
}

func (m *MemFileSystem) Mkdir(dir string) error {
	dir = clean(dir)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dirs[dir] = true
	return nil
}

func (m *MemFileSystem) DirExists(dir string) bool {
	dir = clean(dir)
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dirs[dir]
}

func (m *MemFileSystem) FileExists(p string) bool {
	p = clean(p)
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[p]
	return ok
}

func (m *MemFileSystem) List(dir string) ([]string, error) {
	dir = clean(dir)
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.dirs[dir] {
		return nil, os.ErrNotExist
	}
	var names []string
	for p := range m.files {
		if d, name := path.Dir(p), path.Base(p); d == dir {
			names = append(names, name)
		}
	}
	for d := range m.dirs {
		if d == dir || d == "/" {
			continue
		}
		if parent, name := path.Dir(d), path.Base(d); parent == dir {
			names = append(names, name)
		}
	}
	return names, nil
}

func (m *MemFileSystem) Statfs(dir string) (filesystem.SpaceInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return filesystem.SpaceInfo{TotalBytes: m.Total, AvailableBytes: m.Available}, nil
}

// Put seeds a file's contents directly, bypassing Open/WriteAt, for test
// setup (e.g. pre-populating a pool directory to exercise the scanner).
func (m *MemFileSystem) Put(p string, data []byte) {
	p = clean(p)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dirs[path.Dir(p)] = true
	m.files[p] = &entry{data: append([]byte(nil), data...)}
}

type memFile struct {
	fs    *MemFileSystem
	path  string
	entry *entry
}

func (f *memFile) ReadAt(p []byte, off int64) (int, error) {
	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()

	data := f.entry.data
	if off >= int64(len(data)) {
		return 0, io.EOF
	}
	n := copy(p, data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (f *memFile) WriteAt(p []byte, off int64) (int, error) {
	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()

	end := off + int64(len(p))
	if int64(len(f.entry.data)) < end {
		grown := make([]byte, end)
		copy(grown, f.entry.data)
		f.entry.data = grown
	}
	copy(f.entry.data[off:], p)
	return len(p), nil
}

func (f *memFile) Fallocate(mode filesystem.FallocateMode, offset, length int64) error {
	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()

	end := offset + length
	if int64(len(f.entry.data)) < end {
		grown := make([]byte, end)
		copy(grown, f.entry.data)
		f.entry.data = grown
	}
	if mode == filesystem.FallocateZeroRange {
		for i := offset; i < end; i++ {
			f.entry.data[i] = 0
		}
	}
	return nil
}

func (f *memFile) Fsync() error {
	return nil
}

func (f *memFile) Close() error {
	return nil
}

func (f *memFile) Stat() (filesystem.FileInfo, error) {
	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()
	return filesystem.FileInfo{SizeBytes: uint64(len(f.entry.data))}, nil
}
