package segmenter

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// OpenMode selects how a sink treats an existing file at the same path.
type OpenMode int

const (
	// ModeSegment creates the file, discarding any stale content from an earlier run.
	ModeSegment OpenMode = iota
	// ModeManifest creates or replaces the file. Readers must never observe a
	// partially written manifest.
	ModeManifest
)

// SinkOpener acquires a writable sink for a path.
type SinkOpener interface {
	Open(path string, mode OpenMode) (io.WriteCloser, error)
}

// Store is the persistence abstraction for segment and manifest files.
// Implementations can be the local filesystem or in-memory.
type Store interface {
	SinkOpener
	Remove(path string) error
}

// FileStore is a Store backed by the local filesystem.
type FileStore struct {
	// Perm is the mode for newly created files. Zero means 0o644.
	Perm os.FileMode
}

// NewFileStore returns a filesystem store creating files with mode 0o644.
func NewFileStore() *FileStore {
	return &FileStore{Perm: 0o644}
}

// Open implements SinkOpener.Open. Missing parent directories are created.
func (s *FileStore) Open(path string, mode OpenMode) (io.WriteCloser, error) {
	perm := s.Perm
	if perm == 0 {
		perm = 0o644
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	if mode == ModeManifest {
		tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
		if err != nil {
			return nil, err
		}
		if err := tmp.Chmod(perm); err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
			return nil, err
		}
		return &replaceFile{File: tmp, target: path}, nil
	}

	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
}

// Remove implements Store.Remove.
func (s *FileStore) Remove(path string) error {
	return os.Remove(path)
}

// replaceFile is a temporary file renamed over its target on Close.
type replaceFile struct {
	*os.File
	target string
}

func (f *replaceFile) Close() error {
	if err := f.File.Close(); err != nil {
		_ = os.Remove(f.Name())
		return err
	}
	if err := os.Rename(f.Name(), f.target); err != nil {
		_ = os.Remove(f.Name())
		return err
	}
	return nil
}

// InMemoryStore is an in-memory implementation of Store. Open and Remove
// failures can be injected per path.
type InMemoryStore struct {
	mu         sync.Mutex
	files      map[string][]byte
	failOpen   map[string]error
	failRemove map[string]error
	failWrite  map[string]error
	failClose  map[string]error
}

// NewInMemoryStore returns a new empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		files:      make(map[string][]byte),
		failOpen:   make(map[string]error),
		failRemove: make(map[string]error),
		failWrite:  make(map[string]error),
		failClose:  make(map[string]error),
	}
}

// Open implements SinkOpener.Open. Content becomes visible on Close.
func (s *InMemoryStore) Open(path string, mode OpenMode) (io.WriteCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failOpen[path]; err != nil {
		return nil, err
	}
	if mode == ModeSegment {
		s.files[path] = nil
	}
	return &memFile{
		store:     s,
		path:      path,
		failWrite: s.failWrite[path],
		failClose: s.failClose[path],
	}, nil
}

// Remove implements Store.Remove.
func (s *InMemoryStore) Remove(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failRemove[path]; err != nil {
		return err
	}
	if _, ok := s.files[path]; !ok {
		return fmt.Errorf("remove %s: %w", path, os.ErrNotExist)
	}
	delete(s.files, path)
	return nil
}

// FailOpen makes subsequent opens of path return err. A nil err clears it.
func (s *InMemoryStore) FailOpen(path string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	setOrClear(s.failOpen, path, err)
}

// FailRemove makes subsequent removals of path return err. A nil err clears it.
func (s *InMemoryStore) FailRemove(path string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	setOrClear(s.failRemove, path, err)
}

// FailWrite makes writes to sinks opened for path after this call return err.
func (s *InMemoryStore) FailWrite(path string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	setOrClear(s.failWrite, path, err)
}

// FailClose makes sinks opened for path after this call fail on Close. The
// content written to such a sink is lost.
func (s *InMemoryStore) FailClose(path string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	setOrClear(s.failClose, path, err)
}

// ReadFile returns the committed content of path.
func (s *InMemoryStore) ReadFile(path string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.files[path]
	return b, ok
}

// Paths returns the stored paths in lexical order.
func (s *InMemoryStore) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	paths := make([]string, 0, len(s.files))
	for p := range s.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func setOrClear(m map[string]error, path string, err error) {
	if err == nil {
		delete(m, path)
		return
	}
	m[path] = err
}

type memFile struct {
	store     *InMemoryStore
	path      string
	buf       bytes.Buffer
	failWrite error
	failClose error
	closed    bool
}

func (f *memFile) Write(b []byte) (int, error) {
	if f.closed {
		return 0, os.ErrClosed
	}
	if f.failWrite != nil {
		return 0, f.failWrite
	}
	return f.buf.Write(b)
}

func (f *memFile) Close() error {
	if f.closed {
		return os.ErrClosed
	}
	f.closed = true
	if f.failClose != nil {
		return f.failClose
	}
	f.store.mu.Lock()
	f.store.files[f.path] = append([]byte(nil), f.buf.Bytes()...)
	f.store.mu.Unlock()
	return nil
}
