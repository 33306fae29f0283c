// Package store keeps the durable, uniquely named artifacts exchanged between
// pipeline steps. An artifact is computed at most once: a present artifact is
// returned as is.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/yumyai/hadesign/internal/util"
)

var ErrInvalidKey = errors.New("invalid artifact key")

// Key addresses one artifact of a (lineage, year) unit, e.g.
// {H3N2, 2016, "cobra_aligned.fasta"}.
type Key struct {
	Lineage string
	Year    int
	Name    string
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%d/%s", k.Lineage, k.Year, k.Name)
}

func (k Key) validate() error {
	for _, part := range []string{k.Lineage, k.Name} {
		if part == "" || part == "." || part == ".." || strings.ContainsAny(part, `/\`) {
			return fmt.Errorf("%w: %q", ErrInvalidKey, k.String())
		}
	}
	return nil
}

// ComputeFunc produces an artifact's content.
type ComputeFunc func(ctx context.Context) ([]byte, error)

// Store is the artifact store used by the pipeline.
type Store interface {
	// GetOrCompute returns the stored artifact, or computes, stores and
	// returns it. hit reports whether the artifact already existed.
	GetOrCompute(ctx context.Context, key Key, fn ComputeFunc) (data []byte, hit bool, err error)
	// Get returns a stored artifact; ok is false when it does not exist.
	Get(key Key) (data []byte, ok bool, err error)
	// Put stores data, replacing any previous content.
	Put(key Key, data []byte) error
	// Path is where an artifact lives on disk, for external tools.
	Path(key Key) (string, error)
}

var _ Store = (*FileStore)(nil)

// FileStore maps keys onto <Root>/<lineage>/<year>/<name>.
type FileStore struct {
	Root string

	mu    sync.Mutex
	locks map[Key]*sync.Mutex
}

func NewFileStore(root string) (*FileStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact root %s: %w", root, err)
	}
	return &FileStore{Root: root, locks: make(map[Key]*sync.Mutex)}, nil
}

func (s *FileStore) Path(key Key) (string, error) {
	if err := key.validate(); err != nil {
		return "", err
	}
	return filepath.Join(s.Root, key.Lineage, strconv.Itoa(key.Year), key.Name), nil
}

// UnitDir is the directory holding every artifact of a unit.
func (s *FileStore) UnitDir(lineage string, year int) (string, error) {
	p, err := s.Path(Key{Lineage: lineage, Year: year, Name: "x"})
	if err != nil {
		return "", err
	}
	return filepath.Dir(p), nil
}

func (s *FileStore) Get(key Key) ([]byte, bool, error) {
	p, err := s.Path(key)
	if err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (s *FileStore) Put(key Key, data []byte) error {
	p, err := s.Path(key)
	if err != nil {
		return err
	}
	return util.WriteFileAtomic(p, data, 0o644)
}

// Remove deletes an artifact; a missing artifact is not an error.
func (s *FileStore) Remove(key Key) error {
	p, err := s.Path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// ClearUnit deletes every artifact of a unit, scratch files included.
func (s *FileStore) ClearUnit(lineage string, year int) error {
	dir, err := s.UnitDir(lineage, year)
	if err != nil {
		return err
	}
	return os.RemoveAll(dir)
}

func (s *FileStore) lock(key Key) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locks == nil {
		s.locks = make(map[Key]*sync.Mutex)
	}
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

func (s *FileStore) GetOrCompute(ctx context.Context, key Key, fn ComputeFunc) ([]byte, bool, error) {
	l := s.lock(key)
	l.Lock()
	defer l.Unlock()

	data, ok, err := s.Get(key)
	if err != nil {
		return nil, false, err
	}
	if ok {
		return data, true, nil
	}

	data, err = fn(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("compute %s: %w", key, err)
	}
	if err := s.Put(key, data); err != nil {
		return nil, false, fmt.Errorf("store %s: %w", key, err)
	}
	return data, false, nil
}
