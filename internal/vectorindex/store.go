package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// ErrNotFound is returned by a Store when no artifact exists under a name.
var ErrNotFound = errors.New("index artifact not found")

// Store holds named index artifacts. Put must replace an artifact atomically:
// a concurrent Get sees either the old or the new bytes, never a mix.
//
// Version identifies the artifact currently stored under a name. It changes
// on every Put and is never reused for a later artifact, so readers sharing
// the store can tell when their cached copy is stale.
type Store interface {
	Get(ctx context.Context, name string) ([]byte, error)
	Put(ctx context.Context, name string, data []byte) error
	Exists(ctx context.Context, name string) (bool, error)
	Version(ctx context.Context, name string) (string, error)
	Delete(ctx context.Context, name string) error
}

const artifactFile = "index.gob"

// FileStore keeps each artifact at <dir>/<name>/index.gob.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) path(name string) string {
	return filepath.Join(s.dir, name, artifactFile)
}

func (s *FileStore) Get(_ context.Context, name string) ([]byte, error) {
	data, err := os.ReadFile(s.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read index file failed: %w", err)
	}
	return data, nil
}

// Put writes to a temp file in the same directory and renames it over the
// old artifact.
func (s *FileStore) Put(_ context.Context, name string, data []byte) error {
	target := s.path(name)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create index dir failed: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".index-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp index file failed: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp index file failed: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp index file failed: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp index file failed: %w", err)
	}
	// mtime feeds Version; stamp it explicitly so back-to-back writes differ
	now := time.Now()
	if err := os.Chtimes(tmpName, now, now); err != nil {
		cleanup()
		return fmt.Errorf("stamp temp index file failed: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		cleanup()
		return fmt.Errorf("replace index file failed: %w", err)
	}
	return nil
}

func (s *FileStore) Exists(_ context.Context, name string) (bool, error) {
	_, err := os.Stat(s.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Version is the artifact's modification time and size.
func (s *FileStore) Version(_ context.Context, name string) (string, error) {
	info, err := os.Stat(s.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("stat index file failed: %w", err)
	}
	return strconv.FormatInt(info.ModTime().UnixNano(), 10) + "-" + strconv.FormatInt(info.Size(), 10), nil
}

// Delete removes the artifact. A missing artifact is not an error.
func (s *FileStore) Delete(_ context.Context, name string) error {
	err := os.Remove(s.path(name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove index file failed: %w", err)
	}
	return nil
}
