package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const fileExt = ".json"

// File stores one <root>/<category>/<key>.json file per document.
type File struct {
	root string
	now  func() time.Time
	mu   sync.Mutex // serializes writers within the process
}

// NewFile creates the root directory if needed.
func NewFile(root string, opts ...Option) (*File, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create store root %s: %w", root, err)
	}
	o := buildOptions(opts)
	return &File{root: root, now: o.now}, nil
}

// Root returns the directory holding the category folders.
func (f *File) Root() string {
	return f.root
}

func (f *File) dir(category string) string {
	return filepath.Join(f.root, filepath.FromSlash(category))
}

func (f *File) path(category, key string) string {
	return filepath.Join(f.dir(category), key+fileExt)
}

func (f *File) Read(_ context.Context, category, key string) (json.RawMessage, error) {
	if err := checkName(category, key, true); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(f.path(category, key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s/%s: %w", category, key, err)
	}
	return b, nil
}

func (f *File) Write(_ context.Context, category, key string, doc json.RawMessage) (json.RawMessage, error) {
	if err := checkName(category, key, true); err != nil {
		return nil, err
	}
	stored, err := stamp(doc, f.now())
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	dir := f.dir(category)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create category dir %s: %w", dir, err)
	}

	// Write to a temp file and rename so readers never see a partial document.
	tmp, err := os.CreateTemp(dir, key+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(stored); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return nil, fmt.Errorf("write %s/%s: %w", category, key, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return nil, fmt.Errorf("sync %s/%s: %w", category, key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return nil, fmt.Errorf("close %s/%s: %w", category, key, err)
	}
	if err := os.Rename(tmpName, f.path(category, key)); err != nil {
		os.Remove(tmpName)
		return nil, fmt.Errorf("rename %s/%s: %w", category, key, err)
	}
	return stored, nil
}

func (f *File) List(_ context.Context, category string) ([]string, error) {
	if err := checkName(category, "", false); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(f.dir(category))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("list %s: %w", category, err)
	}

	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, fileExt) {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, fileExt))
	}
	return keys, nil
}

func (f *File) Delete(_ context.Context, category, key string) error {
	if err := checkName(category, key, true); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path(category, key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete %s/%s: %w", category, key, err)
	}
	return nil
}

// Close is a no-op.
func (f *File) Close() error { return nil }
