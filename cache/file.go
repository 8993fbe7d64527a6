package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/c360studio/evorao/atomicfile"
)

// FileStore keeps the cache as one indented JSON document on disk.
type FileStore struct {
	path string
}

// NewFileStore returns a store for the document at path. The file need not
// exist yet.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("cache path required")
	}
	return &FileStore{path: path}, nil
}

// Path returns the document location.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Driver() Driver { return DriverFile }

func (s *FileStore) Close() error { return nil }

// Load reads and decodes the document.
func (s *FileStore) Load(_ context.Context) (*Cache, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	return decodeDocument(data)
}

// Save writes the document to a temporary sibling and renames it into place.
func (s *FileStore) Save(_ context.Context, c *Cache) error {
	data, err := encodeDocument(c)
	if err != nil {
		return err
	}
	return atomicfile.WriteFile(s.path, data, 0o644)
}

func encodeDocument(c *Cache) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(c); err != nil {
		return nil, fmt.Errorf("encode cache: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeDocument(data []byte) (*Cache, error) {
	c := New()
	if err := json.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("decode cache: %w", err)
	}
	return c, nil
}
