package lifeops

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Key names one persisted value. Keys are namespaced per feature so stores
// never collide in a shared backend.
type Key string

const (
	KeyRoutineSpreadsheetID Key = "routine/spreadsheet-id"
	KeyDocumentsRootID      Key = "documents/root-folder-id"
	KeyDocumentsSubfolders  Key = "documents/subfolders"
	KeyAnchorList           Key = "anchors/list"
	KeyAuthToken            Key = "auth/token"
)

// Cache is the small key-value store that survives restarts: cached
// container ids, the anchor list, the OAuth token.
type Cache interface {
	Get(key Key) (string, bool, error)
	Put(key Key, value string) error
	Delete(key Key) error
	Close() error
}

type MemoryCache struct {
	mu      sync.Mutex
	entries map[Key]string
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: map[Key]string{}}
}

func (c *MemoryCache) Get(key Key) (string, bool, error) {
	if c == nil {
		return "", false, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	value, ok := c.entries[key]
	return value, ok, nil
}

func (c *MemoryCache) Put(key Key, value string) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	return nil
}

func (c *MemoryCache) Delete(key Key) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

func (c *MemoryCache) Close() error {
	return nil
}

// JSONFileCache keeps the whole key space in one JSON document and rewrites
// it atomically (temp file + rename) on every Put/Delete.
type JSONFileCache struct {
	mu   sync.Mutex
	path string
}

func NewJSONFileCache(path string) *JSONFileCache {
	return &JSONFileCache{path: strings.TrimSpace(path)}
}

func (c *JSONFileCache) Get(key Key) (string, bool, error) {
	if c == nil || c.path == "" {
		return "", false, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entries, err := c.load()
	if err != nil {
		return "", false, err
	}
	value, ok := entries[key]
	return value, ok, nil
}

func (c *JSONFileCache) Put(key Key, value string) error {
	if c == nil || c.path == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entries, err := c.load()
	if err != nil {
		return err
	}
	entries[key] = value
	return c.save(entries)
}

func (c *JSONFileCache) Delete(key Key) error {
	if c == nil || c.path == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entries, err := c.load()
	if err != nil {
		return err
	}
	delete(entries, key)
	return c.save(entries)
}

func (c *JSONFileCache) Close() error {
	return nil
}

func (c *JSONFileCache) load() (map[Key]string, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[Key]string{}, nil
		}
		return nil, err
	}
	entries := map[Key]string{}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (c *JSONFileCache) save(entries map[Key]string) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	dir := filepath.Dir(c.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, c.path)
}
