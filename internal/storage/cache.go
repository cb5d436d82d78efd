package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/golang/snappy"
)

// FetchCache wraps an ObjectStorage with a snappy-compressed on-disk
// cache. Raw EVT objects for a cruise are fetched repeatedly across
// filtering runs; caching them locally avoids refetching, and snappy
// keeps already-gzipped files from doubling local disk use for the
// uncompressed ones.
type FetchCache struct {
	backend ObjectStorage
	dir     string
	mu      sync.Mutex
}

// NewFetchCache creates a cache over backend rooted at dir.
func NewFetchCache(backend ObjectStorage, dir string) (*FetchCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &FetchCache{backend: backend, dir: dir}, nil
}

// Get returns cached bytes when present, otherwise fetches from the
// backend and stores the result.
func (c *FetchCache) Get(ctx context.Context, key string) ([]byte, error) {
	path := c.cachePath(key)
	if compressed, err := os.ReadFile(path); err == nil {
		data, err := snappy.Decode(nil, compressed)
		if err == nil {
			return data, nil
		}
		// Corrupt cache entry, drop it and refetch.
		os.Remove(path)
	}

	data, err := c.backend.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	c.store(path, data)
	return data, nil
}

// Put writes through to the backend and refreshes the cache entry.
func (c *FetchCache) Put(ctx context.Context, key string, data []byte) error {
	if err := c.backend.Put(ctx, key, data); err != nil {
		return err
	}
	c.store(c.cachePath(key), data)
	return nil
}

// Exists checks the cache first, then the backend.
func (c *FetchCache) Exists(ctx context.Context, key string) (bool, error) {
	if _, err := os.Stat(c.cachePath(key)); err == nil {
		return true, nil
	}
	return c.backend.Exists(ctx, key)
}

// List delegates to the backend; the cache holds no authoritative listing.
func (c *FetchCache) List(ctx context.Context, prefix string) ([]string, error) {
	return c.backend.List(ctx, prefix)
}

// store writes a cache entry, tolerating failures. A missing cache entry
// only costs a refetch.
func (c *FetchCache) store(path string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, snappy.Encode(nil, data), 0o644); err != nil {
		return
	}
	os.Rename(tmp, path)
}

// cachePath maps a key to a flat cache file name. Keys contain path
// separators, so they are hashed.
func (c *FetchCache) cachePath(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(c.dir, hex.EncodeToString(sum[:16])+".sz")
}
