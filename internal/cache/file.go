package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/spboyer/veracity/internal/models"
)

// entryExt is the suffix of every file the cache writes. Clear refuses to
// remove a directory holding anything else.
const entryExt = ".json.zst"

var (
	encoder, _ = zstd.NewWriter(nil)
	decoder, _ = zstd.NewReader(nil)
)

// FileCache keeps zstd-compressed JSON entries in a directory.
type FileCache struct {
	dir string
	ttl time.Duration
	now func() time.Time
	mu  sync.Mutex
}

// NewFileCache creates a cache under dir. A ttl of 0 keeps entries forever.
func NewFileCache(dir string, ttl time.Duration) *FileCache {
	return &FileCache{dir: dir, ttl: ttl, now: time.Now}
}

var _ Cache = (*FileCache)(nil)

// Get returns ErrCacheMiss for missing, corrupt, or expired entries.
func (c *FileCache) Get(ctx context.Context, key string) (*models.ConsensusResult, error) {
	if c.dir == "" {
		return nil, ErrCacheMiss
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	compressed, err := os.ReadFile(c.cachePath(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("reading cache file: %w", err)
	}

	data, err := decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, ErrCacheMiss
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil || e.Result == nil {
		return nil, ErrCacheMiss
	}

	if e.expired(c.ttl, c.now()) {
		_ = os.Remove(c.cachePath(key))
		return nil, ErrCacheMiss
	}

	return e.Result, nil
}

func (c *FileCache) Put(ctx context.Context, key string, result *models.ConsensusResult) error {
	if c.dir == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	data, err := json.Marshal(entry{StoredAt: c.now().UTC(), Result: result})
	if err != nil {
		return fmt.Errorf("marshaling result: %w", err)
	}

	if err := os.WriteFile(c.cachePath(key), encoder.EncodeAll(data, nil), 0644); err != nil {
		return fmt.Errorf("writing cache file: %w", err)
	}

	return nil
}

// Clear removes the cache directory, but only if it holds nothing except
// cache entries.
func (c *FileCache) Clear(ctx context.Context) error {
	if c.dir == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := os.Stat(c.dir); os.IsNotExist(err) {
		return nil
	}

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("reading cache directory: %w", err)
	}

	for _, e := range entries {
		if e.IsDir() {
			return fmt.Errorf("cache directory contains subdirectories - refusing to delete for safety")
		}
		if !strings.HasSuffix(e.Name(), entryExt) {
			return fmt.Errorf("cache directory contains non-cache file %q - refusing to delete for safety", e.Name())
		}
	}

	return os.RemoveAll(c.dir)
}

func (c *FileCache) cachePath(key string) string {
	return filepath.Join(c.dir, key+entryExt)
}
