// Package cache stores consensus results keyed by ensemble and input text,
// so repeated submissions of the same text skip the upstream models.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spboyer/veracity/internal/models"
)

// ErrCacheMiss is returned by Get when there is no usable entry for a key.
var ErrCacheMiss = errors.New("cache miss")

// Cache is a result store. Implementations must be safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) (*models.ConsensusResult, error)
	Put(ctx context.Context, key string, result *models.ConsensusResult) error
	Clear(ctx context.Context) error
}

// entry is the stored form of a result.
type entry struct {
	StoredAt time.Time               `json:"stored_at"`
	Result   *models.ConsensusResult `json:"result"`
}

func (e *entry) expired(ttl time.Duration, now time.Time) bool {
	return ttl > 0 && now.Sub(e.StoredAt) > ttl
}

// Key generates the cache key for a text scored by a given ensemble.
// Whitespace differences in the text do not change the key.
func Key(fingerprint, text string) string {
	h := sha256.New()
	writeString(h, fingerprint)
	writeString(h, strings.Join(strings.Fields(text), " "))
	return hex.EncodeToString(h.Sum(nil))
}

func writeString(w io.Writer, s string) {
	// null byte delimiter prevents collisions between adjacent fields
	_, _ = w.Write([]byte(s + "\x00"))
}

// Detector is what CachedDetector wraps; *consensus.Aggregator satisfies it.
type Detector interface {
	Detect(ctx context.Context, text string) (*models.ConsensusResult, error)
	Fingerprint() string
}

// CachedDetector serves results from a Cache and stores fresh ones. Only
// results every detector contributed to are cached. Cache errors are logged and never fail a
// detection.
type CachedDetector struct {
	next  Detector
	cache Cache
}

func NewCachedDetector(next Detector, cache Cache) *CachedDetector {
	return &CachedDetector{next: next, cache: cache}
}

func (c *CachedDetector) Fingerprint() string {
	return c.next.Fingerprint()
}

func (c *CachedDetector) Detect(ctx context.Context, text string) (*models.ConsensusResult, error) {
	result, _, err := c.DetectWithSource(ctx, text)
	return result, err
}

// DetectWithSource is Detect that also reports whether the result came from
// the cache.
func (c *CachedDetector) DetectWithSource(ctx context.Context, text string) (*models.ConsensusResult, bool, error) {
	key := Key(c.next.Fingerprint(), text)

	result, err := c.cache.Get(ctx, key)
	switch {
	case err == nil:
		slog.DebugContext(ctx, "cache hit", "key", key[:12])
		return result, true, nil
	case !errors.Is(err, ErrCacheMiss):
		slog.WarnContext(ctx, "cache read failed", "error", err)
	}

	result, err = c.next.Detect(ctx, text)
	if err != nil {
		return nil, false, err
	}

	// partial ensemble answers are returned but never stored
	if cm := result.ContributingModels; cm.Succeeded < cm.Total {
		slog.DebugContext(ctx, "not caching partial result", "succeeded", cm.Succeeded, "total", cm.Total)
		return result, false, nil
	}

	if err := c.cache.Put(ctx, key, result); err != nil {
		slog.WarnContext(ctx, "cache write failed", "error", err)
	}

	return result, false, nil
}

// Open returns a Redis-backed cache when redisURL is set and a file cache
// under dir otherwise.
func Open(dir, redisURL string, ttl time.Duration) (Cache, error) {
	if redisURL != "" {
		rc, err := NewRedisCache(redisURL, ttl)
		if err != nil {
			return nil, err
		}
		return rc, nil
	}
	return NewFileCache(dir, ttl), nil
}
