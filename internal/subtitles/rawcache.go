package subtitles

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"muteguard/internal/fileutil"
	"muteguard/internal/logging"
	"muteguard/internal/textutil"
)

const (
	// DefaultRawCacheTTL bounds how long fetched subtitle bytes are reused.
	DefaultRawCacheTTL = 24 * time.Hour

	rawCachePrefix  = "subtitle_"
	rawMetaSuffix   = ".json"
	eventStaleCache = "stale_cache_used"
)

// CacheKey derives the raw cache key from a title and optional episode tag.
func CacheKey(title, episodeTag string) string {
	key := rawCachePrefix + textutil.SanitizeKey(title)
	if tag := strings.TrimSpace(episodeTag); tag != "" {
		key += "_" + textutil.SanitizeKey(tag)
	}
	return key
}

// CacheKeyFor returns the raw cache key for content.
func CacheKeyFor(c Content) string {
	return CacheKey(c.SearchTitle(), c.EpisodeTag())
}

// RawMeta is stored beside each cached payload.
type RawMeta struct {
	Key      string    `json:"key"`
	FileName string    `json:"file_name,omitempty"`
	FileID   int64     `json:"file_id,omitempty"`
	Release  string    `json:"release,omitempty"`
	Language string    `json:"language,omitempty"`
	Size     int       `json:"size"`
	StoredAt time.Time `json:"stored_at"`
}

// RawEntry is a cache hit.
type RawEntry struct {
	Data []byte
	Meta RawMeta
	Age  time.Duration
}

// RawCacheStats summarises the cache directory.
type RawCacheStats struct {
	Entries    int
	Expired    int
	TotalBytes int64
	Oldest     time.Time
	Newest     time.Time
}

// RawCache is a TTL-bounded on-disk store of fetched subtitle bytes.
type RawCache struct {
	dir    string
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// NewRawCache ensures dir exists and returns a cache rooted there.
func NewRawCache(dir string, ttl time.Duration, logger *slog.Logger) (*RawCache, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("raw cache directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create raw cache dir: %w", err)
	}
	if ttl <= 0 {
		ttl = DefaultRawCacheTTL
	}
	return &RawCache{
		dir:    dir,
		ttl:    ttl,
		now:    time.Now,
		logger: logging.NewComponentLogger(logger, "raw_cache"),
	}, nil
}

// Dir returns the cache root.
func (c *RawCache) Dir() string { return c.dir }

// TTL returns the entry lifetime.
func (c *RawCache) TTL() time.Duration { return c.ttl }

func (c *RawCache) dataPath(key string) string {
	return filepath.Join(c.dir, key)
}

func (c *RawCache) metaPath(key string) string {
	return filepath.Join(c.dir, key+rawMetaSuffix)
}

// Load returns the cached payload for key. An expired entry is deleted and
// reported as a miss.
func (c *RawCache) Load(key string) (RawEntry, bool, error) {
	if c == nil {
		return RawEntry{}, false, nil
	}
	data, err := os.ReadFile(c.dataPath(key))
	if errors.Is(err, fs.ErrNotExist) {
		return RawEntry{}, false, nil
	}
	if err != nil {
		return RawEntry{}, false, fmt.Errorf("read raw cache %s: %w", key, err)
	}
	meta, err := c.readMeta(key)
	if err != nil {
		return RawEntry{}, false, err
	}
	age := c.now().Sub(meta.StoredAt)
	if age >= c.ttl {
		if err := c.remove(key); err != nil {
			return RawEntry{}, false, err
		}
		c.logger.Debug("raw cache entry expired",
			logging.String("cache_key", key),
			logging.Duration("age", age),
		)
		return RawEntry{}, false, nil
	}
	if len(data) == 0 {
		return RawEntry{}, false, nil
	}
	if age > c.ttl/2 {
		c.logger.Info("serving aged raw cache entry",
			logging.String(logging.FieldEventType, eventStaleCache),
			logging.String("cache_key", key),
			logging.Duration("age", age),
			logging.Duration("ttl", c.ttl),
		)
	}
	return RawEntry{Data: data, Meta: meta, Age: age}, true, nil
}

// readMeta loads the sidecar, falling back to the payload mtime when the
// sidecar is missing or unreadable.
func (c *RawCache) readMeta(key string) (RawMeta, error) {
	raw, err := os.ReadFile(c.metaPath(key))
	if err == nil {
		var meta RawMeta
		if jsonErr := json.Unmarshal(raw, &meta); jsonErr == nil && !meta.StoredAt.IsZero() {
			return meta, nil
		}
	}
	info, statErr := os.Stat(c.dataPath(key))
	if statErr != nil {
		return RawMeta{}, fmt.Errorf("stat raw cache %s: %w", key, statErr)
	}
	return RawMeta{Key: key, Size: int(info.Size()), StoredAt: info.ModTime()}, nil
}

// Store writes data and its sidecar atomically and returns the sidecar.
func (c *RawCache) Store(key string, data []byte, meta RawMeta) (RawMeta, error) {
	if c == nil {
		return RawMeta{}, errors.New("raw cache unavailable")
	}
	if len(data) == 0 {
		return RawMeta{}, errors.New("refusing to cache empty subtitle payload")
	}
	meta.Key = key
	meta.Size = len(data)
	meta.StoredAt = c.now().UTC()
	encoded, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return RawMeta{}, fmt.Errorf("encode raw cache meta: %w", err)
	}
	if err := fileutil.WriteFileAtomic(c.dataPath(key), data, 0o644); err != nil {
		return RawMeta{}, fmt.Errorf("write raw cache %s: %w", key, err)
	}
	if err := fileutil.WriteFileAtomic(c.metaPath(key), encoded, 0o644); err != nil {
		return RawMeta{}, fmt.Errorf("write raw cache meta %s: %w", key, err)
	}
	return meta, nil
}

func (c *RawCache) remove(key string) error {
	if err := fileutil.RemoveIfExists(c.dataPath(key)); err != nil {
		return fmt.Errorf("remove raw cache %s: %w", key, err)
	}
	if err := fileutil.RemoveIfExists(c.metaPath(key)); err != nil {
		return fmt.Errorf("remove raw cache meta %s: %w", key, err)
	}
	return nil
}

// Remove deletes the entry for key, if any.
func (c *RawCache) Remove(key string) error {
	return c.remove(key)
}

func (c *RawCache) keys() ([]string, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, fmt.Errorf("list raw cache: %w", err)
	}
	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, rawCachePrefix) || strings.HasSuffix(name, rawMetaSuffix) {
			continue
		}
		keys = append(keys, name)
	}
	return keys, nil
}

// Stats walks the cache and reports entry counts and sizes.
func (c *RawCache) Stats() (RawCacheStats, error) {
	keys, err := c.keys()
	if err != nil {
		return RawCacheStats{}, err
	}
	var stats RawCacheStats
	now := c.now()
	for _, key := range keys {
		meta, err := c.readMeta(key)
		if err != nil {
			continue
		}
		stats.Entries++
		stats.TotalBytes += int64(meta.Size)
		if now.Sub(meta.StoredAt) >= c.ttl {
			stats.Expired++
		}
		if stats.Oldest.IsZero() || meta.StoredAt.Before(stats.Oldest) {
			stats.Oldest = meta.StoredAt
		}
		if meta.StoredAt.After(stats.Newest) {
			stats.Newest = meta.StoredAt
		}
	}
	return stats, nil
}

// Prune deletes every expired entry and returns how many were removed.
func (c *RawCache) Prune() (int, error) {
	keys, err := c.keys()
	if err != nil {
		return 0, err
	}
	now := c.now()
	removed := 0
	for _, key := range keys {
		meta, err := c.readMeta(key)
		if err != nil {
			continue
		}
		if now.Sub(meta.StoredAt) < c.ttl {
			continue
		}
		if err := c.remove(key); err != nil {
			return removed, err
		}
		removed++
	}
	if removed > 0 {
		c.logger.Info("raw cache pruned", logging.Int("removed", removed))
	}
	return removed, nil
}
