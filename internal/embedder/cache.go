package embedder

import (
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultCacheSize = 10000

// Cache is a bounded LRU of embeddings keyed by cacheKey. A nil *Cache is a
// valid cache that never hits, so providers can hold one unconditionally.
type Cache struct {
	entries *lru.Cache[string, *Embedding]
}

// NewCache holds at most size embeddings; size <= 0 selects the default.
func NewCache(size int) *Cache {
	if size <= 0 {
		size = defaultCacheSize
	}
	entries, err := lru.New[string, *Embedding](size)
	if err != nil {
		entries, _ = lru.New[string, *Embedding](defaultCacheSize)
	}
	return &Cache{entries: entries}
}

// Get returns a copy of the entry under key. Callers own the returned vector.
func (c *Cache) Get(key string) (*Embedding, bool) {
	if c == nil {
		return nil, false
	}
	cached, ok := c.entries.Get(key)
	if !ok {
		return nil, false
	}
	out := *cached
	out.Vector = append([]float32(nil), cached.Vector...)
	return &out, true
}

func (c *Cache) Set(key string, emb *Embedding) {
	if c != nil {
		c.entries.Add(key, emb)
	}
}

func (c *Cache) Size() int {
	if c == nil {
		return 0
	}
	return c.entries.Len()
}

func (c *Cache) Clear() {
	if c != nil {
		c.entries.Purge()
	}
}

// ComputeHash is the hex SHA-256 of text
func ComputeHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// cacheKey scopes a prepared text to its model so that a model switch never
// serves vectors from the old one.
func cacheKey(model, text string) string {
	return ComputeHash(model + "\x00" + text)
}
