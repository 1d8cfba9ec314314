package search

import (
	"container/list"
	"strconv"
	"strings"
	"sync"

	"github.com/hyperjump/ruiji/internal/models"
)

// ResultCache is an LRU cache of similarity results keyed by query.
type ResultCache struct {
	capacity int
	cache    map[string]*list.Element
	lru      *list.List
	mu       sync.Mutex
}

type cacheEntry struct {
	key   string
	value []models.Neighbor
}

// NewResultCache creates a new cache with the given capacity.
func NewResultCache(capacity int) *ResultCache {
	return &ResultCache{
		capacity: capacity,
		cache:    make(map[string]*list.Element),
		lru:      list.New(),
	}
}

// Get returns the cached neighbours for key if present.
func (c *ResultCache) Get(key string) ([]models.Neighbor, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.cache[key]; ok {
		c.lru.MoveToFront(elem)
		return elem.Value.(*cacheEntry).value, true
	}
	return nil, false
}

// Set stores the neighbours for key, evicting the oldest entry if at capacity.
func (c *ResultCache) Set(key string, value []models.Neighbor) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.cache[key]; ok {
		c.lru.MoveToFront(elem)
		elem.Value.(*cacheEntry).value = value
		return
	}

	elem := c.lru.PushFront(&cacheEntry{key: key, value: value})
	c.cache[key] = elem

	if c.lru.Len() > c.capacity {
		if oldest := c.lru.Back(); oldest != nil {
			c.lru.Remove(oldest)
			delete(c.cache, oldest.Value.(*cacheEntry).key)
		}
	}
}

// Len returns the number of cached entries.
func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Purge drops every entry.
func (c *ResultCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[string]*list.Element)
	c.lru.Init()
}

// cacheKey identifies a query against one index generation. Each word is length-prefixed,
// so any byte may appear inside a word.
func cacheKey(generation uint64, words []string, topN int) string {
	var sb strings.Builder
	sb.WriteString(strconv.FormatUint(generation, 10))
	sb.WriteByte('|')
	sb.WriteString(strconv.Itoa(topN))
	for _, w := range words {
		sb.WriteByte('|')
		sb.WriteString(strconv.Itoa(len(w)))
		sb.WriteByte(':')
		sb.WriteString(w)
	}
	return sb.String()
}
