package search

import (
	"fmt"
	"sync"
	"testing"

	"github.com/hyperjump/ruiji/internal/models"
)

func TestResultCache_GetSet(t *testing.T) {
	c := NewResultCache(2)
	if v, ok := c.Get("a"); ok || v != nil {
		t.Fatal("expected miss")
	}
	c.Set("a", []models.Neighbor{{Word: "x", Score: 1}})
	v, ok := c.Get("a")
	if !ok || len(v) != 1 || v[0].Word != "x" {
		t.Errorf("Get: got %v, %v", v, ok)
	}
	c.Set("b", nil)
	c.Get("a")      // a is now most recent
	c.Set("c", nil) // evicts b
	if _, ok := c.Get("b"); ok {
		t.Error("expected b to be evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("expected a to remain")
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2", c.Len())
	}

	c.Set("a", []models.Neighbor{{Word: "y"}})
	if v, _ := c.Get("a"); v[0].Word != "y" {
		t.Error("Set should replace the value")
	}

	c.Purge()
	if c.Len() != 0 {
		t.Errorf("Len after Purge = %d", c.Len())
	}
	if _, ok := c.Get("a"); ok {
		t.Error("expected miss after Purge")
	}
}

func TestResultCache_Concurrent(t *testing.T) {
	c := NewResultCache(16)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("k%d", (g+i)%32)
				c.Set(key, nil)
				c.Get(key)
			}
		}(g)
	}
	wg.Wait()
	if c.Len() > 16 {
		t.Errorf("Len = %d exceeds capacity", c.Len())
	}
}

func TestCacheKey(t *testing.T) {
	a := cacheKey(1, []string{"ab", "c"}, 10)
	b := cacheKey(1, []string{"a", "bc"}, 10)
	if a == b {
		t.Error("word boundaries must be part of the key")
	}
	if cacheKey(1, []string{"a\x00b"}, 10) == cacheKey(1, []string{"a", "b"}, 10) {
		t.Error("a NUL inside a word must not look like a word boundary")
	}
	if cacheKey(1, []string{"a|1:b"}, 10) == cacheKey(1, []string{"a", "b"}, 10) {
		t.Error("separator text inside a word must not look like a word boundary")
	}
	if cacheKey(1, []string{"x"}, 10) == cacheKey(2, []string{"x"}, 10) {
		t.Error("generation must be part of the key")
	}
	if cacheKey(1, []string{"x"}, 10) == cacheKey(1, []string{"x"}, 11) {
		t.Error("topN must be part of the key")
	}
}
