package pattern

import (
	"fmt"
	"regexp"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheStoresAndRetrieves(t *testing.T) {
	c := NewCache(10)

	re := regexp.MustCompile("a+")
	c.SetPattern("a+", re)

	got, ok := c.Pattern("a+")
	require.True(t, ok)
	assert.Same(t, re, got)

	_, ok = c.Pattern("missing")
	assert.False(t, ok)

	c.SetResult("p:a+", true)
	v, ok := c.Result("p:a+")
	require.True(t, ok)
	assert.True(t, v)
}

// TestCacheFIFOEviction verifies the oldest-inserted entry is dropped once
// the tier exceeds its bound, regardless of access order.
func TestCacheFIFOEviction(t *testing.T) {
	c := NewCache(3)

	for i := 0; i < 3; i++ {
		c.SetResult(fmt.Sprintf("key%d", i), true)
	}
	// Re-reading key0 must not promote it; this is FIFO, not LRU.
	_, _ = c.Result("key0")

	c.SetResult("key3", true)

	_, ok := c.Result("key0")
	assert.False(t, ok, "oldest entry should be evicted")
	for _, k := range []string{"key1", "key2", "key3"} {
		_, ok := c.Result(k)
		assert.True(t, ok, "entry %s should survive", k)
	}
}

func TestCachePatternEvictionIndependentOfResults(t *testing.T) {
	c := NewCache(2)

	c.SetPattern("a", regexp.MustCompile("a"))
	c.SetPattern("b", regexp.MustCompile("b"))
	c.SetPattern("c", regexp.MustCompile("c"))

	for i := 0; i < 2; i++ {
		c.SetResult(fmt.Sprintf("r%d", i), false)
	}

	patterns, results := c.Len()
	assert.Equal(t, 2, patterns)
	assert.Equal(t, 2, results)

	_, ok := c.Pattern("a")
	assert.False(t, ok)
}

func TestCacheOverwriteDoesNotGrowOrder(t *testing.T) {
	c := NewCache(2)

	c.SetResult("k", true)
	c.SetResult("k", false)
	c.SetResult("other", true)

	v, ok := c.Result("k")
	require.True(t, ok)
	assert.False(t, v)

	_, results := c.Len()
	assert.Equal(t, 2, results)
}

func TestCacheDefaultSize(t *testing.T) {
	c := NewCache(0)
	assert.Equal(t, DefaultCacheSize, c.maxSize)

	c = NewCache(-5)
	assert.Equal(t, DefaultCacheSize, c.maxSize)
}

func TestCacheConcurrentAccess(t *testing.T) {
	c := NewCache(50)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("g%d-k%d", g, i%20)
				c.SetResult(key, i%2 == 0)
				c.Result(key)
			}
		}(g)
	}
	wg.Wait()

	_, results := c.Len()
	assert.LessOrEqual(t, results, 50)
}
