package pattern

import (
	"regexp"
	"sync"
)

// DefaultCacheSize is the bound applied to each cache tier when the caller
// does not configure one.
const DefaultCacheSize = 1000

// Cache holds compiled patterns and match results for one matcher. Both tiers
// are bounded: once a tier exceeds maxSize the oldest-inserted entry is
// evicted (FIFO, not LRU). A single mutex guards both tiers so a matcher can
// be shared across goroutines.
type Cache struct {
	mu      sync.Mutex
	maxSize int

	patterns     map[string]*regexp.Regexp
	patternOrder []string

	results     map[string]bool
	resultOrder []string
}

// NewCache creates a cache bounded at maxSize entries per tier. Sizes below 1
// fall back to DefaultCacheSize.
func NewCache(maxSize int) *Cache {
	if maxSize < 1 {
		maxSize = DefaultCacheSize
	}
	return &Cache{
		maxSize:  maxSize,
		patterns: make(map[string]*regexp.Regexp),
		results:  make(map[string]bool),
	}
}

// Pattern returns the compiled regex cached under key, if present.
func (c *Cache) Pattern(key string) (*regexp.Regexp, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	re, ok := c.patterns[key]
	return re, ok
}

// SetPattern caches a compiled regex, evicting the oldest entry if the tier
// is over capacity.
func (c *Cache) SetPattern(key string, re *regexp.Regexp) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.patterns[key]; !exists {
		c.patternOrder = append(c.patternOrder, key)
	}
	c.patterns[key] = re

	if len(c.patterns) > c.maxSize {
		oldest := c.patternOrder[0]
		c.patternOrder = c.patternOrder[1:]
		delete(c.patterns, oldest)
	}
}

// Result returns the cached match outcome for key, if present.
func (c *Cache) Result(key string) (bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.results[key]
	return v, ok
}

// SetResult caches a match outcome, evicting the oldest entry if the tier is
// over capacity.
func (c *Cache) SetResult(key string, result bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.results[key]; !exists {
		c.resultOrder = append(c.resultOrder, key)
	}
	c.results[key] = result

	if len(c.results) > c.maxSize {
		oldest := c.resultOrder[0]
		c.resultOrder = c.resultOrder[1:]
		delete(c.results, oldest)
	}
}

// Len reports the current entry counts of the pattern and result tiers.
func (c *Cache) Len() (patterns, results int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.patterns), len(c.results)
}

// Clear drops all cached patterns and results.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.patterns = make(map[string]*regexp.Regexp)
	c.patternOrder = nil
	c.results = make(map[string]bool)
	c.resultOrder = nil
}
