package novel

import (
	"container/list"
	"sync"
)

// titleCache is a thread-safe LRU of novel ID -> title
type titleCache struct {
	capacity int
	cache    map[string]*list.Element
	lru      *list.List
	mu       sync.Mutex
}

type cacheEntry struct {
	id    string
	title string
}

func newTitleCache(capacity int) *titleCache {
	if capacity < 1 {
		capacity = 1
	}
	return &titleCache{
		capacity: capacity,
		cache:    make(map[string]*list.Element),
		lru:      list.New(),
	}
}

// Get returns the cached title and marks it most recently used
func (c *titleCache) Get(id string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, exists := c.cache[id]; exists {
		c.lru.MoveToFront(elem)
		return elem.Value.(*cacheEntry).title, true
	}
	return "", false
}

// Put adds or updates a title, evicting the least recently used entry when full
func (c *titleCache) Put(id, title string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, exists := c.cache[id]; exists {
		c.lru.MoveToFront(elem)
		elem.Value.(*cacheEntry).title = title
		return
	}

	if c.lru.Len() >= c.capacity {
		if oldest := c.lru.Back(); oldest != nil {
			c.lru.Remove(oldest)
			delete(c.cache, oldest.Value.(*cacheEntry).id)
		}
	}

	c.cache[id] = c.lru.PushFront(&cacheEntry{id: id, title: title})
}

// Forget drops id from the cache
func (c *titleCache) Forget(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, exists := c.cache[id]; exists {
		c.lru.Remove(elem)
		delete(c.cache, id)
	}
}

// Len returns the number of cached titles
func (c *titleCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
