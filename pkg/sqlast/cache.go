package sqlast

import (
	"container/list"
	"sync"
)

// parseCache is a small LRU over parsed statements keyed by (dialect, sql).
type parseCache struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	entries  map[string]*list.Element
}

type cacheEntry struct {
	key   string
	stmts []*statement
	err   error
}

func newParseCache(capacity int) *parseCache {
	if capacity < 256 {
		capacity = 256
	}
	return &parseCache{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[string]*list.Element, capacity),
	}
}

func cacheKey(sql string, d Dialect) string {
	return string(d) + "\x00" + sql
}

func (c *parseCache) get(sql string, d Dialect) ([]*statement, error, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[cacheKey(sql, d)]
	if !ok {
		return nil, nil, false
	}
	c.order.MoveToFront(el)
	e := el.Value.(*cacheEntry)
	return e.stmts, e.err, true
}

func (c *parseCache) put(sql string, d Dialect, stmts []*statement, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := cacheKey(sql, d)
	if el, ok := c.entries[key]; ok {
		c.order.MoveToFront(el)
		el.Value.(*cacheEntry).stmts = stmts
		el.Value.(*cacheEntry).err = err
		return
	}
	el := c.order.PushFront(&cacheEntry{key: key, stmts: stmts, err: err})
	c.entries[key] = el
	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
}

func (c *parseCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
