// Package statement implements the normalized statement key and the
// per-connection LRU cache described in §4.G: SQL text is cached
// alongside the returning/array-DML/fetch-type shape that made it
// distinct. Evicted and invalidated entries are tombstoned and their
// cursor ids queued for PendingCloses; this package sends no
// server-side close itself.
package statement

import (
	"container/list"
	"sync"

	"github.com/oracleco/go-ttcdriver/internal/oraerr"
)

// Key is the normalized cache key (§4.G): SQL text plus the shape
// flags that make two textually-identical statements behave
// differently server-side.
type Key struct {
	SQL           string
	HasReturning  bool
	ArrayDML      bool
	FetchAsString bool
}

// Statement is one cached parsed/described plan.
type Statement struct {
	Key       Key
	CursorID  uint32
	Tombstoned bool
}

// Normalize validates and builds a Key from raw SQL text. It rejects
// a trailing ';' or '/' rather than stripping it (§4.G: "no implicit
// stripping").
func Normalize(sql string, hasReturning, arrayDML, fetchAsString bool) (Key, error) {
	trimmed := trimTrailingWhitespace(sql)
	if len(trimmed) > 0 {
		last := trimmed[len(trimmed)-1]
		if last == ';' || last == '/' {
			return Key{}, oraerr.ErrTrailingTerminator
		}
	}
	return Key{SQL: sql, HasReturning: hasReturning, ArrayDML: arrayDML, FetchAsString: fetchAsString}, nil
}

func trimTrailingWhitespace(s string) string {
	i := len(s)
	for i > 0 {
		switch s[i-1] {
		case ' ', '\t', '\n', '\r':
			i--
			continue
		}
		break
	}
	return s[:i]
}

// Cache is a per-connection LRU statement cache keyed by the
// normalized Key. Size 0 disables caching entirely (§4.G).
type Cache struct {
	mu       sync.Mutex
	size     int
	ll       *list.List // front = most recently used
	items    map[Key]*list.Element
	tombstones []*Statement
}

// NewCache builds a cache bounded to size entries. size <= 0 means
// caching is disabled: Get always misses and Put is a no-op, so every
// Execute parses afresh. No server-side cursor close is sent for the
// uncached statements.
func NewCache(size int) *Cache {
	return &Cache{
		size:  size,
		ll:    list.New(),
		items: make(map[Key]*list.Element),
	}
}

// Disabled reports whether this cache was configured with size 0.
func (c *Cache) Disabled() bool { return c.size <= 0 }

// Get looks up a statement by key, moving it to the front (most
// recently used) on hit.
func (c *Cache) Get(key Key) (*Statement, bool) {
	if c.Disabled() {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	c.ll.MoveToFront(el)
	stmt := el.Value.(*Statement)
	if stmt.Tombstoned {
		return nil, false
	}
	return stmt, true
}

// Put inserts or refreshes a statement. If inserting would exceed
// size, the least recently used entry is evicted; if that entry was
// still live (not tombstoned) it is tombstoned and its cursor id is
// queued for PendingCloses.
func (c *Cache) Put(stmt *Statement) {
	if c.Disabled() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[stmt.Key]; ok {
		el.Value = stmt
		c.ll.MoveToFront(el)
		return
	}

	el := c.ll.PushFront(stmt)
	c.items[stmt.Key] = el

	for c.ll.Len() > c.size {
		c.evictOldestLocked()
	}
}

func (c *Cache) evictOldestLocked() {
	back := c.ll.Back()
	if back == nil {
		return
	}
	c.ll.Remove(back)
	stmt := back.Value.(*Statement)
	delete(c.items, stmt.Key)
	if !stmt.Tombstoned {
		stmt.Tombstoned = true
		c.tombstones = append(c.tombstones, stmt)
	}
}

// Invalidate tombstones a cached statement after a server error that
// invalidates its parsed plan (§4.G), without removing it from the
// LRU bookkeeping; its cursor id is queued for PendingCloses.
func (c *Cache) Invalidate(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if !ok {
		return
	}
	stmt := el.Value.(*Statement)
	if !stmt.Tombstoned {
		stmt.Tombstoned = true
		c.tombstones = append(c.tombstones, stmt)
	}
}

// Remove drops key from the cache, removing it outright without
// tombstoning — used by prepare(sql, cache_statement=false), which
// "removes any existing entry" (§4.G).
func (c *Cache) Remove(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if !ok {
		return
	}
	c.ll.Remove(el)
	delete(c.items, key)
}

// PendingCloses drains and returns the cursor ids of tombstoned
// statements (§4.G). The cache only queues these ids: the cursor and
// connection layers do not call PendingCloses, so no server-side close
// is sent for them on any round trip.
func (c *Cache) PendingCloses() []uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.tombstones) == 0 {
		return nil
	}
	ids := make([]uint32, len(c.tombstones))
	for i, s := range c.tombstones {
		ids[i] = s.CursorID
	}
	c.tombstones = nil
	return ids
}

// Len reports the number of live (non-evicted) entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}
