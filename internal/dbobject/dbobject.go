// Package dbobject caches Oracle object type descriptions keyed by
// (schema, package, name) per §4.I. Attribute order is stable once a
// type is cached: callers bind and fetch object attributes positionally.
package dbobject

import (
	"context"
	"sync"

	"github.com/oracleco/go-ttcdriver/internal/protocol"
	"github.com/oracleco/go-ttcdriver/internal/ttc"
)

// Key identifies an object type. Package is empty for a schema-level
// type (not nested in a PL/SQL package).
type Key struct {
	Schema  string
	Package string
	Name    string
}

// Type is a cached, resolved object type description.
type Type struct {
	Key        Key
	OID        []byte
	Attributes []ttc.ObjectAttribute
}

// AttributeType returns the nested type key for an object-typed
// attribute, resolved lazily on first access by the caller (§4.I:
// "nested object type references resolved lazily").
func (t *Type) AttributeType(index int) (Key, bool) {
	if index < 0 || index >= len(t.Attributes) {
		return Key{}, false
	}
	a := t.Attributes[index]
	if a.Type != ttc.DataTypeObject {
		return Key{}, false
	}
	return Key{Schema: a.NestedSchema, Package: a.NestedPackage, Name: a.NestedName}, true
}

// Cache resolves and caches object type descriptions for a single
// connection (§4.I: "Keyed by (schema, package_or_null, name)").
// Single-writer: owned by one connection, not shared across a pool.
type Cache struct {
	mu    sync.Mutex
	types map[Key]*Type
}

// NewCache builds an empty type cache.
func NewCache() *Cache {
	return &Cache{types: make(map[Key]*Type)}
}

// Get resolves a type, fetching its description from the server on
// first access via eng and caching the result for subsequent lookups.
func (c *Cache) Get(ctx context.Context, eng *protocol.Engine, key Key) (*Type, error) {
	c.mu.Lock()
	if t, ok := c.types[key]; ok {
		c.mu.Unlock()
		return t, nil
	}
	c.mu.Unlock()

	msg := &ttc.DescribeTypeMessage{Schema: key.Schema, Package: key.Package, Name: key.Name}
	if err := eng.ProcessMessage(ctx, msg); err != nil {
		return nil, err
	}

	t := &Type{Key: key, OID: msg.OID, Attributes: msg.Attributes}

	c.mu.Lock()
	c.types[key] = t
	c.mu.Unlock()

	return t, nil
}

// Peek returns a cached type without triggering a server round trip.
func (c *Cache) Peek(key Key) (*Type, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.types[key]
	return t, ok
}

// Len reports the number of cached type descriptions.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.types)
}
