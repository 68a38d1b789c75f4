package statement

import (
	"errors"
	"testing"

	"github.com/oracleco/go-ttcdriver/internal/oraerr"
)

func TestNormalizeRejectsTrailingSemicolon(t *testing.T) {
	_, err := Normalize("select 1 from dual;", false, false, false)
	if !errors.Is(err, oraerr.ErrTrailingTerminator) {
		t.Fatalf("expected ErrTrailingTerminator, got %v", err)
	}
}

func TestNormalizeRejectsTrailingSlash(t *testing.T) {
	_, err := Normalize("begin null; end\n/", false, false, false)
	if !errors.Is(err, oraerr.ErrTrailingTerminator) {
		t.Fatalf("expected ErrTrailingTerminator, got %v", err)
	}
}

func TestNormalizeAllowsPlainSQL(t *testing.T) {
	key, err := Normalize("select 1 from dual", false, false, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key.SQL != "select 1 from dual" {
		t.Errorf("unexpected key SQL %q", key.SQL)
	}
}

func TestNormalizeDistinguishesShape(t *testing.T) {
	k1, _ := Normalize("select 1 from dual", false, false, false)
	k2, _ := Normalize("select 1 from dual", true, false, false)
	if k1 == k2 {
		t.Fatal("expected returning-clause flag to change the key")
	}
}

func TestCacheDisabledAtZero(t *testing.T) {
	c := NewCache(0)
	if !c.Disabled() {
		t.Fatal("expected cache to be disabled at size 0")
	}
	key, _ := Normalize("select 1 from dual", false, false, false)
	c.Put(&Statement{Key: key, CursorID: 1})
	if _, ok := c.Get(key); ok {
		t.Fatal("expected miss on a disabled cache")
	}
}

func TestCachePutGet(t *testing.T) {
	c := NewCache(2)
	key, _ := Normalize("select 1 from dual", false, false, false)
	c.Put(&Statement{Key: key, CursorID: 42})

	stmt, ok := c.Get(key)
	if !ok {
		t.Fatal("expected hit after put")
	}
	if stmt.CursorID != 42 {
		t.Errorf("expected cursor id 42, got %d", stmt.CursorID)
	}
}

func TestCacheEvictsLRUAndTombstones(t *testing.T) {
	c := NewCache(1)
	k1, _ := Normalize("select 1 from dual", false, false, false)
	k2, _ := Normalize("select 2 from dual", false, false, false)

	c.Put(&Statement{Key: k1, CursorID: 1})
	c.Put(&Statement{Key: k2, CursorID: 2})

	if _, ok := c.Get(k1); ok {
		t.Fatal("expected k1 evicted")
	}
	if _, ok := c.Get(k2); !ok {
		t.Fatal("expected k2 present")
	}

	pending := c.PendingCloses()
	if len(pending) != 1 || pending[0] != 1 {
		t.Fatalf("expected pending close for cursor 1, got %v", pending)
	}
	if len(c.PendingCloses()) != 0 {
		t.Fatal("expected PendingCloses to drain")
	}
}

func TestCacheInvalidateTombstones(t *testing.T) {
	c := NewCache(2)
	key, _ := Normalize("select 1 from dual", false, false, false)
	c.Put(&Statement{Key: key, CursorID: 7})

	c.Invalidate(key)

	if _, ok := c.Get(key); ok {
		t.Fatal("expected tombstoned entry to miss on Get")
	}
	pending := c.PendingCloses()
	if len(pending) != 1 || pending[0] != 7 {
		t.Fatalf("expected pending close for cursor 7, got %v", pending)
	}
}

func TestCacheRemove(t *testing.T) {
	c := NewCache(2)
	key, _ := Normalize("select 1 from dual", false, false, false)
	c.Put(&Statement{Key: key, CursorID: 1})

	c.Remove(key)

	if _, ok := c.Get(key); ok {
		t.Fatal("expected removed entry to miss")
	}
	if len(c.PendingCloses()) != 0 {
		t.Fatal("Remove should not tombstone (prepare cache_statement=false drops silently)")
	}
}

func TestCacheLen(t *testing.T) {
	c := NewCache(5)
	k1, _ := Normalize("select 1 from dual", false, false, false)
	k2, _ := Normalize("select 2 from dual", false, false, false)
	c.Put(&Statement{Key: k1, CursorID: 1})
	c.Put(&Statement{Key: k2, CursorID: 2})

	if c.Len() != 2 {
		t.Errorf("expected len 2, got %d", c.Len())
	}
}
