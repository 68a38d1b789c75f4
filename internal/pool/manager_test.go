package pool

import (
	"testing"
	"time"
)

func newTestManagerPool(t testing.TB) *ConnectionPool {
	t.Helper()
	p := New(testAddressList(t), Params{Max: 2, GetMode: GetModeWait, AcquireTimeout: time.Second})
	p.InjectTestConn(newTestConn(t, p))
	return p
}

func TestManagerAddAndGet(t *testing.T) {
	m := NewManager()
	defer m.Close()

	p := newTestManagerPool(t)
	m.Add("reporting", p)

	got, ok := m.Get("reporting")
	if !ok || got != p {
		t.Fatalf("expected Get to return the added pool")
	}

	if _, ok := m.Get("missing"); ok {
		t.Fatalf("expected Get of an unregistered name to fail")
	}
}

func TestManagerAddReplacesAndClosesOld(t *testing.T) {
	m := NewManager()
	defer m.Close()

	old := newTestManagerPool(t)
	m.Add("p1", old)

	replacement := newTestManagerPool(t)
	m.Add("p1", replacement)

	got, ok := m.Get("p1")
	if !ok || got != replacement {
		t.Fatalf("expected Get to return the replacement pool")
	}

	stats := old.Stats()
	if stats.Total != 0 {
		t.Fatalf("expected the replaced pool to be closed/drained, got %+v", stats)
	}
}

func TestManagerRemove(t *testing.T) {
	m := NewManager()
	defer m.Close()

	p := newTestManagerPool(t)
	m.Add("p1", p)

	if !m.Remove("p1") {
		t.Fatalf("expected Remove to succeed for a registered pool")
	}
	if m.Remove("p1") {
		t.Fatalf("expected a second Remove of the same name to fail")
	}
	if _, ok := m.Get("p1"); ok {
		t.Fatalf("expected Get to fail after Remove")
	}
}

func TestManagerAllStats(t *testing.T) {
	m := NewManager()
	defer m.Close()

	m.Add("p1", newTestManagerPool(t))
	m.Add("p2", newTestManagerPool(t))

	stats := m.AllStats()
	if len(stats) != 2 {
		t.Fatalf("expected stats for 2 pools, got %d", len(stats))
	}
	if stats["p1"].Total != 1 || stats["p2"].Total != 1 {
		t.Fatalf("unexpected per-pool stats: %+v", stats)
	}
}

func TestManagerDrainPool(t *testing.T) {
	m := NewManager()
	defer m.Close()

	m.Add("p1", newTestManagerPool(t))

	if !m.DrainPool("p1") {
		t.Fatalf("expected DrainPool to succeed for a registered pool")
	}
	if m.DrainPool("missing") {
		t.Fatalf("expected DrainPool to fail for an unregistered name")
	}

	stats, _ := m.Get("p1")
	if s := stats.Stats(); s.Total != 0 {
		t.Fatalf("expected drained pool to have 0 total connections, got %+v", s)
	}
}

func TestManagerNames(t *testing.T) {
	m := NewManager()
	defer m.Close()

	m.Add("a", newTestManagerPool(t))
	m.Add("b", newTestManagerPool(t))

	names := m.Names()
	if len(names) != 2 {
		t.Fatalf("expected 2 names, got %v", names)
	}
}

func TestManagerDoubleClose(t *testing.T) {
	m := NewManager()
	m.Add("p1", newTestManagerPool(t))

	m.Close()
	m.Close() // must not panic on the second call

	if _, ok := m.Get("p1"); ok {
		t.Fatalf("expected all pools removed after Close")
	}
}

func TestManagerStartStatsLoop(t *testing.T) {
	m := NewManager()
	defer m.Close()

	m.Add("p1", newTestManagerPool(t))

	seen := make(chan string, 8)
	m.StartStatsLoop(10*time.Millisecond, func(name string, stats Stats) {
		select {
		case seen <- name:
		default:
		}
	})

	select {
	case name := <-seen:
		if name != "p1" {
			t.Fatalf("expected stats callback for p1, got %s", name)
		}
	case <-time.After(time.Second):
		t.Fatalf("stats loop never invoked the callback")
	}
}
