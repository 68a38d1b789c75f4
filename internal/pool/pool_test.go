package pool

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/oracleco/go-ttcdriver/internal/capabilities"
	"github.com/oracleco/go-ttcdriver/internal/protocol"
	"github.com/oracleco/go-ttcdriver/internal/transport"
	"github.com/oracleco/go-ttcdriver/internal/wire"
)

// fakePoolIO answers every process_message round trip with a single
// not-an-error tag byte, enough to satisfy simpleFuncMessage's Decode
// (used by NewRollbackMessage/NewSessionReleaseMessage) without a real
// server.
type fakePoolIO struct{ closed bool }

func (f *fakePoolIO) ReadPacket() (byte, uint16, []byte, error) {
	return wire.PacketTypeData, wire.PacketFlagEOF, []byte{0}, nil
}

func (f *fakePoolIO) WritePacket(pktType byte, flags uint16, payload []byte) error { return nil }

func (f *fakePoolIO) Close() error { f.closed = true; return nil }

func (f *fakePoolIO) SetReadDeadline(t time.Time) error { return nil }

func testAddressList(t testing.TB) *protocol.AddressList {
	t.Helper()
	al, err := protocol.NewAddressList(protocol.Description{
		Addresses:   []protocol.Address{{Host: "127.0.0.1", Port: 1521}},
		ServiceName: "orclpdb1",
	})
	if err != nil {
		t.Fatalf("NewAddressList: %v", err)
	}
	return al
}

// newTestConn builds a PooledConn whose Engine is driven by fakePoolIO
// (so ProcessMessage calls are deterministic) and whose raw transport
// is a real net.Pipe half (so Close() has a live net.Conn to tear
// down), mirroring the teacher's integration-test use of net.Conn pairs.
func newTestConn(t testing.TB, p *ConnectionPool) *PooledConn {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() {
		client.Close()
		server.Close()
	})

	caps := capabilities.New()
	tc := transport.NewConn(client, caps)
	eng := protocol.NewEngine(&fakePoolIO{}, caps)
	eng.MarkPhaseComplete(protocol.StateReady)
	return newPooledConn(tc, eng, p)
}

func TestAcquireReleaseReusesConnection(t *testing.T) {
	p := New(testAddressList(t), Params{Max: 2, GetMode: GetModeWait, AcquireTimeout: time.Second})
	defer p.Close()

	pc := newTestConn(t, p)
	p.InjectTestConn(pc)

	got, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if got != pc {
		t.Fatalf("expected the injected connection to be returned")
	}
	if got.State() != ConnStateBusy {
		t.Fatalf("expected busy state after acquire, got %v", got.State())
	}

	got.Release()
	if got.State() != ConnStateFree {
		t.Fatalf("expected free state after release, got %v", got.State())
	}

	stats := p.Stats()
	if stats.Free != 1 || stats.Busy != 0 {
		t.Fatalf("unexpected stats after release: %+v", stats)
	}
}

func TestAcquireNoWaitFailsWhenExhausted(t *testing.T) {
	p := New(testAddressList(t), Params{Max: 1, GetMode: GetModeNoWait})
	defer p.Close()

	p.mu.Lock()
	p.total = 1 // simulate the single allowed connection already busy
	p.mu.Unlock()

	_, err := p.Acquire(context.Background())
	if err == nil || !strings.Contains(err.Error(), "NOWAIT") {
		t.Fatalf("expected a NOWAIT exhaustion error, got %v", err)
	}
}

func TestAcquireForceGetBypassesMax(t *testing.T) {
	p := New(testAddressList(t), Params{Max: 1, GetMode: GetModeForceGet})
	defer p.Close()

	p.mu.Lock()
	p.total = 1
	p.mu.Unlock()

	// No free connection and no real listener to dial, so this should
	// attempt (and fail) a genuine connect rather than returning the
	// NOWAIT-style "busy == max" error FORCEGET is defined to bypass.
	_, err := p.Acquire(context.Background())
	if err == nil {
		t.Fatalf("expected a dial error since no listener is reachable")
	}
	if strings.Contains(err.Error(), "NOWAIT") {
		t.Fatalf("FORCEGET must not apply the NOWAIT exhaustion check, got %v", err)
	}
}

func TestAcquireTimedWaitTimesOut(t *testing.T) {
	p := New(testAddressList(t), Params{Max: 0, GetMode: GetModeTimedWait, AcquireTimeout: 30 * time.Millisecond})
	defer p.Close()

	start := time.Now()
	_, err := p.Acquire(context.Background())
	if err == nil || !strings.Contains(err.Error(), "acquire timeout") {
		t.Fatalf("expected an acquire timeout error, got %v", err)
	}
	if time.Since(start) < 30*time.Millisecond {
		t.Fatalf("expected Acquire to honor the configured timeout")
	}
}

func TestReleaseRunsRollbackAndRequeues(t *testing.T) {
	p := New(testAddressList(t), Params{Max: 1, GetMode: GetModeWait})
	defer p.Close()

	pc := newTestConn(t, p)
	p.mu.Lock()
	p.busy[pc] = struct{}{}
	p.total = 1
	p.mu.Unlock()
	pc.markBusy()

	p.release(pc)

	p.mu.Lock()
	_, stillBusy := p.busy[pc]
	freeCount := len(p.free)
	p.mu.Unlock()

	if stillBusy {
		t.Fatalf("expected connection removed from busy set after release")
	}
	if freeCount != 1 {
		t.Fatalf("expected connection requeued to free list, got %d free", freeCount)
	}
}

func TestDrainClosesFreeConnections(t *testing.T) {
	p := New(testAddressList(t), Params{Max: 2, GetMode: GetModeWait})
	pc := newTestConn(t, p)
	p.InjectTestConn(pc)

	p.Drain()

	stats := p.Stats()
	if stats.Free != 0 || stats.Total != 0 {
		t.Fatalf("expected drain to close all free connections, got %+v", stats)
	}
}

func TestCloseWakesWaitingAcquire(t *testing.T) {
	p := New(testAddressList(t), Params{Max: 0, GetMode: GetModeWait, AcquireTimeout: 10 * time.Second})

	done := make(chan error, 1)
	go func() {
		_, err := p.Acquire(context.Background())
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	p.Close()

	select {
	case err := <-done:
		if err == nil {
			t.Fatalf("expected Acquire to fail once the pool is closed")
		}
	case <-time.After(time.Second):
		t.Fatalf("Close did not wake a waiting Acquire")
	}
}
