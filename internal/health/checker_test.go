package health

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/oracleco/go-ttcdriver/internal/capabilities"
	"github.com/oracleco/go-ttcdriver/internal/pool"
	"github.com/oracleco/go-ttcdriver/internal/protocol"
	"github.com/oracleco/go-ttcdriver/internal/transport"
	"github.com/oracleco/go-ttcdriver/internal/wire"
)

var testHealthCfg = Config{
	Interval:          30 * time.Second,
	FailureThreshold:  3,
	ConnectionTimeout: 5 * time.Second,
}

// healthyIO answers every round trip with a harmless tag byte so
// ProcessMessage's Rollback ping succeeds.
type healthyIO struct{}

func (healthyIO) ReadPacket() (byte, uint16, []byte, error) {
	return wire.PacketTypeData, wire.PacketFlagEOF, []byte{0}, nil
}
func (healthyIO) WritePacket(byte, uint16, []byte) error { return nil }
func (healthyIO) Close() error                           { return nil }
func (healthyIO) SetReadDeadline(time.Time) error        { return nil }

// deadIO fails every write, simulating an unreachable backend.
type deadIO struct{}

func (deadIO) ReadPacket() (byte, uint16, []byte, error) { return 0, 0, nil, errors.New("connection reset") }
func (deadIO) WritePacket(byte, uint16, []byte) error    { return errors.New("connection reset") }
func (deadIO) Close() error                              { return nil }
func (deadIO) SetReadDeadline(time.Time) error           { return nil }

func testAddrList(t *testing.T) *protocol.AddressList {
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

func newTestPool(t *testing.T, io protocol.PacketIO) *pool.ConnectionPool {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() {
		client.Close()
		server.Close()
	})

	caps := capabilities.New()
	tc := transport.NewConn(client, caps)
	eng := protocol.NewEngine(io, caps)
	eng.MarkPhaseComplete(protocol.StateReady)

	p := pool.New(testAddrList(t), pool.Params{Max: 1, GetMode: pool.GetModeWait, AcquireTimeout: time.Second})
	p.InjectTestConn(pool.NewTestPooledConn(tc, eng, p))
	return p
}

func TestCheckerInitialState(t *testing.T) {
	m := pool.NewManager()
	defer m.Close()
	c := NewChecker(m, nil, testHealthCfg)

	if !c.IsHealthy("unknown") {
		t.Error("unknown pool should be treated as healthy")
	}

	status := c.GetStatus("unknown")
	if status.Status != StatusUnknown {
		t.Errorf("expected StatusUnknown, got %v", status.Status)
	}
}

func TestCheckerUpdateStatus(t *testing.T) {
	m := pool.NewManager()
	defer m.Close()
	c := NewChecker(m, nil, testHealthCfg)

	c.updateStatus("test", true)
	if !c.IsHealthy("test") {
		t.Error("should be healthy after healthy update")
	}

	status := c.GetStatus("test")
	if status.Status != StatusHealthy {
		t.Errorf("expected StatusHealthy, got %v", status.Status)
	}

	c.updateStatus("test", false)
	if !c.IsHealthy("test") {
		t.Error("should still be healthy after one failure")
	}

	status = c.GetStatus("test")
	if status.ConsecutiveFailures != 1 {
		t.Errorf("expected 1 consecutive failure, got %d", status.ConsecutiveFailures)
	}
}

func TestCheckerThreshold(t *testing.T) {
	m := pool.NewManager()
	defer m.Close()
	c := NewChecker(m, nil, testHealthCfg)

	c.updateStatus("test", false)
	c.updateStatus("test", false)
	c.updateStatus("test", false)

	if c.IsHealthy("test") {
		t.Error("should be unhealthy after 3 consecutive failures")
	}

	status := c.GetStatus("test")
	if status.Status != StatusUnhealthy {
		t.Errorf("expected StatusUnhealthy, got %v", status.Status)
	}
}

func TestPingPoolHealthy(t *testing.T) {
	m := pool.NewManager()
	defer m.Close()
	m.Add("p1", newTestPool(t, healthyIO{}))

	c := NewChecker(m, nil, testHealthCfg)
	if !c.pingPool("p1") {
		t.Fatal("expected pingPool to succeed against a healthy connection")
	}
}

func TestPingPoolUnreachable(t *testing.T) {
	m := pool.NewManager()
	defer m.Close()
	m.Add("p1", newTestPool(t, deadIO{}))

	c := NewChecker(m, nil, testHealthCfg)
	if c.pingPool("p1") {
		t.Fatal("expected pingPool to fail against a dead connection")
	}
}

func TestPingPoolNotRegistered(t *testing.T) {
	m := pool.NewManager()
	defer m.Close()
	c := NewChecker(m, nil, testHealthCfg)

	if c.pingPool("missing") {
		t.Fatal("expected pingPool to fail for an unregistered pool")
	}
}

func TestCheckAllMarksUnhealthyAfterThreshold(t *testing.T) {
	m := pool.NewManager()
	defer m.Close()
	m.Add("p1", newTestPool(t, deadIO{}))

	cfg := testHealthCfg
	cfg.FailureThreshold = 2
	c := NewChecker(m, nil, cfg)

	c.checkAll()
	c.checkAll()

	if c.IsHealthy("p1") {
		t.Fatal("expected p1 to be unhealthy after 2 failed checks")
	}
}

func TestGetAllStatusesAndRemovePool(t *testing.T) {
	m := pool.NewManager()
	defer m.Close()
	c := NewChecker(m, nil, testHealthCfg)

	c.updateStatus("p1", true)
	c.updateStatus("p2", false)

	statuses := c.GetAllStatuses()
	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}

	c.RemovePool("p1")
	statuses = c.GetAllStatuses()
	if _, ok := statuses["p1"]; ok {
		t.Fatal("expected p1 removed from statuses")
	}
}

func TestOverallHealthy(t *testing.T) {
	m := pool.NewManager()
	defer m.Close()
	c := NewChecker(m, nil, testHealthCfg)

	c.updateStatus("p1", true)
	if !c.OverallHealthy() {
		t.Fatal("expected overall healthy with only healthy pools")
	}

	for i := 0; i < testHealthCfg.FailureThreshold; i++ {
		c.updateStatus("p2", false)
	}
	if c.OverallHealthy() {
		t.Fatal("expected overall unhealthy once any pool crosses the threshold")
	}
}
