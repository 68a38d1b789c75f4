package protocol

import (
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
)

// Address is a single connectable endpoint within a Description (§2:
// connect descriptors nest ADDRESS and ADDRESS_LIST entries).
type Address struct {
	Host string
	Port int
}

func (a Address) String() string { return fmt.Sprintf("%s:%d", a.Host, a.Port) }

// Description is a fully-parsed connect descriptor: one or more
// addresses, a selection policy, and the service identity to request
// during the connect handshake.
type Description struct {
	Addresses   []Address
	LoadBalance bool // true: random order; false: try in listed order (FAILOVER)
	ServiceName string
	InstanceName string
	ConnectData  map[string]string
}

// addressListSnapshot is an immutable ordering of a Description's
// addresses. Swapped atomically so concurrent dial attempts never race
// a mutator (this core itself never mutates a Description post-parse,
// but a pool may refresh one from a reloaded config at any time).
type addressListSnapshot struct {
	order []Address
}

// AddressList resolves the next address to try for a connect attempt,
// honoring LOAD_BALANCE (random start, round the list) or FAILOVER
// (fixed order, advance to the next address on ACCEPT/REFUSE retry).
type AddressList struct {
	snap atomic.Value // *addressListSnapshot
	wmu  sync.Mutex

	desc Description
}

// NewAddressList builds a resolver for a parsed Description.
func NewAddressList(desc Description) (*AddressList, error) {
	if len(desc.Addresses) == 0 {
		return nil, fmt.Errorf("protocol: connect descriptor has no addresses")
	}
	al := &AddressList{desc: desc}
	al.reshuffle()
	return al, nil
}

func (al *AddressList) reshuffle() {
	order := make([]Address, len(al.desc.Addresses))
	copy(order, al.desc.Addresses)
	if al.desc.LoadBalance {
		rand.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}
	al.snap.Store(&addressListSnapshot{order: order})
}

func (al *AddressList) load() *addressListSnapshot {
	return al.snap.Load().(*addressListSnapshot)
}

// Attempts returns the addresses to try, in the order a connect
// sequence should walk them (§3: phase one retries REFUSE/unreachable
// addresses per the descriptor's FAILOVER/LOAD_BALANCE policy before
// giving up).
func (al *AddressList) Attempts() []Address {
	snap := al.load()
	out := make([]Address, len(snap.order))
	copy(out, snap.order)
	return out
}

// Reshuffle re-randomizes LOAD_BALANCE ordering for the next connect
// sequence; a no-op under FAILOVER ordering.
func (al *AddressList) Reshuffle() {
	al.wmu.Lock()
	defer al.wmu.Unlock()
	al.reshuffle()
}

// ServiceName returns the service identity to present in the CONNECT
// packet's connect-data string.
func (al *AddressList) ServiceName() string { return al.desc.ServiceName }
