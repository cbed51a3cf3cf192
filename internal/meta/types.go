// Package meta holds the versioned tenant/slot/peer map the router and
// control plane share: an atomically-swapped cluster view keyed by
// tenant.
package meta

import "fmt"

// RangeTag marks whether a slot range is stable, or mid-migration.
type RangeTag int

const (
	TagStable RangeTag = iota
	TagImporting
	TagMigrating
)

func (t RangeTag) String() string {
	switch t {
	case TagStable:
		return "stable"
	case TagImporting:
		return "importing"
	case TagMigrating:
		return "migrating"
	default:
		return "unknown"
	}
}

// SlotRange is an inclusive [Start, End] range of hash slots, optionally
// tagged as importing from, or migrating to, another node address.
type SlotRange struct {
	Start int
	End   int
	Tag   RangeTag
	// PeerAddr is the src (importing) or dst (migrating) address; empty
	// when Tag is TagStable.
	PeerAddr string
}

func (r SlotRange) Contains(slot int) bool {
	return slot >= r.Start && slot <= r.End
}

func (r SlotRange) String() string {
	switch r.Tag {
	case TagImporting:
		return fmt.Sprintf("%d-%d{IMPORTING/%s}", r.Start, r.End, r.PeerAddr)
	case TagMigrating:
		return fmt.Sprintf("%d-%d{MIGRATING/%s}", r.Start, r.End, r.PeerAddr)
	default:
		return fmt.Sprintf("%d-%d", r.Start, r.End)
	}
}

// Node is one physical endpoint owning a set of slot ranges within a
// tenant's view.
type Node struct {
	Addr  string
	Slots []SlotRange
	Epoch int64
}

// FindSlot returns the SlotRange owning slot, if any.
func (n *Node) FindSlot(slot int) (SlotRange, bool) {
	for _, r := range n.Slots {
		if r.Contains(slot) {
			return r, true
		}
	}
	return SlotRange{}, false
}

// Tenant is one proxied "database": a name used as the AUTH token, the
// epoch of its most recently installed meta, and the local/peer node
// views that partition its keyspace.
type Tenant struct {
	Name       string
	Epoch      int64
	LocalNodes []*Node
	PeerNodes  []*Node
}

// FindLocal returns the local Node and owning SlotRange for slot, if the
// slot is covered by a local node.
func (t *Tenant) FindLocal(slot int) (*Node, SlotRange, bool) {
	for _, n := range t.LocalNodes {
		if r, ok := n.FindSlot(slot); ok {
			return n, r, true
		}
	}
	return nil, SlotRange{}, false
}

// FindPeer returns the peer Node and owning SlotRange for slot, if the
// slot is covered by a peer node.
func (t *Tenant) FindPeer(slot int) (*Node, SlotRange, bool) {
	for _, n := range t.PeerNodes {
		if r, ok := n.FindSlot(slot); ok {
			return n, r, true
		}
	}
	return nil, SlotRange{}, false
}

// AllNodes returns local and peer nodes together, local nodes first —
// the iteration order CLUSTER NODES/CLUSTER SLOTS use.
func (t *Tenant) AllNodes() []*Node {
	out := make([]*Node, 0, len(t.LocalNodes)+len(t.PeerNodes))
	out = append(out, t.LocalNodes...)
	out = append(out, t.PeerNodes...)
	return out
}

// Snapshot is an immutable view of every tenant the proxy knows about,
// plus the global epoch of the last accepted SETDB/SETPEER. Snapshots are
// never mutated in place; the Store publishes a new one on every update.
type Snapshot struct {
	GlobalEpoch int64
	Tenants     map[string]*Tenant
}

func emptySnapshot() *Snapshot {
	return &Snapshot{Tenants: make(map[string]*Tenant)}
}

// Tenant looks up a tenant by name. The bool is false when the tenant is
// entirely unknown to this snapshot (as distinct from known-but-empty).
func (s *Snapshot) Tenant(name string) (*Tenant, bool) {
	t, ok := s.Tenants[name]
	return t, ok
}

// clone returns a shallow copy of the snapshot's tenant map so a single
// tenant can be replaced without mutating the snapshot readers already
// hold a reference to.
func (s *Snapshot) clone() *Snapshot {
	next := &Snapshot{GlobalEpoch: s.GlobalEpoch, Tenants: make(map[string]*Tenant, len(s.Tenants)+1)}
	for k, v := range s.Tenants {
		next.Tenants[k] = v
	}
	return next
}
