package meta

import (
	"fmt"
	"sync/atomic"
)

// Store holds the process-wide meta snapshot behind an atomic pointer, so
// readers on the hot path never take a lock: they load the pointer once
// and hold that reference for the duration of one request.
type Store struct {
	ptr atomic.Pointer[Snapshot]
}

// NewStore returns a Store seeded with an empty snapshot.
func NewStore() *Store {
	s := &Store{}
	s.ptr.Store(emptySnapshot())
	return s
}

// Load returns the current snapshot. Safe for concurrent use; never
// blocks, never takes a lock.
func (s *Store) Load() *Snapshot {
	return s.ptr.Load()
}

// ApplyTenant installs a new view of one tenant. It builds a new snapshot
// by cloning the current one's tenant map and replacing the single entry,
// then swaps it in with a CompareAndSwap loop so concurrent ApplyTenant
// calls for different tenants never lose an update to each other.
//
// epoch must strictly exceed the previously installed epoch for this
// tenant (0 if the tenant is new); otherwise the update is rejected and
// the store is left untouched.
func (s *Store) ApplyTenant(name string, tenant *Tenant) error {
	for {
		cur := s.ptr.Load()
		if existing, ok := cur.Tenant(name); ok && tenant.Epoch <= existing.Epoch {
			return fmt.Errorf("epoch not newer: have %d, got %d", existing.Epoch, tenant.Epoch)
		}

		next := cur.clone()
		next.Tenants[name] = tenant
		if tenant.Epoch > next.GlobalEpoch {
			next.GlobalEpoch = tenant.Epoch
		}

		if s.ptr.CompareAndSwap(cur, next) {
			return nil
		}
		// Another writer raced us; retry against the newer snapshot.
	}
}

// ApplyPeers installs the peer-node view for a tenant. Like ApplyTenant,
// epoch must strictly exceed the tenant's previously installed epoch:
// SETDB and SETPEER share one epoch counter per tenant, since both
// install one generation of that tenant's meta.
func (s *Store) ApplyPeers(name string, epoch int64, peers []*Node) error {
	for {
		cur := s.ptr.Load()
		existing, ok := cur.Tenant(name)
		if !ok {
			return fmt.Errorf("no such database: %s", name)
		}
		if epoch <= existing.Epoch {
			return fmt.Errorf("epoch not newer: have %d, got %d", existing.Epoch, epoch)
		}

		updated := &Tenant{
			Name:       existing.Name,
			Epoch:      epoch,
			LocalNodes: existing.LocalNodes,
			PeerNodes:  peers,
		}

		next := cur.clone()
		next.Tenants[name] = updated
		if epoch > next.GlobalEpoch {
			next.GlobalEpoch = epoch
		}

		if s.ptr.CompareAndSwap(cur, next) {
			return nil
		}
	}
}
