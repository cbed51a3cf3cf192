package control

import (
	"fmt"

	"umproxy/internal/meta"
	"umproxy/internal/metrics"
)

// Controller applies parsed UMCTL commands to the meta store, gating
// every operation to the configured admin tenant.
type Controller struct {
	store     *meta.Store
	adminName string
}

// NewController constructs a Controller bound to store, admin-gated by
// adminTenant.
func NewController(store *meta.Store, adminTenant string) *Controller {
	return &Controller{store: store, adminName: adminTenant}
}

// IsAdmin reports whether tenantName may issue UMCTL commands.
func (c *Controller) IsAdmin(tenantName string) bool {
	return tenantName == c.adminName
}

// ApplySetDB parses and installs a SETDB command's local-node view for
// every tenant it names.
func (c *Controller) ApplySetDB(argv []string) error {
	parsed, err := ParseSetDB(argv)
	if err != nil {
		return err
	}
	for name, tenant := range parsed.Tenants {
		existing, ok := c.store.Load().Tenant(name)
		if ok {
			tenant.PeerNodes = existing.PeerNodes
		}
		if err := c.store.ApplyTenant(name, tenant); err != nil {
			return fmt.Errorf("ERR %v", err)
		}
		metrics.SetTenantEpoch(name, tenant.Epoch)
	}
	return nil
}

// ApplySetPeer parses and installs a SETPEER command's peer-node view
// for every tenant it names. The tenant must already exist via a prior
// SETDB.
func (c *Controller) ApplySetPeer(argv []string) error {
	parsed, err := ParseSetPeer(argv)
	if err != nil {
		return err
	}
	for name, nodes := range parsed.Peers {
		if err := c.store.ApplyPeers(name, parsed.Epoch, nodes); err != nil {
			return fmt.Errorf("ERR %v", err)
		}
		metrics.SetTenantEpoch(name, parsed.Epoch)
	}
	return nil
}

// Info returns the UMCTL INFO summary: the global epoch and a one-line
// summary per known tenant.
func (c *Controller) Info() (int64, []string) {
	snap := c.store.Load()
	lines := make([]string, 0, len(snap.Tenants))
	for name, t := range snap.Tenants {
		lines = append(lines, fmt.Sprintf("%s epoch=%d local=%d peer=%d", name, t.Epoch, len(t.LocalNodes), len(t.PeerNodes)))
	}
	return snap.GlobalEpoch, lines
}
