package router

import (
	"errors"
	"fmt"

	"umproxy/internal/meta"
	"umproxy/internal/slot"
)

// Route decides, for the active tenant and a parsed argv, whether to
// answer locally, forward to a backend endpoint, or redirect the client.
// asking is the session's one-shot ASKING flag, consumed by the caller
// regardless of outcome.
func Route(tenant *meta.Tenant, argv []string, asking bool) Decision {
	if len(argv) == 0 {
		return errDecision(fmt.Errorf("ERR empty command"))
	}

	spec, ok := Lookup(argv[0])
	if !ok {
		return errDecision(fmt.Errorf("ERR unknown command '%s'", argv[0]))
	}

	if spec.IsMeta {
		return localMeta()
	}

	if spec.KeyIndex < 0 {
		return errDecision(fmt.Errorf("ERR command not supported"))
	}
	if spec.KeyIndex >= len(argv) {
		return errDecision(fmt.Errorf("ERR wrong number of arguments"))
	}

	keySlot, err := resolveSlot(spec, argv)
	if err != nil {
		return errDecision(err)
	}

	return routeSlot(tenant, keySlot, asking)
}

// resolveSlot extracts the routable slot for argv. Multi-key commands
// are accepted only when every key hashes to the same slot; otherwise
// the client gets CROSSSLOT.
func resolveSlot(spec CommandSpec, argv []string) (int, error) {
	if !spec.MultiKey {
		return slot.Slot(argv[spec.KeyIndex]), nil
	}

	first := -1
	for i := spec.KeyIndex; i < len(argv); i += spec.KeyStride {
		s := slot.Slot(argv[i])
		if first == -1 {
			first = s
		} else if s != first {
			return 0, errCrossSlot
		}
	}
	if first == -1 {
		return 0, fmt.Errorf("ERR wrong number of arguments")
	}
	return first, nil
}

var errCrossSlot = errors.New("CROSSSLOT Keys in request don't hash to the same slot")

// routeSlot resolves one slot against the tenant's local, importing,
// migrating, peer, and uncovered cases, in that order.
func routeSlot(tenant *meta.Tenant, keySlot int, asking bool) Decision {
	if node, r, ok := tenant.FindLocal(keySlot); ok {
		switch r.Tag {
		case meta.TagStable:
			return forward(node.Addr)
		case meta.TagImporting:
			if asking {
				return forward(node.Addr)
			}
			return moved(keySlot, r.PeerAddr)
		case meta.TagMigrating:
			// "Attempt the command locally; if the key is absent
			// locally, ASK." The router can't evaluate key presence
			// without a backend round trip, so it forwards locally and
			// carries the ASK fallback target for the session to apply
			// if the backend reports the key absent.
			return forwardMigrating(node.Addr, keySlot, r.PeerAddr)
		}
	}

	if node, _, ok := tenant.FindPeer(keySlot); ok {
		return moved(keySlot, node.Addr)
	}

	return errDecision(fmt.Errorf("ERR slot %d not covered", keySlot))
}
