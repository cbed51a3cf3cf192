// Package control implements the UMCTL admin command family that
// installs new tenant meta into the meta store. UMCTL travels over the
// same RESP connection as data commands, so parsing works over an
// already-split argv rather than a text line.
package control

import (
	"fmt"
	"strconv"
	"strings"

	"umproxy/internal/meta"
)

// SetDB is one parsed `UMCTL SETDB` command: an epoch and one or more
// (tenant, host:port, slot-ranges) node groups.
type SetDB struct {
	Epoch   int64
	Tenants map[string]*meta.Tenant
}

// SetPeer is one parsed `UMCTL SETPEER` command.
type SetPeer struct {
	Epoch int64
	Peers map[string][]*meta.Node
}

// ParseSetDB parses `UMCTL SETDB <epoch> <flags> <tenant> <host:port>
// <slot-ranges…> [<tenant> <host:port> <slot-ranges…>…]`. argv excludes
// the leading "UMCTL" and "SETDB" tokens.
func ParseSetDB(argv []string) (*SetDB, error) {
	if len(argv) < 4 {
		return nil, fmt.Errorf("ERR wrong number of arguments for SETDB")
	}

	epoch, err := parseEpoch(argv[0])
	if err != nil {
		return nil, err
	}
	if err := checkFlags(argv[1]); err != nil {
		return nil, err
	}

	groups, err := parseNodeGroups(argv[2:])
	if err != nil {
		return nil, err
	}

	tenants := make(map[string]*meta.Tenant, len(groups))
	for name, nodes := range groups {
		if err := checkDisjoint(nodes); err != nil {
			return nil, fmt.Errorf("ERR overlapping slot ranges for tenant %s: %w", name, err)
		}
		tenants[name] = &meta.Tenant{Name: name, Epoch: epoch, LocalNodes: nodes}
	}

	return &SetDB{Epoch: epoch, Tenants: tenants}, nil
}

// ParseSetPeer parses `UMCTL SETPEER` with the same shape as SETDB.
func ParseSetPeer(argv []string) (*SetPeer, error) {
	if len(argv) < 4 {
		return nil, fmt.Errorf("ERR wrong number of arguments for SETPEER")
	}

	epoch, err := parseEpoch(argv[0])
	if err != nil {
		return nil, err
	}
	if err := checkFlags(argv[1]); err != nil {
		return nil, err
	}

	groups, err := parseNodeGroups(argv[2:])
	if err != nil {
		return nil, err
	}
	for name, nodes := range groups {
		if err := checkDisjoint(nodes); err != nil {
			return nil, fmt.Errorf("ERR overlapping slot ranges for tenant %s: %w", name, err)
		}
	}

	return &SetPeer{Epoch: epoch, Peers: groups}, nil
}

func parseEpoch(s string) (int64, error) {
	epoch, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("ERR bad epoch: %s", s)
	}
	return epoch, nil
}

func checkFlags(s string) error {
	if strings.ToUpper(s) != "NOFLAGS" {
		return fmt.Errorf("ERR unknown flags: %s", s)
	}
	return nil
}

// parseNodeGroups walks `<tenant> <host:port> <slot-ranges…>` repeated
// groups. A token that does not start with a digit ends the current
// group's ranges and starts the next tenant name; a digit-led token that
// fails to parse as a slot range is an error.
func parseNodeGroups(argv []string) (map[string][]*meta.Node, error) {
	groups := make(map[string][]*meta.Node)
	i := 0
	for i < len(argv) {
		tenant := argv[i]
		i++
		if i >= len(argv) {
			return nil, fmt.Errorf("ERR missing host:port for tenant %s", tenant)
		}
		addr := argv[i]
		i++

		var ranges []meta.SlotRange
		for i < len(argv) && looksLikeSlotRange(argv[i]) {
			r, err := ParseSlotRange(argv[i])
			if err != nil {
				return nil, err
			}
			ranges = append(ranges, r)
			i++
		}
		if len(ranges) == 0 {
			return nil, fmt.Errorf("ERR missing slot ranges for tenant %s", tenant)
		}

		groups[tenant] = append(groups[tenant], &meta.Node{Addr: addr, Slots: ranges})
	}
	return groups, nil
}

// looksLikeSlotRange reports whether token could plausibly be a slot
// range rather than the next group's tenant name: it must start with a
// digit (ranges never start with a letter, tenant names may).
func looksLikeSlotRange(token string) bool {
	return len(token) > 0 && token[0] >= '0' && token[0] <= '9'
}

// ParseSlotRange parses `a-b`, `a-b{MIGRATING/dst}`, or
// `a-b{IMPORTING/src}`.
func ParseSlotRange(token string) (meta.SlotRange, error) {
	tag := meta.TagStable
	peerAddr := ""
	body := token

	if br := strings.IndexByte(token, '{'); br != -1 {
		if !strings.HasSuffix(token, "}") {
			return meta.SlotRange{}, fmt.Errorf("ERR malformed slot range: %s", token)
		}
		body = token[:br]
		inner := token[br+1 : len(token)-1]
		parts := strings.SplitN(inner, "/", 2)
		if len(parts) != 2 {
			return meta.SlotRange{}, fmt.Errorf("ERR malformed slot range tag: %s", token)
		}
		switch strings.ToUpper(parts[0]) {
		case "MIGRATING":
			tag = meta.TagMigrating
		case "IMPORTING":
			tag = meta.TagImporting
		default:
			return meta.SlotRange{}, fmt.Errorf("ERR unknown slot range tag: %s", parts[0])
		}
		peerAddr = parts[1]
	}

	bounds := strings.SplitN(body, "-", 2)
	if len(bounds) != 2 {
		return meta.SlotRange{}, fmt.Errorf("ERR malformed slot range: %s", token)
	}
	start, err1 := strconv.Atoi(bounds[0])
	end, err2 := strconv.Atoi(bounds[1])
	if err1 != nil || err2 != nil || start < 0 || end < start || end > 16383 {
		return meta.SlotRange{}, fmt.Errorf("ERR malformed slot range: %s", token)
	}

	return meta.SlotRange{Start: start, End: end, Tag: tag, PeerAddr: peerAddr}, nil
}

// checkDisjoint rejects overlapping ranges within one node set.
func checkDisjoint(nodes []*meta.Node) error {
	var all []meta.SlotRange
	for _, n := range nodes {
		all = append(all, n.Slots...)
	}
	for i := 0; i < len(all); i++ {
		for j := i + 1; j < len(all); j++ {
			if all[i].Start <= all[j].End && all[j].Start <= all[i].End {
				return fmt.Errorf("ranges %s and %s overlap", all[i], all[j])
			}
		}
	}
	return nil
}
