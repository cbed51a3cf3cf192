// Package clusterview synthesizes CLUSTER NODES / CLUSTER SLOTS / CLUSTER
// INFO replies from a tenant's meta view. The proxy is itself the node
// being described, so these are rendered locally — no backend round trip
// is involved.
package clusterview

import (
	"fmt"
	"strconv"
	"strings"

	"umproxy/internal/meta"
	"umproxy/internal/resp"
)

const nodeIDWidth = 40

// NodeID derives the deterministic 40-character node id
// `<tenant>____<host:port>____`, padded/truncated to width. Some cluster
// tooling insists on a hex id; clients seen so far only require the fixed
// width.
func NodeID(tenant, addr string) string {
	id := tenant + "____" + addr + "____"
	if len(id) >= nodeIDWidth {
		return id[:nodeIDWidth]
	}
	return id + strings.Repeat("_", nodeIDWidth-len(id))
}

// Nodes renders the CLUSTER NODES text format: one line per node across
// local ∪ peer nodes of tenant, each
// "<id> <host:port>@<bus-port> master - 0 0 <epoch> connected <slot-ranges…>".
// The proxy has no cluster bus, so the bus port equals the service port.
func Nodes(tenant *meta.Tenant) string {
	var b strings.Builder
	for _, n := range tenant.AllNodes() {
		writeNodeLine(&b, tenant, n)
	}
	return b.String()
}

func writeNodeLine(b *strings.Builder, tenant *meta.Tenant, n *meta.Node) {
	busPort := addrPort(n.Addr)
	fmt.Fprintf(b, "%s %s@%s master - 0 0 %d connected",
		NodeID(tenant.Name, n.Addr), n.Addr, busPort, tenant.Epoch)
	for _, r := range n.Slots {
		fmt.Fprintf(b, " %s", r)
	}
	b.WriteString("\n")
}

// addrPort extracts the port substring from a host:port address, for the
// synthetic "@<bus-port>" suffix.
func addrPort(addr string) string {
	i := strings.LastIndexByte(addr, ':')
	if i == -1 {
		return addr
	}
	return addr[i+1:]
}

// Slots renders the CLUSTER SLOTS RESP array: one array element per slot
// range, `[start, end, [host, port, id]]` (master only, no replicas).
func Slots(tenant *meta.Tenant) resp.Value {
	var out []resp.Value
	for _, n := range tenant.AllNodes() {
		host, port := splitAddr(n.Addr)
		for _, r := range n.Slots {
			entry := resp.NewArray([]resp.Value{
				resp.NewInteger(int64(r.Start)),
				resp.NewInteger(int64(r.End)),
				resp.NewArray([]resp.Value{
					resp.NewBulkString([]byte(host)),
					resp.NewInteger(int64(port)),
					resp.NewBulkString([]byte(NodeID(tenant.Name, n.Addr))),
				}),
			})
			out = append(out, entry)
		}
	}
	return resp.NewArray(out)
}

func splitAddr(addr string) (string, int) {
	i := strings.LastIndexByte(addr, ':')
	if i == -1 {
		return addr, 0
	}
	port, _ := strconv.Atoi(addr[i+1:])
	return addr[:i], port
}

// Info renders the CLUSTER INFO text block for tenant.
func Info(tenant *meta.Tenant) string {
	covered := 0
	for _, n := range tenant.AllNodes() {
		for _, r := range n.Slots {
			covered += r.End - r.Start + 1
		}
	}
	state := "ok"
	if covered < 16384 {
		state = "fail"
	}
	return fmt.Sprintf(
		"cluster_state:%s\r\ncluster_slots_assigned:%d\r\ncluster_known_nodes:%d\r\ncluster_current_epoch:%d\r\n",
		state, covered, len(tenant.AllNodes()), tenant.Epoch,
	)
}
