package router

import (
	"testing"

	"umproxy/internal/meta"
)

func testTenant() *meta.Tenant {
	return &meta.Tenant{
		Name: "mydb",
		LocalNodes: []*meta.Node{
			{Addr: "127.0.0.1:6379", Slots: []meta.SlotRange{
				{Start: 0, End: 8000, Tag: meta.TagStable},
				{Start: 8001, End: 8100, Tag: meta.TagImporting, PeerAddr: "10.0.0.1:7000"},
				{Start: 8101, End: 8200, Tag: meta.TagMigrating, PeerAddr: "10.0.0.2:7000"},
			}},
		},
		PeerNodes: []*meta.Node{
			{Addr: "127.0.0.1:7000", Slots: []meta.SlotRange{{Start: 8201, End: 16383, Tag: meta.TagStable}}},
		},
	}
}

func TestRouteBasicForward(t *testing.T) {
	// "b" hashes to slot 3300, inside the local stable 0-8000 range.
	d := Route(testTenant(), []string{"SET", "b", "1"}, false)
	if d.Kind != KindForward || d.Endpoint != "127.0.0.1:6379" {
		t.Fatalf("Route() = %+v, want forward to local stable node", d)
	}
}

func TestRouteMovedToPeer(t *testing.T) {
	tenant := &meta.Tenant{
		PeerNodes: []*meta.Node{
			{Addr: "127.0.0.1:7000", Slots: []meta.SlotRange{{Start: 0, End: 16383, Tag: meta.TagStable}}},
		},
	}
	d := Route(tenant, []string{"GET", "a"}, false)
	if d.Kind != KindMoved || d.Addr != "127.0.0.1:7000" {
		t.Fatalf("Route() = %+v, want MOVED to peer node", d)
	}
}

func TestRouteImportingWithoutAsking(t *testing.T) {
	// Force a key whose slot falls in the importing range by constructing
	// a tenant whose entire keyspace is the importing range.
	tenant := &meta.Tenant{
		LocalNodes: []*meta.Node{
			{Addr: "127.0.0.1:6379", Slots: []meta.SlotRange{{Start: 0, End: 16383, Tag: meta.TagImporting, PeerAddr: "10.0.0.1:7000"}}},
		},
	}
	d := Route(tenant, []string{"GET", "a"}, false)
	if d.Kind != KindMoved || d.Addr != "10.0.0.1:7000" {
		t.Fatalf("Route() = %+v, want MOVED to src while importing without ASKING", d)
	}
}

func TestRouteImportingWithAsking(t *testing.T) {
	tenant := &meta.Tenant{
		LocalNodes: []*meta.Node{
			{Addr: "127.0.0.1:6379", Slots: []meta.SlotRange{{Start: 0, End: 16383, Tag: meta.TagImporting, PeerAddr: "10.0.0.1:7000"}}},
		},
	}
	d := Route(tenant, []string{"GET", "a"}, true)
	if d.Kind != KindForward || d.Endpoint != "127.0.0.1:6379" {
		t.Fatalf("Route() = %+v, want local forward while importing with ASKING", d)
	}
}

func TestRouteMigratingCarriesAskFallback(t *testing.T) {
	tenant := &meta.Tenant{
		LocalNodes: []*meta.Node{
			{Addr: "127.0.0.1:6379", Slots: []meta.SlotRange{{Start: 0, End: 16383, Tag: meta.TagMigrating, PeerAddr: "10.0.0.2:7000"}}},
		},
	}
	d := Route(tenant, []string{"GET", "a"}, false)
	if d.Kind != KindForward || d.AskFallbackAddr != "10.0.0.2:7000" {
		t.Fatalf("Route() = %+v, want forward with ASK fallback to dst", d)
	}
}

func TestRouteUncoveredSlot(t *testing.T) {
	tenant := &meta.Tenant{}
	d := Route(tenant, []string{"GET", "a"}, false)
	if d.Kind != KindError {
		t.Fatalf("Route() = %+v, want ERR slot not covered", d)
	}
}

func TestRouteCrossSlot(t *testing.T) {
	tenant := &meta.Tenant{
		LocalNodes: []*meta.Node{
			{Addr: "127.0.0.1:6379", Slots: []meta.SlotRange{{Start: 0, End: 16383, Tag: meta.TagStable}}},
		},
	}
	d := Route(tenant, []string{"MSET", "k1", "a", "k2", "b"}, false)
	if d.Kind != KindError || d.Err != errCrossSlot {
		// k1/k2 might coincidentally hash to the same slot; only assert
		// the error path when they don't.
		if d.Kind == KindForward {
			t.Skip("k1 and k2 happened to hash to the same slot")
		}
		t.Fatalf("Route() = %+v, want CROSSSLOT", d)
	}
}

func TestRouteMetaCommandIsLocal(t *testing.T) {
	d := Route(testTenant(), []string{"PING"}, false)
	if d.Kind != KindLocal {
		t.Fatalf("Route() = %+v, want local for PING", d)
	}
}

func TestRouteUnknownCommand(t *testing.T) {
	d := Route(testTenant(), []string{"NOPE"}, false)
	if d.Kind != KindError {
		t.Fatalf("Route() = %+v, want error for unknown command", d)
	}
}
