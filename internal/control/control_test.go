package control

import (
	"strings"
	"testing"

	"umproxy/internal/meta"
)

func TestParseSlotRangeStable(t *testing.T) {
	r, err := ParseSlotRange("0-8000")
	if err != nil {
		t.Fatalf("ParseSlotRange() error = %v", err)
	}
	if r.Start != 0 || r.End != 8000 || r.Tag != meta.TagStable {
		t.Errorf("ParseSlotRange() = %+v", r)
	}
}

func TestParseSlotRangeMigrating(t *testing.T) {
	r, err := ParseSlotRange("100-200{MIGRATING/10.0.0.1:7000}")
	if err != nil {
		t.Fatalf("ParseSlotRange() error = %v", err)
	}
	if r.Tag != meta.TagMigrating || r.PeerAddr != "10.0.0.1:7000" {
		t.Errorf("ParseSlotRange() = %+v", r)
	}
}

func TestParseSlotRangeImporting(t *testing.T) {
	r, err := ParseSlotRange("100-200{IMPORTING/10.0.0.2:7000}")
	if err != nil {
		t.Fatalf("ParseSlotRange() error = %v", err)
	}
	if r.Tag != meta.TagImporting || r.PeerAddr != "10.0.0.2:7000" {
		t.Errorf("ParseSlotRange() = %+v", r)
	}
}

func TestParseSlotRangeMalformed(t *testing.T) {
	cases := []string{"abc", "8000-100", "-5-10", "0-99999", "100-200{BOGUS/x}"}
	for _, c := range cases {
		if _, err := ParseSlotRange(c); err == nil {
			t.Errorf("ParseSlotRange(%q) expected error", c)
		}
	}
}

func TestParseSetDBSingleTenant(t *testing.T) {
	argv := []string{"5", "NOFLAGS", "mydb", "127.0.0.1:6379", "0-16383"}
	parsed, err := ParseSetDB(argv)
	if err != nil {
		t.Fatalf("ParseSetDB() error = %v", err)
	}
	if parsed.Epoch != 5 {
		t.Errorf("Epoch = %d, want 5", parsed.Epoch)
	}
	tenant, ok := parsed.Tenants["mydb"]
	if !ok {
		t.Fatal("mydb missing from parsed tenants")
	}
	if len(tenant.LocalNodes) != 1 || tenant.LocalNodes[0].Addr != "127.0.0.1:6379" {
		t.Errorf("LocalNodes = %+v", tenant.LocalNodes)
	}
}

func TestParseSetDBMultipleGroups(t *testing.T) {
	argv := []string{"1", "NOFLAGS", "mydb", "127.0.0.1:6379", "0-8000", "mydb", "127.0.0.1:6380", "8001-16383"}
	parsed, err := ParseSetDB(argv)
	if err != nil {
		t.Fatalf("ParseSetDB() error = %v", err)
	}
	if len(parsed.Tenants["mydb"].LocalNodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(parsed.Tenants["mydb"].LocalNodes))
	}
}

func TestParseSetDBRejectsOverlap(t *testing.T) {
	argv := []string{"1", "NOFLAGS", "mydb", "127.0.0.1:6379", "0-100", "200-300", "50-60"}
	if _, err := ParseSetDB(argv); err == nil {
		t.Error("expected overlap rejection")
	}
}

func TestParseSetDBRejectsBadFlags(t *testing.T) {
	argv := []string{"1", "WEIRD", "mydb", "127.0.0.1:6379", "0-100"}
	if _, err := ParseSetDB(argv); err == nil {
		t.Error("expected error for unknown flags")
	}
}

func TestControllerApplySetDBThenSetPeer(t *testing.T) {
	store := meta.NewStore()
	c := NewController(store, "admin")

	if !c.IsAdmin("admin") || c.IsAdmin("mydb") {
		t.Error("IsAdmin gating wrong")
	}

	if err := c.ApplySetDB([]string{"1", "NOFLAGS", "mydb", "127.0.0.1:6379", "0-8000"}); err != nil {
		t.Fatalf("ApplySetDB() error = %v", err)
	}
	if err := c.ApplySetPeer([]string{"2", "NOFLAGS", "mydb", "127.0.0.1:7000", "8001-16383"}); err != nil {
		t.Fatalf("ApplySetPeer() error = %v", err)
	}

	tenant, ok := store.Load().Tenant("mydb")
	if !ok {
		t.Fatal("mydb not installed")
	}
	if len(tenant.LocalNodes) != 1 || len(tenant.PeerNodes) != 1 {
		t.Errorf("tenant = %+v", tenant)
	}

	epoch, lines := c.Info()
	if epoch != 2 {
		t.Errorf("Info() epoch = %d, want 2", epoch)
	}
	if len(lines) != 1 || !strings.Contains(lines[0], "mydb") {
		t.Errorf("Info() lines = %v", lines)
	}
}

func TestControllerApplySetDBStaleEpochRejected(t *testing.T) {
	store := meta.NewStore()
	c := NewController(store, "admin")

	if err := c.ApplySetDB([]string{"5", "NOFLAGS", "mydb", "127.0.0.1:6379", "0-16383"}); err != nil {
		t.Fatalf("ApplySetDB() error = %v", err)
	}
	if err := c.ApplySetDB([]string{"5", "NOFLAGS", "mydb", "127.0.0.1:6379", "0-16383"}); err == nil {
		t.Error("expected error reinstalling the same epoch")
	}
	if err := c.ApplySetDB([]string{"6", "NOFLAGS", "mydb", "127.0.0.1:6379", "0-16383"}); err != nil {
		t.Errorf("newer epoch should be accepted, got error = %v", err)
	}
}
