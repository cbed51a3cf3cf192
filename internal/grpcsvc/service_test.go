package grpcsvc

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"umproxy/internal/meta"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

type fakeSource map[string]interface{}

func (f fakeSource) GetStats() map[string]interface{} { return f }

func newTestService(t *testing.T) *ProxyModuleService {
	t.Helper()

	store := meta.NewStore()
	tenant := &meta.Tenant{
		Name:  "mydb",
		Epoch: 7,
		LocalNodes: []*meta.Node{
			{Addr: "127.0.0.1:6379", Slots: []meta.SlotRange{{Start: 0, End: 16383}}},
		},
	}
	if err := store.ApplyTenant("mydb", tenant); err != nil {
		t.Fatalf("ApplyTenant() error = %v", err)
	}

	sources := map[string]StatsSource{
		"backends": fakeSource{"endpoints": 1},
	}
	return NewModuleService(store, sources, func() int64 { return 3 }, nil, testLogger())
}

func TestGetStatus(t *testing.T) {
	svc := newTestService(t)

	status, err := svc.GetStatus(context.Background())
	if err != nil {
		t.Fatalf("GetStatus() error = %v", err)
	}
	if status["status"] != "healthy" {
		t.Errorf("status = %v, want healthy", status["status"])
	}
	if status["epoch"] != int64(7) {
		t.Errorf("epoch = %v, want 7", status["epoch"])
	}
	if status["tenants"] != 1 {
		t.Errorf("tenants = %v, want 1", status["tenants"])
	}
	if status["sessions"] != int64(3) {
		t.Errorf("sessions = %v, want 3", status["sessions"])
	}
}

func TestGetStatsIncludesTenantsAndSources(t *testing.T) {
	svc := newTestService(t)

	stats, err := svc.GetStats(context.Background())
	if err != nil {
		t.Fatalf("GetStats() error = %v", err)
	}

	tenants, ok := stats["tenants"].(map[string]interface{})
	if !ok {
		t.Fatalf("tenants = %T, want map", stats["tenants"])
	}
	mydb, ok := tenants["mydb"].(map[string]interface{})
	if !ok {
		t.Fatalf("tenants[mydb] = %T, want map", tenants["mydb"])
	}
	if mydb["epoch"] != int64(7) {
		t.Errorf("mydb epoch = %v, want 7", mydb["epoch"])
	}
	if mydb["local_nodes"] != 1 {
		t.Errorf("mydb local_nodes = %v, want 1", mydb["local_nodes"])
	}

	backends, ok := stats["backends"].(map[string]interface{})
	if !ok {
		t.Fatalf("backends = %T, want map", stats["backends"])
	}
	if backends["endpoints"] != 1 {
		t.Errorf("backends endpoints = %v, want 1", backends["endpoints"])
	}
}

func TestReloadInvokesHook(t *testing.T) {
	called := false
	svc := NewModuleService(meta.NewStore(), nil, nil, func() { called = true }, testLogger())

	if err := svc.Reload(context.Background(), true); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if !called {
		t.Error("Reload() did not invoke the hook")
	}
}

// descHandler finds a method handler on the registered service
// descriptor by name.
func descHandler(t *testing.T, name string) unaryHandler {
	t.Helper()
	for _, m := range moduleServiceDesc.Methods {
		if m.MethodName == name {
			return m.Handler
		}
	}
	t.Fatalf("method %s not in moduleServiceDesc", name)
	return nil
}

func TestDescriptorServesStatusDocument(t *testing.T) {
	svc := newTestService(t)

	decodeEmpty := func(v interface{}) error {
		if _, ok := v.(*emptypb.Empty); !ok {
			t.Fatalf("request type = %T, want *emptypb.Empty", v)
		}
		return nil
	}

	out, err := descHandler(t, "GetStatus")(svc, context.Background(), decodeEmpty, nil)
	if err != nil {
		t.Fatalf("GetStatus handler error = %v", err)
	}
	doc, ok := out.(*structpb.Struct)
	if !ok {
		t.Fatalf("reply type = %T, want *structpb.Struct", out)
	}
	if got := doc.GetFields()["status"].GetStringValue(); got != "healthy" {
		t.Errorf("status = %q, want healthy", got)
	}
	if got := doc.GetFields()["epoch"].GetNumberValue(); got != 7 {
		t.Errorf("epoch = %v, want 7", got)
	}
}

// stubModule records the graceful flag Reload receives; every other
// method is unused by the test it serves.
type stubModule struct {
	ModuleService
	graceful *bool
}

func (s stubModule) Reload(ctx context.Context, graceful bool) error {
	*s.graceful = graceful
	return nil
}

func TestDescriptorReloadPassesGraceful(t *testing.T) {
	var gotGraceful bool
	svc := stubModule{graceful: &gotGraceful}

	req, err := structpb.NewStruct(map[string]interface{}{"graceful": true})
	if err != nil {
		t.Fatalf("NewStruct() error = %v", err)
	}
	decode := func(v interface{}) error {
		proto.Merge(v.(*structpb.Struct), req)
		return nil
	}

	out, err := descHandler(t, "Reload")(svc, context.Background(), decode, nil)
	if err != nil {
		t.Fatalf("Reload handler error = %v", err)
	}
	if _, ok := out.(*emptypb.Empty); !ok {
		t.Fatalf("reply type = %T, want *emptypb.Empty", out)
	}
	if !gotGraceful {
		t.Error("graceful flag did not reach Reload")
	}
}

func TestHealthCheck(t *testing.T) {
	svc := newTestService(t)

	state, err := svc.HealthCheck(context.Background())
	if err != nil {
		t.Fatalf("HealthCheck() error = %v", err)
	}
	if state != "healthy" {
		t.Errorf("HealthCheck() = %q, want healthy", state)
	}
}
