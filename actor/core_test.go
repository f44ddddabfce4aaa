package actor

import (
	"context"
	"testing"
	"time"

	"github.com/loomrun/loom/journal"
	"github.com/loomrun/loom/memory"
	"github.com/loomrun/loom/state"
)

type stubActivities struct {
	output interface{}
	err    error
	calls  int
}

func (s *stubActivities) Execute(ctx context.Context, actorType, version string, input interface{}) (interface{}, error) {
	s.calls++
	return s.output, s.err
}

type stubSpawner struct {
	childID string
	err     error
}

func (s *stubSpawner) Spawn(ctx context.Context, parent Identity, childType string, input interface{}) (string, error) {
	return s.childID, s.err
}

type stubEvents struct {
	payload interface{}
	err     error
}

func (s *stubEvents) Await(ctx context.Context, id Identity, eventName string, timeout time.Duration) (interface{}, error) {
	return s.payload, s.err
}

func newTestCore() (*Core, *journal.Journal) {
	id := Identity{TenantID: "acme", ActorType: "order", ActorID: "o1"}
	mgr := state.NewManager(map[string]state.Value{})
	jrnl := journal.New()
	c := NewCore(id, mgr, jrnl, &stubActivities{output: "done"}, &stubSpawner{childID: "child-1"}, &stubEvents{payload: "evt-payload"}, nil, nil)
	return c, jrnl
}

func TestCallActivity_RecordsScheduledThenAckedCompleted(t *testing.T) {
	c, jrnl := newTestCore()
	out, err := c.CallActivity(context.Background(), "shipping", "v1", map[string]interface{}{"x": 1})
	if err != nil {
		t.Fatalf("CallActivity: %v", err)
	}
	if out != "done" {
		t.Fatalf("unexpected output: %v", out)
	}

	entries := jrnl.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 journal entries, got %d", len(entries))
	}
	if entries[0].MarkerKind != journal.MarkerActivityScheduled || entries[0].Acked != true {
		t.Fatalf("expected scheduled marker acked, got %+v", entries[0])
	}
	if entries[1].MarkerKind != journal.MarkerActivityCompleted {
		t.Fatalf("expected completed marker, got %+v", entries[1])
	}
}

func TestSpawnChild_ReturnsIDAndAcksMarker(t *testing.T) {
	c, jrnl := newTestCore()
	childID, err := c.SpawnChild(context.Background(), "fulfillment", map[string]interface{}{})
	if err != nil {
		t.Fatalf("SpawnChild: %v", err)
	}
	if childID != "child-1" {
		t.Fatalf("unexpected child id: %q", childID)
	}
	entries := jrnl.Entries()
	if len(entries) != 1 || entries[0].MarkerKind != journal.MarkerSpawnChild || !entries[0].Acked {
		t.Fatalf("expected one acked SpawnChild marker, got %+v", entries)
	}
}

func TestWaitForEvent_ReturnsPayloadAndAcksAwaited(t *testing.T) {
	c, jrnl := newTestCore()
	payload, err := c.WaitForEvent(context.Background(), "approved", time.Second)
	if err != nil {
		t.Fatalf("WaitForEvent: %v", err)
	}
	if payload != "evt-payload" {
		t.Fatalf("unexpected payload: %v", payload)
	}
	entries := jrnl.Entries()
	if len(entries) != 2 || entries[0].MarkerKind != journal.MarkerEventAwaited || !entries[0].Acked {
		t.Fatalf("expected acked EventAwaited marker, got %+v", entries)
	}
	if entries[1].MarkerKind != journal.MarkerEventReceived {
		t.Fatalf("expected EventReceived marker, got %+v", entries[1])
	}
}

func TestUpdateState_RecordsForwardAndInversePatches(t *testing.T) {
	c, jrnl := newTestCore()
	err := c.UpdateState(func(draft state.Value) state.Value {
		m := draft.(map[string]state.Value)
		m["status"] = "shipped"
		return m
	})
	if err != nil {
		t.Fatalf("UpdateState: %v", err)
	}
	m := c.State().(map[string]state.Value)
	if m["status"] != "shipped" {
		t.Fatalf("expected updated state, got %v", m)
	}
	entries := jrnl.Entries()
	if len(entries) != 1 || entries[0].Kind != journal.EntryStatePatches {
		t.Fatalf("expected one StatePatches entry, got %+v", entries)
	}
	if len(entries[0].Patches) == 0 || len(entries[0].InversePatches) == 0 {
		t.Fatalf("expected non-empty forward/inverse patches")
	}
}

func TestSuspensionPoints_ErrorWhenPortNotConfigured(t *testing.T) {
	id := Identity{TenantID: "acme", ActorType: "order", ActorID: "o2"}
	mgr := state.NewManager(map[string]state.Value{})
	c := NewCore(id, mgr, journal.New(), nil, nil, nil, nil, nil)

	if _, err := c.CallActivity(context.Background(), "x", "v1", nil); err == nil {
		t.Fatalf("expected error from unconfigured activities")
	}
	if _, err := c.SpawnChild(context.Background(), "x", nil); err == nil {
		t.Fatalf("expected error from unconfigured spawner")
	}
	if _, err := c.WaitForEvent(context.Background(), "x", time.Second); err == nil {
		t.Fatalf("expected error from unconfigured events")
	}
	if _, err := c.GetConfig(context.Background(), "x"); err == nil {
		t.Fatalf("expected error from unconfigured resolver")
	}
}

func TestMemoryHelpers_NoopWithoutBackend(t *testing.T) {
	c, _ := newTestCore()
	if id := c.Remember(context.Background(), memory.Item{Content: "x"}, memory.AddOptions{}); id != "" {
		t.Fatalf("expected empty id without memory backend, got %q", id)
	}
	if items := c.Recall(context.Background(), "t1", 10); items != nil {
		t.Fatalf("expected nil recall without memory backend")
	}
	if _, ok := c.CheckCache(context.Background(), []float32{1, 0}, memory.CacheOptions{}); ok {
		t.Fatalf("expected cache miss without memory backend")
	}
}

func TestMemoryHelpers_DelegateToIndexWhenConfigured(t *testing.T) {
	id := Identity{TenantID: "acme", ActorType: "order", ActorID: "o3"}
	mgr := state.NewManager(map[string]state.Value{})
	idx := memory.NewIndex(memory.NewInMemoryVectorIndex())
	c := NewCore(id, mgr, journal.New(), nil, nil, nil, nil, idx)

	memID := c.Remember(context.Background(), memory.Item{ThreadID: "t1", Content: "hello"}, memory.AddOptions{})
	if memID == "" {
		t.Fatalf("expected non-empty memory id")
	}
	items := c.Recall(context.Background(), "t1", 10)
	if len(items) != 1 || items[0].Content != "hello" {
		t.Fatalf("unexpected recall result: %+v", items)
	}
}
