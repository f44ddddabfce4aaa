package dispatcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/loomrun/loom/actor"
	"github.com/loomrun/loom/idempotency"
	"github.com/loomrun/loom/journal"
	"github.com/loomrun/loom/lease"
	"github.com/loomrun/loom/queue"
	"github.com/loomrun/loom/resilience"
	"github.com/loomrun/loom/state"
)

func newTestRuntime(handlers Handlers) (*Runtime, *queue.MemoryQueue, *actor.InMemoryStatePort) {
	q := queue.NewMemoryQueue(resilience.RetryConfig{MaxAttempts: 1})
	states := actor.NewInMemoryStatePort()
	deps := Deps{
		Queue:    q,
		States:   states,
		Leases:   lease.NewInMemoryLease(),
		Idem:     idempotency.NewStore(nil, time.Hour),
		Handlers: handlers,
	}
	cfg := DefaultConfig("orders")
	cfg.InvocationTimeout = 5 * time.Second
	return New(cfg, deps), q, states
}

// TestCompensation_FailedExecuteRollsBackStateAndJournal: an actor
// updates {balance:1000} to {balance:1000, reserved:100, available:900}
// then fails; the persisted state reverts to {balance:1000} and the
// journal contains exactly one Invocation, one StatePatches, and one
// compensating StatePatches entry.
func TestCompensation_FailedExecuteRollsBackStateAndJournal(t *testing.T) {
	handlers := Handlers{
		"account": func(ctx context.Context, c *actor.Core, input interface{}) (interface{}, error) {
			err := c.UpdateState(func(draft state.Value) state.Value {
				m := draft.(map[string]state.Value)
				m["reserved"] = float64(100)
				m["available"] = float64(900)
				return m
			})
			if err != nil {
				return nil, err
			}
			return nil, errors.New("insufficient downstream authorization")
		},
	}
	rt, q, states := newTestRuntime(handlers)

	id := actor.Identity{TenantID: "acme", ActorType: "account", ActorID: "a1"}
	initial := actor.Record{
		ActorID: "a1",
		State:   map[string]state.Value{"balance": float64(1000)},
	}
	if err := states.Save(context.Background(), id, initial); err != nil {
		t.Fatalf("seed record: %v", err)
	}

	msg := actor.Message{
		MessageID:   "m1",
		ActorRef:    id,
		MessageType: "reserve",
		Payload:     map[string]interface{}{},
		Metadata:    actor.MessageMetadata{ActorType: "account", Timestamp: time.Now()},
	}
	if _, err := q.Publish(context.Background(), "orders", msg, queue.PublishOptions{MaxAttempts: 1}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	sub, err := rt.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	defer sub.Close()

	waitFor(t, func() bool {
		rec, ok, _ := states.Load(context.Background(), id)
		return ok && rec.LastInvocation == "m1"
	})

	rec, ok, err := states.Load(context.Background(), id)
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}

	stateMap, ok := rec.State.(map[string]state.Value)
	if !ok {
		t.Fatalf("unexpected state type %T", rec.State)
	}
	if len(stateMap) != 1 || stateMap["balance"] != float64(1000) {
		t.Fatalf("expected state reverted to {balance:1000}, got %v", stateMap)
	}

	entries := rec.JournalEntries
	var kinds []journal.EntryKind
	for _, e := range entries {
		kinds = append(kinds, e.Kind)
	}
	if len(entries) != 3 {
		t.Fatalf("expected exactly 3 journal entries, got %d: %+v", len(entries), kinds)
	}
	if entries[0].Kind != journal.EntryInvocation {
		t.Fatalf("expected entry 0 to be Invocation, got %s", entries[0].Kind)
	}
	if entries[1].Kind != journal.EntryStatePatches || entries[1].Compensating {
		t.Fatalf("expected entry 1 to be the original StatePatches, got %+v", entries[1])
	}
	if entries[2].Kind != journal.EntryStatePatches || !entries[2].Compensating {
		t.Fatalf("expected entry 2 to be a compensating StatePatches, got %+v", entries[2])
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}
