// Package actor implements the Actor Core: the per-invocation handler
// context (execute/callActivity/spawnChild/
// waitForEvent/getConfig/memory helpers) and the resident-actor
// lifecycle state machine (Created -> Hydrating -> Executing ->
// Persisting -> Idle -> Evicted).
//
// Grounded on other_examples/2c65974f_teradata-labs-loom
// (pkg/agent/types.go)'s Agent struct: a backend-agnostic core holding
// references to memory, config, and tool/activity execution, assembled
// once and driven through a request lifecycle. Core plays the same
// role here, re-targeted at this system's journal-backed replay and
// suspension-point semantics instead of an LLM conversation loop.
package actor

import (
	"time"

	"github.com/loomrun/loom/journal"
)

// Identity addresses one actor instance.
type Identity struct {
	TenantID  string
	ActorType string
	ActorID   string
}

func (id Identity) String() string {
	return id.TenantID + "/" + id.ActorType + "/" + id.ActorID
}

// MessageMetadata carries delivery bookkeeping.
type MessageMetadata struct {
	Timestamp  time.Time `json:"timestamp"`
	Priority   int       `json:"priority"`
	RetryCount int       `json:"retry_count"`
	ActorType  string    `json:"actor_type"`
}

// Message is the unit of work the dispatcher delivers to an actor.
type Message struct {
	MessageID      string            `json:"message_id"`
	ActorRef       Identity          `json:"actor_ref"`
	MessageType    string            `json:"message_type"`
	CorrelationID  string            `json:"correlation_id,omitempty"`
	Payload        interface{}       `json:"payload"`
	TraceContext   map[string]string `json:"trace_context,omitempty"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
	Metadata       MessageMetadata   `json:"metadata"`
}

// Status is a position in the actor lifecycle state machine.
type Status string

const (
	StatusCreated    Status = "Created"
	StatusHydrating  Status = "Hydrating"
	StatusExecuting  Status = "Executing"
	StatusPersisting Status = "Persisting"
	StatusIdle       Status = "Idle"
	StatusEvicted    Status = "Evicted"
)

// Record is the durable projection of an actor: its materialized
// state, its full journal, and the id of the last invocation applied,
//. StatePort implementations load and save exactly this
// shape.
type Record struct {
	ActorID        string          `json:"actor_id"`
	State          interface{}     `json:"state"`
	JournalEntries []journal.Entry `json:"journal"`
	LastInvocation string          `json:"last_invocation"`
	LogicalClock   int64           `json:"logical_clock"`
	UpdatedAt      time.Time       `json:"updated_at"`
}
