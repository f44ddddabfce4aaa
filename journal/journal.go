// Package journal implements the append-only invocation/state-patch log
// behind actor replay and its replay contract.
package journal

import (
	"time"

	"github.com/loomrun/loom/state"
)

// MarkerKind enumerates the side-effect markers recorded at each
// suspension point inside a handler.
type MarkerKind string

const (
	MarkerSpawnChild        MarkerKind = "SpawnChild"
	MarkerActivityScheduled MarkerKind = "ActivityScheduled"
	MarkerActivityCompleted MarkerKind = "ActivityCompleted"
	MarkerEventAwaited      MarkerKind = "EventAwaited"
	MarkerEventReceived     MarkerKind = "EventReceived"
)

// EntryKind discriminates the journal entry variant.
type EntryKind string

const (
	EntryInvocation   EntryKind = "Invocation"
	EntryStatePatches EntryKind = "StatePatches"
	EntryMarker       EntryKind = "Marker"
)

// Entry is one append-only journal record. Only the fields relevant to
// Kind are populated; this mirrors a tagged-union shape without
// requiring a Go type-per-variant.
type Entry struct {
	Index   int       `json:"index"`
	Kind    EntryKind `json:"kind"`
	Applied time.Time `json:"applied"`

	// EntryInvocation
	MessageID        string      `json:"message_id,omitempty"`
	PayloadSnapshot  interface{} `json:"payload_snapshot,omitempty"`
	TReceived        time.Time   `json:"t_received,omitempty"`

	// EntryStatePatches
	Patches        []state.Patch `json:"patches,omitempty"`
	InversePatches []state.Patch `json:"inverse_patches,omitempty"`
	Compensating   bool          `json:"compensating,omitempty"`

	// EntryMarker
	MarkerKind MarkerKind  `json:"marker_kind,omitempty"`
	MarkerPayload interface{} `json:"marker_payload,omitempty"`
	Acked      bool        `json:"acked,omitempty"`
}

// Journal is the ordered, append-only entry log for one actor.
type Journal struct {
	entries []Entry
}

func New() *Journal { return &Journal{} }

// FromEntries reconstructs a Journal from a persisted slice, used when
// hydrating an actor record (the journal is authoritative over any
// cached projection on conflict).
func FromEntries(entries []Entry) *Journal {
	return &Journal{entries: append([]Entry(nil), entries...)}
}

func (j *Journal) Entries() []Entry {
	return append([]Entry(nil), j.entries...)
}

func (j *Journal) Len() int { return len(j.entries) }

func (j *Journal) append(e Entry) Entry {
	e.Index = len(j.entries)
	j.entries = append(j.entries, e)
	return e
}

// RecordInvocation appends an Invocation entry.
func (j *Journal) RecordInvocation(messageID string, payload interface{}, received time.Time) Entry {
	return j.append(Entry{
		Kind:            EntryInvocation,
		MessageID:       messageID,
		PayloadSnapshot: payload,
		TReceived:       received,
		Applied:         received,
	})
}

// RecordStatePatches appends a StatePatches entry.
func (j *Journal) RecordStatePatches(forward, inverse []state.Patch, applied time.Time) Entry {
	return j.append(Entry{
		Kind:           EntryStatePatches,
		Patches:        forward,
		InversePatches: inverse,
		Applied:        applied,
	})
}

// RecordMarker appends a Marker entry.
func (j *Journal) RecordMarker(kind MarkerKind, payload interface{}, applied time.Time) Entry {
	return j.append(Entry{
		Kind:          EntryMarker,
		MarkerKind:    kind,
		MarkerPayload: payload,
		Applied:       applied,
	})
}

// AckMarker marks the marker entry at idx as acknowledged by the
// idempotency layer, so replay will not re-drive its side effect;
// markers are re-driven on replay unless already acknowledged.
func (j *Journal) AckMarker(idx int) {
	if idx >= 0 && idx < len(j.entries) && j.entries[idx].Kind == EntryMarker {
		j.entries[idx].Acked = true
	}
}

// CompensateLast pops the most recent StatePatches entry, applies its
// InversePatches to mgr, and appends a new compensating StatePatches
// entry, so the history stays append-only.
func (j *Journal) CompensateLast(mgr *state.Manager, at time.Time) error {
	idx := -1
	for i := len(j.entries) - 1; i >= 0; i-- {
		if j.entries[i].Kind == EntryStatePatches {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil
	}
	last := j.entries[idx]
	if err := mgr.Compensate(last.InversePatches); err != nil {
		return err
	}
	j.append(Entry{
		Kind:           EntryStatePatches,
		Patches:        last.InversePatches,
		InversePatches: last.Patches,
		Applied:        at,
		Compensating:   true,
	})
	return nil
}

// CompensateSince rolls back every StatePatches entry recorded at or
// after sinceIndex, applying their InversePatches to mgr in
// most-recent-first order, and appends a single combined compensating
// StatePatches entry capturing the net reversal. Used by the
// dispatcher to undo an entire failed invocation's state changes in
// one step (CompensateLast instead undoes exactly one
// prior change and is not safe to call in a loop for this purpose,
// since the entry it appends would itself be re-compensated on a
// second call).
func (j *Journal) CompensateSince(mgr *state.Manager, sinceIndex int, at time.Time) error {
	var netForward, netInverse []state.Patch
	for i := len(j.entries) - 1; i >= 0 && i >= sinceIndex; i-- {
		e := j.entries[i]
		if e.Kind != EntryStatePatches {
			continue
		}
		if err := mgr.Compensate(e.InversePatches); err != nil {
			return err
		}
		netForward = append(netForward, e.InversePatches...)
		netInverse = append(netInverse, e.Patches...)
	}
	if len(netForward) == 0 {
		return nil
	}
	j.append(Entry{
		Kind:           EntryStatePatches,
		Patches:        netForward,
		InversePatches: netInverse,
		Applied:        at,
		Compensating:   true,
	})
	return nil
}

// MarkerResolver re-drives the side effect for a marker during replay
// (e.g. republishing a child-spawn or activity request that was never
// acked by the idempotency layer). It is supplied by the actor runtime,
// which knows how to reach the queue/activity ports.
type MarkerResolver func(e Entry) error

// Replay folds entries in order over defaultState, applying forward
// patches and re-driving unacked markers via resolve. It returns the
// reconstructed state, which must be byte-equivalent to the live
// materialized projection.
func Replay(entries []Entry, defaultState state.Value, resolve MarkerResolver) (state.Value, error) {
	mgr := state.NewManager(defaultState)
	for _, e := range entries {
		switch e.Kind {
		case EntryStatePatches:
			if err := mgr.ApplyForward(e.Patches); err != nil {
				return nil, err
			}
		case EntryMarker:
			if !e.Acked && resolve != nil {
				if err := resolve(e); err != nil {
					return nil, err
				}
			}
		case EntryInvocation:
			// Invocation entries carry no state mutation of their own;
			// they exist for idempotency/audit purposes only.
		}
	}
	return mgr.Current(), nil
}
