package state

import "fmt"

// Manager holds the current materialized state for a single actor and
// turns draft mutations into patch pairs.
type Manager struct {
	current Value
}

// NewManager starts a Manager at defaultState.
func NewManager(defaultState Value) *Manager {
	return &Manager{current: DeepCopy(defaultState)}
}

// Current returns the materialized state. Callers must not mutate the
// returned value; treat it as read-only.
func (m *Manager) Current() Value {
	return m.current
}

// Recipe receives a draft of the current state and mutates it freely;
// whatever it returns becomes the new state. The draft is a deep copy,
// so a recipe that panics or is discarded never corrupts m.current.
type Recipe func(draft Value) Value

// UpdateState runs recipe against a draft of the current state and
// records the structural diff as forward/inverse patch lists. The
// materialized state becomes current + forward. This is atomic with
// respect to the journal: callers append forward/inverse together or
// not at all.
func (m *Manager) UpdateState(recipe Recipe) (forward, inverse []Patch, err error) {
	draft := DeepCopy(m.current)
	next, recErr := safeRecipe(recipe, draft)
	if recErr != nil {
		return nil, nil, recErr
	}
	forward, inverse = Diff(m.current, next)
	m.current = next
	return forward, inverse, nil
}

func safeRecipe(recipe Recipe, draft Value) (next Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("state: recipe panicked: %v", r)
		}
	}()
	return recipe(draft), nil
}

// ApplyForward advances m.current by forward without re-running a
// recipe; used during journal replay.
func (m *Manager) ApplyForward(forward []Patch) error {
	next, err := Apply(m.current, forward)
	if err != nil {
		return err
	}
	m.current = next
	return nil
}

// Compensate applies inverse to m.current, used to roll back a failed
// invocation's partial patches or to undo the last accepted
// StatePatches entry.
func (m *Manager) Compensate(inverse []Patch) error {
	next, err := Apply(m.current, inverse)
	if err != nil {
		return err
	}
	m.current = next
	return nil
}

// Reset replaces the materialized state wholesale, used when hydrating
// an actor from a persisted snapshot.
func (m *Manager) Reset(v Value) {
	m.current = DeepCopy(v)
}
