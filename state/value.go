// Package state implements the copy-on-write actor state tree and the
// structural-diff patch engine behind updateState(recipe) and its
// replay contract ("do not require reflection; the value tree is
// explicit").
//
// Grounded on the backup-before-mutate / roll-back-on-failure shape in
// other_examples/23018aed_hashmap-kz-katomik (apply.go) and the
// append-only record log in
// other_examples/0a64582a_quantumlife-canon-core (storelog/log.go),
// reworked from Kubernetes-resource and generic-log semantics onto an
// explicit tagged-union value tree.
package state

import "fmt"

// Value is one of null (nil), bool, float64, string, []Value (list), or
// map[string]Value (map). Go's dynamic typing stands in for an
// explicit tagged union; no other concrete type may appear in the tree.
type Value = interface{}

// DeepCopy returns a value with no shared mutable structure with v, so a
// draft can diverge from the materialized state without it observing
// the mutation until the diff is applied.
func DeepCopy(v Value) Value {
	switch t := v.(type) {
	case map[string]Value:
		out := make(map[string]Value, len(t))
		for k, val := range t {
			out[k] = DeepCopy(val)
		}
		return out
	case []Value:
		out := make([]Value, len(t))
		for i, val := range t {
			out[i] = DeepCopy(val)
		}
		return out
	default:
		// bool, float64, string, nil are all immutable in Go's value
		// semantics; no copy needed.
		return v
	}
}

// Equal reports whether two values are structurally identical.
func Equal(a, b Value) bool {
	switch at := a.(type) {
	case map[string]Value:
		bt, ok := b.(map[string]Value)
		if !ok || len(at) != len(bt) {
			return false
		}
		for k, v := range at {
			bv, ok := bt[k]
			if !ok || !Equal(v, bv) {
				return false
			}
		}
		return true
	case []Value:
		bt, ok := b.([]Value)
		if !ok || len(at) != len(bt) {
			return false
		}
		for i := range at {
			if !Equal(at[i], bt[i]) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

func asMap(v Value) (map[string]Value, bool) {
	m, ok := v.(map[string]Value)
	return m, ok
}

func asList(v Value) ([]Value, bool) {
	l, ok := v.([]Value)
	return l, ok
}

func mustMap(v Value, context string) map[string]Value {
	m, ok := asMap(v)
	if !ok {
		panic(fmt.Sprintf("state: expected map at %s, got %T", context, v))
	}
	return m
}

func mustList(v Value, context string) []Value {
	l, ok := asList(v)
	if !ok {
		panic(fmt.Sprintf("state: expected list at %s, got %T", context, v))
	}
	return l
}
