package state

import "testing"

func TestUpdateState_RoundTrip(t *testing.T) {
	m := NewManager(map[string]Value{"balance": float64(1000)})

	forward, inverse, err := m.UpdateState(func(draft Value) Value {
		d := draft.(map[string]Value)
		out := map[string]Value{}
		for k, v := range d {
			out[k] = v
		}
		out["reserved"] = float64(100)
		out["available"] = float64(900)
		return out
	})
	if err != nil {
		t.Fatalf("UpdateState: %v", err)
	}

	want := map[string]Value{"balance": float64(1000), "reserved": float64(100), "available": float64(900)}
	if !Equal(m.Current(), want) {
		t.Fatalf("got %v, want %v", m.Current(), want)
	}

	// apply(apply(s, forward), inverse) == s
	afterForward, err := Apply(map[string]Value{"balance": float64(1000)}, forward)
	if err != nil {
		t.Fatalf("apply forward: %v", err)
	}
	if !Equal(afterForward, want) {
		t.Fatalf("forward patch mismatch: got %v want %v", afterForward, want)
	}
	afterInverse, err := Apply(afterForward, inverse)
	if err != nil {
		t.Fatalf("apply inverse: %v", err)
	}
	if !Equal(afterInverse, map[string]Value{"balance": float64(1000)}) {
		t.Fatalf("round trip failed: got %v", afterInverse)
	}
}

// TestCompensation checks that an update followed by a rollback via
// the recorded inverse patches returns state to exactly its
// pre-invocation value.
func TestCompensation(t *testing.T) {
	m := NewManager(map[string]Value{"balance": float64(1000)})

	_, inverse, err := m.UpdateState(func(draft Value) Value {
		d := draft.(map[string]Value)
		out := map[string]Value{}
		for k, v := range d {
			out[k] = v
		}
		out["reserved"] = float64(100)
		out["available"] = float64(900)
		return out
	})
	if err != nil {
		t.Fatalf("UpdateState: %v", err)
	}

	if err := m.Compensate(inverse); err != nil {
		t.Fatalf("Compensate: %v", err)
	}
	want := map[string]Value{"balance": float64(1000)}
	if !Equal(m.Current(), want) {
		t.Fatalf("after compensation got %v, want %v", m.Current(), want)
	}
}

func TestDiff_ArrayAppend(t *testing.T) {
	old := map[string]Value{"items": []Value{"a", "b"}}
	next := map[string]Value{"items": []Value{"a", "b", "c"}}
	forward, inverse := Diff(old, next)

	got, err := Apply(old, forward)
	if err != nil {
		t.Fatalf("apply forward: %v", err)
	}
	if !Equal(got, next) {
		t.Fatalf("got %v want %v", got, next)
	}
	back, err := Apply(got, inverse)
	if err != nil {
		t.Fatalf("apply inverse: %v", err)
	}
	if !Equal(back, old) {
		t.Fatalf("round trip failed: got %v want %v", back, old)
	}
}

func TestDiff_NoChangeProducesNoPatches(t *testing.T) {
	v := map[string]Value{"a": float64(1)}
	forward, inverse := Diff(v, DeepCopy(v))
	if len(forward) != 0 || len(inverse) != 0 {
		t.Fatalf("expected no patches for identical values, got forward=%v inverse=%v", forward, inverse)
	}
}
