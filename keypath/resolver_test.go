package keypath

import (
	"reflect"
	"testing"
)

func TestFallbackPaths_ScenarioOne(t *testing.T) {
	ctx := Context{ClientID: "acme", TenantID: "finance", Environment: "prod"}
	paths := FallbackPaths("llm", ctx)

	store := map[string]string{
		"global/llm":          "A",
		"acme/llm":            "B",
		"acme/finance/llm":    "C",
	}

	resolve := func(paths []string) (string, bool) {
		for _, p := range paths {
			if v, ok := store[p]; ok {
				return v, true
			}
		}
		return "", false
	}

	got, ok := resolve(paths)
	if !ok || got != "C" {
		t.Fatalf("expected C, got %q (ok=%v)", got, ok)
	}

	delete(store, "acme/finance/llm")
	got, ok = resolve(FallbackPaths("llm", ctx))
	if !ok || got != "B" {
		t.Fatalf("expected B after delete, got %q (ok=%v)", got, ok)
	}

	delete(store, "acme/llm")
	got, ok = resolve(FallbackPaths("llm", ctx))
	if !ok || got != "A" {
		t.Fatalf("expected A after second delete, got %q (ok=%v)", got, ok)
	}
}

func TestFallbackPaths_TerminalFallback(t *testing.T) {
	paths := FallbackPaths("llm", Context{})
	if len(paths) != 2 {
		t.Fatalf("expected exactly bare key + global fallback for empty context, got %v", paths)
	}
	want := []string{"llm", "global/llm"}
	if !reflect.DeepEqual(paths, want) {
		t.Fatalf("got %v, want %v", paths, want)
	}
}

func TestFallbackPaths_CardinalityOrder(t *testing.T) {
	ctx := Context{ClientID: "acme", TenantID: "finance"}
	paths := FallbackPaths("k", ctx)
	want := []string{
		"acme/finance/k",
		"acme/k",
		"finance/k",
		"k",
		"global/k",
	}
	if !reflect.DeepEqual(paths, want) {
		t.Fatalf("got %v, want %v", paths, want)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		path string
		ok   bool
	}{
		{"acme/finance/llm", true},
		{"", false},
		{"/acme/llm", false},
		{"acme/llm/", false},
		{"acme//llm", false},
		{"acme/fin ance/llm", false},
		{"acme/llm$", false},
	}
	for _, c := range cases {
		err := Validate(c.path)
		if (err == nil) != c.ok {
			t.Errorf("Validate(%q) = %v, want ok=%v", c.path, err, c.ok)
		}
	}
}
