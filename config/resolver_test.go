package config

import (
	"context"
	"testing"
	"time"

	"github.com/loomrun/loom/keypath"
)

func TestLayeredResolver_ReadThroughCacheRefresh(t *testing.T) {
	cache := NewMemoryStore()
	persist := NewMemoryPersistStore()
	r := NewLayeredResolver(cache, persist, time.Minute)
	ctx := context.Background()

	if err := persist.Set(ctx, "global/timeout", float64(30)); err != nil {
		t.Fatalf("persist.Set: %v", err)
	}

	val, ok, err := r.Get(ctx, "global/timeout")
	if err != nil || !ok {
		t.Fatalf("Get: val=%v ok=%v err=%v", val, ok, err)
	}
	if val != float64(30) {
		t.Fatalf("got %v, want 30", val)
	}

	if _, ok, _ := cache.Get(ctx, "global/timeout"); !ok {
		t.Fatalf("expected cache to be refreshed after persist hit")
	}
}

func TestGetConfig_MissingListsSearchedPaths(t *testing.T) {
	r := NewLayeredResolver(nil, NewMemoryPersistStore(), time.Minute)
	ctx := context.Background()

	_, err := r.GetConfig(ctx, "apiKey", keypath.Context{TenantID: "acme"})
	if err == nil {
		t.Fatalf("expected ConfigMissing error")
	}
	msg := err.Error()
	if !contains(msg, "acme/apiKey") || !contains(msg, "global/apiKey") {
		t.Fatalf("error message %q does not enumerate searched paths", msg)
	}
}

func TestTryGetConfig_AbsentIsSilent(t *testing.T) {
	r := NewLayeredResolver(nil, NewMemoryPersistStore(), time.Minute)
	ctx := context.Background()

	_, ok, err := r.TryGetConfig(ctx, "missingKey", keypath.Context{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected absent result")
	}
}

func TestOnChange_SynchronousNotificationSurvivesPanickingListener(t *testing.T) {
	r := NewLayeredResolver(nil, NewMemoryPersistStore(), time.Minute)
	ctx := context.Background()

	var delivered ChangeEvent
	got := false
	r.OnChange(func(evt ChangeEvent) { panic("boom") })
	unsubscribe := r.OnChange(func(evt ChangeEvent) {
		delivered = evt
		got = true
	})
	defer unsubscribe()

	if err := r.Set(ctx, "global/flag", true); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if !got {
		t.Fatalf("expected second listener to still be notified after first panicked")
	}
	if delivered.Path != "global/flag" || delivered.Value != true {
		t.Fatalf("unexpected event: %+v", delivered)
	}
}

func contains(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}
