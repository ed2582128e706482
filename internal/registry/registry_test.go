package registry_test

import (
	"slices"
	"testing"

	"github.com/notifyhub/realtime-notify/internal/registry"
)

type stubChannel struct{ name string }

func (s *stubChannel) Emit(event string, payload any) error { return nil }

func TestRegistry_RegisterAndGet(t *testing.T) {
	reg := registry.New()
	ch := &stubChannel{name: "a"}

	if replaced := reg.Register("u1", ch); replaced {
		t.Fatal("first registration must not report a replacement")
	}

	got, ok := reg.Get("u1")
	if !ok || got != ch {
		t.Fatal("expected to get back the registered channel")
	}
	if reg.Count() != 1 {
		t.Fatalf("expected count 1, got %d", reg.Count())
	}
}

// TestRegistry_LastWriteWins verifies that a second registration for the
// same user silently replaces the first channel.
func TestRegistry_LastWriteWins(t *testing.T) {
	reg := registry.New()
	first := &stubChannel{name: "first"}
	second := &stubChannel{name: "second"}

	reg.Register("u1", first)
	if replaced := reg.Register("u1", second); !replaced {
		t.Fatal("expected replacement to be reported")
	}

	got, _ := reg.Get("u1")
	if got != second {
		t.Fatal("expected the newest channel to win")
	}
	if reg.Count() != 1 {
		t.Fatalf("expected count 1 after replacement, got %d", reg.Count())
	}
}

func TestRegistry_Unregister(t *testing.T) {
	reg := registry.New()
	reg.Register("u1", &stubChannel{})
	reg.Register("u2", &stubChannel{})

	reg.Unregister("u1")

	if _, ok := reg.Get("u1"); ok {
		t.Fatal("expected u1 to be gone")
	}
	if _, ok := reg.Get("u2"); !ok {
		t.Fatal("expected u2 to survive")
	}
}

func TestRegistry_UnregisterUnknownIsNoOp(t *testing.T) {
	reg := registry.New()
	reg.Unregister("ghost") // must not panic
	if reg.Count() != 0 {
		t.Fatalf("expected empty registry, got %d", reg.Count())
	}
}

func TestRegistry_UserIDs(t *testing.T) {
	reg := registry.New()
	reg.Register("u1", &stubChannel{})
	reg.Register("u2", &stubChannel{})

	ids := reg.UserIDs()
	slices.Sort(ids)
	if !slices.Equal(ids, []string{"u1", "u2"}) {
		t.Fatalf("unexpected user ids: %v", ids)
	}
}
