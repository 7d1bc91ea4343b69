package session

import (
	"errors"
	"sync"
	"testing"
)

func TestRegistry_RegisterAndLookup(t *testing.T) {
	r := NewRegistry()

	s, err := r.Register("user-a", "Alice")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if s.ID == "" {
		t.Fatal("expected a non-empty session ID")
	}
	if s.RoomID != "" {
		t.Fatalf("fresh session should have no room, got %q", s.RoomID)
	}

	got, err := r.Lookup(s.ID)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.Identity != "user-a" || got.Name != "Alice" {
		t.Fatalf("unexpected session %+v", got)
	}
}

func TestRegistry_DuplicateIdentity(t *testing.T) {
	r := NewRegistry()

	if _, err := r.Register("user-a", "Alice"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := r.Register("user-a", "Imposter"); !errors.Is(err, ErrDuplicateIdentity) {
		t.Fatalf("expected ErrDuplicateIdentity, got %v", err)
	}
}

func TestRegistry_IdentityReusableAfterUnregister(t *testing.T) {
	r := NewRegistry()

	s1, err := r.Register("user-a", "Alice")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	r.Unregister(s1.ID)

	s2, err := r.Register("user-a", "Alice")
	if err != nil {
		t.Fatalf("re-register after unregister: %v", err)
	}
	if s2.ID == s1.ID {
		t.Fatal("re-registration must mint a fresh session ID")
	}
	if _, err := r.Lookup(s1.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("terminated session should stay gone, got %v", err)
	}
}

func TestRegistry_UnregisterIdempotent(t *testing.T) {
	r := NewRegistry()

	s, err := r.Register("user-a", "Alice")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	r.Unregister(s.ID)
	r.Unregister(s.ID)
	r.Unregister("never-existed")

	if n := r.Len(); n != 0 {
		t.Fatalf("expected 0 sessions, got %d", n)
	}
}

func TestRegistry_SetRoom(t *testing.T) {
	r := NewRegistry()

	s, err := r.Register("user-a", "Alice")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.SetRoom(s.ID, "room-1"); err != nil {
		t.Fatalf("set room: %v", err)
	}
	got, err := r.Lookup(s.ID)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.RoomID != "room-1" {
		t.Fatalf("expected room-1, got %q", got.RoomID)
	}

	if err := r.SetRoom("missing", "room-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRegistry_ConcurrentRegisterDistinctIdentities(t *testing.T) {
	r := NewRegistry()

	const n = 64
	var wg sync.WaitGroup
	ids := make([]ID, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := r.Register(string(rune('a'+i%26))+string(rune('0'+i/26)), "x")
			if err != nil {
				t.Errorf("register %d: %v", i, err)
				return
			}
			ids[i] = s.ID
		}(i)
	}
	wg.Wait()

	seen := make(map[ID]bool, n)
	for _, id := range ids {
		if seen[id] {
			t.Fatalf("duplicate session ID %s", id)
		}
		seen[id] = true
	}
	if r.Len() != n {
		t.Fatalf("expected %d sessions, got %d", n, r.Len())
	}
}
