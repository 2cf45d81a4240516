package dispatch

import "testing"

func TestPendingStoreSingleSlot(t *testing.T) {
	store := NewPendingStore()

	if store.Peek("@op:example.org") != nil {
		t.Fatal("empty store should hold nothing")
	}

	first := &Action{ID: "a_1", Summary: "first"}
	if replaced := store.Put("@op:example.org", first); replaced != nil {
		t.Fatal("first Put should replace nothing")
	}

	second := &Action{ID: "a_2", Summary: "second"}
	if replaced := store.Put("@op:example.org", second); replaced != first {
		t.Fatal("second Put should return the replaced action")
	}

	if got := store.Peek("@op:example.org"); got != second {
		t.Fatalf("Peek = %v, want the latest action", got)
	}
	if got := store.Take("@op:example.org"); got != second {
		t.Fatalf("Take = %v, want the latest action", got)
	}
	if store.Take("@op:example.org") != nil {
		t.Fatal("Take should consume the slot")
	}
}

func TestPendingStoreIsolatesUsers(t *testing.T) {
	store := NewPendingStore()
	store.Put("@alice:example.org", &Action{ID: "a_1"})

	if store.Peek("@bob:example.org") != nil {
		t.Fatal("users must not see each other's pending actions")
	}
	if store.Peek("@alice:example.org") == nil {
		t.Fatal("alice's action should still be pending")
	}
}
