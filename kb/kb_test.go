package kb

import (
	"fmt"
	"sync"
	"testing"

	"github.com/signalsfoundry/relaychain-simulator/model"
)

func TestAddAndGetNode(t *testing.T) {
	store := NewNodeStore()
	n := &model.Node{ID: "user", Name: "User", Role: model.RoleUser}
	if err := store.Add(n); err != nil {
		t.Fatalf("Add error: %v", err)
	}
	got := store.Get("user")
	if got == nil || got.Name != "User" {
		t.Fatalf("Get returned %#v, want name User", got)
	}
	if !got.Active {
		t.Fatalf("user node should always be active")
	}
}

func TestAddDuplicate(t *testing.T) {
	store := NewNodeStore()
	if err := store.Add(&model.Node{ID: "ap", Role: model.RoleAccessPoint}); err != nil {
		t.Fatalf("first Add error: %v", err)
	}
	if err := store.Add(&model.Node{ID: "ap", Role: model.RoleAccessPoint}); err == nil {
		t.Fatalf("expected duplicate Add to fail")
	}
	if err := store.Add(&model.Node{ID: "ap2", Role: model.RoleAccessPoint}); err == nil {
		t.Fatalf("expected second access point to be rejected")
	}
}

func TestRelaySlotOrdering(t *testing.T) {
	store := NewNodeStore()
	// Add out of slot order on purpose.
	for _, idx := range []int{3, 1, 2} {
		n := &model.Node{
			ID:         fmt.Sprintf("relay-%d", idx),
			Role:       model.RoleRelay,
			RelayIndex: idx,
		}
		if err := store.Add(n); err != nil {
			t.Fatalf("Add relay %d error: %v", idx, err)
		}
	}

	relays := store.Relays()
	if len(relays) != 3 {
		t.Fatalf("Relays len=%d, want 3", len(relays))
	}
	for i, r := range relays {
		if r.RelayIndex != i+1 {
			t.Fatalf("relay at position %d has slot %d, want %d", i, r.RelayIndex, i+1)
		}
	}
}

func TestRelayInvalidSlot(t *testing.T) {
	store := NewNodeStore()
	if err := store.Add(&model.Node{ID: "r0", Role: model.RoleRelay}); err == nil {
		t.Fatalf("expected relay with slot 0 to be rejected")
	}
}

func TestNextStagedRelayIsPrefixOrder(t *testing.T) {
	store := NewNodeStore()
	for i := 1; i <= 3; i++ {
		n := &model.Node{ID: fmt.Sprintf("relay-%d", i), Role: model.RoleRelay, RelayIndex: i}
		if err := store.Add(n); err != nil {
			t.Fatalf("Add error: %v", err)
		}
	}

	next := store.NextStagedRelay()
	if next == nil || next.RelayIndex != 1 {
		t.Fatalf("NextStagedRelay = %#v, want slot 1", next)
	}
	if err := store.Activate("relay-1"); err != nil {
		t.Fatalf("Activate error: %v", err)
	}

	next = store.NextStagedRelay()
	if next == nil || next.RelayIndex != 2 {
		t.Fatalf("NextStagedRelay after one activation = %#v, want slot 2", next)
	}

	if got := len(store.ActiveRelays()); got != 1 {
		t.Fatalf("ActiveRelays len=%d, want 1", got)
	}
}

func TestActivateTwiceFails(t *testing.T) {
	store := NewNodeStore()
	if err := store.Add(&model.Node{ID: "relay-1", Role: model.RoleRelay, RelayIndex: 1}); err != nil {
		t.Fatalf("Add error: %v", err)
	}
	if err := store.Activate("relay-1"); err != nil {
		t.Fatalf("Activate error: %v", err)
	}
	if err := store.Activate("relay-1"); err == nil {
		t.Fatalf("expected second Activate to fail")
	}
}

func TestSetPositionAndSubscribe(t *testing.T) {
	store := NewNodeStore()
	if err := store.Add(&model.Node{ID: "user", Role: model.RoleUser}); err != nil {
		t.Fatalf("Add error: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	var got Event
	store.Subscribe(func(e Event) {
		got = e
		wg.Done()
	})

	if err := store.SetPosition("user", 42.5); err != nil {
		t.Fatalf("SetPosition error: %v", err)
	}

	wg.Wait()
	if got.Type != EventNodeMoved {
		t.Fatalf("got event type %v, want EventNodeMoved", got.Type)
	}
	if got.Node.Coordinates.X != 42.5 {
		t.Fatalf("event node X = %v, want 42.5", got.Node.Coordinates.X)
	}
}

func TestConcurrentAccess(t *testing.T) {
	store := NewNodeStore()
	if err := store.Add(&model.Node{ID: "user", Role: model.RoleUser}); err != nil {
		t.Fatalf("Add error: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = store.Get("user")
			_ = store.ActiveRelays()
		}()
		go func(i int) {
			defer wg.Done()
			_ = store.SetPosition("user", float64(i))
		}(i)
	}
	wg.Wait()
}
