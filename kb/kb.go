package kb

import (
	"fmt"
	"sort"
	"sync"

	"github.com/signalsfoundry/relaychain-simulator/model"
)

// EventType indicates what kind of change happened in the store.
type EventType int

const (
	EventNodeMoved EventType = iota
	EventRelayActivated
)

// Event is emitted to subscribers when something interesting happens.
type Event struct {
	Type EventType
	Node model.Node
}

// NodeStore is an in-memory, thread-safe roster of all nodes in the
// corridor. Under the cooperative scheduler only one handler mutates it
// at a time; the lock exists so background readers (metrics endpoint,
// tests) can take consistent snapshots.
type NodeStore struct {
	mu sync.RWMutex

	nodes map[string]*model.Node

	// relayOrder holds relay IDs sorted by slot index so activation
	// order does not depend on map iteration.
	relayOrder []string

	userID string
	apID   string

	subs []func(Event)
}

// NewNodeStore constructs an empty store.
func NewNodeStore() *NodeStore {
	return &NodeStore{
		nodes: make(map[string]*model.Node),
	}
}

// Add registers a node. It returns an error if the ID already exists or
// if a second user/access point is added.
func (s *NodeStore) Add(n *model.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.nodes[n.ID]; exists {
		return fmt.Errorf("node with ID %q already exists", n.ID)
	}

	switch n.Role {
	case model.RoleUser:
		if s.userID != "" {
			return fmt.Errorf("user node already registered as %q", s.userID)
		}
		n.Active = true
		s.userID = n.ID
	case model.RoleAccessPoint:
		if s.apID != "" {
			return fmt.Errorf("access point already registered as %q", s.apID)
		}
		n.Active = true
		s.apID = n.ID
	case model.RoleRelay:
		if n.RelayIndex < 1 {
			return fmt.Errorf("relay %q has invalid slot index %d", n.ID, n.RelayIndex)
		}
	default:
		return fmt.Errorf("node %q has unknown role", n.ID)
	}

	s.nodes[n.ID] = n
	if n.Role == model.RoleRelay {
		s.relayOrder = append(s.relayOrder, n.ID)
		sort.Slice(s.relayOrder, func(i, j int) bool {
			return s.nodes[s.relayOrder[i]].RelayIndex < s.nodes[s.relayOrder[j]].RelayIndex
		})
	}
	return nil
}

// Get returns the node with the given ID, or nil if not found.
func (s *NodeStore) Get(id string) *model.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nodes[id]
}

// User returns the user node, or nil if none was registered.
func (s *NodeStore) User() *model.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nodes[s.userID]
}

// AccessPoint returns the access point node, or nil if none was registered.
func (s *NodeStore) AccessPoint() *model.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nodes[s.apID]
}

// Relays returns all relay nodes in slot order.
func (s *NodeStore) Relays() []*model.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := make([]*model.Node, 0, len(s.relayOrder))
	for _, id := range s.relayOrder {
		res = append(res, s.nodes[id])
	}
	return res
}

// ActiveRelays returns the relays currently participating in the chain,
// in slot order.
func (s *NodeStore) ActiveRelays() []*model.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var res []*model.Node
	for _, id := range s.relayOrder {
		if n := s.nodes[id]; n.Active {
			res = append(res, n)
		}
	}
	return res
}

// NextStagedRelay returns the lowest-index relay that has not been
// activated yet, or nil when every slot is in the chain.
func (s *NodeStore) NextStagedRelay() *model.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range s.relayOrder {
		if n := s.nodes[id]; !n.Active {
			return n
		}
	}
	return nil
}

// SetPosition updates a node's X coordinate and notifies subscribers.
func (s *NodeStore) SetPosition(id string, x float64) error {
	s.mu.Lock()
	n, ok := s.nodes[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("node with ID %q not found", id)
	}
	n.Coordinates.X = x
	event := Event{
		Type: EventNodeMoved,
		Node: *n, // copy for safety
	}
	subs := append([]func(Event){}, s.subs...)
	s.mu.Unlock()

	// Notify subscribers outside the lock to avoid deadlocks.
	for _, sub := range subs {
		sub(event)
	}
	return nil
}

// SetVelocity updates a node's corridor velocity.
func (s *NodeStore) SetVelocity(id string, vx float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[id]
	if !ok {
		return fmt.Errorf("node with ID %q not found", id)
	}
	n.VX = vx
	return nil
}

// Activate marks a relay as participating in the chain and notifies
// subscribers. Relays are never re-staged, so the operation happens at
// most once per slot; activating an already-active relay is an error.
func (s *NodeStore) Activate(id string) error {
	s.mu.Lock()
	n, ok := s.nodes[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("node with ID %q not found", id)
	}
	if n.Role != model.RoleRelay {
		s.mu.Unlock()
		return fmt.Errorf("node %q is not a relay", id)
	}
	if n.Active {
		s.mu.Unlock()
		return fmt.Errorf("relay %q is already active", id)
	}
	n.Active = true
	event := Event{
		Type: EventRelayActivated,
		Node: *n,
	}
	subs := append([]func(Event){}, s.subs...)
	s.mu.Unlock()

	for _, sub := range subs {
		sub(event)
	}
	return nil
}

// Subscribe registers a callback for store events. It returns an
// unsubscribe function.
func (s *NodeStore) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
	idx := len(s.subs) - 1

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if idx < 0 || idx >= len(s.subs) {
			return
		}
		s.subs = append(s.subs[:idx], s.subs[idx+1:]...)
		idx = -1
	}
}
