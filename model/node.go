package model

// Role identifies what part a node plays in the relay chain. It is
// resolved once at construction; consumers switch on it instead of
// downcasting node payloads.
type Role int

const (
	RoleUnknown Role = iota
	RoleUser
	RoleRelay
	RoleAccessPoint
)

func (r Role) String() string {
	switch r {
	case RoleUser:
		return "user"
	case RoleRelay:
		return "relay"
	case RoleAccessPoint:
		return "access-point"
	default:
		return "unknown"
	}
}

// Position is a point in metres. The corridor is one-dimensional: all
// controller decisions read X, while Y and Z are fixed at construction
// (relays fly at a constant height).
type Position struct {
	X float64
	Y float64
	Z float64
}

// Node is one member of the fixed roster: the user, the access point,
// or a relay slot. User and access point are always active; a relay
// participates in the chain only while Active is true.
type Node struct {
	ID   string
	Name string
	Role Role

	// RelayIndex is the 1-based slot number for RoleRelay nodes and 0
	// otherwise. Relays are activated in ascending slot order and never
	// re-staged, so the active set is always a prefix of the slots.
	RelayIndex int

	Coordinates Position

	// VX is the node's current velocity along the corridor in m/s.
	VX float64

	// Active reports chain membership. Meaningful only for relays;
	// construction forces it true for the user and the access point.
	Active bool
}

// IsRelay reports whether the node occupies a relay slot.
func (n *Node) IsRelay() bool { return n.Role == RoleRelay }
