package core

import (
	"sort"

	"github.com/signalsfoundry/relaychain-simulator/kb"
	"github.com/signalsfoundry/relaychain-simulator/model"
)

// ResolveCollisions enforces a minimum separation between active relays
// after a balance tick without ever reordering them. It returns the
// number of pair corrections applied.
//
// Each sweep walks the relays left to right and pushes any violating
// pair symmetrically apart around its midpoint. A correction can shift
// a node shared with the next pair, so sweeps repeat until a pass is
// clean, bounded by the relay count. The symmetric push only converges
// geometrically when more than two relays are tightly packed, so a
// final forward pass then settles any residual violation exactly by
// pushing the right-hand node out.
func ResolveCollisions(store *kb.NodeStore, minSeparation float64) int {
	relays := store.ActiveRelays()
	if len(relays) < 2 || minSeparation <= 0 {
		return 0
	}

	sorted := make([]*model.Node, len(relays))
	copy(sorted, relays)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Coordinates.X < sorted[j].Coordinates.X
	})

	corrections := 0
	clean := false
	for sweep := 0; sweep < len(sorted) && !clean; sweep++ {
		clean = true
		for i := 0; i+1 < len(sorted); i++ {
			left, right := sorted[i], sorted[i+1]
			gap := right.Coordinates.X - left.Coordinates.X
			if gap >= minSeparation {
				continue
			}
			mid := (left.Coordinates.X + right.Coordinates.X) / 2.0
			if err := store.SetPosition(left.ID, mid-minSeparation/2); err != nil {
				continue
			}
			if err := store.SetPosition(right.ID, mid+minSeparation/2); err != nil {
				continue
			}
			corrections++
			clean = false
		}
	}

	if !clean {
		for i := 0; i+1 < len(sorted); i++ {
			left, right := sorted[i], sorted[i+1]
			if want := left.Coordinates.X + minSeparation; right.Coordinates.X < want {
				if err := store.SetPosition(right.ID, want); err != nil {
					continue
				}
				corrections++
			}
		}
	}
	return corrections
}
