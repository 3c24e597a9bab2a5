package core

import (
	"math"
	"sort"

	"github.com/signalsfoundry/relaychain-simulator/kb"
	"github.com/signalsfoundry/relaychain-simulator/model"
)

// ChainMember is one node's place in the active chain at the moment of
// evaluation. It is a value snapshot; the chain is derived fresh every
// evaluation and never stored.
type ChainMember struct {
	ID   string
	Role model.Role
	X    float64
}

// Hop is a consecutive pair of chain members with its evaluated
// distance and signal estimate.
type Hop struct {
	From     ChainMember
	To       ChainMember
	DistM    float64
	SignalDB float64
}

// BuildActiveChain derives the ordered sequence of active nodes: the
// user, every active relay, and the access point, sorted ascending by
// corridor position. It does not mutate the store.
func BuildActiveChain(store *kb.NodeStore) []ChainMember {
	user := store.User()
	ap := store.AccessPoint()
	if user == nil || ap == nil {
		return nil
	}

	members := []ChainMember{
		{ID: user.ID, Role: model.RoleUser, X: user.Coordinates.X},
		{ID: ap.ID, Role: model.RoleAccessPoint, X: ap.Coordinates.X},
	}
	for _, r := range store.ActiveRelays() {
		members = append(members, ChainMember{ID: r.ID, Role: model.RoleRelay, X: r.Coordinates.X})
	}

	sort.Slice(members, func(i, j int) bool { return members[i].X < members[j].X })
	return members
}

// Hops evaluates every consecutive pair in the chain.
func Hops(chain []ChainMember, est *SignalEstimator) []Hop {
	if len(chain) < 2 {
		return nil
	}
	hops := make([]Hop, 0, len(chain)-1)
	for i := 0; i+1 < len(chain); i++ {
		d := math.Abs(chain[i+1].X - chain[i].X)
		hops = append(hops, Hop{
			From:     chain[i],
			To:       chain[i+1],
			DistM:    d,
			SignalDB: est.Estimate(d),
		})
	}
	return hops
}

// WeakestSignal returns the minimum hop signal estimate. The second
// return is false when there are no hops.
func WeakestSignal(hops []Hop) (float64, bool) {
	if len(hops) == 0 {
		return 0, false
	}
	min := hops[0].SignalDB
	for _, h := range hops[1:] {
		if h.SignalDB < min {
			min = h.SignalDB
		}
	}
	return min, true
}

// LongestHop returns the maximum hop distance. The second return is
// false when there are no hops.
func LongestHop(hops []Hop) (float64, bool) {
	if len(hops) == 0 {
		return 0, false
	}
	max := hops[0].DistM
	for _, h := range hops[1:] {
		if h.DistM > max {
			max = h.DistM
		}
	}
	return max, true
}
