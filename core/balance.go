package core

import (
	"time"

	"github.com/signalsfoundry/relaychain-simulator/kb"
)

// BalanceMetric selects the quantity a relay compares between its two
// neighbours when deciding which way to drift.
type BalanceMetric string

const (
	// BalanceByDistance equalises the raw hop distances to the two
	// neighbours. Reference behaviour: self-limiting, no boundary
	// interaction.
	BalanceByDistance BalanceMetric = "distance"
	// BalanceBySignal equalises the two signal estimates, the way the
	// earlier variants steered.
	BalanceBySignal BalanceMetric = "signal"
)

// BalanceConfig parameterises the per-tick repositioning of active
// relays.
type BalanceConfig struct {
	Metric BalanceMetric
	// MoveThreshold is the neighbour imbalance (metres for distance,
	// dB for signal) below which a relay holds position.
	MoveThreshold float64
	// MoveSpeedMps is the corridor speed applied when a relay moves.
	MoveSpeedMps float64
	// ClampToCorridor keeps relays strictly between the chain
	// endpoints. Distance balancing is self-limiting, but the clamp
	// still matters when the user overtakes a relay between ticks.
	ClampToCorridor bool
	// ClampMarginM is how far inside the endpoints a clamped relay is
	// held.
	ClampMarginM float64
}

// DefaultBalanceConfig mirrors the reference run parameters.
func DefaultBalanceConfig() BalanceConfig {
	return BalanceConfig{
		Metric:          BalanceByDistance,
		MoveThreshold:   3.0,
		MoveSpeedMps:    3.0,
		ClampToCorridor: true,
		ClampMarginM:    0.1,
	}
}

// Move describes one relay position change produced by a balance tick.
type Move struct {
	RelayID string
	FromX   float64
	ToX     float64
}

// Balancer drifts each active relay toward whichever neighbour is
// farther away, one Euler step per tick, so the two adjacent hops
// converge toward equal quality.
type Balancer struct {
	store *kb.NodeStore
	est   *SignalEstimator
	cfg   BalanceConfig
}

// NewBalancer constructs a balancer. An unset metric defaults to
// distance balancing.
func NewBalancer(store *kb.NodeStore, est *SignalEstimator, cfg BalanceConfig) *Balancer {
	if cfg.Metric == "" {
		cfg.Metric = BalanceByDistance
	}
	return &Balancer{store: store, est: est, cfg: cfg}
}

// Tick repositions every active relay once. Each relay reads only the
// chain snapshot taken before any relay moved, so the update is
// simultaneous and the iteration order cannot change the outcome. With
// zero active relays the call is a no-op.
func (b *Balancer) Tick(interval time.Duration) []Move {
	chain := BuildActiveChain(b.store)
	if len(chain) < 3 {
		// Endpoints only: nothing to balance.
		return nil
	}

	minX := chain[0].X + b.cfg.ClampMarginM
	maxX := chain[len(chain)-1].X - b.cfg.ClampMarginM

	dt := interval.Seconds()
	var moves []Move
	for i := 1; i+1 < len(chain); i++ {
		m := chain[i]
		node := b.store.Get(m.ID)
		if node == nil || !node.IsRelay() {
			// A chain endpoint can end up interior for one tick if the
			// user overtakes a relay; endpoints never move here.
			continue
		}

		lowerDist := m.X - chain[i-1].X
		upperDist := chain[i+1].X - m.X

		// Positive imbalance: the upper-position neighbour is farther
		// (weaker), so the relay drifts +X toward it. Negative: drift
		// -X. Within the threshold the relay holds still.
		diff := b.imbalance(lowerDist, upperDist)

		var vx float64
		switch {
		case diff > b.cfg.MoveThreshold:
			vx = b.cfg.MoveSpeedMps
		case diff < -b.cfg.MoveThreshold:
			vx = -b.cfg.MoveSpeedMps
		}

		if err := b.store.SetVelocity(m.ID, vx); err != nil {
			continue
		}
		if vx == 0 {
			continue
		}

		// Single explicit Euler step; no sub-stepping.
		newX := m.X + vx*dt
		if b.cfg.ClampToCorridor {
			if newX < minX {
				newX = minX
			}
			if newX > maxX {
				newX = maxX
			}
		}
		if newX == m.X {
			continue
		}
		if err := b.store.SetPosition(m.ID, newX); err != nil {
			continue
		}
		moves = append(moves, Move{RelayID: m.ID, FromX: m.X, ToX: newX})
	}
	return moves
}

// imbalance returns a signed measure of how much worse the upper-side
// hop is than the lower-side hop.
func (b *Balancer) imbalance(lowerDist, upperDist float64) float64 {
	switch b.cfg.Metric {
	case BalanceBySignal:
		// A weaker (more negative) estimate on the upper side yields a
		// positive imbalance, steering the relay upward.
		return b.est.Estimate(lowerDist) - b.est.Estimate(upperDist)
	default:
		return upperDist - lowerDist
	}
}
