package core

import (
	"math"
	"time"

	"github.com/signalsfoundry/relaychain-simulator/kb"
)

// Criterion selects which link observation drives the deployment
// trigger.
type Criterion string

const (
	// CriterionWeakestHop evaluates every hop of the active chain and
	// triggers on the weakest one. Reference behaviour.
	CriterionWeakestHop Criterion = "weakest-hop"
	// CriterionDirectPath evaluates only the direct user to access
	// point distance, the way the earlier single-link variants did.
	CriterionDirectPath Criterion = "direct-path"
)

// Thresholds holds the trigger limits for the deployment decision. Any
// single limit being exceeded triggers a deployment.
type Thresholds struct {
	// LossPct is the windowed loss percentage above which the link is
	// considered poor.
	LossPct float64
	// RTTMs is the windowed average round-trip limit in milliseconds.
	RTTMs float64
	// SignalDBm is the signal estimate below which a hop is poor.
	SignalDBm float64
	// MaxHopDistM triggers when any hop stretches beyond this many
	// metres, independent of the signal estimate.
	MaxHopDistM float64
}

// DefaultThresholds mirrors the reference run parameters.
func DefaultThresholds() Thresholds {
	return Thresholds{
		LossPct:     30.0,
		RTTMs:       150.0,
		SignalDBm:   -75.0,
		MaxHopDistM: 40.0,
	}
}

// Deployment describes one relay activation: which slot moved where,
// and the observations that triggered it.
type Deployment struct {
	RelayID string
	Slot    int
	FromX   float64
	ToX     float64
	At      time.Time

	LossPct  float64
	RTTMs    float64
	SignalDB float64
	MaxHopM  float64
}

// Deployer decides when the next staged relay enters the chain and
// where it is placed.
type Deployer struct {
	store      *kb.NodeStore
	metrics    *Aggregator
	est        *SignalEstimator
	thresholds Thresholds
	criterion  Criterion
}

// NewDeployer constructs a deployment engine. An empty criterion
// defaults to weakest-hop.
func NewDeployer(store *kb.NodeStore, metrics *Aggregator, est *SignalEstimator, thresholds Thresholds, criterion Criterion) *Deployer {
	if criterion == "" {
		criterion = CriterionWeakestHop
	}
	return &Deployer{
		store:      store,
		metrics:    metrics,
		est:        est,
		thresholds: thresholds,
		criterion:  criterion,
	}
}

// MaybeDeploy evaluates the windowed metrics and the current chain
// geometry, and activates at most one staged relay at the midpoint of
// the largest gap. It returns nil,false when nothing was deployed:
// either the link is healthy or every slot is already in the chain.
// Neither case is an error.
func (d *Deployer) MaybeDeploy(now time.Time) (*Deployment, bool) {
	loss := d.metrics.LossRate(SeriesWindowed)
	rtt := d.metrics.AverageRTT(SeriesWindowed)

	chain := BuildActiveChain(d.store)
	if len(chain) < 2 {
		return nil, false
	}

	signal, maxHop := d.observe(chain)

	poor := loss > d.thresholds.LossPct ||
		rtt > d.thresholds.RTTMs ||
		signal < d.thresholds.SignalDBm ||
		maxHop > d.thresholds.MaxHopDistM
	if !poor {
		return nil, false
	}

	staged := d.store.NextStagedRelay()
	if staged == nil {
		return nil, false
	}

	// Largest adjacent gap over the pre-activation chain; ties keep the
	// first gap in ascending order.
	targetX := largestGapMidpoint(chain)

	fromX := staged.Coordinates.X
	if err := d.store.SetPosition(staged.ID, targetX); err != nil {
		return nil, false
	}
	if err := d.store.SetVelocity(staged.ID, 0); err != nil {
		return nil, false
	}
	if err := d.store.Activate(staged.ID); err != nil {
		return nil, false
	}

	// Fresh stats for the next decision.
	d.metrics.ResetWindow()

	return &Deployment{
		RelayID:  staged.ID,
		Slot:     staged.RelayIndex,
		FromX:    fromX,
		ToX:      targetX,
		At:       now,
		LossPct:  loss,
		RTTMs:    rtt,
		SignalDB: signal,
		MaxHopM:  maxHop,
	}, true
}

// observe returns the decision signal and the maximum hop distance for
// the configured criterion.
func (d *Deployer) observe(chain []ChainMember) (signalDB, maxHopM float64) {
	switch d.criterion {
	case CriterionDirectPath:
		direct := math.Abs(chain[len(chain)-1].X - chain[0].X)
		return d.est.Estimate(direct), direct
	default:
		hops := Hops(chain, d.est)
		signal, _ := WeakestSignal(hops)
		maxHop, _ := LongestHop(hops)
		return signal, maxHop
	}
}

// largestGapMidpoint finds the arithmetic midpoint of the widest gap
// between consecutive chain members. The chain is already sorted
// ascending by position.
func largestGapMidpoint(chain []ChainMember) float64 {
	bestGap := -1.0
	bestIdx := 0
	for i := 0; i+1 < len(chain); i++ {
		gap := chain[i+1].X - chain[i].X
		if gap > bestGap {
			bestGap = gap
			bestIdx = i
		}
	}
	return (chain[bestIdx].X + chain[bestIdx+1].X) / 2.0
}
