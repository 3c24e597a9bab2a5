package core

import (
	"testing"
	"time"

	"github.com/signalsfoundry/relaychain-simulator/kb"
)

func newTestDeployer(t *testing.T, userX, apX float64, stagedRelays int) (*Deployer, *Aggregator, *kb.NodeStore) {
	t.Helper()
	relays := make([]struct {
		x      float64
		active bool
	}, stagedRelays)
	for i := range relays {
		relays[i].x = apX - float64(i) // staged near the access point
	}
	store := corridorStore(t, userX, apX, relays)
	agg := NewAggregator()
	d := NewDeployer(store, agg, noiselessEstimator(), DefaultThresholds(), CriterionWeakestHop)
	return d, agg, store
}

func TestNoDeploymentWhenHealthy(t *testing.T) {
	d, _, s := newTestDeployer(t, 0, 30, 2)
	if dep, ok := d.MaybeDeploy(t0); ok {
		t.Fatalf("unexpected deployment %+v on a healthy 30 m link", dep)
	}
	if got := len(s.ActiveRelays()); got != 0 {
		t.Fatalf("active relays = %d, want 0", got)
	}
}

func TestDeployOnMaxHopDistance(t *testing.T) {
	// 50 m direct hop exceeds the 40 m threshold.
	d, _, s := newTestDeployer(t, 50, 0, 2)

	dep, ok := d.MaybeDeploy(t0)
	if !ok {
		t.Fatalf("expected deployment for a 50 m hop")
	}
	if dep.Slot != 1 {
		t.Fatalf("deployed slot %d, want 1 (lowest staged index)", dep.Slot)
	}
	if dep.ToX != 25.0 {
		t.Fatalf("deployed at X=%v, want midpoint 25", dep.ToX)
	}
	relay := s.Get(dep.RelayID)
	if relay.Coordinates.X != 25.0 || relay.VX != 0 || !relay.Active {
		t.Fatalf("relay state after deployment = %+v", relay)
	}
}

func TestDeployOnWindowedLoss(t *testing.T) {
	d, agg, _ := newTestDeployer(t, 0, 30, 1)
	for i := uint64(0); i < 10; i++ {
		agg.RecordSend(i, t0)
	}
	for i := 0; i < 5; i++ {
		agg.RecordReceive()
	}

	dep, ok := d.MaybeDeploy(t0)
	if !ok {
		t.Fatalf("expected deployment at 50%% windowed loss")
	}
	if dep.LossPct != 50.0 {
		t.Fatalf("recorded loss = %v, want 50", dep.LossPct)
	}
}

func TestDeployResetsWindowOnly(t *testing.T) {
	d, agg, _ := newTestDeployer(t, 50, 0, 1)
	for i := uint64(0); i < 4; i++ {
		agg.RecordSend(i, t0)
	}

	if _, ok := d.MaybeDeploy(t0); !ok {
		t.Fatalf("expected deployment")
	}

	if tx, _ := agg.Counts(SeriesWindowed); tx != 0 {
		t.Fatalf("windowed tx after deployment = %d, want 0", tx)
	}
	if tx, _ := agg.Counts(SeriesCumulative); tx != 4 {
		t.Fatalf("cumulative tx after deployment = %d, want 4", tx)
	}
}

func TestAtMostOneDeploymentPerCall(t *testing.T) {
	d, _, s := newTestDeployer(t, 200, 0, 3)

	if _, ok := d.MaybeDeploy(t0); !ok {
		t.Fatalf("expected first deployment")
	}
	if got := len(s.ActiveRelays()); got != 1 {
		t.Fatalf("active relays after one call = %d, want 1", got)
	}
}

func TestDeploymentMonotoneAndBounded(t *testing.T) {
	d, _, s := newTestDeployer(t, 500, 0, 2)

	prev := 0
	for i := 0; i < 5; i++ {
		d.MaybeDeploy(t0.Add(time.Duration(i) * time.Second))
		got := len(s.ActiveRelays())
		if got < prev {
			t.Fatalf("active relay count decreased: %d -> %d", prev, got)
		}
		prev = got
	}
	if prev != 2 {
		t.Fatalf("active relays = %d, want all 2 slots after repeated poor evaluations", prev)
	}
	// A further call with every slot active is a silent no-op.
	if dep, ok := d.MaybeDeploy(t0); ok {
		t.Fatalf("deployment %+v with no staged relay left", dep)
	}
}

func TestLargestGapTieBreakFirst(t *testing.T) {
	chain := []ChainMember{{X: 0}, {X: 40}, {X: 80}}
	if got := largestGapMidpoint(chain); got != 20.0 {
		t.Fatalf("tie-break midpoint = %v, want 20 (first gap)", got)
	}
}

func TestDirectPathCriterion(t *testing.T) {
	relays := []struct {
		x      float64
		active bool
	}{
		{x: 30, active: true}, // splits 60 m corridor into two healthy 30 m hops
		{x: 0, active: false},
	}
	store := corridorStore(t, 60, 0, relays)
	agg := NewAggregator()

	// Weakest-hop sees two 30 m hops and stays quiet; direct-path sees
	// the full 60 m corridor and triggers.
	weakest := NewDeployer(store, agg, noiselessEstimator(), DefaultThresholds(), CriterionWeakestHop)
	if _, ok := weakest.MaybeDeploy(t0); ok {
		t.Fatalf("weakest-hop criterion should not trigger on two 30 m hops")
	}

	direct := NewDeployer(store, agg, noiselessEstimator(), DefaultThresholds(), CriterionDirectPath)
	if _, ok := direct.MaybeDeploy(t0); !ok {
		t.Fatalf("direct-path criterion should trigger on a 60 m corridor")
	}
}
