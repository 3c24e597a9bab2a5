package core

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/signalsfoundry/relaychain-simulator/kb"
)

type countingRecorder struct {
	deployments int
	relayMoves  int
	corrections int
	sent        int
	received    int
	roundTrips  []time.Duration
}

func (r *countingRecorder) RecordDeployment()                { r.deployments++ }
func (r *countingRecorder) RecordRelayMoves(n int)           { r.relayMoves += n }
func (r *countingRecorder) RecordCollisionCorrections(n int) { r.corrections += n }
func (r *countingRecorder) RecordPacketSent()                { r.sent++ }
func (r *countingRecorder) RecordPacketReceived()            { r.received++ }
func (r *countingRecorder) RecordRoundTrip(elapsed time.Duration) {
	r.roundTrips = append(r.roundTrips, elapsed)
}

func newTestController(t *testing.T, store *kb.NodeStore, rec Recorder) (*Controller, *Aggregator) {
	t.Helper()
	est := noiselessEstimator()
	agg := NewAggregator()
	deployer := NewDeployer(store, agg, est, DefaultThresholds(), CriterionWeakestHop)
	balancer := NewBalancer(store, est, DefaultBalanceConfig())
	ctrl := NewController(store, agg, est, deployer, balancer,
		DefaultControllerConfig(), nil, rec)
	return ctrl, agg
}

func TestControllerDeploysWhenUserWalksOut(t *testing.T) {
	// Direct hop of 42 m exceeds the 40 m threshold, so the first
	// monitor tick releases the staged relay at the gap midpoint.
	store := corridorStore(t, 42, 0, []struct {
		x      float64
		active bool
	}{
		{x: -1, active: false},
	})
	rec := &countingRecorder{}
	ctrl, _ := newTestController(t, store, rec)

	ctrl.OnMonitorTick(context.Background(), t0)

	relay := store.Get(relayID(1))
	if relay == nil || !relay.Active {
		t.Fatalf("relay not activated: %+v", relay)
	}
	if relay.Coordinates.X != 21 {
		t.Fatalf("relay at %v, want midpoint 21", relay.Coordinates.X)
	}
	if rec.deployments != 1 {
		t.Fatalf("deployments = %d, want 1", rec.deployments)
	}
}

func TestControllerMonitorTickHealthyNoDeploy(t *testing.T) {
	store := corridorStore(t, 30, 0, []struct {
		x      float64
		active bool
	}{
		{x: -1, active: false},
	})
	rec := &countingRecorder{}
	ctrl, _ := newTestController(t, store, rec)

	ctrl.OnMonitorTick(context.Background(), t0)

	if relay := store.Get(relayID(1)); relay.Active {
		t.Fatal("relay activated on a healthy 30 m chain")
	}
	if rec.deployments != 0 {
		t.Fatalf("deployments = %d, want 0", rec.deployments)
	}
}

func TestControllerTrafficHandlersFeedAggregator(t *testing.T) {
	store := corridorStore(t, 30, 0, nil)
	rec := &countingRecorder{}
	ctrl, agg := newTestController(t, store, rec)

	ctrl.OnPacketSent(7, t0)
	ctrl.OnPacketReceived()
	ctrl.OnRoundTripComplete(7, t0.Add(150*time.Millisecond))

	if got := agg.AverageRTT(SeriesCumulative); got != 150 {
		t.Fatalf("cumulative rtt = %v, want 150", got)
	}
	if rec.sent != 1 || rec.received != 1 {
		t.Fatalf("recorder sent=%d received=%d, want 1/1", rec.sent, rec.received)
	}
	if len(rec.roundTrips) != 1 || rec.roundTrips[0] != 150*time.Millisecond {
		t.Fatalf("recorded round trips = %v", rec.roundTrips)
	}
}

func TestControllerRoundTripForUnknownIDSkipsRecorder(t *testing.T) {
	store := corridorStore(t, 30, 0, nil)
	rec := &countingRecorder{}
	ctrl, _ := newTestController(t, store, rec)

	ctrl.OnRoundTripComplete(99, t0)

	if len(rec.roundTrips) != 0 {
		t.Fatalf("round trips recorded for unknown id: %v", rec.roundTrips)
	}
}

func TestControllerBalanceTickMovesAndSeparates(t *testing.T) {
	store := corridorStore(t, 60, 0, []struct {
		x      float64
		active bool
	}{
		{x: 30, active: true},
		{x: 30.5, active: true},
	})
	rec := &countingRecorder{}
	est := noiselessEstimator()
	agg := NewAggregator()
	deployer := NewDeployer(store, agg, est, DefaultThresholds(), CriterionWeakestHop)
	balancer := NewBalancer(store, est, DefaultBalanceConfig())
	cfg := DefaultControllerConfig()
	cfg.MinSeparationM = 10
	ctrl := NewController(store, agg, est, deployer, balancer, cfg, nil, rec)

	ctrl.OnBalanceTick(context.Background(), t0, time.Second)

	r1 := store.Get(relayID(1))
	r2 := store.Get(relayID(2))
	if r2.Coordinates.X-r1.Coordinates.X < 10 {
		t.Fatalf("separation %v < 10 after balance tick", r2.Coordinates.X-r1.Coordinates.X)
	}
	if rec.relayMoves == 0 {
		t.Fatal("no relay moves recorded")
	}
	if rec.corrections == 0 {
		t.Fatal("no collision corrections recorded")
	}
}

func TestControllerSnapshotRendersChainAndSeries(t *testing.T) {
	store := corridorStore(t, 120, 0, []struct {
		x      float64
		active bool
	}{
		{x: 30, active: true},
		{x: 60, active: true},
		{x: 90, active: true},
	})
	rec := &countingRecorder{}
	ctrl, _ := newTestController(t, store, rec)

	ctrl.OnPacketSent(1, t0)
	ctrl.OnPacketReceived()
	ctrl.OnRoundTripComplete(1, t0.Add(100*time.Millisecond))

	snap := ctrl.Snapshot(t0)

	for _, want := range []string{
		"[MON]", "user_x=120.0",
		"[HOP] ap -> relay-1 dist=30.0m",
		"[HOP] relay-3 -> user dist=30.0m",
		"[AGG] cumulative loss=0.0% rtt=100.0ms (tx=1 rx=1)",
		"[AGG] windowed",
		"[MAP]", "[POS]",
	} {
		if !strings.Contains(snap, want) {
			t.Fatalf("snapshot missing %q:\n%s", want, snap)
		}
	}
}

func TestControllerCoincidentTicksAreStable(t *testing.T) {
	// Monitor and balance arriving at the same instant on a healthy
	// corridor must leave the roster untouched in either order.
	store := corridorStore(t, 30, 0, []struct {
		x      float64
		active bool
	}{
		{x: 15, active: true},
	})
	rec := &countingRecorder{}
	ctrl, _ := newTestController(t, store, rec)

	ctx := context.Background()
	ctrl.OnMonitorTick(ctx, t0)
	ctrl.OnBalanceTick(ctx, t0, time.Second)
	ctrl.OnBalanceTick(ctx, t0, time.Second)
	ctrl.OnMonitorTick(ctx, t0)

	if rec.deployments != 0 {
		t.Fatalf("deployments = %d, want 0", rec.deployments)
	}
	if got := store.Get(relayID(1)).Coordinates.X; got != 15 {
		t.Fatalf("relay drifted to %v on a balanced chain", got)
	}
}
