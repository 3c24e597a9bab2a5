package core

import (
	"sort"
	"testing"
)

const sepTolerance = 1e-9

func activeRelayXs(t *testing.T, relayXs []float64) (ids []string, build func() []float64, resolve func(float64) int) {
	t.Helper()
	relays := make([]struct {
		x      float64
		active bool
	}, len(relayXs))
	for i, x := range relayXs {
		relays[i].x = x
		relays[i].active = true
	}
	store := corridorStore(t, 1000, 0, relays)

	for i := range relayXs {
		ids = append(ids, relayID(i+1))
	}
	build = func() []float64 {
		xs := make([]float64, 0, len(ids))
		for _, id := range ids {
			xs = append(xs, store.Get(id).Coordinates.X)
		}
		return xs
	}
	resolve = func(minSep float64) int {
		return ResolveCollisions(store, minSep)
	}
	return ids, build, resolve
}

func assertSeparated(t *testing.T, xs []float64, minSep float64) {
	t.Helper()
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	for i := 0; i+1 < len(sorted); i++ {
		if gap := sorted[i+1] - sorted[i]; gap < minSep-sepTolerance {
			t.Fatalf("gap %v between sorted positions %v and %v below separation %v",
				gap, sorted[i], sorted[i+1], minSep)
		}
	}
}

func rankOrder(xs []float64) []int {
	idx := make([]int, len(xs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return xs[idx[a]] < xs[idx[b]] })
	return idx
}

func TestResolveCollisionsPairPushedApart(t *testing.T) {
	_, positions, resolve := activeRelayXs(t, []float64{50, 51})

	if got := resolve(5.0); got != 1 {
		t.Fatalf("corrections = %d, want 1", got)
	}
	xs := positions()
	if xs[0] != 48.0 || xs[1] != 53.0 {
		t.Fatalf("positions = %v, want 48 and 53 around midpoint 50.5", xs)
	}
	assertSeparated(t, xs, 5.0)
}

func TestResolveCollisionsTightPackReachesFixpoint(t *testing.T) {
	_, positions, resolve := activeRelayXs(t, []float64{50, 50.5, 51, 51.5})

	resolve(4.0)
	assertSeparated(t, positions(), 4.0)
}

func TestResolveCollisionsPreservesOrder(t *testing.T) {
	start := []float64{30, 31, 60, 60.5}
	_, positions, resolve := activeRelayXs(t, start)

	before := rankOrder(start)
	resolve(3.0)
	after := rankOrder(positions())
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("relay rank order changed: %v -> %v", before, after)
		}
	}
	assertSeparated(t, positions(), 3.0)
}

func TestResolveCollisionsNoopWhenSeparated(t *testing.T) {
	start := []float64{10, 30, 50}
	_, positions, resolve := activeRelayXs(t, start)

	if got := resolve(5.0); got != 0 {
		t.Fatalf("corrections = %d, want 0 for already-separated relays", got)
	}
	for i, x := range positions() {
		if x != start[i] {
			t.Fatalf("relay %d moved from %v to %v without a violation", i+1, start[i], x)
		}
	}
}

func TestResolveCollisionsNoopWithFewRelays(t *testing.T) {
	_, _, resolve := activeRelayXs(t, []float64{42})
	if got := resolve(5.0); got != 0 {
		t.Fatalf("corrections = %d, want 0 with a single relay", got)
	}

	_, _, resolve = activeRelayXs(t, nil)
	if got := resolve(5.0); got != 0 {
		t.Fatalf("corrections = %d, want 0 with no relays", got)
	}
}
