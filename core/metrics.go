package core

import (
	"sync"
	"time"
)

// Series selects which counter series a metrics query reads.
type Series int

const (
	// SeriesCumulative accumulates for the lifetime of the run and is
	// never reset.
	SeriesCumulative Series = iota
	// SeriesWindowed accumulates since the last deployment; the
	// deployment engine resets it so each decision sees fresh traffic.
	SeriesWindowed
)

type counterSet struct {
	txPackets  uint64
	rxPackets  uint64
	rttSamples uint64
	avgRTTMs   float64
}

func (c *counterSet) recordRTT(ms float64) {
	c.rttSamples++
	c.avgRTTMs += (ms - c.avgRTTMs) / float64(c.rttSamples)
}

// Aggregator tracks send/receive/round-trip counters in two parallel
// series. It replaces the per-callback globals of earlier designs with
// a single owned instance handed to every callback site.
type Aggregator struct {
	mu sync.Mutex

	cumulative counterSet
	windowed   counterSet

	// pending maps packet IDs to send timestamps so a later round-trip
	// completion can be correlated.
	pending map[uint64]time.Time
}

// NewAggregator constructs an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		pending: make(map[uint64]time.Time),
	}
}

// RecordSend notes a packet leaving the user at the given simulated
// time and increments both send counters.
func (a *Aggregator) RecordSend(id uint64, at time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.pending[id] = at
	a.cumulative.txPackets++
	a.windowed.txPackets++
}

// RecordReceive increments both receive counters.
func (a *Aggregator) RecordReceive() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.cumulative.rxPackets++
	a.windowed.rxPackets++
}

// RecordRoundTrip completes the round trip for id at the given
// simulated time, updating the running RTT average of both series. It
// returns the measured round-trip time. Unknown or already-consumed
// IDs are dropped silently: late and duplicate completions are
// expected, not errors.
func (a *Aggregator) RecordRoundTrip(id uint64, at time.Time) (time.Duration, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	sent, ok := a.pending[id]
	if !ok {
		return 0, false
	}
	delete(a.pending, id)

	elapsed := at.Sub(sent)
	ms := float64(elapsed) / float64(time.Millisecond)
	a.cumulative.recordRTT(ms)
	a.windowed.recordRTT(ms)
	return elapsed, true
}

// ResetWindow zeroes the windowed series and drops pending send
// timestamps. The cumulative series is untouched.
func (a *Aggregator) ResetWindow() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.windowed = counterSet{}
	a.pending = make(map[uint64]time.Time)
}

// LossRate returns the loss percentage for the series. A series with
// zero sends has a loss rate of zero by convention.
func (a *Aggregator) LossRate(s Series) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	c := a.series(s)
	if c.txPackets == 0 {
		return 0
	}
	return 100.0 * (1.0 - float64(c.rxPackets)/float64(c.txPackets))
}

// AverageRTT returns the running-average round-trip time in
// milliseconds for the series; zero when no samples exist.
func (a *Aggregator) AverageRTT(s Series) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.series(s).avgRTTMs
}

// Counts returns the raw send/receive counters for the series.
func (a *Aggregator) Counts(s Series) (tx, rx uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	c := a.series(s)
	return c.txPackets, c.rxPackets
}

func (a *Aggregator) series(s Series) *counterSet {
	if s == SeriesWindowed {
		return &a.windowed
	}
	return &a.cumulative
}
