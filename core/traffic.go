package core

import (
	"math/rand"
	"time"

	"github.com/signalsfoundry/relaychain-simulator/kb"
)

// TrafficSink receives the traffic events the echo model produces. The
// Controller implements it; tests can substitute their own.
type TrafficSink interface {
	OnPacketSent(id uint64, at time.Time)
	OnPacketReceived()
	OnRoundTripComplete(id uint64, at time.Time)
}

// EchoTrafficConfig parameterises the synthetic echo probe stream.
type EchoTrafficConfig struct {
	// Interval is the simulated time between probes.
	Interval time.Duration
	// BaseRTTMs is the round-trip cost of a zero-length path; each hop
	// adds PerHopRTTMs plus PerMeterRTTMs times its length.
	BaseRTTMs     float64
	PerHopRTTMs   float64
	PerMeterRTTMs float64
	// SignalFloorDBm is the estimate at which a hop's delivery
	// probability reaches zero; at SignalFullDBm and above delivery is
	// certain.
	SignalFloorDBm float64
	SignalFullDBm  float64
}

// DefaultEchoTrafficConfig returns probe parameters that keep a short
// chain essentially lossless and degrade sharply past the signal floor.
func DefaultEchoTrafficConfig() EchoTrafficConfig {
	return EchoTrafficConfig{
		Interval:       500 * time.Millisecond,
		BaseRTTMs:      2.0,
		PerHopRTTMs:    4.0,
		PerMeterRTTMs:  0.25,
		SignalFloorDBm: -85.0,
		SignalFullDBm:  -55.0,
	}
}

// EchoTrafficModel is the stand-in transport collaborator: it emits one
// echo probe per tick and decides delivery per hop from the signal
// estimate. It exists to close the control loop in the simulator
// binary and in scenario tests; it is not a PHY model.
type EchoTrafficModel struct {
	store *kb.NodeStore
	est   *SignalEstimator
	sink  TrafficSink
	cfg   EchoTrafficConfig
	rng   *rand.Rand

	nextID uint64
}

// NewEchoTrafficModel constructs a deterministic probe source for the
// given seed.
func NewEchoTrafficModel(store *kb.NodeStore, est *SignalEstimator, sink TrafficSink, cfg EchoTrafficConfig, seed int64) *EchoTrafficModel {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultEchoTrafficConfig().Interval
	}
	return &EchoTrafficModel{
		store: store,
		est:   est,
		sink:  sink,
		cfg:   cfg,
		rng:   rand.New(rand.NewSource(seed)),
	}
}

// Interval returns the probe period.
func (m *EchoTrafficModel) Interval() time.Duration { return m.cfg.Interval }

// Tick sends one probe along the current active chain and reports the
// outcome to the sink at the same simulated instant.
func (m *EchoTrafficModel) Tick(now time.Time) {
	chain := BuildActiveChain(m.store)
	if len(chain) < 2 {
		return
	}

	id := m.nextID
	m.nextID++
	m.sink.OnPacketSent(id, now)

	hops := Hops(chain, m.est)
	rttMs := m.cfg.BaseRTTMs
	for _, h := range hops {
		if m.rng.Float64() > m.deliveryProbability(h.SignalDB) {
			return // probe lost on this hop
		}
		rttMs += m.cfg.PerHopRTTMs + m.cfg.PerMeterRTTMs*h.DistM
	}

	m.sink.OnPacketReceived()
	m.sink.OnRoundTripComplete(id, now.Add(time.Duration(rttMs*float64(time.Millisecond))))
}

// deliveryProbability maps a hop signal estimate onto [0,1] linearly
// between the floor and full thresholds.
func (m *EchoTrafficModel) deliveryProbability(signalDB float64) float64 {
	if signalDB >= m.cfg.SignalFullDBm {
		return 1.0
	}
	if signalDB <= m.cfg.SignalFloorDBm {
		return 0.0
	}
	return (signalDB - m.cfg.SignalFloorDBm) / (m.cfg.SignalFullDBm - m.cfg.SignalFloorDBm)
}
