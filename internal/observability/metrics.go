package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ControllerCollector bundles the relay chain Prometheus metrics and
// provides a ready-to-serve /metrics handler. It implements the
// controller's Recorder interface.
type ControllerCollector struct {
	gatherer prometheus.Gatherer

	ActiveRelays        prometheus.Gauge
	UserPosition        prometheus.Gauge
	WeakestHopSignalDBm prometheus.Gauge
	MaxHopDistM         prometheus.Gauge
	WindowedLossPct     prometheus.Gauge
	WindowedRTTMs       prometheus.Gauge

	DeploymentsTotal          prometheus.Counter
	RelayMovesTotal           prometheus.Counter
	CollisionCorrectionsTotal prometheus.Counter
	PacketsSentTotal          prometheus.Counter
	PacketsReceivedTotal      prometheus.Counter

	RoundTripDuration prometheus.Histogram
}

// NewControllerCollector registers relay chain metrics against the
// provided registerer, defaulting to the global Prometheus registry
// when nil.
func NewControllerCollector(reg prometheus.Registerer) (*ControllerCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	activeRelays, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "relay_chain_active_relays",
		Help: "Number of relays currently participating in the chain.",
	}), "relay_chain_active_relays")
	if err != nil {
		return nil, err
	}
	userPosition, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "relay_chain_user_position_m",
		Help: "Corridor position of the user node in metres.",
	}), "relay_chain_user_position_m")
	if err != nil {
		return nil, err
	}
	weakestSignal, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "relay_chain_weakest_hop_signal_dbm",
		Help: "Signal estimate of the weakest hop at the last monitor evaluation.",
	}), "relay_chain_weakest_hop_signal_dbm")
	if err != nil {
		return nil, err
	}
	maxHop, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "relay_chain_max_hop_dist_m",
		Help: "Longest hop distance at the last monitor evaluation.",
	}), "relay_chain_max_hop_dist_m")
	if err != nil {
		return nil, err
	}
	windowedLoss, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "relay_chain_windowed_loss_pct",
		Help: "Packet loss percentage over the current deployment window.",
	}), "relay_chain_windowed_loss_pct")
	if err != nil {
		return nil, err
	}
	windowedRTT, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "relay_chain_windowed_rtt_ms",
		Help: "Average round-trip time in milliseconds over the current deployment window.",
	}), "relay_chain_windowed_rtt_ms")
	if err != nil {
		return nil, err
	}

	deployments, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_chain_deployments_total",
		Help: "Cumulative number of relay deployments.",
	}), "relay_chain_deployments_total")
	if err != nil {
		return nil, err
	}
	relayMoves, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_chain_relay_moves_total",
		Help: "Cumulative number of relay repositioning moves.",
	}), "relay_chain_relay_moves_total")
	if err != nil {
		return nil, err
	}
	corrections, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_chain_collision_corrections_total",
		Help: "Cumulative number of relay spacing corrections.",
	}), "relay_chain_collision_corrections_total")
	if err != nil {
		return nil, err
	}
	packetsSent, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_chain_packets_sent_total",
		Help: "Cumulative number of probe packets sent by the user.",
	}), "relay_chain_packets_sent_total")
	if err != nil {
		return nil, err
	}
	packetsReceived, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_chain_packets_received_total",
		Help: "Cumulative number of probe packets received by the access point.",
	}), "relay_chain_packets_received_total")
	if err != nil {
		return nil, err
	}

	roundTrip := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "relay_chain_round_trip_seconds",
		Help:    "Probe round-trip time in seconds.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.15, 0.25, 0.5, 1, 2},
	})
	roundTrip, err = registerHistogram(reg, roundTrip, "relay_chain_round_trip_seconds")
	if err != nil {
		return nil, err
	}

	return &ControllerCollector{
		gatherer:                  gatherer,
		ActiveRelays:              activeRelays,
		UserPosition:              userPosition,
		WeakestHopSignalDBm:       weakestSignal,
		MaxHopDistM:               maxHop,
		WindowedLossPct:           windowedLoss,
		WindowedRTTMs:             windowedRTT,
		DeploymentsTotal:          deployments,
		RelayMovesTotal:           relayMoves,
		CollisionCorrectionsTotal: corrections,
		PacketsSentTotal:          packetsSent,
		PacketsReceivedTotal:      packetsReceived,
		RoundTripDuration:         roundTrip,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *ControllerCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *ControllerCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// SetChainState updates the corridor gauges from the latest monitor
// evaluation.
func (c *ControllerCollector) SetChainState(activeRelays int, userX, weakestSignalDBm, maxHopDistM, windowedLossPct, windowedRTTMs float64) {
	if c == nil {
		return
	}
	if c.ActiveRelays != nil {
		c.ActiveRelays.Set(float64(activeRelays))
	}
	if c.UserPosition != nil {
		c.UserPosition.Set(userX)
	}
	if c.WeakestHopSignalDBm != nil {
		c.WeakestHopSignalDBm.Set(weakestSignalDBm)
	}
	if c.MaxHopDistM != nil {
		c.MaxHopDistM.Set(maxHopDistM)
	}
	if c.WindowedLossPct != nil {
		c.WindowedLossPct.Set(windowedLossPct)
	}
	if c.WindowedRTTMs != nil {
		c.WindowedRTTMs.Set(windowedRTTMs)
	}
}

// RecordDeployment increments the deployment counter.
func (c *ControllerCollector) RecordDeployment() {
	if c == nil || c.DeploymentsTotal == nil {
		return
	}
	c.DeploymentsTotal.Inc()
}

// RecordRelayMoves adds n relay repositioning moves.
func (c *ControllerCollector) RecordRelayMoves(n int) {
	if c == nil || c.RelayMovesTotal == nil || n <= 0 {
		return
	}
	c.RelayMovesTotal.Add(float64(n))
}

// RecordCollisionCorrections adds n spacing corrections.
func (c *ControllerCollector) RecordCollisionCorrections(n int) {
	if c == nil || c.CollisionCorrectionsTotal == nil || n <= 0 {
		return
	}
	c.CollisionCorrectionsTotal.Add(float64(n))
}

// RecordPacketSent increments the probe send counter.
func (c *ControllerCollector) RecordPacketSent() {
	if c == nil || c.PacketsSentTotal == nil {
		return
	}
	c.PacketsSentTotal.Inc()
}

// RecordPacketReceived increments the probe receive counter.
func (c *ControllerCollector) RecordPacketReceived() {
	if c == nil || c.PacketsReceivedTotal == nil {
		return
	}
	c.PacketsReceivedTotal.Inc()
}

// RecordRoundTrip records one probe round-trip measurement.
func (c *ControllerCollector) RecordRoundTrip(elapsed time.Duration) {
	if c == nil || c.RoundTripDuration == nil {
		return
	}
	c.RoundTripDuration.Observe(elapsed.Seconds())
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}
