package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/signalsfoundry/relaychain-simulator/internal/logging"
	"github.com/signalsfoundry/relaychain-simulator/kb"
)

const tracerName = "github.com/signalsfoundry/relaychain-simulator/core"

// Recorder receives controller events for metric export. The
// observability collector implements it; NoopRecorder is used when no
// exporter is wired.
type Recorder interface {
	RecordDeployment()
	RecordRelayMoves(n int)
	RecordCollisionCorrections(n int)
	RecordPacketSent()
	RecordPacketReceived()
	RecordRoundTrip(elapsed time.Duration)
}

// NoopRecorder drops every event.
type NoopRecorder struct{}

func (NoopRecorder) RecordDeployment()              {}
func (NoopRecorder) RecordRelayMoves(int)           {}
func (NoopRecorder) RecordCollisionCorrections(int) {}
func (NoopRecorder) RecordPacketSent()              {}
func (NoopRecorder) RecordPacketReceived()          {}
func (NoopRecorder) RecordRoundTrip(time.Duration)  {}

// ControllerConfig holds the knobs the controller applies itself, as
// opposed to those owned by the deployer and balancer.
type ControllerConfig struct {
	// MinSeparationM is the post-balance collision spacing; zero or
	// negative disables collision resolution.
	MinSeparationM float64
	// MapStepM is the corridor-metres-per-column scale of the snapshot
	// map.
	MapStepM float64
}

// DefaultControllerConfig mirrors the reference corridor run.
func DefaultControllerConfig() ControllerConfig {
	return ControllerConfig{
		MinSeparationM: 2.0,
		MapStepM:       10.0,
	}
}

// Controller ties the store, the aggregator, and the decision engines
// together behind the handler surface the scheduler drives. It owns no
// goroutines and keeps no timeline of its own.
type Controller struct {
	store    *kb.NodeStore
	metrics  *Aggregator
	est      *SignalEstimator
	deployer *Deployer
	balancer *Balancer
	cfg      ControllerConfig
	log      logging.Logger
	rec      Recorder
}

// NewController wires the control loop. A nil logger or recorder is
// replaced with a no-op.
func NewController(store *kb.NodeStore, metrics *Aggregator, est *SignalEstimator, deployer *Deployer, balancer *Balancer, cfg ControllerConfig, log logging.Logger, rec Recorder) *Controller {
	if log == nil {
		log = logging.Noop()
	}
	if rec == nil {
		rec = NoopRecorder{}
	}
	return &Controller{
		store:    store,
		metrics:  metrics,
		est:      est,
		deployer: deployer,
		balancer: balancer,
		cfg:      cfg,
		log:      log,
		rec:      rec,
	}
}

// OnPacketSent records a probe departure at the given simulated time.
func (c *Controller) OnPacketSent(id uint64, at time.Time) {
	c.metrics.RecordSend(id, at)
	c.rec.RecordPacketSent()
}

// OnPacketReceived records a probe arrival at the far end.
func (c *Controller) OnPacketReceived() {
	c.metrics.RecordReceive()
	c.rec.RecordPacketReceived()
}

// OnRoundTripComplete closes the loop for one probe. Unknown IDs are
// dropped by the aggregator and never reach the recorder.
func (c *Controller) OnRoundTripComplete(id uint64, at time.Time) {
	if elapsed, ok := c.metrics.RecordRoundTrip(id, at); ok {
		c.rec.RecordRoundTrip(elapsed)
	}
}

// OnMonitorTick runs one deployment evaluation against the windowed
// metrics. At most one relay activates per tick.
func (c *Controller) OnMonitorTick(ctx context.Context, simTime time.Time) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "controller.monitor")
	defer span.End()

	d, ok := c.deployer.MaybeDeploy(simTime)
	if !ok {
		return
	}

	span.SetAttributes(
		attribute.String("relay_id", d.RelayID),
		attribute.Float64("x", d.ToX),
	)
	c.log.Info(ctx, "relay deployed",
		logging.String("relay_id", d.RelayID),
		logging.Int("slot", d.Slot),
		logging.Float64("x", d.ToX),
		logging.Float64("loss_pct", d.LossPct),
		logging.Float64("rtt_ms", d.RTTMs),
		logging.Float64("signal_db", d.SignalDB),
		logging.Float64("max_hop_m", d.MaxHopM),
	)
	c.rec.RecordDeployment()
}

// OnBalanceTick repositions active relays toward their farther
// neighbour, then restores minimum spacing and ordering.
func (c *Controller) OnBalanceTick(ctx context.Context, simTime time.Time, interval time.Duration) {
	moves := c.balancer.Tick(interval)
	for _, m := range moves {
		c.log.Debug(ctx, "relay moved",
			logging.String("relay_id", m.RelayID),
			logging.Float64("from_x", m.FromX),
			logging.Float64("to_x", m.ToX),
		)
	}
	if len(moves) > 0 {
		c.rec.RecordRelayMoves(len(moves))
	}

	if corrections := ResolveCollisions(c.store, c.cfg.MinSeparationM); corrections > 0 {
		c.log.Debug(ctx, "collision corrections applied",
			logging.Int("corrections", corrections))
		c.rec.RecordCollisionCorrections(corrections)
	}
}

// Snapshot renders the monitor text block: simulated time, user
// position, every hop with distance and signal, both metric series,
// and the corridor map.
func (c *Controller) Snapshot(simTime time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "[MON] t=%s", simTime.Format("15:04:05"))
	if user := c.store.User(); user != nil {
		fmt.Fprintf(&b, " user_x=%.1f", user.Coordinates.X)
	}
	b.WriteByte('\n')

	chain := BuildActiveChain(c.store)
	for _, h := range Hops(chain, c.est) {
		fmt.Fprintf(&b, "[HOP] %s -> %s dist=%.1fm signal=%.1fdBm\n",
			h.From.ID, h.To.ID, h.DistM, h.SignalDB)
	}

	for _, s := range []struct {
		name   string
		series Series
	}{
		{"cumulative", SeriesCumulative},
		{"windowed  ", SeriesWindowed},
	} {
		tx, rx := c.metrics.Counts(s.series)
		fmt.Fprintf(&b, "[AGG] %s loss=%.1f%% rtt=%.1fms (tx=%d rx=%d)\n",
			s.name, c.metrics.LossRate(s.series), c.metrics.AverageRTT(s.series), tx, rx)
	}

	b.WriteString(RenderCorridorMap(c.store, c.cfg.MapStepM))
	return b.String()
}
