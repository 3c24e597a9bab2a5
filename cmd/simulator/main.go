package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/signalsfoundry/relaychain-simulator/core"
	"github.com/signalsfoundry/relaychain-simulator/internal/config"
	"github.com/signalsfoundry/relaychain-simulator/internal/logging"
	"github.com/signalsfoundry/relaychain-simulator/internal/observability"
	"github.com/signalsfoundry/relaychain-simulator/kb"
	"github.com/signalsfoundry/relaychain-simulator/timectrl"
)

func main() {
	duration := flag.Duration("duration", 60*time.Second, "total simulation duration")
	tick := flag.Duration("tick", 1*time.Second, "tick interval")
	accelerated := flag.Bool("accelerated", true, "run in accelerated mode (vs real-time)")
	configPath := flag.String("config", "", "path to a YAML config file (defaults apply when empty)")
	scenarioPath := flag.String("scenario", "", "path to a JSON scenario file (built from config when empty)")
	metricsAddr := flag.String("metrics-addr", "", "listen address for the /metrics endpoint (disabled when empty)")

	flag.Parse()

	ctx := context.Background()
	log := logging.NewFromEnv()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Error(ctx, "config load failed", logging.String("path", *configPath), logging.String("error", err.Error()))
			os.Exit(1)
		}
		cfg = loaded
	}

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		log.Error(ctx, "tracing init failed", logging.String("error", err.Error()))
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(ctx, shutdownTracing, log)

	var collector *observability.ControllerCollector
	if *metricsAddr != "" {
		collector, err = observability.NewControllerCollector(nil)
		if err != nil {
			log.Error(ctx, "metrics init failed", logging.String("error", err.Error()))
			os.Exit(1)
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", collector.Handler())
		go func() {
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				log.Error(ctx, "metrics endpoint failed", logging.String("error", err.Error()))
			}
		}()
		log.Info(ctx, "metrics endpoint listening", logging.String("addr", *metricsAddr))
	}

	// ==== Node roster ====

	store := kb.NewNodeStore()
	scenario, err := loadScenario(store, cfg, *scenarioPath)
	if err != nil {
		log.Error(ctx, "scenario load failed", logging.String("error", err.Error()))
		os.Exit(1)
	}
	log.Info(ctx, "scenario loaded",
		logging.Int("relays", len(scenario.RelayIDs)),
		logging.String("placement", string(scenario.Placement)),
		logging.Float64("user_speed_mps", scenario.UserSpeedMps),
	)

	// ==== Control loop ====

	est := core.NewSignalEstimator(core.SignalConfig{
		TxPowerDBm:         cfg.Signal.TxPowerDBm,
		PathLossExponent:   cfg.Signal.PathLossExponent,
		ReferenceDistanceM: cfg.Signal.ReferenceDistM,
		Noise:              core.NoiseKind(cfg.Signal.Noise),
		NoiseMean:          cfg.Signal.NoiseMean,
		NoiseSpread:        cfg.Signal.NoiseSpread,
	}, cfg.Signal.Seed)

	agg := core.NewAggregator()
	deployer := core.NewDeployer(store, agg, est, core.Thresholds{
		LossPct:     cfg.Thresholds.LossPct,
		RTTMs:       cfg.Thresholds.RTTMs,
		SignalDBm:   cfg.Thresholds.SignalDBm,
		MaxHopDistM: cfg.Thresholds.MaxHopDistM,
	}, core.Criterion(cfg.Thresholds.Criterion))
	balancer := core.NewBalancer(store, est, core.BalanceConfig{
		Metric:          core.BalanceMetric(cfg.Balance.Metric),
		MoveThreshold:   cfg.Balance.MoveThresholdM,
		MoveSpeedMps:    cfg.Balance.MoveSpeedMps,
		ClampToCorridor: *cfg.Balance.ClampToCorridor,
		ClampMarginM:    cfg.Balance.ClampMarginM,
	})

	ctrlCfg := core.DefaultControllerConfig()
	ctrlCfg.MinSeparationM = cfg.Balance.MinSeparationM

	var rec core.Recorder = core.NoopRecorder{}
	if collector != nil {
		rec = collector
	}
	ctrl := core.NewController(store, agg, est, deployer, balancer, ctrlCfg, log, rec)

	traffic := core.NewEchoTrafficModel(store, est, ctrl, core.DefaultEchoTrafficConfig(), cfg.Signal.Seed)

	userMotion := core.NewMotionModel(store.User(), cfg.Corridor.UserSpeedMps)

	// ==== Time controller ====

	mode := timectrl.RealTime
	if *accelerated {
		mode = timectrl.Accelerated
	}
	start := time.Now().UTC()
	tc := timectrl.NewTimeController(start, *tick, mode)

	tc.AddListener(func(simTime time.Time) {
		user := store.User()
		userMotion.Advance(*tick, user)
		if err := store.SetPosition(user.ID, user.Coordinates.X); err != nil {
			log.Warn(ctx, "user position update failed", logging.String("error", err.Error()))
		}
	})

	tc.AddPeriodicTask(traffic.Interval(), traffic.Tick)

	balanceInterval := time.Duration(cfg.Intervals.BalanceSec) * time.Second
	tc.AddPeriodicTask(balanceInterval, func(simTime time.Time) {
		ctrl.OnBalanceTick(ctx, simTime, balanceInterval)
	})

	monitorInterval := time.Duration(cfg.Intervals.MonitorSec) * time.Second
	tc.AddPeriodicTask(monitorInterval, func(simTime time.Time) {
		ctrl.OnMonitorTick(ctx, simTime)
		publishChainState(collector, store, agg, est)
		fmt.Println(ctrl.Snapshot(simTime))
	})

	log.Info(ctx, "simulation starting",
		logging.String("duration", duration.String()),
		logging.String("tick", tick.String()),
		logging.Any("mode", mode),
	)
	<-tc.Start(*duration)
	log.Info(ctx, "simulation complete")
}

// loadScenario fills the store either from a scenario file or from the
// corridor section of the config.
func loadScenario(store *kb.NodeStore, cfg config.Config, path string) (*core.Scenario, error) {
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open scenario %q: %w", path, err)
		}
		defer f.Close()
		return core.LoadScenario(store, f)
	}

	// Synthesize the scenario document so placement stays in one place.
	doc := map[string]any{
		"user": map[string]any{
			"start_x":   cfg.Corridor.SpanM,
			"speed_mps": cfg.Corridor.UserSpeedMps,
		},
		"access_point": map[string]any{"x": 0.0},
		"relays": map[string]any{
			"count":     cfg.Corridor.RelayCount,
			"placement": cfg.Corridor.Placement,
		},
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode corridor config: %w", err)
	}
	return core.LoadScenario(store, bytes.NewReader(raw))
}

// publishChainState refreshes the corridor gauges after a monitor
// evaluation.
func publishChainState(collector *observability.ControllerCollector, store *kb.NodeStore, agg *core.Aggregator, est *core.SignalEstimator) {
	if collector == nil {
		return
	}
	chain := core.BuildActiveChain(store)
	hops := core.Hops(chain, est)
	weakest, _ := core.WeakestSignal(hops)
	maxHop, _ := core.LongestHop(hops)

	userX := 0.0
	if user := store.User(); user != nil {
		userX = user.Coordinates.X
	}
	collector.SetChainState(
		len(store.ActiveRelays()),
		userX,
		weakest,
		maxHop,
		agg.LossRate(core.SeriesWindowed),
		agg.AverageRTT(core.SeriesWindowed),
	)
}
