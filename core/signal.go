package core

import (
	"math"
	"math/rand"
)

// NoiseKind selects the distribution used for per-call noise draws.
type NoiseKind string

const (
	NoiseNone     NoiseKind = "none"
	NoiseUniform  NoiseKind = "uniform"
	NoiseGaussian NoiseKind = "gaussian"
)

// SignalConfig parameterises the log-distance path-loss estimator.
type SignalConfig struct {
	// TxPowerDBm is the transmit power baseline in dBm.
	TxPowerDBm float64
	// PathLossExponent is the environment exponent; 2.0 is free space,
	// 2.5 a typical suburban value.
	PathLossExponent float64
	// ReferenceDistanceM is the minimum distance the model is valid
	// for. Shorter distances are clamped to it before the log10.
	ReferenceDistanceM float64

	Noise NoiseKind
	// NoiseMean/NoiseSpread parameterise the draw: for uniform the draw
	// is from [Mean-Spread, Mean+Spread); for gaussian, Mean and
	// standard deviation Spread.
	NoiseMean   float64
	NoiseSpread float64
}

// DefaultSignalConfig returns the reference parameters: 20 dBm transmit
// power, exponent 2.5, 1 m reference distance, gaussian noise with a
// standard deviation of 1 dB.
func DefaultSignalConfig() SignalConfig {
	return SignalConfig{
		TxPowerDBm:         20.0,
		PathLossExponent:   2.5,
		ReferenceDistanceM: 1.0,
		Noise:              NoiseGaussian,
		NoiseMean:          0.0,
		NoiseSpread:        1.0,
	}
}

// SignalEstimator converts a hop distance into a signal-strength
// estimate (dBm). The deterministic component is strictly decreasing in
// distance beyond the reference distance; the noise term makes the
// estimate a decision signal, not a physical measurement.
type SignalEstimator struct {
	cfg SignalConfig
	rng *rand.Rand
}

// NewSignalEstimator constructs an estimator. A zero-value config is
// replaced with the defaults; the seed makes noise draws reproducible.
func NewSignalEstimator(cfg SignalConfig, seed int64) *SignalEstimator {
	if cfg == (SignalConfig{}) {
		cfg = DefaultSignalConfig()
	}
	if cfg.ReferenceDistanceM <= 0 {
		cfg.ReferenceDistanceM = 1.0
	}
	return &SignalEstimator{
		cfg: cfg,
		rng: rand.New(rand.NewSource(seed)),
	}
}

// Estimate returns the signal strength estimate in dBm for the given
// hop distance in metres.
func (e *SignalEstimator) Estimate(distanceM float64) float64 {
	return e.deterministic(distanceM) - e.noise()
}

// deterministic is the noise-free log-distance path loss component.
func (e *SignalEstimator) deterministic(distanceM float64) float64 {
	d0 := e.cfg.ReferenceDistanceM
	if distanceM < d0 {
		distanceM = d0
	}
	return e.cfg.TxPowerDBm - 10.0*e.cfg.PathLossExponent*math.Log10(distanceM/d0)
}

func (e *SignalEstimator) noise() float64 {
	switch e.cfg.Noise {
	case NoiseUniform:
		return e.cfg.NoiseMean - e.cfg.NoiseSpread + 2*e.cfg.NoiseSpread*e.rng.Float64()
	case NoiseGaussian:
		return e.cfg.NoiseMean + e.cfg.NoiseSpread*e.rng.NormFloat64()
	default:
		return 0
	}
}
