package pipeline

import "github.com/poiesic/veritas/core"

// Weights sets how much each signal contributes to the combined
// confidence. The defaults sum to 1.
type Weights struct {
	Coherence   float64
	Strength    float64
	Compression float64
	Consensus   float64
	Temporal    float64
	Generation  float64
}

// DefaultWeights returns the standard fusion weights.
func DefaultWeights() Weights {
	return Weights{
		Coherence:   0.15,
		Strength:    0.15,
		Compression: 0.10,
		Consensus:   0.20,
		Temporal:    0.15,
		Generation:  0.25,
	}
}

// Values used for signals a query never recorded, matching each stage's
// resting diagnostic.
var restingSignals = map[string]float64{
	core.SignalCoherence:   0.85,
	core.SignalStrength:    0.75,
	core.SignalCompression: 1.0,
	core.SignalConsensus:   0.92,
	core.SignalTemporal:    0.78,
}

func signal(qc *core.QueryContext, name string) float64 {
	if v, ok := qc.Signal(name); ok {
		return core.Clamp01(v)
	}
	return restingSignals[name]
}

// Fuse combines the recorded signals with the generation confidence into
// a value in [0, 1].
func Fuse(w Weights, qc *core.QueryContext, generation float64) float64 {
	combined := w.Coherence*signal(qc, core.SignalCoherence) +
		w.Strength*signal(qc, core.SignalStrength) +
		w.Compression*signal(qc, core.SignalCompression) +
		w.Consensus*signal(qc, core.SignalConsensus) +
		w.Temporal*signal(qc, core.SignalTemporal) +
		w.Generation*core.Clamp01(generation)
	return core.Clamp01(combined)
}
