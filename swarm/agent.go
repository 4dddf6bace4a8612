package swarm

import "math/rand/v2"

// Specialization selects an agent's fitness and movement rule.
type Specialization int

const (
	Explorer Specialization = iota
	Exploiter
	Scout
)

func (s Specialization) String() string {
	switch s {
	case Explorer:
		return "explorer"
	case Exploiter:
		return "exploiter"
	case Scout:
		return "scout"
	}
	return "unknown"
}

// agent is one particle. Agents live in a slice and are addressed by index.
type agent struct {
	position       []float64
	velocity       []float64
	bestPosition   []float64
	bestScore      float64
	specialization Specialization
}

// specializationFor assigns the i-th of n agents: the first 60% explore,
// the next 30% exploit and the rest scout.
func specializationFor(i, n int) Specialization {
	switch {
	case float64(i) < float64(n)*0.6:
		return Explorer
	case float64(i) < float64(n)*0.9:
		return Exploiter
	}
	return Scout
}

func randomVector(rng *rand.Rand, dims int, scale float64) []float64 {
	v := make([]float64, dims)
	for i := range v {
		v[i] = rng.NormFloat64() * scale
	}
	return v
}
