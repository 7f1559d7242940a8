// Package stochastic provides the seedable random draw source consumed by
// city engines. Every run owns its own source, so identical seeds replay
// identical trajectories and independent runs never contend on a shared
// generator.
package stochastic

import (
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// Source produces log-normal and uniform draws from a single seeded stream.
// Not safe for concurrent use; construct one per run.
type Source struct {
	rng *rand.Rand
}

// New creates a source seeded deterministically.
func New(seed uint64) *Source {
	return &Source{rng: rand.New(rand.NewSource(seed))}
}

// LogNormal draws from a log-normal distribution with the given location and
// scale.
func (s *Source) LogNormal(mu, sigma float64) float64 {
	return distuv.LogNormal{Mu: mu, Sigma: sigma, Src: s.rng}.Rand()
}

// Float64 draws uniformly from [0, 1).
func (s *Source) Float64() float64 {
	return s.rng.Float64()
}
