// Package scenario loads and validates YAML scenario files describing a
// sweep of city runs.
package scenario

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/talgya/citysim/internal/city"
)

// Scenario describes one simulation campaign: the city configuration, the
// run length, and the education/tax grid swept over it.
type Scenario struct {
	Name  string      `yaml:"name"`
	Years int         `yaml:"years"`
	Seed  uint64      `yaml:"seed"`
	City  city.Config `yaml:"city"`
	Sweep Sweep       `yaml:"sweep"`
}

// Sweep defines the parameter grid: each factor scales both baselines,
// producing a len(factors)² grid of (education, tax) combinations. An empty
// factor list runs the baselines once.
type Sweep struct {
	EduBaseline float64   `yaml:"edu_baseline"`
	TaxBaseline float64   `yaml:"tax_baseline"`
	Factors     []float64 `yaml:"factors"`
}

// Load reads, unmarshals, and validates a scenario file. Invalid parameters
// are rejected here, before any run starts.
func Load(path string) (Scenario, error) {
	var s Scenario
	raw, err := os.ReadFile(path)
	if err != nil {
		return s, err
	}
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return s, fmt.Errorf("scenario %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return s, fmt.Errorf("scenario %s: %w", path, err)
	}
	return s, nil
}

// Validate checks the campaign parameters and the embedded city config.
func (s Scenario) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("name must be set")
	}
	if s.Years <= 0 {
		return fmt.Errorf("years must be positive, got %d", s.Years)
	}
	if s.Sweep.EduBaseline < 0 || s.Sweep.TaxBaseline < 0 {
		return fmt.Errorf("sweep baselines must not be negative")
	}
	for _, f := range s.Sweep.Factors {
		if f <= 0 {
			return fmt.Errorf("sweep factor must be positive, got %v", f)
		}
	}
	// The sweep overrides education and tax per run; validate the remaining
	// city parameters with the largest rates of the expanded grid applied, so
	// a combination that only fails mid-sweep (for example the top tax factor
	// pushing the rate to 1) is rejected before any run starts.
	cfg := s.City
	cfg.EducationRate = maxOf(s.EduRates())
	cfg.GrowthFactor = 0
	cfg.TaxRate = maxOf(s.TaxRates())
	if cfg.EducationRate == 0 {
		cfg.GrowthFactor = s.City.GrowthFactor
	}
	if cfg.Beta == 0 {
		cfg.Beta = city.DefaultBeta
	}
	if cfg.ShockSigma == 0 {
		cfg.ShockSigma = city.DefaultShockSigma
	}
	return cfg.Validate()
}

// EduRates returns the education rates of the grid.
func (s Scenario) EduRates() []float64 { return scale(s.Sweep.EduBaseline, s.Sweep.Factors) }

// TaxRates returns the tax rates of the grid.
func (s Scenario) TaxRates() []float64 { return scale(s.Sweep.TaxBaseline, s.Sweep.Factors) }

func maxOf(values []float64) float64 {
	max := values[0]
	for _, v := range values[1:] {
		if v > max {
			max = v
		}
	}
	return max
}

func scale(baseline float64, factors []float64) []float64 {
	if len(factors) == 0 {
		return []float64{baseline}
	}
	out := make([]float64, len(factors))
	for i, f := range factors {
		out[i] = baseline * f
	}
	return out
}
