// Package city implements the single-city socio-economic transition model:
// logistic population growth, superlinear urban production, stochastic wealth
// distribution with an absorbing subsistence exit, and morale-driven migration.
package city

import "fmt"

// Literature-standard defaults. Beta is the super-linear scaling exponent for
// urban output; the shock scale matches the calibration of the reference model.
const (
	DefaultBeta       = 1.15
	DefaultShockSigma = 0.3
)

// Config holds every exogenous parameter of a city run. All economically
// meaningful parameters must be supplied; only Beta and the shock distribution
// carry defaults.
type Config struct {
	// Demography and environment.
	BaseGrowth   float64 `yaml:"base_growth"`   // Intrinsic growth rate (r)
	LandCapacity float64 `yaml:"land_capacity"` // Carrying capacity (K), constant for a run

	// Production.
	Beta    float64 `yaml:"beta"`     // Scaling exponent; 0 means DefaultBeta
	TaxRate float64 `yaml:"tax_rate"` // Share of gross yield withheld before distribution

	// Survival and shocks.
	SurvivalCost float64 `yaml:"survival_cost"` // Per capita subsistence threshold per period
	ShockMu      float64 `yaml:"shock_mu"`      // Log-normal location
	ShockSigma   float64 `yaml:"shock_sigma"`   // Log-normal scale; 0 means DefaultShockSigma

	// Morale and migration.
	Eta             float64 `yaml:"eta"`              // Baseline migration sensitivity
	BenchmarkMorale float64 `yaml:"benchmark_morale"` // Morale level with zero migration pull

	// Institutional parameters scaling migration sensitivity.
	Infrastructure float64 `yaml:"infrastructure"` // Transport / infrastructure index [0,1]
	PolicyBarrier  float64 `yaml:"policy_barrier"` // Institutional friction (hukou, visas)
	InfoFlow       float64 `yaml:"info_flow"`      // Information transparency [0,1]
	AlphaInfra     float64 `yaml:"alpha_infra"`    // Elasticity of the infrastructure effect
	AlphaPolicy    float64 `yaml:"alpha_policy"`   // Elasticity of the policy friction
	AlphaInfo      float64 `yaml:"alpha_info"`     // Elasticity of the information effect

	// Technical progress. GrowthFactor is the exogenous per-period TFP rate.
	// A positive EducationRate replaces it with the endogenous channel
	// edu*0.15/sqrt(TFP); the two are mutually exclusive.
	GrowthFactor  float64 `yaml:"growth_factor"`
	EducationRate float64 `yaml:"education_rate"`

	// Initial state.
	InitialPopulation   int     `yaml:"initial_population"`
	InitialWealth       float64 `yaml:"initial_wealth"`
	InitialProductivity float64 `yaml:"initial_productivity"`
}

// ConfigError reports an invalid exogenous parameter at construction.
// A run cannot start from an invalid configuration.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("city config: %s %s", e.Field, e.Reason)
}

// InvariantError reports an internal state inconsistency. It indicates a
// defect in the engine, not a user or modeling error.
type InvariantError struct {
	Detail string
}

func (e *InvariantError) Error() string {
	return "city invariant violated: " + e.Detail
}

// withDefaults returns the config with Beta and the shock scale filled in
// when left unset.
func (c Config) withDefaults() Config {
	if c.Beta == 0 {
		c.Beta = DefaultBeta
	}
	if c.ShockSigma == 0 {
		c.ShockSigma = DefaultShockSigma
	}
	return c
}

// Validate checks every exogenous parameter. Called by New after defaulting;
// exported so scenario loading can reject bad files before any run starts.
func (c Config) Validate() error {
	switch {
	case c.LandCapacity <= 0:
		return &ConfigError{"land_capacity", "must be positive"}
	case c.Beta <= 0:
		return &ConfigError{"beta", "must be positive"}
	case c.SurvivalCost < 0:
		return &ConfigError{"survival_cost", "must not be negative"}
	case c.ShockSigma <= 0:
		return &ConfigError{"shock_sigma", "must be positive"}
	case c.BenchmarkMorale <= 0:
		return &ConfigError{"benchmark_morale", "must be positive"}
	case c.TaxRate < 0 || c.TaxRate >= 1:
		return &ConfigError{"tax_rate", "must be in [0, 1)"}
	case c.GrowthFactor < 0:
		return &ConfigError{"growth_factor", "must not be negative"}
	case c.EducationRate < 0:
		return &ConfigError{"education_rate", "must not be negative"}
	case c.EducationRate > 0 && c.GrowthFactor > 0:
		return &ConfigError{"education_rate", "is exclusive with growth_factor"}
	case c.InitialPopulation < 0:
		return &ConfigError{"initial_population", "must not be negative"}
	case c.InitialWealth < 0:
		return &ConfigError{"initial_wealth", "must not be negative"}
	case c.InitialProductivity <= 0:
		return &ConfigError{"initial_productivity", "must be positive"}
	}
	return nil
}
