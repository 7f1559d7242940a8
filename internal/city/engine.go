package city

import (
	"math"
	"sort"
)

// Domain floors applied unconditionally during a step. These are modeling
// decisions, not error recovery: the log of morale is clamped rather than
// allowed to fail, and migration can drain at most 30% of the population in
// a single period.
const (
	moraleEpsilon  = 1e-9
	maxOutflowRate = -0.35667494393873245 // ln(0.7)
)

// giniTolerance absorbs floating-point noise when asserting the [0,1] bound.
const giniTolerance = 1e-9

// Source supplies the stochastic draws consumed by one engine. Each engine
// must own its source instance; independent runs may then advance in parallel
// without shared state.
type Source interface {
	// LogNormal draws from a log-normal distribution with the given
	// location and scale.
	LogNormal(mu, sigma float64) float64
	// Float64 draws uniformly from [0, 1).
	Float64() float64
}

// Result reports the observable quantities of one completed fiscal year.
type Result struct {
	Year           int     `json:"year" db:"year"`
	Population     int     `json:"population" db:"population"`
	Gini           float64 `json:"gini" db:"gini"`
	MeanWealth     float64 `json:"mean_wealth" db:"mean_wealth"`
	Morale         float64 `json:"morale" db:"morale"`
	Migration      float64 `json:"migration" db:"migration"`
	LogisticGrowth float64 `json:"logistic_growth" db:"logistic_growth"`
	GrossYield     float64 `json:"gross_yield" db:"gross_yield"`
	Productivity   float64 `json:"productivity" db:"productivity"`
}

// Engine holds one city's mutable state and advances it one fiscal year at a
// time. It is caller-owned: no package-level state, no ambient randomness.
// Not safe for concurrent use; run independent engines on independent
// goroutines instead.
type Engine struct {
	cfg Config
	src Source

	year         int
	productivity float64
	wealth       []float64 // One entry per surviving individual
}

// New constructs an engine from a validated configuration and a caller-owned
// draw source. Beta and the shock distribution receive their literature
// defaults when unset; every other parameter must be present and valid.
func New(cfg Config, src Source) (*Engine, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if src == nil {
		return nil, &ConfigError{"source", "must not be nil"}
	}

	wealth := make([]float64, cfg.InitialPopulation)
	for i := range wealth {
		wealth[i] = cfg.InitialWealth
	}

	return &Engine{
		cfg:          cfg,
		src:          src,
		productivity: cfg.InitialProductivity,
		wealth:       wealth,
	}, nil
}

// AdvanceOnePeriod performs exactly one fiscal-year transition in fixed order:
// logistic growth term, production, per-individual wealth shocks, subsistence
// exit, inequality, morale, migration pressure, population update, technical
// progress, commit. Growth and production read the pre-step population; every
// later quantity reads the already-updated values before it.
//
// An extinct city (population zero) is absorbing: the step reports zero
// morale and migration and the population stays zero, while exogenous
// technical progress keeps compounding.
func (e *Engine) AdvanceOnePeriod() (Result, error) {
	e.year++
	pop := len(e.wealth)

	if pop == 0 {
		e.productivity *= 1 + e.growthFactor()
		return Result{Year: e.year, Productivity: e.productivity}, nil
	}

	// 1. Logistic growth against carrying capacity, pre-step population.
	logistic := e.cfg.BaseGrowth * (1 - float64(pop)/e.cfg.LandCapacity)

	// 2. Superlinear urban production, pre-step population. The tax share is
	// withheld before distribution.
	gross := e.productivity * math.Pow(float64(pop), e.cfg.Beta)
	share := gross * (1 - e.cfg.TaxRate) / float64(pop)

	// 3. Each survivor receives an idiosyncratically shocked share of output,
	// then pays the survival cost.
	for i := range e.wealth {
		e.wealth[i] += share * e.src.LogNormal(e.cfg.ShockMu, e.cfg.ShockSigma)
		e.wealth[i] -= e.cfg.SurvivalCost
	}

	// 4. Absorbing exit: individuals below subsistence leave the wealth pool
	// and never re-enter.
	survivors := e.wealth[:0]
	for _, w := range e.wealth {
		if w >= 0 {
			survivors = append(survivors, w)
		}
	}
	e.wealth = survivors

	// 5. Total attrition short-circuits the socio-metric sub-steps: morale
	// and migration floor at zero and the projected population is zero.
	if len(e.wealth) == 0 {
		e.productivity *= 1 + e.growthFactor()
		return Result{
			Year:           e.year,
			LogisticGrowth: logistic,
			GrossYield:     gross,
			Productivity:   e.productivity,
		}, nil
	}

	gini := Gini(e.wealth)
	if gini < -giniTolerance || gini > 1+giniTolerance {
		return Result{}, &InvariantError{Detail: "gini outside [0,1]"}
	}

	// 6. Morale: per capita wealth discounted by inequality. (1-gini) may be
	// exactly zero, collapsing morale to zero.
	mean := meanOf(e.wealth)
	morale := mean * math.Pow(1-gini, 0.6)

	// 7. Migration pressure relative to the benchmark, scaled by the
	// institutional sensitivity and floored at the maximum outflow rate.
	raw := e.cfg.Eta * e.MigrationSensitivity() *
		math.Log(math.Max(morale, moraleEpsilon)/e.cfg.BenchmarkMorale)
	migration := math.Max(maxOutflowRate, raw)

	// 8. Population update from the pre-step count, truncated toward zero.
	projected := int(float64(pop) * math.Exp(logistic+migration))
	if projected < 0 {
		projected = 0
	}

	// 9. Technical progress is one-directional: it never reads morale,
	// inequality, or migration.
	e.productivity *= 1 + e.growthFactor()

	// 10. Commit: reconcile the per-individual census with the projected
	// aggregate count.
	e.shiftPopulation(projected)
	if len(e.wealth) != projected {
		return Result{}, &InvariantError{Detail: "wealth census diverged from population"}
	}

	return Result{
		Year:           e.year,
		Population:     len(e.wealth),
		Gini:           gini,
		MeanWealth:     mean,
		Morale:         morale,
		Migration:      migration,
		LogisticGrowth: logistic,
		GrossYield:     gross,
		Productivity:   e.productivity,
	}, nil
}

// MigrationSensitivity computes the institutional multiplier on migration
// pressure from infrastructure quality, policy barriers, and information
// flow. Pure and deterministic given the configuration.
func (e *Engine) MigrationSensitivity() float64 {
	infra := 1 + e.cfg.AlphaInfra*e.cfg.Infrastructure
	policy := math.Exp(-e.cfg.AlphaPolicy * e.cfg.PolicyBarrier)
	info := 1 + e.cfg.AlphaInfo*e.cfg.InfoFlow
	return infra * policy * info
}

// growthFactor returns the per-period TFP growth rate: the exogenous constant,
// or the education-investment channel with diminishing returns in TFP.
func (e *Engine) growthFactor() float64 {
	if e.cfg.EducationRate > 0 {
		return e.cfg.EducationRate * 0.15 / math.Sqrt(e.productivity)
	}
	return e.cfg.GrowthFactor
}

// shiftPopulation adjusts the wealth census to the projected aggregate count.
// Net inflow adds newcomers at mean surviving wealth times a log-normal draw,
// floored at one period's survival cost. Net outflow removes the most
// vulnerable first: score = uniform draw / (wealth + 0.1), highest scores
// leave. Emigrant selection creates no lasting order on the population.
func (e *Engine) shiftPopulation(projected int) {
	diff := projected - len(e.wealth)
	if diff == 0 {
		return
	}

	if diff > 0 {
		mean := meanOf(e.wealth)
		for i := 0; i < diff; i++ {
			w := mean * e.src.LogNormal(e.cfg.ShockMu, e.cfg.ShockSigma)
			e.wealth = append(e.wealth, math.Max(e.cfg.SurvivalCost, w))
		}
		return
	}

	leave := -diff
	if leave >= len(e.wealth) {
		e.wealth = e.wealth[:0]
		return
	}

	type scored struct {
		wealth float64
		score  float64
	}
	pool := make([]scored, len(e.wealth))
	for i, w := range e.wealth {
		pool[i] = scored{wealth: w, score: e.src.Float64() / (w + 0.1)}
	}
	sort.Slice(pool, func(i, j int) bool { return pool[i].score > pool[j].score })

	e.wealth = e.wealth[:0]
	for _, p := range pool[leave:] {
		e.wealth = append(e.wealth, p.wealth)
	}
}

// Year returns the number of completed fiscal years.
func (e *Engine) Year() int { return e.year }

// Population returns the current number of surviving individuals.
func (e *Engine) Population() int { return len(e.wealth) }

// Productivity returns the current TFP level.
func (e *Engine) Productivity() float64 { return e.productivity }

// CurrentGini returns the Gini coefficient of the current wealth census,
// 0 for an extinct city.
func (e *Engine) CurrentGini() float64 { return Gini(e.wealth) }

// MeanWealth returns per capita wealth, 0 for an extinct city.
func (e *Engine) MeanWealth() float64 { return meanOf(e.wealth) }

// Wealth returns a copy of the per-individual wealth census.
func (e *Engine) Wealth() []float64 {
	out := make([]float64, len(e.wealth))
	copy(out, e.wealth)
	return out
}

func meanOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var total float64
	for _, v := range values {
		total += v
	}
	return total / float64(len(values))
}
