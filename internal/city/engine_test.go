package city

import (
	"errors"
	"math"
	"testing"
)

// unitSource removes stochastic variation: every log-normal draw is 1 and
// every uniform draw is 0.5.
type unitSource struct{}

func (unitSource) LogNormal(mu, sigma float64) float64 { return 1 }
func (unitSource) Float64() float64                    { return 0.5 }

// seqSource replays a fixed cycle of log-normal draws.
type seqSource struct {
	draws []float64
	i     int
}

func (s *seqSource) LogNormal(mu, sigma float64) float64 {
	d := s.draws[s.i%len(s.draws)]
	s.i++
	return d
}

func (s *seqSource) Float64() float64 { return 0.5 }

func referenceConfig() Config {
	return Config{
		BaseGrowth:          0.05,
		LandCapacity:        2000,
		Beta:                1.15,
		SurvivalCost:        5,
		ShockSigma:          0.3,
		Eta:                 0.1,
		BenchmarkMorale:     50,
		GrowthFactor:        0.01,
		InitialPopulation:   1000,
		InitialWealth:       100,
		InitialProductivity: 1.0,
	}
}

func TestReferenceScenarioOneStep(t *testing.T) {
	eng, err := New(referenceConfig(), unitSource{})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	if g := eng.CurrentGini(); g != 0 {
		t.Fatalf("expected initial gini 0 for uniform wealth, got %v", g)
	}

	res, err := eng.AdvanceOnePeriod()
	if err != nil {
		t.Fatalf("advance: %v", err)
	}

	if math.Abs(res.LogisticGrowth-0.025) > 1e-12 {
		t.Fatalf("expected logistic growth 0.025, got %v", res.LogisticGrowth)
	}
	wantYield := math.Pow(1000, 1.15)
	if math.Abs(res.GrossYield-wantYield) > 1e-9 {
		t.Fatalf("expected gross yield %v, got %v", wantYield, res.GrossYield)
	}
	if math.Abs(res.Productivity-1.01) > 1e-12 {
		t.Fatalf("expected productivity 1.01, got %v", res.Productivity)
	}
	if res.Population <= 0 {
		t.Fatalf("expected positive next population, got %d", res.Population)
	}
	for _, v := range []float64{res.Gini, res.Morale, res.Migration, res.MeanWealth} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("non-finite result value: %+v", res)
		}
	}
	// Uniform shocks and mean-wealth newcomers preserve equality up to
	// floating-point accumulation noise.
	if math.Abs(res.Gini) > 1e-9 {
		t.Fatalf("expected gini ~0 after uniform step, got %v", res.Gini)
	}
}

func TestExitFilterRemovesBelowSubsistence(t *testing.T) {
	cfg := Config{
		BaseGrowth:          0,
		LandCapacity:        1e6,
		Beta:                1,
		SurvivalCost:        20,
		ShockSigma:          0.3,
		Eta:                 0.1,
		BenchmarkMorale:     50,
		InitialPopulation:   4,
		InitialWealth:       10,
		InitialProductivity: 1.0,
	}
	// Gross yield 4, so each share is 1. Draws of 10 leave wealth at exactly
	// the subsistence floor; draws of 0.1 drop below it.
	src := &seqSource{draws: []float64{10, 10, 0.1, 0.1}}

	eng, err := New(cfg, src)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	res, err := eng.AdvanceOnePeriod()
	if err != nil {
		t.Fatalf("advance: %v", err)
	}

	for _, w := range eng.Wealth() {
		if w < 0 {
			t.Fatalf("individual below zero wealth survived: %v", w)
		}
	}
	// Survivors hold zero wealth, so morale collapses and migration bottoms
	// out at the maximum outflow rate.
	if res.Morale != 0 {
		t.Fatalf("expected zero morale, got %v", res.Morale)
	}
	if math.Abs(res.Migration-math.Log(0.7)) > 1e-12 {
		t.Fatalf("expected migration floored at ln(0.7), got %v", res.Migration)
	}
	if res.Population != 2 {
		t.Fatalf("expected population 2 after exits and outflow, got %d", res.Population)
	}
}

func TestExtinctionIsAbsorbing(t *testing.T) {
	cfg := referenceConfig()
	cfg.InitialPopulation = 0
	cfg.InitialWealth = 0

	eng, err := New(cfg, unitSource{})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	prevTFP := eng.Productivity()
	for step := 0; step < 5; step++ {
		res, err := eng.AdvanceOnePeriod()
		if err != nil {
			t.Fatalf("advance %d: %v", step, err)
		}
		if res.Population != 0 || eng.Population() != 0 {
			t.Fatalf("step %d: extinct city regrew to %d", step, res.Population)
		}
		if res.Morale != 0 || res.Migration != 0 {
			t.Fatalf("step %d: expected floored morale and migration, got %+v", step, res)
		}
		if res.Productivity <= prevTFP {
			t.Fatalf("step %d: productivity not increasing: %v <= %v", step, res.Productivity, prevTFP)
		}
		prevTFP = res.Productivity
	}
}

func TestTotalAttritionShortCircuits(t *testing.T) {
	cfg := referenceConfig()
	cfg.InitialPopulation = 10
	cfg.InitialWealth = 1
	cfg.SurvivalCost = 1000

	eng, err := New(cfg, unitSource{})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	res, err := eng.AdvanceOnePeriod()
	if err != nil {
		t.Fatalf("advance: %v", err)
	}

	if res.Population != 0 {
		t.Fatalf("expected extinction, got population %d", res.Population)
	}
	if res.GrossYield <= 0 {
		t.Fatalf("production ran before attrition, yield should be positive: %v", res.GrossYield)
	}
	if res.Gini != 0 || res.Morale != 0 || res.Migration != 0 {
		t.Fatalf("expected floored socio-metrics, got %+v", res)
	}
	if math.Abs(res.Productivity-1.01) > 1e-12 {
		t.Fatalf("technical progress should still apply, got %v", res.Productivity)
	}
}

func TestProductivityStrictlyIncreasing(t *testing.T) {
	eng, err := New(referenceConfig(), unitSource{})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	prev := eng.Productivity()
	for step := 0; step < 10; step++ {
		res, err := eng.AdvanceOnePeriod()
		if err != nil {
			t.Fatalf("advance %d: %v", step, err)
		}
		if res.Productivity <= prev {
			t.Fatalf("step %d: productivity %v not above %v", step, res.Productivity, prev)
		}
		prev = res.Productivity
	}
}

func TestEducationGrowthChannel(t *testing.T) {
	cfg := referenceConfig()
	cfg.GrowthFactor = 0
	cfg.EducationRate = 0.3
	cfg.InitialProductivity = 4.0

	eng, err := New(cfg, unitSource{})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	res, err := eng.AdvanceOnePeriod()
	if err != nil {
		t.Fatalf("advance: %v", err)
	}

	// edu*0.15/sqrt(TFP) = 0.3*0.15/2 = 0.0225 on a base of 4.
	want := 4.0 * 1.0225
	if math.Abs(res.Productivity-want) > 1e-12 {
		t.Fatalf("expected productivity %v, got %v", want, res.Productivity)
	}
}

func TestCensusMatchesPopulation(t *testing.T) {
	src := &seqSource{draws: []float64{0.4, 1.7, 0.9, 2.3, 1.1, 0.2}}
	eng, err := New(referenceConfig(), src)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	for step := 0; step < 20; step++ {
		res, err := eng.AdvanceOnePeriod()
		if err != nil {
			t.Fatalf("advance %d: %v", step, err)
		}
		if got := len(eng.Wealth()); got != eng.Population() || got != res.Population {
			t.Fatalf("step %d: census %d, population %d, result %d",
				step, got, eng.Population(), res.Population)
		}
		if res.Population == 0 {
			break
		}
	}
}

func TestEmigrantSelectionRemovesVulnerableFirst(t *testing.T) {
	eng, err := New(Config{
		BaseGrowth:          0,
		LandCapacity:        100,
		SurvivalCost:        0,
		Eta:                 0,
		BenchmarkMorale:     1,
		InitialPopulation:   4,
		InitialWealth:       100,
		InitialProductivity: 1,
	}, unitSource{})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	// With a constant uniform draw the vulnerability score is purely
	// wealth-ranked, so the poorest individual leaves.
	eng.wealth = []float64{1, 100, 100, 100}
	eng.shiftPopulation(3)

	if len(eng.wealth) != 3 {
		t.Fatalf("expected 3 remaining, got %d", len(eng.wealth))
	}
	for _, w := range eng.wealth {
		if w != 100 {
			t.Fatalf("expected the poorest to emigrate, remaining: %v", eng.wealth)
		}
	}
}

func TestNewcomersFlooredAtSurvivalCost(t *testing.T) {
	eng, err := New(Config{
		BaseGrowth:          0,
		LandCapacity:        100,
		SurvivalCost:        5,
		Eta:                 0,
		BenchmarkMorale:     1,
		InitialPopulation:   2,
		InitialWealth:       10,
		InitialProductivity: 1,
	}, &seqSource{draws: []float64{0.001}})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	eng.shiftPopulation(4)
	if len(eng.wealth) != 4 {
		t.Fatalf("expected 4 after inflow, got %d", len(eng.wealth))
	}
	for _, w := range eng.wealth[2:] {
		if w < 5 {
			t.Fatalf("newcomer below survival buffer: %v", w)
		}
	}
}

func TestMigrationSensitivity(t *testing.T) {
	cfg := referenceConfig()
	cfg.Infrastructure = 0.6
	cfg.PolicyBarrier = 0.4
	cfg.InfoFlow = 0.7
	cfg.AlphaInfra = 1.0
	cfg.AlphaPolicy = 1.5
	cfg.AlphaInfo = 0.8

	eng, err := New(cfg, unitSource{})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	want := (1 + 0.6) * math.Exp(-1.5*0.4) * (1 + 0.8*0.7)
	if got := eng.MigrationSensitivity(); math.Abs(got-want) > 1e-12 {
		t.Fatalf("expected sensitivity %v, got %v", want, got)
	}
}

func TestConfigValidation(t *testing.T) {
	mutations := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero land capacity", func(c *Config) { c.LandCapacity = 0 }},
		{"negative beta", func(c *Config) { c.Beta = -1 }},
		{"negative survival cost", func(c *Config) { c.SurvivalCost = -1 }},
		{"zero benchmark morale", func(c *Config) { c.BenchmarkMorale = 0 }},
		{"tax rate of one", func(c *Config) { c.TaxRate = 1 }},
		{"education with growth factor", func(c *Config) { c.EducationRate = 0.2 }},
		{"negative population", func(c *Config) { c.InitialPopulation = -1 }},
		{"zero productivity", func(c *Config) { c.InitialProductivity = 0 }},
	}

	for _, tc := range mutations {
		cfg := referenceConfig()
		tc.mutate(&cfg)
		_, err := New(cfg, unitSource{})
		var cerr *ConfigError
		if !errors.As(err, &cerr) {
			t.Fatalf("%s: expected ConfigError, got %v", tc.name, err)
		}
	}

	if _, err := New(referenceConfig(), nil); err == nil {
		t.Fatal("expected error for nil source")
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := referenceConfig()
	cfg.Beta = 0
	cfg.ShockSigma = 0
	d := cfg.withDefaults()
	if d.Beta != DefaultBeta {
		t.Fatalf("expected default beta %v, got %v", DefaultBeta, d.Beta)
	}
	if d.ShockSigma != DefaultShockSigma {
		t.Fatalf("expected default shock sigma %v, got %v", DefaultShockSigma, d.ShockSigma)
	}
}
