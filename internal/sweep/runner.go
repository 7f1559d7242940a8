// Package sweep drives grids of independent city runs across fiscal years.
package sweep

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/talgya/citysim/internal/city"
	"github.com/talgya/citysim/internal/scenario"
	"github.com/talgya/citysim/internal/stochastic"
)

// Run is one completed trajectory for a single (education, tax) combination.
type Run struct {
	ID       uuid.UUID
	Scenario string
	EduRate  float64
	TaxRate  float64
	Seed     uint64
	Years    int // Years actually simulated (may stop early on extinction)
	Extinct  bool
	Results  []city.Result
}

// Outcome is the last completed year of a run, the row the sweep report
// records per grid combination.
type Outcome struct {
	RunID   uuid.UUID
	EduRate float64
	TaxRate float64
	Final   city.Result
}

// Runner executes every combination of a scenario's grid. Each run owns its
// engine and its draw source, so runs advance in parallel with no shared
// state.
type Runner struct {
	Workers int // Concurrent runs; 0 means unbounded
}

// Execute runs the full grid and returns one Run per combination, in grid
// order (education-major, matching the reference sweep).
func (r *Runner) Execute(ctx context.Context, sc scenario.Scenario) ([]Run, error) {
	edus := sc.EduRates()
	taxes := sc.TaxRates()
	runs := make([]Run, len(edus)*len(taxes))

	g, ctx := errgroup.WithContext(ctx)
	if r.Workers > 0 {
		g.SetLimit(r.Workers)
	}

	for i, edu := range edus {
		for j, tax := range taxes {
			idx := i*len(taxes) + j
			edu, tax := edu, tax
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				run, err := executeOne(sc, edu, tax, sc.Seed+uint64(idx))
				if err != nil {
					return fmt.Errorf("run edu=%v tax=%v: %w", edu, tax, err)
				}
				runs[idx] = run
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return runs, nil
}

// executeOne simulates a single city for the scenario's year count, stopping
// early once the city is extinct (extinction is absorbing, so further years
// add no information).
func executeOne(sc scenario.Scenario, edu, tax float64, seed uint64) (Run, error) {
	cfg := sc.City
	cfg.TaxRate = tax
	cfg.EducationRate = edu
	if edu > 0 {
		cfg.GrowthFactor = 0
	}

	eng, err := city.New(cfg, stochastic.New(seed))
	if err != nil {
		return Run{}, err
	}

	run := Run{
		ID:       uuid.New(),
		Scenario: sc.Name,
		EduRate:  edu,
		TaxRate:  tax,
		Seed:     seed,
	}

	for year := 0; year < sc.Years; year++ {
		res, err := eng.AdvanceOnePeriod()
		if err != nil {
			return Run{}, err
		}
		run.Results = append(run.Results, res)
		run.Years = year + 1
		if res.Population == 0 {
			run.Extinct = true
			break
		}
	}

	slog.Debug("run complete",
		"scenario", sc.Name,
		"edu_rate", edu,
		"tax_rate", tax,
		"years", run.Years,
		"extinct", run.Extinct,
		"final_population", eng.Population(),
	)
	return run, nil
}

// Outcomes reduces runs to their final-row report: the last year in which the
// city still had inhabitants. For an extinct run the trailing population-0 year
// is skipped, so the row keeps the last meaningful state before the collapse.
// A city that never survives a single year yields a rates-only row.
func Outcomes(runs []Run) []Outcome {
	out := make([]Outcome, 0, len(runs))
	for _, run := range runs {
		o := Outcome{
			RunID:   run.ID,
			EduRate: run.EduRate,
			TaxRate: run.TaxRate,
		}
		for i := len(run.Results) - 1; i >= 0; i-- {
			if run.Results[i].Population > 0 {
				o.Final = run.Results[i]
				break
			}
		}
		out = append(out, o)
	}
	return out
}
