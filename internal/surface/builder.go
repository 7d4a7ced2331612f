// Package surface turns raw call option quotes into implied volatility
// surface points. It is the consuming glue around the pricing core: it
// applies the caller-side filters (expired contracts, junk moneyness) and
// drops quotes the solver cannot invert.
package surface

import (
	"sort"
	"sync"

	"github.com/jwaldner/ivsurface/internal/pricing"
)

// Quote is one observed call option quote. TimeToExpiry is in years.
type Quote struct {
	Strike        float64
	ObservedPrice float64
	TimeToExpiry  float64
}

// Point is one point of the implied volatility surface.
type Point struct {
	Moneyness    float64 `json:"moneyness" csv:"moneyness"`
	TimeToExpiry float64 `json:"time_to_expiry" csv:"time_to_expiry"`
	ImpliedVol   float64 `json:"implied_volatility" csv:"implied_volatility"`
}

// Result is a built surface plus bookkeeping about what was dropped.
type Result struct {
	Points  []Point
	Quotes  int // quotes supplied
	Failed  int // solver found no implied volatility
	Skipped int // expired or outside the moneyness bounds
}

// Builder computes surfaces with a fixed solver and worker budget.
// Solves are independent pure computations, so quotes are fanned out
// across workers with no coordination beyond the job channel.
type Builder struct {
	solver       *pricing.Solver
	workers      int
	moneynessMin float64
	moneynessMax float64
}

// NewBuilder returns a Builder running at most workers concurrent solves
// and keeping only points with moneynessMin < strike/spot < moneynessMax.
func NewBuilder(workers int, moneynessMin, moneynessMax float64) *Builder {
	if workers < 1 {
		workers = 1
	}
	return &Builder{
		solver:       pricing.NewSolver(),
		workers:      workers,
		moneynessMin: moneynessMin,
		moneynessMax: moneynessMax,
	}
}

// Build solves every quote against the given spot and risk-free rate and
// returns the surviving surface points sorted by expiry, then moneyness.
// The ordering is deterministic regardless of worker scheduling.
func (b *Builder) Build(spot, riskFreeRate float64, quotes []Quote) Result {
	type outcome int
	const (
		solved outcome = iota
		failed
		skipped
	)

	points := make([]Point, len(quotes))
	outcomes := make([]outcome, len(quotes))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < b.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				q := quotes[i]

				// The pricing core requires T > 0; expired rows are
				// filtered here, never passed down.
				if q.TimeToExpiry <= 0 || q.Strike <= 0 || q.ObservedPrice < 0 {
					outcomes[i] = skipped
					continue
				}
				moneyness := q.Strike / spot
				if moneyness <= b.moneynessMin || moneyness >= b.moneynessMax {
					outcomes[i] = skipped
					continue
				}

				vol, err := b.solver.ImpliedVol(spot, q.Strike, q.TimeToExpiry, riskFreeRate, q.ObservedPrice)
				if err != nil {
					outcomes[i] = failed
					continue
				}
				points[i] = Point{
					Moneyness:    moneyness,
					TimeToExpiry: q.TimeToExpiry,
					ImpliedVol:   vol,
				}
				outcomes[i] = solved
			}
		}()
	}

	for i := range quotes {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	result := Result{Quotes: len(quotes)}
	for i, o := range outcomes {
		switch o {
		case solved:
			result.Points = append(result.Points, points[i])
		case failed:
			result.Failed++
		case skipped:
			result.Skipped++
		}
	}

	sort.Slice(result.Points, func(i, j int) bool {
		if result.Points[i].TimeToExpiry != result.Points[j].TimeToExpiry {
			return result.Points[i].TimeToExpiry < result.Points[j].TimeToExpiry
		}
		return result.Points[i].Moneyness < result.Points[j].Moneyness
	})

	return result
}
