package pricing

import (
	"errors"
	"math"
)

// ErrNoSolution is returned when every starting guess fails to converge.
// There is deliberately no finer-grained failure taxonomy: divergence,
// leaving the positive domain, and flat vega are all recovered locally by
// moving on to the next guess.
var ErrNoSolution = errors.New("pricing: no implied volatility found")

const (
	// convergeTol is the absolute price error below which a candidate
	// volatility is accepted.
	convergeTol = 1e-6

	// divergeBound abandons a guess whose price error has exploded.
	divergeBound = 100.0

	// vegaFloor abandons a guess where the derivative is too flat for a
	// stable Newton step.
	vegaFloor = 0.001

	// maxIterations caps the Newton loop per guess. The search logic
	// terminates on its own for well-behaved inputs; the cap guards
	// against oscillation between two candidates that never converge.
	maxIterations = 100
)

// DefaultGuesses returns the standard ladder of starting volatilities:
// 58 guesses from 5% rising in 2.5% steps to just under 150% annualized.
// Guesses are tried in order and the first one whose Newton iteration
// converges wins, so the ladder biases toward the smallest plausible root.
func DefaultGuesses() []float64 {
	guesses := make([]float64, 0, 58)
	for x := 10; x < 300; x += 5 {
		guesses = append(guesses, float64(x)*0.005)
	}
	return guesses
}

// Solver recovers implied volatility from observed call prices using
// multi-start Newton-Raphson. The zero value is not usable; construct with
// NewSolver or NewSolverWithGuesses. A Solver is immutable after
// construction and safe for concurrent use.
type Solver struct {
	guesses []float64
}

// NewSolver returns a Solver using the default guess ladder.
func NewSolver() *Solver {
	return &Solver{guesses: DefaultGuesses()}
}

// NewSolverWithGuesses returns a Solver that tries the given starting
// volatilities in order.
func NewSolverWithGuesses(guesses []float64) *Solver {
	owned := make([]float64, len(guesses))
	copy(owned, guesses)
	return &Solver{guesses: owned}
}

// ImpliedVol finds the volatility at which the Black-Scholes call price
// matches observed, or returns ErrNoSolution if no starting guess
// converges. spot, strike and expiry must be positive; expiry is in years.
// Expired contracts (expiry ≤ 0) must be filtered out by the caller.
func (s *Solver) ImpliedVol(spot, strike, expiry, rate, observed float64) (float64, error) {
	for _, guess := range s.guesses {
		if vol, ok := newtonFrom(guess, spot, strike, expiry, rate, observed); ok {
			return vol, nil
		}
	}
	return 0, ErrNoSolution
}

// newtonFrom runs one Newton-Raphson iteration sequence from a single
// starting volatility. It reports failure as soon as the candidate leaves
// the positive domain, the price error explodes past divergeBound, or vega
// flattens below vegaFloor.
func newtonFrom(vol, spot, strike, expiry, rate, observed float64) (float64, bool) {
	for i := 0; i < maxIterations; i++ {
		if vol <= 0 {
			return 0, false
		}

		priceErr := CallPrice(spot, strike, expiry, rate, vol) - observed
		if math.Abs(priceErr) >= divergeBound {
			return 0, false
		}

		// The vega floor must rule before convergence is accepted: deep
		// out of the money the model price underflows to zero, so a
		// worthless quote matches it to within any tolerance while no
		// meaningful root exists there.
		vega := Vega(spot, strike, expiry, rate, vol)
		if vega < vegaFloor {
			return 0, false
		}

		if math.Abs(priceErr) < convergeTol {
			return vol, true
		}
		vol -= priceErr / vega
	}
	return 0, false
}
