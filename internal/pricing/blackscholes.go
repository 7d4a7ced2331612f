package pricing

import "math"

const sqrt2Pi = 2.5066282746310002

// Terms returns the standardized log-moneyness terms d1 and d2 of the
// Black-Scholes model.
//
//	d1 = (ln(spot/strike) + (rate + vol²/2)·expiry) / (vol·√expiry)
//	d2 = d1 − vol·√expiry
//
// Callers must supply spot, strike, expiry and vol > 0; violations are not
// checked here and surface as NaN/Inf in the results.
func Terms(spot, strike, expiry, rate, vol float64) (float64, float64) {
	d1 := (math.Log(spot/strike) + (rate+0.5*vol*vol)*expiry) / (vol * math.Sqrt(expiry))
	d2 := d1 - vol*math.Sqrt(expiry)
	return d1, d2
}

// CallPrice returns the Black-Scholes theoretical price of a European call:
//
//	spot·Φ(d1) − strike·e^(−rate·expiry)·Φ(d2)
//
// The price is non-negative for valid inputs. Same preconditions as Terms.
func CallPrice(spot, strike, expiry, rate, vol float64) float64 {
	d1, d2 := Terms(spot, strike, expiry, rate, vol)
	return spot*normCDF(d1) - strike*math.Exp(-rate*expiry)*normCDF(d2)
}

// Vega returns ∂price/∂vol, the Newton-Raphson derivative for the implied
// volatility search:
//
//	spot·φ(d1)·√expiry
//
// Vega is non-negative for valid inputs but collapses toward zero deep
// in/out of the money and near expiry.
func Vega(spot, strike, expiry, rate, vol float64) float64 {
	d1, _ := Terms(spot, strike, expiry, rate, vol)
	return spot * normPDF(d1) * math.Sqrt(expiry)
}

// normCDF is the standard normal cumulative distribution function.
func normCDF(x float64) float64 {
	return 0.5 * (1.0 + math.Erf(x/math.Sqrt2))
}

// normPDF is the standard normal probability density function.
func normPDF(x float64) float64 {
	return math.Exp(-0.5*x*x) / sqrt2Pi
}
