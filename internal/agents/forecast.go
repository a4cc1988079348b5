package agents

import "gonum.org/v1/gonum/stat"

// Forecaster projects the next value of a market observation series. It is
// the seam between landlord decisions and the specific numerical method.
type Forecaster interface {
	// Forecast returns the one-step-ahead estimate over history, or
	// ok=false when the series is too short to project.
	Forecast(history []float64) (next float64, ok bool)
}

// LinearForecaster fits an ordinary least-squares line over the trailing
// Window observations and extrapolates one step forward.
type LinearForecaster struct {
	Window int
}

// Forecast implements Forecaster.
func (f LinearForecaster) Forecast(history []float64) (float64, bool) {
	if len(history) < f.Window {
		return 0, false
	}
	ys := history[len(history)-f.Window:]
	xs := make([]float64, len(ys))
	for i := range xs {
		xs[i] = float64(i)
	}
	intercept, slope := stat.LinearRegression(xs, ys, nil, false)
	return slope*float64(f.Window) + intercept, true
}
