package city

import opensimplex "github.com/ojrac/opensimplex-go"

// DriftGenerator produces a smooth, reversible time series used to nudge
// neighborhood desirability. The orchestrator samples it at consecutive
// month indices and applies the delta, so any implementation must be a
// continuous function of t.
type DriftGenerator interface {
	Value(t float64) float64
}

// simplexDrift samples one-dimensional opensimplex noise, domain-shifted
// by elapsed time and stretched so desirability moves over years, not
// months.
type simplexDrift struct {
	noise   opensimplex.Noise
	stretch float64
}

func (d *simplexDrift) Value(t float64) float64 {
	return d.noise.Eval2(t/d.stretch, 0)
}
