package random

import (
	"math"
	"math/rand"
)

// Engine is the process-wide random number generator. One instance is shared
// by every stochastic module; each draws sequentially in Process order, so a
// run is fully determined by its seed.
type Engine struct {
	src *rand.Rand
}

func New(seed int64) *Engine {
	return &Engine{src: rand.New(rand.NewSource(seed))}
}

// Uniform draws from [0,1).
func (e *Engine) Uniform() float64 { return e.src.Float64() }

// Gauss draws from N(mu, sigma).
func (e *Engine) Gauss(mu, sigma float64) float64 {
	return mu + sigma*e.src.NormFloat64()
}

// LogNormal draws from a log-normal whose arithmetic mean is mean and whose
// absolute spread is sigma: b = sqrt(ln(1+sigma²/mean²)), a = ln(mean) − b²/2,
// draw = exp(a + b·N(0,1)). A non-positive mean returns 0; a non-positive
// sigma returns the mean unchanged.
func (e *Engine) LogNormal(mean, sigma float64) float64 {
	if mean <= 0 {
		return 0
	}
	if sigma <= 0 {
		return mean
	}
	b := math.Sqrt(math.Log(1 + sigma*sigma/(mean*mean)))
	a := math.Log(mean) - 0.5*b*b
	return math.Exp(a + b*e.src.NormFloat64())
}

// Poisson draws a Poisson-distributed count with the given mean, by
// multiplication of uniforms for small means and a normal approximation
// above 30.
func (e *Engine) Poisson(mean float64) int {
	if mean <= 0 {
		return 0
	}
	if mean > 30 {
		n := int(math.Round(e.Gauss(mean, math.Sqrt(mean))))
		if n < 0 {
			return 0
		}
		return n
	}
	limit := math.Exp(-mean)
	n := 0
	for prod := e.src.Float64(); prod > limit; prod *= e.src.Float64() {
		n++
	}
	return n
}
