package strategy

import "math"

// RandomSource is the subset of *rand.Rand the sampler needs.
type RandomSource interface {
	Float64() float64
	Intn(n int) int
}

// normal draws a standard normal variate with the Box-Muller transform.
func normal(rng RandomSource) float64 {
	u1 := 1 - rng.Float64() // (0, 1]
	u2 := rng.Float64()
	return math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
}

// Gamma draws from Gamma(shape, 1) using Marsaglia-Tsang. Shapes below one
// are boosted and corrected with u^(1/shape).
func Gamma(rng RandomSource, shape float64) float64 {
	if shape <= 0 {
		return 0
	}
	if shape < 1 {
		u := 1 - rng.Float64()
		return Gamma(rng, shape+1) * math.Pow(u, 1/shape)
	}

	d := shape - 1.0/3.0
	c := 1 / math.Sqrt(9*d)
	for {
		x := normal(rng)
		v := 1 + c*x
		if v <= 0 {
			continue
		}
		v = v * v * v
		u := rng.Float64()
		if u < 1-0.0331*x*x*x*x {
			return d * v
		}
		if math.Log(u) < 0.5*x*x+d*(1-v+math.Log(v)) {
			return d * v
		}
	}
}

// Beta draws from Beta(alpha, beta) as X/(X+Y) with X~Gamma(alpha), Y~Gamma(beta).
func Beta(rng RandomSource, alpha, beta float64) float64 {
	x := Gamma(rng, alpha)
	y := Gamma(rng, beta)
	if x+y == 0 {
		return 0.5
	}
	return x / (x + y)
}
