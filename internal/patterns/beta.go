package patterns

import (
	"math"

	"drift/internal/errors"
)

// Beta is a Beta(α, β) posterior over a pattern's conformance rate.
// Parameters are clamped to at least one, so the uniform prior is the
// floor and the mean is always defined.
type Beta struct {
	Alpha float64 `json:"alpha"`
	Beta  float64 `json:"beta"`
}

// NewBeta builds a posterior from k conforming observations in n trials:
// Beta(1 + k, 1 + n − k).
func NewBeta(k, n int) Beta {
	if k < 0 {
		k = 0
	}
	if n < k {
		n = k
	}
	return Beta{Alpha: 1 + float64(k), Beta: 1 + float64(n-k)}
}

// clamp enforces α ≥ 1 and β ≥ 1.
func (b Beta) clamp() Beta {
	if b.Alpha < 1 {
		b.Alpha = 1
	}
	if b.Beta < 1 {
		b.Beta = 1
	}
	return b
}

// Mean is the posterior mean α/(α+β).
func (b Beta) Mean() float64 {
	b = b.clamp()
	return b.Alpha / (b.Alpha + b.Beta)
}

// CredibleInterval returns the central interval at the given mass
// (0.95 for the engine's 95% interval), via the Beta inverse CDF.
func (b Beta) CredibleInterval(mass float64) (low, high float64, err error) {
	b = b.clamp()
	tail := (1 - mass) / 2
	low = betaQuantile(tail, b.Alpha, b.Beta)
	high = betaQuantile(1-tail, b.Alpha, b.Beta)
	if math.IsNaN(low) || math.IsInf(low, 0) || math.IsNaN(high) || math.IsInf(high, 0) {
		return 0, 0, errors.Newf(errors.DetectionInvalid,
			"beta quantile diverged for Beta(%.3f, %.3f)", b.Alpha, b.Beta)
	}
	return low, high, nil
}

// HalfWidth is half the 95% credible interval width; it shrinks
// monotonically as α+β grows.
func (b Beta) HalfWidth() (float64, error) {
	low, high, err := b.CredibleInterval(0.95)
	if err != nil {
		return 0, err
	}
	return (high - low) / 2, nil
}

// betaQuantile inverts the regularized incomplete beta function by
// bisection. Monotonicity of the CDF makes bisection unconditionally
// stable; sixty iterations give well under 1e-15 interval width.
func betaQuantile(p, alpha, beta float64) float64 {
	if p <= 0 {
		return 0
	}
	if p >= 1 {
		return 1
	}
	lo, hi := 0.0, 1.0
	for i := 0; i < 60; i++ {
		mid := (lo + hi) / 2
		if regIncompleteBeta(mid, alpha, beta) < p {
			lo = mid
		} else {
			hi = mid
		}
	}
	return (lo + hi) / 2
}

// regIncompleteBeta computes I_x(a, b) via the continued-fraction
// expansion (Lentz's method), using the symmetry relation for the
// slow-converging half.
func regIncompleteBeta(x, a, b float64) float64 {
	if x <= 0 {
		return 0
	}
	if x >= 1 {
		return 1
	}

	lbeta := lgamma(a+b) - lgamma(a) - lgamma(b)
	front := math.Exp(math.Log(x)*a + math.Log(1-x)*b + lbeta)

	if x < (a+1)/(a+b+2) {
		return front * betaCF(x, a, b) / a
	}
	return 1 - math.Exp(math.Log(1-x)*b+math.Log(x)*a+lbeta)*betaCF(1-x, b, a)/b
}

// betaCF is the continued fraction for the incomplete beta function.
func betaCF(x, a, b float64) float64 {
	const (
		maxIter = 200
		eps     = 3e-14
		tiny    = 1e-30
	)

	qab := a + b
	qap := a + 1
	qam := a - 1
	c := 1.0
	d := 1 - qab*x/qap
	if math.Abs(d) < tiny {
		d = tiny
	}
	d = 1 / d
	h := d

	for m := 1; m <= maxIter; m++ {
		fm := float64(m)
		m2 := 2 * fm

		aa := fm * (b - fm) * x / ((qam + m2) * (a + m2))
		d = 1 + aa*d
		if math.Abs(d) < tiny {
			d = tiny
		}
		c = 1 + aa/c
		if math.Abs(c) < tiny {
			c = tiny
		}
		d = 1 / d
		h *= d * c

		aa = -(a + fm) * (qab + fm) * x / ((a + m2) * (qap + m2))
		d = 1 + aa*d
		if math.Abs(d) < tiny {
			d = tiny
		}
		c = 1 + aa/c
		if math.Abs(c) < tiny {
			c = tiny
		}
		d = 1 / d
		del := d * c
		h *= del

		if math.Abs(del-1) < eps {
			break
		}
	}
	return h
}

func lgamma(x float64) float64 {
	v, _ := math.Lgamma(x)
	return v
}
