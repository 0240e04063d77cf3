// Package fmod computes fractional modification and compares it between
// treatment groups.
package fmod

import (
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Default comparison thresholds.
const (
	DefaultAlpha     = 0.05
	DefaultThreshold = 0.01
)

// Fraction returns mod/(mod+unmod). The result is nil when either area is
// missing or both are zero.
func Fraction(unmod, mod *float64) *float64 {
	if unmod == nil || mod == nil {
		return nil
	}
	denom := *unmod + *mod
	if denom == 0 {
		return nil
	}
	f := *mod / denom
	return &f
}

// Present returns the non-nil values.
func Present(values []*float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if v != nil {
			out = append(out, *v)
		}
	}
	return out
}

// Summary describes one group of fractions. Missing values are excluded.
type Summary struct {
	N    int
	Mean float64
	Std  float64 // population standard deviation
}

// Summarize returns the mean and population standard deviation of the present values.
func Summarize(values []*float64) Summary {
	xs := Present(values)
	if len(xs) == 0 {
		return Summary{}
	}
	mean, std := stat.PopMeanStdDev(xs, nil)
	return Summary{N: len(xs), Mean: mean, Std: std}
}

// Options controls a group comparison.
type Options struct {
	Alpha     float64 // significance level
	Threshold float64 // minimum mean fraction in either group
}

func (o Options) withDefaults() Options {
	if o.Alpha <= 0 {
		o.Alpha = DefaultAlpha
	}
	if o.Threshold < 0 {
		o.Threshold = DefaultThreshold
	}
	return o
}

// Comparison is the apo/holo comparison of one peptide.
type Comparison struct {
	Apo         Summary
	Holo        Summary
	T           *float64
	P           *float64
	Extent      *float64 // nil when a group has no values
	ExtentStd   *float64
	Significant bool
}

// Compare runs an equal-variance two-sample t-test between the present
// values of both groups. T and P are nil when the test is undefined (fewer
// than two values in a group or zero pooled variance).
func Compare(apo, holo []*float64, opts Options) Comparison {
	opts = opts.withDefaults()
	c := Comparison{Apo: Summarize(apo), Holo: Summarize(holo)}
	if e, std, ok := Extent(c.Apo, c.Holo); ok {
		c.Extent, c.ExtentStd = &e, &std
	}

	if t, p, ok := TTest(Present(apo), Present(holo)); ok {
		c.T, c.P = &t, &p
		c.Significant = p < opts.Alpha &&
			(c.Apo.Mean >= opts.Threshold || c.Holo.Mean >= opts.Threshold)
	}
	return c
}

// TTest is Student's two-sample t-test assuming equal variances. It returns
// the t statistic of a - b and the two-sided p-value.
func TTest(a, b []float64) (t, p float64, ok bool) {
	n1, n2 := float64(len(a)), float64(len(b))
	if len(a) < 2 || len(b) < 2 {
		return 0, 0, false
	}
	m1, v1 := stat.MeanVariance(a, nil)
	m2, v2 := stat.MeanVariance(b, nil)
	df := n1 + n2 - 2
	pooled := ((n1-1)*v1 + (n2-1)*v2) / df
	se := math.Sqrt(pooled * (1/n1 + 1/n2))
	if se == 0 || math.IsNaN(se) {
		return 0, 0, false
	}
	t = (m1 - m2) / se
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	p = 2 * dist.Survival(math.Abs(t))
	return t, p, true
}

// Extent is the relative change E_m = (holo - apo) / max(apo, holo) and its
// standard deviation by first-order error propagation. It is 0 when the means
// are equal and positive when holo is larger. ok is false when either group
// has no values.
func Extent(apo, holo Summary) (e, std float64, ok bool) {
	if apo.N == 0 || holo.N == 0 {
		return 0, 0, false
	}
	a, h := apo.Mean, holo.Mean
	if a == h {
		return 0, 0, true
	}
	// E = ±(1 - small/large); the deviation is that of the ratio.
	small, large, sSmall, sLarge, sign := a, h, apo.Std, holo.Std, 1.0
	if a > h {
		small, large, sSmall, sLarge, sign = h, a, holo.Std, apo.Std, -1.0
	}
	ratio := small / large
	e = sign * (1 - ratio)
	std = math.Sqrt(math.Pow(sSmall/large, 2) + math.Pow(small*sLarge/(large*large), 2))
	return e, std, true
}
