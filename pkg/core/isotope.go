package core

import (
	"fmt"
	"sort"
)

// Default isotope envelope limits.
const (
	DefaultIsotopeThreshold = 1e-4
	DefaultMaxIsotopePeaks  = 12
)

// IsotopePeak is one bin of an isotope envelope at an integer nominal offset
// from the monoisotopic mass.
type IsotopePeak struct {
	Offset    int
	Mass      float64 // abundance-weighted neutral mass of the bin
	Abundance float64
}

// Envelope is a theoretical isotope distribution. Abundances sum to 1.
type Envelope []IsotopePeak

// EnvelopeOptions bounds the convolution.
type EnvelopeOptions struct {
	Threshold float64 `yaml:"threshold"` // drop trailing bins whose abundance falls below this fraction
	MaxPeaks  int     `yaml:"max_peaks"`
}

func (o EnvelopeOptions) withDefaults() EnvelopeOptions {
	if o.Threshold <= 0 {
		o.Threshold = DefaultIsotopeThreshold
	}
	if o.MaxPeaks <= 0 {
		o.MaxPeaks = DefaultMaxIsotopePeaks
	}
	return o
}

// bin holds abundance and abundance*mass so that merged masses stay weighted.
type bin struct {
	abundance float64
	moment    float64
}

type distribution []bin

// elementDistribution returns the single-atom distribution indexed by nominal offset.
func elementDistribution(isotopes []Isotope) distribution {
	base := isotopes[0].MassNumber
	dist := make(distribution, isotopes[len(isotopes)-1].MassNumber-base+1)
	for _, iso := range isotopes {
		off := iso.MassNumber - base
		dist[off].abundance += iso.Abundance
		dist[off].moment += iso.Abundance * iso.Mass
	}
	return dist
}

// convolve combines two independent distributions, truncated to maxLen bins.
func convolve(a, b distribution, maxLen int) distribution {
	if len(a) == 0 {
		return b
	}
	if len(b) == 0 {
		return a
	}
	n := len(a) + len(b) - 1
	if n > maxLen {
		n = maxLen
	}
	out := make(distribution, n)
	for i, x := range a {
		if x.abundance == 0 {
			continue
		}
		for j, y := range b {
			if i+j >= n {
				break
			}
			if y.abundance == 0 {
				continue
			}
			out[i+j].abundance += x.abundance * y.abundance
			// E[m_a + m_b] weighted: moment_a*ab_b + moment_b*ab_a
			out[i+j].moment += x.moment*y.abundance + y.moment*x.abundance
		}
	}
	return out
}

// power raises a single-atom distribution to n atoms by repeated squaring.
func power(d distribution, n, maxLen int) distribution {
	var result distribution
	for n > 0 {
		if n&1 == 1 {
			result = convolve(result, d, maxLen)
		}
		n >>= 1
		if n > 0 {
			d = convolve(d, d, maxLen)
		}
	}
	return result
}

// IsotopeEnvelope computes the isotope distribution of a composition from the
// natural isotope frequencies of its elements.
func IsotopeEnvelope(comp Composition, opts EnvelopeOptions) (Envelope, error) {
	if err := comp.Validate(); err != nil {
		return nil, err
	}
	if len(comp) == 0 {
		return nil, fmt.Errorf("empty composition")
	}
	opts = opts.withDefaults()

	// Higher offsets never feed lower ones, so truncating at MaxPeaks is exact
	// for the bins that are kept.
	workLen := opts.MaxPeaks

	// Deterministic element order.
	symbols := make([]string, 0, len(comp))
	for el := range comp {
		symbols = append(symbols, el)
	}
	sort.Strings(symbols)

	var total distribution
	for _, el := range symbols {
		total = convolve(total, power(elementDistribution(Elements[el]), comp[el], workLen), workLen)
	}

	sum := 0.0
	for _, b := range total {
		sum += b.abundance
	}

	var env Envelope
	for off, b := range total {
		if b.abundance <= 0 {
			continue
		}
		env = append(env, IsotopePeak{
			Offset:    off,
			Mass:      b.moment / b.abundance,
			Abundance: b.abundance / sum,
		})
	}

	// Trim the low-abundance tail, then renormalise.
	for len(env) > 1 && env[len(env)-1].Abundance < opts.Threshold {
		env = env[:len(env)-1]
	}
	env.normalize()

	return env, nil
}

func (e Envelope) normalize() {
	sum := 0.0
	for _, p := range e {
		sum += p.Abundance
	}
	if sum == 0 {
		return
	}
	for i := range e {
		e[i].Abundance /= sum
	}
}

// TotalAbundance returns the sum of all abundances.
func (e Envelope) TotalAbundance() float64 {
	total := 0.0
	for _, p := range e {
		total += p.Abundance
	}
	return total
}

// MostAbundant returns the peak with the highest abundance.
func (e Envelope) MostAbundant() IsotopePeak {
	var best IsotopePeak
	for i, p := range e {
		if i == 0 || p.Abundance > best.Abundance {
			best = p
		}
	}
	return best
}

// Monoisotopic returns the offset-0 peak.
func (e Envelope) Monoisotopic() IsotopePeak {
	if len(e) == 0 {
		return IsotopePeak{}
	}
	return e[0]
}

// Relative returns a copy scaled so the most abundant peak is 1.
func (e Envelope) Relative() Envelope {
	out := make(Envelope, len(e))
	copy(out, e)
	top := e.MostAbundant().Abundance
	if top == 0 {
		return out
	}
	for i := range out {
		out[i].Abundance /= top
	}
	return out
}

// Peaks returns the envelope as m/z peaks for a charge state.
// Only the m/z positions depend on the charge; abundances are unchanged.
func (e Envelope) Peaks(charge int) []Peak {
	peaks := make([]Peak, len(e))
	for i, p := range e {
		peaks[i] = Peak{
			MZ:         MZ(p.Mass, charge),
			Intensity:  p.Abundance,
			Charge:     charge,
			Annotation: fmt.Sprintf("M+%d", p.Offset),
		}
	}
	return peaks
}
