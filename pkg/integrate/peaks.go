package integrate

import (
	"math"

	"github.com/ChrisMcGann/pepfoot/pkg/core"
	"github.com/ChrisMcGann/pepfoot/pkg/filter"
	"github.com/ChrisMcGann/pepfoot/pkg/predict"
)

// PickPeaks finds the local maxima of a profile spectrum and applies cfg to them.
func PickPeaks(spec core.Spectrum, cfg filter.Config) []core.Peak {
	picked := core.Spectrum{Peaks: filter.LocalMaxima(spec.Peaks), RT: spec.RT, ScanCount: spec.ScanCount}
	cfg.Apply(&picked)
	return picked.Peaks
}

// NearestPeak returns the peak closest to mz within maxDist.
func NearestPeak(peaks []core.Peak, mz, maxDist float64) (core.Peak, bool) {
	best := -1
	bestDist := math.Inf(1)
	for i, p := range peaks {
		d := math.Abs(p.MZ - mz)
		if d <= maxDist && d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		return core.Peak{}, false
	}
	return peaks[best], true
}

// Match pairs one predicted isotope with the nearest observed peak.
type Match struct {
	Label     string // "M+0", "M+1", ...
	Predicted float64
	Abundance float64 // predicted, relative to the most abundant isotope
	Observed  core.Peak
	Found     bool
	ErrorPPM  float64
	ErrorMMU  float64
}

// MatchEnvelope looks up every isotope of env at charge z among peaks. An
// isotope is found when a peak lies within tol of its predicted m/z.
func MatchEnvelope(peaks []core.Peak, env core.Envelope, z int, tol predict.Tolerance) []Match {
	predicted := env.Relative().Peaks(z)
	out := make([]Match, len(predicted))
	for i, p := range predicted {
		m := Match{Label: p.Annotation, Predicted: p.MZ, Abundance: p.Intensity}
		if obs, ok := NearestPeak(peaks, p.MZ, tol.Delta(p.MZ)); ok {
			m.Observed = obs
			m.Found = true
			m.ErrorPPM = core.PPM(p.MZ, obs.MZ)
			m.ErrorMMU = (obs.MZ - p.MZ) * 1000
		}
		out[i] = m
	}
	return out
}

// Score is the cosine similarity between predicted and observed isotope
// intensities. Missing isotopes count as zero.
func Score(matches []Match) float64 {
	var dot, pp, oo float64
	for _, m := range matches {
		o := 0.0
		if m.Found {
			o = m.Observed.Intensity
		}
		dot += m.Abundance * o
		pp += m.Abundance * m.Abundance
		oo += o * o
	}
	if pp == 0 || oo == 0 {
		return 0
	}
	return dot / math.Sqrt(pp*oo)
}
