// Package integrate sums spectra over retention time and integrates
// peptide signal over user-selected ranges.
package integrate

import (
	"fmt"
	"math"

	"github.com/ChrisMcGann/pepfoot/pkg/chrom"
	"github.com/ChrisMcGann/pepfoot/pkg/core"
)

// ErrInvalidRange is returned for empty, inverted or NaN rt or m/z ranges.
var ErrInvalidRange = chrom.ErrInvalidRange

// maxGridPoints caps the interpolation grid of a combined spectrum.
const maxGridPoints = 1 << 20

// Method selects how per-scan intensities are integrated over time.
type Method string

const (
	// Trapezoid integrates over scan time in seconds. A range holding a
	// single scan has no width and integrates to 0.
	Trapezoid Method = "trapezoid"
	// Sum adds the per-scan intensities without time weighting.
	Sum Method = "sum"
)

// ParseMethod validates a method name. Empty means Trapezoid.
func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case "", Trapezoid:
		return Trapezoid, nil
	case Sum:
		return Sum, nil
	}
	return "", fmt.Errorf("unknown integration method '%s' (want %s or %s)", s, Trapezoid, Sum)
}

// Integrator works on the scans of one MS level of a run.
type Integrator struct {
	ex     *chrom.Extractor
	origin float64 // grid origin for combined spectra
}

// NewIntegrator indexes run for msLevel.
func NewIntegrator(run *core.Run, msLevel int) *Integrator {
	in := &Integrator{ex: chrom.NewExtractor(run, msLevel)}
	if run != nil {
		in.origin = run.MS1Range().Min
	}
	return in
}

// Chromatogram extracts the ion chromatogram of an m/z window.
func (in *Integrator) Chromatogram(mz core.Range) (chrom.Chromatogram, error) {
	return in.ex.Extract(mz)
}

// DisplayWindow is the m/z range shown around an ion: four isotope spacings
// below and six above.
func DisplayWindow(mz float64, charge int) core.Range {
	z := float64(charge)
	return core.Range{Min: mz - 4/z, Max: mz + 6/z}
}

func checkRanges(rt, mz core.Range) error {
	if !rt.Valid() {
		return fmt.Errorf("%w: rt %s", ErrInvalidRange, rt)
	}
	if !mz.Valid() {
		return fmt.Errorf("%w: m/z %s", ErrInvalidRange, mz)
	}
	return nil
}

// Combine is a convenience wrapper around Integrator.Combine.
func Combine(run *core.Run, rt, mz core.Range, msLevel int) (core.Spectrum, error) {
	return NewIntegrator(run, msLevel).Combine(rt, mz)
}

// Combine sums the scans with time in rt over the m/z window. Every scan is
// linearly interpolated onto a common grid, zero outside its own data. The
// grid spacing is the smallest m/z spacing of the first usable scan.
func (in *Integrator) Combine(rt, mz core.Range) (core.Spectrum, error) {
	if err := checkRanges(rt, mz); err != nil {
		return core.Spectrum{}, err
	}
	scans, err := in.ex.Scans(rt)
	if err != nil {
		return core.Spectrum{}, err
	}

	out := core.Spectrum{RT: rt, ScanCount: len(scans)}
	step := gridSpacing(scans)
	if step <= 0 {
		return out, nil
	}
	if mz.Width()/step > maxGridPoints {
		step = mz.Width() / maxGridPoints
	}

	grid := makeGrid(mz, step, in.origin)
	sums := make([]float64, len(grid))
	for _, s := range scans {
		interpolate(grid, sums, windowPeaks(s.Peaks, mz))
	}

	out.Peaks = make([]core.Peak, len(grid))
	for i, x := range grid {
		out.Peaks[i] = core.Peak{MZ: x, Intensity: sums[i]}
	}
	return out, nil
}

// gridSpacing returns the smallest positive m/z difference within the first
// scan that has at least two distinct m/z values.
func gridSpacing(scans []*core.Scan) float64 {
	for _, s := range scans {
		step := math.Inf(1)
		for i := 1; i < len(s.Peaks); i++ {
			if d := s.Peaks[i].MZ - s.Peaks[i-1].MZ; d > 0 && d < step {
				step = d
			}
		}
		if !math.IsInf(step, 1) {
			return step
		}
	}
	return 0
}

// makeGrid returns origin + k*step for every k with the point inside mz.
func makeGrid(mz core.Range, step, origin float64) []float64 {
	if origin > mz.Min || origin <= 0 {
		origin = mz.Min
	}
	k := math.Ceil((mz.Min - origin) / step)
	var grid []float64
	for x := origin + k*step; x < mz.Max; x = origin + k*step {
		if x >= mz.Min {
			grid = append(grid, x)
		}
		k++
	}
	return grid
}

func windowPeaks(peaks []core.Peak, mz core.Range) []core.Peak {
	lo, hi := 0, len(peaks)
	for lo < hi && peaks[lo].MZ < mz.Min {
		lo++
	}
	for hi > lo && peaks[hi-1].MZ >= mz.Max {
		hi--
	}
	return peaks[lo:hi]
}

// interpolate adds the linear interpolation of peaks at every grid point to
// sums. Grid points outside the first and last peak get nothing.
func interpolate(grid, sums []float64, peaks []core.Peak) {
	if len(peaks) == 0 {
		return
	}
	first, last := peaks[0].MZ, peaks[len(peaks)-1].MZ
	j := 0
	for i, x := range grid {
		if x < first || x > last {
			continue
		}
		for j < len(peaks)-1 && peaks[j+1].MZ < x {
			j++
		}
		if j == len(peaks)-1 || peaks[j].MZ == x {
			sums[i] += peaks[j].Intensity
			continue
		}
		a, b := peaks[j], peaks[j+1]
		if b.MZ == x {
			sums[i] += b.Intensity
			continue
		}
		frac := (x - a.MZ) / (b.MZ - a.MZ)
		sums[i] += a.Intensity + frac*(b.Intensity-a.Intensity)
	}
}

// Area is a convenience wrapper around Integrator.Area.
func Area(run *core.Run, rt, mz core.Range, m Method) (float64, error) {
	return NewIntegrator(run, 1).Area(rt, mz, m)
}

// Area integrates the summed intensity within mz of every scan with time in
// rt. A range without signal integrates to 0, as does a single scan with
// Trapezoid.
func (in *Integrator) Area(rt, mz core.Range, m Method) (float64, error) {
	if err := checkRanges(rt, mz); err != nil {
		return 0, err
	}
	m, err := ParseMethod(string(m))
	if err != nil {
		return 0, err
	}
	scans, err := in.ex.Scans(rt)
	if err != nil {
		return 0, err
	}

	ys := make([]float64, len(scans))
	xs := make([]float64, len(scans))
	for i, s := range scans {
		ys[i] = chrom.SumWindow(s.Peaks, mz)
		xs[i] = s.RT * 60
	}

	if m == Sum {
		total := 0.0
		for _, y := range ys {
			total += y
		}
		return total, nil
	}
	return trapezoid(xs, ys), nil
}

func trapezoid(xs, ys []float64) float64 {
	area := 0.0
	for i := 1; i < len(xs); i++ {
		area += (xs[i] - xs[i-1]) * (ys[i] + ys[i-1]) / 2
	}
	return area
}
