// Package chrom extracts ion chromatograms from in-memory runs.
package chrom

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ChrisMcGann/pepfoot/pkg/core"
)

var (
	// ErrNoScans is returned when no scan of the requested level lies in range.
	ErrNoScans = errors.New("no scans in range")
	// ErrInvalidRange is returned for empty, inverted or NaN ranges.
	ErrInvalidRange = errors.New("invalid range")
)

// Chromatogram is summed intensity against retention time (minutes).
type Chromatogram struct {
	Window      core.Range
	Times       []float64
	Intensities []float64
}

// Len returns the number of points.
func (c Chromatogram) Len() int {
	return len(c.Times)
}

// Apex returns the most intense point.
func (c Chromatogram) Apex() (rt, intensity float64, ok bool) {
	if len(c.Times) == 0 {
		return 0, 0, false
	}
	best := 0
	for i, v := range c.Intensities {
		if v > c.Intensities[best] {
			best = i
		}
	}
	return c.Times[best], c.Intensities[best], true
}

// Slice returns the points with time in [rt.Min, rt.Max).
func (c Chromatogram) Slice(rt core.Range) Chromatogram {
	lo := sort.SearchFloat64s(c.Times, rt.Min)
	hi := sort.SearchFloat64s(c.Times, rt.Max)
	return Chromatogram{
		Window:      c.Window,
		Times:       c.Times[lo:hi],
		Intensities: c.Intensities[lo:hi],
	}
}

// Total returns the summed intensity of all points.
func (c Chromatogram) Total() float64 {
	total := 0.0
	for _, v := range c.Intensities {
		total += v
	}
	return total
}

// Extractor indexes the scans of one MS level of a run. The run is not modified.
type Extractor struct {
	scans []*core.Scan
	times []float64
}

// NewExtractor builds an extractor for scans of msLevel.
func NewExtractor(run *core.Run, msLevel int) *Extractor {
	e := &Extractor{}
	if run == nil {
		return e
	}
	for i := range run.Scans {
		s := &run.Scans[i]
		if s.MSLevel != msLevel {
			continue
		}
		e.scans = append(e.scans, s)
		e.times = append(e.times, s.RT)
	}
	return e
}

// Len returns the number of indexed scans.
func (e *Extractor) Len() int {
	return len(e.scans)
}

// Scans returns the indexed scans with time in [rt.Min, rt.Max).
func (e *Extractor) Scans(rt core.Range) ([]*core.Scan, error) {
	if !rt.Valid() {
		return nil, fmt.Errorf("%w: rt %s", ErrInvalidRange, rt)
	}
	lo := sort.SearchFloat64s(e.times, rt.Min)
	hi := sort.SearchFloat64s(e.times, rt.Max)
	if lo >= hi {
		return nil, fmt.Errorf("%w: rt %s", ErrNoScans, rt)
	}
	return e.scans[lo:hi], nil
}

// Extract sums, for every indexed scan, the intensities with m/z in
// [window.Min, window.Max).
func (e *Extractor) Extract(window core.Range) (Chromatogram, error) {
	if !window.Valid() {
		return Chromatogram{}, fmt.Errorf("%w: m/z %s", ErrInvalidRange, window)
	}
	if len(e.scans) == 0 {
		return Chromatogram{}, ErrNoScans
	}

	c := Chromatogram{
		Window:      window,
		Times:       make([]float64, len(e.scans)),
		Intensities: make([]float64, len(e.scans)),
	}
	copy(c.Times, e.times)
	for i, s := range e.scans {
		c.Intensities[i] = SumWindow(s.Peaks, window)
	}
	return c, nil
}

// SumWindow returns the summed intensity of m/z-sorted peaks in [window.Min, window.Max).
func SumWindow(peaks []core.Peak, window core.Range) float64 {
	lo := sort.Search(len(peaks), func(i int) bool { return peaks[i].MZ >= window.Min })
	total := 0.0
	for i := lo; i < len(peaks) && peaks[i].MZ < window.Max; i++ {
		total += peaks[i].Intensity
	}
	return total
}
