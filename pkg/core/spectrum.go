// Package core provides the intermediate representation (IR) models and validation logic
// for raw MS1 data used by PepFoot.
package core

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Range is a closed-open interval [Min, Max) of m/z or retention time.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Valid reports whether the range has positive width.
func (r Range) Valid() bool {
	return !math.IsNaN(r.Min) && !math.IsNaN(r.Max) && r.Max > r.Min
}

// Contains reports whether v lies in [Min, Max).
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v < r.Max
}

// Width returns Max - Min.
func (r Range) Width() float64 {
	return r.Max - r.Min
}

// Center returns the midpoint.
func (r Range) Center() float64 {
	return (r.Min + r.Max) / 2
}

func (r Range) String() string {
	return fmt.Sprintf("%.4f-%.4f", r.Min, r.Max)
}

// Peak represents a single m/z, intensity pair with optional metadata.
type Peak struct {
	MZ         float64
	Intensity  float64
	Annotation string // e.g. isotope label "M+1"
	Charge     int
}

// Spectrum is a mass spectrum, either a single scan or a sum over scans.
type Spectrum struct {
	Peaks []Peak
	// RT is the retention-time interval the spectrum was summed over (minutes).
	RT Range
	// ScanCount is the number of scans that contributed.
	ScanCount int
}

// Scan is one acquisition of a raw data file.
type Scan struct {
	Index       int
	ID          string
	RT          float64 // scan start time in minutes
	MSLevel     int
	PrecursorMZ float64 // 0 for MS1
	Window      Range   // scan window lower/upper limit, zero if unknown
	Peaks       []Peak  // sorted by m/z
}

// Run is the ordered list of scans of one raw data file.
type Run struct {
	Source string
	Scans  []Scan
}

// ValidationError represents an error found during validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", e.Field, e.Message)
}

// Validate checks that a spectrum meets all requirements for processing.
func (s *Spectrum) Validate() error {
	if errs := validatePeaks(s.Peaks); len(errs) > 0 {
		return &ValidationError{
			Field:   "Spectrum",
			Message: strings.Join(errs, "; "),
		}
	}
	return nil
}

// Validate checks scan metadata and peak ordering.
func (s *Scan) Validate() error {
	errs := validatePeaks(s.Peaks)
	if s.MSLevel <= 0 {
		errs = append(errs, "ms level must be positive")
	}
	if math.IsNaN(s.RT) || math.IsInf(s.RT, 0) || s.RT < 0 {
		errs = append(errs, "retention time must be a non-negative number")
	}
	if len(errs) > 0 {
		return &ValidationError{
			Field:   fmt.Sprintf("Scan %d", s.Index),
			Message: strings.Join(errs, "; "),
		}
	}
	return nil
}

func validatePeaks(peaks []Peak) []string {
	var errs []string
	for i, peak := range peaks {
		if math.IsNaN(peak.MZ) || math.IsInf(peak.MZ, 0) {
			errs = append(errs, fmt.Sprintf("peak %d has invalid m/z", i))
		}
		if math.IsNaN(peak.Intensity) || math.IsInf(peak.Intensity, 0) {
			errs = append(errs, fmt.Sprintf("peak %d has invalid intensity", i))
		}
		if peak.MZ <= 0 {
			errs = append(errs, fmt.Sprintf("peak %d m/z must be positive", i))
		}
		if peak.Intensity < 0 {
			errs = append(errs, fmt.Sprintf("peak %d intensity must be non-negative", i))
		}
	}
	if !peaksSorted(peaks) {
		errs = append(errs, "peaks must be sorted by m/z")
	}
	return errs
}

func peaksSorted(peaks []Peak) bool {
	for i := 1; i < len(peaks); i++ {
		if peaks[i].MZ < peaks[i-1].MZ {
			return false
		}
	}
	return true
}

// ArePeaksSorted checks if peaks are sorted by m/z in ascending order.
func (s *Spectrum) ArePeaksSorted() bool {
	return peaksSorted(s.Peaks)
}

// SortPeaks sorts peaks by m/z in ascending order.
func (s *Spectrum) SortPeaks() {
	SortPeaks(s.Peaks)
}

// SortPeaks sorts a peak slice by m/z in ascending order.
func SortPeaks(peaks []Peak) {
	sort.Slice(peaks, func(i, j int) bool {
		return peaks[i].MZ < peaks[j].MZ
	})
}

// BasePeak returns the most intense peak, or false for an empty spectrum.
func (s *Spectrum) BasePeak() (Peak, bool) {
	if len(s.Peaks) == 0 {
		return Peak{}, false
	}
	best := s.Peaks[0]
	for _, p := range s.Peaks[1:] {
		if p.Intensity > best.Intensity {
			best = p
		}
	}
	return best, true
}

// TotalIntensity returns the summed intensity of all peaks.
func (s *Spectrum) TotalIntensity() float64 {
	total := 0.0
	for _, p := range s.Peaks {
		total += p.Intensity
	}
	return total
}

// TimeRange returns the first and last scan times.
func (r *Run) TimeRange() Range {
	if len(r.Scans) == 0 {
		return Range{}
	}
	return Range{Min: r.Scans[0].RT, Max: r.Scans[len(r.Scans)-1].RT}
}

// MS1Range returns the union of the MS1 scan windows, falling back to the
// observed m/z extent when windows are missing.
func (r *Run) MS1Range() Range {
	out := Range{Min: math.Inf(1), Max: math.Inf(-1)}
	for _, s := range r.Scans {
		if s.MSLevel != 1 {
			continue
		}
		lo, hi := s.Window.Min, s.Window.Max
		if !s.Window.Valid() {
			if len(s.Peaks) == 0 {
				continue
			}
			lo, hi = s.Peaks[0].MZ, s.Peaks[len(s.Peaks)-1].MZ
		}
		out.Min = math.Min(out.Min, lo)
		out.Max = math.Max(out.Max, hi)
	}
	if math.IsInf(out.Min, 0) {
		return Range{}
	}
	return out
}

// Validate checks every scan and that scan times are non-decreasing.
func (r *Run) Validate() error {
	for i := range r.Scans {
		if err := r.Scans[i].Validate(); err != nil {
			return err
		}
		if i > 0 && r.Scans[i].RT < r.Scans[i-1].RT {
			return &ValidationError{
				Field:   fmt.Sprintf("Scan %d", r.Scans[i].Index),
				Message: "scan times must be non-decreasing",
			}
		}
	}
	return nil
}
