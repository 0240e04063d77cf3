// Package filter provides peak picking and filtering for summed spectra
package filter

import (
	"sort"

	"github.com/ChrisMcGann/pepfoot/pkg/core"
)

// Config holds filtering configuration
type Config struct {
	Window          *core.Range // Keep only peaks with m/z in this range (nil = all)
	IntensityCutoff float64     // Keep only peaks above this % of base peak (0 = no cutoff)
	TopN            int         // Keep only top N most intense peaks (0 = no limit)
}

// Apply applies all configured filters to a spectrum
func (c *Config) Apply(spec *core.Spectrum) {
	if c.Window != nil {
		c.filterByWindow(spec)
	}

	if c.IntensityCutoff > 0 {
		c.filterByIntensity(spec)
	}

	if c.TopN > 0 {
		c.filterTopN(spec)
	}

	// Ensure peaks are sorted after all filtering
	spec.SortPeaks()
}

func (c *Config) filterByWindow(spec *core.Spectrum) {
	var filtered []core.Peak
	for _, peak := range spec.Peaks {
		if c.Window.Contains(peak.MZ) {
			filtered = append(filtered, peak)
		}
	}
	spec.Peaks = filtered
}

// filterByIntensity removes peaks below the intensity cutoff percentage of the base peak
func (c *Config) filterByIntensity(spec *core.Spectrum) {
	base, ok := spec.BasePeak()
	if !ok {
		return
	}

	threshold := (c.IntensityCutoff / 100.0) * base.Intensity

	var filtered []core.Peak
	for _, peak := range spec.Peaks {
		if peak.Intensity >= threshold {
			filtered = append(filtered, peak)
		}
	}
	spec.Peaks = filtered
}

// filterTopN keeps only the N most intense peaks
func (c *Config) filterTopN(spec *core.Spectrum) {
	if len(spec.Peaks) <= c.TopN {
		return
	}

	peaks := make([]core.Peak, len(spec.Peaks))
	copy(peaks, spec.Peaks)
	sort.SliceStable(peaks, func(i, j int) bool {
		return peaks[i].Intensity > peaks[j].Intensity
	})

	spec.Peaks = peaks[:c.TopN]
}

// LocalMaxima returns the profile points that are strictly higher than the
// previous point and at least as high as the next one. Plateaus yield their
// first point.
func LocalMaxima(profile []core.Peak) []core.Peak {
	var out []core.Peak
	for i, p := range profile {
		if p.Intensity <= 0 {
			continue
		}
		if i > 0 && profile[i-1].Intensity >= p.Intensity {
			continue
		}
		if i < len(profile)-1 && profile[i+1].Intensity > p.Intensity {
			continue
		}
		out = append(out, p)
	}
	return out
}

// RemoveZeroIntensityPeaks removes peaks with zero or negative intensity
func RemoveZeroIntensityPeaks(spec *core.Spectrum) {
	var filtered []core.Peak
	for _, peak := range spec.Peaks {
		if peak.Intensity > 0 {
			filtered = append(filtered, peak)
		}
	}
	spec.Peaks = filtered
}
