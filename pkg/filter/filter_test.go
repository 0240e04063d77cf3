package filter

import (
	"testing"

	"github.com/ChrisMcGann/pepfoot/pkg/core"
)

func spectrum() *core.Spectrum {
	return &core.Spectrum{Peaks: []core.Peak{
		{MZ: 100, Intensity: 5},
		{MZ: 101, Intensity: 100},
		{MZ: 102, Intensity: 40},
		{MZ: 103, Intensity: 0},
		{MZ: 104, Intensity: 60},
	}}
}

func TestApply(t *testing.T) {
	tests := []struct {
		name   string
		cfg    Config
		wantMZ []float64
	}{
		{"no filters", Config{}, []float64{100, 101, 102, 103, 104}},
		{"cutoff", Config{IntensityCutoff: 50}, []float64{101, 104}},
		{"top n keeps m/z order", Config{TopN: 2}, []float64{101, 104}},
		{"window", Config{Window: &core.Range{Min: 101, Max: 103}}, []float64{101, 102}},
		{"combined", Config{Window: &core.Range{Min: 100, Max: 104}, IntensityCutoff: 10, TopN: 1}, []float64{101}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := spectrum()
			tt.cfg.Apply(spec)
			if len(spec.Peaks) != len(tt.wantMZ) {
				t.Fatalf("got %d peaks, want %d", len(spec.Peaks), len(tt.wantMZ))
			}
			for i, mz := range tt.wantMZ {
				if spec.Peaks[i].MZ != mz {
					t.Errorf("peak %d m/z = %v, want %v", i, spec.Peaks[i].MZ, mz)
				}
			}
		})
	}
}

func TestLocalMaxima(t *testing.T) {
	profile := []core.Peak{
		{MZ: 1, Intensity: 0},
		{MZ: 2, Intensity: 3},
		{MZ: 3, Intensity: 1},
		{MZ: 4, Intensity: 2},
		{MZ: 5, Intensity: 2},
		{MZ: 6, Intensity: 0},
		{MZ: 7, Intensity: 4},
	}
	got := LocalMaxima(profile)
	want := []float64{2, 4, 7}
	if len(got) != len(want) {
		t.Fatalf("LocalMaxima() = %v", got)
	}
	for i := range want {
		if got[i].MZ != want[i] {
			t.Errorf("maximum %d at %v, want %v", i, got[i].MZ, want[i])
		}
	}
}

func TestRemoveZeroIntensityPeaks(t *testing.T) {
	spec := spectrum()
	RemoveZeroIntensityPeaks(spec)
	if len(spec.Peaks) != 4 {
		t.Errorf("got %d peaks, want 4", len(spec.Peaks))
	}
}
