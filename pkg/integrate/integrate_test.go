package integrate

import (
	"errors"
	"math"
	"testing"

	"github.com/ChrisMcGann/pepfoot/pkg/chrom"
	"github.com/ChrisMcGann/pepfoot/pkg/core"
	"github.com/ChrisMcGann/pepfoot/pkg/filter"
	"github.com/ChrisMcGann/pepfoot/pkg/predict"
)

func combineRun() *core.Run {
	return &core.Run{Scans: []core.Scan{
		{Index: 0, RT: 1.0, MSLevel: 1, Peaks: []core.Peak{{MZ: 500.0, Intensity: 10}, {MZ: 500.25, Intensity: 20}, {MZ: 500.5, Intensity: 30}}},
		{Index: 1, RT: 1.05, MSLevel: 2, Peaks: []core.Peak{{MZ: 500.25, Intensity: 999}}},
		{Index: 2, RT: 1.1, MSLevel: 1, Peaks: []core.Peak{{MZ: 500.125, Intensity: 40}, {MZ: 500.375, Intensity: 60}}},
	}}
}

func TestCombine(t *testing.T) {
	spec, err := Combine(combineRun(), core.Range{Min: 0.9, Max: 1.2}, core.Range{Min: 500, Max: 500.6}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if spec.ScanCount != 2 {
		t.Errorf("ScanCount = %d, want 2", spec.ScanCount)
	}

	want := []core.Peak{{MZ: 500, Intensity: 10}, {MZ: 500.25, Intensity: 70}, {MZ: 500.5, Intensity: 30}}
	if len(spec.Peaks) != len(want) {
		t.Fatalf("got %d grid points, want %d: %+v", len(spec.Peaks), len(want), spec.Peaks)
	}
	for i, w := range want {
		if math.Abs(spec.Peaks[i].MZ-w.MZ) > 1e-9 || math.Abs(spec.Peaks[i].Intensity-w.Intensity) > 1e-9 {
			t.Errorf("point %d = %+v, want %+v", i, spec.Peaks[i], w)
		}
	}
}

func TestCombineErrors(t *testing.T) {
	run := combineRun()
	if _, err := Combine(run, core.Range{Min: 2, Max: 1}, core.Range{Min: 500, Max: 501}, 1); !errors.Is(err, ErrInvalidRange) {
		t.Errorf("error = %v, want ErrInvalidRange", err)
	}
	if _, err := Combine(run, core.Range{Min: 1, Max: 2}, core.Range{Min: 501, Max: 501}, 1); !errors.Is(err, ErrInvalidRange) {
		t.Errorf("error = %v, want ErrInvalidRange", err)
	}
	if _, err := Combine(run, core.Range{Min: 5, Max: 6}, core.Range{Min: 500, Max: 501}, 1); !errors.Is(err, chrom.ErrNoScans) {
		t.Errorf("error = %v, want ErrNoScans", err)
	}
}

func areaRun() *core.Run {
	return &core.Run{Scans: []core.Scan{
		{Index: 0, RT: 1.0, MSLevel: 1, Peaks: []core.Peak{{MZ: 600, Intensity: 10}}},
		{Index: 1, RT: 1.1, MSLevel: 1, Peaks: []core.Peak{{MZ: 600, Intensity: 15}, {MZ: 600.01, Intensity: 5}}},
		{Index: 2, RT: 1.2, MSLevel: 1, Peaks: []core.Peak{{MZ: 600, Intensity: 10}, {MZ: 700, Intensity: 100}}},
	}}
}

func TestArea(t *testing.T) {
	run := areaRun()
	rt := core.Range{Min: 0.5, Max: 1.5}
	mz := core.Range{Min: 599.9, Max: 600.1}

	tests := []struct {
		name   string
		mz     core.Range
		method Method
		want   float64
	}{
		{"trapezoid in seconds", mz, Trapezoid, 180},
		{"default method", mz, "", 180},
		{"sum", mz, Sum, 40},
		{"no signal", core.Range{Min: 800, Max: 801}, Trapezoid, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Area(run, rt, tt.mz, tt.method)
			if err != nil {
				t.Fatal(err)
			}
			if math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("Area() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAreaSingleScan(t *testing.T) {
	run := areaRun()
	rt := core.Range{Min: 1.05, Max: 1.15}
	mz := core.Range{Min: 599.9, Max: 600.1}

	got, err := Area(run, rt, mz, Trapezoid)
	if err != nil {
		t.Fatal(err)
	}
	if got != 0 {
		t.Errorf("trapezoid over one scan = %v, want 0", got)
	}
	got, err = Area(run, rt, mz, Sum)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(got-20) > 1e-9 {
		t.Errorf("sum over one scan = %v, want 20", got)
	}
}

func TestAreaErrors(t *testing.T) {
	run := areaRun()
	if _, err := Area(run, core.Range{Min: 1, Max: 1}, core.Range{Min: 599, Max: 601}, Trapezoid); !errors.Is(err, ErrInvalidRange) {
		t.Errorf("error = %v, want ErrInvalidRange", err)
	}
	if _, err := Area(run, core.Range{Min: 3, Max: 4}, core.Range{Min: 599, Max: 601}, Trapezoid); !errors.Is(err, chrom.ErrNoScans) {
		t.Errorf("error = %v, want ErrNoScans", err)
	}
	if _, err := Area(run, core.Range{Min: 0, Max: 4}, core.Range{Min: 599, Max: 601}, "simpson"); err == nil {
		t.Error("expected error for unknown method")
	}
}

func TestAreaNonNegative(t *testing.T) {
	run := areaRun()
	in := NewIntegrator(run, 1)
	for _, mz := range []core.Range{{Min: 599, Max: 601}, {Min: 600.005, Max: 600.02}, {Min: 650, Max: 750}} {
		got, err := in.Area(core.Range{Min: 0, Max: 2}, mz, Trapezoid)
		if err != nil {
			t.Fatal(err)
		}
		if got < 0 {
			t.Errorf("Area(%v) = %v, want >= 0", mz, got)
		}
	}
}

func TestDisplayWindow(t *testing.T) {
	w := DisplayWindow(500, 2)
	if w.Min != 498 || w.Max != 503 {
		t.Errorf("DisplayWindow() = %v, want 498-503", w)
	}
}

func TestMatchEnvelope(t *testing.T) {
	env, err := core.IsotopeEnvelope(core.Composition{"C": 150}, core.EnvelopeOptions{})
	if err != nil {
		t.Fatal(err)
	}
	const z = 2
	var observed []core.Peak
	for _, p := range env.Relative().Peaks(z) {
		observed = append(observed, core.Peak{MZ: p.MZ + 0.001, Intensity: p.Intensity * 1000})
	}
	// drop the last isotope so one stays unmatched
	observed = observed[:len(observed)-1]

	matches := MatchEnvelope(observed, env, z, predict.Tolerance{Value: 5, Unit: predict.UnitMMU})
	if len(matches) != len(env) {
		t.Fatalf("got %d matches, want %d", len(matches), len(env))
	}
	for i, m := range matches[:len(matches)-1] {
		if !m.Found {
			t.Errorf("isotope %d not found", i)
			continue
		}
		if math.Abs(m.ErrorMMU-1) > 1e-6 {
			t.Errorf("isotope %d error = %v mmu, want 1", i, m.ErrorMMU)
		}
	}
	if matches[len(matches)-1].Found {
		t.Error("last isotope should be missing")
	}
	if s := Score(matches); s < 0.99 || s > 1+1e-9 {
		t.Errorf("Score() = %v, want close to 1", s)
	}
}

func TestPickPeaks(t *testing.T) {
	spec := core.Spectrum{Peaks: []core.Peak{
		{MZ: 500.0, Intensity: 1},
		{MZ: 500.1, Intensity: 50},
		{MZ: 500.2, Intensity: 2},
		{MZ: 500.3, Intensity: 3},
		{MZ: 500.4, Intensity: 1},
		{MZ: 500.5, Intensity: 100},
		{MZ: 500.6, Intensity: 0},
	}}
	got := PickPeaks(spec, filter.Config{IntensityCutoff: 10})
	if len(got) != 2 || got[0].MZ != 500.1 || got[1].MZ != 500.5 {
		t.Errorf("PickPeaks() = %+v", got)
	}

	p, ok := NearestPeak(got, 500.45, 0.1)
	if !ok || p.MZ != 500.5 {
		t.Errorf("NearestPeak() = %+v, %v", p, ok)
	}
	if _, ok := NearestPeak(got, 501, 0.1); ok {
		t.Error("NearestPeak() should miss outside maxDist")
	}
}
