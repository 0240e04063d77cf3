package fmod

import (
	"math"
	"testing"
)

func ptr(v float64) *float64 { return &v }

func TestFraction(t *testing.T) {
	tests := []struct {
		name     string
		unmod    *float64
		mod      *float64
		want     float64
		wantNull bool
	}{
		{"example", ptr(100), ptr(300), 0.75, false},
		{"both zero", ptr(0), ptr(0), 0, true},
		{"unmodified only", ptr(50), ptr(0), 0, false},
		{"modified only", ptr(0), ptr(50), 1, false},
		{"missing unmodified", nil, ptr(10), 0, true},
		{"missing modified", ptr(10), nil, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Fraction(tt.unmod, tt.mod)
			if tt.wantNull {
				if got != nil {
					t.Errorf("Fraction() = %v, want nil", *got)
				}
				return
			}
			if got == nil {
				t.Fatal("Fraction() = nil")
			}
			if math.Abs(*got-tt.want) > 1e-12 {
				t.Errorf("Fraction() = %v, want %v", *got, tt.want)
			}
		})
	}
}

func TestFractionInUnitInterval(t *testing.T) {
	areas := []float64{0, 1e-9, 0.5, 1, 17, 1e6, 3.3e12}
	for _, u := range areas {
		for _, m := range areas {
			f := Fraction(ptr(u), ptr(m))
			if (f == nil) != (u == 0 && m == 0) {
				t.Errorf("Fraction(%v, %v) nil = %v", u, m, f == nil)
				continue
			}
			if f != nil && (*f < 0 || *f > 1) {
				t.Errorf("Fraction(%v, %v) = %v outside [0,1]", u, m, *f)
			}
		}
	}
}

func TestSummarizeExcludesMissing(t *testing.T) {
	s := Summarize([]*float64{ptr(0.2), nil, ptr(0.4), nil})
	if s.N != 2 {
		t.Errorf("N = %d, want 2", s.N)
	}
	if math.Abs(s.Mean-0.3) > 1e-12 {
		t.Errorf("Mean = %v, want 0.3", s.Mean)
	}
	if math.Abs(s.Std-0.1) > 1e-12 {
		t.Errorf("Std = %v, want 0.1 (population)", s.Std)
	}
	if empty := Summarize([]*float64{nil}); empty.N != 0 || empty.Mean != 0 {
		t.Errorf("Summarize(nil values) = %+v", empty)
	}
}

func TestExtent(t *testing.T) {
	tests := []struct {
		name string
		apo  float64
		holo float64
		want float64
	}{
		{"example", 0.2, 0.5, 0.6},
		{"decrease", 0.5, 0.2, -0.6},
		{"equal", 0.3, 0.3, 0},
		{"from zero", 0, 0.4, 1},
		{"to zero", 0.4, 0, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, std, ok := Extent(Summary{N: 3, Mean: tt.apo}, Summary{N: 3, Mean: tt.holo})
			if !ok {
				t.Fatal("Extent() undefined")
			}
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("Extent() = %v, want %v", got, tt.want)
			}
			if std != 0 {
				t.Errorf("std = %v, want 0 for exact means", std)
			}
		})
	}
}

func TestExtentStd(t *testing.T) {
	_, std, _ := Extent(Summary{N: 3, Mean: 0.2, Std: 0.02}, Summary{N: 3, Mean: 0.5, Std: 0.05})
	// ratio 0.4 with 10% relative error on each term
	want := 0.4 * math.Sqrt(0.1*0.1+0.1*0.1)
	if math.Abs(std-want) > 1e-12 {
		t.Errorf("std = %v, want %v", std, want)
	}
}

func TestExtentUndefinedForEmptyGroup(t *testing.T) {
	tests := []struct {
		name string
		apo  []*float64
		holo []*float64
	}{
		{"apo missing", []*float64{nil, nil}, []*float64{ptr(0.5), ptr(0.5)}},
		{"holo missing", []*float64{ptr(0.4)}, []*float64{nil}},
		{"both empty", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Compare(tt.apo, tt.holo, Options{})
			if c.Extent != nil || c.ExtentStd != nil {
				t.Errorf("Extent = %v, ExtentStd = %v, want nil when a group has no values", c.Extent, c.ExtentStd)
			}
			if c.Significant {
				t.Error("comparison with an empty group must not be significant")
			}
		})
	}

	if _, _, ok := Extent(Summary{}, Summary{N: 2, Mean: 0.5}); ok {
		t.Error("Extent() should be undefined for an empty group")
	}
}

func TestTTest(t *testing.T) {
	// scipy.stats.ttest_ind([1,2,3,4],[3,4,5,6]) -> t=-2.1908902300206643, p=0.0709
	tv, p, ok := TTest([]float64{1, 2, 3, 4}, []float64{3, 4, 5, 6})
	if !ok {
		t.Fatal("TTest() not defined")
	}
	if math.Abs(tv-(-2.1908902300206643)) > 1e-9 {
		t.Errorf("t = %v", tv)
	}
	if math.Abs(p-0.0709) > 1e-3 {
		t.Errorf("p = %v, want ~0.0709", p)
	}

	if _, _, ok := TTest([]float64{1}, []float64{2, 3}); ok {
		t.Error("TTest() should be undefined for a single value")
	}
	if _, _, ok := TTest([]float64{1, 1}, []float64{1, 1}); ok {
		t.Error("TTest() should be undefined for zero variance")
	}
}

func TestCompare(t *testing.T) {
	apo := []*float64{ptr(0.10), ptr(0.11), ptr(0.09), nil}
	holo := []*float64{ptr(0.30), ptr(0.31), ptr(0.29)}

	c := Compare(apo, holo, Options{Alpha: 0.05, Threshold: 0.01})
	if c.P == nil || *c.P >= 0.05 {
		t.Fatalf("P = %v, want significant", c.P)
	}
	if !c.Significant {
		t.Error("expected significant comparison")
	}
	if c.Extent == nil || *c.Extent <= 0 {
		t.Errorf("Extent = %v, want positive for holo > apo", c.Extent)
	}

	below := Compare(apo, holo, Options{Alpha: 0.05, Threshold: 0.5})
	if below.Significant {
		t.Error("means below threshold must not be significant")
	}

	single := Compare([]*float64{ptr(0.1)}, holo, Options{})
	if single.P != nil || single.Significant {
		t.Error("undefined test must leave P nil and not be significant")
	}
}
