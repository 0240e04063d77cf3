package predict

import (
	"fmt"
	"strings"

	"github.com/ChrisMcGann/pepfoot/pkg/core"
)

// Tolerance units.
const (
	UnitMMU = "mmu"
	UnitPPM = "ppm"
)

// Tolerance is an m/z tolerance, absolute in milli mass units or relative in ppm.
type Tolerance struct {
	Value float64 `json:"value" yaml:"value"`
	Unit  string  `json:"unit" yaml:"unit"`
}

// ParseTolerance parses "10ppm", "5 mmu" or "5,mmu".
func ParseTolerance(s string) (Tolerance, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, unit := range []string{UnitPPM, UnitMMU} {
		if strings.HasSuffix(s, unit) {
			num := strings.Trim(strings.TrimSuffix(s, unit), " ,")
			var v float64
			if _, err := fmt.Sscanf(num, "%g", &v); err != nil {
				return Tolerance{}, fmt.Errorf("invalid tolerance value '%s': %w", num, err)
			}
			t := Tolerance{Value: v, Unit: unit}
			return t, t.Validate()
		}
	}
	return Tolerance{}, fmt.Errorf("invalid tolerance '%s', expected a value followed by mmu or ppm", s)
}

// Validate checks the unit and sign.
func (t Tolerance) Validate() error {
	if t.Unit != UnitMMU && t.Unit != UnitPPM {
		return &core.ValidationError{Field: "Tolerance", Message: fmt.Sprintf("unknown unit '%s'", t.Unit)}
	}
	if t.Value < 0 {
		return &core.ValidationError{Field: "Tolerance", Message: "value must be non-negative"}
	}
	return nil
}

// Delta returns the half-width of the tolerance window at mz, in Th.
func (t Tolerance) Delta(mz float64) float64 {
	if t.Unit == UnitPPM {
		return t.Value * mz / 1e6
	}
	return t.Value / 1000
}

// Window returns [mz - delta, mz + delta].
func (t Tolerance) Window(mz float64) core.Range {
	d := t.Delta(mz)
	return core.Range{Min: mz - d, Max: mz + d}
}

// Error expresses the difference observed - expected in the tolerance unit.
func (t Tolerance) Error(expected, observed float64) float64 {
	if t.Unit == UnitPPM {
		return core.PPM(expected, observed)
	}
	return (observed - expected) * 1000
}

func (t Tolerance) String() string {
	return fmt.Sprintf("%g %s", t.Value, t.Unit)
}
