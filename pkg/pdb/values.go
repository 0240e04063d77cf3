package pdb

import "github.com/ChrisMcGann/pepfoot/pkg/core"

// Categorical B-factor codes.
const (
	NotDetected   = -2.0
	Insignificant = 0.0
	// Protected peptides are significantly less modified in the holo state.
	Protected = 1.0
	// Exposed peptides are significantly more modified in the holo state.
	Exposed = -1.0
)

// PeptideValue is the analysis outcome of one peptide mapped onto residues.
type PeptideValue struct {
	Span        core.Span
	Significant bool
	// Decreased reports apo mean > holo mean.
	Decreased bool
	Mean      float64
}

// Categorical returns one code per residue. Residues outside every peptide
// are NotDetected; significant peptides are written after insignificant
// ones and win on overlap.
func Categorical(length int, peps []PeptideValue) []float64 {
	out := fill(length, NotDetected)
	for _, p := range peps {
		if !p.Significant {
			set(out, p.Span, Insignificant)
		}
	}
	for _, p := range peps {
		if !p.Significant {
			continue
		}
		if p.Decreased {
			set(out, p.Span, Protected)
		} else {
			set(out, p.Span, Exposed)
		}
	}
	return out
}

// Continuous returns the mean fractional modification per residue, later
// peptides overwriting earlier ones. Uncovered residues are NotDetected.
func Continuous(length int, peps []PeptideValue) []float64 {
	out := fill(length, NotDetected)
	for _, p := range peps {
		set(out, p.Span, p.Mean)
	}
	return out
}

func fill(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func set(values []float64, s core.Span, v float64) {
	for i := s.Start; i <= s.End && i <= len(values); i++ {
		if i >= 1 {
			values[i-1] = v
		}
	}
}
