package core

import (
	"math"
	"testing"
)

func TestIsotopeEnvelopeSumsToOne(t *testing.T) {
	tests := []struct {
		name string
		comp Composition
	}{
		{"water", Water},
		{"PEPTIDE", mustSequence(t, "PEPTIDE")},
		{"sulfur peptide", mustSequence(t, "CMCMCMK")},
		{"phosphorylated", mustSequence(t, "SAMPLER").Add(MustParseFormula("HPO3"))},
		{"large", Composition{"C": 400, "H": 620, "N": 110, "O": 120, "S": 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := IsotopeEnvelope(tt.comp, EnvelopeOptions{})
			if err != nil {
				t.Fatalf("IsotopeEnvelope() error = %v", err)
			}
			if math.Abs(env.TotalAbundance()-1) > 1e-9 {
				t.Errorf("abundances sum to %.12f, want 1", env.TotalAbundance())
			}
			for i := 1; i < len(env); i++ {
				if env[i].Offset <= env[i-1].Offset {
					t.Errorf("offsets not increasing at %d", i)
				}
			}
		})
	}
}

func TestIsotopeEnvelopeMonoisotopicMass(t *testing.T) {
	comp := mustSequence(t, "PEPTIDE")
	env, err := IsotopeEnvelope(comp, EnvelopeOptions{})
	if err != nil {
		t.Fatal(err)
	}

	mono := env.Monoisotopic()
	if mono.Offset != 0 {
		t.Fatalf("first peak offset = %d, want 0", mono.Offset)
	}
	if math.Abs(mono.Mass-comp.MonoisotopicMass()) > 1e-6 {
		t.Errorf("monoisotopic mass = %.6f, want %.6f", mono.Mass, comp.MonoisotopicMass())
	}
	if math.Abs(env[1].Mass-mono.Mass-1.003) > 0.01 {
		t.Errorf("M+1 spacing = %.4f, want ~1.003", env[1].Mass-mono.Mass)
	}
	if env.MostAbundant().Offset != 0 {
		t.Errorf("most abundant offset = %d, want 0 for a small peptide", env.MostAbundant().Offset)
	}
}

func TestIsotopeEnvelopeCarbonBinomial(t *testing.T) {
	env, err := IsotopeEnvelope(Composition{"C": 150}, EnvelopeOptions{})
	if err != nil {
		t.Fatal(err)
	}

	p0 := math.Pow(0.9893, 150)
	p1 := 150 * 0.0107 * math.Pow(0.9893, 149)
	if math.Abs(env[0].Abundance-p0) > 1e-4 {
		t.Errorf("M+0 abundance = %.5f, want %.5f", env[0].Abundance, p0)
	}
	if math.Abs(env[1].Abundance-p1) > 1e-4 {
		t.Errorf("M+1 abundance = %.5f, want %.5f", env[1].Abundance, p1)
	}
	if env.MostAbundant().Offset != 1 {
		t.Errorf("most abundant offset = %d, want 1", env.MostAbundant().Offset)
	}
}

func TestEnvelopeChargeRelabelling(t *testing.T) {
	env, err := IsotopeEnvelope(mustSequence(t, "SAMPLER"), EnvelopeOptions{})
	if err != nil {
		t.Fatal(err)
	}

	z1 := env.Peaks(1)
	z3 := env.Peaks(3)
	if len(z1) != len(z3) {
		t.Fatalf("peak count differs: %d vs %d", len(z1), len(z3))
	}
	for i := range z1 {
		if z1[i].Intensity != z3[i].Intensity {
			t.Errorf("peak %d abundance changed with charge", i)
		}
		if math.Abs(NeutralMass(z1[i].MZ, 1)-NeutralMass(z3[i].MZ, 3)) > 1e-9 {
			t.Errorf("peak %d neutral mass differs between charges", i)
		}
	}
}

func TestEnvelopeRelative(t *testing.T) {
	env, err := IsotopeEnvelope(Composition{"C": 150}, EnvelopeOptions{})
	if err != nil {
		t.Fatal(err)
	}
	rel := env.Relative()
	if rel.MostAbundant().Abundance != 1 {
		t.Errorf("relative max = %v, want 1", rel.MostAbundant().Abundance)
	}
	if env.MostAbundant().Abundance == 1 {
		t.Error("Relative() must not modify the receiver")
	}
}

func TestIsotopeEnvelopeErrors(t *testing.T) {
	if _, err := IsotopeEnvelope(Composition{}, EnvelopeOptions{}); err == nil {
		t.Error("expected error for empty composition")
	}
	if _, err := IsotopeEnvelope(Composition{"H": -2}, EnvelopeOptions{}); err == nil {
		t.Error("expected error for negative composition")
	}
}

func TestIsotopeEnvelopeMaxPeaks(t *testing.T) {
	env, err := IsotopeEnvelope(Composition{"C": 400, "H": 620, "N": 110, "O": 120, "S": 4}, EnvelopeOptions{MaxPeaks: 3})
	if err != nil {
		t.Fatal(err)
	}
	if len(env) > 3 {
		t.Errorf("len = %d, want <= 3", len(env))
	}
}

func mustSequence(t *testing.T, seq string) Composition {
	t.Helper()
	comp, err := SequenceComposition(seq)
	if err != nil {
		t.Fatalf("SequenceComposition(%s): %v", seq, err)
	}
	return comp
}
