// Package predict computes isotope envelopes and ion m/z values for
// unmodified and modified peptides.
package predict

import (
	"fmt"
	"strings"

	"github.com/ChrisMcGann/pepfoot/pkg/core"
	"github.com/ChrisMcGann/pepfoot/pkg/digest"
)

// Params controls ion prediction.
type Params struct {
	Charges   core.IntRange
	MS1       *core.Range // nil keeps every charge
	Tolerance Tolerance
	Envelope  core.EnvelopeOptions
}

// Ion is one charge state of a peptide with both label positions.
type Ion struct {
	Charge    int
	MZ        float64
	ModMZ     float64
	Window    core.Range
	ModWindow core.Range
}

// Prediction holds the masses and envelopes of a peptide and its
// differentially modified form.
type Prediction struct {
	Sequence         string
	Composition      core.Composition
	MonoisotopicMass float64
	// Mass is the most abundant isotope mass, the position ions are predicted at.
	Mass        float64
	ModMass     float64
	Envelope    core.Envelope
	ModEnvelope core.Envelope
	Ions        []Ion
}

// Ion returns the ion with the given charge.
func (p *Prediction) Ion(charge int) (Ion, bool) {
	for _, ion := range p.Ions {
		if ion.Charge == charge {
			return ion, true
		}
	}
	return Ion{}, false
}

// Charges returns the retained charge states.
func (p *Prediction) Charges() []int {
	out := make([]int, len(p.Ions))
	for i, ion := range p.Ions {
		out[i] = ion.Charge
	}
	return out
}

// Composition returns the elemental composition of a labelled residue chain,
// including terminal water.
func Composition(residues []digest.Residue, mods *core.ModDatabase) (core.Composition, error) {
	comp := core.Water.Add(nil)
	for i, r := range residues {
		aa, ok := core.AminoAcidCompositions[r.AA]
		if !ok {
			return nil, fmt.Errorf("%w: '%c' at position %d", digest.ErrInvalidResidue, r.AA, i+1)
		}
		comp = comp.Add(aa)
		if r.Mod == "" {
			continue
		}
		if mods == nil {
			return nil, fmt.Errorf("residue %d carries label '%s' but no modification table was given", i+1, r.Mod)
		}
		mod, ok := mods.ByID(r.Mod)
		if !ok {
			return nil, fmt.Errorf("%w: unknown modification '%s' at position %d", digest.ErrInvalidResidue, r.Mod, i+1)
		}
		comp = comp.Add(mod.Delta())
	}
	return comp, nil
}

// Predict computes envelopes and the ions whose unmodified and modified m/z
// both fall inside the MS1 range. diffMod may be nil, in which case the
// modified ion equals the unmodified one.
func Predict(residues []digest.Residue, mods *core.ModDatabase, diffMod *core.Modification, p Params) (*Prediction, error) {
	if !p.Charges.Valid() || p.Charges.Min < 1 {
		return nil, &core.ValidationError{Field: "Charges", Message: fmt.Sprintf("invalid charge range %s", p.Charges)}
	}
	if err := p.Tolerance.Validate(); err != nil {
		return nil, err
	}

	comp, err := Composition(residues, mods)
	if err != nil {
		return nil, err
	}
	env, err := core.IsotopeEnvelope(comp, p.Envelope)
	if err != nil {
		return nil, fmt.Errorf("isotope envelope: %w", err)
	}

	pred := &Prediction{
		Sequence:         digest.Format(residues),
		Composition:      comp,
		MonoisotopicMass: comp.MonoisotopicMass(),
		Mass:             env.MostAbundant().Mass,
		Envelope:         env,
		ModEnvelope:      env,
	}
	pred.ModMass = pred.Mass

	if diffMod != nil {
		modEnv, err := core.IsotopeEnvelope(comp.Add(diffMod.Delta()), p.Envelope)
		if err != nil {
			return nil, fmt.Errorf("modified isotope envelope: %w", err)
		}
		pred.ModEnvelope = modEnv
		pred.ModMass = pred.Mass + diffMod.Mass
	}

	for z := p.Charges.Min; z <= p.Charges.Max; z++ {
		mz := core.MZ(pred.Mass, z)
		modMZ := core.MZ(pred.ModMass, z)
		if p.MS1 != nil && p.MS1.Valid() && !(p.MS1.Contains(mz) && p.MS1.Contains(modMZ)) {
			continue
		}
		pred.Ions = append(pred.Ions, Ion{
			Charge:    z,
			MZ:        mz,
			ModMZ:     modMZ,
			Window:    p.Tolerance.Window(mz),
			ModWindow: p.Tolerance.Window(modMZ),
		})
	}

	return pred, nil
}

// Summary renders the prediction as a short multi-line description.
func (p *Prediction) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s\n", p.Sequence, p.Composition)
	fmt.Fprintf(&b, "  monoisotopic %.4f  most abundant %.4f  modified %.4f\n", p.MonoisotopicMass, p.Mass, p.ModMass)
	for _, ion := range p.Ions {
		fmt.Fprintf(&b, "  z=%d  m/z %.4f [%s]  mod m/z %.4f [%s]\n", ion.Charge, ion.MZ, ion.Window, ion.ModMZ, ion.ModWindow)
	}
	return b.String()
}
