package project

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/ChrisMcGann/pepfoot/pkg/core"
	"github.com/ChrisMcGann/pepfoot/pkg/fmod"
)

// Fraction returns the fractional modification of a peptide in one file.
func (p *Project) Fraction(id core.Span, file uuid.UUID) *float64 {
	return fmod.Fraction(p.AreaValue(id, file, Unmodified), p.AreaValue(id, file, Modified))
}

// FractionMatrix returns fractions for the assigned peptides (rows) in file
// order (columns).
func (p *Project) FractionMatrix() [][]*float64 {
	assigned := p.Assigned()
	out := make([][]*float64, len(assigned))
	for i, pep := range assigned {
		row := make([]*float64, len(p.Files))
		for j, f := range p.Files {
			row[j] = p.Fraction(pep.ID, f.ID)
		}
		out[i] = row
	}
	return out
}

// GroupFractions returns the fractions of a peptide in the files of a group.
func (p *Project) GroupFractions(id core.Span, group string) ([]*float64, error) {
	g, ok := p.Group(group)
	if !ok {
		return nil, fmt.Errorf("no treatment group '%s'", group)
	}
	out := make([]*float64, len(g.FileIDs))
	for i, f := range g.FileIDs {
		out[i] = p.Fraction(id, f)
	}
	return out, nil
}

// PeptideResult is the analysis of one assigned peptide.
type PeptideResult struct {
	Peptide    Peptide
	Fractions  []*float64 // file order
	Overall    fmod.Summary
	Comparison *fmod.Comparison // nil without treatment groups
}

// Analyze computes per-peptide statistics. With both treatment groups set,
// each peptide is compared apo against holo; otherwise only the overall
// summary is filled.
func (p *Project) Analyze(opts fmod.Options) ([]PeptideResult, error) {
	apo, hasApo := p.Group(GroupApo)
	holo, hasHolo := p.Group(GroupHolo)
	grouped := hasApo && hasHolo && len(apo.FileIDs) > 0 && len(holo.FileIDs) > 0

	matrix := p.FractionMatrix()
	results := make([]PeptideResult, 0, len(matrix))
	for i, pep := range p.Assigned() {
		r := PeptideResult{
			Peptide:   pep,
			Fractions: matrix[i],
			Overall:   fmod.Summarize(matrix[i]),
		}
		if grouped {
			a, err := p.GroupFractions(pep.ID, GroupApo)
			if err != nil {
				return nil, err
			}
			h, err := p.GroupFractions(pep.ID, GroupHolo)
			if err != nil {
				return nil, err
			}
			c := fmod.Compare(a, h, opts)
			r.Comparison = &c
		}
		results = append(results, r)
	}
	return results, nil
}

// Coverage returns the percentage of sequence residues covered by assigned peptides.
func (p *Project) Coverage(length int) float64 {
	if length <= 0 {
		return 0
	}
	covered := make([]bool, length)
	n := 0
	for _, pep := range p.Assigned() {
		for i := pep.ID.Start; i <= pep.ID.End && i <= length; i++ {
			if !covered[i-1] {
				covered[i-1] = true
				n++
			}
		}
	}
	return float64(n) * 100 / float64(length)
}
