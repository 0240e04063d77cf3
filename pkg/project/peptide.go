package project

import (
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/ChrisMcGann/pepfoot/pkg/core"
	"github.com/ChrisMcGann/pepfoot/pkg/digest"
)

// Label selects the unmodified or modified form of a peptide.
type Label int

const (
	Unmodified Label = iota
	Modified
)

// Labels lists both labels in index order.
var Labels = [2]Label{Unmodified, Modified}

// Valid reports whether l is Unmodified or Modified.
func (l Label) Valid() bool {
	return l == Unmodified || l == Modified
}

// Other returns the opposite label.
func (l Label) Other() Label {
	return 1 - l
}

func (l Label) String() string {
	switch l {
	case Unmodified:
		return "unmodified"
	case Modified:
		return "modified"
	}
	return fmt.Sprintf("label(%d)", int(l))
}

// ParseLabel accepts "unmodified"/"unmod"/"0" and "modified"/"mod"/"1".
func ParseLabel(s string) (Label, error) {
	switch s {
	case "unmodified", "unmod", "0":
		return Unmodified, nil
	case "modified", "mod", "1":
		return Modified, nil
	}
	return 0, fmt.Errorf("invalid label '%s' (want unmodified or modified)", s)
}

// State is the per-peptide workflow state.
type State string

const (
	// Unresolved peptides have no frozen integration parameters.
	Unresolved State = "unresolved"
	// Manual peptides were integrated by hand on one file; their ranges are frozen.
	Manual State = "manual"
	// Batch peptides had the frozen ranges applied to all files.
	Batch State = "batch"
)

// Peptide is a digestion product together with its integration parameters.
// MZ, RT and Absent are indexed by Label.
type Peptide struct {
	ID       core.Span      `json:"id"`
	Sequence string         `json:"sequence"`
	Charge   int            `json:"charge"`
	MZ       [2]*core.Range `json:"mz"`
	RT       [2]*core.Range `json:"rt"`
	Absent   [2]bool        `json:"absent"`
	State    State          `json:"state"`
}

// Integrated reports whether ranges are set for the label.
func (p *Peptide) Integrated(l Label) bool {
	return p.MZ[l] != nil && p.RT[l] != nil
}

// Resolved reports whether each label is integrated or explicitly absent,
// with at least one integrated.
func (p *Peptide) Resolved() bool {
	integrated := false
	for _, l := range Labels {
		switch {
		case p.Integrated(l):
			integrated = true
		case !p.Absent[l]:
			return false
		}
	}
	return integrated
}

func (p *Peptide) clearLabel(l Label) {
	p.MZ[l] = nil
	p.RT[l] = nil
	p.Absent[l] = false
}

// AreaRecord is the integrated area of one peptide label in one file.
// A nil Area is missing and is excluded from statistics.
type AreaRecord struct {
	PeptideID core.Span `json:"peptide"`
	FileID    uuid.UUID `json:"file"`
	Label     Label     `json:"label"`
	Area      *float64  `json:"area"`
	Note      string    `json:"note,omitempty"`
}

// SetPeptides replaces the peptide list with a new digestion result.
// Peptides whose id and sequence are unchanged keep their assignment; area
// records of dropped peptides are removed.
func (p *Project) SetPeptides(peps []digest.Peptide) {
	old := make(map[core.Span]Peptide, len(p.Peptides))
	for _, pep := range p.Peptides {
		old[pep.ID] = pep
	}

	out := make([]Peptide, 0, len(peps))
	keep := make(map[core.Span]bool, len(peps))
	for _, d := range peps {
		pep := Peptide{ID: d.Span, Sequence: d.Sequence(), State: Unresolved}
		if prev, ok := old[d.Span]; ok && prev.Sequence == pep.Sequence {
			pep = prev
		}
		keep[pep.ID] = true
		out = append(out, pep)
	}
	p.Peptides = out
	p.Areas = slices.DeleteFunc(p.Areas, func(r AreaRecord) bool { return !keep[r.PeptideID] })
	p.touch()
}

// Peptide returns the peptide with the given id.
func (p *Project) Peptide(id core.Span) (*Peptide, error) {
	for i := range p.Peptides {
		if p.Peptides[i].ID == id {
			return &p.Peptides[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownPeptide, id)
}

// Assigned returns the peptides with frozen integration parameters, in list order.
func (p *Project) Assigned() []Peptide {
	var out []Peptide
	for _, pep := range p.Peptides {
		if pep.State != Unresolved {
			out = append(out, pep)
		}
	}
	return out
}

// Integration is one manual integration of a peptide label.
type Integration struct {
	Peptide core.Span
	File    uuid.UUID
	Label   Label
	Charge  int
	RT      core.Range
	MZ      core.Range
	Area    float64
}

// Integrate stores the ranges and area of a manual integration. Integrating
// with a charge different from the peptide's current one clears the other
// label's ranges and areas. Files already processed by a batch run become
// pending again.
func (p *Project) Integrate(in Integration) error {
	pep, err := p.Peptide(in.Peptide)
	if err != nil {
		return err
	}
	if p.FileIndex(in.File) < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownFile, in.File)
	}
	if !in.Label.Valid() {
		return fmt.Errorf("invalid label %d", in.Label)
	}
	if in.Charge < 1 {
		return fmt.Errorf("invalid charge %d", in.Charge)
	}
	if !in.RT.Valid() || !in.MZ.Valid() {
		return fmt.Errorf("invalid integration ranges rt %s m/z %s", in.RT, in.MZ)
	}

	if pep.Charge != 0 && pep.Charge != in.Charge {
		other := in.Label.Other()
		pep.clearLabel(other)
		p.dropAreas(pep.ID, func(r AreaRecord) bool { return r.Label == other })
	}

	rt, mz := in.RT, in.MZ
	pep.Charge = in.Charge
	pep.RT[in.Label] = &rt
	pep.MZ[in.Label] = &mz
	pep.Absent[in.Label] = false
	pep.State = Manual
	p.resetBatch()

	area := in.Area
	p.SetArea(pep.ID, in.File, in.Label, &area, "")
	return nil
}

// MarkAbsent records that a label is not observed. Its area counts as zero in
// the active file.
func (p *Project) MarkAbsent(id core.Span, file uuid.UUID, l Label) error {
	pep, err := p.Peptide(id)
	if err != nil {
		return err
	}
	if p.FileIndex(file) < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownFile, file)
	}
	if !l.Valid() {
		return fmt.Errorf("invalid label %d", l)
	}
	pep.clearLabel(l)
	pep.Absent[l] = true
	pep.State = Manual
	p.resetBatch()
	zero := 0.0
	p.SetArea(id, file, l, &zero, "absent")
	return nil
}

// Resolved reports whether the peptide is resolved.
func (p *Project) Resolved(id core.Span) (bool, error) {
	pep, err := p.Peptide(id)
	if err != nil {
		return false, err
	}
	return pep.Resolved(), nil
}

// Clear removes the assignment of a peptide and all its area records.
func (p *Project) Clear(id core.Span) error {
	pep, err := p.Peptide(id)
	if err != nil {
		return err
	}
	*pep = Peptide{ID: pep.ID, Sequence: pep.Sequence, State: Unresolved}
	p.dropAreas(id, func(AreaRecord) bool { return true })
	p.touch()
	return nil
}

func (p *Project) dropAreas(id core.Span, match func(AreaRecord) bool) {
	p.Areas = slices.DeleteFunc(p.Areas, func(r AreaRecord) bool {
		return r.PeptideID == id && match(r)
	})
}

// SetArea inserts or replaces the area record of (peptide, file, label).
func (p *Project) SetArea(id core.Span, file uuid.UUID, l Label, area *float64, note string) {
	rec := AreaRecord{PeptideID: id, FileID: file, Label: l, Area: area, Note: note}
	for i, r := range p.Areas {
		if r.PeptideID == id && r.FileID == file && r.Label == l {
			p.Areas[i] = rec
			p.touch()
			return
		}
	}
	p.Areas = append(p.Areas, rec)
	p.touch()
}

// Area returns the area record of (peptide, file, label).
func (p *Project) Area(id core.Span, file uuid.UUID, l Label) (AreaRecord, bool) {
	for _, r := range p.Areas {
		if r.PeptideID == id && r.FileID == file && r.Label == l {
			return r, true
		}
	}
	return AreaRecord{}, false
}

// AreaValue returns the area or nil when missing.
func (p *Project) AreaValue(id core.Span, file uuid.UUID, l Label) *float64 {
	r, ok := p.Area(id, file, l)
	if !ok {
		return nil
	}
	return r.Area
}
