package project

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ChrisMcGann/pepfoot/pkg/core"
	"github.com/ChrisMcGann/pepfoot/pkg/digest"
)

// legacyDateLayout is the creation date format of .pfoot documents.
const legacyDateLayout = "02 Jan 2006  03:04PM"

// legacyDocument mirrors the loosely typed .pfoot layout. Ranges are empty
// lists when unset; areas are file-major with 0 for "not integrated".
type legacyDocument struct {
	Name            string          `json:"name"`
	CreationDate    string          `json:"creation date"`
	DataFiles       []string        `json:"data files"`
	Sequence        string          `json:"sequence"`
	LengthRange     []int           `json:"length range"`
	ChargeRange     []int           `json:"charge range"`
	Enzyme          string          `json:"enzyme"`
	MissedCleave    int             `json:"missed cleave"`
	FixedMods       []string        `json:"fixed mods"`
	DifferentialMod string          `json:"differential mod"`
	Peptides        [][2]int        `json:"peptides"`
	ChargeArray     []*int          `json:"charge array"`
	MZArray         [2][][]float64  `json:"m/z array"`
	RTArray         [2][][]float64  `json:"rt array"`
	Areas           [][2][]*float64 `json:"areas"`
	PDBFile         string          `json:"pdb file"`
	Treatment       [][]int         `json:"treatment"`
	Version         string          `json:"pepfoot version"`
}

// ImportLegacy converts a .pfoot document. Relative data file and structure
// paths are resolved against baseDir. mods resolves fixed modification names;
// nil uses the built-in table.
func ImportLegacy(r io.Reader, baseDir string, mods *core.ModDatabase) (*Project, error) {
	var doc legacyDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode legacy project: %w", err)
	}
	if mods == nil {
		mods = core.DefaultModDatabase()
	}

	d := Digestion{
		Enzyme:          doc.Enzyme,
		MissedCleavages: doc.MissedCleave,
		Length:          legacyIntRange(doc.LengthRange),
		Charge:          legacyIntRange(doc.ChargeRange),
		FixedMods:       doc.FixedMods,
		DiffMod:         doc.DifferentialMod,
	}
	p := New(strings.TrimSuffix(doc.Name, filepath.Ext(doc.Name)), doc.Sequence, d)
	if t, err := time.Parse(legacyDateLayout, doc.CreationDate); err == nil {
		p.CreatedAt = t
	}
	if doc.PDBFile != "" {
		p.StructureFile = resolve(baseDir, doc.PDBFile)
	}

	for _, name := range doc.DataFiles {
		if _, err := p.AddFile(resolve(baseDir, name)); err != nil {
			return nil, fmt.Errorf("legacy data files: %w", err)
		}
	}

	residues, err := legacyResidues(doc.Sequence, doc.FixedMods, mods)
	if err != nil {
		return nil, err
	}

	for i, ids := range doc.Peptides {
		span := core.Span{Start: ids[0], End: ids[1]}
		if !span.Valid() || span.End > len(residues) {
			return nil, fmt.Errorf("legacy peptide %d: span %s outside sequence of length %d", i, span, len(residues))
		}
		pep := Peptide{
			ID:       span,
			Sequence: digest.Format(residues[span.Start-1 : span.End]),
			State:    Manual,
		}
		if i < len(doc.ChargeArray) && doc.ChargeArray[i] != nil {
			pep.Charge = *doc.ChargeArray[i]
		}
		for _, l := range Labels {
			pep.MZ[l] = legacyRange(doc.MZArray[l], i)
			pep.RT[l] = legacyRange(doc.RTArray[l], i)
		}
		for _, l := range Labels {
			if !pep.Integrated(l) && pep.Integrated(l.Other()) {
				pep.Absent[l] = true
			}
		}
		if !pep.Resolved() {
			return nil, fmt.Errorf("legacy peptide %s has no integration ranges", span)
		}
		p.Peptides = append(p.Peptides, pep)
	}

	batched := 0
	for fi, fileAreas := range doc.Areas {
		if fi >= len(p.Files) {
			return nil, fmt.Errorf("legacy areas reference file %d of %d", fi+1, len(p.Files))
		}
		if len(fileAreas[0]) == 0 && len(fileAreas[1]) == 0 {
			continue
		}
		if fi > 0 {
			batched++
		}
		p.Files[fi].Status = FileDone
		for pi := range p.Peptides {
			pep := &p.Peptides[pi]
			for _, l := range Labels {
				var area *float64
				if pi < len(fileAreas[l]) {
					area = fileAreas[l][pi]
				}
				if pep.Absent[l] {
					zero := 0.0
					p.SetArea(pep.ID, p.Files[fi].ID, l, &zero, "absent")
					continue
				}
				p.SetArea(pep.ID, p.Files[fi].ID, l, area, "")
			}
		}
	}
	if batched > 0 {
		for i := range p.Peptides {
			p.Peptides[i].State = Batch
		}
	}

	if len(doc.Treatment) == 2 {
		var groups [2][]uuid.UUID
		for g, idxs := range doc.Treatment {
			for _, idx := range idxs {
				if idx < 0 || idx >= len(p.Files) {
					return nil, fmt.Errorf("legacy treatment references file %d of %d", idx+1, len(p.Files))
				}
				groups[g] = append(groups[g], p.Files[idx].ID)
			}
		}
		if err := p.SetGroups(groups[0], groups[1]); err != nil {
			return nil, fmt.Errorf("legacy treatment: %w", err)
		}
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func legacyResidues(seq string, fixed []string, mods *core.ModDatabase) ([]digest.Residue, error) {
	residues, err := digest.ParseSequence(seq, mods)
	if err != nil {
		return nil, fmt.Errorf("legacy sequence: %w", err)
	}
	var fixedMods []core.Modification
	for _, name := range fixed {
		mod, ok := mods.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("legacy fixed modification '%s' not found", name)
		}
		fixedMods = append(fixedMods, *mod)
	}
	return digest.ApplyFixed(residues, fixedMods), nil
}

func legacyIntRange(v []int) core.IntRange {
	if len(v) != 2 {
		return core.IntRange{Min: 1, Max: 1}
	}
	return core.IntRange{Min: v[0], Max: v[1]}
}

func legacyRange(ranges [][]float64, i int) *core.Range {
	if i >= len(ranges) || len(ranges[i]) != 2 {
		return nil
	}
	r := core.Range{Min: ranges[i][0], Max: ranges[i][1]}
	if !r.Valid() {
		return nil
	}
	return &r
}

func resolve(baseDir, path string) string {
	if filepath.IsAbs(path) || baseDir == "" {
		return path
	}
	return filepath.Clean(filepath.Join(baseDir, path))
}
