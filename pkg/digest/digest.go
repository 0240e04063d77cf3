// Package digest performs in-silico proteolytic digestion of modX protein sequences.
package digest

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/ChrisMcGann/pepfoot/pkg/core"
)

// ErrInvalidResidue is returned when a sequence contains an unknown residue or modification label.
var ErrInvalidResidue = errors.New("invalid residue")

// Residue is one amino acid with an optional modX label (e.g. "ox" in "oxM").
type Residue struct {
	AA  rune
	Mod string
}

func (r Residue) String() string {
	return r.Mod + string(r.AA)
}

// ParseSequence parses a modX sequence. Whitespace is ignored. Labels must be
// known to mods when mods is non-nil. Positions in errors are 1-based residue
// positions.
func ParseSequence(seq string, mods *core.ModDatabase) ([]Residue, error) {
	var residues []Residue
	var label strings.Builder

	for _, r := range seq {
		switch {
		case unicode.IsSpace(r):
			continue
		case r >= 'a' && r <= 'z', label.Len() > 0 && r >= '0' && r <= '9':
			label.WriteRune(r)
		case core.IsResidue(r):
			res := Residue{AA: r, Mod: label.String()}
			label.Reset()
			if res.Mod != "" && mods != nil {
				if _, ok := mods.ByID(res.Mod); !ok {
					return nil, fmt.Errorf("%w: unknown modification '%s' at position %d", ErrInvalidResidue, res.Mod, len(residues)+1)
				}
			}
			residues = append(residues, res)
		default:
			return nil, fmt.Errorf("%w: '%c' at position %d", ErrInvalidResidue, r, len(residues)+1)
		}
	}

	if label.Len() > 0 {
		return nil, fmt.Errorf("%w: label '%s' without residue at end of sequence", ErrInvalidResidue, label.String())
	}
	if len(residues) == 0 {
		return nil, fmt.Errorf("%w: empty sequence", ErrInvalidResidue)
	}
	return residues, nil
}

// ApplyFixed labels every unlabelled residue with the first fixed
// modification that targets it. Inline labels are kept.
func ApplyFixed(residues []Residue, fixed []core.Modification) []Residue {
	out := make([]Residue, len(residues))
	copy(out, residues)
	for i := range out {
		if out[i].Mod != "" {
			continue
		}
		for _, mod := range fixed {
			if mod.CanModify(out[i].AA) {
				out[i].Mod = mod.ID
				break
			}
		}
	}
	return out
}

// Plain returns the one-letter sequence without labels.
func Plain(residues []Residue) string {
	var b strings.Builder
	for _, r := range residues {
		b.WriteRune(r.AA)
	}
	return b.String()
}

// Format returns the modX string.
func Format(residues []Residue) string {
	var b strings.Builder
	for _, r := range residues {
		b.WriteString(r.Mod)
		b.WriteRune(r.AA)
	}
	return b.String()
}

// Params controls a digestion. Length bounds are inclusive; MaxLength 0 means unbounded.
type Params struct {
	Enzyme          *Enzyme
	MissedCleavages int
	MinLength       int
	MaxLength       int
}

// Validate checks the digestion parameters.
func (p Params) Validate() error {
	var errs []string
	if p.MissedCleavages < 0 {
		errs = append(errs, "missed cleavages must be non-negative")
	}
	if p.MinLength < 0 {
		errs = append(errs, "minimum length must be non-negative")
	}
	if p.MaxLength > 0 && p.MaxLength < p.MinLength {
		errs = append(errs, fmt.Sprintf("maximum length %d is below minimum length %d", p.MaxLength, p.MinLength))
	}
	if len(errs) > 0 {
		return &core.ValidationError{Field: "Digestion", Message: strings.Join(errs, "; ")}
	}
	return nil
}

// Peptide is a contiguous subsequence produced by digestion.
type Peptide struct {
	Span            core.Span
	Residues        []Residue
	MissedCleavages int
}

// Sequence returns the modX sequence.
func (p Peptide) Sequence() string {
	return Format(p.Residues)
}

// Plain returns the sequence without labels.
func (p Peptide) Plain() string {
	return Plain(p.Residues)
}

// Len returns the number of residues.
func (p Peptide) Len() int {
	return len(p.Residues)
}

// Digest cleaves residues with the enzyme and returns every peptide made of
// up to MissedCleavages+1 consecutive fragments whose length lies within the
// bounds. Peptides are sorted by start position, then sequence.
func Digest(residues []Residue, p Params) ([]Peptide, error) {
	if len(residues) == 0 {
		return nil, fmt.Errorf("%w: empty sequence", ErrInvalidResidue)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	plain := Plain(residues)
	sites, err := p.Enzyme.Sites(plain)
	if err != nil {
		return nil, err
	}

	bounds := make([]int, 0, len(sites)+2)
	bounds = append(bounds, 0)
	bounds = append(bounds, sites...)
	bounds = append(bounds, len(residues))

	var peptides []Peptide
	seen := make(map[core.Span]bool)
	for i := 0; i < len(bounds)-1; i++ {
		for j := i + 1; j < len(bounds) && j <= i+p.MissedCleavages+1; j++ {
			start, end := bounds[i], bounds[j]
			length := end - start
			if length < p.MinLength || (p.MaxLength > 0 && length > p.MaxLength) {
				continue
			}
			span := core.Span{Start: start + 1, End: end}
			if seen[span] {
				continue
			}
			seen[span] = true

			res := make([]Residue, length)
			copy(res, residues[start:end])
			peptides = append(peptides, Peptide{
				Span:            span,
				Residues:        res,
				MissedCleavages: j - i - 1,
			})
		}
	}

	sort.SliceStable(peptides, func(a, b int) bool {
		if peptides[a].Span.Start != peptides[b].Span.Start {
			return peptides[a].Span.Start < peptides[b].Span.Start
		}
		return peptides[a].Sequence() < peptides[b].Sequence()
	})
	return peptides, nil
}

// FilterModifiable keeps peptides containing at least one residue the
// modification can label.
func FilterModifiable(peptides []Peptide, mod *core.Modification) []Peptide {
	if mod == nil {
		return peptides
	}
	var out []Peptide
	for _, pep := range peptides {
		for _, r := range pep.Residues {
			if mod.CanModify(r.AA) {
				out = append(out, pep)
				break
			}
		}
	}
	return out
}

// Coverage returns the percentage of the length residues covered by at least one peptide.
func Coverage(peptides []Peptide, length int) float64 {
	if length <= 0 {
		return 0
	}
	covered := make([]bool, length)
	n := 0
	for _, pep := range peptides {
		for i := pep.Span.Start; i <= pep.Span.End && i <= length; i++ {
			if !covered[i-1] {
				covered[i-1] = true
				n++
			}
		}
	}
	return float64(n) * 100 / float64(length)
}
