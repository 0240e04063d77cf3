// Package core provides chemistry calculations for peptide mass and isotope predictions
package core

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Atomic masses (monoisotopic)
const (
	MassH = 1.00782503207
	MassC = 12.0000000000
	MassN = 14.0030740048
	MassO = 15.99491461956
	MassS = 31.97207100
	MassP = 30.97376163

	// Proton mass for charge calculations
	ProtonMass = 1.00727646688
)

// Isotope is a single stable isotope of an element.
type Isotope struct {
	MassNumber int
	Mass       float64
	Abundance  float64 // natural abundance as a fraction
}

// Elements maps element symbols to their stable isotopes, lightest first.
var Elements = map[string][]Isotope{
	"H":  {{1, MassH, 0.999885}, {2, 2.0141017778, 0.000115}},
	"C":  {{12, MassC, 0.9893}, {13, 13.0033548378, 0.0107}},
	"N":  {{14, MassN, 0.99636}, {15, 15.0001088982, 0.00364}},
	"O":  {{16, MassO, 0.99757}, {17, 16.99913170, 0.00038}, {18, 17.9991610, 0.00205}},
	"S":  {{32, MassS, 0.9499}, {33, 32.97145876, 0.0075}, {34, 33.96786690, 0.0425}, {36, 35.96708076, 0.0001}},
	"P":  {{31, MassP, 1.0}},
	"F":  {{19, 18.99840322, 1.0}},
	"Na": {{23, 22.9897692809, 1.0}},
	"Cl": {{35, 34.96885268, 0.7576}, {37, 36.96590259, 0.2424}},
	"Br": {{79, 78.9183371, 0.5069}, {81, 80.9162906, 0.4931}},
	"I":  {{127, 126.904473, 1.0}},
}

// Composition is an elemental formula: element symbol -> atom count.
// Counts may be negative for modification deltas (gain minus loss).
type Composition map[string]int

var formulaToken = regexp.MustCompile(`([A-Z][a-z]?)(-?\d*)`)

// ParseFormula parses a formula such as "C2H3O" or "H2PO3".
func ParseFormula(formula string) (Composition, error) {
	comp := Composition{}
	formula = strings.TrimSpace(formula)
	if formula == "" {
		return comp, nil
	}

	consumed := 0
	for _, m := range formulaToken.FindAllStringSubmatchIndex(formula, -1) {
		if m[0] != consumed {
			return nil, fmt.Errorf("invalid formula '%s' at offset %d", formula, consumed)
		}
		consumed = m[1]

		symbol := formula[m[2]:m[3]]
		if _, ok := Elements[symbol]; !ok {
			return nil, fmt.Errorf("unknown element '%s' in formula '%s'", symbol, formula)
		}
		count := 1
		if m[5] > m[4] {
			n, err := strconv.Atoi(formula[m[4]:m[5]])
			if err != nil {
				return nil, fmt.Errorf("invalid count in formula '%s': %w", formula, err)
			}
			count = n
		}
		comp[symbol] += count
	}
	if consumed != len(formula) {
		return nil, fmt.Errorf("invalid formula '%s' at offset %d", formula, consumed)
	}

	return comp, nil
}

// MustParseFormula is ParseFormula for built-in tables; it panics on error.
func MustParseFormula(formula string) Composition {
	comp, err := ParseFormula(formula)
	if err != nil {
		panic(err)
	}
	return comp
}

// Add returns c + other without modifying either.
func (c Composition) Add(other Composition) Composition {
	out := make(Composition, len(c)+len(other))
	for el, n := range c {
		out[el] += n
	}
	for el, n := range other {
		out[el] += n
	}
	out.prune()
	return out
}

// Sub returns c - other without modifying either.
func (c Composition) Sub(other Composition) Composition {
	return c.Add(other.Scale(-1))
}

// Scale returns c with every count multiplied by n.
func (c Composition) Scale(n int) Composition {
	out := make(Composition, len(c))
	for el, count := range c {
		out[el] = count * n
	}
	out.prune()
	return out
}

func (c Composition) prune() {
	for el, n := range c {
		if n == 0 {
			delete(c, el)
		}
	}
}

// Validate checks that all elements are known and no count is negative.
func (c Composition) Validate() error {
	for el, n := range c {
		if _, ok := Elements[el]; !ok {
			return &ValidationError{Field: "Composition", Message: fmt.Sprintf("unknown element '%s'", el)}
		}
		if n < 0 {
			return &ValidationError{Field: "Composition", Message: fmt.Sprintf("negative count %d for %s", n, el)}
		}
	}
	return nil
}

// MonoisotopicMass sums the lightest isotope mass of every atom.
func (c Composition) MonoisotopicMass() float64 {
	mass := 0.0
	for el, n := range c {
		isotopes, ok := Elements[el]
		if !ok {
			continue
		}
		mass += float64(n) * isotopes[0].Mass
	}
	return mass
}

// String renders the formula in Hill order (C, H, then alphabetical).
func (c Composition) String() string {
	var symbols []string
	for el := range c {
		if el != "C" && el != "H" {
			symbols = append(symbols, el)
		}
	}
	sort.Strings(symbols)
	if _, ok := c["H"]; ok {
		symbols = append([]string{"H"}, symbols...)
	}
	if _, ok := c["C"]; ok {
		symbols = append([]string{"C"}, symbols...)
	}

	var sb strings.Builder
	for _, el := range symbols {
		sb.WriteString(el)
		if c[el] != 1 {
			sb.WriteString(strconv.Itoa(c[el]))
		}
	}
	return sb.String()
}

// Water is added once per peptide for the free termini.
var Water = Composition{"H": 2, "O": 1}

// AminoAcidCompositions maps amino acid one-letter codes to residue compositions
var AminoAcidCompositions = map[rune]Composition{
	'A': {"C": 3, "H": 5, "N": 1, "O": 1},
	'R': {"C": 6, "H": 12, "N": 4, "O": 1},
	'N': {"C": 4, "H": 6, "N": 2, "O": 2},
	'D': {"C": 4, "H": 5, "N": 1, "O": 3},
	'C': {"C": 3, "H": 5, "N": 1, "O": 1, "S": 1},
	'E': {"C": 5, "H": 7, "N": 1, "O": 3},
	'Q': {"C": 5, "H": 8, "N": 2, "O": 2},
	'G': {"C": 2, "H": 3, "N": 1, "O": 1},
	'H': {"C": 6, "H": 7, "N": 3, "O": 1},
	'I': {"C": 6, "H": 11, "N": 1, "O": 1},
	'L': {"C": 6, "H": 11, "N": 1, "O": 1},
	'K': {"C": 6, "H": 12, "N": 2, "O": 1},
	'M': {"C": 5, "H": 9, "N": 1, "O": 1, "S": 1},
	'F': {"C": 9, "H": 9, "N": 1, "O": 1},
	'P': {"C": 5, "H": 7, "N": 1, "O": 1},
	'S': {"C": 3, "H": 5, "N": 1, "O": 2},
	'T': {"C": 4, "H": 7, "N": 1, "O": 2},
	'W': {"C": 11, "H": 10, "N": 2, "O": 1},
	'Y': {"C": 9, "H": 9, "N": 1, "O": 2},
	'V': {"C": 5, "H": 9, "N": 1, "O": 1},
}

// IsResidue reports whether r is one of the 20 standard residues.
func IsResidue(r rune) bool {
	_, ok := AminoAcidCompositions[r]
	return ok
}

// SequenceComposition returns the composition of an unmodified peptide including water.
func SequenceComposition(sequence string) (Composition, error) {
	comp := Water.Add(nil)
	for i, aa := range sequence {
		aaComp, ok := AminoAcidCompositions[aa]
		if !ok {
			return nil, fmt.Errorf("unknown residue '%c' at position %d", aa, i+1)
		}
		comp = comp.Add(aaComp)
	}
	return comp, nil
}

// MZ converts a neutral mass to m/z for a given positive charge state.
func MZ(neutralMass float64, charge int) float64 {
	return (neutralMass + float64(charge)*ProtonMass) / float64(charge)
}

// NeutralMass converts an m/z back to the neutral mass.
func NeutralMass(mz float64, charge int) float64 {
	return mz*float64(charge) - float64(charge)*ProtonMass
}

// PPM returns the relative difference (observed - expected) in parts per million.
func PPM(expected, observed float64) float64 {
	return (observed - expected) / expected * 1e6
}
