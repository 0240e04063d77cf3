package digest

import (
	"fmt"
	"sort"

	"github.com/dlclark/regexp2"
)

// NoEnzyme leaves the sequence uncut.
const NoEnzyme = "None"

// DefaultEnzymes maps enzyme names to cleavage rules. A rule matches the
// residues before a cut; the cut is placed at the end of each match, so
// look-ahead expresses the residue after the cut.
var DefaultEnzymes = map[string]string{
	"ArgC":                          `[R]`,
	"AspN":                          `(?=[D])`,
	"AspN + N-term Glu":             `(?=[DE])`,
	"BNPS-Skatole":                  `[W]`,
	"Chymotrypsin":                  `[FLMYW](?=[^P])`,
	"Chymotrypsin High Specificity": `[FYW](?=[^P])`,
	"Clostripain":                   `[R]`,
	"Cyanogen bromide":              `[M]`,
	"Elastase":                      `[AVSLI]`,
	"Formic acid":                   `[D]`,
	"GluC":                          `[E]`,
	"Glutamyl endopeptidase":        `[E]`,
	"Hydroxylamine":                 `[N](?=[G])`,
	"Iodosobenzoic acid":            `[W]`,
	"LysC":                          `[K]`,
	"LysN":                          `(?=[K])`,
	"NTCB + Ni":                     `(?=[C])`,
	"Neutrophil elastase":           `[VA]`,
	"Pepsin":                        `[FL](?=[^AGV])`,
	"Proline endopeptidase":         `[P](?=[^P])`,
	"Proteinase K":                  `[AEFILTVWY]`,
	"Thermolysin":                   `[^DE](?=[AFILMV])`,
	"Trypsin":                       `[KR](?=[^P])`,
}

// Enzyme is a compiled cleavage rule.
type Enzyme struct {
	Name string
	Rule string

	re *regexp2.Regexp
}

// NewEnzyme compiles a cleavage rule. An empty rule never cuts.
func NewEnzyme(name, rule string) (*Enzyme, error) {
	e := &Enzyme{Name: name, Rule: rule}
	if rule == "" || name == NoEnzyme {
		e.Rule = ""
		return e, nil
	}
	re, err := regexp2.Compile(rule, regexp2.None)
	if err != nil {
		return nil, fmt.Errorf("enzyme %s: invalid rule '%s': %w", name, rule, err)
	}
	e.re = re
	return e, nil
}

// LookupEnzyme compiles the named enzyme from a name -> rule table.
func LookupEnzyme(name string, table map[string]string) (*Enzyme, error) {
	if name == "" || name == NoEnzyme {
		return NewEnzyme(NoEnzyme, "")
	}
	rule, ok := table[name]
	if !ok {
		return nil, fmt.Errorf("unknown enzyme '%s'", name)
	}
	return NewEnzyme(name, rule)
}

// EnzymeNames returns the sorted names of a table.
func EnzymeNames(table map[string]string) []string {
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Sites returns the sorted, unique internal cleavage positions of seq
// (0 < site < len(seq)), as offsets into seq.
func (e *Enzyme) Sites(seq string) ([]int, error) {
	if e == nil || e.re == nil {
		return nil, nil
	}

	seen := make(map[int]bool)
	var sites []int
	m, err := e.re.FindStringMatch(seq)
	for m != nil && err == nil {
		end := m.Index + m.Length
		if end > 0 && end < len(seq) && !seen[end] {
			seen[end] = true
			sites = append(sites, end)
		}
		m, err = e.re.FindNextMatch(m)
	}
	if err != nil {
		return nil, fmt.Errorf("enzyme %s: %w", e.Name, err)
	}

	sort.Ints(sites)
	return sites, nil
}
