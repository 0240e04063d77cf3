// Package core provides modification parsing and management
package core

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Modification is a chemical modification expressed as formula gain/loss on
// a set of residues. ID is the lowercase modX label used inline in sequences.
type Modification struct {
	Name     string  `yaml:"name" json:"name"`
	ID       string  `yaml:"id" json:"id"`
	Gain     string  `yaml:"gain" json:"gain"`
	Loss     string  `yaml:"loss" json:"loss"`
	Mass     float64 `yaml:"mass" json:"mass"`
	Residues string  `yaml:"residues" json:"residues"`

	delta Composition
}

var modIDPattern = regexp.MustCompile(`^[a-z][a-z0-9]*$`)

// Delta returns the composition change (gain minus loss).
func (m *Modification) Delta() Composition {
	if m.delta == nil {
		gain, err := ParseFormula(m.Gain)
		if err != nil {
			return Composition{}
		}
		loss, err := ParseFormula(m.Loss)
		if err != nil {
			return Composition{}
		}
		m.delta = gain.Sub(loss)
	}
	return m.delta
}

// CanModify reports whether the modification targets residue aa.
func (m *Modification) CanModify(aa rune) bool {
	return strings.ContainsRune(m.Residues, aa)
}

// Validate checks the label, formulas and residues, and fills Mass from the
// formulas when it is zero.
func (m *Modification) Validate() error {
	var errs []string
	if strings.TrimSpace(m.Name) == "" {
		errs = append(errs, "name is required")
	}
	if !modIDPattern.MatchString(m.ID) {
		errs = append(errs, fmt.Sprintf("id '%s' must be lowercase letters/digits starting with a letter", m.ID))
	}
	gain, err := ParseFormula(m.Gain)
	if err != nil {
		errs = append(errs, fmt.Sprintf("gain: %v", err))
	}
	loss, err := ParseFormula(m.Loss)
	if err != nil {
		errs = append(errs, fmt.Sprintf("loss: %v", err))
	}
	if m.Residues == "" {
		errs = append(errs, "at least one residue is required")
	}
	for _, r := range m.Residues {
		if !IsResidue(r) {
			errs = append(errs, fmt.Sprintf("unknown residue '%c'", r))
		}
	}
	if len(errs) > 0 {
		return &ValidationError{
			Field:   fmt.Sprintf("Modification %s", m.Name),
			Message: strings.Join(errs, "; "),
		}
	}

	m.delta = gain.Sub(loss)
	if m.Mass == 0 {
		m.Mass = m.delta.MonoisotopicMass()
	}
	return nil
}

// ModDatabase stores modification definitions
type ModDatabase struct {
	mods map[string]*Modification // name -> modification
	ids  map[string]*Modification // modX label -> modification
}

// NewModDatabase creates an empty modification database
func NewModDatabase() *ModDatabase {
	return &ModDatabase{
		mods: make(map[string]*Modification),
		ids:  make(map[string]*Modification),
	}
}

// LoadFromCSV loads modifications from a CSV file (format: name,id,gain,loss,residues[,mass])
func (db *ModDatabase) LoadFromCSV(r io.Reader) error {
	scanner := bufio.NewScanner(r)

	// Skip header line
	if scanner.Scan() {
		// header line
	}

	lineNum := 1
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Split(line, ",")
		if len(parts) < 5 {
			return fmt.Errorf("line %d: invalid format, expected name,id,gain,loss,residues[,mass]", lineNum)
		}
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}

		mod := Modification{
			Name:     parts[0],
			ID:       parts[1],
			Gain:     parts[2],
			Loss:     parts[3],
			Residues: parts[4],
		}
		if len(parts) > 5 && parts[5] != "" {
			mass, err := strconv.ParseFloat(parts[5], 64)
			if err != nil {
				return fmt.Errorf("line %d: invalid mass value '%s': %w", lineNum, parts[5], err)
			}
			mod.Mass = mass
		}

		if err := db.Add(mod); err != nil {
			return fmt.Errorf("line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading CSV: %w", err)
	}

	return nil
}

// Get returns a modification by name
func (db *ModDatabase) Get(name string) (*Modification, bool) {
	mod, ok := db.mods[name]
	return mod, ok
}

// ByID returns a modification by its modX label
func (db *ModDatabase) ByID(id string) (*Modification, bool) {
	mod, ok := db.ids[id]
	return mod, ok
}

// Lookup resolves either a name or a modX label.
func (db *ModDatabase) Lookup(nameOrID string) (*Modification, bool) {
	if mod, ok := db.Get(nameOrID); ok {
		return mod, true
	}
	return db.ByID(nameOrID)
}

// GetMass returns the mass shift for a modification name
func (db *ModDatabase) GetMass(name string) (float64, bool) {
	mod, ok := db.Lookup(name)
	if !ok {
		return 0, false
	}
	return mod.Mass, true
}

// Add adds or replaces a modification. A label already used by a different
// modification is rejected.
func (db *ModDatabase) Add(mod Modification) error {
	if err := mod.Validate(); err != nil {
		return err
	}
	if existing, ok := db.ids[mod.ID]; ok && existing.Name != mod.Name {
		return fmt.Errorf("modification id '%s' already used by '%s'", mod.ID, existing.Name)
	}
	if old, ok := db.mods[mod.Name]; ok {
		delete(db.ids, old.ID)
	}
	m := mod
	db.mods[m.Name] = &m
	db.ids[m.ID] = &m
	return nil
}

// Names returns all modification names in sorted order.
func (db *ModDatabase) Names() []string {
	names := make([]string, 0, len(db.mods))
	for name := range db.mods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of modifications.
func (db *ModDatabase) Len() int {
	return len(db.mods)
}

// Modifications returns all modifications sorted by name.
func (db *ModDatabase) Modifications() []Modification {
	out := make([]Modification, 0, len(db.mods))
	for _, name := range db.Names() {
		out = append(out, *db.mods[name])
	}
	return out
}

// MassMismatch returns the difference between the declared mass and the mass
// implied by the formulas.
func (m *Modification) MassMismatch() float64 {
	return math.Abs(m.Mass - m.Delta().MonoisotopicMass())
}

// DefaultModifications are the built-in modification definitions.
var DefaultModifications = []Modification{
	{Name: "Acetyl", ID: "ac", Gain: "C2H3O", Loss: "H", Mass: 42.0106, Residues: "K"},
	{Name: "Acrylamide adduct", ID: "acr", Gain: "C3H6ON", Loss: "H", Mass: 71.0371, Residues: "C"},
	{Name: "Amidation", ID: "am", Gain: "NH2", Loss: "OH", Mass: -0.984, Residues: "DE"},
	{Name: "Biotinylation", ID: "bt", Gain: "C10H15N2O2S", Loss: "H", Mass: 226.0776, Residues: "K"},
	{Name: "Carbamylation", ID: "ca", Gain: "H2CNO", Loss: "H", Mass: 43.0058, Residues: "KRCM"},
	{Name: "Carbamidomethyl", ID: "cam", Gain: "C2H4NO", Loss: "H", Mass: 57.0215, Residues: "C"},
	{Name: "Deamidation", ID: "deam", Gain: "OH", Loss: "NH2", Mass: 0.984, Residues: "NQ"},
	{Name: "Nitrosylation", ID: "n", Gain: "NO2", Loss: "H", Mass: 44.9851, Residues: "WY"},
	{Name: "Oxidation", ID: "ox", Gain: "O", Loss: "", Mass: 15.994915, Residues: "ACDEFGHIKLMNPQRSTVWY"},
	{Name: "Oxidation of Met", ID: "oxm", Gain: "O", Loss: "", Mass: 15.994915, Residues: "M"},
	{Name: "Phosphate", ID: "p", Gain: "H2PO3", Loss: "H", Mass: 79.9663, Residues: "STY"},
	{Name: "Photoleucine", ID: "pleu", Gain: "C5H9NO2", Loss: "", Mass: 115.0633, Residues: "ACDEFGHIKLMNPQRSTVWY"},
	{Name: "Sulfation", ID: "s", Gain: "HO3S", Loss: "H", Mass: 79.9568, Residues: "STY"},
	{Name: "Aryldiazarine-TDBA", ID: "tdba", Gain: "C9H5F3O2", Loss: "", Mass: 202.0242, Residues: "ACDEFGHIKLMNPQRSTVWY"},
}

// DefaultModDatabase returns a ModDatabase pre-loaded with common modifications
func DefaultModDatabase() *ModDatabase {
	db := NewModDatabase()
	for _, mod := range DefaultModifications {
		if err := db.Add(mod); err != nil {
			panic(fmt.Sprintf("invalid built-in modification %s: %v", mod.Name, err))
		}
	}
	return db
}
