package project

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Encode writes the project as indented JSON. Derived fractions are refreshed first.
func (p *Project) Encode(w io.Writer) error {
	p.normalize()
	p.Fractions = p.FractionMatrix()

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(p); err != nil {
		return fmt.Errorf("encode project: %w", err)
	}
	return nil
}

// Decode reads and validates a project document.
func Decode(r io.Reader) (*Project, error) {
	var p Project
	decoder := json.NewDecoder(r)
	if err := decoder.Decode(&p); err != nil {
		return nil, fmt.Errorf("decode project: %w", err)
	}
	p.normalize()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Save writes the project to path through a temporary file in the same
// directory, replacing any existing file.
func (p *Project) Save(path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".pepfoot-*.json")
	if err != nil {
		return fmt.Errorf("create temp project: %w", err)
	}

	if err := p.Encode(tmp); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp project: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace project file: %w", err)
	}

	return nil
}

// Load reads a project document from path.
func Load(path string) (*Project, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open project: %w", err)
	}
	defer file.Close()

	p, err := Decode(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

func (p *Project) normalize() {
	if p.Files == nil {
		p.Files = []DataFile{}
	}
	if p.Peptides == nil {
		p.Peptides = []Peptide{}
	}
	if p.Areas == nil {
		p.Areas = []AreaRecord{}
	}
	if p.Groups == nil {
		p.Groups = []TreatmentGroup{}
	}
	if p.Digestion.FixedMods == nil {
		p.Digestion.FixedMods = []string{}
	}
	for i := range p.Files {
		if p.Files[i].Status == "" {
			p.Files[i].Status = FilePending
		}
	}
	for i := range p.Peptides {
		if p.Peptides[i].State == "" {
			p.Peptides[i].State = Unresolved
		}
	}
}
