// Package pdb reads and writes the coordinate records of Protein Data Bank
// files and maps per-residue values onto their B-factor column.
package pdb

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrNoMatchingChain is returned when no chain sequence equals the sequence
// to annotate.
var ErrNoMatchingChain = errors.New("no chain matches sequence")

var aa3to1 = map[string]byte{
	"ALA": 'A', "ARG": 'R', "ASN": 'N', "ASP": 'D', "CYS": 'C', "GLU": 'E',
	"GLN": 'Q', "GLY": 'G', "HIS": 'H', "ILE": 'I', "LEU": 'L', "LYS": 'K',
	"MET": 'M', "PHE": 'F', "PRO": 'P', "SER": 'S', "THR": 'T', "TRP": 'W',
	"TYR": 'Y', "VAL": 'V',
}

// Atom is one ATOM or HETATM record.
type Atom struct {
	Hetero    bool
	Serial    int
	Name      string // columns 13-16, kept padded
	AltLoc    string
	ResName   string
	ICode     string
	X, Y, Z   float64
	Occupancy float64
	BFactor   float64
	Element   string
}

// Residue groups the atoms sharing a residue number within a chain.
type Residue struct {
	Number int
	Name   string
	Hetero bool
	Atoms  []*Atom
}

// Chain is an ordered list of residues.
type Chain struct {
	ID       string
	Residues []*Residue
}

// Sequence returns the one-letter sequence of the chain's ATOM residues.
// Unknown residue names map to 'X'.
func (c *Chain) Sequence() string {
	var b strings.Builder
	for _, r := range c.Residues {
		if r.Hetero {
			continue
		}
		aa, ok := aa3to1[r.Name]
		if !ok {
			aa = 'X'
		}
		b.WriteByte(aa)
	}
	return b.String()
}

// Model is one MODEL block; files without MODEL records have a single model.
type Model struct {
	Number int
	Chains []*Chain
}

// Chain returns the chain with the given id.
func (m *Model) Chain(id string) (*Chain, bool) {
	for _, c := range m.Chains {
		if c.ID == id {
			return c, true
		}
	}
	return nil, false
}

// Structure is a parsed PDB file. Water molecules are dropped.
type Structure struct {
	Models []*Model
}

// Chains returns the chain id to sequence map of the first model.
func (s *Structure) Chains() map[string]string {
	out := make(map[string]string)
	if len(s.Models) == 0 {
		return out
	}
	for _, c := range s.Models[0].Chains {
		out[c.ID] = c.Sequence()
	}
	return out
}

// Parse reads ATOM, HETATM, MODEL and ENDMDL records. Other records are ignored.
func Parse(r io.Reader) (*Structure, error) {
	s := &Structure{}
	scanner := bufio.NewScanner(r)

	var model *Model
	var chain *Chain
	var residue *Residue
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		record := field(line, 0, 6)

		switch record {
		case "MODEL":
			n, err := strconv.Atoi(field(line, 10, 14))
			if err != nil {
				n = len(s.Models) + 1
			}
			model = &Model{Number: n}
			s.Models = append(s.Models, model)
			chain, residue = nil, nil

		case "ENDMDL":
			model, chain, residue = nil, nil, nil

		case "ATOM", "HETATM":
			if field(line, 17, 20) == "HOH" {
				continue
			}
			atom, resNum, chainID, err := parseAtom(line)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNum, err)
			}

			if model == nil {
				model = &Model{Number: len(s.Models) + 1}
				s.Models = append(s.Models, model)
			}
			if chain == nil || chain.ID != chainID {
				c, ok := model.Chain(chainID)
				if !ok {
					c = &Chain{ID: chainID}
					model.Chains = append(model.Chains, c)
				}
				chain, residue = c, nil
			}
			if residue == nil || residue.Number != resNum {
				residue = &Residue{Number: resNum, Name: atom.ResName, Hetero: atom.Hetero}
				chain.Residues = append(chain.Residues, residue)
			}
			residue.Atoms = append(residue.Atoms, atom)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read pdb: %w", err)
	}
	if len(s.Models) == 0 {
		return nil, errors.New("no coordinate records")
	}
	return s, nil
}

func parseAtom(line string) (*Atom, int, string, error) {
	if len(line) < 54 {
		return nil, 0, "", fmt.Errorf("coordinate record too short (%d columns)", len(line))
	}
	a := &Atom{
		Hetero:  field(line, 0, 6) == "HETATM",
		Name:    rawField(line, 12, 16),
		AltLoc:  field(line, 16, 17),
		ResName: field(line, 17, 20),
		ICode:   field(line, 26, 27),
		Element: field(line, 76, 78),
	}

	chainID := field(line, 21, 22)
	if chainID == "" {
		chainID = "A"
	}

	var err error
	if a.Serial, err = strconv.Atoi(field(line, 6, 11)); err != nil {
		return nil, 0, "", fmt.Errorf("invalid serial: %w", err)
	}
	resNum, err := strconv.Atoi(field(line, 22, 26))
	if err != nil {
		return nil, 0, "", fmt.Errorf("invalid residue number: %w", err)
	}
	coords := []*float64{&a.X, &a.Y, &a.Z}
	for i, p := range coords {
		if *p, err = strconv.ParseFloat(field(line, 30+8*i, 38+8*i), 64); err != nil {
			return nil, 0, "", fmt.Errorf("invalid coordinate: %w", err)
		}
	}
	if occ := field(line, 54, 60); occ != "" {
		if a.Occupancy, err = strconv.ParseFloat(occ, 64); err != nil {
			return nil, 0, "", fmt.Errorf("invalid occupancy: %w", err)
		}
	}
	if b := field(line, 60, 66); b != "" {
		if a.BFactor, err = strconv.ParseFloat(b, 64); err != nil {
			return nil, 0, "", fmt.Errorf("invalid b-factor: %w", err)
		}
	}
	return a, resNum, chainID, nil
}

func rawField(line string, start, end int) string {
	if start >= len(line) {
		return ""
	}
	if end > len(line) {
		end = len(line)
	}
	return line[start:end]
}

func field(line string, start, end int) string {
	return strings.TrimSpace(rawField(line, start, end))
}

// AnnotateBFactors sets the B-factor of every ATOM of each chain whose
// sequence equals sequence, in all models. values[i] belongs to residue
// number i+1; residues numbered outside values keep their B-factor.
func (s *Structure) AnnotateBFactors(sequence string, values []float64) error {
	var matches []string
	for id, seq := range s.Chains() {
		if seq == sequence {
			matches = append(matches, id)
		}
	}
	if len(matches) == 0 {
		return fmt.Errorf("%w (length %d)", ErrNoMatchingChain, len(sequence))
	}

	for _, m := range s.Models {
		for _, id := range matches {
			c, ok := m.Chain(id)
			if !ok {
				continue
			}
			for _, r := range c.Residues {
				if r.Hetero || r.Number < 1 || r.Number > len(values) {
					continue
				}
				for _, a := range r.Atoms {
					a.BFactor = values[r.Number-1]
				}
			}
		}
	}
	return nil
}

// Write renders the structure in PDB format, preceded by REMARK lines.
func (s *Structure) Write(w io.Writer, remarks ...string) error {
	bw := bufio.NewWriter(w)
	for _, r := range remarks {
		fmt.Fprintf(bw, "REMARK     %s\n", r)
	}
	for i, m := range s.Models {
		fmt.Fprintf(bw, "MODEL     %4d\n", i+1)
		for _, c := range m.Chains {
			for _, r := range c.Residues {
				for _, a := range r.Atoms {
					record := "ATOM  "
					if a.Hetero {
						record = "HETATM"
					}
					fmt.Fprintf(bw, "%s%5d %-4s%1s%-3s %1s%4d%1s   %8.3f%8.3f%8.3f%6.2f%6.2f          %2s\n",
						record, a.Serial, a.Name, a.AltLoc, a.ResName, c.ID, r.Number, a.ICode,
						a.X, a.Y, a.Z, a.Occupancy, a.BFactor, a.Element)
				}
			}
		}
		bw.WriteString("ENDMDL\n")
	}
	bw.WriteString("END\n")
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write pdb: %w", err)
	}
	return nil
}
