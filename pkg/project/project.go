// Package project holds the footprinting project document: data files,
// digestion parameters, peptides, area records and treatment groups.
package project

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ChrisMcGann/pepfoot/pkg/core"
	"github.com/ChrisMcGann/pepfoot/pkg/predict"
)

// SchemaVersion is the version written by Save.
const SchemaVersion = 2

var (
	ErrUnknownFile    = errors.New("unknown data file")
	ErrUnknownPeptide = errors.New("unknown peptide")
	ErrDuplicateFile  = errors.New("data file already in project")
)

// FileStatus tracks batch progress per data file.
type FileStatus string

const (
	FilePending FileStatus = "pending"
	FileDone    FileStatus = "done"
	FileFailed  FileStatus = "failed"
)

// resetBatch returns processed files to pending so that the next batch run
// applies changed peptide parameters to every file.
func (p *Project) resetBatch() {
	for i := range p.Files {
		if p.Files[i].Status == FileDone {
			p.Files[i].Status = FilePending
		}
	}
}

// DataFile is one raw data file. ID is stable across removals of other files.
type DataFile struct {
	ID     uuid.UUID  `json:"id"`
	Path   string     `json:"path"`
	Status FileStatus `json:"status"`
	Error  string     `json:"error,omitempty"`
}

// Name returns the base name of the file.
func (f DataFile) Name() string {
	return filepath.Base(f.Path)
}

// Digestion holds the parameters the peptide list was produced with.
type Digestion struct {
	Enzyme          string        `json:"enzyme"`
	MissedCleavages int           `json:"missed_cleavages"`
	Length          core.IntRange `json:"length_range"`
	Charge          core.IntRange `json:"charge_range"`
	FixedMods       []string      `json:"fixed_mods"`
	DiffMod         string        `json:"differential_mod"`
}

// TreatmentGroup names a set of data files.
type TreatmentGroup struct {
	Name    string      `json:"name"`
	FileIDs []uuid.UUID `json:"file_ids"`
}

// Group names used by SetGroups.
const (
	GroupApo  = "apo"
	GroupHolo = "holo"
)

// Project is the aggregate root of a footprinting analysis.
type Project struct {
	SchemaVersion int               `json:"schema_version"`
	ID            uuid.UUID         `json:"id"`
	Name          string            `json:"name"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
	Sequence      string            `json:"sequence"`
	Digestion     Digestion         `json:"digestion"`
	Tolerance     predict.Tolerance `json:"tolerance"`
	Method        string            `json:"integration_method"`
	Files         []DataFile        `json:"data_files"`
	Peptides      []Peptide         `json:"peptides"`
	Areas         []AreaRecord      `json:"areas"`
	Groups        []TreatmentGroup  `json:"treatment"`
	StructureFile string            `json:"structure_file,omitempty"`
	// Fractions is derived on Save: assigned peptides by files, nil where undefined.
	Fractions [][]*float64 `json:"fractional_mod"`
}

// New creates an empty project.
func New(name, sequence string, d Digestion) *Project {
	now := time.Now().UTC()
	return &Project{
		SchemaVersion: SchemaVersion,
		ID:            uuid.New(),
		Name:          name,
		CreatedAt:     now,
		UpdatedAt:     now,
		Sequence:      sequence,
		Digestion:     d,
		Tolerance:     predict.Tolerance{Value: 5, Unit: predict.UnitMMU},
		Files:         []DataFile{},
		Peptides:      []Peptide{},
		Areas:         []AreaRecord{},
		Groups:        []TreatmentGroup{},
	}
}

func (p *Project) touch() {
	p.UpdatedAt = time.Now().UTC()
}

// AddFile appends a data file and returns it.
func (p *Project) AddFile(path string) (DataFile, error) {
	if strings.TrimSpace(path) == "" {
		return DataFile{}, fmt.Errorf("empty data file path")
	}
	for _, f := range p.Files {
		if f.Path == path {
			return DataFile{}, fmt.Errorf("%w: %s", ErrDuplicateFile, path)
		}
	}
	f := DataFile{ID: uuid.New(), Path: path, Status: FilePending}
	p.Files = append(p.Files, f)
	p.touch()
	return f, nil
}

// RemoveFile drops a data file with its area records and group memberships.
func (p *Project) RemoveFile(id uuid.UUID) error {
	idx := p.FileIndex(id)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownFile, id)
	}
	p.Files = slices.Delete(p.Files, idx, idx+1)
	p.Areas = slices.DeleteFunc(p.Areas, func(r AreaRecord) bool { return r.FileID == id })
	for i := range p.Groups {
		p.Groups[i].FileIDs = slices.DeleteFunc(p.Groups[i].FileIDs, func(f uuid.UUID) bool { return f == id })
	}
	p.touch()
	return nil
}

// FileIndex returns the position of the file in Files, or -1.
func (p *Project) FileIndex(id uuid.UUID) int {
	return slices.IndexFunc(p.Files, func(f DataFile) bool { return f.ID == id })
}

// File returns the data file with the given id.
func (p *Project) File(id uuid.UUID) (*DataFile, bool) {
	idx := p.FileIndex(id)
	if idx < 0 {
		return nil, false
	}
	return &p.Files[idx], true
}

// FindFile resolves a file by id, path, base name or 1-based position.
func (p *Project) FindFile(ref string) (*DataFile, error) {
	if id, err := uuid.Parse(ref); err == nil {
		if f, ok := p.File(id); ok {
			return f, nil
		}
	}
	for i := range p.Files {
		if p.Files[i].Path == ref || p.Files[i].Name() == ref || fmt.Sprint(i+1) == ref {
			return &p.Files[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownFile, ref)
}

// SetGroups replaces the treatment groups with an apo and a holo group.
func (p *Project) SetGroups(apo, holo []uuid.UUID) error {
	seen := make(map[uuid.UUID]string)
	for name, ids := range map[string][]uuid.UUID{GroupApo: apo, GroupHolo: holo} {
		for _, id := range ids {
			if p.FileIndex(id) < 0 {
				return fmt.Errorf("%w: %s", ErrUnknownFile, id)
			}
			if other, ok := seen[id]; ok {
				return fmt.Errorf("file %s is in both %s and %s", id, other, name)
			}
			seen[id] = name
		}
	}
	p.Groups = []TreatmentGroup{
		{Name: GroupApo, FileIDs: p.sortedByFileOrder(apo)},
		{Name: GroupHolo, FileIDs: p.sortedByFileOrder(holo)},
	}
	p.touch()
	return nil
}

// Group returns the named group.
func (p *Project) Group(name string) (TreatmentGroup, bool) {
	for _, g := range p.Groups {
		if g.Name == name {
			return g, true
		}
	}
	return TreatmentGroup{}, false
}

func (p *Project) sortedByFileOrder(ids []uuid.UUID) []uuid.UUID {
	out := slices.Clone(ids)
	slices.SortFunc(out, func(a, b uuid.UUID) int {
		return p.FileIndex(a) - p.FileIndex(b)
	})
	return out
}

// Validate checks the invariants of the document.
func (p *Project) Validate() error {
	var errs []string
	if p.SchemaVersion != SchemaVersion {
		errs = append(errs, fmt.Sprintf("unsupported schema version %d (want %d)", p.SchemaVersion, SchemaVersion))
	}
	if !p.Digestion.Charge.Valid() || p.Digestion.Charge.Min < 1 {
		errs = append(errs, fmt.Sprintf("invalid charge range %s", p.Digestion.Charge))
	}
	if !p.Digestion.Length.Valid() {
		errs = append(errs, fmt.Sprintf("invalid length range %s", p.Digestion.Length))
	}

	files := make(map[uuid.UUID]bool, len(p.Files))
	for _, f := range p.Files {
		if files[f.ID] {
			errs = append(errs, fmt.Sprintf("duplicate file id %s", f.ID))
		}
		files[f.ID] = true
	}

	peps := make(map[core.Span]bool, len(p.Peptides))
	for _, pep := range p.Peptides {
		if !pep.ID.Valid() {
			errs = append(errs, fmt.Sprintf("invalid peptide id %s", pep.ID))
		}
		if peps[pep.ID] {
			errs = append(errs, fmt.Sprintf("duplicate peptide %s", pep.ID))
		}
		peps[pep.ID] = true
		for l, r := range pep.MZ {
			if r != nil && !r.Valid() {
				errs = append(errs, fmt.Sprintf("peptide %s: invalid %s m/z range", pep.ID, Label(l)))
			}
		}
		for l, r := range pep.RT {
			if r != nil && !r.Valid() {
				errs = append(errs, fmt.Sprintf("peptide %s: invalid %s rt range", pep.ID, Label(l)))
			}
		}
	}

	type key struct {
		pep   core.Span
		file  uuid.UUID
		label Label
	}
	records := make(map[key]bool, len(p.Areas))
	for _, r := range p.Areas {
		if !peps[r.PeptideID] {
			errs = append(errs, fmt.Sprintf("area record for unknown peptide %s", r.PeptideID))
		}
		if !files[r.FileID] {
			errs = append(errs, fmt.Sprintf("area record for unknown file %s", r.FileID))
		}
		if !r.Label.Valid() {
			errs = append(errs, fmt.Sprintf("area record with invalid label %d", r.Label))
		}
		k := key{r.PeptideID, r.FileID, r.Label}
		if records[k] {
			errs = append(errs, fmt.Sprintf("duplicate area record %s/%s/%s", r.PeptideID, r.FileID, r.Label))
		}
		records[k] = true
	}

	for _, g := range p.Groups {
		for _, id := range g.FileIDs {
			if !files[id] {
				errs = append(errs, fmt.Sprintf("group %s references unknown file %s", g.Name, id))
			}
		}
	}

	if len(errs) > 0 {
		return &core.ValidationError{Field: "Project", Message: strings.Join(errs, "; ")}
	}
	return nil
}
