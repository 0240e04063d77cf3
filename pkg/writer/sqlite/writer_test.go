package sqlite

import (
	"database/sql"
	"math"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/ChrisMcGann/pepfoot/pkg/chrom"
	"github.com/ChrisMcGann/pepfoot/pkg/core"
	"github.com/ChrisMcGann/pepfoot/pkg/digest"
	"github.com/ChrisMcGann/pepfoot/pkg/fmod"
	"github.com/ChrisMcGann/pepfoot/pkg/project"
)

func ptr(v float64) *float64 { return &v }

func resultProject(t *testing.T) *project.Project {
	t.Helper()
	p := project.New("db", "PEPTIDEKMAGICR", project.Digestion{
		Enzyme:    "Trypsin",
		Length:    core.IntRange{Min: 1, Max: 20},
		Charge:    core.IntRange{Min: 1, Max: 3},
		FixedMods: []string{"Carbamidomethyl"},
		DiffMod:   "Oxidation",
	})
	for _, path := range []string{"a.mzML", "b.mzML", "c.mzML", "d.mzML"} {
		if _, err := p.AddFile(path); err != nil {
			t.Fatal(err)
		}
	}
	residues, _ := digest.ParseSequence(p.Sequence, nil)
	p.SetPeptides([]digest.Peptide{
		{Span: core.Span{Start: 1, End: 8}, Residues: residues[0:8]},
		{Span: core.Span{Start: 9, End: 14}, Residues: residues[8:14]},
	})

	id := core.Span{Start: 1, End: 8}
	in := project.Integration{Peptide: id, File: p.Files[0].ID, Label: project.Unmodified, Charge: 2,
		RT: core.Range{Min: 10, Max: 11}, MZ: core.Range{Min: 450, Max: 451}, Area: 1}
	if err := p.Integrate(in); err != nil {
		t.Fatal(err)
	}
	in.Label, in.MZ = project.Modified, core.Range{Min: 458, Max: 459}
	if err := p.Integrate(in); err != nil {
		t.Fatal(err)
	}
	mods := []float64{1, 1, 9, 4}
	for i, f := range p.Files {
		p.SetArea(id, f.ID, project.Unmodified, ptr(1), "")
		p.SetArea(id, f.ID, project.Modified, ptr(mods[i]), "")
	}
	p.SetArea(id, p.Files[3].ID, project.Modified, nil, "no scans in rt range")
	if err := p.SetGroups([]uuid.UUID{p.Files[0].ID, p.Files[1].ID}, []uuid.UUID{p.Files[2].ID, p.Files[3].ID}); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestWriteProject(t *testing.T) {
	p := resultProject(t)
	results, err := p.Analyze(fmod.Options{})
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "results.db")
	w, err := NewWriter(path, nil)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.WriteProject(p, results); err != nil {
		t.Fatalf("WriteProject: %v", err)
	}
	xic := chrom.Chromatogram{Window: core.Range{Min: 450, Max: 451}, Times: []float64{10, 10.5}, Intensities: []float64{3, 4}}
	if err := w.WriteChromatogram(core.Span{Start: 1, End: 8}, p.Files[0].ID.String(), project.Unmodified, xic); err != nil {
		t.Fatalf("WriteChromatogram: %v", err)
	}
	if err := w.WriteChromatogram(core.Span{Start: 2, End: 3}, p.Files[0].ID.String(), project.Unmodified, xic); err == nil {
		t.Error("expected error for unknown peptide")
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	counts := map[string]int{
		"HeaderTable":       1,
		"FileTable":         4,
		"PeptideTable":      2,
		"AreaTable":         8,
		"FractionTable":     4,
		"ComparisonTable":   1,
		"ChromatogramTable": 1,
	}
	for table, want := range counts {
		var got int
		if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&got); err != nil {
			t.Fatalf("count %s: %v", table, err)
		}
		if got != want {
			t.Errorf("%s has %d rows, want %d", table, got, want)
		}
	}

	var fixed, group string
	if err := db.QueryRow("SELECT FixedMods FROM HeaderTable").Scan(&fixed); err != nil {
		t.Fatal(err)
	}
	if fixed != "Carbamidomethyl" {
		t.Errorf("FixedMods = %q", fixed)
	}
	if err := db.QueryRow("SELECT TreatmentGroup FROM FileTable WHERE FileId = 3").Scan(&group); err != nil {
		t.Fatal(err)
	}
	if group != project.GroupHolo {
		t.Errorf("TreatmentGroup = %q, want %s", group, project.GroupHolo)
	}

	var missing sql.NullFloat64
	if err := db.QueryRow("SELECT Fraction FROM FractionTable WHERE FileId = 4").Scan(&missing); err != nil {
		t.Fatal(err)
	}
	if missing.Valid {
		t.Errorf("fraction of missing area = %v, want NULL", missing.Float64)
	}

	var apoMean, holoMean float64
	var pValue sql.NullFloat64
	if err := db.QueryRow("SELECT ApoMean, HoloMean, PValue FROM ComparisonTable").Scan(&apoMean, &holoMean, &pValue); err != nil {
		t.Fatal(err)
	}
	if math.Abs(apoMean-0.5) > 1e-12 || math.Abs(holoMean-0.9) > 1e-12 {
		t.Errorf("means = %v, %v, want 0.5, 0.9", apoMean, holoMean)
	}
	if pValue.Valid {
		t.Error("p-value with a single holo value should be NULL")
	}

	var blob []byte
	if err := db.QueryRow("SELECT blobIntensity FROM ChromatogramTable").Scan(&blob); err != nil {
		t.Fatal(err)
	}
	if got := DecodeFloat64(blob); len(got) != 2 || got[1] != 4 {
		t.Errorf("decoded intensities = %v", got)
	}
}

func TestEncodeFloat64(t *testing.T) {
	values := []float64{0, 1.5, -2.25, 1e10}
	got := DecodeFloat64(encodeFloat64(values))
	if len(got) != len(values) {
		t.Fatalf("got %d values, want %d", len(got), len(values))
	}
	for i := range values {
		if got[i] != values[i] {
			t.Errorf("value %d = %v, want %v", i, got[i], values[i])
		}
	}
}
