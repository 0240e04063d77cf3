package batch

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/ChrisMcGann/pepfoot/pkg/core"
	"github.com/ChrisMcGann/pepfoot/pkg/digest"
	"github.com/ChrisMcGann/pepfoot/pkg/project"
)

// scaledRun has the peptide signal at 500 and 501 scaled by k.
func scaledRun(k float64) *core.Run {
	var scans []core.Scan
	for i, rt := range []float64{1.0, 1.5, 2.0} {
		scans = append(scans, core.Scan{Index: i, RT: rt, MSLevel: 1, Peaks: []core.Peak{
			{MZ: 500, Intensity: 10 * k},
			{MZ: 501, Intensity: 30 * k},
		}})
	}
	return &core.Run{Scans: scans}
}

type fakeOpener struct {
	runs   map[string]*core.Run
	opened []string
}

func (f *fakeOpener) Open(path string) (*core.Run, error) {
	f.opened = append(f.opened, path)
	run, ok := f.runs[path]
	if !ok {
		return nil, errors.New("no such file")
	}
	return run, nil
}

func batchProject(t *testing.T, paths ...string) *project.Project {
	t.Helper()
	p := project.New("batch", "PEPTIDEKMAGICR", project.Digestion{
		Length: core.IntRange{Min: 1, Max: 20},
		Charge: core.IntRange{Min: 1, Max: 3},
	})
	for _, path := range paths {
		if _, err := p.AddFile(path); err != nil {
			t.Fatal(err)
		}
	}
	residues, err := digest.ParseSequence(p.Sequence, nil)
	if err != nil {
		t.Fatal(err)
	}
	p.SetPeptides([]digest.Peptide{
		{Span: core.Span{Start: 1, End: 8}, Residues: residues[0:8]},
		{Span: core.Span{Start: 9, End: 14}, Residues: residues[8:14]},
	})

	id := core.Span{Start: 1, End: 8}
	for _, in := range []project.Integration{
		{Peptide: id, File: p.Files[0].ID, Label: project.Unmodified, Charge: 1,
			RT: core.Range{Min: 0.5, Max: 2.5}, MZ: core.Range{Min: 499.5, Max: 500.5}, Area: 1},
		{Peptide: id, File: p.Files[0].ID, Label: project.Modified, Charge: 1,
			RT: core.Range{Min: 0.5, Max: 2.5}, MZ: core.Range{Min: 500.5, Max: 501.5}, Area: 1},
	} {
		if err := p.Integrate(in); err != nil {
			t.Fatal(err)
		}
	}
	return p
}

func TestRun(t *testing.T) {
	p := batchProject(t, "a", "b", "missing")
	opener := &fakeOpener{runs: map[string]*core.Run{"a": scaledRun(1), "b": scaledRun(2)}}
	r := &Runner{Open: opener}

	report, err := r.Run(context.Background(), p, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if report.Done != 2 || report.Failed != 1 || report.Skipped != 0 {
		t.Errorf("report = %+v", report)
	}

	id := core.Span{Start: 1, End: 8}
	// trapezoid over 1.0..2.0 min = 60 s at constant intensity
	wantUnmod := []float64{600, 1200}
	for i, want := range wantUnmod {
		got := p.AreaValue(id, p.Files[i].ID, project.Unmodified)
		if got == nil || math.Abs(*got-want) > 1e-9 {
			t.Errorf("file %d unmodified area = %v, want %v", i, got, want)
		}
		f := p.Fraction(id, p.Files[i].ID)
		if f == nil || math.Abs(*f-0.75) > 1e-12 {
			t.Errorf("file %d fraction = %v, want 0.75", i, f)
		}
	}

	failed := p.Files[2]
	if failed.Status != project.FileFailed || failed.Error == "" {
		t.Errorf("failed file = %+v", failed)
	}
	if v := p.AreaValue(id, failed.ID, project.Unmodified); v != nil {
		t.Errorf("area of failed file = %v, want nil", *v)
	}

	pep, _ := p.Peptide(id)
	if pep.State != project.Batch {
		t.Errorf("State = %s, want %s", pep.State, project.Batch)
	}
	unassigned, _ := p.Peptide(core.Span{Start: 9, End: 14})
	if unassigned.State != project.Unresolved {
		t.Errorf("unassigned peptide State = %s", unassigned.State)
	}
}

func TestRunResume(t *testing.T) {
	p := batchProject(t, "a", "b")
	opener := &fakeOpener{runs: map[string]*core.Run{"a": scaledRun(1), "b": scaledRun(1)}}
	r := &Runner{Open: opener}

	if _, err := r.Run(context.Background(), p, Options{}); err != nil {
		t.Fatal(err)
	}
	opener.opened = nil
	report, err := r.Run(context.Background(), p, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if report.Skipped != 2 || len(opener.opened) != 0 {
		t.Errorf("second run reopened files: %v, report %+v", opener.opened, report)
	}

	report, err = r.Run(context.Background(), p, Options{Force: true})
	if err != nil {
		t.Fatal(err)
	}
	if report.Done != 2 || len(opener.opened) != 2 {
		t.Errorf("forced run: opened %v, report %+v", opener.opened, report)
	}
}

func TestRunAfterParameterChange(t *testing.T) {
	p := batchProject(t, "a", "b")
	opener := &fakeOpener{runs: map[string]*core.Run{"a": scaledRun(1), "b": scaledRun(2)}}
	r := &Runner{Open: opener}
	if _, err := r.Run(context.Background(), p, Options{}); err != nil {
		t.Fatal(err)
	}

	first := core.Span{Start: 1, End: 8}
	second := core.Span{Start: 9, End: 14}
	a := p.Files[0].ID
	for _, in := range []project.Integration{
		{Peptide: second, File: a, Label: project.Unmodified, Charge: 1,
			RT: core.Range{Min: 0.5, Max: 2.5}, MZ: core.Range{Min: 499.5, Max: 500.5}, Area: 1},
		{Peptide: second, File: a, Label: project.Modified, Charge: 1,
			RT: core.Range{Min: 0.5, Max: 2.5}, MZ: core.Range{Min: 500.5, Max: 501.5}, Area: 1},
		// narrower rt range for a peptide already batch processed
		{Peptide: first, File: a, Label: project.Unmodified, Charge: 1,
			RT: core.Range{Min: 0.9, Max: 1.6}, MZ: core.Range{Min: 499.5, Max: 500.5}, Area: 1},
	} {
		if err := p.Integrate(in); err != nil {
			t.Fatal(err)
		}
	}
	for _, f := range p.Files {
		if f.Status != project.FilePending {
			t.Errorf("file %s status = %s after integration, want %s", f.Path, f.Status, project.FilePending)
		}
	}

	opener.opened = nil
	report, err := r.Run(context.Background(), p, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if report.Done != 2 || len(opener.opened) != 2 {
		t.Fatalf("rerun: opened %v, report %+v", opener.opened, report)
	}

	b := p.Files[1].ID
	tests := []struct {
		name string
		id   core.Span
		l    project.Label
		want float64
	}{
		{"new peptide unmodified", second, project.Unmodified, 1200},
		{"new peptide modified", second, project.Modified, 3600},
		{"changed range", first, project.Unmodified, 600},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.AreaValue(tt.id, b, tt.l)
			if got == nil || math.Abs(*got-tt.want) > 1e-9 {
				t.Errorf("area on file b = %v, want %v", got, tt.want)
			}
		})
	}
	pep, _ := p.Peptide(second)
	if pep.State != project.Batch {
		t.Errorf("State = %s, want %s", pep.State, project.Batch)
	}
}

func TestRunCancelledKeepsManualState(t *testing.T) {
	p := batchProject(t, "a", "b")
	ctx, cancel := context.WithCancel(context.Background())
	opener := OpenerFunc(func(path string) (*core.Run, error) {
		if path == "b" {
			cancel()
		}
		return scaledRun(1), nil
	})
	r := &Runner{Open: opener}

	if _, err := r.Run(ctx, p, Options{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	pep, _ := p.Peptide(core.Span{Start: 1, End: 8})
	if pep.State != project.Manual {
		t.Errorf("State = %s after partial run, want %s", pep.State, project.Manual)
	}
}

func TestRunCancelled(t *testing.T) {
	p := batchProject(t, "a", "b")
	ctx, cancel := context.WithCancel(context.Background())
	opener := OpenerFunc(func(path string) (*core.Run, error) {
		cancel()
		return scaledRun(1), nil
	})
	r := &Runner{Open: opener}

	_, err := r.Run(ctx, p, Options{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	for _, f := range p.Files {
		if f.Status == project.FileDone {
			t.Errorf("file %s marked done after cancellation", f.Path)
		}
	}
}

func TestRunMissingScansAndAbsent(t *testing.T) {
	p := batchProject(t, "a", "late")
	id := core.Span{Start: 1, End: 8}
	if err := p.MarkAbsent(id, p.Files[0].ID, project.Modified); err != nil {
		t.Fatal(err)
	}
	late := &core.Run{Scans: []core.Scan{{RT: 30, MSLevel: 1, Peaks: []core.Peak{{MZ: 500, Intensity: 1}}}}}
	r := &Runner{Open: &fakeOpener{runs: map[string]*core.Run{"a": scaledRun(1), "late": late}}, Method: "sum"}

	if _, err := r.Run(context.Background(), p, Options{}); err != nil {
		t.Fatal(err)
	}

	rec, ok := p.Area(id, p.Files[1].ID, project.Unmodified)
	if !ok || rec.Area != nil || rec.Note == "" {
		t.Errorf("no-scan record = %+v", rec)
	}
	rec, ok = p.Area(id, p.Files[1].ID, project.Modified)
	if !ok || rec.Area == nil || *rec.Area != 0 {
		t.Errorf("absent record = %+v", rec)
	}
	if v := p.AreaValue(id, p.Files[0].ID, project.Unmodified); v == nil || *v != 30 {
		t.Errorf("summed area = %v, want 30", v)
	}
}

func TestRunInvalidMethod(t *testing.T) {
	p := batchProject(t, "a")
	r := &Runner{Open: &fakeOpener{}, Method: "simpson"}
	if _, err := r.Run(context.Background(), p, Options{}); err == nil {
		t.Error("expected error for unknown method")
	}
}
