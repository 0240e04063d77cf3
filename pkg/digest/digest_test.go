package digest

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/ChrisMcGann/pepfoot/pkg/core"
)

func mustParse(t *testing.T, seq string) []Residue {
	t.Helper()
	res, err := ParseSequence(seq, core.DefaultModDatabase())
	if err != nil {
		t.Fatalf("ParseSequence(%s): %v", seq, err)
	}
	return res
}

func mustEnzyme(t *testing.T, name string) *Enzyme {
	t.Helper()
	e, err := LookupEnzyme(name, DefaultEnzymes)
	if err != nil {
		t.Fatalf("LookupEnzyme(%s): %v", name, err)
	}
	return e
}

func TestParseSequence(t *testing.T) {
	tests := []struct {
		name    string
		seq     string
		want    string
		wantErr bool
	}{
		{"plain", "PEPTIDE", "PEPTIDE", false},
		{"whitespace", "PEP TIDE\n", "PEPTIDE", false},
		{"inline labels", "camCPEoxMK", "camCPEoxMK", false},
		{"unknown residue", "PEPXIDE", "", true},
		{"unknown label", "fooMK", "", true},
		{"dangling label", "PEPox", "", true},
		{"digit", "PEP1TIDE", "", true},
		{"empty", "  ", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSequence(tt.seq, core.DefaultModDatabase())
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSequence() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidResidue) {
					t.Errorf("error %v does not wrap ErrInvalidResidue", err)
				}
				if got != nil {
					t.Error("expected no partial result")
				}
				return
			}
			if Format(got) != tt.want {
				t.Errorf("Format() = %s, want %s", Format(got), tt.want)
			}
		})
	}
}

func TestParseSequenceErrorPosition(t *testing.T) {
	_, err := ParseSequence("PEPXIDE", nil)
	if err == nil || !strings.Contains(err.Error(), "position 4") {
		t.Errorf("error = %v, want position 4", err)
	}
}

func TestApplyFixed(t *testing.T) {
	db := core.DefaultModDatabase()
	cam, _ := db.Get("Carbamidomethyl")
	res := mustParse(t, "CAoxCK")

	got := ApplyFixed(res, []core.Modification{*cam})
	if Format(got) != "camCAoxCK" {
		t.Errorf("ApplyFixed() = %s, want camCAoxCK", Format(got))
	}
	if Format(res) != "CAoxCK" {
		t.Error("ApplyFixed() modified its input")
	}
}

func TestDigestSinglePeptide(t *testing.T) {
	peps, err := Digest(mustParse(t, "PEPTIDE"), Params{
		Enzyme:          mustEnzyme(t, "Trypsin"),
		MissedCleavages: 0,
		MinLength:       3,
		MaxLength:       10,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(peps) != 1 {
		t.Fatalf("got %d peptides, want 1", len(peps))
	}
	if peps[0].Sequence() != "PEPTIDE" || peps[0].Span != (core.Span{Start: 1, End: 7}) {
		t.Errorf("got %s %v", peps[0].Sequence(), peps[0].Span)
	}
}

func TestDigestTrypsin(t *testing.T) {
	res := mustParse(t, "AAKGGRPLLK")

	tests := []struct {
		name   string
		missed int
		want   []string
	}{
		{"no missed", 0, []string{"1-3 AAK", "4-10 GGRPLLK"}},
		{"one missed", 1, []string{"1-3 AAK", "1-10 AAKGGRPLLK", "4-10 GGRPLLK"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			peps, err := Digest(res, Params{Enzyme: mustEnzyme(t, "Trypsin"), MissedCleavages: tt.missed, MinLength: 1})
			if err != nil {
				t.Fatal(err)
			}
			var got []string
			for _, p := range peps {
				got = append(got, p.Span.String()+" "+p.Sequence())
			}
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("Digest() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDigestLookAheadOnly(t *testing.T) {
	peps, err := Digest(mustParse(t, "AAKGGK"), Params{Enzyme: mustEnzyme(t, "LysN"), MinLength: 1})
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, p := range peps {
		got = append(got, p.Plain())
	}
	if strings.Join(got, ",") != "AA,KGG,K" {
		t.Errorf("Digest() = %v, want [AA KGG K]", got)
	}
}

func TestDigestBounds(t *testing.T) {
	seq := "MKWVTFISLLLLFSSAYSRGVFRRDTHKSEIAHRFKDLGEEHFKGLVLIAFSQYLQQCPFDEHVK"
	res := mustParse(t, seq)

	for _, missed := range []int{0, 1, 2, 3} {
		params := Params{Enzyme: mustEnzyme(t, "Trypsin"), MissedCleavages: missed, MinLength: 4, MaxLength: 20}
		peps, err := Digest(res, params)
		if err != nil {
			t.Fatal(err)
		}
		for _, p := range peps {
			if p.Len() < params.MinLength || p.Len() > params.MaxLength {
				t.Errorf("missed=%d: %s length %d out of bounds", missed, p.Sequence(), p.Len())
			}
			if p.MissedCleavages > missed {
				t.Errorf("missed=%d: %s has %d missed cleavages", missed, p.Sequence(), p.MissedCleavages)
			}
			if p.Span.Len() != p.Len() {
				t.Errorf("span %v does not match length %d", p.Span, p.Len())
			}
			if seq[p.Span.Start-1:p.Span.End] != p.Plain() {
				t.Errorf("span %v does not match sequence %s", p.Span, p.Plain())
			}
		}
	}
}

func TestDigestKeepsLabels(t *testing.T) {
	peps, err := Digest(mustParse(t, "camCAKoxMR"), Params{Enzyme: mustEnzyme(t, "Trypsin"), MinLength: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(peps) != 2 || peps[0].Sequence() != "camCAK" || peps[1].Sequence() != "oxMR" {
		t.Errorf("unexpected peptides %+v", peps)
	}
}

func TestDigestNoEnzyme(t *testing.T) {
	peps, err := Digest(mustParse(t, "AAKGGR"), Params{Enzyme: mustEnzyme(t, NoEnzyme)})
	if err != nil {
		t.Fatal(err)
	}
	if len(peps) != 1 || peps[0].Plain() != "AAKGGR" {
		t.Errorf("unexpected peptides %+v", peps)
	}
}

func TestDigestInvalidParams(t *testing.T) {
	res := mustParse(t, "AAK")
	if _, err := Digest(res, Params{MissedCleavages: -1}); err == nil {
		t.Error("expected error for negative missed cleavages")
	}
	if _, err := Digest(res, Params{MinLength: 5, MaxLength: 3}); err == nil {
		t.Error("expected error for inverted length bounds")
	}
	if _, err := Digest(nil, Params{}); !errors.Is(err, ErrInvalidResidue) {
		t.Errorf("error = %v, want ErrInvalidResidue", err)
	}
}

func TestDefaultEnzymesCompile(t *testing.T) {
	for _, name := range EnzymeNames(DefaultEnzymes) {
		if _, err := LookupEnzyme(name, DefaultEnzymes); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}
	if _, err := LookupEnzyme("Nonexistent", DefaultEnzymes); err == nil {
		t.Error("expected error for unknown enzyme")
	}
}

func TestFilterModifiable(t *testing.T) {
	peps, err := Digest(mustParse(t, "AAKGGRMLLK"), Params{Enzyme: mustEnzyme(t, "Trypsin"), MinLength: 1})
	if err != nil {
		t.Fatal(err)
	}
	oxm, _ := core.DefaultModDatabase().Get("Oxidation of Met")
	got := FilterModifiable(peps, oxm)
	if len(got) != 1 || got[0].Plain() != "MLLK" {
		t.Errorf("FilterModifiable() = %+v", got)
	}
}

func TestCoverage(t *testing.T) {
	peps := []Peptide{
		{Span: core.Span{Start: 1, End: 3}},
		{Span: core.Span{Start: 3, End: 5}},
	}
	if got := Coverage(peps, 10); math.Abs(got-50) > 1e-9 {
		t.Errorf("Coverage() = %v, want 50", got)
	}
	if got := Coverage(nil, 0); got != 0 {
		t.Errorf("Coverage() = %v, want 0", got)
	}
}

func TestReadFASTA(t *testing.T) {
	in := `>sp|P02768|ALBU_HUMAN Serum albumin
MKWVTFISLL
LLFSSAYS
; comment
>second
PEPTIDE
`
	recs, err := ReadFASTA(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	if recs[0].Sequence != "MKWVTFISLLLLFSSAYS" || recs[1].Header != "second" {
		t.Errorf("unexpected records %+v", recs)
	}

	if _, err := ReadFASTA(strings.NewReader("PEPTIDE\n")); err == nil {
		t.Error("expected error for headerless FASTA")
	}
}
