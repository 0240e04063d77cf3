package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ChrisMcGann/pepfoot/pkg/fmod"
	"github.com/ChrisMcGann/pepfoot/pkg/integrate"
	"github.com/ChrisMcGann/pepfoot/pkg/predict"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Tolerance != (predict.Tolerance{Value: 5, Unit: predict.UnitMMU}) {
		t.Errorf("Tolerance = %+v", cfg.Tolerance)
	}
	if cfg.Integration.Method != integrate.Trapezoid || cfg.Integration.MSLevel != 1 {
		t.Errorf("Integration = %+v", cfg.Integration)
	}
	if cfg.Analysis.Alpha != fmod.DefaultAlpha {
		t.Errorf("Alpha = %v", cfg.Analysis.Alpha)
	}
	if _, err := cfg.Enzyme("Trypsin"); err != nil {
		t.Errorf("built-in enzyme: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestLoadConfigFile(t *testing.T) {
	csvPath := writeFile(t, "mods.csv", "name,id,gain,loss,residues,mass\nMethyl,me,CH3,H,KR,14.01565\n")
	path := writeFile(t, "pepfoot.yaml", `
enzymes:
  Trypsin/P: "[KR]"
modifications:
  - name: Hydroxyl radical
    id: hr
    gain: O
    residues: MWYF
modifications_csv: `+csvPath+`
tolerance:
  value: 10
  unit: ppm
integration:
  method: sum
analysis:
  alpha: 0.01
`)

	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Tolerance.Unit != predict.UnitPPM || cfg.Tolerance.Value != 10 {
		t.Errorf("Tolerance = %+v", cfg.Tolerance)
	}
	if cfg.Integration.Method != integrate.Sum {
		t.Errorf("Method = %s", cfg.Integration.Method)
	}
	if cfg.Analysis.Alpha != 0.01 || cfg.Analysis.Threshold != fmod.DefaultThreshold {
		t.Errorf("Analysis = %+v", cfg.Analysis)
	}

	for _, name := range []string{"Trypsin/P", "Trypsin"} {
		if _, err := cfg.Enzyme(name); err != nil {
			t.Errorf("Enzyme(%q): %v", name, err)
		}
	}

	db, err := cfg.ModDatabase()
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range []string{"hr", "me", "ox"} {
		if _, ok := db.ByID(id); !ok {
			t.Errorf("modification %q missing", id)
		}
	}
	if mass, _ := db.GetMass("Hydroxyl radical"); mass < 15.99 || mass > 16 {
		t.Errorf("mass from formula = %v", mass)
	}
}

func TestLoadConfigFileErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"syntax", "tolerance: [unclosed"},
		{"unit", "tolerance:\n  value: 5\n  unit: da\n"},
		{"method", "integration:\n  method: simpson\n"},
		{"enzyme rule", "enzymes:\n  Broken: \"[KR\"\n"},
		{"alpha", "analysis:\n  alpha: 1.5\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadConfigFile(writeFile(t, "c.yaml", tt.content)); err == nil {
				t.Error("expected error")
			}
		})
	}
	if _, err := LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadFromEnv(t *testing.T) {
	path := writeFile(t, "env.yaml", "tolerance:\n  value: 3\n  unit: mmu\n")
	t.Setenv(EnvVar, path)

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Tolerance.Value != 3 {
		t.Errorf("Tolerance = %+v, want value from $%s", cfg.Tolerance, EnvVar)
	}

	t.Setenv(EnvVar, "")
	cfg, err = Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Tolerance.Value != 5 {
		t.Errorf("Tolerance = %+v, want default", cfg.Tolerance)
	}
}
