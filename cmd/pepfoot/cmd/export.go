package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/pepfoot/pkg/digest"
	"github.com/ChrisMcGann/pepfoot/pkg/integrate"
	"github.com/ChrisMcGann/pepfoot/pkg/pdb"
	"github.com/ChrisMcGann/pepfoot/pkg/project"
	"github.com/ChrisMcGann/pepfoot/pkg/writer/csv"
	"github.com/ChrisMcGann/pepfoot/pkg/writer/sqlite"
)

var (
	// Flags for export
	exportOut     string
	chromatograms bool
	structureFile string
	bfactorMode   string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Print fractional modification statistics per peptide",
	Long: `Compute the fractional modification of every assigned peptide in every data
file. With apo and holo groups set, the groups are compared with a two-sample
t-test and the extent of modification change is reported.`,
	RunE: runAnalyze,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export analysis results",
}

var exportCSVCmd = &cobra.Command{
	Use:   "csv",
	Short: "Export results as CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, results, err := analyzeProject()
		if err != nil {
			return err
		}
		var w io.Writer = os.Stdout
		if exportOut != "" {
			file, err := os.Create(exportOut)
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			defer file.Close()
			w = file
		}
		if err := csv.Write(w, p, results, time.Now()); err != nil {
			return err
		}
		if exportOut != "" {
			fmt.Printf("Output: %s\n", exportOut)
		}
		return nil
	},
}

var exportSQLiteCmd = &cobra.Command{
	Use:   "sqlite",
	Short: "Export the project and its results to a SQLite database",
	Long: `Write files, peptides, areas, fractional modification and group comparisons
to a SQLite database. An existing database at the output path is replaced.
With --chromatograms every data file is read again and the ion chromatograms
of all integrated peptide labels are stored.`,
	RunE: runExportSQLite,
}

var exportPDBCmd = &cobra.Command{
	Use:   "pdb",
	Short: "Write a structure with results in the B-factor column",
	Long: `Map per-peptide results onto the residues of a PDB structure. Only chains
whose sequence equals the project sequence are annotated.

Modes:
  categorical  -2 not detected, 0 not significant, 1 protected, -1 exposed
  continuous   mean fractional modification, -2 not detected`,
	RunE: runExportPDB,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(exportCmd)
	exportCmd.AddCommand(exportCSVCmd)
	exportCmd.AddCommand(exportSQLiteCmd)
	exportCmd.AddCommand(exportPDBCmd)

	exportCmd.PersistentFlags().StringVarP(&exportOut, "out", "o", "", "Output file")
	exportSQLiteCmd.Flags().BoolVar(&chromatograms, "chromatograms", false, "Store ion chromatograms")
	exportPDBCmd.Flags().StringVar(&structureFile, "structure", "", "Input PDB file (default: the project's structure file)")
	exportPDBCmd.Flags().StringVar(&bfactorMode, "mode", "categorical", "B-factor mode: categorical or continuous")
}

func analyzeProject() (*project.Project, []project.PeptideResult, error) {
	p, err := loadProject()
	if err != nil {
		return nil, nil, err
	}
	results, err := p.Analyze(cfg.FmodOptions())
	if err != nil {
		return nil, nil, err
	}
	return p, results, nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	p, results, err := analyzeProject()
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println("No assigned peptides")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	grouped := results[0].Comparison != nil
	if grouped {
		fmt.Fprintln(w, "Peptide\tSequence\tz\tApo\tsd\tHolo\tsd\tp\tE_m\tsd\tSignificant")
	} else {
		fmt.Fprintln(w, "Peptide\tSequence\tz\tN\tMean\tsd")
	}
	significant := 0
	for _, r := range results {
		pep := r.Peptide
		if !grouped {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\n", pep.ID, pep.Sequence, pep.Charge,
				r.Overall.N, num(r.Overall.Mean, r.Overall.N), num(r.Overall.Std, r.Overall.N))
			continue
		}
		c := r.Comparison
		pval := "-"
		if c.P != nil {
			pval = fmt.Sprintf("%.2g", *c.P)
		}
		mark := ""
		if c.Significant {
			mark = "*"
			significant++
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n", pep.ID, pep.Sequence, pep.Charge,
			num(c.Apo.Mean, c.Apo.N), num(c.Apo.Std, c.Apo.N), num(c.Holo.Mean, c.Holo.N), num(c.Holo.Std, c.Holo.N),
			pval, optional(c.Extent), optional(c.ExtentStd), mark)
	}
	w.Flush()

	fmt.Printf("\n%d assigned peptides, coverage %.1f%%", len(results), p.Coverage(residueCount(p.Sequence)))
	if grouped {
		fmt.Printf(", %d significant (alpha %g)", significant, cfg.Analysis.Alpha)
	}
	fmt.Println()
	return nil
}

func num(v float64, n int) string {
	if n == 0 {
		return "-"
	}
	return fmt.Sprintf("%.4f", v)
}

func optional(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.3f", *v)
}

func runExportSQLite(cmd *cobra.Command, args []string) error {
	if exportOut == "" {
		return errors.New("no output database given, use --out")
	}
	p, results, err := analyzeProject()
	if err != nil {
		return err
	}
	if err := os.Remove(exportOut); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to replace %s: %w", exportOut, err)
	}

	writer, err := sqlite.NewWriter(exportOut, logger)
	if err != nil {
		return fmt.Errorf("failed to create output database: %w", err)
	}
	defer writer.Close()

	if err := writer.WriteProject(p, results); err != nil {
		return err
	}

	count := 0
	if chromatograms {
		assigned := p.Assigned()
		for _, f := range p.Files {
			run, err := openData(nil, f.Path)
			if err != nil {
				logger.Warn("skipping chromatograms", "file", f.Name(), "error", err)
				continue
			}
			in := integrate.NewIntegrator(run, cfg.Integration.MSLevel)
			for _, pep := range assigned {
				for _, l := range project.Labels {
					if !pep.Integrated(l) {
						continue
					}
					c, err := in.Chromatogram(*pep.MZ[l])
					if err != nil {
						logger.Warn("chromatogram failed", "peptide", pep.ID, "label", l, "file", f.Name(), "error", err)
						continue
					}
					if err := writer.WriteChromatogram(pep.ID, f.ID.String(), l, c); err != nil {
						return err
					}
					count++
				}
			}
		}
	}

	if err := writer.Close(); err != nil {
		return err
	}
	fmt.Printf("Exported %d peptides, %d files", len(results), len(p.Files))
	if chromatograms {
		fmt.Printf(", %d chromatograms", count)
	}
	fmt.Printf("\nOutput: %s\n", exportOut)
	return nil
}

func runExportPDB(cmd *cobra.Command, args []string) error {
	if exportOut == "" {
		return errors.New("no output file given, use --out")
	}
	p, results, err := analyzeProject()
	if err != nil {
		return err
	}
	path := structureFile
	if path == "" {
		path = p.StructureFile
	}
	if path == "" {
		return errors.New("no structure given, use --structure")
	}

	residues, err := digest.ParseSequence(p.Sequence, nil)
	if err != nil {
		return err
	}
	length := len(residues)

	var values []float64
	switch bfactorMode {
	case "categorical":
		if len(results) > 0 && results[0].Comparison == nil {
			return errors.New("categorical mode needs apo and holo groups, see 'pepfoot group'")
		}
		values = pdb.Categorical(length, peptideValues(results))
	case "continuous":
		values = pdb.Continuous(length, peptideValues(results))
	default:
		return fmt.Errorf("invalid mode '%s', must be categorical or continuous", bfactorMode)
	}

	in, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open structure: %w", err)
	}
	structure, err := pdb.Parse(in)
	in.Close()
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := structure.AnnotateBFactors(digest.Plain(residues), values); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	out, err := os.Create(exportOut)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer out.Close()
	remark := fmt.Sprintf("pepfoot %s B-factors for project %s", bfactorMode, p.Name)
	if err := structure.Write(out, remark); err != nil {
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	if structureFile != "" && p.StructureFile != structureFile {
		p.StructureFile = structureFile
		if err := saveProject(p); err != nil {
			return err
		}
	}
	fmt.Printf("Output: %s\n", exportOut)
	return nil
}

// peptideValues drops peptides without any fractional modification value.
func peptideValues(results []project.PeptideResult) []pdb.PeptideValue {
	var out []pdb.PeptideValue
	for _, r := range results {
		if r.Overall.N == 0 {
			continue
		}
		v := pdb.PeptideValue{Span: r.Peptide.ID, Mean: r.Overall.Mean}
		if c := r.Comparison; c != nil {
			v.Significant = c.Significant
			v.Decreased = c.Apo.Mean > c.Holo.Mean
		}
		out = append(out, v)
	}
	return out
}
