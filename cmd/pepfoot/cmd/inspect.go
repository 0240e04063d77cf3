package cmd

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/pepfoot/pkg/core"
	"github.com/ChrisMcGann/pepfoot/pkg/digest"
	"github.com/ChrisMcGann/pepfoot/pkg/filter"
	"github.com/ChrisMcGann/pepfoot/pkg/integrate"
	"github.com/ChrisMcGann/pepfoot/pkg/predict"
	"github.com/ChrisMcGann/pepfoot/pkg/project"
	"github.com/ChrisMcGann/pepfoot/pkg/reader"
	"github.com/ChrisMcGann/pepfoot/pkg/reader/peaklist"
)

var (
	// Flags shared by predict, xic, combine and integrate
	peptideRef  string
	label       project.Label
	charge      int
	predCharges core.IntRange
	ms1Range    core.Range
	mzRange     core.Range
	rtRange     core.Range
	mzFlag      = newRangeValue(&mzRange)
	rtFlag      = newRangeValue(&rtRange)
	ms1Flag     = newRangeValue(&ms1Range)

	// Flags for combine
	cutoffPercent float64
	topN          int
	peaksOut      string
	pickRange     core.Range
	pickFlag      = newRangeValue(&pickRange)
)

var predictCmd = &cobra.Command{
	Use:   "predict [SEQUENCE]",
	Short: "Print isotope envelopes and m/z windows of a peptide",
	Long: `Predict the isotope envelopes of a peptide and its differentially modified
form, and the m/z of every charge state in range. The peptide is either given
as a modX sequence or taken from a project with --peptide.

Examples:
  pepfoot predict PEPTIDEK --charge 1,3 --diff-mod Oxidation
  pepfoot predict -p lyz.json --peptide 34-45`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPredict,
}

var xicCmd = &cobra.Command{
	Use:   "xic DATAFILE",
	Short: "Extract an ion chromatogram from a data file",
	Long: `Extract the summed intensity in an m/z window for every MS1 scan. The window
is either given with --mz or derived from a project peptide, charge and label.
With a project, DATAFILE may be a file position, name or id.

Examples:
  pepfoot xic run1.mzML --mz 500.25,500.27
  pepfoot xic -p lyz.json 1 --peptide 34-45 --charge 2 --label mod`,
	Args: cobra.ExactArgs(1),
	RunE: runXIC,
}

var combineCmd = &cobra.Command{
	Use:   "combine DATAFILE",
	Short: "Sum scans over a retention time range and match the isotope envelope",
	Long: `Sum all MS1 scans inside --rt on a common m/z grid. With a project peptide
the window defaults to the display window of the ion and the observed peaks
are matched against the predicted envelope.

Examples:
  pepfoot combine run1.mzML --rt 10.2,10.9 --mz 499,506 --out summed.txt
  pepfoot combine -p lyz.json 1 --rt 10.2,10.9 --peptide 34-45 --charge 2 --label unmod`,
	Args: cobra.ExactArgs(1),
	RunE: runCombine,
}

func init() {
	rootCmd.AddCommand(predictCmd)
	rootCmd.AddCommand(xicCmd)
	rootCmd.AddCommand(combineCmd)

	// Predict command flags
	predictCmd.Flags().StringVar(&peptideRef, "peptide", "", "Project peptide id, e.g. 34-45")
	predictCmd.Flags().Var(newIntRangeValue(&predCharges, core.IntRange{Min: 1, Max: 4}), "charge", "Charge state range")
	predictCmd.Flags().Var(ms1Flag, "ms1", "MS1 m/z range; charges outside are dropped")
	predictCmd.Flags().StringVar(&diffMod, "diff-mod", "Oxidation", "Differential modification")
	predictCmd.Flags().StringSliceVar(&fixedMods, "fixed-mod", nil, "Fixed modifications")
	predictCmd.Flags().StringVar(&toleranceFlag, "tolerance", "", "m/z tolerance, e.g. 5mmu or 10ppm")

	for _, c := range []*cobra.Command{xicCmd, combineCmd} {
		addIonFlags(c)
		c.Flags().Var(mzFlag, "mz", "m/z window (overrides the peptide window)")
	}
	xicCmd.Flags().Var(rtFlag, "rt", "Retention time range in minutes")

	// Combine command flags
	combineCmd.Flags().Var(rtFlag, "rt", "Retention time range in minutes (required)")
	combineCmd.Flags().Float64Var(&cutoffPercent, "cutoff", 1, "Peak picking cutoff as % of base peak")
	combineCmd.Flags().IntVar(&topN, "top-n", 0, "Keep only the N most intense picked peaks (0 = no limit)")
	combineCmd.Flags().Var(pickFlag, "pick", "Report picked peaks only inside this m/z range")
	combineCmd.Flags().StringVarP(&peaksOut, "out", "o", "", "Write the summed spectrum as a peak list")
	combineCmd.MarkFlagRequired("rt")
}

func addIonFlags(c *cobra.Command) {
	c.Flags().StringVar(&peptideRef, "peptide", "", "Project peptide id, e.g. 34-45")
	c.Flags().IntVar(&charge, "charge", 0, "Charge state (default: the peptide's assigned charge)")
	c.Flags().Var(&labelValue{l: &label}, "label", "Label: unmod or mod")
}

// ionTarget is one label of one charge state of a project peptide.
type ionTarget struct {
	Peptide  *project.Peptide
	Charge   int
	MZ       float64
	Window   core.Range
	Envelope core.Envelope
}

func predictResidues(p *project.Project, residues []digest.Residue, mods *core.ModDatabase, ms1 *core.Range) (*predict.Prediction, error) {
	mod, err := differentialMod(p, mods)
	if err != nil {
		return nil, err
	}
	return predict.Predict(residues, mods, mod, predict.Params{
		Charges:   p.Digestion.Charge,
		MS1:       ms1,
		Tolerance: p.Tolerance,
		Envelope:  cfg.Isotopes,
	})
}

// peptideIon predicts the ion of a project peptide. z 0 selects the
// peptide's assigned charge.
func peptideIon(p *project.Project, ref string, mods *core.ModDatabase, l project.Label, z int) (ionTarget, error) {
	id, err := core.ParseSpan(ref)
	if err != nil {
		return ionTarget{}, err
	}
	pep, err := p.Peptide(id)
	if err != nil {
		return ionTarget{}, err
	}
	if z == 0 {
		z = pep.Charge
	}
	if z == 0 {
		return ionTarget{}, fmt.Errorf("peptide %s has no assigned charge, use --charge", id)
	}

	residues, err := digest.ParseSequence(pep.Sequence, mods)
	if err != nil {
		return ionTarget{}, err
	}
	pred, err := predictResidues(p, residues, mods, nil)
	if err != nil {
		return ionTarget{}, err
	}
	ion, ok := pred.Ion(z)
	if !ok {
		return ionTarget{}, fmt.Errorf("charge %d is outside the project charge range %s", z, p.Digestion.Charge)
	}

	t := ionTarget{Peptide: pep, Charge: z, MZ: ion.MZ, Window: ion.Window, Envelope: pred.Envelope}
	if l == project.Modified {
		t.MZ, t.Window, t.Envelope = ion.ModMZ, ion.ModWindow, pred.ModEnvelope
	}
	return t, nil
}

// loadOptionalProject returns nil when no project was given.
func loadOptionalProject() (*project.Project, error) {
	if projectFile == "" {
		return nil, nil
	}
	return loadProject()
}

// openData opens a data file by path, or by project reference when p is set.
func openData(p *project.Project, ref string) (*core.Run, error) {
	path := ref
	if p != nil {
		f, err := p.FindFile(ref)
		if err != nil {
			return nil, err
		}
		path = f.Path
	}
	run, err := reader.Open(path)
	if err != nil {
		return nil, err
	}
	logger.Debug("data file loaded", "path", path, "scans", len(run.Scans), "rt", run.TimeRange().String())
	return run, nil
}

func runPredict(cmd *cobra.Command, args []string) error {
	mods, err := modDatabase()
	if err != nil {
		return err
	}

	var p *project.Project
	var residues []digest.Residue
	switch {
	case peptideRef != "":
		if p, err = loadProject(); err != nil {
			return err
		}
		id, err := core.ParseSpan(peptideRef)
		if err != nil {
			return err
		}
		pep, err := p.Peptide(id)
		if err != nil {
			return err
		}
		if residues, err = digest.ParseSequence(pep.Sequence, mods); err != nil {
			return err
		}
	case len(args) == 1:
		p = project.New("", args[0], project.Digestion{Charge: predCharges, DiffMod: diffMod})
		p.Tolerance = cfg.Tolerance
		if toleranceFlag != "" {
			if p.Tolerance, err = predict.ParseTolerance(toleranceFlag); err != nil {
				return err
			}
		}
		if residues, err = digest.ParseSequence(args[0], mods); err != nil {
			return err
		}
		var fixed []core.Modification
		for _, name := range fixedMods {
			mod, ok := mods.Lookup(name)
			if !ok {
				return fmt.Errorf("unknown fixed modification '%s'", name)
			}
			fixed = append(fixed, *mod)
		}
		residues = digest.ApplyFixed(residues, fixed)
	default:
		return errors.New("give a sequence or --peptide with --project")
	}
	if cmd.Flags().Changed("charge") {
		p.Digestion.Charge = predCharges
	}

	var ms1 *core.Range
	if cmd.Flags().Changed("ms1") {
		ms1 = &ms1Range
	}
	pred, err := predictResidues(p, residues, mods, ms1)
	if err != nil {
		return err
	}

	fmt.Print(pred.Summary())
	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "Isotope\tMass\tAbundance\tMod mass\tMod abundance")
	unmod, mod := pred.Envelope.Relative(), pred.ModEnvelope.Relative()
	for i := 0; i < len(unmod) || i < len(mod); i++ {
		row := fmt.Sprintf("M+%d", i)
		row += envelopeCells(unmod, i) + envelopeCells(mod, i)
		fmt.Fprintln(w, row)
	}
	w.Flush()
	if len(pred.Ions) == 0 {
		fmt.Println("\nNo charge state falls inside the MS1 range")
	}
	return nil
}

func envelopeCells(env core.Envelope, i int) string {
	if i >= len(env) {
		return "\t\t"
	}
	return fmt.Sprintf("\t%.4f\t%.3f", env[i].Mass, env[i].Abundance)
}

// resolveWindow returns the --mz window or the peptide ion window.
func resolveWindow(p *project.Project, mods *core.ModDatabase, display bool) (core.Range, *ionTarget, error) {
	var target *ionTarget
	if peptideRef != "" {
		if p == nil {
			return core.Range{}, nil, errors.New("--peptide needs --project")
		}
		t, err := peptideIon(p, peptideRef, mods, label, charge)
		if err != nil {
			return core.Range{}, nil, err
		}
		target = &t
	}
	switch {
	case mzFlag.set:
		return mzRange, target, nil
	case target != nil && display:
		return integrate.DisplayWindow(target.MZ, target.Charge), target, nil
	case target != nil:
		return target.Window, target, nil
	}
	return core.Range{}, nil, errors.New("give --mz or --peptide")
}

func runXIC(cmd *cobra.Command, args []string) error {
	p, err := loadOptionalProject()
	if err != nil {
		return err
	}
	mods, err := modDatabase()
	if err != nil {
		return err
	}
	window, _, err := resolveWindow(p, mods, false)
	if err != nil {
		return err
	}
	run, err := openData(p, args[0])
	if err != nil {
		return err
	}

	c, err := integrate.NewIntegrator(run, cfg.Integration.MSLevel).Chromatogram(window)
	if err != nil {
		return err
	}
	if rtFlag.set {
		c = c.Slice(rtRange)
	}

	fmt.Printf("# m/z %s, %d points\n", window, c.Len())
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "rt\tintensity")
	for i := range c.Times {
		fmt.Fprintf(w, "%.4f\t%.6g\n", c.Times[i], c.Intensities[i])
	}
	w.Flush()
	if rt, intensity, ok := c.Apex(); ok {
		fmt.Printf("# apex at %.4f min, intensity %.6g, total %.6g\n", rt, intensity, c.Total())
	}
	return nil
}

func runCombine(cmd *cobra.Command, args []string) error {
	p, err := loadOptionalProject()
	if err != nil {
		return err
	}
	mods, err := modDatabase()
	if err != nil {
		return err
	}
	window, target, err := resolveWindow(p, mods, true)
	if err != nil {
		return err
	}
	run, err := openData(p, args[0])
	if err != nil {
		return err
	}

	spec, err := integrate.NewIntegrator(run, cfg.Integration.MSLevel).Combine(rtRange, window)
	if err != nil {
		return err
	}
	fmt.Printf("Summed %d scans over rt %s, m/z %s\n", spec.ScanCount, rtRange, window)

	if peaksOut != "" {
		if err := writePeakList(peaksOut, args[0], spec); err != nil {
			return err
		}
		fmt.Printf("Output: %s\n", peaksOut)
	}

	pick := filter.Config{IntensityCutoff: cutoffPercent, TopN: topN}
	if pickFlag.set {
		pick.Window = &pickRange
	}
	peaks := integrate.PickPeaks(spec, pick)
	if target == nil {
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "m/z\tintensity")
		for _, pk := range peaks {
			fmt.Fprintf(w, "%.4f\t%.6g\n", pk.MZ, pk.Intensity)
		}
		return w.Flush()
	}

	tol := cfg.Tolerance
	if p != nil {
		tol = p.Tolerance
	}
	matches := integrate.MatchEnvelope(peaks, target.Envelope, target.Charge, tol)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "Isotope\tPredicted\tRel.\tObserved\tIntensity\tppm\tmmu")
	for _, m := range matches {
		if !m.Found {
			fmt.Fprintf(w, "%s\t%.4f\t%.3f\t-\t-\t-\t-\n", m.Label, m.Predicted, m.Abundance)
			continue
		}
		fmt.Fprintf(w, "%s\t%.4f\t%.3f\t%.4f\t%.6g\t%.1f\t%.1f\n",
			m.Label, m.Predicted, m.Abundance, m.Observed.MZ, m.Observed.Intensity, m.ErrorPPM, m.ErrorMMU)
	}
	w.Flush()
	fmt.Printf("Envelope score: %.3f\n", integrate.Score(matches))
	return nil
}

func writePeakList(path, source string, spec core.Spectrum) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create peak list: %w", err)
	}
	defer file.Close()

	// Grid points outside every scan's data are zero.
	filter.RemoveZeroIntensityPeaks(&spec)
	pw := peaklist.NewWriter(file)
	if err := pw.WriteSpectrum(source, spec); err != nil {
		return err
	}
	if err := pw.Flush(); err != nil {
		return err
	}
	return file.Close()
}
