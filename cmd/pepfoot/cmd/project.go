package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/pepfoot/pkg/core"
	"github.com/ChrisMcGann/pepfoot/pkg/digest"
	"github.com/ChrisMcGann/pepfoot/pkg/predict"
	"github.com/ChrisMcGann/pepfoot/pkg/project"
)

var (
	// Flags for new and digest
	sequence        string
	fastaFile       string
	dataFiles       []string
	enzymeName      string
	missedCleavages int
	lengthRange     core.IntRange
	chargeRange     core.IntRange
	fixedMods       []string
	diffMod         string
	toleranceFlag   string
	showAll         bool

	// Flags for group
	apoFiles  []string
	holoFiles []string

	// Flags for import-legacy
	importOut string

	// Flags for config
	listTables bool
)

var newCmd = &cobra.Command{
	Use:   "new NAME",
	Short: "Create a project and digest its sequence",
	Long: `Create a project document from a protein sequence and a list of data files.
The sequence is digested immediately; peptides that cannot carry the
differential modification are dropped.

Examples:
  pepfoot new lysozyme --fasta lyz.fasta --data apo1.mzML,apo2.mzML,holo1.mzML -p lyz.json
  pepfoot new test --sequence "MKWVTFISLLcamCLLFSSAYSR" --enzyme Trypsin --missed 1 --length 5,30 -p test.json`,
	Args: cobra.ExactArgs(1),
	RunE: runNew,
}

var digestCmd = &cobra.Command{
	Use:   "digest",
	Short: "Re-digest the project sequence and list peptides",
	Long: `Digest the project sequence again, optionally with new parameters. Peptides
whose span and sequence are unchanged keep their integration parameters.`,
	RunE: runDigest,
}

var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "List, add or remove data files",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadProject()
		if err != nil {
			return err
		}
		printFiles(p)
		return nil
	},
}

var filesAddCmd = &cobra.Command{
	Use:   "add PATH...",
	Short: "Append data files to the project",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadProject()
		if err != nil {
			return err
		}
		for _, path := range args {
			f, err := p.AddFile(path)
			if err != nil {
				return err
			}
			fmt.Printf("Added %s (%s)\n", f.Name(), f.ID)
		}
		return saveProject(p)
	},
}

var filesRemoveCmd = &cobra.Command{
	Use:   "remove FILE",
	Short: "Remove a data file with its areas and group membership",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadProject()
		if err != nil {
			return err
		}
		f, err := p.FindFile(args[0])
		if err != nil {
			return err
		}
		name := f.Name()
		if err := p.RemoveFile(f.ID); err != nil {
			return err
		}
		fmt.Printf("Removed %s\n", name)
		return saveProject(p)
	},
}

var groupCmd = &cobra.Command{
	Use:   "group",
	Short: "Assign data files to the apo and holo treatment groups",
	Long: `Assign data files to treatment groups. Files are given by position (1-based),
base name, path or id.

Example:
  pepfoot group -p lyz.json --apo 1,2,3 --holo 4,5,6`,
	RunE: runGroup,
}

var importLegacyCmd = &cobra.Command{
	Use:   "import-legacy FILE.pfoot",
	Short: "Convert a legacy .pfoot project to the current document format",
	Args:  cobra.ExactArgs(1),
	RunE:  runImportLegacy,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective settings as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		if listTables {
			return printTables()
		}
		data, err := cfg.Marshal()
		if err != nil {
			return err
		}
		os.Stdout.Write(data)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(newCmd)
	rootCmd.AddCommand(digestCmd)
	rootCmd.AddCommand(filesCmd)
	rootCmd.AddCommand(groupCmd)
	rootCmd.AddCommand(importLegacyCmd)
	rootCmd.AddCommand(configCmd)
	filesCmd.AddCommand(filesAddCmd)
	filesCmd.AddCommand(filesRemoveCmd)

	// New command flags
	newCmd.Flags().StringVar(&sequence, "sequence", "", "Protein sequence in modX notation")
	newCmd.Flags().StringVar(&fastaFile, "fasta", "", "FASTA file; the first record is used")
	newCmd.Flags().StringSliceVar(&dataFiles, "data", nil, "Comma-separated data files (mzML or peak list)")
	newCmd.Flags().StringVar(&toleranceFlag, "tolerance", "", "m/z tolerance, e.g. 5mmu or 10ppm (default from settings)")
	newCmd.MarkFlagsMutuallyExclusive("sequence", "fasta")
	addDigestFlags(newCmd)

	// Digest command flags
	addDigestFlags(digestCmd)
	digestCmd.Flags().BoolVar(&showAll, "masses", false, "Print predicted m/z of every peptide")

	// Group command flags
	groupCmd.Flags().StringSliceVar(&apoFiles, "apo", nil, "Apo files")
	groupCmd.Flags().StringSliceVar(&holoFiles, "holo", nil, "Holo files")

	// Import command flags
	importLegacyCmd.Flags().StringVarP(&importOut, "out", "o", "", "Output project document (required)")
	importLegacyCmd.MarkFlagRequired("out")

	// Config command flags
	configCmd.Flags().BoolVar(&listTables, "list", false, "List the enzyme and modification tables")
}

func addDigestFlags(c *cobra.Command) {
	c.Flags().StringVar(&enzymeName, "enzyme", "Trypsin", "Enzyme name from the settings table")
	c.Flags().IntVar(&missedCleavages, "missed", 0, "Maximum missed cleavages")
	c.Flags().Var(newIntRangeValue(&lengthRange, core.IntRange{Min: 1, Max: 40}), "length", "Peptide length range, inclusive")
	c.Flags().Var(newIntRangeValue(&chargeRange, core.IntRange{Min: 1, Max: 4}), "charge", "Charge state range, inclusive")
	c.Flags().StringSliceVar(&fixedMods, "fixed-mod", nil, "Fixed modifications (name or modX label)")
	c.Flags().StringVar(&diffMod, "diff-mod", "Oxidation", "Differential modification (name or modX label)")
}

func runNew(cmd *cobra.Command, args []string) error {
	if projectFile == "" {
		return errors.New("no output document given, use --project")
	}
	if _, err := os.Stat(projectFile); err == nil {
		return fmt.Errorf("project %s already exists", projectFile)
	}

	seq := sequence
	if fastaFile != "" {
		file, err := os.Open(fastaFile)
		if err != nil {
			return fmt.Errorf("failed to open FASTA file: %w", err)
		}
		records, err := digest.ReadFASTA(file)
		file.Close()
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return fmt.Errorf("no records in %s", fastaFile)
		}
		if len(records) > 1 {
			logger.Warn("FASTA file has several records, using the first", "header", records[0].Header)
		}
		seq = records[0].Sequence
	}
	if strings.TrimSpace(seq) == "" {
		return errors.New("no sequence given, use --sequence or --fasta")
	}

	p := project.New(args[0], strings.Join(strings.Fields(seq), ""), digestionFromFlags())
	p.Tolerance = cfg.Tolerance
	if toleranceFlag != "" {
		tol, err := predict.ParseTolerance(toleranceFlag)
		if err != nil {
			return err
		}
		p.Tolerance = tol
	}
	p.Method = string(cfg.Integration.Method)
	for _, path := range dataFiles {
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		if _, err := p.AddFile(abs); err != nil {
			return err
		}
	}

	mods, err := modDatabase()
	if err != nil {
		return err
	}
	peps, err := digestProject(p, mods)
	if err != nil {
		return err
	}
	p.SetPeptides(peps)

	if err := saveProject(p); err != nil {
		return err
	}
	fmt.Printf("Created project %s (%s)\n", p.Name, projectFile)
	fmt.Printf("Sequence: %d residues, %d data files\n", residueCount(p.Sequence), len(p.Files))
	fmt.Printf("Peptides: %d, coverage %.1f%%\n", len(peps), digest.Coverage(peps, residueCount(p.Sequence)))
	return nil
}

func digestionFromFlags() project.Digestion {
	return project.Digestion{
		Enzyme:          enzymeName,
		MissedCleavages: missedCleavages,
		Length:          lengthRange,
		Charge:          chargeRange,
		FixedMods:       fixedMods,
		DiffMod:         diffMod,
	}
}

func runDigest(cmd *cobra.Command, args []string) error {
	p, err := loadProject()
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	changed := false
	d := &p.Digestion
	if flags.Changed("enzyme") {
		d.Enzyme, changed = enzymeName, true
	}
	if flags.Changed("missed") {
		d.MissedCleavages, changed = missedCleavages, true
	}
	if flags.Changed("length") {
		d.Length, changed = lengthRange, true
	}
	if flags.Changed("charge") {
		d.Charge, changed = chargeRange, true
	}
	if flags.Changed("fixed-mod") {
		d.FixedMods, changed = fixedMods, true
	}
	if flags.Changed("diff-mod") {
		d.DiffMod, changed = diffMod, true
	}

	mods, err := modDatabase()
	if err != nil {
		return err
	}
	peps, err := digestProject(p, mods)
	if err != nil {
		return err
	}
	if changed {
		p.SetPeptides(peps)
		if err := saveProject(p); err != nil {
			return err
		}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	header := "ID\tSequence\tMissed\tState"
	if showAll {
		header += "\tz\tm/z\tMod m/z"
	}
	fmt.Fprintln(w, header)
	for _, d := range peps {
		state := project.Unresolved
		if pep, err := p.Peptide(d.Span); err == nil {
			state = pep.State
		}
		line := fmt.Sprintf("%s\t%s\t%d\t%s", d.Span, d.Sequence(), d.MissedCleavages, state)
		if !showAll {
			fmt.Fprintln(w, line)
			continue
		}
		pred, err := predictResidues(p, d.Residues, mods, nil)
		if err != nil {
			return fmt.Errorf("peptide %s: %w", d.Span, err)
		}
		if len(pred.Ions) == 0 {
			fmt.Fprintln(w, line+"\t-\t-\t-")
		}
		for _, ion := range pred.Ions {
			fmt.Fprintf(w, "%s\t%d\t%.4f\t%.4f\n", line, ion.Charge, ion.MZ, ion.ModMZ)
		}
	}
	w.Flush()
	fmt.Printf("\n%d peptides, coverage %.1f%%\n", len(peps), digest.Coverage(peps, residueCount(p.Sequence)))
	return nil
}

// digestProject digests the project sequence with its stored parameters.
func digestProject(p *project.Project, mods *core.ModDatabase) ([]digest.Peptide, error) {
	residues, err := digest.ParseSequence(p.Sequence, mods)
	if err != nil {
		return nil, err
	}
	var fixed []core.Modification
	for _, name := range p.Digestion.FixedMods {
		mod, ok := mods.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("unknown fixed modification '%s'", name)
		}
		fixed = append(fixed, *mod)
	}
	residues = digest.ApplyFixed(residues, fixed)

	enzyme, err := cfg.Enzyme(p.Digestion.Enzyme)
	if err != nil {
		return nil, err
	}
	peps, err := digest.Digest(residues, digest.Params{
		Enzyme:          enzyme,
		MissedCleavages: p.Digestion.MissedCleavages,
		MinLength:       p.Digestion.Length.Min,
		MaxLength:       p.Digestion.Length.Max,
	})
	if err != nil {
		return nil, err
	}
	mod, err := differentialMod(p, mods)
	if err != nil {
		return nil, err
	}
	return digest.FilterModifiable(peps, mod), nil
}

func differentialMod(p *project.Project, mods *core.ModDatabase) (*core.Modification, error) {
	if p.Digestion.DiffMod == "" {
		return nil, nil
	}
	mod, ok := mods.Lookup(p.Digestion.DiffMod)
	if !ok {
		return nil, fmt.Errorf("unknown differential modification '%s'", p.Digestion.DiffMod)
	}
	return mod, nil
}

func residueCount(seq string) int {
	residues, err := digest.ParseSequence(seq, nil)
	if err != nil {
		return 0
	}
	return len(residues)
}

func printFiles(p *project.Project) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\tFile\tStatus\tGroup\tError")
	for i, f := range p.Files {
		group := "-"
		for _, g := range p.Groups {
			for _, id := range g.FileIDs {
				if id == f.ID {
					group = g.Name
				}
			}
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", i+1, f.Name(), f.Status, group, f.Error)
	}
	w.Flush()
}

func runGroup(cmd *cobra.Command, args []string) error {
	p, err := loadProject()
	if err != nil {
		return err
	}
	apo, err := resolveFiles(p, apoFiles)
	if err != nil {
		return err
	}
	holo, err := resolveFiles(p, holoFiles)
	if err != nil {
		return err
	}
	if err := p.SetGroups(apo, holo); err != nil {
		return err
	}
	if err := saveProject(p); err != nil {
		return err
	}
	printFiles(p)
	return nil
}

func resolveFiles(p *project.Project, refs []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(refs))
	for _, ref := range refs {
		f, err := p.FindFile(ref)
		if err != nil {
			return nil, err
		}
		ids = append(ids, f.ID)
	}
	return ids, nil
}

func runImportLegacy(cmd *cobra.Command, args []string) error {
	file, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open legacy project: %w", err)
	}
	defer file.Close()

	mods, err := modDatabase()
	if err != nil {
		return err
	}
	p, err := project.ImportLegacy(file, filepath.Dir(args[0]), mods)
	if err != nil {
		return fmt.Errorf("import %s: %w", args[0], err)
	}
	if p.Method == "" {
		p.Method = string(cfg.Integration.Method)
	}
	if err := p.Save(importOut); err != nil {
		return err
	}

	fmt.Printf("Imported %s\n", p.Name)
	fmt.Printf("Files: %d, peptides: %d, assigned: %d\n", len(p.Files), len(p.Peptides), len(p.Assigned()))
	fmt.Printf("Output: %s\n", importOut)
	return nil
}

func printTables() error {
	mods, err := modDatabase()
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "Enzyme\tRule")
	for _, name := range digest.EnzymeNames(cfg.Enzymes) {
		fmt.Fprintf(w, "%s\t%s\n", name, cfg.Enzymes[name])
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Modification\tLabel\tGain\tLoss\tMass\tResidues")
	for _, mod := range mods.Modifications() {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.4f\t%s\n", mod.Name, mod.ID, mod.Gain, mod.Loss, mod.Mass, mod.Residues)
		if mm := mod.MassMismatch(); mm > 0.01 {
			logger.Warn("declared mass differs from formula", "modification", mod.Name, "difference", mm)
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\n%d enzymes, %d modifications\n", len(cfg.Enzymes), mods.Len())
	return nil
}
