package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/pepfoot/pkg/batch"
	"github.com/ChrisMcGann/pepfoot/pkg/core"
	"github.com/ChrisMcGann/pepfoot/pkg/integrate"
	"github.com/ChrisMcGann/pepfoot/pkg/project"
	"github.com/ChrisMcGann/pepfoot/pkg/reader"
)

var (
	// Flags for integrate
	fileRef    string
	markAbsent bool
	clearPep   bool

	// Flags for batch
	force bool
)

var integrateCmd = &cobra.Command{
	Use:   "integrate",
	Short: "Integrate one peptide label on one data file",
	Long: `Integrate the chromatogram of a peptide label over a retention time range and
store the ranges and the area in the project. The ranges are then frozen for
batch processing. The m/z window defaults to the predicted ion window.

Examples:
  pepfoot integrate -p lyz.json --file 1 --peptide 34-45 --label unmod --charge 2 --rt 10.2,10.9
  pepfoot integrate -p lyz.json --file 1 --peptide 34-45 --label mod --absent
  pepfoot integrate -p lyz.json --peptide 34-45 --clear`,
	RunE: runIntegrate,
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Apply the frozen integration ranges to every data file",
	Long: `Integrate every assigned peptide on every data file of the project. Files
already processed are skipped unless --force is given, so an interrupted run
(Ctrl-C) can be resumed.`,
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(integrateCmd)
	rootCmd.AddCommand(batchCmd)

	// Integrate command flags
	integrateCmd.Flags().StringVar(&fileRef, "file", "", "Data file position, name or id")
	addIonFlags(integrateCmd)
	integrateCmd.Flags().Var(rtFlag, "rt", "Retention time range in minutes")
	integrateCmd.Flags().Var(mzFlag, "mz", "m/z window (default: predicted ion window)")
	integrateCmd.Flags().BoolVar(&markAbsent, "absent", false, "Mark the label as not observed")
	integrateCmd.Flags().BoolVar(&clearPep, "clear", false, "Remove the peptide assignment and its areas")
	integrateCmd.MarkFlagRequired("peptide")
	integrateCmd.MarkFlagsMutuallyExclusive("absent", "clear", "rt")

	// Batch command flags
	batchCmd.Flags().BoolVar(&force, "force", false, "Reprocess files already done")
}

func runIntegrate(cmd *cobra.Command, args []string) error {
	p, err := loadProject()
	if err != nil {
		return err
	}
	id, err := core.ParseSpan(peptideRef)
	if err != nil {
		return err
	}

	if clearPep {
		if err := p.Clear(id); err != nil {
			return err
		}
		fmt.Printf("Cleared peptide %s\n", id)
		return saveProject(p)
	}

	if fileRef == "" {
		return errors.New("no data file given, use --file")
	}
	f, err := p.FindFile(fileRef)
	if err != nil {
		return err
	}

	if markAbsent {
		if err := p.MarkAbsent(id, f.ID, label); err != nil {
			return err
		}
		fmt.Printf("Peptide %s %s marked absent\n", id, label)
		return finishIntegration(p, id, f)
	}

	if !rtFlag.set {
		return errors.New("no retention time range given, use --rt")
	}
	mods, err := modDatabase()
	if err != nil {
		return err
	}
	target, err := peptideIon(p, peptideRef, mods, label, charge)
	if err != nil {
		return err
	}
	window := target.Window
	if mzFlag.set {
		window = mzRange
	}
	method, err := integrate.ParseMethod(integrationMethod(p))
	if err != nil {
		return err
	}

	run, err := reader.Open(f.Path)
	if err != nil {
		return err
	}
	area, err := integrate.NewIntegrator(run, cfg.Integration.MSLevel).Area(rtRange, window, method)
	if err != nil {
		return err
	}
	err = p.Integrate(project.Integration{
		Peptide: id,
		File:    f.ID,
		Label:   label,
		Charge:  target.Charge,
		RT:      rtRange,
		MZ:      window,
		Area:    area,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Peptide %s %s z=%d: rt %s, m/z %s, area %.6g (%s)\n",
		id, label, target.Charge, rtRange, window, area, method)
	return finishIntegration(p, id, f)
}

func finishIntegration(p *project.Project, id core.Span, f *project.DataFile) error {
	if resolved, err := p.Resolved(id); err == nil && resolved {
		if frac := p.Fraction(id, f.ID); frac != nil {
			fmt.Printf("Resolved; fractional modification in %s: %.4f\n", f.Name(), *frac)
		} else {
			fmt.Println("Resolved")
		}
	} else {
		fmt.Println("Other label still unassigned")
	}
	return saveProject(p)
}

func runBatch(cmd *cobra.Command, args []string) error {
	p, err := loadProject()
	if err != nil {
		return err
	}
	method, err := integrate.ParseMethod(integrationMethod(p))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := &batch.Runner{
		Open:    batch.OpenerFunc(reader.Open),
		Method:  method,
		MSLevel: cfg.Integration.MSLevel,
		Logger:  logger,
	}
	report, runErr := runner.Run(ctx, p, batch.Options{Force: force})

	// Progress is kept on interruption.
	if err := saveProject(p); err != nil {
		return err
	}
	fmt.Println(report)
	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			return fmt.Errorf("batch interrupted, rerun to resume: %w", runErr)
		}
		return runErr
	}
	for _, f := range p.Files {
		if f.Status == project.FileFailed {
			fmt.Printf("Failed: %s: %s\n", f.Name(), f.Error)
		}
	}
	return nil
}
