// Package batch applies frozen peptide integration parameters to every data
// file of a project.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ChrisMcGann/pepfoot/pkg/chrom"
	"github.com/ChrisMcGann/pepfoot/pkg/core"
	"github.com/ChrisMcGann/pepfoot/pkg/integrate"
	"github.com/ChrisMcGann/pepfoot/pkg/project"
)

// Opener loads the scans of a raw data file.
type Opener interface {
	Open(path string) (*core.Run, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(path string) (*core.Run, error)

func (f OpenerFunc) Open(path string) (*core.Run, error) {
	return f(path)
}

// Runner integrates all assigned peptides file by file.
type Runner struct {
	Open    Opener
	Method  integrate.Method
	MSLevel int // 0 means 1
	Logger  *slog.Logger
}

// Options controls a run.
type Options struct {
	// Force reprocesses files already marked done.
	Force bool
}

// Report summarizes a run.
type Report struct {
	Files    int
	Done     int
	Failed   int
	Skipped  int
	Areas    int // records with a value
	Missing  int // records without a value
	Duration time.Duration
}

func (r Report) String() string {
	return fmt.Sprintf("%d files: %d done, %d failed, %d skipped; %d areas, %d missing (%s)",
		r.Files, r.Done, r.Failed, r.Skipped, r.Areas, r.Missing, r.Duration.Round(time.Millisecond))
}

// Run processes the data files of proj in order. A file that cannot be opened
// is marked failed and its records are set missing; the run continues. On
// cancellation the files completed so far keep status done and Run returns
// the context error.
func (r *Runner) Run(ctx context.Context, proj *project.Project, opts Options) (Report, error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if r.Open == nil {
		return Report{}, errors.New("batch: no opener configured")
	}
	method, err := integrate.ParseMethod(string(r.Method))
	if err != nil {
		return Report{}, err
	}
	level := r.MSLevel
	if level == 0 {
		level = 1
	}

	start := time.Now()
	report := Report{Files: len(proj.Files)}
	peptides := proj.Assigned()
	logger.Info("batch started", "files", len(proj.Files), "peptides", len(peptides), "method", method)

	for i := range proj.Files {
		if err := ctx.Err(); err != nil {
			report.Duration = time.Since(start)
			return report, err
		}
		file := &proj.Files[i]
		if file.Status == project.FileDone && !opts.Force {
			report.Skipped++
			logger.Debug("file already processed", "file", file.Name())
			continue
		}

		run, err := r.Open.Open(file.Path)
		if err != nil {
			file.Status = project.FileFailed
			file.Error = err.Error()
			report.Failed++
			logger.Warn("open failed", "file", file.Name(), "error", err)
			for _, pep := range peptides {
				for _, l := range project.Labels {
					proj.SetArea(pep.ID, file.ID, l, nil, "open failed")
					report.Missing++
				}
			}
			continue
		}

		in := integrate.NewIntegrator(run, level)
		for _, pep := range peptides {
			if err := ctx.Err(); err != nil {
				report.Duration = time.Since(start)
				return report, err
			}
			for _, l := range project.Labels {
				area, note := integrateLabel(in, pep, l, method)
				proj.SetArea(pep.ID, file.ID, l, area, note)
				if area == nil {
					report.Missing++
				} else {
					report.Areas++
				}
			}
		}

		file.Status = project.FileDone
		file.Error = ""
		report.Done++
		logger.Info("file processed", "file", file.Name(), "index", i+1, "of", len(proj.Files))
	}

	for _, pep := range peptides {
		p, err := proj.Peptide(pep.ID)
		if err != nil || !processed(proj, pep.ID) {
			continue
		}
		p.State = project.Batch
	}

	report.Duration = time.Since(start)
	logger.Info("batch finished", "done", report.Done, "failed", report.Failed, "skipped", report.Skipped, "duration", report.Duration)
	return report, nil
}

// processed reports whether every file that did not fail holds both area
// records of the peptide.
func processed(proj *project.Project, id core.Span) bool {
	for _, f := range proj.Files {
		if f.Status == project.FileFailed {
			continue
		}
		for _, l := range project.Labels {
			if _, ok := proj.Area(id, f.ID, l); !ok {
				return false
			}
		}
	}
	return true
}

func integrateLabel(in *integrate.Integrator, pep project.Peptide, l project.Label, m integrate.Method) (*float64, string) {
	if pep.Absent[l] {
		zero := 0.0
		return &zero, "absent"
	}
	if !pep.Integrated(l) {
		return nil, "no integration ranges"
	}
	area, err := in.Area(*pep.RT[l], *pep.MZ[l], m)
	switch {
	case errors.Is(err, chrom.ErrNoScans):
		return nil, "no scans in rt range"
	case err != nil:
		return nil, err.Error()
	}
	return &area, ""
}
