// Package sqlite writes footprinting results to an SQLite database
package sqlite

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ChrisMcGann/pepfoot/pkg/chrom"
	"github.com/ChrisMcGann/pepfoot/pkg/core"
	"github.com/ChrisMcGann/pepfoot/pkg/project"
)

const (
	// Date format for HeaderTable (ISO 8601)
	headerDateFormat = "2006-01-02"
	// schemaVersion of the result database
	schemaVersion = 1
)

// Writer handles writing a project and its analysis to SQLite database files
type Writer struct {
	db         *sql.DB
	outputPath string
	logger     *slog.Logger
	chromStmt  *sql.Stmt
	fileIDs    map[string]int64 // uuid -> FileId
	peptideIDs map[core.Span]int64
}

// NewWriter creates a new SQLite writer. A nil logger uses slog.Default().
func NewWriter(outputPath string, logger *slog.Logger) (*Writer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite3", outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	w := &Writer{
		db:         db,
		outputPath: outputPath,
		logger:     logger,
		fileIDs:    make(map[string]int64),
		peptideIDs: make(map[core.Span]int64),
	}

	if err := w.createTables(); err != nil {
		db.Close()
		return nil, err
	}

	w.chromStmt, err = db.Prepare(`
		INSERT INTO ChromatogramTable (PeptideId, FileId, Label, MzLow, MzHigh, blobTime, blobIntensity)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare chromatogram statement: %w", err)
	}

	return w, nil
}

// createTables creates the required database schema
func (w *Writer) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS HeaderTable (
		version INTEGER NOT NULL DEFAULT 0,
		CreationDate TEXT,
		LastModifiedDate TEXT,
		ProjectId TEXT,
		Name TEXT,
		Sequence TEXT,
		Enzyme TEXT,
		MissedCleavages INTEGER,
		FixedMods TEXT,
		DifferentialMod TEXT,
		IntegrationMethod TEXT
	);

	CREATE TABLE IF NOT EXISTS FileTable (
		FileId INTEGER PRIMARY KEY,
		UUID TEXT NOT NULL UNIQUE,
		Path TEXT,
		Status TEXT,
		Error TEXT,
		TreatmentGroup TEXT
	);

	CREATE TABLE IF NOT EXISTS PeptideTable (
		PeptideId INTEGER PRIMARY KEY,
		StartPos INTEGER NOT NULL,
		EndPos INTEGER NOT NULL,
		Sequence TEXT,
		Charge INTEGER,
		State TEXT,
		UnmodMzLow DOUBLE, UnmodMzHigh DOUBLE, UnmodRtLow DOUBLE, UnmodRtHigh DOUBLE,
		ModMzLow DOUBLE, ModMzHigh DOUBLE, ModRtLow DOUBLE, ModRtHigh DOUBLE,
		UnmodAbsent BOOL,
		ModAbsent BOOL
	);

	CREATE TABLE IF NOT EXISTS AreaTable (
		PeptideId INTEGER REFERENCES PeptideTable(PeptideId),
		FileId INTEGER REFERENCES FileTable(FileId),
		Label TEXT,
		Area DOUBLE,
		Note TEXT
	);

	CREATE TABLE IF NOT EXISTS FractionTable (
		PeptideId INTEGER REFERENCES PeptideTable(PeptideId),
		FileId INTEGER REFERENCES FileTable(FileId),
		Fraction DOUBLE
	);

	CREATE TABLE IF NOT EXISTS ComparisonTable (
		PeptideId INTEGER REFERENCES PeptideTable(PeptideId),
		N INTEGER, Mean DOUBLE, Std DOUBLE,
		ApoN INTEGER, ApoMean DOUBLE, ApoStd DOUBLE,
		HoloN INTEGER, HoloMean DOUBLE, HoloStd DOUBLE,
		TStatistic DOUBLE,
		PValue DOUBLE,
		Extent DOUBLE,
		ExtentStd DOUBLE,
		Significant BOOL
	);

	CREATE TABLE IF NOT EXISTS ChromatogramTable (
		PeptideId INTEGER REFERENCES PeptideTable(PeptideId),
		FileId INTEGER REFERENCES FileTable(FileId),
		Label TEXT,
		MzLow DOUBLE,
		MzHigh DOUBLE,
		blobTime BLOB,
		blobIntensity BLOB
	);
	`

	_, err := w.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	return nil
}

// WriteProject writes the header, files, peptides, areas, fractions and the
// per-peptide analysis in one transaction.
func (w *Writer) WriteProject(p *project.Project, results []project.PeptideResult) error {
	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := w.writeProject(tx, p, results); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	w.logger.Info("results written", "path", w.outputPath, "files", len(p.Files),
		"peptides", len(p.Peptides), "areas", len(p.Areas))
	return nil
}

func (w *Writer) writeProject(tx *sql.Tx, p *project.Project, results []project.PeptideResult) error {
	_, err := tx.Exec(`
		INSERT INTO HeaderTable (version, CreationDate, LastModifiedDate, ProjectId, Name, Sequence,
			Enzyme, MissedCleavages, FixedMods, DifferentialMod, IntegrationMethod)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, schemaVersion, p.CreatedAt.Format(headerDateFormat), time.Now().Format(headerDateFormat),
		p.ID.String(), p.Name, p.Sequence, p.Digestion.Enzyme, p.Digestion.MissedCleavages,
		strings.Join(p.Digestion.FixedMods, ";"), p.Digestion.DiffMod, p.Method)
	if err != nil {
		return fmt.Errorf("failed to insert header: %w", err)
	}

	groupOf := make(map[string]string)
	for _, g := range p.Groups {
		for _, id := range g.FileIDs {
			groupOf[id.String()] = g.Name
		}
	}
	for i, f := range p.Files {
		id := int64(i + 1)
		_, err := tx.Exec(`INSERT INTO FileTable (FileId, UUID, Path, Status, Error, TreatmentGroup) VALUES (?, ?, ?, ?, ?, ?)`,
			id, f.ID.String(), f.Path, string(f.Status), f.Error, nullString(groupOf[f.ID.String()]))
		if err != nil {
			return fmt.Errorf("failed to insert file %s: %w", f.Name(), err)
		}
		w.fileIDs[f.ID.String()] = id
	}

	for i, pep := range p.Peptides {
		id := int64(i + 1)
		args := []any{id, pep.ID.Start, pep.ID.End, pep.Sequence, nullInt(pep.Charge), string(pep.State)}
		for _, l := range project.Labels {
			args = append(args, rangeArgs(pep.MZ[l])...)
			args = append(args, rangeArgs(pep.RT[l])...)
		}
		args = append(args, pep.Absent[project.Unmodified], pep.Absent[project.Modified])
		_, err := tx.Exec(`
			INSERT INTO PeptideTable (PeptideId, StartPos, EndPos, Sequence, Charge, State,
				UnmodMzLow, UnmodMzHigh, UnmodRtLow, UnmodRtHigh,
				ModMzLow, ModMzHigh, ModRtLow, ModRtHigh, UnmodAbsent, ModAbsent)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, args...)
		if err != nil {
			return fmt.Errorf("failed to insert peptide %s: %w", pep.ID, err)
		}
		w.peptideIDs[pep.ID] = id
	}

	areaStmt, err := tx.Prepare(`INSERT INTO AreaTable (PeptideId, FileId, Label, Area, Note) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare area statement: %w", err)
	}
	defer areaStmt.Close()
	for _, r := range p.Areas {
		_, err := areaStmt.Exec(w.peptideIDs[r.PeptideID], w.fileIDs[r.FileID.String()], r.Label.String(),
			nullFloat(r.Area), nullString(r.Note))
		if err != nil {
			return fmt.Errorf("failed to insert area: %w", err)
		}
	}

	fracStmt, err := tx.Prepare(`INSERT INTO FractionTable (PeptideId, FileId, Fraction) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare fraction statement: %w", err)
	}
	defer fracStmt.Close()
	for _, res := range results {
		for j, f := range p.Files {
			if j >= len(res.Fractions) {
				break
			}
			_, err := fracStmt.Exec(w.peptideIDs[res.Peptide.ID], w.fileIDs[f.ID.String()], nullFloat(res.Fractions[j]))
			if err != nil {
				return fmt.Errorf("failed to insert fraction: %w", err)
			}
		}

		args := []any{w.peptideIDs[res.Peptide.ID], res.Overall.N, res.Overall.Mean, res.Overall.Std}
		if c := res.Comparison; c != nil {
			args = append(args, c.Apo.N, c.Apo.Mean, c.Apo.Std, c.Holo.N, c.Holo.Mean, c.Holo.Std,
				nullFloat(c.T), nullFloat(c.P), nullFloat(c.Extent), nullFloat(c.ExtentStd), c.Significant)
		} else {
			args = append(args, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil)
		}
		_, err := tx.Exec(`
			INSERT INTO ComparisonTable (PeptideId, N, Mean, Std, ApoN, ApoMean, ApoStd,
				HoloN, HoloMean, HoloStd, TStatistic, PValue, Extent, ExtentStd, Significant)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, args...)
		if err != nil {
			return fmt.Errorf("failed to insert comparison: %w", err)
		}
	}
	return nil
}

// WriteChromatogram stores the extracted ion chromatogram of a peptide label
// in one file. WriteProject must have been called first.
func (w *Writer) WriteChromatogram(id core.Span, file string, l project.Label, c chrom.Chromatogram) error {
	pepID, ok := w.peptideIDs[id]
	if !ok {
		return fmt.Errorf("chromatogram for unknown peptide %s", id)
	}
	fileID, ok := w.fileIDs[file]
	if !ok {
		return fmt.Errorf("chromatogram for unknown file %s", file)
	}
	_, err := w.chromStmt.Exec(pepID, fileID, l.String(), c.Window.Min, c.Window.Max,
		encodeFloat64(c.Times), encodeFloat64(c.Intensities))
	if err != nil {
		return fmt.Errorf("failed to insert chromatogram: %w", err)
	}
	return nil
}

// encodeFloat64 encodes values as a little-endian float64 blob
func encodeFloat64(values []float64) []byte {
	buf := make([]byte, len(values)*8)
	for i, v := range values {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

// DecodeFloat64 decodes a blob written by the writer.
func DecodeFloat64(blob []byte) []float64 {
	out := make([]float64, len(blob)/8)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(blob[i*8:]))
	}
	return out
}

func rangeArgs(r *core.Range) []any {
	if r == nil {
		return []any{nil, nil}
	}
	return []any{r.Min, r.Max}
}

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullInt(v int) any {
	if v == 0 {
		return nil
	}
	return v
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Close closes prepared statements and the database connection
func (w *Writer) Close() error {
	if w.chromStmt != nil {
		w.chromStmt.Close()
	}
	if err := w.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}
