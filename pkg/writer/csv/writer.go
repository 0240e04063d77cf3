// Package csv exports the per-peptide results of a project as a CSV table
// preceded by a short block of descriptive lines.
package csv

import (
	encsv "encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/ChrisMcGann/pepfoot/pkg/core"
	"github.com/ChrisMcGann/pepfoot/pkg/project"
)

// Generator is written on the first line.
var Generator = "pepfoot"

// dateLayout matches the creation date format of legacy projects.
const dateLayout = "02 Jan 2006  03:04PM"

// Write exports results, as returned by project.Analyze, to w. Missing
// values are written as empty cells.
func Write(w io.Writer, p *project.Project, results []project.PeptideResult, now time.Time) error {
	cw := encsv.NewWriter(w)
	cw.Write([]string{"Generated by " + Generator})
	cw.Write([]string{p.Name})
	cw.Write([]string{now.Format(dateLayout)})

	files := make([]string, len(p.Files))
	fileNum := make(map[string]int, len(p.Files))
	for i, f := range p.Files {
		files[i] = fmt.Sprintf("File %d: %s", i, f.Name())
		fileNum[f.ID.String()] = i
	}
	cw.Write(files)

	apo, hasApo := p.Group(project.GroupApo)
	holo, hasHolo := p.Group(project.GroupHolo)
	grouped := hasApo && hasHolo
	if grouped {
		cw.Write([]string{groupLine(apo, fileNum), groupLine(holo, fileNum)})
	} else {
		cw.Write([]string{"No treatment groups"})
	}
	cw.Write([]string{p.Digestion.DiffMod})
	cw.Write([]string{""})

	header := []string{"Peptide ID", "Sequence", "Charge", "m/z", "Mod m/z", "rt", "Mod rt"}
	if grouped {
		header = append(header, "Mean F.mod 1", "S.dev. F.mod 1", "Mean F.mod 2", "S.dev. F.mod 2",
			"p value", "Extent Mean", "Extent S.dev", "Significant")
	} else {
		header = append(header, "Mean F.mod", "S.dev F.mod")
	}
	for i := range p.Files {
		header = append(header, fmt.Sprintf("File %d PA", i), fmt.Sprintf("File %d Mod PA", i), fmt.Sprintf("File %d F.mod", i))
	}
	cw.Write(header)

	for _, res := range results {
		pep := res.Peptide
		row := []string{
			fmt.Sprintf("%d - %d", pep.ID.Start, pep.ID.End),
			pep.Sequence,
			strconv.Itoa(pep.Charge),
			formatRange(pep.MZ[project.Unmodified], 4),
			formatRange(pep.MZ[project.Modified], 4),
			formatRange(pep.RT[project.Unmodified], 2),
			formatRange(pep.RT[project.Modified], 2),
		}
		switch c := res.Comparison; {
		case grouped && c != nil:
			row = append(row,
				formatFixed(c.Apo.Mean, c.Apo.N, 4), formatFixed(c.Apo.Std, c.Apo.N, 4),
				formatFixed(c.Holo.Mean, c.Holo.N, 4), formatFixed(c.Holo.Std, c.Holo.N, 4),
				formatG(c.P), formatOptional(c.Extent, 3), formatOptional(c.ExtentStd, 3),
				strconv.FormatBool(c.Significant))
		case grouped:
			row = append(row, "", "", "", "", "", "", "", "")
		default:
			row = append(row, formatFixed(res.Overall.Mean, res.Overall.N, 4), formatFixed(res.Overall.Std, res.Overall.N, 4))
		}
		for j, f := range p.Files {
			row = append(row,
				formatArea(p.AreaValue(pep.ID, f.ID, project.Unmodified)),
				formatArea(p.AreaValue(pep.ID, f.ID, project.Modified)))
			if j < len(res.Fractions) && res.Fractions[j] != nil {
				row = append(row, strconv.FormatFloat(*res.Fractions[j], 'f', 4, 64))
			} else {
				row = append(row, "")
			}
		}
		cw.Write(row)
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

func groupLine(g project.TreatmentGroup, fileNum map[string]int) string {
	nums := make([]string, len(g.FileIDs))
	for i, id := range g.FileIDs {
		nums[i] = strconv.Itoa(fileNum[id.String()])
	}
	return fmt.Sprintf("%s: [%s]", g.Name, strings.Join(nums, " "))
}

func formatRange(r *core.Range, prec int) string {
	if r == nil {
		return ""
	}
	return strconv.FormatFloat(r.Min, 'f', prec, 64) + " - " + strconv.FormatFloat(r.Max, 'f', prec, 64)
}

func formatFixed(v float64, n, prec int) string {
	if n == 0 {
		return ""
	}
	return strconv.FormatFloat(v, 'f', prec, 64)
}

func formatOptional(v *float64, prec int) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', prec, 64)
}

func formatG(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'g', 2, 64)
}

func formatArea(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}
