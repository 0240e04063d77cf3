package peaklist

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/ChrisMcGann/pepfoot/pkg/core"
)

// Writer writes scans in peak list format.
type Writer struct {
	w     *bufio.Writer
	count int
}

// NewWriter creates a new peak list writer
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// WriteScan writes one scan block.
func (w *Writer) WriteScan(scan *core.Scan) error {
	if w.count > 0 {
		w.w.WriteString("\n")
	}
	id := scan.ID
	if id == "" {
		id = strconv.Itoa(scan.Index)
	}
	fmt.Fprintf(w.w, "Scan: %s\n", id)
	fmt.Fprintf(w.w, "RT: %s\n", formatFloat(scan.RT))
	fmt.Fprintf(w.w, "MSLevel: %d\n", scan.MSLevel)
	if scan.PrecursorMZ > 0 {
		fmt.Fprintf(w.w, "Precursor: %s\n", formatFloat(scan.PrecursorMZ))
	}
	if scan.Window.Valid() {
		fmt.Fprintf(w.w, "Window: %s-%s\n", formatFloat(scan.Window.Min), formatFloat(scan.Window.Max))
	}
	fmt.Fprintf(w.w, "Num peaks: %d\n", len(scan.Peaks))
	for _, p := range scan.Peaks {
		fmt.Fprintf(w.w, "%s\t%s\n", formatFloat(p.MZ), formatFloat(p.Intensity))
	}
	w.count++
	return nil
}

// WriteSpectrum writes a summed spectrum as a single MS1 scan placed at the
// centre of its rt interval.
func (w *Writer) WriteSpectrum(id string, spec core.Spectrum) error {
	return w.WriteScan(&core.Scan{ID: id, RT: spec.RT.Center(), MSLevel: 1, Peaks: spec.Peaks})
}

// Flush writes buffered data.
func (w *Writer) Flush() error {
	if err := w.w.Flush(); err != nil {
		return fmt.Errorf("flush peak list: %w", err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
