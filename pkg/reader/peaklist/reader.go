// Package peaklist provides a streaming reader and a writer for plain-text
// scan dumps: one header block per scan followed by its peaks.
//
//	Scan: 12
//	RT: 10.53
//	MSLevel: 1
//	Window: 300-2000
//	Num peaks: 2
//	500.1	1200
//	500.6	830
package peaklist

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/pepfoot/pkg/core"
)

// Reader provides streaming access to peak list files
type Reader struct {
	scanner     *bufio.Scanner
	lineNum     int
	index       int
	currentScan *core.Scan
	err         error
}

// NewReader creates a new peak list reader
func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	return &Reader{scanner: scanner}
}

// Next advances to the next scan. Returns false when no more scans or error.
func (r *Reader) Next() bool {
	r.currentScan = nil

	scan, err := r.readScan()
	if err != nil {
		if err != io.EOF {
			r.err = err
		}
		return false
	}

	r.currentScan = scan
	r.index++
	return true
}

// Scan returns the current scan
func (r *Reader) Scan() *core.Scan {
	return r.currentScan
}

// Err returns any error encountered during reading
func (r *Reader) Err() error {
	return r.err
}

// readScan reads a single scan block
func (r *Reader) readScan() (*core.Scan, error) {
	scan := &core.Scan{Index: r.index, MSLevel: 1, Peaks: []core.Peak{}}

	started := false
	numPeaks := -1
	peaksRead := 0

	for r.scanner.Scan() {
		r.lineNum++
		line := strings.TrimSpace(r.scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			if started && numPeaks < 0 {
				return nil, fmt.Errorf("line %d: scan block without 'Num peaks'", r.lineNum)
			}
			continue
		}
		started = true

		if numPeaks < 0 {
			key, value, ok := strings.Cut(line, ":")
			if !ok {
				return nil, fmt.Errorf("line %d: expected 'Key: value', got '%s'", r.lineNum, line)
			}
			if err := r.parseHeader(scan, key, strings.TrimSpace(value), &numPeaks); err != nil {
				return nil, fmt.Errorf("line %d: %w", r.lineNum, err)
			}
			if numPeaks == 0 {
				return scan, nil
			}
			continue
		}

		peak, err := parsePeak(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", r.lineNum, err)
		}
		scan.Peaks = append(scan.Peaks, peak)
		peaksRead++

		if peaksRead >= numPeaks {
			if !peaksSorted(scan.Peaks) {
				core.SortPeaks(scan.Peaks)
			}
			return scan, nil
		}
	}

	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	if started {
		return nil, fmt.Errorf("line %d: truncated scan, read %d of %d peaks", r.lineNum, peaksRead, numPeaks)
	}
	return nil, io.EOF
}

func (r *Reader) parseHeader(scan *core.Scan, key, value string, numPeaks *int) error {
	var err error
	switch key {
	case "Scan":
		scan.ID = value
	case "RT":
		scan.RT, err = strconv.ParseFloat(value, 64)
	case "MSLevel":
		scan.MSLevel, err = strconv.Atoi(value)
	case "Precursor":
		scan.PrecursorMZ, err = strconv.ParseFloat(value, 64)
	case "Window":
		lo, hi, ok := strings.Cut(value, "-")
		if !ok {
			return fmt.Errorf("invalid window '%s', expected 'min-max'", value)
		}
		if scan.Window.Min, err = strconv.ParseFloat(strings.TrimSpace(lo), 64); err != nil {
			break
		}
		scan.Window.Max, err = strconv.ParseFloat(strings.TrimSpace(hi), 64)
	case "Num peaks":
		*numPeaks, err = strconv.Atoi(value)
		if err == nil && *numPeaks < 0 {
			return fmt.Errorf("negative peak count %d", *numPeaks)
		}
	default:
		// unknown keys are ignored
	}
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	return nil
}

// parsePeak parses a single peak line (format: "mz\tintensity")
func parsePeak(line string) (core.Peak, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return core.Peak{}, fmt.Errorf("invalid peak format, expected at least 2 fields")
	}

	mz, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return core.Peak{}, fmt.Errorf("invalid m/z value: %w", err)
	}

	intensity, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return core.Peak{}, fmt.Errorf("invalid intensity value: %w", err)
	}

	return core.Peak{MZ: mz, Intensity: intensity}, nil
}

func peaksSorted(peaks []core.Peak) bool {
	for i := 1; i < len(peaks); i++ {
		if peaks[i].MZ < peaks[i-1].MZ {
			return false
		}
	}
	return true
}

// ReadRun reads all scans of r.
func ReadRun(r io.Reader, source string) (*core.Run, error) {
	reader := NewReader(r)
	run := &core.Run{Source: source}
	for reader.Next() {
		run.Scans = append(run.Scans, *reader.Scan())
	}
	if err := reader.Err(); err != nil {
		return nil, err
	}
	return run, nil
}
