// Package reader opens raw data files by extension.
package reader

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ChrisMcGann/pepfoot/pkg/core"
	"github.com/ChrisMcGann/pepfoot/pkg/reader/mzml"
	"github.com/ChrisMcGann/pepfoot/pkg/reader/peaklist"
)

// ErrUnknownFormat is returned for extensions without a reader.
var ErrUnknownFormat = errors.New("unknown raw data format")

// Format names a raw data format.
type Format string

const (
	MzML     Format = "mzml"
	PeakList Format = "peaklist"
)

// DetectFormat maps a file extension to a format.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mzml":
		return MzML, nil
	case ".txt", ".peaks":
		return PeakList, nil
	case ".mz5":
		return "", fmt.Errorf("%w: %s (convert to mzML first)", ErrUnknownFormat, filepath.Base(path))
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownFormat, filepath.Base(path))
}

// Read decodes a run in the given format.
func Read(r io.Reader, format Format, source string) (*core.Run, error) {
	switch format {
	case MzML:
		return mzml.ReadRun(r, source)
	case PeakList:
		return peaklist.ReadRun(r, source)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, format)
}

// Open reads and validates the run stored at path.
func Open(path string) (*core.Run, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open raw data: %w", err)
	}
	defer file.Close()

	run, err := Read(file, format, path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	if err := run.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return run, nil
}
