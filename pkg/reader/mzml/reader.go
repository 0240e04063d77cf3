// Package mzml provides a streaming reader for mzML raw data files.
package mzml

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"encoding/binary"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/pepfoot/pkg/core"
)

// CV accessions used by the reader.
const (
	accMSLevel       = "MS:1000511"
	accScanStartTime = "MS:1000016"
	accWindowLower   = "MS:1000501"
	accWindowUpper   = "MS:1000500"
	accSelectedIonMZ = "MS:1000744"
	accMZArray       = "MS:1000514"
	accIntensity     = "MS:1000515"
	accFloat32       = "MS:1000521"
	accFloat64       = "MS:1000523"
	accZlib          = "MS:1000574"
	accNoCompression = "MS:1000576"

	unitSecond = "UO:0000010"
	unitMinute = "UO:0000031"
)

// ErrUnsupported is returned for binary encodings the reader cannot decode,
// such as MS-Numpress.
var ErrUnsupported = errors.New("unsupported mzML encoding")

type spectrum struct {
	Index               int                 `xml:"index,attr"`
	ID                  string              `xml:"id,attr"`
	CvParam             []cvParam           `xml:"cvParam"`
	ScanList            scanList            `xml:"scanList"`
	PrecursorList       precursorList       `xml:"precursorList"`
	BinaryDataArrayList binaryDataArrayList `xml:"binaryDataArrayList"`
}

type scanList struct {
	Scan []scan `xml:"scan"`
}

type scan struct {
	CvParam        []cvParam      `xml:"cvParam"`
	ScanWindowList scanWindowList `xml:"scanWindowList"`
}

type scanWindowList struct {
	ScanWindow []struct {
		CvParam []cvParam `xml:"cvParam"`
	} `xml:"scanWindow"`
}

type precursorList struct {
	Precursor []struct {
		SelectedIonList struct {
			SelectedIon []struct {
				CvParam []cvParam `xml:"cvParam"`
			} `xml:"selectedIon"`
		} `xml:"selectedIonList"`
	} `xml:"precursor"`
}

type binaryDataArrayList struct {
	BinaryDataArray []binaryDataArray `xml:"binaryDataArray"`
}

type binaryDataArray struct {
	CvParam []cvParam `xml:"cvParam"`
	Binary  string    `xml:"binary"`
}

type cvParam struct {
	Accession     string `xml:"accession,attr"`
	Name          string `xml:"name,attr"`
	Value         string `xml:"value,attr"`
	UnitAccession string `xml:"unitAccession,attr"`
	UnitName      string `xml:"unitName,attr"`
}

func findParam(params []cvParam, accession string) (cvParam, bool) {
	for _, p := range params {
		if p.Accession == accession {
			return p, true
		}
	}
	return cvParam{}, false
}

func hasParam(params []cvParam, accession string) bool {
	_, ok := findParam(params, accession)
	return ok
}

func floatParam(params []cvParam, accession string) (float64, bool, error) {
	p, ok := findParam(params, accession)
	if !ok {
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(p.Value, 64)
	if err != nil {
		return 0, true, fmt.Errorf("%s (%s): %w", p.Name, accession, err)
	}
	return v, true, nil
}

// Reader streams the spectra of an mzML document.
type Reader struct {
	decoder     *xml.Decoder
	count       int
	currentScan *core.Scan
	err         error
}

// NewReader creates a new mzML reader
func NewReader(r io.Reader) *Reader {
	return &Reader{decoder: xml.NewDecoder(r)}
}

// Next advances to the next spectrum. Returns false when no more spectra or error.
func (r *Reader) Next() bool {
	r.currentScan = nil
	if r.err != nil {
		return false
	}

	for {
		tok, err := r.decoder.Token()
		if err == io.EOF {
			return false
		}
		if err != nil {
			r.err = fmt.Errorf("read mzML: %w", err)
			return false
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "spectrum" {
			continue
		}

		var spec spectrum
		if err := r.decoder.DecodeElement(&spec, &start); err != nil {
			r.err = fmt.Errorf("decode spectrum %d: %w", r.count, err)
			return false
		}
		s, err := convert(&spec)
		if err != nil {
			r.err = fmt.Errorf("spectrum '%s': %w", spec.ID, err)
			return false
		}
		r.currentScan = s
		r.count++
		return true
	}
}

// Scan returns the current scan
func (r *Reader) Scan() *core.Scan {
	return r.currentScan
}

// Err returns any error encountered during reading
func (r *Reader) Err() error {
	return r.err
}

// ReadRun reads every spectrum of r.
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

func convert(spec *spectrum) (*core.Scan, error) {
	s := &core.Scan{Index: spec.Index, ID: spec.ID, MSLevel: 1}

	if p, ok := findParam(spec.CvParam, accMSLevel); ok {
		level, err := strconv.Atoi(p.Value)
		if err != nil {
			return nil, fmt.Errorf("ms level: %w", err)
		}
		s.MSLevel = level
	}

	if len(spec.ScanList.Scan) > 0 {
		first := spec.ScanList.Scan[0]
		if p, ok := findParam(first.CvParam, accScanStartTime); ok {
			rt, err := strconv.ParseFloat(p.Value, 64)
			if err != nil {
				return nil, fmt.Errorf("scan start time: %w", err)
			}
			if p.UnitAccession == unitSecond || strings.EqualFold(p.UnitName, "second") {
				rt /= 60
			}
			s.RT = rt
		}
		if windows := first.ScanWindowList.ScanWindow; len(windows) > 0 {
			lo, okLo, err := floatParam(windows[0].CvParam, accWindowLower)
			if err != nil {
				return nil, err
			}
			hi, okHi, err := floatParam(windows[0].CvParam, accWindowUpper)
			if err != nil {
				return nil, err
			}
			if okLo && okHi {
				s.Window = core.Range{Min: lo, Max: hi}
			}
		}
	}

	if prec := spec.PrecursorList.Precursor; len(prec) > 0 {
		if ions := prec[0].SelectedIonList.SelectedIon; len(ions) > 0 {
			mz, _, err := floatParam(ions[0].CvParam, accSelectedIonMZ)
			if err != nil {
				return nil, err
			}
			s.PrecursorMZ = mz
		}
	}

	var mzs, intensities []float64
	for _, arr := range spec.BinaryDataArrayList.BinaryDataArray {
		isMZ, isIntensity := hasParam(arr.CvParam, accMZArray), hasParam(arr.CvParam, accIntensity)
		if !isMZ && !isIntensity {
			continue
		}
		values, err := decodeArray(arr)
		if err != nil {
			return nil, err
		}
		if isMZ {
			mzs = values
		} else {
			intensities = values
		}
	}
	if len(mzs) != len(intensities) {
		return nil, fmt.Errorf("m/z array has %d values, intensity array %d", len(mzs), len(intensities))
	}

	s.Peaks = make([]core.Peak, len(mzs))
	sorted := true
	for i := range mzs {
		s.Peaks[i] = core.Peak{MZ: mzs[i], Intensity: intensities[i]}
		if i > 0 && mzs[i] < mzs[i-1] {
			sorted = false
		}
	}
	if !sorted {
		core.SortPeaks(s.Peaks)
	}
	return s, nil
}

func decodeArray(arr binaryDataArray) ([]float64, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(arr.Binary))
	if err != nil {
		return nil, fmt.Errorf("base64: %w", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}

	switch {
	case hasParam(arr.CvParam, accZlib):
		zr, err := zlib.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("zlib: %w", err)
		}
		raw, err = io.ReadAll(zr)
		zr.Close()
		if err != nil {
			return nil, fmt.Errorf("zlib: %w", err)
		}
	case hasParam(arr.CvParam, accNoCompression):
	default:
		for _, p := range arr.CvParam {
			if strings.Contains(strings.ToLower(p.Name), "numpress") {
				return nil, fmt.Errorf("%w: %s", ErrUnsupported, p.Name)
			}
		}
	}

	switch {
	case hasParam(arr.CvParam, accFloat64):
		if len(raw)%8 != 0 {
			return nil, fmt.Errorf("64-bit array of %d bytes", len(raw))
		}
		out := make([]float64, len(raw)/8)
		for i := range out {
			out[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[i*8:]))
		}
		return out, nil
	case hasParam(arr.CvParam, accFloat32):
		if len(raw)%4 != 0 {
			return nil, fmt.Errorf("32-bit array of %d bytes", len(raw))
		}
		out := make([]float64, len(raw)/4)
		for i := range out {
			out[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:])))
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: binary data type is not 32 or 64-bit float", ErrUnsupported)
}
