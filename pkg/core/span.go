package core

import (
	"fmt"
	"strconv"
	"strings"
)

// Span is a 1-based inclusive residue interval of the parent sequence.
// It identifies a peptide.
type Span struct {
	Start int
	End   int
}

// ParseSpan parses "start-end".
func ParseSpan(s string) (Span, error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 2 {
		return Span{}, fmt.Errorf("invalid span '%s', expected 'start-end'", s)
	}
	start, err := strconv.Atoi(parts[0])
	if err != nil {
		return Span{}, fmt.Errorf("invalid span start '%s': %w", parts[0], err)
	}
	end, err := strconv.Atoi(parts[1])
	if err != nil {
		return Span{}, fmt.Errorf("invalid span end '%s': %w", parts[1], err)
	}
	sp := Span{Start: start, End: end}
	if !sp.Valid() {
		return Span{}, fmt.Errorf("invalid span '%s'", s)
	}
	return sp, nil
}

func (s Span) String() string {
	return fmt.Sprintf("%d-%d", s.Start, s.End)
}

// Valid reports whether 1 <= Start <= End.
func (s Span) Valid() bool {
	return s.Start >= 1 && s.End >= s.Start
}

// Len returns the number of residues.
func (s Span) Len() int {
	return s.End - s.Start + 1
}

// MarshalText encodes the span as "start-end" so it can be used as a JSON value or map key.
func (s Span) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes "start-end".
func (s *Span) UnmarshalText(b []byte) error {
	sp, err := ParseSpan(string(b))
	if err != nil {
		return err
	}
	*s = sp
	return nil
}

// IntRange is a closed integer interval, used for charge and length bounds.
type IntRange struct {
	Min int `json:"min" yaml:"min"`
	Max int `json:"max" yaml:"max"`
}

// Valid reports whether Min <= Max.
func (r IntRange) Valid() bool {
	return r.Min <= r.Max
}

// Contains reports whether v lies in [Min, Max].
func (r IntRange) Contains(v int) bool {
	return v >= r.Min && v <= r.Max
}

func (r IntRange) String() string {
	return fmt.Sprintf("%d-%d", r.Min, r.Max)
}
