package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"github.com/ChrisMcGann/pepfoot/pkg/core"
	"github.com/ChrisMcGann/pepfoot/pkg/project"
)

// rangeValue is a "min,max" float flag.
type rangeValue struct {
	r   *core.Range
	set bool
}

var _ pflag.Value = (*rangeValue)(nil)

func newRangeValue(r *core.Range) *rangeValue {
	return &rangeValue{r: r}
}

func (v *rangeValue) String() string {
	if v == nil || v.r == nil || !v.set {
		return ""
	}
	return strconv.FormatFloat(v.r.Min, 'g', -1, 64) + "," + strconv.FormatFloat(v.r.Max, 'g', -1, 64)
}

func (v *rangeValue) Set(s string) error {
	lo, hi, err := splitPair(s)
	if err != nil {
		return err
	}
	var r core.Range
	if r.Min, err = strconv.ParseFloat(lo, 64); err != nil {
		return fmt.Errorf("invalid lower bound '%s'", lo)
	}
	if r.Max, err = strconv.ParseFloat(hi, 64); err != nil {
		return fmt.Errorf("invalid upper bound '%s'", hi)
	}
	if !r.Valid() {
		return fmt.Errorf("range %s must have min < max", s)
	}
	*v.r = r
	v.set = true
	return nil
}

func (v *rangeValue) Type() string {
	return "min,max"
}

// intRangeValue is an inclusive "min,max" integer flag. A single number sets both bounds.
type intRangeValue struct {
	r *core.IntRange
}

var _ pflag.Value = (*intRangeValue)(nil)

func newIntRangeValue(r *core.IntRange, def core.IntRange) *intRangeValue {
	*r = def
	return &intRangeValue{r: r}
}

func (v *intRangeValue) String() string {
	if v == nil || v.r == nil {
		return ""
	}
	return fmt.Sprintf("%d,%d", v.r.Min, v.r.Max)
}

func (v *intRangeValue) Set(s string) error {
	lo, hi, err := splitPair(s)
	if err != nil {
		n, nerr := strconv.Atoi(strings.TrimSpace(s))
		if nerr != nil {
			return err
		}
		lo, hi = strconv.Itoa(n), strconv.Itoa(n)
	}
	var r core.IntRange
	if r.Min, err = strconv.Atoi(lo); err != nil {
		return fmt.Errorf("invalid lower bound '%s'", lo)
	}
	if r.Max, err = strconv.Atoi(hi); err != nil {
		return fmt.Errorf("invalid upper bound '%s'", hi)
	}
	if !r.Valid() {
		return fmt.Errorf("range %s must have min <= max", s)
	}
	*v.r = r
	return nil
}

func (v *intRangeValue) Type() string {
	return "min,max"
}

// labelValue is a project.Label flag.
type labelValue struct {
	l *project.Label
}

var _ pflag.Value = (*labelValue)(nil)

func (v *labelValue) String() string {
	if v == nil || v.l == nil {
		return ""
	}
	return v.l.String()
}

func (v *labelValue) Set(s string) error {
	l, err := project.ParseLabel(strings.ToLower(s))
	if err != nil {
		return err
	}
	*v.l = l
	return nil
}

func (v *labelValue) Type() string {
	return "label"
}

func splitPair(s string) (string, string, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("invalid range '%s', expected 'min,max'", s)
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), nil
}
