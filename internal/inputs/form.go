// Package inputs manages the nine string-valued grid fields: their keys and
// labels, parsing into generator parameters, and loading and saving them
// from JSON, YAML and XLSX files.
package inputs

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/leapstack-labs/lensgrid/internal/grid"
)

// Field keys.
const (
	SPHStart  = "sph_start"
	SPHStep   = "sph_step"
	SPHMax    = "sph_max"
	CYLStart  = "cyl_start"
	CYLStep   = "cyl_step"
	CYLMax    = "cyl_max"
	AxisStart = "axis_start"
	AxisStep  = "axis_step"
	AxisMax   = "axis_max"
)

// ErrInvalidInput is wrapped by every field parse error.
var ErrInvalidInput = errors.New("invalid input")

// ErrUnknownField is returned when setting a key that is not one of the nine fields.
var ErrUnknownField = errors.New("unknown field")

// Field describes one input field.
type Field struct {
	Key   string
	Label string
	Group string
}

// Fields lists the input fields in display order.
var Fields = []Field{
	{SPHStart, "SPH Start", "SPH"},
	{SPHStep, "SPH Step", "SPH"},
	{SPHMax, "SPH Max", "SPH"},
	{CYLStart, "CYL Start", "CYL"},
	{CYLStep, "CYL Step", "CYL"},
	{CYLMax, "CYL Max", "CYL"},
	{AxisStart, "Axis Start", "Axis"},
	{AxisStep, "Axis Step", "Axis"},
	{AxisMax, "Axis Max", "Axis"},
}

// Keys returns the field keys in display order.
func Keys() []string {
	keys := make([]string, len(Fields))
	for i, f := range Fields {
		keys[i] = f.Key
	}
	return keys
}

// Lookup returns the field for key.
func Lookup(key string) (Field, bool) {
	for _, f := range Fields {
		if f.Key == key {
			return f, true
		}
	}
	return Field{}, false
}

// Form holds the nine fields as entered, before parsing.
type Form struct {
	SPHStart  string `mapstructure:"sph_start"`
	SPHStep   string `mapstructure:"sph_step"`
	SPHMax    string `mapstructure:"sph_max"`
	CYLStart  string `mapstructure:"cyl_start"`
	CYLStep   string `mapstructure:"cyl_step"`
	CYLMax    string `mapstructure:"cyl_max"`
	AxisStart string `mapstructure:"axis_start"`
	AxisStep  string `mapstructure:"axis_step"`
	AxisMax   string `mapstructure:"axis_max"`
}

// Defaults returns the first-run form values.
func Defaults() Form {
	return Form{
		SPHStart: "0", SPHStep: "0.25", SPHMax: "2",
		CYLStart: "0.25", CYLStep: "0.5", CYLMax: "3",
		AxisStart: "10", AxisStep: "10", AxisMax: "180",
	}
}

func (f *Form) ptr(key string) *string {
	switch key {
	case SPHStart:
		return &f.SPHStart
	case SPHStep:
		return &f.SPHStep
	case SPHMax:
		return &f.SPHMax
	case CYLStart:
		return &f.CYLStart
	case CYLStep:
		return &f.CYLStep
	case CYLMax:
		return &f.CYLMax
	case AxisStart:
		return &f.AxisStart
	case AxisStep:
		return &f.AxisStep
	case AxisMax:
		return &f.AxisMax
	}
	return nil
}

// Get returns the value of key.
func (f Form) Get(key string) (string, bool) {
	p := f.ptr(key)
	if p == nil {
		return "", false
	}
	return *p, true
}

// Set stores value under key.
func (f *Form) Set(key, value string) error {
	p := f.ptr(key)
	if p == nil {
		return fmt.Errorf("%w: %q (valid: %s)", ErrUnknownField, key, strings.Join(Keys(), ", "))
	}
	*p = value
	return nil
}

// Map returns the form as a key to value mapping.
func (f Form) Map() map[string]string {
	m := make(map[string]string, len(Fields))
	for _, k := range Keys() {
		m[k], _ = f.Get(k)
	}
	return m
}

// FromMap builds a form from a key to value mapping, starting from base.
// Unknown keys are ignored.
func FromMap(base Form, m map[string]string) Form {
	for k, v := range m {
		_ = base.Set(k, v)
	}
	return base
}

// Apply merges loaded data into the form. Keys match field keys ignoring
// case and surrounding space; when a field appears under several spellings
// the exact key wins. Keys that are not fields are ignored and fields
// missing from data keep their value. Numbers and booleans are converted to
// their string form.
func (f *Form) Apply(data map[string]any) error {
	known := make(map[string]any, len(data))
	for k, v := range data {
		key := strings.ToLower(strings.TrimSpace(k))
		if _, ok := Lookup(key); !ok || v == nil {
			continue
		}
		if _, seen := known[key]; seen && k != key {
			continue
		}
		known[key] = v
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           f,
		WeaklyTypedInput: true,
		ZeroFields:       false,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(known); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

// FieldError reports a field that does not parse as a number.
type FieldError struct {
	Key   string
	Value string
}

func (e *FieldError) Error() string {
	label := e.Key
	if f, ok := Lookup(e.Key); ok {
		label = f.Label
	}
	return fmt.Sprintf("%s: %q is not a number", label, e.Value)
}

func (e *FieldError) Unwrap() error { return ErrInvalidInput }

// Parse converts the form into generator parameters. Every field that
// fails to parse is reported; ranges are then validated so non-positive
// steps are rejected before generation.
func (f Form) Parse() (grid.Params, error) {
	vals := make(map[string]float64, len(Fields))
	var errs []error
	for _, k := range Keys() {
		raw, _ := f.Get(k)
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			errs = append(errs, &FieldError{Key: k, Value: raw})
			continue
		}
		vals[k] = v
	}
	if len(errs) > 0 {
		return grid.Params{}, errors.Join(errs...)
	}

	p := grid.Params{
		SPH:  grid.AxisRange{Start: vals[SPHStart], Step: vals[SPHStep], Max: vals[SPHMax]},
		CYL:  grid.AxisRange{Start: vals[CYLStart], Step: vals[CYLStep], Max: vals[CYLMax]},
		Axis: grid.AxisRange{Start: vals[AxisStart], Step: vals[AxisStep], Max: vals[AxisMax]},
	}
	if err := p.Validate(); err != nil {
		return grid.Params{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return p, nil
}

// SortedKeys returns the keys of m in field order, followed by any
// unknown keys in lexical order.
func SortedKeys(m map[string]string) []string {
	var keys, extra []string
	for _, k := range Keys() {
		if _, ok := m[k]; ok {
			keys = append(keys, k)
		}
	}
	for k := range m {
		if _, ok := Lookup(k); !ok {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	return append(keys, extra...)
}
