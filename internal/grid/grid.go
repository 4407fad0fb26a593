// Package grid enumerates lens grids: the cross product of stepped
// sphere (SPH), cylinder (CYL) and axis angle values.
//
// Values on every axis are produced by repeated accumulation of the step,
// never by index arithmetic, so the emitted floats match the accumulated
// values bit for bit. SPH and CYL bounds are compared with Epsilon slack;
// the Axis bound is compared exactly unless Options.InclusiveAxis is set.
package grid

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

// Epsilon is the slack added to the SPH and CYL upper bounds to absorb
// floating point drift from repeated addition of the step.
const Epsilon = 0.0001

var (
	// ErrInvalidRange is returned when a range value is NaN or infinite.
	ErrInvalidRange = errors.New("invalid range")
	// ErrNonPositiveStep is returned when a step is zero or negative.
	ErrNonPositiveStep = errors.New("step must be greater than zero")
	// ErrStepTooSmall is returned when adding the step no longer changes the value.
	ErrStepTooSmall = errors.New("step too small to advance value")
	// ErrTooManyPoints is returned when a grid exceeds Options.MaxPoints.
	ErrTooManyPoints = errors.New("too many grid points")
)

// AxisRange is a stepped value range for one axis.
type AxisRange struct {
	Start float64 `json:"start"`
	Step  float64 `json:"step"`
	Max   float64 `json:"max"`
}

// Params holds the three ranges of a grid.
type Params struct {
	SPH  AxisRange `json:"sph"`
	CYL  AxisRange `json:"cyl"`
	Axis AxisRange `json:"axis"`
}

// Point is one generated (SPH, CYL, Axis) combination.
type Point struct {
	SPH  float64 `json:"SPH"`
	CYL  float64 `json:"CYL"`
	Axis float64 `json:"Axis"`
}

// Counts holds the number of values per axis and their product.
type Counts struct {
	SPH   int `json:"sph"`
	CYL   int `json:"cyl"`
	Axis  int `json:"axis"`
	Total int `json:"total"`
}

// RangeError describes an invalid value in one axis range.
type RangeError struct {
	Axis  string
	Field string
	Value float64
	Err   error
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s %s (%v): %v", e.Axis, e.Field, e.Value, e.Err)
}

func (e *RangeError) Unwrap() error { return e.Err }

// Validate checks that the range values are finite and the step is positive.
func (r AxisRange) Validate(axis string) error {
	var errs []error
	for _, f := range []struct {
		name  string
		value float64
	}{{"start", r.Start}, {"step", r.Step}, {"max", r.Max}} {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			errs = append(errs, &RangeError{Axis: axis, Field: f.name, Value: f.value, Err: ErrInvalidRange})
		}
	}
	if !math.IsNaN(r.Step) && r.Step <= 0 {
		errs = append(errs, &RangeError{Axis: axis, Field: "step", Value: r.Step, Err: ErrNonPositiveStep})
	}
	return errors.Join(errs...)
}

// Validate checks all three ranges and reports every problem found.
func (p Params) Validate() error {
	return errors.Join(
		p.SPH.Validate("SPH"),
		p.CYL.Validate("CYL"),
		p.Axis.Validate("Axis"),
	)
}

// Round2 rounds v to two decimal places using correct decimal rounding
// of the binary value, with exact ties going to even.
func Round2(v float64) float64 {
	r, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 2, 64), 64)
	if err != nil {
		return v
	}
	return r
}
