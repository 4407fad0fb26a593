package grid

import (
	"fmt"
	"math"
)

// Options configures a Generator.
type Options struct {
	// InclusiveAxis applies Epsilon to the Axis upper bound as well.
	InclusiveAxis bool
	// MaxPoints rejects grids with more points. Zero means no limit.
	MaxPoints int
}

// Generator enumerates grids. The zero value uses the default bounds
// and no point limit. A Generator holds no mutable state.
type Generator struct {
	opts Options
}

// New creates a Generator with the given options.
func New(opts Options) *Generator {
	return &Generator{opts: opts}
}

// Options returns the generator options.
func (g *Generator) Options() Options {
	return g.opts
}

// Generate returns every point of the grid in SPH-major, CYL-next,
// Axis-minor order using the default options.
func Generate(p Params) ([]Point, error) {
	return New(Options{}).Generate(p)
}

// Generate returns every point of the grid in SPH-major, CYL-next,
// Axis-minor order.
func (g *Generator) Generate(p Params) ([]Point, error) {
	c, err := g.Count(p)
	if err != nil {
		return nil, err
	}
	points := make([]Point, 0, c.Total)
	err = g.Walk(p, func(pt Point) error {
		points = append(points, pt)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return points, nil
}

// Walk calls fn for every point of the grid in emission order without
// materializing the grid. An error returned by fn stops the walk and is
// returned unchanged.
func (g *Generator) Walk(p Params, fn func(Point) error) error {
	v, err := g.values(p)
	if err != nil {
		return err
	}
	if v.empty {
		return nil
	}
	for _, s := range v.sph {
		rs := Round2(s)
		for _, c := range v.cyl {
			rc := Round2(c)
			for _, a := range v.axis {
				if err := fn(Point{SPH: rs, CYL: rc, Axis: a}); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// Count returns the per-axis value counts and the total number of points
// without generating the grid. When one axis is empty the grid is empty
// and the other axes are counted in closed form, not accumulated.
func (g *Generator) Count(p Params) (Counts, error) {
	v, err := g.values(p)
	if err != nil {
		return Counts{}, err
	}
	if v.empty {
		return Counts{
			SPH:  countOf(estimate(p.SPH, Epsilon)),
			CYL:  countOf(estimate(p.CYL, Epsilon)),
			Axis: countOf(estimate(p.Axis, g.axisEpsilon())),
		}, nil
	}
	return Counts{
		SPH:   len(v.sph),
		CYL:   len(v.cyl),
		Axis:  len(v.axis),
		Total: len(v.sph) * len(v.cyl) * len(v.axis),
	}, nil
}

// Values returns the accumulated values of one axis. eps is added to the
// upper bound.
func Values(r AxisRange, eps float64) ([]float64, error) {
	if err := r.Validate("range"); err != nil {
		return nil, err
	}
	return accumulate(r, eps, "range", 0)
}

func (g *Generator) axisEpsilon() float64 {
	if g.opts.InclusiveAxis {
		return Epsilon
	}
	return 0
}

// axisValues holds the accumulated values of the three axes. empty is set
// when any axis has no values; nothing is accumulated then.
type axisValues struct {
	sph, cyl, axis []float64
	empty          bool
}

// values validates p, enforces the point limit and accumulates the three
// axes. Each axis is accumulated once and reused for every pass of the
// enclosing loops.
func (g *Generator) values(p Params) (axisValues, error) {
	if err := p.Validate(); err != nil {
		return axisValues{}, err
	}
	axisEps := g.axisEpsilon()
	if estimate(p.SPH, Epsilon) == 0 || estimate(p.CYL, Epsilon) == 0 || estimate(p.Axis, axisEps) == 0 {
		return axisValues{empty: true}, nil
	}
	if err := g.checkEstimate(p); err != nil {
		return axisValues{}, err
	}

	// No axis is empty, so a single axis longer than the limit already
	// exceeds it.
	limit := g.opts.MaxPoints
	var (
		v   axisValues
		err error
	)
	if v.sph, err = accumulate(p.SPH, Epsilon, "SPH", limit); err != nil {
		return axisValues{}, err
	}
	if v.cyl, err = accumulate(p.CYL, Epsilon, "CYL", limit); err != nil {
		return axisValues{}, err
	}
	if v.axis, err = accumulate(p.Axis, axisEps, "Axis", limit); err != nil {
		return axisValues{}, err
	}
	if limit > 0 {
		total := len(v.sph) * len(v.cyl) * len(v.axis)
		if total > limit {
			return axisValues{}, fmt.Errorf("%w: %d exceeds limit of %d", ErrTooManyPoints, total, limit)
		}
	}
	return v, nil
}

// checkEstimate rejects grids whose closed-form size is far beyond the
// limit before any accumulation happens.
func (g *Generator) checkEstimate(p Params) error {
	if g.opts.MaxPoints <= 0 {
		return nil
	}
	total := estimate(p.SPH, Epsilon) * estimate(p.CYL, Epsilon) * estimate(p.Axis, g.axisEpsilon())
	// Accumulation may land one value off the closed form per axis.
	if total > 8*float64(g.opts.MaxPoints)+8 {
		return fmt.Errorf("%w: about %.0f exceeds limit of %d", ErrTooManyPoints, total, g.opts.MaxPoints)
	}
	return nil
}

// estimate is the closed-form value count of r. It is zero exactly when
// accumulation would produce no values.
func estimate(r AxisRange, eps float64) float64 {
	if r.Start > r.Max+eps {
		return 0
	}
	return math.Floor((r.Max+eps-r.Start)/r.Step) + 1
}

func countOf(f float64) int {
	if f >= math.MaxInt {
		return math.MaxInt
	}
	return int(f)
}

// accumulate collects r's values by repeated addition. A positive limit
// stops accumulation once more than limit values are collected.
func accumulate(r AxisRange, eps float64, axis string, limit int) ([]float64, error) {
	var vals []float64
	bound := r.Max + eps
	for v := r.Start; v <= bound; v += r.Step {
		vals = append(vals, v)
		if limit > 0 && len(vals) > limit {
			return nil, fmt.Errorf("%w: %s alone has more than %d values", ErrTooManyPoints, axis, limit)
		}
		if v+r.Step == v {
			return nil, &RangeError{Axis: axis, Field: "step", Value: r.Step, Err: ErrStepTooSmall}
		}
	}
	return vals, nil
}
