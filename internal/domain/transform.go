package domain

import (
	"fmt"
	"math"
)

// TransformOp identifies one reversible series operation.
type TransformOp string

const (
	// OpLog replaces each price with its natural logarithm.
	OpLog TransformOp = "log"
	// OpDiff replaces the series with first differences, dropping the
	// first observation.
	OpDiff TransformOp = "diff"
)

// TransformStep records one applied operation with the values needed
// to invert it exactly. For OpDiff, Initial is the first value of the
// pre-difference sequence (restores the historical series) and Anchor
// is its last value (restores paths that continue past the series end).
type TransformStep struct {
	Op      TransformOp `json:"op"`
	Initial float64     `json:"initial,omitempty"`
	Anchor  float64     `json:"anchor,omitempty"`
}

// TransformSpec records the operations applied to obtain a derived
// series, in application order. It carries enough state to map both the
// historical series and any future continuation back to price space.
type TransformSpec struct {
	Steps []TransformStep `json:"steps"`
}

// Space names the value space a transformed series lives in.
type Space string

const (
	SpacePrice    Space = "price"
	SpaceLogPrice Space = "log-price"
	SpaceLogDiff  Space = "log-return"
	SpaceDiff     Space = "diff"
)

// Space reports the value space the spec's output lives in.
func (t TransformSpec) Space() Space {
	hasLog := false
	diffs := 0
	for _, s := range t.Steps {
		switch s.Op {
		case OpLog:
			hasLog = true
		case OpDiff:
			diffs++
		}
	}
	switch {
	case hasLog && diffs > 0:
		return SpaceLogDiff
	case hasLog:
		return SpaceLogPrice
	case diffs > 0:
		return SpaceDiff
	default:
		return SpacePrice
	}
}

// DiffOrder returns the number of differencing steps applied.
func (t TransformSpec) DiffOrder() int {
	d := 0
	for _, s := range t.Steps {
		if s.Op == OpDiff {
			d++
		}
	}
	return d
}

// ApplyTransform maps prices into transform space, applying the log
// transform first (when requested) and then diffOrder rounds of first
// differencing. It returns the derived values and the spec that inverts
// them. Differencing shortens the output by one element per round.
func ApplyTransform(prices []float64, useLog bool, diffOrder int) ([]float64, TransformSpec, error) {
	if diffOrder < 0 {
		return nil, TransformSpec{}, fmt.Errorf("negative differencing order %d", diffOrder)
	}
	if len(prices) <= diffOrder {
		return nil, TransformSpec{}, fmt.Errorf("series of %d observations cannot be differenced %d times", len(prices), diffOrder)
	}

	values := make([]float64, len(prices))
	copy(values, prices)

	var spec TransformSpec
	if useLog {
		for i, v := range values {
			if v <= 0 {
				return nil, TransformSpec{}, fmt.Errorf("non-positive value %.6f at index %d under log transform", v, i)
			}
			values[i] = math.Log(v)
		}
		spec.Steps = append(spec.Steps, TransformStep{Op: OpLog})
	}

	for d := 0; d < diffOrder; d++ {
		step := TransformStep{
			Op:      OpDiff,
			Initial: values[0],
			Anchor:  values[len(values)-1],
		}
		diffed := make([]float64, len(values)-1)
		for i := 1; i < len(values); i++ {
			diffed[i-1] = values[i] - values[i-1]
		}
		values = diffed
		spec.Steps = append(spec.Steps, step)
	}

	return values, spec, nil
}

// Invert maps a full derived series back to price space, restoring the
// observations consumed by differencing. Invert(ApplyTransform(p)) == p
// within floating-point tolerance.
func (t TransformSpec) Invert(values []float64) []float64 {
	out := make([]float64, len(values))
	copy(out, values)

	for i := len(t.Steps) - 1; i >= 0; i-- {
		step := t.Steps[i]
		switch step.Op {
		case OpDiff:
			restored := make([]float64, len(out)+1)
			restored[0] = step.Initial
			for j, d := range out {
				restored[j+1] = restored[j] + d
			}
			out = restored
		case OpLog:
			for j, v := range out {
				out[j] = math.Exp(v)
			}
		}
	}
	return out
}

// InvertFuture maps a path that continues immediately after the series
// end back to price space, using the recorded anchors instead of the
// initial values. The whole path is inverted in one pass so repeated
// invert/transform cycles never compound rounding error.
func (t TransformSpec) InvertFuture(path []float64) []float64 {
	out := make([]float64, len(path))
	copy(out, path)

	for i := len(t.Steps) - 1; i >= 0; i-- {
		step := t.Steps[i]
		switch step.Op {
		case OpDiff:
			prev := step.Anchor
			for j, d := range out {
				prev += d
				out[j] = prev
			}
		case OpLog:
			for j, v := range out {
				out[j] = math.Exp(v)
			}
		}
	}
	return out
}
