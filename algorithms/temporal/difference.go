// Package temporal computes Temporal Information (TI): the population
// standard deviation of the pixel-wise difference between two frames.
package temporal

import (
	"errors"
	"fmt"

	"github.com/RyanBlaney/sonido-siti/algorithms/common"
)

// ErrDimensionMismatch is returned when consecutive frames differ in size
var ErrDimensionMismatch = errors.New("frame dimension mismatch")

// Engine computes TI. It reuses its difference buffer and is not safe for
// concurrent use.
type Engine struct {
	diff []float64
}

// NewEngine creates a TI engine
func NewEngine() *Engine {
	return &Engine{}
}

// Compute returns the TI between prev and cur over every pixel
func (e *Engine) Compute(prev, cur *common.Plane) (float64, error) {
	if prev == nil || cur == nil {
		return 0, fmt.Errorf("%w: missing frame", ErrDimensionMismatch)
	}
	if !prev.SameSize(cur) {
		return 0, fmt.Errorf("%w: previous %dx%d, current %dx%d",
			ErrDimensionMismatch, prev.Width, prev.Height, cur.Width, cur.Height)
	}

	n := len(cur.Pix)
	if cap(e.diff) < n {
		e.diff = make([]float64, n)
	}
	diff := e.diff[:n]
	for i, v := range cur.Pix {
		diff[i] = v - prev.Pix[i]
	}

	return common.PopStdDev(diff), nil
}
