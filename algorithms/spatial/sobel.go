// Package spatial computes Spatial Information (SI): the population
// standard deviation of the Sobel gradient magnitude of a frame.
package spatial

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/RyanBlaney/sonido-siti/algorithms/common"
)

// ErrUnsupportedFrameSize is returned for planes too small for a 3x3 kernel
var ErrUnsupportedFrameSize = errors.New("unsupported frame size")

// MinDimension is the smallest width and height SI is defined for
const MinDimension = 3

// rows per band below which a frame is not split across workers
const minRowsPerWorker = 32

// Engine computes SI for a sequence of planes. It reuses its magnitude
// buffer between calls and is not safe for concurrent use.
type Engine struct {
	workers    int
	magnitudes []float64
}

// Option configures an Engine
type Option func(*Engine)

// WithWorkers sets the number of goroutines used for the gradient pass.
// Values below 1 select runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(e *Engine) {
		e.workers = n
	}
}

// NewEngine creates an SI engine
func NewEngine(opts ...Option) *Engine {
	e := &Engine{}
	for _, opt := range opts {
		opt(e)
	}
	if e.workers < 1 {
		e.workers = runtime.NumCPU()
	}
	return e
}

// Workers returns the configured parallelism
func (e *Engine) Workers() int { return e.workers }

// Compute returns the SI of p. Only interior pixels, where the full 3x3
// neighbourhood exists, contribute to the statistic.
func (e *Engine) Compute(ctx context.Context, p *common.Plane) (float64, error) {
	if p == nil {
		return 0, fmt.Errorf("%w: nil plane", ErrUnsupportedFrameSize)
	}
	if p.Width < MinDimension || p.Height < MinDimension {
		return 0, fmt.Errorf("%w: %dx%d, need at least %dx%d",
			ErrUnsupportedFrameSize, p.Width, p.Height, MinDimension, MinDimension)
	}

	innerW, innerH := p.Width-2, p.Height-2
	n := innerW * innerH
	if cap(e.magnitudes) < n {
		e.magnitudes = make([]float64, n)
	}
	mags := e.magnitudes[:n]

	if err := e.gradientPass(ctx, p, mags); err != nil {
		return 0, err
	}

	// sequential reduction keeps the result independent of the worker count
	return common.PopStdDev(mags), nil
}

func (e *Engine) gradientPass(ctx context.Context, p *common.Plane, mags []float64) error {
	innerH := p.Height - 2
	workers := e.bandCount(innerH)
	if workers == 1 {
		if err := ctx.Err(); err != nil {
			return err
		}
		sobelRows(p, mags, 1, p.Height-1)
		return nil
	}

	step := (innerH + workers - 1) / workers
	g, gctx := errgroup.WithContext(ctx)
	for start := 1; start < p.Height-1; start += step {
		end := min(start+step, p.Height-1)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			sobelRows(p, mags, start, end)
			return nil
		})
	}
	return g.Wait()
}

// bandCount picks the number of row bands for a frame with rows interior rows
func (e *Engine) bandCount(rows int) int {
	if rows < 2*minRowsPerWorker {
		return 1
	}
	return max(1, min(e.workers, rows/minRowsPerWorker))
}

// sobelRows writes the gradient magnitudes of interior rows [y0, y1) into
// their fixed slots of mags.
func sobelRows(p *common.Plane, mags []float64, y0, y1 int) {
	w := p.Width
	innerW := w - 2
	for y := y0; y < y1; y++ {
		above := p.Row(y - 1)
		row := p.Row(y)
		below := p.Row(y + 1)
		out := mags[(y-1)*innerW : y*innerW]
		for x := 1; x < w-1; x++ {
			gx := (above[x+1] + 2*row[x+1] + below[x+1]) - (above[x-1] + 2*row[x-1] + below[x-1])
			gy := (below[x-1] + 2*below[x] + below[x+1]) - (above[x-1] + 2*above[x] + above[x+1])
			out[x-1] = math.Sqrt(gx*gx + gy*gy)
		}
	}
}
