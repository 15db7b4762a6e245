// Package siti computes Spatial Information (SI) and Temporal Information
// (TI) of a video sequence following ITU-T P.910, with HDR-aware luminance
// and perceptual (PQ / PU21) encoding of the luma signal.
package siti

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/RyanBlaney/sonido-siti/algorithms/normalize"
	"github.com/RyanBlaney/sonido-siti/algorithms/spatial"
	"github.com/RyanBlaney/sonido-siti/algorithms/temporal"
	"github.com/RyanBlaney/sonido-siti/config"
	"github.com/RyanBlaney/sonido-siti/logging"
	"github.com/RyanBlaney/sonido-siti/transcode"
)

// DefaultProgressInterval is the number of frames between progress logs
const DefaultProgressInterval = 25

// Calculator runs the SI/TI pipeline over one sequence of frames. A
// Calculator is single use: once DONE it rejects further frames.
type Calculator struct {
	settings config.Settings
	pipeline *Pipeline
	spatial  *spatial.Engine
	temporal *temporal.Engine
	logger   logging.Logger

	numFrames        int
	maxFrames        int
	rangeTolerance   float64
	workers          int
	progressInterval int

	state       StreamState
	status      State
	result      Result
	failed      error
	rangeWarned bool
}

// Option configures a Calculator
type Option func(*Calculator)

// WithLogger sets the logger. The default is the package-level logger.
func WithLogger(l logging.Logger) Option {
	return func(c *Calculator) {
		c.logger = l
	}
}

// WithNumFrames stops the run after n frames. 0 means unlimited; otherwise
// n must be at least 2.
func WithNumFrames(n int) Option {
	return func(c *Calculator) {
		c.numFrames = n
	}
}

// WithMaxFrames sets the expected sequence length, used only for progress
func WithMaxFrames(n int) Option {
	return func(c *Calculator) {
		c.maxFrames = n
	}
}

// WithRangeTolerance sets the accepted fraction of out-of-range samples for
// limited range input
func WithRangeTolerance(f float64) Option {
	return func(c *Calculator) {
		c.rangeTolerance = f
	}
}

// WithWorkers sets the parallelism of the SI gradient pass
func WithWorkers(n int) Option {
	return func(c *Calculator) {
		c.workers = n
	}
}

// WithProgressInterval sets how many frames pass between progress logs.
// Values below 1 disable progress logging.
func WithProgressInterval(n int) Option {
	return func(c *Calculator) {
		c.progressInterval = n
	}
}

// NewCalculator binds the processing chain for settings
func NewCalculator(settings config.Settings, opts ...Option) (*Calculator, error) {
	c := &Calculator{
		settings:         settings,
		rangeTolerance:   normalize.DefaultMismatchTolerance,
		progressInterval: DefaultProgressInterval,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.numFrames < 0 || c.numFrames == 1 {
		return nil, fmt.Errorf("%w: num_frames must be >= 2, got %d", config.ErrInvalidSettings, c.numFrames)
	}
	if c.maxFrames < 0 {
		return nil, fmt.Errorf("%w: max_frames must not be negative, got %d", config.ErrInvalidSettings, c.maxFrames)
	}

	pipeline, err := NewPipeline(settings, c.rangeTolerance)
	if err != nil {
		return nil, err
	}
	c.pipeline = pipeline
	c.spatial = spatial.NewEngine(spatial.WithWorkers(c.workers))
	c.temporal = temporal.NewEngine()

	if c.logger == nil {
		c.logger = logging.GetGlobalLogger()
	}
	c.logger = c.logger.WithFields(logging.Fields{"component": "siti_calculator"})

	c.result = Result{
		SI:       []float64{},
		TI:       []float64{},
		Settings: config.NewSnapshot(settings),
	}

	c.logger.Debug("Calculator created", logging.Fields{
		"settings":   settings.String(),
		"num_frames": c.numFrames,
		"workers":    c.spatial.Workers(),
	})

	return c, nil
}

// Settings returns the settings the calculator was built with
func (c *Calculator) Settings() config.Settings { return c.settings }

// State returns the current lifecycle state
func (c *Calculator) State() State { return c.status }

// StreamState returns the lookback state
func (c *Calculator) StreamState() *StreamState { return &c.state }

// Process runs one frame through the pipeline and appends its SI and TI.
// A failed step leaves the result untouched and finishes the calculator.
func (c *Calculator) Process(ctx context.Context, f *transcode.Frame) error {
	if c.status == StateDone {
		if c.failed != nil {
			return fmt.Errorf("%w: aborted: %v", ErrStreamDone, c.failed)
		}
		return ErrStreamDone
	}

	if err := c.step(ctx, f); err != nil {
		c.status = StateDone
		if ctxErr := ctx.Err(); ctxErr == nil || !errors.Is(err, ctxErr) {
			c.failed = err
		}
		return err
	}

	if c.numFrames > 0 && c.state.FrameIndex() >= c.numFrames {
		c.logger.Debug("Frame limit reached", logging.Fields{"num_frames": c.numFrames})
		c.status = StateDone
	}
	return nil
}

func (c *Calculator) step(ctx context.Context, f *transcode.Frame) error {
	if f != nil && f.ColorRange != "" && f.ColorRange != c.settings.ColorRange && !c.rangeWarned {
		c.rangeWarned = true
		c.logger.Warn("Declared color range differs from settings, using settings", logging.Fields{
			"frame_range":    f.ColorRange,
			"settings_range": c.settings.ColorRange,
		})
	}

	processed, err := c.pipeline.Process(f)
	if err != nil {
		return err
	}

	si, err := c.spatial.Compute(ctx, processed)
	if err != nil {
		return fmt.Errorf("frame %d: %w", c.state.FrameIndex(), err)
	}

	var (
		ti    float64
		hasTI bool
	)
	if c.status != StateInit {
		ti, err = c.temporal.Compute(c.state.Previous(), processed)
		if err != nil {
			return fmt.Errorf("frame %d: %w", c.state.FrameIndex(), err)
		}
		hasTI = true
	}

	c.result.SI = append(c.result.SI, si)
	if hasTI {
		c.result.TI = append(c.result.TI, ti)
	}
	c.pipeline.Release(c.state.advance(processed))
	c.status = StateStreaming

	c.logFrame(si, ti, hasTI)
	return nil
}

func (c *Calculator) logFrame(si, ti float64, hasTI bool) {
	n := c.state.FrameIndex()
	if c.progressInterval < 1 || n%c.progressInterval != 0 {
		return
	}

	fields := logging.Fields{"frame": n, "si": si}
	if hasTI {
		fields["ti"] = ti
	}
	total := c.maxFrames
	if c.numFrames > 0 && (total == 0 || c.numFrames < total) {
		total = c.numFrames
	}
	if total > 0 {
		fields["total"] = total
		fields["percent"] = fmt.Sprintf("%.1f", 100*float64(n)/float64(total))
	}
	c.logger.Debug("Progress", fields)
}

// Run pulls frames from src until it is exhausted or the frame limit is
// reached. A stage failure returns a nil Result. Cancellation of ctx returns
// the frames completed so far together with ctx.Err().
func (c *Calculator) Run(ctx context.Context, src transcode.FrameSource, inputFile string) (*Result, error) {
	if c.status == StateDone {
		return nil, ErrStreamDone
	}
	c.result.InputFile = inputFile

	logger := c.logger.WithContext(ctx).WithFields(logging.Fields{
		"function":   "Run",
		"input_file": inputFile,
	})
	logger.Info("Starting SI/TI calculation")

	for c.status != StateDone {
		if err := ctx.Err(); err != nil {
			return c.cancelled(logger, err)
		}

		f, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// a source torn down by the cancellation may report its own error
			if ctxErr := ctx.Err(); ctxErr != nil {
				return c.cancelled(logger, ctxErr)
			}
			c.failed = err
			c.status = StateDone
			logger.Error(err, "Frame source failed", logging.Fields{"frame": c.state.FrameIndex()})
			return nil, fmt.Errorf("reading frame %d: %w", c.state.FrameIndex(), err)
		}

		if err := c.Process(ctx, f); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				// the frame was not committed, the prefix is still valid
				return c.cancelled(logger, ctxErr)
			}
			logger.Error(err, "Processing failed", logging.Fields{"frame": c.state.FrameIndex()})
			return nil, err
		}
	}

	c.status = StateDone
	logger.Info("SI/TI calculation finished", logging.Fields{"frames": c.state.FrameIndex()})
	return c.result.clone(), nil
}

func (c *Calculator) cancelled(logger logging.Logger, err error) (*Result, error) {
	c.status = StateDone
	logger.Warn("SI/TI calculation cancelled", logging.Fields{"frames": c.state.FrameIndex()})
	return c.result.clone(), err
}

// Result returns a copy of the values accumulated so far, or nil if a stage
// failed
func (c *Calculator) Result() *Result {
	if c.failed != nil {
		return nil
	}
	return c.result.clone()
}

// Finish marks the stream as complete and returns the final result
func (c *Calculator) Finish() (*Result, error) {
	c.status = StateDone
	if c.failed != nil {
		return nil, c.failed
	}
	return c.result.clone(), nil
}
