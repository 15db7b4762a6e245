package siti

import (
	"fmt"

	"github.com/RyanBlaney/sonido-siti/algorithms/common"
	"github.com/RyanBlaney/sonido-siti/algorithms/luminance"
	"github.com/RyanBlaney/sonido-siti/algorithms/normalize"
	"github.com/RyanBlaney/sonido-siti/algorithms/perceptual"
	"github.com/RyanBlaney/sonido-siti/config"
	"github.com/RyanBlaney/sonido-siti/transcode"
)

// legacyScale maps normalized values onto the 0..255 reporting scale
const legacyScale = 255.0

// Stage converts a normalized value in [0,1] to the calculation domain
type Stage func(v float64) float64

// Pipeline turns raw frames into processed planes. The conversion chain is
// chosen once from the settings and tabulated per code value, so every
// frame goes through a single table lookup per sample.
type Pipeline struct {
	settings   config.Settings
	normalizer *normalize.Normalizer
	stage      Stage
	lut        []float64
	pool       *common.PlanePool
}

// NewPipeline binds the stages for s. tolerance is the accepted fraction of
// out-of-range samples for limited range input.
func NewPipeline(s config.Settings, tolerance float64) (*Pipeline, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if tolerance < 0 || tolerance > 1 {
		return nil, fmt.Errorf("%w: range tolerance %v outside [0, 1]", config.ErrInvalidSettings, tolerance)
	}

	n, err := normalize.NewNormalizer(s.BitDepth, s.ColorRange)
	if err != nil {
		return nil, err
	}
	n.MismatchTolerance = tolerance

	stage, err := bindStage(s)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		settings:   s,
		normalizer: n,
		stage:      stage,
		pool:       common.NewPlanePool(2),
	}
	p.lut = make([]float64, 1<<s.BitDepth)
	for code := range p.lut {
		p.lut[code] = stage(common.Clamp(n.Normalize(code), 0, 1))
	}
	return p, nil
}

// bindStage resolves the legacy or luminance+perceptual chain
func bindStage(s config.Settings) (Stage, error) {
	if s.Legacy {
		return legacyStage, nil
	}

	mapper, err := luminance.NewMapper(s)
	if err != nil {
		return nil, err
	}
	encoder, err := perceptual.NewEncoder(s)
	if err != nil {
		return nil, err
	}
	return func(v float64) float64 {
		return encoder.Encode(mapper.Map(v))
	}, nil
}

func legacyStage(v float64) float64 {
	return v * legacyScale
}

// Stage returns the bound conversion for a normalized value
func (p *Pipeline) Stage() Stage { return p.stage }

// Process validates f against the settings and returns its processed plane
func (p *Pipeline) Process(f *transcode.Frame) (*common.Plane, error) {
	if f == nil {
		return nil, fmt.Errorf("%w: nil frame", transcode.ErrUnsupportedFrameFormat)
	}
	if f.BitDepth != p.settings.BitDepth {
		return nil, fmt.Errorf("%w: frame %d is %d-bit, settings expect %d-bit",
			transcode.ErrUnsupportedFrameFormat, f.Index, f.BitDepth, p.settings.BitDepth)
	}
	if f.Width <= 0 || f.Height <= 0 || len(f.Luma) != f.Width*f.Height {
		return nil, fmt.Errorf("%w: frame %d has %d luma samples for %dx%d",
			transcode.ErrUnsupportedFrameFormat, f.Index, len(f.Luma), f.Width, f.Height)
	}

	if err := p.normalizer.Validate(f.Luma); err != nil {
		return nil, fmt.Errorf("frame %d: %w", f.Index, err)
	}

	plane := p.pool.Get(f.Width, f.Height)
	for i, code := range f.Luma {
		plane.Pix[i] = p.lut[code]
	}
	return plane, nil
}

// Release returns a plane produced by Process for reuse. The caller must not
// touch the plane afterwards.
func (p *Pipeline) Release(plane *common.Plane) {
	p.pool.Put(plane)
}
