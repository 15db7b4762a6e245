// Package normalize maps integer luma code values onto [0, 1] according to
// the bit depth and the declared code value range.
package normalize

import (
	"errors"
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-siti/algorithms/common"
	"github.com/RyanBlaney/sonido-siti/config"
)

// ErrRangeMismatch is returned when the samples contradict the declared range
var ErrRangeMismatch = errors.New("color range mismatch")

// DefaultMismatchTolerance is the fraction of samples allowed outside the
// nominal limited range before the plane is rejected. Zero rejects a plane
// with any sample outside [footroom, headroom].
const DefaultMismatchTolerance = 0.0

// Normalizer converts raw luma code values to normalized floats
type Normalizer struct {
	bitDepth   int
	colorRange config.ColorRange

	// MismatchTolerance is the accepted fraction (0..1) of out-of-range
	// samples in a plane declared as limited range.
	MismatchTolerance float64

	maxCode  float64
	footroom float64
	headroom float64
}

// NewNormalizer creates a normalizer for the given bit depth and range
func NewNormalizer(bitDepth int, colorRange config.ColorRange) (*Normalizer, error) {
	switch bitDepth {
	case 8, 10, 12:
	default:
		return nil, fmt.Errorf("%w: unsupported bit depth %d", config.ErrInvalidSettings, bitDepth)
	}
	switch colorRange {
	case config.RangeLimited, config.RangeFull:
	default:
		return nil, fmt.Errorf("%w: unknown color range %q", config.ErrInvalidSettings, colorRange)
	}

	scale := math.Ldexp(1, bitDepth-8)
	return &Normalizer{
		bitDepth:          bitDepth,
		colorRange:        colorRange,
		MismatchTolerance: DefaultMismatchTolerance,
		maxCode:           math.Ldexp(1, bitDepth) - 1,
		footroom:          16 * scale,
		headroom:          235 * scale,
	}, nil
}

// Footroom returns the code value of nominal black in limited range
func (n *Normalizer) Footroom() float64 { return n.footroom }

// Headroom returns the code value of nominal white in limited range
func (n *Normalizer) Headroom() float64 { return n.headroom }

// Normalize maps a single raw code value to [0, 1] without validation or
// clamping. Limited range values outside the nominal range fall outside [0, 1].
func (n *Normalizer) Normalize(raw int) float64 {
	if n.colorRange == config.RangeFull {
		return float64(raw) / n.maxCode
	}
	return (float64(raw) - n.footroom) / (n.headroom - n.footroom)
}

// Denormalize maps a normalized value back to the nearest code value
func (n *Normalizer) Denormalize(v float64) int {
	var code float64
	if n.colorRange == config.RangeFull {
		code = v * n.maxCode
	} else {
		code = v*(n.headroom-n.footroom) + n.footroom
	}
	return int(math.Round(common.Clamp(code, 0, n.maxCode)))
}

// Validate checks a plane of raw samples against the declared range.
// It fails if a sample exceeds the bit depth, or if the plane is declared
// limited range and more than MismatchTolerance of its samples fall outside
// the nominal footroom/headroom interval.
func (n *Normalizer) Validate(samples []uint16) error {
	if len(samples) == 0 {
		return nil
	}

	outside := 0
	minCode, maxCode := uint16(math.MaxUint16), uint16(0)
	for _, s := range samples {
		if s < minCode {
			minCode = s
		}
		if s > maxCode {
			maxCode = s
		}
		if float64(s) < n.footroom || float64(s) > n.headroom {
			outside++
		}
	}

	if float64(maxCode) > n.maxCode {
		return fmt.Errorf("%w: sample value %d exceeds %d-bit range", ErrRangeMismatch, maxCode, n.bitDepth)
	}

	if n.colorRange != config.RangeLimited {
		return nil
	}

	fraction := float64(outside) / float64(len(samples))
	if fraction > n.MismatchTolerance {
		return fmt.Errorf("%w: input appears to be full range (min %d, max %d, %.2f%% of samples outside [%g, %g]) but was declared limited range",
			ErrRangeMismatch, minCode, maxCode, fraction*100, n.footroom, n.headroom)
	}
	return nil
}

// NormalizePlane validates samples and writes the normalized, clamped
// values into dst. dst must have the same length as samples.
func (n *Normalizer) NormalizePlane(samples []uint16, dst []float64) error {
	if len(dst) != len(samples) {
		return fmt.Errorf("destination has %d samples, source has %d", len(dst), len(samples))
	}
	if err := n.Validate(samples); err != nil {
		return err
	}

	for i, s := range samples {
		dst[i] = common.Clamp(n.Normalize(int(s)), 0, 1)
	}
	return nil
}
