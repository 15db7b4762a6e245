// Package luminance converts normalized signal values to absolute display
// luminance (cd/m²) for SDR, HDR10 (PQ) and HLG content.
package luminance

import (
	"fmt"

	"github.com/RyanBlaney/sonido-siti/algorithms/common"
	"github.com/RyanBlaney/sonido-siti/config"
)

// Func maps a normalized value in [0,1] to absolute luminance
type Func func(v float64) float64

// Mapper applies the luminance model selected by the settings.
// The model is chosen once in NewMapper; Map never re-dispatches.
type Mapper struct {
	mode  config.HDRMode
	eotf  config.EOTFFunction
	black float64
	peak  float64
	fn    Func
}

// NewMapper binds the luminance model for s
func NewMapper(s config.Settings) (*Mapper, error) {
	m := &Mapper{mode: s.HDRMode, eotf: s.EOTFFunction}

	switch s.HDRMode {
	case config.ModeSDR:
		m.black, m.peak = s.LMin, s.LMax
		switch s.EOTFFunction {
		case config.EOTFBT1886:
			// unit white and zero black, the display range is applied afterwards
			gamma, lMax, lMin := s.Gamma, s.LMax, s.LMin
			m.fn = func(v float64) float64 { return lMin + (lMax-lMin)*BT1886EOTF(v, gamma, 1, 0) }
		case config.EOTFInvSRGB:
			lMax, lMin := s.LMax, s.LMin
			m.fn = func(v float64) float64 { return lMin + (lMax-lMin)*SRGBToLinear(v) }
		default:
			return nil, fmt.Errorf("%w: unknown eotf function %q", config.ErrInvalidSettings, s.EOTFFunction)
		}

	case config.ModeHDR10:
		// PQ is display independent, l_max/l_min do not apply
		m.black, m.peak = 0, PQMaxLuminance
		m.fn = PQEOTF

	case config.ModeHLG:
		m.black, m.peak = s.LMin, s.LMax
		lMax, lMin := s.LMax, s.LMin
		m.fn = func(v float64) float64 { return HLGEOTF(v, lMax, lMin) }

	default:
		return nil, fmt.Errorf("%w: unknown hdr mode %q", config.ErrInvalidSettings, s.HDRMode)
	}

	return m, nil
}

// Map converts a normalized value to absolute luminance within [Black, Peak]
func (m *Mapper) Map(v float64) float64 {
	return common.Clamp(m.fn(v), m.black, m.peak)
}

// Black returns the luminance of normalized value 0
func (m *Mapper) Black() float64 { return m.black }

// Peak returns the luminance of normalized value 1
func (m *Mapper) Peak() float64 { return m.peak }

// Mode returns the HDR mode the mapper was built for
func (m *Mapper) Mode() config.HDRMode { return m.mode }
