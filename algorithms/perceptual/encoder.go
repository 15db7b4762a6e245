// Package perceptual encodes absolute luminance into a perceptually
// uniform domain (PQ or PU21) before SI/TI are computed.
package perceptual

import (
	"fmt"

	"github.com/RyanBlaney/sonido-siti/algorithms/luminance"
	"github.com/RyanBlaney/sonido-siti/config"
)

// PQScale maps the normalized PQ signal onto 0..255
const PQScale = 255.0

// PQEncode maps absolute luminance to the PQ domain scaled to 0..255
func PQEncode(l float64) float64 {
	return PQScale * luminance.PQInverseEOTF(l)
}

// Encoder applies the perceptual encoding selected by the settings
type Encoder struct {
	domain config.CalculationDomain
	fn     func(l float64) float64
}

// NewEncoder binds the encoding for s.CalculationDomain (and s.PU21Mode)
func NewEncoder(s config.Settings) (*Encoder, error) {
	e := &Encoder{domain: s.CalculationDomain}

	switch s.CalculationDomain {
	case config.DomainPQ:
		e.fn = PQEncode
	case config.DomainPU21:
		params, err := LookupPU21Params(s.PU21Mode)
		if err != nil {
			return nil, err
		}
		e.fn = func(l float64) float64 { return PU21Encode(l, params) }
	default:
		return nil, fmt.Errorf("%w: unknown calculation domain %q", config.ErrInvalidSettings, s.CalculationDomain)
	}

	return e, nil
}

// Encode converts absolute luminance (cd/m²) to the perceptual domain
func (e *Encoder) Encode(l float64) float64 {
	return e.fn(l)
}

// Domain returns the calculation domain the encoder was built for
func (e *Encoder) Domain() config.CalculationDomain { return e.domain }
