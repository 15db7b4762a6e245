package perceptual

import (
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-siti/config"
)

// PU21 is valid for absolute luminance in this interval (cd/m²)
const (
	PU21MinLuminance = 0.005
	PU21MaxLuminance = 10000.0
)

// PU21Params holds the seven fitted coefficients of a PU21 variant
type PU21Params [7]float64

// Coefficients from Mantiuk & Azimi, "PU21: A novel perceptually uniform
// encoding for adapting existing quality metrics for HDR" (PCS 2021).
var pu21Params = map[config.PU21Mode]PU21Params{
	config.PU21Banding:      {1.070275272, 0.4088273932, 0.153224308, 0.2520326168, 1.063512885, 1.14115047, 521.4527484},
	config.PU21BandingGlare: {0.353487901, 0.3734658629, 8.277049286e-05, 0.9062562627, 0.09150303166, 0.9099517204, 596.3148142},
	config.PU21Peaks:        {1.043882782, 0.6459495343, 0.3194584211, 0.374025247, 1.114783422, 1.095360363, 384.9217577},
	config.PU21PeaksGlare:   {816.885024, 1479.463946, 0.001253215609, 0.9329636822, 0.06746643971, 1.573435413, 419.6006374},
}

// LookupPU21Params returns the coefficients for mode
func LookupPU21Params(mode config.PU21Mode) (PU21Params, error) {
	p, ok := pu21Params[mode]
	if !ok {
		return PU21Params{}, fmt.Errorf("%w: unknown pu21 mode %q", config.ErrInvalidSettings, mode)
	}
	return p, nil
}

// PU21Encode maps absolute luminance to PU21 units. Luminance is clamped
// to [PU21MinLuminance, PU21MaxLuminance]; 100 cd/m² lands near 256.
func PU21Encode(l float64, p PU21Params) float64 {
	l = math.Min(math.Max(l, PU21MinLuminance), PU21MaxLuminance)
	lp := math.Pow(l, p[3])
	return p[6] * (math.Pow((p[0]+p[1]*lp)/(1+p[2]*lp), p[4]) - p[5])
}
