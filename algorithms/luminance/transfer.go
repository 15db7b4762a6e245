package luminance

import "math"

// SMPTE ST 2084 (PQ) constants
const (
	pqM1 = 2610.0 / 16384.0        // 0.1593017578125
	pqM2 = 2523.0 / 4096.0 * 128.0 // 78.84375
	pqC1 = 3424.0 / 4096.0         // 0.8359375
	pqC2 = 2413.0 / 4096.0 * 32.0  // 18.8515625
	pqC3 = 2392.0 / 4096.0 * 32.0  // 18.6875

	// PQMaxLuminance is the absolute luminance of PQ code value 1.0 in cd/m²
	PQMaxLuminance = 10000.0
)

// ITU-R BT.2100 HLG constants
const (
	hlgA = 0.17883277
	hlgB = 1 - 4*hlgA
)

var hlgC = 0.5 - hlgA*math.Log(4*hlgA)

// PQEOTF maps a normalized PQ code value to absolute luminance in cd/m²
func PQEOTF(v float64) float64 {
	v = clamp01(v)
	p := math.Pow(v, 1/pqM2)
	num := math.Max(p-pqC1, 0)
	den := pqC2 - pqC3*p
	return math.Min(PQMaxLuminance*math.Pow(num/den, 1/pqM1), PQMaxLuminance)
}

// PQInverseEOTF maps absolute luminance in cd/m² to a normalized PQ code value
func PQInverseEOTF(l float64) float64 {
	y := clamp01(l / PQMaxLuminance)
	ym := math.Pow(y, pqM1)
	return math.Pow((pqC1+pqC2*ym)/(1+pqC3*ym), pqM2)
}

// BT1886EOTF is the ITU-R BT.1886 reference EOTF. It maps a normalized
// signal to absolute luminance with L(0) = lMin and L(1) = lMax.
func BT1886EOTF(v, gamma, lMax, lMin float64) float64 {
	v = clamp01(v)
	wg := math.Pow(lMax, 1/gamma)
	bg := math.Pow(lMin, 1/gamma)
	a := math.Pow(wg-bg, gamma)
	b := bg / (wg - bg)
	return a * math.Pow(math.Max(v+b, 0), gamma)
}

// SRGBToLinear is the inverse sRGB transfer (IEC 61966-2-1), [0,1] -> [0,1]
func SRGBToLinear(v float64) float64 {
	v = clamp01(v)
	if v <= 0.04045 {
		return v / 12.92
	}
	return math.Pow((v+0.055)/1.055, 2.4)
}

// HLGInverseOETF maps a non-linear HLG signal to normalized scene light
func HLGInverseOETF(e float64) float64 {
	e = clamp01(e)
	if e <= 0.5 {
		return e * e / 3
	}
	return (math.Exp((e-hlgC)/hlgA) + hlgB) / 12
}

// HLGSystemGamma returns the OOTF system gamma for a display of peak
// luminance lMax. Outside the 400..2000 cd/m² range the extended model
// from ITU-R BT.2390 keeps gamma positive.
func HLGSystemGamma(lMax float64) float64 {
	if lMax >= 400 && lMax <= 2000 {
		return 1.2 + 0.42*math.Log10(lMax/1000)
	}
	return 1.2 * math.Pow(1.111, math.Log2(lMax/1000))
}

// HLGEOTF maps an achromatic HLG signal to display luminance: the inverse
// OETF gives scene light, the OOTF system gamma is applied, and the result
// is scaled affinely onto [lMin, lMax].
func HLGEOTF(v, lMax, lMin float64) float64 {
	scene := HLGInverseOETF(v)
	return lMin + (lMax-lMin)*math.Pow(scene, HLGSystemGamma(lMax))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
