package common

import "fmt"

// Plane is a single-channel image of float64 samples stored row-major.
// A processed frame is a Plane whose values live in the calculation domain.
type Plane struct {
	Width  int
	Height int
	Pix    []float64
}

// NewPlane allocates a zeroed width x height plane
func NewPlane(width, height int) *Plane {
	return &Plane{
		Width:  width,
		Height: height,
		Pix:    make([]float64, width*height),
	}
}

// NewPlaneFromValues wraps pix as a plane after checking the dimensions agree
func NewPlaneFromValues(width, height int, pix []float64) (*Plane, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid plane dimensions %dx%d", width, height)
	}
	if len(pix) != width*height {
		return nil, fmt.Errorf("plane data has %d samples, expected %d", len(pix), width*height)
	}
	return &Plane{Width: width, Height: height, Pix: pix}, nil
}

// Row returns row y as a sub-slice of Pix
func (p *Plane) Row(y int) []float64 {
	return p.Pix[y*p.Width : (y+1)*p.Width]
}

// SameSize reports whether both planes have identical dimensions
func (p *Plane) SameSize(o *Plane) bool {
	return o != nil && p.Width == o.Width && p.Height == o.Height
}
