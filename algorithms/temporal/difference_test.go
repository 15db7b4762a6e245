package temporal

import (
	"errors"
	"math"
	"testing"

	"github.com/RyanBlaney/sonido-siti/algorithms/common"
)

func filled(w, h int, v float64) *common.Plane {
	p := common.NewPlane(w, h)
	for i := range p.Pix {
		p.Pix[i] = v
	}
	return p
}

func TestComputeUniformShiftIsZero(t *testing.T) {
	e := NewEngine()
	ti, err := e.Compute(filled(8, 6, 10), filled(8, 6, 42))
	if err != nil {
		t.Fatal(err)
	}
	if ti != 0 {
		t.Fatalf("uniform brightness change: TI = %v, want 0", ti)
	}
}

func TestComputeIdenticalFrames(t *testing.T) {
	p := common.NewPlane(4, 4)
	for i := range p.Pix {
		p.Pix[i] = float64(i)
	}
	ti, err := NewEngine().Compute(p, p)
	if err != nil {
		t.Fatal(err)
	}
	if ti != 0 {
		t.Fatalf("TI of identical frames = %v", ti)
	}
}

func TestComputeHalfChanged(t *testing.T) {
	// half the pixels move by d, the other half stay: std = d/2
	prev := filled(4, 2, 0)
	cur := filled(4, 2, 0)
	for i := 0; i < 4; i++ {
		cur.Pix[i] = 10
	}

	ti, err := NewEngine().Compute(prev, cur)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(ti-5) > 1e-12 {
		t.Fatalf("TI = %v, want 5", ti)
	}
}

func TestComputeDimensionMismatch(t *testing.T) {
	e := NewEngine()
	if _, err := e.Compute(filled(4, 4, 0), filled(4, 5, 0)); !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
	if _, err := e.Compute(nil, filled(4, 4, 0)); !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch for nil plane, got %v", err)
	}
}

func TestComputeReusesBufferAcrossSizes(t *testing.T) {
	e := NewEngine()
	if _, err := e.Compute(filled(16, 16, 0), filled(16, 16, 1)); err != nil {
		t.Fatal(err)
	}
	prev, cur := filled(2, 2, 0), filled(2, 2, 0)
	cur.Pix[0] = 4
	ti, err := e.Compute(prev, cur)
	if err != nil {
		t.Fatal(err)
	}
	// values {4,0,0,0}: mean 1, variance 3
	if math.Abs(ti-math.Sqrt(3)) > 1e-12 {
		t.Fatalf("TI = %v, want sqrt(3)", ti)
	}
}
