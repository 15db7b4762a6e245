package normalize

import (
	"errors"
	"math"
	"testing"

	"github.com/RyanBlaney/sonido-siti/config"
)

func TestNormalizeBoundaries(t *testing.T) {
	tests := []struct {
		depth int
		rng   config.ColorRange
		raw   int
		want  float64
	}{
		{depth: 8, rng: config.RangeLimited, raw: 16, want: 0},
		{depth: 8, rng: config.RangeLimited, raw: 235, want: 1},
		{depth: 10, rng: config.RangeLimited, raw: 64, want: 0},
		{depth: 10, rng: config.RangeLimited, raw: 940, want: 1},
		{depth: 12, rng: config.RangeLimited, raw: 256, want: 0},
		{depth: 12, rng: config.RangeLimited, raw: 3760, want: 1},
		{depth: 8, rng: config.RangeFull, raw: 0, want: 0},
		{depth: 8, rng: config.RangeFull, raw: 255, want: 1},
		{depth: 10, rng: config.RangeFull, raw: 1023, want: 1},
		{depth: 12, rng: config.RangeFull, raw: 4095, want: 1},
	}
	for _, tt := range tests {
		n, err := NewNormalizer(tt.depth, tt.rng)
		if err != nil {
			t.Fatalf("NewNormalizer(%d, %s): %v", tt.depth, tt.rng, err)
		}
		if got := n.Normalize(tt.raw); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("%d-bit %s Normalize(%d) = %v, want %v", tt.depth, tt.rng, tt.raw, got, tt.want)
		}
	}
}

func TestNormalizeRoundTrip(t *testing.T) {
	for _, depth := range []int{8, 10, 12} {
		for _, rng := range []config.ColorRange{config.RangeLimited, config.RangeFull} {
			n, err := NewNormalizer(depth, rng)
			if err != nil {
				t.Fatal(err)
			}

			lo, hi := 0, (1<<depth)-1
			if rng == config.RangeLimited {
				lo, hi = int(n.Footroom()), int(n.Headroom())
			}
			for raw := lo; raw <= hi; raw++ {
				back := n.Denormalize(n.Normalize(raw))
				if d := back - raw; d < -1 || d > 1 {
					t.Fatalf("%d-bit %s: raw %d -> %d (diff %d)", depth, rng, raw, back, d)
				}
			}
		}
	}
}

func TestValidateRejectsFullRangeDeclaredLimited(t *testing.T) {
	n, err := NewNormalizer(8, config.RangeLimited)
	if err != nil {
		t.Fatal(err)
	}

	// ramp across the full 0..255 code range
	samples := make([]uint16, 256)
	for i := range samples {
		samples[i] = uint16(i)
	}

	if err := n.Validate(samples); !errors.Is(err, ErrRangeMismatch) {
		t.Fatalf("expected ErrRangeMismatch, got %v", err)
	}

	full, err := NewNormalizer(8, config.RangeFull)
	if err != nil {
		t.Fatal(err)
	}
	if err := full.Validate(samples); err != nil {
		t.Fatalf("full range validation failed: %v", err)
	}
}

func TestValidateTolerance(t *testing.T) {
	n, err := NewNormalizer(8, config.RangeLimited)
	if err != nil {
		t.Fatal(err)
	}

	samples := make([]uint16, 100)
	for i := range samples {
		samples[i] = 128
	}
	samples[0] = 2
	samples[1] = 250

	if err := n.Validate(samples); !errors.Is(err, ErrRangeMismatch) {
		t.Fatalf("strict tolerance: expected ErrRangeMismatch, got %v", err)
	}

	n.MismatchTolerance = 0.05
	if err := n.Validate(samples); err != nil {
		t.Fatalf("5%% tolerance: unexpected error %v", err)
	}

	dst := make([]float64, len(samples))
	if err := n.NormalizePlane(samples, dst); err != nil {
		t.Fatalf("NormalizePlane: %v", err)
	}
	if dst[0] != 0 || dst[1] != 1 {
		t.Fatalf("out-of-range samples not clamped: %v, %v", dst[0], dst[1])
	}
}

func TestValidateRejectsSamplesAboveBitDepth(t *testing.T) {
	n, err := NewNormalizer(10, config.RangeFull)
	if err != nil {
		t.Fatal(err)
	}
	if err := n.Validate([]uint16{0, 512, 1024}); !errors.Is(err, ErrRangeMismatch) {
		t.Fatalf("expected ErrRangeMismatch, got %v", err)
	}
}

func TestNewNormalizerInvalid(t *testing.T) {
	if _, err := NewNormalizer(16, config.RangeFull); !errors.Is(err, config.ErrInvalidSettings) {
		t.Fatalf("expected ErrInvalidSettings for bit depth, got %v", err)
	}
	if _, err := NewNormalizer(8, "pc"); !errors.Is(err, config.ErrInvalidSettings) {
		t.Fatalf("expected ErrInvalidSettings for range, got %v", err)
	}
}
