package config

import (
	"errors"
	"fmt"
	"math"
)

// Version identifies the pipeline revision written into settings snapshots
const Version = "0.3.0"

// ErrInvalidSettings is returned for settings that violate the pipeline invariants
var ErrInvalidSettings = errors.New("invalid settings")

// CalculationDomain selects the perceptual encoding SI/TI are computed in
type CalculationDomain string

const (
	DomainPQ   CalculationDomain = "pq"
	DomainPU21 CalculationDomain = "pu21"
)

// HDRMode selects the luminance model applied to normalized samples
type HDRMode string

const (
	ModeSDR   HDRMode = "sdr"
	ModeHDR10 HDRMode = "hdr10"
	ModeHLG   HDRMode = "hlg"
)

// ColorRange is the code value convention of the luma samples
type ColorRange string

const (
	RangeLimited ColorRange = "limited"
	RangeFull    ColorRange = "full"
)

// EOTFFunction selects the SDR electro-optical transfer function
type EOTFFunction string

const (
	EOTFBT1886  EOTFFunction = "bt1886"
	EOTFInvSRGB EOTFFunction = "inv_srgb"
)

// PU21Mode selects one of the PU21 parameter sets
type PU21Mode string

const (
	PU21Banding      PU21Mode = "banding"
	PU21BandingGlare PU21Mode = "banding_glare"
	PU21Peaks        PU21Mode = "peaks"
	PU21PeaksGlare   PU21Mode = "peaks_glare"
)

// Defaults
const (
	DefaultCalculationDomain = DomainPQ
	DefaultHDRMode           = ModeSDR
	DefaultBitDepth          = 8
	DefaultColorRange        = RangeLimited
	DefaultEOTFFunction      = EOTFBT1886
	DefaultGamma             = 2.4 // BT.1886
	DefaultPU21Mode          = PU21BandingGlare

	DefaultLMaxSDR = 300.0
	DefaultLMinSDR = 0.1
	DefaultLMaxHDR = 1000.0
	DefaultLMinHDR = 0.01
)

// Settings is the full set of parameters that determines the pipeline.
// A Settings value is treated as immutable once it has passed Validate.
type Settings struct {
	CalculationDomain CalculationDomain `json:"calculation_domain" yaml:"calculation_domain"`
	HDRMode           HDRMode           `json:"hdr_mode" yaml:"hdr_mode"`
	BitDepth          int               `json:"bit_depth" yaml:"bit_depth"`
	ColorRange        ColorRange        `json:"color_range" yaml:"color_range"`
	EOTFFunction      EOTFFunction      `json:"eotf_function" yaml:"eotf_function"`
	Gamma             float64           `json:"gamma" yaml:"gamma"`
	LMax              float64           `json:"l_max" yaml:"l_max"`
	LMin              float64           `json:"l_min" yaml:"l_min"`
	PU21Mode          PU21Mode          `json:"pu21_mode" yaml:"pu21_mode"`
	Legacy            bool              `json:"legacy" yaml:"legacy"`
}

// DefaultLuminance returns the display peak and black luminance used by mode
// when neither was set explicitly.
func DefaultLuminance(mode HDRMode) (lMax, lMin float64) {
	if mode == ModeSDR {
		return DefaultLMaxSDR, DefaultLMinSDR
	}
	return DefaultLMaxHDR, DefaultLMinHDR
}

// Option mutates the settings under construction in NewSettings
type Option func(*builder)

type builder struct {
	s       Settings
	lMaxSet bool
	lMinSet bool
}

func WithCalculationDomain(d CalculationDomain) Option {
	return func(b *builder) { b.s.CalculationDomain = d }
}

func WithHDRMode(m HDRMode) Option {
	return func(b *builder) { b.s.HDRMode = m }
}

func WithBitDepth(depth int) Option {
	return func(b *builder) { b.s.BitDepth = depth }
}

func WithColorRange(r ColorRange) Option {
	return func(b *builder) { b.s.ColorRange = r }
}

func WithEOTFFunction(f EOTFFunction) Option {
	return func(b *builder) { b.s.EOTFFunction = f }
}

func WithGamma(gamma float64) Option {
	return func(b *builder) { b.s.Gamma = gamma }
}

// WithLMax overrides the mode-dependent default peak luminance
func WithLMax(lMax float64) Option {
	return func(b *builder) {
		b.s.LMax = lMax
		b.lMaxSet = true
	}
}

// WithLMin overrides the mode-dependent default black luminance
func WithLMin(lMin float64) Option {
	return func(b *builder) {
		b.s.LMin = lMin
		b.lMinSet = true
	}
}

func WithPU21Mode(m PU21Mode) Option {
	return func(b *builder) { b.s.PU21Mode = m }
}

func WithLegacy(legacy bool) Option {
	return func(b *builder) { b.s.Legacy = legacy }
}

// NewSettings builds validated settings from the defaults and opts.
// The luminance defaults are chosen after all options have been applied, so
// they follow the final HDR mode regardless of option order.
func NewSettings(opts ...Option) (Settings, error) {
	b := &builder{s: Settings{
		CalculationDomain: DefaultCalculationDomain,
		HDRMode:           DefaultHDRMode,
		BitDepth:          DefaultBitDepth,
		ColorRange:        DefaultColorRange,
		EOTFFunction:      DefaultEOTFFunction,
		Gamma:             DefaultGamma,
		PU21Mode:          DefaultPU21Mode,
	}}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}

	lMax, lMin := DefaultLuminance(b.s.HDRMode)
	if !b.lMaxSet {
		b.s.LMax = lMax
	}
	if !b.lMinSet {
		b.s.LMin = lMin
	}

	if err := b.s.Validate(); err != nil {
		return Settings{}, err
	}
	return b.s, nil
}

// DefaultSettings returns the default SDR settings
func DefaultSettings() Settings {
	s, _ := NewSettings()
	return s
}

// Validate checks every field against its allowed values
func (s Settings) Validate() error {
	switch s.CalculationDomain {
	case DomainPQ, DomainPU21:
	default:
		return fmt.Errorf("%w: unknown calculation domain %q", ErrInvalidSettings, s.CalculationDomain)
	}

	switch s.HDRMode {
	case ModeSDR, ModeHDR10, ModeHLG:
	default:
		return fmt.Errorf("%w: unknown hdr mode %q", ErrInvalidSettings, s.HDRMode)
	}

	switch s.BitDepth {
	case 8, 10, 12:
	default:
		return fmt.Errorf("%w: bit depth must be 8, 10 or 12, got %d", ErrInvalidSettings, s.BitDepth)
	}

	switch s.ColorRange {
	case RangeLimited, RangeFull:
	default:
		return fmt.Errorf("%w: unknown color range %q", ErrInvalidSettings, s.ColorRange)
	}

	switch s.EOTFFunction {
	case EOTFBT1886, EOTFInvSRGB:
	default:
		return fmt.Errorf("%w: unknown eotf function %q", ErrInvalidSettings, s.EOTFFunction)
	}

	switch s.PU21Mode {
	case PU21Banding, PU21BandingGlare, PU21Peaks, PU21PeaksGlare:
	default:
		return fmt.Errorf("%w: unknown pu21 mode %q", ErrInvalidSettings, s.PU21Mode)
	}

	if !(s.Gamma > 0) || math.IsInf(s.Gamma, 0) {
		return fmt.Errorf("%w: gamma must be positive, got %v", ErrInvalidSettings, s.Gamma)
	}
	if !(s.LMin >= 0) {
		return fmt.Errorf("%w: l_min must be >= 0, got %v", ErrInvalidSettings, s.LMin)
	}
	if !(s.LMax > s.LMin) || math.IsInf(s.LMax, 0) {
		return fmt.Errorf("%w: l_max (%v) must be greater than l_min (%v)", ErrInvalidSettings, s.LMax, s.LMin)
	}

	return nil
}

// String renders the settings in a compact form for log output
func (s Settings) String() string {
	return fmt.Sprintf("domain=%s mode=%s depth=%d range=%s eotf=%s gamma=%g l_max=%g l_min=%g pu21=%s legacy=%t",
		s.CalculationDomain, s.HDRMode, s.BitDepth, s.ColorRange, s.EOTFFunction,
		s.Gamma, s.LMax, s.LMin, s.PU21Mode, s.Legacy)
}
