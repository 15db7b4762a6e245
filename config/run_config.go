package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// RunConfig is the optional YAML configuration file for a run. Every field is
// optional; only fields present in the file take part in building Settings.
type RunConfig struct {
	CalculationDomain *CalculationDomain `yaml:"calculation_domain,omitempty"`
	HDRMode           *HDRMode           `yaml:"hdr_mode,omitempty"`
	BitDepth          *int               `yaml:"bit_depth,omitempty"`
	ColorRange        *ColorRange        `yaml:"color_range,omitempty"`
	EOTFFunction      *EOTFFunction      `yaml:"eotf_function,omitempty"`
	Gamma             *float64           `yaml:"gamma,omitempty"`
	LMax              *float64           `yaml:"l_max,omitempty"`
	LMin              *float64           `yaml:"l_min,omitempty"`
	PU21Mode          *PU21Mode          `yaml:"pu21_mode,omitempty"`
	Legacy            *bool              `yaml:"legacy,omitempty"`

	NumFrames      int     `yaml:"num_frames,omitempty"`
	MaxFrames      int     `yaml:"max_frames,omitempty"`
	RangeTolerance float64 `yaml:"range_tolerance,omitempty"`
	Workers        int     `yaml:"workers,omitempty"`
	Format         string  `yaml:"format,omitempty"` // json, csv
	FFmpegPath     string  `yaml:"ffmpeg_path,omitempty"`
	FFprobePath    string  `yaml:"ffprobe_path,omitempty"`
}

// LoadRunConfig reads and parses a YAML run configuration file
func LoadRunConfig(path string) (*RunConfig, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg RunConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidSettings, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks the run options that are not part of Settings.
// Settings fields are validated once the final Settings value is built.
func (c *RunConfig) Validate() error {
	if c.NumFrames < 0 || c.NumFrames == 1 {
		return fmt.Errorf("%w: num_frames must be >= 2, got %d", ErrInvalidSettings, c.NumFrames)
	}
	if c.MaxFrames < 0 {
		return fmt.Errorf("%w: max_frames must not be negative", ErrInvalidSettings)
	}
	if c.RangeTolerance < 0 || c.RangeTolerance > 1 {
		return fmt.Errorf("%w: range_tolerance must be within [0, 1]", ErrInvalidSettings)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative", ErrInvalidSettings)
	}
	switch c.Format {
	case "", "json", "csv":
	default:
		return fmt.Errorf("%w: unknown output format %q", ErrInvalidSettings, c.Format)
	}
	return nil
}

// Options converts the settings fields present in the file into Options
func (c *RunConfig) Options() []Option {
	if c == nil {
		return nil
	}

	var opts []Option
	if c.CalculationDomain != nil {
		opts = append(opts, WithCalculationDomain(*c.CalculationDomain))
	}
	if c.HDRMode != nil {
		opts = append(opts, WithHDRMode(*c.HDRMode))
	}
	if c.BitDepth != nil {
		opts = append(opts, WithBitDepth(*c.BitDepth))
	}
	if c.ColorRange != nil {
		opts = append(opts, WithColorRange(*c.ColorRange))
	}
	if c.EOTFFunction != nil {
		opts = append(opts, WithEOTFFunction(*c.EOTFFunction))
	}
	if c.Gamma != nil {
		opts = append(opts, WithGamma(*c.Gamma))
	}
	if c.LMax != nil {
		opts = append(opts, WithLMax(*c.LMax))
	}
	if c.LMin != nil {
		opts = append(opts, WithLMin(*c.LMin))
	}
	if c.PU21Mode != nil {
		opts = append(opts, WithPU21Mode(*c.PU21Mode))
	}
	if c.Legacy != nil {
		opts = append(opts, WithLegacy(*c.Legacy))
	}
	return opts
}
