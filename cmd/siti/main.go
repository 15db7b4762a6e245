// Command siti computes per-frame Spatial Information (SI) and Temporal
// Information (TI) of a video following ITU-T P.910.
//
// Usage:
//
//	siti [flags] <input>
//	siti json-to-csv <input.json> <output.csv>
//
// Y4M and raw planar YUV inputs are read directly. Everything else is
// decoded through ffmpeg, which must then be installed.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/RyanBlaney/sonido-siti/config"
	"github.com/RyanBlaney/sonido-siti/logging"
	"github.com/RyanBlaney/sonido-siti/siti"
	"github.com/RyanBlaney/sonido-siti/transcode"
)

// Exit codes
const (
	exitOK                     = 0
	exitFailure                = 1
	exitInvalidSettings        = 2
	exitUnsupportedFrameFormat = 3
	exitRangeMismatch          = 4
	exitDimensionMismatch      = 5
	exitUnsupportedFrameSize   = 6
)

type cliOptions struct {
	numFrames int
	maxFrames int

	domain     string
	hdrMode    string
	bitDepth   int
	colorRange string
	eotf       string
	gamma      float64
	lMax       float64
	lMin       float64
	pu21Mode   string
	legacy     bool

	settingsPath string
	configPath   string
	format       string
	output       string
	summary      bool

	width  int
	height int
	pixFmt string

	rangeTolerance float64
	workers        int
	ffmpegPath     string
	ffprobePath    string

	verbose  bool
	quiet    bool
	logLevel string
	version  bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func newFlagSet(o *cliOptions) *pflag.FlagSet {
	fs := pflag.NewFlagSet("siti", pflag.ContinueOnError)
	fs.SortFlags = false

	fs.IntVarP(&o.numFrames, "num-frames", "n", 0, "Number of frames to process (0 = all, otherwise at least 2)")
	fs.IntVar(&o.maxFrames, "max-frames", 0, "Expected number of frames, used for progress only")

	fs.StringVarP(&o.domain, "calculation-domain", "c", string(config.DefaultCalculationDomain), "Calculation domain: pq, pu21")
	fs.StringVarP(&o.hdrMode, "hdr-mode", "m", string(config.DefaultHDRMode), "HDR mode: sdr, hdr10, hlg")
	fs.IntVarP(&o.bitDepth, "bit-depth", "b", config.DefaultBitDepth, "Bit depth: 8, 10, 12, overrides the input's")
	fs.StringVarP(&o.colorRange, "color-range", "r", string(config.DefaultColorRange), "Color range: limited, full, overrides the input's")
	fs.StringVarP(&o.eotf, "eotf-function", "e", string(config.DefaultEOTFFunction), "SDR EOTF: bt1886, inv_srgb")
	fs.Float64VarP(&o.gamma, "gamma", "g", config.DefaultGamma, "BT.1886 gamma")
	fs.Float64Var(&o.lMax, "l-max", 0, "Display peak luminance in cd/m² (default: 300 for sdr, 1000 otherwise)")
	fs.Float64Var(&o.lMin, "l-min", 0, "Display black luminance in cd/m² (default: 0.1 for sdr, 0.01 otherwise)")
	fs.StringVar(&o.pu21Mode, "pu21-mode", string(config.DefaultPU21Mode), "PU21 parameter set: banding, banding_glare, peaks, peaks_glare")
	fs.BoolVar(&o.legacy, "legacy", false, "Use the legacy 0..255 luma scale instead of luminance encoding")

	fs.StringVarP(&o.settingsPath, "settings", "s", "", "Reuse the settings of a previous result or settings JSON file")
	fs.StringVar(&o.configPath, "config", "", "YAML run configuration file")
	fs.StringVarP(&o.format, "format", "f", siti.FormatJSON, "Output format: json, csv")
	fs.StringVarP(&o.output, "output", "o", "", "Output file (default: stdout)")
	fs.BoolVar(&o.summary, "summary", false, "Print sequence statistics to stderr")

	fs.IntVar(&o.width, "width", 0, "Frame width of raw YUV input")
	fs.IntVar(&o.height, "height", 0, "Frame height of raw YUV input")
	fs.StringVar(&o.pixFmt, "pix-fmt", "", "Pixel format of raw YUV input, e.g. yuv420p, yuv420p10le")

	fs.Float64Var(&o.rangeTolerance, "range-tolerance", 0, "Accepted fraction of out-of-range samples for limited range input")
	fs.IntVar(&o.workers, "workers", 0, "Parallel workers for the spatial pass (0 = number of CPUs)")
	fs.StringVar(&o.ffmpegPath, "ffmpeg-path", "ffmpeg", "Path to the ffmpeg binary")
	fs.StringVar(&o.ffprobePath, "ffprobe-path", "ffprobe", "Path to the ffprobe binary")

	fs.BoolVarP(&o.verbose, "verbose", "v", false, "Enable debug logging")
	fs.BoolVarP(&o.quiet, "quiet", "q", false, "Only log warnings and errors")
	fs.StringVar(&o.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides -v and -q)")
	fs.BoolVar(&o.version, "version", false, "Print the version and exit")

	return fs
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) > 0 && args[0] == "json-to-csv" {
		return runJSONToCSV(args[1:], stderr)
	}

	var o cliOptions
	fs := newFlagSet(&o)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: siti [flags] <input>\n       siti json-to-csv <input.json> <output.csv>\n\nFlags:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		return exitInvalidSettings
	}
	if o.version {
		fmt.Fprintln(stdout, config.Version)
		return exitOK
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return exitInvalidSettings
	}

	logger, err := newLogger(fs, &o, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "siti: %v\n", err)
		return exitInvalidSettings
	}
	logging.SetGlobalLogger(logger)

	if err := analyze(ctx, fs, &o, fs.Arg(0), stdout, stderr, logger); err != nil {
		logger.Error(err, "SI/TI calculation failed", logging.Fields{"input_file": fs.Arg(0)})
		return exitCode(err)
	}
	return exitOK
}

// newLogger sends all log output to stderr so stdout stays free for results
func newLogger(fs *pflag.FlagSet, o *cliOptions, stderr io.Writer) (*logging.DefaultLogger, error) {
	logger := logging.NewDefaultLoggerTo(stderr, stderr)
	switch {
	case fs.Changed("log-level"):
		level, err := logging.ParseLevel(o.logLevel)
		if err != nil {
			return nil, err
		}
		logger.SetLevel(level)
	case o.verbose:
		logger.SetLevel(logging.DebugLevel)
	case o.quiet:
		logger.SetLevel(logging.WarnLevel)
	}
	return logger, nil
}

func analyze(ctx context.Context, fs *pflag.FlagSet, o *cliOptions, input string, stdout, stderr io.Writer, logger logging.Logger) error {
	rc := &config.RunConfig{}
	if o.configPath != "" {
		loaded, err := config.LoadRunConfig(o.configPath)
		if err != nil {
			return err
		}
		rc = loaded
	}
	applyRunConfig(fs, o, rc)

	if !fs.Changed("format") && rc.Format == "" && strings.EqualFold(filepath.Ext(o.output), ".csv") {
		o.format = siti.FormatCSV
	}
	if o.format != siti.FormatJSON && o.format != siti.FormatCSV {
		return fmt.Errorf("%w: unknown output format %q", config.ErrInvalidSettings, o.format)
	}

	decCfg := transcode.DefaultDecoderConfig()
	decCfg.FFmpegPath = o.ffmpegPath
	decCfg.FFprobePath = o.ffprobePath
	decCfg.MaxFrames = o.numFrames
	decCfg.Width = o.width
	decCfg.Height = o.height
	decCfg.PixelFormat = o.pixFmt
	if fs.Changed("color-range") {
		decCfg.ColorRange = config.ColorRange(o.colorRange)
	} else if rc.ColorRange != nil {
		decCfg.ColorRange = *rc.ColorRange
	}

	src, err := transcode.OpenSource(ctx, input, decCfg)
	if err != nil {
		return err
	}
	defer src.Close()

	info := src.Info()
	logger.Info("Opened input", logging.Fields{
		"input_file": input,
		"width":      info.Width,
		"height":     info.Height,
		"pix_fmt":    info.PixelFormat,
		"bit_depth":  info.BitDepth,
	})

	settings, err := resolveSettings(fs, o, rc, info, logger)
	if err != nil {
		return err
	}
	if settings.HDRMode == config.ModeSDR && isHDRTransfer(info.Transfer) {
		logger.Warn("Input signals an HDR transfer but hdr mode is sdr", logging.Fields{"transfer": info.Transfer})
	}

	maxFrames := o.maxFrames
	if maxFrames == 0 {
		maxFrames = info.NumFrames
	}

	calc, err := siti.NewCalculator(settings,
		siti.WithLogger(logger),
		siti.WithNumFrames(o.numFrames),
		siti.WithMaxFrames(maxFrames),
		siti.WithRangeTolerance(o.rangeTolerance),
		siti.WithWorkers(o.workers),
	)
	if err != nil {
		return err
	}

	res, runErr := calc.Run(ctx, src, input)
	if res == nil {
		return runErr
	}

	if err := writeResult(res, o.format, o.output, stdout); err != nil {
		return err
	}
	if o.summary {
		s := siti.Summarize(res)
		fmt.Fprintf(stderr, "SI: %s\nTI: %s\n", s.SI, s.TI)
	}
	return runErr
}

// applyRunConfig fills run options from the config file unless the matching
// flag was given on the command line
func applyRunConfig(fs *pflag.FlagSet, o *cliOptions, rc *config.RunConfig) {
	if !fs.Changed("num-frames") && rc.NumFrames != 0 {
		o.numFrames = rc.NumFrames
	}
	if !fs.Changed("max-frames") && rc.MaxFrames != 0 {
		o.maxFrames = rc.MaxFrames
	}
	if !fs.Changed("range-tolerance") && rc.RangeTolerance != 0 {
		o.rangeTolerance = rc.RangeTolerance
	}
	if !fs.Changed("workers") && rc.Workers != 0 {
		o.workers = rc.Workers
	}
	if !fs.Changed("format") && rc.Format != "" {
		o.format = rc.Format
	}
	if !fs.Changed("ffmpeg-path") && rc.FFmpegPath != "" {
		o.ffmpegPath = rc.FFmpegPath
	}
	if !fs.Changed("ffprobe-path") && rc.FFprobePath != "" {
		o.ffprobePath = rc.FFprobePath
	}
}

// resolveSettings layers the settings sources. A settings snapshot replaces
// everything else. Otherwise the probed bit depth and range come first, then
// the config file, then flags given on the command line.
func resolveSettings(fs *pflag.FlagSet, o *cliOptions, rc *config.RunConfig, info transcode.StreamInfo, logger logging.Logger) (config.Settings, error) {
	if o.settingsPath != "" {
		snap, err := config.LoadSnapshot(o.settingsPath)
		if err != nil {
			return config.Settings{}, err
		}
		if snap.Version != config.Version {
			logger.Warn("Settings snapshot was written by a different version", logging.Fields{
				"snapshot_version": snap.Version,
				"version":          config.Version,
			})
		}
		if len(flagOptions(fs, o)) > 0 || len(rc.Options()) > 0 {
			logger.Warn("Settings snapshot given, ignoring settings from flags and config file")
		}
		return snap.Settings, nil
	}

	var opts []config.Option
	if info.BitDepth > 0 {
		opts = append(opts, config.WithBitDepth(info.BitDepth))
	}
	if info.ColorRange != "" {
		opts = append(opts, config.WithColorRange(info.ColorRange))
	}
	opts = append(opts, rc.Options()...)
	opts = append(opts, flagOptions(fs, o)...)

	settings, err := config.NewSettings(opts...)
	if err != nil {
		return config.Settings{}, err
	}
	logger.Debug("Resolved settings", logging.Fields{"settings": settings.String()})
	return settings, nil
}

// flagOptions returns options for the settings flags set on the command line
func flagOptions(fs *pflag.FlagSet, o *cliOptions) []config.Option {
	var opts []config.Option
	if fs.Changed("calculation-domain") {
		opts = append(opts, config.WithCalculationDomain(config.CalculationDomain(o.domain)))
	}
	if fs.Changed("hdr-mode") {
		opts = append(opts, config.WithHDRMode(config.HDRMode(o.hdrMode)))
	}
	if fs.Changed("bit-depth") {
		opts = append(opts, config.WithBitDepth(o.bitDepth))
	}
	if fs.Changed("color-range") {
		opts = append(opts, config.WithColorRange(config.ColorRange(o.colorRange)))
	}
	if fs.Changed("eotf-function") {
		opts = append(opts, config.WithEOTFFunction(config.EOTFFunction(o.eotf)))
	}
	if fs.Changed("gamma") {
		opts = append(opts, config.WithGamma(o.gamma))
	}
	if fs.Changed("l-max") {
		opts = append(opts, config.WithLMax(o.lMax))
	}
	if fs.Changed("l-min") {
		opts = append(opts, config.WithLMin(o.lMin))
	}
	if fs.Changed("pu21-mode") {
		opts = append(opts, config.WithPU21Mode(config.PU21Mode(o.pu21Mode)))
	}
	if fs.Changed("legacy") {
		opts = append(opts, config.WithLegacy(o.legacy))
	}
	return opts
}

func isHDRTransfer(transfer string) bool {
	switch transfer {
	case "smpte2084", "arib-std-b67":
		return true
	}
	return false
}

func writeResult(res *siti.Result, format, path string, stdout io.Writer) error {
	if path == "" {
		return siti.Write(stdout, res, format)
	}

	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := siti.Write(f, res, format); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func runJSONToCSV(args []string, stderr io.Writer) int {
	if len(args) != 2 {
		fmt.Fprintln(stderr, "Usage: siti json-to-csv <input.json> <output.csv>")
		return exitInvalidSettings
	}
	if err := convertJSONToCSV(args[0], args[1]); err != nil {
		fmt.Fprintf(stderr, "json-to-csv: %v\n", err)
		return exitFailure
	}
	return exitOK
}

func convertJSONToCSV(inPath, outPath string) error {
	in, err := os.Open(filepath.Clean(inPath))
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(filepath.Clean(outPath))
	if err != nil {
		return err
	}
	if err := siti.JSONToCSV(in, out); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// exitCode maps pipeline errors to process exit codes
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, siti.ErrInvalidSettings):
		return exitInvalidSettings
	case errors.Is(err, siti.ErrUnsupportedFrameFormat):
		return exitUnsupportedFrameFormat
	case errors.Is(err, siti.ErrRangeMismatch):
		return exitRangeMismatch
	case errors.Is(err, siti.ErrDimensionMismatch):
		return exitDimensionMismatch
	case errors.Is(err, siti.ErrUnsupportedFrameSize):
		return exitUnsupportedFrameSize
	default:
		return exitFailure
	}
}
