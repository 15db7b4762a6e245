package transcode

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/RyanBlaney/sonido-siti/config"
	"github.com/RyanBlaney/sonido-siti/logging"
)

// maximum stderr kept from the ffmpeg process for error reports
const maxStderr = 64 << 10

// FFmpegSource decodes any container/codec ffmpeg understands and streams
// the first video stream as raw frames in its native pixel format
type FFmpegSource struct {
	config *DecoderConfig
	info   StreamInfo
	pf     PixelFormat

	cmd    *exec.Cmd
	cancel context.CancelFunc
	stdout io.ReadCloser
	stderr *limitedBuffer
	fr     *frameReader

	index     int
	done      bool
	closeOnce sync.Once
	closeErr  error
}

// NewFFmpegSource probes filename with ffprobe and starts an ffmpeg process
// piping raw video. The process is bound to ctx; Close stops it early.
func NewFFmpegSource(ctx context.Context, filename string, cfg *DecoderConfig) (*FFmpegSource, error) {
	if cfg == nil {
		cfg = DefaultDecoderConfig()
	}

	logger := logging.WithFields(logging.Fields{
		"component": "video_decoder",
		"function":  "NewFFmpegSource",
		"filename":  filename,
	})

	if err := ValidateConfig(cfg); err != nil {
		logger.Error(err, "Invalid decoder configuration")
		return nil, err
	}

	logger.Debug("Starting video file probe")

	info, err := ProbeFile(ctx, filename, cfg)
	if err != nil {
		logger.Error(err, "Failed to probe video file")
		return nil, err
	}

	pf, err := LookupPixelFormat(info.PixelFormat)
	if err != nil {
		logger.Error(err, "Unsupported pixel format", logging.Fields{
			"pix_fmt":   info.PixelFormat,
			"supported": strings.Join(SupportedPixelFormats(), ","),
		})
		return nil, err
	}
	info.BitDepth = pf.BitDepth
	if info.ColorRange == "" {
		info.ColorRange = pf.ImpliedRange
	}

	logger.Debug("Video metadata detected", logging.Fields{
		"width":          info.Width,
		"height":         info.Height,
		"pix_fmt":        info.PixelFormat,
		"bit_depth":      info.BitDepth,
		"color_range":    info.ColorRange,
		"color_transfer": info.Transfer,
		"nb_frames":      info.NumFrames,
	})

	s := &FFmpegSource{config: cfg, info: info, pf: pf}
	if err := s.start(ctx, filename, logger); err != nil {
		return nil, err
	}
	return s, nil
}

// buildFFmpegArgs builds the ffmpeg arguments for raw luma extraction
func (s *FFmpegSource) buildFFmpegArgs(filename string) []string {
	args := []string{
		"-v", "error", // Suppress verbose output
		"-nostdin",
		"-i", filename,
		"-map", "0:v:0", // First video stream only
		"-an", "-sn",
	}
	if s.config.MaxFrames > 0 {
		args = append(args, "-frames:v", strconv.Itoa(s.config.MaxFrames))
	}
	args = append(args,
		"-f", "rawvideo",
		"-pix_fmt", s.pf.Name, // keep the native layout, no scaling
		"pipe:1",
	)
	return args
}

func (s *FFmpegSource) start(ctx context.Context, filename string, logger logging.Logger) error {
	args := s.buildFFmpegArgs(filename)

	procCtx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(procCtx, s.config.FFmpegPath, args...)
	s.stderr = &limitedBuffer{max: maxStderr}
	cmd.Stderr = s.stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("ffmpeg stdout pipe: %w", err)
	}

	logger.Debug("Running ffmpeg command", logging.Fields{
		"args": strings.Join(args, " "),
	})

	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("ffmpeg start failed: %w", err)
	}

	s.cmd = cmd
	s.cancel = cancel
	s.stdout = stdout
	s.fr = newFrameReader(stdout, s.pf, s.info.Width, s.info.Height)
	return nil
}

// Info returns the probed stream description
func (s *FFmpegSource) Info() StreamInfo { return s.info }

// Next returns the next decoded frame or io.EOF
func (s *FFmpegSource) Next(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.done {
		return nil, io.EOF
	}

	luma, err := s.fr.read()
	if err != nil {
		s.done = true
		waitErr := s.wait()
		if ctxErr := ctx.Err(); ctxErr != nil {
			// the process was killed with the context, its exit status is noise
			return nil, fmt.Errorf("ffmpeg decode interrupted at frame %d: %w", s.index, ctxErr)
		}
		if waitErr != nil {
			return nil, fmt.Errorf("ffmpeg decode failed at frame %d: %w, stderr: %s",
				s.index, waitErr, strings.TrimSpace(s.stderr.String()))
		}
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("frame %d: %w", s.index, err)
	}

	f := &Frame{
		Luma:       luma,
		Width:      s.info.Width,
		Height:     s.info.Height,
		BitDepth:   s.pf.BitDepth,
		ColorRange: s.info.ColorRange,
		Index:      s.index,
	}
	s.index++
	return f, nil
}

// wait reaps the process once and reports its exit status
func (s *FFmpegSource) wait() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.cmd.Wait()
		s.cancel()
	})
	return s.closeErr
}

// Close stops the ffmpeg process if it is still running
func (s *FFmpegSource) Close() error {
	if s.cmd == nil {
		return nil
	}
	finished := s.done
	s.done = true
	s.cancel()
	err := s.wait()
	if !finished {
		// killed on purpose, the exit status carries no information
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}

// ProbeFile uses ffprobe to describe the first video stream of filename
func ProbeFile(ctx context.Context, filename string, cfg *DecoderConfig) (StreamInfo, error) {
	if cfg == nil {
		cfg = DefaultDecoderConfig()
	}

	probeCtx := ctx
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		probeCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	args := []string{
		"-v", "quiet", // Suppress verbose output
		"-print_format", "json", // JSON output
		"-show_streams",          // Show stream info
		"-select_streams", "v:0", // First video stream only
		filename,
	}

	cmd := exec.CommandContext(probeCtx, cfg.FFprobePath, args...)
	output, err := cmd.Output()
	if err != nil {
		if exitError, ok := err.(*exec.ExitError); ok {
			return StreamInfo{}, fmt.Errorf("ffprobe failed: %w, stderr: %s", err, string(exitError.Stderr))
		}
		return StreamInfo{}, fmt.Errorf("ffprobe failed: %w", err)
	}

	return parseFFprobeOutput(output)
}

// parseFFprobeOutput parses ffprobe JSON to extract video metadata
func parseFFprobeOutput(jsonData []byte) (StreamInfo, error) {
	var probe struct {
		Streams []struct {
			CodecType        string `json:"codec_type"`
			Width            int    `json:"width"`
			Height           int    `json:"height"`
			PixFmt           string `json:"pix_fmt"`
			ColorRange       string `json:"color_range"`
			ColorTransfer    string `json:"color_transfer"`
			BitsPerRawSample string `json:"bits_per_raw_sample"`
			NbFrames         string `json:"nb_frames"`
		} `json:"streams"`
	}

	if err := json.Unmarshal(jsonData, &probe); err != nil {
		return StreamInfo{}, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	if len(probe.Streams) == 0 {
		return StreamInfo{}, fmt.Errorf("%w: no video streams found", ErrUnsupportedFrameFormat)
	}

	stream := probe.Streams[0]
	if stream.CodecType != "video" {
		return StreamInfo{}, fmt.Errorf("%w: stream is not video type: %s", ErrUnsupportedFrameFormat, stream.CodecType)
	}
	if stream.Width <= 0 || stream.Height <= 0 {
		return StreamInfo{}, fmt.Errorf("%w: invalid dimensions %dx%d", ErrUnsupportedFrameFormat, stream.Width, stream.Height)
	}

	info := StreamInfo{
		Width:       stream.Width,
		Height:      stream.Height,
		PixelFormat: stream.PixFmt,
		ColorRange:  parseColorRange(stream.ColorRange),
	}
	if stream.ColorTransfer != "unknown" {
		info.Transfer = stream.ColorTransfer
	}

	// "N/A" for streams without a raw sample depth
	if bits, err := strconv.Atoi(stream.BitsPerRawSample); err == nil {
		info.BitDepth = bits
	}
	if n, err := strconv.Atoi(stream.NbFrames); err == nil {
		info.NumFrames = n
	}

	return info, nil
}

// parseColorRange maps ffprobe's tv/pc naming onto ColorRange
func parseColorRange(s string) config.ColorRange {
	switch s {
	case "tv", "mpeg", "limited":
		return config.RangeLimited
	case "pc", "jpeg", "full":
		return config.RangeFull
	default:
		return ""
	}
}

// ValidateConfig validates the decoder configuration
func ValidateConfig(cfg *DecoderConfig) error {
	if cfg.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative: %v", cfg.Timeout)
	}
	if cfg.MaxFrames < 0 {
		return fmt.Errorf("max frames must not be negative: %d", cfg.MaxFrames)
	}

	// Check if ffmpeg and ffprobe are available
	if err := checkFFmpegAvailability(cfg); err != nil {
		return fmt.Errorf("ffmpeg not available: %w", err)
	}

	return nil
}

// checkFFmpegAvailability checks if ffmpeg and ffprobe are available
func checkFFmpegAvailability(cfg *DecoderConfig) error {
	if _, err := exec.LookPath(cfg.FFmpegPath); err != nil {
		return fmt.Errorf("ffmpeg not found at %s: %w", cfg.FFmpegPath, err)
	}
	if _, err := exec.LookPath(cfg.FFprobePath); err != nil {
		return fmt.Errorf("ffprobe not found at %s: %w", cfg.FFprobePath, err)
	}
	return nil
}

// limitedBuffer keeps the first max bytes written to it
type limitedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
	max int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if room := b.max - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
