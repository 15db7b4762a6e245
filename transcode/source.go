// Package transcode provides frame sources that deliver the luma plane of
// video frames: an ffmpeg-backed decoder, a YUV4MPEG2 reader, and a reader
// for headerless planar YUV.
package transcode

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/RyanBlaney/sonido-siti/config"
	"github.com/RyanBlaney/sonido-siti/logging"
)

// Frame is the luma plane of one decoded video frame
type Frame struct {
	// Luma holds Width*Height code values, row-major
	Luma []uint16

	Width    int
	Height   int
	BitDepth int

	// ColorRange is the range declared by the container, empty when unknown
	ColorRange config.ColorRange

	// Index is the zero-based position of the frame in the stream
	Index int
}

// FrameSource delivers frames in presentation order. Next returns io.EOF
// after the last frame.
type FrameSource interface {
	Next(ctx context.Context) (*Frame, error)
	Close() error
}

// StreamInfo describes the video stream behind a source
type StreamInfo struct {
	Width       int               `json:"width"`
	Height      int               `json:"height"`
	PixelFormat string            `json:"pix_fmt"`
	BitDepth    int               `json:"bit_depth"`
	ColorRange  config.ColorRange `json:"color_range,omitempty"`

	// Transfer is the transfer characteristic reported by ffprobe
	// (e.g. "smpte2084", "arib-std-b67"), empty when unknown
	Transfer string `json:"color_transfer,omitempty"`

	// NumFrames is the container's frame count estimate, 0 when unknown
	NumFrames int `json:"nb_frames,omitempty"`
}

// Source is a FrameSource that can describe its stream
type Source interface {
	FrameSource
	Info() StreamInfo
}

// DecoderConfig holds source configuration
type DecoderConfig struct {
	FFmpegPath  string        `json:"ffmpeg_path"`  // Path to ffmpeg binary
	FFprobePath string        `json:"ffprobe_path"` // Path to ffprobe binary
	Timeout     time.Duration `json:"timeout"`      // Timeout for ffprobe

	// MaxFrames stops decoding after this many frames (0 = all)
	MaxFrames int `json:"max_frames"`

	// Raw YUV input has no header, so geometry and layout must be given
	Width       int               `json:"width"`
	Height      int               `json:"height"`
	PixelFormat string            `json:"pix_fmt"`
	ColorRange  config.ColorRange `json:"color_range"`
}

// DefaultDecoderConfig returns default decoder configuration
func DefaultDecoderConfig() *DecoderConfig {
	return &DecoderConfig{
		FFmpegPath:  "ffmpeg",  // Assume in PATH
		FFprobePath: "ffprobe", // Assume in PATH
		Timeout:     30 * time.Second,
	}
}

const y4mMagic = "YUV4MPEG2"

// OpenSource opens path with the matching reader: YUV4MPEG2 by extension or
// signature, raw planar YUV when a pixel format is configured, and ffmpeg
// for everything else.
func OpenSource(ctx context.Context, path string, cfg *DecoderConfig) (Source, error) {
	if cfg == nil {
		cfg = DefaultDecoderConfig()
	}

	logger := logging.WithFields(logging.Fields{
		"component": "frame_source",
		"function":  "OpenSource",
		"path":      path,
	})

	ext := strings.ToLower(filepath.Ext(path))
	isY4M := ext == ".y4m"
	if !isY4M {
		var err error
		if isY4M, err = hasY4MSignature(path); err != nil {
			return nil, err
		}
	}

	switch {
	case isY4M:
		logger.Debug("Opening YUV4MPEG2 source")
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		src, err := NewY4MSource(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to open %s: %w", path, err)
		}
		return src, nil

	case cfg.PixelFormat != "" || ext == ".yuv":
		logger.Debug("Opening raw YUV source", logging.Fields{
			"pix_fmt": cfg.PixelFormat,
			"width":   cfg.Width,
			"height":  cfg.Height,
		})
		return OpenRawYUV(path, cfg)

	default:
		logger.Debug("Opening ffmpeg source")
		return NewFFmpegSource(ctx, path, cfg)
	}
}

func hasY4MSignature(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	buf := make([]byte, len(y4mMagic))
	if _, err := io.ReadFull(f, buf); err != nil {
		return false, nil
	}
	return bytes.Equal(buf, []byte(y4mMagic)), nil
}

const frameBufferSize = 1 << 20

// frameReader pulls fixed-size frames from a byte stream and unpacks luma
type frameReader struct {
	r      *bufio.Reader
	pf     PixelFormat
	width  int
	height int
	buf    []byte
}

// newFrameReader shares r's buffer when r is already a large enough
// *bufio.Reader
func newFrameReader(r io.Reader, pf PixelFormat, width, height int) *frameReader {
	return &frameReader{
		r:      bufio.NewReaderSize(r, frameBufferSize),
		pf:     pf,
		width:  width,
		height: height,
		buf:    make([]byte, pf.FrameSize(width, height)),
	}
}

// read returns io.EOF on a clean end of stream and io.ErrUnexpectedEOF on a
// truncated frame
func (fr *frameReader) read() ([]uint16, error) {
	n, err := io.ReadFull(fr.r, fr.buf)
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, fmt.Errorf("truncated frame: got %d of %d bytes: %w", n, len(fr.buf), err)
	}

	luma := make([]uint16, fr.width*fr.height)
	fr.pf.unpackLuma(fr.buf, luma)
	return luma, nil
}
