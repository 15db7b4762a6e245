package transcode

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/RyanBlaney/sonido-siti/config"
)

// RawYUVSource reads headerless planar YUV frames of a fixed geometry
type RawYUVSource struct {
	rc     io.Closer
	fr     *frameReader
	info   StreamInfo
	index  int
	closed bool
}

// NewRawYUVSource reads frames of the given layout from r. colorRange may be
// empty when unknown; yuvj formats imply full range.
func NewRawYUVSource(r io.Reader, width, height int, pixFmt string, colorRange config.ColorRange) (*RawYUVSource, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: raw yuv needs width and height, got %dx%d", ErrUnsupportedFrameFormat, width, height)
	}
	if pixFmt == "" {
		pixFmt = "yuv420p"
	}
	pf, err := LookupPixelFormat(pixFmt)
	if err != nil {
		return nil, err
	}
	if colorRange == "" {
		colorRange = pf.ImpliedRange
	}

	s := &RawYUVSource{
		fr: newFrameReader(r, pf, width, height),
		info: StreamInfo{
			Width:       width,
			Height:      height,
			PixelFormat: pf.Name,
			BitDepth:    pf.BitDepth,
			ColorRange:  colorRange,
		},
	}
	if c, ok := r.(io.Closer); ok {
		s.rc = c
	}
	return s, nil
}

// OpenRawYUV opens a raw YUV file using the geometry from cfg
func OpenRawYUV(path string, cfg *DecoderConfig) (*RawYUVSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	s, err := NewRawYUVSource(f, cfg.Width, cfg.Height, cfg.PixelFormat, cfg.ColorRange)
	if err != nil {
		f.Close()
		return nil, err
	}

	if st, err := f.Stat(); err == nil {
		if size := s.fr.pf.FrameSize(cfg.Width, cfg.Height); size > 0 {
			s.info.NumFrames = int(st.Size() / int64(size))
		}
	}
	return s, nil
}

// Info describes the configured stream layout
func (s *RawYUVSource) Info() StreamInfo { return s.info }

// Next returns the next frame or io.EOF
func (s *RawYUVSource) Next(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.closed {
		return nil, io.EOF
	}

	luma, err := s.fr.read()
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, fmt.Errorf("frame %d: %w", s.index, err)
	}

	f := &Frame{
		Luma:       luma,
		Width:      s.info.Width,
		Height:     s.info.Height,
		BitDepth:   s.info.BitDepth,
		ColorRange: s.info.ColorRange,
		Index:      s.index,
	}
	s.index++
	return f, nil
}

// Close releases the underlying reader
func (s *RawYUVSource) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.rc != nil {
		return s.rc.Close()
	}
	return nil
}
