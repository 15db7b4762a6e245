package transcode

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/RyanBlaney/sonido-siti/config"
)

// Y4M colorspace tags and their pixel formats
var y4mColorspaces = map[string]string{
	"420jpeg":  "yuv420p",
	"420paldv": "yuv420p",
	"420mpeg2": "yuv420p",
	"420":      "yuv420p",
	"422":      "yuv422p",
	"444":      "yuv444p",
	"mono":     "gray",
	"420p10":   "yuv420p10le",
	"422p10":   "yuv422p10le",
	"444p10":   "yuv444p10le",
	"mono10":   "gray10le",
	"420p12":   "yuv420p12le",
	"422p12":   "yuv422p12le",
	"444p12":   "yuv444p12le",
	"mono12":   "gray12le",
}

const maxY4MHeader = 4096

// Y4MSource reads a YUV4MPEG2 stream
type Y4MSource struct {
	rc     io.Closer
	br     *bufio.Reader
	fr     *frameReader
	info   StreamInfo
	pf     PixelFormat
	index  int
	closed bool
}

// NewY4MSource parses the stream header from r. The source owns r when
// r implements io.Closer.
func NewY4MSource(r io.Reader) (*Y4MSource, error) {
	br := bufio.NewReaderSize(r, frameBufferSize)
	header, err := readY4MLine(br)
	if err != nil {
		return nil, fmt.Errorf("failed to read y4m header: %w", err)
	}

	fields := strings.Fields(header)
	if len(fields) == 0 || fields[0] != y4mMagic {
		return nil, fmt.Errorf("%w: missing %s signature", ErrUnsupportedFrameFormat, y4mMagic)
	}

	var (
		width, height int
		colorspace    = "420jpeg"
		colorRange    config.ColorRange
	)
	for _, f := range fields[1:] {
		tag, val := f[0], f[1:]
		switch tag {
		case 'W':
			width, err = strconv.Atoi(val)
		case 'H':
			height, err = strconv.Atoi(val)
		case 'C':
			colorspace = val
		case 'I':
			if val != "p" && val != "?" {
				return nil, fmt.Errorf("%w: interlaced y4m (I%s)", ErrUnsupportedFrameFormat, val)
			}
		case 'X':
			if k, v, ok := strings.Cut(val, "="); ok && k == "COLORRANGE" {
				switch strings.ToUpper(v) {
				case "FULL":
					colorRange = config.RangeFull
				case "LIMITED":
					colorRange = config.RangeLimited
				}
			}
		}
		if err != nil {
			return nil, fmt.Errorf("%w: bad y4m header field %q", ErrUnsupportedFrameFormat, f)
		}
	}

	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: y4m header without valid dimensions", ErrUnsupportedFrameFormat)
	}

	name, ok := y4mColorspaces[colorspace]
	if !ok {
		return nil, fmt.Errorf("%w: y4m colorspace C%s", ErrUnsupportedFrameFormat, colorspace)
	}
	pf, err := LookupPixelFormat(name)
	if err != nil {
		return nil, err
	}

	s := &Y4MSource{
		br: br,
		fr: newFrameReader(br, pf, width, height),
		pf: pf,
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

// Info describes the stream as declared in the header
func (s *Y4MSource) Info() StreamInfo { return s.info }

// Next returns the next frame or io.EOF
func (s *Y4MSource) Next(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.closed {
		return nil, io.EOF
	}

	marker, err := readY4MLine(s.br)
	if errors.Is(err, io.EOF) && marker == "" {
		return nil, io.EOF
	}
	if err != nil {
		return nil, fmt.Errorf("frame %d: %w", s.index, err)
	}
	if !strings.HasPrefix(marker, "FRAME") {
		return nil, fmt.Errorf("frame %d: expected FRAME marker, got %q", s.index, marker)
	}

	luma, err := s.fr.read()
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	if err != nil {
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

// Close releases the underlying reader
func (s *Y4MSource) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.rc != nil {
		return s.rc.Close()
	}
	return nil
}

// readY4MLine reads up to the next newline, without it
func readY4MLine(br *bufio.Reader) (string, error) {
	var b strings.Builder
	for {
		c, err := br.ReadByte()
		if err != nil {
			return b.String(), err
		}
		if c == '\n' {
			return b.String(), nil
		}
		if b.Len() >= maxY4MHeader {
			return "", fmt.Errorf("%w: y4m header line too long", ErrUnsupportedFrameFormat)
		}
		b.WriteByte(c)
	}
}
