package transcode

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"

	"github.com/RyanBlaney/sonido-siti/config"
)

// ErrUnsupportedFrameFormat is returned for pixel layouts the sources cannot
// extract a luma plane from
var ErrUnsupportedFrameFormat = errors.New("unsupported frame format")

// PixelFormat describes a planar (or semi-planar) YUV layout using the
// ffmpeg pix_fmt naming
type PixelFormat struct {
	Name     string
	BitDepth int

	// BytesPerSample is 1 for 8-bit formats and 2 (little endian) otherwise
	BytesPerSample int

	// ChromaPlanes is 0 for gray, 1 for interleaved UV (nv12), 2 for planar
	ChromaPlanes int

	// log2 of the horizontal and vertical chroma subsampling
	ChromaShiftX int
	ChromaShiftY int

	// ImpliedRange is set for the JPEG-style yuvj formats
	ImpliedRange config.ColorRange
}

var pixelFormats = map[string]PixelFormat{}

func register(pf PixelFormat) {
	if pf.BytesPerSample == 0 {
		pf.BytesPerSample = 1
		if pf.BitDepth > 8 {
			pf.BytesPerSample = 2
		}
	}
	pixelFormats[pf.Name] = pf
}

func init() {
	register(PixelFormat{Name: "gray", BitDepth: 8})
	register(PixelFormat{Name: "gray10le", BitDepth: 10})
	register(PixelFormat{Name: "gray12le", BitDepth: 12})

	register(PixelFormat{Name: "nv12", BitDepth: 8, ChromaPlanes: 1, ChromaShiftX: 1, ChromaShiftY: 1})
	register(PixelFormat{Name: "nv21", BitDepth: 8, ChromaPlanes: 1, ChromaShiftX: 1, ChromaShiftY: 1})

	for _, depth := range []int{8, 10, 12} {
		suffix := ""
		if depth > 8 {
			suffix = fmt.Sprintf("%dle", depth)
		}
		register(PixelFormat{Name: "yuv420p" + suffix, BitDepth: depth, ChromaPlanes: 2, ChromaShiftX: 1, ChromaShiftY: 1})
		register(PixelFormat{Name: "yuv422p" + suffix, BitDepth: depth, ChromaPlanes: 2, ChromaShiftX: 1})
		register(PixelFormat{Name: "yuv444p" + suffix, BitDepth: depth, ChromaPlanes: 2})
	}

	register(PixelFormat{Name: "yuvj420p", BitDepth: 8, ChromaPlanes: 2, ChromaShiftX: 1, ChromaShiftY: 1, ImpliedRange: config.RangeFull})
	register(PixelFormat{Name: "yuvj422p", BitDepth: 8, ChromaPlanes: 2, ChromaShiftX: 1, ImpliedRange: config.RangeFull})
	register(PixelFormat{Name: "yuvj444p", BitDepth: 8, ChromaPlanes: 2, ImpliedRange: config.RangeFull})
}

// LookupPixelFormat returns the layout for an ffmpeg pix_fmt name
func LookupPixelFormat(name string) (PixelFormat, error) {
	pf, ok := pixelFormats[name]
	if !ok {
		return PixelFormat{}, fmt.Errorf("%w: pixel format %q", ErrUnsupportedFrameFormat, name)
	}
	return pf, nil
}

// SupportedPixelFormats returns the known pix_fmt names, sorted
func SupportedPixelFormats() []string {
	names := make([]string, 0, len(pixelFormats))
	for name := range pixelFormats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LumaSize returns the size in bytes of the Y plane
func (pf PixelFormat) LumaSize(width, height int) int {
	return width * height * pf.BytesPerSample
}

// FrameSize returns the size in bytes of one complete frame
func (pf PixelFormat) FrameSize(width, height int) int {
	cw := (width + (1 << pf.ChromaShiftX) - 1) >> pf.ChromaShiftX
	ch := (height + (1 << pf.ChromaShiftY) - 1) >> pf.ChromaShiftY
	chroma := cw * ch * pf.BytesPerSample
	if pf.ChromaPlanes == 1 {
		// interleaved UV
		chroma *= 2
	} else {
		chroma *= pf.ChromaPlanes
	}
	return pf.LumaSize(width, height) + chroma
}

// unpackLuma decodes the Y plane at the start of frame into dst
func (pf PixelFormat) unpackLuma(frame []byte, dst []uint16) {
	if pf.BytesPerSample == 1 {
		for i := range dst {
			dst[i] = uint16(frame[i])
		}
		return
	}
	for i := range dst {
		dst[i] = binary.LittleEndian.Uint16(frame[2*i:])
	}
}
