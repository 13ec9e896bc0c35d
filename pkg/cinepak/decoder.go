// Package cinepak decodes Cinepak video frames.
package cinepak

import (
	"errors"
	"fmt"
	"image"

	"github.com/nareix/joy4/utils/bits/pio"
)

// ErrFrameDecode frame could not be decoded. The decoder
// is left untouched and can decode the next frame.
var ErrFrameDecode = errors.New("frame decode")

const (
	frameHeaderSize = 12
	stripHeaderSize = 12
	chunkHeaderSize = 4
)

// Strip ids.
const (
	stripIntra = 0x1000
	stripInter = 0x1100
)

// Chunk ids.
const (
	chunkV4Full    = 0x2000
	chunkV1Full    = 0x2100
	chunkV4Partial = 0x2200
	chunkV1Partial = 0x2300
	chunkIntra     = 0x3000
	chunkInter     = 0x3100
	chunkInterAlt  = 0x3200
)

// FrameHeader .
type FrameHeader struct {
	Flags  uint8
	Size   uint32 // 24 bits.
	Width  uint16
	Height uint16
	Strips uint16
}

// Unmarshal frame header, buf must be at least 12 bytes.
func (h *FrameHeader) Unmarshal(buf []byte) {
	h.Flags = buf[0]
	h.Size = pio.U24BE(buf[1:4])
	h.Width = pio.U16BE(buf[4:6])
	h.Height = pio.U16BE(buf[6:8])
	h.Strips = pio.U16BE(buf[8:10])
}

type stripHeader struct {
	id     uint16
	size   uint16
	y, x   int
	height int
	width  int
}

func (s *stripHeader) unmarshal(buf []byte) {
	s.id = pio.U16BE(buf[0:2])
	s.size = pio.U16BE(buf[2:4])
	s.y = int(pio.U16BE(buf[4:6]))
	s.x = int(pio.U16BE(buf[6:8]))
	s.height = int(pio.U16BE(buf[8:10]))
	s.width = int(pio.U16BE(buf[10:12]))
}

// Frame decoded frame.
type Frame struct {
	Index int
	Image *RGB24
}

// Option decoder option.
type Option func(*Decoder)

// WithColorMode sets how codebook chroma is read, default ColorStandard.
func WithColorMode(mode ColorMode) Option {
	return func(d *Decoder) {
		d.colorMode = mode
	}
}

// Decoder decodes a single Cinepak stream. The codebooks and the
// previous picture persist between frames. Not safe for concurrent use.
type Decoder struct {
	width     int
	height    int
	colorMode ColorMode

	v1 Codebook
	v4 Codebook

	// Working picture, one value per pixel.
	y []uint8
	u []int8
	v []int8

	frames int
}

// NewDecoder creates a decoder for a stream of the given dimensions.
func NewDecoder(width, height int, opts ...Option) *Decoder {
	d := &Decoder{
		width:  width,
		height: height,
		y:      make([]uint8, width*height),
		u:      make([]int8, width*height),
		v:      make([]int8, width*height),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DecodeFrame decodes one video sample. Frames with dimensions
// that differ from the stream are rejected with ErrFrameDecode.
func (d *Decoder) DecodeFrame(data []byte) (*Frame, error) {
	if len(data) < frameHeaderSize {
		return nil, fmt.Errorf("%w: header is %d bytes", ErrFrameDecode, len(data))
	}

	var h FrameHeader
	h.Unmarshal(data)
	if int(h.Width) != d.width || int(h.Height) != d.height {
		return nil, fmt.Errorf("%w: frame is %dx%d, stream is %dx%d",
			ErrFrameDecode, h.Width, h.Height, d.width, d.height)
	}

	pos := frameHeaderSize
	// A resync uses up one of the strips.
	for i := 0; i < int(h.Strips) && len(data)-pos >= stripHeaderSize; i++ {
		var s stripHeader
		s.unmarshal(data[pos:])
		if s.id != stripIntra && s.id != stripInter {
			pos += 2
			continue
		}

		end := pos + int(s.size)
		if int(s.size) < stripHeaderSize {
			end = pos + stripHeaderSize
		}
		if end > len(data) {
			end = len(data)
		}

		d.decodeStrip(data[pos+stripHeaderSize:end], s)
		pos = end
	}

	frame := &Frame{
		Index: d.frames,
		Image: d.toRGB(),
	}
	d.frames++
	return frame, nil
}

func (d *Decoder) decodeStrip(payload []byte, s stripHeader) {
	pos := 0
	for len(payload)-pos >= chunkHeaderSize {
		id := pio.U16BE(payload[pos : pos+2])
		size := int(pio.U16BE(payload[pos+2 : pos+4]))
		if size < chunkHeaderSize {
			return
		}

		end := pos + size
		if end > len(payload) {
			end = len(payload)
		}
		chunk := payload[pos+chunkHeaderSize : end]

		switch id {
		case chunkV4Full:
			d.v4.update(chunk, false, d.colorMode)
		case chunkV4Partial:
			d.v4.update(chunk, true, d.colorMode)
		case chunkV1Full:
			d.v1.update(chunk, false, d.colorMode)
		case chunkV1Partial:
			d.v1.update(chunk, true, d.colorMode)
		case chunkIntra:
			d.decodeBlocks(chunk, s, true)
		case chunkInter, chunkInterAlt:
			d.decodeBlocks(chunk, s, false)
		}
		pos = end
	}
}

// clip returns the area a strip may draw to.
func (d *Decoder) clip(s stripHeader) image.Rectangle {
	frame := image.Rect(0, 0, d.width, d.height)
	return image.Rect(s.x, s.y, s.x+s.width, s.y+s.height).Intersect(frame)
}

func (d *Decoder) setPixel(clip image.Rectangle, x, y int, luma uint8, vec *Vector) {
	if !(image.Point{x, y}.In(clip)) {
		return
	}
	i := y*d.width + x
	d.y[i] = luma
	d.u[i] = vec.U
	d.v[i] = vec.V
}

// putV1 upsamples a single vector to a 4x4 block.
func (d *Decoder) putV1(clip image.Rectangle, x, y int, vec *Vector) {
	for q := 0; q < 4; q++ {
		qx, qy := x+(q%2)*2, y+(q/2)*2
		luma := vec.Y[q]
		d.setPixel(clip, qx, qy, luma, vec)
		d.setPixel(clip, qx+1, qy, luma, vec)
		d.setPixel(clip, qx, qy+1, luma, vec)
		d.setPixel(clip, qx+1, qy+1, luma, vec)
	}
}

// putV4 fills each 2x2 quadrant of a 4x4 block with its own vector.
func (d *Decoder) putV4(clip image.Rectangle, x, y int, index [4]byte) {
	for q := 0; q < 4; q++ {
		vec := &d.v4[index[q]]
		qx, qy := x+(q%2)*2, y+(q/2)*2
		d.setPixel(clip, qx, qy, vec.Y[0], vec)
		d.setPixel(clip, qx+1, qy, vec.Y[1], vec)
		d.setPixel(clip, qx, qy+1, vec.Y[2], vec)
		d.setPixel(clip, qx+1, qy+1, vec.Y[3], vec)
	}
}
