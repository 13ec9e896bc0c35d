// Package disc reads files from raw Saturn disc images.
package disc

import (
	"errors"
	"fmt"
	"io"
	"sync"
)

// Raw sector layout.
const (
	SectorSize = 2352

	Form1PayloadSize = 2048
	Form2PayloadSize = 2324

	modeOffset    = 15
	submodeOffset = 18
	mode1Payload  = 16
	mode2Payload  = 24
	submodeForm2  = 0x20
)

// ErrShortSector the image ends inside a sector.
var ErrShortSector = errors.New("short sector")

// SectorReader strips the framing of raw 2352 byte sectors.
type SectorReader struct {
	r io.ReaderAt

	raw []byte
	mu  sync.Mutex
}

// NewSectorReader returns a SectorReader reading from r.
func NewSectorReader(r io.ReaderAt) *SectorReader {
	return &SectorReader{
		r:   r,
		raw: make([]byte, SectorSize),
	}
}

// ReadSector returns the payload of one sector. The mode byte selects the
// layout: Mode 1 and Mode 2 Form 1 carry 2048 bytes, Mode 2 Form 2 carries
// 2324. Unknown modes are read as Mode 1. The returned slice is a copy.
func (r *SectorReader) ReadSector(lba uint32) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, err := r.r.ReadAt(r.raw, int64(lba)*SectorSize)
	if n < SectorSize {
		if err == nil || errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: lba %d", ErrShortSector, lba)
		}
		return nil, fmt.Errorf("read sector %d: %w", lba, err)
	}

	var payload []byte
	switch {
	case r.raw[modeOffset] != 2:
		payload = r.raw[mode1Payload : mode1Payload+Form1PayloadSize]
	case r.raw[submodeOffset]&submodeForm2 != 0:
		payload = r.raw[mode2Payload : mode2Payload+Form2PayloadSize]
	default:
		payload = r.raw[mode2Payload : mode2Payload+Form1PayloadSize]
	}
	return append([]byte(nil), payload...), nil
}

// Read returns size payload bytes starting at lba.
func (r *SectorReader) Read(lba uint32, size int) ([]byte, error) {
	out := make([]byte, 0, size)
	for len(out) < size {
		payload, err := r.ReadSector(lba)
		if err != nil {
			return nil, err
		}
		out = append(out, payload...)
		lba++
	}
	return out[:size], nil
}
