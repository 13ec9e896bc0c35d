package film

import (
	"errors"
	"fmt"

	"github.com/nareix/joy4/utils/bits/pio"
)

// Errors.
var (
	ErrFormat            = errors.New("invalid film format")
	ErrChunk             = errors.New("invalid chunk")
	ErrSampleOutOfBounds = errors.New("sample out of bounds")
)

const headerSize = 16

// Magic film file magic.
var Magic = [4]byte{'F', 'I', 'L', 'M'}

// Header container header.
type Header struct {
	Magic      [4]byte
	DataOffset uint32
	Version    [4]byte
}

// Marshal header.
func (h Header) Marshal() []byte {
	out := make([]byte, headerSize)
	copy(out[0:4], h.Magic[:])
	pio.PutU32BE(out[4:8], h.DataOffset)
	copy(out[8:12], h.Version[:])
	return out
}

// Unmarshal header from the start of buf.
func (h *Header) Unmarshal(buf []byte) error {
	if len(buf) < headerSize {
		return fmt.Errorf("%w: file is %d bytes", ErrFormat, len(buf))
	}
	copy(h.Magic[:], buf[0:4])
	if h.Magic != Magic {
		return fmt.Errorf("%w: bad magic %q", ErrFormat, h.Magic[:])
	}

	h.DataOffset = pio.U32BE(buf[4:8])
	copy(h.Version[:], buf[8:12])

	if h.DataOffset < headerSize {
		return fmt.Errorf("%w: data offset %d is inside the header", ErrFormat, h.DataOffset)
	}
	if int64(h.DataOffset) > int64(len(buf)) {
		return fmt.Errorf("%w: data offset %d beyond end of file (%d)",
			ErrFormat, h.DataOffset, len(buf))
	}
	return nil
}
