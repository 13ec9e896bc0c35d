package cinepak

import (
	"bytes"
	"io"

	"github.com/icza/bitio"
)

const (
	codebookSize = 256
	entrySize    = 6
	maskSize     = codebookSize / 32
)

// ColorMode how chroma bytes of codebook entries are interpreted.
type ColorMode uint8

// Color modes.
const (
	ColorStandard ColorMode = iota // Signed U then V.
	ColorSwap                      // Signed V then U.
	ColorUnsigned                  // Unsigned U then V, biased by 128.
)

// Vector 2x2 patch. The four luma values are ordered
// top-left, top-right, bottom-left, bottom-right.
type Vector struct {
	Y    [4]uint8
	U, V int8
}

func newVector(entry []byte, mode ColorMode) Vector {
	v := Vector{Y: [4]uint8{entry[0], entry[1], entry[2], entry[3]}}
	switch mode {
	case ColorSwap:
		v.V, v.U = int8(entry[4]), int8(entry[5])
	case ColorUnsigned:
		v.U, v.V = int8(int(entry[4])-128), int8(int(entry[5])-128)
	default:
		v.U, v.V = int8(entry[4]), int8(entry[5])
	}
	return v
}

// Codebook .
type Codebook [codebookSize]Vector

// update applies a codebook chunk. A full update replaces entries from
// slot 0 onwards. A partial update starts with a 256 bit mask, MSB first,
// followed by one entry per set bit. Truncated data stops the update.
func (c *Codebook) update(data []byte, partial bool, mode ColorMode) {
	r := bitio.NewReader(bytes.NewReader(data))
	entry := make([]byte, entrySize)

	if !partial {
		for i := range c {
			if _, err := io.ReadFull(r, entry); err != nil {
				return
			}
			c[i] = newVector(entry, mode)
		}
		return
	}

	var mask [maskSize]uint32
	for i := range mask {
		word, err := r.ReadBits(32)
		if err != nil {
			return
		}
		mask[i] = uint32(word)
	}

	for i := range c {
		if mask[i/32]&(1<<(31-uint(i%32))) == 0 {
			continue
		}
		if _, err := io.ReadFull(r, entry); err != nil {
			return
		}
		c[i] = newVector(entry, mode)
	}
}
