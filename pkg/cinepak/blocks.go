package cinepak

import (
	"bytes"
	"io"

	"github.com/icza/bitio"
)

// blockReader reads the flag bits and codebook indices of a vector chunk.
// Flags are stored as 32 bit words interleaved with the index bytes.
type blockReader struct {
	in   *bytes.Reader
	bits *bitio.Reader

	word  uint32
	nBits uint8
}

func newBlockReader(data []byte) *blockReader {
	in := bytes.NewReader(data)
	return &blockReader{
		in:   in,
		bits: bitio.NewReader(in),
	}
}

// flag returns the next flag bit. Once the flag
// words are exhausted every flag reads as 0.
func (r *blockReader) flag() bool {
	if r.nBits == 0 {
		if r.in.Len() < 4 {
			return false
		}
		word, err := r.bits.ReadBits(32)
		if err != nil {
			return false
		}
		r.word = uint32(word)
		r.nBits = 32
	}
	bit := r.word&0x80000000 != 0
	r.word <<= 1
	r.nBits--
	return bit
}

func (r *blockReader) index() (byte, error) {
	return r.bits.ReadByte()
}

func (r *blockReader) indices() ([4]byte, error) {
	var index [4]byte
	_, err := io.ReadFull(r.bits, index[:])
	return index, err
}

// decodeBlocks decodes the 4x4 blocks of a strip in row-major order.
// Intra chunks code every block, inter chunks have a coded flag per block.
func (d *Decoder) decodeBlocks(data []byte, s stripHeader, intra bool) {
	r := newBlockReader(data)
	clip := d.clip(s)

	blocksX := (s.width + 3) / 4
	blocksY := (s.height + 3) / 4
	for by := 0; by < blocksY; by++ {
		for bx := 0; bx < blocksX; bx++ {
			x, y := s.x+bx*4, s.y+by*4
			if x >= d.width || y >= d.height {
				// Nothing is read for blocks outside the frame.
				continue
			}

			if !intra && !r.flag() {
				continue
			}

			if !r.flag() {
				index, err := r.index()
				if err != nil {
					return
				}
				d.putV1(clip, x, y, &d.v1[index])
				continue
			}

			index, err := r.indices()
			if err != nil {
				return
			}
			d.putV4(clip, x, y, index)
		}
	}
}
