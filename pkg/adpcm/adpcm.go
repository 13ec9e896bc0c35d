// Package adpcm decodes the 4-bit ADPCM variants found in film audio.
//
// Decoder state is a plain value owned by the caller. Each elementary
// stream needs its own state, states must not be shared between goroutines.
package adpcm

// NibbleOrder order in which the two nibbles of a byte are decoded.
type NibbleOrder uint8

// Nibble orders.
const (
	HighFirst NibbleOrder = iota
	LowFirst
)

func (o NibbleOrder) String() string {
	if o == LowFirst {
		return "low"
	}
	return "high"
}

// State decoder state of one stream.
type State interface {
	// Decode appends two samples per byte of src to dst.
	Decode(dst []int16, src []byte, order NibbleOrder) []int16

	// Reset restores the initial state.
	Reset()
}

func decodeBytes(dst []int16, src []byte, order NibbleOrder, nibble func(uint8) int16) []int16 {
	for _, b := range src {
		first, second := b>>4, b&0xf
		if order == LowFirst {
			first, second = second, first
		}
		dst = append(dst, nibble(first), nibble(second))
	}
	return dst
}

func clamp16(v int32) int16 {
	switch {
	case v > 32767:
		return 32767
	case v < -32768:
		return -32768
	}
	return int16(v)
}
