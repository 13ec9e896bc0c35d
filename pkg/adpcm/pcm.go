package adpcm

import (
	"errors"
	"fmt"

	"github.com/nareix/joy4/utils/bits/pio"
)

// ErrBitDepth unsupported bit depth.
var ErrBitDepth = errors.New("unsupported bit depth")

// DecodePCM appends uncompressed samples from src to dst. 16 bit samples
// are big-endian signed, 8 bit samples are signed and widened to 16 bits.
// A trailing odd byte of 16 bit audio is dropped.
func DecodePCM(dst []int16, src []byte, bitDepth uint8) ([]int16, error) {
	switch bitDepth {
	case 16:
		for i := 0; i+1 < len(src); i += 2 {
			dst = append(dst, pio.I16BE(src[i:i+2]))
		}
	case 8:
		for _, b := range src {
			dst = append(dst, int16(int8(b))<<8)
		}
	default:
		return dst, fmt.Errorf("%w: %d", ErrBitDepth, bitDepth)
	}
	return dst, nil
}
