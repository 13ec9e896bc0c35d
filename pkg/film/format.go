package film

import (
	"fmt"

	"github.com/nareix/joy4/utils/bits/pio"
)

// Audio encoding flags.
const (
	EncodingPCM    = uint8(0)
	EncodingDVI    = uint8(1)
	EncodingYamaha = uint8(2)
)

const fdscSize = 26

// CodecCinepak video codec tag.
var CodecCinepak = [4]byte{'c', 'v', 'i', 'd'}

// Format stream format from the FDSC chunk.
type Format struct {
	VideoCodec  [4]byte
	VideoWidth  uint32
	VideoHeight uint32
	VideoDepth  uint8

	AudioChannels   uint8
	AudioBitDepth   uint8
	AudioEncoding   uint8
	AudioSampleRate uint16
}

// HasAudio reports if the format describes an audio track.
func (f Format) HasAudio() bool {
	return f.AudioSampleRate != 0
}

// Marshal FDSC chunk including its tag and length.
func (f Format) Marshal() []byte {
	out := make([]byte, fdscSize)
	copy(out[0:4], tagFDSC)
	pio.PutU32BE(out[4:8], fdscSize)
	copy(out[8:12], f.VideoCodec[:])
	pio.PutU32BE(out[12:16], f.VideoHeight)
	pio.PutU32BE(out[16:20], f.VideoWidth)
	out[20] = f.VideoDepth
	out[21] = f.AudioChannels
	out[22] = f.AudioBitDepth
	out[23] = f.AudioEncoding
	pio.PutU16BE(out[24:26], f.AudioSampleRate)
	return out
}

// Unmarshal FDSC chunk, chunk includes the tag and length.
func (f *Format) Unmarshal(chunk []byte) error {
	if len(chunk) < fdscSize {
		return fmt.Errorf("%w: FDSC is %d bytes", ErrChunk, len(chunk))
	}

	copy(f.VideoCodec[:], chunk[8:12])
	f.VideoHeight = pio.U32BE(chunk[12:16])
	f.VideoWidth = pio.U32BE(chunk[16:20])
	f.VideoDepth = chunk[20]
	f.AudioChannels = chunk[21]
	f.AudioBitDepth = chunk[22]
	f.AudioEncoding = chunk[23]
	f.AudioSampleRate = pio.U16BE(chunk[24:26])

	if f.AudioChannels == 0 {
		f.AudioChannels = 1
	}
	if f.AudioBitDepth == 0 {
		f.AudioBitDepth = 16
	}
	return nil
}
