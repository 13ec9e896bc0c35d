package film

import (
	"fmt"

	"github.com/nareix/joy4/utils/bits/pio"
)

// MarkerAudio sample marker of audio samples.
const MarkerAudio = uint32(0xFFFFFFFF)

const (
	sampleSize     = 16
	stabHeaderSize = 16
)

// Kind sample kind.
type Kind uint8

// Sample kinds.
const (
	KindVideo Kind = iota
	KindAudio
)

func (k Kind) String() string {
	if k == KindAudio {
		return "audio"
	}
	return "video"
}

// Sample .
type Sample struct {
	Offset uint32 // Relative to Header.DataOffset.
	Size   uint32
	Marker uint32
	Aux    uint32
}

// Kind returns the sample kind.
func (s Sample) Kind() Kind {
	if s.Marker == MarkerAudio {
		return KindAudio
	}
	return KindVideo
}

// Marshal sample.
func (s Sample) Marshal() []byte {
	out := make([]byte, sampleSize)
	pio.PutU32BE(out[0:4], s.Offset)
	pio.PutU32BE(out[4:8], s.Size)
	pio.PutU32BE(out[8:12], s.Marker)
	pio.PutU32BE(out[12:16], s.Aux)
	return out
}

// Unmarshal sample.
func (s *Sample) Unmarshal(buf []byte) {
	s.Offset = pio.U32BE(buf[0:4])
	s.Size = pio.U32BE(buf[4:8])
	s.Marker = pio.U32BE(buf[8:12])
	s.Aux = pio.U32BE(buf[12:16])
}

// Table sample table from the STAB chunk.
type Table struct {
	BaseFrequency uint32
	Samples       []Sample
}

// Size marshaled size.
func (t Table) Size() int {
	return stabHeaderSize + len(t.Samples)*sampleSize
}

// Marshal STAB chunk including its tag and length.
func (t Table) Marshal() []byte {
	out := make([]byte, 0, t.Size())
	head := make([]byte, stabHeaderSize)
	copy(head[0:4], tagSTAB)
	pio.PutU32BE(head[4:8], uint32(t.Size()))
	pio.PutU32BE(head[8:12], t.BaseFrequency)
	pio.PutU32BE(head[12:16], uint32(len(t.Samples)))
	out = append(out, head...)

	for _, s := range t.Samples {
		out = append(out, s.Marshal()...)
	}
	return out
}

// Unmarshal STAB chunk, chunk includes the tag and length.
func (t *Table) Unmarshal(chunk []byte) error {
	if len(chunk) < stabHeaderSize {
		return fmt.Errorf("%w: STAB is %d bytes", ErrChunk, len(chunk))
	}
	t.BaseFrequency = pio.U32BE(chunk[8:12])
	count := pio.U32BE(chunk[12:16])

	available := uint64(len(chunk)-stabHeaderSize) / sampleSize
	if uint64(count) > available {
		return fmt.Errorf("%w: STAB declares %d entries but holds %d",
			ErrChunk, count, available)
	}

	t.Samples = make([]Sample, count)
	pos := stabHeaderSize
	for i := range t.Samples {
		t.Samples[i].Unmarshal(chunk[pos : pos+sampleSize])
		pos += sampleSize
	}
	return nil
}
