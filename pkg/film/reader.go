package film

import (
	"bytes"
	"fmt"

	"github.com/nareix/joy4/utils/bits/pio"
)

const chunkHeaderSize = 8

var (
	tagFDSC = []byte("FDSC")
	tagSTAB = []byte("STAB")
)

// File parsed film container. File is read-only after Parse
// and may be shared between goroutines.
type File struct {
	Header Header
	Format Format
	Table  Table

	buf []byte
}

// Parse parses the header, format and sample table of a film container.
// Sample payloads are not validated until they are accessed.
func Parse(buf []byte) (*File, error) {
	f := File{buf: buf}
	if err := f.Header.Unmarshal(buf); err != nil {
		return nil, err
	}

	var foundFDSC, foundSTAB bool
	end := int(f.Header.DataOffset)
	pos := headerSize
	for end-pos >= chunkHeaderSize {
		tag := buf[pos : pos+4]
		length := pio.U32BE(buf[pos+4 : pos+8])
		if length <= chunkHeaderSize {
			return nil, fmt.Errorf("%w: %q at %d has length %d", ErrChunk, tag, pos, length)
		}
		if uint64(length) > uint64(end-pos) {
			return nil, fmt.Errorf("%w: %q at %d overruns data offset", ErrChunk, tag, pos)
		}
		chunk := buf[pos : pos+int(length)]

		switch {
		case bytes.Equal(tag, tagFDSC):
			if err := f.Format.Unmarshal(chunk); err != nil {
				return nil, err
			}
			foundFDSC = true
		case bytes.Equal(tag, tagSTAB):
			if err := f.Table.Unmarshal(chunk); err != nil {
				return nil, err
			}
			foundSTAB = true
		}
		pos += int(length)
	}

	if !foundFDSC {
		return nil, fmt.Errorf("%w: missing FDSC chunk", ErrFormat)
	}
	if !foundSTAB {
		return nil, fmt.Errorf("%w: missing STAB chunk", ErrFormat)
	}
	return &f, nil
}

// Entry sample with its absolute byte range.
type Entry struct {
	Index  int
	Sample Sample
	Kind   Kind
	Start  uint64
	End    uint64
}

// Samples returns a new iterator over the sample table in playback order.
func (f *File) Samples() *Iterator {
	return &Iterator{file: f}
}

// Data returns the payload of entry.
func (f *File) Data(e Entry) ([]byte, error) {
	if e.End > uint64(len(f.buf)) {
		return nil, fmt.Errorf("%w: sample %d [%d:%d] file size %d",
			ErrSampleOutOfBounds, e.Index, e.Start, e.End, len(f.buf))
	}
	return f.buf[e.Start:e.End], nil
}

// Count returns the number of audio and video samples.
func (f *File) Count() (audio int, video int) {
	for _, s := range f.Table.Samples {
		if s.Kind() == KindAudio {
			audio++
		} else {
			video++
		}
	}
	return audio, video
}

// FrameRate derives the video frame rate from the duration, in base
// frequency ticks, of the first video sample. False if it is unknown.
func (f *File) FrameRate() (float64, bool) {
	if f.Table.BaseFrequency == 0 {
		return 0, false
	}
	for _, s := range f.Table.Samples {
		if s.Kind() != KindVideo {
			continue
		}
		if s.Aux == 0 {
			return 0, false
		}
		return float64(f.Table.BaseFrequency) / float64(s.Aux), true
	}
	return 0, false
}

// Iterator finite and restartable sample iterator.
type Iterator struct {
	file *File
	i    int
}

// Next returns the next entry, false when the table is exhausted.
func (it *Iterator) Next() (Entry, bool) {
	samples := it.file.Table.Samples
	if it.i >= len(samples) {
		return Entry{}, false
	}
	s := samples[it.i]
	start := uint64(it.file.Header.DataOffset) + uint64(s.Offset)
	e := Entry{
		Index:  it.i,
		Sample: s,
		Kind:   s.Kind(),
		Start:  start,
		End:    start + uint64(s.Size),
	}
	it.i++
	return e, true
}

// Reset rewinds the iterator to the first sample.
func (it *Iterator) Reset() {
	it.i = 0
}
