package film

import (
	"bytes"
	"fmt"
	"io"
)

// Writer builds film containers. Samples are laid out
// in the order they are added.
type Writer struct {
	format        Format
	baseFrequency uint32

	samples []Sample
	data    bytes.Buffer
}

// NewWriter creates a new Writer.
func NewWriter(format Format, baseFrequency uint32) *Writer {
	return &Writer{
		format:        format,
		baseFrequency: baseFrequency,
	}
}

// WriteVideo adds a video sample.
func (w *Writer) WriteVideo(payload []byte, marker uint32, ticks uint32) {
	w.add(payload, marker, ticks)
}

// WriteAudio adds an audio sample.
func (w *Writer) WriteAudio(payload []byte) {
	w.add(payload, MarkerAudio, 1)
}

// WriteSample adds a raw sample entry without payload.
// Used to reference data outside of the container.
func (w *Writer) WriteSample(s Sample) {
	w.samples = append(w.samples, s)
}

func (w *Writer) add(payload []byte, marker uint32, aux uint32) {
	w.samples = append(w.samples, Sample{
		Offset: uint32(w.data.Len()),
		Size:   uint32(len(payload)),
		Marker: marker,
		Aux:    aux,
	})
	w.data.Write(payload)
}

// WriteTo writes the container to out.
func (w *Writer) WriteTo(out io.Writer) (int64, error) {
	fdsc := w.format.Marshal()
	stab := Table{
		BaseFrequency: w.baseFrequency,
		Samples:       w.samples,
	}.Marshal()

	header := Header{
		Magic:      Magic,
		DataOffset: uint32(headerSize + len(fdsc) + len(stab)),
		Version:    [4]byte{'1', '.', '0', '9'},
	}

	var written int64
	for _, b := range [][]byte{header.Marshal(), fdsc, stab, w.data.Bytes()} {
		n, err := out.Write(b)
		written += int64(n)
		if err != nil {
			return written, fmt.Errorf("write: %w", err)
		}
	}
	return written, nil
}

// Bytes returns the marshaled container.
func (w *Writer) Bytes() []byte {
	var buf bytes.Buffer
	w.WriteTo(&buf) //nolint:errcheck
	return buf.Bytes()
}
