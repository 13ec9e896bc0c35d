// Package export writes decoded movies to disk.
package export

import (
	"cpk/pkg/cinepak"
	"cpk/pkg/film"
	"errors"
	"fmt"
	"image/png"
	"os"
	"path/filepath"

	wave "github.com/zenwerk/go-wave"
)

// File names inside the output directory.
const (
	FramePattern = "frame_%04d.png"
	AudioName    = "audio.wav"
)

// ErrClosed writer is closed.
var ErrClosed = errors.New("writer closed")

// Writer writes every frame to a png image and the audio to a
// single wav file. Implements movie.Sink.
type Writer struct {
	dir     string
	encoder png.Encoder

	wav      *wave.Writer
	wavFile  *os.File
	channels int
	frames   int
	closed   bool
}

// NewWriter creates dir and, if the format has audio, the wav file.
func NewWriter(dir string, format film.Format) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	w := &Writer{
		dir: dir,
		encoder: png.Encoder{
			CompressionLevel: png.BestSpeed,
		},
		channels: int(format.AudioChannels),
	}
	if !format.HasAudio() {
		return w, nil
	}

	file, err := os.Create(w.AudioPath())
	if err != nil {
		return nil, fmt.Errorf("create wav: %w", err)
	}
	wav, err := wave.NewWriter(wave.WriterParam{
		Out:           file,
		Channel:       w.channels,
		SampleRate:    int(format.AudioSampleRate),
		BitsPerSample: 16,
	})
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("wav writer: %w", err)
	}
	w.wav = wav
	w.wavFile = file
	return w, nil
}

// FramePath returns the path of frame i.
func (w *Writer) FramePath(i int) string {
	return filepath.Join(w.dir, fmt.Sprintf(FramePattern, i))
}

// FramePattern returns the frame path pattern understood by ffmpeg.
func (w *Writer) FramePattern() string {
	return filepath.Join(w.dir, FramePattern)
}

// AudioPath returns the path of the wav file.
func (w *Writer) AudioPath() string {
	return filepath.Join(w.dir, AudioName)
}

// HasAudio reports if a wav file is being written.
func (w *Writer) HasAudio() bool {
	return w.wav != nil
}

// Frames returns the number of frames written.
func (w *Writer) Frames() int {
	return w.frames
}

// WriteFrame saves the frame as png.
func (w *Writer) WriteFrame(frame *cinepak.Frame) error {
	if w.closed {
		return ErrClosed
	}
	path := w.FramePath(frame.Index)
	os.Remove(path)

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := w.encoder.Encode(file, frame.Image); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	if err := file.Close(); err != nil {
		return err
	}
	w.frames++
	return nil
}

// WritePCM appends samples to the wav file, samples of
// multi channel audio are expected to be interleaved.
// Dropped if the format has no audio.
func (w *Writer) WritePCM(pcm []int16) error {
	if w.closed {
		return ErrClosed
	}
	if w.wav == nil || len(pcm) == 0 {
		return nil
	}
	if _, err := w.wav.WriteSample16(pcm); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	return nil
}

// Close finalizes the wav file.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if w.wav == nil {
		return nil
	}
	err := w.wav.Close()

	// The wav writer may already have closed the file.
	w.wavFile.Close()

	if err != nil {
		return fmt.Errorf("close wav: %w", err)
	}
	return nil
}
