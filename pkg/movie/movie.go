// Package movie decodes every sample of a FILM container in disc order.
package movie

import (
	"context"
	"cpk/pkg/cinepak"
	"cpk/pkg/film"
	"cpk/pkg/log"
	"errors"
	"fmt"
)

// Sink receives decoded frames and audio in disc order. The
// slice passed to WritePCM is reused once the call returns.
type Sink interface {
	WriteFrame(*cinepak.Frame) error
	WritePCM([]int16) error
}

// Stats decode statistics.
type Stats struct {
	Frames       int // Decoded video frames.
	Skipped      int // Video samples that failed to decode.
	AudioChunks  int
	AudioSkipped int // Audio chunks without a usable decoder.
	Samples      int // PCM samples.
	OutOfBounds  int
}

// Decode decodes file into sink. Failures of a single frame or audio
// chunk are logged and counted, errors from the sink or ctx stop
// decoding. The name is only used for logging.
func Decode(
	ctx context.Context,
	name string,
	file *film.File,
	cfg Config,
	sink Sink,
	logger *log.Logger,
) (Stats, error) {
	var stats Stats

	format := file.Format
	if format.VideoCodec != film.CodecCinepak {
		logger.Warn().Src("movie").File(name).
			Msgf("unexpected video codec %q, decoding as cinepak", format.VideoCodec[:])
	}
	video := cinepak.NewDecoder(
		int(format.VideoWidth),
		int(format.VideoHeight),
		cinepak.WithColorMode(cfg.ColorMode),
	)

	audio, err := newFileAudioDecoder(cfg, format)
	if err != nil {
		logger.Warn().Src("movie").File(name).Msgf("audio disabled: %v", err)
	}

	var pcm []int16
	it := file.Samples()
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		entry, ok := it.Next()
		if !ok {
			return stats, nil
		}

		data, err := file.Data(entry)
		if errors.Is(err, film.ErrSampleOutOfBounds) {
			stats.OutOfBounds++
			logger.Warn().Src("film").File(name).Msgf("sample %d: %v", entry.Index, err)
			continue
		} else if err != nil {
			return stats, err
		}

		switch entry.Kind {
		case film.KindVideo:
			frame, err := video.DecodeFrame(data)
			if err != nil {
				stats.Skipped++
				logger.Warn().Src("cinepak").File(name).Msgf("sample %d: %v", entry.Index, err)
				continue
			}
			if err := sink.WriteFrame(frame); err != nil {
				return stats, fmt.Errorf("write frame %d: %w", frame.Index, err)
			}
			stats.Frames++

		case film.KindAudio:
			if audio == nil {
				stats.AudioSkipped++
				continue
			}
			pcm = audio.decode(pcm[:0], data)
			if err := sink.WritePCM(pcm); err != nil {
				return stats, fmt.Errorf("write audio sample %d: %w", entry.Index, err)
			}
			stats.AudioChunks++
			stats.Samples += len(pcm)
		}
	}
}

func newFileAudioDecoder(cfg Config, format film.Format) (*audioDecoder, error) {
	policy, err := cfg.policy(format)
	if err != nil {
		return nil, err
	}
	return newAudioDecoder(policy, format)
}
