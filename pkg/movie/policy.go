package movie

import (
	"cpk/pkg/adpcm"
	"cpk/pkg/cinepak"
	"cpk/pkg/film"
	"errors"
	"fmt"
)

// Errors.
var (
	ErrUnknownEncoding = errors.New("unknown audio encoding")
	ErrUnknownCodec    = errors.New("unknown audio codec")
)

// Codec audio codec.
type Codec uint8

// Audio codecs.
const (
	CodecAuto Codec = iota
	CodecPCM
	CodecDVI
	CodecYamaha
)

func (c Codec) String() string {
	switch c {
	case CodecAuto:
		return "auto"
	case CodecPCM:
		return "pcm"
	case CodecDVI:
		return "dvi"
	case CodecYamaha:
		return "yamaha"
	}
	return fmt.Sprintf("codec(%d)", uint8(c))
}

// ParseCodec parses the name returned by Codec.String.
// An empty string is CodecAuto.
func ParseCodec(name string) (Codec, error) {
	switch name {
	case "", "auto":
		return CodecAuto, nil
	case "pcm":
		return CodecPCM, nil
	case "dvi":
		return CodecDVI, nil
	case "yamaha":
		return CodecYamaha, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
}

// CodecForEncoding maps the audio encoding flag of a format to a codec.
func CodecForEncoding(flag uint8) (Codec, error) {
	switch flag {
	case film.EncodingPCM:
		return CodecPCM, nil
	case film.EncodingDVI:
		return CodecDVI, nil
	case film.EncodingYamaha:
		return CodecYamaha, nil
	}
	return 0, fmt.Errorf("%w: %d", ErrUnknownEncoding, flag)
}

// Policy how the audio chunks of a stream are decoded.
type Policy struct {
	Codec       Codec
	NibbleOrder adpcm.NibbleOrder

	// Continuous carries the decoder state from one
	// chunk to the next instead of resetting it.
	Continuous bool

	// HeaderBytes are stripped from the start of every chunk.
	HeaderBytes int
}

// DefaultPolicy returns the policy used when none is configured.
func DefaultPolicy(c Codec) Policy {
	switch c {
	case CodecDVI:
		return Policy{Codec: c, NibbleOrder: adpcm.HighFirst, Continuous: true}
	case CodecYamaha:
		return Policy{Codec: c, NibbleOrder: adpcm.LowFirst, Continuous: true}
	}
	return Policy{Codec: c}
}

// Config decode configuration shared by every file.
type Config struct {
	ColorMode cinepak.ColorMode

	// Codec overrides the codec selected by the audio encoding flag.
	Codec Codec

	// Policies overrides DefaultPolicy per codec.
	Policies map[Codec]Policy
}

// policy resolves the audio policy for a format.
func (c Config) policy(f film.Format) (Policy, error) {
	codec := c.Codec
	if codec == CodecAuto {
		var err error
		if codec, err = CodecForEncoding(f.AudioEncoding); err != nil {
			return Policy{}, err
		}
	}

	p, exist := c.Policies[codec]
	if !exist {
		return DefaultPolicy(codec), nil
	}
	p.Codec = codec
	if p.HeaderBytes < 0 {
		p.HeaderBytes = 0
	}
	return p, nil
}

// audioDecoder decodes the audio chunks of one stream. Chunks of multi
// channel audio hold one block per channel, each channel has its own state.
type audioDecoder struct {
	policy   Policy
	bitDepth uint8
	states   []adpcm.State // Nil for PCM.
	planes   [][]int16
}

func newAudioDecoder(p Policy, f film.Format) (*audioDecoder, error) {
	channels := int(f.AudioChannels)
	if channels == 0 {
		channels = 1
	}
	d := &audioDecoder{
		policy:   p,
		bitDepth: f.AudioBitDepth,
		planes:   make([][]int16, channels),
	}

	switch p.Codec {
	case CodecPCM:
		if _, err := adpcm.DecodePCM(nil, nil, f.AudioBitDepth); err != nil {
			return nil, err
		}
		return d, nil
	case CodecDVI, CodecYamaha:
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownCodec, p.Codec)
	}

	d.states = make([]adpcm.State, channels)
	for i := range d.states {
		if p.Codec == CodecDVI {
			d.states[i] = &adpcm.DVI{}
		} else {
			d.states[i] = adpcm.NewYamaha()
		}
	}
	return d, nil
}

// decode appends the interleaved samples of one chunk to dst.
func (d *audioDecoder) decode(dst []int16, chunk []byte) []int16 {
	if len(chunk) <= d.policy.HeaderBytes {
		return dst
	}
	chunk = chunk[d.policy.HeaderBytes:]

	if len(d.planes) == 1 {
		return d.decodeChannel(dst, chunk, 0)
	}

	size := len(chunk) / len(d.planes)
	n := -1
	for ch := range d.planes {
		d.planes[ch] = d.decodeChannel(d.planes[ch][:0], chunk[ch*size:(ch+1)*size], ch)
		if n == -1 || len(d.planes[ch]) < n {
			n = len(d.planes[ch])
		}
	}
	for i := 0; i < n; i++ {
		for ch := range d.planes {
			dst = append(dst, d.planes[ch][i])
		}
	}
	return dst
}

func (d *audioDecoder) decodeChannel(dst []int16, data []byte, ch int) []int16 {
	if d.states == nil {
		// Bit depth was validated when the decoder was created.
		dst, _ = adpcm.DecodePCM(dst, data, d.bitDepth)
		return dst
	}

	state := d.states[ch]
	if !d.policy.Continuous {
		state.Reset()
	}
	return state.Decode(dst, data, d.policy.NibbleOrder)
}
