package cinepak

import (
	"testing"

	"github.com/nareix/joy4/utils/bits/pio"
	"github.com/stretchr/testify/require"
)

func testChunk(id uint16, payload []byte) []byte {
	out := make([]byte, chunkHeaderSize, chunkHeaderSize+len(payload))
	pio.PutU16BE(out[0:2], id)
	pio.PutU16BE(out[2:4], uint16(chunkHeaderSize+len(payload)))
	return append(out, payload...)
}

func testStrip(id uint16, y, x, height, width int, chunks ...[]byte) []byte {
	var payload []byte
	for _, c := range chunks {
		payload = append(payload, c...)
	}
	out := make([]byte, stripHeaderSize, stripHeaderSize+len(payload))
	pio.PutU16BE(out[0:2], id)
	pio.PutU16BE(out[2:4], uint16(stripHeaderSize+len(payload)))
	pio.PutU16BE(out[4:6], uint16(y))
	pio.PutU16BE(out[6:8], uint16(x))
	pio.PutU16BE(out[8:10], uint16(height))
	pio.PutU16BE(out[10:12], uint16(width))
	return append(out, payload...)
}

func testFrame(width, height, strips int, data ...[]byte) []byte {
	var payload []byte
	for _, d := range data {
		payload = append(payload, d...)
	}
	out := make([]byte, frameHeaderSize, frameHeaderSize+len(payload))
	pio.PutU24BE(out[1:4], uint32(frameHeaderSize+len(payload)))
	pio.PutU16BE(out[4:6], uint16(width))
	pio.PutU16BE(out[6:8], uint16(height))
	pio.PutU16BE(out[8:10], uint16(strips))
	return append(out, payload...)
}

// fullCodebook returns 256 entries where unset slots are zero.
func fullCodebook(entries map[int][6]byte) []byte {
	out := make([]byte, codebookSize*entrySize)
	for slot, e := range entries {
		copy(out[slot*entrySize:], e[:])
	}
	return out
}

var gray = [6]byte{128, 128, 128, 128, 0, 0}

func requireUniform(t *testing.T, img *RGB24, c RGB) {
	t.Helper()
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			require.Equal(t, c, img.RGB24At(x, y), "pixel %d,%d", x, y)
		}
	}
}

func TestDecodeGrayFrame(t *testing.T) {
	data := testFrame(4, 4, 1,
		testStrip(stripIntra, 0, 0, 4, 4,
			testChunk(chunkV1Full, fullCodebook(map[int][6]byte{0: gray})),
			testChunk(chunkIntra, []byte{
				0, 0, 0, 0, // Flags, V1.
				0, // Index.
			}),
		),
	)

	d := NewDecoder(4, 4)
	frame, err := d.DecodeFrame(data)
	require.NoError(t, err)
	require.Equal(t, 0, frame.Index)
	require.Equal(t, 4, frame.Image.Bounds().Dx())
	requireUniform(t, frame.Image, RGB{128, 128, 128})
}

func TestDecodeV4(t *testing.T) {
	v4 := fullCodebook(map[int][6]byte{
		1: {10, 20, 30, 40, 0, 0},
		2: {50, 60, 70, 80, 0, 0},
	})
	data := testFrame(4, 4, 1,
		testStrip(stripIntra, 0, 0, 4, 4,
			testChunk(chunkV4Full, v4),
			testChunk(chunkIntra, []byte{
				0x80, 0, 0, 0, // Flags, V4.
				1, 2, 2, 1, // Indices.
			}),
		),
	)

	frame, err := NewDecoder(4, 4).DecodeFrame(data)
	require.NoError(t, err)

	expected := [4][4]uint8{
		{10, 20, 50, 60},
		{30, 40, 70, 80},
		{50, 60, 10, 20},
		{70, 80, 30, 40},
	}
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			l := expected[y][x]
			require.Equal(t, RGB{l, l, l}, frame.Image.RGB24At(x, y), "pixel %d,%d", x, y)
		}
	}
}

func TestDecodeV1Upsample(t *testing.T) {
	v1 := fullCodebook(map[int][6]byte{7: {10, 20, 30, 40, 0, 0}})
	data := testFrame(4, 4, 1,
		testStrip(stripIntra, 0, 0, 4, 4,
			testChunk(chunkV1Full, v1),
			testChunk(chunkIntra, []byte{0, 0, 0, 0, 7}),
		),
	)

	frame, err := NewDecoder(4, 4).DecodeFrame(data)
	require.NoError(t, err)

	expected := [4][4]uint8{
		{10, 10, 20, 20},
		{10, 10, 20, 20},
		{30, 30, 40, 40},
		{30, 30, 40, 40},
	}
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			l := expected[y][x]
			require.Equal(t, RGB{l, l, l}, frame.Image.RGB24At(x, y))
		}
	}
}

func TestDimensionMismatch(t *testing.T) {
	d := NewDecoder(4, 4)
	before := d.v1

	data := testFrame(8, 4, 1,
		testStrip(stripIntra, 0, 0, 4, 8,
			testChunk(chunkV1Full, fullCodebook(map[int][6]byte{0: gray})),
		),
	)
	frame, err := d.DecodeFrame(data)
	require.ErrorIs(t, err, ErrFrameDecode)
	require.Nil(t, frame)
	require.Equal(t, before, d.v1)

	// Short header.
	frame, err = d.DecodeFrame([]byte{0, 0, 0})
	require.ErrorIs(t, err, ErrFrameDecode)
	require.Nil(t, frame)

	// The decoder still works and the index is not consumed.
	frame, err = d.DecodeFrame(testFrame(4, 4, 0))
	require.NoError(t, err)
	require.Equal(t, 0, frame.Index)
}

func TestInterFrame(t *testing.T) {
	d := NewDecoder(8, 4)
	key := testFrame(8, 4, 1,
		testStrip(stripIntra, 0, 0, 4, 8,
			testChunk(chunkV1Full, fullCodebook(map[int][6]byte{
				0: gray,
				1: {10, 10, 10, 10, 0, 0},
			})),
			testChunk(chunkIntra, []byte{0, 0, 0, 0, 0, 0}),
		),
	)
	frame, err := d.DecodeFrame(key)
	require.NoError(t, err)
	requireUniform(t, frame.Image, RGB{128, 128, 128})

	t.Run("skipAll", func(t *testing.T) {
		// No flag words, every block reads as skipped.
		data := testFrame(8, 4, 1,
			testStrip(stripInter, 0, 0, 4, 8,
				testChunk(chunkInter, nil),
			),
		)
		frame, err := d.DecodeFrame(data)
		require.NoError(t, err)
		require.Equal(t, 1, frame.Index)
		requireUniform(t, frame.Image, RGB{128, 128, 128})
	})
	t.Run("codeFirstBlock", func(t *testing.T) {
		data := testFrame(8, 4, 1,
			testStrip(stripInter, 0, 0, 4, 8,
				testChunk(chunkInterAlt, []byte{
					0x80, 0, 0, 0, // Coded, V1, skipped.
					1, // Index.
				}),
			),
		)
		frame, err := d.DecodeFrame(data)
		require.NoError(t, err)
		require.Equal(t, 2, frame.Index)
		require.Equal(t, RGB{10, 10, 10}, frame.Image.RGB24At(3, 3))
		require.Equal(t, RGB{128, 128, 128}, frame.Image.RGB24At(4, 0))
	})
}

func TestFramesAreIndependentBuffers(t *testing.T) {
	d := NewDecoder(4, 4)
	data := testFrame(4, 4, 1,
		testStrip(stripIntra, 0, 0, 4, 4,
			testChunk(chunkV1Full, fullCodebook(map[int][6]byte{0: gray})),
			testChunk(chunkIntra, []byte{0, 0, 0, 0, 0}),
		),
	)
	first, err := d.DecodeFrame(data)
	require.NoError(t, err)
	first.Image.SetRGB24(0, 0, RGB{1, 2, 3})

	second, err := d.DecodeFrame(data)
	require.NoError(t, err)
	require.Equal(t, RGB{128, 128, 128}, second.Image.RGB24At(0, 0))
}

func TestStripResync(t *testing.T) {
	strip := testStrip(stripIntra, 0, 0, 4, 4,
		testChunk(chunkV1Full, fullCodebook(map[int][6]byte{0: gray})),
		testChunk(chunkIntra, []byte{0, 0, 0, 0, 0}),
	)

	t.Run("usesStrip", func(t *testing.T) {
		data := testFrame(4, 4, 1, []byte{0xde, 0xad}, strip)
		frame, err := NewDecoder(4, 4).DecodeFrame(data)
		require.NoError(t, err)
		requireUniform(t, frame.Image, RGB{0, 0, 0})
	})
	t.Run("nextStrip", func(t *testing.T) {
		data := testFrame(4, 4, 2, []byte{0xde, 0xad}, strip)
		frame, err := NewDecoder(4, 4).DecodeFrame(data)
		require.NoError(t, err)
		requireUniform(t, frame.Image, RGB{128, 128, 128})
	})
	t.Run("bounded", func(t *testing.T) {
		// Two junk words then a valid strip, only two attempts.
		data := testFrame(4, 4, 2, []byte{0xde, 0xad, 0xbe, 0xef}, strip)
		frame, err := NewDecoder(4, 4).DecodeFrame(data)
		require.NoError(t, err)
		requireUniform(t, frame.Image, RGB{0, 0, 0})
	})
}

func TestClipping(t *testing.T) {
	data := testFrame(6, 6, 1,
		testStrip(stripIntra, 0, 0, 6, 6,
			testChunk(chunkV1Full, fullCodebook(map[int][6]byte{0: gray})),
			testChunk(chunkIntra, []byte{
				0, 0, 0, 0,
				0, 0, 0, 0,
			}),
		),
	)
	frame, err := NewDecoder(6, 6).DecodeFrame(data)
	require.NoError(t, err)
	requireUniform(t, frame.Image, RGB{128, 128, 128})
}

func TestStripOutsideFrame(t *testing.T) {
	data := testFrame(4, 4, 1,
		testStrip(stripIntra, 100, 100, 4, 4,
			testChunk(chunkV1Full, fullCodebook(map[int][6]byte{0: gray})),
			testChunk(chunkIntra, []byte{0, 0, 0, 0, 0}),
		),
	)
	frame, err := NewDecoder(4, 4).DecodeFrame(data)
	require.NoError(t, err)
	requireUniform(t, frame.Image, RGB{0, 0, 0})
}

func TestBlocksOutsideFrame(t *testing.T) {
	// The strip is one block column wider than the frame. The
	// blocks of that column must not consume index bytes.
	data := testFrame(8, 8, 1,
		testStrip(stripIntra, 0, 0, 8, 12,
			testChunk(chunkV1Full, fullCodebook(map[int][6]byte{1: gray})),
			testChunk(chunkIntra, []byte{
				0, 0, 0, 0, // Flags, V1.
				1, 1, 1, 1, 0, 0,
			}),
		),
	)
	frame, err := NewDecoder(8, 8).DecodeFrame(data)
	require.NoError(t, err)
	requireUniform(t, frame.Image, RGB{128, 128, 128})
}

func TestMalformedChunkSizes(t *testing.T) {
	intra := testChunk(chunkIntra, []byte{0, 0, 0, 0, 0})
	// Declare a size larger than the strip.
	pio.PutU16BE(intra[2:4], 0xffff)

	data := testFrame(4, 4, 1,
		testStrip(stripIntra, 0, 0, 4, 4,
			testChunk(chunkV1Full, fullCodebook(map[int][6]byte{0: gray})),
			intra,
		),
	)
	frame, err := NewDecoder(4, 4).DecodeFrame(data)
	require.NoError(t, err)
	requireUniform(t, frame.Image, RGB{128, 128, 128})

	t.Run("tooSmall", func(t *testing.T) {
		bad := testChunk(chunkIntra, nil)
		pio.PutU16BE(bad[2:4], 1)
		data := testFrame(4, 4, 1, testStrip(stripIntra, 0, 0, 4, 4, bad))
		_, err := NewDecoder(4, 4).DecodeFrame(data)
		require.NoError(t, err)
	})
	t.Run("truncatedFrame", func(t *testing.T) {
		d := NewDecoder(4, 4)
		_, err := d.DecodeFrame(data[:len(data)-3])
		require.NoError(t, err)
	})
}
