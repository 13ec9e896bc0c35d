package cpk

import (
	"bytes"
	"context"
	"cpk/pkg/ffmpeg"
	"cpk/pkg/ffmpeg/ffmock"
	"cpk/pkg/film"
	"cpk/pkg/log"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nareix/joy4/utils/bits/pio"
	"github.com/stretchr/testify/require"
)

// grayFrame returns a 4x4 cinepak frame where every pixel is 128.
func grayFrame() []byte {
	codebook := make([]byte, 4+256*6)
	pio.PutU16BE(codebook[0:2], 0x2100)
	pio.PutU16BE(codebook[2:4], uint16(len(codebook)))
	copy(codebook[4:], []byte{128, 128, 128, 128, 0, 0})

	intra := []byte{0x30, 0x00, 0, 9, 0, 0, 0, 0, 0}

	strip := make([]byte, 12, 12+len(codebook)+len(intra))
	strip = append(append(strip, codebook...), intra...)
	pio.PutU16BE(strip[0:2], 0x1000)
	pio.PutU16BE(strip[2:4], uint16(len(strip)))
	pio.PutU16BE(strip[8:10], 4)
	pio.PutU16BE(strip[10:12], 4)

	frame := make([]byte, 12, 12+len(strip))
	frame = append(frame, strip...)
	pio.PutU24BE(frame[1:4], uint32(len(frame)))
	pio.PutU16BE(frame[4:6], 4)
	pio.PutU16BE(frame[6:8], 4)
	pio.PutU16BE(frame[8:10], 1)
	return frame
}

func testMovie() []byte {
	w := film.NewWriter(film.Format{
		VideoCodec:      film.CodecCinepak,
		VideoWidth:      4,
		VideoHeight:     4,
		VideoDepth:      24,
		AudioChannels:   1,
		AudioBitDepth:   16,
		AudioEncoding:   film.EncodingDVI,
		AudioSampleRate: 22050,
	}, 600)
	w.WriteVideo(grayFrame(), 0, 50)
	w.WriteAudio([]byte{0x7f, 0x00})
	w.WriteVideo(grayFrame(), 50, 50)
	return w.Bytes()
}

func newTestApp(t *testing.T, homeDir string, onMux func([]string)) *App {
	t.Helper()

	ffmpegBin := filepath.Join(homeDir, "ffmpeg")
	require.NoError(t, os.WriteFile(ffmpegBin, nil, 0o600))

	envPath := filepath.Join(homeDir, "env.yaml")
	envYAML := "outputDir: " + filepath.Join(homeDir, "out") + "\n" +
		"ffmpegBin: " + ffmpegBin + "\n" +
		"mux: true\n" +
		"workers: 2\n"
	require.NoError(t, os.WriteFile(envPath, []byte(envYAML), 0o600))

	app, err := newApp(envPath, &sync.WaitGroup{})
	require.NoError(t, err)

	app.ffmpeg = ffmpeg.NewMock(ffmock.NewProcessMocker(ffmock.MockProcessConfig{
		OnStart: onMux,
	}))
	return app
}

func TestApp(t *testing.T) {
	homeDir := t.TempDir()

	good := filepath.Join(homeDir, "GOOD.CPK")
	bad := filepath.Join(homeDir, "BAD.CPK")
	require.NoError(t, os.WriteFile(good, testMovie(), 0o600))
	require.NoError(t, os.WriteFile(bad, []byte("not a movie"), 0o600))

	muxes := make(chan []string, 2)
	app := newTestApp(t, homeDir, func(args []string) { muxes <- args })

	sources, err := fileSources([]string{good, bad})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	err = app.run(ctx, sources)
	cancel()
	app.WG.Wait()
	require.ErrorIs(t, err, ErrFilesFailed)

	outDir := filepath.Join(homeDir, "out", "GOOD")
	require.FileExists(t, filepath.Join(outDir, "frame_0000.png"))
	require.FileExists(t, filepath.Join(outDir, "frame_0001.png"))
	require.FileExists(t, filepath.Join(outDir, "audio.wav"))
	require.NoDirExists(t, filepath.Join(homeDir, "out", "BAD"))

	require.Len(t, muxes, 1)
	args := <-muxes
	require.Equal(t, filepath.Join(homeDir, "out", "GOOD.mp4"), args[len(args)-1])
	require.Contains(t, args, "12")
	require.Contains(t, args, filepath.Join(outDir, "audio.wav"))
}

func TestAppCanceled(t *testing.T) {
	homeDir := t.TempDir()
	good := filepath.Join(homeDir, "GOOD.CPK")
	require.NoError(t, os.WriteFile(good, testMovie(), 0o600))

	app := newTestApp(t, homeDir, nil)
	sources, err := fileSources([]string{good})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = app.run(ctx, sources)
	app.WG.Wait()
	require.ErrorIs(t, err, context.Canceled)
}

func TestPrintLogs(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "logs.db")

	ctx, cancel := context.WithCancel(context.Background())
	wg := &sync.WaitGroup{}
	logger := log.NewLogger(wg)
	logger.Start(ctx)

	logDB := log.NewDB(dbPath, wg)
	require.NoError(t, logDB.Init(ctx))
	go logDB.SaveLogs(ctx, logger)

	require.Eventually(t, func() bool {
		logger.Info().Src("app").File("A.CPK").Msg("first")
		logger.Info().Src("app").File("B.CPK").Msg("second")
		a, err := logDB.Query(log.Query{Files: []string{"A.CPK"}, Limit: 1})
		if err != nil || len(a) != 1 {
			return false
		}
		b, err := logDB.Query(log.Query{Files: []string{"B.CPK"}, Limit: 1})
		return err == nil && len(b) == 1
	}, time.Second, 10*time.Millisecond)

	// The database allows one writer.
	cancel()
	wg.Wait()

	var out bytes.Buffer
	err := printLogs(context.Background(), dbPath, []string{"A.CPK"}, &out)
	require.NoError(t, err)
	require.Contains(t, out.String(), "[INFO] A.CPK: App: first")
	require.NotContains(t, out.String(), "B.CPK")

	out.Reset()
	err = printLogs(context.Background(), dbPath, nil, &out)
	require.NoError(t, err)
	require.Contains(t, out.String(), "B.CPK: App: second")
}

func TestFileSourcesMissing(t *testing.T) {
	_, err := fileSources([]string{filepath.Join(t.TempDir(), "NONE.CPK")})
	require.ErrorIs(t, err, os.ErrNotExist)
}

// discImage returns a mode 1 disc image with data stored as MOVIE.CPK.
func discImage(data []byte) []byte {
	const payloadSize = 2048
	record := func(name string, lba, size uint32, dir bool) []byte {
		rec := make([]byte, 34+len(name)-len(name)%2)
		rec[0] = uint8(len(rec))
		pio.PutU32BE(rec[6:10], lba)
		pio.PutU32BE(rec[14:18], size)
		if dir {
			rec[25] = 0x02
		}
		rec[32] = uint8(len(name))
		copy(rec[33:], name)
		return rec
	}

	nSectors := 20 + (len(data)+payloadSize-1)/payloadSize
	payloads := make([][]byte, nSectors)

	pvd := make([]byte, payloadSize)
	pvd[0] = 1
	copy(pvd[1:6], "CD001")
	copy(pvd[156:], record("\x00", 18, payloadSize, true))
	payloads[16] = pvd
	payloads[18] = append(record("\x00", 18, payloadSize, true),
		record("MOVIE.CPK;1", 20, uint32(len(data)), false)...)
	for i := 0; i*payloadSize < len(data); i++ {
		end := (i + 1) * payloadSize
		if end > len(data) {
			end = len(data)
		}
		payloads[20+i] = data[i*payloadSize : end]
	}

	var image []byte
	for _, payload := range payloads {
		sector := make([]byte, 2352)
		sector[15] = 1
		copy(sector[16:], payload)
		image = append(image, sector...)
	}
	return image
}

func TestDiscSources(t *testing.T) {
	movie := testMovie()
	image := bytes.NewReader(discImage(movie))

	t.Run("all", func(t *testing.T) {
		sources, err := discSourcesFromImage(image, nil)
		require.NoError(t, err)
		require.Len(t, sources, 1)
		require.Equal(t, "MOVIE.CPK", sources[0].name)
		require.Equal(t, int64(len(movie)), sources[0].size)

		data, err := sources[0].read()
		require.NoError(t, err)
		require.Equal(t, movie, data)
	})
	t.Run("named", func(t *testing.T) {
		sources, err := discSourcesFromImage(image, []string{"movie.cpk"})
		require.NoError(t, err)
		require.Len(t, sources, 1)
	})
	t.Run("missing", func(t *testing.T) {
		_, err := discSourcesFromImage(image, []string{"NONE.CPK"})
		require.Error(t, err)
	})
}
