// SPDX-License-Identifier: GPL-2.0-or-later

// Package cpk extracts the movies of Sega Saturn discs.
package cpk

import (
	"context"
	"cpk/pkg/export"
	"cpk/pkg/ffmpeg"
	"cpk/pkg/film"
	"cpk/pkg/log"
	"cpk/pkg/movie"
	"cpk/pkg/storage"
	"cpk/pkg/system"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
)

const usage = `extract the movies of a saturn disc or of .CPK files
example: cpkextract -disc ./disc.bin
         cpkextract -disc ./disc.bin OPEN.CPK
         cpkextract -config ./env.yaml ./OPEN.CPK ./END.CPK
         cpkextract -logs ./OPEN.CPK`

// logsLimit number of entries printed by -logs.
const logsLimit = 100

// ErrFilesFailed at least one movie could not be extracted.
var ErrFilesFailed = errors.New("files failed")

// Run .
func Run() error {
	configFlag := flag.String("config", "", "path to env.yaml")
	discFlag := flag.String("disc", "", "raw 2352 byte sector disc image")
	logsFlag := flag.Bool("logs", false, "print the latest logs, only of the given files if any")
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	envPath, err := envPath(*configFlag)
	if err != nil {
		return err
	}

	if *logsFlag {
		env, err := loadEnv(envPath)
		if err != nil {
			return err
		}
		return printLogs(context.Background(), env.LogDB, flag.Args(), os.Stdout)
	}

	if *discFlag == "" && flag.NArg() == 0 {
		flag.Usage()
		return nil
	}

	sources, closeSources, err := openSources(*discFlag, flag.Args())
	if err != nil {
		return err
	}
	defer closeSources() //nolint:errcheck

	wg := &sync.WaitGroup{}
	app, err := newApp(envPath, wg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fatal := make(chan error, 1)
	go func() { fatal <- app.run(ctx, sources) }()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err = <-fatal:
	case signal := <-stop:
		app.Logger.Info().Msg("") // New line.
		app.Logger.Info().Src("app").Msgf("received %v, stopping", signal)
		cancel()
		err = <-fatal
	}

	// Let the stdout logger print the last messages.
	time.Sleep(10 * time.Millisecond)

	cancel()
	wg.Wait()
	return err
}

// envPath returns the absolute path of env.yaml. Without
// a flag the defaults are used relative to the working
// directory and the file does not need to exist.
func envPath(flagValue string) (string, error) {
	if flagValue == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		return filepath.Join(wd, "env.yaml"), nil
	}
	path, err := filepath.Abs(flagValue)
	if err != nil {
		return "", fmt.Errorf("could not get absolute path of env.yaml: %w", err)
	}
	return path, nil
}

func openSources(discPath string, args []string) ([]source, func() error, error) {
	if discPath == "" {
		sources, err := fileSources(args)
		return sources, func() error { return nil }, err
	}
	return discSources(discPath, args)
}

func loadEnv(envPath string) (*storage.ConfigEnv, error) {
	envYAML, err := os.ReadFile(envPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("could not read env.yaml: %w", err)
	}

	env, err := storage.NewConfigEnv(envPath, envYAML)
	if err != nil {
		return nil, fmt.Errorf("could not get environment config: %w", err)
	}
	return env, nil
}

// printLogs prints the latest logs of the given files, oldest first.
func printLogs(ctx context.Context, dbPath string, files []string, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	wg := &sync.WaitGroup{}
	defer wg.Wait()
	defer cancel()

	logDB := log.NewDB(dbPath, wg)
	if err := logDB.Init(ctx); err != nil {
		return fmt.Errorf("could not open log database: %w", err)
	}

	q := log.Query{Limit: logsLimit}
	if len(files) != 0 {
		q.Files = files
	}
	logs, err := logDB.Query(q)
	if err != nil {
		return fmt.Errorf("query logs: %w", err)
	}

	for i := len(logs) - 1; i >= 0; i-- {
		t := time.UnixMicro(int64(logs[i].Time))
		fmt.Fprintf(out, "%v %v\n", t.Format("2006-01-02 15:04:05"), logs[i])
	}
	return nil
}

func newApp(envPath string, wg *sync.WaitGroup) (*App, error) {
	env, err := loadEnv(envPath)
	if err != nil {
		return nil, err
	}

	movieConfig, err := env.MovieConfig()
	if err != nil {
		return nil, err
	}

	return &App{
		WG:          wg,
		Logger:      log.NewLogger(wg),
		logDB:       log.NewDB(env.LogDB, wg),
		Env:         *env,
		movieConfig: movieConfig,
		ffmpeg:      ffmpeg.New(env.FFmpegBin),
		system:      system.New(),
	}, nil
}

// App is the main application struct.
type App struct {
	WG          *sync.WaitGroup
	Logger      *log.Logger
	logDB       *log.DB
	Env         storage.ConfigEnv
	movieConfig movie.Config
	ffmpeg      *ffmpeg.FFMPEG
	system      *system.System
}

func (app *App) run(ctx context.Context, sources []source) error {
	app.Logger.Start(ctx)
	go app.Logger.LogToStdout(ctx)

	if err := app.Env.PrepareEnvironment(); err != nil {
		return fmt.Errorf("could not prepare environment: %w", err)
	}

	if err := app.logDB.Init(ctx); err != nil {
		// Continue even if log database is corrupt.
		time.Sleep(10 * time.Millisecond)
		app.Logger.Error().Src("app").Msgf("could not initialize log database: %v", err)
	} else {
		go app.logDB.SaveLogs(ctx, app.Logger)
		time.Sleep(10 * time.Millisecond)
	}

	workers := app.workers(sources)
	app.Logger.Info().Src("app").
		Msgf("extracting %d movies with %d workers", len(sources), workers)

	var failed int32
	g, ctx2 := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, src := range sources {
		src := src
		g.Go(func() error {
			err := app.processFile(ctx2, src)
			if err == nil {
				return nil
			}
			if ctx2.Err() != nil {
				return ctx2.Err()
			}
			atomic.AddInt32(&failed, 1)
			app.Logger.Error().Src("app").File(src.name).Msgf("%v", err)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if failed != 0 {
		return fmt.Errorf("%w: %d of %d", ErrFilesFailed, failed, len(sources))
	}
	app.Logger.Info().Src("app").Msg("done")
	return nil
}

func (app *App) workers(sources []source) int {
	if app.Env.Workers != 0 {
		return app.Env.Workers
	}
	var maxSize int64
	for _, src := range sources {
		if src.size > maxSize {
			maxSize = src.size
		}
	}
	return app.system.Workers(maxSize)
}

// processFile decodes one movie into its output directory.
func (app *App) processFile(ctx context.Context, src source) error {
	data, err := src.read()
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}

	file, err := film.Parse(data)
	if err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	audio, video := file.Count()
	app.Logger.Debug().Src("film").File(src.name).Msgf(
		"%dx%d, %d video samples, %d audio samples",
		file.Format.VideoWidth, file.Format.VideoHeight, video, audio)

	w, err := export.NewWriter(app.Env.MovieDir(src.name), file.Format)
	if err != nil {
		return err
	}
	stats, err := movie.Decode(ctx, src.name, file, app.movieConfig, w, app.Logger)
	if err2 := w.Close(); err == nil {
		err = err2
	}
	if err != nil {
		return err
	}

	app.Logger.Info().Src("app").File(src.name).Msgf(
		"%d frames, %d skipped, %d audio samples, %d out of bounds",
		stats.Frames, stats.Skipped, stats.Samples, stats.OutOfBounds)

	if !app.Env.Mux || w.Frames() == 0 {
		return nil
	}
	return app.mux(ctx, src.name, file, w)
}

func (app *App) mux(ctx context.Context, name string, file *film.File, w *export.Writer) error {
	args := ffmpeg.MuxArgs{
		FramePattern: w.FramePattern(),
		Output:       app.Env.MuxPath(name),
	}
	if rate, ok := file.FrameRate(); ok {
		args.FrameRate = rate
	}
	if w.HasAudio() {
		args.AudioPath = w.AudioPath()
	}

	logFunc := func(msg string) {
		app.Logger.Debug().Src("ffmpeg").File(name).Msg(msg)
	}
	if err := app.ffmpeg.Mux(ctx, args, logFunc); err != nil {
		return fmt.Errorf("mux: %w", err)
	}
	app.Logger.Info().Src("app").File(name).Msgf("saved %v", args.Output)
	return nil
}
