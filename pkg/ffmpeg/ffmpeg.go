// SPDX-License-Identifier: GPL-2.0-or-later

// Package ffmpeg runs the ffmpeg binary.
package ffmpeg

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"
)

// LogFunc receives one line of process output.
type LogFunc func(string)

// Process interface only used for testing.
type Process interface {
	Timeout(time.Duration) Process
	StdoutLogger(LogFunc) Process
	StderrLogger(LogFunc) Process
	Start(ctx context.Context) error
}

// process manages subprocesses.
type process struct {
	timeout time.Duration
	cmd     *exec.Cmd

	stdoutLogger LogFunc
	stderrLogger LogFunc

	done chan struct{}
}

// NewProcessFunc is used for mocking.
type NewProcessFunc func(*exec.Cmd) Process

// NewProcess return process.
func NewProcess(cmd *exec.Cmd) Process {
	return process{
		timeout: 1000 * time.Millisecond,
		cmd:     cmd,
	}
}

// Timeout sets how long to wait after the interrupt
// signal before the process is killed.
func (p process) Timeout(timeout time.Duration) Process {
	p.timeout = timeout
	return p
}

// StdoutLogger sets a function called for every line of stdout.
func (p process) StdoutLogger(l LogFunc) Process {
	p.stdoutLogger = l
	return p
}

// StderrLogger sets a function called for every line of stderr.
func (p process) StderrLogger(l LogFunc) Process {
	p.stderrLogger = l
	return p
}

func attachLogger(
	wg *sync.WaitGroup,
	l LogFunc,
	label string,
	stdPipe func() (io.ReadCloser, error),
) error {
	pipe, err := stdPipe()
	if err != nil {
		return err
	}
	scanner := bufio.NewScanner(pipe)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for scanner.Scan() {
			l(label + ": " + scanner.Text())
		}
	}()
	return nil
}

// Start starts the process and waits for it to exit.
// The process is interrupted when ctx is canceled.
func (p process) Start(ctx context.Context) error {
	// Pipes must be drained before Wait closes them.
	var loggers sync.WaitGroup
	if p.stdoutLogger != nil {
		if err := attachLogger(&loggers, p.stdoutLogger, "stdout", p.cmd.StdoutPipe); err != nil {
			return err
		}
	}
	if p.stderrLogger != nil {
		if err := attachLogger(&loggers, p.stderrLogger, "stderr", p.cmd.StderrPipe); err != nil {
			return err
		}
	}

	if err := p.cmd.Start(); err != nil {
		return err
	}

	p.done = make(chan struct{})

	go func() {
		select {
		case <-p.done:
		case <-ctx.Done():
			p.stop()
		}
	}()

	loggers.Wait()
	err := p.cmd.Wait()
	close(p.done)

	// FFmpeg seems to return 255 on normal exit.
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 255 {
		return nil
	}

	return err
}

// Note, can't use CommandContext to stop process as it would
// kill the process before it has a chance to exit on its own.
func (p process) stop() {
	p.cmd.Process.Signal(os.Interrupt) //nolint:errcheck

	select {
	case <-p.done:
	case <-time.After(p.timeout):
		p.cmd.Process.Signal(os.Kill) //nolint:errcheck
		<-p.done
	}
}

// FFMPEG stores ffmpeg binary location.
type FFMPEG struct {
	command    func(...string) *exec.Cmd
	newProcess NewProcessFunc
}

// New returns FFMPEG.
func New(bin string) *FFMPEG {
	command := func(args ...string) *exec.Cmd {
		return exec.Command(bin, args...)
	}
	return &FFMPEG{
		command:    command,
		newProcess: NewProcess,
	}
}

// NewMock returns FFMPEG that starts processes with newProcess.
func NewMock(newProcess NewProcessFunc) *FFMPEG {
	f := New("ffmpeg")
	f.newProcess = newProcess
	return f
}

// DefaultFrameRate used when the movie does not define one.
const DefaultFrameRate = 15

// MuxArgs arguments for Mux.
type MuxArgs struct {
	FramePattern string  // Printf style path of the png frames.
	FrameRate    float64 // Defaults to DefaultFrameRate.
	AudioPath    string  // Optional wav file.
	Output       string
}

// Args returns the ffmpeg command line.
func (a MuxArgs) Args() []string {
	rate := a.FrameRate
	if rate <= 0 {
		rate = DefaultFrameRate
	}

	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-framerate", strconv.FormatFloat(rate, 'f', -1, 64),
		"-i", a.FramePattern,
	}
	if a.AudioPath != "" {
		args = append(args,
			"-i", a.AudioPath,
			"-map", "0:v", "-map", "1:a",
			"-c:a", "aac", "-b:a", "192k",
		)
	}
	return append(args,
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-preset", "medium",
		"-crf", "18",
		a.Output,
	)
}

// Mux encodes a png sequence and optional wav file into a video file.
func (f *FFMPEG) Mux(ctx context.Context, args MuxArgs, logFunc LogFunc) error {
	cmd := f.command(args.Args()...)
	return f.newProcess(cmd).
		StdoutLogger(logFunc).
		StderrLogger(logFunc).
		Start(ctx)
}
