// Package ffmock mocks ffmpeg processes.
package ffmock

import (
	"context"
	"cpk/pkg/ffmpeg"
	"errors"
	"os/exec"
	"time"
)

// MockProcessConfig process mocker config.
type MockProcessConfig struct {
	ReturnErr bool
	Sleep     time.Duration

	// OnStart receives the arguments of the command.
	OnStart func(args []string)
}

// NewProcessMocker creates process mocker from config.
func NewProcessMocker(c MockProcessConfig) ffmpeg.NewProcessFunc {
	return func(cmd *exec.Cmd) ffmpeg.Process {
		return mockProcess{
			c:    c,
			args: cmd.Args,
		}
	}
}

type mockProcess struct {
	c    MockProcessConfig
	args []string
}

// ErrMock returned by processes created with ReturnErr.
var ErrMock = errors.New("mock")

func (m mockProcess) Start(ctx context.Context) error {
	if m.c.OnStart != nil {
		m.c.OnStart(m.args)
	}
	if m.c.Sleep != 0 {
		select {
		case <-time.After(m.c.Sleep):
		case <-ctx.Done():
		}
	}
	if m.c.ReturnErr {
		return ErrMock
	}
	return nil
}

func (m mockProcess) Timeout(time.Duration) ffmpeg.Process { return m }
func (m mockProcess) StdoutLogger(ffmpeg.LogFunc) ffmpeg.Process { return m }
func (m mockProcess) StderrLogger(ffmpeg.LogFunc) ffmpeg.Process { return m }

// NewProcess sleeps for 15ms before returning.
var NewProcess = NewProcessMocker(MockProcessConfig{
	Sleep: 15 * time.Millisecond,
})

// NewProcessNil returns nil.
var NewProcessNil = NewProcessMocker(MockProcessConfig{})

// NewProcessErr returns ErrMock.
var NewProcessErr = NewProcessMocker(MockProcessConfig{
	ReturnErr: true,
})
