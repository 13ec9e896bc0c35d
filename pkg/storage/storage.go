// SPDX-License-Identifier: GPL-2.0-or-later

// Package storage loads the environment configuration.
package storage

import (
	"cpk/pkg/adpcm"
	"cpk/pkg/cinepak"
	"cpk/pkg/movie"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v2"
)

// Errors.
var (
	ErrPathNotAbsolute    = errors.New("path is not absolute")
	ErrInvalidWorkers     = errors.New("workers cannot be negative")
	ErrInvalidColorMode   = errors.New("invalid color mode")
	ErrInvalidNibbleOrder = errors.New("invalid nibble order")
	ErrInvalidHeaderBytes = errors.New("headerBytes cannot be negative")
)

// ConfigEnv stores system configuration.
type ConfigEnv struct {
	OutputDir string `yaml:"outputDir"`
	FFmpegBin string `yaml:"ffmpegBin"`
	Mux       bool   `yaml:"mux"`

	// Files decoded in parallel, 0 picks from the hardware.
	Workers int    `yaml:"workers"`
	LogDB   string `yaml:"logDB"`

	Video VideoConfig `yaml:"video"`
	Audio AudioConfig `yaml:"audio"`

	ConfigDir string `yaml:"-"`
}

// VideoConfig .
type VideoConfig struct {
	// "standard", "swap" or "unsigned".
	ColorMode string `yaml:"colorMode"`
}

// AudioConfig .
type AudioConfig struct {
	// Overrides the codec selected by the encoding flag.
	Codec string `yaml:"codec"`

	// Keyed by codec name.
	Formats map[string]AudioFormat `yaml:"formats"`
}

// AudioFormat decode policy of one codec.
type AudioFormat struct {
	NibbleOrder string `yaml:"nibbleOrder"` // "high" or "low".
	Continuous  *bool  `yaml:"continuous"`  // Default true.
	HeaderBytes int    `yaml:"headerBytes"`
}

// NewConfigEnv return new environment configuration.
func NewConfigEnv(envPath string, envYAML []byte) (*ConfigEnv, error) {
	var env ConfigEnv

	if err := yaml.Unmarshal(envYAML, &env); err != nil {
		return nil, fmt.Errorf("unmarshal env.yaml: %w", err)
	}

	env.ConfigDir = filepath.Dir(envPath)

	if env.OutputDir == "" {
		env.OutputDir = filepath.Join(env.ConfigDir, "output")
	}
	if env.FFmpegBin == "" {
		env.FFmpegBin = "/usr/bin/ffmpeg"
	}
	if env.LogDB == "" {
		env.LogDB = filepath.Join(env.OutputDir, "logs.db")
	}

	if env.Workers < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWorkers, env.Workers)
	}
	if env.Mux && !fileExist(env.FFmpegBin) {
		return nil, fmt.Errorf("ffmpegBin '%v': %w", env.FFmpegBin, os.ErrNotExist)
	}

	if !filepath.IsAbs(env.OutputDir) {
		return nil, fmt.Errorf("outputDir '%v': %w", env.OutputDir, ErrPathNotAbsolute)
	}
	if !filepath.IsAbs(env.FFmpegBin) {
		return nil, fmt.Errorf("ffmpegBin '%v': %w", env.FFmpegBin, ErrPathNotAbsolute)
	}
	if !filepath.IsAbs(env.LogDB) {
		return nil, fmt.Errorf("logDB '%v': %w", env.LogDB, ErrPathNotAbsolute)
	}

	if _, err := env.MovieConfig(); err != nil {
		return nil, err
	}

	return &env, nil
}

// MovieConfig converts the video and audio sections.
func (env ConfigEnv) MovieConfig() (movie.Config, error) {
	colorMode, err := parseColorMode(env.Video.ColorMode)
	if err != nil {
		return movie.Config{}, err
	}
	codec, err := movie.ParseCodec(env.Audio.Codec)
	if err != nil {
		return movie.Config{}, fmt.Errorf("audio.codec: %w", err)
	}

	config := movie.Config{
		ColorMode: colorMode,
		Codec:     codec,
	}
	if len(env.Audio.Formats) == 0 {
		return config, nil
	}

	config.Policies = make(map[movie.Codec]movie.Policy)
	for name, format := range env.Audio.Formats {
		codec, err := movie.ParseCodec(name)
		if err != nil || codec == movie.CodecAuto {
			return movie.Config{}, fmt.Errorf("audio.formats: %w: %q", movie.ErrUnknownCodec, name)
		}
		policy, err := format.policy(codec)
		if err != nil {
			return movie.Config{}, fmt.Errorf("audio.formats.%v: %w", name, err)
		}
		config.Policies[codec] = policy
	}
	return config, nil
}

func (f AudioFormat) policy(codec movie.Codec) (movie.Policy, error) {
	p := movie.DefaultPolicy(codec)

	switch strings.ToLower(f.NibbleOrder) {
	case "":
	case "high":
		p.NibbleOrder = adpcm.HighFirst
	case "low":
		p.NibbleOrder = adpcm.LowFirst
	default:
		return movie.Policy{}, fmt.Errorf("%w: %q", ErrInvalidNibbleOrder, f.NibbleOrder)
	}

	if f.Continuous != nil {
		p.Continuous = *f.Continuous
	}
	if f.HeaderBytes < 0 {
		return movie.Policy{}, fmt.Errorf("%w: %d", ErrInvalidHeaderBytes, f.HeaderBytes)
	}
	p.HeaderBytes = f.HeaderBytes
	return p, nil
}

func parseColorMode(mode string) (cinepak.ColorMode, error) {
	switch strings.ToLower(mode) {
	case "", "standard":
		return cinepak.ColorStandard, nil
	case "swap":
		return cinepak.ColorSwap, nil
	case "unsigned":
		return cinepak.ColorUnsigned, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidColorMode, mode)
}

// MovieDir returns the output directory of a movie file.
func (env ConfigEnv) MovieDir(name string) string {
	base := filepath.Base(name)
	return filepath.Join(env.OutputDir, strings.TrimSuffix(base, filepath.Ext(base)))
}

// MuxPath returns the path of the muxed video of a movie file.
func (env ConfigEnv) MuxPath(name string) string {
	return env.MovieDir(name) + ".mp4"
}

// PrepareEnvironment prepares directories.
func (env ConfigEnv) PrepareEnvironment() error {
	err := os.MkdirAll(env.OutputDir, 0o755)
	if err != nil && !errors.Is(err, os.ErrExist) {
		return fmt.Errorf("create output directory: %v: %w", env.OutputDir, err)
	}
	err = os.MkdirAll(filepath.Dir(env.LogDB), 0o755)
	if err != nil && !errors.Is(err, os.ErrExist) {
		return fmt.Errorf("create log directory: %v: %w", env.LogDB, err)
	}
	return nil
}

func fileExist(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
