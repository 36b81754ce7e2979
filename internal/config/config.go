// SPDX-License-Identifier: MIT

// Package config loads the application configuration from YAML with
// environment overrides. Defaults are chosen so the analyzer runs with
// no config file at all.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"spectro/internal/pipeline"
	"spectro/internal/ring"
	"spectro/internal/window"
)

// Config is the full application configuration tree.
type Config struct {
	LogLevel  string          `yaml:"log_level"` // "debug", "info", "warn", "error"
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Capture   CaptureConfig   `yaml:"capture"`
	Split     SplitConfig     `yaml:"split"`
	Transport TransportConfig `yaml:"transport"`
}

// AnalysisConfig parameterizes the STFT pipeline.
type AnalysisConfig struct {
	FFTSize      int    `yaml:"fft_size"`      // frame length, power of two
	HopSize      int    `yaml:"hop_size"`      // samples between frame starts
	Window       string `yaml:"window"`        // "hann", "hamming", "rectangular"
	SampleRate   int    `yaml:"sample_rate"`   // analysis rate; input is resampled to it
	Mix          string `yaml:"mix"`           // "mono-downmix" or "per-channel"
	RingCapacity int    `yaml:"ring_capacity"` // 0 picks 4x fft_size
	Overflow     string `yaml:"overflow"`      // "block" or "fail"
	Tail         string `yaml:"tail"`          // "drop" or "zero-pad"
	QueueDepth   int    `yaml:"queue_depth"`
	ChunkSize    int    `yaml:"chunk_size"`
}

// CaptureConfig parameterizes live input.
type CaptureConfig struct {
	Device          int  `yaml:"device"` // -1 for the system default
	Channels        int  `yaml:"channels"`
	FramesPerBuffer int  `yaml:"frames_per_buffer"`
	LowLatency      bool `yaml:"low_latency"`
}

// SplitConfig parameterizes band splitting.
type SplitConfig struct {
	LowCutoff  float64 `yaml:"low_cutoff"`  // Hz
	HighCutoff float64 `yaml:"high_cutoff"` // Hz
}

// TransportConfig parameterizes frame broadcasting.
type TransportConfig struct {
	WebSocketEnabled bool          `yaml:"websocket_enabled"`
	WebSocketAddr    string        `yaml:"websocket_addr"`
	SendInterval     time.Duration `yaml:"send_interval"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Analysis: AnalysisConfig{
			FFTSize:    2048,
			HopSize:    1024,
			Window:     "hann",
			SampleRate: 44100,
			Mix:        "mono-downmix",
			Overflow:   "block",
			Tail:       "drop",
		},
		Capture: CaptureConfig{
			Device:          -1,
			Channels:        1,
			FramesPerBuffer: 1024,
		},
		Split: SplitConfig{
			LowCutoff:  200,
			HighCutoff: 2000,
		},
		Transport: TransportConfig{
			WebSocketEnabled: false,
			WebSocketAddr:    ":8080",
			SendInterval:     33 * time.Millisecond,
		},
	}
}

// Load reads the YAML file at path over the defaults. An empty path
// searches "spectro.yaml" then "config.yaml" in the working directory
// and falls back to pure defaults when neither exists. Environment
// overrides apply after the file, validation last.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		for _, candidate := range []string{"spectro.yaml", "config.yaml"} {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Environment overrides, applied after any file. SPECTRO_LOG_LEVEL,
// SPECTRO_WS_ENABLED, SPECTRO_WS_ADDR and SPECTRO_SAMPLE_RATE cover
// the settings that differ between deployments of the same file.
func (c *Config) applyEnvOverrides() {
	if val, ok := os.LookupEnv("SPECTRO_LOG_LEVEL"); ok {
		c.LogLevel = val
	}
	if val, ok := os.LookupEnv("SPECTRO_WS_ENABLED"); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			c.Transport.WebSocketEnabled = b
		}
	}
	if val, ok := os.LookupEnv("SPECTRO_WS_ADDR"); ok {
		c.Transport.WebSocketAddr = val
	}
	if val, ok := os.LookupEnv("SPECTRO_SAMPLE_RATE"); ok {
		if rate, err := strconv.Atoi(val); err == nil {
			c.Analysis.SampleRate = rate
		}
	}
}

// Validate checks every enum field and defers the numeric constraints
// to pipeline.Config.
func (c *Config) Validate() error {
	if _, err := window.Parse(c.Analysis.Window); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := pipeline.ParseMixPolicy(c.Analysis.Mix); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := ring.ParseOverflowPolicy(c.Analysis.Overflow); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := pipeline.ParseTailPolicy(c.Analysis.Tail); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Transport.WebSocketEnabled && c.Transport.WebSocketAddr == "" {
		return fmt.Errorf("config: transport.websocket_addr must be set when enabled")
	}
	if c.Split.LowCutoff < 0 || c.Split.HighCutoff < c.Split.LowCutoff {
		return fmt.Errorf("config: split cutoffs out of order: low=%g high=%g",
			c.Split.LowCutoff, c.Split.HighCutoff)
	}
	// Numeric frame constraints are enforced by pipeline.New, which
	// applies its defaults first.
	return nil
}

// Pipeline converts the analysis section into a pipeline.Config tagged
// with the given stream ID.
func (c *Config) Pipeline(streamID string) (pipeline.Config, error) {
	win, err := window.Parse(c.Analysis.Window)
	if err != nil {
		return pipeline.Config{}, fmt.Errorf("config: %w", err)
	}
	mix, err := pipeline.ParseMixPolicy(c.Analysis.Mix)
	if err != nil {
		return pipeline.Config{}, fmt.Errorf("config: %w", err)
	}
	overflow, err := ring.ParseOverflowPolicy(c.Analysis.Overflow)
	if err != nil {
		return pipeline.Config{}, fmt.Errorf("config: %w", err)
	}
	tail, err := pipeline.ParseTailPolicy(c.Analysis.Tail)
	if err != nil {
		return pipeline.Config{}, fmt.Errorf("config: %w", err)
	}

	return pipeline.Config{
		FFTSize:      c.Analysis.FFTSize,
		HopSize:      c.Analysis.HopSize,
		Window:       win,
		TargetRate:   c.Analysis.SampleRate,
		Mix:          mix,
		RingCapacity: c.Analysis.RingCapacity,
		Overflow:     overflow,
		Tail:         tail,
		QueueDepth:   c.Analysis.QueueDepth,
		ChunkSize:    c.Analysis.ChunkSize,
		StreamID:     streamID,
	}, nil
}
