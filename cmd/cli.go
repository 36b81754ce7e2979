// SPDX-License-Identifier: MIT

// Package cmd wires the command line surface: offline analysis, band
// splitting, live capture and device listing, all driven by the shared
// YAML configuration with per-run flag overrides.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"spectro/internal/bandsplit"
	"spectro/internal/capture"
	"spectro/internal/config"
	"spectro/internal/decode"
	applog "spectro/internal/log"
	"spectro/internal/pipeline"
	"spectro/internal/transport"
	"spectro/pkg/build"
)

// Execute parses arguments and runs the selected command.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	var (
		cfgPath  string
		logLevel string
		cfg      *config.Config
	)

	rootCmd := &cobra.Command{
		Use:           "spectro",
		Short:         "Streaming spectral analysis for audio files and live input",
		Version:       build.String(),
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(cfgPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			level, ok := applog.ParseLevel(cfg.LogLevel)
			if !ok {
				return fmt.Errorf("unknown log level %q", cfg.LogLevel)
			}
			applog.SetLevel(level)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "",
		"Path to the YAML config file (default: spectro.yaml in the working directory)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"Log level: debug, info, warn, error")

	addAnalysisFlags := func(cmd *cobra.Command) {
		f := cmd.Flags()
		f.Int("fft-size", 0, "FFT frame size (power of two)")
		f.Int("hop-size", 0, "Samples between frame starts")
		f.String("window", "", "Window function: hann, hamming, rectangular")
		f.Int("sample-rate", 0, "Analysis sample rate in Hz; input is resampled")
		f.String("mix", "", "Channel policy: mono-downmix or per-channel")
		f.String("tail", "", "Tail policy: drop or zero-pad")
	}
	applyAnalysisFlags := func(cmd *cobra.Command) {
		f := cmd.Flags()
		if f.Changed("fft-size") {
			cfg.Analysis.FFTSize, _ = f.GetInt("fft-size")
		}
		if f.Changed("hop-size") {
			cfg.Analysis.HopSize, _ = f.GetInt("hop-size")
		}
		if f.Changed("window") {
			cfg.Analysis.Window, _ = f.GetString("window")
		}
		if f.Changed("sample-rate") {
			cfg.Analysis.SampleRate, _ = f.GetInt("sample-rate")
		}
		if f.Changed("mix") {
			cfg.Analysis.Mix, _ = f.GetString("mix")
		}
		if f.Changed("tail") {
			cfg.Analysis.Tail, _ = f.GetString("tail")
		}
	}

	analyzeCmd := &cobra.Command{
		Use:   "analyze <file>",
		Short: "Decode a file and stream spectral frames as JSON lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			applyAnalysisFlags(cmd)
			return runAnalyze(cfg, args[0])
		},
	}
	addAnalysisFlags(analyzeCmd)
	rootCmd.AddCommand(analyzeCmd)

	splitCmd := &cobra.Command{
		Use:   "split <file>",
		Short: "Split a file into low and high frequency band WAVs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			applyAnalysisFlags(cmd)
			if cmd.Flags().Changed("low-cutoff") {
				cfg.Split.LowCutoff, _ = cmd.Flags().GetFloat64("low-cutoff")
			}
			if cmd.Flags().Changed("high-cutoff") {
				cfg.Split.HighCutoff, _ = cmd.Flags().GetFloat64("high-cutoff")
			}
			out, _ := cmd.Flags().GetString("output")
			return runSplit(cfg, args[0], out)
		},
	}
	addAnalysisFlags(splitCmd)
	splitCmd.Flags().Float64("low-cutoff", 200, "Low frequency cutoff in Hz")
	splitCmd.Flags().Float64("high-cutoff", 2000, "High frequency cutoff in Hz")
	splitCmd.Flags().StringP("output", "o", ".", "Output directory for the band WAV files")
	rootCmd.AddCommand(splitCmd)

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "Analyze live input from an audio device",
		RunE: func(cmd *cobra.Command, args []string) error {
			applyAnalysisFlags(cmd)
			if cmd.Flags().Changed("device") {
				cfg.Capture.Device, _ = cmd.Flags().GetInt("device")
			}
			if cmd.Flags().Changed("channels") {
				cfg.Capture.Channels, _ = cmd.Flags().GetInt("channels")
			}
			return runLive(cfg)
		},
	}
	addAnalysisFlags(liveCmd)
	liveCmd.Flags().IntP("device", "d", capture.DefaultDeviceID,
		"Input device ID; use the devices command to list them")
	liveCmd.Flags().IntP("channels", "c", 1, "Channels to capture (1=mono, 2=stereo)")
	rootCmd.AddCommand(liveCmd)

	devicesCmd := &cobra.Command{
		Use:   "devices",
		Short: "List available audio devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := capture.Initialize(); err != nil {
				return err
			}
			defer capture.Terminate()
			return capture.ListDevices()
		},
	}
	rootCmd.AddCommand(devicesCmd)

	return rootCmd
}

// runFrames runs p to completion, forwarding every frame to the sinks.
func runFrames(ctx context.Context, p *pipeline.Pipeline, sinks ...transport.Sink) error {
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	for f := range p.Frames() {
		for _, sink := range sinks {
			if err := sink.Send(f); err != nil {
				applog.Warnf("sink send: %v", err)
			}
		}
	}
	return <-done
}

func runAnalyze(cfg *config.Config, path string) error {
	src, err := decode.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	pcfg, err := cfg.Pipeline(filepath.Base(path))
	if err != nil {
		return err
	}
	p, err := pipeline.New(src, pcfg)
	if err != nil {
		return err
	}

	sinks := []transport.Sink{transport.NewWriterSink(os.Stdout, pcfg.StreamID)}
	if cfg.Transport.WebSocketEnabled {
		ws := transport.NewWebSocketSink(cfg.Transport.WebSocketAddr, pcfg.StreamID, cfg.Transport.SendInterval)
		defer ws.Close()
		sinks = append(sinks, ws)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return runFrames(ctx, p, sinks...)
}

func runSplit(cfg *config.Config, input, outDir string) error {
	src, err := decode.Open(input)
	if err != nil {
		return err
	}
	defer src.Close()

	pcfg, err := cfg.Pipeline(filepath.Base(input))
	if err != nil {
		return err
	}
	// Band synthesis needs the whole signal and a single lane; the
	// zero-padded tail keeps the final samples, and the splitter
	// truncates the padding afterwards.
	pcfg.Mix = pipeline.MixMono
	pcfg.Tail = pipeline.TailZeroPad

	p, err := pipeline.New(src, pcfg)
	if err != nil {
		return err
	}
	splitter, err := bandsplit.New(pcfg.FFTSize, pcfg.TargetRate, pcfg.Window,
		cfg.Split.LowCutoff, cfg.Split.HighCutoff)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background()) }()
	for f := range p.Frames() {
		if err := splitter.Consume(f); err != nil {
			return err
		}
	}
	if err := <-done; err != nil {
		return err
	}

	low, high := splitter.Bands()
	lowPath := filepath.Join(outDir, "low_freq.wav")
	highPath := filepath.Join(outDir, "high_freq.wav")

	applog.Infof("split: writing %s and %s (%d samples each)", lowPath, highPath, len(low))
	if err := bandsplit.WriteWAV(lowPath, low, pcfg.TargetRate); err != nil {
		return err
	}
	return bandsplit.WriteWAV(highPath, high, pcfg.TargetRate)
}

func runLive(cfg *config.Config) error {
	if err := capture.Initialize(); err != nil {
		return err
	}
	defer capture.Terminate()

	src, err := capture.OpenSource(capture.Config{
		DeviceID:        cfg.Capture.Device,
		Channels:        cfg.Capture.Channels,
		SampleRate:      cfg.Analysis.SampleRate,
		FramesPerBuffer: cfg.Capture.FramesPerBuffer,
		LowLatency:      cfg.Capture.LowLatency,
	})
	if err != nil {
		return err
	}

	pcfg, err := cfg.Pipeline("live")
	if err != nil {
		return err
	}
	p, err := pipeline.New(src, pcfg)
	if err != nil {
		src.Close()
		return err
	}

	sinks := []transport.Sink{}
	if cfg.Transport.WebSocketEnabled {
		ws := transport.NewWebSocketSink(cfg.Transport.WebSocketAddr, "live", cfg.Transport.SendInterval)
		defer ws.Close()
		sinks = append(sinks, ws)
	} else {
		sinks = append(sinks, transport.NewWriterSink(os.Stdout, "live"))
	}

	// SIGINT ends the capture stream; the pipeline then drains and
	// completes cleanly rather than being cancelled mid-frame.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		applog.Infof("live: stopping capture")
		src.Close()
	}()

	err = runFrames(context.Background(), p, sinks...)
	if dropped := src.Dropped(); dropped > 0 {
		applog.Warnf("live: %d capture buffers dropped", dropped)
	}
	return err
}
