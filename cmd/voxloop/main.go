package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/voxloop/voxloop/pkg/audio"
	"github.com/voxloop/voxloop/pkg/capture"
	"github.com/voxloop/voxloop/pkg/logging"
	"github.com/voxloop/voxloop/pkg/metrics"
	"github.com/voxloop/voxloop/pkg/providers/mock"
	"github.com/voxloop/voxloop/pkg/respond"
	"github.com/voxloop/voxloop/pkg/runner"
	"github.com/voxloop/voxloop/pkg/voxloop"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := voxloop.LoadConfig(*configPath)
	if err != nil {
		slog.Error("config load failed", slog.Any("error", err))
		os.Exit(1)
	}
	logging.InitLogger(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)

	devices, playback := buildAudioEndpoints(cfg)
	pipe, err := voxloop.NewPipeline(voxloop.PipelineOptions{
		Config:   cfg,
		Devices:  devices,
		Playback: playback,
		Observer: metrics.NewMemoryObserver(),
	})
	if err != nil {
		slog.Error("pipeline build failed", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	lifecycle := runner.NewLifecycleRunner(pipe, runner.Hooks{
		OnStart: func() {
			if err := pipe.Start(ctx); err != nil {
				slog.Error("pipeline start failed", slog.Any("error", err))
				stop()
			}
		},
	}, time.Duration(cfg.Session.DrainTimeoutSec)*time.Second)

	if err := lifecycle.Run(ctx); err != nil {
		slog.Error("shutdown incomplete", slog.Any("error", err))
		os.Exit(1)
	}
	slog.Info("goodbye")
}

// buildAudioEndpoints wires the audio boundary. Real device bindings
// (PortAudio, ALSA loopback) live in host programs; this binary runs
// with the in-memory devices so the pipeline can be exercised end to
// end without sound hardware.
func buildAudioEndpoints(cfg voxloop.Config) ([]capture.Device, respond.PlaybackDevice) {
	format := audio.Format{
		SampleRate:  cfg.Audio.SampleRate,
		SampleWidth: cfg.Audio.SampleWidth,
		Channels:    cfg.Audio.Channels,
	}
	mic := mock.NewCaptureDevice(mock.CaptureConfig{
		Source: audio.SourceMic,
		Format: format,
	})
	speaker := mock.NewCaptureDevice(mock.CaptureConfig{
		Source: audio.SourceSpeaker,
		Format: format,
	})
	return []capture.Device{mic, speaker}, mock.NewPlaybackDevice()
}
