package respond

import (
	"context"
	"log/slog"
	"time"

	"github.com/voxloop/voxloop/pkg/adapters/tts"
	"github.com/voxloop/voxloop/pkg/errorsx"
	"github.com/voxloop/voxloop/pkg/logging"
	"github.com/voxloop/voxloop/pkg/metrics"
	"github.com/voxloop/voxloop/pkg/resilience"
)

// PlaybackDevice is the single audio output. The sequencer is its only
// writer; that exclusivity is structural, not a convention.
type PlaybackDevice interface {
	// Write blocks until the chunk is handed to the device or ctx ends.
	Write(ctx context.Context, pcm []byte) error
	// Reset recovers the device after a write failure.
	Reset() error
	Close() error
}

// Job pairs a speakable unit with the response generation it belongs
// to. Stale jobs are discarded, never played.
type Job struct {
	Unit       SpeakableUnit
	Generation uint64
}

// SequencerHooks let the capture and transcription layers react to
// playback edges (widen queue thresholds, mute loopback, note echo
// timing). OnPlaybackEnd fires for abandoned units too, since their
// audio was partially audible; it carries only the end time, never the
// unit text. Nil hooks are skipped.
type SequencerHooks struct {
	OnPlaybackStart func()
	OnPlaybackEnd   func(endedAt time.Time)
}

// Sequencer is the single consumer turning speakable units into audio.
// It serializes playback so at most one unit is audible at a time, in
// emission order, and observes cancellation at chunk boundaries.
type Sequencer struct {
	jobs   chan Job
	gen    *Generation
	engine tts.Engine
	device PlaybackDevice
	retry  resilience.RetryPolicy
	obs    metrics.Observer
	hooks  SequencerHooks
	logger *slog.Logger
}

func NewSequencer(
	gen *Generation,
	engine tts.Engine,
	device PlaybackDevice,
	retry resilience.RetryPolicy,
	obs metrics.Observer,
	hooks SequencerHooks,
	queueSize int,
) *Sequencer {
	if queueSize <= 0 {
		queueSize = 32
	}
	return &Sequencer{
		jobs:   make(chan Job, queueSize),
		gen:    gen,
		engine: engine,
		device: device,
		retry:  retry,
		obs:    obs,
		hooks:  hooks,
		logger: logging.NewComponentLogger(slog.Default(), "sequencer"),
	}
}

// Enqueue submits a job for playback. Stale jobs are dropped up front.
func (s *Sequencer) Enqueue(ctx context.Context, job Job) error {
	if s.gen.IsStale(job.Generation) {
		metrics.Record(s.obs, metrics.EventStaleJobDiscard, map[string]string{"at": "enqueue"})
		return nil
	}
	select {
	case s.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drains the job queue until ctx is cancelled.
func (s *Sequencer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case job := <-s.jobs:
			if s.gen.IsStale(job.Generation) {
				metrics.Record(s.obs, metrics.EventStaleJobDiscard, map[string]string{"at": "dequeue"})
				continue
			}
			s.play(ctx, job)
		}
	}
}

func (s *Sequencer) play(ctx context.Context, job Job) {
	stream, err := s.engine.Synthesize(ctx, job.Unit.Text)
	if err != nil {
		// One bad unit never aborts the response.
		metrics.Record(s.obs, metrics.EventUnitSkipped, nil)
		s.logger.Warn("synthesis failed, skipping unit",
			slog.Int("sequence", job.Unit.Sequence),
			slog.String("reason", string(errorsx.Reason(err))),
			slog.Any("error", err))
		return
	}

	if s.hooks.OnPlaybackStart != nil {
		s.hooks.OnPlaybackStart()
	}

	failed := false
	for chunk := range stream {
		// Cancellation is observed between chunks, never mid-write.
		if s.gen.IsStale(job.Generation) || ctx.Err() != nil {
			go drain(stream)
			break
		}
		if err := s.writeChunk(ctx, chunk); err != nil {
			metrics.Record(s.obs, metrics.EventPlaybackFailed, nil)
			s.logger.Error("device write failed, abandoning unit",
				slog.Int("sequence", job.Unit.Sequence),
				slog.Any("error", err))
			failed = true
			go drain(stream)
			break
		}
	}

	if s.hooks.OnPlaybackEnd != nil {
		s.hooks.OnPlaybackEnd(time.Now())
	}
	if !failed {
		metrics.Record(s.obs, metrics.EventPlaybackComplete, nil)
	}
}

// writeChunk retries transient device errors, resetting the device
// between attempts.
func (s *Sequencer) writeChunk(ctx context.Context, pcm []byte) error {
	return s.retry.DoContext(ctx, func() error {
		err := s.device.Write(ctx, pcm)
		if err != nil {
			if rerr := s.device.Reset(); rerr != nil {
				s.logger.Warn("device reset failed", slog.Any("error", rerr))
			}
			return errorsx.Wrap(err, errorsx.ReasonDeviceWrite)
		}
		return nil
	})
}

// drain consumes an abandoned synthesis stream so its producer can
// finish and release resources.
func drain(stream <-chan []byte) {
	for range stream {
	}
}
