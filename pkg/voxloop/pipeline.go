package voxloop

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voxloop/voxloop/pkg/adapters/stt"
	"github.com/voxloop/voxloop/pkg/adapters/tts"
	"github.com/voxloop/voxloop/pkg/adapters/voiceid"
	"github.com/voxloop/voxloop/pkg/audio"
	"github.com/voxloop/voxloop/pkg/capture"
	"github.com/voxloop/voxloop/pkg/conversation"
	"github.com/voxloop/voxloop/pkg/llm"
	"github.com/voxloop/voxloop/pkg/logging"
	"github.com/voxloop/voxloop/pkg/metrics"
	"github.com/voxloop/voxloop/pkg/resilience"
	"github.com/voxloop/voxloop/pkg/respond"
	"github.com/voxloop/voxloop/pkg/transcribe"
)

// PipelineOptions carries everything a pipeline needs beyond the file
// configuration. Adapters left nil are built from the vendor config via
// the registry.
type PipelineOptions struct {
	Config   Config
	Registry *ProviderRegistry

	// Devices are the capture paths feeding the intake queue. The device
	// with the speaker source is additionally gated around playback.
	Devices  []capture.Device
	Playback respond.PlaybackDevice

	STT        stt.Engine
	TTS        tts.Engine
	LLM        llm.Adapter
	Classifier voiceid.Classifier

	Observer metrics.Observer
}

// Pipeline wires capture, transcription, response generation, and
// playback into one running session.
type Pipeline struct {
	cfg       Config
	sessionID string
	devices   []capture.Device
	playback  respond.PlaybackDevice

	convo       *conversation.State
	queue       *transcribe.Queue
	acc         *transcribe.Accumulator
	suppressor  *transcribe.Suppressor
	transcriber *transcribe.Transcriber
	gen         *respond.Generation
	sequencer   *respond.Sequencer
	supervisor  *respond.Supervisor
	muteGate    *capture.MuteGate

	obs    metrics.Observer
	logger *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewPipeline(opts PipelineOptions) (*Pipeline, error) {
	cfg := opts.Config
	if opts.Playback == nil {
		return nil, fmt.Errorf("playback device is required")
	}
	if len(opts.Devices) == 0 {
		return nil, fmt.Errorf("at least one capture device is required")
	}

	obs := opts.Observer
	if obs == nil {
		obs = metrics.NoopObserver{}
	}

	registry := opts.Registry
	if registry == nil {
		registry = NewProviderRegistry()
	}
	sttEngine, ttsEngine, llmAdapter, classifier, err := buildAdapters(registry, cfg, opts)
	if err != nil {
		return nil, err
	}

	format := audio.Format{
		SampleRate:  cfg.Audio.SampleRate,
		SampleWidth: cfg.Audio.SampleWidth,
		Channels:    cfg.Audio.Channels,
	}
	if format.SampleRate == 0 {
		format = audio.DefaultFormat
	}

	convo := conversation.NewState(cfg.BasePrompt)
	queue := transcribe.NewQueue(transcribe.QueueConfig{
		DepthThreshold:         cfg.Queue.DepthThreshold,
		PlaybackDepthThreshold: cfg.Queue.PlaybackDepthThreshold,
		MaxAge:                 time.Duration(cfg.Queue.MaxAgeMS) * time.Millisecond,
		PlaybackMaxAge:         time.Duration(cfg.Queue.PlaybackMaxAgeMS) * time.Millisecond,
		MicPriorityMinDepth:    cfg.Queue.MicPriorityMinDepth,
	}, obs)
	acc := transcribe.NewAccumulator(cfg.PhraseTimeout())
	pruner := transcribe.NewPruner(transcribe.PrunerConfig{
		SegmentThreshold: cfg.Prune.SegmentThreshold,
		KeepLastSegments: cfg.Prune.KeepLastSegments,
		AudioCeiling:     time.Duration(cfg.Prune.AudioCeilingSec) * time.Second,
		Margin:           time.Duration(cfg.Prune.CommitMarginSec) * time.Second,
	})
	suppressor := transcribe.NewSuppressor(
		time.Duration(cfg.Echo.WindowMS)*time.Millisecond,
		cfg.Echo.SimilarityThreshold,
		obs,
	)
	transcriber := transcribe.NewTranscriber(
		queue, acc, pruner, sttEngine, suppressor, classifier, convo, obs,
		transcribe.Options{
			Format:        format,
			ClearInterval: time.Duration(cfg.Session.ClearIntervalSec) * time.Second,
		},
	)

	muteGate := capture.NewMuteGate(
		speakerDevice(opts.Devices),
		time.Duration(cfg.Capture.MuteCooldownMS)*time.Millisecond,
	)

	gen := &respond.Generation{}
	hooks := respond.SequencerHooks{
		OnPlaybackStart: func() {
			queue.SetPlaybackActive(true)
		},
		OnPlaybackEnd: func(endedAt time.Time) {
			queue.SetPlaybackActive(false)
			suppressor.NotePlayback(endedAt)
			muteGate.OnPlaybackEnd()
		},
	}
	sequencer := respond.NewSequencer(
		gen, ttsEngine, opts.Playback,
		resilience.NewRetryPolicy(
			cfg.Response.WriteRetries,
			time.Duration(cfg.Response.WriteBackoffMS)*time.Millisecond,
		),
		obs, hooks, cfg.Response.PlaybackQueueSize,
	)
	supervisor := respond.NewSupervisor(
		respond.SupervisorConfig{
			ResponseInterval: time.Duration(cfg.Response.IntervalMS) * time.Millisecond,
			RequestTimeout:   time.Duration(cfg.Response.RequestTimeoutMS) * time.Millisecond,
			MaxPhrases:       cfg.Response.MaxPhrases,
			Streamer: respond.StreamerConfig{
				MinChars:  cfg.Response.SentenceMinChars,
				SoftLimit: cfg.Response.SentenceSoftLimit,
				HardLimit: cfg.Response.SentenceHardLimit,
			},
			VoiceGateEnabled:    cfg.VoiceGate.Enabled,
			VoiceGateSpeakerID:  cfg.VoiceGate.SpeakerID,
			VoiceGateConfidence: cfg.VoiceGate.Confidence,
		},
		llmAdapter, sequencer, gen, convo, suppressor, obs,
	)

	sessionID := uuid.NewString()
	return &Pipeline{
		cfg:         cfg,
		sessionID:   sessionID,
		devices:     opts.Devices,
		playback:    opts.Playback,
		convo:       convo,
		queue:       queue,
		acc:         acc,
		suppressor:  suppressor,
		transcriber: transcriber,
		gen:         gen,
		sequencer:   sequencer,
		supervisor:  supervisor,
		muteGate:    muteGate,
		obs:         obs,
		logger: logging.NewComponentLogger(slog.Default(), "pipeline").
			With(slog.String("session_id", sessionID)),
	}, nil
}

func buildAdapters(registry *ProviderRegistry, cfg Config, opts PipelineOptions) (stt.Engine, tts.Engine, llm.Adapter, voiceid.Classifier, error) {
	sttEngine := opts.STT
	if sttEngine == nil {
		var err error
		if sttEngine, err = registry.BuildSTT(cfg.Vendors.STT); err != nil {
			return nil, nil, nil, nil, fmt.Errorf("build stt: %w", err)
		}
	}
	ttsEngine := opts.TTS
	if ttsEngine == nil {
		var err error
		if ttsEngine, err = registry.BuildTTS(cfg.Vendors.TTS); err != nil {
			return nil, nil, nil, nil, fmt.Errorf("build tts: %w", err)
		}
	}
	llmAdapter := opts.LLM
	if llmAdapter == nil {
		var err error
		if llmAdapter, err = registry.BuildLLM(cfg.Vendors.LLM); err != nil {
			return nil, nil, nil, nil, fmt.Errorf("build llm: %w", err)
		}
	}
	classifier := opts.Classifier
	if classifier == nil {
		var err error
		if classifier, err = registry.BuildClassifier(cfg.Vendors.Classifier); err != nil {
			return nil, nil, nil, nil, fmt.Errorf("build classifier: %w", err)
		}
	}
	return sttEngine, ttsEngine, llmAdapter, classifier, nil
}

// speakerDevice picks the loopback device for the mute gate. Nil when
// no speaker capture is configured; the gate then no-ops.
func speakerDevice(devices []capture.Device) capture.Device {
	for _, d := range devices {
		if d.Source() == audio.SourceSpeaker {
			return d
		}
	}
	return nil
}

// Start launches the capture pumps and the three long-lived consumers.
// It returns once everything is running.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return fmt.Errorf("pipeline already started")
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	for _, device := range p.devices {
		if err := device.Start(runCtx); err != nil {
			cancel()
			return fmt.Errorf("start capture device %s: %w", device.Name(), err)
		}
		p.wg.Add(1)
		go func(d capture.Device) {
			defer p.wg.Done()
			p.pump(runCtx, d)
		}(device)
	}

	p.runWorker(runCtx, "transcriber", p.transcriber.Run)
	p.runWorker(runCtx, "clear_loop", p.transcriber.RunClearLoop)
	p.runWorker(runCtx, "sequencer", p.sequencer.Run)
	p.runWorker(runCtx, "supervisor", p.supervisor.Run)

	p.logger.Info("pipeline started",
		slog.Int("devices", len(p.devices)),
		slog.String("environment", p.cfg.Environment))
	return nil
}

func (p *Pipeline) runWorker(ctx context.Context, name string, fn func(context.Context) error) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := fn(ctx); err != nil && ctx.Err() == nil {
			p.logger.Error("worker exited", slog.String("worker", name), slog.Any("error", err))
		}
	}()
}

// pump moves captured chunks into the intake queue until the device
// channel closes or the context ends.
func (p *Pipeline) pump(ctx context.Context, device capture.Device) {
	for {
		select {
		case <-ctx.Done():
			return
		case chunk, ok := <-device.Chunks():
			if !ok {
				return
			}
			p.queue.Push(chunk)
		}
	}
}

// Drain stops capture, waits for the workers, and closes the audio
// endpoints. Implements the runner drain contract.
func (p *Pipeline) Drain() error {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()

	for _, device := range p.devices {
		if err := device.Close(); err != nil {
			p.logger.Warn("capture device close failed",
				slog.String("device", device.Name()), slog.Any("error", err))
		}
	}
	p.wg.Wait()
	p.muteGate.Stop()
	if err := p.playback.Close(); err != nil {
		p.logger.Warn("playback close failed", slog.Any("error", err))
	}
	p.logger.Info("pipeline drained")
	return nil
}

// SessionID identifies this pipeline instance in logs.
func (p *Pipeline) SessionID() string { return p.sessionID }

// Conversation exposes the session transcript state.
func (p *Pipeline) Conversation() *conversation.State { return p.convo }

// TriggerResponse forces an immediate response, superseding any
// in-flight one. Useful for push-to-talk style hosts.
func (p *Pipeline) TriggerResponse(ctx context.Context) {
	p.supervisor.TriggerResponse(ctx)
}
