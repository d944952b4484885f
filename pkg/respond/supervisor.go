package respond

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/voxloop/voxloop/pkg/conversation"
	"github.com/voxloop/voxloop/pkg/errorsx"
	"github.com/voxloop/voxloop/pkg/llm"
	"github.com/voxloop/voxloop/pkg/logging"
	"github.com/voxloop/voxloop/pkg/metrics"
)

// ResponseRecorder receives the finalized text of each response so the
// echo filter can recognize it later.
type ResponseRecorder interface {
	SetLastResponse(text string)
}

// SupervisorConfig tunes when responses start and how they are gated.
type SupervisorConfig struct {
	// ResponseInterval is the polling cadence for deciding whether the
	// transcript warrants a new response.
	ResponseInterval time.Duration
	// RequestTimeout bounds one model request end to end.
	RequestTimeout time.Duration
	// MaxPhrases limits how much transcript history goes into the
	// prompt. Zero means all.
	MaxPhrases int
	// Streamer configures sentence splitting for every response.
	Streamer StreamerConfig

	// VoiceGate, when enabled, holds responses to microphone speech from
	// the configured speaker at or above the confidence floor; anyone
	// else always gets a response. Loopback speech is never gated.
	VoiceGateEnabled    bool
	VoiceGateSpeakerID  string
	VoiceGateConfidence float64
}

func DefaultSupervisorConfig() SupervisorConfig {
	return SupervisorConfig{
		ResponseInterval:    2 * time.Second,
		RequestTimeout:      60 * time.Second,
		MaxPhrases:          0,
		Streamer:            DefaultStreamerConfig(),
		VoiceGateSpeakerID:  "primary_user",
		VoiceGateConfidence: 0.75,
	}
}

// Supervisor owns the lifecycle of one model response at a time. A new
// response bumps the generation counter and cancels everything the
// previous one still had in flight.
type Supervisor struct {
	cfg      SupervisorConfig
	adapter  llm.Adapter
	seq      *Sequencer
	gen      *Generation
	convo    *conversation.State
	recorder ResponseRecorder
	obs      metrics.Observer
	logger   *slog.Logger

	mu          sync.Mutex
	cancelPrev  context.CancelFunc
	lastVersion uint64
	wg          sync.WaitGroup
}

func NewSupervisor(
	cfg SupervisorConfig,
	adapter llm.Adapter,
	seq *Sequencer,
	gen *Generation,
	convo *conversation.State,
	recorder ResponseRecorder,
	obs metrics.Observer,
) *Supervisor {
	d := DefaultSupervisorConfig()
	if cfg.ResponseInterval <= 0 {
		cfg.ResponseInterval = d.ResponseInterval
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = d.RequestTimeout
	}
	if cfg.VoiceGateSpeakerID == "" {
		cfg.VoiceGateSpeakerID = d.VoiceGateSpeakerID
	}
	if cfg.VoiceGateConfidence <= 0 {
		cfg.VoiceGateConfidence = d.VoiceGateConfidence
	}
	return &Supervisor{
		cfg:      cfg,
		adapter:  adapter,
		seq:      seq,
		gen:      gen,
		convo:    convo,
		recorder: recorder,
		obs:      obs,
		logger:   logging.NewComponentLogger(slog.Default(), "supervisor"),
	}
}

// Run polls the conversation on the response cadence and starts a new
// response whenever the transcript changed since the last check.
func (s *Supervisor) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.ResponseInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.cancelInFlight()
			s.wg.Wait()
			return ctx.Err()
		case <-ticker.C:
			s.maybeRespond(ctx)
		}
	}
}

func (s *Supervisor) maybeRespond(ctx context.Context) {
	ver := s.convo.Version()
	s.mu.Lock()
	changed := ver != s.lastVersion
	s.lastVersion = ver
	s.mu.Unlock()
	if !changed {
		return
	}

	last, ok := s.convo.Last()
	if !ok {
		return
	}
	switch last.Persona {
	case conversation.PersonaAssistant, conversation.PersonaSystem:
		return
	}
	if !s.passesVoiceGate(last) {
		s.logger.Debug("voice gate held response",
			slog.String("speaker_id", last.SpeakerID),
			slog.Float64("confidence", last.Confidence))
		return
	}

	s.TriggerResponse(ctx)
}

// passesVoiceGate applies the speaker-identity policy to microphone
// entries. The gate holds responses while the confirmed configured
// speaker is talking; unknown or low-confidence voices always get a
// response.
func (s *Supervisor) passesVoiceGate(e conversation.Entry) bool {
	if !s.cfg.VoiceGateEnabled || e.Persona != conversation.PersonaYou {
		return true
	}
	confirmed := e.SpeakerID == s.cfg.VoiceGateSpeakerID &&
		e.Confidence >= s.cfg.VoiceGateConfidence
	return !confirmed
}

// TriggerResponse starts a new response immediately, superseding any
// in-flight one.
func (s *Supervisor) TriggerResponse(ctx context.Context) {
	genID := s.gen.Next()

	s.mu.Lock()
	if s.cancelPrev != nil {
		s.cancelPrev()
	}
	reqCtx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	s.cancelPrev = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		s.generate(reqCtx, genID)
	}()
}

func (s *Supervisor) cancelInFlight() {
	s.mu.Lock()
	if s.cancelPrev != nil {
		s.cancelPrev()
		s.cancelPrev = nil
	}
	s.mu.Unlock()
}

// generate runs one model request: stream tokens, split into units,
// enqueue for playback, and keep the assistant transcript entry
// amended in place until the stream finishes.
func (s *Supervisor) generate(ctx context.Context, genID uint64) {
	messages := s.buildPrompt()
	stream, err := s.adapter.Stream(ctx, messages)
	if err != nil {
		s.logger.Warn("model request failed",
			slog.Uint64("generation", genID),
			slog.String("reason", string(errorsx.Reason(err))),
			slog.Any("error", err))
		return
	}
	metrics.Record(s.obs, metrics.EventResponseStarted, nil)

	streamer := NewSentenceStreamer(s.cfg.Streamer)
	handle := s.convo.AppendTracked(conversation.Entry{
		Persona: conversation.PersonaAssistant,
	})

	cancelled := false
	for token := range stream {
		if ctx.Err() != nil || s.gen.IsStale(genID) {
			cancelled = true
			streamer.Cancel()
			go drainTokens(stream)
			break
		}
		for _, unit := range streamer.Feed(token) {
			if err := s.seq.Enqueue(ctx, Job{Unit: unit, Generation: genID}); err != nil {
				cancelled = true
				break
			}
		}
		s.convo.Amend(handle, strings.TrimSpace(streamer.Text()))
	}

	if !cancelled {
		for _, unit := range streamer.Flush() {
			if err := s.seq.Enqueue(ctx, Job{Unit: unit, Generation: genID}); err != nil {
				break
			}
		}
	}

	final := strings.TrimSpace(streamer.Text())
	s.convo.Amend(handle, final)
	if !s.gen.IsStale(genID) && final != "" && s.recorder != nil {
		s.recorder.SetLastResponse(final)
	}
	metrics.Record(s.obs, metrics.EventResponseDone,
		map[string]string{"cancelled": boolTag(cancelled)})
	s.logger.Info("response finished",
		slog.Uint64("generation", genID),
		slog.Bool("cancelled", cancelled),
		slog.Int("chars", len(final)))
}

func (s *Supervisor) buildPrompt() []llm.Message {
	messages := make([]llm.Message, 0, 2)
	if sp := s.convo.SystemPrompt(); sp != "" {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: sp})
	}
	messages = append(messages, llm.Message{
		Role:    llm.RoleUser,
		Content: s.convo.MergedTranscript(s.cfg.MaxPhrases),
	})
	return messages
}

func drainTokens(stream <-chan string) {
	for range stream {
	}
}

func boolTag(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
