package voxloop

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/voxloop/voxloop/pkg/audio"
	"github.com/voxloop/voxloop/pkg/capture"
	"github.com/voxloop/voxloop/pkg/conversation"
	"github.com/voxloop/voxloop/pkg/metrics"
	"github.com/voxloop/voxloop/pkg/providers/mock"
)

func testConfig() Config {
	return Config{
		BasePrompt: "You are a test assistant.",
		Capture:    CaptureConfig{PhraseTimeoutMS: 3050, MuteCooldownMS: 50},
		Response: ResponseConfig{
			IntervalMS:       50,
			RequestTimeoutMS: 5000,
		},
		Echo: EchoConfig{WindowMS: 2000, SimilarityThreshold: 0.85},
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestPipelineEndToEnd(t *testing.T) {
	mic := mock.NewCaptureDevice(mock.CaptureConfig{
		Source:   audio.SourceMic,
		Interval: 25 * time.Millisecond,
	})
	playback := mock.NewPlaybackDevice()
	llm := mock.NewLLMAdapter(mock.LLMConfig{ResponseText: "It is noon."})
	tts := mock.NewTTS(mock.TTSConfig{})

	pipe, err := NewPipeline(PipelineOptions{
		Config:   testConfig(),
		Devices:  []capture.Device{mic},
		Playback: playback,
		STT:      mock.NewSTT(mock.STTConfig{Transcript: "what time is it"}),
		TTS:      tts,
		LLM:      llm,
		Observer: metrics.NewMemoryObserver(),
	})
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := pipe.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	waitFor(t, 5*time.Second, func() bool {
		return playback.Writes() > 0
	}, "no assistant audio reached the playback device")

	if err := pipe.Drain(); err != nil {
		t.Fatalf("Drain: %v", err)
	}

	var assistant string
	for _, e := range pipe.Conversation().Entries() {
		if e.Persona == conversation.PersonaAssistant {
			assistant = e.Text
		}
	}
	if !strings.Contains(assistant, "It is noon") {
		t.Fatalf("assistant transcript = %q, want the model response", assistant)
	}

	spoken := tts.Spoken()
	if len(spoken) == 0 {
		t.Fatal("nothing was synthesized")
	}
}

func TestPipelineRequiresPlayback(t *testing.T) {
	mic := mock.NewCaptureDevice(mock.CaptureConfig{Source: audio.SourceMic})
	_, err := NewPipeline(PipelineOptions{
		Config:  testConfig(),
		Devices: []capture.Device{mic},
	})
	if err == nil {
		t.Fatal("expected error for missing playback device")
	}
}

func TestPipelineDoubleStartRejected(t *testing.T) {
	mic := mock.NewCaptureDevice(mock.CaptureConfig{
		Source:   audio.SourceMic,
		Interval: 50 * time.Millisecond,
	})
	pipe, err := NewPipeline(PipelineOptions{
		Config:   testConfig(),
		Devices:  []capture.Device{mic},
		Playback: mock.NewPlaybackDevice(),
		STT:      mock.NewSTT(mock.STTConfig{}),
		TTS:      mock.NewTTS(mock.TTSConfig{}),
		LLM:      mock.NewLLMAdapter(mock.LLMConfig{}),
	})
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}

	ctx := context.Background()
	if err := pipe.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := pipe.Start(ctx); err == nil {
		t.Fatal("second Start should fail")
	}
	if err := pipe.Drain(); err != nil {
		t.Fatalf("Drain: %v", err)
	}
}
