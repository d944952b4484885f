package transcribe

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/voxloop/voxloop/pkg/adapters/stt"
	"github.com/voxloop/voxloop/pkg/adapters/voiceid"
	"github.com/voxloop/voxloop/pkg/audio"
	"github.com/voxloop/voxloop/pkg/conversation"
	"github.com/voxloop/voxloop/pkg/metrics"
)

type scriptedSTT struct {
	// results are returned in call order; the last one repeats.
	results []stt.Result
	calls   int
}

func (s *scriptedSTT) Name() string { return "scripted" }

func (s *scriptedSTT) Transcribe(_ context.Context, pcm []byte, format audio.Format) (stt.Result, error) {
	idx := s.calls
	if idx >= len(s.results) {
		idx = len(s.results) - 1
	}
	s.calls++
	res := s.results[idx]
	if len(res.Segments) == 0 && res.Text != "" {
		res.Segments = []stt.Segment{{End: format.Duration(len(pcm)), Text: " " + res.Text}}
	}
	return res, nil
}

type fixedClassifier struct {
	id   string
	conf float64
}

func (c fixedClassifier) Name() string { return "fixed" }

func (c fixedClassifier) Classify(context.Context, []byte, audio.Format) (voiceid.Classification, error) {
	return voiceid.Classification{SpeakerID: c.id, Confidence: c.conf}, nil
}

func newTestTranscriber(engine stt.Engine, suppressor *Suppressor, classifier voiceid.Classifier) (*Transcriber, *conversation.State, *Accumulator) {
	convo := conversation.NewState("")
	acc := NewAccumulator(3 * time.Second)
	tr := NewTranscriber(
		NewQueue(DefaultQueueConfig(), nil),
		acc,
		NewPruner(DefaultPrunerConfig()),
		engine,
		suppressor,
		classifier,
		convo,
		metrics.NewMemoryObserver(),
		Options{},
	)
	return tr, convo, acc
}

func sizedChunkAt(src audio.Source, at time.Time, n int) audio.Chunk {
	return audio.Chunk{Source: src, PCM: make([]byte, n), CapturedAt: at}
}

func TestGrowingPhraseAmendsOneEntry(t *testing.T) {
	engine := &scriptedSTT{results: []stt.Result{
		{Text: "hello"},
		{Text: "hello there"},
	}}
	tr, convo, _ := newTestTranscriber(engine, nil, fixedClassifier{id: "primary_user", conf: 0.9})

	base := time.Now()
	tr.processChunk(context.Background(), sizedChunkAt(audio.SourceMic, base, 640))
	tr.processChunk(context.Background(), sizedChunkAt(audio.SourceMic, base.Add(time.Second), 640))

	entries := convo.Entries()
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0].Text != "hello there" {
		t.Fatalf("entry text = %q, want %q", entries[0].Text, "hello there")
	}
	if entries[0].SpeakerID != "primary_user" {
		t.Fatalf("speaker id = %q, want primary_user", entries[0].SpeakerID)
	}
}

func TestSilenceGapStartsNewEntry(t *testing.T) {
	engine := &scriptedSTT{results: []stt.Result{
		{Text: "first phrase"},
		{Text: "second phrase"},
	}}
	tr, convo, _ := newTestTranscriber(engine, nil, nil)

	base := time.Now()
	tr.processChunk(context.Background(), sizedChunkAt(audio.SourceMic, base, 640))
	tr.processChunk(context.Background(), sizedChunkAt(audio.SourceMic, base.Add(5*time.Second), 640))

	entries := convo.Entries()
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].Text != "first phrase" || entries[1].Text != "second phrase" {
		t.Fatalf("entries = %q / %q", entries[0].Text, entries[1].Text)
	}
}

func TestSuppressedEchoClearsSpeakerBuffer(t *testing.T) {
	engine := &scriptedSTT{results: []stt.Result{{Text: "the answer is four"}}}
	sup := NewSuppressor(2*time.Second, 0.85, nil)
	sup.SetLastResponse("The answer is four.")
	sup.NotePlayback(time.Now())
	tr, convo, acc := newTestTranscriber(engine, sup, nil)

	tr.processChunk(context.Background(), sizedChunkAt(audio.SourceSpeaker, time.Now(), 640))

	if got := convo.Len(); got != 0 {
		t.Fatalf("conversation entries = %d, want 0", got)
	}
	if got := acc.Len(audio.SourceSpeaker); got != 0 {
		t.Fatalf("speaker buffer = %d bytes, want 0 after suppression", got)
	}
}

func TestArtifactTranscriptsIgnored(t *testing.T) {
	engine := &scriptedSTT{results: []stt.Result{{Text: "Thank you."}}}
	tr, convo, _ := newTestTranscriber(engine, nil, nil)

	tr.processChunk(context.Background(), sizedChunkAt(audio.SourceMic, time.Now(), 640))

	if got := convo.Len(); got != 0 {
		t.Fatalf("conversation entries = %d, want 0", got)
	}
}

func TestPruneSplitsEntryAndTruncatesAudio(t *testing.T) {
	// Eight one-second segments with a sentence boundary at segment 3;
	// above the threshold, so the head through segment 3 is committed.
	segs := make([]stt.Segment, 8)
	var text strings.Builder
	for i := range segs {
		word := " part"
		if i == 3 {
			word = " done."
		}
		segs[i] = stt.Segment{
			ID:    i,
			Start: time.Duration(i) * time.Second,
			End:   time.Duration(i+1) * time.Second,
			Text:  word,
		}
		text.WriteString(word)
	}
	engine := &scriptedSTT{results: []stt.Result{{Text: text.String(), Segments: segs}}}
	tr, convo, acc := newTestTranscriber(engine, nil, nil)

	// 8 seconds of 16 kHz mono 16-bit audio.
	size := 8 * 16000 * 2
	tr.processChunk(context.Background(), sizedChunkAt(audio.SourceMic, time.Now(), size))

	entries := convo.Entries()
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want committed + remaining", len(entries))
	}
	if entries[0].Text != "part part part done." {
		t.Fatalf("committed = %q", entries[0].Text)
	}
	if entries[1].Text != "part part part part" {
		t.Fatalf("remaining = %q", entries[1].Text)
	}

	// Half the audio (4 of 8 seconds) should remain.
	want := size / 2
	if got := acc.Len(audio.SourceMic); got != want {
		t.Fatalf("buffer after prune = %d, want %d", got, want)
	}
}

func TestTranscriberRunStopsOnCancel(t *testing.T) {
	engine := &scriptedSTT{results: []stt.Result{{Text: "hi there"}}}
	tr, _, _ := newTestTranscriber(engine, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tr.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on cancel")
	}
}
