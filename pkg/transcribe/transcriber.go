package transcribe

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/voxloop/voxloop/pkg/adapters/stt"
	"github.com/voxloop/voxloop/pkg/adapters/voiceid"
	"github.com/voxloop/voxloop/pkg/audio"
	"github.com/voxloop/voxloop/pkg/conversation"
	"github.com/voxloop/voxloop/pkg/errorsx"
	"github.com/voxloop/voxloop/pkg/logging"
	"github.com/voxloop/voxloop/pkg/metrics"
)

// Options configures the transcription consumer.
type Options struct {
	Format audio.Format
	// ClearInterval periodically wipes the conversation and phrase
	// buffers when > 0. Used for long-lived always-on sessions.
	ClearInterval time.Duration
}

// Transcriber is the single consumer of the transcription queue. It
// accumulates chunks into phrases, transcribes snapshots, filters
// self-echo, tags speaker identity, updates the conversation, and
// prunes oversized phrase buffers.
type Transcriber struct {
	queue      *Queue
	acc        *Accumulator
	pruner     *Pruner
	engine     stt.Engine
	suppressor *Suppressor
	classifier voiceid.Classifier
	convo      *conversation.State
	obs        metrics.Observer
	logger     *slog.Logger
	opts       Options

	// live tracks the conversation entry of each source's in-flight
	// phrase. Only the consumer goroutine touches it.
	live map[audio.Source]*conversation.Handle
}

func NewTranscriber(
	queue *Queue,
	acc *Accumulator,
	pruner *Pruner,
	engine stt.Engine,
	suppressor *Suppressor,
	classifier voiceid.Classifier,
	convo *conversation.State,
	obs metrics.Observer,
	opts Options,
) *Transcriber {
	if opts.Format.SampleRate == 0 {
		opts.Format = audio.DefaultFormat
	}
	return &Transcriber{
		queue:      queue,
		acc:        acc,
		pruner:     pruner,
		engine:     engine,
		suppressor: suppressor,
		classifier: classifier,
		convo:      convo,
		obs:        obs,
		logger:     logging.NewComponentLogger(slog.Default(), "transcriber"),
		opts:       opts,
		live:       make(map[audio.Source]*conversation.Handle),
	}
}

// Run consumes the queue until ctx is cancelled.
func (t *Transcriber) Run(ctx context.Context) error {
	for {
		chunk, err := t.queue.Pop(ctx)
		if err != nil {
			return err
		}
		t.processChunk(ctx, chunk)
	}
}

// RunClearLoop periodically resets the conversation and the phrase
// buffers. No-op when no interval is configured.
func (t *Transcriber) RunClearLoop(ctx context.Context) error {
	if t.opts.ClearInterval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}
	ticker := time.NewTicker(t.opts.ClearInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			t.convo.Clear()
			t.acc.Clear(audio.SourceMic)
			t.acc.Clear(audio.SourceSpeaker)
			t.logger.Info("conversation cleared on interval",
				slog.Duration("interval", t.opts.ClearInterval))
		}
	}
}

func (t *Transcriber) processChunk(ctx context.Context, chunk audio.Chunk) {
	src := chunk.Source
	if t.acc.Ingest(chunk) {
		delete(t.live, src)
	}

	snap, size := t.acc.Snapshot(src)
	if len(snap) == 0 {
		return
	}

	res, err := t.engine.Transcribe(ctx, snap, t.opts.Format)
	if err != nil {
		// No transcription available this cycle; the buffer keeps
		// accumulating and the next chunk retries the whole phrase.
		t.logger.Warn("transcription unavailable",
			slog.String("source", string(src)),
			slog.String("reason", string(errorsx.Reason(err))),
			slog.Any("error", err))
		return
	}

	text := strings.TrimSpace(res.Text)
	if text == "" || isArtifact(text) {
		return
	}

	if src == audio.SourceSpeaker && t.suppressor != nil &&
		t.suppressor.ShouldSuppress(text, time.Now()) {
		// Drop the captured echo audio too, so a later cycle outside
		// the window cannot resurrect it.
		t.acc.Clear(src)
		delete(t.live, src)
		t.logger.Debug("suppressed self-echo transcript",
			slog.String("text", text))
		return
	}

	entry := conversation.Entry{
		Persona:  personaFor(src),
		Text:     text,
		SpokenAt: chunk.CapturedAt,
	}
	if src == audio.SourceMic {
		cls := voiceid.ClassifyOrDefault(ctx, t.classifier, snap, t.opts.Format, t.logger)
		entry.SpeakerID = cls.SpeakerID
		entry.Confidence = cls.Confidence
	}
	t.writeEntry(src, entry)

	if t.pruner != nil {
		t.maybePrune(src, snap, size, res.Segments)
	}
}

// writeEntry amends the source's in-flight phrase entry, or appends a
// new tracked entry when there is none (or it went stale via Clear).
func (t *Transcriber) writeEntry(src audio.Source, entry conversation.Entry) {
	if h, ok := t.live[src]; ok {
		if t.convo.Amend(*h, entry.Text) {
			return
		}
	}
	h := t.convo.AppendTracked(entry)
	t.live[src] = &h
}

// maybePrune applies the latency-bound policy to one source's buffer
// after a transcription cycle. The size guard makes the prune abort
// silently if more audio arrived since the snapshot.
func (t *Transcriber) maybePrune(src audio.Source, snap []byte, size int, segments []stt.Segment) {
	dec := t.pruner.Check(segments)
	if !dec.Prune {
		return
	}

	cut := t.opts.Format.AlignToFrame(int(dec.Fraction * float64(size)))
	if cut <= 0 || cut >= size {
		return
	}
	if !t.acc.CompareAndReplace(src, size, snap[cut:]) {
		t.logger.Debug("prune aborted, buffer changed since snapshot",
			slog.String("source", string(src)))
		return
	}

	metrics.Record(t.obs, metrics.EventPrune, map[string]string{"source": string(src)})
	t.logger.Info("pruned phrase buffer",
		slog.String("source", string(src)),
		slog.Int("segment_id", dec.SegmentID),
		slog.Float64("fraction", dec.Fraction))

	// Finalize the committed head and leave the remainder as the new
	// in-flight phrase.
	if h, ok := t.live[src]; ok {
		t.convo.Amend(*h, dec.Committed)
	}
	delete(t.live, src)
	if dec.Remaining != "" {
		h := t.convo.AppendTracked(conversation.Entry{
			Persona: personaFor(src),
			Text:    dec.Remaining,
		})
		t.live[src] = &h
	}
}

func personaFor(src audio.Source) conversation.Persona {
	if src == audio.SourceMic {
		return conversation.PersonaYou
	}
	return conversation.PersonaSpeaker
}

// isArtifact filters the short hallucinated transcripts some models
// emit for near-silent audio.
func isArtifact(text string) bool {
	t := strings.ToLower(strings.Trim(text, " .!?"))
	switch t {
	case "you", "thank you", "thanks for watching":
		return true
	}
	return false
}
