package transcribe

import (
	"context"
	"testing"
	"time"

	"github.com/voxloop/voxloop/pkg/audio"
	"github.com/voxloop/voxloop/pkg/metrics"
)

func micChunk(tag byte, at time.Time) audio.Chunk {
	return audio.Chunk{Source: audio.SourceMic, PCM: []byte{tag}, CapturedAt: at}
}

func speakerChunk(tag byte, at time.Time) audio.Chunk {
	return audio.Chunk{Source: audio.SourceSpeaker, PCM: []byte{tag}, CapturedAt: at}
}

func drainAll(t *testing.T, q *Queue) []audio.Chunk {
	t.Helper()
	var out []audio.Chunk
	for q.Depth() > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		c, err := q.Pop(ctx)
		cancel()
		if err != nil {
			t.Fatalf("pop: %v", err)
		}
		out = append(out, c)
	}
	return out
}

func TestFIFOUnderNormalLoad(t *testing.T) {
	q := NewQueue(DefaultQueueConfig(), metrics.NoopObserver{})
	now := time.Now()
	q.Push(speakerChunk(1, now))
	q.Push(micChunk(2, now))
	q.Push(speakerChunk(3, now))

	got := drainAll(t, q)
	if len(got) != 3 || got[0].PCM[0] != 1 || got[1].PCM[0] != 2 || got[2].PCM[0] != 3 {
		t.Fatalf("order broken: %v", got)
	}
}

func TestBackpressureKeepsAllMicEntries(t *testing.T) {
	obs := metrics.NewMemoryObserver()
	q := NewQueue(QueueConfig{DepthThreshold: 4, MaxAge: 5 * time.Second, MicPriorityMinDepth: 100}, obs)
	now := time.Now()
	stale := now.Add(-10 * time.Second)

	// 3 mic + 4 speaker (2 stale) exceeds the threshold of 4.
	q.Push(micChunk(1, now))
	q.Push(speakerChunk(10, stale))
	q.Push(micChunk(2, now))
	q.Push(speakerChunk(11, stale))
	q.Push(speakerChunk(12, now))
	q.Push(micChunk(3, now))
	q.Push(speakerChunk(13, now))

	got := drainAll(t, q)
	var mics, speakers []byte
	for _, c := range got {
		if c.Source == audio.SourceMic {
			mics = append(mics, c.PCM[0])
		} else {
			speakers = append(speakers, c.PCM[0])
		}
	}
	if len(mics) != 3 || mics[0] != 1 || mics[1] != 2 || mics[2] != 3 {
		t.Fatalf("mic entries lost or reordered: %v", mics)
	}
	for _, s := range speakers {
		if s == 10 || s == 11 {
			t.Fatalf("stale speaker entry survived: %v", speakers)
		}
	}
	for i := 1; i < len(speakers); i++ {
		if speakers[i] < speakers[i-1] {
			t.Fatalf("speaker order broken: %v", speakers)
		}
	}
	if obs.Count(metrics.EventQueueDrop) == 0 {
		t.Fatal("expected drop events recorded")
	}
}

func TestMicPriorityDrainsLeadingSpeakerEntries(t *testing.T) {
	q := NewQueue(QueueConfig{DepthThreshold: 100, MicPriorityMinDepth: 2, MaxAge: time.Hour}, metrics.NoopObserver{})
	now := time.Now()

	q.Push(speakerChunk(10, now))
	q.Push(speakerChunk(11, now))
	q.Push(speakerChunk(12, now))
	q.Push(micChunk(1, now))

	got := drainAll(t, q)
	if len(got) != 1 || got[0].Source != audio.SourceMic {
		t.Fatalf("leading speaker backlog not drained: %v", got)
	}
}

func TestMicPriorityStopsAtFirstMicEntry(t *testing.T) {
	q := NewQueue(QueueConfig{DepthThreshold: 100, MicPriorityMinDepth: 2, MaxAge: time.Hour}, metrics.NoopObserver{})
	now := time.Now()

	q.Push(micChunk(1, now))
	q.Push(speakerChunk(10, now))
	q.Push(speakerChunk(11, now))
	q.Push(micChunk(2, now))

	got := drainAll(t, q)
	// The head is a mic entry, so nothing may be drained ahead of the
	// new arrival; same-source order is preserved throughout.
	if len(got) != 4 {
		t.Fatalf("entries dropped behind a mic head: %v", got)
	}
	if got[0].PCM[0] != 1 || got[1].PCM[0] != 10 || got[2].PCM[0] != 11 || got[3].PCM[0] != 2 {
		t.Fatalf("order broken: %v", got)
	}
}

func TestPlaybackWidensThresholds(t *testing.T) {
	cfg := QueueConfig{
		DepthThreshold:         2,
		PlaybackDepthThreshold: 30,
		MaxAge:                 time.Second,
		PlaybackMaxAge:         time.Hour,
		MicPriorityMinDepth:    100,
	}
	q := NewQueue(cfg, metrics.NoopObserver{})
	q.SetPlaybackActive(true)
	old := time.Now().Add(-10 * time.Second)

	for i := byte(0); i < 10; i++ {
		q.Push(speakerChunk(i, old))
	}
	if q.Depth() != 10 {
		t.Fatalf("depth = %d, playback thresholds not applied", q.Depth())
	}

	q.SetPlaybackActive(false)
	q.Push(speakerChunk(99, time.Now()))
	if q.Depth() > cfg.DepthThreshold+1 {
		t.Fatalf("depth = %d after playback ended", q.Depth())
	}
}

func TestPopBlocksUntilPushOrCancel(t *testing.T) {
	q := NewQueue(DefaultQueueConfig(), metrics.NoopObserver{})

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() {
		_, err := q.Pop(ctx)
		errs <- err
	}()
	cancel()
	if err := <-errs; err != context.Canceled {
		t.Fatalf("pop after cancel = %v", err)
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		c, err := q.Pop(ctx)
		if err != nil {
			errs <- err
			return
		}
		if c.PCM[0] != 7 {
			t.Errorf("popped %v", c.PCM)
		}
		errs <- nil
	}()
	q.Push(micChunk(7, time.Now()))
	if err := <-errs; err != nil {
		t.Fatalf("pop after push: %v", err)
	}
}
