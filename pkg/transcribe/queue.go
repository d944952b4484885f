package transcribe

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/voxloop/voxloop/pkg/audio"
	"github.com/voxloop/voxloop/pkg/metrics"
)

// QueueConfig tunes the backpressure policy of the transcription queue.
// The playback variants apply while assistant audio is playing, when a
// burst of speaker-source chunks is expected and harmless.
type QueueConfig struct {
	DepthThreshold         int
	PlaybackDepthThreshold int
	MaxAge                 time.Duration
	PlaybackMaxAge         time.Duration
	MicPriorityMinDepth    int
}

func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		DepthThreshold:         5,
		PlaybackDepthThreshold: 30,
		MaxAge:                 5 * time.Second,
		PlaybackMaxAge:         30 * time.Second,
		MicPriorityMinDepth:    2,
	}
}

// Queue is the shared, bounded intake for audio from both capture
// sources. FIFO under normal load; under backlog it sheds speaker
// entries by age and count while never dropping microphone audio, and
// it lets a fresh microphone arrival drain stale speaker entries queued
// ahead of it. Relative order of surviving same-source entries is
// always preserved.
type Queue struct {
	cfg QueueConfig
	obs metrics.Observer

	mu      sync.Mutex
	entries []audio.Chunk
	signal  chan struct{}

	playbackActive atomic.Bool
}

func NewQueue(cfg QueueConfig, obs metrics.Observer) *Queue {
	d := DefaultQueueConfig()
	if cfg.DepthThreshold <= 0 {
		cfg.DepthThreshold = d.DepthThreshold
	}
	if cfg.PlaybackDepthThreshold <= 0 {
		cfg.PlaybackDepthThreshold = d.PlaybackDepthThreshold
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = d.MaxAge
	}
	if cfg.PlaybackMaxAge <= 0 {
		cfg.PlaybackMaxAge = d.PlaybackMaxAge
	}
	if cfg.MicPriorityMinDepth <= 0 {
		cfg.MicPriorityMinDepth = d.MicPriorityMinDepth
	}
	return &Queue{cfg: cfg, obs: obs, signal: make(chan struct{}, 1)}
}

// SetPlaybackActive toggles the relaxed thresholds used while the
// assistant is speaking.
func (q *Queue) SetPlaybackActive(active bool) {
	q.playbackActive.Store(active)
}

func (q *Queue) depthThreshold() int {
	if q.playbackActive.Load() {
		return q.cfg.PlaybackDepthThreshold
	}
	return q.cfg.DepthThreshold
}

func (q *Queue) maxAge() time.Duration {
	if q.playbackActive.Load() {
		return q.cfg.PlaybackMaxAge
	}
	return q.cfg.MaxAge
}

// Push enqueues a chunk, applying mic priority and backpressure.
func (q *Queue) Push(c audio.Chunk) {
	now := time.Now()
	q.mu.Lock()

	if c.Source == audio.SourceMic && len(q.entries) > q.cfg.MicPriorityMinDepth {
		q.drainLeadingSpeakerLocked()
	}
	q.entries = append(q.entries, c)
	q.shedLocked(now)

	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// drainLeadingSpeakerLocked drops speaker entries from the head of the
// queue so a newly arrived mic chunk is not stuck behind a loopback
// backlog. It stops at the first mic entry to keep mic order intact.
func (q *Queue) drainLeadingSpeakerLocked() {
	drained := 0
	for len(q.entries) > 0 && q.entries[0].Source == audio.SourceSpeaker {
		q.entries = q.entries[1:]
		drained++
	}
	if drained > 0 {
		metrics.Record(q.obs, metrics.EventQueueDrain,
			map[string]string{"reason": "mic_priority"})
	}
}

// shedLocked enforces the depth threshold. Speaker entries older than
// the max age go first; if the queue is still too deep, the oldest
// speaker entries go regardless of age. Mic entries are never shed.
func (q *Queue) shedLocked(now time.Time) {
	threshold := q.depthThreshold()
	if len(q.entries) <= threshold {
		return
	}

	maxAge := q.maxAge()
	kept := q.entries[:0]
	for _, e := range q.entries {
		if e.Source == audio.SourceSpeaker && now.Sub(e.CapturedAt) > maxAge {
			metrics.Record(q.obs, metrics.EventQueueDrop,
				map[string]string{"reason": "max_age", "source": string(e.Source)})
			continue
		}
		kept = append(kept, e)
	}
	q.entries = kept

	for len(q.entries) > threshold {
		idx := -1
		for i, e := range q.entries {
			if e.Source == audio.SourceSpeaker {
				idx = i
				break
			}
		}
		if idx < 0 {
			return
		}
		metrics.Record(q.obs, metrics.EventQueueDrop,
			map[string]string{"reason": "depth", "source": "speaker"})
		q.entries = append(q.entries[:idx], q.entries[idx+1:]...)
	}
}

// Pop blocks until a chunk is available or ctx is done.
func (q *Queue) Pop(ctx context.Context) (audio.Chunk, error) {
	for {
		q.mu.Lock()
		if len(q.entries) > 0 {
			c := q.entries[0]
			q.entries = q.entries[1:]
			q.mu.Unlock()
			return c, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return audio.Chunk{}, ctx.Err()
		case <-q.signal:
		}
	}
}

// Depth reports the current number of queued chunks.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
