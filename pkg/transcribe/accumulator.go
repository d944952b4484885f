package transcribe

import (
	"sync"
	"time"

	"github.com/voxloop/voxloop/pkg/audio"
)

// sourceBuffer is the growing current-phrase audio for one capture
// source. Each source has its own mutex so mic and speaker ingestion
// never contend.
type sourceBuffer struct {
	mu           sync.Mutex
	data         []byte
	lastSpokenAt time.Time
}

// Accumulator merges timestamped audio chunks into per-source phrase
// buffers. A gap longer than the phrase timeout starts a new phrase,
// replacing the buffer instead of appending.
type Accumulator struct {
	timeout time.Duration
	buffers map[audio.Source]*sourceBuffer
}

func NewAccumulator(phraseTimeout time.Duration) *Accumulator {
	return &Accumulator{
		timeout: phraseTimeout,
		buffers: map[audio.Source]*sourceBuffer{
			audio.SourceMic:     {},
			audio.SourceSpeaker: {},
		},
	}
}

func (a *Accumulator) buffer(src audio.Source) *sourceBuffer {
	if b, ok := a.buffers[src]; ok {
		return b
	}
	// Unknown sources fold into the speaker path rather than panic.
	return a.buffers[audio.SourceSpeaker]
}

// Ingest appends the chunk to its source's phrase buffer, or replaces
// the buffer when the silence gap since the previous chunk exceeds the
// phrase timeout. Returns true when this chunk starts a new phrase.
func (a *Accumulator) Ingest(c audio.Chunk) bool {
	b := a.buffer(c.Source)
	b.mu.Lock()
	defer b.mu.Unlock()

	newPhrase := b.lastSpokenAt.IsZero() ||
		c.CapturedAt.Sub(b.lastSpokenAt) > a.timeout
	if newPhrase {
		b.data = append(b.data[:0], c.PCM...)
	} else {
		b.data = append(b.data, c.PCM...)
	}
	b.lastSpokenAt = c.CapturedAt
	return newPhrase
}

// Snapshot returns a copy of the current phrase buffer and its size at
// the moment of the call. The size is the token for CompareAndReplace.
func (a *Accumulator) Snapshot(src audio.Source) ([]byte, int) {
	b := a.buffer(src)
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]byte, len(b.data))
	copy(out, b.data)
	return out, len(out)
}

// Len reports the current buffer size for a source.
func (a *Accumulator) Len(src audio.Source) int {
	b := a.buffer(src)
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

// CompareAndReplace swaps in a pruned buffer only if the buffer still
// has the size recorded at snapshot time. Returns false when more audio
// arrived in between, in which case the caller must abandon the prune.
func (a *Accumulator) CompareAndReplace(src audio.Source, snapshotLen int, replacement []byte) bool {
	b := a.buffer(src)
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.data) != snapshotLen {
		return false
	}
	b.data = append(b.data[:0], replacement...)
	return true
}

// Clear empties a source's phrase buffer and forgets its timing, so the
// next chunk starts a fresh phrase.
func (a *Accumulator) Clear(src audio.Source) {
	b := a.buffer(src)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = b.data[:0]
	b.lastSpokenAt = time.Time{}
}
