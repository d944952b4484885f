package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/voxloop/voxloop/pkg/respond"
)

var errWriteFailed = errors.New("mock: playback write failed")

// PlaybackDevice counts writes and optionally fails on demand. It
// stands in for the real audio output in tests and dry runs.
type PlaybackDevice struct {
	mu       sync.Mutex
	writes   int
	bytes    int
	resets   int
	failures int
}

func NewPlaybackDevice() *PlaybackDevice {
	return &PlaybackDevice{}
}

// FailNext makes the next n writes return an error.
func (d *PlaybackDevice) FailNext(n int) {
	d.mu.Lock()
	d.failures = n
	d.mu.Unlock()
}

func (d *PlaybackDevice) Write(ctx context.Context, pcm []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failures > 0 {
		d.failures--
		return errWriteFailed
	}
	d.writes++
	d.bytes += len(pcm)
	return nil
}

func (d *PlaybackDevice) Reset() error {
	d.mu.Lock()
	d.resets++
	d.mu.Unlock()
	return nil
}

func (d *PlaybackDevice) Close() error { return nil }

// Writes reports how many chunks were accepted.
func (d *PlaybackDevice) Writes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writes
}

// Resets reports how many recovery attempts were made.
func (d *PlaybackDevice) Resets() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.resets
}

var _ respond.PlaybackDevice = (*PlaybackDevice)(nil)
