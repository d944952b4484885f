package respond

import "sync/atomic"

// Generation is the strictly increasing counter that orders responses.
// It is the sole cancellation authority: any unit or playback job
// carrying an id below the current one is superseded and must never
// reach the audio device.
type Generation struct {
	v atomic.Uint64
}

// Next starts a new generation and returns its id, superseding all
// earlier ones.
func (g *Generation) Next() uint64 {
	return g.v.Add(1)
}

// Current returns the newest generation id.
func (g *Generation) Current() uint64 {
	return g.v.Load()
}

// IsStale reports whether id has been superseded.
func (g *Generation) IsStale(id uint64) bool {
	return id < g.v.Load()
}
