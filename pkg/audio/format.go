package audio

import "time"

// Format describes raw PCM audio: little-endian signed integers,
// SampleWidth bytes per sample, interleaved channels.
type Format struct {
	SampleRate  int
	SampleWidth int
	Channels    int
}

// DefaultFormat is 16 kHz mono 16-bit, the common STT input shape.
var DefaultFormat = Format{SampleRate: 16000, SampleWidth: 2, Channels: 1}

// BytesPerFrame returns the size of one frame (one sample per channel).
func (f Format) BytesPerFrame() int {
	w := f.SampleWidth
	if w <= 0 {
		w = 2
	}
	c := f.Channels
	if c <= 0 {
		c = 1
	}
	return w * c
}

// Frames returns the number of whole frames in a buffer of n bytes.
func (f Format) Frames(n int) int {
	return n / f.BytesPerFrame()
}

// AlignToFrame rounds a byte offset down to the nearest frame boundary.
func (f Format) AlignToFrame(offset int) int {
	bpf := f.BytesPerFrame()
	return (offset / bpf) * bpf
}

// Duration returns the playback duration of a buffer of n bytes.
func (f Format) Duration(n int) time.Duration {
	rate := f.SampleRate
	if rate <= 0 {
		rate = DefaultFormat.SampleRate
	}
	frames := f.Frames(n)
	return time.Duration(frames) * time.Second / time.Duration(rate)
}
