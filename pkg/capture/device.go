package capture

import (
	"context"

	"github.com/voxloop/voxloop/pkg/audio"
)

// Device is one audio capture path (microphone or speaker loopback).
// Implementations live outside this module; the pipeline only consumes
// chunks and toggles the device around assistant playback.
type Device interface {
	// Name returns device name for logging/metrics.
	Name() string
	// Source identifies which pipeline source this device feeds.
	Source() audio.Source
	// Format reports the PCM format of emitted chunks.
	Format() audio.Format
	// Start begins capture. Chunks are delivered until ctx is cancelled
	// or Close is called.
	Start(ctx context.Context) error
	// Close shuts down the device.
	Close() error
	// Chunks returns the stream of captured audio.
	Chunks() <-chan audio.Chunk
	// Enable resumes delivering chunks.
	Enable()
	// Disable mutes the device; captured audio is discarded while muted.
	Disable()
}
