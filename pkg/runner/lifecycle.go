package runner

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/voxloop/voxloop/pkg/logging"
)

// ErrDrainTimeout reports that the session failed to drain inside the
// shutdown window. A wedged capture device or playback write is the
// usual cause.
var ErrDrainTimeout = errors.New("session drain timed out")

// LifecycleRunner drives one session end to end: banner, start hook,
// block until the context ends, then drain within a bounded window. A
// runner is single use; a second Run is rejected.
type LifecycleRunner struct {
	state    atomic.Int32
	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
	hooks    Hooks
	drainer  Drainer
	timeout  time.Duration
	stopErr  error
	logger   *slog.Logger
}

func NewLifecycleRunner(drainer Drainer, hooks Hooks, timeout time.Duration) *LifecycleRunner {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &LifecycleRunner{
		ctx:     ctx,
		cancel:  cancel,
		hooks:   hooks,
		drainer: drainer,
		timeout: timeout,
		logger:  logging.NewComponentLogger(slog.Default(), "runner"),
	}
	r.state.Store(int32(StateNew))
	return r
}

// Run starts the session and blocks until ctx ends or Stop is called,
// then returns the shutdown result.
func (r *LifecycleRunner) Run(ctx context.Context) error {
	if !r.state.CompareAndSwap(int32(StateNew), int32(StateStarting)) {
		return errors.New("runner already used")
	}
	PrintBanner()
	if ctx != nil {
		r.ctx, r.cancel = context.WithCancel(ctx)
	}
	if r.hooks.OnStart != nil {
		r.hooks.OnStart()
	}
	r.state.Store(int32(StateRunning))
	r.logger.Info("session running")
	<-r.ctx.Done()
	return r.shutdown()
}

// Stop ends the session from outside Run and waits for the drain.
func (r *LifecycleRunner) Stop() error {
	r.cancel()
	return r.shutdown()
}

func (r *LifecycleRunner) State() State {
	return State(r.state.Load())
}

// shutdown is safe to reach from both Run and Stop; only the first
// caller drains, later callers get the same result.
func (r *LifecycleRunner) shutdown() error {
	r.stopOnce.Do(func() {
		r.state.Store(int32(StateDraining))
		r.stopErr = r.drain()
		if r.hooks.OnStop != nil {
			r.hooks.OnStop()
		}
		r.state.Store(int32(StateStopped))
		r.logger.Info("session stopped", slog.Any("error", r.stopErr))
	})
	return r.stopErr
}

// drain runs the drainer with the shutdown window as a deadline. On
// timeout the drainer goroutine is abandoned; the process is exiting
// anyway.
func (r *LifecycleRunner) drain() error {
	if r.drainer == nil {
		return nil
	}
	done := make(chan error, 1)
	go func() { done <- r.drainer.Drain() }()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()
	select {
	case err := <-done:
		return err
	case <-timer.C:
		r.logger.Error("drain window exceeded",
			slog.Duration("timeout", r.timeout))
		return ErrDrainTimeout
	}
}
