// Package engine provides the tick loop that drives periodic upkeep such as
// autosave.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Engine drives the server clock forward.
type Engine struct {
	Speed     float64       // Multiplier: 1.0 = real-time, 0 = paused
	Interval  time.Duration // Base tick interval (default 1 second)
	SaveEvery uint64        // Ticks between OnSave calls (0 = never)

	// Callbacks, populated during setup.
	OnTick func(tick uint64) // Every tick
	OnSave func(tick uint64) // Every SaveEvery ticks

	tick    atomic.Uint64
	running atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewEngine creates an engine with default settings.
func NewEngine() *Engine {
	return &Engine{
		Speed:    1.0,
		Interval: time.Second,
	}
}

// CurrentTick returns the tick counter. Safe to call from any goroutine.
func (e *Engine) CurrentTick() uint64 { return e.tick.Load() }

// SetTick sets the counter, e.g. when resuming from a save.
func (e *Engine) SetTick(t uint64) { e.tick.Store(t) }

// Running reports whether Run is active.
func (e *Engine) Running() bool { return e.running.Load() }

// Run starts the loop. Blocks until ctx is cancelled or Stop is called.
func (e *Engine) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.cancel = cancel
	e.mu.Unlock()
	defer cancel()

	e.running.Store(true)
	defer e.running.Store(false)
	slog.Info("tick engine started", "tick", e.CurrentTick(), "speed", e.Speed, "interval", e.Interval)

	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C

	for {
		wait := 100 * time.Millisecond
		if e.Speed > 0 {
			start := time.Now()
			e.step()

			// Sleep for the remainder of the tick interval, adjusted for speed.
			wait = time.Duration(float64(e.Interval)/e.Speed) - time.Since(start)
			if wait < 0 {
				wait = 0
			}
		}

		timer.Reset(wait)
		select {
		case <-ctx.Done():
			slog.Info("tick engine stopped", "tick", e.CurrentTick())
			return
		case <-timer.C:
		}
	}
}

// Stop halts a running loop. It is a no-op when Run has not been called.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		e.cancel()
	}
}

// step advances the clock by one tick.
func (e *Engine) step() {
	tick := e.tick.Add(1)

	if e.OnTick != nil {
		e.OnTick(tick)
	}

	if e.SaveEvery > 0 && tick%e.SaveEvery == 0 && e.OnSave != nil {
		e.OnSave(tick)
	}
}
