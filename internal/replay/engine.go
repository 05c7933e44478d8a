// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package replay

import (
	"fmt"
	"sync"
	"time"

	"github.com/relabs-tech/cube_tracker/internal/sample"
)

// DefaultTick is the time between replay steps.
const DefaultTick = 50 * time.Millisecond

// TickFunc receives the current index and the full path up to it, already
// transformed. It runs on the playback goroutine and must not call Stop.
type TickFunc func(index int, segments []Segment)

// Option configures an Engine.
type Option func(*Engine)

// WithTransform sets the mat-to-surface transform.
func WithTransform(t Transform) Option {
	return func(e *Engine) { e.transform = t }
}

// WithTick sets the playback step interval.
func WithTick(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.tick = d
		}
	}
}

// Engine renders histories and runs at most one playback at a time.
type Engine struct {
	transform Transform
	tick      time.Duration

	mu     sync.Mutex
	active *Playback
}

// NewEngine creates an Engine with the identity transform and DefaultTick.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{transform: Identity, tick: DefaultTick}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Transform returns the engine's surface transform.
func (e *Engine) Transform() Transform {
	return e.transform
}

// Render returns the path up to index on the engine's surface.
func (e *Engine) Render(history []sample.Sample, index int) ([]Segment, error) {
	segs, err := RenderUpTo(history, index)
	if err != nil {
		return nil, err
	}
	return e.transform.ApplyAll(segs), nil
}

// Play stops any active playback and starts a new one that steps through
// indexes start..len(history)-1, one per tick, recomputing the whole path
// each time.
func (e *Engine) Play(history []sample.Sample, start int, onTick TickFunc) (*Playback, error) {
	if start < 0 || start > len(history) {
		return nil, fmt.Errorf("start %d of %d: %w", start, len(history), ErrIndexOutOfRange)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active != nil {
		e.active.Stop()
	}

	p := &Playback{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	e.active = p
	go p.run(e, sample.CloneAll(history), start, onTick)
	return p, nil
}

// Stop ends the active playback, if any.
func (e *Engine) Stop() {
	e.mu.Lock()
	p := e.active
	e.active = nil
	e.mu.Unlock()
	if p != nil {
		p.Stop()
	}
}

// Playing reports whether a playback is running.
func (e *Engine) Playing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active == nil {
		return false
	}
	select {
	case <-e.active.done:
		return false
	default:
		return true
	}
}

// Playback is one running replay.
type Playback struct {
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	mu    sync.Mutex
	index int
}

func (p *Playback) run(e *Engine, history []sample.Sample, index int, onTick TickFunc) {
	defer close(p.done)

	ticker := time.NewTicker(e.tick)
	defer ticker.Stop()

	for index < len(history) {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
		}
		// A tick and a stop can be ready together; stop wins.
		select {
		case <-p.stop:
			return
		default:
		}

		segs, err := RenderUpTo(history, index)
		if err != nil {
			return
		}
		p.mu.Lock()
		p.index = index
		p.mu.Unlock()
		onTick(index, e.transform.ApplyAll(segs))
		index++
	}
}

// Stop ends the playback. When it returns no further tick will run.
func (p *Playback) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
	<-p.done
}

// Done is closed when the playback has finished or been stopped.
func (p *Playback) Done() <-chan struct{} {
	return p.done
}

// Index returns the last index delivered to the tick function.
func (p *Playback) Index() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.index
}
