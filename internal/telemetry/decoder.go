// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package telemetry turns raw position and Euler notifications into samples
// and events.
package telemetry

import (
	"sync"
	"time"

	"github.com/relabs-tech/cube_tracker/internal/orientation"
	"github.com/relabs-tech/cube_tracker/internal/position"
	"github.com/relabs-tech/cube_tracker/internal/sample"
	"github.com/relabs-tech/cube_tracker/internal/wire"
)

// Sink receives decoded samples. *store.Store implements it.
type Sink interface {
	Append(deviceKey string, s sample.Sample)
	MarkSegmentEnd(deviceKey string) bool
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithClock sets the clock used to timestamp samples and events.
func WithClock(now func() time.Time) Option {
	return func(d *Decoder) {
		if now != nil {
			d.now = now
		}
	}
}

// Decoder keeps the last pose and orientation per device and forwards
// position samples to its Sink. Notifications for one device must be
// delivered in order; different devices may arrive on different goroutines.
type Decoder struct {
	sink Sink
	now  func() time.Time

	mu              sync.Mutex
	lastPose        map[string]position.Pose
	lastOrientation map[string]orientation.Orientation
	stats           Stats

	onLost        []func(SignalLost)
	onPosition    []func(PositionUpdated)
	onOrientation []func(OrientationUpdated)
}

// NewDecoder creates a Decoder writing to sink.
func NewDecoder(sink Sink, opts ...Option) *Decoder {
	d := &Decoder{
		sink:            sink,
		now:             time.Now,
		lastPose:        make(map[string]position.Pose),
		lastOrientation: make(map[string]orientation.Orientation),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// OnSignalLost registers fn for SignalLost events.
func (d *Decoder) OnSignalLost(fn func(SignalLost)) {
	d.mu.Lock()
	d.onLost = append(d.onLost, fn)
	d.mu.Unlock()
}

// OnPositionUpdated registers fn for PositionUpdated events.
func (d *Decoder) OnPositionUpdated(fn func(PositionUpdated)) {
	d.mu.Lock()
	d.onPosition = append(d.onPosition, fn)
	d.mu.Unlock()
}

// OnOrientationUpdated registers fn for OrientationUpdated events.
func (d *Decoder) OnOrientationUpdated(fn func(OrientationUpdated)) {
	d.mu.Lock()
	d.onOrientation = append(d.onOrientation, fn)
	d.mu.Unlock()
}

// OnPositionFrame handles one position notification. A position-unavailable
// frame closes the device's current segment; short frames are dropped.
func (d *Decoder) OnPositionFrame(deviceKey string, b []byte) {
	now := d.now()

	if wire.IsPositionMissed(b) {
		d.mu.Lock()
		d.stats.Lost++
		handlers := d.onLost
		d.mu.Unlock()

		d.sink.MarkSegmentEnd(deviceKey)
		ev := SignalLost{DeviceKey: deviceKey, At: now}
		for _, fn := range handlers {
			fn(ev)
		}
		return
	}

	pose, err := wire.DecodePositionFrame(b)
	if err != nil {
		d.mu.Lock()
		d.stats.Dropped++
		d.mu.Unlock()
		return
	}

	smp := sample.Sample{
		DeviceKey: deviceKey,
		Timestamp: now,
		Pose:      &pose,
	}

	d.mu.Lock()
	d.stats.Positions++
	d.lastPose[deviceKey] = pose
	if o, ok := d.lastOrientation[deviceKey]; ok {
		smp.Orientation = &o
	}
	handlers := d.onPosition
	d.mu.Unlock()

	d.sink.Append(deviceKey, smp)
	ev := PositionUpdated{DeviceKey: deviceKey, Pose: pose, At: now}
	for _, fn := range handlers {
		fn(ev)
	}
}

// OnEulerFrame handles one Euler angle notification. Undecodable frames are
// dropped.
func (d *Decoder) OnEulerFrame(deviceKey string, b []byte) {
	o, err := wire.DecodeEulerFrame(b)

	d.mu.Lock()
	if err != nil {
		d.stats.Dropped++
		d.mu.Unlock()
		return
	}
	d.stats.Orientations++
	d.lastOrientation[deviceKey] = o
	handlers := d.onOrientation
	d.mu.Unlock()

	ev := OrientationUpdated{DeviceKey: deviceKey, Orientation: o, At: d.now()}
	for _, fn := range handlers {
		fn(ev)
	}
}

// LastPose returns the most recent pose decoded for deviceKey.
func (d *Decoder) LastPose(deviceKey string) (position.Pose, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.lastPose[deviceKey]
	return p, ok
}

// LastOrientation returns the most recent orientation decoded for deviceKey.
func (d *Decoder) LastOrientation(deviceKey string) (orientation.Orientation, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	o, ok := d.lastOrientation[deviceKey]
	return o, ok
}

// Stats returns a snapshot of the frame counters.
func (d *Decoder) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}
