// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package transport

import "sync/atomic"

// FrameHandler consumes decoded-ready notification payloads.
// *telemetry.Decoder implements it.
type FrameHandler interface {
	OnPositionFrame(deviceKey string, b []byte)
	OnEulerFrame(deviceKey string, b []byte)
}

// Router dispatches notifications to a FrameHandler by kind.
type Router struct {
	handler  FrameHandler
	registry *Registry

	dropped atomic.Uint64
}

// NewRouter creates a Router. registry may be nil.
func NewRouter(h FrameHandler, registry *Registry) *Router {
	return &Router{handler: h, registry: registry}
}

// Handle routes one notification. Kinds that carry no telemetry are counted
// and dropped.
func (r *Router) Handle(n Notification) {
	switch n.Kind {
	case KindPosition:
		r.observe(n)
		r.handler.OnPositionFrame(n.DeviceKey, n.Payload)
	case KindEuler:
		r.observe(n)
		r.handler.OnEulerFrame(n.DeviceKey, n.Payload)
	default:
		r.dropped.Add(1)
	}
}

func (r *Router) observe(n Notification) {
	if r.registry != nil {
		r.registry.Observe(n.DeviceKey, n.Kind)
	}
}

// Dropped returns the number of notifications that had no handler.
func (r *Router) Dropped() uint64 {
	return r.dropped.Load()
}
