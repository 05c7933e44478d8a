// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sample

import (
	"time"

	"github.com/relabs-tech/cube_tracker/internal/orientation"
	"github.com/relabs-tech/cube_tracker/internal/position"
)

// Pen is the drawing state in effect when a sample was recorded.
type Pen struct {
	Color     string  `json:"color"`     // "#rrggbb"
	Alpha     float64 `json:"alpha"`     // 0..1
	LineWidth float64 `json:"lineWidth"` // surface pixels
}

// DefaultPen is a 3px opaque black pen.
var DefaultPen = Pen{Color: "#000000", Alpha: 1, LineWidth: 3}

// IsZero reports whether no pen was set.
func (p Pen) IsZero() bool {
	return p == Pen{}
}

// Sample is one timestamped, device-scoped record.
//
// SegmentEnd marks the last valid sample before tracking was lost. It is
// set after the fact, when the loss notification arrives, and never on a
// sample of its own.
type Sample struct {
	DeviceKey string    `json:"deviceName"`
	DeviceID  string    `json:"deviceId,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	Pose        *position.Pose           `json:"pose,omitempty"`
	Orientation *orientation.Orientation `json:"orientation,omitempty"`

	SegmentEnd bool `json:"isEndOfLine"`
	Pen        Pen  `json:"pen"`
}

// Clone returns a copy that shares nothing with s.
func (s Sample) Clone() Sample {
	out := s
	if s.Pose != nil {
		p := *s.Pose
		out.Pose = &p
	}
	if s.Orientation != nil {
		o := *s.Orientation
		out.Orientation = &o
	}
	return out
}

// CloneAll copies a slice of samples.
func CloneAll(in []Sample) []Sample {
	if in == nil {
		return nil
	}
	out := make([]Sample, len(in))
	for i, s := range in {
		out[i] = s.Clone()
	}
	return out
}
