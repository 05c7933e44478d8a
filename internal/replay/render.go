// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package replay rebuilds the drawn path of a stored history, either at a
// fixed index or animated over time.
package replay

import (
	"errors"
	"fmt"

	"github.com/relabs-tech/cube_tracker/internal/position"
	"github.com/relabs-tech/cube_tracker/internal/sample"
)

// ErrIndexOutOfRange is returned for a render index outside 0..len(history).
var ErrIndexOutOfRange = errors.New("replay index out of range")

// Segment is one straight stroke, or a pen lift when PenLift is set. A pen
// lift carries the point where the stroke ended.
type Segment struct {
	From    position.Point `json:"from"`
	To      position.Point `json:"to"`
	Pen     sample.Pen     `json:"pen"`
	PenLift bool           `json:"penLift,omitempty"`
}

// RenderUpTo returns the path drawn by history[0..index] in mat coordinates.
// Consecutive samples are joined unless the earlier one ends a segment.
// Index 0 draws nothing; index len(history) draws everything.
func RenderUpTo(history []sample.Sample, index int) ([]Segment, error) {
	if index < 0 || index > len(history) {
		return nil, fmt.Errorf("index %d of %d: %w", index, len(history), ErrIndexOutOfRange)
	}
	last := index
	if last == len(history) {
		last--
	}

	var out []Segment
	for i := 1; i <= last; i++ {
		prev, cur := history[i-1], history[i]
		pen := cur.Pen
		if pen.IsZero() {
			pen = sample.DefaultPen
		}

		if !prev.SegmentEnd && prev.Pose != nil && cur.Pose != nil {
			out = append(out, Segment{
				From: prev.Pose.Center(),
				To:   cur.Pose.Center(),
				Pen:  pen,
			})
		}
		if cur.SegmentEnd {
			lift := Segment{Pen: pen, PenLift: true}
			if cur.Pose != nil {
				lift.From = cur.Pose.Center()
				lift.To = lift.From
			}
			out = append(out, lift)
		}
	}
	return out, nil
}
