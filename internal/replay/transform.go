// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package replay

import "github.com/relabs-tech/cube_tracker/internal/position"

// Rect is an axis-aligned area in mat coordinates.
type Rect struct {
	MinX, MinY float64
	MaxX, MaxY float64
}

// DefaultMat is the playing area of the standard toio mat.
var DefaultMat = Rect{MinX: 90, MinY: 130, MaxX: 410, MaxY: 370}

// Transform maps mat coordinates onto a rendering surface:
// ((x+OffsetX)*ScaleX, (y+OffsetY)*ScaleY).
type Transform struct {
	OffsetX, OffsetY float64
	ScaleX, ScaleY   float64
}

// Identity leaves points unchanged.
var Identity = Transform{ScaleX: 1, ScaleY: 1}

// MatTransform stretches mat onto a width x height surface with the mat's
// top-left corner at the origin.
func MatTransform(mat Rect, width, height float64) Transform {
	t := Transform{
		OffsetX: -mat.MinX,
		OffsetY: -mat.MinY,
		ScaleX:  1,
		ScaleY:  1,
	}
	if w := mat.MaxX - mat.MinX; w > 0 {
		t.ScaleX = width / w
	}
	if h := mat.MaxY - mat.MinY; h > 0 {
		t.ScaleY = height / h
	}
	return t
}

// WithOffset returns t with a different registration offset.
func (t Transform) WithOffset(x, y float64) Transform {
	t.OffsetX, t.OffsetY = x, y
	return t
}

// Apply maps one point.
func (t Transform) Apply(p position.Point) position.Point {
	return position.Point{
		X: (p.X + t.OffsetX) * t.ScaleX,
		Y: (p.Y + t.OffsetY) * t.ScaleY,
	}
}

// ApplyAll maps every segment endpoint in place and returns segs.
func (t Transform) ApplyAll(segs []Segment) []Segment {
	for i := range segs {
		segs[i].From = t.Apply(segs[i].From)
		segs[i].To = t.Apply(segs[i].To)
	}
	return segs
}
