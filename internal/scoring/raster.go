// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package scoring

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/vector"

	"github.com/relabs-tech/cube_tracker/internal/replay"
	"github.com/relabs-tech/cube_tracker/internal/sample"
)

// capSteps is the number of edges used for each half-circle line cap.
const capSteps = 12

// Rasterize strokes segments (surface coordinates) onto a transparent
// width x height raster with round caps, the way the drawing canvas does.
// Pen lifts are skipped.
func Rasterize(segments []replay.Segment, width, height int) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	if width <= 0 || height <= 0 {
		return dst
	}

	z := vector.NewRasterizer(width, height)
	for _, seg := range segments {
		if seg.PenLift {
			continue
		}
		pen := seg.Pen
		if pen.IsZero() {
			pen = sample.DefaultPen
		}
		c, err := ParseHexColor(pen.Color)
		if err != nil {
			c = color.NRGBA{A: 255}
		}
		c.A = uint8(math.Round(clamp01(pen.Alpha) * 255))
		if c.A == 0 {
			continue
		}

		z.Reset(width, height)
		strokeCapsule(z, seg, pen.LineWidth/2)
		z.Draw(dst, dst.Bounds(), image.NewUniform(c), image.Point{})
	}
	return dst
}

// strokeCapsule adds one closed convex outline: a rectangle around the
// segment with a half circle at each end.
func strokeCapsule(z *vector.Rasterizer, seg replay.Segment, r float64) {
	if r < 0.5 {
		r = 0.5
	}
	x1, y1 := seg.From.X, seg.From.Y
	x2, y2 := seg.To.X, seg.To.Y
	theta := math.Atan2(y2-y1, x2-x1)

	first := true
	arc := func(cx, cy, start float64) {
		for k := 0; k <= capSteps; k++ {
			a := start - math.Pi*float64(k)/capSteps
			x := float32(cx + r*math.Cos(a))
			y := float32(cy + r*math.Sin(a))
			if first {
				z.MoveTo(x, y)
				first = false
				continue
			}
			z.LineTo(x, y)
		}
	}
	arc(x2, y2, theta+math.Pi/2)
	arc(x1, y1, theta-math.Pi/2)
	z.ClosePath()
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// FitReference scales a reference picture onto a width x height raster.
func FitReference(img image.Image, width, height int) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}
