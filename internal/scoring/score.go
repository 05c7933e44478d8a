// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package scoring compares a drawn raster with a reference picture for one
// target color.
package scoring

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"strconv"
)

var (
	// ErrSizeMismatch is returned when the two rasters differ in size.
	ErrSizeMismatch = errors.New("raster sizes differ")
	// ErrNoUserPixels is returned when nothing was drawn; the score is undefined.
	ErrNoUserPixels = errors.New("no drawn pixels")
)

// Overlay colors written into the user raster.
var (
	MatchColor    = color.NRGBA{R: 0, G: 0, B: 255, A: 255}
	MismatchColor = color.NRGBA{R: 255, G: 0, B: 0, A: 255}
)

// Result is the outcome of one comparison.
type Result struct {
	Percent         float64 `json:"percent"` // two decimals
	Matches         int     `json:"matches"`
	UserPixels      int     `json:"userPixels"`
	ReferencePixels int     `json:"referencePixels"` // target-colored reference pixels under the drawing
}

// Score compares user against reference. Every drawn pixel (alpha != 0) is
// a match when the reference pixel is within tolerance of target and the
// drawn color is within tolerance of the reference pixel. Matches are
// repainted MatchColor in user, every other drawn pixel MismatchColor.
// Distances are Euclidean over 8-bit RGB.
func Score(user, reference *image.NRGBA, target color.NRGBA, tolerance float64) (Result, error) {
	if user.Rect.Size() != reference.Rect.Size() {
		return Result{}, fmt.Errorf("user %v, reference %v: %w", user.Rect.Size(), reference.Rect.Size(), ErrSizeMismatch)
	}

	var res Result
	size := user.Rect.Size()
	for y := 0; y < size.Y; y++ {
		uRow := user.Pix[y*user.Stride : y*user.Stride+size.X*4]
		rRow := reference.Pix[y*reference.Stride : y*reference.Stride+size.X*4]
		for i := 0; i < len(uRow); i += 4 {
			if uRow[i+3] == 0 {
				continue
			}
			res.UserPixels++

			matched := false
			if distance(rRow[i:i+3], target.R, target.G, target.B) <= tolerance {
				res.ReferencePixels++
				matched = distance(uRow[i:i+3], rRow[i], rRow[i+1], rRow[i+2]) <= tolerance
			}

			mark := MismatchColor
			if matched {
				res.Matches++
				mark = MatchColor
			}
			uRow[i], uRow[i+1], uRow[i+2], uRow[i+3] = mark.R, mark.G, mark.B, mark.A
		}
	}

	if res.UserPixels == 0 {
		return Result{}, ErrNoUserPixels
	}
	res.Percent = math.Round(10000*float64(res.Matches)/float64(res.UserPixels)) / 100
	return res, nil
}

func distance(rgb []byte, r, g, b uint8) float64 {
	dr := float64(rgb[0]) - float64(r)
	dg := float64(rgb[1]) - float64(g)
	db := float64(rgb[2]) - float64(b)
	return math.Sqrt(dr*dr + dg*dg + db*db)
}

// ParseHexColor parses "#rrggbb" or "#rgb" into an opaque color.
func ParseHexColor(s string) (color.NRGBA, error) {
	if len(s) != 7 && len(s) != 4 || s[0] != '#' {
		return color.NRGBA{}, fmt.Errorf("invalid color %q: want #rrggbb or #rgb", s)
	}
	v, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	if len(s) == 4 {
		return color.NRGBA{
			R: uint8(v>>8&0xf) * 17,
			G: uint8(v>>4&0xf) * 17,
			B: uint8(v&0xf) * 17,
			A: 255,
		}, nil
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}
