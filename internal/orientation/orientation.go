// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"math"
)

// Orientation is the cube attitude as reported by its Euler angle
// notification, in whole degrees.
//
//	roll  -179..180 (X axis)
//	pitch  -90..90  (Y axis)
//	yaw   -179..180 (Z axis)
type Orientation struct {
	Roll  int16 `json:"roll"`
	Pitch int16 `json:"pitch"`
	Yaw   int16 `json:"yaw"`
}

// Source is anything that can provide orientations over time:
// the mock source for the simulator, a recorded file, and so on.
type Source interface {
	Next() (Orientation, error)
}

const radianFactor = math.Pi / 180.0

// Radians returns roll, pitch and yaw in radians, which is what 3D
// consumers rotate their model by.
func (o Orientation) Radians() (roll, pitch, yaw float64) {
	return float64(o.Roll) * radianFactor,
		float64(o.Pitch) * radianFactor,
		float64(o.Yaw) * radianFactor
}

// wrapDegrees folds an angle into the -179..180 range used by the cube.
func wrapDegrees(deg float64) int16 {
	d := math.Mod(deg, 360)
	if d > 180 {
		d -= 360
	}
	if d <= -180 {
		d += 360
	}
	return int16(math.Round(d))
}
