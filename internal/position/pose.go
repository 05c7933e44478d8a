// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package position

// Pose is a single position ID reading from the cube, in mat coordinates.
type Pose struct {
	X     uint16 `json:"x"`     // cube center
	Y     uint16 `json:"y"`     // cube center
	Angle uint16 `json:"angle"` // degrees, 0-360

	SensorX     uint16 `json:"sensorX"` // read sensor position
	SensorY     uint16 `json:"sensorY"`
	SensorAngle uint16 `json:"sensorAngle"`
}

// Point is a position on the mat or on a rendering surface.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Center returns the cube center as a Point.
func (p Pose) Center() Point {
	return Point{X: float64(p.X), Y: float64(p.Y)}
}

// Sensor returns the read sensor position as a Point.
func (p Pose) Sensor() Point {
	return Point{X: float64(p.SensorX), Y: float64(p.SensorY)}
}
