// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package wire

import (
	"encoding/binary"
	"time"
)

// Motor control types (byte 0 of a motor frame).
const (
	ControlMotor      byte = 0x01 // run until the next write
	ControlMotorTimed byte = 0x02 // run for a duration
	ControlMoveTo     byte = 0x03 // drive to a mat coordinate
)

// Motor IDs and directions.
const (
	MotorLeft  byte = 0x01
	MotorRight byte = 0x02

	DirForward  byte = 0x01
	DirBackward byte = 0x02
)

// DefaultSpeed is the speed used by the presets.
const DefaultSpeed byte = 0x30

// MotorDrive is the direction and speed (0-255) of one motor.
type MotorDrive struct {
	Dir   byte
	Speed byte
}

// EncodeMotorCommand builds a run-until-next-write frame:
// [01, 01, ldir, lspeed, 02, rdir, rspeed].
func EncodeMotorCommand(left, right MotorDrive) []byte {
	return []byte{
		ControlMotor,
		MotorLeft, left.Dir, left.Speed,
		MotorRight, right.Dir, right.Speed,
	}
}

// EncodeTimedMotorCommand builds a timed frame. The last byte is the run
// time in 10ms units; 0 means no limit and values beyond 2.55s are clamped.
func EncodeTimedMotorCommand(left, right MotorDrive, d time.Duration) []byte {
	units := d / (10 * time.Millisecond)
	if units < 0 {
		units = 0
	}
	if units > 255 {
		units = 255
	}
	return []byte{
		ControlMotorTimed,
		MotorLeft, left.Dir, left.Speed,
		MotorRight, right.Dir, right.Speed,
		byte(units),
	}
}

// Stop halts both motors.
func Stop() []byte {
	return EncodeMotorCommand(MotorDrive{DirForward, 0}, MotorDrive{DirForward, 0})
}

// Forward drives both motors forward at DefaultSpeed.
func Forward() []byte {
	return EncodeMotorCommand(MotorDrive{DirForward, DefaultSpeed}, MotorDrive{DirForward, DefaultSpeed})
}

// Backward drives both motors backward at DefaultSpeed.
func Backward() []byte {
	return EncodeMotorCommand(MotorDrive{DirBackward, DefaultSpeed}, MotorDrive{DirBackward, DefaultSpeed})
}

// Right spins clockwise in place.
func Right() []byte {
	return EncodeMotorCommand(MotorDrive{DirForward, DefaultSpeed}, MotorDrive{DirBackward, DefaultSpeed})
}

// Left spins counter-clockwise in place.
func Left() []byte {
	return EncodeMotorCommand(MotorDrive{DirBackward, DefaultSpeed}, MotorDrive{DirForward, DefaultSpeed})
}

// Preset returns the frame for a named preset.
func Preset(name string) ([]byte, bool) {
	switch name {
	case "stop":
		return Stop(), true
	case "forward":
		return Forward(), true
	case "backward":
		return Backward(), true
	case "right":
		return Right(), true
	case "left":
		return Left(), true
	}
	return nil, false
}

// moveToHeader is the fixed motion profile: request id, timeout, move type,
// max speed, speed change type.
var moveToHeader = [5]byte{0x05, 0x00, 0x50, 0x00, 0x00}

// EncodeMoveTo builds a move-to-coordinate frame:
// [03, 00, 05, 00, 50, 00, 00, xL, xH, yL, yH, aL, aH].
func EncodeMoveTo(x, y, angle uint16) []byte {
	b := make([]byte, MoveToFrameLen)
	b[0] = ControlMoveTo
	b[1] = 0x00
	copy(b[2:7], moveToHeader[:])
	le := binary.LittleEndian
	le.PutUint16(b[7:], x)
	le.PutUint16(b[9:], y)
	le.PutUint16(b[11:], angle)
	return b
}

// EncodeEulerConfig requests Euler angle notifications every 10ms, only
// when the attitude changes.
//
//	0 0x1d attitude detection setting
//	1 0x00 reserved
//	2 0x01 Euler angles
//	3 0x01 10ms interval
//	4 0x01 notify on change only
func EncodeEulerConfig() []byte {
	return []byte{0x1d, 0x00, 0x01, 0x01, 0x01}
}
