// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package wire encodes command frames for the cube and decodes its
// notification frames. All multi-byte fields are little-endian and every
// function is stateless.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/relabs-tech/cube_tracker/internal/orientation"
	"github.com/relabs-tech/cube_tracker/internal/position"
)

// GATT identifiers of the cube service.
const (
	ServiceUUID      = "10b20100-5b3b-4571-9508-cf3efcd7bbae"
	PositionCharUUID = "10b20101-5b3b-4571-9508-cf3efcd7bbae"
	MotorCharUUID    = "10b20102-5b3b-4571-9508-cf3efcd7bbae"
	EulerCharUUID    = "10b20106-5b3b-4571-9508-cf3efcd7bbae"
	ConfigCharUUID   = "10b201ff-5b3b-4571-9508-cf3efcd7bbae"
)

// Frame sizes.
const (
	PositionFrameLen = 13
	EulerFrameLen    = 7
	MotorFrameLen    = 7
	TimedMotorLen    = 8
	MoveToFrameLen   = 13
	EulerConfigLen   = 5
)

// Position notification tags (byte 0).
const (
	TagPositionID     byte = 0x01
	TagStandardID     byte = 0x02
	TagPositionMissed byte = 0x03
)

// ErrFrameTooShort is matched by every *FrameError.
var ErrFrameTooShort = errors.New("frame too short")

// FrameError reports a notification payload below its minimum length.
type FrameError struct {
	Frame string // "position" or "euler"
	Len   int
	Need  int
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("%s frame: got %d bytes, need %d", e.Frame, e.Len, e.Need)
}

func (e *FrameError) Is(target error) bool {
	return target == ErrFrameTooShort
}

// IsPositionMissed reports whether b is the "position unavailable" sentinel,
// sent when the cube is lifted off the mat. It is a state, not an error.
func IsPositionMissed(b []byte) bool {
	return len(b) >= 1 && b[0] == TagPositionMissed
}

// DecodePositionFrame decodes a position ID notification.
//
//	0  uint8  tag
//	1  uint16 center X
//	3  uint16 center Y
//	5  uint16 center angle
//	7  uint16 sensor X
//	9  uint16 sensor Y
//	11 uint16 sensor angle
//
// The tag is not validated; callers check IsPositionMissed first.
func DecodePositionFrame(b []byte) (position.Pose, error) {
	if len(b) < PositionFrameLen {
		return position.Pose{}, &FrameError{Frame: "position", Len: len(b), Need: PositionFrameLen}
	}
	le := binary.LittleEndian
	return position.Pose{
		X:           le.Uint16(b[1:]),
		Y:           le.Uint16(b[3:]),
		Angle:       le.Uint16(b[5:]),
		SensorX:     le.Uint16(b[7:]),
		SensorY:     le.Uint16(b[9:]),
		SensorAngle: le.Uint16(b[11:]),
	}, nil
}

// DecodeEulerFrame decodes an attitude notification.
//
// The cube documentation lists float32 fields at offsets 2, 6 and 10. The
// frames this decoder is paired with are read as int16 at 2, 4 and 6, and
// that reading is kept here.
func DecodeEulerFrame(b []byte) (orientation.Orientation, error) {
	if len(b) < EulerFrameLen {
		return orientation.Orientation{}, &FrameError{Frame: "euler", Len: len(b), Need: EulerFrameLen}
	}
	// A 7 byte frame stops halfway through yaw; its high byte reads as 0.
	var buf [EulerFrameLen + 1]byte
	copy(buf[:], b)
	le := binary.LittleEndian
	return orientation.Orientation{
		Roll:  int16(le.Uint16(buf[2:])),
		Pitch: int16(le.Uint16(buf[4:])),
		Yaw:   int16(le.Uint16(buf[6:])),
	}, nil
}

// EulerKind returns the notification-kind byte of an attitude frame
// (0x01 Euler, 0x02 quaternion, 0x03 high precision Euler).
func EulerKind(b []byte) (byte, bool) {
	if len(b) < 2 {
		return 0, false
	}
	return b[1], true
}

// EncodePositionFrame builds a position notification. Only the simulator
// and tests produce these; the cube is the real source.
func EncodePositionFrame(p position.Pose) []byte {
	b := make([]byte, PositionFrameLen)
	le := binary.LittleEndian
	b[0] = TagPositionID
	le.PutUint16(b[1:], p.X)
	le.PutUint16(b[3:], p.Y)
	le.PutUint16(b[5:], p.Angle)
	le.PutUint16(b[7:], p.SensorX)
	le.PutUint16(b[9:], p.SensorY)
	le.PutUint16(b[11:], p.SensorAngle)
	return b
}

// EncodeEulerFrame builds an attitude notification in the int16 layout
// read by DecodeEulerFrame.
func EncodeEulerFrame(o orientation.Orientation) []byte {
	b := make([]byte, EulerFrameLen+1)
	le := binary.LittleEndian
	b[0] = 0x03
	b[1] = 0x01
	le.PutUint16(b[2:], uint16(o.Roll))
	le.PutUint16(b[4:], uint16(o.Pitch))
	le.PutUint16(b[6:], uint16(o.Yaw))
	return b
}

// PositionMissedFrame returns the one byte loss notification.
func PositionMissedFrame() []byte {
	return []byte{TagPositionMissed}
}
