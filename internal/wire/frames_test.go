// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package wire

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/cube_tracker/internal/orientation"
	"github.com/relabs-tech/cube_tracker/internal/position"
)

func TestDecodePositionFrameDocumentedExample(t *testing.T) {
	// Example values from the cube documentation.
	frame := []byte{
		0x01,
		0xc5, 0x02, // 709
		0x7f, 0x01, // 383
		0x32, 0x01, // 306
		0xbc, 0x02, // 700
		0x82, 0x01, // 386
		0x32, 0x01, // 306
	}

	pose, err := DecodePositionFrame(frame)
	require.NoError(t, err)
	assert.Equal(t, position.Pose{X: 709, Y: 383, Angle: 306, SensorX: 700, SensorY: 386, SensorAngle: 306}, pose)
}

func TestDecodePositionFrameRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 500; i++ {
		want := position.Pose{
			X:           uint16(rng.Intn(1 << 16)),
			Y:           uint16(rng.Intn(1 << 16)),
			Angle:       uint16(rng.Intn(1 << 16)),
			SensorX:     uint16(rng.Intn(1 << 16)),
			SensorY:     uint16(rng.Intn(1 << 16)),
			SensorAngle: uint16(rng.Intn(1 << 16)),
		}
		got, err := DecodePositionFrame(EncodePositionFrame(want))
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestDecodePositionFrameIgnoresTrailingBytes(t *testing.T) {
	frame := append(EncodePositionFrame(position.Pose{X: 1, Y: 2}), 0xff, 0xff)
	pose, err := DecodePositionFrame(frame)
	require.NoError(t, err)
	assert.Equal(t, uint16(1), pose.X)
	assert.Equal(t, uint16(2), pose.Y)
}

func TestDecodePositionFrameTooShort(t *testing.T) {
	full := EncodePositionFrame(position.Pose{X: 10})
	for n := 0; n < PositionFrameLen; n++ {
		_, err := DecodePositionFrame(full[:n])
		require.Error(t, err, "len %d", n)
		assert.True(t, errors.Is(err, ErrFrameTooShort), "len %d", n)

		var fe *FrameError
		require.True(t, errors.As(err, &fe))
		assert.Equal(t, n, fe.Len)
		assert.Equal(t, PositionFrameLen, fe.Need)
	}
}

func TestIsPositionMissed(t *testing.T) {
	assert.True(t, IsPositionMissed([]byte{0x03}))
	assert.True(t, IsPositionMissed(PositionMissedFrame()))
	assert.False(t, IsPositionMissed(nil))
	assert.False(t, IsPositionMissed([]byte{0x01}))
	assert.False(t, IsPositionMissed(EncodePositionFrame(position.Pose{})))
}

func TestDecodeEulerFrame(t *testing.T) {
	// roll 180, pitch -90, yaw -179
	frame := []byte{0x03, 0x01, 0xb4, 0x00, 0xa6, 0xff, 0x4d, 0xff}
	o, err := DecodeEulerFrame(frame)
	require.NoError(t, err)
	assert.Equal(t, orientation.Orientation{Roll: 180, Pitch: -90, Yaw: -179}, o)

	kind, ok := EulerKind(frame)
	require.True(t, ok)
	assert.Equal(t, byte(0x01), kind)
}

func TestDecodeEulerFrameSevenBytes(t *testing.T) {
	o, err := DecodeEulerFrame([]byte{0x03, 0x01, 0x0a, 0x00, 0x14, 0x00, 0x1e})
	require.NoError(t, err)
	assert.Equal(t, orientation.Orientation{Roll: 10, Pitch: 20, Yaw: 30}, o)
}

func TestDecodeEulerFrameRoundTrip(t *testing.T) {
	want := orientation.Orientation{Roll: -12, Pitch: 45, Yaw: 170}
	got, err := DecodeEulerFrame(EncodeEulerFrame(want))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestDecodeEulerFrameTooShort(t *testing.T) {
	for n := 0; n < EulerFrameLen; n++ {
		_, err := DecodeEulerFrame(make([]byte, n))
		assert.ErrorIs(t, err, ErrFrameTooShort, "len %d", n)
	}
	_, ok := EulerKind([]byte{0x03})
	assert.False(t, ok)
}
