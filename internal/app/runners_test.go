// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bytes"
	"context"
	"errors"
	"image"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/devices/v3/ssd1306/image1bit"

	"github.com/relabs-tech/cube_tracker/internal/control"
	"github.com/relabs-tech/cube_tracker/internal/orientation"
	"github.com/relabs-tech/cube_tracker/internal/position"
	"github.com/relabs-tech/cube_tracker/internal/sample"
	"github.com/relabs-tech/cube_tracker/internal/telemetry"
	"github.com/relabs-tech/cube_tracker/internal/transport"
	"github.com/relabs-tech/cube_tracker/internal/wire"
)

func TestSimPoseCircle(t *testing.T) {
	p := simPose(0)
	assert.Equal(t, uint16(330), p.X)
	assert.Equal(t, uint16(250), p.Y)
	assert.Equal(t, uint16(90), p.Angle)
	assert.Equal(t, uint16(252), p.SensorY)

	q := simPose(simSteps / 4)
	assert.Equal(t, uint16(250), q.X)
	assert.Equal(t, uint16(330), q.Y)
	assert.Equal(t, uint16(180), q.Angle)

	assert.Equal(t, simPose(3), simPose(3+simSteps))

	for step := 0; step < simSteps; step++ {
		p := simPose(step)
		r := math.Hypot(float64(p.X)-simCenterX, float64(p.Y)-simCenterY)
		assert.InDelta(t, simRadius, r, 1, "step %d", step)
		assert.Less(t, p.Angle, uint16(360))
	}
}

func TestSimFrameLoss(t *testing.T) {
	assert.True(t, wire.IsPositionMissed(simFrame(50, 50)))
	assert.True(t, wire.IsPositionMissed(simFrame(100, 50)))
	assert.False(t, wire.IsPositionMissed(simFrame(0, 50)))
	assert.False(t, wire.IsPositionMissed(simFrame(50, 0)))

	pose, err := wire.DecodePositionFrame(simFrame(7, 50))
	require.NoError(t, err)
	assert.Equal(t, simPose(7), pose)
}

func TestDescribeCommand(t *testing.T) {
	fwd := wire.MotorDrive{Dir: wire.DirForward, Speed: wire.DefaultSpeed}
	tests := []struct {
		kind  transport.Kind
		frame []byte
		want  string
	}{
		{transport.KindMotor, wire.Forward(), "motor: left fwd@48 right fwd@48"},
		{transport.KindMotor, wire.Left(), "motor: left bwd@48 right fwd@48"},
		{transport.KindMotor, wire.Stop(), "motor: left stopped right stopped"},
		{transport.KindMotor, wire.EncodeTimedMotorCommand(fwd, fwd, 500*time.Millisecond), "motor: left fwd@48 right fwd@48 for 500ms"},
		{transport.KindMotor, wire.EncodeMoveTo(100, 200, 90), "motor: move to x=100 y=200 angle=90"},
		{transport.KindConfig, wire.EncodeEulerConfig(), "config: euler notifications enabled"},
		{transport.KindMotor, nil, "motor: empty frame"},
		{transport.KindMotor, []byte{0x09, 0x01}, "motor: 09 01"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, describeCommand(tt.kind, tt.frame))
	}
}

func TestPresetDrivesMatchWirePresets(t *testing.T) {
	for _, name := range []string{"forward", "backward", "left", "right", "stop"} {
		left, right, ok := presetDrives(name)
		require.True(t, ok, name)
		want, ok := wire.Preset(name)
		require.True(t, ok, name)
		assert.Equal(t, want, wire.EncodeMotorCommand(left, right), name)
	}
	_, _, ok := presetDrives("jump")
	assert.False(t, ok)
}

func TestDrive(t *testing.T) {
	ctx := context.Background()
	noHistory := func() ([]sample.Sample, error) { return nil, nil }

	sender := &fakeSender{}
	ctl := control.New(sender, "cubeA")

	require.NoError(t, drive(ctx, ctl, DriveOptions{Preset: "right"}, noHistory, time.Millisecond))
	require.NoError(t, drive(ctx, ctl, DriveOptions{Preset: "forward", Duration: 300 * time.Millisecond}, noHistory, time.Millisecond))
	require.NoError(t, drive(ctx, ctl, DriveOptions{MoveTo: &MoveRequest{X: 1, Y: 2, Angle: 3}}, noHistory, time.Millisecond))
	require.NoError(t, drive(ctx, ctl, DriveOptions{EulerConfig: true}, noHistory, time.Millisecond))

	fwd := wire.MotorDrive{Dir: wire.DirForward, Speed: wire.DefaultSpeed}
	cmds := sender.commands()
	require.Len(t, cmds, 4)
	assert.Equal(t, wire.Right(), cmds[0].frame)
	assert.Equal(t, wire.EncodeTimedMotorCommand(fwd, fwd, 300*time.Millisecond), cmds[1].frame)
	assert.Equal(t, wire.EncodeMoveTo(1, 2, 3), cmds[2].frame)
	assert.Equal(t, transport.KindConfig, cmds[3].kind)

	err := drive(ctx, ctl, DriveOptions{Preset: "jump", Duration: time.Second}, noHistory, time.Millisecond)
	assert.ErrorIs(t, err, control.ErrUnknownPreset)
	err = drive(ctx, ctl, DriveOptions{Preset: "jump"}, noHistory, time.Millisecond)
	assert.ErrorIs(t, err, control.ErrUnknownPreset)
	assert.ErrorIs(t, drive(ctx, ctl, DriveOptions{}, noHistory, time.Millisecond), errNoDriveAction)
}

func TestDriveTrace(t *testing.T) {
	ctx := context.Background()
	sender := &fakeSender{}
	ctl := control.New(sender, "cubeA")

	history := func() ([]sample.Sample, error) {
		return []sample.Sample{
			{Pose: &position.Pose{SensorX: 10, SensorY: 20, SensorAngle: 30}},
			{Pose: &position.Pose{SensorX: 40, SensorY: 50, SensorAngle: 60}},
		}, nil
	}
	require.NoError(t, drive(ctx, ctl, DriveOptions{Trace: true}, history, time.Millisecond))
	cmds := sender.commands()
	require.Len(t, cmds, 2)
	assert.Equal(t, wire.EncodeMoveTo(40, 50, 60), cmds[1].frame)

	empty := func() ([]sample.Sample, error) { return []sample.Sample{}, nil }
	assert.Error(t, drive(ctx, ctl, DriveOptions{Trace: true}, empty, time.Millisecond))

	boom := errors.New("boom")
	failing := func() ([]sample.Sample, error) { return nil, boom }
	assert.ErrorIs(t, drive(ctx, ctl, DriveOptions{Trace: true}, failing, time.Millisecond), boom)
}

func TestPrintEvents(t *testing.T) {
	var buf bytes.Buffer
	dec := telemetry.NewDecoder(discardSink{})
	printEvents(dec, &buf)

	dec.OnPositionFrame("cubeA", wire.EncodePositionFrame(position.Pose{X: 250, Y: 300, Angle: 45}))
	dec.OnEulerFrame("cubeA", wire.EncodeEulerFrame(orientation.Orientation{Roll: -5, Pitch: 10, Yaw: 300}))
	dec.OnPositionFrame("cubeA", wire.PositionMissedFrame())

	out := buf.String()
	assert.Contains(t, out, "[POS ]  cubeA")
	assert.Contains(t, out, "x= 250 y= 300 angle= 45")
	assert.Contains(t, out, "[EULR]  cubeA      ROLL=  -5  PITCH=  10  YAW= 300")
	assert.Contains(t, out, "[LOST]  cubeA")
}

func TestDisplayLines(t *testing.T) {
	waiting := displayLines(displaySnapshot{})
	assert.Equal(t, []string{"", "Cube tracker", "Waiting..."}, waiting)

	s := displaySnapshot{
		device:          "cubeA",
		pose:            position.Pose{X: 250, Y: 200, Angle: 90},
		havePose:        true,
		orientation:     orientation.Orientation{Roll: -5, Pitch: 10, Yaw: 300},
		haveOrientation: true,
		positions:       3,
		losses:          1,
	}
	assert.Equal(t, []string{
		"cubeA        OK",
		"X:250 Y:200 A: 90",
		"R:  -5 P:  10 Y: 300",
		"pos 3 lost 1",
	}, displayLines(s))

	s.lost = true
	s.haveOrientation = false
	lines := displayLines(s)
	assert.Equal(t, "cubeA        LOST", lines[0])
	assert.Equal(t, "R:---- P:---- Y:----", lines[2])
}

func TestDisplayDataFollowsDevice(t *testing.T) {
	data := &DisplayData{device: "cubeA"}
	dec := telemetry.NewDecoder(discardSink{})
	data.attach(dec)

	dec.OnPositionFrame("cubeB", wire.EncodePositionFrame(position.Pose{X: 1}))
	assert.False(t, data.snapshot().havePose)

	dec.OnPositionFrame("cubeA", wire.EncodePositionFrame(position.Pose{X: 120, Y: 140}))
	dec.OnPositionFrame("cubeA", wire.PositionMissedFrame())

	s := data.snapshot()
	assert.Equal(t, "cubeA", s.device)
	assert.True(t, s.havePose)
	assert.Equal(t, uint16(120), s.pose.X)
	assert.True(t, s.lost)
	assert.Equal(t, uint64(1), s.positions)
	assert.Equal(t, uint64(1), s.losses)

	dec.OnPositionFrame("cubeA", wire.EncodePositionFrame(position.Pose{X: 121, Y: 140}))
	assert.False(t, data.snapshot().lost)
}

type fakePanel struct {
	drawn image.Image
}

func (p *fakePanel) Bounds() image.Rectangle { return image.Rect(0, 0, 128, 64) }

func (p *fakePanel) Draw(r image.Rectangle, src image.Image, sp image.Point) error {
	p.drawn = src
	return nil
}

func TestUpdateDisplayDrawsText(t *testing.T) {
	p := &fakePanel{}
	require.NoError(t, updateDisplay(p, displaySnapshot{device: "cubeA", havePose: true}))

	img, ok := p.drawn.(*image1bit.VerticalLSB)
	require.True(t, ok)
	lit := 0
	for _, b := range img.Pix {
		if b != 0 {
			lit++
		}
	}
	assert.Positive(t, lit)

	require.NoError(t, showSplash(p))
	assert.NotNil(t, p.drawn)
}
