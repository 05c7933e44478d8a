// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package control

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/cube_tracker/internal/position"
	"github.com/relabs-tech/cube_tracker/internal/sample"
	"github.com/relabs-tech/cube_tracker/internal/transport"
	"github.com/relabs-tech/cube_tracker/internal/wire"
)

type sent struct {
	key   string
	kind  transport.Kind
	frame []byte
}

type recordingSender struct {
	mu   sync.Mutex
	sent []sent
	err  error
}

func (r *recordingSender) SendCommand(ctx context.Context, key string, kind transport.Kind, frame []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, sent{key: key, kind: kind, frame: frame})
	return nil
}

func (r *recordingSender) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

func TestPresetsSendMotorFrames(t *testing.T) {
	s := &recordingSender{}
	c := New(s, "cubeA")
	ctx := context.Background()

	require.NoError(t, c.Forward(ctx))
	require.NoError(t, c.Backward(ctx))
	require.NoError(t, c.Left(ctx))
	require.NoError(t, c.Right(ctx))
	require.NoError(t, c.Stop(ctx))

	want := [][]byte{wire.Forward(), wire.Backward(), wire.Left(), wire.Right(), wire.Stop()}
	require.Len(t, s.sent, len(want))
	for i, w := range want {
		assert.Equal(t, "cubeA", s.sent[i].key)
		assert.Equal(t, transport.KindMotor, s.sent[i].kind)
		assert.Equal(t, w, s.sent[i].frame)
	}
}

func TestPresetByName(t *testing.T) {
	s := &recordingSender{}
	c := New(s, "cubeA")

	require.NoError(t, c.Preset(context.Background(), "stop"))
	assert.Equal(t, []byte{0x01, 0x01, 0x01, 0x00, 0x02, 0x01, 0x00}, s.sent[0].frame)

	err := c.Preset(context.Background(), "jump")
	assert.True(t, errors.Is(err, ErrUnknownPreset))
	assert.Len(t, s.sent, 1)
}

func TestDriveAndMoveTo(t *testing.T) {
	s := &recordingSender{}
	c := New(s, "cubeA")
	ctx := context.Background()

	left := wire.MotorDrive{Dir: wire.DirForward, Speed: 0x20}
	right := wire.MotorDrive{Dir: wire.DirBackward, Speed: 0x10}
	require.NoError(t, c.Drive(ctx, left, right))
	require.NoError(t, c.DriveFor(ctx, left, right, time.Second))
	require.NoError(t, c.MoveTo(ctx, 200, 300, 90))

	assert.Equal(t, wire.EncodeMotorCommand(left, right), s.sent[0].frame)
	assert.Equal(t, wire.EncodeTimedMotorCommand(left, right, time.Second), s.sent[1].frame)
	assert.Equal(t, wire.EncodeMoveTo(200, 300, 90), s.sent[2].frame)
}

func TestConfigureEuler(t *testing.T) {
	s := &recordingSender{}
	require.NoError(t, New(s, "cubeA").ConfigureEuler(context.Background()))

	require.Len(t, s.sent, 1)
	assert.Equal(t, transport.KindConfig, s.sent[0].kind)
	assert.Equal(t, []byte{0x1d, 0x00, 0x01, 0x01, 0x01}, s.sent[0].frame)
}

func TestSendErrorIsWrapped(t *testing.T) {
	boom := errors.New("link down")
	c := New(&recordingSender{err: boom}, "cubeA")

	err := c.Forward(context.Background())
	assert.True(t, errors.Is(err, boom))
	assert.ErrorContains(t, err, "cubeA")
}

func traceHistory() []sample.Sample {
	return []sample.Sample{
		{Pose: &position.Pose{X: 1, SensorX: 100, SensorY: 150, SensorAngle: 10}},
		{},
		{Pose: &position.Pose{X: 2, SensorX: 110, SensorY: 160, SensorAngle: 20}},
		{Pose: &position.Pose{X: 3, SensorX: 120, SensorY: 170, SensorAngle: 30}},
	}
}

func TestTraceUsesSensorCoordinates(t *testing.T) {
	s := &recordingSender{}
	n, err := New(s, "cubeA").Trace(context.Background(), traceHistory(), time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.Len(t, s.sent, 3)
	assert.Equal(t, wire.EncodeMoveTo(100, 150, 10), s.sent[0].frame)
	assert.Equal(t, wire.EncodeMoveTo(110, 160, 20), s.sent[1].frame)
	assert.Equal(t, wire.EncodeMoveTo(120, 170, 30), s.sent[2].frame)
}

func TestTraceStopsOnCancel(t *testing.T) {
	s := &recordingSender{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	var n int
	var err error
	go func() {
		defer close(done)
		n, err = New(s, "cubeA").Trace(ctx, traceHistory(), time.Hour)
	}()

	require.Eventually(t, func() bool { return s.count() == 1 }, time.Second, time.Millisecond)
	cancel()
	<-done

	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 1, n)
}
