// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package telemetry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/cube_tracker/internal/orientation"
	"github.com/relabs-tech/cube_tracker/internal/position"
	"github.com/relabs-tech/cube_tracker/internal/sample"
	"github.com/relabs-tech/cube_tracker/internal/store"
	"github.com/relabs-tech/cube_tracker/internal/wire"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

// recordingSink captures what the decoder hands to its sink.
type recordingSink struct {
	mu       sync.Mutex
	appended []sample.Sample
	marked   []string
}

func (r *recordingSink) Append(key string, s sample.Sample) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.appended = append(r.appended, s)
}

func (r *recordingSink) MarkSegmentEnd(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.marked = append(r.marked, key)
	return len(r.appended) > 0
}

func pose(x, y uint16) position.Pose {
	return position.Pose{X: x, Y: y, Angle: 90, SensorX: x + 1, SensorY: y + 1, SensorAngle: 91}
}

func TestPositionFrameAppendsSample(t *testing.T) {
	sink := &recordingSink{}
	d := NewDecoder(sink, WithClock(fixedClock))

	var events []PositionUpdated
	d.OnPositionUpdated(func(ev PositionUpdated) { events = append(events, ev) })

	p := pose(709, 383)
	d.OnPositionFrame("cubeA", wire.EncodePositionFrame(p))

	require.Len(t, sink.appended, 1)
	got := sink.appended[0]
	assert.Equal(t, "cubeA", got.DeviceKey)
	assert.Equal(t, fixedNow, got.Timestamp)
	assert.False(t, got.SegmentEnd)
	require.NotNil(t, got.Pose)
	assert.Equal(t, p, *got.Pose)
	assert.Nil(t, got.Orientation)

	require.Len(t, events, 1)
	assert.Equal(t, PositionUpdated{DeviceKey: "cubeA", Pose: p, At: fixedNow}, events[0])

	last, ok := d.LastPose("cubeA")
	require.True(t, ok)
	assert.Equal(t, p, last)
}

func TestShortPositionFrameIsDropped(t *testing.T) {
	sink := &recordingSink{}
	d := NewDecoder(sink)

	called := false
	d.OnPositionUpdated(func(PositionUpdated) { called = true })
	d.OnSignalLost(func(SignalLost) { called = true })

	d.OnPositionFrame("cubeA", []byte{0x01, 0x02, 0x03})
	d.OnPositionFrame("cubeA", nil)

	assert.Empty(t, sink.appended)
	assert.Empty(t, sink.marked)
	assert.False(t, called)
	assert.Equal(t, Stats{Dropped: 2}, d.Stats())

	_, ok := d.LastPose("cubeA")
	assert.False(t, ok)
}

func TestMissedFrameClosesSegment(t *testing.T) {
	st := store.New(store.NewMemoryBackend(), store.WithInterval(time.Hour))
	defer st.Close(context.Background())
	d := NewDecoder(st, WithClock(fixedClock))

	var lost []SignalLost
	d.OnSignalLost(func(ev SignalLost) { lost = append(lost, ev) })

	for i := uint16(0); i < 3; i++ {
		d.OnPositionFrame("cubeA", wire.EncodePositionFrame(pose(100+i, 200+i)))
	}
	d.OnPositionFrame("cubeA", []byte{0x03})

	pending := st.Pending("cubeA")
	require.Len(t, pending, 3)
	assert.False(t, pending[0].SegmentEnd)
	assert.False(t, pending[1].SegmentEnd)
	assert.True(t, pending[2].SegmentEnd)

	require.Len(t, lost, 1)
	assert.Equal(t, SignalLost{DeviceKey: "cubeA", At: fixedNow}, lost[0])
	assert.Equal(t, uint64(1), d.Stats().Lost)
}

func TestMissedFrameWithoutHistory(t *testing.T) {
	st := store.New(store.NewMemoryBackend(), store.WithInterval(time.Hour))
	defer st.Close(context.Background())
	d := NewDecoder(st)

	lost := 0
	d.OnSignalLost(func(SignalLost) { lost++ })

	d.OnPositionFrame("cubeB", []byte{0x03})

	assert.Equal(t, 1, lost)
	assert.Empty(t, st.Pending("cubeB"))
	h, err := st.History("cubeB")
	require.NoError(t, err)
	assert.Empty(t, h)
}

func TestEveryLossFrameFires(t *testing.T) {
	sink := &recordingSink{}
	d := NewDecoder(sink)

	lost := 0
	d.OnSignalLost(func(SignalLost) { lost++ })

	d.OnPositionFrame("cubeA", wire.EncodePositionFrame(pose(1, 1)))
	d.OnPositionFrame("cubeA", []byte{0x03})
	d.OnPositionFrame("cubeA", []byte{0x03, 0x00})

	assert.Equal(t, 2, lost)
	assert.Equal(t, []string{"cubeA", "cubeA"}, sink.marked)
}

func TestEulerFrameUpdatesOrientation(t *testing.T) {
	sink := &recordingSink{}
	d := NewDecoder(sink, WithClock(fixedClock))

	var events []OrientationUpdated
	d.OnOrientationUpdated(func(ev OrientationUpdated) { events = append(events, ev) })

	d.OnEulerFrame("cubeA", []byte{0x03, 0x01, 0xb4, 0x00, 0xa6, 0xff, 0x4d, 0xff})

	want := orientation.Orientation{Roll: 180, Pitch: -90, Yaw: -179}
	require.Len(t, events, 1)
	assert.Equal(t, OrientationUpdated{DeviceKey: "cubeA", Orientation: want, At: fixedNow}, events[0])

	got, ok := d.LastOrientation("cubeA")
	require.True(t, ok)
	assert.Equal(t, want, got)
	assert.Empty(t, sink.appended)
}

func TestShortEulerFrameIsDropped(t *testing.T) {
	d := NewDecoder(&recordingSink{})

	called := false
	d.OnOrientationUpdated(func(OrientationUpdated) { called = true })
	d.OnEulerFrame("cubeA", []byte{0x03, 0x01, 0xb4})

	assert.False(t, called)
	_, ok := d.LastOrientation("cubeA")
	assert.False(t, ok)
	assert.Equal(t, uint64(1), d.Stats().Dropped)
}

func TestPositionSampleCarriesLastOrientation(t *testing.T) {
	sink := &recordingSink{}
	d := NewDecoder(sink)

	o := orientation.Orientation{Roll: 5, Pitch: -3, Yaw: 42}
	d.OnEulerFrame("cubeA", wire.EncodeEulerFrame(o))
	d.OnPositionFrame("cubeA", wire.EncodePositionFrame(pose(10, 20)))
	d.OnPositionFrame("cubeB", wire.EncodePositionFrame(pose(30, 40)))

	require.Len(t, sink.appended, 2)
	require.NotNil(t, sink.appended[0].Orientation)
	assert.Equal(t, o, *sink.appended[0].Orientation)
	assert.Nil(t, sink.appended[1].Orientation)
}

func TestDevicesAreIndependent(t *testing.T) {
	sink := &recordingSink{}
	d := NewDecoder(sink)

	var wg sync.WaitGroup
	for _, key := range []string{"cubeA", "cubeB", "cubeC"} {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			for i := uint16(0); i < 50; i++ {
				d.OnPositionFrame(key, wire.EncodePositionFrame(pose(i, i)))
			}
		}(key)
	}
	wg.Wait()

	assert.Equal(t, uint64(150), d.Stats().Positions)
	for _, key := range []string{"cubeA", "cubeB", "cubeC"} {
		p, ok := d.LastPose(key)
		require.True(t, ok)
		assert.Equal(t, uint16(49), p.X)
	}
}
