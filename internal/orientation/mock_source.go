// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"math"
	"time"
)

type mockSource struct {
	start time.Time
	now   func() time.Time
}

// NewMockSource creates a mock orientation source that
// generates smooth changing values.
func NewMockSource() Source {
	return &mockSource{start: time.Now(), now: time.Now}
}

func (m *mockSource) Next() (Orientation, error) {
	elapsed := m.now().Sub(m.start).Seconds()

	return Orientation{
		Roll:  int16(math.Round(20 * math.Sin(elapsed))),
		Pitch: int16(math.Round(15 * math.Cos(elapsed*0.7))),
		Yaw:   wrapDegrees(elapsed * 30),
	}, nil
}
