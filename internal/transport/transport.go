// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package transport connects the cube's characteristics to the rest of the
// service, independent of how the radio link is bridged.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Kind names one characteristic of the cube service.
type Kind string

const (
	KindPosition Kind = "position" // notify: position ID frames
	KindEuler    Kind = "euler"    // notify: Euler angle frames
	KindMotor    Kind = "motor"    // write: motor control
	KindConfig   Kind = "config"   // write: configuration
)

var kinds = []Kind{KindPosition, KindEuler, KindMotor, KindConfig}

// ErrUnknownKind is returned for a kind name that is not a characteristic.
var ErrUnknownKind = errors.New("unknown characteristic kind")

// ParseKind parses a characteristic name.
func ParseKind(s string) (Kind, error) {
	for _, k := range kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%q: %w", s, ErrUnknownKind)
}

// Notification is one raw frame received from a device.
type Notification struct {
	DeviceKey string
	Kind      Kind
	Payload   []byte
}

// Sender writes a command frame to one characteristic of a device.
type Sender interface {
	SendCommand(ctx context.Context, deviceKey string, kind Kind, frame []byte) error
}

// Capabilities is the set of characteristics a device exposes.
type Capabilities uint8

func bit(k Kind) Capabilities {
	for i, kk := range kinds {
		if kk == k {
			return 1 << i
		}
	}
	return 0
}

// AllCapabilities has every known characteristic.
var AllCapabilities = bit(KindPosition) | bit(KindEuler) | bit(KindMotor) | bit(KindConfig)

// Has reports whether k is in the set.
func (c Capabilities) Has(k Kind) bool {
	b := bit(k)
	return b != 0 && c&b != 0
}

// With returns the set with k added.
func (c Capabilities) With(k Kind) Capabilities {
	return c | bit(k)
}

// Kinds lists the set in declaration order.
func (c Capabilities) Kinds() []Kind {
	out := []Kind{}
	for _, k := range kinds {
		if c.Has(k) {
			out = append(out, k)
		}
	}
	return out
}

func (c Capabilities) String() string {
	names := make([]string, 0, len(kinds))
	for _, k := range c.Kinds() {
		names = append(names, string(k))
	}
	return strings.Join(names, "|")
}

// MarshalJSON encodes the set as a list of kind names.
func (c Capabilities) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Kinds())
}

// ParseCapabilities parses a list of kind names separated by '|' or ','.
func ParseCapabilities(s string) (Capabilities, error) {
	var c Capabilities
	for _, f := range strings.FieldsFunc(s, func(r rune) bool { return r == '|' || r == ',' }) {
		k, err := ParseKind(strings.TrimSpace(f))
		if err != nil {
			return 0, err
		}
		c = c.With(k)
	}
	return c, nil
}

// Registry tracks the devices seen and what each of them exposes. A device
// gains a capability when it declares it or when a notification of that
// kind arrives.
type Registry struct {
	mu      sync.RWMutex
	devices map[string]Capabilities
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{devices: make(map[string]Capabilities)}
}

// Declare adds caps to deviceKey's set.
func (r *Registry) Declare(deviceKey string, caps Capabilities) {
	r.mu.Lock()
	r.devices[deviceKey] |= caps
	r.mu.Unlock()
}

// Observe records that deviceKey produced a notification of kind k.
func (r *Registry) Observe(deviceKey string, k Kind) {
	r.Declare(deviceKey, bit(k))
}

// Capabilities returns deviceKey's set and whether the device is known.
func (r *Registry) Capabilities(deviceKey string) (Capabilities, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.devices[deviceKey]
	return c, ok
}

// Devices lists known device keys in ascending order.
func (r *Registry) Devices() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.devices))
	for k := range r.devices {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
