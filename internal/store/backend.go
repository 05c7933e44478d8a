// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/relabs-tech/cube_tracker/internal/sample"
)

// Backend is the durable, string-keyed array store behind a Store.
// Writes replace the whole array for a key (last write wins).
type Backend interface {
	// Read returns the stored array for key, or an empty slice if absent.
	Read(key string) ([]sample.Sample, error)
	Write(key string, samples []sample.Sample) error
	Keys() ([]string, error)
}

// MemoryBackend keeps JSON-encoded arrays in memory, the same shape a
// browser's local storage holds them in.
type MemoryBackend struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryBackend returns an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string][]byte)}
}

func (m *MemoryBackend) Read(key string) ([]sample.Sample, error) {
	m.mu.RLock()
	raw, ok := m.data[key]
	m.mu.RUnlock()
	if !ok {
		return []sample.Sample{}, nil
	}

	var out []sample.Sample
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode %q: %w", key, err)
	}
	return out, nil
}

func (m *MemoryBackend) Write(key string, samples []sample.Sample) error {
	raw, err := json.Marshal(samples)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	m.mu.Lock()
	m.data[key] = raw
	m.mu.Unlock()
	return nil
}

func (m *MemoryBackend) Keys() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}
