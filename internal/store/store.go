// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package store buffers samples per device in memory and writes them
// behind to a durable Backend on a fixed interval.
package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/relabs-tech/cube_tracker/internal/sample"
)

// DefaultFlushInterval is how often queued samples are written out.
const DefaultFlushInterval = 5000 * time.Millisecond

// ErrFlushInProgress is returned when a flush is requested while another
// one is still writing.
var ErrFlushInProgress = errors.New("flush already in progress")

// FlushError is the failure to persist one device's batch. The batch stays
// queued and is retried on the next flush.
type FlushError struct {
	Key   string
	Count int
	Err   error
}

func (e *FlushError) Error() string {
	return fmt.Sprintf("flush %q (%d samples): %v", e.Key, e.Count, e.Err)
}

func (e *FlushError) Unwrap() error { return e.Err }

// tailLocation records where the newest sample of a device lives.
type tailLocation int

const (
	tailUnknown tailLocation = iota // nothing appended by this process
	tailQueued
	tailDurable
)

// Store is the write-behind sample cache. A single flush ticker is shared
// by all devices; it starts on the first Append and stops on Close.
type Store struct {
	backend  Backend
	interval time.Duration

	mu          sync.Mutex
	queues      map[string][]sample.Sample
	tail        map[string]tailLocation
	pen         sample.Pen
	started     bool
	closed      bool
	timerStarts int
	stop        chan struct{}
	done        chan struct{}

	// flushMu is held for a whole flush cycle and while a segment end is
	// written back to the backend.
	flushMu sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithInterval sets the flush interval.
func WithInterval(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithPen sets the drawing state stamped on samples appended without one.
func WithPen(p sample.Pen) Option {
	return func(s *Store) { s.pen = p }
}

// New returns a Store writing to backend.
func New(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend:  backend,
		interval: DefaultFlushInterval,
		queues:   make(map[string][]sample.Sample),
		tail:     make(map[string]tailLocation),
		pen:      sample.DefaultPen,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetPen changes the drawing state for subsequent samples.
func (s *Store) SetPen(p sample.Pen) {
	s.mu.Lock()
	s.pen = p
	s.mu.Unlock()
}

// Pen returns the current drawing state.
func (s *Store) Pen() sample.Pen {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pen
}

// Append queues a sample for deviceKey. The first call on a Store starts
// the flush ticker.
func (s *Store) Append(deviceKey string, smp sample.Sample) {
	smp = smp.Clone()
	if smp.DeviceKey == "" {
		smp.DeviceKey = deviceKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if smp.Pen.IsZero() {
		smp.Pen = s.pen
	}
	s.queues[deviceKey] = append(s.queues[deviceKey], smp)
	s.tail[deviceKey] = tailQueued

	if !s.started && !s.closed {
		s.startLocked()
	}
}

func (s *Store) startLocked() {
	s.started = true
	s.timerStarts++
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.run(time.NewTicker(s.interval), s.stop, s.done)
	log.Printf("store: flush timer started (every %s)", s.interval)
}

func (s *Store) run(ticker *time.Ticker, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			err := s.Flush(context.Background())
			if err != nil && !errors.Is(err, ErrFlushInProgress) {
				log.Printf("store: flush error: %v", err)
			}
		}
	}
}

// Flush writes every non-empty queue to the backend, one device at a time.
// A device whose write fails keeps its batch queued; the others proceed.
// The returned error joins one *FlushError per failed device. If another
// flush is running, Flush returns ErrFlushInProgress without doing anything.
func (s *Store) Flush(ctx context.Context) error {
	if !s.flushMu.TryLock() {
		return ErrFlushInProgress
	}
	defer s.flushMu.Unlock()
	return s.flushLocked(ctx)
}

func (s *Store) flushLocked(ctx context.Context) error {
	s.mu.Lock()
	batches := make(map[string][]sample.Sample, len(s.queues))
	keys := make([]string, 0, len(s.queues))
	for key, q := range s.queues {
		if len(q) == 0 {
			continue
		}
		batches[key] = q
		keys = append(keys, key)
		s.queues[key] = nil
	}
	s.mu.Unlock()
	sort.Strings(keys)

	var errs []error
	for i, key := range keys {
		if err := ctx.Err(); err != nil {
			for _, k := range keys[i:] {
				s.requeue(k, batches[k])
			}
			errs = append(errs, err)
			break
		}

		batch := batches[key]
		if err := s.persist(key, batch); err != nil {
			s.requeue(key, batch)
			errs = append(errs, &FlushError{Key: key, Count: len(batch), Err: err})
			continue
		}

		s.mu.Lock()
		if len(s.queues[key]) == 0 {
			s.tail[key] = tailDurable
		}
		s.mu.Unlock()
	}
	return errors.Join(errs...)
}

func (s *Store) persist(key string, batch []sample.Sample) error {
	stored, err := s.backend.Read(key)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}
	merged := make([]sample.Sample, 0, len(stored)+len(batch))
	merged = append(merged, stored...)
	merged = append(merged, batch...)
	if err := s.backend.Write(key, merged); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

// requeue puts a failed batch back in front of anything appended since.
func (s *Store) requeue(key string, batch []sample.Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queues[key] = append(batch, s.queues[key]...)
	s.tail[key] = tailQueued
}

// History returns the durable samples for deviceKey. Samples still queued
// in memory are not included until a flush has written them.
func (s *Store) History(deviceKey string) ([]sample.Sample, error) {
	h, err := s.backend.Read(deviceKey)
	if err != nil {
		return nil, fmt.Errorf("history %q: %w", deviceKey, err)
	}
	if h == nil {
		h = []sample.Sample{}
	}
	return h, nil
}

// Pending returns a copy of the samples queued for deviceKey.
func (s *Store) Pending(deviceKey string) []sample.Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sample.CloneAll(s.queues[deviceKey])
}

// Keys lists the devices that have durable history.
func (s *Store) Keys() ([]string, error) {
	return s.backend.Keys()
}

// MarkSegmentEnd flags the newest sample of deviceKey as the end of a
// segment, wherever it lives: the memory queue if it still holds samples,
// otherwise the last durable record. It reports whether a sample was
// marked. A flush that is writing when this is called finishes first.
func (s *Store) MarkSegmentEnd(deviceKey string) bool {
	if s.markQueued(deviceKey) {
		return true
	}

	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	// The flush we waited for may have requeued a failed batch.
	if s.markQueued(deviceKey) {
		return true
	}

	stored, err := s.backend.Read(deviceKey)
	if err != nil {
		log.Printf("store: mark segment end %q: %v", deviceKey, err)
		return false
	}
	if len(stored) == 0 {
		return false
	}
	last := &stored[len(stored)-1]
	if last.SegmentEnd {
		return true
	}
	last.SegmentEnd = true
	if err := s.backend.Write(deviceKey, stored); err != nil {
		log.Printf("store: mark segment end %q: %v", deviceKey, err)
		return false
	}

	s.mu.Lock()
	s.tail[deviceKey] = tailDurable
	s.mu.Unlock()
	return true
}

func (s *Store) markQueued(deviceKey string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tail[deviceKey] != tailQueued {
		return false
	}
	q := s.queues[deviceKey]
	if len(q) == 0 {
		return false
	}
	q[len(q)-1].SegmentEnd = true
	return true
}

// Close stops the flush ticker and writes whatever is still queued.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	started := s.started
	stop, done := s.stop, s.done
	s.mu.Unlock()

	if started {
		close(stop)
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	s.flushMu.Lock()
	defer s.flushMu.Unlock()
	return s.flushLocked(ctx)
}
