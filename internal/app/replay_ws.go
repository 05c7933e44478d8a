// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"log"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/relabs-tech/cube_tracker/internal/replay"
	"github.com/relabs-tech/cube_tracker/internal/sample"
)

// ReplayRequest is a client message on /ws/replay.
type ReplayRequest struct {
	Action string `json:"action"` // load, seek, play, stop
	Device string `json:"deviceName,omitempty"`
	Index  *int   `json:"index,omitempty"`
}

// ReplayResponse is a server message on /ws/replay.
type ReplayResponse struct {
	Type     string           `json:"type"` // session, loaded, frame, done, stopped, error
	Session  string           `json:"session,omitempty"`
	Device   string           `json:"deviceName,omitempty"`
	Index    int              `json:"index"`
	Length   int              `json:"length"`
	Segments []replay.Segment `json:"segments,omitempty"`
	Message  string           `json:"message,omitempty"`
}

// replaySession is one client scrubbing or playing one device's history.
type replaySession struct {
	id     string
	conn   *websocket.Conn
	engine *replay.Engine

	writeMu sync.Mutex

	mu      sync.Mutex
	device  string
	history []sample.Sample
	gen     int // bumped whenever a playback is started or stopped
}

func (rc *recorder) handleReplayWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("replay: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	s := &replaySession{
		id:     uuid.NewString(),
		conn:   conn,
		engine: rc.newEngine(),
	}
	defer s.engine.Stop()

	log.Printf("replay: session %s opened", s.id)
	s.send(ReplayResponse{Type: "session", Session: s.id})

	for {
		var msg ReplayRequest
		if err := conn.ReadJSON(&msg); err != nil {
			log.Printf("replay: session %s closed: %v", s.id, err)
			return
		}

		switch msg.Action {
		case "load":
			s.load(rc, msg.Device)
		case "seek":
			s.seek(msg.Index)
		case "play":
			s.play(msg.Index)
		case "stop":
			s.stop()
		default:
			s.sendError("unknown action: " + msg.Action)
		}
	}
}

func (s *replaySession) load(rc *recorder, device string) {
	if device == "" {
		s.sendError("deviceName is required")
		return
	}
	history, err := rc.store.History(device)
	if err != nil {
		s.sendError(err.Error())
		return
	}

	s.stop()
	s.mu.Lock()
	s.device = device
	s.history = history
	s.mu.Unlock()

	s.send(ReplayResponse{Type: "loaded", Device: device, Length: len(history)})
	s.seek(nil)
}

func (s *replaySession) seek(index *int) {
	s.mu.Lock()
	device, history := s.device, s.history
	s.gen++
	s.mu.Unlock()
	s.engine.Stop()

	i := 0
	if index != nil {
		i = *index
	}
	segs, err := s.engine.Render(history, i)
	if err != nil {
		s.sendError(err.Error())
		return
	}
	s.send(ReplayResponse{Type: "frame", Device: device, Index: i, Length: len(history), Segments: segs})
}

func (s *replaySession) play(index *int) {
	s.mu.Lock()
	device, history := s.device, s.history
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	start := 0
	if index != nil {
		start = *index
	}
	p, err := s.engine.Play(history, start, func(i int, segs []replay.Segment) {
		s.send(ReplayResponse{Type: "frame", Device: device, Index: i, Length: len(history), Segments: segs})
	})
	if err != nil {
		s.sendError(err.Error())
		return
	}

	go func() {
		<-p.Done()
		s.mu.Lock()
		current := s.gen == gen
		s.mu.Unlock()
		if current {
			s.send(ReplayResponse{Type: "done", Device: device, Index: p.Index(), Length: len(history)})
		}
	}()
}

func (s *replaySession) stop() {
	s.mu.Lock()
	s.gen++
	device, n := s.device, len(s.history)
	s.mu.Unlock()

	if s.engine.Playing() {
		s.engine.Stop()
		s.send(ReplayResponse{Type: "stopped", Device: device, Length: n})
	}
}

func (s *replaySession) send(resp ReplayResponse) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteJSON(resp); err != nil {
		log.Printf("replay: session %s write error: %v", s.id, err)
	}
}

func (s *replaySession) sendError(message string) {
	s.send(ReplayResponse{Type: "error", Message: message})
}
