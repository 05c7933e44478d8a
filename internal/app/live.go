// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/cube_tracker/internal/orientation"
	"github.com/relabs-tech/cube_tracker/internal/position"
	"github.com/relabs-tech/cube_tracker/internal/telemetry"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// LiveEvent is pushed to /ws/live clients.
type LiveEvent struct {
	Type        string                   `json:"type"` // position, orientation, signalLost
	Device      string                   `json:"deviceName"`
	Pose        *position.Pose           `json:"pose,omitempty"`
	Point       *position.Point          `json:"point,omitempty"` // pose center on the canvas
	Orientation *orientation.Orientation `json:"orientation,omitempty"`
	At          time.Time                `json:"at"`
}

const liveSendBuffer = 64

// liveHub fans events out to every connected websocket client.
type liveHub struct {
	forward chan []byte
	join    chan *liveClient
	leave   chan *liveClient
	clients map[*liveClient]bool
	done    chan struct{}
}

type liveClient struct {
	socket *websocket.Conn
	send   chan []byte
}

func newLiveHub() *liveHub {
	return &liveHub{
		forward: make(chan []byte),
		join:    make(chan *liveClient),
		leave:   make(chan *liveClient),
		clients: make(map[*liveClient]bool),
		done:    make(chan struct{}),
	}
}

func (h *liveHub) run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				close(c.send)
			}
			return
		case c := <-h.join:
			h.clients[c] = true
			log.Printf("live: client joined (%d connected)", len(h.clients))
		case c := <-h.leave:
			if h.clients[c] {
				delete(h.clients, c)
				close(c.send)
			}
			log.Printf("live: client left (%d connected)", len(h.clients))
		case msg := <-h.forward:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// slow client, drop this event for it
				}
			}
		}
	}
}

// broadcast queues v for every client. It never blocks once the hub stopped.
func (h *liveHub) broadcast(v interface{}) {
	msg, err := json.Marshal(v)
	if err != nil {
		log.Printf("live: json marshal error: %v", err)
		return
	}
	select {
	case h.forward <- msg:
	case <-h.done:
	}
}

// attach publishes decoder events to the hub.
func (h *liveHub) attach(d *telemetry.Decoder, toCanvas func(position.Point) position.Point) {
	d.OnPositionUpdated(func(ev telemetry.PositionUpdated) {
		p := ev.Pose
		pt := toCanvas(p.Center())
		h.broadcast(LiveEvent{Type: "position", Device: ev.DeviceKey, Pose: &p, Point: &pt, At: ev.At})
	})
	d.OnOrientationUpdated(func(ev telemetry.OrientationUpdated) {
		o := ev.Orientation
		h.broadcast(LiveEvent{Type: "orientation", Device: ev.DeviceKey, Orientation: &o, At: ev.At})
	})
	d.OnSignalLost(func(ev telemetry.SignalLost) {
		h.broadcast(LiveEvent{Type: "signalLost", Device: ev.DeviceKey, At: ev.At})
	})
}

func (h *liveHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	socket, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("live: websocket upgrade error: %v", err)
		return
	}
	defer socket.Close()

	c := &liveClient{socket: socket, send: make(chan []byte, liveSendBuffer)}
	select {
	case h.join <- c:
	case <-h.done:
		return
	}

	go c.write()
	// Reads only detect the close; clients send nothing.
	for {
		if _, _, err := socket.ReadMessage(); err != nil {
			break
		}
	}

	select {
	case h.leave <- c:
	case <-h.done:
	}
}

func (c *liveClient) write() {
	for msg := range c.send {
		if err := c.socket.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}
