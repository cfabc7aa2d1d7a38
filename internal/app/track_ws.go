// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/track_logger/internal/session"
)

const wsWriteTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// WSTrackMessage is pushed to map pages on every session change.
type WSTrackMessage struct {
	Type     string           `json:"type"` // "track"
	Snapshot session.Snapshot `json:"snapshot"`
}

// trackHub fans session snapshots out to connected WebSocket clients.
type trackHub struct {
	mu      sync.Mutex
	clients map[*trackClient]struct{}
}

// trackClient keeps at most one pending snapshot. Snapshots are full
// state, so a slow client only ever needs the latest one.
type trackClient struct {
	conn *websocket.Conn
	send chan session.Snapshot
}

func newTrackHub() *trackHub {
	return &trackHub{clients: make(map[*trackClient]struct{})}
}

func (h *trackHub) add(c *trackClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *trackHub) remove(c *trackClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

func (h *trackHub) broadcast(snap session.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.offer(snap)
	}
}

// offer replaces any undelivered snapshot with snap.
func (c *trackClient) offer(snap session.Snapshot) {
	for {
		select {
		case c.send <- snap:
			return
		default:
		}
		select {
		case <-c.send:
		default:
		}
	}
}

// handleTrackWS streams session snapshots, starting with the current one.
func (s *Server) handleTrackWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	client := &trackClient{conn: conn, send: make(chan session.Snapshot, 1)}
	client.offer(s.ctrl.Snapshot())
	s.hub.add(client)
	defer s.hub.remove(client)

	// Reader: the page sends nothing we need, but reading notices close frames.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("web: websocket error: %v", err)
				}
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case snap := <-client.send:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(WSTrackMessage{Type: "track", Snapshot: snap}); err != nil {
				log.Printf("web: websocket write error: %v", err)
				return
			}
		}
	}
}
