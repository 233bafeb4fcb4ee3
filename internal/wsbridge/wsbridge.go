// Package wsbridge exposes a firm.Client's decoded telemetry stream over
// a websocket so any connected browser or tool can observe it as JSON,
// without driving a GUI of its own.
package wsbridge

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	firm "github.com/NCSU-High-Powered-Rocketry-Club/FIRM-Client"
	"github.com/NCSU-High-Powered-Rocketry-Club/FIRM-Client/internal/telemetry"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // local tooling only; no browser-facing deployment
	},
}

// Frame is the envelope written to every connected client.
type Frame struct {
	Type   string            `json:"type"`
	Packet *telemetry.Packet `json:"packet,omitempty"`
}

// Hub fans out telemetry packets from a single firm.Client to any number
// of connected websocket clients.
type Hub struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]chan telemetry.Packet
	unsub func()
}

// New attaches a Hub to c's telemetry stream. Call Handler to obtain the
// http.HandlerFunc to mount at the streaming path.
func New(c *firm.Client) *Hub {
	h := &Hub{conns: make(map[*websocket.Conn]chan telemetry.Packet)}
	h.unsub = c.Subscribe(h.broadcast)
	return h
}

func (h *Hub) broadcast(p telemetry.Packet) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, ch := range h.conns {
		select {
		case ch <- p:
		default:
			log.Printf("wsbridge: dropping packet for slow client %s", conn.RemoteAddr())
		}
	}
}

// Handler upgrades incoming requests and streams telemetry as JSON
// frames until the connection closes.
func (h *Hub) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("wsbridge: upgrade error: %v", err)
			return
		}
		defer conn.Close()

		ch := make(chan telemetry.Packet, 16)
		h.mu.Lock()
		h.conns[conn] = ch
		h.mu.Unlock()
		defer func() {
			h.mu.Lock()
			delete(h.conns, conn)
			h.mu.Unlock()
		}()

		// Detect client disconnects without blocking the write side.
		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case p := <-ch:
				pkt := p
				if err := conn.WriteJSON(Frame{Type: "telemetry", Packet: &pkt}); err != nil {
					log.Printf("wsbridge: write error: %v", err)
					return
				}
			case <-closed:
				return
			}
		}
	}
}

// Close detaches from the client's telemetry stream. Already-open
// websocket connections drain and close on their own.
func (h *Hub) Close() {
	h.unsub()
}
