// Package realtime pushes quote snapshots to connected front ends over
// WebSocket so open pages update without polling. Payloads come straight
// from the refresh pipeline's normalized output; the hub never talks to
// the upstream providers itself.
package realtime

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/WIGMarkets/wigmarkets-sub001/models"
)

const (
	maxClients    = 100
	writeTimeout  = 10 * time.Second
	pongTimeout   = 60 * time.Second
	pingInterval  = 30 * time.Second
	sendQueueSize = 16
)

// Message is the envelope broadcast to every client.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
	Time string      `json:"time"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans broadcast payloads out to all connected clients.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan []byte
	register   chan *client
	unregister chan *client
	upgrader   websocket.Upgrader

	mu      sync.RWMutex
	running bool
	stop    chan struct{}
}

// NewHub creates a hub; call Start before serving connections.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *client),
		unregister: make(chan *client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		stop: make(chan struct{}),
	}
}

// Start launches the hub loop. Safe to call once.
func (h *Hub) Start() {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.mu.Unlock()
	go h.run()
}

// Stop terminates the hub loop and disconnects all clients.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.running {
		return
	}
	h.running = false
	close(h.stop)
}

func (h *Hub) run() {
	for {
		select {
		case <-h.stop:
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			return
		case c := <-h.register:
			if len(h.clients) >= maxClients {
				c.conn.Close()
				continue
			}
			h.clients[c] = true
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
		case payload := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- payload:
				default:
					// Slow consumer: drop it rather than block the hub.
					delete(h.clients, c)
					close(c.send)
				}
			}
		}
	}
}

// BroadcastQuotes pushes a quotes payload to every connected client.
func (h *Hub) BroadcastQuotes(quotes map[string]models.QuoteSnapshot) {
	h.mu.RLock()
	running := h.running
	h.mu.RUnlock()
	if !running || len(quotes) == 0 {
		return
	}

	payload, err := json.Marshal(Message{
		Type: "quotes",
		Data: quotes,
		Time: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		log.Printf("realtime: encode broadcast failed: %v", err)
		return
	}
	select {
	case h.broadcast <- payload:
	default:
		log.Println("realtime: broadcast queue full, dropping update")
	}
}

// ClientCount reports connected clients (used by /ready).
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS upgrades the request and attaches the connection to the hub.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("realtime: upgrade failed: %v", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendQueueSize)}
	h.register <- c

	go c.writePump()
	go c.readPump(h)
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards inbound frames; the stream is one-way. It exists to
// process control frames and to notice disconnects.
func (c *client) readPump(h *Hub) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
