// Package live pushes saved ledger prices to websocket subscribers.
package live

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"welcome-craft/internal/models"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 16
)

// Message is the envelope sent to clients.
type Message struct {
	Type    string             `json:"type"` // "price"
	Metal   models.Metal       `json:"metal"`
	Data    *models.MetalPrice `json:"data"`
	Initial bool               `json:"initial,omitempty"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans out price updates. New clients first receive the latest record of every metal.
type Hub struct {
	upgrader websocket.Upgrader
	log      *logrus.Entry

	mu      sync.RWMutex
	clients map[*client]bool
	latest  map[models.Metal]*models.MetalPrice
}

func NewHub(log *logrus.Entry) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log:     log,
		clients: make(map[*client]bool),
		latest:  make(map[models.Metal]*models.MetalPrice),
	}
}

// Seed sets the initial state without broadcasting.
func (h *Hub) Seed(rec *models.MetalPrice) {
	if rec == nil {
		return
	}
	h.mu.Lock()
	h.latest[rec.Metal] = rec
	h.mu.Unlock()
}

// PublishPrice records rec as the latest and broadcasts it.
func (h *Hub) PublishPrice(rec *models.MetalPrice) {
	cp := *rec
	msg, err := json.Marshal(Message{Type: "price", Metal: cp.Metal, Data: &cp})
	if err != nil {
		h.log.WithError(err).Error("Failed to encode price update")
		return
	}

	h.mu.Lock()
	h.latest[cp.Metal] = &cp
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			// slow consumer
			delete(h.clients, c)
			close(c.send)
		}
	}
	h.mu.Unlock()
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS upgrades the request and registers the client.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	for _, rec := range h.latest {
		if msg, err := json.Marshal(Message{Type: "price", Metal: rec.Metal, Data: rec, Initial: true}); err == nil {
			c.send <- msg
		}
	}
	h.clients[c] = true
	h.mu.Unlock()

	go h.writePump(c)
	go h.readPump(c)
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if h.clients[c] {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only watches for disconnects; clients never send anything meaningful.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
