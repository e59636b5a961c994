package handler

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"kitchen-sync/internal/microservices/board/models"
	"kitchen-sync/internal/microservices/board/view"
)

const (
	writeWait  = 5 * time.Second
	clientSend = 16
)

// Frame is one message pushed to kitchen screens.
type Frame struct {
	Type  string              `json:"type"`
	Board *view.Board         `json:"board,omitempty"`
	Alert *models.StatusEvent `json:"alert,omitempty"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub pushes board frames to every connected screen. Slow screens are
// dropped instead of blocking the broadcaster.
type Hub struct {
	clients   map[*client]bool
	broadcast chan []byte
	mutex     sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:   make(map[*client]bool),
		broadcast: make(chan []byte, 256),
	}
}

// Run fans broadcasts out until ctx is done, then disconnects everyone.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.mutex.Unlock()
			return
		case msg := <-h.broadcast:
			h.mutex.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					delete(h.clients, c)
					close(c.send)
				}
			}
			h.mutex.Unlock()
		}
	}
}

func (h *Hub) addClient(conn *websocket.Conn) *client {
	c := &client{conn: conn, send: make(chan []byte, clientSend)}
	h.mutex.Lock()
	h.clients[c] = true
	h.mutex.Unlock()
	go c.writePump()
	return c
}

func (h *Hub) removeClient(c *client) {
	h.mutex.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mutex.Unlock()
}

// sendTo queues msg for one client only.
func (h *Hub) sendTo(c *client, msg []byte) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	if !h.clients[c] {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

// BroadcastMessage never blocks; when the queue is full the message is dropped.
func (h *Hub) BroadcastMessage(message []byte) {
	select {
	case h.broadcast <- message:
	default:
	}
}

func (h *Hub) ClientsCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// BroadcastBoard pushes a full board frame.
func (h *Hub) BroadcastBoard(b view.Board) {
	if msg, err := json.Marshal(Frame{Type: "board", Board: &b}); err == nil {
		h.BroadcastMessage(msg)
	}
}

// Publish turns rolled back mutations into alert frames. Confirmed ones are
// already visible through the next board frame.
func (h *Hub) Publish(_ context.Context, e models.StatusEvent) error {
	if e.Outcome != models.OutcomeRolledBack {
		return nil
	}
	msg, err := json.Marshal(Frame{Type: "alert", Alert: &e})
	if err != nil {
		return err
	}
	h.BroadcastMessage(msg)
	return nil
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
}
