package handler

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/efreitasn/orderledger/internal/domain"
)

const wsWriteTimeout = 5 * time.Second

// eventMessage is one order event pushed to websocket subscribers.
type eventMessage struct {
	OrderID   string         `json:"order_id"`
	Event     string         `json:"event"`
	Status    string         `json:"status"`
	Symbol    string         `json:"symbol"`
	Timestamp string         `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// Hub fans order events out to websocket subscribers. It implements
// the registry's audit sink interface, so every dispatched event
// reaches every connected client. Slow clients are dropped rather
// than allowed to stall dispatch.
type Hub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader
	sendBuf  int

	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates a Hub whose per-client send queue holds sendBuf
// messages.
func NewHub(logger *slog.Logger, sendBuf int) *Hub {
	if sendBuf <= 0 {
		sendBuf = 64
	}
	return &Hub{
		logger:  logger,
		sendBuf: sendBuf,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients: make(map[*wsClient]struct{}),
	}
}

// ServeHTTP handles GET /ws: upgrades the connection and streams every
// subsequent order event to the client.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &wsClient{conn: conn, send: make(chan []byte, h.sendBuf)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go h.writePump(c)
	h.readPump(c)
}

// Consume satisfies the audit sink interface: it serializes the event
// once and queues it for every connected client.
func (h *Hub) Consume(o *domain.Order, event domain.EventType, data map[string]any) error {
	msg, err := json.Marshal(eventMessage{
		OrderID:   o.OrderID,
		Event:     string(event),
		Status:    string(o.Status),
		Symbol:    o.Symbol,
		Timestamp: o.UpdatedAt.UTC().Format(time.RFC3339Nano),
		Data:      data,
	})
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			// Full queue means the client cannot keep up.
			delete(h.clients, c)
			close(c.send)
			h.logger.Warn("dropping slow websocket client")
		}
	}
	return nil
}

// ClientCount returns the number of connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects all subscribers.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) writePump(c *wsClient) {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.remove(c)
			return
		}
	}
	c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
}

// readPump discards client frames; its only job is to notice the
// connection closing.
func (h *Hub) readPump(c *wsClient) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			h.remove(c)
			return
		}
	}
}

func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}
