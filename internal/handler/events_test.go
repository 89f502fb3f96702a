package handler

import (
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/efreitasn/orderledger/internal/domain"
)

func newTestHub() *Hub {
	return NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)), 8)
}

func placedOrder(id string) *domain.Order {
	now := time.Now().UTC()
	return &domain.Order{
		OrderID:   id,
		Symbol:    "AAPL",
		Quantity:  10,
		Price:     100,
		Status:    domain.OrderStatusPlaced,
		CreatedAt: now,
		UpdatedAt: now,
		History: []domain.AuditRecord{
			{Timestamp: now, Status: domain.OrderStatusPlaced, Event: domain.EventPlaced},
		},
	}
}

func TestHub_StreamsEvents(t *testing.T) {
	hub := newTestHub()
	defer hub.Close()

	srv := httptest.NewServer(hub)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Registration happens on the server goroutine; wait for it.
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := hub.Consume(placedOrder("order-1"), domain.EventPlaced, map[string]any{"venue": "test"}); err != nil {
		t.Fatalf("consume: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var msg eventMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.OrderID != "order-1" || msg.Event != "placed" || msg.Status != "PLACED" {
		t.Errorf("unexpected message: %+v", msg)
	}
	if msg.Data["venue"] != "test" {
		t.Errorf("data = %v", msg.Data)
	}
}

func TestHub_DropsSlowClient(t *testing.T) {
	hub := newTestHub()

	// A client with a full queue and no reader.
	slow := &wsClient{send: make(chan []byte, 1)}
	hub.clients[slow] = struct{}{}

	if err := hub.Consume(placedOrder("order-1"), domain.EventPlaced, nil); err != nil {
		t.Fatalf("first consume: %v", err)
	}
	if err := hub.Consume(placedOrder("order-2"), domain.EventPlaced, nil); err != nil {
		t.Fatalf("second consume: %v", err)
	}

	if hub.ClientCount() != 0 {
		t.Fatalf("expected slow client to be dropped, count = %d", hub.ClientCount())
	}
	if _, open := <-slow.send; !open {
		t.Fatal("expected one queued message before the channel closed")
	}
}
