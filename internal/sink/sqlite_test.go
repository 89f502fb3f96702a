package sink

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/efreitasn/orderledger/internal/domain"
)

func newTestSink(t *testing.T) *SQLiteSink {
	t.Helper()
	s, err := NewSQLiteSink(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("open sink: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testOrder(status domain.OrderStatus) *domain.Order {
	now := time.Now().UTC()
	return &domain.Order{
		OrderID:   "order-1",
		Symbol:    "AAPL",
		Quantity:  10,
		Price:     100,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
		History: []domain.AuditRecord{
			{Timestamp: now, Status: status, Event: domain.EventForStatus(status)},
		},
	}
}

func TestSQLiteSink_AppendsEvents(t *testing.T) {
	s := newTestSink(t)

	if err := s.Consume(testOrder(domain.OrderStatusPlaced), domain.EventPlaced, nil); err != nil {
		t.Fatalf("consume placed: %v", err)
	}
	if err := s.Consume(testOrder(domain.OrderStatusFilled), domain.EventFilled, map[string]any{"fill_price": 101.5}); err != nil {
		t.Fatalf("consume filled: %v", err)
	}

	events, err := s.EventsForOrder("order-1")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(events) != 2 || events[0] != domain.EventPlaced || events[1] != domain.EventFilled {
		t.Fatalf("unexpected events: %v", events)
	}
}

func TestSQLiteSink_UnknownOrderHasNoEvents(t *testing.T) {
	s := newTestSink(t)

	events, err := s.EventsForOrder("ghost")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no events, got %v", events)
	}
}

func TestSQLiteSink_ReopenKeepsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")

	s, err := NewSQLiteSink(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.Consume(testOrder(domain.OrderStatusPlaced), domain.EventPlaced, nil); err != nil {
		t.Fatalf("consume: %v", err)
	}
	s.Close()

	reopened, err := NewSQLiteSink(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	events, err := reopened.EventsForOrder("order-1")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected persisted event after reopen, got %v", events)
	}
}
