package domain

import (
	"errors"
	"testing"
	"time"
)

func newPlacedOrder() *Order {
	now := time.Date(2025, 6, 2, 14, 30, 0, 0, time.UTC)
	return &Order{
		OrderID:    "order-1",
		StrategyID: "strat-1",
		Symbol:     "AAPL",
		Quantity:   100,
		Price:      185.5,
		Status:     OrderStatusPlaced,
		CreatedAt:  now,
		UpdatedAt:  now,
		History: []AuditRecord{
			{Timestamp: now, Status: OrderStatusPlaced, Event: EventPlaced},
		},
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from OrderStatus
		to   OrderStatus
		want bool
	}{
		{OrderStatusPending, OrderStatusPlaced, true},
		{OrderStatusPending, OrderStatusFailed, true},
		{OrderStatusPending, OrderStatusFilled, false},
		{OrderStatusPlaced, OrderStatusPartiallyFilled, true},
		{OrderStatusPlaced, OrderStatusFilled, true},
		{OrderStatusPlaced, OrderStatusCancelled, true},
		{OrderStatusPlaced, OrderStatusModified, true},
		{OrderStatusPlaced, OrderStatusFailed, true},
		{OrderStatusPlaced, OrderStatusPending, false},
		{OrderStatusPartiallyFilled, OrderStatusPlaced, true},
		{OrderStatusPartiallyFilled, OrderStatusFilled, true},
		{OrderStatusPartiallyFilled, OrderStatusCancelled, false},
		{OrderStatusModified, OrderStatusPlaced, true},
		{OrderStatusFilled, OrderStatusCancelled, false},
		{OrderStatusCancelled, OrderStatusPlaced, false},
		{OrderStatusFailed, OrderStatusPlaced, false},
	}

	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestTerminal(t *testing.T) {
	terminal := []OrderStatus{OrderStatusFilled, OrderStatusCancelled, OrderStatusFailed}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("expected %s to be terminal", s)
		}
	}
	open := []OrderStatus{OrderStatusPending, OrderStatusPlaced, OrderStatusPartiallyFilled, OrderStatusModified}
	for _, s := range open {
		if s.Terminal() {
			t.Errorf("expected %s to be non-terminal", s)
		}
	}
}

func TestApplyTransition_AppendsAuditRecord(t *testing.T) {
	o := newPlacedOrder()
	at := o.UpdatedAt.Add(time.Minute)

	err := o.ApplyTransition(OrderStatusFilled, EventFilled, map[string]any{"fill_price": 185.6}, "", at)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if o.Status != OrderStatusFilled {
		t.Fatalf("expected FILLED, got %s", o.Status)
	}
	if len(o.History) != 2 {
		t.Fatalf("expected history length 2, got %d", len(o.History))
	}
	rec := o.History[1]
	if rec.Status != OrderStatusFilled || rec.Event != EventFilled {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if !o.UpdatedAt.Equal(at) {
		t.Fatalf("expected UpdatedAt %v, got %v", at, o.UpdatedAt)
	}
}

func TestApplyTransition_InvalidEdgeLeavesOrderUnchanged(t *testing.T) {
	o := newPlacedOrder()
	o.Status = OrderStatusFilled

	err := o.ApplyTransition(OrderStatusCancelled, EventCancelled, nil, "", time.Now())
	var invalid *InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}
	if invalid.From != OrderStatusFilled || invalid.To != OrderStatusCancelled {
		t.Fatalf("unexpected error fields: %+v", invalid)
	}
	if o.Status != OrderStatusFilled {
		t.Fatalf("order status changed on rejected transition: %s", o.Status)
	}
	if len(o.History) != 1 {
		t.Fatalf("rejected transition must not be audited, history length %d", len(o.History))
	}
}

func TestApplyTransition_UnknownStatusRejected(t *testing.T) {
	o := newPlacedOrder()
	err := o.ApplyTransition(OrderStatus("SHIPPED"), "", nil, "", time.Now())
	var invalid *InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}
}

func TestApplyTransition_ModifiedReturnsToPlaced(t *testing.T) {
	o := newPlacedOrder()
	at := o.UpdatedAt.Add(time.Second)

	data := map[string]any{"price": 190.0, "quantity": 80.0}
	if err := o.ApplyTransition(OrderStatusModified, EventModified, data, "resize", at); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if o.Status != OrderStatusPlaced {
		t.Fatalf("expected live status PLACED after modify, got %s", o.Status)
	}
	if o.Price != 190.0 || o.Quantity != 80.0 {
		t.Fatalf("expected price/quantity updated, got %v/%v", o.Price, o.Quantity)
	}
	rec := o.History[len(o.History)-1]
	if rec.Status != OrderStatusModified || rec.Event != EventModified {
		t.Fatalf("expected MODIFIED marker in history, got %+v", rec)
	}
}

func TestApplyTransition_MonotonicTimestamps(t *testing.T) {
	o := newPlacedOrder()
	// Apply with a clock that never advances past the creation record.
	frozen := o.History[0].Timestamp

	if err := o.ApplyTransition(OrderStatusPartiallyFilled, "", nil, "", frozen); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := o.ApplyTransition(OrderStatusFilled, "", nil, "", frozen); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	for i := 1; i < len(o.History); i++ {
		if !o.History[i].Timestamp.After(o.History[i-1].Timestamp) {
			t.Fatalf("history timestamps not strictly monotonic at index %d", i)
		}
	}
}

func TestApplyTransition_DefaultEventDerivedFromStatus(t *testing.T) {
	o := newPlacedOrder()
	if err := o.ApplyTransition(OrderStatusCancelled, "", nil, "requested", time.Now()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	rec := o.History[len(o.History)-1]
	if rec.Event != EventCancelled {
		t.Fatalf("expected derived event cancelled, got %s", rec.Event)
	}
	if rec.Reason != "requested" {
		t.Fatalf("expected reason carried into record, got %q", rec.Reason)
	}
}
