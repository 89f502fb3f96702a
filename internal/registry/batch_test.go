package registry

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/efreitasn/orderledger/internal/domain"
)

func TestUpdateOrders_IndependentOutcomes(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()

	// Orders 1 and 3 are PLACED; order 2 is terminal (FILLED).
	for _, id := range []string{"1", "2", "3"} {
		if _, err := r.AddOrder(AddOrderRequest{OrderID: id, Symbol: "AAPL", Quantity: 1, Price: 1}); err != nil {
			t.Fatalf("add %s: %v", id, err)
		}
	}
	if _, err := r.UpdateOrder(UpdateRequest{OrderID: "2", Target: domain.OrderStatusFilled}); err != nil {
		t.Fatalf("pre-fill 2: %v", err)
	}

	results := r.UpdateOrders(ctx, []UpdateRequest{
		{OrderID: "1", Target: domain.OrderStatusFilled},
		{OrderID: "2", Target: domain.OrderStatusPlaced}, // terminal, invalid
		{OrderID: "3", Target: domain.OrderStatusCancelled},
	})
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	if results[0].Err != nil || results[0].Order.Status != domain.OrderStatusFilled {
		t.Fatalf("item 1: %+v", results[0])
	}

	var invalid *domain.InvalidTransitionError
	if !errors.As(results[1].Err, &invalid) {
		t.Fatalf("item 2: expected InvalidTransitionError, got %v", results[1].Err)
	}
	got2, _ := r.GetOrder("2")
	if got2.Status != domain.OrderStatusFilled {
		t.Fatalf("item 2 must be unchanged, got %s", got2.Status)
	}

	if results[2].Err != nil || results[2].Order.Status != domain.OrderStatusCancelled {
		t.Fatalf("item 3: %+v", results[2])
	}
}

func TestAddOrders_PerItemResults(t *testing.T) {
	r := newTestRegistry()
	r.RegisterRiskCheck("max-quantity", maxQuantityCheck(100))

	results := r.AddOrders(context.Background(), []AddOrderRequest{
		{OrderID: "ok", Symbol: "AAPL", Quantity: 10, Price: 1},
		{OrderID: "too-big", Symbol: "AAPL", Quantity: 500, Price: 1},
		{OrderID: "ok", Symbol: "MSFT", Quantity: 10, Price: 1}, // duplicate
		{OrderID: "ok-2", Symbol: "AAPL", Quantity: 20, Price: 1},
	})

	if results[0].Err != nil {
		t.Fatalf("item 0: %v", results[0].Err)
	}
	var rerr *domain.RiskCheckError
	if !errors.As(results[1].Err, &rerr) {
		t.Fatalf("item 1: expected RiskCheckError, got %v", results[1].Err)
	}
	if !errors.Is(results[2].Err, domain.ErrDuplicateOrderID) {
		t.Fatalf("item 2: expected ErrDuplicateOrderID, got %v", results[2].Err)
	}
	// A rejected item never blocks later items.
	if results[3].Err != nil || results[3].Order.Status != domain.OrderStatusPlaced {
		t.Fatalf("item 3: %+v", results[3])
	}
}

func TestBatch_CooperativeEarlyStop(t *testing.T) {
	r := newTestRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var reqs []AddOrderRequest
	for i := 0; i < 3; i++ {
		reqs = append(reqs, AddOrderRequest{OrderID: fmt.Sprintf("o%d", i), Symbol: "AAPL", Quantity: 1, Price: 1})
	}

	results := r.AddOrders(ctx, reqs)
	for i, res := range results {
		if !errors.Is(res.Err, context.Canceled) {
			t.Fatalf("item %d: expected context.Canceled, got %v", i, res.Err)
		}
	}
	if r.Count() != 0 {
		t.Fatalf("cancelled batch must not apply items, count %d", r.Count())
	}
}
