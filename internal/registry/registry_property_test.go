package registry

import (
	"testing"

	"pgregory.net/rapid"

	"github.com/efreitasn/orderledger/internal/domain"
)

// Property: after N accepted transitions, an order's history has
// exactly N+1 records (the creation record plus one per transition),
// with strictly increasing timestamps.

func TestProperty_HistoryLengthTracksTransitions(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		r := newTestRegistry()

		o, err := r.AddOrder(AddOrderRequest{
			Symbol:   "AAPL",
			Quantity: rapid.Float64Range(1, 1000).Draw(t, "qty"),
			Price:    rapid.Float64Range(0.01, 10000).Draw(t, "price"),
		})
		if err != nil {
			t.Fatalf("add: %v", err)
		}
		id := o.OrderID

		steps := rapid.IntRange(0, 20).Draw(t, "steps")
		applied := 0
		for i := 0; i < steps; i++ {
			cur, _ := r.GetOrder(id)
			if cur.Terminal() {
				break
			}
			targets := domain.ValidTransitions[cur.Status]
			target := targets[rapid.IntRange(0, len(targets)-1).Draw(t, "edge")]

			if _, err := r.UpdateOrder(UpdateRequest{OrderID: id, Target: target}); err != nil {
				t.Fatalf("transition %s -> %s: %v", cur.Status, target, err)
			}
			applied++
		}

		final, _ := r.GetOrder(id)
		if got := len(final.History); got != applied+1 {
			t.Fatalf("history length %d after %d transitions, want %d", got, applied, applied+1)
		}
		for i := 1; i < len(final.History); i++ {
			if !final.History[i].Timestamp.After(final.History[i-1].Timestamp) {
				t.Fatalf("history timestamps not strictly monotonic at %d", i)
			}
		}
	})
}

// Property: an order whose quantity exceeds a registered limit check
// always ends FAILED and never reaches PLACED.

func TestProperty_OverLimitOrderAlwaysFails(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		limit := rapid.Float64Range(1, 1000).Draw(t, "limit")
		qty := rapid.Float64Range(limit+1, limit*10+1).Draw(t, "qty")

		r := newTestRegistry()
		r.RegisterRiskCheck("max-quantity", maxQuantityCheck(limit))

		var sawPlaced bool
		r.RegisterCallback(domain.EventPlaced, func(o *domain.Order, e domain.EventType, data map[string]any) {
			sawPlaced = true
		})

		o, err := r.AddOrder(AddOrderRequest{Symbol: "AAPL", Quantity: qty, Price: 1})
		if err == nil {
			t.Fatalf("expected rejection for qty %v over limit %v", qty, limit)
		}
		if o.Status != domain.OrderStatusFailed {
			t.Fatalf("expected FAILED, got %s", o.Status)
		}
		if sawPlaced {
			t.Fatal("over-limit order fired a placed event")
		}
	})
}
