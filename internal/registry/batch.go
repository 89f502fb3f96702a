package registry

import (
	"context"

	"github.com/efreitasn/orderledger/internal/domain"
)

// BatchResult is the outcome of one item in a batch operation. Exactly
// one of Order/Err describes the outcome, except for risk or validation
// rejections at admission where the FAILED snapshot accompanies the
// typed error.
type BatchResult struct {
	OrderID string
	Order   *domain.Order
	Err     error
}

// AddOrders admits each order through the single-item path
// independently: one item's rejection never blocks or rolls back the
// others. The context is a cooperative early-stop check — once it is
// done, remaining items are reported with ctx.Err() and not applied.
func (r *Registry) AddOrders(ctx context.Context, reqs []AddOrderRequest) []BatchResult {
	results := make([]BatchResult, 0, len(reqs))
	for _, req := range reqs {
		if err := ctx.Err(); err != nil {
			results = append(results, BatchResult{OrderID: req.OrderID, Err: err})
			continue
		}
		o, err := r.AddOrder(req)
		res := BatchResult{OrderID: req.OrderID, Order: o, Err: err}
		if o != nil {
			res.OrderID = o.OrderID
		}
		results = append(results, res)
	}
	return results
}

// UpdateOrders applies each transition through the single-item path
// independently, with the same per-item result semantics as AddOrders.
func (r *Registry) UpdateOrders(ctx context.Context, reqs []UpdateRequest) []BatchResult {
	results := make([]BatchResult, 0, len(reqs))
	for _, req := range reqs {
		if err := ctx.Err(); err != nil {
			results = append(results, BatchResult{OrderID: req.OrderID, Err: err})
			continue
		}
		o, err := r.UpdateOrder(req)
		results = append(results, BatchResult{OrderID: req.OrderID, Order: o, Err: err})
	}
	return results
}
