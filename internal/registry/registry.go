// Package registry implements the order lifecycle registry: admission
// through the risk check pipeline, state-machine transitions with an
// append-only audit trail, event dispatch, indexed queries, and
// snapshot persistence.
package registry

import (
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/efreitasn/orderledger/internal/domain"
	"github.com/efreitasn/orderledger/internal/metrics"
	"github.com/efreitasn/orderledger/internal/persist"
	"github.com/efreitasn/orderledger/internal/store"
)

// AddOrderRequest is the input for order admission. OrderID is
// optional; when empty the registry assigns a UUID.
type AddOrderRequest struct {
	OrderID    string
	StrategyID string
	Symbol     string
	Quantity   float64
	Price      float64
	Metadata   map[string]any
}

// UpdateRequest is the input for a status transition. Event is
// optional; when empty it is derived from Target.
type UpdateRequest struct {
	OrderID string
	Target  domain.OrderStatus
	Event   domain.EventType
	Data    map[string]any
	Reason  string
}

// Registry is the single entry point for order add/update/query
// operations. It owns the canonical order set and composes the risk
// pipeline, the state machine, the audit trail, event dispatch, and
// snapshot persistence. Construct one at startup (empty or loaded from
// a snapshot) and pass it explicitly to collaborators.
type Registry struct {
	store  *store.OrderStore
	risk   *riskPipeline
	disp   *dispatcher
	logger *slog.Logger
	m      *metrics.Metrics

	// now is the transition clock; replaced in tests.
	now func() time.Time
}

// New creates an empty Registry.
func New(logger *slog.Logger) *Registry {
	return &Registry{
		store:  store.NewOrderStore(),
		risk:   newRiskPipeline(),
		disp:   newDispatcher(logger),
		logger: logger,
		now:    time.Now,
	}
}

// SetMetrics wires Prometheus instrumentation into the registry. Call
// before serving traffic; a nil-metrics registry simply skips counting.
func (r *Registry) SetMetrics(m *metrics.Metrics) {
	r.m = m
	r.disp.metrics = m
}

// RegisterRiskCheck appends a named admission predicate. Checks run in
// registration order on every AddOrder.
func (r *Registry) RegisterRiskCheck(name string, check RiskCheck) {
	r.risk.Register(name, check)
}

// RegisterCallback registers a handler for one event type. It returns
// a ValidationError for an unknown event type.
func (r *Registry) RegisterCallback(event domain.EventType, cb Callback) error {
	if !domain.ValidEventTypes[event] {
		return &domain.ValidationError{Message: "unknown event type: " + string(event)}
	}
	r.disp.RegisterCallback(event, cb)
	return nil
}

// RegisterAuditSink registers a sink that receives every event.
func (r *Registry) RegisterAuditSink(sink AuditSink) {
	r.disp.RegisterSink(sink)
}

// AddOrder gates the order through the risk pipeline and admits it.
//
// On a clean pass the order is admitted as PLACED with a single
// creation audit record and the placed event fires. A validation or
// risk failure still admits the order — as FAILED, with the aggregated
// reasons in one audit record and the failed event fired — and the
// typed error is returned alongside the FAILED snapshot so the caller
// can discriminate. A duplicate ID is rejected outright with
// ErrDuplicateOrderID and nothing is recorded.
func (r *Registry) AddOrder(req AddOrderRequest) (*domain.Order, error) {
	id := req.OrderID
	if id == "" {
		id = uuid.New().String()
	}
	if r.store.Exists(id) {
		return nil, domain.ErrDuplicateOrderID
	}

	now := r.now()
	o := &domain.Order{
		OrderID:    id,
		StrategyID: req.StrategyID,
		Symbol:     req.Symbol,
		Quantity:   req.Quantity,
		Price:      req.Price,
		Status:     domain.OrderStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
		Metadata:   req.Metadata,
	}

	if msg := validateAdd(req); msg != "" {
		snap, err := r.admitFailed(o, msg)
		if err != nil {
			return nil, err
		}
		return snap, &domain.ValidationError{Message: msg}
	}

	if reasons := r.risk.Evaluate(o); len(reasons) > 0 {
		if r.m != nil {
			r.m.RiskRejections.Inc()
		}
		snap, err := r.admitFailed(o, strings.Join(reasons, "; "))
		if err != nil {
			return nil, err
		}
		return snap, &domain.RiskCheckError{Reasons: reasons}
	}

	// Creation and placement are one audit record: PENDING is the
	// in-flight state inside admission, never observed by callers.
	o.Status = domain.OrderStatusPlaced
	o.History = []domain.AuditRecord{{
		Timestamp: now,
		Status:    domain.OrderStatusPlaced,
		Event:     domain.EventPlaced,
	}}

	if err := r.store.Insert(o); err != nil {
		return nil, err
	}
	if r.m != nil {
		r.m.OrdersAdded.WithLabelValues(string(domain.OrderStatusPlaced)).Inc()
	}

	snap := o.Clone()
	r.disp.Dispatch(snap, domain.EventPlaced, nil)
	return snap, nil
}

// admitFailed records a rejected order as FAILED with one audit entry
// carrying the aggregated reasons, then fires the failed event.
func (r *Registry) admitFailed(o *domain.Order, reason string) (*domain.Order, error) {
	o.Status = domain.OrderStatusFailed
	o.History = []domain.AuditRecord{{
		Timestamp: o.CreatedAt,
		Status:    domain.OrderStatusFailed,
		Event:     domain.EventFailed,
		Reason:    reason,
	}}

	if err := r.store.Insert(o); err != nil {
		return nil, err
	}
	if r.m != nil {
		r.m.OrdersAdded.WithLabelValues(string(domain.OrderStatusFailed)).Inc()
	}

	snap := o.Clone()
	r.disp.Dispatch(snap, domain.EventFailed, map[string]any{"reason": reason})
	return snap, nil
}

// UpdateOrder applies a status transition through the state machine.
// On success one audit record is appended, the status index is updated,
// and the corresponding event fires; the returned snapshot reflects the
// post-transition order. On an undefined edge the order is left
// unchanged and an InvalidTransitionError is returned; the rejected
// attempt is reported to the caller only, never audited.
func (r *Registry) UpdateOrder(req UpdateRequest) (*domain.Order, error) {
	event := req.Event
	if event == "" {
		event = domain.EventForStatus(req.Target)
	} else if !domain.ValidEventTypes[event] {
		return nil, &domain.ValidationError{Message: "unknown event type: " + string(event)}
	}

	snap, err := r.store.Mutate(req.OrderID, func(o *domain.Order) error {
		return o.ApplyTransition(req.Target, event, req.Data, req.Reason, r.now())
	})
	if err != nil {
		return nil, err
	}

	r.disp.Dispatch(snap, event, req.Data)
	return snap, nil
}

// Annotate sets one metadata key on an order. Allowed in any status,
// including terminal ones; not audited and no event fires.
func (r *Registry) Annotate(orderID, key string, value any) (*domain.Order, error) {
	return r.store.Mutate(orderID, func(o *domain.Order) error {
		o.Annotate(key, value)
		return nil
	})
}

// GetOrder returns a snapshot of one order.
func (r *Registry) GetOrder(orderID string) (*domain.Order, error) {
	return r.store.Get(orderID)
}

// OrdersByStrategy returns snapshots of a strategy's orders.
func (r *Registry) OrdersByStrategy(strategyID string) []*domain.Order {
	return r.store.ByStrategy(strategyID)
}

// OrdersByStatus returns snapshots of orders in one status.
func (r *Registry) OrdersByStatus(status domain.OrderStatus) []*domain.Order {
	return r.store.ByStatus(status)
}

// OrdersBySymbol returns snapshots of a symbol's orders.
func (r *Registry) OrdersBySymbol(symbol string) []*domain.Order {
	return r.store.BySymbol(symbol)
}

// OrdersByTimeRange returns snapshots of orders created in [from, to).
func (r *Registry) OrdersByTimeRange(from, to time.Time) []*domain.Order {
	return r.store.ByTimeRange(from, to)
}

// Orders returns snapshots of all orders matching an arbitrary
// predicate (full linear scan).
func (r *Registry) Orders(pred func(o *domain.Order) bool) []*domain.Order {
	return r.store.Scan(pred)
}

// Count returns the number of orders in the registry.
func (r *Registry) Count() int {
	return r.store.Count()
}

// Save writes a point-in-time snapshot of the full registry to path.
// The snapshot is per-order consistent and written atomically.
func (r *Registry) Save(path string) error {
	start := time.Now()
	if err := persist.Write(path, r.store.All()); err != nil {
		return err
	}
	if r.m != nil {
		r.m.ObserveSnapshot(start)
	}
	r.logger.Info("snapshot saved",
		slog.String("path", path),
		slog.Int("orders", r.store.Count()),
	)
	return nil
}

// Load reconstructs the registry from a snapshot file in one atomic
// step. On any parse or version failure the live registry is left
// completely untouched.
func (r *Registry) Load(path string) error {
	orders, err := persist.Read(path)
	if err != nil {
		return err
	}
	r.store.Replace(orders)
	r.logger.Info("snapshot loaded",
		slog.String("path", path),
		slog.Int("orders", len(orders)),
	)
	return nil
}

func validateAdd(req AddOrderRequest) string {
	switch {
	case req.Symbol == "":
		return "symbol is required"
	case req.Quantity <= 0:
		return "quantity must be greater than 0"
	case req.Price < 0:
		return "price must not be negative"
	}
	return ""
}
