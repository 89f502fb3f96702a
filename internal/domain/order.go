package domain

import "time"

// OrderStatus represents the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "PENDING"
	OrderStatusPlaced          OrderStatus = "PLACED"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusCancelled       OrderStatus = "CANCELLED"
	OrderStatusModified        OrderStatus = "MODIFIED"
	OrderStatusFailed          OrderStatus = "FAILED"
)

// AuditRecord is one immutable entry in an order's history. Records are
// only ever appended; none is edited or removed after the fact.
type AuditRecord struct {
	Timestamp time.Time
	Status    OrderStatus
	Event     EventType
	Reason    string
	Data      map[string]any
}

// Order is the unit entity tracked by the registry. The registry owns
// the canonical copy; everything handed to callers, callbacks, or sinks
// is a Clone.
type Order struct {
	OrderID    string
	StrategyID string
	Symbol     string
	Quantity   float64
	Price      float64
	Status     OrderStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
	History    []AuditRecord
	Metadata   map[string]any
}

// Terminal reports whether the order has reached a terminal status.
// Terminal orders are frozen except for metadata annotation.
func (o *Order) Terminal() bool {
	return o.Status.Terminal()
}

// Clone returns a deep copy of the order. The history slice, metadata
// map, and per-record data maps are copied, so mutating the clone never
// affects registry state.
func (o *Order) Clone() *Order {
	c := *o
	c.History = make([]AuditRecord, len(o.History))
	for i, rec := range o.History {
		rec.Data = cloneMap(rec.Data)
		c.History[i] = rec
	}
	c.Metadata = cloneMap(o.Metadata)
	return &c
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Annotate sets a metadata key on the order. Annotation is permitted in
// any status, including terminal ones, and produces no audit record.
func (o *Order) Annotate(key string, value any) {
	if o.Metadata == nil {
		o.Metadata = make(map[string]any)
	}
	o.Metadata[key] = value
}
