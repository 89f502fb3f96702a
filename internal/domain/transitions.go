package domain

import "time"

// ValidTransitions defines the allowed status transition edges.
// FILLED, CANCELLED, and FAILED are terminal: they have no outgoing
// edges and do not appear as keys.
var ValidTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending: {OrderStatusPlaced, OrderStatusFailed},
	OrderStatusPlaced: {
		OrderStatusPartiallyFilled,
		OrderStatusFilled,
		OrderStatusCancelled,
		OrderStatusModified,
		OrderStatusFailed,
	},
	OrderStatusPartiallyFilled: {OrderStatusPlaced, OrderStatusFilled},
	OrderStatusModified:        {OrderStatusPlaced},
}

// CanTransition reports whether the edge from → to exists in the
// transition table.
func CanTransition(from, to OrderStatus) bool {
	for _, s := range ValidTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether the status has no outgoing edges.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCancelled, OrderStatusFailed:
		return true
	}
	return false
}

// Valid reports whether s is a member of the closed status enumeration.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusPlaced, OrderStatusPartiallyFilled,
		OrderStatusFilled, OrderStatusCancelled, OrderStatusModified,
		OrderStatusFailed:
		return true
	}
	return false
}

// ApplyTransition validates and applies a status transition. On success
// it appends exactly one audit record and updates Status and UpdatedAt.
// On an undefined edge it returns an InvalidTransitionError and the
// order is left unchanged; the rejected attempt is not audited.
//
// A MODIFIED transition is a transient marker: the record carries
// status MODIFIED, but the order's live status returns to PLACED with
// the new price/quantity taken from data["price"] / data["quantity"].
// History timestamps are kept strictly monotonic even when the caller's
// clock does not advance between transitions.
func (o *Order) ApplyTransition(target OrderStatus, event EventType, data map[string]any, reason string, now time.Time) error {
	if !target.Valid() {
		return &InvalidTransitionError{From: o.Status, To: target}
	}
	if !CanTransition(o.Status, target) {
		return &InvalidTransitionError{From: o.Status, To: target}
	}

	if len(o.History) > 0 {
		if last := o.History[len(o.History)-1].Timestamp; !now.After(last) {
			now = last.Add(time.Nanosecond)
		}
	}

	if event == "" {
		event = EventForStatus(target)
	}

	o.History = append(o.History, AuditRecord{
		Timestamp: now,
		Status:    target,
		Event:     event,
		Reason:    reason,
		Data:      cloneMap(data),
	})

	if target == OrderStatusModified {
		if p, ok := toFloat(data["price"]); ok {
			o.Price = p
		}
		if q, ok := toFloat(data["quantity"]); ok {
			o.Quantity = q
		}
		// The marker lives in history; the working status is PLACED.
		o.Status = OrderStatusPlaced
	} else {
		o.Status = target
	}
	o.UpdatedAt = now

	return nil
}

// toFloat accepts the numeric types a JSON payload or a Go caller is
// likely to put in event data.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
