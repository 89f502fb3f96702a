package domain

// EventType names an order lifecycle event. Callbacks are registered
// per event type; audit sinks receive every event.
type EventType string

const (
	EventPlaced          EventType = "placed"
	EventPartiallyFilled EventType = "partially_filled"
	EventFilled          EventType = "filled"
	EventCancelled       EventType = "cancelled"
	EventModified        EventType = "modified"
	EventFailed          EventType = "failed"
)

// ValidEventTypes lists all event types accepted for callback registration.
var ValidEventTypes = map[EventType]bool{
	EventPlaced:          true,
	EventPartiallyFilled: true,
	EventFilled:          true,
	EventCancelled:       true,
	EventModified:        true,
	EventFailed:          true,
}

// EventForStatus returns the event type that corresponds to a status
// transition target. Used when the caller does not name the event
// explicitly.
func EventForStatus(s OrderStatus) EventType {
	switch s {
	case OrderStatusPlaced, OrderStatusPending:
		return EventPlaced
	case OrderStatusPartiallyFilled:
		return EventPartiallyFilled
	case OrderStatusFilled:
		return EventFilled
	case OrderStatusCancelled:
		return EventCancelled
	case OrderStatusModified:
		return EventModified
	default:
		return EventFailed
	}
}
