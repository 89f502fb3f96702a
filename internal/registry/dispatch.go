package registry

import (
	"log/slog"
	"sync"

	"github.com/efreitasn/orderledger/internal/domain"
	"github.com/efreitasn/orderledger/internal/metrics"
)

// Callback is a handler notified when a named order event fires. It
// receives an order snapshot; mutating it never affects registry state.
// No registry locks are held during invocation, so a callback may
// safely call back into the registry.
type Callback func(o *domain.Order, event domain.EventType, data map[string]any)

// AuditSink receives every dispatched event regardless of type. It is
// the integration point for external logging and alerting. A failing
// sink never affects delivery to other sinks or the core operation.
type AuditSink interface {
	Consume(o *domain.Order, event domain.EventType, data map[string]any) error
}

// dispatcher fans events out to per-event-type callbacks and to all
// audit sinks. Dispatch is synchronous with respect to the triggering
// operation; failures are isolated per handler.
type dispatcher struct {
	mu        sync.RWMutex
	callbacks map[domain.EventType][]Callback
	sinks     []AuditSink

	logger  *slog.Logger
	metrics *metrics.Metrics
}

func newDispatcher(logger *slog.Logger) *dispatcher {
	return &dispatcher{
		callbacks: make(map[domain.EventType][]Callback),
		logger:    logger,
	}
}

// RegisterCallback appends a handler for one event type. Handlers for
// the same event run in registration order.
func (d *dispatcher) RegisterCallback(event domain.EventType, cb Callback) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.callbacks[event] = append(d.callbacks[event], cb)
}

// RegisterSink appends an audit sink.
func (d *dispatcher) RegisterSink(sink AuditSink) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sinks = append(d.sinks, sink)
}

// Dispatch invokes every callback registered for the event, then every
// audit sink, in registration order. Each handler gets its own snapshot
// of the order. A panicking callback or a failing sink is logged and
// skipped; it aborts neither the remaining handlers nor the operation
// that triggered the event.
func (d *dispatcher) Dispatch(o *domain.Order, event domain.EventType, data map[string]any) {
	d.mu.RLock()
	cbs := make([]Callback, len(d.callbacks[event]))
	copy(cbs, d.callbacks[event])
	sinks := make([]AuditSink, len(d.sinks))
	copy(sinks, d.sinks)
	d.mu.RUnlock()

	for _, cb := range cbs {
		d.invokeCallback(cb, o.Clone(), event, data)
	}
	for _, sink := range sinks {
		d.invokeSink(sink, o.Clone(), event, data)
	}

	if d.metrics != nil {
		d.metrics.EventsDispatched.WithLabelValues(string(event)).Inc()
	}
}

func (d *dispatcher) invokeCallback(cb Callback, o *domain.Order, event domain.EventType, data map[string]any) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Warn("callback panicked",
				slog.String("order_id", o.OrderID),
				slog.String("event", string(event)),
				slog.Any("panic", r),
			)
			if d.metrics != nil {
				d.metrics.CallbackFailures.Inc()
			}
		}
	}()
	cb(o, event, data)
}

func (d *dispatcher) invokeSink(sink AuditSink, o *domain.Order, event domain.EventType, data map[string]any) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Warn("audit sink panicked",
				slog.String("order_id", o.OrderID),
				slog.String("event", string(event)),
				slog.Any("panic", r),
			)
			if d.metrics != nil {
				d.metrics.SinkFailures.Inc()
			}
		}
	}()
	if err := sink.Consume(o, event, data); err != nil {
		d.logger.Warn("audit sink delivery failed",
			slog.String("order_id", o.OrderID),
			slog.String("event", string(event)),
			slog.String("error", err.Error()),
		)
		if d.metrics != nil {
			d.metrics.SinkFailures.Inc()
		}
	}
}
