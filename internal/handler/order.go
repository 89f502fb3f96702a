package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/efreitasn/orderledger/internal/domain"
	"github.com/efreitasn/orderledger/internal/registry"
	"github.com/efreitasn/orderledger/internal/session"
)

// OrderHandler handles HTTP requests for order endpoints.
type OrderHandler struct {
	reg *registry.Registry

	// calendar gates order submission when enforceSession is set.
	calendar       *session.Calendar
	enforceSession bool

	snapshotPath string
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(reg *registry.Registry, cal *session.Calendar, enforceSession bool, snapshotPath string) *OrderHandler {
	return &OrderHandler{
		reg:            reg,
		calendar:       cal,
		enforceSession: enforceSession,
		snapshotPath:   snapshotPath,
	}
}

// submitOrderRequest is the JSON request body for POST /orders.
type submitOrderRequest struct {
	OrderID    string         `json:"order_id"`
	StrategyID string         `json:"strategy_id"`
	Symbol     string         `json:"symbol"`
	Quantity   float64        `json:"quantity"`
	Price      float64        `json:"price"`
	Metadata   map[string]any `json:"metadata"`
}

// updateOrderRequest is the JSON request body for PATCH /orders/{order_id}.
type updateOrderRequest struct {
	Status string         `json:"status"`
	Event  string         `json:"event"`
	Data   map[string]any `json:"data"`
	Reason string         `json:"reason"`
}

// annotateRequest is the JSON request body for PUT /orders/{order_id}/metadata.
type annotateRequest struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// batchSubmitRequest is the JSON request body for POST /orders/batch.
type batchSubmitRequest struct {
	Orders []submitOrderRequest `json:"orders"`
}

// batchUpdateRequest is the JSON request body for PATCH /orders/batch.
type batchUpdateRequest struct {
	Updates []batchUpdateItem `json:"updates"`
}

type batchUpdateItem struct {
	OrderID string `json:"order_id"`
	updateOrderRequest
}

// orderResponse is the JSON representation of one order.
type orderResponse struct {
	OrderID    string                `json:"order_id"`
	StrategyID string                `json:"strategy_id"`
	Symbol     string                `json:"symbol"`
	Quantity   float64               `json:"quantity"`
	Price      float64               `json:"price"`
	Status     string                `json:"status"`
	CreatedAt  string                `json:"created_at"`
	UpdatedAt  string                `json:"updated_at"`
	Metadata   map[string]any        `json:"metadata,omitempty"`
	History    []auditRecordResponse `json:"history"`
}

// auditRecordResponse is one audit trail entry in responses.
type auditRecordResponse struct {
	Timestamp string         `json:"timestamp"`
	Status    string         `json:"status"`
	Event     string         `json:"event"`
	Reason    string         `json:"reason,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// batchItemResponse is one per-item outcome in batch responses.
type batchItemResponse struct {
	OrderID string         `json:"order_id"`
	Order   *orderResponse `json:"order,omitempty"`
	Error   string         `json:"error,omitempty"`
	Message string         `json:"message,omitempty"`
}

// SubmitOrder handles POST /orders.
func (h *OrderHandler) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req submitOrderRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	if h.sessionClosed() {
		WriteError(w, http.StatusForbidden, "market_closed",
			"Order submission is not permitted outside trading hours")
		return
	}

	order, err := h.reg.AddOrder(toAddRequest(req))
	if err != nil {
		writeSubmitError(w, order, err)
		return
	}

	WriteJSON(w, http.StatusCreated, buildOrderResponse(order))
}

// SubmitBatch handles POST /orders/batch. Each item is admitted
// independently; the response reports a per-item outcome in input order.
func (h *OrderHandler) SubmitBatch(w http.ResponseWriter, r *http.Request) {
	var req batchSubmitRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if len(req.Orders) == 0 {
		WriteError(w, http.StatusBadRequest, "validation_error", "orders must not be empty")
		return
	}

	if h.sessionClosed() {
		WriteError(w, http.StatusForbidden, "market_closed",
			"Order submission is not permitted outside trading hours")
		return
	}

	reqs := make([]registry.AddOrderRequest, len(req.Orders))
	for i, item := range req.Orders {
		reqs[i] = toAddRequest(item)
	}

	results := h.reg.AddOrders(r.Context(), reqs)
	WriteJSON(w, http.StatusOK, map[string]any{"results": buildBatchResponse(results)})
}

// UpdateOrder handles PATCH /orders/{order_id}.
func (h *OrderHandler) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "order_id")

	var req updateOrderRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.Status == "" {
		WriteError(w, http.StatusBadRequest, "validation_error", "status is required")
		return
	}

	order, err := h.reg.UpdateOrder(registry.UpdateRequest{
		OrderID: orderID,
		Target:  domain.OrderStatus(req.Status),
		Event:   domain.EventType(req.Event),
		Data:    req.Data,
		Reason:  req.Reason,
	})
	if err != nil {
		mapOrderError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildOrderResponse(order))
}

// UpdateBatch handles PATCH /orders/batch.
func (h *OrderHandler) UpdateBatch(w http.ResponseWriter, r *http.Request) {
	var req batchUpdateRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if len(req.Updates) == 0 {
		WriteError(w, http.StatusBadRequest, "validation_error", "updates must not be empty")
		return
	}

	reqs := make([]registry.UpdateRequest, len(req.Updates))
	for i, item := range req.Updates {
		reqs[i] = registry.UpdateRequest{
			OrderID: item.OrderID,
			Target:  domain.OrderStatus(item.Status),
			Event:   domain.EventType(item.Event),
			Data:    item.Data,
			Reason:  item.Reason,
		}
	}

	results := h.reg.UpdateOrders(r.Context(), reqs)
	WriteJSON(w, http.StatusOK, map[string]any{"results": buildBatchResponse(results)})
}

// Annotate handles PUT /orders/{order_id}/metadata.
func (h *OrderHandler) Annotate(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "order_id")

	var req annotateRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.Key == "" {
		WriteError(w, http.StatusBadRequest, "validation_error", "key is required")
		return
	}

	order, err := h.reg.Annotate(orderID, req.Key, req.Value)
	if err != nil {
		mapOrderError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildOrderResponse(order))
}

// GetOrder handles GET /orders/{order_id}.
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "order_id")

	order, err := h.reg.GetOrder(orderID)
	if err != nil {
		mapOrderError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildOrderResponse(order))
}

// GetHistory handles GET /orders/{order_id}/history.
func (h *OrderHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "order_id")

	order, err := h.reg.GetOrder(orderID)
	if err != nil {
		mapOrderError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"order_id": order.OrderID,
		"history":  buildHistoryResponse(order.History),
	})
}

// ListOrders handles GET /orders with optional strategy_id, status,
// symbol, from, and to query filters. Single-filter requests use the
// dedicated index; combined filters fall back to a full scan.
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	strategyID := q.Get("strategy_id")
	status := q.Get("status")
	symbol := q.Get("symbol")
	fromStr := q.Get("from")
	toStr := q.Get("to")

	if status != "" && !domain.OrderStatus(status).Valid() {
		WriteError(w, http.StatusBadRequest, "validation_error", "unknown status: "+status)
		return
	}

	var from, to time.Time
	var hasRange bool
	if fromStr != "" || toStr != "" {
		var err error
		if from, to, err = parseTimeRange(fromStr, toStr); err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", err.Error())
			return
		}
		hasRange = true
	}

	var orders []*domain.Order
	switch {
	case strategyID != "" && status == "" && symbol == "" && !hasRange:
		orders = h.reg.OrdersByStrategy(strategyID)
	case status != "" && strategyID == "" && symbol == "" && !hasRange:
		orders = h.reg.OrdersByStatus(domain.OrderStatus(status))
	case symbol != "" && strategyID == "" && status == "" && !hasRange:
		orders = h.reg.OrdersBySymbol(symbol)
	case hasRange && strategyID == "" && status == "" && symbol == "":
		orders = h.reg.OrdersByTimeRange(from, to)
	default:
		orders = h.reg.Orders(func(o *domain.Order) bool {
			if strategyID != "" && o.StrategyID != strategyID {
				return false
			}
			if status != "" && o.Status != domain.OrderStatus(status) {
				return false
			}
			if symbol != "" && o.Symbol != symbol {
				return false
			}
			if hasRange && (o.CreatedAt.Before(from) || !o.CreatedAt.Before(to)) {
				return false
			}
			return true
		})
	}

	resp := make([]*orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = buildOrderResponse(o)
	}
	WriteJSON(w, http.StatusOK, map[string]any{"orders": resp, "count": len(resp)})
}

// Snapshot handles POST /snapshot: persists the full registry to the
// configured path.
func (h *OrderHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	if err := h.reg.Save(h.snapshotPath); err != nil {
		WriteError(w, http.StatusInternalServerError, "snapshot_failed", err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"status": "saved",
		"path":   h.snapshotPath,
		"orders": h.reg.Count(),
	})
}

func (h *OrderHandler) sessionClosed() bool {
	return h.enforceSession && h.calendar != nil && !h.calendar.IsOpen()
}

func toAddRequest(req submitOrderRequest) registry.AddOrderRequest {
	return registry.AddOrderRequest{
		OrderID:    req.OrderID,
		StrategyID: req.StrategyID,
		Symbol:     req.Symbol,
		Quantity:   req.Quantity,
		Price:      req.Price,
		Metadata:   req.Metadata,
	}
}

// parseTimeRange parses RFC 3339 from/to bounds. A missing bound is
// open: from defaults to the zero time, to to the distant future.
func parseTimeRange(fromStr, toStr string) (time.Time, time.Time, error) {
	var from, to time.Time
	var err error

	if fromStr != "" {
		if from, err = time.Parse(time.RFC3339, fromStr); err != nil {
			return from, to, errors.New("from must be a valid RFC 3339 timestamp")
		}
	}
	if toStr != "" {
		if to, err = time.Parse(time.RFC3339, toStr); err != nil {
			return from, to, errors.New("to must be a valid RFC 3339 timestamp")
		}
	} else {
		to = time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC)
	}

	return from, to, nil
}

func buildOrderResponse(o *domain.Order) *orderResponse {
	return &orderResponse{
		OrderID:    o.OrderID,
		StrategyID: o.StrategyID,
		Symbol:     o.Symbol,
		Quantity:   o.Quantity,
		Price:      o.Price,
		Status:     string(o.Status),
		CreatedAt:  o.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:  o.UpdatedAt.UTC().Format(time.RFC3339Nano),
		Metadata:   o.Metadata,
		History:    buildHistoryResponse(o.History),
	}
}

func buildHistoryResponse(history []domain.AuditRecord) []auditRecordResponse {
	result := make([]auditRecordResponse, len(history))
	for i, rec := range history {
		result[i] = auditRecordResponse{
			Timestamp: rec.Timestamp.UTC().Format(time.RFC3339Nano),
			Status:    string(rec.Status),
			Event:     string(rec.Event),
			Reason:    rec.Reason,
			Data:      rec.Data,
		}
	}
	return result
}

func buildBatchResponse(results []registry.BatchResult) []batchItemResponse {
	items := make([]batchItemResponse, len(results))
	for i, res := range results {
		item := batchItemResponse{OrderID: res.OrderID}
		if res.Order != nil {
			item.Order = buildOrderResponse(res.Order)
		}
		if res.Err != nil {
			item.Error = errorCode(res.Err)
			item.Message = res.Err.Error()
		}
		items[i] = item
	}
	return items
}

// writeSubmitError reports a failed submission. Validation and risk
// rejections still carry the admitted FAILED snapshot in the body.
func writeSubmitError(w http.ResponseWriter, order *domain.Order, err error) {
	resp := errorResponse{Error: errorCode(err), Message: err.Error()}
	if order != nil {
		resp.Order = buildOrderResponse(order)
	}
	WriteJSON(w, statusFor(err), resp)
}

// mapOrderError maps domain errors to HTTP responses for order endpoints.
func mapOrderError(w http.ResponseWriter, err error) {
	WriteError(w, statusFor(err), errorCode(err), err.Error())
}

func statusFor(err error) int {
	var validationErr *domain.ValidationError
	var riskErr *domain.RiskCheckError
	var transitionErr *domain.InvalidTransitionError

	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest
	case errors.As(err, &riskErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &transitionErr):
		return http.StatusConflict
	case errors.Is(err, domain.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDuplicateOrderID):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func errorCode(err error) string {
	var validationErr *domain.ValidationError
	var riskErr *domain.RiskCheckError
	var transitionErr *domain.InvalidTransitionError

	switch {
	case errors.As(err, &validationErr):
		return "validation_error"
	case errors.As(err, &riskErr):
		return "risk_rejected"
	case errors.As(err, &transitionErr):
		return "invalid_transition"
	case errors.Is(err, domain.ErrOrderNotFound):
		return "order_not_found"
	case errors.Is(err, domain.ErrDuplicateOrderID):
		return "duplicate_order_id"
	default:
		return "internal_error"
	}
}
