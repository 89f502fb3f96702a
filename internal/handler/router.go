package handler

import (
	"bufio"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/efreitasn/orderledger/internal/metrics"
	"github.com/efreitasn/orderledger/internal/registry"
	"github.com/efreitasn/orderledger/internal/session"
)

// Options collects the optional collaborators wired into the router.
type Options struct {
	// Calendar plus EnforceSession gate order submission to trading
	// hours. A nil Calendar disables the gate.
	Calendar       *session.Calendar
	EnforceSession bool

	// SnapshotPath is the target for POST /snapshot.
	SnapshotPath string

	// Hub serves GET /ws when non-nil.
	Hub *Hub

	// Metrics serves GET /metrics and counts requests when non-nil.
	Metrics *metrics.Metrics
}

// NewRouter creates a chi router with all routes registered, request logging,
// and Content-Type validation middleware.
func NewRouter(reg *registry.Registry, opts Options, logger *slog.Logger) chi.Router {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(requestLogging(logger, opts.Metrics))
	r.Use(contentTypeJSON)

	orderH := NewOrderHandler(reg, opts.Calendar, opts.EnforceSession, opts.SnapshotPath)

	// Health check.
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Order routes.
	r.Post("/orders", orderH.SubmitOrder)
	r.Post("/orders/batch", orderH.SubmitBatch)
	r.Patch("/orders/batch", orderH.UpdateBatch)
	r.Get("/orders", orderH.ListOrders)
	r.Get("/orders/{order_id}", orderH.GetOrder)
	r.Patch("/orders/{order_id}", orderH.UpdateOrder)
	r.Get("/orders/{order_id}/history", orderH.GetHistory)
	r.Put("/orders/{order_id}/metadata", orderH.Annotate)

	// Persistence.
	r.Post("/snapshot", orderH.Snapshot)

	// Event feed.
	if opts.Hub != nil {
		r.Get("/ws", opts.Hub.ServeHTTP)
	}

	// Instrumentation.
	if opts.Metrics != nil {
		r.Get("/metrics", opts.Metrics.Handler().ServeHTTP)
	}

	return r
}

// requestLogging returns middleware that logs each request's method, path,
// status code, and duration using slog, and counts it when metrics are
// enabled.
func requestLogging(logger *slog.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			)
			if m != nil {
				m.CountRequest(r.Method, ww.status)
			}
		})
	}
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

// Hijack passes through to the underlying writer so websocket upgrades
// work behind the logging middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return hj.Hijack()
}

// contentTypeJSON is middleware that validates Content-Type for POST, PUT, and
// PATCH requests. If the Content-Type header doesn't start with
// "application/json", it returns 400 Bad Request before the handler runs.
// POST /snapshot takes no body and is exempt.
func contentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			if r.URL.Path != "/snapshot" {
				ct := r.Header.Get("Content-Type")
				if ct == "" || !strings.HasPrefix(ct, "application/json") {
					WriteError(w, http.StatusBadRequest, "invalid_request",
						"Content-Type must be application/json")
					return
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}
