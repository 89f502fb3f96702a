// Package persist implements versioned, crash-safe snapshot
// persistence for the order registry.
package persist

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/efreitasn/orderledger/internal/domain"
)

// FormatVersion is the snapshot container version this build writes
// and the only version it accepts on load. Version mismatches are hard
// failures, not best-effort upgrades.
const FormatVersion = 1

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// snapshotFile is the on-disk container: a versioned list of every
// order with its full audit history.
type snapshotFile struct {
	Version int           `json:"version"`
	SavedAt time.Time     `json:"saved_at"`
	Orders  []orderRecord `json:"orders"`
}

type orderRecord struct {
	OrderID    string         `json:"order_id"`
	StrategyID string         `json:"strategy_id"`
	Symbol     string         `json:"symbol"`
	Quantity   float64        `json:"quantity"`
	Price      float64        `json:"price"`
	Status     string         `json:"status"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	History    []auditRecord  `json:"history"`
}

type auditRecord struct {
	Timestamp time.Time      `json:"timestamp"`
	Status    string         `json:"status"`
	Event     string         `json:"event"`
	Reason    string         `json:"reason,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// Write serializes the orders to path atomically: the full content is
// written to a temporary file in the same directory, synced, and then
// renamed over path. A crash mid-write never leaves a corrupt or
// half-written snapshot visible.
func Write(path string, orders []*domain.Order) error {
	file := snapshotFile{
		Version: FormatVersion,
		SavedAt: time.Now().UTC(),
		Orders:  make([]orderRecord, 0, len(orders)),
	}
	for _, o := range orders {
		file.Orders = append(file.Orders, toRecord(o))
	}

	data, err := json.Marshal(file)
	if err != nil {
		return &domain.PersistenceError{Op: "save", Err: err}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &domain.PersistenceError{Op: "save", Err: err}
	}

	tmp, err := os.CreateTemp(dir, ".snapshot-*.tmp")
	if err != nil {
		return &domain.PersistenceError{Op: "save", Err: err}
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &domain.PersistenceError{Op: "save", Err: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &domain.PersistenceError{Op: "save", Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &domain.PersistenceError{Op: "save", Err: err}
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return &domain.PersistenceError{Op: "save", Err: err}
	}
	return nil
}

// Read parses and validates a snapshot file and returns the
// reconstructed orders. Any parse, version, or content failure returns
// a PersistenceError and no partial result.
func Read(path string) ([]*domain.Order, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "load", Err: err}
	}

	var file snapshotFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, &domain.PersistenceError{Op: "load", Err: err}
	}
	if file.Version != FormatVersion {
		return nil, &domain.PersistenceError{
			Op:  "load",
			Err: fmt.Errorf("unsupported snapshot version %d (want %d)", file.Version, FormatVersion),
		}
	}

	orders := make([]*domain.Order, 0, len(file.Orders))
	seen := make(map[string]bool, len(file.Orders))
	for i, rec := range file.Orders {
		o, err := fromRecord(rec)
		if err != nil {
			return nil, &domain.PersistenceError{
				Op:  "load",
				Err: fmt.Errorf("order %d (%s): %w", i, rec.OrderID, err),
			}
		}
		if seen[o.OrderID] {
			return nil, &domain.PersistenceError{
				Op:  "load",
				Err: fmt.Errorf("duplicate order id %s", o.OrderID),
			}
		}
		seen[o.OrderID] = true
		orders = append(orders, o)
	}
	return orders, nil
}

func toRecord(o *domain.Order) orderRecord {
	rec := orderRecord{
		OrderID:    o.OrderID,
		StrategyID: o.StrategyID,
		Symbol:     o.Symbol,
		Quantity:   o.Quantity,
		Price:      o.Price,
		Status:     string(o.Status),
		CreatedAt:  o.CreatedAt,
		UpdatedAt:  o.UpdatedAt,
		Metadata:   o.Metadata,
		History:    make([]auditRecord, 0, len(o.History)),
	}
	for _, h := range o.History {
		rec.History = append(rec.History, auditRecord{
			Timestamp: h.Timestamp,
			Status:    string(h.Status),
			Event:     string(h.Event),
			Reason:    h.Reason,
			Data:      h.Data,
		})
	}
	return rec
}

func fromRecord(rec orderRecord) (*domain.Order, error) {
	if rec.OrderID == "" {
		return nil, fmt.Errorf("missing order_id")
	}
	status := domain.OrderStatus(rec.Status)
	if !status.Valid() {
		return nil, fmt.Errorf("unknown status %q", rec.Status)
	}
	if len(rec.History) == 0 {
		return nil, fmt.Errorf("empty history")
	}

	o := &domain.Order{
		OrderID:    rec.OrderID,
		StrategyID: rec.StrategyID,
		Symbol:     rec.Symbol,
		Quantity:   rec.Quantity,
		Price:      rec.Price,
		Status:     status,
		CreatedAt:  rec.CreatedAt,
		UpdatedAt:  rec.UpdatedAt,
		Metadata:   rec.Metadata,
		History:    make([]domain.AuditRecord, 0, len(rec.History)),
	}
	for i, h := range rec.History {
		hs := domain.OrderStatus(h.Status)
		if !hs.Valid() {
			return nil, fmt.Errorf("history %d: unknown status %q", i, h.Status)
		}
		o.History = append(o.History, domain.AuditRecord{
			Timestamp: h.Timestamp,
			Status:    hs,
			Event:     domain.EventType(h.Event),
			Reason:    h.Reason,
			Data:      h.Data,
		})
	}
	return o, nil
}
