// Package sink provides audit sink implementations that receive every
// order event dispatched by the registry.
package sink

import (
	"database/sql"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver.

	"github.com/efreitasn/orderledger/internal/domain"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const schema = `
CREATE TABLE IF NOT EXISTS audit_events (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	order_id   TEXT NOT NULL,
	event      TEXT NOT NULL,
	status     TEXT NOT NULL,
	reason     TEXT,
	payload    TEXT,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_events_order_id ON audit_events(order_id);
`

// SQLiteSink appends every dispatched event to a SQLite table. The
// table is append-only: rows are never updated or deleted, mirroring
// the in-memory audit trail.
type SQLiteSink struct {
	db *sql.DB
}

// NewSQLiteSink opens (or creates) the audit database at dbPath and
// ensures the schema exists.
func NewSQLiteSink(dbPath string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create audit schema: %w", err)
	}
	return &SQLiteSink{db: db}, nil
}

// Consume records one event row. The opaque event payload is stored as
// JSON; a nil payload stores NULL.
func (s *SQLiteSink) Consume(o *domain.Order, event domain.EventType, data map[string]any) error {
	var payload any
	if len(data) > 0 {
		b, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("encode payload: %w", err)
		}
		payload = string(b)
	}

	var reason string
	if len(o.History) > 0 {
		reason = o.History[len(o.History)-1].Reason
	}

	_, err := s.db.Exec(
		`INSERT INTO audit_events (order_id, event, status, reason, payload, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		o.OrderID, string(event), string(o.Status), reason, payload, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// EventsForOrder returns the recorded event types for one order in
// insertion order. Used by recovery tooling and tests.
func (s *SQLiteSink) EventsForOrder(orderID string) ([]domain.EventType, error) {
	rows, err := s.db.Query(
		`SELECT event FROM audit_events WHERE order_id = ? ORDER BY id ASC`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []domain.EventType
	for rows.Next() {
		var e string
		if err := rows.Scan(&e); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		events = append(events, domain.EventType(e))
	}
	return events, rows.Err()
}

// Close closes the underlying database connection.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
