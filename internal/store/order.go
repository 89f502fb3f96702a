package store

import (
	"sort"
	"sync"
	"time"

	"github.com/google/btree"

	"github.com/efreitasn/orderledger/internal/domain"
)

// timelineEntry is the key for the time-ordered index: created_at
// ascending, then order_id ascending for a stable total order.
type timelineEntry struct {
	CreatedAt time.Time
	OrderID   string
}

func timelineLess(a, b timelineEntry) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.OrderID < b.OrderID
}

// orderEntry pairs a canonical order with its own mutex. Mutations to
// one order are serialized on this lock, so concurrent updates to
// different orders never contend.
type orderEntry struct {
	mu    sync.Mutex
	order *domain.Order
}

// OrderStore owns the canonical copy of every order. It maintains a
// primary index by order_id, secondary indices by strategy, status, and
// symbol (identifier sets only, updated incrementally on every
// mutation), and a B-tree time index for range scans.
//
// Lock ordering: the store lock is never held while waiting on an
// order entry lock. Lookups fetch the entry pointer under a short read
// lock, release it, and then lock the entry. Reindexing acquires the
// store lock while the entry lock is held, which is safe under that
// rule. Orders are never removed, so an entry pointer stays valid after
// the read lock is released.
type OrderStore struct {
	mu         sync.RWMutex
	orders     map[string]*orderEntry
	byStrategy map[string]map[string]struct{}
	byStatus   map[domain.OrderStatus]map[string]struct{}
	bySymbol   map[string]map[string]struct{}
	timeline   *btree.BTreeG[timelineEntry]
}

// NewOrderStore creates an empty OrderStore.
func NewOrderStore() *OrderStore {
	const degree = 32
	return &OrderStore{
		orders:     make(map[string]*orderEntry),
		byStrategy: make(map[string]map[string]struct{}),
		byStatus:   make(map[domain.OrderStatus]map[string]struct{}),
		bySymbol:   make(map[string]map[string]struct{}),
		timeline:   btree.NewG[timelineEntry](degree, timelineLess),
	}
}

// Insert adds an order to the store and all indices. It returns
// domain.ErrDuplicateOrderID if the ID is already present; IDs are
// never reused because orders are never removed.
func (s *OrderStore) Insert(o *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[o.OrderID]; ok {
		return domain.ErrDuplicateOrderID
	}

	s.orders[o.OrderID] = &orderEntry{order: o}
	addToIndex(s.byStrategy, o.StrategyID, o.OrderID)
	addToIndex(s.byStatus, o.Status, o.OrderID)
	addToIndex(s.bySymbol, o.Symbol, o.OrderID)
	s.timeline.ReplaceOrInsert(timelineEntry{CreatedAt: o.CreatedAt, OrderID: o.OrderID})

	return nil
}

// Exists reports whether an order ID is present.
func (s *OrderStore) Exists(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.orders[id]
	return ok
}

// Count returns the number of orders in the store.
func (s *OrderStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders)
}

// Get returns a snapshot of an order by ID. It returns
// domain.ErrOrderNotFound if the order does not exist.
func (s *OrderStore) Get(id string) (*domain.Order, error) {
	e, err := s.entry(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.order.Clone(), nil
}

// Mutate applies fn to the canonical order under its entry lock. If fn
// returns an error the order is left as fn left it (fn must not make
// partial changes before failing) and no reindex happens. On success
// the status index is updated and a post-mutation snapshot is returned.
func (s *OrderStore) Mutate(id string, fn func(o *domain.Order) error) (*domain.Order, error) {
	e, err := s.entry(id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	oldStatus := e.order.Status
	if err := fn(e.order); err != nil {
		return nil, err
	}

	if e.order.Status != oldStatus {
		s.mu.Lock()
		removeFromIndex(s.byStatus, oldStatus, id)
		addToIndex(s.byStatus, e.order.Status, id)
		s.mu.Unlock()
	}

	return e.order.Clone(), nil
}

// ByStrategy returns snapshots of all orders for a strategy, ordered by
// creation time.
func (s *OrderStore) ByStrategy(strategyID string) []*domain.Order {
	return s.snapshotIDs(func() map[string]struct{} { return s.byStrategy[strategyID] })
}

// ByStatus returns snapshots of all orders with the given status,
// ordered by creation time.
func (s *OrderStore) ByStatus(status domain.OrderStatus) []*domain.Order {
	return s.snapshotIDs(func() map[string]struct{} { return s.byStatus[status] })
}

// BySymbol returns snapshots of all orders for a symbol, ordered by
// creation time.
func (s *OrderStore) BySymbol(symbol string) []*domain.Order {
	return s.snapshotIDs(func() map[string]struct{} { return s.bySymbol[symbol] })
}

// ByTimeRange returns snapshots of orders created in [from, to),
// ordered by creation time. It walks the B-tree index rather than
// scanning the full order set.
func (s *OrderStore) ByTimeRange(from, to time.Time) []*domain.Order {
	s.mu.RLock()
	var ids []string
	s.timeline.AscendRange(
		timelineEntry{CreatedAt: from},
		timelineEntry{CreatedAt: to},
		func(te timelineEntry) bool {
			ids = append(ids, te.OrderID)
			return true
		},
	)
	entries := make([]*orderEntry, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, s.orders[id])
	}
	s.mu.RUnlock()

	out := make([]*domain.Order, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, e.order.Clone())
		e.mu.Unlock()
	}
	return out
}

// All returns snapshots of every order, ordered by creation time. Each
// snapshot is per-order consistent; the set is approximately
// simultaneous across orders (no global lock is held while cloning).
func (s *OrderStore) All() []*domain.Order {
	s.mu.RLock()
	entries := make([]*orderEntry, 0, len(s.orders))
	s.timeline.Ascend(func(te timelineEntry) bool {
		entries = append(entries, s.orders[te.OrderID])
		return true
	})
	s.mu.RUnlock()

	out := make([]*domain.Order, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, e.order.Clone())
		e.mu.Unlock()
	}
	return out
}

// Scan returns snapshots of all orders matching an arbitrary predicate.
// The predicate runs against snapshots, so it can neither block writers
// nor corrupt registry state. Full linear scan.
func (s *OrderStore) Scan(pred func(o *domain.Order) bool) []*domain.Order {
	all := s.All()
	out := make([]*domain.Order, 0)
	for _, o := range all {
		if pred(o) {
			out = append(out, o)
		}
	}
	return out
}

// Replace swaps the entire contents of the store in one step. Used by
// snapshot load: the caller builds and validates the full order set
// first, so a failed load never leaves the store half-replaced.
func (s *OrderStore) Replace(orders []*domain.Order) {
	const degree = 32

	byID := make(map[string]*orderEntry, len(orders))
	byStrategy := make(map[string]map[string]struct{})
	byStatus := make(map[domain.OrderStatus]map[string]struct{})
	bySymbol := make(map[string]map[string]struct{})
	timeline := btree.NewG[timelineEntry](degree, timelineLess)

	for _, o := range orders {
		byID[o.OrderID] = &orderEntry{order: o}
		addToIndex(byStrategy, o.StrategyID, o.OrderID)
		addToIndex(byStatus, o.Status, o.OrderID)
		addToIndex(bySymbol, o.Symbol, o.OrderID)
		timeline.ReplaceOrInsert(timelineEntry{CreatedAt: o.CreatedAt, OrderID: o.OrderID})
	}

	s.mu.Lock()
	s.orders = byID
	s.byStrategy = byStrategy
	s.byStatus = byStatus
	s.bySymbol = bySymbol
	s.timeline = timeline
	s.mu.Unlock()
}

// entry fetches the entry pointer for an ID under a short read lock.
func (s *OrderStore) entry(id string) (*orderEntry, error) {
	s.mu.RLock()
	e, ok := s.orders[id]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return e, nil
}

// snapshotIDs clones the orders named by an index bucket, sorted by
// creation time then ID.
func (s *OrderStore) snapshotIDs(bucket func() map[string]struct{}) []*domain.Order {
	s.mu.RLock()
	ids := bucket()
	entries := make([]*orderEntry, 0, len(ids))
	for id := range ids {
		entries = append(entries, s.orders[id])
	}
	s.mu.RUnlock()

	out := make([]*domain.Order, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, e.order.Clone())
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].OrderID < out[j].OrderID
	})
	return out
}

func addToIndex[K comparable](idx map[K]map[string]struct{}, key K, id string) {
	if idx[key] == nil {
		idx[key] = make(map[string]struct{})
	}
	idx[key][id] = struct{}{}
}

func removeFromIndex[K comparable](idx map[K]map[string]struct{}, key K, id string) {
	if set, ok := idx[key]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(idx, key)
		}
	}
}
