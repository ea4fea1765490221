package orderlock

import "sync"

// Table serializes mutating work per order while letting different orders
// proceed fully in parallel. Never a global lock: each order id gets its own
// mutex, created on first use and reference-counted away when idle.
type Table struct {
	mu    sync.Mutex
	locks map[int64]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

func NewTable() *Table {
	return &Table{locks: make(map[int64]*entry)}
}

// Do runs fn within the order's exclusive scope. Operations either commit
// fully inside the scope or fail atomically; there is no partial-effect
// state for an abandoned caller to observe.
func (t *Table) Do(orderID int64, fn func() error) error {
	e := t.acquire(orderID)
	e.mu.Lock()
	defer func() {
		e.mu.Unlock()
		t.release(orderID)
	}()
	return fn()
}

func (t *Table) acquire(orderID int64) *entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.locks[orderID]
	if !ok {
		e = &entry{}
		t.locks[orderID] = e
	}
	e.refs++
	return e
}

func (t *Table) release(orderID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.locks[orderID]
	if !ok {
		return
	}
	e.refs--
	if e.refs <= 0 {
		delete(t.locks, orderID)
	}
}
