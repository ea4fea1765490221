package store

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"dinehall-order-engine/internal/billing"
	"dinehall-order-engine/internal/kitchen"
	"dinehall-order-engine/internal/ledger"
	"dinehall-order-engine/internal/order"
)

// Memory is the in-process store used when DATABASE_URL is empty (dev mode)
// and throughout the engine tests. Snapshots are deep copies: a reader is
// never handed live state.
type Memory struct {
	mu          sync.RWMutex
	nextOrderID int64
	nextPayID   int64
	orders      map[int64]*order.Order
	tickets     map[uuid.UUID]*kitchen.Ticket
	events      []*kitchen.Event
	payments    map[int64][]billing.Payment
	postings    []*ledger.Posting
	bySource    map[string]bool
	idempotent  map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{
		orders:     make(map[int64]*order.Order),
		tickets:    make(map[uuid.UUID]*kitchen.Ticket),
		payments:   make(map[int64][]billing.Payment),
		bySource:   make(map[string]bool),
		idempotent: make(map[string][]byte),
	}
}

func (m *Memory) CreateOrder(_ context.Context, o *order.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextOrderID++
	o.ID = m.nextOrderID
	m.orders[o.ID] = o.Clone()
	return nil
}

func (m *Memory) GetOrder(_ context.Context, orderID int64) (*order.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return o.Clone(), nil
}

func (m *Memory) GetTicket(_ context.Context, ticketID uuid.UUID) (*kitchen.Ticket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tickets[ticketID]
	if !ok {
		return nil, ErrTicketNotFound
	}
	dup := *t
	dup.LineIDs = append([]int64(nil), t.LineIDs...)
	return &dup, nil
}

func (m *Memory) TicketsForOrder(_ context.Context, orderID int64) ([]*kitchen.Ticket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*kitchen.Ticket
	for _, t := range m.tickets {
		if t.OrderID == orderID {
			dup := *t
			dup.LineIDs = append([]int64(nil), t.LineIDs...)
			out = append(out, &dup)
		}
	}
	return out, nil
}

func (m *Memory) ListPayments(_ context.Context, orderID int64) ([]billing.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]billing.Payment(nil), m.payments[orderID]...), nil
}

func (m *Memory) HasPosting(_ context.Context, sourceEvent string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.bySource[sourceEvent], nil
}

func (m *Memory) ListPostings(_ context.Context, orderID int64) ([]*ledger.Posting, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*ledger.Posting
	for _, p := range m.postings {
		if p.OrderID == orderID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *Memory) GetIdempotentResult(_ context.Context, token string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result, ok := m.idempotent[token]
	return result, ok, nil
}

func (m *Memory) Apply(_ context.Context, mut Mutation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if mut.Order != nil {
		m.orders[mut.Order.ID] = mut.Order.Clone()
	}
	for _, t := range mut.NewTickets {
		dup := *t
		dup.LineIDs = append([]int64(nil), t.LineIDs...)
		m.tickets[t.ID] = &dup
	}
	m.events = append(m.events, mut.NewEvents...)
	for _, p := range mut.NewPayments {
		m.nextPayID++
		p.ID = m.nextPayID
		m.payments[p.OrderID] = append(m.payments[p.OrderID], p)
	}
	for _, p := range mut.NewPostings {
		m.postings = append(m.postings, p)
		m.bySource[p.SourceEvent] = true
	}
	if mut.IdempotencyToken != "" {
		m.idempotent[mut.IdempotencyToken] = mut.IdempotencyResult
	}
	return nil
}
