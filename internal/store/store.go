package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"dinehall-order-engine/internal/billing"
	"dinehall-order-engine/internal/kitchen"
	"dinehall-order-engine/internal/ledger"
	"dinehall-order-engine/internal/order"
)

var (
	ErrOrderNotFound  = errors.New("order not found")
	ErrTicketNotFound = errors.New("kitchen ticket not found")
)

// Mutation is everything one engine operation changed, committed atomically:
// either the whole mutation lands or none of it does. Payments, kitchen
// events and ledger postings are append-only; the order row is replaced.
type Mutation struct {
	Order       *order.Order
	NewTickets  []*kitchen.Ticket
	NewEvents   []*kitchen.Event
	NewPayments []billing.Payment
	NewPostings []*ledger.Posting
	// IdempotencyToken/IdempotencyResult record the operation's result for
	// replay answers, inside the same commit.
	IdempotencyToken  string
	IdempotencyResult []byte
}

// Store persists the four durable record types (plus tickets and the
// idempotency ledger). Everything else in the engine is derived state.
type Store interface {
	CreateOrder(ctx context.Context, o *order.Order) error
	GetOrder(ctx context.Context, orderID int64) (*order.Order, error)

	GetTicket(ctx context.Context, ticketID uuid.UUID) (*kitchen.Ticket, error)
	TicketsForOrder(ctx context.Context, orderID int64) ([]*kitchen.Ticket, error)

	ListPayments(ctx context.Context, orderID int64) ([]billing.Payment, error)
	HasPosting(ctx context.Context, sourceEvent string) (bool, error)
	ListPostings(ctx context.Context, orderID int64) ([]*ledger.Posting, error)

	GetIdempotentResult(ctx context.Context, token string) ([]byte, bool, error)

	Apply(ctx context.Context, m Mutation) error
}
