package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"dinehall-order-engine/internal/authority"
	"dinehall-order-engine/internal/billing"
	"dinehall-order-engine/internal/catalog"
	"dinehall-order-engine/internal/ledger"
	"dinehall-order-engine/internal/order"
	"dinehall-order-engine/internal/orderlock"
	"dinehall-order-engine/internal/store"
	"dinehall-order-engine/internal/tax"
)

// Sink receives domain events after they have committed. Delivery is
// best-effort: a sink failure is logged, never rolled into the operation
// result.
type Sink interface {
	Emit(ctx context.Context, routingKey string, payload any)
}

// Engine is the transport-agnostic order lifecycle facade. Every mutating
// operation runs inside the order's exclusive scope and commits through a
// single store mutation.
type Engine struct {
	Store      store.Store
	Prices     catalog.PriceBook
	Tax        tax.Calculator
	Provider   billing.SettlementProvider
	Authority  authority.Resolver
	VoidPolicy authority.VoidPolicy
	Sink       Sink
	Logger     *zap.Logger

	locks *orderlock.Table
	now   func() time.Time
}

type Deps struct {
	Store      store.Store
	Prices     catalog.PriceBook
	Tax        tax.Calculator
	Provider   billing.SettlementProvider
	Authority  authority.Resolver
	VoidPolicy authority.VoidPolicy
	Sink       Sink
	Logger     *zap.Logger
}

func New(deps Deps) *Engine {
	return &Engine{
		Store:      deps.Store,
		Prices:     deps.Prices,
		Tax:        deps.Tax,
		Provider:   deps.Provider,
		Authority:  deps.Authority,
		VoidPolicy: deps.VoidPolicy,
		Sink:       deps.Sink,
		Logger:     deps.Logger,
		locks:      orderlock.NewTable(),
		now:        time.Now,
	}
}

func (e *Engine) taxFunc() order.TaxFunc {
	if e.Tax == nil {
		return nil
	}
	return e.Tax.Compute
}

func (e *Engine) emit(ctx context.Context, routingKey string, payload any) {
	if e.Sink == nil {
		return
	}
	e.Sink.Emit(ctx, routingKey, payload)
}

// journalBuffer adapts the store into a ledger.Journal whose appends are
// buffered into the pending mutation instead of written immediately, so
// postings commit atomically with the order change that produced them.
type journalBuffer struct {
	store    store.Store
	buffered []*ledger.Posting
}

func (b *journalBuffer) Exists(ctx context.Context, sourceEvent string) (bool, error) {
	for _, p := range b.buffered {
		if p.SourceEvent == sourceEvent {
			return true, nil
		}
	}
	return b.store.HasPosting(ctx, sourceEvent)
}

func (b *journalBuffer) Append(_ context.Context, posting *ledger.Posting) error {
	b.buffered = append(b.buffered, posting)
	return nil
}

// LineSnapshot and Snapshot are the serialized order views returned to
// callers and stored as idempotency replay answers.
type LineSnapshot struct {
	ID             int64              `json:"id"`
	CatalogItemID  int64              `json:"catalogItemId"`
	Name           string             `json:"name"`
	Quantity       int32              `json:"quantity"`
	VoidedQuantity int32              `json:"voidedQuantity"`
	UnitPrice      string             `json:"unitPrice"`
	Subtotal       string             `json:"subtotal"`
	Status         order.ItemStatus   `json:"status"`
	Voids          []order.VoidRecord `json:"voids,omitempty"`
}

type Snapshot struct {
	ID         int64             `json:"id"`
	LocationID int64             `json:"locationId"`
	ServerID   int64             `json:"serverId"`
	Status     order.OrderStatus `json:"status"`
	Subtotal   string            `json:"subtotal"`
	Discount   string            `json:"discount"`
	Tax        string            `json:"tax"`
	Total      string            `json:"total"`
	CreatedAt  time.Time         `json:"createdAt"`
	ClosedAt   *time.Time        `json:"closedAt,omitempty"`
	Lines      []LineSnapshot    `json:"lines"`
}

func snapshotOf(o *order.Order) Snapshot {
	snap := Snapshot{
		ID:         o.ID,
		LocationID: o.LocationID,
		ServerID:   o.ServerID,
		Status:     o.Status,
		Subtotal:   o.Subtotal.StringFixed(2),
		Discount:   o.Discount.StringFixed(2),
		Tax:        o.Tax.StringFixed(2),
		Total:      o.Total.StringFixed(2),
		CreatedAt:  o.CreatedAt,
		ClosedAt:   o.ClosedAt,
	}
	for _, li := range o.Lines {
		snap.Lines = append(snap.Lines, LineSnapshot{
			ID:             li.ID,
			CatalogItemID:  li.CatalogItemID,
			Name:           li.Name,
			Quantity:       li.Quantity,
			VoidedQuantity: li.VoidedQuantity,
			UnitPrice:      li.UnitPrice.StringFixed(2),
			Subtotal:       li.Subtotal.StringFixed(2),
			Status:         li.Status,
			Voids:          li.Voids,
		})
	}
	return snap
}
