package order

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"dinehall-order-engine/internal/money"
)

// VoidRecord captures the metadata of one (possibly partial) line void.
// Records are append-only; a line may accumulate several.
type VoidRecord struct {
	Quantity      int32           `json:"quantity"`
	Reason        string          `json:"reason"`
	ActorID       int64           `json:"actorId"`
	CountersignID *int64          `json:"countersignId,omitempty"`
	CostImpact    bool            `json:"costImpact"`
	UnitCost      decimal.Decimal `json:"unitCost"`
	PriorStatus   ItemStatus      `json:"priorStatus"`
	VoidedAt      time.Time       `json:"voidedAt"`
	SourceEventID string          `json:"sourceEventId"`
}

type LineItem struct {
	ID             int64
	CatalogItemID  int64
	Name           string
	Quantity       int32
	VoidedQuantity int32
	UnitPrice      decimal.Decimal
	Subtotal       decimal.Decimal
	Status         ItemStatus
	// UnitCost is snapshotted from the catalog at close time (or void time
	// for the voided portion), never at creation, so cost fluctuations
	// before close are reflected.
	UnitCost     decimal.Decimal
	CostCaptured bool
	Voids        []VoidRecord
}

func (li *LineItem) RemainingQuantity() int32 {
	return li.Quantity - li.VoidedQuantity
}

func (li *LineItem) FullyVoided() bool {
	return li.RemainingQuantity() <= 0
}

type Order struct {
	ID         int64
	LocationID int64
	ServerID   int64
	Lines      []*LineItem
	Subtotal   decimal.Decimal
	Discount   decimal.Decimal
	Tax        decimal.Decimal
	Total      decimal.Decimal
	Status     OrderStatus
	CreatedAt  time.Time
	ClosedAt   *time.Time
}

type LineInput struct {
	CatalogItemID int64
	Name          string
	Quantity      int32
	UnitPrice     decimal.Decimal
}

// TaxFunc computes tax for a net (post-discount) amount. The engine supplies
// the external tax collaborator here; the order never owns a rate.
type TaxFunc func(net decimal.Decimal) decimal.Decimal

// New builds an order with all items Pending and status New. No monetary or
// ledger side effects beyond the initial total computation.
func New(locationID, serverID int64, lines []LineInput, taxOf TaxFunc, now time.Time) (*Order, error) {
	if len(lines) == 0 {
		return nil, validationError("order requires at least one line item")
	}

	o := &Order{
		LocationID: locationID,
		ServerID:   serverID,
		Status:     StatusNew,
		CreatedAt:  now,
		Discount:   money.Zero,
	}
	for i, in := range lines {
		if in.Quantity <= 0 {
			return nil, validationError("line quantity must be positive")
		}
		if money.IsNegative(in.UnitPrice) {
			return nil, validationError("line unit price must not be negative")
		}
		o.Lines = append(o.Lines, &LineItem{
			ID:            int64(i + 1),
			CatalogItemID: in.CatalogItemID,
			Name:          in.Name,
			Quantity:      in.Quantity,
			UnitPrice:     in.UnitPrice,
			Status:        ItemPending,
		})
	}
	o.Recompute(taxOf)
	return o, nil
}

func (o *Order) Line(lineID int64) (*LineItem, *Error) {
	for _, li := range o.Lines {
		if li.ID == lineID {
			return li, nil
		}
	}
	return nil, newError(ErrCodeLineNotFound, "line item not found on this order", http.StatusNotFound, map[string]any{
		"lineId": lineID,
	})
}

// Recompute rebuilds subtotal, tax and total from the line items. Total is
// always subtotal - discount + tax; it is never mutated independently.
func (o *Order) Recompute(taxOf TaxFunc) {
	subtotal := money.Zero
	for _, li := range o.Lines {
		li.Subtotal = li.UnitPrice.Mul(decimal.NewFromInt(int64(li.RemainingQuantity())))
		subtotal = subtotal.Add(li.Subtotal)
	}
	o.Subtotal = subtotal
	net := subtotal.Sub(o.Discount)
	if taxOf != nil {
		o.Tax = money.Round(taxOf(net))
	} else {
		o.Tax = money.Zero
	}
	o.Total = net.Add(o.Tax)
}

// SendToKitchen is valid only from New. All Pending items move to Sent.
func (o *Order) SendToKitchen() error {
	if o.Status != StatusNew {
		return invalidTransition("order has already been sent or finalized", o.Status)
	}
	for _, li := range o.Lines {
		if li.Status == ItemPending {
			li.Status = ItemSent
		}
	}
	o.ApplyDerivedStatus()
	return nil
}

// DeriveStatus computes order status as the minimum progress across all
// non-voided items. All items voided forces Voided. Pure and idempotent;
// does not write.
func (o *Order) DeriveStatus() OrderStatus {
	if o.Status.Terminal() {
		return o.Status
	}
	min := -1
	for _, li := range o.Lines {
		if li.Status == ItemVoided {
			continue
		}
		p := itemProgress[li.Status]
		if min == -1 || p < min {
			min = p
		}
	}
	if min == -1 {
		return StatusVoided
	}
	return progressStatus[min]
}

// ApplyDerivedStatus writes the derived value. Called after every item
// mutation so the order can never drift from its items.
func (o *Order) ApplyDerivedStatus() {
	o.Status = o.DeriveStatus()
}

// MarkServed requires every non-voided item to be Ready. This is the only
// path into Served.
func (o *Order) MarkServed() error {
	if o.Status.Terminal() {
		return invalidTransition("order is already finalized", o.Status)
	}
	remaining := 0
	for _, li := range o.Lines {
		if li.Status == ItemVoided {
			continue
		}
		remaining++
		if li.Status != ItemReady {
			return invalidTransition("all items must be ready before serving", o.Status)
		}
	}
	if remaining == 0 {
		return invalidTransition("order has no servable items", o.Status)
	}
	for _, li := range o.Lines {
		if li.Status == ItemReady {
			li.Status = ItemServed
		}
	}
	o.ApplyDerivedStatus()
	return nil
}

// Close finalizes a fully served order. The caller (engine) verifies the
// balance under the same exclusive scope before calling this.
func (o *Order) Close(now time.Time) error {
	if o.Status != StatusServed {
		return invalidTransition("only a served order can be closed", o.Status)
	}
	o.Status = StatusClosed
	closed := now
	o.ClosedAt = &closed
	return nil
}

// CaptureCloseCosts snapshots the per-unit cost for every line that still
// contributes quantity, using the supplied lookup. Costs are values, not
// references: later catalog changes never touch a closed order.
func (o *Order) CaptureCloseCosts(costOf func(catalogItemID int64) (decimal.Decimal, error)) error {
	for _, li := range o.Lines {
		if li.FullyVoided() || li.CostCaptured {
			continue
		}
		cost, err := costOf(li.CatalogItemID)
		if err != nil {
			return err
		}
		li.UnitCost = cost
		li.CostCaptured = true
	}
	return nil
}

// Clone deep-copies the order so a reader holding a snapshot is isolated
// from mutations committed after the read returns.
func (o *Order) Clone() *Order {
	dup := *o
	if o.ClosedAt != nil {
		closed := *o.ClosedAt
		dup.ClosedAt = &closed
	}
	dup.Lines = make([]*LineItem, len(o.Lines))
	for i, li := range o.Lines {
		line := *li
		line.Voids = append([]VoidRecord(nil), li.Voids...)
		dup.Lines[i] = &line
	}
	return &dup
}

// CostTotal sums remaining quantity x captured unit cost across lines.
func (o *Order) CostTotal() decimal.Decimal {
	total := money.Zero
	for _, li := range o.Lines {
		if !li.CostCaptured || li.FullyVoided() {
			continue
		}
		total = total.Add(li.UnitCost.Mul(decimal.NewFromInt(int64(li.RemainingQuantity()))))
	}
	return total
}
