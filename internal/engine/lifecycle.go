package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"dinehall-order-engine/internal/billing"
	"dinehall-order-engine/internal/kitchen"
	"dinehall-order-engine/internal/ledger"
	"dinehall-order-engine/internal/order"
	"dinehall-order-engine/internal/store"
)

type CreateLineInput struct {
	CatalogItemID int64 `json:"catalogItemId"`
	Quantity      int32 `json:"quantity"`
}

type CreateOrderInput struct {
	LocationID int64             `json:"locationId"`
	ServerID   int64             `json:"serverId"`
	Lines      []CreateLineInput `json:"lines"`
}

// CreateOrder prices the requested items from the catalog and opens a new
// order with every item Pending. Nothing reaches the kitchen or the ledger.
func (e *Engine) CreateOrder(ctx context.Context, in CreateOrderInput) (*Snapshot, error) {
	var lines []order.LineInput
	for _, li := range in.Lines {
		price, err := e.Prices.UnitPrice(ctx, li.CatalogItemID)
		if err != nil {
			return nil, err
		}
		name, err := e.Prices.ItemName(ctx, li.CatalogItemID)
		if err != nil {
			return nil, err
		}
		lines = append(lines, order.LineInput{
			CatalogItemID: li.CatalogItemID,
			Name:          name,
			Quantity:      li.Quantity,
			UnitPrice:     price,
		})
	}

	o, err := order.New(in.LocationID, in.ServerID, lines, e.taxFunc(), e.now())
	if err != nil {
		return nil, err
	}
	if err := e.Store.CreateOrder(ctx, o); err != nil {
		return nil, err
	}

	snap := snapshotOf(o)
	e.Logger.Info("order created",
		zap.Int64("orderId", o.ID),
		zap.Int64("locationId", o.LocationID),
		zap.String("total", snap.Total))
	e.emit(ctx, "order.created", snap)
	return &snap, nil
}

type SendResult struct {
	Ticket   *kitchen.Ticket `json:"ticket"`
	Order    Snapshot        `json:"order"`
	Replayed bool            `json:"replayed,omitempty"`
}

// SendToKitchen fires the order to the kitchen display: Pending items become
// Sent and one ticket covering them is cut.
func (e *Engine) SendToKitchen(ctx context.Context, orderID int64, token string) (*SendResult, error) {
	var result *SendResult
	err := e.locks.Do(orderID, func() error {
		if replayed, found, err := replay[SendResult](ctx, e.Store, token); err != nil {
			return err
		} else if found {
			result = replayed
			return nil
		}

		o, err := e.Store.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if err := o.SendToKitchen(); err != nil {
			return err
		}

		var lineIDs []int64
		for _, li := range o.Lines {
			if li.Status == order.ItemSent {
				lineIDs = append(lineIDs, li.ID)
			}
		}
		ticket := kitchen.NewTicket(o.ID, o.LocationID, lineIDs, e.now())

		result = &SendResult{Ticket: ticket, Order: snapshotOf(o)}
		mut := store.Mutation{Order: o, NewTickets: []*kitchen.Ticket{ticket}}
		if err := stampIdempotency(&mut, token, result); err != nil {
			return err
		}
		if err := e.Store.Apply(ctx, mut); err != nil {
			return err
		}

		e.Logger.Info("order sent to kitchen",
			zap.Int64("orderId", o.ID),
			zap.String("ticketId", ticket.ID.String()))
		e.emit(ctx, "order.sent", result)
		return nil
	})
	return result, err
}

// MarkServed records handoff to the table. Valid only once every non-voided
// item is Ready.
func (e *Engine) MarkServed(ctx context.Context, orderID int64) (*Snapshot, error) {
	var snap Snapshot
	err := e.locks.Do(orderID, func() error {
		o, err := e.Store.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if err := o.MarkServed(); err != nil {
			return err
		}
		if err := e.Store.Apply(ctx, store.Mutation{Order: o}); err != nil {
			return err
		}
		snap = snapshotOf(o)
		e.Logger.Info("order served", zap.Int64("orderId", o.ID))
		e.emit(ctx, "order.served", snap)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

type CloseResult struct {
	Order    Snapshot          `json:"order"`
	Summary  billing.Summary   `json:"summary"`
	Postings []*ledger.Posting `json:"postings"`
	Replayed bool              `json:"replayed,omitempty"`
}

// CloseOrder finalizes a served, settled order. The balance is re-validated
// inside the exclusive scope so a void racing the close cannot slip between
// check and commit. Cost snapshots are captured and the sale/cost posting is
// committed atomically with the status change.
func (e *Engine) CloseOrder(ctx context.Context, orderID int64, token string) (*CloseResult, error) {
	var result *CloseResult
	err := e.locks.Do(orderID, func() error {
		if replayed, found, err := replay[CloseResult](ctx, e.Store, token); err != nil {
			return err
		} else if found {
			result = replayed
			return nil
		}

		o, err := e.Store.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		payments, err := e.Store.ListPayments(ctx, orderID)
		if err != nil {
			return err
		}

		summary := billing.Summarize(o.Total, payments)
		if !summary.Settled() {
			return &order.Error{
				Code:       order.ErrCodeUnderpaidClose,
				Message:    "order balance is not settled",
				StatusCode: http.StatusConflict,
				Details: map[string]any{
					"balanceDue": summary.BalanceDue.StringFixed(2),
				},
			}
		}

		if err := o.CaptureCloseCosts(e.costOf(ctx)); err != nil {
			return err
		}
		if err := o.Close(e.now()); err != nil {
			return err
		}

		journal := &journalBuffer{store: e.Store}
		postings, err := ledger.NewPoster(journal).PostSaleAndCost(ctx, ledger.SaleFigures{
			OrderID:     o.ID,
			SourceEvent: fmt.Sprintf("order-close:%d", o.ID),
			TotalPaid:   summary.TotalPaid,
			Net:         o.Subtotal.Sub(o.Discount),
			Tax:         o.Tax,
			CostTotal:   o.CostTotal(),
			TipTotal:    summary.TipTotal,
		}, e.now())
		if err != nil {
			return e.logIfImbalance(o.ID, err)
		}

		result = &CloseResult{Order: snapshotOf(o), Summary: summary, Postings: postings}
		mut := store.Mutation{Order: o, NewPostings: journal.buffered}
		if err := stampIdempotency(&mut, token, result); err != nil {
			return err
		}
		if err := e.Store.Apply(ctx, mut); err != nil {
			return err
		}

		e.Logger.Info("order closed",
			zap.Int64("orderId", o.ID),
			zap.String("totalPaid", summary.TotalPaid.StringFixed(2)),
			zap.Int("postings", len(postings)))
		e.emit(ctx, "order.closed", result)
		for _, p := range postings {
			e.emit(ctx, "ledger.posted", p)
		}
		return nil
	})
	return result, err
}

// GetOrder returns a point-in-time snapshot.
func (e *Engine) GetOrder(ctx context.Context, orderID int64) (*Snapshot, error) {
	o, err := e.Store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	snap := snapshotOf(o)
	return &snap, nil
}

// logIfImbalance records an unbalanced posting as a defect before the error
// aborts the operation.
func (e *Engine) logIfImbalance(orderID int64, err error) error {
	var imbalance *ledger.ImbalanceError
	if errors.As(err, &imbalance) {
		e.Logger.Error("ledger imbalance defect",
			zap.Int64("orderId", orderID),
			zap.Error(err))
	}
	return err
}

func (e *Engine) costOf(ctx context.Context) func(catalogItemID int64) (decimal.Decimal, error) {
	return func(catalogItemID int64) (decimal.Decimal, error) {
		return e.Prices.UnitCost(ctx, catalogItemID)
	}
}

// replay answers a previously-committed token from the stored result.
func replay[T any](ctx context.Context, s store.Store, token string) (*T, bool, error) {
	if token == "" {
		return nil, false, nil
	}
	raw, found, err := s.GetIdempotentResult(ctx, token)
	if err != nil || !found {
		return nil, false, err
	}
	var result T
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, false, fmt.Errorf("decode idempotent result for token %q: %w", token, err)
	}
	markReplayed(&result)
	return &result, true, nil
}

func stampIdempotency(mut *store.Mutation, token string, result any) error {
	if token == "" {
		return nil
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return err
	}
	mut.IdempotencyToken = token
	mut.IdempotencyResult = raw
	return nil
}

func markReplayed(result any) {
	switch r := result.(type) {
	case *SendResult:
		r.Replayed = true
	case *CloseResult:
		r.Replayed = true
	case *VoidResult:
		r.Replayed = true
	case *PaymentResult:
		r.Replayed = true
	case *KitchenResult:
		r.Replayed = true
	}
}
