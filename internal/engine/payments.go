package engine

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"dinehall-order-engine/internal/billing"
	"dinehall-order-engine/internal/ledger"
	"dinehall-order-engine/internal/order"
	"dinehall-order-engine/internal/store"
)

type PaymentInput struct {
	OrderID int64                  `json:"orderId"`
	Entries []billing.CaptureEntry `json:"entries"`
	Token   string                 `json:"token"`
}

type PaymentResult struct {
	Result   billing.CaptureResult `json:"result"`
	Replayed bool                  `json:"replayed,omitempty"`
}

// CaptureSplitPayment settles a batch of payment entries against the order.
// Entries settle independently: one failed capture marks that payment Failed
// and leaves completed siblings standing. The response carries the updated
// balance so the terminal can immediately show what remains.
func (e *Engine) CaptureSplitPayment(ctx context.Context, in PaymentInput) (*PaymentResult, error) {
	var result *PaymentResult
	err := e.locks.Do(in.OrderID, func() error {
		if replayed, found, err := replay[PaymentResult](ctx, e.Store, in.Token); err != nil {
			return err
		} else if found {
			result = replayed
			return nil
		}

		o, err := e.Store.GetOrder(ctx, in.OrderID)
		if err != nil {
			return err
		}
		if o.Status.Terminal() {
			return &order.Error{
				Code:       order.ErrCodeInvalidTransition,
				Message:    "cannot capture payments on a closed or voided order",
				StatusCode: http.StatusConflict,
				Details:    map[string]any{"currentStatus": string(o.Status)},
			}
		}

		existing, err := e.Store.ListPayments(ctx, in.OrderID)
		if err != nil {
			return err
		}
		captured, err := billing.CaptureSplit(ctx, e.Provider, o.ID, o.Total, existing, in.Entries, e.now())
		if err != nil {
			return err
		}

		result = &PaymentResult{Result: captured}
		mut := store.Mutation{NewPayments: captured.Payments}
		if err := stampIdempotency(&mut, in.Token, result); err != nil {
			return err
		}
		if err := e.Store.Apply(ctx, mut); err != nil {
			return err
		}

		e.Logger.Info("split payment captured",
			zap.Int64("orderId", o.ID),
			zap.Int("entries", len(captured.Payments)),
			zap.Int("failed", captured.Failed),
			zap.String("balanceDue", captured.Summary.BalanceDue.StringFixed(2)))
		e.emit(ctx, "payment.captured", result)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetBalanceSummary recomputes the balance model from the order total and
// the full payment history.
func (e *Engine) GetBalanceSummary(ctx context.Context, orderID int64) (*billing.Summary, error) {
	o, err := e.Store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	payments, err := e.Store.ListPayments(ctx, orderID)
	if err != nil {
		return nil, err
	}
	summary := billing.Summarize(o.Total, payments)
	return &summary, nil
}

// ListPayments returns the append-only capture history for an order.
func (e *Engine) ListPayments(ctx context.Context, orderID int64) ([]billing.Payment, error) {
	return e.Store.ListPayments(ctx, orderID)
}

// ListPostings returns the ledger postings an order has produced.
func (e *Engine) ListPostings(ctx context.Context, orderID int64) ([]*ledger.Posting, error) {
	return e.Store.ListPostings(ctx, orderID)
}
