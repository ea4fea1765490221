package engine

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"dinehall-order-engine/internal/authority"
	"dinehall-order-engine/internal/ledger"
	"dinehall-order-engine/internal/order"
	"dinehall-order-engine/internal/store"
)

type VoidInput struct {
	OrderID  int64  `json:"orderId"`
	LineID   int64  `json:"lineId"`
	Quantity int32  `json:"quantity"`
	Reason   string `json:"reason"`
	ActorID  int64  `json:"actorId"`
	// CountersignID/CountersignPIN let a senior authorize on a junior's
	// terminal. The PIN is verified against the stored hash; it is never
	// persisted.
	CountersignID  *int64 `json:"countersignId,omitempty"`
	CountersignPIN string `json:"-"`
	Token          string `json:"token"`
}

type VoidResult struct {
	Order Snapshot `json:"order"`
	// WastagePosting is set only for post-preparation voids; a
	// pre-preparation void has no cost to reverse.
	WastagePosting *ledger.Posting `json:"wastagePosting,omitempty"`
	Replayed       bool            `json:"replayed,omitempty"`
}

// VoidLine cancels a quantity of a line item under the authority ladder.
// The authorization check, the state transition and the wastage reversal
// (when preparation had started) commit as one mutation.
func (e *Engine) VoidLine(ctx context.Context, in VoidInput) (*VoidResult, error) {
	token := in.Token
	if token == "" {
		// The wastage source-event is derived from the token, so an
		// untokened call gets a minted one rather than a shared constant.
		token = uuid.NewString()
	}

	var result *VoidResult
	err := e.locks.Do(in.OrderID, func() error {
		if replayed, found, err := replay[VoidResult](ctx, e.Store, token); err != nil {
			return err
		} else if found {
			result = replayed
			return nil
		}

		o, err := e.Store.GetOrder(ctx, in.OrderID)
		if err != nil {
			return err
		}
		line, lerr := o.Line(in.LineID)
		if lerr != nil {
			return lerr
		}

		if err := e.authorizeVoid(ctx, in, line); err != nil {
			return err
		}

		outcome, err := o.VoidLine(order.VoidRequest{
			LineID:        in.LineID,
			Quantity:      in.Quantity,
			Reason:        in.Reason,
			ActorID:       in.ActorID,
			CountersignID: in.CountersignID,
			SourceEventID: token,
			Now:           e.now(),
		}, e.costOf(ctx), e.taxFunc())
		if err != nil {
			return err
		}

		journal := &journalBuffer{store: e.Store}
		var wastage *ledger.Posting
		if outcome.CostImpact {
			wastage, err = ledger.NewPoster(journal).PostWastageReversal(ctx, ledger.WastageFigures{
				OrderID:      o.ID,
				LineID:       in.LineID,
				SourceEvent:  "line-void:" + token,
				Quantity:     in.Quantity,
				CostSnapshot: outcome.UnitCost,
			}, e.now())
			if err != nil {
				return e.logIfImbalance(o.ID, err)
			}
		}

		result = &VoidResult{Order: snapshotOf(o), WastagePosting: wastage}
		mut := store.Mutation{Order: o, NewPostings: journal.buffered}
		if err := stampIdempotency(&mut, token, result); err != nil {
			return err
		}
		if err := e.Store.Apply(ctx, mut); err != nil {
			return err
		}

		e.Logger.Info("line voided",
			zap.Int64("orderId", o.ID),
			zap.Int64("lineId", in.LineID),
			zap.Int32("quantity", in.Quantity),
			zap.Bool("costImpact", outcome.CostImpact),
			zap.String("priorStatus", string(outcome.PriorStatus)))
		e.emit(ctx, "order.line_voided", result)
		if wastage != nil {
			e.emit(ctx, "ledger.posted", wastage)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// authorizeVoid resolves the required tier from the line's current state and
// the void value (quantity x unit price, tax-exclusive), then checks the
// actor, with an optional verified countersign raising the effective tier.
func (e *Engine) authorizeVoid(ctx context.Context, in VoidInput, line *order.LineItem) error {
	voidValue := line.UnitPrice.Mul(decimal.NewFromInt32(in.Quantity))
	required := e.VoidPolicy.RequiredTier(
		line.Status.PreparationStarted(),
		line.Status == order.ItemReady || line.Status == order.ItemServed,
		voidValue,
	)

	actorTier, err := e.Authority.ResolveActorTier(ctx, in.ActorID)
	if err != nil {
		return err
	}
	var countersignTier *authority.Tier
	if in.CountersignID != nil {
		tier, err := authority.VerifyCountersign(ctx, e.Authority, *in.CountersignID, in.CountersignPIN)
		if err != nil {
			return err
		}
		countersignTier = &tier
	}
	return authority.Authorize(actorTier, countersignTier, required)
}
