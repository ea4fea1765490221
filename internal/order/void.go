package order

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

type VoidRequest struct {
	LineID        int64
	Quantity      int32
	Reason        string
	ActorID       int64
	CountersignID *int64
	SourceEventID string
	Now           time.Time
}

type VoidOutcome struct {
	Line        *LineItem
	PriorStatus ItemStatus
	// CostImpact is set when preparation had started: the voided portion
	// consumed kitchen resources and must be reversed as wastage.
	CostImpact  bool
	UnitCost    decimal.Decimal
	WastageCost decimal.Decimal
}

// VoidLine cancels a quantity of a line item. Pre-preparation voids only
// reduce the effective quantity; post-preparation voids also report the
// wastage cost for the ledger reversal. costOf is consulted only on the
// post-preparation branch, at void time (a value, not a reference).
//
// Authorization is the engine's concern; this is pure state transition.
func (o *Order) VoidLine(req VoidRequest, costOf func(catalogItemID int64) (decimal.Decimal, error), taxOf TaxFunc) (*VoidOutcome, error) {
	if o.Status.Terminal() {
		return nil, invalidTransition("cannot void on a closed or voided order", o.Status)
	}
	if req.Quantity <= 0 {
		return nil, validationError("void quantity must be positive")
	}

	line, lerr := o.Line(req.LineID)
	if lerr != nil {
		return nil, lerr
	}
	if req.Quantity > line.RemainingQuantity() {
		return nil, newError(ErrCodeVoidExceedsRemain, "void quantity exceeds remaining quantity", http.StatusUnprocessableEntity, map[string]any{
			"lineId":    line.ID,
			"remaining": line.RemainingQuantity(),
			"requested": req.Quantity,
		})
	}

	outcome := &VoidOutcome{
		Line:        line,
		PriorStatus: line.Status,
		CostImpact:  line.Status.PreparationStarted(),
	}
	if outcome.CostImpact {
		cost, err := costOf(line.CatalogItemID)
		if err != nil {
			return nil, err
		}
		outcome.UnitCost = cost
		outcome.WastageCost = cost.Mul(decimal.NewFromInt(int64(req.Quantity)))
	}

	line.VoidedQuantity += req.Quantity
	line.Voids = append(line.Voids, VoidRecord{
		Quantity:      req.Quantity,
		Reason:        req.Reason,
		ActorID:       req.ActorID,
		CountersignID: req.CountersignID,
		CostImpact:    outcome.CostImpact,
		UnitCost:      outcome.UnitCost,
		PriorStatus:   outcome.PriorStatus,
		VoidedAt:      req.Now,
		SourceEventID: req.SourceEventID,
	})
	if line.FullyVoided() {
		// Partial voids leave the remainder in its prior status; a full
		// void is terminal for the line.
		line.Status = ItemVoided
	}

	o.Recompute(taxOf)
	o.ApplyDerivedStatus()
	return outcome, nil
}
