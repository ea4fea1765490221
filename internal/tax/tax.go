package tax

import (
	"github.com/shopspring/decimal"

	"dinehall-order-engine/internal/money"
)

// Calculator is the external tax collaborator: a pure function from net
// amount to tax, no side effects. The resolution algorithm behind it is out
// of scope.
type Calculator interface {
	Compute(net decimal.Decimal) decimal.Decimal
}

// BasisPoints is a flat-rate stand-in calculator (1000 bps = 10%).
type BasisPoints struct {
	Rate int64
}

func (c BasisPoints) Compute(net decimal.Decimal) decimal.Decimal {
	if c.Rate <= 0 || net.Sign() <= 0 {
		return money.Zero
	}
	return money.Round(net.Mul(decimal.New(c.Rate, -4)))
}
