package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"dinehall-order-engine/internal/money"
)

// Journal is the append-only sink postings are committed to. Exists is the
// replay guard: the same source event is never posted twice.
type Journal interface {
	Append(ctx context.Context, posting *Posting) error
	Exists(ctx context.Context, sourceEvent string) (bool, error)
}

type Poster struct {
	journal Journal
}

func NewPoster(journal Journal) *Poster {
	return &Poster{journal: journal}
}

// SaleFigures carries the fully-computed monetary facts of a close. The
// poster does no monetary derivation of its own beyond the overpayment
// split; everything arrives decided.
type SaleFigures struct {
	OrderID     int64
	SourceEvent string
	// TotalPaid is the sum of completed bill-portion captures. May exceed
	// Net+Tax (cash overshoot); the excess is owed back as change.
	TotalPaid decimal.Decimal
	Net       decimal.Decimal
	Tax       decimal.Decimal
	CostTotal decimal.Decimal
	TipTotal  decimal.Decimal
}

// PostSaleAndCost emits the sale/cost posting for a closed order, plus a
// separate gratuities-liability posting when tips were collected. Tips are
// never mixed into the revenue posting. Idempotent by source event.
func (p *Poster) PostSaleAndCost(ctx context.Context, figures SaleFigures, now time.Time) ([]*Posting, error) {
	exists, err := p.journal.Exists(ctx, figures.SourceEvent)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, nil
	}

	entries := []Entry{
		debit(AccountCashClearing, figures.TotalPaid),
		credit(AccountRevenue, figures.Net),
	}
	if money.IsPositive(figures.Tax) {
		entries = append(entries, credit(AccountTaxPayable, figures.Tax))
	}
	if overpaid := figures.TotalPaid.Sub(figures.Net.Add(figures.Tax)); money.IsPositive(overpaid) {
		// Cash overshoot: the drawer owes change, a liability until tendered.
		entries = append(entries, credit(AccountChangeDue, overpaid))
	}
	if money.IsPositive(figures.CostTotal) {
		entries = append(entries,
			debit(AccountCOGS, figures.CostTotal),
			credit(AccountInventoryAbsorbed, figures.CostTotal),
		)
	}

	sale, err := NewPosting(PostingSale, figures.SourceEvent, figures.OrderID, entries, now)
	if err != nil {
		return nil, err
	}
	postings := []*Posting{sale}

	if money.IsPositive(figures.TipTotal) {
		tip, err := NewPosting(PostingTipLiability, figures.SourceEvent+":tips", figures.OrderID, []Entry{
			debit(AccountCashClearing, figures.TipTotal),
			credit(AccountGratuitiesPayable, figures.TipTotal),
		}, now)
		if err != nil {
			return nil, err
		}
		postings = append(postings, tip)
	}

	for _, posting := range postings {
		if err := p.journal.Append(ctx, posting); err != nil {
			return nil, err
		}
	}
	return postings, nil
}

type WastageFigures struct {
	OrderID      int64
	LineID       int64
	SourceEvent  string
	Quantity     int32
	CostSnapshot decimal.Decimal
}

// PostWastageReversal compensates consumed preparation cost for a
// post-preparation void: debit wastage expense, credit inventory absorbed.
// Replays of the same void are skipped, not double-posted.
func (p *Poster) PostWastageReversal(ctx context.Context, figures WastageFigures, now time.Time) (*Posting, error) {
	exists, err := p.journal.Exists(ctx, figures.SourceEvent)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, nil
	}

	amount := figures.CostSnapshot.Mul(decimal.NewFromInt(int64(figures.Quantity)))
	posting, err := NewPosting(PostingWastage, figures.SourceEvent, figures.OrderID, []Entry{
		debit(AccountWastageExpense, amount),
		credit(AccountInventoryAbsorbed, amount),
	}, now)
	if err != nil {
		return nil, err
	}
	if err := p.journal.Append(ctx, posting); err != nil {
		return nil, err
	}
	return posting, nil
}
