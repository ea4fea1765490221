package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"dinehall-order-engine/internal/money"
)

// Account is a logical account code. Mapping to a real chart of accounts
// belongs to the downstream ledger-reporting system.
type Account string

const (
	AccountCashClearing      Account = "1010_CASH_CLEARING"
	AccountInventoryAbsorbed Account = "1300_INVENTORY_ABSORBED"
	AccountChangeDue         Account = "2100_CHANGE_DUE"
	AccountTaxPayable        Account = "2200_TAX_PAYABLE"
	AccountGratuitiesPayable Account = "2300_GRATUITIES_PAYABLE"
	AccountRevenue           Account = "4000_FOOD_REVENUE"
	AccountCOGS              Account = "5000_COST_OF_GOODS"
	AccountWastageExpense    Account = "5100_WASTAGE_EXPENSE"
)

type PostingKind string

const (
	PostingSale         PostingKind = "SALE"
	PostingTipLiability PostingKind = "TIP_LIABILITY"
	PostingWastage      PostingKind = "WASTAGE_REVERSAL"
)

type Entry struct {
	Account Account         `json:"account"`
	Debit   decimal.Decimal `json:"debit"`
	Credit  decimal.Decimal `json:"credit"`
}

// Posting is a balanced set of debit/credit entries. Immutable once
// committed; corrections are compensating postings, never edits.
type Posting struct {
	ID uuid.UUID `json:"id"`
	// SourceEvent identifies the economic event that produced this
	// posting. Replays of the same event are detected here and skipped
	// rather than double-posted.
	SourceEvent string      `json:"sourceEvent"`
	Kind        PostingKind `json:"kind"`
	OrderID     int64       `json:"orderId"`
	Entries     []Entry     `json:"entries"`
	PostedAt    time.Time   `json:"postedAt"`
}

// ImbalanceError is a programming-error class failure: totals were computed
// wrong somewhere upstream. It aborts the whole operation; nothing commits.
type ImbalanceError struct {
	Kind        PostingKind
	SourceEvent string
	DebitSum    decimal.Decimal
	CreditSum   decimal.Decimal
}

func (e *ImbalanceError) Error() string {
	return fmt.Sprintf("ledger imbalance in %s posting (source %s): debits %s != credits %s",
		e.Kind, e.SourceEvent, e.DebitSum, e.CreditSum)
}

func debit(account Account, amount decimal.Decimal) Entry {
	return Entry{Account: account, Debit: amount, Credit: money.Zero}
}

func credit(account Account, amount decimal.Decimal) Entry {
	return Entry{Account: account, Debit: money.Zero, Credit: amount}
}

// NewPosting validates debit/credit balance before the posting exists at
// all; an unbalanced set of entries never becomes a Posting.
func NewPosting(kind PostingKind, sourceEvent string, orderID int64, entries []Entry, now time.Time) (*Posting, error) {
	debits := money.Zero
	credits := money.Zero
	for _, e := range entries {
		if money.IsNegative(e.Debit) || money.IsNegative(e.Credit) {
			return nil, &ImbalanceError{Kind: kind, SourceEvent: sourceEvent, DebitSum: debits, CreditSum: credits}
		}
		debits = debits.Add(e.Debit)
		credits = credits.Add(e.Credit)
	}
	if !debits.Equal(credits) {
		return nil, &ImbalanceError{Kind: kind, SourceEvent: sourceEvent, DebitSum: debits, CreditSum: credits}
	}
	return &Posting{
		ID:          uuid.New(),
		SourceEvent: sourceEvent,
		Kind:        kind,
		OrderID:     orderID,
		Entries:     entries,
		PostedAt:    now,
	}, nil
}

// Balanced re-checks an existing posting, for storage-layer validation.
func (p *Posting) Balanced() bool {
	debits := money.Zero
	credits := money.Zero
	for _, e := range p.Entries {
		debits = debits.Add(e.Debit)
		credits = credits.Add(e.Credit)
	}
	return debits.Equal(credits)
}
