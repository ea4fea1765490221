package billing

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"dinehall-order-engine/internal/money"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentCompleted PaymentStatus = "COMPLETED"
	PaymentFailed    PaymentStatus = "FAILED"
)

var validMethods = map[string]struct{}{
	"CASH":          {},
	"CARD":          {},
	"MOBILE_WALLET": {},
	"HOUSE_ACCOUNT": {},
}

// Payment is an appended, never-deleted capture record. Failed captures are
// marked, not removed. Gratuity is kept apart from the bill portion at all
// times; it never counts toward the order balance.
type Payment struct {
	ID          int64           `json:"id"`
	OrderID     int64           `json:"orderId"`
	Method      string          `json:"method"`
	Amount      decimal.Decimal `json:"amount"`
	Gratuity    decimal.Decimal `json:"gratuity"`
	Status      PaymentStatus   `json:"status"`
	ProviderRef string          `json:"providerRef,omitempty"`
	FailureNote string          `json:"failureNote,omitempty"`
	CapturedAt  time.Time       `json:"capturedAt"`
}

// Summary is the canonical monetary model for an order, recomputed on demand
// rather than cached.
type Summary struct {
	TotalDue   decimal.Decimal `json:"totalDue"`
	TotalPaid  decimal.Decimal `json:"totalPaid"`
	BalanceDue decimal.Decimal `json:"balanceDue"`
	TipTotal   decimal.Decimal `json:"tipTotal"`
}

// Summarize derives the balance model from the tax-inclusive order total and
// the payment history. Only Completed captures count; gratuities are summed
// separately and excluded from the balance equation.
func Summarize(totalDue decimal.Decimal, payments []Payment) Summary {
	paid := money.Zero
	tips := money.Zero
	for _, p := range payments {
		if p.Status != PaymentCompleted {
			continue
		}
		paid = paid.Add(p.Amount)
		tips = tips.Add(p.Gratuity)
	}
	return Summary{
		TotalDue:   totalDue,
		TotalPaid:  paid,
		BalanceDue: totalDue.Sub(paid),
		TipTotal:   tips,
	}
}

// Settled reports whether the balance is cleared. Overpayment is permitted
// and surfaced, not rejected: cash tendering commonly overshoots.
func (s Summary) Settled() bool {
	return s.BalanceDue.Sign() <= 0
}

// SettlementProvider is the external capture collaborator, a black box
// beyond this contract. A failed capture returns an error; the provider
// reference is recorded either way when present.
type SettlementProvider interface {
	Capture(ctx context.Context, method string, amount, gratuity decimal.Decimal) (providerRef string, err error)
}

type CaptureEntry struct {
	Method   string          `json:"method"`
	Amount   decimal.Decimal `json:"amount"`
	Gratuity decimal.Decimal `json:"gratuity"`
}

type CaptureResult struct {
	Payments []Payment `json:"payments"`
	Summary  Summary   `json:"summary"`
	Failed   int       `json:"failed"`
}

// PartialFailure reports whether some but not all entries failed.
func (r CaptureResult) PartialFailure() bool {
	return r.Failed > 0 && r.Failed < len(r.Payments)
}

type ErrorCode string

const ErrCodeValidation ErrorCode = "VALIDATION_ERROR"

type Error struct {
	Code       ErrorCode
	Message    string
	StatusCode int
}

func (e *Error) Error() string {
	return e.Message
}

func validationError(message string) *Error {
	return &Error{Code: ErrCodeValidation, Message: message, StatusCode: http.StatusBadRequest}
}

// ValidateEntries rejects a split request before any provider is invoked.
func ValidateEntries(entries []CaptureEntry) error {
	if len(entries) == 0 {
		return validationError("at least one payment entry is required")
	}
	for _, e := range entries {
		method := strings.ToUpper(strings.TrimSpace(e.Method))
		if _, ok := validMethods[method]; !ok {
			return validationError("unsupported settlement method: " + e.Method)
		}
		if !money.IsPositive(e.Amount) {
			return validationError("payment amount must be positive")
		}
		if money.IsNegative(e.Gratuity) {
			return validationError("gratuity must not be negative")
		}
	}
	return nil
}

// CaptureSplit settles each entry independently through the provider. A
// failure in one entry never rolls back completed siblings; partial success
// is expected and reported, not treated as an error.
func CaptureSplit(ctx context.Context, provider SettlementProvider, orderID int64, totalDue decimal.Decimal, existing []Payment, entries []CaptureEntry, now time.Time) (CaptureResult, error) {
	if err := ValidateEntries(entries); err != nil {
		return CaptureResult{}, err
	}

	result := CaptureResult{}
	for _, e := range entries {
		payment := Payment{
			OrderID:    orderID,
			Method:     strings.ToUpper(strings.TrimSpace(e.Method)),
			Amount:     e.Amount,
			Gratuity:   e.Gratuity,
			Status:     PaymentCompleted,
			CapturedAt: now,
		}
		ref, err := provider.Capture(ctx, payment.Method, e.Amount, e.Gratuity)
		payment.ProviderRef = ref
		if err != nil {
			payment.Status = PaymentFailed
			payment.FailureNote = err.Error()
			result.Failed++
		}
		result.Payments = append(result.Payments, payment)
	}

	all := make([]Payment, 0, len(existing)+len(result.Payments))
	all = append(all, existing...)
	all = append(all, result.Payments...)
	result.Summary = Summarize(totalDue, all)
	return result, nil
}
