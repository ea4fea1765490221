package billing

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

var testNow = time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// scriptedProvider fails any method listed in failing.
type scriptedProvider struct {
	failing map[string]string
	calls   int
}

func (p *scriptedProvider) Capture(_ context.Context, method string, _, _ decimal.Decimal) (string, error) {
	p.calls++
	if note, ok := p.failing[method]; ok {
		return "", errors.New(note)
	}
	return "ref-" + strings.ToLower(method), nil
}

func TestSummarize(t *testing.T) {
	payments := []Payment{
		{Amount: dec("1500"), Gratuity: dec("100"), Status: PaymentCompleted},
		{Amount: dec("1000"), Gratuity: dec("0"), Status: PaymentCompleted},
		{Amount: dec("9999"), Gratuity: dec("500"), Status: PaymentFailed},
		{Amount: dec("50"), Status: PaymentPending},
	}

	s := Summarize(dec("2500"), payments)
	if s.TotalPaid.String() != "2500" {
		t.Fatalf("expected totalPaid 2500, got %s", s.TotalPaid)
	}
	if s.TipTotal.String() != "100" {
		t.Fatalf("expected tipTotal 100, got %s", s.TipTotal)
	}
	if !s.BalanceDue.IsZero() {
		t.Fatalf("expected zero balance, got %s", s.BalanceDue)
	}
	if !s.Settled() {
		t.Fatalf("expected settled")
	}

	// totalPaid + balanceDue == totalDue must hold for any history.
	if !s.TotalPaid.Add(s.BalanceDue).Equal(s.TotalDue) {
		t.Fatalf("monetary identity broken: paid=%s balance=%s due=%s", s.TotalPaid, s.BalanceDue, s.TotalDue)
	}
}

func TestSummarizeOverpaymentSurfaced(t *testing.T) {
	s := Summarize(dec("2000"), []Payment{{Amount: dec("2500"), Status: PaymentCompleted}})
	if s.BalanceDue.String() != "-500" {
		t.Fatalf("expected balance -500, got %s", s.BalanceDue)
	}
	if !s.Settled() {
		t.Fatalf("overpaid order must count as settled")
	}
}

func TestValidateEntries(t *testing.T) {
	cases := []struct {
		name    string
		entries []CaptureEntry
	}{
		{name: "empty", entries: nil},
		{name: "unknown method", entries: []CaptureEntry{{Method: "BARTER", Amount: dec("10")}}},
		{name: "zero amount", entries: []CaptureEntry{{Method: "CASH", Amount: dec("0")}}},
		{name: "negative gratuity", entries: []CaptureEntry{{Method: "CASH", Amount: dec("10"), Gratuity: dec("-1")}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateEntries(tc.entries)
			var berr *Error
			if !errors.As(err, &berr) || berr.Code != ErrCodeValidation {
				t.Fatalf("expected VALIDATION_ERROR, got %v", err)
			}
		})
	}
}

func TestCaptureSplit(t *testing.T) {
	provider := &scriptedProvider{}
	result, err := CaptureSplit(context.Background(), provider, 42, dec("2500"), nil, []CaptureEntry{
		{Method: "CASH", Amount: dec("1500"), Gratuity: dec("100")},
		{Method: "CARD", Amount: dec("1000")},
	}, testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Failed != 0 {
		t.Fatalf("expected no failures, got %d", result.Failed)
	}
	if result.Summary.TotalPaid.String() != "2500" || result.Summary.TipTotal.String() != "100" {
		t.Fatalf("unexpected summary: %+v", result.Summary)
	}
	if !result.Summary.BalanceDue.IsZero() {
		t.Fatalf("expected zero balance, got %s", result.Summary.BalanceDue)
	}
	if result.Payments[0].ProviderRef != "ref-cash" {
		t.Fatalf("provider ref not recorded: %+v", result.Payments[0])
	}
}

func TestCaptureSplitPartialFailure(t *testing.T) {
	provider := &scriptedProvider{failing: map[string]string{"CARD": "issuer declined"}}
	result, err := CaptureSplit(context.Background(), provider, 42, dec("2500"), nil, []CaptureEntry{
		{Method: "CASH", Amount: dec("1500")},
		{Method: "CARD", Amount: dec("1000")},
	}, testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Failed != 1 || !result.PartialFailure() {
		t.Fatalf("expected one failed entry, got %+v", result)
	}

	// The cash capture stands; only the card entry is marked failed.
	if result.Payments[0].Status != PaymentCompleted {
		t.Fatalf("sibling capture must not be rolled back")
	}
	if result.Payments[1].Status != PaymentFailed || result.Payments[1].FailureNote != "issuer declined" {
		t.Fatalf("failure not recorded: %+v", result.Payments[1])
	}
	if result.Summary.TotalPaid.String() != "1500" {
		t.Fatalf("expected totalPaid 1500, got %s", result.Summary.TotalPaid)
	}
	if result.Summary.BalanceDue.String() != "1000" {
		t.Fatalf("expected balance 1000, got %s", result.Summary.BalanceDue)
	}
}

func TestCaptureSplitExistingPaymentsCount(t *testing.T) {
	provider := &scriptedProvider{}
	existing := []Payment{{Amount: dec("1000"), Status: PaymentCompleted}}
	result, err := CaptureSplit(context.Background(), provider, 42, dec("2500"), existing, []CaptureEntry{
		{Method: "CASH", Amount: dec("1500")},
	}, testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Summary.BalanceDue.IsZero() {
		t.Fatalf("expected zero balance, got %s", result.Summary.BalanceDue)
	}
}

func TestCaptureSplitValidationStopsBeforeProvider(t *testing.T) {
	provider := &scriptedProvider{}
	_, err := CaptureSplit(context.Background(), provider, 42, dec("2500"), nil, []CaptureEntry{
		{Method: "CASH", Amount: dec("-5")},
	}, testNow)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if provider.calls != 0 {
		t.Fatalf("provider must not be invoked on invalid input")
	}
}
