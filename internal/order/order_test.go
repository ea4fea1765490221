package order

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

// tenPercent mirrors the flat calculator used in dev mode.
func tenPercent(net decimal.Decimal) decimal.Decimal {
	return net.Mul(decimal.RequireFromString("0.10"))
}

func twoLineOrder(t *testing.T) *Order {
	t.Helper()
	o, err := New(1, 7, []LineInput{
		{CatalogItemID: 101, Name: "Flat White", Quantity: 2, UnitPrice: decimal.NewFromInt(1000)},
		{CatalogItemID: 102, Name: "Croissant", Quantity: 1, UnitPrice: decimal.NewFromInt(500)},
	}, tenPercent, testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return o
}

func assertTotalsInvariant(t *testing.T, o *Order) {
	t.Helper()
	want := o.Subtotal.Sub(o.Discount).Add(o.Tax)
	if !o.Total.Equal(want) {
		t.Fatalf("total invariant broken: total=%s subtotal=%s discount=%s tax=%s", o.Total, o.Subtotal, o.Discount, o.Tax)
	}
}

func TestNewOrder(t *testing.T) {
	o := twoLineOrder(t)

	if o.Status != StatusNew {
		t.Fatalf("expected NEW, got %s", o.Status)
	}
	for _, li := range o.Lines {
		if li.Status != ItemPending {
			t.Fatalf("expected all items PENDING, got %s", li.Status)
		}
	}
	if o.Subtotal.String() != "2500" {
		t.Fatalf("expected subtotal 2500, got %s", o.Subtotal)
	}
	if o.Tax.String() != "250" {
		t.Fatalf("expected tax 250, got %s", o.Tax)
	}
	if o.Total.String() != "2750" {
		t.Fatalf("expected total 2750, got %s", o.Total)
	}
	assertTotalsInvariant(t, o)
}

func TestNewOrderValidation(t *testing.T) {
	cases := []struct {
		name  string
		lines []LineInput
	}{
		{name: "empty lines", lines: nil},
		{name: "zero quantity", lines: []LineInput{{CatalogItemID: 1, Quantity: 0, UnitPrice: decimal.NewFromInt(100)}}},
		{name: "negative quantity", lines: []LineInput{{CatalogItemID: 1, Quantity: -2, UnitPrice: decimal.NewFromInt(100)}}},
		{name: "negative price", lines: []LineInput{{CatalogItemID: 1, Quantity: 1, UnitPrice: decimal.NewFromInt(-5)}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(1, 7, tc.lines, tenPercent, testNow)
			var oerr *Error
			if !errors.As(err, &oerr) || oerr.Code != ErrCodeValidation {
				t.Fatalf("expected VALIDATION_ERROR, got %v", err)
			}
		})
	}
}

func TestSendToKitchen(t *testing.T) {
	o := twoLineOrder(t)
	if err := o.SendToKitchen(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.Status != StatusSent {
		t.Fatalf("expected SENT, got %s", o.Status)
	}
	for _, li := range o.Lines {
		if li.Status != ItemSent {
			t.Fatalf("expected all items SENT, got %s", li.Status)
		}
	}

	err := o.SendToKitchen()
	var oerr *Error
	if !errors.As(err, &oerr) || oerr.Code != ErrCodeInvalidTransition {
		t.Fatalf("expected INVALID_TRANSITION on resend, got %v", err)
	}
	if oerr.Details["currentStatus"] != string(StatusSent) {
		t.Fatalf("expected currentStatus detail, got %v", oerr.Details)
	}
}

func TestDeriveStatusMinimumProgress(t *testing.T) {
	o := twoLineOrder(t)
	if err := o.SendToKitchen(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// One item races ahead; order stays at the slowest item.
	o.Lines[0].Status = ItemReady
	if got := o.DeriveStatus(); got != StatusSent {
		t.Fatalf("expected SENT, got %s", got)
	}

	o.Lines[1].Status = ItemPreparing
	if got := o.DeriveStatus(); got != StatusPreparing {
		t.Fatalf("expected PREPARING, got %s", got)
	}

	// Voided items carry no progress weight.
	o.Lines[1].Status = ItemVoided
	if got := o.DeriveStatus(); got != StatusReady {
		t.Fatalf("expected READY, got %s", got)
	}

	// All voided forces VOIDED.
	o.Lines[0].Status = ItemVoided
	if got := o.DeriveStatus(); got != StatusVoided {
		t.Fatalf("expected VOIDED, got %s", got)
	}

	// Derivation is idempotent.
	first := o.DeriveStatus()
	if second := o.DeriveStatus(); second != first {
		t.Fatalf("derivation not idempotent: %s then %s", first, second)
	}
}

func TestMarkServed(t *testing.T) {
	o := twoLineOrder(t)
	if err := o.SendToKitchen(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := o.MarkServed()
	var oerr *Error
	if !errors.As(err, &oerr) || oerr.Code != ErrCodeInvalidTransition {
		t.Fatalf("expected INVALID_TRANSITION before ready, got %v", err)
	}

	for _, li := range o.Lines {
		li.Status = ItemReady
	}
	o.ApplyDerivedStatus()
	if err := o.MarkServed(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.Status != StatusServed {
		t.Fatalf("expected SERVED, got %s", o.Status)
	}
}

func TestCloseRequiresServed(t *testing.T) {
	o := twoLineOrder(t)
	err := o.Close(testNow)
	var oerr *Error
	if !errors.As(err, &oerr) || oerr.Code != ErrCodeInvalidTransition {
		t.Fatalf("expected INVALID_TRANSITION, got %v", err)
	}

	for _, li := range o.Lines {
		li.Status = ItemReady
	}
	o.ApplyDerivedStatus()
	if err := o.MarkServed(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := o.Close(testNow); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.Status != StatusClosed || o.ClosedAt == nil {
		t.Fatalf("expected closed with timestamp, got %s", o.Status)
	}
}

func TestCaptureCloseCosts(t *testing.T) {
	o := twoLineOrder(t)
	costs := map[int64]string{101: "400", 102: "150"}
	err := o.CaptureCloseCosts(func(id int64) (decimal.Decimal, error) {
		return decimal.RequireFromString(costs[id]), nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 2 x 400 + 1 x 150
	if got := o.CostTotal().String(); got != "950" {
		t.Fatalf("expected cost total 950, got %s", got)
	}
}
