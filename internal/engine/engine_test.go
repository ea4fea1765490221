package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"dinehall-order-engine/internal/authority"
	"dinehall-order-engine/internal/billing"
	"dinehall-order-engine/internal/catalog"
	"dinehall-order-engine/internal/kitchen"
	"dinehall-order-engine/internal/ledger"
	"dinehall-order-engine/internal/order"
	"dinehall-order-engine/internal/store"
	"dinehall-order-engine/internal/tax"
)

const (
	itemBurger = int64(1)
	itemFries  = int64(2)

	actorServer     = int64(10)
	actorSupervisor = int64(20)
	actorManager    = int64(30)
)

type scriptedProvider struct {
	failMethods map[string]string
}

func (p *scriptedProvider) Capture(_ context.Context, method string, _, _ decimal.Decimal) (string, error) {
	if note, ok := p.failMethods[method]; ok {
		return "", errors.New(note)
	}
	return "ref-" + method, nil
}

type capturedEvent struct {
	key     string
	payload any
}

type captureSink struct {
	events []capturedEvent
}

func (s *captureSink) Emit(_ context.Context, routingKey string, payload any) {
	s.events = append(s.events, capturedEvent{key: routingKey, payload: payload})
}

func newTestEngine(t *testing.T, provider billing.SettlementProvider) (*Engine, *captureSink) {
	t.Helper()
	if provider == nil {
		provider = &scriptedProvider{}
	}
	pin, err := bcrypt.GenerateFromPassword([]byte("4821"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash pin: %v", err)
	}
	sink := &captureSink{}
	eng := New(Deps{
		Store: store.NewMemory(),
		Prices: &catalog.StaticBook{Items: map[int64]catalog.StaticItem{
			itemBurger: {Name: "Burger", Price: decimal.NewFromInt(10), Cost: decimal.NewFromInt(4)},
			itemFries:  {Name: "Fries", Price: decimal.NewFromInt(5), Cost: decimal.RequireFromString("1.50")},
		}},
		Tax:      tax.BasisPoints{Rate: 1000},
		Provider: provider,
		Authority: &authority.StaticResolver{
			Tiers: map[int64]authority.Tier{
				actorServer:     authority.TierServer,
				actorSupervisor: authority.TierSupervisor,
				actorManager:    authority.TierManager,
			},
			PinHash: map[int64]string{actorManager: string(pin)},
		},
		VoidPolicy: authority.VoidPolicy{SeniorThreshold: decimal.NewFromInt(50)},
		Sink:       sink,
		Logger:     zap.NewNop(),
	})
	return eng, sink
}

// createOrder opens the standard fixture: 2x Burger + 1x Fries,
// subtotal 25.00, tax 2.50, total 27.50.
func createOrder(t *testing.T, eng *Engine) int64 {
	t.Helper()
	snap, err := eng.CreateOrder(context.Background(), CreateOrderInput{
		LocationID: 1,
		ServerID:   actorServer,
		Lines: []CreateLineInput{
			{CatalogItemID: itemBurger, Quantity: 2},
			{CatalogItemID: itemFries, Quantity: 1},
		},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if snap.Total != "27.50" {
		t.Fatalf("expected total 27.50, got %s", snap.Total)
	}
	return snap.ID
}

func sendAndPrepare(t *testing.T, eng *Engine, orderID int64) *kitchen.Ticket {
	t.Helper()
	sent, err := eng.SendToKitchen(context.Background(), orderID, "send-1")
	if err != nil {
		t.Fatalf("send to kitchen: %v", err)
	}
	if _, err := eng.ApplyKitchenEvent(context.Background(), KitchenEventInput{
		TicketID: sent.Ticket.ID, Type: kitchen.EventAccepted, Token: "accept-1", StationID: "grill",
	}); err != nil {
		t.Fatalf("accept: %v", err)
	}
	return sent.Ticket
}

func serveOrder(t *testing.T, eng *Engine, orderID int64, ticket *kitchen.Ticket) {
	t.Helper()
	if _, err := eng.ApplyKitchenEvent(context.Background(), KitchenEventInput{
		TicketID: ticket.ID, Type: kitchen.EventReady, Token: "ready-1", StationID: "grill",
	}); err != nil {
		t.Fatalf("ready: %v", err)
	}
	if _, err := eng.MarkServed(context.Background(), orderID); err != nil {
		t.Fatalf("serve: %v", err)
	}
}

func TestFullLifecycleWithSplitPaymentAndClose(t *testing.T) {
	eng, sink := newTestEngine(t, nil)
	orderID := createOrder(t, eng)
	ticket := sendAndPrepare(t, eng, orderID)
	serveOrder(t, eng, orderID, ticket)

	pay, err := eng.CaptureSplitPayment(context.Background(), PaymentInput{
		OrderID: orderID,
		Token:   "pay-1",
		Entries: []billing.CaptureEntry{
			{Method: "CASH", Amount: decimal.RequireFromString("15.00"), Gratuity: decimal.RequireFromString("2.00")},
			{Method: "CARD", Amount: decimal.RequireFromString("12.50"), Gratuity: decimal.RequireFromString("3.00")},
		},
	})
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if !pay.Result.Summary.Settled() {
		t.Fatalf("expected settled, balance %s", pay.Result.Summary.BalanceDue)
	}
	if pay.Result.Summary.TipTotal.StringFixed(2) != "5.00" {
		t.Fatalf("expected tip total 5.00, got %s", pay.Result.Summary.TipTotal)
	}

	closed, err := eng.CloseOrder(context.Background(), orderID, "close-1")
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if closed.Order.Status != order.StatusClosed {
		t.Fatalf("expected CLOSED, got %s", closed.Order.Status)
	}
	if len(closed.Postings) != 2 {
		t.Fatalf("expected sale + tip postings, got %d", len(closed.Postings))
	}
	for _, p := range closed.Postings {
		if !p.Balanced() {
			t.Fatalf("posting %s is unbalanced", p.Kind)
		}
	}

	sale := closed.Postings[0]
	wantCredits := map[ledger.Account]string{
		ledger.AccountRevenue:           "25.00",
		ledger.AccountTaxPayable:        "2.50",
		ledger.AccountInventoryAbsorbed: "9.50",
	}
	for _, entry := range sale.Entries {
		if want, ok := wantCredits[entry.Account]; ok && entry.Credit.StringFixed(2) != want {
			t.Fatalf("account %s: expected credit %s, got %s", entry.Account, want, entry.Credit)
		}
		if entry.Account == ledger.AccountGratuitiesPayable {
			t.Fatal("gratuities must not appear in the sale posting")
		}
	}

	var sawClosed, sawPosted bool
	for _, ev := range sink.events {
		switch ev.key {
		case "order.closed":
			sawClosed = true
		case "ledger.posted":
			sawPosted = true
		}
	}
	if !sawClosed || !sawPosted {
		t.Fatalf("expected order.closed and ledger.posted events, got %+v", sink.events)
	}
}

func TestPrePreparationVoidHasNoCostImpact(t *testing.T) {
	eng, _ := newTestEngine(t, nil)
	orderID := createOrder(t, eng)
	if _, err := eng.SendToKitchen(context.Background(), orderID, "send-1"); err != nil {
		t.Fatalf("send: %v", err)
	}

	result, err := eng.VoidLine(context.Background(), VoidInput{
		OrderID:  orderID,
		LineID:   1,
		Quantity: 1,
		Reason:   "customer changed mind",
		ActorID:  actorServer,
		Token:    "void-1",
	})
	if err != nil {
		t.Fatalf("void: %v", err)
	}
	if result.WastagePosting != nil {
		t.Fatal("pre-preparation void must not produce a wastage posting")
	}
	if result.Order.Total != "16.50" {
		t.Fatalf("expected total 16.50 after void, got %s", result.Order.Total)
	}
}

func TestPostPreparationVoidRequiresAuthorityAndReversesCost(t *testing.T) {
	eng, _ := newTestEngine(t, nil)
	orderID := createOrder(t, eng)
	sendAndPrepare(t, eng, orderID)

	_, err := eng.VoidLine(context.Background(), VoidInput{
		OrderID: orderID, LineID: 1, Quantity: 1,
		Reason: "burnt", ActorID: actorServer, Token: "void-denied",
	})
	var authErr *authority.Error
	if !errors.As(err, &authErr) || authErr.Code != authority.ErrCodeInsufficientAuthority {
		t.Fatalf("expected INSUFFICIENT_AUTHORITY, got %v", err)
	}

	result, err := eng.VoidLine(context.Background(), VoidInput{
		OrderID: orderID, LineID: 1, Quantity: 1,
		Reason: "burnt", ActorID: actorSupervisor, Token: "void-1",
	})
	if err != nil {
		t.Fatalf("supervisor void: %v", err)
	}
	if result.WastagePosting == nil {
		t.Fatal("post-preparation void must produce a wastage posting")
	}
	if result.WastagePosting.Kind != ledger.PostingWastage {
		t.Fatalf("expected wastage posting, got %s", result.WastagePosting.Kind)
	}
	for _, entry := range result.WastagePosting.Entries {
		if entry.Account == ledger.AccountWastageExpense && entry.Debit.StringFixed(2) != "4.00" {
			t.Fatalf("expected wastage debit 4.00, got %s", entry.Debit)
		}
	}
}

func TestCountersignEscalatesAuthority(t *testing.T) {
	eng, _ := newTestEngine(t, nil)
	orderID := createOrder(t, eng)
	sendAndPrepare(t, eng, orderID)

	managerID := actorManager
	result, err := eng.VoidLine(context.Background(), VoidInput{
		OrderID: orderID, LineID: 1, Quantity: 1,
		Reason:         "burnt",
		ActorID:        actorServer,
		CountersignID:  &managerID,
		CountersignPIN: "4821",
		Token:          "void-1",
	})
	if err != nil {
		t.Fatalf("countersigned void: %v", err)
	}
	if result.WastagePosting == nil {
		t.Fatal("expected wastage posting")
	}

	_, err = eng.VoidLine(context.Background(), VoidInput{
		OrderID: orderID, LineID: 1, Quantity: 1,
		Reason:         "burnt",
		ActorID:        actorServer,
		CountersignID:  &managerID,
		CountersignPIN: "0000",
		Token:          "void-2",
	})
	var authErr *authority.Error
	if !errors.As(err, &authErr) || authErr.Code != authority.ErrCodeInvalidCountersign {
		t.Fatalf("expected INVALID_COUNTERSIGN, got %v", err)
	}
}

func TestPartialPaymentFailureThenSettle(t *testing.T) {
	provider := &scriptedProvider{failMethods: map[string]string{"CARD": "issuer declined"}}
	eng, _ := newTestEngine(t, provider)
	orderID := createOrder(t, eng)
	ticket := sendAndPrepare(t, eng, orderID)
	serveOrder(t, eng, orderID, ticket)

	pay, err := eng.CaptureSplitPayment(context.Background(), PaymentInput{
		OrderID: orderID,
		Token:   "pay-1",
		Entries: []billing.CaptureEntry{
			{Method: "CASH", Amount: decimal.RequireFromString("15.00")},
			{Method: "CARD", Amount: decimal.RequireFromString("12.50")},
		},
	})
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if !pay.Result.PartialFailure() {
		t.Fatal("expected partial failure")
	}
	if pay.Result.Summary.BalanceDue.StringFixed(2) != "12.50" {
		t.Fatalf("expected balance 12.50, got %s", pay.Result.Summary.BalanceDue)
	}

	_, err = eng.CloseOrder(context.Background(), orderID, "close-1")
	var oerr *order.Error
	if !errors.As(err, &oerr) || oerr.Code != order.ErrCodeUnderpaidClose {
		t.Fatalf("expected UNDERPAID_CLOSE, got %v", err)
	}

	delete(provider.failMethods, "CARD")
	if _, err := eng.CaptureSplitPayment(context.Background(), PaymentInput{
		OrderID: orderID,
		Token:   "pay-2",
		Entries: []billing.CaptureEntry{
			{Method: "CARD", Amount: decimal.RequireFromString("12.50")},
		},
	}); err != nil {
		t.Fatalf("retry capture: %v", err)
	}
	if _, err := eng.CloseOrder(context.Background(), orderID, "close-2"); err != nil {
		t.Fatalf("close after settling: %v", err)
	}
}

func TestOverpaymentPostsChangeDue(t *testing.T) {
	eng, _ := newTestEngine(t, nil)
	orderID := createOrder(t, eng)
	ticket := sendAndPrepare(t, eng, orderID)
	serveOrder(t, eng, orderID, ticket)

	if _, err := eng.CaptureSplitPayment(context.Background(), PaymentInput{
		OrderID: orderID,
		Token:   "pay-1",
		Entries: []billing.CaptureEntry{
			{Method: "CASH", Amount: decimal.NewFromInt(30)},
		},
	}); err != nil {
		t.Fatalf("capture: %v", err)
	}

	closed, err := eng.CloseOrder(context.Background(), orderID, "close-1")
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	var changeDue string
	for _, entry := range closed.Postings[0].Entries {
		if entry.Account == ledger.AccountChangeDue {
			changeDue = entry.Credit.StringFixed(2)
		}
	}
	if changeDue != "2.50" {
		t.Fatalf("expected change due credit 2.50, got %q", changeDue)
	}
}

func TestKitchenEventReplayIsAnsweredNotReapplied(t *testing.T) {
	eng, _ := newTestEngine(t, nil)
	orderID := createOrder(t, eng)
	sent, err := eng.SendToKitchen(context.Background(), orderID, "send-1")
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	first, err := eng.ApplyKitchenEvent(context.Background(), KitchenEventInput{
		TicketID: sent.Ticket.ID, Type: kitchen.EventAccepted, Token: "accept-1",
	})
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if first.Replayed {
		t.Fatal("first delivery must not be a replay")
	}

	second, err := eng.ApplyKitchenEvent(context.Background(), KitchenEventInput{
		TicketID: sent.Ticket.ID, Type: kitchen.EventAccepted, Token: "accept-1",
	})
	if err != nil {
		t.Fatalf("replayed accept: %v", err)
	}
	if !second.Replayed {
		t.Fatal("duplicate token must be answered as a replay")
	}
	if second.Order.Status != order.StatusPreparing {
		t.Fatalf("expected PREPARING, got %s", second.Order.Status)
	}
}

func TestKitchenReplayReturnsOriginalResultAfterRecall(t *testing.T) {
	eng, _ := newTestEngine(t, nil)
	orderID := createOrder(t, eng)
	ticket := sendAndPrepare(t, eng, orderID)

	first, err := eng.ApplyKitchenEvent(context.Background(), KitchenEventInput{
		TicketID: ticket.ID, Type: kitchen.EventReady, Token: "ready-1", StationID: "grill",
	})
	if err != nil {
		t.Fatalf("ready: %v", err)
	}
	if first.Order.Status != order.StatusReady {
		t.Fatalf("expected READY, got %s", first.Order.Status)
	}

	if _, err := eng.ApplyKitchenEvent(context.Background(), KitchenEventInput{
		TicketID: ticket.ID, Type: kitchen.EventRecalled, Token: "recall-1", StationID: "grill",
	}); err != nil {
		t.Fatalf("recall: %v", err)
	}

	// The station never saw the first answer and resends the same token.
	replayed, err := eng.ApplyKitchenEvent(context.Background(), KitchenEventInput{
		TicketID: ticket.ID, Type: kitchen.EventReady, Token: "ready-1", StationID: "grill",
	})
	if err != nil {
		t.Fatalf("resent ready: %v", err)
	}
	if !replayed.Replayed {
		t.Fatal("duplicate token must be answered as a replay")
	}
	if replayed.Order.Status != first.Order.Status {
		t.Fatalf("replay must return the original result: first=%s replay=%s",
			first.Order.Status, replayed.Order.Status)
	}

	snap, err := eng.GetOrder(context.Background(), orderID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if snap.Status != order.StatusPreparing {
		t.Fatalf("replay must not re-apply the event, order is %s", snap.Status)
	}
}

func TestCloseReplayDoesNotDoublePost(t *testing.T) {
	eng, _ := newTestEngine(t, nil)
	orderID := createOrder(t, eng)
	ticket := sendAndPrepare(t, eng, orderID)
	serveOrder(t, eng, orderID, ticket)
	if _, err := eng.CaptureSplitPayment(context.Background(), PaymentInput{
		OrderID: orderID,
		Token:   "pay-1",
		Entries: []billing.CaptureEntry{{Method: "CASH", Amount: decimal.RequireFromString("27.50")}},
	}); err != nil {
		t.Fatalf("capture: %v", err)
	}

	first, err := eng.CloseOrder(context.Background(), orderID, "close-1")
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	second, err := eng.CloseOrder(context.Background(), orderID, "close-1")
	if err != nil {
		t.Fatalf("replayed close: %v", err)
	}
	if !second.Replayed {
		t.Fatal("duplicate close token must be answered as a replay")
	}

	postings, err := eng.ListPostings(context.Background(), orderID)
	if err != nil {
		t.Fatalf("list postings: %v", err)
	}
	if len(postings) != len(first.Postings) {
		t.Fatalf("expected %d postings after replay, got %d", len(first.Postings), len(postings))
	}
}

func TestPaymentReplayDoesNotDoubleCapture(t *testing.T) {
	eng, _ := newTestEngine(t, nil)
	orderID := createOrder(t, eng)

	in := PaymentInput{
		OrderID: orderID,
		Token:   "pay-1",
		Entries: []billing.CaptureEntry{{Method: "CASH", Amount: decimal.NewFromInt(10)}},
	}
	if _, err := eng.CaptureSplitPayment(context.Background(), in); err != nil {
		t.Fatalf("capture: %v", err)
	}
	replayed, err := eng.CaptureSplitPayment(context.Background(), in)
	if err != nil {
		t.Fatalf("replayed capture: %v", err)
	}
	if !replayed.Replayed {
		t.Fatal("duplicate payment token must be answered as a replay")
	}

	summary, err := eng.GetBalanceSummary(context.Background(), orderID)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.TotalPaid.StringFixed(2) != "10.00" {
		t.Fatalf("expected total paid 10.00, got %s", summary.TotalPaid)
	}
}

func TestFullVoidOfAllLinesTerminatesOrder(t *testing.T) {
	eng, _ := newTestEngine(t, nil)
	orderID := createOrder(t, eng)
	if _, err := eng.SendToKitchen(context.Background(), orderID, "send-1"); err != nil {
		t.Fatalf("send: %v", err)
	}

	for i, req := range []VoidInput{
		{OrderID: orderID, LineID: 1, Quantity: 2, Reason: "walkout", ActorID: actorServer, Token: "void-1"},
		{OrderID: orderID, LineID: 2, Quantity: 1, Reason: "walkout", ActorID: actorServer, Token: "void-2"},
	} {
		if _, err := eng.VoidLine(context.Background(), req); err != nil {
			t.Fatalf("void %d: %v", i, err)
		}
	}

	snap, err := eng.GetOrder(context.Background(), orderID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if snap.Status != order.StatusVoided {
		t.Fatalf("expected VOIDED, got %s", snap.Status)
	}
	if snap.Total != "0.00" {
		t.Fatalf("expected total 0.00, got %s", snap.Total)
	}

	if _, err := eng.CaptureSplitPayment(context.Background(), PaymentInput{
		OrderID: orderID,
		Token:   "pay-1",
		Entries: []billing.CaptureEntry{{Method: "CASH", Amount: decimal.NewFromInt(5)}},
	}); err == nil {
		t.Fatal("expected payment on a voided order to be rejected")
	}
}

func TestUntokenedVoidsReverseCostIndependently(t *testing.T) {
	eng, _ := newTestEngine(t, nil)
	orderID := createOrder(t, eng)
	sendAndPrepare(t, eng, orderID)

	for i := 0; i < 2; i++ {
		result, err := eng.VoidLine(context.Background(), VoidInput{
			OrderID: orderID, LineID: 1, Quantity: 1,
			Reason: "burnt", ActorID: actorSupervisor,
		})
		if err != nil {
			t.Fatalf("void %d: %v", i, err)
		}
		if result.WastagePosting == nil {
			t.Fatalf("void %d: expected a wastage posting", i)
		}
	}

	postings, err := eng.ListPostings(context.Background(), orderID)
	if err != nil {
		t.Fatalf("list postings: %v", err)
	}
	if len(postings) != 2 {
		t.Fatalf("expected both voids to post wastage, got %d postings", len(postings))
	}
	if postings[0].SourceEvent == postings[1].SourceEvent {
		t.Fatalf("wastage source-events must be distinct, both are %q", postings[0].SourceEvent)
	}
}

func TestVoidBetweenPaymentAndCloseKeepsLedgerConsistent(t *testing.T) {
	eng, _ := newTestEngine(t, nil)
	orderID := createOrder(t, eng)
	ticket := sendAndPrepare(t, eng, orderID)
	serveOrder(t, eng, orderID, ticket)

	if _, err := eng.CaptureSplitPayment(context.Background(), PaymentInput{
		OrderID: orderID,
		Token:   "pay-1",
		Entries: []billing.CaptureEntry{{Method: "CASH", Amount: decimal.RequireFromString("27.50")}},
	}); err != nil {
		t.Fatalf("capture: %v", err)
	}

	// A served-item void needs a manager; the reduced total turns the
	// payment into an overpayment rather than breaking the close.
	if _, err := eng.VoidLine(context.Background(), VoidInput{
		OrderID: orderID, LineID: 2, Quantity: 1,
		Reason: "comped", ActorID: actorManager, Token: "void-1",
	}); err != nil {
		t.Fatalf("void: %v", err)
	}

	closed, err := eng.CloseOrder(context.Background(), orderID, "close-1")
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	for _, p := range closed.Postings {
		if !p.Balanced() {
			t.Fatalf("posting %s is unbalanced", p.Kind)
		}
	}
	var changeDue bool
	for _, entry := range closed.Postings[0].Entries {
		if entry.Account == ledger.AccountChangeDue && entry.Credit.Sign() > 0 {
			changeDue = true
		}
	}
	if !changeDue {
		t.Fatal("expected the overpaid amount to be owed back as change")
	}
}
