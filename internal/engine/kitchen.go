package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"dinehall-order-engine/internal/kitchen"
	"dinehall-order-engine/internal/store"
)

type KitchenEventInput struct {
	TicketID  uuid.UUID         `json:"ticketId"`
	Type      kitchen.EventType `json:"type"`
	Token     string            `json:"token"`
	StationID string            `json:"stationId"`
}

type KitchenResult struct {
	TicketID uuid.UUID `json:"ticketId"`
	Order    Snapshot  `json:"order"`
	Replayed bool      `json:"replayed,omitempty"`
}

// ApplyKitchenEvent applies a station acknowledgement (accept, ready,
// recall) to the ticket's order. Replays are keyed on the full
// (ticket, type, token) triple: the kitchen link is lossy and stations
// resend, so a duplicate is answered with the stored first result even when
// later events have since moved the order on. Out-of-order events that
// would skip a state are rejected instead; the station re-syncs and
// retries.
func (e *Engine) ApplyKitchenEvent(ctx context.Context, in KitchenEventInput) (*KitchenResult, error) {
	ticket, err := e.Store.GetTicket(ctx, in.TicketID)
	if err != nil {
		return nil, err
	}
	replayKey := kitchenEventKey(ticket.ID, in.Type, in.Token)

	var result *KitchenResult
	err = e.locks.Do(ticket.OrderID, func() error {
		if replayed, found, err := replay[KitchenResult](ctx, e.Store, replayKey); err != nil {
			return err
		} else if found {
			result = replayed
			return nil
		}

		o, err := e.Store.GetOrder(ctx, ticket.OrderID)
		if err != nil {
			return err
		}
		if err := kitchen.Apply(in.Type, ticket, o); err != nil {
			return err
		}

		event := kitchen.NewEvent(ticket, in.Type, in.Token, in.StationID, e.now())
		result = &KitchenResult{TicketID: ticket.ID, Order: snapshotOf(o)}
		mut := store.Mutation{Order: o, NewEvents: []*kitchen.Event{event}}
		if err := stampIdempotency(&mut, replayKey, result); err != nil {
			return err
		}
		if err := e.Store.Apply(ctx, mut); err != nil {
			return err
		}

		e.Logger.Info("kitchen event applied",
			zap.String("ticketId", ticket.ID.String()),
			zap.String("type", string(in.Type)),
			zap.String("stationId", in.StationID),
			zap.String("orderStatus", string(o.Status)))
		e.emit(ctx, "kitchen."+routingSuffix(in.Type), result)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// kitchenEventKey scopes a station token to its ticket and event type: the
// same token string on a different transition is a new delivery, not a
// replay. An untokened event leaves no replay record.
func kitchenEventKey(ticketID uuid.UUID, eventType kitchen.EventType, token string) string {
	if token == "" {
		return ""
	}
	return fmt.Sprintf("kitchen-event:%s:%s:%s", ticketID, eventType, token)
}

func routingSuffix(t kitchen.EventType) string {
	switch t {
	case kitchen.EventAccepted:
		return "accepted"
	case kitchen.EventReady:
		return "ready"
	case kitchen.EventRecalled:
		return "recalled"
	}
	return "unknown"
}
