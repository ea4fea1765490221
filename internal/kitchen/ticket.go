package kitchen

import (
	"time"

	"github.com/google/uuid"
)

// Ticket is the kitchen-display unit for one send-to-kitchen action. It
// references order lines but owns none of their state; item status on the
// order is the single source of truth.
type Ticket struct {
	ID         uuid.UUID `json:"id"`
	OrderID    int64     `json:"orderId"`
	LocationID int64     `json:"locationId"`
	LineIDs    []int64   `json:"lineIds"`
	CreatedAt  time.Time `json:"createdAt"`
}

func NewTicket(orderID, locationID int64, lineIDs []int64, now time.Time) *Ticket {
	return &Ticket{
		ID:         uuid.New(),
		OrderID:    orderID,
		LocationID: locationID,
		LineIDs:    lineIDs,
		CreatedAt:  now,
	}
}

type EventType string

const (
	EventAccepted EventType = "ACCEPTED"
	EventReady    EventType = "READY"
	EventRecalled EventType = "RECALLED"
)

// Event is one station-originated entry in the append-only kitchen log.
// The log is immutable history: later voids on the order never rewrite it.
type Event struct {
	ID       uuid.UUID `json:"id"`
	TicketID uuid.UUID `json:"ticketId"`
	OrderID  int64     `json:"orderId"`
	Type     EventType `json:"type"`
	// Token is the caller-supplied idempotency token. A replayed
	// (ticket, type, token) triple is answered from the stored result
	// instead of being re-applied.
	Token      string    `json:"token"`
	StationID  string    `json:"stationId,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

func NewEvent(t *Ticket, eventType EventType, token, stationID string, now time.Time) *Event {
	return &Event{
		ID:         uuid.New(),
		TicketID:   t.ID,
		OrderID:    t.OrderID,
		Type:       eventType,
		Token:      token,
		StationID:  stationID,
		OccurredAt: now,
	}
}
