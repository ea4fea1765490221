package kitchen

import (
	"net/http"

	"dinehall-order-engine/internal/order"
)

type ErrorCode string

const (
	ErrCodeTicketNotFound    ErrorCode = "TICKET_NOT_FOUND"
	ErrCodeInvalidTransition ErrorCode = "INVALID_TRANSITION"
)

type Error struct {
	Code       ErrorCode
	Message    string
	StatusCode int
	Details    map[string]any
}

func (e *Error) Error() string {
	return e.Message
}

func newError(code ErrorCode, message string, status int, details map[string]any) *Error {
	return &Error{Code: code, Message: message, StatusCode: status, Details: details}
}

// Accept moves the ticket's Sent items to Preparing. Items a later void
// removed are skipped; items that already progressed are left alone, so a
// late-arriving accept after ready does not regress anything.
func Accept(t *Ticket, o *order.Order) error {
	for _, id := range t.LineIDs {
		line, err := o.Line(id)
		if err != nil {
			return err
		}
		if line.Status == order.ItemSent {
			line.Status = order.ItemPreparing
		}
	}
	o.ApplyDerivedStatus()
	return nil
}

// Ready moves the ticket's Preparing items to Ready. An item the station
// never accepted cannot be readied.
func Ready(t *Ticket, o *order.Order) error {
	for _, id := range t.LineIDs {
		line, lerr := o.Line(id)
		if lerr != nil {
			return lerr
		}
		if line.Status == order.ItemSent || line.Status == order.ItemPending {
			return newError(ErrCodeInvalidTransition, "item was not accepted by the station", http.StatusConflict, map[string]any{
				"lineId":        line.ID,
				"currentStatus": string(line.Status),
			})
		}
	}
	for _, id := range t.LineIDs {
		line, _ := o.Line(id)
		if line.Status == order.ItemPreparing {
			line.Status = order.ItemReady
		}
	}
	o.ApplyDerivedStatus()
	return nil
}

// Recall reverses Ready, sending the ticket's items back to Preparing so the
// station can redo them. Served items are past recall.
func Recall(t *Ticket, o *order.Order) error {
	for _, id := range t.LineIDs {
		line, lerr := o.Line(id)
		if lerr != nil {
			return lerr
		}
		if line.Status == order.ItemServed {
			return newError(ErrCodeInvalidTransition, "a served item cannot be recalled", http.StatusConflict, map[string]any{
				"lineId":        line.ID,
				"currentStatus": string(line.Status),
			})
		}
	}
	for _, id := range t.LineIDs {
		line, _ := o.Line(id)
		if line.Status == order.ItemReady {
			line.Status = order.ItemPreparing
		}
	}
	o.ApplyDerivedStatus()
	return nil
}

// Apply dispatches a station event type onto the order.
func Apply(eventType EventType, t *Ticket, o *order.Order) error {
	switch eventType {
	case EventAccepted:
		return Accept(t, o)
	case EventReady:
		return Ready(t, o)
	case EventRecalled:
		return Recall(t, o)
	}
	return newError(ErrCodeInvalidTransition, "unknown kitchen event type", http.StatusBadRequest, map[string]any{
		"eventType": string(eventType),
	})
}
