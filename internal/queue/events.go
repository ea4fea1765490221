package queue

import (
	"context"

	"go.uber.org/zap"
)

const (
	EventsExchange = "dinehall.events"
	// KitchenQueue feeds the kitchen-display bridge: tickets being cut and
	// station acknowledgements.
	KitchenQueue = "dinehall.kitchen-display"
)

var kitchenBindings = []string{"order.sent", "kitchen.*", "order.line_voided"}

// SetupTopology declares the exchange and the kitchen-display queue. Safe to
// run on every boot; declarations are idempotent.
func SetupTopology(c *Client) error {
	if err := c.EnsureExchange(EventsExchange); err != nil {
		return err
	}
	if _, err := c.EnsureQueue(KitchenQueue); err != nil {
		return err
	}
	for _, key := range kitchenBindings {
		if err := c.BindQueue(KitchenQueue, EventsExchange, key); err != nil {
			return err
		}
	}
	return nil
}

// Publisher fans engine events out to the broker. Emission is best-effort:
// the operation already committed, so a publish failure is logged and
// dropped, never surfaced to the caller.
type Publisher struct {
	client *Client
	logger *zap.Logger
}

func NewPublisher(client *Client, logger *zap.Logger) *Publisher {
	return &Publisher{client: client, logger: logger}
}

// Envelope is the published message shape. The routing key rides inside the
// body as well, so consumers reading from a bound queue keep the event name.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

func (p *Publisher) Emit(ctx context.Context, routingKey string, payload any) {
	if p == nil || p.client == nil {
		return
	}
	if err := p.client.PublishJSON(ctx, EventsExchange, routingKey, Envelope{Event: routingKey, Data: payload}); err != nil {
		p.logger.Warn("event publish failed",
			zap.String("routingKey", routingKey),
			zap.Error(err))
	}
}
