package billing

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	"github.com/shopspring/decimal"
)

// AutoApprove settles everything immediately with a generated reference.
// Stands in for real terminal/gateway providers in dev mode; the production
// wiring supplies one provider per settlement method.
type AutoApprove struct{}

func (AutoApprove) Capture(_ context.Context, _ string, _, _ decimal.Decimal) (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "auto-" + hex.EncodeToString(buf), nil
}
