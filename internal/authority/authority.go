package authority

import (
	"context"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

// Tier orders staff authority. Comparisons are numeric: a manager can do
// anything a supervisor can.
type Tier int

const (
	TierServer     Tier = 1
	TierSupervisor Tier = 2
	TierManager    Tier = 3
)

func (t Tier) String() string {
	switch t {
	case TierServer:
		return "SERVER"
	case TierSupervisor:
		return "SUPERVISOR"
	case TierManager:
		return "MANAGER"
	}
	return "UNKNOWN"
}

// TierFromName maps a display name back to its tier. Unknown names fall to
// the lowest tier, never escalate.
func TierFromName(name string) Tier {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "MANAGER":
		return TierManager
	case "SUPERVISOR":
		return TierSupervisor
	}
	return TierServer
}

// Resolver is the external authority/role collaborator.
type Resolver interface {
	ResolveActorTier(ctx context.Context, actorID int64) (Tier, error)
	// CountersignHash returns the stored PIN hash for a countersigning
	// actor, so a senior can authorize on a junior's terminal.
	CountersignHash(ctx context.Context, actorID int64) (tier Tier, pinHash string, err error)
}

type ErrorCode string

const (
	ErrCodeInsufficientAuthority ErrorCode = "INSUFFICIENT_AUTHORITY"
	ErrCodeInvalidCountersign    ErrorCode = "INVALID_COUNTERSIGN"
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

// insufficient reports the required tier so the UI can explain the failure
// without a second round-trip. Never silently escalated.
func insufficient(required Tier) *Error {
	return &Error{
		Code:       ErrCodeInsufficientAuthority,
		Message:    "actor tier is insufficient for this void",
		StatusCode: http.StatusForbidden,
		Details: map[string]any{
			"requiredTier": required.String(),
		},
	}
}

// VoidPolicy decides which tier a void requires.
type VoidPolicy struct {
	// SeniorThreshold is the voided-value threshold (quantity x unit
	// price, tax-exclusive) at or above which a post-preparation void
	// needs a manager.
	SeniorThreshold decimal.Decimal
}

// RequiredTier implements the authorization ladder:
// pre-preparation voids take the lowest tier; post-preparation voids below
// the threshold take a supervisor; at/above the threshold, or once the item
// is Ready/Served, a manager must act or countersign.
func (p VoidPolicy) RequiredTier(preparationStarted bool, readyOrServed bool, voidValue decimal.Decimal) Tier {
	if !preparationStarted {
		return TierServer
	}
	if readyOrServed {
		return TierManager
	}
	if voidValue.GreaterThanOrEqual(p.SeniorThreshold) {
		return TierManager
	}
	return TierSupervisor
}

// Authorize checks the acting tier, falling back to a countersign tier when
// one was verified. The effective tier is the higher of the two.
func Authorize(actorTier Tier, countersignTier *Tier, required Tier) error {
	effective := actorTier
	if countersignTier != nil && *countersignTier > effective {
		effective = *countersignTier
	}
	if effective < required {
		return insufficient(required)
	}
	return nil
}

// VerifyCountersign validates a senior's PIN against the stored bcrypt hash
// and returns that actor's tier for Authorize.
func VerifyCountersign(ctx context.Context, resolver Resolver, actorID int64, pin string) (Tier, error) {
	tier, hash, err := resolver.CountersignHash(ctx, actorID)
	if err != nil {
		return 0, err
	}
	if hash == "" || bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin)) != nil {
		return 0, &Error{
			Code:       ErrCodeInvalidCountersign,
			Message:    "countersign PIN is invalid",
			StatusCode: http.StatusUnauthorized,
		}
	}
	return tier, nil
}

// StaticResolver serves fixed tiers, for dev mode and tests.
type StaticResolver struct {
	Tiers    map[int64]Tier
	PinHash  map[int64]string
	Fallback Tier
}

func (r *StaticResolver) ResolveActorTier(_ context.Context, actorID int64) (Tier, error) {
	if tier, ok := r.Tiers[actorID]; ok {
		return tier, nil
	}
	if r.Fallback != 0 {
		return r.Fallback, nil
	}
	return TierServer, nil
}

func (r *StaticResolver) CountersignHash(ctx context.Context, actorID int64) (Tier, string, error) {
	tier, err := r.ResolveActorTier(ctx, actorID)
	if err != nil {
		return 0, "", err
	}
	return tier, r.PinHash[actorID], nil
}
