package authority

import (
	"context"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGResolver reads staff tiers and countersign hashes from the staff table
// maintained by the identity service. This service never writes it.
type PGResolver struct {
	DB *pgxpool.Pool
}

func (r *PGResolver) ResolveActorTier(ctx context.Context, actorID int64) (Tier, error) {
	var tier int
	err := r.DB.QueryRow(ctx, `
		select tier from staff where id = $1 and is_active
	`, actorID).Scan(&tier)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, &Error{
				Code:       ErrCodeInsufficientAuthority,
				Message:    "unknown or inactive staff member",
				StatusCode: http.StatusForbidden,
			}
		}
		return 0, err
	}
	return Tier(tier), nil
}

func (r *PGResolver) CountersignHash(ctx context.Context, actorID int64) (Tier, string, error) {
	var (
		tier int
		hash string
	)
	err := r.DB.QueryRow(ctx, `
		select tier, coalesce(pin_hash, '') from staff where id = $1 and is_active
	`, actorID).Scan(&tier, &hash)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, "", nil
		}
		return 0, "", err
	}
	return Tier(tier), hash, nil
}
