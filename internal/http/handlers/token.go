package handlers

import (
	"net/http"
	"time"

	"dinehall-order-engine/internal/auth"
	"dinehall-order-engine/internal/authority"
	"dinehall-order-engine/pkg/response"
)

type tokenMintBody struct {
	StaffID    int64  `json:"staffId"`
	LocationID int64  `json:"locationId"`
	Tier       string `json:"tier"`
	Name       string `json:"name"`
}

// TokenMint signs a staff access token from the shared secret. Mounted in
// development only; production tokens come from the identity service.
func (h *Handler) TokenMint(w http.ResponseWriter, r *http.Request) {
	var body tokenMintBody
	if err := decodeJSON(r, &body); err != nil || body.StaffID <= 0 {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "staffId is required")
		return
	}

	tier := authority.TierFromName(body.Tier)
	expiry := time.Duration(h.Config.JWTExpirySeconds) * time.Second
	token, err := auth.IssueAccessToken(body.StaffID, body.LocationID, tier, body.Name, h.Config.JWTSecret, expiry)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "could not sign token")
		return
	}

	response.Success(w, map[string]any{
		"token":            token,
		"tier":             tier.String(),
		"expiresInSeconds": h.Config.JWTExpirySeconds,
	})
}
