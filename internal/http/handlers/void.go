package handlers

import (
	"net/http"

	"dinehall-order-engine/internal/engine"
	"dinehall-order-engine/internal/middleware"
	"dinehall-order-engine/pkg/response"
)

type voidBody struct {
	Quantity       int32  `json:"quantity"`
	Reason         string `json:"reason"`
	CountersignID  *int64 `json:"countersignId"`
	CountersignPIN string `json:"countersignPin"`
	Token          string `json:"token"`
}

// LineVoid cancels a quantity of a line item. The acting staff member comes
// from the token; a countersign can raise the effective tier.
func (h *Handler) LineVoid(w http.ResponseWriter, r *http.Request) {
	orderID, err := orderIDParam(r)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid order id")
		return
	}
	lineID, err := lineIDParam(r)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid line id")
		return
	}
	var body voidBody
	if err := decodeJSON(r, &body); err != nil || body.Token == "" {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "idempotency token is required")
		return
	}

	authCtx, ok := middleware.GetAuthContext(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, "UNAUTHORIZED", "staff identity missing")
		return
	}

	result, err := h.Engine.VoidLine(r.Context(), engine.VoidInput{
		OrderID:        orderID,
		LineID:         lineID,
		Quantity:       body.Quantity,
		Reason:         body.Reason,
		ActorID:        authCtx.StaffID,
		CountersignID:  body.CountersignID,
		CountersignPIN: body.CountersignPIN,
		Token:          body.Token,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	response.Success(w, result)
}
