package handlers

import (
	"net/http"

	"dinehall-order-engine/internal/engine"
	"dinehall-order-engine/internal/kitchen"
	"dinehall-order-engine/pkg/response"
)

type kitchenEventBody struct {
	Token     string `json:"token"`
	StationID string `json:"stationId"`
}

func (h *Handler) TicketAccept(w http.ResponseWriter, r *http.Request) {
	h.kitchenEvent(w, r, kitchen.EventAccepted)
}

func (h *Handler) TicketReady(w http.ResponseWriter, r *http.Request) {
	h.kitchenEvent(w, r, kitchen.EventReady)
}

func (h *Handler) TicketRecall(w http.ResponseWriter, r *http.Request) {
	h.kitchenEvent(w, r, kitchen.EventRecalled)
}

func (h *Handler) kitchenEvent(w http.ResponseWriter, r *http.Request, eventType kitchen.EventType) {
	ticketID, err := ticketIDParam(r)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid ticket id")
		return
	}
	var body kitchenEventBody
	if err := decodeJSON(r, &body); err != nil || body.Token == "" {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "idempotency token is required")
		return
	}

	result, err := h.Engine.ApplyKitchenEvent(r.Context(), engine.KitchenEventInput{
		TicketID:  ticketID,
		Type:      eventType,
		Token:     body.Token,
		StationID: body.StationID,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	response.Success(w, result)
}
