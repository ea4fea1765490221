package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"dinehall-order-engine/internal/engine"
	"dinehall-order-engine/pkg/response"
)

func (h *Handler) OrderCreate(w http.ResponseWriter, r *http.Request) {
	var in engine.CreateOrderInput
	if err := decodeJSON(r, &in); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		return
	}

	snap, err := h.Engine.CreateOrder(r.Context(), in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"data":    snap,
	})
}

func (h *Handler) OrderGet(w http.ResponseWriter, r *http.Request) {
	orderID, err := orderIDParam(r)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid order id")
		return
	}
	snap, err := h.Engine.GetOrder(r.Context(), orderID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	response.Success(w, snap)
}

type tokenBody struct {
	Token string `json:"token"`
}

func (h *Handler) OrderSend(w http.ResponseWriter, r *http.Request) {
	orderID, err := orderIDParam(r)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid order id")
		return
	}
	var body tokenBody
	if err := decodeJSON(r, &body); err != nil || body.Token == "" {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "idempotency token is required")
		return
	}

	result, err := h.Engine.SendToKitchen(r.Context(), orderID, body.Token)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	response.Success(w, result)
}

func (h *Handler) OrderServe(w http.ResponseWriter, r *http.Request) {
	orderID, err := orderIDParam(r)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid order id")
		return
	}
	snap, err := h.Engine.MarkServed(r.Context(), orderID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	response.Success(w, snap)
}

func (h *Handler) OrderClose(w http.ResponseWriter, r *http.Request) {
	orderID, err := orderIDParam(r)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid order id")
		return
	}
	var body tokenBody
	if err := decodeJSON(r, &body); err != nil || body.Token == "" {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "idempotency token is required")
		return
	}

	result, err := h.Engine.CloseOrder(r.Context(), orderID, body.Token)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if h.Archive != nil && !result.Replayed {
		go h.archiveReceipt(result)
	}
	response.Success(w, result)
}

func (h *Handler) OrderPostings(w http.ResponseWriter, r *http.Request) {
	orderID, err := orderIDParam(r)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid order id")
		return
	}
	postings, err := h.Engine.ListPostings(r.Context(), orderID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	response.Success(w, postings)
}

func (h *Handler) logArchiveFailure(orderID int64, err error) {
	h.Logger.Warn("receipt archive failed",
		zap.Int64("orderId", orderID),
		zap.Error(err))
}
