package handlers

import (
	"net/http"

	"dinehall-order-engine/internal/billing"
	"dinehall-order-engine/internal/engine"
	"dinehall-order-engine/pkg/response"
)

type paymentBody struct {
	Entries []billing.CaptureEntry `json:"entries"`
	Token   string                 `json:"token"`
}

func (h *Handler) PaymentCapture(w http.ResponseWriter, r *http.Request) {
	orderID, err := orderIDParam(r)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid order id")
		return
	}
	var body paymentBody
	if err := decodeJSON(r, &body); err != nil || body.Token == "" {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "idempotency token is required")
		return
	}

	result, err := h.Engine.CaptureSplitPayment(r.Context(), engine.PaymentInput{
		OrderID: orderID,
		Entries: body.Entries,
		Token:   body.Token,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	// Partial failure is a successful request with failed entries inside;
	// the terminal decides how to re-collect.
	response.Success(w, result)
}

func (h *Handler) PaymentList(w http.ResponseWriter, r *http.Request) {
	orderID, err := orderIDParam(r)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid order id")
		return
	}
	payments, err := h.Engine.ListPayments(r.Context(), orderID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	response.Success(w, payments)
}

func (h *Handler) BalanceGet(w http.ResponseWriter, r *http.Request) {
	orderID, err := orderIDParam(r)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid order id")
		return
	}
	summary, err := h.Engine.GetBalanceSummary(r.Context(), orderID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	response.Success(w, summary)
}
