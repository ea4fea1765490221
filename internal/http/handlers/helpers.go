package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"dinehall-order-engine/internal/authority"
	"dinehall-order-engine/internal/billing"
	"dinehall-order-engine/internal/catalog"
	"dinehall-order-engine/internal/kitchen"
	"dinehall-order-engine/internal/ledger"
	"dinehall-order-engine/internal/order"
	"dinehall-order-engine/internal/store"
	"dinehall-order-engine/pkg/response"
)

func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}

func orderIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "orderId"), 10, 64)
}

func lineIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "lineId"), 10, 64)
}

func ticketIDParam(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "ticketId"))
}

// writeDomainError maps the engine's typed errors onto the response
// envelope. Unknown errors stay opaque 500s.
func writeDomainError(w http.ResponseWriter, err error) {
	var orderErr *order.Error
	if errors.As(err, &orderErr) {
		response.ErrorWithDetails(w, orderErr.StatusCode, string(orderErr.Code), orderErr.Message, orderErr.Details)
		return
	}
	var kitchenErr *kitchen.Error
	if errors.As(err, &kitchenErr) {
		response.ErrorWithDetails(w, kitchenErr.StatusCode, string(kitchenErr.Code), kitchenErr.Message, kitchenErr.Details)
		return
	}
	var authErr *authority.Error
	if errors.As(err, &authErr) {
		response.ErrorWithDetails(w, authErr.StatusCode, string(authErr.Code), authErr.Message, authErr.Details)
		return
	}
	var billingErr *billing.Error
	if errors.As(err, &billingErr) {
		response.Error(w, billingErr.StatusCode, string(billingErr.Code), billingErr.Message)
		return
	}
	var imbalance *ledger.ImbalanceError
	if errors.As(err, &imbalance) {
		response.Error(w, http.StatusInternalServerError, "LEDGER_IMBALANCE", imbalance.Error())
		return
	}

	switch {
	case errors.Is(err, store.ErrOrderNotFound):
		response.Error(w, http.StatusNotFound, string(order.ErrCodeOrderNotFound), "order not found")
	case errors.Is(err, store.ErrTicketNotFound):
		response.Error(w, http.StatusNotFound, string(kitchen.ErrCodeTicketNotFound), "kitchen ticket not found")
	case errors.Is(err, catalog.ErrItemNotFound):
		response.Error(w, http.StatusNotFound, "CATALOG_ITEM_NOT_FOUND", err.Error())
	default:
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error")
	}
}
