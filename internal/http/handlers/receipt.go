package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"dinehall-order-engine/internal/engine"
	"dinehall-order-engine/internal/order"
	"dinehall-order-engine/internal/receipt"
	"dinehall-order-engine/internal/storage"
	"dinehall-order-engine/pkg/response"
)

// ReceiptGet renders the receipt PDF for a closed order. When an archive is
// configured, the archived copy is served; a closed order's receipt never
// changes, so the copy is authoritative.
func (h *Handler) ReceiptGet(w http.ResponseWriter, r *http.Request) {
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
	if snap.Status != order.StatusClosed {
		response.ErrorWithDetails(w, http.StatusConflict, "INVALID_TRANSITION",
			"receipt is available once the order is closed",
			map[string]any{"currentStatus": string(snap.Status)})
		return
	}

	if h.Archive != nil && snap.ClosedAt != nil {
		key := storage.ReceiptKey(snap.ID, *snap.ClosedAt)
		if body, err := h.Archive.Get(r.Context(), key); err == nil {
			servePDF(w, snap.ID, body)
			return
		}
	}

	body, err := h.renderReceipt(r.Context(), snap)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	servePDF(w, snap.ID, body)
}

// ReceiptLink hands out a time-limited presigned download link for the
// archived receipt, so terminals can print without proxying the PDF through
// the engine.
func (h *Handler) ReceiptLink(w http.ResponseWriter, r *http.Request) {
	if h.Archive == nil {
		response.Error(w, http.StatusNotFound, "ARCHIVE_DISABLED", "receipt archive is not configured")
		return
	}
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
	if snap.Status != order.StatusClosed || snap.ClosedAt == nil {
		response.ErrorWithDetails(w, http.StatusConflict, "INVALID_TRANSITION",
			"receipt is available once the order is closed",
			map[string]any{"currentStatus": string(snap.Status)})
		return
	}

	const linkTTL = 15 * time.Minute
	key := storage.ReceiptKey(snap.ID, *snap.ClosedAt)
	url, err := h.Archive.PresignGet(r.Context(), key, linkTTL)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	response.Success(w, map[string]any{
		"url":              url,
		"expiresInSeconds": int64(linkTTL / time.Second),
	})
}

func (h *Handler) renderReceipt(ctx context.Context, snap *engine.Snapshot) ([]byte, error) {
	payments, err := h.Engine.ListPayments(ctx, snap.ID)
	if err != nil {
		return nil, err
	}
	summary, err := h.Engine.GetBalanceSummary(ctx, snap.ID)
	if err != nil {
		return nil, err
	}
	buf, err := receipt.Render(receipt.Data{
		Order:    *snap,
		Payments: payments,
		Summary:  *summary,
	})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// archiveReceipt runs after a successful close, off the request path. The
// archive write is retried on next receipt fetch if it fails here.
func (h *Handler) archiveReceipt(result *engine.CloseResult) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	snap := result.Order
	body, err := h.renderReceipt(ctx, &snap)
	if err != nil {
		h.logArchiveFailure(snap.ID, err)
		return
	}
	if snap.ClosedAt == nil {
		return
	}
	key := storage.ReceiptKey(snap.ID, *snap.ClosedAt)
	if err := h.Archive.Put(ctx, key, body, "application/pdf"); err != nil {
		h.logArchiveFailure(snap.ID, err)
	}
}

func servePDF(w http.ResponseWriter, orderID int64, body []byte) {
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=order-%d.pdf", orderID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
