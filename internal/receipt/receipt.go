package receipt

import (
	"bytes"
	"fmt"
	"time"

	"github.com/phpdave11/gofpdf"

	"dinehall-order-engine/internal/billing"
	"dinehall-order-engine/internal/engine"
	"dinehall-order-engine/internal/order"
)

// Data is everything a closed-order receipt shows. Amounts arrive
// preformatted; the renderer does no monetary math.
type Data struct {
	LocationName string
	Order        engine.Snapshot
	Payments     []billing.Payment
	Summary      billing.Summary
}

// Render produces the printable receipt PDF for a closed order.
func Render(data Data) (*bytes.Buffer, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(12, 12, 12)
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 14)
	title := data.LocationName
	if title == "" {
		title = fmt.Sprintf("Location %d", data.Order.LocationID)
	}
	pdf.CellFormat(0, 8, title, "", 1, "C", false, 0, "")

	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(0, 6, fmt.Sprintf("Order %d", data.Order.ID), "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	pdf.CellFormat(0, 5, fmt.Sprintf("Opened: %s", data.Order.CreatedAt.Format(time.RFC822)), "", 1, "C", false, 0, "")
	if data.Order.ClosedAt != nil {
		pdf.CellFormat(0, 5, fmt.Sprintf("Closed: %s", data.Order.ClosedAt.Format(time.RFC822)), "", 1, "C", false, 0, "")
	}

	pdf.Ln(3)
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(0, 6, "Items", "B", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	for _, line := range data.Order.Lines {
		if line.Status == order.ItemVoided {
			pdf.CellFormat(0, 5, fmt.Sprintf("%dx %s (voided)", line.Quantity, line.Name), "", 1, "L", false, 0, "")
			continue
		}
		qty := line.Quantity - line.VoidedQuantity
		pdf.CellFormat(0, 5, fmt.Sprintf("%dx %s @ %s", qty, line.Name, line.UnitPrice), "", 1, "L", false, 0, "")
		pdf.CellFormat(0, 5, fmt.Sprintf("Subtotal: %s", line.Subtotal), "", 1, "L", false, 0, "")
		if line.VoidedQuantity > 0 {
			pdf.CellFormat(0, 4, fmt.Sprintf("  %d voided", line.VoidedQuantity), "", 1, "L", false, 0, "")
		}
		pdf.Ln(1)
	}

	pdf.Ln(2)
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(0, 6, "Totals", "B", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	pdf.CellFormat(0, 5, fmt.Sprintf("Subtotal: %s", data.Order.Subtotal), "", 1, "L", false, 0, "")
	if data.Order.Discount != "0.00" {
		pdf.CellFormat(0, 5, fmt.Sprintf("Discount: -%s", data.Order.Discount), "", 1, "L", false, 0, "")
	}
	pdf.CellFormat(0, 5, fmt.Sprintf("Tax: %s", data.Order.Tax), "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(0, 6, fmt.Sprintf("Total: %s", data.Order.Total), "", 1, "L", false, 0, "")

	pdf.Ln(2)
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(0, 6, "Payments", "B", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	for _, p := range data.Payments {
		if p.Status != billing.PaymentCompleted {
			continue
		}
		line := fmt.Sprintf("%s: %s", p.Method, p.Amount.StringFixed(2))
		if p.Gratuity.Sign() > 0 {
			line += fmt.Sprintf(" (+%s tip)", p.Gratuity.StringFixed(2))
		}
		pdf.CellFormat(0, 5, line, "", 1, "L", false, 0, "")
	}
	pdf.CellFormat(0, 5, fmt.Sprintf("Paid: %s", data.Summary.TotalPaid.StringFixed(2)), "", 1, "L", false, 0, "")
	if data.Summary.BalanceDue.Sign() < 0 {
		pdf.CellFormat(0, 5, fmt.Sprintf("Change due: %s", data.Summary.BalanceDue.Neg().StringFixed(2)), "", 1, "L", false, 0, "")
	}
	if data.Summary.TipTotal.Sign() > 0 {
		pdf.CellFormat(0, 5, fmt.Sprintf("Gratuities: %s", data.Summary.TipTotal.StringFixed(2)), "", 1, "L", false, 0, "")
	}

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, err
	}
	return &out, nil
}
