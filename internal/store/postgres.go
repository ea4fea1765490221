package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"dinehall-order-engine/internal/billing"
	"dinehall-order-engine/internal/kitchen"
	"dinehall-order-engine/internal/ledger"
	"dinehall-order-engine/internal/money"
	"dinehall-order-engine/internal/order"
)

// Postgres persists the engine's durable records. Monetary columns are
// numeric; void metadata and posting entries are jsonb.
type Postgres struct {
	DB *pgxpool.Pool
}

func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{DB: db}
}

func (s *Postgres) CreateOrder(ctx context.Context, o *order.Order) error {
	return s.withTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `
			insert into orders (location_id, server_id, subtotal, discount, tax, total, status, created_at)
			values ($1,$2,$3,$4,$5,$6,$7,$8)
			returning id
		`, o.LocationID, o.ServerID,
			money.DecimalToNumeric(o.Subtotal), money.DecimalToNumeric(o.Discount),
			money.DecimalToNumeric(o.Tax), money.DecimalToNumeric(o.Total),
			string(o.Status), o.CreatedAt,
		).Scan(&o.ID); err != nil {
			return err
		}
		return s.insertLines(ctx, tx, o)
	})
}

func (s *Postgres) insertLines(ctx context.Context, tx pgx.Tx, o *order.Order) error {
	for _, li := range o.Lines {
		voids, err := json.Marshal(li.Voids)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			insert into order_lines (order_id, line_no, catalog_item_id, name, quantity, voided_quantity,
				unit_price, subtotal, status, unit_cost, cost_captured, voids)
			values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		`, o.ID, li.ID, li.CatalogItemID, li.Name, li.Quantity, li.VoidedQuantity,
			money.DecimalToNumeric(li.UnitPrice), money.DecimalToNumeric(li.Subtotal),
			string(li.Status), money.DecimalToNumeric(li.UnitCost), li.CostCaptured, voids,
		); err != nil {
			return err
		}
	}
	return nil
}

func (s *Postgres) GetOrder(ctx context.Context, orderID int64) (*order.Order, error) {
	o := &order.Order{ID: orderID}
	var (
		subtotal, discount, tax, total pgtype.Numeric
		status                         string
		closedAt                       pgtype.Timestamptz
	)
	err := s.DB.QueryRow(ctx, `
		select location_id, server_id, subtotal, discount, tax, total, status, created_at, closed_at
		from orders where id = $1
	`, orderID).Scan(&o.LocationID, &o.ServerID, &subtotal, &discount, &tax, &total, &status, &o.CreatedAt, &closedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	o.Subtotal = money.NumericToDecimal(subtotal)
	o.Discount = money.NumericToDecimal(discount)
	o.Tax = money.NumericToDecimal(tax)
	o.Total = money.NumericToDecimal(total)
	o.Status = order.OrderStatus(status)
	if closedAt.Valid {
		t := closedAt.Time
		o.ClosedAt = &t
	}

	rows, err := s.DB.Query(ctx, `
		select line_no, catalog_item_id, name, quantity, voided_quantity, unit_price, subtotal,
			status, unit_cost, cost_captured, voids
		from order_lines where order_id = $1
		order by line_no
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		li := &order.LineItem{}
		var (
			unitPrice, lineSubtotal, unitCost pgtype.Numeric
			lineStatus                        string
			voids                             []byte
		)
		if err := rows.Scan(&li.ID, &li.CatalogItemID, &li.Name, &li.Quantity, &li.VoidedQuantity,
			&unitPrice, &lineSubtotal, &lineStatus, &unitCost, &li.CostCaptured, &voids); err != nil {
			return nil, err
		}
		li.UnitPrice = money.NumericToDecimal(unitPrice)
		li.Subtotal = money.NumericToDecimal(lineSubtotal)
		li.UnitCost = money.NumericToDecimal(unitCost)
		li.Status = order.ItemStatus(lineStatus)
		if len(voids) > 0 {
			if err := json.Unmarshal(voids, &li.Voids); err != nil {
				return nil, fmt.Errorf("decode void metadata for line %d: %w", li.ID, err)
			}
		}
		o.Lines = append(o.Lines, li)
	}
	return o, rows.Err()
}

func (s *Postgres) saveOrder(ctx context.Context, tx pgx.Tx, o *order.Order) error {
	if _, err := tx.Exec(ctx, `
		update orders
		set subtotal = $1, discount = $2, tax = $3, total = $4, status = $5, closed_at = $6
		where id = $7
	`, money.DecimalToNumeric(o.Subtotal), money.DecimalToNumeric(o.Discount),
		money.DecimalToNumeric(o.Tax), money.DecimalToNumeric(o.Total),
		string(o.Status), o.ClosedAt, o.ID,
	); err != nil {
		return err
	}
	for _, li := range o.Lines {
		voids, err := json.Marshal(li.Voids)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			update order_lines
			set voided_quantity = $1, subtotal = $2, status = $3, unit_cost = $4, cost_captured = $5, voids = $6
			where order_id = $7 and line_no = $8
		`, li.VoidedQuantity, money.DecimalToNumeric(li.Subtotal), string(li.Status),
			money.DecimalToNumeric(li.UnitCost), li.CostCaptured, voids, o.ID, li.ID,
		); err != nil {
			return err
		}
	}
	return nil
}

func (s *Postgres) GetTicket(ctx context.Context, ticketID uuid.UUID) (*kitchen.Ticket, error) {
	t := &kitchen.Ticket{ID: ticketID}
	err := s.DB.QueryRow(ctx, `
		select order_id, location_id, line_ids, created_at
		from kitchen_tickets where id = $1
	`, ticketID).Scan(&t.OrderID, &t.LocationID, &t.LineIDs, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTicketNotFound
		}
		return nil, err
	}
	return t, nil
}

func (s *Postgres) TicketsForOrder(ctx context.Context, orderID int64) ([]*kitchen.Ticket, error) {
	rows, err := s.DB.Query(ctx, `
		select id, location_id, line_ids, created_at
		from kitchen_tickets where order_id = $1
		order by created_at
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*kitchen.Ticket
	for rows.Next() {
		t := &kitchen.Ticket{OrderID: orderID}
		if err := rows.Scan(&t.ID, &t.LocationID, &t.LineIDs, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Postgres) ListPayments(ctx context.Context, orderID int64) ([]billing.Payment, error) {
	rows, err := s.DB.Query(ctx, `
		select id, method, amount, gratuity, status, provider_ref, failure_note, captured_at
		from payments where order_id = $1
		order by id
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []billing.Payment
	for rows.Next() {
		p := billing.Payment{OrderID: orderID}
		var (
			amount, gratuity pgtype.Numeric
			status           string
			providerRef      pgtype.Text
			failureNote      pgtype.Text
		)
		if err := rows.Scan(&p.ID, &p.Method, &amount, &gratuity, &status, &providerRef, &failureNote, &p.CapturedAt); err != nil {
			return nil, err
		}
		p.Amount = money.NumericToDecimal(amount)
		p.Gratuity = money.NumericToDecimal(gratuity)
		p.Status = billing.PaymentStatus(status)
		p.ProviderRef = providerRef.String
		p.FailureNote = failureNote.String
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Postgres) HasPosting(ctx context.Context, sourceEvent string) (bool, error) {
	var exists bool
	err := s.DB.QueryRow(ctx, `
		select exists(select 1 from ledger_postings where source_event = $1)
	`, sourceEvent).Scan(&exists)
	return exists, err
}

func (s *Postgres) ListPostings(ctx context.Context, orderID int64) ([]*ledger.Posting, error) {
	rows, err := s.DB.Query(ctx, `
		select id, source_event, kind, entries, posted_at
		from ledger_postings where order_id = $1
		order by posted_at
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*ledger.Posting
	for rows.Next() {
		p := &ledger.Posting{OrderID: orderID}
		var (
			kind    string
			entries []byte
		)
		if err := rows.Scan(&p.ID, &p.SourceEvent, &kind, &entries, &p.PostedAt); err != nil {
			return nil, err
		}
		p.Kind = ledger.PostingKind(kind)
		if err := json.Unmarshal(entries, &p.Entries); err != nil {
			return nil, fmt.Errorf("decode posting entries %s: %w", p.ID, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Postgres) GetIdempotentResult(ctx context.Context, token string) ([]byte, bool, error) {
	var result []byte
	err := s.DB.QueryRow(ctx, `select result from idempotency_keys where token = $1`, token).Scan(&result)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return result, true, nil
}

// Apply commits one engine mutation in a single transaction.
func (s *Postgres) Apply(ctx context.Context, m Mutation) error {
	return s.withTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if m.Order != nil {
			if err := s.saveOrder(ctx, tx, m.Order); err != nil {
				return err
			}
		}
		for _, t := range m.NewTickets {
			if _, err := tx.Exec(ctx, `
				insert into kitchen_tickets (id, order_id, location_id, line_ids, created_at)
				values ($1,$2,$3,$4,$5)
			`, t.ID, t.OrderID, t.LocationID, t.LineIDs, t.CreatedAt); err != nil {
				return err
			}
		}
		for _, e := range m.NewEvents {
			if _, err := tx.Exec(ctx, `
				insert into kitchen_events (id, ticket_id, order_id, event_type, token, station_id, occurred_at)
				values ($1,$2,$3,$4,$5,$6,$7)
			`, e.ID, e.TicketID, e.OrderID, string(e.Type), e.Token, e.StationID, e.OccurredAt); err != nil {
				return err
			}
		}
		for _, p := range m.NewPayments {
			if _, err := tx.Exec(ctx, `
				insert into payments (order_id, method, amount, gratuity, status, provider_ref, failure_note, captured_at)
				values ($1,$2,$3,$4,$5,$6,$7,$8)
			`, p.OrderID, p.Method, money.DecimalToNumeric(p.Amount), money.DecimalToNumeric(p.Gratuity),
				string(p.Status), p.ProviderRef, p.FailureNote, p.CapturedAt); err != nil {
				return err
			}
		}
		for _, p := range m.NewPostings {
			if !p.Balanced() {
				// Storage-layer backstop; the poster validates first.
				return fmt.Errorf("refusing to commit unbalanced posting %s", p.ID)
			}
			entries, err := json.Marshal(p.Entries)
			if err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, `
				insert into ledger_postings (id, order_id, source_event, kind, entries, posted_at)
				values ($1,$2,$3,$4,$5,$6)
			`, p.ID, p.OrderID, p.SourceEvent, string(p.Kind), entries, p.PostedAt); err != nil {
				return err
			}
		}
		if m.IdempotencyToken != "" {
			if _, err := tx.Exec(ctx, `
				insert into idempotency_keys (token, result, created_at)
				values ($1,$2,$3)
				on conflict (token) do nothing
			`, m.IdempotencyToken, m.IdempotencyResult, time.Now()); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Postgres) withTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
