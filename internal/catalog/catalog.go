package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"dinehall-order-engine/internal/money"
)

var ErrItemNotFound = errors.New("catalog item not found")

// PriceBook is the read-only catalog collaborator. Unit price is consulted
// at order creation; unit cost at close/void time. Both reads are treated as
// values: a later catalog change never alters a closed order.
type PriceBook interface {
	UnitPrice(ctx context.Context, itemID int64) (decimal.Decimal, error)
	UnitCost(ctx context.Context, itemID int64) (decimal.Decimal, error)
	ItemName(ctx context.Context, itemID int64) (string, error)
}

type StaticItem struct {
	Name  string
	Price decimal.Decimal
	Cost  decimal.Decimal
}

// StaticBook serves a fixed item table, for dev mode and tests.
type StaticBook struct {
	Items map[int64]StaticItem
}

func (b *StaticBook) UnitPrice(_ context.Context, itemID int64) (decimal.Decimal, error) {
	item, ok := b.Items[itemID]
	if !ok {
		return money.Zero, fmt.Errorf("%w: %d", ErrItemNotFound, itemID)
	}
	return item.Price, nil
}

func (b *StaticBook) UnitCost(_ context.Context, itemID int64) (decimal.Decimal, error) {
	item, ok := b.Items[itemID]
	if !ok {
		return money.Zero, fmt.Errorf("%w: %d", ErrItemNotFound, itemID)
	}
	return item.Cost, nil
}

func (b *StaticBook) ItemName(_ context.Context, itemID int64) (string, error) {
	item, ok := b.Items[itemID]
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrItemNotFound, itemID)
	}
	return item.Name, nil
}

// PGBook reads the catalog service's table directly. The engine never
// writes it.
type PGBook struct {
	DB *pgxpool.Pool
}

func (b *PGBook) UnitPrice(ctx context.Context, itemID int64) (decimal.Decimal, error) {
	return b.column(ctx, itemID, "unit_price")
}

func (b *PGBook) UnitCost(ctx context.Context, itemID int64) (decimal.Decimal, error) {
	return b.column(ctx, itemID, "unit_cost")
}

func (b *PGBook) ItemName(ctx context.Context, itemID int64) (string, error) {
	var name string
	if err := b.DB.QueryRow(ctx, `select name from catalog_items where id = $1`, itemID).Scan(&name); err != nil {
		return "", fmt.Errorf("%w: %d", ErrItemNotFound, itemID)
	}
	return name, nil
}

func (b *PGBook) column(ctx context.Context, itemID int64, column string) (decimal.Decimal, error) {
	var value string
	query := `select ` + column + `::text from catalog_items where id = $1`
	if err := b.DB.QueryRow(ctx, query, itemID).Scan(&value); err != nil {
		return money.Zero, fmt.Errorf("%w: %d", ErrItemNotFound, itemID)
	}
	return money.Parse(value)
}
