package money

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// All monetary amounts in the engine are fixed-point decimals with two
// fractional digits. Floats never enter monetary math.

const Scale = 2

var Zero = decimal.Zero

func FromInt(value int64) decimal.Decimal {
	return decimal.NewFromInt(value)
}

// Parse accepts a decimal string ("12.50"). Rejects anything that does not
// parse exactly.
func Parse(value string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	return d, nil
}

// Round normalizes an amount to the engine scale, half-up.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Scale)
}

func IsNegative(d decimal.Decimal) bool {
	return d.Sign() < 0
}

func IsPositive(d decimal.Decimal) bool {
	return d.Sign() > 0
}

// NumericToDecimal converts a scanned pgtype.Numeric into a decimal. Invalid
// (NULL) numerics become zero, matching how the order tables default their
// monetary columns.
func NumericToDecimal(value pgtype.Numeric) decimal.Decimal {
	if !value.Valid {
		return decimal.Zero
	}
	if value.NaN || value.InfinityModifier != pgtype.Finite {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(value.Int, value.Exp)
}

// DecimalToNumeric converts a decimal into a pgtype.Numeric for binding.
func DecimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{
		Int:   d.Coefficient(),
		Exp:   d.Exponent(),
		Valid: true,
	}
}
