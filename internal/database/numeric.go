package database

import (
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// NumericToDecimal converts a NUMERIC column value. NULL, NaN and infinities read as zero.
func NumericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.NaN || n.InfinityModifier != pgtype.Finite || n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}

// DecimalToNumeric converts d rounded to cents.
func DecimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	r := d.Round(2)
	return pgtype.Numeric{Int: r.Coefficient(), Exp: r.Exponent(), Valid: true}
}

// UUIDOrNull wraps an optional uuid.
func UUIDOrNull(id *uuid.UUID) pgtype.UUID {
	if id == nil {
		return pgtype.UUID{}
	}
	return pgtype.UUID{Bytes: *id, Valid: true}
}

// TextOrNull maps "" to NULL.
func TextOrNull(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}
