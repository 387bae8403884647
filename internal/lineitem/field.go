package lineitem

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/bengkel-pos/api/internal/catalog"
	ierr "github.com/bengkel-pos/api/internal/errors"
	"github.com/shopspring/decimal"
)

// Field names a user-editable column of a row.
type Field string

const (
	FieldDescription  Field = "description"
	FieldSparePartRef Field = "spare_part_ref"
	FieldSparePartID  Field = "spare_part_id"
	FieldQuantity     Field = "quantity"
	FieldUnitPrice    Field = "unit_price"
	FieldLaborTypeRef Field = "labor_type_ref"
	FieldLaborTypeID  Field = "labor_type_id"
	FieldLaborCost    Field = "labor_cost"
	FieldTotal        Field = "total"
)

var (
	ErrUnknownField = ierr.NewError("unknown field").
			WithHint("The field does not exist on a line item").
			Mark(ierr.ErrValidation)
	ErrReadOnlyField = ierr.NewError("read-only field").
				WithHint("The total is calculated and cannot be edited").
				Mark(ierr.ErrValidation)
	ErrInvalidValue = ierr.NewError("invalid value").
			WithHint("The value has the wrong type for this field").
			Mark(ierr.ErrValidation)
)

// ParseField maps a wire name to a Field.
func ParseField(s string) (Field, error) {
	f := Field(s)
	switch f {
	case FieldDescription, FieldSparePartRef, FieldSparePartID, FieldQuantity,
		FieldUnitPrice, FieldLaborTypeRef, FieldLaborTypeID, FieldLaborCost, FieldTotal:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownField, s)
}

// affectsTotal reports whether changing f changes the row total.
func (f Field) affectsTotal() bool {
	return f == FieldQuantity || f == FieldUnitPrice || f == FieldLaborCost
}

// ApplyField returns row with field set to value and its total recomputed.
// row itself is not modified.
//
// Text fields accept strings. quantity accepts any integral number or numeric
// string; unit_price and labor_cost accept decimals, numbers or numeric strings.
// Out-of-range values (negative prices, zero quantity) are accepted here and
// reported by the validator, so inline errors can be shown while typing.
func ApplyField(row LineItem, field Field, value any) (LineItem, error) {
	switch field {
	case FieldDescription:
		s, err := toString(field, value)
		if err != nil {
			return row, err
		}
		row.Description = s
	case FieldSparePartRef:
		s, err := toString(field, value)
		if err != nil {
			return row, err
		}
		if s != row.SparePartRef {
			row.SparePartRef = s
			row.SparePartID = ""
		}
	case FieldSparePartID:
		s, err := toString(field, value)
		if err != nil {
			return row, err
		}
		row.SparePartID = s
	case FieldLaborTypeRef:
		s, err := toString(field, value)
		if err != nil {
			return row, err
		}
		if s != row.LaborTypeRef {
			row.LaborTypeRef = s
			row.LaborTypeID = ""
		}
	case FieldLaborTypeID:
		s, err := toString(field, value)
		if err != nil {
			return row, err
		}
		row.LaborTypeID = s
	case FieldQuantity:
		n, err := toInt(field, value)
		if err != nil {
			return row, err
		}
		row.Quantity = n
	case FieldUnitPrice:
		d, err := toDecimal(field, value)
		if err != nil {
			return row, err
		}
		row.UnitPrice = d
	case FieldLaborCost:
		d, err := toDecimal(field, value)
		if err != nil {
			return row, err
		}
		row.LaborCost = d
	case FieldTotal:
		return row, ErrReadOnlyField
	default:
		return row, fmt.Errorf("%w: %q", ErrUnknownField, string(field))
	}
	return withTotal(row), nil
}

// SelectSparePart fills the row's spare part reference, id and unit price from a catalog entry.
func SelectSparePart(row LineItem, p catalog.SparePart) LineItem {
	row.SparePartID = p.ID
	row.SparePartRef = p.Name
	row.UnitPrice = p.Price
	return withTotal(row)
}

// SelectLaborType fills the row's labor type reference, id and cost from a catalog entry.
func SelectLaborType(row LineItem, l catalog.LaborType) LineItem {
	row.LaborTypeID = l.ID
	row.LaborTypeRef = l.Name
	row.LaborCost = l.Cost
	return withTotal(row)
}

// autofill applies catalog defaults after field changed prev into next.
// Selections that do not resolve to exactly one entry leave the id empty.
func autofill(snap *catalog.Snapshot, prev, next LineItem, field Field) LineItem {
	if snap == nil {
		return next
	}
	switch field {
	case FieldSparePartID:
		if next.SparePartID != prev.SparePartID {
			if p, ok := snap.SparePart(next.SparePartID); ok {
				return SelectSparePart(next, p)
			}
		}
	case FieldSparePartRef:
		if next.SparePartRef != prev.SparePartRef {
			if res := snap.ResolveSparePart(next.SparePartRef); res.Status == catalog.Matched {
				return SelectSparePart(next, res.Entry)
			}
		}
	case FieldLaborTypeID:
		if next.LaborTypeID != prev.LaborTypeID {
			if l, ok := snap.LaborType(next.LaborTypeID); ok {
				return SelectLaborType(next, l)
			}
		}
	case FieldLaborTypeRef:
		if next.LaborTypeRef != prev.LaborTypeRef {
			if res := snap.ResolveLaborType(next.LaborTypeRef); res.Status == catalog.Matched {
				return SelectLaborType(next, res.Entry)
			}
		}
	}
	return next
}

func toString(field Field, value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case nil:
		return "", nil
	}
	return "", invalidValue(field, "text", value)
}

func invalidValue(field Field, want string, value any) error {
	return fmt.Errorf("%w: %s expects %s, got %v", ErrInvalidValue, field, want, value)
}

// toInt accepts whole numbers that fit the stored int4 column.
func toInt(field Field, value any) (int, error) {
	bad := invalidValue(field, "a whole number", value)
	var n int64
	switch v := value.(type) {
	case int:
		n = int64(v)
	case int32:
		n = int64(v)
	case int64:
		n = v
	case float64:
		if v != math.Trunc(v) || v < math.MinInt32 || v > math.MaxInt32 {
			return 0, bad
		}
		n = int64(v)
	case json.Number:
		i, err := v.Int64()
		if err != nil {
			return 0, bad
		}
		n = i
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, bad
		}
		n = i
	case decimal.Decimal:
		if !v.IsInteger() || v.LessThan(decimal.NewFromInt(math.MinInt32)) || v.GreaterThan(decimal.NewFromInt(math.MaxInt32)) {
			return 0, bad
		}
		n = v.IntPart()
	default:
		return 0, bad
	}
	if n < math.MinInt32 || n > math.MaxInt32 {
		return 0, bad
	}
	return int(n), nil
}

func toDecimal(field Field, value any) (decimal.Decimal, error) {
	bad := invalidValue(field, "an amount", value)
	switch v := value.(type) {
	case decimal.Decimal:
		return v, nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int32:
		return decimal.NewFromInt32(v), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case float64:
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return decimal.Zero, bad
		}
		return decimal.NewFromFloat(v), nil
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		if err != nil {
			return decimal.Zero, bad
		}
		return d, nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return decimal.Zero, nil
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, bad
		}
		return d, nil
	}
	return decimal.Zero, bad
}
