// Package lineitem implements the repair-order line item editing engine: the
// working set of billable rows, their totals, per-row validation and edit mode,
// and reconciliation of the edited set against what was loaded.
package lineitem

import (
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
)

// TempIDPrefix marks ids of rows created during an editing session that have
// no persisted record yet.
const TempIDPrefix = "tmp_"

// LineItem is one billable row on a repair order: a spare part usage, a labor
// charge, or both.
type LineItem struct {
	ID           string          `json:"id"`
	Description  string          `json:"description"`
	SparePartID  string          `json:"spare_part_id"`
	SparePartRef string          `json:"spare_part_ref"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price" validate:"gte=0"`
	LaborTypeID  string          `json:"labor_type_id"`
	LaborTypeRef string          `json:"labor_type_ref"`
	LaborCost    decimal.Decimal `json:"labor_cost" validate:"gte=0"`
	Total        decimal.Decimal `json:"total" validate:"gte=0"`
}

// NewTempID returns a fresh not-yet-persisted row id.
func NewTempID() string {
	return TempIDPrefix + ulid.Make().String()
}

// IsTempID reports whether id denotes a row without a persisted record.
// An empty id counts as not persisted.
func IsTempID(id string) bool {
	return id == "" || strings.HasPrefix(id, TempIDPrefix)
}

// IsPersisted reports whether the row claims a persisted record.
func (li LineItem) IsPersisted() bool {
	return !IsTempID(li.ID)
}

// newRow is the blank row produced by AddRow.
func newRow(id string) LineItem {
	return LineItem{
		ID:        id,
		Quantity:  1,
		UnitPrice: decimal.Zero,
		LaborCost: decimal.Zero,
		Total:     decimal.Zero,
	}
}

// IsPristine reports whether a new row is still exactly as AddRow created it.
// Persisted rows are never pristine.
func (li LineItem) IsPristine() bool {
	return !li.IsPersisted() &&
		li.Description == "" &&
		li.SparePartRef == "" &&
		li.LaborTypeRef == "" &&
		li.Quantity == 1 &&
		li.UnitPrice.IsZero() &&
		li.LaborCost.IsZero()
}

// PersistedItem is one record as returned by the load call. Absent numeric
// fields are Valid=false / nil; absent references are empty strings.
type PersistedItem struct {
	ID            string
	Description   string
	Quantity      *int
	UnitPrice     decimal.NullDecimal
	LaborCost     decimal.NullDecimal
	TotalAmount   decimal.NullDecimal
	SparePartID   string
	SparePartName string
	LaborTypeID   string
	LaborTypeName string
}

// fromPersisted maps a loaded record into a row. The stored total is not
// trusted; it is recomputed from the row's own fields.
func fromPersisted(p PersistedItem) LineItem {
	li := LineItem{
		ID:           p.ID,
		Description:  p.Description,
		SparePartID:  p.SparePartID,
		SparePartRef: p.SparePartName,
		LaborTypeID:  p.LaborTypeID,
		LaborTypeRef: p.LaborTypeName,
		UnitPrice:    decimal.Zero,
		LaborCost:    decimal.Zero,
	}
	if p.Quantity != nil {
		li.Quantity = *p.Quantity
	}
	if p.UnitPrice.Valid {
		li.UnitPrice = p.UnitPrice.Decimal
	}
	if p.LaborCost.Valid {
		li.LaborCost = p.LaborCost.Decimal
	}
	return withTotal(li)
}
