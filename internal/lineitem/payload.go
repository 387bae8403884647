package lineitem

import (
	"fmt"

	"github.com/bengkel-pos/api/internal/catalog"
	ierr "github.com/bengkel-pos/api/internal/errors"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

var ErrOrphanRows = ierr.NewError("rows reference items that were never loaded").
	WithHint("The editing session is out of sync, reload the repair order").
	Mark(ierr.ErrInvalidOperation)

// ItemPayload is a row normalised for persistence. ID is set on updates only.
type ItemPayload struct {
	ID          string          `json:"id,omitempty"`
	Description string          `json:"description"`
	SparePartID *string         `json:"spare_part_id"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LaborTypeID *string         `json:"labor_type_id"`
	LaborCost   decimal.Decimal `json:"labor_cost"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// Submission is the complete operation set for one repair order.
type Submission struct {
	RepairOrderID  string          `json:"repair_order_id"`
	OrderTotal     decimal.Decimal `json:"order_total"`
	NewItems       []ItemPayload   `json:"new_items"`
	UpdatedItems   []ItemPayload   `json:"updated_items"`
	DeletedItemIDs []string        `json:"deleted_item_ids"`
}

// ResolutionWarning records a catalog reference that could not be resolved to
// an id. The row is still submitted, with a null reference.
type ResolutionWarning struct {
	RowID  string `json:"row_id"`
	Kind   string `json:"kind"` // spare_part or labor_type
	Ref    string `json:"ref"`
	Reason string `json:"reason"`
}

// Resolution warning reasons.
const (
	ReasonNoLongerInCatalog = "no longer in catalog"
	ReasonAmbiguous         = "matches several catalog entries"
	ReasonNotInCatalog      = "not found in catalog"
)

func (w ResolutionWarning) String() string {
	return fmt.Sprintf("row %s: %s %q %s", w.RowID, w.Kind, w.Ref, w.Reason)
}

// BuildSubmission normalises the change set into a Submission. The order total
// is computed from rows, the complete working set.
//
// Catalog references resolve by id first. A row without an id falls back to an
// exact name match; ambiguous or unknown names produce a null id and a warning.
// With a nil snapshot ids are passed through unchecked.
func BuildSubmission(repairOrderID string, rows []LineItem, cs ChangeSet, snap *catalog.Snapshot) (Submission, []ResolutionWarning, error) {
	if cs.HasOrphans() {
		ids := lo.Map(cs.Orphans, func(li LineItem, _ int) string { return li.ID })
		return Submission{}, nil, ierr.WithError(ErrOrphanRows).
			WithReportableDetails(map[string]any{"row_ids": ids}).
			Mark(ErrOrphanRows)
	}

	var warnings []ResolutionWarning
	normalise := func(li LineItem, withID bool) ItemPayload {
		partID, w := resolveSparePart(snap, li)
		if w != nil {
			warnings = append(warnings, *w)
		}
		laborID, w := resolveLaborType(snap, li)
		if w != nil {
			warnings = append(warnings, *w)
		}
		p := ItemPayload{
			Description: li.Description,
			SparePartID: partID,
			Quantity:    li.Quantity,
			UnitPrice:   li.UnitPrice,
			LaborTypeID: laborID,
			LaborCost:   li.LaborCost,
			TotalAmount: RowTotal(li.Quantity, li.UnitPrice, li.LaborCost),
		}
		if withID {
			p.ID = li.ID
		}
		return p
	}

	sub := Submission{
		RepairOrderID:  repairOrderID,
		OrderTotal:     OrderTotal(rows),
		NewItems:       make([]ItemPayload, 0, len(cs.New)),
		UpdatedItems:   make([]ItemPayload, 0, len(cs.Updated)),
		DeletedItemIDs: append([]string{}, cs.DeletedIDs...),
	}
	for _, li := range cs.New {
		sub.NewItems = append(sub.NewItems, normalise(li, false))
	}
	for _, li := range cs.Updated {
		sub.UpdatedItems = append(sub.UpdatedItems, normalise(li, true))
	}
	return sub, warnings, nil
}

func resolveSparePart(snap *catalog.Snapshot, li LineItem) (*string, *ResolutionWarning) {
	warn := func(reason string) *ResolutionWarning {
		return &ResolutionWarning{RowID: li.ID, Kind: "spare_part", Ref: li.SparePartRef, Reason: reason}
	}
	if li.SparePartID != "" {
		if snap == nil {
			return lo.ToPtr(li.SparePartID), nil
		}
		if _, ok := snap.SparePart(li.SparePartID); ok {
			return lo.ToPtr(li.SparePartID), nil
		}
		return nil, warn(ReasonNoLongerInCatalog)
	}
	if blank(li.SparePartRef) {
		return nil, nil
	}
	res := snap.ResolveSparePart(li.SparePartRef)
	switch res.Status {
	case catalog.Matched:
		return lo.ToPtr(res.Entry.ID), nil
	case catalog.Ambiguous:
		return nil, warn(ReasonAmbiguous)
	}
	return nil, warn(ReasonNotInCatalog)
}

func resolveLaborType(snap *catalog.Snapshot, li LineItem) (*string, *ResolutionWarning) {
	warn := func(reason string) *ResolutionWarning {
		return &ResolutionWarning{RowID: li.ID, Kind: "labor_type", Ref: li.LaborTypeRef, Reason: reason}
	}
	if li.LaborTypeID != "" {
		if snap == nil {
			return lo.ToPtr(li.LaborTypeID), nil
		}
		if _, ok := snap.LaborType(li.LaborTypeID); ok {
			return lo.ToPtr(li.LaborTypeID), nil
		}
		return nil, warn(ReasonNoLongerInCatalog)
	}
	if blank(li.LaborTypeRef) {
		return nil, nil
	}
	res := snap.ResolveLaborType(li.LaborTypeRef)
	switch res.Status {
	case catalog.Matched:
		return lo.ToPtr(res.Entry.ID), nil
	case catalog.Ambiguous:
		return nil, warn(ReasonAmbiguous)
	}
	return nil, warn(ReasonNotInCatalog)
}
