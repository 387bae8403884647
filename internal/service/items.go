package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/bengkel-pos/api/internal/database"
	"github.com/bengkel-pos/api/internal/enum"
	ierr "github.com/bengkel-pos/api/internal/errors"
	"github.com/bengkel-pos/api/internal/lineitem"
	"github.com/bengkel-pos/api/internal/logger"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// Errors returned by the repair order item service.
var (
	ErrInvalidRepairOrderID = ierr.NewError("invalid repair order id").
				WithHint("Invalid repair order ID").
				Mark(ierr.ErrValidation)
	ErrRepairOrderNotFound = ierr.NewError("repair order not found").
				WithHint("Repair order not found").
				Mark(ierr.ErrNotFound)
	ErrRepairOrderLocked = ierr.NewError("repair order is closed").
				WithHint("Line items of a paid or cancelled repair order cannot be changed").
				Mark(ierr.ErrInvalidOperation)
	ErrInvalidItemID = ierr.NewError("invalid item id").
				WithHint("Invalid line item ID").
				Mark(ierr.ErrValidation)
	ErrInvalidCatalogID = ierr.NewError("invalid catalog reference").
				WithHint("Invalid spare part or labor type ID").
				Mark(ierr.ErrValidation)
	ErrInvalidQuantity = ierr.NewError("quantity out of range").
				WithHint("Quantity must be a whole number from 1 to 2147483647").
				Mark(ierr.ErrValidation)
	ErrInvalidAmount = ierr.NewError("invalid amount").
				WithHint("Amounts must be non-negative with at most two decimals").
				Mark(ierr.ErrValidation)
	ErrItemTotalMismatch = ierr.NewError("item total does not match its inputs").
				WithHint("Item total must equal quantity x unit price + labor cost").
				Mark(ierr.ErrValidation)
	ErrOrderTotalMismatch = ierr.NewError("order total does not match its items").
				WithHint("Order total must equal the sum of the item totals").
				Mark(ierr.ErrValidation)
	ErrConflictingOperations = ierr.NewError("item is both updated and deleted").
					WithHint("An item cannot be updated and deleted in the same submission").
					Mark(ierr.ErrValidation)
	ErrItemNotFound = ierr.NewError("item no longer exists on the repair order").
			WithHint("The repair order changed since it was loaded, reload and retry").
			Mark(ierr.ErrConflict)
	ErrUnknownCatalogRef = ierr.NewError("referenced catalog entry does not exist").
				WithHint("A referenced spare part or labor type does not exist").
				Mark(ierr.ErrValidation)
)

// Stage names one step of applying a submission.
type Stage string

const (
	StageTotal      Stage = "total"
	StageDeletions  Stage = "deletions"
	StageUpdates    Stage = "updates"
	StageInsertions Stage = "insertions"
)

// StageError reports the step at which applying a submission failed. The
// transaction is rolled back, so none of the steps took effect.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// RepairOrderItemStore defines the DB methods needed to load and save line items.
// Satisfied by *database.Queries (and its WithTx variant).
type RepairOrderItemStore interface {
	GetRepairOrder(ctx context.Context, arg database.GetRepairOrderParams) (database.RepairOrder, error)
	GetRepairOrderForUpdate(ctx context.Context, arg database.GetRepairOrderParams) (database.RepairOrder, error)
	ListRepairOrderItems(ctx context.Context, repairOrderID uuid.UUID) ([]database.ListRepairOrderItemsRow, error)
	UpdateRepairOrderTotal(ctx context.Context, arg database.UpdateRepairOrderTotalParams) (database.RepairOrder, error)
	DeleteRepairOrderItems(ctx context.Context, arg database.DeleteRepairOrderItemsParams) (int64, error)
	UpdateRepairOrderItem(ctx context.Context, arg database.UpdateRepairOrderItemParams) (database.RepairOrderItem, error)
	CreateRepairOrderItem(ctx context.Context, arg database.CreateRepairOrderItemParams) (database.RepairOrderItem, error)
	CountGarageSpareParts(ctx context.Context, arg database.CountGarageSparePartsParams) (int64, error)
	CountGarageLaborTypes(ctx context.Context, arg database.CountGarageLaborTypesParams) (int64, error)
}

// NewRepairOrderItemStore creates a RepairOrderItemStore from a DBTX (pool or tx).
type NewRepairOrderItemStore func(db database.DBTX) RepairOrderItemStore

// SaveResult is the repair order after a submission was applied.
type SaveResult struct {
	Order        database.RepairOrder
	Created      []database.RepairOrderItem
	Updated      []database.RepairOrderItem
	DeletedCount int64
}

// RepairOrderItemService loads and persists repair order line items.
type RepairOrderItemService struct {
	pool     TxBeginner
	db       database.DBTX
	newStore NewRepairOrderItemStore
	log      *logger.Logger
}

// NewRepairOrderItemService creates a new RepairOrderItemService. Reads go
// through db, writes through transactions started on pool.
func NewRepairOrderItemService(pool TxBeginner, db database.DBTX, newStore NewRepairOrderItemStore, log *logger.Logger) *RepairOrderItemService {
	return &RepairOrderItemService{pool: pool, db: db, newStore: newStore, log: log}
}

// Loader binds the service to a garage for use by a lineitem.Store.
func (s *RepairOrderItemService) Loader(garageID uuid.UUID) lineitem.Loader {
	return lineitem.LoaderFunc(func(ctx context.Context, repairOrderID string) ([]lineitem.PersistedItem, error) {
		return s.LoadItems(ctx, garageID, repairOrderID)
	})
}

// GetRepairOrder returns the repair order if it belongs to the garage.
func (s *RepairOrderItemService) GetRepairOrder(ctx context.Context, garageID uuid.UUID, repairOrderID string) (database.RepairOrder, error) {
	id, err := uuid.Parse(repairOrderID)
	if err != nil {
		return database.RepairOrder{}, ErrInvalidRepairOrderID
	}
	order, err := s.newStore(s.db).GetRepairOrder(ctx, database.GetRepairOrderParams{ID: id, GarageID: garageID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.RepairOrder{}, ErrRepairOrderNotFound
		}
		return database.RepairOrder{}, fmt.Errorf("get repair order: %w", err)
	}
	return order, nil
}

// LoadItems returns the persisted items of a repair order in creation order.
func (s *RepairOrderItemService) LoadItems(ctx context.Context, garageID uuid.UUID, repairOrderID string) ([]lineitem.PersistedItem, error) {
	order, err := s.GetRepairOrder(ctx, garageID, repairOrderID)
	if err != nil {
		return nil, err
	}
	rows, err := s.newStore(s.db).ListRepairOrderItems(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("list repair order items: %w", err)
	}
	return lo.Map(rows, func(r database.ListRepairOrderItemsRow, _ int) lineitem.PersistedItem {
		return toPersistedItem(r)
	}), nil
}

func toPersistedItem(r database.ListRepairOrderItemsRow) lineitem.PersistedItem {
	q := int(r.Quantity)
	return lineitem.PersistedItem{
		ID:            r.ID.String(),
		Description:   r.Description,
		Quantity:      &q,
		UnitPrice:     nullDecimal(r.UnitPrice),
		LaborCost:     nullDecimal(r.LaborCost),
		TotalAmount:   nullDecimal(r.TotalAmount),
		SparePartID:   uuidString(r.SparePartID),
		SparePartName: r.SparePartName.String,
		LaborTypeID:   uuidString(r.LaborTypeID),
		LaborTypeName: r.LaborTypeName.String,
	}
}

// preparedItem is a validated submission item ready for insert or update.
type preparedItem struct {
	id          uuid.UUID
	description string
	sparePartID pgtype.UUID
	quantity    int32
	unitPrice   pgtype.Numeric
	laborTypeID pgtype.UUID
	laborCost   pgtype.Numeric
	total       pgtype.Numeric
}

type preparedSubmission struct {
	repairOrderID uuid.UUID
	total         pgtype.Numeric
	inserts       []preparedItem
	updates       []preparedItem
	deletes       []uuid.UUID
}

// SaveItems applies a submission to a repair order: the order total, then
// deletions, updates and insertions, all in one transaction. A failure inside
// the transaction is returned as a *StageError and nothing is persisted.
//
// The transaction is retried on serialization failures.
func (s *RepairOrderItemService) SaveItems(ctx context.Context, garageID uuid.UUID, sub lineitem.Submission) (*SaveResult, error) {
	prep, err := prepareSubmission(sub)
	if err != nil {
		return nil, err
	}

	result, err := withRetry(ctx, s.log, "save repair order items", func() (*SaveResult, error) {
		return s.saveItemsTx(ctx, garageID, prep)
	})
	if err != nil {
		return nil, err
	}
	s.log.Infow("repair order items saved",
		"repair_order_id", prep.repairOrderID,
		"created", len(result.Created),
		"updated", len(result.Updated),
		"deleted", result.DeletedCount,
		"total", sub.OrderTotal.StringFixed(2),
	)
	return result, nil
}

// classifyPgError maps constraint violations to validation errors.
func classifyPgError(err error) error {
	code, pgErr := pgErrorCode(err)
	switch code {
	case "23503":
		return ierr.WithError(err).
			WithHint("A referenced spare part or labor type does not exist").
			Mark(ErrUnknownCatalogRef)
	case "23514":
		return ierr.WithError(err).
			WithHintf("Value rejected by constraint %s", pgErr.ConstraintName).
			Mark(ierr.ErrValidation)
	}
	return err
}

func (s *RepairOrderItemService) saveItemsTx(ctx context.Context, garageID uuid.UUID, prep *preparedSubmission) (*SaveResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	// Lock the repair order so concurrent submissions serialize.
	order, err := store.GetRepairOrderForUpdate(ctx, database.GetRepairOrderParams{
		ID:       prep.repairOrderID,
		GarageID: garageID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRepairOrderNotFound
		}
		return nil, fmt.Errorf("get repair order: %w", err)
	}
	if !enum.LineItemsEditable(order.Status) {
		return nil, fmt.Errorf("%w: status %s", ErrRepairOrderLocked, order.Status)
	}

	if err := checkCatalogRefs(ctx, store, garageID, prep); err != nil {
		return nil, err
	}

	result := &SaveResult{}

	// --- Total ---
	result.Order, err = store.UpdateRepairOrderTotal(ctx, database.UpdateRepairOrderTotalParams{
		ID:          order.ID,
		TotalAmount: prep.total,
	})
	if err != nil {
		return nil, &StageError{Stage: StageTotal, Err: classifyPgError(err)}
	}

	// --- Deletions ---
	if len(prep.deletes) > 0 {
		n, err := store.DeleteRepairOrderItems(ctx, database.DeleteRepairOrderItemsParams{
			RepairOrderID: order.ID,
			IDs:           prep.deletes,
		})
		if err != nil {
			return nil, &StageError{Stage: StageDeletions, Err: classifyPgError(err)}
		}
		if n != int64(len(prep.deletes)) {
			return nil, &StageError{
				Stage: StageDeletions,
				Err:   fmt.Errorf("%w: deleted %d of %d", ErrItemNotFound, n, len(prep.deletes)),
			}
		}
		result.DeletedCount = n
	}

	// --- Updates ---
	for i, it := range prep.updates {
		item, err := store.UpdateRepairOrderItem(ctx, database.UpdateRepairOrderItemParams{
			ID:            it.id,
			RepairOrderID: order.ID,
			Description:   it.description,
			SparePartID:   it.sparePartID,
			Quantity:      it.quantity,
			UnitPrice:     it.unitPrice,
			LaborTypeID:   it.laborTypeID,
			LaborCost:     it.laborCost,
			TotalAmount:   it.total,
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				err = ErrItemNotFound
			}
			return nil, &StageError{
				Stage: StageUpdates,
				Err:   fmt.Errorf("updated_items[%d]: %w", i, classifyPgError(err)),
			}
		}
		result.Updated = append(result.Updated, item)
	}

	// --- Insertions ---
	for i, it := range prep.inserts {
		item, err := store.CreateRepairOrderItem(ctx, database.CreateRepairOrderItemParams{
			RepairOrderID: order.ID,
			Description:   it.description,
			SparePartID:   it.sparePartID,
			Quantity:      it.quantity,
			UnitPrice:     it.unitPrice,
			LaborTypeID:   it.laborTypeID,
			LaborCost:     it.laborCost,
			TotalAmount:   it.total,
		})
		if err != nil {
			return nil, &StageError{
				Stage: StageInsertions,
				Err:   fmt.Errorf("new_items[%d]: %w", i, classifyPgError(err)),
			}
		}
		result.Created = append(result.Created, item)
	}

	// --- Commit ---
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return result, nil
}

// prepareSubmission validates a submission before any database work.
func prepareSubmission(sub lineitem.Submission) (*preparedSubmission, error) {
	roID, err := uuid.Parse(sub.RepairOrderID)
	if err != nil {
		return nil, ErrInvalidRepairOrderID
	}
	if err := checkAmount(sub.OrderTotal); err != nil {
		return nil, fmt.Errorf("order_total: %w", err)
	}

	prep := &preparedSubmission{
		repairOrderID: roID,
		total:         database.DecimalToNumeric(sub.OrderTotal),
	}

	sum := decimal.Zero
	for i, item := range sub.NewItems {
		p, err := prepareItem(item, false)
		if err != nil {
			return nil, fmt.Errorf("new_items[%d]: %w", i, err)
		}
		prep.inserts = append(prep.inserts, p)
		sum = sum.Add(item.TotalAmount)
	}

	updated := make(map[uuid.UUID]bool, len(sub.UpdatedItems))
	for i, item := range sub.UpdatedItems {
		p, err := prepareItem(item, true)
		if err != nil {
			return nil, fmt.Errorf("updated_items[%d]: %w", i, err)
		}
		updated[p.id] = true
		prep.updates = append(prep.updates, p)
		sum = sum.Add(item.TotalAmount)
	}

	for i, raw := range lo.Uniq(sub.DeletedItemIDs) {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("deleted_item_ids[%d]: %w", i, ErrInvalidItemID)
		}
		if updated[id] {
			return nil, fmt.Errorf("deleted_item_ids[%d]: %w", i, ErrConflictingOperations)
		}
		prep.deletes = append(prep.deletes, id)
	}

	if !sum.Equal(sub.OrderTotal) {
		return nil, fmt.Errorf("%w: items sum to %s, order total is %s",
			ErrOrderTotalMismatch, sum.StringFixed(2), sub.OrderTotal.StringFixed(2))
	}

	return prep, nil
}

func prepareItem(item lineitem.ItemPayload, withID bool) (preparedItem, error) {
	var p preparedItem

	if withID {
		id, err := uuid.Parse(item.ID)
		if err != nil {
			return p, ErrInvalidItemID
		}
		p.id = id
	}

	if item.Quantity < 1 || item.Quantity > math.MaxInt32 {
		return p, ErrInvalidQuantity
	}
	for _, d := range []decimal.Decimal{item.UnitPrice, item.LaborCost, item.TotalAmount} {
		if err := checkAmount(d); err != nil {
			return p, err
		}
	}
	if !item.TotalAmount.Equal(lineitem.RowTotal(item.Quantity, item.UnitPrice, item.LaborCost)) {
		return p, ErrItemTotalMismatch
	}

	var err error
	if p.sparePartID, err = parseOptionalUUID(item.SparePartID); err != nil {
		return p, err
	}
	if p.laborTypeID, err = parseOptionalUUID(item.LaborTypeID); err != nil {
		return p, err
	}

	p.description = item.Description
	p.quantity = int32(item.Quantity)
	p.unitPrice = database.DecimalToNumeric(item.UnitPrice)
	p.laborCost = database.DecimalToNumeric(item.LaborCost)
	p.total = database.DecimalToNumeric(item.TotalAmount)
	return p, nil
}

// checkCatalogRefs rejects spare parts and labor types that do not belong to
// garageID. The foreign keys alone would accept another garage's catalog.
func checkCatalogRefs(ctx context.Context, store RepairOrderItemStore, garageID uuid.UUID, prep *preparedSubmission) error {
	items := append(slices.Clone(prep.updates), prep.inserts...)
	parts := catalogIDs(items, func(it preparedItem) pgtype.UUID { return it.sparePartID })
	labors := catalogIDs(items, func(it preparedItem) pgtype.UUID { return it.laborTypeID })

	if len(parts) > 0 {
		n, err := store.CountGarageSpareParts(ctx, database.CountGarageSparePartsParams{IDs: parts, GarageID: garageID})
		if err != nil {
			return fmt.Errorf("check spare parts: %w", err)
		}
		if n != int64(len(parts)) {
			return fmt.Errorf("%w: spare part outside garage %s", ErrUnknownCatalogRef, garageID)
		}
	}
	if len(labors) > 0 {
		n, err := store.CountGarageLaborTypes(ctx, database.CountGarageLaborTypesParams{IDs: labors, GarageID: garageID})
		if err != nil {
			return fmt.Errorf("check labor types: %w", err)
		}
		if n != int64(len(labors)) {
			return fmt.Errorf("%w: labor type outside garage %s", ErrUnknownCatalogRef, garageID)
		}
	}
	return nil
}

func catalogIDs(items []preparedItem, pick func(preparedItem) pgtype.UUID) []uuid.UUID {
	var ids []uuid.UUID
	for _, it := range items {
		if ref := pick(it); ref.Valid {
			ids = append(ids, uuid.UUID(ref.Bytes))
		}
	}
	return lo.Uniq(ids)
}

// checkAmount rejects negative amounts and fractions of a cent.
func checkAmount(d decimal.Decimal) error {
	if d.IsNegative() || !d.Equal(d.Round(2)) {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, d.String())
	}
	return nil
}

func parseOptionalUUID(s *string) (pgtype.UUID, error) {
	if s == nil || *s == "" {
		return pgtype.UUID{}, nil
	}
	id, err := uuid.Parse(*s)
	if err != nil {
		return pgtype.UUID{}, ErrInvalidCatalogID
	}
	return pgtype.UUID{Bytes: id, Valid: true}, nil
}

// --- Helpers ---

func nullDecimal(n pgtype.Numeric) decimal.NullDecimal {
	if !n.Valid {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: database.NumericToDecimal(n), Valid: true}
}

func uuidString(u pgtype.UUID) string {
	if !u.Valid {
		return ""
	}
	return uuid.UUID(u.Bytes).String()
}
