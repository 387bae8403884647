package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const repairOrderItemColumns = `id, repair_order_id, description, spare_part_id, quantity, unit_price, labor_type_id, labor_cost, total_amount, created_at, updated_at`

func scanRepairOrderItem(row interface{ Scan(...any) error }) (RepairOrderItem, error) {
	var i RepairOrderItem
	err := row.Scan(
		&i.ID,
		&i.RepairOrderID,
		&i.Description,
		&i.SparePartID,
		&i.Quantity,
		&i.UnitPrice,
		&i.LaborTypeID,
		&i.LaborCost,
		&i.TotalAmount,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listRepairOrderItems = `-- name: ListRepairOrderItems :many
SELECT
    i.id, i.repair_order_id, i.description, i.spare_part_id, sp.name AS spare_part_name,
    i.quantity, i.unit_price, i.labor_type_id, lt.name AS labor_type_name,
    i.labor_cost, i.total_amount, i.created_at, i.updated_at
FROM repair_order_items i
LEFT JOIN spare_parts sp ON sp.id = i.spare_part_id
LEFT JOIN labor_types lt ON lt.id = i.labor_type_id
WHERE i.repair_order_id = $1
ORDER BY i.created_at, i.id`

type ListRepairOrderItemsRow struct {
	ID            uuid.UUID      `json:"id"`
	RepairOrderID uuid.UUID      `json:"repair_order_id"`
	Description   string         `json:"description"`
	SparePartID   pgtype.UUID    `json:"spare_part_id"`
	SparePartName pgtype.Text    `json:"spare_part_name"`
	Quantity      int32          `json:"quantity"`
	UnitPrice     pgtype.Numeric `json:"unit_price"`
	LaborTypeID   pgtype.UUID    `json:"labor_type_id"`
	LaborTypeName pgtype.Text    `json:"labor_type_name"`
	LaborCost     pgtype.Numeric `json:"labor_cost"`
	TotalAmount   pgtype.Numeric `json:"total_amount"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

func (q *Queries) ListRepairOrderItems(ctx context.Context, repairOrderID uuid.UUID) ([]ListRepairOrderItemsRow, error) {
	rows, err := q.db.Query(ctx, listRepairOrderItems, repairOrderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []ListRepairOrderItemsRow{}
	for rows.Next() {
		var i ListRepairOrderItemsRow
		if err := rows.Scan(
			&i.ID,
			&i.RepairOrderID,
			&i.Description,
			&i.SparePartID,
			&i.SparePartName,
			&i.Quantity,
			&i.UnitPrice,
			&i.LaborTypeID,
			&i.LaborTypeName,
			&i.LaborCost,
			&i.TotalAmount,
			&i.CreatedAt,
			&i.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createRepairOrderItem = `-- name: CreateRepairOrderItem :one
INSERT INTO repair_order_items (
    repair_order_id, description, spare_part_id, quantity, unit_price, labor_type_id, labor_cost, total_amount
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + repairOrderItemColumns

type CreateRepairOrderItemParams struct {
	RepairOrderID uuid.UUID      `json:"repair_order_id"`
	Description   string         `json:"description"`
	SparePartID   pgtype.UUID    `json:"spare_part_id"`
	Quantity      int32          `json:"quantity"`
	UnitPrice     pgtype.Numeric `json:"unit_price"`
	LaborTypeID   pgtype.UUID    `json:"labor_type_id"`
	LaborCost     pgtype.Numeric `json:"labor_cost"`
	TotalAmount   pgtype.Numeric `json:"total_amount"`
}

func (q *Queries) CreateRepairOrderItem(ctx context.Context, arg CreateRepairOrderItemParams) (RepairOrderItem, error) {
	row := q.db.QueryRow(ctx, createRepairOrderItem,
		arg.RepairOrderID,
		arg.Description,
		arg.SparePartID,
		arg.Quantity,
		arg.UnitPrice,
		arg.LaborTypeID,
		arg.LaborCost,
		arg.TotalAmount,
	)
	return scanRepairOrderItem(row)
}

const updateRepairOrderItem = `-- name: UpdateRepairOrderItem :one
UPDATE repair_order_items
SET description = $3,
    spare_part_id = $4,
    quantity = $5,
    unit_price = $6,
    labor_type_id = $7,
    labor_cost = $8,
    total_amount = $9,
    updated_at = now()
WHERE id = $1 AND repair_order_id = $2
RETURNING ` + repairOrderItemColumns

type UpdateRepairOrderItemParams struct {
	ID            uuid.UUID      `json:"id"`
	RepairOrderID uuid.UUID      `json:"repair_order_id"`
	Description   string         `json:"description"`
	SparePartID   pgtype.UUID    `json:"spare_part_id"`
	Quantity      int32          `json:"quantity"`
	UnitPrice     pgtype.Numeric `json:"unit_price"`
	LaborTypeID   pgtype.UUID    `json:"labor_type_id"`
	LaborCost     pgtype.Numeric `json:"labor_cost"`
	TotalAmount   pgtype.Numeric `json:"total_amount"`
}

func (q *Queries) UpdateRepairOrderItem(ctx context.Context, arg UpdateRepairOrderItemParams) (RepairOrderItem, error) {
	row := q.db.QueryRow(ctx, updateRepairOrderItem,
		arg.ID,
		arg.RepairOrderID,
		arg.Description,
		arg.SparePartID,
		arg.Quantity,
		arg.UnitPrice,
		arg.LaborTypeID,
		arg.LaborCost,
		arg.TotalAmount,
	)
	return scanRepairOrderItem(row)
}

const deleteRepairOrderItems = `-- name: DeleteRepairOrderItems :execrows
DELETE FROM repair_order_items
WHERE repair_order_id = $1 AND id = ANY($2::uuid[])`

type DeleteRepairOrderItemsParams struct {
	RepairOrderID uuid.UUID   `json:"repair_order_id"`
	IDs           []uuid.UUID `json:"ids"`
}

func (q *Queries) DeleteRepairOrderItems(ctx context.Context, arg DeleteRepairOrderItemsParams) (int64, error) {
	result, err := q.db.Exec(ctx, deleteRepairOrderItems, arg.RepairOrderID, arg.IDs)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
