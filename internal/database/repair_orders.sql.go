package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const repairOrderColumns = `id, garage_id, order_number, vehicle_plate, customer_name, status, total_amount, created_by, created_at, updated_at`

func scanRepairOrder(row interface{ Scan(...any) error }) (RepairOrder, error) {
	var i RepairOrder
	err := row.Scan(
		&i.ID,
		&i.GarageID,
		&i.OrderNumber,
		&i.VehiclePlate,
		&i.CustomerName,
		&i.Status,
		&i.TotalAmount,
		&i.CreatedBy,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createRepairOrder = `-- name: CreateRepairOrder :one
INSERT INTO repair_orders (garage_id, order_number, vehicle_plate, customer_name, created_by)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + repairOrderColumns

type CreateRepairOrderParams struct {
	GarageID     uuid.UUID   `json:"garage_id"`
	OrderNumber  string      `json:"order_number"`
	VehiclePlate string      `json:"vehicle_plate"`
	CustomerName pgtype.Text `json:"customer_name"`
	CreatedBy    uuid.UUID   `json:"created_by"`
}

func (q *Queries) CreateRepairOrder(ctx context.Context, arg CreateRepairOrderParams) (RepairOrder, error) {
	row := q.db.QueryRow(ctx, createRepairOrder,
		arg.GarageID,
		arg.OrderNumber,
		arg.VehiclePlate,
		arg.CustomerName,
		arg.CreatedBy,
	)
	return scanRepairOrder(row)
}

const getRepairOrder = `-- name: GetRepairOrder :one
SELECT ` + repairOrderColumns + `
FROM repair_orders
WHERE id = $1 AND garage_id = $2`

type GetRepairOrderParams struct {
	ID       uuid.UUID `json:"id"`
	GarageID uuid.UUID `json:"garage_id"`
}

func (q *Queries) GetRepairOrder(ctx context.Context, arg GetRepairOrderParams) (RepairOrder, error) {
	row := q.db.QueryRow(ctx, getRepairOrder, arg.ID, arg.GarageID)
	return scanRepairOrder(row)
}

const getRepairOrderForUpdate = `-- name: GetRepairOrderForUpdate :one
SELECT ` + repairOrderColumns + `
FROM repair_orders
WHERE id = $1 AND garage_id = $2
FOR UPDATE`

func (q *Queries) GetRepairOrderForUpdate(ctx context.Context, arg GetRepairOrderParams) (RepairOrder, error) {
	row := q.db.QueryRow(ctx, getRepairOrderForUpdate, arg.ID, arg.GarageID)
	return scanRepairOrder(row)
}

const updateRepairOrderTotal = `-- name: UpdateRepairOrderTotal :one
UPDATE repair_orders
SET total_amount = $2, updated_at = now()
WHERE id = $1
RETURNING ` + repairOrderColumns

type UpdateRepairOrderTotalParams struct {
	ID          uuid.UUID      `json:"id"`
	TotalAmount pgtype.Numeric `json:"total_amount"`
}

func (q *Queries) UpdateRepairOrderTotal(ctx context.Context, arg UpdateRepairOrderTotalParams) (RepairOrder, error) {
	row := q.db.QueryRow(ctx, updateRepairOrderTotal, arg.ID, arg.TotalAmount)
	return scanRepairOrder(row)
}

const markRepairOrderPaid = `-- name: MarkRepairOrderPaid :one
UPDATE repair_orders
SET status = 'PAID', updated_at = now()
WHERE id = $1 AND status NOT IN ('PAID', 'CANCELLED')
RETURNING ` + repairOrderColumns

func (q *Queries) MarkRepairOrderPaid(ctx context.Context, id uuid.UUID) (RepairOrder, error) {
	row := q.db.QueryRow(ctx, markRepairOrderPaid, id)
	return scanRepairOrder(row)
}
