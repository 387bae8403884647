package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const paymentColumns = `id, repair_order_id, payment_method, amount, status, reference_number, amount_received, change_amount, processed_by, processed_at`

func scanPayment(row interface{ Scan(...any) error }) (Payment, error) {
	var i Payment
	err := row.Scan(
		&i.ID,
		&i.RepairOrderID,
		&i.PaymentMethod,
		&i.Amount,
		&i.Status,
		&i.ReferenceNumber,
		&i.AmountReceived,
		&i.ChangeAmount,
		&i.ProcessedBy,
		&i.ProcessedAt,
	)
	return i, err
}

const createPayment = `-- name: CreatePayment :one
INSERT INTO payments (repair_order_id, payment_method, amount, status, reference_number, amount_received, change_amount, processed_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + paymentColumns

type CreatePaymentParams struct {
	RepairOrderID   uuid.UUID      `json:"repair_order_id"`
	PaymentMethod   string         `json:"payment_method"`
	Amount          pgtype.Numeric `json:"amount"`
	Status          string         `json:"status"`
	ReferenceNumber pgtype.Text    `json:"reference_number"`
	AmountReceived  pgtype.Numeric `json:"amount_received"`
	ChangeAmount    pgtype.Numeric `json:"change_amount"`
	ProcessedBy     uuid.UUID      `json:"processed_by"`
}

func (q *Queries) CreatePayment(ctx context.Context, arg CreatePaymentParams) (Payment, error) {
	row := q.db.QueryRow(ctx, createPayment,
		arg.RepairOrderID,
		arg.PaymentMethod,
		arg.Amount,
		arg.Status,
		arg.ReferenceNumber,
		arg.AmountReceived,
		arg.ChangeAmount,
		arg.ProcessedBy,
	)
	return scanPayment(row)
}

const listPaymentsByRepairOrder = `-- name: ListPaymentsByRepairOrder :many
SELECT ` + paymentColumns + `
FROM payments
WHERE repair_order_id = $1
ORDER BY processed_at`

func (q *Queries) ListPaymentsByRepairOrder(ctx context.Context, repairOrderID uuid.UUID) ([]Payment, error) {
	rows, err := q.db.Query(ctx, listPaymentsByRepairOrder, repairOrderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Payment{}
	for rows.Next() {
		i, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const sumPaymentsByRepairOrder = `-- name: SumPaymentsByRepairOrder :one
SELECT COALESCE(SUM(amount), 0)::numeric
FROM payments
WHERE repair_order_id = $1 AND status = 'COMPLETED'`

func (q *Queries) SumPaymentsByRepairOrder(ctx context.Context, repairOrderID uuid.UUID) (pgtype.Numeric, error) {
	row := q.db.QueryRow(ctx, sumPaymentsByRepairOrder, repairOrderID)
	var total pgtype.Numeric
	err := row.Scan(&total)
	return total, err
}
