package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const createGarage = `-- name: CreateGarage :one
INSERT INTO garages (name) VALUES ($1)
RETURNING id, name, created_at`

func (q *Queries) CreateGarage(ctx context.Context, name string) (Garage, error) {
	row := q.db.QueryRow(ctx, createGarage, name)
	var i Garage
	err := row.Scan(&i.ID, &i.Name, &i.CreatedAt)
	return i, err
}

const listSpareParts = `-- name: ListSpareParts :many
SELECT id, garage_id, name, price, is_active, created_at
FROM spare_parts
WHERE garage_id = $1 AND is_active = true
ORDER BY name, id`

func (q *Queries) ListSpareParts(ctx context.Context, garageID uuid.UUID) ([]SparePart, error) {
	rows, err := q.db.Query(ctx, listSpareParts, garageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []SparePart{}
	for rows.Next() {
		var i SparePart
		if err := rows.Scan(
			&i.ID,
			&i.GarageID,
			&i.Name,
			&i.Price,
			&i.IsActive,
			&i.CreatedAt,
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

const createSparePart = `-- name: CreateSparePart :one
INSERT INTO spare_parts (garage_id, name, price)
VALUES ($1, $2, $3)
RETURNING id, garage_id, name, price, is_active, created_at`

type CreateSparePartParams struct {
	GarageID uuid.UUID      `json:"garage_id"`
	Name     string         `json:"name"`
	Price    pgtype.Numeric `json:"price"`
}

func (q *Queries) CreateSparePart(ctx context.Context, arg CreateSparePartParams) (SparePart, error) {
	row := q.db.QueryRow(ctx, createSparePart, arg.GarageID, arg.Name, arg.Price)
	var i SparePart
	err := row.Scan(
		&i.ID,
		&i.GarageID,
		&i.Name,
		&i.Price,
		&i.IsActive,
		&i.CreatedAt,
	)
	return i, err
}

const listLaborTypes = `-- name: ListLaborTypes :many
SELECT id, garage_id, name, cost, is_active, created_at
FROM labor_types
WHERE garage_id = $1 AND is_active = true
ORDER BY name, id`

func (q *Queries) ListLaborTypes(ctx context.Context, garageID uuid.UUID) ([]LaborType, error) {
	rows, err := q.db.Query(ctx, listLaborTypes, garageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []LaborType{}
	for rows.Next() {
		var i LaborType
		if err := rows.Scan(
			&i.ID,
			&i.GarageID,
			&i.Name,
			&i.Cost,
			&i.IsActive,
			&i.CreatedAt,
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

const createLaborType = `-- name: CreateLaborType :one
INSERT INTO labor_types (garage_id, name, cost)
VALUES ($1, $2, $3)
RETURNING id, garage_id, name, cost, is_active, created_at`

type CreateLaborTypeParams struct {
	GarageID uuid.UUID      `json:"garage_id"`
	Name     string         `json:"name"`
	Cost     pgtype.Numeric `json:"cost"`
}

func (q *Queries) CreateLaborType(ctx context.Context, arg CreateLaborTypeParams) (LaborType, error) {
	row := q.db.QueryRow(ctx, createLaborType, arg.GarageID, arg.Name, arg.Cost)
	var i LaborType
	err := row.Scan(
		&i.ID,
		&i.GarageID,
		&i.Name,
		&i.Cost,
		&i.IsActive,
		&i.CreatedAt,
	)
	return i, err
}

const countGarageSpareParts = `-- name: CountGarageSpareParts :one
SELECT count(*) FROM spare_parts
WHERE id = ANY($1::uuid[]) AND garage_id = $2`

type CountGarageSparePartsParams struct {
	IDs      []uuid.UUID `json:"ids"`
	GarageID uuid.UUID   `json:"garage_id"`
}

func (q *Queries) CountGarageSpareParts(ctx context.Context, arg CountGarageSparePartsParams) (int64, error) {
	row := q.db.QueryRow(ctx, countGarageSpareParts, arg.IDs, arg.GarageID)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const countGarageLaborTypes = `-- name: CountGarageLaborTypes :one
SELECT count(*) FROM labor_types
WHERE id = ANY($1::uuid[]) AND garage_id = $2`

type CountGarageLaborTypesParams struct {
	IDs      []uuid.UUID `json:"ids"`
	GarageID uuid.UUID   `json:"garage_id"`
}

func (q *Queries) CountGarageLaborTypes(ctx context.Context, arg CountGarageLaborTypesParams) (int64, error) {
	row := q.db.QueryRow(ctx, countGarageLaborTypes, arg.IDs, arg.GarageID)
	var count int64
	err := row.Scan(&count)
	return count, err
}
