package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type Garage struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type SparePart struct {
	ID        uuid.UUID      `json:"id"`
	GarageID  uuid.UUID      `json:"garage_id"`
	Name      string         `json:"name"`
	Price     pgtype.Numeric `json:"price"`
	IsActive  bool           `json:"is_active"`
	CreatedAt time.Time      `json:"created_at"`
}

type LaborType struct {
	ID        uuid.UUID      `json:"id"`
	GarageID  uuid.UUID      `json:"garage_id"`
	Name      string         `json:"name"`
	Cost      pgtype.Numeric `json:"cost"`
	IsActive  bool           `json:"is_active"`
	CreatedAt time.Time      `json:"created_at"`
}

type RepairOrder struct {
	ID           uuid.UUID      `json:"id"`
	GarageID     uuid.UUID      `json:"garage_id"`
	OrderNumber  string         `json:"order_number"`
	VehiclePlate string         `json:"vehicle_plate"`
	CustomerName pgtype.Text    `json:"customer_name"`
	Status       string         `json:"status"`
	TotalAmount  pgtype.Numeric `json:"total_amount"`
	CreatedBy    uuid.UUID      `json:"created_by"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

type RepairOrderItem struct {
	ID            uuid.UUID      `json:"id"`
	RepairOrderID uuid.UUID      `json:"repair_order_id"`
	Description   string         `json:"description"`
	SparePartID   pgtype.UUID    `json:"spare_part_id"`
	Quantity      int32          `json:"quantity"`
	UnitPrice     pgtype.Numeric `json:"unit_price"`
	LaborTypeID   pgtype.UUID    `json:"labor_type_id"`
	LaborCost     pgtype.Numeric `json:"labor_cost"`
	TotalAmount   pgtype.Numeric `json:"total_amount"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

type Payment struct {
	ID              uuid.UUID      `json:"id"`
	RepairOrderID   uuid.UUID      `json:"repair_order_id"`
	PaymentMethod   string         `json:"payment_method"`
	Amount          pgtype.Numeric `json:"amount"`
	Status          string         `json:"status"`
	ReferenceNumber pgtype.Text    `json:"reference_number"`
	AmountReceived  pgtype.Numeric `json:"amount_received"`
	ChangeAmount    pgtype.Numeric `json:"change_amount"`
	ProcessedBy     uuid.UUID      `json:"processed_by"`
	ProcessedAt     time.Time      `json:"processed_at"`
}
