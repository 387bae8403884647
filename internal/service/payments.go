package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/bengkel-pos/api/internal/database"
	"github.com/bengkel-pos/api/internal/enum"
	ierr "github.com/bengkel-pos/api/internal/errors"
	"github.com/bengkel-pos/api/internal/logger"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// Errors returned by the payment service.
var (
	ErrPaymentMethodRequired = ierr.NewError("payment_method is required").
					WithHint("payment_method is required").
					Mark(ierr.ErrValidation)
	ErrInvalidPaymentMethod = ierr.NewError("invalid payment_method").
				WithHint("invalid payment_method").
				Mark(ierr.ErrValidation)
	ErrPaymentAmountRequired = ierr.NewError("amount is required").
					WithHint("amount is required").
					Mark(ierr.ErrValidation)
	ErrInvalidPaymentAmount = ierr.NewError("amount must be positive").
				WithHint("amount must be positive").
				Mark(ierr.ErrValidation)
	ErrAmountReceivedRequired = ierr.NewError("amount_received is required for CASH payments").
					WithHint("amount_received is required for CASH payments").
					Mark(ierr.ErrValidation)
	ErrInvalidAmountReceived = ierr.NewError("invalid amount_received").
					WithHint("invalid amount_received").
					Mark(ierr.ErrValidation)
	ErrInsufficientCash = ierr.NewError("amount_received must be >= amount").
				WithHint("amount_received must be >= amount").
				Mark(ierr.ErrValidation)
	ErrRepairOrderClosed = ierr.NewError("repair order does not accept payments").
				WithHint("cannot add payment to a paid or cancelled repair order").
				Mark(ierr.ErrConflict)
	ErrAlreadyPaid = ierr.NewError("repair order is already fully paid").
			WithHint("repair order is already fully paid").
			Mark(ierr.ErrConflict)
	ErrOverpayment = ierr.NewError("payment exceeds remaining balance").
			WithHint("payment exceeds remaining balance").
			Mark(ierr.ErrConflict)
)

// PaymentStore defines the DB methods needed to take payments.
// Satisfied by *database.Queries (and its WithTx variant).
type PaymentStore interface {
	GetRepairOrder(ctx context.Context, arg database.GetRepairOrderParams) (database.RepairOrder, error)
	GetRepairOrderForUpdate(ctx context.Context, arg database.GetRepairOrderParams) (database.RepairOrder, error)
	ListPaymentsByRepairOrder(ctx context.Context, repairOrderID uuid.UUID) ([]database.Payment, error)
	CreatePayment(ctx context.Context, arg database.CreatePaymentParams) (database.Payment, error)
	SumPaymentsByRepairOrder(ctx context.Context, repairOrderID uuid.UUID) (pgtype.Numeric, error)
	MarkRepairOrderPaid(ctx context.Context, id uuid.UUID) (database.RepairOrder, error)
}

// NewPaymentStore creates a PaymentStore from a DBTX (pool or tx).
type NewPaymentStore func(db database.DBTX) PaymentStore

// AddPaymentRequest is the input for recording a payment.
type AddPaymentRequest struct {
	GarageID        uuid.UUID
	RepairOrderID   uuid.UUID
	ProcessedBy     uuid.UUID
	PaymentMethod   string
	Amount          string
	AmountReceived  string
	ReferenceNumber string
}

// AddPaymentResult is the created payment with the repair order after it.
type AddPaymentResult struct {
	Payment   database.Payment
	Order     database.RepairOrder
	TotalPaid decimal.Decimal
	Remaining decimal.Decimal
}

// PaymentService records payments against repair orders.
type PaymentService struct {
	pool     TxBeginner
	db       database.DBTX
	newStore NewPaymentStore
	log      *logger.Logger
}

// NewPaymentService creates a new PaymentService.
func NewPaymentService(pool TxBeginner, db database.DBTX, newStore NewPaymentStore, log *logger.Logger) *PaymentService {
	return &PaymentService{pool: pool, db: db, newStore: newStore, log: log}
}

// AddPayment records a completed payment. Once completed payments cover the
// order total the repair order is marked PAID.
func (s *PaymentService) AddPayment(ctx context.Context, req AddPaymentRequest) (*AddPaymentResult, error) {
	// --- Validate request ---
	if req.PaymentMethod == "" {
		return nil, ErrPaymentMethodRequired
	}
	if !enum.IsValidPaymentMethod(req.PaymentMethod) {
		return nil, ErrInvalidPaymentMethod
	}
	if req.Amount == "" {
		return nil, ErrPaymentAmountRequired
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || !amount.IsPositive() {
		return nil, ErrInvalidPaymentAmount
	}

	// Cash payments record what was handed over and the change due
	var amountReceived, changeAmount pgtype.Numeric
	if req.PaymentMethod == enum.PaymentMethodCash {
		if req.AmountReceived == "" {
			return nil, ErrAmountReceivedRequired
		}
		received, err := decimal.NewFromString(req.AmountReceived)
		if err != nil {
			return nil, ErrInvalidAmountReceived
		}
		if received.LessThan(amount) {
			return nil, ErrInsufficientCash
		}
		amountReceived = database.DecimalToNumeric(received)
		changeAmount = database.DecimalToNumeric(received.Sub(amount))
	}

	res, err := withRetry(ctx, s.log, "add payment", func() (*AddPaymentResult, error) {
		return s.addPaymentTx(ctx, req, amount, amountReceived, changeAmount)
	})
	if err != nil {
		return nil, err
	}

	s.log.Infow("payment recorded",
		"repair_order_id", res.Order.ID,
		"method", req.PaymentMethod,
		"amount", amount.StringFixed(2),
		"status", res.Order.Status,
	)
	return res, nil
}

// addPaymentTx runs the balance check and the insert in one transaction.
// The order row is locked first so two concurrent payments cannot both pass
// the balance check.
func (s *PaymentService) addPaymentTx(ctx context.Context, req AddPaymentRequest, amount decimal.Decimal, amountReceived, changeAmount pgtype.Numeric) (*AddPaymentResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetRepairOrderForUpdate(ctx, database.GetRepairOrderParams{
		ID:       req.RepairOrderID,
		GarageID: req.GarageID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRepairOrderNotFound
		}
		return nil, fmt.Errorf("get repair order: %w", err)
	}
	if !enum.AcceptsPayments(order.Status) {
		return nil, ErrRepairOrderClosed
	}

	paid, err := store.SumPaymentsByRepairOrder(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("sum payments: %w", err)
	}
	totalPaid := database.NumericToDecimal(paid)
	orderTotal := database.NumericToDecimal(order.TotalAmount)

	if totalPaid.GreaterThanOrEqual(orderTotal) {
		return nil, ErrAlreadyPaid
	}
	newTotalPaid := totalPaid.Add(amount)
	if newTotalPaid.GreaterThan(orderTotal) {
		return nil, ErrOverpayment
	}

	payment, err := store.CreatePayment(ctx, database.CreatePaymentParams{
		RepairOrderID:   order.ID,
		PaymentMethod:   req.PaymentMethod,
		Amount:          database.DecimalToNumeric(amount),
		Status:          enum.PaymentStatusCompleted,
		ReferenceNumber: database.TextOrNull(req.ReferenceNumber),
		AmountReceived:  amountReceived,
		ChangeAmount:    changeAmount,
		ProcessedBy:     req.ProcessedBy,
	})
	if err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}

	updated := order
	if newTotalPaid.GreaterThanOrEqual(orderTotal) {
		updated, err = store.MarkRepairOrderPaid(ctx, order.ID)
		if err != nil {
			if !errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("mark repair order paid: %w", err)
			}
			updated = order
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &AddPaymentResult{
		Payment:   payment,
		Order:     updated,
		TotalPaid: newTotalPaid,
		Remaining: orderTotal.Sub(newTotalPaid),
	}, nil
}

// ListPayments returns the payments of a repair order belonging to the garage.
func (s *PaymentService) ListPayments(ctx context.Context, garageID, repairOrderID uuid.UUID) ([]database.Payment, error) {
	store := s.newStore(s.db)
	if _, err := store.GetRepairOrder(ctx, database.GetRepairOrderParams{ID: repairOrderID, GarageID: garageID}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRepairOrderNotFound
		}
		return nil, fmt.Errorf("get repair order: %w", err)
	}
	payments, err := store.ListPaymentsByRepairOrder(ctx, repairOrderID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return payments, nil
}
