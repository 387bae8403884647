package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/bengkel-pos/api/internal/database"
	"github.com/bengkel-pos/api/internal/logger"
	"github.com/bengkel-pos/api/internal/middleware"
	"github.com/bengkel-pos/api/internal/service"
	"github.com/bengkel-pos/api/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// PaymentService records and lists payments.
// Satisfied by *service.PaymentService.
type PaymentService interface {
	AddPayment(ctx context.Context, req service.AddPaymentRequest) (*service.AddPaymentResult, error)
	ListPayments(ctx context.Context, garageID, repairOrderID uuid.UUID) ([]database.Payment, error)
}

// PaymentHandler handles payment endpoints.
type PaymentHandler struct {
	svc    PaymentService
	events Publisher
	log    *logger.Logger
}

// NewPaymentHandler creates a new PaymentHandler. events may be nil.
func NewPaymentHandler(svc PaymentService, events Publisher, log *logger.Logger) *PaymentHandler {
	return &PaymentHandler{svc: svc, events: events, log: log}
}

// RegisterRoutes registers payment endpoints on the given Chi router.
// Expected to be mounted at /garages/{gid}/repair-orders/{id}/payments
func (h *PaymentHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Add)
	r.Get("/", h.List)
}

// --- Request / Response types ---

type addPaymentRequest struct {
	PaymentMethod   string `json:"payment_method"`
	Amount          string `json:"amount"`
	AmountReceived  string `json:"amount_received"`
	ReferenceNumber string `json:"reference_number"`
}

type paymentResponse struct {
	ID              string    `json:"id"`
	RepairOrderID   string    `json:"repair_order_id"`
	PaymentMethod   string    `json:"payment_method"`
	Amount          string    `json:"amount"`
	Status          string    `json:"status"`
	ReferenceNumber *string   `json:"reference_number"`
	AmountReceived  *string   `json:"amount_received"`
	ChangeAmount    *string   `json:"change_amount"`
	ProcessedBy     string    `json:"processed_by"`
	ProcessedAt     time.Time `json:"processed_at"`
}

type addPaymentResponse struct {
	Payment   paymentResponse     `json:"payment"`
	Order     repairOrderResponse `json:"order"`
	TotalPaid string              `json:"total_paid"`
	Remaining string              `json:"remaining"`
}

// --- Handlers ---

// Add handles POST /garages/{gid}/repair-orders/{id}/payments.
func (h *PaymentHandler) Add(w http.ResponseWriter, r *http.Request) {
	gid, ok := garageID(w, r)
	if !ok {
		return
	}
	roID, ok := repairOrderID(w, r)
	if !ok {
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeMessage(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req addPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.svc.AddPayment(r.Context(), service.AddPaymentRequest{
		GarageID:        gid,
		RepairOrderID:   roID,
		ProcessedBy:     claims.UserID,
		PaymentMethod:   req.PaymentMethod,
		Amount:          req.Amount,
		AmountReceived:  req.AmountReceived,
		ReferenceNumber: req.ReferenceNumber,
	})
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	resp := addPaymentResponse{
		Payment:   toPaymentResponse(result.Payment),
		Order:     toRepairOrderResponse(result.Order),
		TotalPaid: money(result.TotalPaid),
		Remaining: money(result.Remaining),
	}
	if h.events != nil {
		if err := h.events.Publish(roID, ws.EventPaymentRecorded, resp); err != nil {
			h.log.Warnw("publish payment recorded", "repair_order_id", roID, "error", err)
		}
	}
	writeJSON(w, http.StatusCreated, resp)
}

// List handles GET /garages/{gid}/repair-orders/{id}/payments.
func (h *PaymentHandler) List(w http.ResponseWriter, r *http.Request) {
	gid, ok := garageID(w, r)
	if !ok {
		return
	}
	roID, ok := repairOrderID(w, r)
	if !ok {
		return
	}

	payments, err := h.svc.ListPayments(r.Context(), gid, roID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, lo.Map(payments, func(p database.Payment, _ int) paymentResponse {
		return toPaymentResponse(p)
	}))
}

// --- Helpers ---

func toPaymentResponse(p database.Payment) paymentResponse {
	var ref *string
	if p.ReferenceNumber.Valid {
		ref = &p.ReferenceNumber.String
	}
	return paymentResponse{
		ID:              p.ID.String(),
		RepairOrderID:   p.RepairOrderID.String(),
		PaymentMethod:   p.PaymentMethod,
		Amount:          numericToString(p.Amount),
		Status:          p.Status,
		ReferenceNumber: ref,
		AmountReceived:  optionalNumeric(p.AmountReceived),
		ChangeAmount:    optionalNumeric(p.ChangeAmount),
		ProcessedBy:     p.ProcessedBy.String(),
		ProcessedAt:     p.ProcessedAt,
	}
}
