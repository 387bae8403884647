package handler

import (
	"context"
	"net/http"

	"github.com/bengkel-pos/api/internal/database"
	"github.com/bengkel-pos/api/internal/lineitem"
	"github.com/bengkel-pos/api/internal/logger"
	"github.com/bengkel-pos/api/internal/service"
	"github.com/bengkel-pos/api/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// ItemService reads and writes repair order line items.
// Satisfied by *service.RepairOrderItemService.
type ItemService interface {
	LoadItems(ctx context.Context, garageID uuid.UUID, repairOrderID string) ([]lineitem.PersistedItem, error)
	SaveItems(ctx context.Context, garageID uuid.UUID, sub lineitem.Submission) (*service.SaveResult, error)
}

// Publisher pushes events to watchers of a repair order. Satisfied by *ws.Hub.
type Publisher interface {
	Publish(repairOrderID uuid.UUID, eventType string, payload any) error
}

// ItemHandler exposes the persisted line items of a repair order.
type ItemHandler struct {
	svc    ItemService
	events Publisher
	log    *logger.Logger
}

// NewItemHandler creates a new ItemHandler. events may be nil.
func NewItemHandler(svc ItemService, events Publisher, log *logger.Logger) *ItemHandler {
	return &ItemHandler{svc: svc, events: events, log: log}
}

// RegisterRoutes registers line item endpoints.
// Expected to be mounted at /garages/{gid}/repair-orders/{id}/items
func (h *ItemHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Put("/", h.Save)
}

// --- Request / Response types ---

type persistedItemResponse struct {
	ID            string  `json:"id"`
	Description   string  `json:"description"`
	SparePartID   *string `json:"spare_part_id"`
	SparePartName string  `json:"spare_part_name"`
	Quantity      *int    `json:"quantity"`
	UnitPrice     *string `json:"unit_price"`
	LaborTypeID   *string `json:"labor_type_id"`
	LaborTypeName string  `json:"labor_type_name"`
	LaborCost     *string `json:"labor_cost"`
	TotalAmount   *string `json:"total_amount"`
}

type itemListResponse struct {
	RepairOrderID string                  `json:"repair_order_id"`
	Items         []persistedItemResponse `json:"items"`
}

type saveItemsRequest struct {
	OrderTotal     decimal.Decimal        `json:"order_total"`
	NewItems       []lineitem.ItemPayload `json:"new_items"`
	UpdatedItems   []lineitem.ItemPayload `json:"updated_items"`
	DeletedItemIDs []string               `json:"deleted_item_ids"`
}

type repairOrderResponse struct {
	ID           string  `json:"id"`
	OrderNumber  string  `json:"order_number"`
	VehiclePlate string  `json:"vehicle_plate"`
	CustomerName *string `json:"customer_name"`
	Status       string  `json:"status"`
	TotalAmount  string  `json:"total_amount"`
}

type itemRecordResponse struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	SparePartID *string `json:"spare_part_id"`
	Quantity    int32   `json:"quantity"`
	UnitPrice   string  `json:"unit_price"`
	LaborTypeID *string `json:"labor_type_id"`
	LaborCost   string  `json:"labor_cost"`
	TotalAmount string  `json:"total_amount"`
}

type saveItemsResponse struct {
	Order        repairOrderResponse  `json:"order"`
	Created      []itemRecordResponse `json:"created"`
	Updated      []itemRecordResponse `json:"updated"`
	DeletedCount int64                `json:"deleted_count"`
}

// --- Handlers ---

// List handles GET /garages/{gid}/repair-orders/{id}/items.
func (h *ItemHandler) List(w http.ResponseWriter, r *http.Request) {
	gid, ok := garageID(w, r)
	if !ok {
		return
	}
	roID, ok := repairOrderID(w, r)
	if !ok {
		return
	}

	items, err := h.svc.LoadItems(r.Context(), gid, roID.String())
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, itemListResponse{
		RepairOrderID: roID.String(),
		Items:         lo.Map(items, func(p lineitem.PersistedItem, _ int) persistedItemResponse { return toPersistedItemResponse(p) }),
	})
}

// Save handles PUT /garages/{gid}/repair-orders/{id}/items. The body is a
// complete operation set, applied atomically.
func (h *ItemHandler) Save(w http.ResponseWriter, r *http.Request) {
	gid, ok := garageID(w, r)
	if !ok {
		return
	}
	roID, ok := repairOrderID(w, r)
	if !ok {
		return
	}

	var req saveItemsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.svc.SaveItems(r.Context(), gid, lineitem.Submission{
		RepairOrderID:  roID.String(),
		OrderTotal:     req.OrderTotal,
		NewItems:       req.NewItems,
		UpdatedItems:   req.UpdatedItems,
		DeletedItemIDs: req.DeletedItemIDs,
	})
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	resp := toSaveItemsResponse(result)
	if h.events != nil {
		if err := h.events.Publish(roID, ws.EventItemsSaved, resp); err != nil {
			h.log.Warnw("publish items saved", "repair_order_id", roID, "error", err)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- Helpers ---

func optionalDecimal(d decimal.NullDecimal) *string {
	if !d.Valid {
		return nil
	}
	s := money(d.Decimal)
	return &s
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func toPersistedItemResponse(p lineitem.PersistedItem) persistedItemResponse {
	return persistedItemResponse{
		ID:            p.ID,
		Description:   p.Description,
		SparePartID:   optionalString(p.SparePartID),
		SparePartName: p.SparePartName,
		Quantity:      p.Quantity,
		UnitPrice:     optionalDecimal(p.UnitPrice),
		LaborTypeID:   optionalString(p.LaborTypeID),
		LaborTypeName: p.LaborTypeName,
		LaborCost:     optionalDecimal(p.LaborCost),
		TotalAmount:   optionalDecimal(p.TotalAmount),
	}
}

func toRepairOrderResponse(o database.RepairOrder) repairOrderResponse {
	var customer *string
	if o.CustomerName.Valid {
		customer = &o.CustomerName.String
	}
	return repairOrderResponse{
		ID:           o.ID.String(),
		OrderNumber:  o.OrderNumber,
		VehiclePlate: o.VehiclePlate,
		CustomerName: customer,
		Status:       o.Status,
		TotalAmount:  numericToString(o.TotalAmount),
	}
}

func toItemRecordResponse(it database.RepairOrderItem) itemRecordResponse {
	return itemRecordResponse{
		ID:          it.ID.String(),
		Description: it.Description,
		SparePartID: optionalUUID(it.SparePartID),
		Quantity:    it.Quantity,
		UnitPrice:   numericToString(it.UnitPrice),
		LaborTypeID: optionalUUID(it.LaborTypeID),
		LaborCost:   numericToString(it.LaborCost),
		TotalAmount: numericToString(it.TotalAmount),
	}
}

func toSaveItemsResponse(res *service.SaveResult) saveItemsResponse {
	records := func(items []database.RepairOrderItem) []itemRecordResponse {
		out := lo.Map(items, func(it database.RepairOrderItem, _ int) itemRecordResponse { return toItemRecordResponse(it) })
		if out == nil {
			out = []itemRecordResponse{}
		}
		return out
	}
	return saveItemsResponse{
		Order:        toRepairOrderResponse(res.Order),
		Created:      records(res.Created),
		Updated:      records(res.Updated),
		DeletedCount: res.DeletedCount,
	}
}
