package handler

import (
	"context"
	"net/http"

	"github.com/bengkel-pos/api/internal/lineitem"
	"github.com/bengkel-pos/api/internal/logger"
	"github.com/bengkel-pos/api/internal/middleware"
	"github.com/bengkel-pos/api/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// SessionManager is the registry of editing sessions.
// Satisfied by *session.Manager.
type SessionManager interface {
	Open(ctx context.Context, garageID, repairOrderID, userID uuid.UUID) (*session.Session, error)
	Get(garageID uuid.UUID, id string) (*session.Session, error)
	Close(garageID uuid.UUID, id string) error
	Submit(ctx context.Context, garageID uuid.UUID, id string) (*session.SubmitResult, error)
}

// SessionHandler drives line item editing sessions.
type SessionHandler struct {
	sessions SessionManager
	log      *logger.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessions SessionManager, log *logger.Logger) *SessionHandler {
	return &SessionHandler{sessions: sessions, log: log}
}

// RegisterRoutes registers session endpoints.
// Expected to be mounted at /garages/{gid}
func (h *SessionHandler) RegisterRoutes(r chi.Router) {
	r.Post("/repair-orders/{id}/sessions", h.Open)
	r.Route("/sessions/{sid}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Delete("/", h.Close)
		r.Get("/changes", h.Changes)
		r.Post("/submit", h.Submit)
		r.Post("/rows", h.AddRow)
		r.Patch("/rows/{key}", h.UpdateField)
		r.Delete("/rows/{key}", h.RemoveRow)
		r.Post("/rows/{key}/edit", h.rowAction(func(s *session.Session, key string) (any, error) {
			row, err := s.Edit(key)
			return toRowResponse(row), err
		}))
		r.Post("/rows/{key}/save", h.rowAction(func(s *session.Session, key string) (any, error) {
			row, err := s.Save(key)
			return toRowResponse(row), err
		}))
		r.Post("/rows/{key}/revert", h.rowAction(func(s *session.Session, key string) (any, error) {
			row, err := s.Revert(key)
			return toRowResponse(row), err
		}))
		r.Post("/rows/{key}/cancel", h.rowAction(func(s *session.Session, key string) (any, error) {
			row, removed, err := s.Cancel(key)
			return cancelResponse{Row: toRowResponse(row), Removed: removed}, err
		}))
	})
}

// --- Request / Response types ---

type rowResponse struct {
	ID           string   `json:"id"`
	Description  string   `json:"description"`
	SparePartID  string   `json:"spare_part_id"`
	SparePartRef string   `json:"spare_part_ref"`
	Quantity     int      `json:"quantity"`
	UnitPrice    string   `json:"unit_price"`
	LaborTypeID  string   `json:"labor_type_id"`
	LaborTypeRef string   `json:"labor_type_ref"`
	LaborCost    string   `json:"labor_cost"`
	Total        string   `json:"total"`
	Editing      bool     `json:"editing"`
	Persisted    bool     `json:"persisted"`
	Violations   []string `json:"violations"`
}

type sessionResponse struct {
	ID                string        `json:"id"`
	RepairOrderID     string        `json:"repair_order_id"`
	Rows              []rowResponse `json:"rows"`
	DeletedItemIDs    []string      `json:"deleted_item_ids"`
	OrderTotal        string        `json:"order_total"`
	RequirementPolicy string        `json:"requirement_policy"`
}

type cancelResponse struct {
	Row     rowResponse `json:"row"`
	Removed bool        `json:"removed"`
}

type updateFieldRequest struct {
	Field string `json:"field"`
	Value any    `json:"value"`
}

type changesResponse struct {
	NewItems       []rowResponse `json:"new_items"`
	UpdatedItems   []rowResponse `json:"updated_items"`
	DeletedItemIDs []string      `json:"deleted_item_ids"`
	Orphans        []rowResponse `json:"orphans"`
}

type itemPayloadResponse struct {
	ID          string  `json:"id,omitempty"`
	Description string  `json:"description"`
	SparePartID *string `json:"spare_part_id"`
	Quantity    int     `json:"quantity"`
	UnitPrice   string  `json:"unit_price"`
	LaborTypeID *string `json:"labor_type_id"`
	LaborCost   string  `json:"labor_cost"`
	TotalAmount string  `json:"total_amount"`
}

type submissionResponse struct {
	RepairOrderID  string                `json:"repair_order_id"`
	OrderTotal     string                `json:"order_total"`
	NewItems       []itemPayloadResponse `json:"new_items"`
	UpdatedItems   []itemPayloadResponse `json:"updated_items"`
	DeletedItemIDs []string              `json:"deleted_item_ids"`
}

type submitResponse struct {
	Session    sessionResponse              `json:"session"`
	Submission submissionResponse           `json:"submission"`
	Warnings   []lineitem.ResolutionWarning `json:"warnings"`
	Saved      saveItemsResponse            `json:"saved"`
}

// --- Handlers ---

// Open handles POST /garages/{gid}/repair-orders/{id}/sessions.
func (h *SessionHandler) Open(w http.ResponseWriter, r *http.Request) {
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

	sess, err := h.sessions.Open(r.Context(), gid, roID, claims.UserID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSessionResponse(sess.View()))
}

// Get handles GET /garages/{gid}/sessions/{sid}.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(sess.View()))
}

// Close handles DELETE /garages/{gid}/sessions/{sid}.
func (h *SessionHandler) Close(w http.ResponseWriter, r *http.Request) {
	gid, ok := garageID(w, r)
	if !ok {
		return
	}
	if err := h.sessions.Close(gid, chi.URLParam(r, "sid")); err != nil {
		writeError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddRow handles POST /garages/{gid}/sessions/{sid}/rows.
func (h *SessionHandler) AddRow(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusCreated, toRowResponse(sess.AddRow()))
}

// UpdateField handles PATCH /garages/{gid}/sessions/{sid}/rows/{key}.
func (h *SessionHandler) UpdateField(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var req updateFieldRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Field == "" {
		writeMessage(w, http.StatusBadRequest, "field is required")
		return
	}

	row, err := sess.UpdateField(chi.URLParam(r, "key"), req.Field, req.Value)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toRowResponse(row))
}

// RemoveRow handles DELETE /garages/{gid}/sessions/{sid}/rows/{key}.
func (h *SessionHandler) RemoveRow(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if _, err := sess.Remove(chi.URLParam(r, "key")); err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(sess.View()))
}

// Changes handles GET /garages/{gid}/sessions/{sid}/changes.
func (h *SessionHandler) Changes(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	cs := sess.Changes()
	deleted := cs.DeletedIDs
	if deleted == nil {
		deleted = []string{}
	}
	writeJSON(w, http.StatusOK, changesResponse{
		NewItems:       toRowResponses(cs.New),
		UpdatedItems:   toRowResponses(cs.Updated),
		DeletedItemIDs: deleted,
		Orphans:        toRowResponses(cs.Orphans),
	})
}

// Submit handles POST /garages/{gid}/sessions/{sid}/submit.
func (h *SessionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	gid, ok := garageID(w, r)
	if !ok {
		return
	}
	res, err := h.sessions.Submit(r.Context(), gid, chi.URLParam(r, "sid"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	warnings := res.Warnings
	if warnings == nil {
		warnings = []lineitem.ResolutionWarning{}
	}
	writeJSON(w, http.StatusOK, submitResponse{
		Session:    toSessionResponse(res.View),
		Submission: toSubmissionResponse(res.Submission),
		Warnings:   warnings,
		Saved:      toSaveItemsResponse(res.Saved),
	})
}

// rowAction adapts a per-row session operation to a handler.
func (h *SessionHandler) rowAction(fn func(s *session.Session, key string) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := h.session(w, r)
		if !ok {
			return
		}
		resp, err := fn(sess, chi.URLParam(r, "key"))
		if err != nil {
			writeError(w, h.log, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (h *SessionHandler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	gid, ok := garageID(w, r)
	if !ok {
		return nil, false
	}
	sess, err := h.sessions.Get(gid, chi.URLParam(r, "sid"))
	if err != nil {
		writeError(w, h.log, err)
		return nil, false
	}
	return sess, true
}

// --- Helpers ---

func toRowResponse(v session.RowView) rowResponse {
	violations := v.Violations
	if violations == nil {
		violations = []string{}
	}
	return rowResponse{
		ID:           v.ID,
		Description:  v.Description,
		SparePartID:  v.SparePartID,
		SparePartRef: v.SparePartRef,
		Quantity:     v.Quantity,
		UnitPrice:    money(v.UnitPrice),
		LaborTypeID:  v.LaborTypeID,
		LaborTypeRef: v.LaborTypeRef,
		LaborCost:    money(v.LaborCost),
		Total:        money(v.Total),
		Editing:      v.Editing,
		Persisted:    v.Persisted,
		Violations:   violations,
	}
}

func toRowResponses(rows []lineitem.LineItem) []rowResponse {
	out := lo.Map(rows, func(li lineitem.LineItem, _ int) rowResponse {
		return toRowResponse(session.RowView{LineItem: li})
	})
	if out == nil {
		out = []rowResponse{}
	}
	return out
}

func toSessionResponse(v session.View) sessionResponse {
	return sessionResponse{
		ID:                v.ID,
		RepairOrderID:     v.RepairOrderID.String(),
		Rows:              lo.Map(v.Rows, func(r session.RowView, _ int) rowResponse { return toRowResponse(r) }),
		DeletedItemIDs:    v.DeletedIDs,
		OrderTotal:        money(v.OrderTotal),
		RequirementPolicy: v.Policy,
	}
}

func toSubmissionResponse(sub lineitem.Submission) submissionResponse {
	payloads := func(items []lineitem.ItemPayload) []itemPayloadResponse {
		return lo.Map(items, func(it lineitem.ItemPayload, _ int) itemPayloadResponse {
			return itemPayloadResponse{
				ID:          it.ID,
				Description: it.Description,
				SparePartID: it.SparePartID,
				Quantity:    it.Quantity,
				UnitPrice:   money(it.UnitPrice),
				LaborTypeID: it.LaborTypeID,
				LaborCost:   money(it.LaborCost),
				TotalAmount: money(it.TotalAmount),
			}
		})
	}
	deleted := sub.DeletedItemIDs
	if deleted == nil {
		deleted = []string{}
	}
	return submissionResponse{
		RepairOrderID:  sub.RepairOrderID,
		OrderTotal:     money(sub.OrderTotal),
		NewItems:       payloads(sub.NewItems),
		UpdatedItems:   payloads(sub.UpdatedItems),
		DeletedItemIDs: deleted,
	}
}
