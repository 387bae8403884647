package handler

import (
	"context"
	"net/http"

	"github.com/bengkel-pos/api/internal/catalog"
	"github.com/bengkel-pos/api/internal/logger"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// CatalogSource serves garage catalogs. Satisfied by *catalog.Provider.
type CatalogSource interface {
	Snapshot(ctx context.Context, garageID uuid.UUID) (*catalog.Snapshot, error)
}

// CatalogHandler serves the spare part and labor type lists.
type CatalogHandler struct {
	source CatalogSource
	log    *logger.Logger
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(source CatalogSource, log *logger.Logger) *CatalogHandler {
	return &CatalogHandler{source: source, log: log}
}

// RegisterRoutes registers catalog endpoints.
// Expected to be mounted at /garages/{gid}/catalog
func (h *CatalogHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.Get)
}

type sparePartResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Price string `json:"price"`
}

type laborTypeResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Cost string `json:"cost"`
}

type catalogResponse struct {
	SpareParts []sparePartResponse `json:"spare_parts"`
	LaborTypes []laborTypeResponse `json:"labor_types"`
}

// Get handles GET /garages/{gid}/catalog.
func (h *CatalogHandler) Get(w http.ResponseWriter, r *http.Request) {
	gid, ok := garageID(w, r)
	if !ok {
		return
	}

	snap, err := h.source.Snapshot(r.Context(), gid)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, catalogResponse{
		SpareParts: lo.Map(snap.SpareParts, func(p catalog.SparePart, _ int) sparePartResponse {
			return sparePartResponse{ID: p.ID, Name: p.Name, Price: money(p.Price)}
		}),
		LaborTypes: lo.Map(snap.LaborTypes, func(l catalog.LaborType, _ int) laborTypeResponse {
			return laborTypeResponse{ID: l.ID, Name: l.Name, Cost: money(l.Cost)}
		}),
	})
}
