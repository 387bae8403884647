package handler_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/bengkel-pos/api/internal/catalog"
	"github.com/bengkel-pos/api/internal/handler"
	"github.com/bengkel-pos/api/internal/lineitem"
	"github.com/bengkel-pos/api/internal/logger"
	"github.com/bengkel-pos/api/internal/service"
	"github.com/bengkel-pos/api/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// sessionItems adapts mockItemService to session.ItemService.
type sessionItems struct {
	*mockItemService
}

func (s sessionItems) Loader(garageID uuid.UUID) lineitem.Loader {
	return lineitem.LoaderFunc(func(ctx context.Context, repairOrderID string) ([]lineitem.PersistedItem, error) {
		return s.LoadItems(ctx, garageID, repairOrderID)
	})
}

type staticCatalog struct {
	snap *catalog.Snapshot
}

func (c staticCatalog) Snapshot(ctx context.Context, garageID uuid.UUID) (*catalog.Snapshot, error) {
	return c.snap, nil
}

func (c staticCatalog) Invalidate(garageID uuid.UUID) {}

func newSessionFixture(t *testing.T) (*chi.Mux, *mockItemService, uuid.UUID, uuid.UUID) {
	t.Helper()
	items := &mockItemService{
		items: []lineitem.PersistedItem{{
			ID:            "it-1",
			Description:   "Ganti oli",
			Quantity:      intPtr(1),
			UnitPrice:     decimal.NewNullDecimal(decimal.NewFromInt(50000)),
			LaborCost:     decimal.NewNullDecimal(decimal.NewFromInt(30000)),
			TotalAmount:   decimal.NewNullDecimal(decimal.NewFromInt(999)), // stale, recomputed on load
			SparePartID:   "sp-oil",
			SparePartName: "Oli Mesin",
			LaborTypeID:   "lt-oil",
			LaborTypeName: "Ganti Oli",
		}},
		saveRes: &service.SaveResult{},
	}
	cat := staticCatalog{snap: catalog.NewSnapshot(
		[]catalog.SparePart{{ID: "sp-pad", Name: "Kampas Rem", Price: decimal.NewFromInt(75000)}},
		[]catalog.LaborType{{ID: "lt-brake", Name: "Servis Rem", Cost: decimal.NewFromInt(40000)}},
	)}
	mgr := session.NewManager(sessionItems{items}, cat, nil, nil, time.Minute, logger.NewNop())
	h := handler.NewSessionHandler(mgr, logger.NewNop())
	router := garageRouter(h.RegisterRoutes)
	return router, items, uuid.New(), uuid.New()
}

func openSession(t *testing.T, router http.Handler, gid, roID uuid.UUID) string {
	t.Helper()
	rr := doAuthRequest(t, router, "POST", "/garages/"+gid.String()+"/repair-orders/"+roID.String()+"/sessions", nil, cashier(gid))
	if rr.Code != http.StatusCreated {
		t.Fatalf("open: got %d; body: %s", rr.Code, rr.Body.String())
	}
	resp := decodeObject(t, rr)
	if resp["order_total"] != "80000.00" {
		t.Errorf("order_total: got %v, want 80000.00 (recomputed)", resp["order_total"])
	}
	return resp["id"].(string)
}

func TestSessionLifecycle(t *testing.T) {
	router, items, gid, roID := newSessionFixture(t)
	claims := cashier(gid)
	sid := openSession(t, router, gid, roID)
	base := "/garages/" + gid.String() + "/sessions/" + sid

	// add a row: it starts in edit mode with violations
	rr := doAuthRequest(t, router, "POST", base+"/rows", nil, claims)
	if rr.Code != http.StatusCreated {
		t.Fatalf("add row: got %d; body: %s", rr.Code, rr.Body.String())
	}
	row := decodeObject(t, rr)
	key := row["id"].(string)
	if row["editing"] != true {
		t.Errorf("new row should be editing")
	}
	if len(row["violations"].([]interface{})) == 0 {
		t.Errorf("blank row should have violations")
	}

	// saving an invalid row is refused with its violations
	rr = doAuthRequest(t, router, "POST", base+"/rows/"+key+"/save", nil, claims)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("save invalid: got %d; body: %s", rr.Code, rr.Body.String())
	}
	details := decodeObject(t, rr)["details"].(map[string]interface{})
	if details["row_id"] != key {
		t.Errorf("details row_id: got %v", details["row_id"])
	}

	for _, upd := range []map[string]interface{}{
		{"field": "description", "value": "Servis rem depan"},
		{"field": "spare_part_id", "value": "sp-pad"},
		{"field": "labor_type_ref", "value": "servis rem"},
		{"field": "quantity", "value": 2},
	} {
		rr = doAuthRequest(t, router, "PATCH", base+"/rows/"+key, upd, claims)
		if rr.Code != http.StatusOK {
			t.Fatalf("update %v: got %d; body: %s", upd["field"], rr.Code, rr.Body.String())
		}
	}
	row = decodeObject(t, rr)
	if row["total"] != "190000.00" {
		t.Errorf("total: got %v, want 190000.00", row["total"])
	}
	if row["labor_type_id"] != "lt-brake" {
		t.Errorf("labor_type_id: got %v, want lt-brake", row["labor_type_id"])
	}

	// the total column is never editable
	rr = doAuthRequest(t, router, "PATCH", base+"/rows/"+key, map[string]interface{}{"field": "total", "value": "1"}, claims)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("update total: got %d, want %d", rr.Code, http.StatusBadRequest)
	}

	rr = doAuthRequest(t, router, "POST", base+"/rows/"+key+"/save", nil, claims)
	if rr.Code != http.StatusOK {
		t.Fatalf("save: got %d; body: %s", rr.Code, rr.Body.String())
	}

	// remove the persisted row
	rr = doAuthRequest(t, router, "DELETE", base+"/rows/it-1", nil, claims)
	if rr.Code != http.StatusOK {
		t.Fatalf("remove: got %d; body: %s", rr.Code, rr.Body.String())
	}
	view := decodeObject(t, rr)
	if view["order_total"] != "190000.00" {
		t.Errorf("order_total after remove: got %v", view["order_total"])
	}

	rr = doAuthRequest(t, router, "GET", base+"/changes", nil, claims)
	if rr.Code != http.StatusOK {
		t.Fatalf("changes: got %d", rr.Code)
	}
	changes := decodeObject(t, rr)
	if len(changes["new_items"].([]interface{})) != 1 ||
		len(changes["updated_items"].([]interface{})) != 0 ||
		len(changes["deleted_item_ids"].([]interface{})) != 1 {
		t.Errorf("changes: got %v", changes)
	}

	rr = doAuthRequest(t, router, "POST", base+"/submit", nil, claims)
	if rr.Code != http.StatusOK {
		t.Fatalf("submit: got %d; body: %s", rr.Code, rr.Body.String())
	}
	sub := decodeObject(t, rr)["submission"].(map[string]interface{})
	if sub["order_total"] != "190000.00" {
		t.Errorf("submission order_total: got %v", sub["order_total"])
	}
	if len(items.submitted) != 1 || items.submitted[0].DeletedItemIDs[0] != "it-1" {
		t.Errorf("submitted: got %+v", items.submitted)
	}

	rr = doAuthRequest(t, router, "DELETE", base, nil, claims)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("close: got %d", rr.Code)
	}
	rr = doAuthRequest(t, router, "GET", base, nil, claims)
	if rr.Code != http.StatusNotFound {
		t.Errorf("get after close: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestSessionCancelBlankRow(t *testing.T) {
	router, _, gid, roID := newSessionFixture(t)
	claims := cashier(gid)
	sid := openSession(t, router, gid, roID)
	base := "/garages/" + gid.String() + "/sessions/" + sid

	rr := doAuthRequest(t, router, "POST", base+"/rows", nil, claims)
	key := decodeObject(t, rr)["id"].(string)

	rr = doAuthRequest(t, router, "POST", base+"/rows/"+key+"/cancel", nil, claims)
	if rr.Code != http.StatusOK {
		t.Fatalf("cancel: got %d; body: %s", rr.Code, rr.Body.String())
	}
	if decodeObject(t, rr)["removed"] != true {
		t.Errorf("blank row should be removed on cancel")
	}

	rr = doAuthRequest(t, router, "POST", base+"/rows/"+key+"/edit", nil, claims)
	if rr.Code != http.StatusNotFound {
		t.Errorf("edit removed row: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestSessionUpdateRequiresEditMode(t *testing.T) {
	router, _, gid, roID := newSessionFixture(t)
	claims := cashier(gid)
	sid := openSession(t, router, gid, roID)
	base := "/garages/" + gid.String() + "/sessions/" + sid

	rr := doAuthRequest(t, router, "PATCH", base+"/rows/it-1", map[string]interface{}{"field": "quantity", "value": 3}, claims)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("update display row: got %d, want %d", rr.Code, http.StatusUnprocessableEntity)
	}

	rr = doAuthRequest(t, router, "POST", base+"/rows/it-1/edit", nil, claims)
	if rr.Code != http.StatusOK {
		t.Fatalf("edit: got %d", rr.Code)
	}
	rr = doAuthRequest(t, router, "PATCH", base+"/rows/it-1", map[string]interface{}{"field": "quantity", "value": 3}, claims)
	if rr.Code != http.StatusOK {
		t.Fatalf("update: got %d; body: %s", rr.Code, rr.Body.String())
	}

	rr = doAuthRequest(t, router, "POST", base+"/rows/it-1/revert", nil, claims)
	if rr.Code != http.StatusOK {
		t.Fatalf("revert: got %d", rr.Code)
	}
	if row := decodeObject(t, rr); row["quantity"].(float64) != 1 || row["total"] != "80000.00" {
		t.Errorf("revert: got %v", row)
	}
}

func TestSessionOtherGarage(t *testing.T) {
	router, _, gid, roID := newSessionFixture(t)
	sid := openSession(t, router, gid, roID)

	// an owner may reach any garage, but the session belongs to gid only
	other := uuid.New()
	owner := cashier(other)
	owner.Role = "OWNER"
	rr := doAuthRequest(t, router, "GET", "/garages/"+other.String()+"/sessions/"+sid, nil, owner)
	if rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}
