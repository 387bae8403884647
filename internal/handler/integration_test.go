//go:build integration

package handler_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bengkel-pos/api/internal/auth"
	"github.com/bengkel-pos/api/internal/config"
	"github.com/bengkel-pos/api/internal/database"
	"github.com/bengkel-pos/api/internal/enum"
	"github.com/bengkel-pos/api/internal/logger"
	"github.com/bengkel-pos/api/internal/router"
	"github.com/bengkel-pos/api/internal/ws"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestIntegrationFlow runs the line item editing and billing lifecycle against
// a real PostgreSQL database, with every handler wired through the router.
func TestIntegrationFlow(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	connStr, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	runMigrations(t, connStr)

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	defer pool.Close()

	cfg := &config.Config{
		Server:   config.ServerConfig{Port: "8081", ShutdownGrace: time.Second},
		Database: config.DatabaseConfig{URL: connStr},
		Auth:     config.AuthConfig{JWTSecret: "integration-test-secret"},
		Logging:  config.LoggingConfig{Level: "error"},
		Session:  config.SessionConfig{TTL: time.Minute},
		Catalog:  config.CatalogConfig{CacheTTL: time.Minute},
		Billing:  config.BillingConfig{RequirementPolicy: "both"},
	}
	log := logger.NewNop()
	queries := database.New(pool)
	hub := ws.NewHub(log)
	go hub.Run(ctx)

	r, err := router.New(cfg, log, queries, pool, hub)
	if err != nil {
		t.Fatalf("build router: %v", err)
	}
	server := httptest.NewServer(r)
	defer server.Close()

	// --- 1. Seed garage, catalog and a repair order directly ---
	garage, err := queries.CreateGarage(ctx, "Bengkel Integrasi")
	if err != nil {
		t.Fatalf("create garage: %v", err)
	}
	gid := garage.ID
	oil := createSparePart(t, ctx, queries, gid, "Oli Mesin", "55000")
	brakePads := createSparePart(t, ctx, queries, gid, "Kampas Rem", "120000")
	oilChange := createLaborType(t, ctx, queries, gid, "Ganti Oli", "25000")
	brakeService := createLaborType(t, ctx, queries, gid, "Servis Rem", "75000")

	cashierID := uuid.New()
	ro, err := queries.CreateRepairOrder(ctx, database.CreateRepairOrderParams{
		GarageID:     gid,
		OrderNumber:  "RO-INT-0001",
		VehiclePlate: "B 1234 XYZ",
		CustomerName: database.TextOrNull("Budi"),
		CreatedBy:    cashierID,
	})
	if err != nil {
		t.Fatalf("create repair order: %v", err)
	}

	token, err := auth.GenerateToken(cfg.Auth.JWTSecret, cashierID, gid, enum.UserRoleCashier)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	base := fmt.Sprintf("/garages/%s", gid)

	// --- 2. Catalog is served from the database ---
	cat := httpDoJSON(t, server, http.MethodGet, base+"/catalog", nil, token, http.StatusOK)
	if got := len(cat["spare_parts"].([]interface{})); got != 2 {
		t.Fatalf("spare parts: got %d, want 2", got)
	}

	// --- 3. Open a session on the empty repair order ---
	sess := httpDoJSON(t, server, http.MethodPost,
		fmt.Sprintf("%s/repair-orders/%s/sessions", base, ro.ID), nil, token, http.StatusCreated)
	sid := sess["id"].(string)
	if rows := sess["rows"].([]interface{}); len(rows) != 0 {
		t.Fatalf("new session rows: got %d, want 0", len(rows))
	}
	sessPath := fmt.Sprintf("%s/sessions/%s", base, sid)

	// --- 4. Add two rows; catalog selection fills prices ---
	first := addRow(t, server, sessPath, token, "Ganti oli mesin", oil.Name, oilChange.Name, 2)
	if first["total"] != "135000.00" {
		t.Fatalf("first row total: got %v, want 135000.00", first["total"])
	}
	if first["spare_part_id"] != oil.ID.String() {
		t.Fatalf("first row spare_part_id: got %v, want %s", first["spare_part_id"], oil.ID)
	}
	second := addRow(t, server, sessPath, token, "Servis rem depan", brakePads.Name, brakeService.Name, 1)
	if second["total"] != "195000.00" {
		t.Fatalf("second row total: got %v, want 195000.00", second["total"])
	}

	// --- 5. Submit creates both items and updates the order total ---
	submit := httpDoJSON(t, server, http.MethodPost, sessPath+"/submit", nil, token, http.StatusOK)
	saved := submit["saved"].(map[string]interface{})
	if got := len(saved["created"].([]interface{})); got != 2 {
		t.Fatalf("created items: got %d, want 2", got)
	}
	order := saved["order"].(map[string]interface{})
	if order["total_amount"] != "330000.00" {
		t.Fatalf("order total after insert: got %v, want 330000.00", order["total_amount"])
	}

	// The session reloads persisted state: both rows now carry server ids.
	view := submit["session"].(map[string]interface{})
	rows := view["rows"].([]interface{})
	if len(rows) != 2 {
		t.Fatalf("rows after submit: got %d, want 2", len(rows))
	}
	// rows inserted in one transaction share created_at, so order is by id
	oilRow, brakeRow := rows[0].(map[string]interface{}), rows[1].(map[string]interface{})
	if oilRow["spare_part_id"] != oil.ID.String() {
		oilRow, brakeRow = brakeRow, oilRow
	}
	if oilRow["persisted"] != true || brakeRow["persisted"] != true {
		t.Fatalf("rows after submit should be persisted: %v", rows)
	}

	// --- 6. Edit one row, delete the other, submit again ---
	oilKey := oilRow["id"].(string)
	httpDoJSON(t, server, http.MethodPost, fmt.Sprintf("%s/rows/%s/edit", sessPath, oilKey), nil, token, http.StatusOK)
	updateField(t, server, sessPath, oilKey, token, "quantity", 3)
	httpDoJSON(t, server, http.MethodPost, fmt.Sprintf("%s/rows/%s/save", sessPath, oilKey), nil, token, http.StatusOK)
	httpDoJSON(t, server, http.MethodDelete, fmt.Sprintf("%s/rows/%s", sessPath, brakeRow["id"]), nil, token, http.StatusOK)

	changes := httpDoJSON(t, server, http.MethodGet, sessPath+"/changes", nil, token, http.StatusOK)
	if got := len(changes["updated_items"].([]interface{})); got != 1 {
		t.Fatalf("updated items: got %d, want 1", got)
	}
	if got := len(changes["deleted_item_ids"].([]interface{})); got != 1 {
		t.Fatalf("deleted items: got %d, want 1", got)
	}

	submit = httpDoJSON(t, server, http.MethodPost, sessPath+"/submit", nil, token, http.StatusOK)
	saved = submit["saved"].(map[string]interface{})
	if saved["deleted_count"] != float64(1) {
		t.Fatalf("deleted_count: got %v, want 1", saved["deleted_count"])
	}
	order = saved["order"].(map[string]interface{})
	// 3 * 55000 + 25000
	if order["total_amount"] != "190000.00" {
		t.Fatalf("order total after update: got %v, want 190000.00", order["total_amount"])
	}

	// --- 7. The items endpoint agrees with the session ---
	list := httpDoJSON(t, server, http.MethodGet,
		fmt.Sprintf("%s/repair-orders/%s/items", base, ro.ID), nil, token, http.StatusOK)
	items := list["items"].([]interface{})
	if len(items) != 1 {
		t.Fatalf("persisted items: got %d, want 1", len(items))
	}
	if item := items[0].(map[string]interface{}); item["spare_part_name"] != oil.Name {
		t.Fatalf("persisted spare_part_name: got %v, want %s", item["spare_part_name"], oil.Name)
	}

	// Another garage's spare part is rejected and nothing is written.
	otherGarage, err := queries.CreateGarage(ctx, "Bengkel Lain")
	if err != nil {
		t.Fatalf("create other garage: %v", err)
	}
	foreignPart := createSparePart(t, ctx, queries, otherGarage.ID, "Busi", "10000")
	httpDoJSON(t, server, http.MethodPut,
		fmt.Sprintf("%s/repair-orders/%s/items", base, ro.ID),
		map[string]interface{}{
			"order_total": "10000",
			"new_items": []interface{}{map[string]interface{}{
				"description":   "Ganti busi",
				"spare_part_id": foreignPart.ID.String(),
				"quantity":      1,
				"unit_price":    "10000",
				"labor_cost":    "0",
				"total_amount":  "10000",
			}},
		}, token, http.StatusBadRequest)
	list = httpDoJSON(t, server, http.MethodGet,
		fmt.Sprintf("%s/repair-orders/%s/items", base, ro.ID), nil, token, http.StatusOK)
	if got := len(list["items"].([]interface{})); got != 1 {
		t.Fatalf("items after rejected submission: got %d, want 1", got)
	}

	httpDoJSON(t, server, http.MethodDelete, sessPath, nil, token, http.StatusNoContent)

	// --- 8. Split payment settles the order ---
	payPath := fmt.Sprintf("%s/repair-orders/%s/payments", base, ro.ID)
	pay1 := httpDoJSON(t, server, http.MethodPost, payPath, map[string]interface{}{
		"payment_method":  "CASH",
		"amount":          "100000",
		"amount_received": "100000",
	}, token, http.StatusCreated)
	if pay1["remaining"] != "90000.00" {
		t.Fatalf("remaining after first payment: got %v, want 90000.00", pay1["remaining"])
	}

	pay2 := httpDoJSON(t, server, http.MethodPost, payPath, map[string]interface{}{
		"payment_method":   "QRIS",
		"amount":           "90000",
		"reference_number": "QR-123",
	}, token, http.StatusCreated)
	order = pay2["order"].(map[string]interface{})
	if order["status"] != enum.RepairOrderStatusPaid {
		t.Fatalf("order status after full payment: got %v, want %s", order["status"], enum.RepairOrderStatusPaid)
	}

	// A paid order no longer accepts item changes.
	httpDoJSON(t, server, http.MethodPut,
		fmt.Sprintf("%s/repair-orders/%s/items", base, ro.ID),
		map[string]interface{}{"order_total": "0"}, token, http.StatusUnprocessableEntity)
}

func setupPostgresContainer(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("bengkel_test"),
		tcpostgres.WithUsername("bengkel"),
		tcpostgres.WithPassword("bengkel"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("get connection string: %v", err)
	}

	cleanup := func() {
		if err := pgContainer.Terminate(context.Background()); err != nil {
			t.Logf("terminate container: %v", err)
		}
	}
	return connStr, cleanup
}

func runMigrations(t *testing.T, connStr string) {
	t.Helper()

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Fatalf("open db for migrations: %v", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		t.Fatalf("create migrate driver: %v", err)
	}

	// go test runs in the package directory (internal/handler/)
	m, err := migrate.NewWithDatabaseInstance(
		"file://../database/migrations",
		"postgres", driver)
	if err != nil {
		t.Fatalf("create migrate instance: %v", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		t.Fatalf("run migrations: %v", err)
	}
}

func createSparePart(t *testing.T, ctx context.Context, q *database.Queries, gid uuid.UUID, name, price string) database.SparePart {
	t.Helper()
	p, err := q.CreateSparePart(ctx, database.CreateSparePartParams{
		GarageID: gid,
		Name:     name,
		Price:    database.DecimalToNumeric(decimal.RequireFromString(price)),
	})
	if err != nil {
		t.Fatalf("create spare part %q: %v", name, err)
	}
	return p
}

func createLaborType(t *testing.T, ctx context.Context, q *database.Queries, gid uuid.UUID, name, cost string) database.LaborType {
	t.Helper()
	l, err := q.CreateLaborType(ctx, database.CreateLaborTypeParams{
		GarageID: gid,
		Name:     name,
		Cost:     database.DecimalToNumeric(decimal.RequireFromString(cost)),
	})
	if err != nil {
		t.Fatalf("create labor type %q: %v", name, err)
	}
	return l
}

// addRow appends a row, fills it in and saves it, returning the saved row.
func addRow(t *testing.T, server *httptest.Server, sessPath, token, description, part, labor string, qty int) map[string]interface{} {
	t.Helper()
	row := httpDoJSON(t, server, http.MethodPost, sessPath+"/rows", nil, token, http.StatusCreated)
	key := row["id"].(string)
	updateField(t, server, sessPath, key, token, "description", description)
	updateField(t, server, sessPath, key, token, "spare_part_ref", part)
	updateField(t, server, sessPath, key, token, "labor_type_ref", labor)
	updateField(t, server, sessPath, key, token, "quantity", qty)
	return httpDoJSON(t, server, http.MethodPost, fmt.Sprintf("%s/rows/%s/save", sessPath, key), nil, token, http.StatusOK)
}

func updateField(t *testing.T, server *httptest.Server, sessPath, key, token, field string, value interface{}) map[string]interface{} {
	t.Helper()
	return httpDoJSON(t, server, http.MethodPatch, fmt.Sprintf("%s/rows/%s", sessPath, key),
		map[string]interface{}{"field": field, "value": value}, token, http.StatusOK)
}

// --- HTTP helpers ---

func httpDoJSON(t *testing.T, server *httptest.Server, method, path string, body map[string]interface{}, token string, wantStatus int) map[string]interface{} {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, server.URL+path, reader)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	if resp.StatusCode != http.StatusNoContent {
		json.NewDecoder(resp.Body).Decode(&result)
	}
	if resp.StatusCode != wantStatus {
		t.Fatalf("%s %s: status %d, want %d, body: %v", method, path, resp.StatusCode, wantStatus, result)
	}
	return result
}
