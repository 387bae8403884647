package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bengkel-pos/api/internal/auth"
	"github.com/bengkel-pos/api/internal/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const testJWTSecret = "test-secret-for-handlers"

// garageRouter mounts register under /garages/{gid} behind the same auth
// middleware the production router uses.
func garageRouter(register func(r chi.Router)) *chi.Mux {
	r := chi.NewRouter()
	r.Route("/garages/{gid}", func(r chi.Router) {
		r.Use(middleware.Authenticate(testJWTSecret))
		r.Use(middleware.RequireGarage)
		register(r)
	})
	return r
}

func cashier(garageID uuid.UUID) *auth.Claims {
	return &auth.Claims{UserID: uuid.New(), GarageID: garageID, Role: "CASHIER"}
}

func doAuthRequest(t *testing.T, router http.Handler, method, path string, body interface{}, claims *auth.Claims) *httptest.ResponseRecorder {
	t.Helper()

	// Generate a real JWT token from claims
	token, err := auth.GenerateToken(testJWTSecret, claims.UserID, claims.GarageID, claims.Role)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	var req *http.Request
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		req = httptest.NewRequest(method, path, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeObject(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v; body: %s", err, rr.Body.String())
	}
	return resp
}

func decodeList(t *testing.T, rr *httptest.ResponseRecorder) []map[string]interface{} {
	t.Helper()
	var resp []map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v; body: %s", err, rr.Body.String())
	}
	return resp
}

type publishedEvent struct {
	repairOrderID uuid.UUID
	eventType     string
}

type mockPublisher struct {
	events []publishedEvent
}

func (m *mockPublisher) Publish(repairOrderID uuid.UUID, eventType string, payload any) error {
	m.events = append(m.events, publishedEvent{repairOrderID, eventType})
	return nil
}
