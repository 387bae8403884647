package router

import (
	"net/http"

	"github.com/bengkel-pos/api/internal/catalog"
	"github.com/bengkel-pos/api/internal/config"
	"github.com/bengkel-pos/api/internal/database"
	"github.com/bengkel-pos/api/internal/enum"
	"github.com/bengkel-pos/api/internal/handler"
	"github.com/bengkel-pos/api/internal/lineitem"
	"github.com/bengkel-pos/api/internal/logger"
	mw "github.com/bengkel-pos/api/internal/middleware"
	"github.com/bengkel-pos/api/internal/service"
	"github.com/bengkel-pos/api/internal/session"
	"github.com/bengkel-pos/api/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
)

// New creates a Chi router with all application routes wired up.
// Applies authentication, garage scoping, and role-based middleware as needed.
func New(cfg *config.Config, log *logger.Logger, queries *database.Queries, pool *pgxpool.Pool, hub *ws.Hub) (chi.Router, error) {
	policy, err := lineitem.ParseRequirementPolicy(cfg.Billing.RequirementPolicy)
	if err != nil {
		return nil, err
	}

	catalogProvider := catalog.NewProvider(queries, cfg.Catalog.CacheTTL, log.With("component", "catalog"))
	itemSvc := service.NewRepairOrderItemService(pool, pool,
		func(db database.DBTX) service.RepairOrderItemStore { return database.New(db) },
		log.With("component", "items"))
	paymentSvc := service.NewPaymentService(pool, pool,
		func(db database.DBTX) service.PaymentStore { return database.New(db) },
		log.With("component", "payments"))
	sessions := session.NewManager(itemSvc, catalogProvider, hub,
		lineitem.NewValidator(policy), cfg.Session.TTL, log.With("component", "sessions"))

	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// WebSocket route (handles auth internally via query param)
	r.Method(http.MethodGet, "/ws/garages/{gid}/repair-orders/{id}", ws.NewHandler(hub, cfg.Auth.JWTSecret, log.With("component", "ws")))

	// Garage-scoped routes
	r.Route("/garages/{gid}", func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.Auth.JWTSecret))
		r.Use(mw.RequireGarage)

		catalogHandler := handler.NewCatalogHandler(catalogProvider, log)
		r.Route("/catalog", catalogHandler.RegisterRoutes)

		itemHandler := handler.NewItemHandler(itemSvc, hub, log)
		r.Route("/repair-orders/{id}/items", itemHandler.RegisterRoutes)

		sessionHandler := handler.NewSessionHandler(sessions, log)
		sessionHandler.RegisterRoutes(r)

		// Mechanics edit line items but do not take money
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.UserRoleOwner, enum.UserRoleAdmin, enum.UserRoleCashier))
			paymentHandler := handler.NewPaymentHandler(paymentSvc, hub, log)
			r.Route("/repair-orders/{id}/payments", paymentHandler.RegisterRoutes)
		})
	})

	return r, nil
}
