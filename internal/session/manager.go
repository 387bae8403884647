package session

import (
	"context"
	"time"

	"github.com/bengkel-pos/api/internal/catalog"
	ierr "github.com/bengkel-pos/api/internal/errors"
	"github.com/bengkel-pos/api/internal/lineitem"
	"github.com/bengkel-pos/api/internal/logger"
	"github.com/bengkel-pos/api/internal/service"
	"github.com/bengkel-pos/api/internal/ws"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	goCache "github.com/patrickmn/go-cache"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// DefaultTTL is the idle time after which an unused session is dropped.
const DefaultTTL = 30 * time.Minute

var (
	ErrSessionNotFound = ierr.NewError("session not found").
				WithHint("The editing session has expired or was closed, reopen the repair order").
				Mark(ierr.ErrNotFound)
	ErrInvalidRows = ierr.NewError("some rows are invalid").
			WithHint("Fix the highlighted rows before submitting").
			Mark(ierr.ErrValidation)
	ErrCatalogUnavailable = ierr.NewError("catalog unavailable").
				WithHint("Could not load spare parts and labor types, try again").
				Mark(ierr.ErrDatabase)
)

// ItemService loads and persists line items. Satisfied by
// *service.RepairOrderItemService.
type ItemService interface {
	Loader(garageID uuid.UUID) lineitem.Loader
	SaveItems(ctx context.Context, garageID uuid.UUID, sub lineitem.Submission) (*service.SaveResult, error)
}

// CatalogProvider serves catalog snapshots. Satisfied by *catalog.Provider.
type CatalogProvider interface {
	Snapshot(ctx context.Context, garageID uuid.UUID) (*catalog.Snapshot, error)
	Invalidate(garageID uuid.UUID)
}

// Publisher pushes events to watchers of a repair order. Satisfied by *ws.Hub.
type Publisher interface {
	Publish(repairOrderID uuid.UUID, eventType string, payload any) error
}

// ChangedEvent is published on every successful mutation of a session.
type ChangedEvent struct {
	SessionID  string              `json:"session_id"`
	Kind       lineitem.ChangeKind `json:"kind"`
	Index      int                 `json:"index"`
	RowID      string              `json:"row_id,omitempty"`
	OrderTotal string              `json:"order_total"`
}

// SavedEvent is published after a submit was persisted.
type SavedEvent struct {
	SessionID    string `json:"session_id"`
	Created      int    `json:"created"`
	Updated      int    `json:"updated"`
	Deleted      int64  `json:"deleted"`
	OrderTotal   string `json:"order_total"`
	WarningCount int    `json:"warning_count"`
}

// SubmitResult is the outcome of a persisted submit.
type SubmitResult struct {
	Submission lineitem.Submission
	Warnings   []lineitem.ResolutionWarning
	Saved      *service.SaveResult
	View       View
}

// Manager is the registry of open sessions. Idle sessions expire after the
// TTL; every access extends it.
type Manager struct {
	cache     *goCache.Cache
	ttl       time.Duration
	items     ItemService
	catalog   CatalogProvider
	events    Publisher
	validator *lineitem.Validator
	log       *logger.Logger
}

// NewManager creates a Manager. events may be nil.
func NewManager(items ItemService, cat CatalogProvider, events Publisher, v *lineitem.Validator, ttl time.Duration, log *logger.Logger) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if v == nil {
		v = lineitem.NewValidator(lineitem.RequireBoth)
	}
	m := &Manager{
		cache:     goCache.New(ttl, ttl/2),
		ttl:       ttl,
		items:     items,
		catalog:   cat,
		events:    events,
		validator: v,
		log:       log,
	}
	m.cache.OnEvicted(func(id string, v interface{}) {
		v.(*Session).close()
		m.log.Debugw("session closed", "session_id", id)
	})
	return m
}

// Open loads the repair order's items into a new session. Nothing is
// registered when the load fails.
func (m *Manager) Open(ctx context.Context, garageID, repairOrderID, userID uuid.UUID) (*Session, error) {
	snap, err := m.catalog.Snapshot(ctx, garageID)
	if err != nil {
		return nil, ierr.WithError(err).
			WithMessagef("catalog of garage %s", garageID).
			Mark(ErrCatalogUnavailable)
	}

	store := lineitem.NewStore(m.items.Loader(garageID), lineitem.WithCatalog(snap))
	if err := store.Load(ctx, repairOrderID.String()); err != nil {
		return nil, err
	}

	sess := &Session{
		ID:            ulid.Make().String(),
		GarageID:      garageID,
		RepairOrderID: repairOrderID,
		OpenedBy:      userID,
		OpenedAt:      time.Now(),
		store:         store,
		ctrl:          lineitem.NewEditController(store, m.validator),
	}
	if m.events != nil {
		sess.unsubscribe = store.Subscribe(func(c lineitem.Change) {
			m.publish(repairOrderID, ws.EventSessionChanged, ChangedEvent{
				SessionID:  sess.ID,
				Kind:       c.Kind,
				Index:      c.Index,
				RowID:      c.RowID,
				OrderTotal: money(store.OrderTotal()),
			})
		})
	}

	m.cache.Set(sess.ID, sess, m.ttl)
	m.log.Infow("session opened",
		"session_id", sess.ID,
		"repair_order_id", repairOrderID,
		"rows", store.Len(),
	)
	return sess, nil
}

// Get returns an open session of the garage and extends its lifetime.
func (m *Manager) Get(garageID uuid.UUID, id string) (*Session, error) {
	v, ok := m.cache.Get(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	sess := v.(*Session)
	if sess.GarageID != garageID {
		return nil, ErrSessionNotFound
	}
	m.cache.Set(id, sess, m.ttl)
	return sess, nil
}

// Close discards a session and all its unsaved edits.
func (m *Manager) Close(garageID uuid.UUID, id string) error {
	if _, err := m.Get(garageID, id); err != nil {
		return err
	}
	m.cache.Delete(id)
	return nil
}

// Count returns the number of open sessions.
func (m *Manager) Count() int {
	return m.cache.ItemCount()
}

// Submit reconciles the session, persists the result and reloads the session
// from what was stored. On failure the session is left untouched so the
// operator can retry.
func (m *Manager) Submit(ctx context.Context, garageID uuid.UUID, id string) (*SubmitResult, error) {
	sess, err := m.Get(garageID, id)
	if err != nil {
		return nil, err
	}

	res, stale, err := m.submitLocked(ctx, garageID, id, sess)
	if stale {
		// Evicting closes the session, which takes sess.mu, so it runs after unlock.
		m.cache.Delete(id)
	}
	return res, err
}

func (m *Manager) submitLocked(ctx context.Context, garageID uuid.UUID, id string, sess *Session) (*SubmitResult, bool, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if invalid := sess.invalidRows(); len(invalid) > 0 {
		return nil, false, ierr.WithError(ErrInvalidRows).
			WithReportableDetails(map[string]any{"rows": invalid}).
			Mark(ierr.ErrValidation)
	}

	rows := sess.store.Rows()
	sub, warnings, err := lineitem.BuildSubmission(sess.RepairOrderID.String(), rows, sess.store.Reconcile(), sess.store.Catalog())
	if err != nil {
		return nil, false, err
	}
	for _, w := range warnings {
		m.log.Warnw("catalog reference not resolved", "session_id", id, "warning", w.String())
	}

	saved, err := m.items.SaveItems(ctx, garageID, sub)
	if err != nil {
		m.log.Warnw("submit failed", "session_id", id, "error", err)
		return nil, false, err
	}

	// A reference that vanished from the catalog means the cached snapshot is stale.
	if lo.ContainsBy(warnings, func(w lineitem.ResolutionWarning) bool { return w.Reason == lineitem.ReasonNoLongerInCatalog }) {
		m.catalog.Invalidate(garageID)
		if snap, err := m.catalog.Snapshot(ctx, garageID); err == nil {
			sess.store.SetCatalog(snap)
		} else {
			m.log.Warnw("catalog refresh failed", "garage_id", garageID, "error", err)
		}
	}

	sess.ctrl.Reset()
	if err := sess.store.Load(ctx, sess.RepairOrderID.String()); err != nil {
		// Persisted, but the session can no longer mirror the stored state.
		m.log.Errorw("reload after submit failed", "session_id", id, "error", err)
		return nil, true, err
	}

	m.publish(sess.RepairOrderID, ws.EventItemsSaved, SavedEvent{
		SessionID:    id,
		Created:      len(saved.Created),
		Updated:      len(saved.Updated),
		Deleted:      saved.DeletedCount,
		OrderTotal:   money(sub.OrderTotal),
		WarningCount: len(warnings),
	})

	return &SubmitResult{
		Submission: sub,
		Warnings:   warnings,
		Saved:      saved,
		View:       sess.view(),
	}, false, nil
}

func (m *Manager) publish(repairOrderID uuid.UUID, eventType string, payload any) {
	if m.events == nil {
		return
	}
	if err := m.events.Publish(repairOrderID, eventType, payload); err != nil {
		m.log.Warnw("publish event", "type", eventType, "repair_order_id", repairOrderID, "error", err)
	}
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}
