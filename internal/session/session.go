// Package session holds the in-memory line item editing sessions of repair
// orders. A session owns one lineitem.Store and its edit-mode controller for
// as long as an operator has the repair order open.
package session

import (
	"sync"
	"time"

	"github.com/bengkel-pos/api/internal/lineitem"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Session is one open editing surface over a repair order's line items.
// Calls on a session are serialised; a submit never interleaves with an edit.
type Session struct {
	ID            string
	GarageID      uuid.UUID
	RepairOrderID uuid.UUID
	OpenedBy      uuid.UUID
	OpenedAt      time.Time

	mu          sync.Mutex
	store       *lineitem.Store
	ctrl        *lineitem.EditController
	unsubscribe func()
}

// RowView is a row with its mode and live violations.
type RowView struct {
	lineitem.LineItem
	Editing    bool     `json:"editing"`
	Persisted  bool     `json:"persisted"`
	Violations []string `json:"violations"`
}

// View is a snapshot of the whole session.
type View struct {
	ID            string          `json:"id"`
	RepairOrderID uuid.UUID       `json:"repair_order_id"`
	Rows          []RowView       `json:"rows"`
	DeletedIDs    []string        `json:"deleted_item_ids"`
	OrderTotal    decimal.Decimal `json:"order_total"`
	Policy        string          `json:"requirement_policy"`
}

func (s *Session) rowView(row lineitem.LineItem) RowView {
	v := s.ctrl.Validator().ValidateRow(row)
	if v == nil {
		v = []string{}
	}
	return RowView{
		LineItem:   row,
		Editing:    s.ctrl.IsEditing(row.ID),
		Persisted:  s.store.HasOriginal(row.ID),
		Violations: v,
	}
}

// View returns the current rows, ledger and order total.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view()
}

func (s *Session) view() View {
	rows := s.store.Rows()
	views := make([]RowView, len(rows))
	for i, row := range rows {
		views[i] = s.rowView(row)
	}
	deleted := s.store.DeletedIDs()
	if deleted == nil {
		deleted = []string{}
	}
	return View{
		ID:            s.ID,
		RepairOrderID: s.RepairOrderID,
		Rows:          views,
		DeletedIDs:    deleted,
		OrderTotal:    s.store.OrderTotal(),
		Policy:        string(s.ctrl.Validator().Policy()),
	}
}

// Row returns one row by key.
func (s *Session) Row(key string) (RowView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.store.IndexOf(key)
	if !ok {
		return RowView{}, lineitem.ErrRowNotFound
	}
	row, err := s.store.Row(idx)
	if err != nil {
		return RowView{}, err
	}
	return s.rowView(row), nil
}

// AddRow appends a blank row in edit mode.
func (s *Session) AddRow() RowView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rowView(s.ctrl.AddRow())
}

// UpdateField sets one field of a row in edit mode.
func (s *Session) UpdateField(key, field string, value any) (RowView, error) {
	f, err := lineitem.ParseField(field)
	if err != nil {
		return RowView{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	row, _, err := s.ctrl.UpdateField(key, f, value)
	if err != nil {
		return RowView{}, err
	}
	return s.rowView(row), nil
}

// Edit puts a row into edit mode.
func (s *Session) Edit(key string) (RowView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ctrl.Edit(key); err != nil {
		return RowView{}, err
	}
	idx, _ := s.store.IndexOf(key)
	row, err := s.store.Row(idx)
	if err != nil {
		return RowView{}, err
	}
	return s.rowView(row), nil
}

// Save leaves edit mode if the row is valid.
func (s *Session) Save(key string) (RowView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, err := s.ctrl.Save(key)
	if err != nil {
		return RowView{}, err
	}
	return s.rowView(row), nil
}

// Cancel leaves edit mode, dropping a still-blank new row.
func (s *Session) Cancel(key string) (row RowView, removed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	li, removed, err := s.ctrl.Cancel(key)
	if err != nil {
		return RowView{}, false, err
	}
	if removed {
		return RowView{LineItem: li, Violations: []string{}}, true, nil
	}
	return s.rowView(li), false, nil
}

// Revert restores a row's loaded values.
func (s *Session) Revert(key string) (RowView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, err := s.ctrl.Revert(key)
	if err != nil {
		return RowView{}, err
	}
	return s.rowView(row), nil
}

// Remove drops a row, recording persisted ids for deletion.
func (s *Session) Remove(key string) (lineitem.LineItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctrl.Remove(key)
}

// Changes previews what a submit would send.
func (s *Session) Changes() lineitem.ChangeSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Reconcile()
}

// invalidRows returns the violations of every row that would block a submit.
func (s *Session) invalidRows() map[string][]string {
	out := map[string][]string{}
	for _, row := range s.store.Rows() {
		if v := s.ctrl.Validator().ValidateRow(row); len(v) > 0 {
			out[row.ID] = v
		}
	}
	return out
}

func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	s.ctrl.Reset()
	s.store.ResetAll()
}
