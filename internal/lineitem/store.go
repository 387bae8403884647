package lineitem

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/bengkel-pos/api/internal/catalog"
	ierr "github.com/bengkel-pos/api/internal/errors"
	"github.com/shopspring/decimal"
)

var (
	ErrRowIndexOutOfRange = ierr.NewError("row index out of range").
				WithHint("The row no longer exists").
				Mark(ierr.ErrNotFound)
	ErrLoadFailed = ierr.NewError("failed to load line items").
			WithHint("Could not load the repair order items, please retry").
			Mark(ierr.ErrDatabase)
)

// Loader fetches the persisted items of a repair order.
type Loader interface {
	LoadItems(ctx context.Context, repairOrderID string) ([]PersistedItem, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, repairOrderID string) ([]PersistedItem, error)

func (f LoaderFunc) LoadItems(ctx context.Context, repairOrderID string) ([]PersistedItem, error) {
	return f(ctx, repairOrderID)
}

// ChangeKind identifies what a Store mutation did.
type ChangeKind string

const (
	ChangeLoaded   ChangeKind = "loaded"
	ChangeAdded    ChangeKind = "added"
	ChangeUpdated  ChangeKind = "updated"
	ChangeReverted ChangeKind = "reverted"
	ChangeRemoved  ChangeKind = "removed"
	ChangeReset    ChangeKind = "reset"
)

// Change is delivered to subscribers after every mutation.
// Index is the affected position before the mutation, -1 for whole-set changes.
type Change struct {
	Kind  ChangeKind `json:"kind"`
	Index int        `json:"index"`
	RowID string     `json:"row_id,omitempty"`
}

// Store owns the working set of one editing session: the current rows, the
// snapshot captured at load and the ledger of deleted persisted ids.
//
// Every row in the working set satisfies total == quantity*unitPrice+laborCost
// after every operation.
type Store struct {
	mu sync.Mutex

	loader  Loader
	catalog *catalog.Snapshot
	newID   func() string

	repairOrderID string
	current       []LineItem
	original      []LineItem
	originalByID  map[string]LineItem
	deleted       []string

	subMu     sync.Mutex
	nextSubID int
	subs      map[int]func(Change)
}

// Option configures a Store.
type Option func(*Store)

// WithCatalog enables catalog auto-fill on selection changes.
func WithCatalog(snap *catalog.Snapshot) Option {
	return func(s *Store) { s.catalog = snap }
}

// WithIDGenerator overrides the temporary id generator.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// NewStore creates an empty Store.
func NewStore(loader Loader, opts ...Option) *Store {
	s := &Store{
		loader:       loader,
		newID:        NewTempID,
		originalByID: map[string]LineItem{},
		subs:         map[int]func(Change){},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetCatalog replaces the catalog used for auto-fill.
func (s *Store) SetCatalog(snap *catalog.Snapshot) {
	s.mu.Lock()
	s.catalog = snap
	s.mu.Unlock()
}

// Catalog returns the catalog used for auto-fill, possibly nil.
func (s *Store) Catalog() *catalog.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.catalog
}

// Subscribe registers fn to be called after each mutation. The returned func unsubscribes.
// fn runs synchronously on the mutating goroutine, after the Store lock is released.
func (s *Store) Subscribe(fn func(Change)) func() {
	s.subMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subs[id] = fn
	s.subMu.Unlock()
	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) notify(c Change) {
	s.subMu.Lock()
	fns := make([]func(Change), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn(c)
	}
}

// Load fetches the items of repairOrderID and makes them both the working set
// and the original snapshot, clearing the deletion ledger. On failure the Store
// is left exactly as it was.
func (s *Store) Load(ctx context.Context, repairOrderID string) error {
	records, err := s.loader.LoadItems(ctx, repairOrderID)
	if err != nil {
		return ierr.WithError(err).
			WithMessagef("load items of %s", repairOrderID).
			Mark(ErrLoadFailed)
	}

	rows := make([]LineItem, len(records))
	byID := make(map[string]LineItem, len(records))
	for i, rec := range records {
		row := fromPersisted(rec)
		if IsTempID(row.ID) {
			// a record without a server id cannot be updated; treat it as new
			row.ID = s.newID()
		} else {
			byID[row.ID] = row
		}
		rows[i] = row
	}

	s.mu.Lock()
	s.repairOrderID = repairOrderID
	s.current = rows
	s.original = slices.Clone(rows)
	s.originalByID = byID
	s.deleted = nil
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeLoaded, Index: -1})
	return nil
}

// RepairOrderID returns the id of the last successful Load.
func (s *Store) RepairOrderID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repairOrderID
}

// AddRow appends a blank row with a fresh temporary id and returns it with its index.
func (s *Store) AddRow() (LineItem, int) {
	s.mu.Lock()
	row := newRow(s.newID())
	s.current = append(s.current, row)
	idx := len(s.current) - 1
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeAdded, Index: idx, RowID: row.ID})
	return row, idx
}

// UpdateField sets field on the row at index and returns the updated row.
// The total is recomputed before the call returns. With a catalog attached,
// changing a spare part or labor type selection also fills in id, name and price.
func (s *Store) UpdateField(index int, field Field, value any) (LineItem, error) {
	s.mu.Lock()
	if err := s.checkIndex(index); err != nil {
		s.mu.Unlock()
		return LineItem{}, err
	}
	prev := s.current[index]
	next, err := ApplyField(prev, field, value)
	if err != nil {
		s.mu.Unlock()
		return prev, err
	}
	next = autofill(s.catalog, prev, next, field)
	s.current[index] = next
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeUpdated, Index: index, RowID: next.ID})
	return next, nil
}

// RevertRow restores the row at index to its loaded values. Rows without a
// loaded counterpart are left unchanged.
func (s *Store) RevertRow(index int) (LineItem, error) {
	s.mu.Lock()
	if err := s.checkIndex(index); err != nil {
		s.mu.Unlock()
		return LineItem{}, err
	}
	row := s.current[index]
	orig, ok := s.originalByID[row.ID]
	if !ok {
		s.mu.Unlock()
		return row, nil
	}
	s.current[index] = orig
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeReverted, Index: index, RowID: orig.ID})
	return orig, nil
}

// RemoveRow drops the row at index. Persisted rows are recorded in the deletion
// ledger. Rows after index shift down by one.
func (s *Store) RemoveRow(index int) (LineItem, error) {
	s.mu.Lock()
	if err := s.checkIndex(index); err != nil {
		s.mu.Unlock()
		return LineItem{}, err
	}
	row := s.current[index]
	if _, ok := s.originalByID[row.ID]; ok && !slices.Contains(s.deleted, row.ID) {
		s.deleted = append(s.deleted, row.ID)
	}
	s.current = slices.Delete(s.current, index, index+1)
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeRemoved, Index: index, RowID: row.ID})
	return row, nil
}

// ResetAll clears the working set, the original snapshot and the deletion ledger.
func (s *Store) ResetAll() {
	s.mu.Lock()
	s.repairOrderID = ""
	s.current = nil
	s.original = nil
	s.originalByID = map[string]LineItem{}
	s.deleted = nil
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeReset, Index: -1})
}

// Rows returns a copy of the working set.
func (s *Store) Rows() []LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.current)
}

// Len returns the number of rows in the working set.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.current)
}

// Row returns the row at index.
func (s *Store) Row(index int) (LineItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkIndex(index); err != nil {
		return LineItem{}, err
	}
	return s.current[index], nil
}

// IndexOf returns the current position of the row with the given id.
func (s *Store) IndexOf(id string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := slices.IndexFunc(s.current, func(r LineItem) bool { return r.ID == id })
	return idx, idx >= 0
}

// Original returns a copy of the snapshot captured at load.
func (s *Store) Original() []LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.original)
}

// HasOriginal reports whether id was part of the loaded snapshot.
func (s *Store) HasOriginal(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.originalByID[id]
	return ok
}

// DeletedIDs returns a copy of the deletion ledger.
func (s *Store) DeletedIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.deleted)
}

// OrderTotal is the sum of the working set's row totals.
func (s *Store) OrderTotal() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return OrderTotal(s.current)
}

// Reconcile partitions the working set against the loaded snapshot.
func (s *Store) Reconcile() ChangeSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return reconcile(s.current, s.originalByID, s.deleted)
}

func (s *Store) checkIndex(index int) error {
	if index < 0 || index >= len(s.current) {
		return fmt.Errorf("%w: %d (rows: %d)", ErrRowIndexOutOfRange, index, len(s.current))
	}
	return nil
}
