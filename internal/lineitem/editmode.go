package lineitem

import (
	"fmt"
	"sync"

	ierr "github.com/bengkel-pos/api/internal/errors"
)

var (
	ErrRowNotFound = ierr.NewError("row not found").
			WithHint("The row does not exist in this session").
			Mark(ierr.ErrNotFound)
	ErrRowInvalid = ierr.NewError("row is invalid").
			WithHint("Fix the highlighted fields before saving").
			Mark(ierr.ErrValidation)
	ErrNotEditing = ierr.NewError("row is not in edit mode").
			WithHint("Click edit on the row first").
			Mark(ierr.ErrInvalidOperation)
)

// RowInvalidError carries the violations that blocked a save.
type RowInvalidError struct {
	RowID      string
	Violations []string
}

func (e *RowInvalidError) Error() string {
	return fmt.Sprintf("row %s is invalid: %v", e.RowID, e.Violations)
}

func (e *RowInvalidError) Unwrap() error { return ErrRowInvalid }

// EditController tracks which rows of a Store are in edit mode. Rows are keyed
// by id, so removing a row never shifts the mode of another.
type EditController struct {
	mu        sync.Mutex
	store     *Store
	validator *Validator
	editing   map[string]bool
}

// NewEditController creates a controller over store. A nil validator uses the
// RequireBoth policy.
func NewEditController(store *Store, v *Validator) *EditController {
	if v == nil {
		v = defaultValidator
	}
	return &EditController{
		store:     store,
		validator: v,
		editing:   map[string]bool{},
	}
}

// Validator returns the validator gating Save.
func (c *EditController) Validator() *Validator {
	return c.validator
}

func (c *EditController) index(key string) (int, error) {
	idx, ok := c.store.IndexOf(key)
	if !ok {
		return -1, fmt.Errorf("%w: %s", ErrRowNotFound, key)
	}
	return idx, nil
}

// IsEditing reports whether the row is in edit mode.
func (c *EditController) IsEditing(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.editing[key]
}

// Editing returns a copy of the edit-mode map, only rows in edit mode are present.
func (c *EditController) Editing() map[string]bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]bool, len(c.editing))
	for k, v := range c.editing {
		if v {
			out[k] = true
		}
	}
	return out
}

// Edit puts the row into edit mode.
func (c *EditController) Edit(key string) error {
	if _, err := c.index(key); err != nil {
		return err
	}
	c.mu.Lock()
	c.editing[key] = true
	c.mu.Unlock()
	return nil
}

// AddRow appends a blank row and puts it into edit mode.
func (c *EditController) AddRow() LineItem {
	row, _ := c.store.AddRow()
	c.mu.Lock()
	c.editing[row.ID] = true
	c.mu.Unlock()
	return row
}

// UpdateField edits a field of a row in edit mode and returns the row with its
// current violations.
func (c *EditController) UpdateField(key string, field Field, value any) (LineItem, []string, error) {
	if !c.IsEditing(key) {
		return LineItem{}, nil, fmt.Errorf("%w: %s", ErrNotEditing, key)
	}
	idx, err := c.index(key)
	if err != nil {
		return LineItem{}, nil, err
	}
	row, err := c.store.UpdateField(idx, field, value)
	if err != nil {
		return row, c.validator.ValidateRow(row), err
	}
	return row, c.validator.ValidateRow(row), nil
}

// Save leaves edit mode keeping the edited values. A row with violations stays
// in edit mode and a *RowInvalidError is returned.
func (c *EditController) Save(key string) (LineItem, error) {
	idx, err := c.index(key)
	if err != nil {
		return LineItem{}, err
	}
	row, err := c.store.Row(idx)
	if err != nil {
		return LineItem{}, err
	}
	if v := c.validator.ValidateRow(row); len(v) > 0 {
		return row, &RowInvalidError{RowID: key, Violations: v}
	}
	c.mu.Lock()
	delete(c.editing, key)
	c.mu.Unlock()
	return row, nil
}

// Cancel leaves edit mode. A new row still in its blank state is dropped; any
// other row is reverted to its loaded values. removed reports whether the row
// left the working set. A row in display mode returns ErrNotEditing so that
// edits already saved locally are kept.
func (c *EditController) Cancel(key string) (row LineItem, removed bool, err error) {
	idx, err := c.index(key)
	if err != nil {
		return LineItem{}, false, err
	}
	if !c.IsEditing(key) {
		return LineItem{}, false, fmt.Errorf("%w: %s", ErrNotEditing, key)
	}
	cur, err := c.store.Row(idx)
	if err != nil {
		return LineItem{}, false, err
	}

	c.mu.Lock()
	delete(c.editing, key)
	c.mu.Unlock()

	if cur.IsPristine() {
		row, err = c.store.RemoveRow(idx)
		return row, err == nil, err
	}
	row, err = c.store.RevertRow(idx)
	return row, false, err
}

// Revert restores the row's loaded values without changing its mode.
func (c *EditController) Revert(key string) (LineItem, error) {
	idx, err := c.index(key)
	if err != nil {
		return LineItem{}, err
	}
	return c.store.RevertRow(idx)
}

// Remove drops the row from the working set and forgets its mode.
func (c *EditController) Remove(key string) (LineItem, error) {
	idx, err := c.index(key)
	if err != nil {
		return LineItem{}, err
	}
	row, err := c.store.RemoveRow(idx)
	if err != nil {
		return row, err
	}
	c.mu.Lock()
	delete(c.editing, key)
	c.mu.Unlock()
	return row, nil
}

// Reset forgets every row's mode, used after a reload.
func (c *EditController) Reset() {
	c.mu.Lock()
	c.editing = map[string]bool{}
	c.mu.Unlock()
}
