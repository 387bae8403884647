// Package catalog holds the garage's reference lists of spare parts and labor
// types and resolves selections against them.
package catalog

import (
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// SparePart is a catalog spare part with its unit price.
type SparePart struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// LaborType is a catalog labor charge with its fixed cost.
type LaborType struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Cost decimal.Decimal `json:"cost"`
}

// Snapshot is an immutable view of a garage catalog at one point in time.
type Snapshot struct {
	SpareParts []SparePart `json:"spare_parts"`
	LaborTypes []LaborType `json:"labor_types"`

	partsByID   map[string]SparePart
	laborByID   map[string]LaborType
	partsByName map[string][]SparePart
	laborByName map[string][]LaborType
}

// NewSnapshot indexes the given entries by id and by normalised name.
func NewSnapshot(parts []SparePart, labor []LaborType) *Snapshot {
	if parts == nil {
		parts = []SparePart{}
	}
	if labor == nil {
		labor = []LaborType{}
	}
	return &Snapshot{
		SpareParts: parts,
		LaborTypes: labor,
		partsByID:  lo.KeyBy(parts, func(p SparePart) string { return p.ID }),
		laborByID:  lo.KeyBy(labor, func(l LaborType) string { return l.ID }),
		partsByName: lo.GroupBy(parts, func(p SparePart) string {
			return normalize(p.Name)
		}),
		laborByName: lo.GroupBy(labor, func(l LaborType) string {
			return normalize(l.Name)
		}),
	}
}

// SparePart looks a spare part up by id.
func (s *Snapshot) SparePart(id string) (SparePart, bool) {
	if s == nil || id == "" {
		return SparePart{}, false
	}
	p, ok := s.partsByID[id]
	return p, ok
}

// LaborType looks a labor type up by id.
func (s *Snapshot) LaborType(id string) (LaborType, bool) {
	if s == nil || id == "" {
		return LaborType{}, false
	}
	l, ok := s.laborByID[id]
	return l, ok
}

// ResolveSparePart matches a display name against the spare part list.
func (s *Snapshot) ResolveSparePart(name string) MatchResult[SparePart] {
	if s == nil {
		return MatchResult[SparePart]{Status: Unmatched}
	}
	return match(s.partsByName, name)
}

// ResolveLaborType matches a display name against the labor type list.
func (s *Snapshot) ResolveLaborType(name string) MatchResult[LaborType] {
	if s == nil {
		return MatchResult[LaborType]{Status: Unmatched}
	}
	return match(s.laborByName, name)
}
