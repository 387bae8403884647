package lineitem

import "github.com/samber/lo"

// ChangeSet is the operation set produced by reconciling the working set
// against the loaded snapshot.
//
// Updated rows are not diffed against their originals: an unchanged persisted
// row is still listed and rewritten with the same values.
type ChangeSet struct {
	New        []LineItem `json:"new_items"`
	Updated    []LineItem `json:"updated_items"`
	DeletedIDs []string   `json:"deleted_item_ids"`
	// Orphans carry a persisted-looking id that was never loaded. They are in
	// neither New nor Updated and must not be submitted.
	Orphans []LineItem `json:"orphans,omitempty"`
}

// Empty reports whether applying the change set would touch no rows.
func (cs ChangeSet) Empty() bool {
	return len(cs.New) == 0 && len(cs.Updated) == 0 && len(cs.DeletedIDs) == 0
}

// HasOrphans reports whether the working set contained rows that cannot be
// classified as either an insertion or an update.
func (cs ChangeSet) HasOrphans() bool {
	return len(cs.Orphans) > 0
}

// Reconcile partitions current against original. Rows with a temporary id are
// new; rows whose id is in original are updates. deleted is passed through.
func Reconcile(current, original []LineItem, deleted []string) ChangeSet {
	byID := lo.KeyBy(lo.Filter(original, func(li LineItem, _ int) bool {
		return li.IsPersisted()
	}), func(li LineItem) string { return li.ID })
	return reconcile(current, byID, deleted)
}

func reconcile(current []LineItem, originalByID map[string]LineItem, deleted []string) ChangeSet {
	cs := ChangeSet{
		New:        []LineItem{},
		Updated:    []LineItem{},
		DeletedIDs: append([]string{}, deleted...),
	}
	for _, row := range current {
		switch {
		case !row.IsPersisted():
			cs.New = append(cs.New, row)
		case hasKey(originalByID, row.ID):
			cs.Updated = append(cs.Updated, row)
		default:
			cs.Orphans = append(cs.Orphans, row)
		}
	}
	return cs
}

func hasKey(m map[string]LineItem, k string) bool {
	_, ok := m[k]
	return ok
}
